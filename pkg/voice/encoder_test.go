package voice

import (
	"testing"

	"github.com/teslashibe/go-livehelper/pkg/audioio"
)

func TestEncoderDropsWhenClosed(t *testing.T) {
	m := newMetrics()
	e := NewFrameEncoder(InputSampleRate, 4, m)

	if e.Encode([]float32{0.1}) {
		t.Error("frame before Open should be dropped")
	}
	e.Open()
	if !e.Encode([]float32{0.1}) {
		t.Error("frame after Open should be queued")
	}
	e.Close()
	if e.Encode([]float32{0.1}) {
		t.Error("frame after Close should be dropped")
	}

	snap := m.Snapshot()
	if snap.FramesCaptured != 3 || snap.FramesDropped != 2 {
		t.Errorf("captured=%d dropped=%d", snap.FramesCaptured, snap.FramesDropped)
	}
}

func TestEncoderQueueFullDrops(t *testing.T) {
	e := NewFrameEncoder(InputSampleRate, 2, nil)
	e.Open()
	results := []bool{e.Encode(nil), e.Encode(nil), e.Encode(nil)}
	if !results[0] || !results[1] || results[2] {
		t.Errorf("results = %v, want [true true false]", results)
	}
}

func TestEncoderMuted(t *testing.T) {
	muted := true
	e := NewFrameEncoder(InputSampleRate, 2, nil)
	e.muted = func() bool { return muted }
	e.Open()
	if e.Encode([]float32{0.5}) {
		t.Error("muted frame should be dropped")
	}
	muted = false
	if !e.Encode([]float32{0.5}) {
		t.Error("unmuted frame should be queued")
	}
}

func TestEncoderFrames(t *testing.T) {
	e := NewFrameEncoder(InputSampleRate, 4, nil)
	e.Open()
	e.Encode([]float32{2, -2})
	e.Encode([]float32{0})

	f1, f2 := <-e.Frames(), <-e.Frames()
	if f1.Seq >= f2.Seq {
		t.Errorf("sequence not increasing: %d then %d", f1.Seq, f2.Seq)
	}
	samples := audioio.BytesToSamples(f1.Data)
	if samples[0] != 32767 || samples[1] != -32767 {
		t.Errorf("clamped samples = %v", samples)
	}
	if f1.MIMEType() != "audio/pcm;rate=16000" {
		t.Errorf("MIMEType = %q", f1.MIMEType())
	}
}
