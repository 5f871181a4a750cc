package audioio

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestFramer(t *testing.T) {
	f := newFramer(4)

	if frames := f.push([]float32{1, 2, 3}); len(frames) != 0 {
		t.Fatalf("expected no frames yet, got %d", len(frames))
	}
	frames := f.push([]float32{4, 5, 6, 7, 8, 9})
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0][0] != 1 || frames[0][3] != 4 || frames[1][0] != 5 || frames[1][3] != 8 {
		t.Errorf("unexpected frames %v", frames)
	}

	f.reset()
	if frames := f.push([]float32{1, 2, 3}); len(frames) != 0 {
		t.Error("reset should discard the partial frame")
	}
}

func TestMockSource_StartStop(t *testing.T) {
	cfg := DefaultCaptureConfig()
	src := NewMockSource(cfg, nil, WithManualFrames())
	defer src.Close()

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := src.Start(ctx); err != nil {
		t.Fatalf("second Start should be a no-op: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("second Stop should be a no-op: %v", err)
	}
	if _, ok := <-src.Stream(); ok {
		t.Error("stream should be closed after Stop")
	}
}

func TestMockSource_Push(t *testing.T) {
	src := NewMockSource(DefaultCaptureConfig(), nil, WithManualFrames())
	defer src.Close()

	if src.Push([]float32{0.1}) {
		t.Error("Push before Start should report false")
	}
	if err := src.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !src.Push([]float32{0.1, 0.2}) {
		t.Fatal("Push while running should report true")
	}

	select {
	case chunk := <-src.Stream():
		if len(chunk.Samples) != 2 || chunk.SampleRate != InputSampleRate {
			t.Errorf("unexpected chunk %+v", chunk)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
	if got := src.Stats().ChunksRead; got != 1 {
		t.Errorf("ChunksRead = %d, want 1", got)
	}
}

func TestMockSource_Generates(t *testing.T) {
	cfg := DefaultCaptureConfig()
	cfg.FrameSize = 160 // 10ms at 16kHz
	src := NewMockSource(cfg, nil, WithSineWave(440, 0.5))
	defer src.Close()

	if err := src.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case chunk := <-src.Stream():
		if len(chunk.Samples) != 160 {
			t.Errorf("frame size = %d, want 160", len(chunk.Samples))
		}
		if RMS(chunk.Samples) == 0 {
			t.Error("sine frame should not be silent")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for generated frame")
	}
}

func TestMockSource_ContextCancel(t *testing.T) {
	src := NewMockSource(DefaultCaptureConfig(), nil, WithManualFrames())
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	if err := src.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for src.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if src.Running() {
		t.Error("source should stop when ctx is cancelled")
	}
}

func TestMockSink_Pull(t *testing.T) {
	sink := NewMockSink(DefaultOutputConfig(), nil)
	defer sink.Close()

	if _, err := sink.Pull(1); !errors.Is(err, ErrSinkNotStarted) {
		t.Errorf("Pull before Start: err = %v", err)
	}

	r := bytes.NewReader(SamplesToBytes([]int16{5, 6, 7, 8}))
	if err := sink.Start(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	got, err := sink.Pull(3)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if len(got) != 3 || got[0] != 5 || got[2] != 7 {
		t.Errorf("Pull = %v", got)
	}
	if sink.Stats().BytesPulled != 6 {
		t.Errorf("BytesPulled = %d, want 6", sink.Stats().BytesPulled)
	}
}

func TestMockSink_StartError(t *testing.T) {
	boom := errors.New("no device")
	sink := NewMockSink(DefaultOutputConfig(), nil, WithStartError(boom))
	if err := sink.Start(context.Background(), bytes.NewReader(nil)); !errors.Is(err, boom) {
		t.Errorf("Start err = %v, want %v", err, boom)
	}
}

func TestMockSink_CloseIdempotent(t *testing.T) {
	sink := NewMockSink(DefaultOutputConfig(), nil, WithRealtimePull())
	if err := sink.Start(context.Background(), bytes.NewReader(make([]byte, 1<<20))); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}
	if !sink.Closed() {
		t.Error("Closed() should report true")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mod     func(*Config)
		wantErr bool
	}{
		{"capture default", func(*Config) {}, false},
		{"zero rate", func(c *Config) { c.SampleRate = 0 }, true},
		{"zero channels", func(c *Config) { c.Channels = 0 }, true},
		{"zero frame", func(c *Config) { c.FrameSize = 0 }, true},
		{"zero buffer", func(c *Config) { c.BufferDuration = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCaptureConfig()
			tt.mod(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFrameDuration(t *testing.T) {
	cfg := DefaultCaptureConfig()
	if got := cfg.FrameDuration(); got != 256*time.Millisecond {
		t.Errorf("FrameDuration = %v, want 256ms", got)
	}
}

func TestNewSourceMock(t *testing.T) {
	cfg := DefaultCaptureConfig()
	cfg.Backend = BackendMock
	src, err := NewSource(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	if src.Name() != "mock" {
		t.Errorf("Name = %q", src.Name())
	}

	cfg.Backend = "bogus"
	if _, err := NewSource(cfg, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}
