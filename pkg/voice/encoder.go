package voice

import (
	"sync/atomic"

	"github.com/teslashibe/go-livehelper/pkg/audioio"
)

// FrameEncoder converts captured float frames to PCM16 and queues them for
// the upstream writer. Encode never blocks: frames are dropped while the
// encoder is closed or muted, or when the queue is full.
type FrameEncoder struct {
	rate    int
	out     chan Frame
	seq     atomic.Uint64
	open    atomic.Bool
	muted   func() bool
	metrics *Metrics
}

// NewFrameEncoder creates an encoder with a queue of depth frames.
func NewFrameEncoder(rate, depth int, metrics *Metrics) *FrameEncoder {
	if metrics == nil {
		metrics = newMetrics()
	}
	return &FrameEncoder{
		rate:    rate,
		out:     make(chan Frame, depth),
		muted:   func() bool { return false },
		metrics: metrics,
	}
}

// Open starts accepting frames.
func (e *FrameEncoder) Open() { e.open.Store(true) }

// Close stops accepting frames. Frames already queued stay queued.
func (e *FrameEncoder) Close() { e.open.Store(false) }

// Frames is the queue drained by the single upstream writer.
func (e *FrameEncoder) Frames() <-chan Frame { return e.out }

// Encode clamps, scales and packs samples and queues the frame. It reports
// whether the frame was queued.
func (e *FrameEncoder) Encode(samples []float32) bool {
	e.metrics.framesCaptured.Add(1)
	seq := e.seq.Add(1)

	if !e.open.Load() || e.muted() {
		e.metrics.framesDropped.Add(1)
		return false
	}

	f := Frame{Seq: seq, Data: audioio.FloatToPCM16(samples), SampleRate: e.rate}
	select {
	case e.out <- f:
		return true
	default:
		e.metrics.framesDropped.Add(1)
		return false
	}
}
