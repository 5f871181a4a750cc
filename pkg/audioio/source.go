package audioio

import (
	"context"
	"io"
	"sync"
	"time"
)

// AudioChunk is one captured frame of mono float samples.
type AudioChunk struct {
	// Samples are in [-1, 1] at SampleRate.
	Samples []float32

	SampleRate int

	// Captured is when the last sample was delivered by the device.
	Captured time.Time
}

// Duration returns the duration of this chunk.
func (c *AudioChunk) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start begins capture. Frames are delivered on Stream until Stop,
	// Close or ctx cancellation.
	Start(ctx context.Context) error

	// Stop halts capture. It is safe to call Stop multiple times.
	Stop() error

	// Stream returns the frame channel. It is closed when capture stops.
	Stream() <-chan AudioChunk

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name ("malgo", "mock").
	Name() string

	// Close releases the device. After Close the source cannot be restarted.
	io.Closer
}

// SourceStats contains capture statistics.
type SourceStats struct {
	ChunksRead  int64  `json:"chunks_read"`
	SamplesRead int64  `json:"samples_read"`
	Overruns    int64  `json:"overruns"`
	Running     bool   `json:"running"`
	Backend     string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}

// framer accumulates device callbacks into fixed-size frames.
type framer struct {
	mu   sync.Mutex
	size int
	buf  []float32
}

func newFramer(size int) *framer {
	return &framer{size: size, buf: make([]float32, 0, size*2)}
}

// push appends samples and returns every complete frame.
func (f *framer) push(samples []float32) [][]float32 {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.buf = append(f.buf, samples...)
	var frames [][]float32
	for len(f.buf) >= f.size {
		frame := make([]float32, f.size)
		copy(frame, f.buf[:f.size])
		frames = append(frames, frame)
		f.buf = f.buf[f.size:]
	}
	// compact so the backing array does not grow without bound
	if len(f.buf) > 0 && cap(f.buf) > f.size*4 {
		f.buf = append(make([]float32, 0, f.size*2), f.buf...)
	}
	return frames
}

func (f *framer) reset() {
	f.mu.Lock()
	f.buf = f.buf[:0]
	f.mu.Unlock()
}
