package audioio

import (
	"context"
	"io"
	"sync/atomic"
)

// Sink plays audio pulled from a reader.
//
// The sink reads PCM16 little-endian mono at Config().SampleRate whenever
// the device needs data, so the amount read so far is the output clock.
// Readers should never block; silence is supplied by the reader itself.
type Sink interface {
	// Start begins pulling from r. ctx bounds device setup only.
	Start(ctx context.Context, r io.Reader) error

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name ("oto", "mock").
	Name() string

	// Close stops playback and releases the device. Safe to call twice.
	io.Closer
}

// SinkStats contains output statistics.
type SinkStats struct {
	BytesPulled int64  `json:"bytes_pulled"`
	Running     bool   `json:"running"`
	Backend     string `json:"backend"`
}

// SinkWithStats extends Sink with statistics.
type SinkWithStats interface {
	Sink
	Stats() SinkStats
}

// countingReader tracks how many bytes the device has pulled.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
