package playback

import "time"

// Position is a point on the output timeline, in sample frames.
type Position int64

// Seconds converts p to seconds at rate.
func (p Position) Seconds(rate int) float64 {
	return float64(p) / float64(rate)
}

// Duration converts p to a time.Duration at rate.
func (p Position) Duration(rate int) time.Duration {
	return time.Duration(p) * time.Second / time.Duration(rate)
}

// FramesFor converts d to frames at rate, truncating.
func FramesFor(d time.Duration, rate int) Position {
	return Position(int64(d) * int64(rate) / int64(time.Second))
}

// Buffer is decoded mono PCM at the output rate.
type Buffer struct {
	Samples []int16
}

// Len returns the buffer length in frames.
func (b Buffer) Len() Position {
	return Position(len(b.Samples))
}

// Clock reports the output device's current position.
type Clock interface {
	Now() Position
}

// Source is a handle to one scheduled buffer.
type Source interface {
	// Stop silences the buffer. Stopping a finished source is a no-op.
	Stop()
}

// Output is where the scheduler places buffers.
type Output interface {
	Clock

	// Schedule plays buf starting at at, or at the clock if at has already
	// passed, and returns the effective start. The clamp and the placement
	// happen under one clock reading. onEnded runs once when playback
	// passes the end of buf; it does not run for stopped sources.
	Schedule(buf Buffer, at Position, onEnded func()) (Source, Position)

	// SampleRate is the output rate in Hz.
	SampleRate() int

	// Close releases the device.
	Close() error
}
