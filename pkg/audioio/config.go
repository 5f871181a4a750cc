// Package audioio provides microphone capture and speaker output.
//
// Backends:
//   - native: miniaudio capture (malgo) and oto output; needs cgo
//   - mock: synthetic capture and a pull-driven sink for tests and CI
//
// Capture delivers float32 frames in [-1, 1]. Output pulls PCM16
// little-endian mono from an io.Reader at the device rate.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects native when cgo is available, mock otherwise.
	BackendAuto Backend = "auto"
	// BackendNative uses malgo for capture and oto for output.
	BackendNative Backend = "native"
	// BackendMock uses in-process fakes.
	BackendMock Backend = "mock"
)

// Standard rates for the live session.
const (
	InputSampleRate  = 16000
	OutputSampleRate = 24000
	DefaultFrameSize = 4096
)

// Config holds audio device configuration.
type Config struct {
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the device rate in Hz.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of channels. Only mono is used by the session.
	Channels int `yaml:"channels" json:"channels"`

	// FrameSize is the number of samples per captured frame.
	FrameSize int `yaml:"frame_size" json:"frame_size"`

	// BufferDuration is the device buffer for output.
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`
}

// DefaultCaptureConfig returns the capture defaults: 16 kHz mono, 4096-sample frames.
func DefaultCaptureConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     InputSampleRate,
		Channels:       1,
		FrameSize:      DefaultFrameSize,
		BufferDuration: 20 * time.Millisecond,
	}
}

// DefaultOutputConfig returns the output defaults: 24 kHz mono, 100ms buffer.
func DefaultOutputConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     OutputSampleRate,
		Channels:       1,
		FrameSize:      DefaultFrameSize,
		BufferDuration: 100 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.FrameSize <= 0 {
		return fmt.Errorf("frame_size must be positive, got %d", c.FrameSize)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// FrameDuration is the wall time covered by one captured frame.
func (c *Config) FrameDuration() time.Duration {
	return time.Duration(c.FrameSize) * time.Second / time.Duration(c.SampleRate)
}

// BufferBytes returns the output buffer size in bytes (int16 samples).
func (c *Config) BufferBytes() int {
	return int(float64(c.SampleRate)*c.BufferDuration.Seconds()) * c.Channels * 2
}
