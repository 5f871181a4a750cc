package audioio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a mock capture source. By default it generates frames on a
// ticker (silence or a sine wave); in manual mode frames are injected with Push.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	manual   bool
	streamCh chan AudioChunk
	stopCh   chan struct{}

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
	starts      atomic.Int64

	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithManualFrames disables the ticker; frames arrive only through Push.
func WithManualFrames() MockSourceOption {
	return func(m *MockSource) {
		m.manual = true
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		streamCh:  make(chan AudioChunk, 16),
		stopCh:    make(chan struct{}),
		amplitude: 0.5,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins generating audio.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.streamCh = make(chan AudioChunk, 16)
	m.starts.Add(1)

	go m.generateLoop(ctx, m.stopCh)

	m.logger.Debug("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"frequency", m.frequency,
		"manual", m.manual,
	)
	return nil
}

func (m *MockSource) generateLoop(ctx context.Context, stopCh chan struct{}) {
	var tick <-chan time.Time
	if !m.manual {
		ticker := time.NewTicker(m.cfg.FrameDuration())
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-stopCh:
			return
		case <-tick:
			m.deliver(m.generateFrame())
		}
	}
}

// Push delivers one frame as if the device had captured it. It reports
// false when the source is not running.
func (m *MockSource) Push(samples []float32) bool {
	return m.deliver(AudioChunk{Samples: samples, SampleRate: m.cfg.SampleRate, Captured: time.Now()})
}

func (m *MockSource) deliver(chunk AudioChunk) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return false
	}
	select {
	case m.streamCh <- chunk:
		m.chunksRead.Add(1)
		m.samplesRead.Add(int64(len(chunk.Samples)))
	default:
		m.overruns.Add(1)
		m.logger.Debug("mock source: buffer full, dropping frame")
	}
	return true
}

func (m *MockSource) generateFrame() AudioChunk {
	samples := make([]float32, m.cfg.FrameSize)
	if m.frequency > 0 {
		for i := range samples {
			samples[i] = float32(m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate)))
			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}
	return AudioChunk{Samples: samples, SampleRate: m.cfg.SampleRate, Captured: time.Now()}
}

// Stop halts audio generation.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	close(m.stopCh)
	close(m.streamCh)

	m.logger.Debug("mock audio source stopped")
	return nil
}

// Stream returns the audio chunk channel.
func (m *MockSource) Stream() <-chan AudioChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCh
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSource) Name() string { return "mock" }

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	return m.Stop()
}

// Closed reports whether Close has been called.
func (m *MockSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Running reports whether capture is active.
func (m *MockSource) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	return SourceStats{
		ChunksRead:  m.chunksRead.Load(),
		SamplesRead: m.samplesRead.Load(),
		Overruns:    m.overruns.Load(),
		Running:     m.Running(),
		Backend:     "mock",
	}
}

var _ SourceWithStats = (*MockSource)(nil)

// ErrSinkNotStarted is returned by MockSink.Pull before Start.
var ErrSinkNotStarted = errors.New("audioio: mock sink not started")

// MockSink is a mock output device. In manual mode (the default) the test
// drives the output clock with Pull; WithRealtimePull makes it pull on a
// ticker like a real device.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	reader   io.Reader
	realtime bool
	running  bool
	closed   bool
	stopCh   chan struct{}
	startErr error

	bytesPulled atomic.Int64
}

// MockSinkOption configures a MockSink.
type MockSinkOption func(*MockSink)

// WithRealtimePull pulls one device buffer every BufferDuration.
func WithRealtimePull() MockSinkOption {
	return func(m *MockSink) { m.realtime = true }
}

// WithStartError makes Start fail, simulating an unavailable device.
func WithStartError(err error) MockSinkOption {
	return func(m *MockSink) { m.startErr = err }
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config, logger *slog.Logger, opts ...MockSinkOption) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSink{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start attaches the reader.
func (m *MockSink) Start(ctx context.Context, r io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		return m.startErr
	}
	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}
	m.reader = r
	m.running = true
	m.stopCh = make(chan struct{})

	if m.realtime {
		go m.pullLoop(m.stopCh)
	}
	m.logger.Debug("mock audio sink started", "realtime", m.realtime)
	return nil
}

func (m *MockSink) pullLoop(stopCh chan struct{}) {
	ticker := time.NewTicker(m.cfg.BufferDuration)
	defer ticker.Stop()
	buf := make([]byte, m.cfg.BufferBytes())
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if _, err := m.read(buf); err != nil {
				return
			}
		}
	}
}

// Pull reads frames samples from the attached reader, advancing the output
// clock by exactly that many frames.
func (m *MockSink) Pull(frames int) ([]int16, error) {
	buf := make([]byte, frames*2)
	n, err := m.read(buf)
	if err != nil {
		return nil, err
	}
	return BytesToSamples(buf[:n]), nil
}

func (m *MockSink) read(buf []byte) (int, error) {
	m.mu.Lock()
	r := m.reader
	running := m.running
	m.mu.Unlock()

	if !running {
		return 0, ErrSinkNotStarted
	}
	n, err := io.ReadFull(r, buf)
	m.bytesPulled.Add(int64(n))
	return n, err
}

// Config returns the audio configuration.
func (m *MockSink) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSink) Name() string { return "mock" }

// Close stops pulling.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	if m.running {
		m.running = false
		close(m.stopCh)
	}
	m.logger.Debug("mock audio sink closed")
	return nil
}

// Closed reports whether Close has been called.
func (m *MockSink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Stats returns sink statistics.
func (m *MockSink) Stats() SinkStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	return SinkStats{BytesPulled: m.bytesPulled.Load(), Running: running, Backend: "mock"}
}

var _ SinkWithStats = (*MockSink)(nil)
