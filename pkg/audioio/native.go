//go:build cgo

package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"
)

const nativeAvailable = true

// MalgoSource captures from the default input device through miniaudio.
type MalgoSource struct {
	cfg    Config
	logger *slog.Logger
	framer *framer

	mu       sync.Mutex
	mctx     *malgo.AllocatedContext
	device   *malgo.Device
	running  bool
	closed   bool
	streamCh chan AudioChunk
	stopCh   chan struct{}

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

func newMalgoSource(cfg Config, logger *slog.Logger) (Source, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo init context: %w", err)
	}
	return &MalgoSource{
		cfg:      cfg,
		logger:   logger,
		framer:   newFramer(cfg.FrameSize),
		mctx:     mctx,
		streamCh: make(chan AudioChunk, 8),
		stopCh:   make(chan struct{}),
	}, nil
}

// Start opens the capture device and begins delivering frames.
func (s *MalgoSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	dc := malgo.DefaultDeviceConfig(malgo.Capture)
	dc.Capture.Format = malgo.FormatF32
	dc.Capture.Channels = uint32(s.cfg.Channels)
	dc.SampleRate = uint32(s.cfg.SampleRate)
	dc.PeriodSizeInMilliseconds = uint32(s.cfg.BufferDuration.Milliseconds())

	stopCh := make(chan struct{})
	streamCh := make(chan AudioChunk, 8)
	channels := s.cfg.Channels

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			samples := DownmixFloat(Float32FromBytes(input), channels)
			for _, frame := range s.framer.push(samples) {
				chunk := AudioChunk{Samples: frame, SampleRate: s.cfg.SampleRate, Captured: time.Now()}
				select {
				case <-stopCh:
					return
				case streamCh <- chunk:
					s.chunksRead.Add(1)
					s.samplesRead.Add(int64(len(frame)))
				default:
					s.overruns.Add(1)
				}
			}
		},
	}

	device, err := malgo.InitDevice(s.mctx.Context, dc, callbacks)
	if err != nil {
		return fmt.Errorf("malgo init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("malgo start capture: %w", err)
	}

	s.device = device
	s.stopCh = stopCh
	s.streamCh = streamCh
	s.running = true

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopCh:
		}
	}()

	s.logger.Info("malgo capture started", "sample_rate", s.cfg.SampleRate, "frame_size", s.cfg.FrameSize)
	return nil
}

// Stop halts capture and closes the stream.
func (s *MalgoSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)

	// Uninit blocks until the callback has returned, so closing the
	// stream afterwards cannot race a send.
	s.device.Stop()
	s.device.Uninit()
	s.device = nil
	close(s.streamCh)
	s.framer.reset()

	s.logger.Info("malgo capture stopped", "overruns", s.overruns.Load())
	return nil
}

// Stream returns the frame channel.
func (s *MalgoSource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the audio configuration.
func (s *MalgoSource) Config() Config { return s.cfg }

// Name returns "malgo".
func (s *MalgoSource) Name() string { return "malgo" }

// Close stops capture and frees the miniaudio context.
func (s *MalgoSource) Close() error {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.mctx != nil {
		_ = s.mctx.Uninit()
		s.mctx.Free()
		s.mctx = nil
	}
	return nil
}

// Stats returns capture statistics.
func (s *MalgoSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     "malgo",
	}
}

var _ SourceWithStats = (*MalgoSource)(nil)

// oto allows a single context per process; every OtoSink shares it.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoRate int
	otoErr  error
)

func sharedOtoContext(cfg Config) (*oto.Context, error) {
	otoOnce.Do(func() {
		var ready chan struct{}
		otoCtx, ready, otoErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: cfg.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   cfg.BufferDuration,
		})
		if otoErr == nil {
			<-ready
			otoRate = cfg.SampleRate
		}
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoRate != cfg.SampleRate {
		return nil, fmt.Errorf("oto context already open at %d Hz, want %d Hz", otoRate, cfg.SampleRate)
	}
	return otoCtx, nil
}

// OtoSink plays through the default output device.
type OtoSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	player  *oto.Player
	counter *countingReader
	closed  bool
}

func newOtoSink(cfg Config, logger *slog.Logger) (Sink, error) {
	return &OtoSink{cfg: cfg, logger: logger}, nil
}

// Start opens a player that pulls from r.
func (s *OtoSink) Start(ctx context.Context, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.player != nil {
		return nil
	}

	octx, err := sharedOtoContext(s.cfg)
	if err != nil {
		return fmt.Errorf("oto context: %w", err)
	}
	s.counter = &countingReader{r: r}
	s.player = octx.NewPlayer(s.counter)
	s.player.Play()

	s.logger.Info("oto output started", "sample_rate", s.cfg.SampleRate)
	return nil
}

// Config returns the audio configuration.
func (s *OtoSink) Config() Config { return s.cfg }

// Name returns "oto".
func (s *OtoSink) Name() string { return "oto" }

// Close stops the player. The shared context stays open for later sessions.
func (s *OtoSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.player == nil {
		return nil
	}
	err := s.player.Close()
	s.player = nil
	s.logger.Info("oto output stopped")
	return err
}

// Stats returns output statistics.
func (s *OtoSink) Stats() SinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pulled int64
	if s.counter != nil {
		pulled = s.counter.n.Load()
	}
	return SinkStats{BytesPulled: pulled, Running: s.player != nil, Backend: "oto"}
}

var _ SinkWithStats = (*OtoSink)(nil)
