package voice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-livehelper/pkg/audioio"
	"github.com/teslashibe/go-livehelper/pkg/playback"
)

// audioItem is one entry on the audio lane: a chunk to schedule or a
// barge-in. Both travel the same lane so they stay ordered.
type audioItem struct {
	part      AudioPart
	interrupt bool
}

// session owns the resources of one connection. Resources attached after
// teardown has started are released immediately.
type session struct {
	id      string
	cfg     SessionConfig
	opts    Options
	logger  *slog.Logger
	metrics *Metrics

	// ctx is cancelled at teardown; tool handlers and capture run under it.
	ctx    context.Context
	cancel context.CancelFunc

	encoder *FrameEncoder
	relay   *TranscriptRelay
	audio   *lane[audioItem]

	// chunkSeq counts audio chunks; only the audio lane touches it.
	chunkSeq uint64

	mu     sync.Mutex
	closed bool
	sched  *playback.Scheduler
	src    audioio.Source
	conn   Conn

	active       atomic.Bool
	teardownOnce sync.Once
	done         chan struct{}
}

func newSession(parent context.Context, id string, cfg SessionConfig, opts Options, muted func() bool) *session {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	s := &session{
		id:      id,
		cfg:     cfg,
		opts:    opts,
		logger:  opts.Logger.With("session_id", id),
		metrics: newMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.encoder = NewFrameEncoder(InputSampleRate, opts.OutboundQueue, s.metrics)
	s.encoder.muted = muted
	s.relay = NewTranscriptRelay(id, opts.Callbacks.transcript, s.metrics)
	s.audio = newLane(s.playAudio)
	return s
}

// acquireOutput opens the playback device and its scheduler.
func (s *session) acquireOutput(ctx context.Context) error {
	if s.opts.Devices.Sink == nil {
		return &AcquisitionError{Resource: "output", Cause: errors.New("no output device configured")}
	}
	sink, err := s.opts.Devices.Sink()
	if err != nil {
		return &AcquisitionError{Resource: "output", Cause: err}
	}
	dev, err := playback.Open(ctx, sink, playback.NewTimeline(s.opts.OutputSampleRate))
	if err != nil {
		return &AcquisitionError{Resource: "output", Cause: err}
	}
	sched := playback.NewScheduler(dev, playback.Options{
		Logger:     s.logger,
		OnActivity: s.opts.Callbacks.vocalizing,
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sched.Shutdown()
		return ErrConnectionClosed
	}
	s.sched = sched
	s.mu.Unlock()
	return nil
}

// acquireCapture opens and starts the microphone. Frames are dropped by
// the encoder until the session is Active.
func (s *session) acquireCapture() error {
	if s.opts.Devices.Source == nil {
		return &AcquisitionError{Resource: "capture", Cause: errors.New("no capture device configured")}
	}
	src, err := s.opts.Devices.Source()
	if err != nil {
		return &AcquisitionError{Resource: "capture", Cause: err}
	}
	if err := src.Start(s.ctx); err != nil {
		src.Close()
		return &AcquisitionError{Resource: "capture", Cause: err}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		src.Close()
		return ErrConnectionClosed
	}
	s.src = src
	s.mu.Unlock()

	go s.pumpCapture(src.Stream())
	return nil
}

func (s *session) connect(ctx context.Context, tr Transport) error {
	conn, err := tr.Connect(ctx, s.cfg)
	if err != nil {
		return &TransportError{Op: "connect", Cause: err}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return ErrConnectionClosed
	}
	s.conn = conn
	s.mu.Unlock()
	return nil
}

// activate opens the encoder and starts the writer and reader goroutines.
// onEnd runs when the reader stops because of the remote side.
func (s *session) activate(onEnd func(err error)) {
	s.active.Store(true)
	s.encoder.Open()
	go s.writeFrames()
	go s.readLoop(onEnd)
}

func (s *session) pumpCapture(frames <-chan audioio.AudioChunk) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case chunk, ok := <-frames:
			if !ok {
				return
			}
			s.encoder.Encode(chunk.Samples)
		}
	}
}

// writeFrames is the single upstream audio writer.
func (s *session) writeFrames() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case f := <-s.encoder.Frames():
			if err := s.conn.SendAudio(f); err != nil {
				s.metrics.framesDropped.Add(1)
				s.logger.Debug("send audio failed", "seq", f.Seq, "error", err)
				continue
			}
			s.metrics.framesSent.Add(1)
		}
	}
}

func (s *session) readLoop(onEnd func(err error)) {
	for {
		msg, err := s.conn.Receive()
		if err != nil {
			onEnd(err)
			return
		}
		s.handle(msg)
	}
}

// handle routes one message. It never blocks on a sink.
func (s *session) handle(msg *Message) {
	for _, call := range msg.ToolCalls {
		s.metrics.toolCalls.Add(1)
		s.logger.Info("tool call", "tool", call.Name, "call_id", call.ID)
		call := call
		s.opts.Dispatcher.Dispatch(s.ctx, call, func(resp ToolResponse, err error) {
			s.respond(call, resp, err)
		})
	}
	for _, id := range msg.ToolCallCancellations {
		s.logger.Debug("tool call cancelled by server", "call_id", id)
	}
	if msg.Interrupted {
		s.audio.push(audioItem{interrupt: true})
	}
	if t := msg.InputTranscription; t != nil {
		s.relay.Forward(SpeakerUser, t.Text, t.Finished)
	}
	if t := msg.OutputTranscription; t != nil {
		s.relay.Forward(SpeakerRemote, t.Text, t.Finished)
	}
	for _, part := range msg.Audio {
		s.audio.push(audioItem{part: part})
	}
	if msg.TurnComplete {
		s.metrics.turns.Add(1)
	}
	if msg.GoAway {
		s.logger.Warn("server going away", "time_left", msg.TimeLeft)
	}
}

// playAudio runs on the audio lane.
func (s *session) playAudio(item audioItem) {
	s.mu.Lock()
	sched := s.sched
	s.mu.Unlock()
	if sched == nil {
		return
	}

	if item.interrupt {
		s.metrics.interrupts.Add(1)
		sched.Interrupt()
		return
	}

	s.chunkSeq++
	err := item.part.Err
	var (
		buf   playback.Buffer
		start playback.Position
	)
	if err == nil {
		buf, start, err = sched.EnqueuePCM(item.part.Data, item.part.MIMEType)
		if errors.Is(err, playback.ErrClosed) {
			return
		}
	}
	if err != nil {
		s.metrics.chunksCorrupt.Add(1)
		derr := &DecodeError{Seq: s.chunkSeq, MIMEType: item.part.MIMEType, Size: len(item.part.Data), Cause: err}
		s.logger.Warn("dropping audio chunk", "error", derr)
		s.opts.Callbacks.error(derr)
		return
	}
	s.metrics.chunksScheduled.Add(1)
	s.opts.Callbacks.audioScheduled(AudioScheduled{Start: start, Frames: buf.Len(), SampleRate: sched.SampleRate()})
}

// respond sends a tool response unless the session has been torn down.
func (s *session) respond(call ToolCall, resp ToolResponse, err error) {
	if err != nil {
		s.metrics.toolFailures.Add(1)
		s.opts.Callbacks.error(err)
	}

	s.mu.Lock()
	closed, conn := s.closed, s.conn
	s.mu.Unlock()
	if closed || conn == nil {
		s.metrics.responsesDropped.Add(1)
		s.logger.Debug("session closed, not sending tool response", "tool", call.Name, "call_id", call.ID)
		return
	}

	if serr := conn.SendToolResponse(resp); serr != nil {
		s.metrics.responsesDropped.Add(1)
		s.logger.Warn("send tool response failed", "tool", call.Name, "call_id", call.ID, "error", serr)
		return
	}
	s.opts.Callbacks.toolResponse(call, resp)
}

// speak synthesizes text and queues it behind any audio already received.
func (s *session) speak(ctx context.Context, synth Synthesizer, text string) error {
	part, err := synth.Synthesize(ctx, text, s.cfg.Voice)
	if err != nil {
		return err
	}
	if !s.active.Load() || !s.audio.push(audioItem{part: part}) {
		return ErrNotConnected
	}
	s.relay.Forward(SpeakerRemote, text, true)
	return nil
}

// teardown releases everything the session owns: capture stops, playback
// is flushed and released, the connection is closed, and pending tool
// handlers are abandoned. It runs once; concurrent callers wait for it.
func (s *session) teardown() {
	s.teardownOnce.Do(func() {
		start := time.Now()
		s.active.Store(false)
		s.encoder.Close()

		s.mu.Lock()
		s.closed = true
		sched, src, conn := s.sched, s.src, s.conn
		s.mu.Unlock()

		s.cancel()
		s.audio.close()
		s.relay.Close()

		var errs []error
		if src != nil {
			errs = append(errs, src.Close())
		}
		if sched != nil {
			errs = append(errs, sched.Shutdown())
		}
		if conn != nil {
			errs = append(errs, conn.Close())
		}
		if err := errors.Join(errs...); err != nil && !errors.Is(err, io.EOF) {
			s.logger.Debug("teardown", "error", err)
		}
		s.metrics.stop()
		s.logger.Info("session torn down", "took", time.Since(start))
		close(s.done)
	})
}

func (s *session) snapshot() MetricsSnapshot {
	snap := s.metrics.Snapshot()
	snap.SessionID = s.id
	return snap
}
