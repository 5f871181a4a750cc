package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Controller runs at most one session at a time and drives the session
// state machine.
type Controller struct {
	opts   Options
	logger *slog.Logger
	muted  atomic.Bool

	// switchMu serializes Switch calls.
	switchMu sync.Mutex

	mu      sync.Mutex
	state   State
	lastErr error
	sess    *session
}

// NewController creates a controller in the Idle state.
func NewController(opts Options) *Controller {
	opts = opts.withDefaults()
	return &Controller{opts: opts, logger: opts.Logger}
}

// Dispatcher returns the tool registry.
func (c *Controller) Dispatcher() *Dispatcher { return c.opts.Dispatcher }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that put the controller in the Error state.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// SessionID returns the current session id, or "" when none is live.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || !c.state.Busy() {
		return ""
	}
	return c.sess.id
}

// Config returns the configuration of the live session.
func (c *Controller) Config() (SessionConfig, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || !c.state.Busy() {
		return SessionConfig{}, false
	}
	return c.sess.cfg, true
}

// Metrics returns the counters of the live session, or of the last one.
func (c *Controller) Metrics() MetricsSnapshot {
	c.mu.Lock()
	s := c.sess
	c.mu.Unlock()
	if s == nil {
		return MetricsSnapshot{}
	}
	return s.snapshot()
}

// SetMuted drops captured frames while muted. It persists across sessions.
func (c *Controller) SetMuted(muted bool) {
	c.muted.Store(muted)
	c.logger.Info("microphone", "muted", muted)
}

// Muted reports whether capture is muted.
func (c *Controller) Muted() bool { return c.muted.Load() }

// transition moves s's state to to if s is the current session and the
// move is legal. It reports whether the move happened.
func (c *Controller) transition(s *session, to State, err error) bool {
	c.mu.Lock()
	if c.sess != s || !canTransition(c.state, to) {
		c.mu.Unlock()
		return false
	}
	from := c.state
	c.state = to
	if to == StateError {
		c.lastErr = err
	}
	c.mu.Unlock()

	c.logger.Info("session state", "session_id", s.id, "from", from, "to", to)
	c.opts.Callbacks.stateChange(to, err)
	return true
}

// Start opens a new session. It fails with ErrSessionActive while another
// session is Connecting, Active or Closing, without side effects. On
// failure the session ends in the Error state with all partially acquired
// resources released.
func (c *Controller) Start(ctx context.Context, cfg SessionConfig) error {
	if len(cfg.Tools) == 0 {
		cfg.Tools = c.opts.Dispatcher.Declarations()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if c.opts.Transport == nil {
		return &TransportError{Op: "connect", Cause: errors.New("no transport configured")}
	}

	c.mu.Lock()
	if c.state.Busy() {
		c.mu.Unlock()
		return ErrSessionActive
	}
	s := newSession(ctx, c.opts.IDs.NewID(), cfg, c.opts, c.muted.Load)
	prev := c.state
	c.sess = s
	c.state = StateConnecting
	c.lastErr = nil
	c.mu.Unlock()

	c.logger.Info("session state", "session_id", s.id, "from", prev, "to", StateConnecting,
		"transport", c.opts.Transport.Name(), "voice", cfg.Voice, "tools", len(cfg.Tools))
	c.opts.Callbacks.stateChange(StateConnecting, nil)

	// Stop during Connecting cancels s.ctx, which aborts the dial.
	connectCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	unlink := context.AfterFunc(s.ctx, cancel)
	defer unlink()

	if err := c.acquire(connectCtx, s); err != nil {
		if errors.Is(err, ErrConnectionClosed) || s.ctx.Err() != nil {
			return fmt.Errorf("voice: session stopped while connecting: %w", ErrConnectionClosed)
		}
		// Resources go first so Error is never observed with devices open.
		s.teardown()
		c.logger.Error("session start failed", "session_id", s.id, "error", err)
		if c.transition(s, StateError, err) {
			c.opts.Callbacks.error(err)
		}
		return err
	}

	if !c.transition(s, StateActive, nil) {
		s.teardown()
		return fmt.Errorf("voice: session stopped while connecting: %w", ErrConnectionClosed)
	}
	s.activate(func(err error) { c.remoteEnded(s, err) })
	return nil
}

func (c *Controller) acquire(ctx context.Context, s *session) error {
	if err := s.acquireOutput(ctx); err != nil {
		return err
	}
	if err := s.acquireCapture(); err != nil {
		return err
	}
	return s.connect(ctx, c.opts.Transport)
}

// remoteEnded handles the reader stopping. A clean close ends in Closed,
// anything else in Error, published only after teardown has finished. It
// is a no-op when Stop is already closing the session.
func (c *Controller) remoteEnded(s *session, err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, ErrConnectionClosed) {
		if !c.transition(s, StateClosing, nil) {
			return
		}
		c.logger.Info("remote closed session", "session_id", s.id)
		s.teardown()
		c.transition(s, StateClosed, nil)
		return
	}

	terr := &TransportError{Op: "receive", Cause: err}
	s.teardown()
	if !c.transition(s, StateError, terr) {
		return
	}
	c.logger.Error("session transport failed", "session_id", s.id, "error", err)
	c.opts.Callbacks.error(terr)
}

// Stop ends the current session. It is idempotent and safe from any state;
// it returns after the session's resources are released.
func (c *Controller) Stop() error {
	c.mu.Lock()
	s := c.sess
	c.mu.Unlock()
	if s == nil {
		return nil
	}

	if c.transition(s, StateClosing, nil) {
		s.teardown()
		c.transition(s, StateClosed, nil)
		return nil
	}
	// Closing, Closed or Error: wait for any teardown in flight.
	if c.State() == StateClosing {
		<-s.done
	}
	return nil
}

// Switch closes the current session, if any, and starts a new one with
// cfg. Concurrent Switch calls are serialized.
func (c *Controller) Switch(ctx context.Context, cfg SessionConfig) error {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	if err := c.Stop(); err != nil {
		return err
	}
	return c.Start(ctx, cfg)
}

// Speak synthesizes text in the session's voice and plays it after any
// audio already queued. It requires an Active session.
func (c *Controller) Speak(ctx context.Context, text string) error {
	if c.opts.Synthesizer == nil {
		return ErrNoSynthesizer
	}
	c.mu.Lock()
	s, state := c.sess, c.state
	c.mu.Unlock()
	if s == nil || state != StateActive {
		return ErrNotConnected
	}
	return s.speak(ctx, c.opts.Synthesizer, text)
}
