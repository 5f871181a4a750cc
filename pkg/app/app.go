// Package app wires configuration, audio devices, the session controller,
// the helper board and the dashboard into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-livehelper/internal/config"
	"github.com/teslashibe/go-livehelper/internal/httpc"
	"github.com/teslashibe/go-livehelper/pkg/audioio"
	"github.com/teslashibe/go-livehelper/pkg/helper"
	"github.com/teslashibe/go-livehelper/pkg/ident"
	"github.com/teslashibe/go-livehelper/pkg/voice"
	"github.com/teslashibe/go-livehelper/pkg/voice/bundled"
	"github.com/teslashibe/go-livehelper/pkg/web"
)

const greetingTimeout = 15 * time.Second

// Event is pushed to listeners whenever status or transcript changes.
// Exactly one field is set.
type Event struct {
	Status     *web.Status
	Transcript *web.TranscriptLine
}

// Option customizes an App, mainly for tests.
type Option func(*App)

// WithTransport replaces the configured transport.
func WithTransport(t voice.Transport) Option {
	return func(a *App) { a.transport = t }
}

// WithDevices replaces the audio device factories.
func WithDevices(d voice.Devices) Option {
	return func(a *App) { a.devices = &d }
}

// WithSynthesizer sets the greeting synthesizer.
func WithSynthesizer(s voice.Synthesizer) Option {
	return func(a *App) { a.synth = s }
}

// WithIDs sets the id generator used for sessions and board records.
func WithIDs(g ident.Generator) Option {
	return func(a *App) { a.ids = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// App is the LiveHelper host.
type App struct {
	cfg    config.Config
	logger *slog.Logger
	ids    ident.Generator

	transport voice.Transport
	devices   *voice.Devices
	synth     voice.Synthesizer

	board      *helper.Board
	dispatcher *voice.Dispatcher
	ctrl       *voice.Controller
	web        *web.Server

	mu        sync.Mutex
	persona   helper.Persona
	focus     helper.Focus
	listeners []func(Event)

	vocalizing atomic.Bool
}

// New validates cfg and builds the App. Nothing is opened until Run or
// Start.
func New(cfg config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, logger: slog.Default(), ids: ident.UUID{}}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "app")

	if a.transport == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	persona, err := helper.LookupPersona(cfg.Session.Persona)
	if err != nil {
		return nil, err
	}
	focus, err := helper.ParseFocus(cfg.Session.Focus)
	if err != nil {
		return nil, err
	}
	a.persona, a.focus = persona, focus

	if err := a.init(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) init() error {
	if a.transport == nil {
		t, err := voice.NewTransport(a.cfg.Session.Transport, voice.TransportConfig{
			APIKey:     a.cfg.APIKey,
			Endpoint:   a.cfg.Session.Endpoint,
			UseADC:     a.cfg.Session.UseADC,
			HTTPClient: httpc.Client,
			Logger:     a.logger,
		})
		if err != nil {
			return fmt.Errorf("transport: %w", err)
		}
		a.transport = t
	}
	if a.devices == nil {
		d := a.audioDevices()
		a.devices = &d
	}
	if a.synth == nil && a.cfg.Session.Greeting && a.cfg.APIKey != "" {
		s, err := bundled.NewGenAISynthesizer(voice.TransportConfig{APIKey: a.cfg.APIKey, HTTPClient: httpc.Client}, a.cfg.Session.TTSModel)
		if err != nil {
			a.logger.Warn("greeting disabled", "error", err)
		} else {
			a.synth = s
		}
	}

	a.board = helper.NewBoard(helper.WithIDs(a.ids), helper.WithNotifier(a.systemLine))
	a.dispatcher = voice.NewDispatcher(a.logger)
	for _, t := range a.board.Tools() {
		a.dispatcher.Register(t)
	}

	a.ctrl = voice.NewController(voice.Options{
		Transport:        a.transport,
		Dispatcher:       a.dispatcher,
		Devices:          *a.devices,
		Synthesizer:      a.synth,
		IDs:              a.ids,
		Logger:           a.logger,
		OutputSampleRate: a.cfg.Audio.OutputSampleRate,
		Callbacks: voice.Callbacks{
			OnStateChange:  a.onState,
			OnTranscript:   a.onTranscript,
			OnToolResponse: a.onToolResponse,
			OnVocalizing:   a.onVocalizing,
			OnError:        a.onError,
		},
	})

	if a.cfg.Web.Enabled {
		a.web = web.NewServer(web.Options{
			Port:     a.cfg.Web.Port,
			Sessions: a,
			Board:    a.board,
			Tools:    a.dispatcher.Declarations,
			Logger:   a.logger,
		})
	}
	return nil
}

func (a *App) audioDevices() voice.Devices {
	capture := audioio.DefaultCaptureConfig()
	capture.Backend = audioio.Backend(a.cfg.Audio.Backend)
	capture.SampleRate = a.cfg.Audio.InputSampleRate
	capture.FrameSize = a.cfg.Audio.FrameSize

	output := audioio.DefaultOutputConfig()
	output.Backend = audioio.Backend(a.cfg.Audio.Backend)
	output.SampleRate = a.cfg.Audio.OutputSampleRate
	output.BufferDuration = time.Duration(a.cfg.Audio.OutputBufferMs) * time.Millisecond

	return voice.Devices{
		Source: func() (audioio.Source, error) { return audioio.NewSource(capture, a.logger) },
		Sink:   func() (audioio.Sink, error) { return audioio.NewSink(output, a.logger) },
	}
}

// Run serves the dashboard, optionally starts a session, and blocks until
// ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	if a.web != nil {
		go func() { errc <- a.web.Run(ctx) }()
	}
	a.publishStatus()

	if a.cfg.Session.Autostart {
		if err := a.Start(ctx, "", ""); err != nil {
			a.logger.Error("autostart failed", "error", err)
		}
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("web: %w", err)
		}
		<-ctx.Done()
		return nil
	}
}

// Shutdown stops any live session.
func (a *App) Shutdown() {
	if err := a.ctrl.Stop(); err != nil {
		a.logger.Warn("stop session", "error", err)
	}
	a.logger.Info("shutdown complete")
}

// Controller exposes the session controller.
func (a *App) Controller() *voice.Controller { return a.ctrl }

// Board exposes the helper board.
func (a *App) Board() *helper.Board { return a.board }

// Web returns the dashboard server, or nil when disabled.
func (a *App) Web() *web.Server { return a.web }

// OnEvent registers a listener for status and transcript events.
func (a *App) OnEvent(fn func(Event)) {
	a.mu.Lock()
	a.listeners = append(a.listeners, fn)
	a.mu.Unlock()
}

// resolve picks a persona and focus; empty strings keep the current ones.
func (a *App) resolve(personaID, focusName string) (helper.Persona, helper.Focus, error) {
	a.mu.Lock()
	p, f := a.persona, a.focus
	a.mu.Unlock()

	if personaID != "" {
		var err error
		if p, err = helper.LookupPersona(personaID); err != nil {
			return p, f, err
		}
	}
	if focusName != "" {
		var err error
		if f, err = helper.ParseFocus(focusName); err != nil {
			return p, f, err
		}
	}
	return p, f, nil
}

func (a *App) sessionConfig(p helper.Persona, f helper.Focus) voice.SessionConfig {
	return voice.SessionConfig{
		Model:               a.cfg.Session.Model,
		Voice:               p.Voice,
		SystemInstruction:   helper.Instruction(p, f),
		InputTranscription:  a.cfg.Session.InputTranscription,
		OutputTranscription: a.cfg.Session.OutputTranscription,
	}
}

// Start opens a session with the given persona and focus. It is only ever
// called on an explicit request.
func (a *App) Start(ctx context.Context, personaID, focusName string) error {
	return a.open(ctx, personaID, focusName, a.ctrl.Start)
}

// Switch replaces the live session, if any, with a new one.
func (a *App) Switch(ctx context.Context, personaID, focusName string) error {
	return a.open(ctx, personaID, focusName, a.ctrl.Switch)
}

func (a *App) open(ctx context.Context, personaID, focusName string, fn func(context.Context, voice.SessionConfig) error) error {
	p, f, err := a.resolve(personaID, focusName)
	if err != nil {
		return err
	}
	if err := fn(ctx, a.sessionConfig(p, f)); err != nil {
		return err
	}

	a.mu.Lock()
	a.persona, a.focus = p, f
	a.mu.Unlock()
	a.publishStatus()

	if a.synth != nil && a.cfg.Session.Greeting && p.Greeting != "" {
		go a.greet(p.Greeting)
	}
	return nil
}

func (a *App) greet(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), greetingTimeout)
	defer cancel()
	if err := a.ctrl.Speak(ctx, text); err != nil && !errors.Is(err, voice.ErrNotConnected) {
		a.logger.Warn("greeting failed", "error", err)
	}
}

// Stop ends the live session.
func (a *App) Stop() error {
	return a.ctrl.Stop()
}

// SetMuted mutes or unmutes the microphone.
func (a *App) SetMuted(muted bool) {
	a.ctrl.SetMuted(muted)
	a.publishStatus()
}

// Muted reports whether the microphone is muted.
func (a *App) Muted() bool { return a.ctrl.Muted() }

// Status returns the current host status.
func (a *App) Status() web.Status {
	a.mu.Lock()
	p, f := a.persona, a.focus
	a.mu.Unlock()

	st := web.Status{
		State:      a.ctrl.State().String(),
		SessionID:  a.ctrl.SessionID(),
		Persona:    p.ID,
		Focus:      string(f),
		Muted:      a.ctrl.Muted(),
		Vocalizing: a.vocalizing.Load(),
		Metrics:    a.ctrl.Metrics(),
	}
	if err := a.ctrl.Err(); err != nil && a.ctrl.State() == voice.StateError {
		st.Error = err.Error()
	}
	return st
}

func (a *App) emit(ev Event) {
	a.mu.Lock()
	ls := make([]func(Event), len(a.listeners))
	copy(ls, a.listeners)
	a.mu.Unlock()
	for _, fn := range ls {
		fn(ev)
	}
}

func (a *App) publishStatus() {
	st := a.Status()
	if a.web != nil {
		a.web.UpdateStatus(func(s *web.Status) { *s = st })
	}
	a.emit(Event{Status: &st})
}

func (a *App) publishLine(line web.TranscriptLine) {
	if a.web != nil {
		a.web.AddTranscript(line)
	}
	a.emit(Event{Transcript: &line})
}

// systemLine records a board change in the transcript.
func (a *App) systemLine(text string) {
	a.publishLine(web.TranscriptLine{Time: time.Now(), Speaker: "system", Text: text, Finished: true})
}

func (a *App) onState(state voice.State, err error) {
	if state == voice.StateClosed || state == voice.StateError {
		a.vocalizing.Store(false)
	}
	a.publishStatus()
}

func (a *App) onTranscript(ev voice.TranscriptEvent) {
	a.publishLine(web.TranscriptLine{Time: ev.Time, Speaker: string(ev.Speaker), Text: ev.Text, Finished: ev.Finished})
}

// onToolResponse closes the session once a handover has been answered.
func (a *App) onToolResponse(call voice.ToolCall, resp voice.ToolResponse) {
	if call.Name != helper.ToolRequestHandover || resp.Failed {
		return
	}
	a.logger.Info("handover requested, closing session", "call_id", call.ID)
	go func() {
		if err := a.ctrl.Stop(); err != nil {
			a.logger.Warn("handover stop", "error", err)
		}
	}()
}

func (a *App) onVocalizing(speaking bool) {
	a.vocalizing.Store(speaking)
	a.publishStatus()
}

func (a *App) onError(err error) {
	a.logger.Warn("session error", "error", err, "fatal", voice.IsFatal(err))
}

var _ web.Sessions = (*App)(nil)
