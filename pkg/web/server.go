// Package web serves the LiveHelper dashboard API: session control, the
// board, and live status and transcript streams over websockets.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-livehelper/pkg/helper"
	"github.com/teslashibe/go-livehelper/pkg/hub"
	"github.com/teslashibe/go-livehelper/pkg/voice"
)

const maxTranscript = 500

// Sessions is the session control surface the dashboard drives.
type Sessions interface {
	Start(ctx context.Context, persona, focus string) error
	Switch(ctx context.Context, persona, focus string) error
	Stop() error
	SetMuted(muted bool)
}

// Status is the dashboard view of the host.
type Status struct {
	State      string                `json:"state"`
	SessionID  string                `json:"session_id,omitempty"`
	Persona    string                `json:"persona"`
	Focus      string                `json:"focus"`
	Muted      bool                  `json:"muted"`
	Vocalizing bool                  `json:"vocalizing"`
	Error      string                `json:"error,omitempty"`
	Metrics    voice.MetricsSnapshot `json:"metrics"`
}

// TranscriptLine is one transcript entry. Speaker is "user", "remote" or
// "system".
type TranscriptLine struct {
	Time     time.Time `json:"time"`
	Speaker  string    `json:"speaker"`
	Text     string    `json:"text"`
	Finished bool      `json:"finished"`
}

// Options configures a Server.
type Options struct {
	Port      int
	StaticDir string
	Sessions  Sessions
	Board     *helper.Board
	Tools     func() []voice.ToolDeclaration
	Logger    *slog.Logger
}

// Server is the dashboard server.
type Server struct {
	app    *fiber.App
	opts   Options
	logger *slog.Logger

	stateMu sync.RWMutex
	state   Status

	transcriptMu sync.RWMutex
	transcript   []TranscriptLine

	statusHub     *hub.Hub
	transcriptHub *hub.Hub
}

// NewServer creates the server and its routes.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Board == nil {
		opts.Board = helper.NewBoard()
	}
	if opts.Tools == nil {
		opts.Tools = func() []voice.ToolDeclaration { return nil }
	}
	s := &Server{
		opts:          opts,
		logger:        opts.Logger.With("component", "web"),
		state:         Status{State: voice.StateIdle.String()},
		transcript:    make([]TranscriptLine, 0, 64),
		statusHub:     hub.New("status", opts.Logger),
		transcriptHub: hub.New("transcript", opts.Logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "LiveHelper",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(cors.New())
	if opts.StaticDir != "" {
		app.Static("/", opts.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/personas", s.handlePersonas)
	api.Post("/session/start", s.handleStart)
	api.Post("/session/switch", s.handleSwitch)
	api.Post("/session/stop", s.handleStop)
	api.Post("/session/mute", s.handleMute)
	api.Get("/transcript", s.handleTranscript)
	api.Get("/board", s.handleBoard)
	api.Post("/board/jobs/:id/complete", s.handleCompleteJob)
	api.Get("/tools", s.handleTools)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/transcript", websocket.New(s.handleTranscriptWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Run starts the hubs and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.transcriptHub.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "url", fmt.Sprintf("http://localhost:%d", s.opts.Port))
		errc <- s.app.Listen(fmt.Sprintf(":%d", s.opts.Port))
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return s.app.ShutdownWithTimeout(5 * time.Second)
	}
}

// UpdateStatus applies update and pushes the result to status clients.
func (s *Server) UpdateStatus(update func(*Status)) {
	s.stateMu.Lock()
	update(&s.state)
	st := s.state
	s.stateMu.Unlock()

	if err := s.statusHub.BroadcastJSON(st); err != nil {
		s.logger.Warn("encode status", "error", err)
	}
}

// Status returns the current status.
func (s *Server) Status() Status {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// AddTranscript appends a line, keeping the last 500, and pushes it to
// transcript clients.
func (s *Server) AddTranscript(line TranscriptLine) {
	if line.Time.IsZero() {
		line.Time = time.Now()
	}
	s.transcriptMu.Lock()
	s.transcript = append(s.transcript, line)
	if len(s.transcript) > maxTranscript {
		s.transcript = s.transcript[len(s.transcript)-maxTranscript:]
	}
	s.transcriptMu.Unlock()

	if err := s.transcriptHub.BroadcastJSON(line); err != nil {
		s.logger.Warn("encode transcript", "error", err)
	}
}

// Transcript returns a copy of the buffered lines.
func (s *Server) Transcript() []TranscriptLine {
	s.transcriptMu.RLock()
	defer s.transcriptMu.RUnlock()
	return append([]TranscriptLine(nil), s.transcript...)
}
