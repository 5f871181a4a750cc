// LiveHelper - realtime voice sessions with a Gemini Live helper persona.
// Streams the microphone upstream, plays the model's voice, and runs the
// helper tools it calls.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-livehelper/internal/config"
	"github.com/teslashibe/go-livehelper/internal/log"
	"github.com/teslashibe/go-livehelper/internal/ui"
	"github.com/teslashibe/go-livehelper/pkg/app"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, logFile, err := parseFlags()
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if cfg.UI {
		// The dashboard owns the terminal.
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		out = f
	}
	log.Init(log.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: out})

	a, err := app.New(cfg, app.WithLogger(log.L()))
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	defer a.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !cfg.UI {
		log.Info("livehelper starting", "transport", cfg.Session.Transport, "model", cfg.Session.Model, "web", cfg.Web.Enabled, "port", cfg.Web.Port)
		return a.Run(ctx)
	}

	prog := ui.NewProgram(a)
	a.OnEvent(func(ev app.Event) {
		switch {
		case ev.Status != nil:
			prog.Status(*ev.Status)
		case ev.Transcript != nil:
			prog.Transcript(*ev.Transcript)
		}
	})

	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	go func() {
		<-ctx.Done()
		prog.Quit()
	}()
	if err := prog.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	cancel()
	return <-errc
}

// parseFlags loads the config file and applies command line overrides.
func parseFlags() (config.Config, string, error) {
	path := flag.String("config", "", "Path to a YAML config file")
	level := flag.String("log-level", "", "Log level: debug, info, warn, error")
	logFile := flag.String("log-file", "livehelper.log", "Log destination while the dashboard is shown")
	persona := flag.String("persona", "", "Starting persona id (aria, commander-thalos, zyrax)")
	focus := flag.String("focus", "", "Starting focus: general, jobs, research")
	transport := flag.String("transport", "", "Transport: gemini or genai")
	autostart := flag.Bool("autostart", false, "Open a session immediately")
	showUI := flag.Bool("ui", false, "Show the terminal dashboard")
	noWeb := flag.Bool("no-web", false, "Disable the web dashboard")
	port := flag.Int("port", 0, "Web dashboard port")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		return cfg, "", err
	}

	if *level != "" {
		cfg.Log.Level = *level
	}
	if *persona != "" {
		cfg.Session.Persona = *persona
	}
	if *focus != "" {
		cfg.Session.Focus = *focus
	}
	if *transport != "" {
		cfg.Session.Transport = *transport
	}
	if *port != 0 {
		cfg.Web.Port = *port
	}
	cfg.Session.Autostart = cfg.Session.Autostart || *autostart
	cfg.UI = cfg.UI || *showUI
	cfg.Web.Enabled = cfg.Web.Enabled && !*noWeb
	return cfg, *logFile, nil
}
