// Command voice-probe measures round-trip latency of a live voice transport.
// It opens one session, streams speech-like audio, and times the first audio
// reply of each turn.
//
// Usage:
//
//	go run ./cmd/voice-probe --transport gemini --loops 3
//	go run ./cmd/voice-probe --transport genai --duration 3s
//
// GOOGLE_API_KEY or GEMINI_API_KEY must be set (or session.use_adc for gemini).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-livehelper/internal/config"
	"github.com/teslashibe/go-livehelper/internal/httpc"
	"github.com/teslashibe/go-livehelper/internal/log"
	"github.com/teslashibe/go-livehelper/pkg/voice"
	_ "github.com/teslashibe/go-livehelper/pkg/voice/bundled"
)

func main() {
	path := flag.String("config", "", "Path to a YAML config file")
	transport := flag.String("transport", "", "Transport: gemini or genai")
	loops := flag.Int("loops", 3, "Number of turns to measure")
	duration := flag.Duration("duration", 2*time.Second, "Audio streamed per turn")
	prompt := flag.String("prompt", "When you receive any audio, answer with one short greeting.", "System instruction")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	if *transport != "" {
		cfg.Session.Transport = *transport
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("❌ Config error: %v\n", err)
		os.Exit(1)
	}
	log.Init(log.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})

	t, err := voice.NewTransport(cfg.Session.Transport, voice.TransportConfig{
		APIKey:     cfg.APIKey,
		Endpoint:   cfg.Session.Endpoint,
		UseADC:     cfg.Session.UseADC,
		HTTPClient: httpc.Client,
		Logger:     log.L(),
	})
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Println("🎤 Voice Transport Probe")
	fmt.Println("========================")
	fmt.Printf("Transport: %s  Model: %s  Loops: %d  Audio: %s\n\n", t.Name(), cfg.Session.Model, *loops, *duration)

	session := voice.SessionConfig{Model: cfg.Session.Model, Voice: "Kore", SystemInstruction: *prompt}

	fmt.Println("🔌 Connecting...")
	start := time.Now()
	conn, err := t.Connect(ctx, session)
	if err != nil {
		fmt.Printf("❌ Connect failed: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Printf("✅ Setup acknowledged in %s\n\n", formatDuration(time.Since(start)))

	p := newProbe(conn, voice.InputSampleRate)
	results := p.run(ctx, *loops, *duration)
	printResults(t.Name(), results)
}
