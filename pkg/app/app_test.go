package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-livehelper/internal/config"
	"github.com/teslashibe/go-livehelper/internal/log"
	"github.com/teslashibe/go-livehelper/pkg/audioio"
	"github.com/teslashibe/go-livehelper/pkg/helper"
	"github.com/teslashibe/go-livehelper/pkg/ident"
	"github.com/teslashibe/go-livehelper/pkg/voice"
)

func mockDevices() voice.Devices {
	return voice.Devices{
		Source: func() (audioio.Source, error) {
			return audioio.NewMockSource(audioio.DefaultCaptureConfig(), log.Discard(), audioio.WithManualFrames()), nil
		},
		Sink: func() (audioio.Sink, error) {
			return audioio.NewMockSink(audioio.DefaultOutputConfig(), log.Discard()), nil
		},
	}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Session.Greeting = false
	cfg.Web.Enabled = true
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config, opts ...Option) (*App, *voice.MockTransport) {
	t.Helper()
	transport := voice.NewMockTransport()
	opts = append([]Option{
		WithTransport(transport),
		WithDevices(mockDevices()),
		WithIDs(ident.NewSequence("id")),
		WithLogger(log.Discard()),
	}, opts...)
	a, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Shutdown)
	return a, transport
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewValidates(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*config.Config)
		want error
	}{
		{"unknown persona", func(c *config.Config) { c.Session.Persona = "nobody" }, helper.ErrUnknownPersona},
		{"unknown focus", func(c *config.Config) { c.Session.Focus = "gardening" }, helper.ErrUnknownFocus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mod(&cfg)
			_, err := New(cfg, WithTransport(voice.NewMockTransport()), WithDevices(mockDevices()), WithLogger(log.Discard()))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("missing key", func(t *testing.T) {
		cfg := testConfig()
		cfg.APIKey = ""
		if _, err := New(cfg, WithLogger(log.Discard())); err == nil {
			t.Error("expected a validation error without an API key")
		}
	})
}

func TestStartUsesPersonaAndFocus(t *testing.T) {
	a, transport := newTestApp(t, testConfig())

	if err := a.Start(context.Background(), "zyrax", "research"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(transport.Configs) != 1 {
		t.Fatalf("connects = %d, want 1", len(transport.Configs))
	}
	cfg := transport.Configs[0]
	if cfg.Voice != "Zephyr" {
		t.Errorf("Voice = %q, want Zephyr", cfg.Voice)
	}
	if !strings.Contains(cfg.SystemInstruction, "NAME: Zyrax-9") {
		t.Errorf("instruction does not name the persona:\n%s", cfg.SystemInstruction)
	}
	if len(cfg.Tools) != 4 {
		t.Errorf("tools = %d, want 4", len(cfg.Tools))
	}

	st := a.Status()
	if st.State != "active" || st.Persona != "zyrax" || st.Focus != "research" || st.SessionID == "" {
		t.Errorf("status = %+v", st)
	}
	if got := a.Web().Status().Persona; got != "zyrax" {
		t.Errorf("dashboard persona = %q", got)
	}

	if err := a.Start(context.Background(), "", ""); !errors.Is(err, voice.ErrSessionActive) {
		t.Errorf("second Start err = %v, want ErrSessionActive", err)
	}
}

func TestStartRejectsUnknownPersona(t *testing.T) {
	a, transport := newTestApp(t, testConfig())

	if err := a.Start(context.Background(), "nobody", ""); !errors.Is(err, helper.ErrUnknownPersona) {
		t.Errorf("err = %v", err)
	}
	if len(transport.Configs) != 0 {
		t.Error("transport should not be dialed for an unknown persona")
	}
	if a.Status().Persona != helper.Personas()[0].ID {
		t.Errorf("persona changed to %q", a.Status().Persona)
	}
}

func TestSwitchKeepsFocus(t *testing.T) {
	a, transport := newTestApp(t, testConfig())
	ctx := context.Background()

	if err := a.Start(ctx, "aria", "jobs"); err != nil {
		t.Fatal(err)
	}
	if err := a.Switch(ctx, "commander-thalos", ""); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if len(transport.Configs) != 2 {
		t.Fatalf("connects = %d, want 2", len(transport.Configs))
	}
	if transport.Configs[1].Voice != "Fenrir" {
		t.Errorf("Voice = %q, want Fenrir", transport.Configs[1].Voice)
	}
	st := a.Status()
	if st.Persona != "commander-thalos" || st.Focus != "jobs" {
		t.Errorf("status = %+v", st)
	}
	if !transport.Conns[0].IsClosed() {
		t.Error("first connection should be closed by Switch")
	}
}

func TestBoardChangesReachTranscript(t *testing.T) {
	a, transport := newTestApp(t, testConfig())

	var mu sync.Mutex
	var lines []string
	a.OnEvent(func(ev Event) {
		if ev.Transcript != nil && ev.Transcript.Speaker == "system" {
			mu.Lock()
			lines = append(lines, ev.Transcript.Text)
			mu.Unlock()
		}
	})

	if err := a.Start(context.Background(), "", ""); err != nil {
		t.Fatal(err)
	}
	conn := transport.Last()
	conn.Deliver(&voice.Message{ToolCalls: []voice.ToolCall{{
		ID:   "c1",
		Name: helper.ToolDelegateTask,
		Args: map[string]any{"title": "Heal the grid", "description": "restore flow"},
	}}})

	select {
	case resp := <-conn.Responses():
		if resp.ID != "c1" || resp.Failed {
			t.Errorf("response = %+v", resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tool response")
	}

	eventually(t, "system transcript line", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(lines) == 1 && strings.Contains(lines[0], "Heal the grid")
	})
	if got := len(a.Board().Snapshot().Jobs); got != 1 {
		t.Errorf("jobs = %d, want 1", got)
	}
	if got := len(a.Web().Transcript()); got != 1 {
		t.Errorf("dashboard transcript = %d lines, want 1", got)
	}
}

func TestHandoverClosesSession(t *testing.T) {
	a, transport := newTestApp(t, testConfig())
	if err := a.Start(context.Background(), "", ""); err != nil {
		t.Fatal(err)
	}
	conn := transport.Last()
	conn.Deliver(&voice.Message{ToolCalls: []voice.ToolCall{{
		ID:   "h1",
		Name: helper.ToolRequestHandover,
		Args: map[string]any{"reason": "shift change"},
	}}})

	eventually(t, "closed state", func() bool {
		return a.Controller().State() == voice.StateClosed
	})
	if len(conn.Sent()) != 1 {
		t.Errorf("responses sent = %d, want 1", len(conn.Sent()))
	}
	if len(a.Board().Snapshot().Handovers) != 1 {
		t.Error("handover should be recorded on the board")
	}
}

func TestGreetingSpokenAfterStart(t *testing.T) {
	cfg := testConfig()
	cfg.Session.Greeting = true
	synth := &voice.MockSynthesizer{Part: voice.AudioPart{MIMEType: "audio/pcm;rate=24000", Data: make([]byte, 480)}}
	a, _ := newTestApp(t, cfg, WithSynthesizer(synth))

	if err := a.Start(context.Background(), "aria", ""); err != nil {
		t.Fatal(err)
	}
	eventually(t, "greeting", func() bool {
		spoken := synth.Spoken()
		return len(spoken) == 1 && spoken[0] == "I am Aria. The light is listening."
	})
}

func TestMutePublishesStatus(t *testing.T) {
	a, _ := newTestApp(t, testConfig())

	var mu sync.Mutex
	var muted []bool
	a.OnEvent(func(ev Event) {
		if ev.Status != nil {
			mu.Lock()
			muted = append(muted, ev.Status.Muted)
			mu.Unlock()
		}
	})

	a.SetMuted(true)
	if !a.Muted() || !a.Web().Status().Muted {
		t.Error("mute should reach the controller and the dashboard")
	}
	a.SetMuted(false)

	mu.Lock()
	defer mu.Unlock()
	if len(muted) != 2 || !muted[0] || muted[1] {
		t.Errorf("mute events = %v", muted)
	}
}

func TestRunAutostart(t *testing.T) {
	cfg := testConfig()
	cfg.Web.Enabled = false
	cfg.Session.Autostart = true
	a, transport := newTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	eventually(t, "autostarted session", func() bool {
		return a.Controller().State() == voice.StateActive
	})
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if len(transport.Configs) != 1 {
		t.Errorf("connects = %d, want 1", len(transport.Configs))
	}
}
