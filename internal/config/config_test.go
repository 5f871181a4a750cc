package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	cfg.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with key should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Config)
		field string
	}{
		{"missing key", func(c *Config) { c.APIKey = "" }, "APIKey"},
		{"adc without key", func(c *Config) { c.APIKey = ""; c.Session.UseADC = true }, ""},
		{"genai needs key", func(c *Config) { c.APIKey = ""; c.Session.UseADC = true; c.Session.Transport = "genai" }, "APIKey"},
		{"bad transport", func(c *Config) { c.Session.Transport = "carrier-pigeon" }, "Session.Transport"},
		{"no model", func(c *Config) { c.Session.Model = "" }, "Session.Model"},
		{"zero rate", func(c *Config) { c.Audio.OutputSampleRate = 0 }, "Audio"},
		{"zero frame", func(c *Config) { c.Audio.FrameSize = 0 }, "Audio.FrameSize"},
		{"bad port", func(c *Config) { c.Web.Port = 70000 }, "Web.Port"},
		{"web disabled ignores port", func(c *Config) { c.Web.Enabled = false; c.Web.Port = 0 }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.APIKey = "k"
			tt.mod(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ce *Error
			if !errors.As(err, &ce) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "livehelper.yaml")
	yml := []byte(`
session:
  transport: genai
  persona: zyrax
  focus: research
audio:
  frame_size: 2048
web:
  port: 9000
`)
	if err := os.WriteFile(path, yml, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Chdir(dir)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "from-env")
	t.Setenv("LIVEHELPER_WEB_PORT", "9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.Transport != "genai" {
		t.Errorf("Transport = %q", cfg.Session.Transport)
	}
	if cfg.Session.Persona != "zyrax" || cfg.Session.Focus != "research" {
		t.Errorf("persona/focus = %q/%q", cfg.Session.Persona, cfg.Session.Focus)
	}
	if cfg.Audio.FrameSize != 2048 {
		t.Errorf("FrameSize = %d", cfg.Audio.FrameSize)
	}
	// untouched defaults survive
	if cfg.Audio.OutputSampleRate != 24000 {
		t.Errorf("OutputSampleRate = %d", cfg.Audio.OutputSampleRate)
	}
	if cfg.Web.Port != 9100 {
		t.Errorf("env should override port, got %d", cfg.Web.Port)
	}
	if cfg.APIKey != "from-env" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.Path != path {
		t.Errorf("Path = %q", cfg.Path)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, "test.env")
	if err := os.WriteFile(env, []byte("LIVEHELPER_DOTENV_PROBE=yes\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LIVEHELPER_DOTENV_PROBE", "")
	os.Unsetenv("LIVEHELPER_DOTENV_PROBE")

	if err := LoadDotEnv(env, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("LIVEHELPER_DOTENV_PROBE"); got != "yes" {
		t.Errorf("probe = %q, want yes", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
