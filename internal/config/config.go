// Package config loads go-livehelper configuration from a YAML file,
// an optional .env file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultModel     = "gemini-2.5-flash-native-audio-preview-12-2025"
	DefaultTTSModel  = "gemini-2.5-flash-preview-tts"
	DefaultTransport = "gemini"
	DefaultPersona   = "aria"
	DefaultFocus     = "general"
	DefaultWebPort   = 8181
)

// Config is the full application configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Session SessionConfig `yaml:"session"`
	Audio   AudioConfig   `yaml:"audio"`
	Web     WebConfig     `yaml:"web"`

	// UI enables the terminal dashboard.
	UI bool `yaml:"ui"`

	// APIKey is never read from the YAML file.
	APIKey string `yaml:"-"`

	// Path is the file the config was loaded from, if any.
	Path string `yaml:"-"`
}

// LogConfig configures internal/log.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SessionConfig selects the remote endpoint and the starting persona.
type SessionConfig struct {
	Transport string `yaml:"transport"` // "gemini" or "genai"
	Model     string `yaml:"model"`
	TTSModel  string `yaml:"tts_model"`
	Endpoint  string `yaml:"endpoint"` // overrides the gemini websocket URL
	UseADC    bool   `yaml:"use_adc"`  // bearer auth from Application Default Credentials
	Persona   string `yaml:"persona"`
	Focus     string `yaml:"focus"`
	Autostart bool   `yaml:"autostart"`
	Greeting  bool   `yaml:"greeting"`

	InputTranscription  bool `yaml:"input_transcription"`
	OutputTranscription bool `yaml:"output_transcription"`
}

// AudioConfig configures the capture and output devices.
type AudioConfig struct {
	Backend          string `yaml:"backend"` // "auto", "native", "mock"
	InputSampleRate  int    `yaml:"input_sample_rate"`
	OutputSampleRate int    `yaml:"output_sample_rate"`
	FrameSize        int    `yaml:"frame_size"`
	OutputBufferMs   int    `yaml:"output_buffer_ms"`
}

// WebConfig configures the dashboard server.
type WebConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Session: SessionConfig{
			Transport:           DefaultTransport,
			Model:               DefaultModel,
			TTSModel:            DefaultTTSModel,
			Persona:             DefaultPersona,
			Focus:               DefaultFocus,
			Greeting:            true,
			InputTranscription:  true,
			OutputTranscription: true,
		},
		Audio: AudioConfig{
			Backend:          "auto",
			InputSampleRate:  16000,
			OutputSampleRate: 24000,
			FrameSize:        4096,
			OutputBufferMs:   100,
		},
		Web: WebConfig{Enabled: true, Port: DefaultWebPort},
	}
}

// Load reads path on top of the defaults, then applies .env and environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.Path = path
	}
	if err := LoadDotEnv(); err != nil {
		return cfg, err
	}
	cfg.LoadEnv()
	return cfg, nil
}

// LoadDotEnv loads the given .env files (default ".env") into the process
// environment. Missing files are ignored; existing variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadEnv applies environment variable overrides.
func (c *Config) LoadEnv() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.APIKey = key
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.APIKey = key
	}
	if v := os.Getenv("LIVEHELPER_TRANSPORT"); v != "" {
		c.Session.Transport = v
	}
	if v := os.Getenv("LIVEHELPER_MODEL"); v != "" {
		c.Session.Model = v
	}
	if v := os.Getenv("LIVEHELPER_PERSONA"); v != "" {
		c.Session.Persona = v
	}
	if v := os.Getenv("LIVEHELPER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LIVEHELPER_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Web.Port = port
		}
	}
}

// Validate checks that required configuration is present and sane.
func (c *Config) Validate() error {
	if c.APIKey == "" && !c.Session.UseADC {
		return &Error{Field: "APIKey", Message: "GOOGLE_API_KEY or GEMINI_API_KEY is required (or set session.use_adc)"}
	}
	switch c.Session.Transport {
	case "gemini", "genai":
	default:
		return &Error{Field: "Session.Transport", Message: fmt.Sprintf("unknown transport %q", c.Session.Transport)}
	}
	if c.Session.Transport == "genai" && c.APIKey == "" {
		return &Error{Field: "APIKey", Message: "the genai transport requires an API key"}
	}
	if c.Session.Model == "" {
		return &Error{Field: "Session.Model", Message: "model is required"}
	}
	if c.Audio.InputSampleRate <= 0 || c.Audio.OutputSampleRate <= 0 {
		return &Error{Field: "Audio", Message: "sample rates must be positive"}
	}
	if c.Audio.FrameSize <= 0 {
		return &Error{Field: "Audio.FrameSize", Message: "frame size must be positive"}
	}
	if c.Web.Enabled && (c.Web.Port <= 0 || c.Web.Port > 65535) {
		return &Error{Field: "Web.Port", Message: fmt.Sprintf("invalid port %d", c.Web.Port)}
	}
	return nil
}

// Error represents a configuration validation error.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
