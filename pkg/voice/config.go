package voice

import (
	"errors"
	"log/slog"

	"github.com/teslashibe/go-livehelper/pkg/audioio"
	"github.com/teslashibe/go-livehelper/pkg/ident"
)

// Audio formats used on the wire.
const (
	InputSampleRate  = audioio.InputSampleRate
	OutputSampleRate = audioio.OutputSampleRate
	InputMIMEType    = "audio/pcm;rate=16000"

	DefaultOutboundQueue = 32
)

// SessionConfig is everything sent when a session opens.
type SessionConfig struct {
	// Model is the remote model id.
	Model string `json:"model"`

	// Voice is the prebuilt voice name (e.g. "Kore").
	Voice string `json:"voice"`

	// SystemInstruction is the persona and context prompt.
	SystemInstruction string `json:"system_instruction"`

	// Tools is filled from the Dispatcher when empty.
	Tools []ToolDeclaration `json:"tools,omitempty"`

	InputTranscription  bool `json:"input_transcription"`
	OutputTranscription bool `json:"output_transcription"`
}

// Validate checks the session configuration.
func (c *SessionConfig) Validate() error {
	if c.Model == "" {
		return errors.New("voice: model is required")
	}
	seen := make(map[string]bool, len(c.Tools))
	for _, t := range c.Tools {
		if t.Name == "" {
			return errors.New("voice: tool declaration without a name")
		}
		if seen[t.Name] {
			return errors.New("voice: duplicate tool declaration " + t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// WithVoice returns a copy with the voice set.
func (c SessionConfig) WithVoice(voice string) SessionConfig {
	c.Voice = voice
	return c
}

// WithSystemInstruction returns a copy with the instruction set.
func (c SessionConfig) WithSystemInstruction(instruction string) SessionConfig {
	c.SystemInstruction = instruction
	return c
}

// WithTranscription returns a copy with both transcription flags set.
func (c SessionConfig) WithTranscription(input, output bool) SessionConfig {
	c.InputTranscription = input
	c.OutputTranscription = output
	return c
}

// Devices opens the per-session audio devices. Each session gets fresh
// devices and releases them at teardown.
type Devices struct {
	Source func() (audioio.Source, error)
	Sink   func() (audioio.Sink, error)
}

// Options configures a Controller.
type Options struct {
	Transport  Transport
	Dispatcher *Dispatcher
	Devices    Devices
	Callbacks  Callbacks

	// Synthesizer enables Speak. Optional.
	Synthesizer Synthesizer

	// IDs names sessions. Defaults to random UUIDs.
	IDs ident.Generator

	Logger *slog.Logger

	// OutputSampleRate is the playback timeline rate.
	OutputSampleRate int

	// OutboundQueue bounds frames waiting to be written upstream.
	OutboundQueue int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Dispatcher == nil {
		o.Dispatcher = NewDispatcher(o.Logger)
	}
	if o.IDs == nil {
		o.IDs = ident.UUID{}
	}
	if o.OutputSampleRate <= 0 {
		o.OutputSampleRate = OutputSampleRate
	}
	if o.OutboundQueue <= 0 {
		o.OutboundQueue = DefaultOutboundQueue
	}
	return o
}
