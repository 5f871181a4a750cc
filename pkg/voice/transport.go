package voice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Frame is one outbound PCM16 little-endian mono frame.
type Frame struct {
	Seq        uint64
	Data       []byte
	SampleRate int
}

// MIMEType returns the wire MIME type for the frame.
func (f Frame) MIMEType() string {
	if f.SampleRate == 0 || f.SampleRate == InputSampleRate {
		return InputMIMEType
	}
	return fmt.Sprintf("audio/pcm;rate=%d", f.SampleRate)
}

// AudioPart is one inbound audio payload. Err is set when the transport
// could not decode the payload; the part keeps its place in the message so
// the rest of the message is still delivered.
type AudioPart struct {
	MIMEType string
	Data     []byte
	Err      error
}

// Transcription is a transcript fragment as received.
type Transcription struct {
	Text     string
	Finished bool
}

// Message is one inbound server message. Several fields may be set at once;
// the session handles them in a fixed order: tool calls, interruption,
// input transcription, output transcription, audio.
type Message struct {
	SetupComplete bool
	ToolCalls     []ToolCall

	// ToolCallCancellations lists call ids the server no longer needs.
	// Responses are still sent for them.
	ToolCallCancellations []string

	Interrupted         bool
	InputTranscription  *Transcription
	OutputTranscription *Transcription
	Audio               []AudioPart
	TurnComplete        bool

	// GoAway announces an imminent server-side close.
	GoAway   bool
	TimeLeft time.Duration
}

// Transport opens connections to the remote endpoint.
type Transport interface {
	// Connect opens a connection, sends cfg and returns once the endpoint
	// has acknowledged the setup.
	Connect(ctx context.Context, cfg SessionConfig) (Conn, error)

	// Name identifies the transport in logs.
	Name() string
}

// Conn is an open connection. Send methods are safe for concurrent use;
// Receive is called from a single goroutine.
type Conn interface {
	SendAudio(f Frame) error
	SendToolResponse(r ToolResponse) error

	// Receive blocks for the next message. It returns io.EOF or
	// ErrConnectionClosed when the remote closes cleanly.
	Receive() (*Message, error)

	// Close closes the connection and unblocks Receive. Safe to call twice.
	Close() error
}

// Synthesizer renders text to speech for playback in a session.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (AudioPart, error)
}

// TransportConfig configures a bundled transport.
type TransportConfig struct {
	APIKey string

	// Endpoint overrides the default service URL.
	Endpoint string

	// UseADC authenticates with Application Default Credentials when no
	// API key is set.
	UseADC bool

	HTTPClient  *http.Client
	DialTimeout time.Duration
	Logger      *slog.Logger
}

// TransportFactory creates a Transport.
type TransportFactory func(cfg TransportConfig) (Transport, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]TransportFactory)
)

// RegisterTransport makes a transport available by name. Bundled
// transports call this from init().
func RegisterTransport(name string, f TransportFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// NewTransport creates the named transport.
func NewTransport(name string, cfg TransportConfig) (Transport, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, name)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return f(cfg)
}

// Transports lists registered transport names.
func Transports() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
