package voice

import (
	"context"
	"io"
	"sync"
)

// MockTransport is an in-process Transport for tests. Each Connect creates
// a MockConn the test drives with Deliver and CloseRemote.
type MockTransport struct {
	mu sync.Mutex

	// ConnectFunc overrides Connect when set.
	ConnectFunc func(ctx context.Context, cfg SessionConfig) (Conn, error)

	// Captured calls for assertions
	Configs []SessionConfig
	Conns   []*MockConn

	connected chan *MockConn
}

// NewMockTransport creates a MockTransport.
func NewMockTransport() *MockTransport {
	return &MockTransport{connected: make(chan *MockConn, 16)}
}

// Name returns "mock".
func (m *MockTransport) Name() string { return "mock" }

// Connect implements Transport.
func (m *MockTransport) Connect(ctx context.Context, cfg SessionConfig) (Conn, error) {
	m.mu.Lock()
	m.Configs = append(m.Configs, cfg)
	fn := m.ConnectFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, cfg)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn := NewMockConn()
	m.mu.Lock()
	m.Conns = append(m.Conns, conn)
	m.mu.Unlock()
	select {
	case m.connected <- conn:
	default:
	}
	return conn, nil
}

// Connected delivers each MockConn as it is created.
func (m *MockTransport) Connected() <-chan *MockConn { return m.connected }

// Last returns the most recent connection.
func (m *MockTransport) Last() *MockConn {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Conns) == 0 {
		return nil
	}
	return m.Conns[len(m.Conns)-1]
}

// MockConn is an in-process Conn.
type MockConn struct {
	mu sync.Mutex

	// SendAudioFunc and SendToolResponseFunc override the default capture.
	SendAudioFunc        func(f Frame) error
	SendToolResponseFunc func(r ToolResponse) error

	// Captured calls for assertions
	AudioSent     []Frame
	ToolResponses []ToolResponse

	inbound   chan *Message
	remoteErr error
	remote    chan struct{}
	remoteOne sync.Once
	closed    chan struct{}
	closeOne  sync.Once
	responses chan ToolResponse
}

// NewMockConn creates an open MockConn.
func NewMockConn() *MockConn {
	return &MockConn{
		inbound:   make(chan *Message, 64),
		remote:    make(chan struct{}),
		closed:    make(chan struct{}),
		responses: make(chan ToolResponse, 64),
	}
}

// Deliver queues msg for Receive.
func (m *MockConn) Deliver(msg *Message) {
	m.inbound <- msg
}

// CloseRemote makes Receive fail with err once queued messages are read.
// A nil err simulates a clean close (io.EOF).
func (m *MockConn) CloseRemote(err error) {
	m.remoteOne.Do(func() {
		if err == nil {
			err = io.EOF
		}
		m.mu.Lock()
		m.remoteErr = err
		m.mu.Unlock()
		close(m.remote)
	})
}

// Receive implements Conn.
func (m *MockConn) Receive() (*Message, error) {
	select {
	case msg := <-m.inbound:
		return msg, nil
	default:
	}
	select {
	case msg := <-m.inbound:
		return msg, nil
	case <-m.remote:
		m.mu.Lock()
		defer m.mu.Unlock()
		return nil, m.remoteErr
	case <-m.closed:
		return nil, ErrConnectionClosed
	}
}

// SendAudio implements Conn.
func (m *MockConn) SendAudio(f Frame) error {
	if m.SendAudioFunc != nil {
		return m.SendAudioFunc(f)
	}
	if m.IsClosed() {
		return ErrConnectionClosed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AudioSent = append(m.AudioSent, f)
	return nil
}

// SendToolResponse implements Conn.
func (m *MockConn) SendToolResponse(r ToolResponse) error {
	if m.SendToolResponseFunc != nil {
		return m.SendToolResponseFunc(r)
	}
	if m.IsClosed() {
		return ErrConnectionClosed
	}
	m.mu.Lock()
	m.ToolResponses = append(m.ToolResponses, r)
	m.mu.Unlock()
	select {
	case m.responses <- r:
	default:
	}
	return nil
}

// Responses delivers each tool response as it is sent.
func (m *MockConn) Responses() <-chan ToolResponse { return m.responses }

// Frames returns a copy of the frames sent so far.
func (m *MockConn) Frames() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Frame(nil), m.AudioSent...)
}

// Sent returns a copy of the tool responses sent so far.
func (m *MockConn) Sent() []ToolResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ToolResponse(nil), m.ToolResponses...)
}

// Close implements Conn.
func (m *MockConn) Close() error {
	m.closeOne.Do(func() { close(m.closed) })
	return nil
}

// IsClosed reports whether Close was called.
func (m *MockConn) IsClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// MockSynthesizer returns fixed audio for any text.
type MockSynthesizer struct {
	Part AudioPart
	Err  error

	mu    sync.Mutex
	Texts []string
}

// Synthesize implements Synthesizer.
func (m *MockSynthesizer) Synthesize(ctx context.Context, text, voice string) (AudioPart, error) {
	m.mu.Lock()
	m.Texts = append(m.Texts, text)
	m.mu.Unlock()
	if m.Err != nil {
		return AudioPart{}, m.Err
	}
	return m.Part, nil
}

// Spoken returns a copy of the texts synthesized so far.
func (m *MockSynthesizer) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Texts...)
}

var (
	_ Transport   = (*MockTransport)(nil)
	_ Conn        = (*MockConn)(nil)
	_ Synthesizer = (*MockSynthesizer)(nil)
)
