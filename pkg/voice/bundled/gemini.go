// Package bundled provides the transports shipped with the voice package:
// a raw WebSocket client for the Gemini Live API ("gemini") and one built
// on the google.golang.org/genai SDK ("genai"). Import it for its side
// effects:
//
//	import _ "github.com/teslashibe/go-livehelper/pkg/voice/bundled"
package bundled

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teslashibe/go-livehelper/internal/httpc"
	"github.com/teslashibe/go-livehelper/pkg/voice"
)

const (
	// GeminiLiveURL is the Live API WebSocket endpoint.
	GeminiLiveURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	geminiScope = "https://www.googleapis.com/auth/generative-language"

	defaultDialTimeout = 10 * time.Second
	pingInterval       = 20 * time.Second
	writeTimeout       = 5 * time.Second
)

// Gemini is a voice.Transport speaking the Live API JSON protocol over a
// gorilla/websocket connection.
type Gemini struct {
	cfg    voice.TransportConfig
	logger *slog.Logger
	tokens oauth2.TokenSource
}

// NewGemini creates the transport. Without an API key it falls back to
// Application Default Credentials when cfg.UseADC is set.
func NewGemini(cfg voice.TransportConfig) (*Gemini, error) {
	if cfg.APIKey == "" && !cfg.UseADC {
		return nil, voice.ErrMissingAPIKey
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = GeminiLiveURL
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gemini{cfg: cfg, logger: cfg.Logger.With("transport", "gemini")}, nil
}

// Name returns "gemini".
func (g *Gemini) Name() string { return "gemini" }

// Connect dials the endpoint, sends the setup message and waits for
// setupComplete.
func (g *Gemini) Connect(ctx context.Context, cfg voice.SessionConfig) (voice.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.DialTimeout)
	defer cancel()

	target, header, err := g.dialTarget(ctx)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: g.cfg.DialTimeout}
	ws, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("gemini: dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("gemini: dial: %w", err)
	}

	c := newGeminiConn(ws, g.logger)
	if err := c.writeJSON(setupMessage(cfg)); err != nil {
		c.Close()
		return nil, fmt.Errorf("gemini: send setup: %w", err)
	}
	if err := c.awaitSetup(ctx); err != nil {
		c.Close()
		return nil, err
	}
	go c.keepalive()

	g.logger.Info("gemini live connected", "model", cfg.Model, "voice", cfg.Voice, "tools", len(cfg.Tools))
	return c, nil
}

func (g *Gemini) dialTarget(ctx context.Context) (string, http.Header, error) {
	header := make(http.Header)
	u, err := url.Parse(g.cfg.Endpoint)
	if err != nil {
		return "", nil, fmt.Errorf("gemini: endpoint: %w", err)
	}
	if g.cfg.APIKey != "" {
		q := u.Query()
		q.Set("key", g.cfg.APIKey)
		u.RawQuery = q.Encode()
		return u.String(), header, nil
	}

	if g.tokens == nil {
		ts, err := google.DefaultTokenSource(httpc.WithOAuth(ctx), geminiScope)
		if err != nil {
			return "", nil, fmt.Errorf("gemini: default credentials: %w", err)
		}
		g.tokens = oauth2.ReuseTokenSource(nil, ts)
	}
	tok, err := g.tokens.Token()
	if err != nil {
		return "", nil, fmt.Errorf("gemini: token: %w", err)
	}
	header.Set("Authorization", "Bearer "+tok.AccessToken)
	return u.String(), header, nil
}

// ModelName returns model with the "models/" prefix the API expects.
func ModelName(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

func setupMessage(cfg voice.SessionConfig) map[string]any {
	setup := map[string]any{
		"model": ModelName(cfg.Model),
		"generationConfig": map[string]any{
			"responseModalities": []string{"AUDIO"},
		},
	}
	if cfg.Voice != "" {
		setup["generationConfig"].(map[string]any)["speechConfig"] = map[string]any{
			"voiceConfig": map[string]any{
				"prebuiltVoiceConfig": map[string]any{"voiceName": cfg.Voice},
			},
		}
	}
	if cfg.SystemInstruction != "" {
		setup["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": cfg.SystemInstruction}},
		}
	}
	if len(cfg.Tools) > 0 {
		decls := make([]map[string]any, 0, len(cfg.Tools))
		for _, t := range cfg.Tools {
			d := map[string]any{"name": t.Name, "description": t.Description}
			if t.Parameters != nil {
				d["parameters"] = t.Parameters
			}
			decls = append(decls, d)
		}
		setup["tools"] = []map[string]any{{"functionDeclarations": decls}}
	}
	if cfg.InputTranscription {
		setup["inputAudioTranscription"] = map[string]any{}
	}
	if cfg.OutputTranscription {
		setup["outputAudioTranscription"] = map[string]any{}
	}
	return map[string]any{"setup": setup}
}

// Wire types for inbound messages. Only the fields the session uses.
type (
	serverMessage struct {
		SetupComplete        *struct{}             `json:"setupComplete"`
		ServerContent        *serverContent        `json:"serverContent"`
		ToolCall             *toolCall             `json:"toolCall"`
		ToolCallCancellation *toolCallCancellation `json:"toolCallCancellation"`
		GoAway               *goAway               `json:"goAway"`
	}

	serverContent struct {
		ModelTurn *struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MIMEType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"modelTurn"`
		Interrupted         bool           `json:"interrupted"`
		TurnComplete        bool           `json:"turnComplete"`
		InputTranscription  *transcription `json:"inputTranscription"`
		OutputTranscription *transcription `json:"outputTranscription"`
	}

	transcription struct {
		Text     string `json:"text"`
		Finished bool   `json:"finished"`
	}

	toolCall struct {
		FunctionCalls []struct {
			ID   string         `json:"id"`
			Name string         `json:"name"`
			Args map[string]any `json:"args"`
		} `json:"functionCalls"`
	}

	toolCallCancellation struct {
		IDs []string `json:"ids"`
	}

	goAway struct {
		TimeLeft string `json:"timeLeft"`
	}
)

// decodeMessage converts one raw server message. ok is false for messages
// that carry nothing the session handles.
func decodeMessage(data []byte) (msg *voice.Message, ok bool, err error) {
	var raw serverMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false, err
	}

	msg = &voice.Message{}
	if raw.SetupComplete != nil {
		msg.SetupComplete = true
		ok = true
	}
	if tc := raw.ToolCall; tc != nil {
		for _, fc := range tc.FunctionCalls {
			msg.ToolCalls = append(msg.ToolCalls, voice.ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
		ok = ok || len(msg.ToolCalls) > 0
	}
	if c := raw.ToolCallCancellation; c != nil && len(c.IDs) > 0 {
		msg.ToolCallCancellations = c.IDs
		ok = true
	}
	if sc := raw.ServerContent; sc != nil {
		msg.Interrupted = sc.Interrupted
		msg.TurnComplete = sc.TurnComplete
		if t := sc.InputTranscription; t != nil {
			msg.InputTranscription = &voice.Transcription{Text: t.Text, Finished: t.Finished}
		}
		if t := sc.OutputTranscription; t != nil {
			msg.OutputTranscription = &voice.Transcription{Text: t.Text, Finished: t.Finished}
		}
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p.InlineData != nil && strings.HasPrefix(p.InlineData.MIMEType, "audio/") {
					msg.Audio = append(msg.Audio, decodeAudio(p.InlineData.MIMEType, p.InlineData.Data))
				}
			}
		}
		ok = true
	}
	if ga := raw.GoAway; ga != nil {
		msg.GoAway = true
		msg.TimeLeft, _ = time.ParseDuration(ga.TimeLeft)
		ok = true
	}
	return msg, ok, nil
}

// decodeAudio decodes one base64 audio part. A bad payload is reported on
// the part alone.
func decodeAudio(mimeType, data string) voice.AudioPart {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return voice.AudioPart{MIMEType: mimeType, Err: fmt.Errorf("base64 (%d chars): %w", len(data), err)}
	}
	return voice.AudioPart{MIMEType: mimeType, Data: b}
}

type geminiConn struct {
	ws     *websocket.Conn
	logger *slog.Logger

	// writeMu serializes writers; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

func newGeminiConn(ws *websocket.Conn, logger *slog.Logger) *geminiConn {
	return &geminiConn{ws: ws, logger: logger, done: make(chan struct{})}
}

func (c *geminiConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return voice.ErrConnectionClosed
	default:
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

func (c *geminiConn) awaitSetup(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		c.ws.SetReadDeadline(deadline)
		defer c.ws.SetReadDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() { c.ws.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("gemini: waiting for setup: %w", ctx.Err())
			}
			return fmt.Errorf("gemini: waiting for setup: %w", err)
		}
		msg, _, err := decodeMessage(data)
		if err != nil {
			return fmt.Errorf("gemini: setup reply: %w", err)
		}
		if msg.SetupComplete {
			return nil
		}
	}
}

func (c *geminiConn) keepalive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

// SendAudio sends one realtime input chunk.
func (c *geminiConn) SendAudio(f voice.Frame) error {
	return c.writeJSON(map[string]any{
		"realtimeInput": map[string]any{
			"mediaChunks": []map[string]any{{
				"mimeType": f.MIMEType(),
				"data":     f.Data, // []byte marshals as base64
			}},
		},
	})
}

// SendToolResponse answers one function call.
func (c *geminiConn) SendToolResponse(r voice.ToolResponse) error {
	return c.writeJSON(map[string]any{
		"toolResponse": map[string]any{
			"functionResponses": []map[string]any{{
				"id":       r.ID,
				"name":     r.Name,
				"response": map[string]any{"result": r.Result},
			}},
		},
	})
}

// Receive reads until a message the session handles arrives.
func (c *geminiConn) Receive() (*voice.Message, error) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return nil, voice.ErrConnectionClosed
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}
		msg, ok, err := decodeMessage(data)
		if err != nil {
			c.logger.Warn("malformed server message", "error", err, "bytes", len(data))
			continue
		}
		if ok {
			return msg, nil
		}
	}
}

// Close sends a close frame and closes the socket.
func (c *geminiConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		close(c.done)
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
		if errors.Is(err, websocket.ErrCloseSent) {
			err = nil
		}
	})
	return err
}

var (
	_ voice.Transport = (*Gemini)(nil)
	_ voice.Conn      = (*geminiConn)(nil)
)
