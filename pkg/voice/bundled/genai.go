package bundled

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"google.golang.org/genai"

	"github.com/teslashibe/go-livehelper/pkg/voice"
)

// GenAI is a voice.Transport built on the genai SDK's Live client.
type GenAI struct {
	cfg    voice.TransportConfig
	logger *slog.Logger

	mu     sync.Mutex
	client *genai.Client
}

// NewGenAI creates the transport. It requires an API key.
func NewGenAI(cfg voice.TransportConfig) (*GenAI, error) {
	if cfg.APIKey == "" {
		return nil, voice.ErrMissingAPIKey
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &GenAI{cfg: cfg, logger: cfg.Logger.With("transport", "genai")}, nil
}

// Name returns "genai".
func (g *GenAI) Name() string { return "genai" }

func (g *GenAI) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	client, err := newGenAIClient(ctx, g.cfg)
	if err != nil {
		return nil, err
	}
	g.client = client
	return client, nil
}

func newGenAIClient(ctx context.Context, cfg voice.TransportConfig) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("genai: client: %w", err)
	}
	return client, nil
}

// Connect opens a Live session and waits for the setup acknowledgement.
func (g *GenAI) Connect(ctx context.Context, cfg voice.SessionConfig) (voice.Conn, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, err
	}

	sess, err := client.Live.Connect(ctx, cfg.Model, LiveConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("genai: connect: %w", err)
	}

	first, err := sess.Receive()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("genai: waiting for setup: %w", err)
	}
	if first.SetupComplete == nil {
		sess.Close()
		return nil, errors.New("genai: expected setupComplete as first message")
	}

	g.logger.Info("genai live connected", "model", cfg.Model, "voice", cfg.Voice)
	return &genaiConn{sess: sess, done: make(chan struct{})}, nil
}

// LiveConfig builds the SDK connect config for a session.
func LiveConfig(cfg voice.SessionConfig) *genai.LiveConnectConfig {
	lc := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
	}
	if cfg.Voice != "" {
		lc.SpeechConfig = speechConfig(cfg.Voice)
	}
	if cfg.SystemInstruction != "" {
		lc.SystemInstruction = genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser)
	}
	if len(cfg.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(cfg.Tools))
		for _, t := range cfg.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  SchemaFrom(t.Parameters),
			})
		}
		lc.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	if cfg.InputTranscription {
		lc.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if cfg.OutputTranscription {
		lc.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	return lc
}

func speechConfig(voiceName string) *genai.SpeechConfig {
	return &genai.SpeechConfig{
		VoiceConfig: &genai.VoiceConfig{
			PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voiceName},
		},
	}
}

// SchemaFrom converts a JSON-schema style map into a genai schema. It
// understands type, description, enum, properties, required and items.
func SchemaFrom(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = schemaType(t)
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	s.Enum = stringList(m["enum"])
	s.Required = stringList(m["required"])
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		names := make([]string, 0, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = SchemaFrom(pm)
				names = append(names, name)
			}
		}
		sort.Strings(names)
		s.PropertyOrdering = names
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = SchemaFrom(items)
	}
	return s
}

func schemaType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}

func stringList(v any) []string {
	switch vs := v.(type) {
	case []string:
		return vs
	case []any:
		out := make([]string, 0, len(vs))
		for _, x := range vs {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

type genaiConn struct {
	sess      *genai.Session
	closeOnce sync.Once
	done      chan struct{}
}

func (c *genaiConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *genaiConn) SendAudio(f voice.Frame) error {
	if c.closed() {
		return voice.ErrConnectionClosed
	}
	return c.sess.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: f.Data, MIMEType: f.MIMEType()},
	})
}

func (c *genaiConn) SendToolResponse(r voice.ToolResponse) error {
	if c.closed() {
		return voice.ErrConnectionClosed
	}
	return c.sess.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: []*genai.FunctionResponse{{
			ID:       r.ID,
			Name:     r.Name,
			Response: map[string]any{"result": r.Result},
		}},
	})
}

func (c *genaiConn) Receive() (*voice.Message, error) {
	for {
		raw, err := c.sess.Receive()
		if err != nil {
			if c.closed() {
				return nil, voice.ErrConnectionClosed
			}
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}
		if msg, ok := convertLive(raw); ok {
			return msg, nil
		}
	}
}

func (c *genaiConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.sess.Close()
	})
	return err
}

// convertLive maps an SDK server message onto voice.Message.
func convertLive(raw *genai.LiveServerMessage) (*voice.Message, bool) {
	if raw == nil {
		return nil, false
	}
	msg := &voice.Message{}
	ok := false
	if raw.SetupComplete != nil {
		msg.SetupComplete = true
		ok = true
	}
	if tc := raw.ToolCall; tc != nil {
		for _, fc := range tc.FunctionCalls {
			if fc == nil {
				continue
			}
			msg.ToolCalls = append(msg.ToolCalls, voice.ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
			ok = true
		}
	}
	if cc := raw.ToolCallCancellation; cc != nil && len(cc.IDs) > 0 {
		msg.ToolCallCancellations = cc.IDs
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
				if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
					msg.Audio = append(msg.Audio, voice.AudioPart{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data})
				}
			}
		}
		ok = true
	}
	if raw.GoAway != nil {
		msg.GoAway = true
		msg.TimeLeft = raw.GoAway.TimeLeft
		ok = true
	}
	return msg, ok
}

var (
	_ voice.Transport = (*GenAI)(nil)
	_ voice.Conn      = (*genaiConn)(nil)
)
