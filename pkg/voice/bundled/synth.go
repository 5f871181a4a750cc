package bundled

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/teslashibe/go-livehelper/pkg/playback"
	"github.com/teslashibe/go-livehelper/pkg/voice"
)

// DefaultTTSModel is the speech generation model used by GenAISynthesizer.
const DefaultTTSModel = "gemini-2.5-flash-preview-tts"

// GenAISynthesizer renders text with a Gemini TTS model.
type GenAISynthesizer struct {
	cfg   voice.TransportConfig
	model string

	mu     sync.Mutex
	client *genai.Client
}

// NewGenAISynthesizer creates a synthesizer. An empty model selects
// DefaultTTSModel.
func NewGenAISynthesizer(cfg voice.TransportConfig, model string) (*GenAISynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, voice.ErrMissingAPIKey
	}
	if model == "" {
		model = DefaultTTSModel
	}
	return &GenAISynthesizer{cfg: cfg, model: model}, nil
}

// Synthesize implements voice.Synthesizer.
func (s *GenAISynthesizer) Synthesize(ctx context.Context, text, voiceName string) (voice.AudioPart, error) {
	s.mu.Lock()
	if s.client == nil {
		client, err := newGenAIClient(ctx, s.cfg)
		if err != nil {
			s.mu.Unlock()
			return voice.AudioPart{}, err
		}
		s.client = client
	}
	client := s.client
	s.mu.Unlock()

	cfg := &genai.GenerateContentConfig{ResponseModalities: []string{"AUDIO"}}
	if voiceName != "" {
		cfg.SpeechConfig = speechConfig(voiceName)
	}
	resp, err := client.Models.GenerateContent(ctx, s.model, genai.Text(text), cfg)
	if err != nil {
		return voice.AudioPart{}, fmt.Errorf("genai tts: %w", err)
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
				return voice.AudioPart{MIMEType: PCMType(p.InlineData.MIMEType), Data: p.InlineData.Data}, nil
			}
		}
	}
	return voice.AudioPart{}, errors.New("genai tts: response has no audio")
}

// PCMType maps the TTS output type (e.g. "audio/L16;codec=pcm;rate=24000")
// to the "audio/pcm;rate=N" form the scheduler decodes. The TTS payload is
// little-endian despite the L16 label.
func PCMType(mime string) string {
	if strings.HasPrefix(strings.ToLower(mime), "audio/pcm") {
		return mime
	}
	return fmt.Sprintf("audio/pcm;rate=%d", playback.ParseRate(mime, playback.DefaultChunkRate))
}

var _ voice.Synthesizer = (*GenAISynthesizer)(nil)
