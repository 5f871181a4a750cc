package bundled

import "github.com/teslashibe/go-livehelper/pkg/voice"

func init() {
	voice.RegisterTransport("gemini", func(cfg voice.TransportConfig) (voice.Transport, error) {
		return NewGemini(cfg)
	})
	voice.RegisterTransport("genai", func(cfg voice.TransportConfig) (voice.Transport, error) {
		return NewGenAI(cfg)
	})
}
