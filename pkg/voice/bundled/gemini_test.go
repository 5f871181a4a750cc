package bundled

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-livehelper/internal/log"
	"github.com/teslashibe/go-livehelper/pkg/voice"
)

// fakeLive is a minimal Live endpoint. handler runs after setup is
// acknowledged.
func fakeLive(t *testing.T, handler func(ws *websocket.Conn, setup map[string]any)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			http.Error(w, "bad key", http.StatusForbidden)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		var setup map[string]any
		if err := ws.ReadJSON(&setup); err != nil {
			return
		}
		if err := ws.WriteJSON(map[string]any{"setupComplete": map[string]any{}}); err != nil {
			return
		}
		handler(ws, setup)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, cfg voice.SessionConfig) voice.Conn {
	t.Helper()
	tr, err := NewGemini(voice.TransportConfig{
		APIKey:   "test-key",
		Endpoint: "ws" + strings.TrimPrefix(srv.URL, "http"),
		Logger:   log.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	conn, err := tr.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGeminiSetupMessage(t *testing.T) {
	got := make(chan map[string]any, 1)
	srv := fakeLive(t, func(ws *websocket.Conn, setup map[string]any) {
		got <- setup
		ws.ReadMessage()
	})

	dial(t, srv, voice.SessionConfig{
		Model:               "gemini-live-test",
		Voice:               "Kore",
		SystemInstruction:   "You are Aria.",
		InputTranscription:  true,
		OutputTranscription: true,
		Tools: []voice.ToolDeclaration{{
			Name:        "start_research",
			Description: "research",
			Parameters:  map[string]any{"type": "object"},
		}},
	})

	setup := (<-got)["setup"].(map[string]any)
	if setup["model"] != "models/gemini-live-test" {
		t.Errorf("model = %v", setup["model"])
	}
	gen := setup["generationConfig"].(map[string]any)
	voiceName := gen["speechConfig"].(map[string]any)["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)["voiceName"]
	if voiceName != "Kore" {
		t.Errorf("voice = %v", voiceName)
	}
	tools := setup["tools"].([]any)[0].(map[string]any)["functionDeclarations"].([]any)
	if len(tools) != 1 || tools[0].(map[string]any)["name"] != "start_research" {
		t.Errorf("tools = %v", tools)
	}
	if _, ok := setup["inputAudioTranscription"]; !ok {
		t.Error("input transcription not requested")
	}
	if _, ok := setup["outputAudioTranscription"]; !ok {
		t.Error("output transcription not requested")
	}
}

func TestGeminiToolCallRoundTrip(t *testing.T) {
	reply := make(chan map[string]any, 1)
	srv := fakeLive(t, func(ws *websocket.Conn, _ map[string]any) {
		ws.WriteJSON(map[string]any{
			"toolCall": map[string]any{
				"functionCalls": []any{map[string]any{
					"id":   "x1",
					"name": "delegate_task",
					"args": map[string]any{"title": "Fix reactor", "group": "Paladian"},
				}},
			},
		})
		var msg map[string]any
		if err := ws.ReadJSON(&msg); err == nil {
			reply <- msg
		}
		ws.ReadMessage()
	})

	conn := dial(t, srv, voice.SessionConfig{Model: "m"})
	msg, err := conn.Receive()
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", msg.ToolCalls)
	}
	call := msg.ToolCalls[0]
	if call.ID != "x1" || call.Name != "delegate_task" || call.Args["group"] != "Paladian" {
		t.Errorf("call = %+v", call)
	}

	if err := conn.SendToolResponse(voice.ToolResponse{ID: "x1", Name: "delegate_task", Result: "dispatched"}); err != nil {
		t.Fatal(err)
	}
	select {
	case m := <-reply:
		fr := m["toolResponse"].(map[string]any)["functionResponses"].([]any)[0].(map[string]any)
		if fr["id"] != "x1" || fr["name"] != "delegate_task" {
			t.Errorf("function response = %v", fr)
		}
		if fr["response"].(map[string]any)["result"] != "dispatched" {
			t.Errorf("result = %v", fr["response"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the tool response")
	}
}

func TestGeminiServerContent(t *testing.T) {
	srv := fakeLive(t, func(ws *websocket.Conn, _ map[string]any) {
		ws.WriteJSON(map[string]any{"usageMetadata": map[string]any{"totalTokenCount": 3}})
		ws.WriteJSON(map[string]any{
			"serverContent": map[string]any{
				"modelTurn": map[string]any{"parts": []any{
					map[string]any{"inlineData": map[string]any{"mimeType": "audio/pcm;rate=24000", "data": "AAABAA=="}},
				}},
				"outputTranscription": map[string]any{"text": "Hello"},
			},
		})
		ws.WriteJSON(map[string]any{"serverContent": map[string]any{"interrupted": true}})
		ws.WriteJSON(map[string]any{"goAway": map[string]any{"timeLeft": "30s"}})
		ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		ws.ReadMessage()
	})

	conn := dial(t, srv, voice.SessionConfig{Model: "m"})

	msg, err := conn.Receive()
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.Audio) != 1 || len(msg.Audio[0].Data) != 4 || msg.Audio[0].MIMEType != "audio/pcm;rate=24000" {
		t.Errorf("audio = %+v", msg.Audio)
	}
	if msg.OutputTranscription == nil || msg.OutputTranscription.Text != "Hello" {
		t.Errorf("transcription = %+v", msg.OutputTranscription)
	}

	msg, err = conn.Receive()
	if err != nil || !msg.Interrupted {
		t.Errorf("expected interruption, got %+v, %v", msg, err)
	}

	msg, err = conn.Receive()
	if err != nil || !msg.GoAway || msg.TimeLeft != 30*time.Second {
		t.Errorf("expected goAway, got %+v, %v", msg, err)
	}

	if _, err := conn.Receive(); !errors.Is(err, io.EOF) {
		t.Errorf("clean close err = %v, want io.EOF", err)
	}
}

func TestGeminiSendAudio(t *testing.T) {
	got := make(chan map[string]any, 1)
	srv := fakeLive(t, func(ws *websocket.Conn, _ map[string]any) {
		var msg map[string]any
		if err := ws.ReadJSON(&msg); err == nil {
			got <- msg
		}
		ws.ReadMessage()
	})

	conn := dial(t, srv, voice.SessionConfig{Model: "m"})
	if err := conn.SendAudio(voice.Frame{Seq: 1, Data: []byte{1, 0, 2, 0}, SampleRate: 16000}); err != nil {
		t.Fatal(err)
	}
	msg := <-got
	chunk := msg["realtimeInput"].(map[string]any)["mediaChunks"].([]any)[0].(map[string]any)
	if chunk["mimeType"] != "audio/pcm;rate=16000" || chunk["data"] != "AQACAA==" {
		t.Errorf("chunk = %v", chunk)
	}
}

func TestGeminiCloseUnblocksReceive(t *testing.T) {
	srv := fakeLive(t, func(ws *websocket.Conn, _ map[string]any) {
		ws.ReadMessage()
	})
	conn := dial(t, srv, voice.SessionConfig{Model: "m"})

	errc := make(chan error, 1)
	go func() {
		_, err := conn.Receive()
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	conn.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, voice.ErrConnectionClosed) {
			t.Errorf("err = %v, want ErrConnectionClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Receive not unblocked by Close")
	}
	if err := conn.SendAudio(voice.Frame{Data: []byte{0, 0}}); !errors.Is(err, voice.ErrConnectionClosed) {
		t.Errorf("SendAudio after Close err = %v", err)
	}
}

func TestGeminiBadKey(t *testing.T) {
	srv := fakeLive(t, func(*websocket.Conn, map[string]any) {})
	tr, _ := NewGemini(voice.TransportConfig{
		APIKey:   "wrong",
		Endpoint: "ws" + strings.TrimPrefix(srv.URL, "http"),
		Logger:   log.Discard(),
	})
	if _, err := tr.Connect(context.Background(), voice.SessionConfig{Model: "m"}); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestNewGeminiRequiresCredentials(t *testing.T) {
	if _, err := NewGemini(voice.TransportConfig{}); !errors.Is(err, voice.ErrMissingAPIKey) {
		t.Errorf("err = %v", err)
	}
	if _, err := NewGemini(voice.TransportConfig{UseADC: true}); err != nil {
		t.Errorf("ADC config rejected: %v", err)
	}
}

func TestDecodeMessageIgnoresUnknown(t *testing.T) {
	_, ok, err := decodeMessage([]byte(`{"usageMetadata":{}}`))
	if err != nil || ok {
		t.Errorf("ok=%v err=%v", ok, err)
	}
	if _, _, err := decodeMessage([]byte(`{`)); err == nil {
		t.Error("expected json error")
	}
}

func TestDecodeMessageCorruptAudioPart(t *testing.T) {
	msg, ok, err := decodeMessage([]byte(`{"serverContent":{
		"modelTurn":{"parts":[
			{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"!!!not-base64!!!"}},
			{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"AAABAA=="}}
		]},
		"outputTranscription":{"text":"hello"},
		"interrupted":true,
		"turnComplete":true
	}}`))
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if msg.OutputTranscription == nil || msg.OutputTranscription.Text != "hello" {
		t.Errorf("transcription = %+v", msg.OutputTranscription)
	}
	if !msg.Interrupted || !msg.TurnComplete {
		t.Errorf("interrupted=%v turnComplete=%v", msg.Interrupted, msg.TurnComplete)
	}
	if len(msg.Audio) != 2 {
		t.Fatalf("audio parts = %d, want 2", len(msg.Audio))
	}
	if msg.Audio[0].Err == nil || msg.Audio[0].Data != nil {
		t.Errorf("corrupt part = %+v, want Err set and no data", msg.Audio[0])
	}
	if msg.Audio[1].Err != nil || len(msg.Audio[1].Data) != 4 {
		t.Errorf("good part = %+v", msg.Audio[1])
	}
}

func TestModelName(t *testing.T) {
	if got := ModelName("x"); got != "models/x" {
		t.Errorf("ModelName(x) = %q", got)
	}
	if got := ModelName("models/x"); got != "models/x" {
		t.Errorf("ModelName(models/x) = %q", got)
	}
}

func TestRegistered(t *testing.T) {
	names := strings.Join(voice.Transports(), ",")
	if !strings.Contains(names, "gemini") || !strings.Contains(names, "genai") {
		t.Errorf("transports = %s", names)
	}
}
