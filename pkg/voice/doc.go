// Package voice runs realtime voice sessions against a streaming
// conversational endpoint.
//
// A Controller owns at most one live session at a time. A session captures
// microphone frames and streams them upstream, schedules received audio for
// gapless playback, relays transcript fragments to the host, and dispatches
// tool calls to registered handlers, always answering each call exactly once.
//
// # Usage
//
//	tr, _ := voice.NewTransport("gemini", voice.TransportConfig{APIKey: key})
//
//	d := voice.NewDispatcher(nil)
//	d.Register(voice.Tool{
//	    Name:        "start_research",
//	    Description: "Start a research task",
//	    Parameters:  schema,
//	    Handler: func(ctx context.Context, args map[string]any) (string, error) {
//	        return "Searching the lab.", nil
//	    },
//	})
//
//	c := voice.NewController(voice.Options{
//	    Transport:  tr,
//	    Dispatcher: d,
//	    Devices:    voice.Devices{Source: newMic, Sink: newSpeaker},
//	    Callbacks: voice.Callbacks{
//	        OnTranscript: func(ev voice.TranscriptEvent) { fmt.Println(ev.Speaker, ev.Text) },
//	    },
//	})
//
//	if err := c.Start(ctx, voice.SessionConfig{Model: model, Voice: "Kore"}); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Stop()
//
// # Lifecycle
//
// Idle -> Connecting -> Active -> Closing -> Closed, with Error reachable
// from Connecting and Active. Start is rejected with ErrSessionActive while
// a session is Connecting, Active or Closing. Stop is idempotent.
package voice
