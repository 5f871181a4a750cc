package voice

import (
	"time"

	"github.com/teslashibe/go-livehelper/pkg/playback"
)

// Speaker identifies who produced a transcript fragment.
type Speaker string

const (
	SpeakerUser   Speaker = "user"
	SpeakerRemote Speaker = "remote"
)

// TranscriptEvent is one transcript fragment, delivered in arrival order.
// Fragments are never merged.
type TranscriptEvent struct {
	Seq       uint64    `json:"seq"`
	SessionID string    `json:"session_id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Finished  bool      `json:"finished"`
	Time      time.Time `json:"time"`
}

// AudioScheduled describes a chunk placed on the playback timeline.
type AudioScheduled struct {
	Start      playback.Position
	Frames     playback.Position
	SampleRate int
}

// Callbacks are host notifications. All are optional. They run on session
// goroutines and should not block for long; OnTranscript runs on the relay
// goroutine and may block without affecting the rest of the session.
type Callbacks struct {
	OnStateChange    func(state State, err error)
	OnTranscript     func(ev TranscriptEvent)
	OnAudioScheduled func(a AudioScheduled)
	OnToolResponse   func(call ToolCall, resp ToolResponse)
	OnVocalizing     func(speaking bool)

	// OnError receives non-fatal errors (*HandlerError, *DecodeError) and
	// the fatal error that ended a session.
	OnError func(err error)
}

func (c *Callbacks) stateChange(s State, err error) {
	if c.OnStateChange != nil {
		c.OnStateChange(s, err)
	}
}

func (c *Callbacks) transcript(ev TranscriptEvent) {
	if c.OnTranscript != nil {
		c.OnTranscript(ev)
	}
}

func (c *Callbacks) audioScheduled(a AudioScheduled) {
	if c.OnAudioScheduled != nil {
		c.OnAudioScheduled(a)
	}
}

func (c *Callbacks) toolResponse(call ToolCall, resp ToolResponse) {
	if c.OnToolResponse != nil {
		c.OnToolResponse(call, resp)
	}
}

func (c *Callbacks) vocalizing(speaking bool) {
	if c.OnVocalizing != nil {
		c.OnVocalizing(speaking)
	}
}

func (c *Callbacks) error(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}
