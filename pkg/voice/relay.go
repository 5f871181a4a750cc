package voice

import (
	"sync/atomic"
	"time"
)

// TranscriptRelay forwards transcript fragments to the host in arrival
// order. Forward never blocks and never drops, merges or dedupes.
type TranscriptRelay struct {
	sessionID string
	seq       atomic.Uint64
	lane      *lane[TranscriptEvent]
	metrics   *Metrics
}

// NewTranscriptRelay starts a relay delivering to deliver.
func NewTranscriptRelay(sessionID string, deliver func(TranscriptEvent), metrics *Metrics) *TranscriptRelay {
	if metrics == nil {
		metrics = newMetrics()
	}
	return &TranscriptRelay{
		sessionID: sessionID,
		lane:      newLane(deliver),
		metrics:   metrics,
	}
}

// Forward queues a fragment. Empty fragments are forwarded as well; the
// host decides what to show.
func (r *TranscriptRelay) Forward(speaker Speaker, text string, finished bool) {
	ev := TranscriptEvent{
		Seq:       r.seq.Add(1),
		SessionID: r.sessionID,
		Speaker:   speaker,
		Text:      text,
		Finished:  finished,
		Time:      time.Now(),
	}
	if r.lane.push(ev) {
		r.metrics.transcripts.Add(1)
	}
}

// Pending returns the number of undelivered fragments.
func (r *TranscriptRelay) Pending() int {
	return r.lane.len()
}

// Close stops delivery. Undelivered fragments are abandoned.
func (r *TranscriptRelay) Close() {
	r.lane.close()
}
