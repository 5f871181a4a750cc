package voice

import (
	"sync/atomic"
	"time"
)

// Metrics counts session activity. It is safe for concurrent use.
type Metrics struct {
	started atomic.Int64 // unix nanos
	stopped atomic.Int64

	framesCaptured   atomic.Int64
	framesSent       atomic.Int64
	framesDropped    atomic.Int64
	chunksScheduled  atomic.Int64
	chunksCorrupt    atomic.Int64
	interrupts       atomic.Int64
	toolCalls        atomic.Int64
	toolFailures     atomic.Int64
	responsesDropped atomic.Int64
	transcripts      atomic.Int64
	turns            atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	SessionID string        `json:"session_id,omitempty"`
	Uptime    time.Duration `json:"uptime"`

	FramesCaptured   int64 `json:"frames_captured"`
	FramesSent       int64 `json:"frames_sent"`
	FramesDropped    int64 `json:"frames_dropped"`
	ChunksScheduled  int64 `json:"chunks_scheduled"`
	ChunksCorrupt    int64 `json:"chunks_corrupt"`
	Interrupts       int64 `json:"interrupts"`
	ToolCalls        int64 `json:"tool_calls"`
	ToolFailures     int64 `json:"tool_failures"`
	ResponsesDropped int64 `json:"responses_dropped"`
	Transcripts      int64 `json:"transcripts"`
	Turns            int64 `json:"turns"`
}

func newMetrics() *Metrics {
	m := &Metrics{}
	m.started.Store(time.Now().UnixNano())
	return m
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	end := time.Now()
	if ns := m.stopped.Load(); ns != 0 {
		end = time.Unix(0, ns)
	}
	return MetricsSnapshot{
		Uptime:           end.Sub(time.Unix(0, m.started.Load())),
		FramesCaptured:   m.framesCaptured.Load(),
		FramesSent:       m.framesSent.Load(),
		FramesDropped:    m.framesDropped.Load(),
		ChunksScheduled:  m.chunksScheduled.Load(),
		ChunksCorrupt:    m.chunksCorrupt.Load(),
		Interrupts:       m.interrupts.Load(),
		ToolCalls:        m.toolCalls.Load(),
		ToolFailures:     m.toolFailures.Load(),
		ResponsesDropped: m.responsesDropped.Load(),
		Transcripts:      m.transcripts.Load(),
		Turns:            m.turns.Load(),
	}
}

// stop freezes Uptime.
func (m *Metrics) stop() {
	m.stopped.CompareAndSwap(0, time.Now().UnixNano())
}
