package playback

import (
	"io"
	"math"
	"sort"
	"sync"
)

// Timeline is a software mixer whose clock is the number of frames read
// from it. It implements io.Reader for an audioio.Sink and Output for the
// Scheduler. Reads never block: gaps are rendered as silence.
type Timeline struct {
	rate int

	mu      sync.Mutex
	pos     Position
	voices  map[uint64]*voice
	nextID  uint64
	closed  bool
	partial []byte // odd byte left from the last read
}

type voice struct {
	id      uint64
	tl      *Timeline
	samples []int16
	start   Position
	onEnded func()
}

// NewTimeline creates a timeline at rate Hz, positioned at 0.
func NewTimeline(rate int) *Timeline {
	return &Timeline{rate: rate, voices: make(map[uint64]*voice)}
}

// Now returns the number of frames rendered so far.
func (t *Timeline) Now() Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pos
}

// SampleRate returns the output rate.
func (t *Timeline) SampleRate() int { return t.rate }

// Active returns the number of scheduled voices not yet finished.
func (t *Timeline) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.voices)
}

// Schedule places buf at at. A start the clock has already passed is
// moved to the clock, so no leading samples are skipped.
func (t *Timeline) Schedule(buf Buffer, at Position, onEnded func()) (Source, Position) {
	t.mu.Lock()
	defer t.mu.Unlock()

	at = max(at, t.pos)
	t.nextID++
	v := &voice{id: t.nextID, tl: t, samples: buf.Samples, start: at, onEnded: onEnded}
	if !t.closed {
		t.voices[v.id] = v
	}
	return v, at
}

// Stop removes the voice. Its onEnded callback is not invoked.
func (v *voice) Stop() {
	v.tl.mu.Lock()
	delete(v.tl.voices, v.id)
	v.tl.mu.Unlock()
}

// Read renders PCM16 little-endian mono into p and advances the clock.
func (t *Timeline) Read(p []byte) (int, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, io.EOF
	}

	n := 0
	if len(t.partial) > 0 && len(p) > 0 {
		p[0] = t.partial[0]
		t.partial = t.partial[:0]
		n = 1
	}

	frames := (len(p) - n) / 2
	var odd bool
	if (len(p)-n)%2 == 1 {
		frames++
		odd = true
	}

	mix := make([]int32, frames)
	from, to := t.pos, t.pos+Position(frames)
	var ended []*voice
	for _, v := range t.voices {
		end := v.start + Position(len(v.samples))
		if end <= from {
			ended = append(ended, v)
			continue
		}
		if v.start >= to {
			continue
		}
		lo := max(v.start, from)
		hi := min(end, to)
		for pos := lo; pos < hi; pos++ {
			mix[pos-from] += int32(v.samples[pos-v.start])
		}
		if end <= to {
			ended = append(ended, v)
		}
	}
	for _, v := range ended {
		delete(t.voices, v.id)
	}
	t.pos = to

	out := p[n:]
	for i, s := range mix {
		c := clamp16(s)
		lo, hi := byte(c), byte(uint16(c)>>8)
		if odd && i == len(mix)-1 {
			out[i*2] = lo
			t.partial = append(t.partial[:0], hi)
			continue
		}
		out[i*2] = lo
		out[i*2+1] = hi
	}
	t.mu.Unlock()

	// stable order so callbacks fire in start order
	sort.Slice(ended, func(i, j int) bool { return ended[i].start < ended[j].start })
	for _, v := range ended {
		if v.onEnded != nil {
			v.onEnded()
		}
	}
	return len(p), nil
}

// Close stops all voices and makes Read return io.EOF.
func (t *Timeline) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	clear(t.voices)
	return nil
}

func clamp16(s int32) int16 {
	switch {
	case s > math.MaxInt16:
		return math.MaxInt16
	case s < math.MinInt16:
		return math.MinInt16
	}
	return int16(s)
}
