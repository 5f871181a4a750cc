package playback

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned when scheduling after Shutdown.
var ErrClosed = errors.New("playback: scheduler shut down")

// Options configures a Scheduler.
type Options struct {
	Logger *slog.Logger

	// OnActivity runs when the set of outstanding sources goes from empty
	// to non-empty (true) or back (false).
	OnActivity func(active bool)
}

// Scheduler places buffers back to back on an Output.
//
// Invariant: between interrupts, the k+1-th buffer starts exactly where the
// k-th ends, or at the output clock if playback has run dry.
type Scheduler struct {
	out        Output
	logger     *slog.Logger
	onActivity func(bool)

	mu       sync.Mutex
	next     Position // 0 means unset
	sources  map[uint64]Source
	seq      uint64
	shutdown bool
}

// NewScheduler creates a scheduler over out.
func NewScheduler(out Output, opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scheduler{
		out:        out,
		logger:     opts.Logger,
		onActivity: opts.OnActivity,
		sources:    make(map[uint64]Source),
	}
}

// SampleRate returns the output rate.
func (s *Scheduler) SampleRate() int { return s.out.SampleRate() }

// Enqueue schedules buf and returns its start position. After Shutdown it
// does nothing and reports ok=false.
func (s *Scheduler) Enqueue(buf Buffer) (start Position, ok bool) {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return 0, false
	}

	s.seq++
	id := s.seq
	wasIdle := len(s.sources) == 0
	s.sources[id], start = s.out.Schedule(buf, s.next, func() { s.release(id) })
	s.next = start + buf.Len()
	s.mu.Unlock()

	if wasIdle {
		s.notify(true)
	}
	return start, true
}

// EnqueuePCM decodes a PCM16 payload and schedules it. On decode failure
// the timeline is left untouched.
func (s *Scheduler) EnqueuePCM(data []byte, mimeType string) (Buffer, Position, error) {
	buf, err := Decode(data, mimeType, s.out.SampleRate())
	if err != nil {
		return Buffer{}, 0, err
	}
	start, ok := s.Enqueue(buf)
	if !ok {
		return Buffer{}, 0, ErrClosed
	}
	return buf, start, nil
}

func (s *Scheduler) release(id uint64) {
	s.mu.Lock()
	_, ok := s.sources[id]
	delete(s.sources, id)
	idle := ok && len(s.sources) == 0
	s.mu.Unlock()

	if idle {
		s.notify(false)
	}
}

// Interrupt stops every outstanding source and resets the next start so
// the following buffer plays at the current output clock. Safe to call
// with nothing scheduled and safe to repeat.
func (s *Scheduler) Interrupt() {
	n := s.flush()
	if n > 0 {
		s.logger.Debug("playback interrupted", "sources", n)
		s.notify(false)
	}
}

func (s *Scheduler) flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.sources)
	for id, src := range s.sources {
		src.Stop()
		delete(s.sources, id)
	}
	s.next = 0
	return n
}

// Shutdown interrupts and releases the output. Safe to call twice.
func (s *Scheduler) Shutdown() error {
	s.Interrupt()

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	s.mu.Unlock()

	return s.out.Close()
}

// Outstanding returns the number of scheduled sources not yet finished.
func (s *Scheduler) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources)
}

// Next returns the next start position, 0 when unset.
func (s *Scheduler) Next() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *Scheduler) notify(active bool) {
	if s.onActivity != nil {
		s.onActivity(active)
	}
}
