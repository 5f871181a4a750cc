package voice

import "sync"

// lane is an unbounded FIFO drained by one goroutine. push never blocks, so
// a slow consumer delays only its own lane.
type lane[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newLane[T any](fn func(T)) *lane[T] {
	l := &lane[T]{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.run(fn)
	return l
}

// push appends item. It reports false once the lane is closed.
func (l *lane[T]) push(item T) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.items = append(l.items, item)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

func (l *lane[T]) run(fn func(T)) {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.items) == 0 {
			if l.closed {
				l.mu.Unlock()
				return
			}
			l.mu.Unlock()
			<-l.wake
			l.mu.Lock()
		}
		if l.closed {
			l.mu.Unlock()
			return
		}
		item := l.items[0]
		var zero T
		l.items[0] = zero
		l.items = l.items[1:]
		l.mu.Unlock()

		fn(item)
	}
}

// close stops the lane. Pending items are abandoned; an item already
// being processed finishes.
func (l *lane[T]) close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.items = nil
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// len returns the number of pending items.
func (l *lane[T]) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}
