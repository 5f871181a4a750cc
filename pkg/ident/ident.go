// Package ident provides injectable identifier generators so that records
// created by tool handlers get unique ids in production and predictable
// ids in tests.
package ident

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator produces identifiers.
type Generator interface {
	NewID() string
}

// UUID generates random v4 UUIDs.
type UUID struct{}

// NewID returns a new random UUID string.
func (UUID) NewID() string {
	return uuid.NewString()
}

// Sequence generates prefix-1, prefix-2, ... and is safe for concurrent use.
type Sequence struct {
	Prefix string

	mu sync.Mutex
	n  int
}

// NewSequence returns a Sequence starting at 1.
func NewSequence(prefix string) *Sequence {
	return &Sequence{Prefix: prefix}
}

// NewID returns the next id in the sequence.
func (s *Sequence) NewID() string {
	s.mu.Lock()
	s.n++
	n := s.n
	s.mu.Unlock()
	if s.Prefix == "" {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s-%d", s.Prefix, n)
}

// Func adapts a function to Generator.
type Func func() string

// NewID calls f.
func (f Func) NewID() string { return f() }
