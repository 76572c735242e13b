// Package warnings collects recoverable data-quality issues raised while
// building features. Nothing in here is ever fatal.
package warnings

import (
	"fmt"
	"log/slog"
	"sync"
)

// Sink is an append-only list of warnings. It is safe for concurrent use.
// A nil *Sink discards everything.
type Sink struct {
	mu    sync.Mutex
	items []string
}

// NewSink returns an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Add appends a formatted warning.
func (s *Sink) Add(format string, args ...any) {
	if s == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)

	s.mu.Lock()
	s.items = append(s.items, msg)
	s.mu.Unlock()
}

// Merge appends every warning of other, in order.
func (s *Sink) Merge(other *Sink) {
	if s == nil || other == nil || s == other {
		return
	}
	items := other.Items()

	s.mu.Lock()
	s.items = append(s.items, items...)
	s.mu.Unlock()
}

// Items returns a copy of the recorded warnings.
func (s *Sink) Items() []string {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of recorded warnings.
func (s *Sink) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Log writes every warning to logger at warn level.
func (s *Sink) Log(logger *slog.Logger, args ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, w := range s.Items() {
		logger.Warn(w, args...)
	}
}
