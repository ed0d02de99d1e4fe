package memory

import (
	"context"
	"sync"

	audit "eventreg/pkg/platform/audit"
)

// DefaultCapacity is the number of events kept when no capacity is given.
const DefaultCapacity = 10000

// InMemoryStore keeps the most recent audit events in insertion order. Once
// full, each append evicts the oldest event.
type InMemoryStore struct {
	mu       sync.RWMutex
	events   []audit.Event
	start    int
	capacity int
}

// Option configures an InMemoryStore.
type Option func(*InMemoryStore)

// WithCapacity bounds the number of retained events. Non-positive values keep
// the default.
func WithCapacity(n int) Option {
	return func(s *InMemoryStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) < s.capacity {
		s.events = append(s.events, event)
		return nil
	}
	s.events[s.start] = event
	s.start = (s.start + 1) % s.capacity
	return nil
}

// List returns matching events, oldest first. With a limit, the most recent
// matches are kept.
func (s *InMemoryStore) List(_ context.Context, filter audit.Filter) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]audit.Event, 0)
	for i := range s.events {
		e := s.events[(s.start+i)%len(s.events)]
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}
