package store

import (
	"context"
	"sync"
	"time"

	"eventreg/internal/registration"
	"eventreg/pkg/platform/sentinel"
)

type entry struct {
	state     registration.State
	expiresAt time.Time
}

// InMemory keeps sessions in process memory. Expired sessions are dropped
// lazily on access and by Sweep.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[string]entry
	now      func() time.Time
}

// NewInMemory creates an empty session store.
func NewInMemory() *InMemory {
	return &InMemory{
		sessions: make(map[string]entry),
		now:      time.Now,
	}
}

// WithClock overrides the clock used for expiry. Tests only.
func (s *InMemory) WithClock(now func() time.Time) *InMemory {
	s.now = now
	return s
}

func (s *InMemory) Get(_ context.Context, id string) (registration.State, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || !s.now().Before(e.expiresAt) {
		return registration.State{}, sentinel.ErrNotFound
	}
	return e.state, nil
}

func (s *InMemory) Save(_ context.Context, state registration.State, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e, ok := s.sessions[state.SessionID]
	if ok && !now.Before(e.expiresAt) {
		ok = false
	}
	if err := checkVersion(ok, e.state.Version, state.Version); err != nil {
		return err
	}
	s.sessions[state.SessionID] = entry{state: state, expiresAt: now.Add(ttl)}
	return nil
}

func (s *InMemory) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Sweep removes expired sessions and returns how many were dropped.
func (s *InMemory) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	dropped := 0
	for id, e := range s.sessions {
		if !now.Before(e.expiresAt) {
			delete(s.sessions, id)
			dropped++
		}
	}
	return dropped
}

// RunSweeper sweeps every interval until ctx is done.
func (s *InMemory) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// checkVersion enforces the SessionStore compare-and-set rule.
func checkVersion(exists bool, stored, next int64) error {
	if !exists {
		if next > 1 {
			return sentinel.ErrNotFound
		}
		return nil
	}
	if stored != next-1 {
		return sentinel.ErrConflict
	}
	return nil
}
