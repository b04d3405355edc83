package funnel

import (
	"context"
	"sync"
	"time"
)

type sessionEntry struct {
	mu      sync.Mutex
	state   State
	touched time.Time
	gone    bool
}

// MemoryStore is the default in-process Store: a map of sessions with
// one mutex per session id. With idleTTL > 0 a background sweeper
// evicts sessions untouched for that long; with 0 sessions live until
// process exit.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]*sessionEntry
	idleTTL  time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates a MemoryStore. idleTTL of 0 disables eviction.
func NewMemoryStore(idleTTL time.Duration) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[int64]*sessionEntry),
		idleTTL:  idleTTL,
		stop:     make(chan struct{}),
	}
	if idleTTL > 0 {
		go s.sweepLoop()
	}
	return s
}

// Get returns the session's state, or Start for an unknown session.
func (s *MemoryStore) Get(_ context.Context, sessionID int64) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[sessionID]; ok {
		return e.state, nil
	}
	return Start{}, nil
}

// Put replaces the session's state wholesale.
func (s *MemoryStore) Put(_ context.Context, sessionID int64, st State) error {
	e := s.entry(sessionID)
	s.mu.Lock()
	e.state = st
	e.touched = time.Now()
	s.mu.Unlock()
	return nil
}

// Acquire blocks until the caller owns the session's exclusive section
// and returns the release function. Distinct sessions never contend.
func (s *MemoryStore) Acquire(sessionID int64) func() {
	for {
		e := s.entry(sessionID)
		e.mu.Lock()
		if e.gone {
			// evicted between lookup and lock; retry with a fresh entry
			e.mu.Unlock()
			continue
		}
		return e.mu.Unlock
	}
}

// Close stops the idle sweeper, if any.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Len reports the number of tracked sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemoryStore) entry(sessionID int64) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		e = &sessionEntry{state: Start{}, touched: time.Now()}
		s.sessions[sessionID] = e
	}
	return e
}

func (s *MemoryStore) sweepLoop() {
	interval := s.idleTTL / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.sessions {
		if now.Sub(e.touched) < s.idleTTL {
			continue
		}
		// only evict sessions nobody is transitioning right now
		if !e.mu.TryLock() {
			continue
		}
		e.gone = true
		delete(s.sessions, id)
		e.mu.Unlock()
	}
}
