// Package ratelimit throttles evaluation requests per client. Buckets live in
// process (MemoryStore) or in Redis when several API replicas share limits.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrLimited is returned by Check when a client has no tokens left.
var ErrLimited = errors.New("ratelimit: limit exceeded")

// Policy defines limits.
type Policy struct {
	RPM   int
	Burst int
}

// perSecond returns the refill rate, never less than one per minute.
func (p Policy) perSecond() float64 {
	if p.RPM <= 0 {
		return 1.0 / 60
	}
	return float64(p.RPM) / 60.0
}

func (p Policy) burst() int {
	if p.Burst <= 0 {
		return 1
	}
	return p.Burst
}

// Store abstracts the storage for rate limiting buckets.
type Store interface {
	// Allow consumes cost tokens from key's bucket and reports whether
	// there were enough.
	Allow(ctx context.Context, key string, policy Policy, cost int) (bool, error)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryStore keeps one limiter per key in process.
type MemoryStore struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

// NewMemoryStore returns an empty store. now defaults to time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{visitors: make(map[string]*visitor), now: now}
}

func (s *MemoryStore) Allow(_ context.Context, key string, policy Policy, cost int) (bool, error) {
	now := s.now()
	s.mu.Lock()
	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(policy.perSecond()), policy.burst())}
		s.visitors[key] = v
	}
	v.lastSeen = now
	s.mu.Unlock()
	return v.limiter.AllowN(now, cost), nil
}

// Prune drops keys idle for longer than idle and returns how many remain.
func (s *MemoryStore) Prune(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, v := range s.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(s.visitors, key)
		}
	}
	return len(s.visitors)
}

// PruneEvery runs Prune on interval until ctx is done.
func (s *MemoryStore) PruneEvery(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Prune(idle)
		}
	}
}

// Check consumes one token for key. A store failure is returned wrapped; an
// exhausted bucket returns ErrLimited.
func Check(ctx context.Context, store Store, key string, policy Policy) error {
	if store == nil {
		return fmt.Errorf("ratelimit: no store configured")
	}
	allowed, err := store.Allow(ctx, key, policy, 1)
	if err != nil {
		return fmt.Errorf("ratelimit: check %s: %w", key, err)
	}
	if !allowed {
		return fmt.Errorf("%w for %s", ErrLimited, key)
	}
	return nil
}
