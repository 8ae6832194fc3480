// Package session tracks short-lived conversational state: the
// product a quantity question refers to, and a per-conversation lock
// so overlapping messages from the same chat are handled one at a
// time.
package session

import (
	"context"
	"sync"
	"time"

	"pescheria-bot/internal/metrics"
)

const defaultTTL = 10 * time.Minute

type pendingRef struct {
	name    string
	expires time.Time
}

type convoLock struct {
	mu   sync.Mutex
	refs int
}

// Store keeps pending product references with a sliding expiry.
type Store struct {
	ttl     time.Duration
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex
	pending map[string]pendingRef
	locks   map[string]*convoLock
}

func NewStore(ttl time.Duration, m *metrics.Metrics) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{
		ttl:     ttl,
		metrics: m,
		now:     time.Now,
		pending: map[string]pendingRef{},
		locks:   map[string]*convoLock{},
	}
}

// SetPending records which product the next bare quantity answer
// refers to. A newer reference overwrites the previous one.
func (s *Store) SetPending(chatID, productName string) {
	if productName == "" {
		return
	}
	s.mu.Lock()
	s.pending[chatID] = pendingRef{name: productName, expires: s.now().Add(s.ttl)}
	size := len(s.pending)
	s.mu.Unlock()
	s.gauge(size)
}

// TakePending reads and removes the pending reference, if one is
// still alive. A consumed or expired reference is gone either way.
func (s *Store) TakePending(chatID string) (string, bool) {
	s.mu.Lock()
	ref, ok := s.pending[chatID]
	if ok {
		delete(s.pending, chatID)
	}
	size := len(s.pending)
	s.mu.Unlock()
	s.gauge(size)
	if !ok || s.now().After(ref.expires) {
		return "", false
	}
	return ref.name, true
}

// Lock serializes handling for one conversation. The returned func
// releases it. Entries are reference-counted so a conversation with
// no waiters leaves nothing behind in the map.
func (s *Store) Lock(chatID string) func() {
	s.mu.Lock()
	l, ok := s.locks[chatID]
	if !ok {
		l = &convoLock{}
		s.locks[chatID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, chatID)
		}
		s.mu.Unlock()
	}
}

// Sweep drops expired references until the context is cancelled.
func (s *Store) Sweep(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			for id, ref := range s.pending {
				if now.After(ref.expires) {
					delete(s.pending, id)
				}
			}
			size := len(s.pending)
			s.mu.Unlock()
			s.gauge(size)
		}
	}
}

func (s *Store) gauge(size int) {
	if s.metrics != nil {
		s.metrics.PendingRefs.Set(float64(size))
	}
}
