package session

import (
	"context"
	"sync"
	"time"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

type entry struct {
	mode      models.SessionMode
	expiresAt time.Time
}

// MemoryStore keeps modes in process memory. Suitable for a single
// long-running `serve` process; serverless deployments use DBStore.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[int64]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a store whose modes live for ttl
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[int64]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (models.SessionMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok {
		return models.ModeNone, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, userID)
		return models.ModeNone, nil
	}
	return e.mode, nil
}

func (s *MemoryStore) Set(ctx context.Context, userID int64, mode models.SessionMode) error {
	if mode == models.ModeNone {
		return s.Clear(ctx, userID)
	}
	s.mu.Lock()
	s.entries[userID] = entry{mode: mode, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	delete(s.entries, userID)
	s.mu.Unlock()
	return nil
}

// Sweep drops every expired entry
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
