package session

import (
	"context"
	"time"

	"github.com/justtrance-web/artvision-tg-bot/pkg/database"
	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

// DBStore persists modes in the session_modes table so every serverless
// instance sees the same state. Expired rows are filtered on read and
// deleted by Sweep.
type DBStore struct {
	db  database.DatabaseInterface
	ttl time.Duration
	now func() time.Time
}

// NewDBStore creates a database backed store
func NewDBStore(db database.DatabaseInterface, ttl time.Duration) *DBStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DBStore{db: db, ttl: ttl, now: time.Now}
}

func (s *DBStore) Get(ctx context.Context, userID int64) (models.SessionMode, error) {
	return s.db.GetSessionMode(ctx, userID, s.now())
}

func (s *DBStore) Set(ctx context.Context, userID int64, mode models.SessionMode) error {
	return s.db.SetSessionMode(ctx, userID, mode, s.now().Add(s.ttl))
}

func (s *DBStore) Clear(ctx context.Context, userID int64) error {
	return s.db.ClearSessionMode(ctx, userID)
}

func (s *DBStore) Sweep(ctx context.Context) (int, error) {
	n, err := s.db.DeleteExpiredSessions(ctx, s.now())
	return int(n), err
}
