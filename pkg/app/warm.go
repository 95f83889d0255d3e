package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/justtrance-web/artvision-tg-bot/pkg/config"
	"github.com/justtrance-web/artvision-tg-bot/pkg/database"
)

// OpenFunc hands out the database for one request
type OpenFunc func(database.DatabaseConfig) (database.DatabaseInterface, error)

// Warm keeps a wired handler across requests of a serverless instance.
// The database is fetched from open on every request, which keeps pooled
// connections marked as used; the app is rebuilt when open returns a
// different connection (the previous one was swept or failed its health check).
type Warm struct {
	cfg  *config.Config
	log  *zap.Logger
	open OpenFunc

	mu      sync.Mutex
	db      database.DatabaseInterface
	handler http.Handler
}

// NewWarm returns a Warm that opens storage with open
func NewWarm(cfg *config.Config, log *zap.Logger, open OpenFunc) *Warm {
	return &Warm{cfg: cfg, log: log, open: open}
}

// Handler returns the handler bound to the current connection
func (w *Warm) Handler(ctx context.Context) (http.Handler, error) {
	db, err := w.open(DatabaseConfig(w.cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.handler != nil && w.db == db {
		return w.handler, nil
	}
	if w.handler != nil {
		w.log.Info("database connection replaced, rewiring application")
	}

	a, err := NewWithDatabase(context.WithoutCancel(ctx), w.cfg, w.log, db)
	if err != nil {
		return nil, err
	}
	w.db, w.handler = db, a.Handler()
	return w.handler, nil
}
