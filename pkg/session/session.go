// Package session keeps the per-user conversation mode that biases how the
// next freeform message is routed. Modes expire after a TTL; a background
// sweep removes them whether or not the user writes again.
package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

// DefaultTTL is how long awaiting_idea survives without a follow-up message
const DefaultTTL = 5 * time.Minute

// Store is the get/set/clear contract used by the intent router.
// Absence of a mode reads as models.ModeNone.
type Store interface {
	Get(ctx context.Context, userID int64) (models.SessionMode, error)
	Set(ctx context.Context, userID int64, mode models.SessionMode) error
	Clear(ctx context.Context, userID int64) error
}

// Sweeper removes expired modes
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// RunJanitor sweeps every interval until ctx is done
func RunJanitor(ctx context.Context, s Sweeper, interval time.Duration, log *zap.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("expired session modes removed", zap.Int("count", n))
			}
		}
	}
}

// JanitorInterval picks a sweep period for a TTL
func JanitorInterval(ttl time.Duration) time.Duration {
	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}
