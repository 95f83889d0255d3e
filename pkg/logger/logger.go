// Package logger builds the process zap logger.
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON production logger or a console development logger.
// debug lowers the level to Debug in either mode.
func New(production, debug bool) (*zap.Logger, error) {
	var config zap.Config
	if production {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else if !production {
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	log, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}

var (
	cached     *zap.Logger
	cachedOnce sync.Once
)

// GetCached returns a logger built once per cold start. It falls back to a
// no-op logger when zap cannot be initialized so a request never panics.
func GetCached(production, debug bool) *zap.Logger {
	cachedOnce.Do(func() {
		log, err := New(production, debug)
		if err != nil {
			fmt.Printf("⚠️  WARNING: %v\n", err)
			log = zap.NewNop()
		}
		cached = log
	})
	return cached
}
