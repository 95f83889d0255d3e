// Package app is the composition root: it turns a Config into a wired bot,
// HTTP handler and moderation gateway. No business logic lives here.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/justtrance-web/artvision-tg-bot/pkg/asana"
	"github.com/justtrance-web/artvision-tg-bot/pkg/bot"
	"github.com/justtrance-web/artvision-tg-bot/pkg/config"
	"github.com/justtrance-web/artvision-tg-bot/pkg/database"
	"github.com/justtrance-web/artvision-tg-bot/pkg/handlers"
	"github.com/justtrance-web/artvision-tg-bot/pkg/ideas"
	"github.com/justtrance-web/artvision-tg-bot/pkg/intent"
	"github.com/justtrance-web/artvision-tg-bot/pkg/interest"
	"github.com/justtrance-web/artvision-tg-bot/pkg/llm"
	"github.com/justtrance-web/artvision-tg-bot/pkg/moderation"
	"github.com/justtrance-web/artvision-tg-bot/pkg/notify"
	"github.com/justtrance-web/artvision-tg-bot/pkg/session"
	"github.com/justtrance-web/artvision-tg-bot/pkg/telegram"
	"github.com/justtrance-web/artvision-tg-bot/pkg/transcript"
	"github.com/justtrance-web/artvision-tg-bot/pkg/utils"
)

// App holds every long-lived component
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	DB       database.DatabaseInterface
	Telegram *telegram.Client
	Sessions session.Store
	Ideas    *ideas.Store
	Interest *interest.Tracker
	Notifier *notify.Notifier
	Gateway  *moderation.Gateway
	Bot      *bot.Bot
	JWT      *utils.JWTService
}

// New wires the application. The database comes from the pooled/optimized
// accessors, so repeated calls in one process share a connection.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := database.GetOptimizedDatabase(DatabaseConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewWithDatabase(ctx, cfg, log, db)
}

// DatabaseConfig picks the storage settings out of cfg
func DatabaseConfig(cfg *config.Config) database.DatabaseConfig {
	return database.DatabaseConfig{
		PostgresDSN: cfg.PostgresDSN,
		SQLitePath:  cfg.SQLitePath,
		SupabaseURL: cfg.SupabaseURL,
		SupabaseKey: cfg.SupabaseKey,
		Debug:       cfg.Debug,
	}
}

// NewWithDatabase wires the application on an already opened database
func NewWithDatabase(ctx context.Context, cfg *config.Config, log *zap.Logger, db database.DatabaseInterface) (*App, error) {
	tg := telegram.NewClient(cfg.TelegramAPIBase, cfg.TelegramBotToken)

	// interfaces stay nil without a key; a typed nil pointer would not compare equal to nil
	var (
		classifier  llm.Classifier
		transcriber llm.Transcriber
		summarizer  ideas.Summarizer
	)
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		classifier, transcriber, summarizer = gemini, gemini, gemini
	} else {
		log.Warn("GEMINI_API_KEY is not set: dialog classification and voice ideas are disabled")
	}

	var sessions session.Store
	switch cfg.SessionStore {
	case "database":
		sessions = session.NewDBStore(db, cfg.SessionTTL)
	default:
		sessions = session.NewMemoryStore(cfg.SessionTTL)
	}

	store := ideas.NewStore(db, summarizer, log.Named("ideas"))
	tracker := interest.NewTracker(db)
	notifier := notify.New(tg, db, cfg.FanoutDelay, log.Named("notify"))
	gateway := moderation.NewGateway(store, tracker, notifier, cfg.Admins, db, log.Named("moderation"))
	router := intent.NewRouter(sessions, transcript.NewResolver(tg, transcriber, log.Named("transcript")), log.Named("intent"))

	var reports bot.Reports
	if cfg.AsanaToken != "" {
		reports = asana.NewReporter(asana.NewClient("", cfg.AsanaToken, cfg.AsanaWorkspace), cfg.AsanaProject)
	}

	b := bot.New(bot.Deps{
		Sender:     tg,
		Clients:    db,
		Router:     router,
		Ideas:      store,
		Gateway:    gateway,
		Classifier: classifier,
		Reports:    reports,
		PortalURL:  cfg.PortalURL,
		Log:        log.Named("bot"),
	})

	return &App{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Telegram: tg,
		Sessions: sessions,
		Ideas:    store,
		Interest: tracker,
		Notifier: notifier,
		Gateway:  gateway,
		Bot:      b,
		JWT:      utils.NewJWTService(cfg.JWTSecret),
	}, nil
}

// Handler is the HTTP surface: webhook, health and admin API
func (a *App) Handler() http.Handler {
	return handlers.NewRouter(handlers.RouterDeps{
		Config:   a.Config,
		Log:      a.Log.Named("http"),
		Health:   handlers.NewHealthHandler(a.Config, a.DB),
		Telegram: handlers.NewTelegramHandler(a.Bot, a.Log.Named("webhook")),
		Admin:    handlers.NewAdminHandler(a.Gateway, a.Ideas, a.Interest, a.DB, a.Log.Named("admin")),
		Tokens:   a.JWT,
		Admins:   a.Config.Admins,
		DBStats:  database.DatabaseStats,
	})
}

// Sweeper returns the session store when it needs periodic cleanup
func (a *App) Sweeper() (session.Sweeper, bool) {
	s, ok := a.Sessions.(session.Sweeper)
	return s, ok
}
