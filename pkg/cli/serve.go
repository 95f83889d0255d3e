package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/justtrance-web/artvision-tg-bot/pkg/database"
	"github.com/justtrance-web/artvision-tg-bot/pkg/session"
)

const shutdownTimeout = 10 * time.Second

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and admin API as a long-lived HTTP server",
		RunE:  runServe,
	})
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Log.Sync()
	defer database.CloseDatabase()

	cfg, log := a.Config, a.Log
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if sweeper, ok := a.Sweeper(); ok {
		g.Go(func() error {
			return session.RunJanitor(gctx, sweeper, session.JanitorInterval(cfg.SessionTTL), log.Named("session"))
		})
	}
	g.Go(func() error {
		return cfg.WatchAdmins(gctx, log.Named("config"))
	})

	err = g.Wait()
	log.Info("server stopped")
	return err
}
