// Package cli implements the artvision-bot commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justtrance-web/artvision-tg-bot/pkg/app"
	"github.com/justtrance-web/artvision-tg-bot/pkg/config"
	"github.com/justtrance-web/artvision-tg-bot/pkg/logger"
)

var configFile string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "artvision-bot",
	Short:         "Artvision client bot: ideas, moderation and Asana reports",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (default: $CONFIG_FILE)")
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := RootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment (plus the YAML file) and validates it
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		os.Setenv("CONFIG_FILE", configFile)
	}
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(cfg.IsProduction(), cfg.Debug)
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, log)
}
