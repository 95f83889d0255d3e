package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/justtrance-web/artvision-tg-bot/pkg/telegram"
	"github.com/justtrance-web/artvision-tg-bot/pkg/utils"
)

var (
	webhookURL    string
	webhookSecret string
)

func init() {
	webhook := &cobra.Command{
		Use:   "webhook",
		Short: "Manage the Telegram webhook registration",
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Point Telegram at <url>/api/telegram",
		RunE:  runWebhookSet,
	}
	set.Flags().StringVar(&webhookURL, "url", "", "Public base URL of the deployment")
	set.Flags().StringVar(&webhookSecret, "secret", "", "secret_token (default: TELEGRAM_WEBHOOK_SECRET, generated when both are empty)")
	_ = set.MarkFlagRequired("url")

	webhook.AddCommand(set)
	RootCmd.AddCommand(webhook)
}

func runWebhookSet(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}

	secret := webhookSecret
	if secret == "" {
		secret = cfg.TelegramWebhookSecret
	}
	generated := false
	if secret == "" {
		if secret, err = utils.GenerateWebhookSecret(0); err != nil {
			return err
		}
		generated = true
	}

	url := strings.TrimRight(webhookURL, "/")
	if !strings.HasSuffix(url, "/api/telegram") {
		url += "/api/telegram"
	}

	tg := telegram.NewClient(cfg.TelegramAPIBase, cfg.TelegramBotToken)
	me, err := tg.GetMe(cmd.Context())
	if err != nil {
		return fmt.Errorf("check bot token: %w", err)
	}
	if err := tg.SetWebhook(cmd.Context(), url, secret); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✅ @%s now receives updates at %s\n", me.Username, url)
	if generated {
		fmt.Fprintf(out, "set TELEGRAM_WEBHOOK_SECRET=%s on the deployment\n", secret)
	}
	return nil
}
