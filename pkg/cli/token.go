package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/justtrance-web/artvision-tg-bot/pkg/utils"
)

var (
	tokenAdmin int64
	tokenTTL   time.Duration
)

func init() {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin API token",
		RunE:  runToken,
	}
	cmd.Flags().Int64Var(&tokenAdmin, "admin", 0, "Telegram user id of the admin (must be in ADMIN_IDS)")
	cmd.Flags().DurationVar(&tokenTTL, "ttl", utils.DefaultAdminTokenTTL, "Token lifetime")
	_ = cmd.MarkFlagRequired("admin")

	RootCmd.AddCommand(cmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// the API would answer 403 anyway; fail early instead of issuing a useless token
	if !cfg.Admins.Contains(tokenAdmin) {
		return fmt.Errorf("user %d is not in the admin allow-list", tokenAdmin)
	}

	token, expires, err := utils.NewJWTService(cfg.JWTSecret).GenerateAdminToken(tokenAdmin, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
	return nil
}
