package cli

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/justtrance-web/artvision-tg-bot/pkg/database"
	"github.com/justtrance-web/artvision-tg-bot/pkg/mcpserver"
)

var mcpModerator int64

func init() {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the moderation queue as MCP tools over stdio",
		RunE:  runMCP,
	}
	cmd.Flags().Int64Var(&mcpModerator, "as", 0, "Telegram user id the tools act as (must be in ADMIN_IDS)")
	_ = cmd.MarkFlagRequired("as")

	RootCmd.AddCommand(cmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	// stdout carries the protocol; anything else printed there breaks the client
	protocolOut := os.Stdout
	os.Stdout = os.Stderr
	defer func() { os.Stdout = protocolOut }()

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer database.CloseDatabase()

	if !a.Gateway.IsAdmin(mcpModerator) {
		return fmt.Errorf("user %d is not in the admin allow-list", mcpModerator)
	}

	s := mcpserver.New(a.Gateway, a.Ideas, mcpModerator)
	return server.NewStdioServer(s).Listen(cmd.Context(), os.Stdin, protocolOut)
}
