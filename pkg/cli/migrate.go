package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justtrance-web/artvision-tg-bot/pkg/app"
	"github.com/justtrance-web/artvision-tg-bot/pkg/database"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables",
		Long:  "Creates tables on PostgreSQL or SQLite. Supabase has no DDL over REST, so the schema is printed for the SQL editor instead.",
		RunE:  runMigrate,
	})
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := database.GetDatabase(app.DatabaseConfig(cfg))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.CloseDatabase()

	m, ok := db.(database.Migrator)
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "-- run this in the Supabase SQL editor")
		fmt.Fprint(cmd.OutOrStdout(), database.PostgresSchema)
		return nil
	}
	if err := m.Migrate(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✅ schema is up to date")
	return nil
}
