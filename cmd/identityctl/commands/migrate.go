package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the identity tables",
		Long: `Create the identity tables if they do not exist. The server does the same
on startup; run this to prepare a database ahead of a deploy.

Examples:
  identityctl migrate --driver pgx --dsn postgres://localhost/federation`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := g.open(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			defer func() { _ = store.Close() }()

			fmt.Fprintf(cmd.OutOrStdout(), "Migrations completed successfully (driver: %s)\n", g.driver)
			return nil
		},
	}
}
