// Package commands implements the identityctl administrative CLI.
package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/sumire/federation/internal/repository"
)

type globalFlags struct {
	driver string
	dsn    string
}

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "identityctl",
		Short: "Administer the identity store",
		Long: `identityctl inspects and edits the identity store used by the federation
server. It talks to the database directly and honours STORE_DRIVER and
DATABASE_URL unless --driver and --dsn are given.

Use "identityctl [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.driver, "driver", envOr("STORE_DRIVER", "sqlite"), "store driver (pgx or sqlite)")
	root.PersistentFlags().StringVar(&g.dsn, "dsn", envOr("DATABASE_URL", "federation.db"), "database connection string")

	root.AddCommand(newMigrateCmd(g))
	root.AddCommand(newRegisterCmd(g))
	root.AddCommand(newShowCmd(g))
	root.AddCommand(newPasswordCmd(g))
	root.CompletionOptions.DisableDefaultCmd = true

	return root
}

func (g *globalFlags) open(ctx context.Context) (repository.Store, error) {
	return repository.OpenStore(ctx, g.driver, g.dsn)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
