package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sumire/federation/internal/service"
)

func newRegisterCmd(g *globalFlags) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Register a local identity",
		Long: `Register an identity that signs in with email and password.

Examples:
  identityctl register alice@example.com --password 'correct horse'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ident, err := service.NewCredentialVerifier(store, nil).Register(cmd.Context(), args[0], password)
			if err != nil {
				return fmt.Errorf("failed to register %s: %w", args[0], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (id %s)\n", ident.Email, ident.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "password (8 to 72 characters)")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
