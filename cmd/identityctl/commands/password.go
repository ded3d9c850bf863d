package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sumire/federation/internal/service"
)

func newPasswordCmd(g *globalFlags) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "password <email|id>",
		Short: "Set an identity's password",
		Long: `Set or replace the local password of an identity. Provider-only
identities gain email and password sign-in.

Examples:
  identityctl password alice@example.com --password 'battery staple'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ident, err := lookup(ctx, store, args[0])
			if err != nil {
				return err
			}
			if err := service.NewCredentialVerifier(store, nil).SetPassword(ctx, ident.ID, password); err != nil {
				return fmt.Errorf("failed to set password: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Password set for %s\n", ident.Email)
			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "new password (8 to 72 characters)")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
