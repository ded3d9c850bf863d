package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sumire/federation/internal/domain"
	"github.com/sumire/federation/internal/repository"
)

func newShowCmd(g *globalFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <email|id>",
		Short: "Show an identity and its linked providers",
		Long: `Show an identity by email or id. Tokens and the password hash are never
printed.

Examples:
  identityctl show alice@example.com
  identityctl show 6f1c... -o json`,
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

			switch output {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(ident)
			case "table":
				printIdentity(cmd.OutOrStdout(), ident)
				return nil
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table or json)")
	return cmd
}

// lookup treats arguments containing "@" as emails and anything else as ids.
func lookup(ctx context.Context, store repository.Store, ref string) (*domain.Identity, error) {
	var (
		ident *domain.Identity
		err   error
	)
	if strings.Contains(ref, "@") {
		ident, err = store.FindByEmail(ctx, ref)
	} else {
		ident, err = store.FindByID(ctx, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("identity %s: %w", ref, err)
	}
	return ident, nil
}

func printIdentity(w io.Writer, ident *domain.Identity) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"FIELD", "VALUE"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	password := "no"
	if ident.Credential != "" {
		password = "yes"
	}
	table.Append([]string{"ID", ident.ID})
	table.Append([]string{"Email", ident.Email})
	table.Append([]string{"Name", orDash(ident.Profile.Name)})
	table.Append([]string{"Password", password})
	table.Append([]string{"Created", ident.CreatedAt.Format("2006-01-02 15:04:05")})

	kinds := make([]domain.ProviderKind, 0, len(ident.ProviderIDs))
	for kind := range ident.ProviderIDs {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	for _, kind := range kinds {
		table.Append([]string{"Provider " + string(kind), ident.ProviderIDs[kind]})
	}
	for _, kind := range ident.LinkedKinds() {
		table.Append([]string{"Token", string(kind)})
	}

	table.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
