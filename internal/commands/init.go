package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/invoicely/invoicely/internal/currency"
	"github.com/invoicely/invoicely/internal/project"
)

func newInitCommand() *cobra.Command {
	var name, email, code string
	var noGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new invoicely project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			c, err := currency.Parse(code)
			if err != nil {
				return err
			}

			hash, err := project.Init(absDir, project.InitOptions{
				Name:     name,
				Email:    email,
				Currency: c,
				Git:      !noGit,
			})
			if err != nil {
				return err
			}

			if hash != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Initialized invoicely project at %s (%s)\n", absDir, hash)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Initialized invoicely project at %s\n", absDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "business name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&email, "email", "", "business email")
	cmd.Flags().StringVar(&code, "currency", string(currency.USD), "default invoice currency")
	cmd.Flags().BoolVar(&noGit, "no-git", false, "do not create a git repository")

	return cmd
}
