package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/invoicely/invoicely/internal/buildinfo"
	"github.com/invoicely/invoicely/internal/project"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "invoicely",
		Short:   "Invoices kept in a git repository",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("repo", ".", "project directory")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newInvoiceCommand())
	rootCmd.AddCommand(newProductCommand())
	rootCmd.AddCommand(newRatesCommand())
	rootCmd.AddCommand(newConvertCommand())
	rootCmd.AddCommand(newServeCommand())

	return rootCmd
}

// openProject opens the project named by the --repo flag.
func openProject(cmd *cobra.Command) (*project.Project, error) {
	repoDir, err := cmd.Flags().GetString("repo")
	if err != nil {
		return nil, err
	}
	absDir, err := filepath.Abs(repoDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	return project.Open(absDir)
}
