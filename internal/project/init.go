package project

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/invoicely/invoicely/internal/activity"
	"github.com/invoicely/invoicely/internal/config"
	"github.com/invoicely/invoicely/internal/currency"
	"github.com/invoicely/invoicely/internal/gitops"
	"github.com/invoicely/invoicely/internal/id"
	"github.com/invoicely/invoicely/internal/invoices"
	"github.com/invoicely/invoicely/internal/products"
	"github.com/invoicely/invoicely/internal/rates"
)

// RatesFile is the default exchange rate file, relative to the root.
const RatesFile = "rates.yaml"

// InitOptions configures a new project.
type InitOptions struct {
	Name     string
	Email    string
	Currency currency.Code
	Git      bool
}

// Init lays out a new project at dir and, when opts.Git is set, makes the
// initial commit. It returns the commit hash, empty without git.
func Init(dir string, opts InitOptions) (string, error) {
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
		return "", fmt.Errorf("%s already exists in %s", config.FileName, dir)
	}

	for _, d := range []string{"invoices", "catalog", "logs", "exports"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return "", fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default(opts.Name, opts.Email)
	if opts.Currency != "" {
		cfg.Invoice.Currency = string(opts.Currency)
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return "", fmt.Errorf("writing config: %w", err)
	}

	if err := rates.WriteFile(filepath.Join(dir, RatesFile), currency.USD, rates.DefaultTable()); err != nil {
		return "", err
	}

	if err := invoices.NewService(dir).Save(); err != nil {
		return "", fmt.Errorf("writing invoice store: %w", err)
	}
	if err := products.NewService(dir, nil).Save(); err != nil {
		return "", fmt.Errorf("writing product catalog: %w", err)
	}

	gitignore := "exports/\n*.pdf\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return "", fmt.Errorf("writing .gitignore: %w", err)
	}

	entry := activity.Entry{
		ID:        id.NewID(),
		Timestamp: time.Now(),
		Actor:     "cli",
		Action:    activity.ActionInit,
		Details:   "Initialize " + opts.Name,
	}
	if err := activity.Append(dir, entry); err != nil {
		return "", fmt.Errorf("writing activity log: %w", err)
	}

	if !opts.Git {
		return "", nil
	}
	if err := gitops.Init(dir); err != nil {
		return "", err
	}
	author := gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail}
	hash, err := gitops.Commit(dir, entry.CommitMessage(), author)
	if err != nil {
		return "", fmt.Errorf("initial commit: %w", err)
	}
	return hash, nil
}
