// Package project opens an invoicely project directory: its config, stores,
// rate source, git history and activity log.
package project

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/invoicely/invoicely/internal/activity"
	"github.com/invoicely/invoicely/internal/config"
	"github.com/invoicely/invoicely/internal/currency"
	"github.com/invoicely/invoicely/internal/engine"
	"github.com/invoicely/invoicely/internal/form"
	"github.com/invoicely/invoicely/internal/gitops"
	"github.com/invoicely/invoicely/internal/id"
	"github.com/invoicely/invoicely/internal/invoices"
	"github.com/invoicely/invoicely/internal/products"
	"github.com/invoicely/invoicely/internal/rates"
)

// Project is an opened project directory.
type Project struct {
	Root     string
	Config   *config.Config
	Invoices *invoices.Service
	Products *products.Service
	Rates    *rates.Fetcher
}

// Open loads the project rooted at root. Exchange rates are not requested
// until StartRates or WaitRates.
func Open(root string) (*Project, error) {
	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", config.FileName, err)
	}
	invs, err := invoices.Load(root)
	if err != nil {
		return nil, err
	}
	prods, err := products.Load(root)
	if err != nil {
		return nil, err
	}
	p := &Project{Root: root, Config: cfg, Invoices: invs, Products: prods}
	p.Rates = rates.NewFetcher(p.RateSource())
	return p, nil
}

// RateSource returns the configured exchange rate source.
func (p *Project) RateSource() rates.Source {
	if p.Config.Rates.Source == config.RateSourceHTTP {
		return rates.HTTPSource{
			URL:    p.Config.Rates.URL,
			Client: &http.Client{Timeout: p.Config.RatesTimeout()},
		}
	}
	path := p.Config.Rates.Path
	if path == "" {
		path = RatesFile
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.Root, path)
	}
	return rates.FileSource{Path: path}
}

// StartRates requests exchange rates in the background.
func (p *Project) StartRates(ctx context.Context) {
	p.Rates.Start(ctx)
}

// WaitRates blocks until exchange rates arrive or the configured timeout passes.
func (p *Project) WaitRates(ctx context.Context) (currency.Rates, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Config.RatesTimeout())
	defer cancel()
	table, err := p.Rates.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading exchange rates: %w", err)
	}
	return table, nil
}

// Deps wires the project stores into a form session.
func (p *Project) Deps() form.Deps {
	return form.Deps{Store: p.Invoices, Catalog: p.Products, Rates: p.Rates}
}

// Defaults returns the new-draft defaults from config.
func (p *Project) Defaults() engine.Defaults {
	return engine.Defaults{
		Currency:        p.Config.DefaultCurrency(),
		TaxRate:         p.Config.Invoice.TaxRate,
		DiscountRate:    p.Config.Invoice.DiscountRate,
		Notes:           p.Config.Invoice.Notes,
		BillFrom:        p.Config.Business.Name,
		BillFromEmail:   p.Config.Business.Email,
		BillFromAddress: p.Config.Business.Address,
		Today:           time.Now(),
	}
}

// DataPaths returns every file the stores write, relative to the root.
func DataPaths() []string {
	return append(invoices.Paths(), products.Paths()...)
}

// Change describes one recorded change to the project.
type Change struct {
	Actor     string
	Action    activity.Action
	InvoiceID string
	Details   string
}

// Record appends the change to the activity log and, when auto-commit is
// on, commits the store files and the log together. It returns the commit
// hash, or "" when nothing was committed.
func (p *Project) Record(c Change) (string, error) {
	entry := activity.Entry{
		ID:        id.NewID(),
		Timestamp: time.Now(),
		Actor:     c.Actor,
		Action:    c.Action,
		InvoiceID: c.InvoiceID,
		Details:   c.Details,
	}
	if err := activity.Append(p.Root, entry); err != nil {
		return "", fmt.Errorf("writing activity log: %w", err)
	}
	if !p.Config.Git.AutoCommit || !gitops.IsRepo(p.Root) {
		return "", nil
	}

	paths := append(DataPaths(), activity.File)
	hash, err := gitops.Commit(p.Root, entry.CommitMessage(), p.author(), existing(p.Root, paths)...)
	if err != nil {
		return "", fmt.Errorf("committing %s: %w", c.Action, err)
	}
	return hash, nil
}

// Event is an activity entry with the commit that recorded it, if any.
type Event struct {
	activity.Entry
	Commit string
}

// History returns the activity entries matching f, oldest first, each
// joined with its commit through the Activity-Id trailer.
func (p *Project) History(f activity.Filter) ([]Event, error) {
	entries, err := activity.Query(p.Root, f)
	if err != nil {
		return nil, err
	}

	commits := make(map[string]string)
	if gitops.IsRepo(p.Root) {
		log, err := gitops.Log(p.Root)
		if err != nil {
			return nil, err
		}
		for _, c := range log {
			if entryID, ok := activity.EntryID(c.Message); ok {
				commits[entryID] = c.Hash
			}
		}
	}

	events := make([]Event, len(entries))
	for i, e := range entries {
		events[i] = Event{Entry: e, Commit: commits[e.ID]}
	}
	return events, nil
}

func (p *Project) author() gitops.Author {
	return gitops.Author{Name: p.Config.Git.AuthorName, Email: p.Config.Git.AuthorEmail}
}

func existing(root string, paths []string) []string {
	var out []string
	for _, rel := range paths {
		if _, err := os.Stat(filepath.Join(root, rel)); err == nil {
			out = append(out, rel)
		}
	}
	return out
}
