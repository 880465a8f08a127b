package project

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicely/invoicely/internal/activity"
	"github.com/invoicely/invoicely/internal/config"
	"github.com/invoicely/invoicely/internal/currency"
	"github.com/invoicely/invoicely/internal/engine"
	"github.com/invoicely/invoicely/internal/rates"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func initProject(t *testing.T, git bool) string {
	t.Helper()
	dir := t.TempDir()
	_, err := Init(dir, InitOptions{Name: "Test Biz", Email: "hi@test.biz", Currency: currency.GBP, Git: git})
	require.NoError(t, err)
	return dir
}

func TestInit_Layout(t *testing.T) {
	dir := initProject(t, false)

	for _, p := range append(DataPaths(), config.FileName, RatesFile, ".gitignore", activity.File) {
		_, err := os.Stat(filepath.Join(dir, p))
		assert.NoError(t, err, "%s should exist", p)
	}

	entries, err := activity.Query(dir, activity.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, activity.ActionInit, entries[0].Action)
}

func TestInit_Twice(t *testing.T) {
	dir := initProject(t, false)
	_, err := Init(dir, InitOptions{Name: "Again"})
	assert.ErrorContains(t, err, "already exists")
}

func TestInit_BadCurrency(t *testing.T) {
	_, err := Init(t.TempDir(), InitOptions{Name: "X", Currency: "EUR"})
	assert.ErrorIs(t, err, currency.ErrUnknownCurrency)
}

func TestOpen(t *testing.T) {
	dir := initProject(t, false)

	p, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Invoices.Count())
	assert.Empty(t, p.Products.All())

	d := p.Defaults()
	assert.Equal(t, currency.GBP, d.Currency)
	assert.Equal(t, "Test Biz", d.BillFrom)
	assert.Equal(t, "hi@test.biz", d.BillFromEmail)

	src, ok := p.RateSource().(rates.FileSource)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, RatesFile), src.Path)
}

func TestOpen_MissingConfig(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.ErrorContains(t, err, "loading invoicely.yaml")
}

func TestOpen_HTTPSource(t *testing.T) {
	dir := initProject(t, false)
	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	cfg.Rates.Source = config.RateSourceHTTP
	cfg.Rates.URL = "http://127.0.0.1:1/rates"
	require.NoError(t, config.Save(filepath.Join(dir, config.FileName), cfg))

	p, err := Open(dir)
	require.NoError(t, err)
	src, ok := p.RateSource().(rates.HTTPSource)
	require.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:1/rates", src.URL)
}

func TestWaitRates(t *testing.T) {
	p, err := Open(initProject(t, false))
	require.NoError(t, err)

	table, err := p.WaitRates(context.Background())
	require.NoError(t, err)
	assert.True(t, table.Has(currency.Codes...))
	assert.NotNil(t, p.Rates.Snapshot())
}

func gitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err)
	return string(out)
}

func TestRecord_WithoutGit(t *testing.T) {
	dir := initProject(t, false)
	p, err := Open(dir)
	require.NoError(t, err)

	hash, err := p.Record(Change{Actor: "cli", Action: activity.ActionInvoiceCreated, InvoiceID: "inv-1", Details: "INV-0001"})
	require.NoError(t, err)
	assert.Empty(t, hash)

	events, err := p.History(activity.Filter{InvoiceID: "inv-1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "cli", events[0].Actor)
	assert.Empty(t, events[0].Commit)
}

func TestRecord_UnknownAction(t *testing.T) {
	p, err := Open(initProject(t, false))
	require.NoError(t, err)
	_, err = p.Record(Change{Actor: "cli", Action: "invoice_deleted"})
	assert.ErrorIs(t, err, activity.ErrUnknownAction)
}

func TestRecord_CommitsLogWithChange(t *testing.T) {
	requireGit(t)
	dir := initProject(t, true)
	p, err := Open(dir)
	require.NoError(t, err)

	inv := engine.NewDraft(1, p.Defaults())
	require.NoError(t, p.Invoices.Add(inv))

	hash, err := p.Record(Change{Actor: "cli", Action: activity.ActionInvoiceCreated, InvoiceID: inv.ID, Details: "INV-0001"})
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	assert.Contains(t, gitOutput(t, dir, "log", "--format=%s", "-1"), "invoice_created: INV-0001")
	assert.Empty(t, gitOutput(t, dir, "status", "--porcelain"), "log and stores committed together")

	events, err := p.History(activity.Filter{InvoiceID: inv.ID})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, hash, events[0].Commit)

	all, err := p.History(activity.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, activity.ActionInit, all[0].Action)
	assert.NotEmpty(t, all[0].Commit, "init entry links to the initial commit")
}
