package form

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicely/invoicely/internal/currency"
	"github.com/invoicely/invoicely/internal/engine"
	"github.com/invoicely/invoicely/internal/invoices"
	"github.com/invoicely/invoicely/internal/model"
	"github.com/invoicely/invoicely/internal/products"
	"github.com/invoicely/invoicely/internal/rates"
)

type memStore struct {
	invoices map[string]model.Invoice
	order    []string
}

func newMemStore(invs ...model.Invoice) *memStore {
	s := &memStore{invoices: make(map[string]model.Invoice)}
	for _, inv := range invs {
		s.invoices[inv.ID] = inv
		s.order = append(s.order, inv.ID)
	}
	return s
}

func (s *memStore) Get(id string) (model.Invoice, bool) {
	inv, ok := s.invoices[id]
	return inv.Clone(), ok
}

func (s *memStore) Add(inv model.Invoice) error {
	if _, ok := s.invoices[inv.ID]; ok {
		return errors.New("duplicate")
	}
	s.invoices[inv.ID] = inv.Clone()
	s.order = append(s.order, inv.ID)
	return nil
}

func (s *memStore) Update(id string, inv model.Invoice) error {
	if _, ok := s.invoices[id]; !ok {
		return errors.New("missing")
	}
	inv.ID = id
	s.invoices[id] = inv.Clone()
	return nil
}

func (s *memStore) Count() int { return len(s.invoices) }

type failingStore struct {
	*memStore
	err error
}

func (s failingStore) Add(model.Invoice) error { return s.err }

type memCatalog struct {
	products   []model.Product
	replaced   int
	replaceErr error
}

func (c *memCatalog) Get(id string) (model.Product, bool) {
	for _, p := range c.products {
		if p.ID == id {
			return p, true
		}
	}
	return model.Product{}, false
}

func (c *memCatalog) All() []model.Product {
	return append([]model.Product(nil), c.products...)
}

func (c *memCatalog) Replace(ps []model.Product) error {
	if c.replaceErr != nil {
		return c.replaceErr
	}
	c.replaced++
	c.products = append([]model.Product(nil), ps...)
	return nil
}

type staticRates currency.Rates

func (r staticRates) Snapshot() currency.Rates { return currency.Rates(r).Clone() }

var testRates = staticRates{
	currency.USD: decimal.NewFromInt(1),
	currency.JPY: decimal.NewFromInt(150),
	currency.GBP: decimal.RequireFromString("0.8"),
}

var today = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func newSession(t *testing.T, store *memStore, catalog *memCatalog) *Session {
	t.Helper()
	return New(Deps{Store: store, Catalog: catalog, Rates: testRates}, engine.Defaults{
		BillFrom:        "Test Biz",
		BillFromEmail:   "hi@test.biz",
		BillFromAddress: "2 Lane",
		Today:           today,
	})
}

func fillMetadata(t *testing.T, s *Session) {
	t.Helper()
	for name, value := range map[string]string{
		engine.FieldDateOfIssue:   "2025-04-14",
		engine.FieldBillTo:        "Acme",
		engine.FieldBillToEmail:   "ap@acme.test",
		engine.FieldBillToAddress: "1 Road",
	} {
		require.NoError(t, s.EditField(name, value))
	}
}

func fillFirstRow(t *testing.T, s *Session, name, qty, rate string) string {
	t.Helper()
	draft := s.Draft()
	itemID := draft.Items[len(draft.Items)-1].ID
	require.NoError(t, s.EditItem(itemID, engine.ItemName, name))
	require.NoError(t, s.EditItem(itemID, engine.ItemQuantity, qty))
	require.NoError(t, s.EditItem(itemID, engine.ItemRate, rate))
	return itemID
}

func storedInvoice(id string, number int) model.Invoice {
	return engine.RecomputeTotals(model.Invoice{
		ID:              id,
		InvoiceNumber:   number,
		CurrentDate:     "2025-01-01",
		DateOfIssue:     "2025-02-01",
		BillTo:          "Globex",
		BillToEmail:     "ap@globex.test",
		BillToAddress:   "3 Street",
		BillFrom:        "Test Biz",
		BillFromEmail:   "hi@test.biz",
		BillFromAddress: "2 Lane",
		TaxRate:         "10",
		Currency:        currency.USD,
		Items:           []model.LineItem{{ID: "row-1", Name: "Audit", Quantity: "2", Rate: "100"}},
	})
}

func TestNew(t *testing.T) {
	s := newSession(t, newMemStore(storedInvoice("a", 1), storedInvoice("b", 2)), &memCatalog{})

	draft := s.Draft()
	assert.Equal(t, ModeNew, s.Mode())
	assert.Equal(t, 3, draft.InvoiceNumber)
	assert.Equal(t, "2025-03-14", draft.CurrentDate)
	assert.Equal(t, currency.USD, draft.Currency)
	assert.Equal(t, "Test Biz", draft.BillFrom)
	require.Len(t, draft.Items, 1)
	assert.Equal(t, "0.00", draft.Total.StringFixed(2))
	assert.Equal(t, "$0.00", s.Total())
}

func TestAddRow_Incomplete(t *testing.T) {
	catalog := &memCatalog{}
	s := newSession(t, newMemStore(), catalog)

	_, err := s.AddRow()
	assert.ErrorIs(t, err, ErrRowIncomplete)

	itemID := s.Draft().Items[0].ID
	require.NoError(t, s.EditItem(itemID, engine.ItemName, "Design"))
	_, err = s.AddRow()
	assert.ErrorIs(t, err, ErrRowIncomplete, "quantity is still zero")

	assert.Len(t, s.Draft().Items, 1)
	assert.Empty(t, catalog.products)
}

func TestAddRow_RemembersProduct(t *testing.T) {
	catalog := &memCatalog{}
	s := newSession(t, newMemStore(), catalog)
	fillMetadata(t, s)
	itemID := fillFirstRow(t, s, "Design", "2", "45.50")

	row, err := s.AddRow()
	require.NoError(t, err)

	draft := s.Draft()
	require.Len(t, draft.Items, 2)
	assert.Equal(t, itemID, draft.Items[0].ID)
	assert.Equal(t, row.ID, draft.Items[1].ID, "new row goes last")
	assert.Equal(t, "91.00", draft.SubTotal.StringFixed(2))
	assert.Empty(t, catalog.products, "catalog is written on save")

	s.DeleteRow(itemID)
	available := s.AvailableProducts()
	require.Len(t, available, 1)
	assert.Equal(t, itemID, available[0].ID)
	assert.Equal(t, "45.5", available[0].Rate.String())
	assert.Equal(t, currency.USD, available[0].Currency)

	require.NoError(t, s.SelectProduct(itemID))
	assert.Equal(t, "Design", s.Draft().Items[0].Name)
}

func TestSelectProduct(t *testing.T) {
	catalog := &memCatalog{products: []model.Product{
		{ID: "p1", Name: "Hosting", Rate: decimal.NewFromInt(20), Currency: currency.USD},
		{ID: "p2", Name: "Support", Rate: decimal.NewFromInt(50), Currency: currency.USD},
	}}
	s := newSession(t, newMemStore(), catalog)

	assert.Len(t, s.AvailableProducts(), 2)

	require.NoError(t, s.SelectProduct("p2"))
	draft := s.Draft()
	require.Len(t, draft.Items, 2)
	assert.Equal(t, "p2", draft.Items[0].ID, "selected products go first")
	assert.Equal(t, "1", draft.Items[0].Quantity)
	assert.Equal(t, "50.00", draft.SubTotal.StringFixed(2))

	available := s.AvailableProducts()
	require.Len(t, available, 1)
	assert.Equal(t, "p1", available[0].ID)

	require.NoError(t, s.SelectProduct("p2"))
	assert.Len(t, s.Draft().Items, 2, "selecting twice is ignored")

	assert.ErrorIs(t, s.SelectProduct("nope"), ErrProductNotFound)
}

func TestSelectProduct_PricedInDraftCurrency(t *testing.T) {
	catalog := &memCatalog{products: []model.Product{
		{ID: "jp", Name: "Design", Rate: decimal.NewFromInt(1500), Currency: currency.JPY},
		{ID: "gb", Name: "Hosting", Rate: decimal.RequireFromString("8"), Currency: currency.GBP},
		{ID: "cn", Name: "Support", Rate: decimal.NewFromInt(70), Currency: currency.CNY},
	}}
	s := newSession(t, newMemStore(), catalog)

	require.NoError(t, s.SelectProduct("jp"))
	require.NoError(t, s.SelectProduct("gb"))
	draft := s.Draft()
	assert.Equal(t, currency.USD, draft.Currency)
	assert.Equal(t, "10", draft.Items[0].Rate)
	assert.Equal(t, "10", draft.Items[1].Rate)
	assert.Equal(t, "20.00", draft.SubTotal.StringFixed(2))

	before := s.Draft()
	err := s.SelectProduct("cn")
	assert.ErrorIs(t, err, currency.ErrRateUnavailable)
	assert.Equal(t, before, s.Draft())

	assert.Equal(t, currency.JPY, catalog.products[0].Currency, "catalog untouched")
}

func TestSelectProduct_NoSnapshotYet(t *testing.T) {
	catalog := &memCatalog{products: []model.Product{
		{ID: "jp", Name: "Design", Rate: decimal.NewFromInt(1500), Currency: currency.JPY},
		{ID: "us", Name: "Hosting", Rate: decimal.NewFromInt(20), Currency: currency.USD},
	}}
	fetcher := rates.NewFetcher(rates.Static{})
	s := New(Deps{Store: newMemStore(), Catalog: catalog, Rates: fetcher}, engine.Defaults{Today: today})

	assert.ErrorIs(t, s.SelectProduct("jp"), currency.ErrRateUnavailable)
	require.NoError(t, s.SelectProduct("us"), "same currency needs no rates")
	assert.Equal(t, "20", s.Draft().Items[0].Rate)
}

func TestDeleteRow(t *testing.T) {
	s := newSession(t, newMemStore(), &memCatalog{})
	itemID := fillFirstRow(t, s, "Design", "2", "10")
	_, err := s.AddRow()
	require.NoError(t, err)

	s.DeleteRow("missing")
	assert.Len(t, s.Draft().Items, 2)

	s.DeleteRow(itemID)
	draft := s.Draft()
	assert.Len(t, draft.Items, 1)
	assert.True(t, draft.SubTotal.IsZero())
}

func TestEditField_InvalidRate(t *testing.T) {
	s := newSession(t, newMemStore(), &memCatalog{})
	fillFirstRow(t, s, "Design", "1", "100")

	require.NoError(t, s.EditField(engine.FieldTaxRate, "8"))
	assert.Equal(t, "8.00", s.Draft().TaxAmount.StringFixed(2))

	err := s.EditField(engine.FieldTaxRate, "150")
	assert.ErrorIs(t, err, engine.ErrInvalidRate)
	assert.Equal(t, "8", s.Draft().TaxRate)

	assert.ErrorIs(t, s.EditField("colour", "red"), engine.ErrUnknownField)
}

func TestChangeCurrency(t *testing.T) {
	catalog := &memCatalog{products: []model.Product{
		{ID: "p1", Name: "Hosting", Rate: decimal.NewFromInt(2), Currency: currency.USD},
		{ID: "p2", Name: "Support", Rate: decimal.RequireFromString("0.8"), Currency: currency.GBP},
	}}
	s := newSession(t, newMemStore(), catalog)
	fillMetadata(t, s)
	itemID := fillFirstRow(t, s, "Design", "2", "10.00")

	require.NoError(t, s.ChangeCurrency(currency.JPY))

	draft := s.Draft()
	assert.Equal(t, currency.JPY, draft.Currency)
	assert.Equal(t, "1500", draft.Items[0].Rate)
	assert.Equal(t, "3000.00", draft.SubTotal.StringFixed(2))
	assert.Equal(t, "¥3000.00", s.Total())

	from, to := s.CurrencyChange()
	assert.Equal(t, currency.USD, from)
	assert.Equal(t, currency.JPY, to)

	assert.Equal(t, 0, catalog.replaced, "catalog is written on save")
	assert.Equal(t, currency.USD, catalog.products[0].Currency)

	_, err := s.Save()
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.replaced)

	byID := make(map[string]model.Product)
	for _, p := range catalog.products {
		byID[p.ID] = p
	}
	require.Len(t, byID, 3)
	for _, p := range byID {
		assert.Equal(t, currency.JPY, p.Currency, "product %s", p.Name)
	}
	assert.Equal(t, "300", byID["p1"].Rate.String())
	assert.Equal(t, "150", byID["p2"].Rate.String(), "priced from its own currency")
	assert.Equal(t, "1500", byID[itemID].Rate.String())
}

func TestChangeCurrency_SameCode(t *testing.T) {
	catalog := &memCatalog{}
	s := newSession(t, newMemStore(), catalog)
	fillFirstRow(t, s, "Design", "2", "10.005")
	before := s.Draft()

	require.NoError(t, s.ChangeCurrency(currency.USD))
	assert.Equal(t, before, s.Draft())
	assert.Equal(t, 0, catalog.replaced)
	from, to := s.CurrencyChange()
	assert.Empty(t, from)
	assert.Empty(t, to)
}

func TestChangeCurrency_RateUnavailable(t *testing.T) {
	catalog := &memCatalog{}
	s := newSession(t, newMemStore(), catalog)
	fillFirstRow(t, s, "Design", "2", "10")
	before := s.Draft()

	err := s.ChangeCurrency(currency.BTC)
	assert.ErrorIs(t, err, currency.ErrRateUnavailable)
	assert.Equal(t, before, s.Draft())
	assert.Equal(t, 0, catalog.replaced)
}

func TestChangeCurrency_CatalogNotConvertible(t *testing.T) {
	catalog := &memCatalog{products: []model.Product{
		{ID: "cn", Name: "Support", Rate: decimal.NewFromInt(70), Currency: currency.CNY},
	}}
	s := newSession(t, newMemStore(), catalog)
	fillFirstRow(t, s, "Design", "2", "10")
	before := s.Draft()

	err := s.ChangeCurrency(currency.JPY)
	assert.ErrorIs(t, err, currency.ErrRateUnavailable)
	assert.Equal(t, before, s.Draft())
	from, to := s.CurrencyChange()
	assert.Empty(t, from)
	assert.Empty(t, to)
}

func TestSave_CatalogFailure(t *testing.T) {
	store := newMemStore()
	catalog := &memCatalog{replaceErr: errors.New("disk full")}
	s := newSession(t, store, catalog)
	fillMetadata(t, s)
	fillFirstRow(t, s, "Design", "2", "10")
	require.NoError(t, s.ChangeCurrency(currency.JPY))

	_, err := s.Save()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 0, store.Count())
}

func TestSave_StoreFailureRestoresCatalog(t *testing.T) {
	original := []model.Product{
		{ID: "p1", Name: "Hosting", Rate: decimal.NewFromInt(2), Currency: currency.USD},
	}
	catalog := &memCatalog{products: append([]model.Product(nil), original...)}
	store := failingStore{memStore: newMemStore(), err: errors.New("read-only")}
	s := New(Deps{Store: store, Catalog: catalog, Rates: testRates}, engine.Defaults{
		BillFrom: "Test Biz", BillFromEmail: "hi@test.biz", BillFromAddress: "2 Lane", Today: today,
	})
	fillMetadata(t, s)
	fillFirstRow(t, s, "Design", "2", "10")
	require.NoError(t, s.ChangeCurrency(currency.JPY))

	_, err := s.Save()
	assert.ErrorContains(t, err, "read-only")
	assert.Equal(t, 2, catalog.replaced)
	assert.Equal(t, original, catalog.products)
}

func TestChangeCurrency_NoSnapshotYet(t *testing.T) {
	fetcher := rates.NewFetcher(rates.Static{})
	s := New(Deps{Store: newMemStore(), Catalog: &memCatalog{}, Rates: fetcher}, engine.Defaults{Today: today})

	err := s.ChangeCurrency(currency.GBP)
	assert.ErrorIs(t, err, currency.ErrRateUnavailable)
	assert.Equal(t, currency.USD, s.Draft().Currency)
}

func TestChangeCurrency_WithFetcher(t *testing.T) {
	fetcher := rates.NewFetcher(rates.Static(testRates))
	fetcher.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := fetcher.Wait(ctx)
	require.NoError(t, err)

	s := New(Deps{Store: newMemStore(), Catalog: &memCatalog{}, Rates: fetcher}, engine.Defaults{Today: today})
	fillFirstRow(t, s, "Design", "1", "10")
	require.NoError(t, s.ChangeCurrency(currency.GBP))
	assert.Equal(t, "8", s.Draft().Items[0].Rate)
}

func TestConvertForDisplay(t *testing.T) {
	s := newSession(t, newMemStore(), &memCatalog{})

	got, err := s.ConvertForDisplay(decimal.RequireFromString("12.34"), currency.USD, currency.JPY)
	require.NoError(t, err)
	assert.Equal(t, "1851.00", got.StringFixed(2))

	same, err := s.ConvertForDisplay(decimal.RequireFromString("12.345"), currency.GBP, currency.GBP)
	require.NoError(t, err)
	assert.Equal(t, "12.345", same.String())

	_, err = s.ConvertForDisplay(decimal.NewFromInt(1), currency.USD, currency.CNY)
	assert.ErrorIs(t, err, currency.ErrRateUnavailable)
	assert.Equal(t, currency.USD, s.Draft().Currency)
}

func TestCopyFrom(t *testing.T) {
	store := newMemStore(storedInvoice("src", 1))
	s := newSession(t, store, &memCatalog{})
	own := s.Draft()

	err := s.CopyFrom("missing")
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
	assert.Equal(t, own, s.Draft())

	require.NoError(t, s.CopyFrom("src"))
	draft := s.Draft()
	assert.Equal(t, own.ID, draft.ID)
	assert.Equal(t, own.InvoiceNumber, draft.InvoiceNumber)
	assert.Equal(t, "Globex", draft.BillTo)
	assert.Equal(t, "220.00", draft.Total.StringFixed(2))
}

func TestReview_Validation(t *testing.T) {
	s := newSession(t, newMemStore(), &memCatalog{})

	_, err := s.Review()
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := make(map[string]bool)
	for _, e := range verrs {
		fields[e.Field] = true
	}
	assert.True(t, fields[engine.FieldDateOfIssue])
	assert.True(t, fields[engine.FieldBillTo])
	assert.True(t, fields[engine.FieldBillToEmail])
	assert.False(t, fields[engine.FieldBillFrom], "bill from comes from defaults")

	fillMetadata(t, s)
	inv, err := s.Review()
	require.NoError(t, err)
	assert.Equal(t, "Acme", inv.BillTo)
}

func TestSave_New(t *testing.T) {
	store := newMemStore()
	catalog := &memCatalog{}
	s := newSession(t, store, catalog)
	fillMetadata(t, s)
	fillFirstRow(t, s, "Design", "3", "9.99")

	inv, err := s.Save()
	require.NoError(t, err)
	assert.Equal(t, 1, store.Count())

	stored, ok := store.Get(inv.ID)
	require.True(t, ok)
	assert.Equal(t, "29.97", stored.Total.StringFixed(2))
	require.Len(t, catalog.products, 1)
	assert.Equal(t, "Design", catalog.products[0].Name)
}

func TestSave_Edit(t *testing.T) {
	store := newMemStore(storedInvoice("src", 1))
	deps := Deps{Store: store, Catalog: &memCatalog{}, Rates: testRates}

	s, err := Edit(deps, "src")
	require.NoError(t, err)
	assert.Equal(t, ModeEdit, s.Mode())
	require.NoError(t, s.EditField(engine.FieldBillTo, "Initech"))

	inv, err := s.Save()
	require.NoError(t, err)
	assert.Equal(t, "src", inv.ID)
	assert.Equal(t, 1, store.Count())
	stored, _ := store.Get("src")
	assert.Equal(t, "Initech", stored.BillTo)
}

func TestSave_Copy(t *testing.T) {
	store := newMemStore(storedInvoice("src", 1))
	deps := Deps{Store: store, Catalog: &memCatalog{}, Rates: testRates}

	s, err := Copy(deps, "src")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Draft().InvoiceNumber)

	inv, err := s.Save()
	require.NoError(t, err)
	assert.NotEqual(t, "src", inv.ID)
	assert.Equal(t, 2, store.Count())

	orig, _ := store.Get("src")
	assert.Equal(t, 1, orig.InvoiceNumber)
}

func TestEditAndCopy_NotFound(t *testing.T) {
	deps := Deps{Store: newMemStore(), Catalog: &memCatalog{}, Rates: testRates}
	_, err := Edit(deps, "nope")
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
	_, err = Copy(deps, "nope")
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestSave_WithFileStores(t *testing.T) {
	dir := t.TempDir()
	store := invoices.NewService(dir)
	catalog := products.NewService(dir, nil)
	deps := Deps{Store: store, Catalog: catalog, Rates: testRates}

	s := New(deps, engine.Defaults{
		BillFrom: "Test Biz", BillFromEmail: "hi@test.biz", BillFromAddress: "2 Lane", Today: today,
	})
	fillMetadata(t, s)
	fillFirstRow(t, s, "Design", "2", "10")
	require.NoError(t, s.ChangeCurrency(currency.JPY))

	inv, err := s.Save()
	require.NoError(t, err)

	reloaded, err := invoices.Load(dir)
	require.NoError(t, err)
	got, ok := reloaded.Get(inv.ID)
	require.True(t, ok)
	assert.Equal(t, currency.JPY, got.Currency)
	assert.Equal(t, "3000.00", got.SubTotal.StringFixed(2))

	cat, err := products.Load(dir)
	require.NoError(t, err)
	require.Len(t, cat.All(), 1)
	assert.Equal(t, currency.JPY, cat.All()[0].Currency)
	assert.Equal(t, "1500", cat.All()[0].Rate.String())
}
