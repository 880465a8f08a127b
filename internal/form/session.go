// Package form drives one invoice draft from opening to save: it applies
// user edits through the engine, keeps the product catalog in step with
// the draft, and writes the result to the invoice store. Nothing is
// written until Save.
package form

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/invoicely/invoicely/internal/currency"
	"github.com/invoicely/invoicely/internal/engine"
	"github.com/invoicely/invoicely/internal/id"
	"github.com/invoicely/invoicely/internal/model"
	"github.com/invoicely/invoicely/internal/money"
)

var (
	// ErrInvoiceNotFound is returned when an edit, copy or copy-from names
	// an invoice the store does not hold.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrRowIncomplete is returned by AddRow while the last row has no name
	// or a zero quantity.
	ErrRowIncomplete = errors.New("last row needs a name and a quantity")
	// ErrProductNotFound is returned when selecting a product the catalog does not hold.
	ErrProductNotFound = errors.New("product not found")
)

// Mode is how a session was opened.
type Mode string

const (
	ModeNew  Mode = "new"
	ModeEdit Mode = "edit"
	ModeCopy Mode = "copy"
)

// InvoiceStore is where drafts are loaded from and saved to.
type InvoiceStore interface {
	Get(id string) (model.Invoice, bool)
	Add(inv model.Invoice) error
	Update(id string, inv model.Invoice) error
	Count() int
}

// Catalog remembers products typed into drafts.
type Catalog interface {
	Get(id string) (model.Product, bool)
	All() []model.Product
	Replace(products []model.Product) error
}

// RateProvider hands out the latest exchange rate table, or nil when none
// has arrived yet.
type RateProvider interface {
	Snapshot() currency.Rates
}

// Deps bundles the collaborators of a session.
type Deps struct {
	Store   InvoiceStore
	Catalog Catalog
	Rates   RateProvider
}

// Session owns one draft. It is not safe for concurrent use.
type Session struct {
	deps     Deps
	mode     Mode
	sourceID string
	draft    model.Invoice

	oldCurrency currency.Code
	newCurrency currency.Code

	// Catalog changes waiting for Save: rows remembered by AddRow, and the
	// currency the catalog moves to with the rates that were used.
	remembered  []model.Product
	catalogTo   currency.Code
	catalogWith currency.Rates
}

// New opens a session on a fresh draft numbered after the stored invoices.
func New(deps Deps, defaults engine.Defaults) *Session {
	draft := engine.NewDraft(id.NextInvoiceNumber(deps.Store.Count()), defaults)
	return &Session{deps: deps, mode: ModeNew, draft: draft}
}

// Edit opens a session on a stored invoice. Saving updates it in place.
func Edit(deps Deps, invoiceID string) (*Session, error) {
	inv, ok := deps.Store.Get(invoiceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvoiceNotFound, invoiceID)
	}
	return &Session{
		deps:     deps,
		mode:     ModeEdit,
		sourceID: invoiceID,
		draft:    engine.RecomputeTotals(inv),
	}, nil
}

// Copy opens a session on a copy of a stored invoice with the next invoice
// number. Saving adds it under a new ID.
func Copy(deps Deps, invoiceID string) (*Session, error) {
	inv, ok := deps.Store.Get(invoiceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvoiceNotFound, invoiceID)
	}
	inv.InvoiceNumber = id.NextInvoiceNumber(deps.Store.Count())
	return &Session{
		deps:     deps,
		mode:     ModeCopy,
		sourceID: invoiceID,
		draft:    engine.RecomputeTotals(inv),
	}, nil
}

// Mode returns how the session was opened.
func (s *Session) Mode() Mode { return s.mode }

// Draft returns a copy of the current draft.
func (s *Session) Draft() model.Invoice { return s.draft.Clone() }

// CurrencyChange returns the currencies of the last successful currency change.
// Both are empty until one happens.
func (s *Session) CurrencyChange() (from, to currency.Code) {
	return s.oldCurrency, s.newCurrency
}

// AvailableProducts returns catalog products not already on the draft,
// including rows remembered since the session opened.
func (s *Session) AvailableProducts() []model.Product {
	var out []model.Product
	for _, p := range s.catalog() {
		if !s.draft.HasItem(p.ID) {
			out = append(out, p)
		}
	}
	return out
}

// SelectProduct puts a catalog product at the top of the draft with quantity 1,
// priced in the draft's currency. Products already on the draft are left alone.
func (s *Session) SelectProduct(productID string) error {
	p, ok := s.product(productID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if s.draft.HasItem(p.ID) {
		return nil
	}
	priced, err := engine.ConvertProduct(p, s.currency(), s.snapshot())
	if err != nil {
		return err
	}
	s.draft = engine.AddItem(s.draft, priced.LineItem("1"))
	return nil
}

// AddRow remembers the last row as a product and appends a blank row.
// The product reaches the catalog on Save.
func (s *Session) AddRow() (model.LineItem, error) {
	if n := len(s.draft.Items); n > 0 {
		last := s.draft.Items[n-1]
		if last.Name == "" || last.QuantityValue() == 0 {
			return model.LineItem{}, ErrRowIncomplete
		}
		s.remembered = upsertProduct(s.remembered, model.ProductFromItem(last, s.currency()))
	}
	row := engine.BlankItem()
	s.draft = engine.AppendItem(s.draft, row)
	return row, nil
}

// DeleteRow removes a row. Unknown IDs are ignored.
func (s *Session) DeleteRow(itemID string) {
	s.draft = engine.RemoveItem(s.draft, itemID)
}

// EditItem sets one field of a row.
func (s *Session) EditItem(itemID string, field engine.ItemField, value string) error {
	next, err := engine.EditItemField(s.draft, itemID, field, value)
	if err != nil {
		return err
	}
	s.draft = next
	return nil
}

// EditField sets an invoice-level field by name.
func (s *Session) EditField(name, value string) error {
	next, err := engine.SetField(s.draft, name, value)
	if err != nil {
		return err
	}
	s.draft = next
	return nil
}

// ChangeCurrency rescales the draft into code using the current rate
// snapshot and moves the catalog with it on Save. Every catalog product
// must be convertible too, or nothing changes.
func (s *Session) ChangeCurrency(code currency.Code) error {
	from := s.currency()
	if from == code {
		return nil
	}
	table := s.snapshot()
	next, err := engine.ChangeCurrency(s.draft, code, table)
	if err != nil {
		return err
	}
	if _, err := convertAll(s.catalog(), code, table); err != nil {
		return fmt.Errorf("changing catalog to %s: %w", code, err)
	}
	s.draft = next
	s.oldCurrency, s.newCurrency = from, code
	s.catalogTo, s.catalogWith = code, table
	return nil
}

// ConvertForDisplay converts amount between currencies using the current
// rate snapshot, without touching the draft.
func (s *Session) ConvertForDisplay(amount decimal.Decimal, from, to currency.Code) (decimal.Decimal, error) {
	return engine.ConvertCurrency(amount, from, to, s.snapshot())
}

// CopyFrom replaces the draft with the contents of a stored invoice, keeping
// the draft's own ID and invoice number.
func (s *Session) CopyFrom(invoiceID string) error {
	src, ok := s.deps.Store.Get(strings.TrimSpace(invoiceID))
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvoiceNotFound, invoiceID)
	}
	src.ID = s.draft.ID
	src.InvoiceNumber = s.draft.InvoiceNumber
	s.draft = engine.RecomputeTotals(src)
	return nil
}

// Review recomputes the draft and checks it is ready to save. The returned
// invoice is what a preview should show.
func (s *Session) Review() (model.Invoice, error) {
	s.draft = engine.RecomputeTotals(s.draft)
	if errs := Validate(s.draft); len(errs) > 0 {
		return s.draft.Clone(), ValidationErrors(errs)
	}
	return s.draft.Clone(), nil
}

// Save reviews the draft, writes the pending catalog changes plus every
// named row, and stores the invoice. If the invoice cannot be stored the
// catalog is put back. It returns the invoice as stored.
func (s *Session) Save() (model.Invoice, error) {
	inv, err := s.Review()
	if err != nil {
		return model.Invoice{}, err
	}

	next, err := s.pendingCatalog(inv)
	if err != nil {
		return model.Invoice{}, err
	}
	prev := s.deps.Catalog.All()
	if err := s.deps.Catalog.Replace(next); err != nil {
		return model.Invoice{}, fmt.Errorf("updating catalog: %w", err)
	}

	if err := s.store(&inv); err != nil {
		if rbErr := s.deps.Catalog.Replace(prev); rbErr != nil {
			return model.Invoice{}, errors.Join(err, fmt.Errorf("restoring catalog: %w", rbErr))
		}
		return model.Invoice{}, err
	}

	s.remembered = nil
	s.catalogTo, s.catalogWith = "", nil
	s.draft = inv.Clone()
	return inv, nil
}

func (s *Session) store(inv *model.Invoice) error {
	switch s.mode {
	case ModeEdit:
		if err := s.deps.Store.Update(s.sourceID, *inv); err != nil {
			return fmt.Errorf("updating invoice %s: %w", s.sourceID, err)
		}
		inv.ID = s.sourceID
	case ModeCopy:
		inv.ID = id.NewID()
		if err := s.deps.Store.Add(*inv); err != nil {
			return fmt.Errorf("adding invoice: %w", err)
		}
	default:
		if err := s.deps.Store.Add(*inv); err != nil {
			return fmt.Errorf("adding invoice: %w", err)
		}
	}
	return nil
}

// pendingCatalog is the catalog as Save will write it: stored products and
// remembered rows, moved to the new currency if it changed, then the rows
// of inv in the invoice currency.
func (s *Session) pendingCatalog(inv model.Invoice) ([]model.Product, error) {
	out := s.catalog()
	if s.catalogTo != "" {
		converted, err := convertAll(out, s.catalogTo, s.catalogWith)
		if err != nil {
			return nil, fmt.Errorf("changing catalog to %s: %w", s.catalogTo, err)
		}
		out = converted
	}
	for _, it := range inv.Items {
		if it.ID == "" || it.Name == "" {
			continue
		}
		out = upsertProduct(out, model.ProductFromItem(it, s.currency()))
	}
	return out, nil
}

// catalog is the stored catalog overlaid with rows remembered this session.
func (s *Session) catalog() []model.Product {
	out := s.deps.Catalog.All()
	for _, p := range s.remembered {
		out = upsertProduct(out, p)
	}
	return out
}

func (s *Session) product(productID string) (model.Product, bool) {
	for _, p := range s.remembered {
		if p.ID == productID {
			return p, true
		}
	}
	return s.deps.Catalog.Get(productID)
}

func (s *Session) snapshot() currency.Rates {
	if s.deps.Rates == nil {
		return nil
	}
	return s.deps.Rates.Snapshot()
}

func upsertProduct(products []model.Product, p model.Product) []model.Product {
	for i := range products {
		if products[i].ID == p.ID {
			products[i] = p
			return products
		}
	}
	return append(products, p)
}

func convertAll(products []model.Product, code currency.Code, table currency.Rates) ([]model.Product, error) {
	out := make([]model.Product, len(products))
	for i, p := range products {
		converted, err := engine.ConvertProduct(p, code, table)
		if err != nil {
			return nil, err
		}
		out[i] = converted
	}
	return out, nil
}

// Total returns the draft total formatted with its currency symbol.
func (s *Session) Total() string {
	return s.draft.Symbol() + money.Format(s.draft.Total)
}

func (s *Session) currency() currency.Code {
	if s.draft.Currency == "" {
		return currency.USD
	}
	return s.draft.Currency
}
