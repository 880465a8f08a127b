// Package engine keeps an invoice's derived amounts consistent with its items,
// rates and currency. Every function takes an invoice by value and returns the
// updated invoice; inputs are never modified.
package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invoicely/invoicely/internal/currency"
	"github.com/invoicely/invoicely/internal/id"
	"github.com/invoicely/invoicely/internal/model"
	"github.com/invoicely/invoicely/internal/money"
)

// RateScale is the number of decimal places kept on item rates after a
// currency change.
const RateScale = 10

var (
	// ErrInvalidRate is returned for tax or discount percentages that are
	// non-numeric or outside 0-100.
	ErrInvalidRate = errors.New("invalid rate")
	// ErrUnknownField is returned when editing a field that does not exist.
	ErrUnknownField = errors.New("unknown field")
)

var (
	zeroPercent    = decimal.Zero
	hundredPercent = decimal.NewFromInt(100)
)

// ItemField names an editable line item field.
type ItemField string

const (
	ItemName        ItemField = "name"
	ItemDescription ItemField = "description"
	ItemQuantity    ItemField = "quantity"
	ItemRate        ItemField = "rate"
)

// RecomputeTotals derives SubTotal, TaxAmount, DiscountAmount and Total.
//
//	subTotal = sum(round2(rate) * floor(quantity))
//	tax      = round2(subTotal * taxRate / 100)
//	discount = round2(subTotal * discountRate / 100)
//	total    = round2(subTotal - discount + tax)
//
// Blank or non-numeric rates and quantities count as zero.
func RecomputeTotals(inv model.Invoice) model.Invoice {
	out := inv.Clone()

	subTotal := decimal.Zero
	for _, it := range out.Items {
		subTotal = subTotal.Add(it.Amount())
	}
	subTotal = money.Round2(subTotal)

	taxAmount := money.Round2(percentOf(subTotal, out.TaxRate))
	discountAmount := money.Round2(percentOf(subTotal, out.DiscountRate))

	out.SubTotal = subTotal
	out.TaxAmount = taxAmount
	out.DiscountAmount = discountAmount
	out.Total = money.Round2(subTotal.Sub(discountAmount).Add(taxAmount))
	return out
}

func percentOf(amount decimal.Decimal, rate string) decimal.Decimal {
	pct, ok := money.ParsePercent(rate)
	if !ok {
		return decimal.Zero
	}
	return amount.Mul(pct).Shift(-2)
}

// AddItem inserts item at the front of the invoice. An item whose ID is
// already present is dropped and the existing one kept.
func AddItem(inv model.Invoice, item model.LineItem) model.Invoice {
	if inv.HasItem(item.ID) {
		return inv.Clone()
	}
	out := inv.Clone()
	out.Items = append([]model.LineItem{item}, out.Items...)
	return RecomputeTotals(out)
}

// AppendItem adds item at the end of the invoice, with the same duplicate
// rule as AddItem.
func AppendItem(inv model.Invoice, item model.LineItem) model.Invoice {
	if inv.HasItem(item.ID) {
		return inv.Clone()
	}
	out := inv.Clone()
	out.Items = append(out.Items, item)
	return RecomputeTotals(out)
}

// RemoveItem drops the item with the given ID. Unknown IDs are a no-op.
func RemoveItem(inv model.Invoice, itemID string) model.Invoice {
	out := inv.Clone()
	if !inv.HasItem(itemID) {
		return out
	}
	items := make([]model.LineItem, 0, len(out.Items))
	for _, it := range out.Items {
		if it.ID != itemID {
			items = append(items, it)
		}
	}
	out.Items = items
	return RecomputeTotals(out)
}

// EditItemField sets one field of the item with the given ID. Unknown IDs
// are a no-op; unknown fields fail with ErrUnknownField.
func EditItemField(inv model.Invoice, itemID string, field ItemField, value string) (model.Invoice, error) {
	if !field.Valid() {
		return inv, fmt.Errorf("%w: item field %q", ErrUnknownField, field)
	}
	out := inv.Clone()
	for i := range out.Items {
		if out.Items[i].ID != itemID {
			continue
		}
		it := &out.Items[i]
		switch field {
		case ItemName:
			it.Name = value
		case ItemDescription:
			it.Description = value
		case ItemQuantity:
			it.Quantity = value
		case ItemRate:
			it.Rate = value
		}
	}
	return RecomputeTotals(out), nil
}

// Valid reports whether f names a line item field.
func (f ItemField) Valid() bool {
	switch f {
	case ItemName, ItemDescription, ItemQuantity, ItemRate:
		return true
	}
	return false
}

// ChangeCurrency rescales every item rate by rates[to]/rates[from] and
// switches the invoice to the new currency. Changing to the current currency
// leaves rates untouched. On error the invoice is returned unchanged.
func ChangeCurrency(inv model.Invoice, to currency.Code, rates currency.Rates) (model.Invoice, error) {
	if !to.Valid() {
		return inv, fmt.Errorf("%w: %q", currency.ErrUnknownCurrency, to)
	}
	from := inv.Currency
	if from == "" {
		from = currency.USD
	}
	if from == to {
		out := inv.Clone()
		out.Currency = to
		return RecomputeTotals(out), nil
	}

	ratio, err := rates.Ratio(from, to)
	if err != nil {
		return inv, fmt.Errorf("changing currency %s to %s: %w", from, to, err)
	}
	return rescale(inv, ratio, to), nil
}

func rescale(inv model.Invoice, ratio decimal.Decimal, code currency.Code) model.Invoice {
	out := inv.Clone()
	for i := range out.Items {
		out.Items[i].Rate = rescaleRate(out.Items[i].Rate, ratio)
	}
	out.Currency = code
	return RecomputeTotals(out)
}

// rescaleRate applies ratio to a raw rate value. Non-numeric rates are left as typed.
func rescaleRate(rate string, ratio decimal.Decimal) string {
	d, err := decimal.NewFromString(strings.TrimSpace(rate))
	if err != nil {
		return rate
	}
	return d.Mul(ratio).Round(RateScale).String()
}

// ConvertProduct reprices a catalog product in to, using the product's own
// currency as the source. Products already priced in to are returned as is.
func ConvertProduct(p model.Product, to currency.Code, rates currency.Rates) (model.Product, error) {
	if !to.Valid() {
		return p, fmt.Errorf("%w: %q", currency.ErrUnknownCurrency, to)
	}
	from := p.Currency
	if from == "" {
		from = currency.USD
	}
	if from == to {
		p.Currency = to
		return p, nil
	}
	ratio, err := rates.Ratio(from, to)
	if err != nil {
		return p, fmt.Errorf("pricing product %s in %s: %w", p.Name, to, err)
	}
	p.Rate = p.Rate.Mul(ratio).Round(RateScale)
	p.Currency = to
	return p, nil
}

// ConvertCurrency converts amount for display without touching any invoice.
func ConvertCurrency(amount decimal.Decimal, from, to currency.Code, rates currency.Rates) (decimal.Decimal, error) {
	return rates.Convert(amount, from, to)
}

// ValidatePercent checks a tax or discount percentage: blank, or a number in 0-100.
func ValidatePercent(value string) error {
	pct, ok := money.ParsePercent(value)
	if !ok {
		return fmt.Errorf("%w: %q is not a number", ErrInvalidRate, value)
	}
	if pct.LessThan(zeroPercent) || pct.GreaterThan(hundredPercent) {
		return fmt.Errorf("%w: %s is outside 0-100", ErrInvalidRate, pct)
	}
	return nil
}

// Invoice-level fields editable through SetField.
const (
	FieldCurrentDate     = "current_date"
	FieldDateOfIssue     = "date_of_issue"
	FieldInvoiceNumber   = "invoice_number"
	FieldBillTo          = "bill_to"
	FieldBillToEmail     = "bill_to_email"
	FieldBillToAddress   = "bill_to_address"
	FieldBillFrom        = "bill_from"
	FieldBillFromEmail   = "bill_from_email"
	FieldBillFromAddress = "bill_from_address"
	FieldNotes           = "notes"
	FieldTaxRate         = "tax_rate"
	FieldDiscountRate    = "discount_rate"
)

// Fields lists the names accepted by SetField.
var Fields = []string{
	FieldCurrentDate, FieldDateOfIssue, FieldInvoiceNumber,
	FieldBillTo, FieldBillToEmail, FieldBillToAddress,
	FieldBillFrom, FieldBillFromEmail, FieldBillFromAddress,
	FieldNotes, FieldTaxRate, FieldDiscountRate,
}

// SetField sets an invoice-level field by name and recomputes. Tax and
// discount percentages are validated; an invalid value leaves inv unchanged.
func SetField(inv model.Invoice, name, value string) (model.Invoice, error) {
	out := inv.Clone()
	switch name {
	case FieldCurrentDate:
		out.CurrentDate = value
	case FieldDateOfIssue:
		out.DateOfIssue = value
	case FieldInvoiceNumber:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 1 {
			return inv, fmt.Errorf("invoice number %q must be a positive integer", value)
		}
		out.InvoiceNumber = n
	case FieldBillTo:
		out.BillTo = value
	case FieldBillToEmail:
		out.BillToEmail = value
	case FieldBillToAddress:
		out.BillToAddress = value
	case FieldBillFrom:
		out.BillFrom = value
	case FieldBillFromEmail:
		out.BillFromEmail = value
	case FieldBillFromAddress:
		out.BillFromAddress = value
	case FieldNotes:
		out.Notes = value
	case FieldTaxRate:
		if err := ValidatePercent(value); err != nil {
			return inv, fmt.Errorf("tax rate: %w", err)
		}
		out.TaxRate = strings.TrimSpace(value)
	case FieldDiscountRate:
		if err := ValidatePercent(value); err != nil {
			return inv, fmt.Errorf("discount rate: %w", err)
		}
		out.DiscountRate = strings.TrimSpace(value)
	default:
		return inv, fmt.Errorf("%w: %q (fields: %s)", ErrUnknownField, name, strings.Join(Fields, ", "))
	}
	return RecomputeTotals(out), nil
}

// DateFormat is the layout of CurrentDate and DateOfIssue.
const DateFormat = "2006-01-02"

// Defaults seeds the fields of a new draft.
type Defaults struct {
	Currency        currency.Code
	TaxRate         string
	DiscountRate    string
	Notes           string
	BillFrom        string
	BillFromEmail   string
	BillFromAddress string
	Today           time.Time
}

// NewDraft returns a fresh invoice with one blank row and zeroed totals.
func NewDraft(invoiceNumber int, d Defaults) model.Invoice {
	code := d.Currency
	if !code.Valid() {
		code = currency.USD
	}
	today := d.Today
	if today.IsZero() {
		today = time.Now()
	}
	inv := model.Invoice{
		ID:              id.NewID(),
		InvoiceNumber:   invoiceNumber,
		CurrentDate:     today.Format(DateFormat),
		BillFrom:        d.BillFrom,
		BillFromEmail:   d.BillFromEmail,
		BillFromAddress: d.BillFromAddress,
		Notes:           d.Notes,
		TaxRate:         d.TaxRate,
		DiscountRate:    d.DiscountRate,
		Currency:        code,
		Items:           []model.LineItem{BlankItem()},
	}
	return RecomputeTotals(inv)
}

// BlankItem returns an empty row with a fresh ID.
func BlankItem() model.LineItem {
	return model.LineItem{ID: id.NewID(), Quantity: "0", Rate: "0"}
}
