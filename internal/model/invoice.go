package model

import (
	"github.com/shopspring/decimal"

	"github.com/invoicely/invoicely/internal/currency"
	"github.com/invoicely/invoicely/internal/money"
)

// LineItem is one row of an invoice. Quantity and Rate hold raw form values
// so that half-typed input survives editing; see QuantityValue and RateValue.
type LineItem struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Quantity    string `json:"quantity" yaml:"quantity"`
	Rate        string `json:"rate" yaml:"rate"` // in the invoice's currency
}

// QuantityValue returns the floored quantity, or 0 when non-numeric.
func (li LineItem) QuantityValue() int64 {
	return money.FloorQuantity(li.Quantity)
}

// RateValue returns the rate, or 0 when non-numeric.
func (li LineItem) RateValue() decimal.Decimal {
	return money.ParseAmount(li.Rate)
}

// Amount returns round2(rate) * floor(quantity).
func (li LineItem) Amount() decimal.Decimal {
	return money.Round2(li.RateValue()).Mul(decimal.NewFromInt(li.QuantityValue()))
}

// Invoice is an invoice draft and, once saved, a stored invoice.
// SubTotal, TaxAmount, DiscountAmount and Total are derived from Items,
// TaxRate and DiscountRate and are only written by the engine.
type Invoice struct {
	ID              string        `json:"id"`
	InvoiceNumber   int           `json:"invoice_number"`
	CurrentDate     string        `json:"current_date"`
	DateOfIssue     string        `json:"date_of_issue"` // due date
	BillTo          string        `json:"bill_to"`
	BillToEmail     string        `json:"bill_to_email"`
	BillToAddress   string        `json:"bill_to_address"`
	BillFrom        string        `json:"bill_from"`
	BillFromEmail   string        `json:"bill_from_email"`
	BillFromAddress string        `json:"bill_from_address"`
	Notes           string        `json:"notes"`
	TaxRate         string        `json:"tax_rate"`      // percent, blank = 0
	DiscountRate    string        `json:"discount_rate"` // percent, blank = 0
	Currency        currency.Code `json:"currency"`
	Items           []LineItem    `json:"items"`

	SubTotal       decimal.Decimal `json:"sub_total"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
}

// Symbol returns the display symbol of the invoice currency.
func (inv Invoice) Symbol() string {
	return inv.Currency.Symbol()
}

// Item returns the item with the given ID.
func (inv Invoice) Item(id string) (LineItem, bool) {
	for _, it := range inv.Items {
		if it.ID == id {
			return it, true
		}
	}
	return LineItem{}, false
}

// HasItem reports whether an item with the given ID is on the invoice.
func (inv Invoice) HasItem(id string) bool {
	_, ok := inv.Item(id)
	return ok
}

// Clone returns a copy of inv that shares no item storage with it.
func (inv Invoice) Clone() Invoice {
	out := inv
	if inv.Items != nil {
		out.Items = make([]LineItem, len(inv.Items))
		copy(out.Items, inv.Items)
	}
	return out
}
