package model

import (
	"github.com/shopspring/decimal"

	"github.com/invoicely/invoicely/internal/currency"
	"github.com/invoicely/invoicely/internal/money"
)

// Product is a catalog entry remembered from earlier invoice rows.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Rate        decimal.Decimal `json:"rate"`
	Currency    currency.Code   `json:"currency"`
}

// LineItem turns p into an invoice row with the given quantity.
func (p Product) LineItem(quantity string) LineItem {
	return LineItem{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Quantity:    quantity,
		Rate:        p.Rate.String(),
	}
}

// ProductFromItem captures an invoice row as a catalog product.
func ProductFromItem(li LineItem, code currency.Code) Product {
	return Product{
		ID:          li.ID,
		Name:        li.Name,
		Description: li.Description,
		Rate:        money.ParseAmount(li.Rate),
		Currency:    code,
	}
}
