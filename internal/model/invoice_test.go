package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/invoicely/invoicely/internal/currency"
)

func TestLineItemValues(t *testing.T) {
	tests := []struct {
		qty, rate  string
		wantQty    int64
		wantAmount string
	}{
		{"2", "10.00", 2, "20.00"},
		{"1", "5.005", 1, "5.00"},
		{"1", "5.0051", 1, "5.01"},
		{"2.7", "3", 2, "6.00"},
		{"abc", "3", 0, "0.00"},
		{"3", "", 3, "0.00"},
	}
	for _, tt := range tests {
		li := LineItem{Quantity: tt.qty, Rate: tt.rate}
		assert.Equal(t, tt.wantQty, li.QuantityValue(), "qty %q", tt.qty)
		assert.Equal(t, tt.wantAmount, li.Amount().StringFixed(2), "qty %q rate %q", tt.qty, tt.rate)
	}
}

func TestInvoiceClone(t *testing.T) {
	inv := Invoice{Items: []LineItem{{ID: "a", Name: "Widget"}}}
	c := inv.Clone()
	c.Items[0].Name = "Changed"
	assert.Equal(t, "Widget", inv.Items[0].Name)
}

func TestInvoiceItem(t *testing.T) {
	inv := Invoice{Items: []LineItem{{ID: "a"}, {ID: "b", Name: "Bolt"}}}
	it, ok := inv.Item("b")
	assert.True(t, ok)
	assert.Equal(t, "Bolt", it.Name)
	assert.False(t, inv.HasItem("zzz"))
}

func TestInvoiceSymbol(t *testing.T) {
	assert.Equal(t, "¥", Invoice{Currency: currency.CNY}.Symbol())
	assert.Equal(t, "£", Invoice{Currency: currency.GBP}.Symbol())
}

func TestProductRoundTrip(t *testing.T) {
	p := Product{ID: "p1", Name: "Hosting", Rate: decimal.RequireFromString("12.5"), Currency: currency.USD}
	li := p.LineItem("1")
	assert.Equal(t, "12.5", li.Rate)
	assert.Equal(t, "1", li.Quantity)

	back := ProductFromItem(li, currency.USD)
	assert.Equal(t, p.ID, back.ID)
	assert.True(t, p.Rate.Equal(back.Rate))
}
