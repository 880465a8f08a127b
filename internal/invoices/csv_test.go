package invoices

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicely/invoicely/internal/currency"
	"github.com/invoicely/invoicely/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleInvoice() model.Invoice {
	return model.Invoice{
		ID:              "inv-1",
		InvoiceNumber:   3,
		CurrentDate:     "2025-01-15",
		DateOfIssue:     "2025-02-15",
		BillTo:          "Acme, Inc.",
		BillToEmail:     "ap@acme.test",
		BillToAddress:   "1 Road\nSpringfield",
		BillFrom:        "Test Biz",
		BillFromEmail:   "hi@test.biz",
		BillFromAddress: "2 Lane",
		Notes:           "Thanks!",
		TaxRate:         "10",
		DiscountRate:    "",
		Currency:        currency.JPY,
		Items: []model.LineItem{
			{ID: "a", Name: "Design", Description: "Logo, v2", Quantity: "2", Rate: "1500"},
			{ID: "b", Name: "Hosting", Quantity: "1", Rate: "750.5"},
		},
		SubTotal:       dec("3750.50"),
		TaxAmount:      dec("375.05"),
		DiscountAmount: dec("0"),
		Total:          dec("4125.55"),
	}
}

func TestInvoiceRoundTrip(t *testing.T) {
	inv := sampleInvoice()

	var buf bytes.Buffer
	require.NoError(t, WriteInvoices(&buf, []model.Invoice{inv}))

	got, err := ReadInvoices(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, inv.ID, got[0].ID)
	assert.Equal(t, inv.InvoiceNumber, got[0].InvoiceNumber)
	assert.Equal(t, inv.BillToAddress, got[0].BillToAddress)
	assert.Equal(t, inv.TaxRate, got[0].TaxRate)
	assert.Equal(t, currency.JPY, got[0].Currency)
	assert.True(t, inv.Total.Equal(got[0].Total))
	assert.True(t, inv.TaxAmount.Equal(got[0].TaxAmount))
	assert.Empty(t, got[0].Items, "items live in items.csv")
}

func TestItemsRoundTrip(t *testing.T) {
	inv := sampleInvoice()

	var buf bytes.Buffer
	require.NoError(t, WriteItems(&buf, []model.Invoice{inv}))

	rows, err := ReadItems(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "inv-1", rows[0].InvoiceID)
	assert.Equal(t, 0, rows[0].Position)
	assert.Equal(t, inv.Items[0], rows[0].Item)
	assert.Equal(t, 1, rows[1].Position)
	assert.Equal(t, inv.Items[1], rows[1].Item)
}

func TestMarshalInvoice_Format(t *testing.T) {
	row := MarshalInvoice(sampleInvoice())
	assert.Len(t, row, numFields)
	assert.Equal(t, "3", row[colNumber])
	assert.Equal(t, "JPY", row[colCurrency])
	assert.Equal(t, "¥", row[colSymbol])
	assert.Equal(t, "0.00", row[colDiscount])
	assert.Equal(t, "4125.55", row[colTotal])
}

func TestUnmarshalInvoice_SymbolFallback(t *testing.T) {
	row := MarshalInvoice(sampleInvoice())
	row[colCurrency] = ""
	row[colSymbol] = "$"

	inv, err := UnmarshalInvoice(row)
	require.NoError(t, err)
	assert.Equal(t, currency.USD, inv.Currency, "shared symbol resolves to first declared code")

	row[colSymbol] = "€"
	_, err = UnmarshalInvoice(row)
	assert.ErrorIs(t, err, currency.ErrUnknownCurrency)
}

func TestUnmarshalInvoice_Errors(t *testing.T) {
	_, err := UnmarshalInvoice([]string{"one", "two"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 19 fields")

	row := MarshalInvoice(sampleInvoice())
	row[colNumber] = "three"
	_, err = UnmarshalInvoice(row)
	assert.Contains(t, err.Error(), "parsing invoice_number")

	row = MarshalInvoice(sampleInvoice())
	row[colTotal] = "lots"
	_, err = UnmarshalInvoice(row)
	assert.Contains(t, err.Error(), "parsing amount")
}

func TestReadInvoices_HeaderOnly(t *testing.T) {
	got, err := ReadInvoices(strings.NewReader(Header + "\n"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUnmarshalItem_BadPosition(t *testing.T) {
	_, err := UnmarshalItem([]string{"inv", "x", "id", "n", "d", "1", "2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing position")
}
