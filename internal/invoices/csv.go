package invoices

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/invoicely/invoicely/internal/currency"
	"github.com/invoicely/invoicely/internal/model"
)

// Header is the CSV header for invoices.csv.
const Header = "id,invoice_number,current_date,date_of_issue,bill_to,bill_to_email,bill_to_address,bill_from,bill_from_email,bill_from_address,notes,tax_rate,discount_rate,currency,symbol,sub_total,tax_amount,discount_amount,total"

// ItemsHeader is the CSV header for items.csv.
const ItemsHeader = "invoice_id,position,item_id,name,description,quantity,rate"

const (
	numFields        = 19
	colID            = 0
	colNumber        = 1
	colCurrentDate   = 2
	colDateOfIssue   = 3
	colBillTo        = 4
	colBillToEmail   = 5
	colBillToAddr    = 6
	colBillFrom      = 7
	colBillFromEmail = 8
	colBillFromAddr  = 9
	colNotes         = 10
	colTaxRate       = 11
	colDiscountRate  = 12
	colCurrency      = 13
	colSymbol        = 14
	colSubTotal      = 15
	colTaxAmount     = 16
	colDiscount      = 17
	colTotal         = 18
)

const (
	numItemFields = 7
	colItemInv    = 0
	colItemPos    = 1
	colItemID     = 2
	colItemName   = 3
	colItemDesc   = 4
	colItemQty    = 5
	colItemRate   = 6
)

// ItemRow is one row of items.csv.
type ItemRow struct {
	InvoiceID string
	Position  int
	Item      model.LineItem
}

// ReadInvoices reads invoice headers (without items) from an invoices.csv reader.
func ReadInvoices(r io.Reader) ([]model.Invoice, error) {
	records, err := readAll(r, numFields, "invoices")
	if err != nil {
		return nil, err
	}

	var out []model.Invoice
	for i, rec := range records {
		inv, err := UnmarshalInvoice(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, inv)
	}
	return out, nil
}

// ReadItems reads item rows from an items.csv reader.
func ReadItems(r io.Reader) ([]ItemRow, error) {
	records, err := readAll(r, numItemFields, "items")
	if err != nil {
		return nil, err
	}

	var out []ItemRow
	for i, rec := range records {
		row, err := UnmarshalItem(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, row)
	}
	return out, nil
}

func readAll(r io.Reader, fields int, what string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s CSV: %w", what, err)
	}
	if len(records) <= 1 {
		return nil, nil
	}
	// Skip header row.
	return records[1:], nil
}

// WriteInvoices writes invoice headers to an invoices.csv writer (including header).
func WriteInvoices(w io.Writer, invoices []model.Invoice) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, inv := range invoices {
		if err := cw.Write(MarshalInvoice(inv)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// WriteItems writes the items of every invoice to an items.csv writer (including header).
func WriteItems(w io.Writer, invoices []model.Invoice) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(ItemsHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, inv := range invoices {
		for pos, it := range inv.Items {
			if err := cw.Write(MarshalItem(ItemRow{InvoiceID: inv.ID, Position: pos, Item: it})); err != nil {
				return fmt.Errorf("writing item %s of %s: %w", it.ID, inv.ID, err)
			}
		}
	}
	return cw.Error()
}

// MarshalInvoice converts an invoice header to a CSV row.
func MarshalInvoice(inv model.Invoice) []string {
	row := make([]string, numFields)
	row[colID] = inv.ID
	row[colNumber] = strconv.Itoa(inv.InvoiceNumber)
	row[colCurrentDate] = inv.CurrentDate
	row[colDateOfIssue] = inv.DateOfIssue
	row[colBillTo] = inv.BillTo
	row[colBillToEmail] = inv.BillToEmail
	row[colBillToAddr] = inv.BillToAddress
	row[colBillFrom] = inv.BillFrom
	row[colBillFromEmail] = inv.BillFromEmail
	row[colBillFromAddr] = inv.BillFromAddress
	row[colNotes] = inv.Notes
	row[colTaxRate] = inv.TaxRate
	row[colDiscountRate] = inv.DiscountRate
	row[colCurrency] = string(inv.Currency)
	row[colSymbol] = inv.Symbol()
	row[colSubTotal] = inv.SubTotal.StringFixed(2)
	row[colTaxAmount] = inv.TaxAmount.StringFixed(2)
	row[colDiscount] = inv.DiscountAmount.StringFixed(2)
	row[colTotal] = inv.Total.StringFixed(2)
	return row
}

// UnmarshalInvoice converts a CSV row to an invoice header. Rows written
// before currency codes were stored fall back to the symbol column.
func UnmarshalInvoice(record []string) (model.Invoice, error) {
	if len(record) != numFields {
		return model.Invoice{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	number, err := strconv.Atoi(record[colNumber])
	if err != nil {
		return model.Invoice{}, fmt.Errorf("parsing invoice_number %q: %w", record[colNumber], err)
	}

	code, err := unmarshalCurrency(record[colCurrency], record[colSymbol])
	if err != nil {
		return model.Invoice{}, err
	}

	amounts := make([]decimal.Decimal, 4)
	for i, col := range []int{colSubTotal, colTaxAmount, colDiscount, colTotal} {
		if record[col] == "" {
			continue
		}
		amounts[i], err = decimal.NewFromString(record[col])
		if err != nil {
			return model.Invoice{}, fmt.Errorf("parsing amount %q: %w", record[col], err)
		}
	}

	return model.Invoice{
		ID:              record[colID],
		InvoiceNumber:   number,
		CurrentDate:     record[colCurrentDate],
		DateOfIssue:     record[colDateOfIssue],
		BillTo:          record[colBillTo],
		BillToEmail:     record[colBillToEmail],
		BillToAddress:   record[colBillToAddr],
		BillFrom:        record[colBillFrom],
		BillFromEmail:   record[colBillFromEmail],
		BillFromAddress: record[colBillFromAddr],
		Notes:           record[colNotes],
		TaxRate:         record[colTaxRate],
		DiscountRate:    record[colDiscountRate],
		Currency:        code,
		SubTotal:        amounts[0],
		TaxAmount:       amounts[1],
		DiscountAmount:  amounts[2],
		Total:           amounts[3],
	}, nil
}

func unmarshalCurrency(code, symbol string) (currency.Code, error) {
	if code != "" {
		c, err := currency.Parse(code)
		if err != nil {
			return "", fmt.Errorf("parsing currency: %w", err)
		}
		return c, nil
	}
	if symbol == "" {
		return currency.USD, nil
	}
	c, ok := currency.CodeForSymbol(symbol)
	if !ok {
		return "", fmt.Errorf("parsing currency: %w: symbol %q", currency.ErrUnknownCurrency, symbol)
	}
	return c, nil
}

// MarshalItem converts an item row to a CSV row.
func MarshalItem(r ItemRow) []string {
	row := make([]string, numItemFields)
	row[colItemInv] = r.InvoiceID
	row[colItemPos] = strconv.Itoa(r.Position)
	row[colItemID] = r.Item.ID
	row[colItemName] = r.Item.Name
	row[colItemDesc] = r.Item.Description
	row[colItemQty] = r.Item.Quantity
	row[colItemRate] = r.Item.Rate
	return row
}

// UnmarshalItem converts a CSV row to an item row.
func UnmarshalItem(record []string) (ItemRow, error) {
	if len(record) != numItemFields {
		return ItemRow{}, fmt.Errorf("expected %d fields, got %d", numItemFields, len(record))
	}
	pos, err := strconv.Atoi(record[colItemPos])
	if err != nil {
		return ItemRow{}, fmt.Errorf("parsing position %q: %w", record[colItemPos], err)
	}
	return ItemRow{
		InvoiceID: record[colItemInv],
		Position:  pos,
		Item: model.LineItem{
			ID:          record[colItemID],
			Name:        record[colItemName],
			Description: record[colItemDesc],
			Quantity:    record[colItemQty],
			Rate:        record[colItemRate],
		},
	}, nil
}
