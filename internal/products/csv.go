package products

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/invoicely/invoicely/internal/currency"
	"github.com/invoicely/invoicely/internal/model"
)

const (
	numFields   = 5
	colID       = 0
	colName     = 1
	colDesc     = 2
	colRate     = 3
	colCurrency = 4
)

// ReadProducts reads products.csv.
func ReadProducts(r io.Reader) ([]model.Product, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading products CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var products []model.Product
	for i, rec := range records[1:] {
		p, err := UnmarshalProduct(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		products = append(products, p)
	}
	return products, nil
}

// WriteProducts writes products.csv.
func WriteProducts(w io.Writer, products []model.Product) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"product_id", "name", "description", "rate", "currency"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, p := range products {
		if err := cw.Write(MarshalProduct(p)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalProduct converts a Product to a CSV row.
func MarshalProduct(p model.Product) []string {
	row := make([]string, numFields)
	row[colID] = p.ID
	row[colName] = p.Name
	row[colDesc] = p.Description
	row[colRate] = p.Rate.String()
	row[colCurrency] = string(p.Currency)
	return row
}

// UnmarshalProduct converts a CSV row to a Product.
func UnmarshalProduct(record []string) (model.Product, error) {
	if len(record) != numFields {
		return model.Product{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	rate := decimal.Zero
	if record[colRate] != "" {
		var err error
		rate, err = decimal.NewFromString(record[colRate])
		if err != nil {
			return model.Product{}, fmt.Errorf("parsing rate %q: %w", record[colRate], err)
		}
	}

	code := currency.USD
	if record[colCurrency] != "" {
		var err error
		code, err = currency.Parse(record[colCurrency])
		if err != nil {
			return model.Product{}, fmt.Errorf("parsing currency: %w", err)
		}
	}

	return model.Product{
		ID:          record[colID],
		Name:        record[colName],
		Description: record[colDesc],
		Rate:        rate,
		Currency:    code,
	}, nil
}
