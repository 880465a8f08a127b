package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/invoicely/invoicely/internal/currency"
)

// Source fetches a rate table.
type Source interface {
	Fetch(ctx context.Context) (currency.Rates, error)
}

// ErrEmptyTable is returned when a source yields no usable rates.
var ErrEmptyTable = errors.New("rate table is empty")

// File is the on-disk shape of rates.yaml.
type File struct {
	Base  string            `yaml:"base"`
	Rates map[string]string `yaml:"rates"`
}

// Table converts f into a rate table. Unknown codes are skipped; a
// non-numeric rate is an error.
func (f File) Table() (currency.Rates, error) {
	out := make(currency.Rates, len(f.Rates))
	for code, raw := range f.Rates {
		c, err := currency.Parse(code)
		if err != nil {
			continue
		}
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("parsing rate for %s: %w", code, err)
		}
		out[c] = d
	}
	if len(out) == 0 {
		return nil, ErrEmptyTable
	}
	return out, nil
}

// FileSource reads rates from a YAML file.
type FileSource struct {
	Path string
}

// Fetch reads and parses the file.
func (s FileSource) Fetch(_ context.Context) (currency.Rates, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading rates file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rates file: %w", err)
	}
	return f.Table()
}

// WriteFile stores rates as YAML at path.
func WriteFile(path string, base currency.Code, table currency.Rates) error {
	f := File{Base: string(base), Rates: make(map[string]string, len(table))}
	for c, d := range table {
		f.Rates[string(c)] = d.String()
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling rates: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing rates file: %w", err)
	}
	return nil
}

// DefaultTable is written by init so a new project can switch currency offline.
func DefaultTable() currency.Rates {
	return currency.Rates{
		currency.USD: decimal.RequireFromString("1"),
		currency.GBP: decimal.RequireFromString("0.79"),
		currency.JPY: decimal.RequireFromString("150.12"),
		currency.CAD: decimal.RequireFromString("1.36"),
		currency.AUD: decimal.RequireFromString("1.52"),
		currency.SGD: decimal.RequireFromString("1.34"),
		currency.CNY: decimal.RequireFromString("7.19"),
		currency.BTC: decimal.RequireFromString("0.000016"),
	}
}

// HTTPSource fetches rates from a JSON endpoint shaped like
// {"base": "USD", "rates": {"JPY": 150.1, ...}}.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// httpResponse accepts numeric rates; decimal.Decimal decodes JSON numbers
// and strings without going through float64.
type httpResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// Fetch performs the GET request.
func (s HTTPSource) Fetch(ctx context.Context) (currency.Rates, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetching rates: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var payload httpResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding rates: %w", err)
	}

	out := make(currency.Rates, len(payload.Rates))
	for code, d := range payload.Rates {
		c, err := currency.Parse(code)
		if err != nil {
			continue
		}
		out[c] = d
	}
	if len(out) == 0 {
		return nil, ErrEmptyTable
	}
	return out, nil
}
