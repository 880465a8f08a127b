package commands

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/invoicely/invoicely/internal/engine"
	"github.com/invoicely/invoicely/internal/form"
	"github.com/invoicely/invoicely/internal/model"
)

// draftFile is the YAML a user writes to fill in an invoice. Any key other
// than currency, products and items names an invoice field, e.g. bill_to.
type draftFile struct {
	Currency string            `yaml:"currency,omitempty"`
	Products []string          `yaml:"products,omitempty"`
	Items    []draftItem       `yaml:"items,omitempty"`
	Fields   map[string]string `yaml:",inline"`
}

type draftItem struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Quantity    string `yaml:"quantity"`
	Rate        string `yaml:"rate"`
}

func readDraftFile(path string) (draftFile, error) {
	var d draftFile
	if path == "" {
		return d, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("reading draft: %w", err)
	}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("parsing draft %s: %w", path, err)
	}
	return d, nil
}

// parseSets turns repeated --set field=value flags into a map.
func parseSets(sets []string) (map[string]string, error) {
	out := make(map[string]string, len(sets))
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("--set %q: expected field=value", s)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

// applyFields sets invoice fields in a stable order.
func applyFields(s *form.Session, fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.EditField(name, fields[name]); err != nil {
			return fmt.Errorf("setting %s: %w", name, err)
		}
	}
	return nil
}

// applyItems fills the trailing blank row, or adds a row, for every item.
func applyItems(s *form.Session, items []draftItem) error {
	for i, it := range items {
		row, err := nextRow(s)
		if err != nil {
			return fmt.Errorf("item %d: %w", i+1, err)
		}
		for _, f := range []struct {
			field engine.ItemField
			value string
		}{
			{engine.ItemName, it.Name},
			{engine.ItemDescription, it.Description},
			{engine.ItemQuantity, it.Quantity},
			{engine.ItemRate, it.Rate},
		} {
			if err := s.EditItem(row, f.field, f.value); err != nil {
				return fmt.Errorf("item %d: %w", i+1, err)
			}
		}
	}
	return nil
}

func nextRow(s *form.Session) (string, error) {
	items := s.Draft().Items
	if n := len(items); n > 0 && isBlank(items[n-1]) {
		return items[n-1].ID, nil
	}
	row, err := s.AddRow()
	if err != nil {
		return "", err
	}
	return row.ID, nil
}

// pruneBlankRows drops rows nobody filled in.
func pruneBlankRows(s *form.Session) {
	for _, it := range s.Draft().Items {
		if isBlank(it) {
			s.DeleteRow(it.ID)
		}
	}
}

func isBlank(it model.LineItem) bool {
	return it.Name == "" && it.Description == "" && it.QuantityValue() == 0
}
