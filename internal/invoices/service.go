package invoices

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/invoicely/invoicely/internal/model"
)

const (
	storeDir    = "invoices"
	invoicesCSV = "invoices.csv"
	itemsCSV    = "items.csv"
)

var (
	// ErrNotFound is returned when updating an invoice that is not stored.
	ErrNotFound = errors.New("invoice not found")
	// ErrDuplicate is returned when adding an invoice whose ID is taken.
	ErrDuplicate = errors.New("invoice already exists")
)

// Service is the invoice store: invoices/invoices.csv plus invoices/items.csv
// under a project root. Every Add and Update rewrites both files.
type Service struct {
	repoRoot string

	mu       sync.RWMutex
	invoices []model.Invoice
	byID     map[string]int
}

// NewService creates an empty store rooted at repoRoot.
func NewService(repoRoot string) *Service {
	return &Service{repoRoot: repoRoot, byID: make(map[string]int)}
}

// Load reads the store from repoRoot. Missing files mean an empty store.
func Load(repoRoot string) (*Service, error) {
	s := NewService(repoRoot)

	headers, err := readFile(s.path(invoicesCSV), ReadInvoices)
	if err != nil {
		return nil, err
	}
	rows, err := readFile(s.path(itemsCSV), ReadItems)
	if err != nil {
		return nil, err
	}

	for _, inv := range headers {
		if _, dup := s.byID[inv.ID]; dup {
			return nil, fmt.Errorf("loading invoices: %w: %s", ErrDuplicate, inv.ID)
		}
		s.byID[inv.ID] = len(s.invoices)
		s.invoices = append(s.invoices, inv)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position < rows[j].Position })
	for _, row := range rows {
		idx, ok := s.byID[row.InvoiceID]
		if !ok {
			return nil, fmt.Errorf("loading invoices: item %s references unknown invoice %s", row.Item.ID, row.InvoiceID)
		}
		s.invoices[idx].Items = append(s.invoices[idx].Items, row.Item)
	}
	return s, nil
}

func readFile[T any](path string, read func(r io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	out, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return out, nil
}

// Get returns the invoice with the given ID.
func (s *Service) Get(id string) (model.Invoice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return model.Invoice{}, false
	}
	return s.invoices[idx].Clone(), true
}

// Count returns the number of stored invoices.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.invoices)
}

// All returns every invoice in insertion order.
func (s *Service) All() []model.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Invoice, len(s.invoices))
	for i, inv := range s.invoices {
		out[i] = inv.Clone()
	}
	return out
}

// Add stores a new invoice and writes the store to disk.
func (s *Service) Add(inv model.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.ID == "" {
		return fmt.Errorf("adding invoice: missing id")
	}
	if _, ok := s.byID[inv.ID]; ok {
		return fmt.Errorf("adding invoice: %w: %s", ErrDuplicate, inv.ID)
	}
	s.byID[inv.ID] = len(s.invoices)
	s.invoices = append(s.invoices, inv.Clone())
	if err := s.save(); err != nil {
		s.invoices = s.invoices[:len(s.invoices)-1]
		delete(s.byID, inv.ID)
		return err
	}
	return nil
}

// Update replaces the invoice stored under id and writes the store to disk.
func (s *Service) Update(id string, inv model.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("updating invoice: %w: %s", ErrNotFound, id)
	}
	prev := s.invoices[idx]
	inv = inv.Clone()
	inv.ID = id
	s.invoices[idx] = inv
	if err := s.save(); err != nil {
		s.invoices[idx] = prev
		return err
	}
	return nil
}

// Paths returns the files backing the store, relative to the project root.
func Paths() []string {
	return []string{
		filepath.Join(storeDir, invoicesCSV),
		filepath.Join(storeDir, itemsCSV),
	}
}

func (s *Service) save() error {
	dir := filepath.Join(s.repoRoot, storeDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating invoices dir: %w", err)
	}
	if err := writeFile(s.path(invoicesCSV), func(f *os.File) error { return WriteInvoices(f, s.invoices) }); err != nil {
		return err
	}
	return writeFile(s.path(itemsCSV), func(f *os.File) error { return WriteItems(f, s.invoices) })
}

// Save writes the store to disk.
func (s *Service) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.save()
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

func (s *Service) path(name string) string {
	return filepath.Join(s.repoRoot, storeDir, name)
}
