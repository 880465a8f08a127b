package products

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/invoicely/invoicely/internal/model"
)

const (
	catalogDir  = "catalog"
	productsCSV = "products.csv"
)

var (
	// ErrNotFound is returned when updating a product that is not in the catalog.
	ErrNotFound = errors.New("product not found")
	// ErrDuplicate is returned when adding a product whose ID is taken.
	ErrDuplicate = errors.New("product already exists")
)

// Service is the product catalog backed by catalog/products.csv.
// Every change is written through to disk.
type Service struct {
	repoRoot string

	mu       sync.RWMutex
	products []model.Product
	byID     map[string]int
}

// NewService creates a catalog rooted at repoRoot holding products.
func NewService(repoRoot string, products []model.Product) *Service {
	s := &Service{repoRoot: repoRoot, byID: make(map[string]int, len(products))}
	for _, p := range products {
		if idx, ok := s.byID[p.ID]; ok {
			s.products[idx] = p
			continue
		}
		s.byID[p.ID] = len(s.products)
		s.products = append(s.products, p)
	}
	return s
}

// Load reads catalog/products.csv from a repo root. A missing file is an
// empty catalog.
func Load(repoRoot string) (*Service, error) {
	f, err := os.Open(Path(repoRoot))
	if errors.Is(err, fs.ErrNotExist) {
		return NewService(repoRoot, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening product catalog: %w", err)
	}
	defer f.Close()

	products, err := ReadProducts(f)
	if err != nil {
		return nil, fmt.Errorf("reading product catalog: %w", err)
	}
	return NewService(repoRoot, products), nil
}

// Path returns the catalog file under repoRoot.
func Path(repoRoot string) string {
	return filepath.Join(repoRoot, catalogDir, productsCSV)
}

// Paths returns the files backing the catalog, relative to the project root.
func Paths() []string {
	return []string{filepath.Join(catalogDir, productsCSV)}
}

// All returns all products in insertion order.
func (s *Service) All() []model.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Product, len(s.products))
	copy(out, s.products)
	return out
}

// Get returns a product by ID.
func (s *Service) Get(id string) (model.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return model.Product{}, false
	}
	return s.products[idx], true
}

// Add stores a new product.
func (s *Service) Add(p model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		return fmt.Errorf("adding product: missing id")
	}
	if _, ok := s.byID[p.ID]; ok {
		return fmt.Errorf("adding product: %w: %s", ErrDuplicate, p.ID)
	}
	return s.commit(func() { s.insert(p) })
}

// Update replaces the product stored under p.ID.
func (s *Service) Update(p model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[p.ID]
	if !ok {
		return fmt.Errorf("updating product: %w: %s", ErrNotFound, p.ID)
	}
	return s.commit(func() { s.products[idx] = p })
}

// Upsert adds or replaces each product and writes the catalog once.
func (s *Service) Upsert(products ...model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		if p.ID == "" {
			return fmt.Errorf("upserting product %q: missing id", p.Name)
		}
	}
	return s.commit(func() {
		for _, p := range products {
			if idx, ok := s.byID[p.ID]; ok {
				s.products[idx] = p
				continue
			}
			s.insert(p)
		}
	})
}

// Replace swaps the whole catalog for products and writes it once.
// A later duplicate ID wins, as in NewService.
func (s *Service) Replace(products []model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		if p.ID == "" {
			return fmt.Errorf("replacing catalog: product %q has no id", p.Name)
		}
	}
	return s.commit(func() {
		s.products = nil
		s.byID = make(map[string]int, len(products))
		for _, p := range products {
			if idx, ok := s.byID[p.ID]; ok {
				s.products[idx] = p
				continue
			}
			s.insert(p)
		}
	})
}

// Save writes the catalog to catalog/products.csv.
func (s *Service) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.save()
}

func (s *Service) insert(p model.Product) {
	s.byID[p.ID] = len(s.products)
	s.products = append(s.products, p)
}

// commit applies change and saves, restoring the previous catalog if the
// write fails. Callers hold s.mu.
func (s *Service) commit(change func()) error {
	prev := make([]model.Product, len(s.products))
	copy(prev, s.products)
	prevByID := make(map[string]int, len(s.byID))
	for k, v := range s.byID {
		prevByID[k] = v
	}

	change()
	if err := s.save(); err != nil {
		s.products = prev
		s.byID = prevByID
		return err
	}
	return nil
}

func (s *Service) save() error {
	dir := filepath.Join(s.repoRoot, catalogDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating catalog dir: %w", err)
	}

	f, err := os.Create(Path(s.repoRoot))
	if err != nil {
		return fmt.Errorf("creating product catalog file: %w", err)
	}
	defer f.Close()

	if err := WriteProducts(f, s.products); err != nil {
		return fmt.Errorf("writing product catalog: %w", err)
	}
	return nil
}
