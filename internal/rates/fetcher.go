package rates

import (
	"context"
	"sync"

	"github.com/invoicely/invoicely/internal/currency"
)

// Fetcher requests a rate table once in the background and serves whatever
// snapshot is available. It never retries.
type Fetcher struct {
	source Source

	once  sync.Once
	done  chan struct{}
	mu    sync.RWMutex
	rates currency.Rates
	err   error
}

// NewFetcher creates a Fetcher for source. Nothing is fetched until Start.
func NewFetcher(source Source) *Fetcher {
	return &Fetcher{source: source, done: make(chan struct{})}
}

// Start launches the fetch. Later calls do nothing.
func (f *Fetcher) Start(ctx context.Context) {
	f.once.Do(func() {
		go func() {
			defer close(f.done)
			table, err := f.source.Fetch(ctx)
			f.mu.Lock()
			defer f.mu.Unlock()
			f.rates, f.err = table, err
		}()
	})
}

// Snapshot returns a copy of the current table, or nil if the fetch has not
// finished or failed.
func (f *Fetcher) Snapshot() currency.Rates {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.rates.Clone()
}

// Err returns the fetch error, if any.
func (f *Fetcher) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

// Wait starts the fetch if needed and blocks until it finishes or ctx ends.
func (f *Fetcher) Wait(ctx context.Context) (currency.Rates, error) {
	f.Start(ctx)
	select {
	case <-f.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := f.Err(); err != nil {
		return nil, err
	}
	return f.Snapshot(), nil
}

// Static is a Source that returns a fixed table.
type Static currency.Rates

// Fetch returns a copy of the table.
func (s Static) Fetch(_ context.Context) (currency.Rates, error) {
	if len(s) == 0 {
		return nil, ErrEmptyTable
	}
	return currency.Rates(s).Clone(), nil
}
