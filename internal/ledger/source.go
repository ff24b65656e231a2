package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Jeffawe/LedgerMind/internal/domain"
)

// Source supplies normalized transactions. Implementations may apply q
// partially; the Aggregator re-applies every filter.
type Source interface {
	Name() string
	Transactions(ctx context.Context, q domain.TransactionQuery) ([]Transaction, error)
}

// Static is an in-memory Source.
type Static struct {
	name string
	txns []Transaction
}

func NewStatic(name string, txns []Transaction) *Static {
	return &Static{name: name, txns: append([]Transaction(nil), txns...)}
}

func (s *Static) Name() string { return s.name }

func (s *Static) Transactions(_ context.Context, q domain.TransactionQuery) ([]Transaction, error) {
	out := make([]Transaction, 0, len(s.txns))
	for _, t := range s.txns {
		if Matches(t, q) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Aggregator merges transactions from the registered sources.
type Aggregator struct {
	mu      sync.RWMutex
	sources map[string]Source
}

func NewAggregator(sources ...Source) *Aggregator {
	a := &Aggregator{sources: make(map[string]Source)}
	for _, s := range sources {
		a.Add(s)
	}
	return a
}

// Add registers s, replacing any source with the same name.
func (a *Aggregator) Add(s Source) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sources[s.Name()] = s
}

func (a *Aggregator) Remove(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sources, name)
}

// Names returns the registered source names, sorted.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.namesLocked()
}

// Query fetches matching transactions from every selected source. With no
// source filter in q all sources are queried, in name order.
func (a *Aggregator) Query(ctx context.Context, q domain.TransactionQuery) ([]Entry, error) {
	var out []Entry
	for _, src := range a.selected(q) {
		txns, err := src.Transactions(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("ledger.Query: source %s: %w", src.Name(), err)
		}
		for _, t := range txns {
			if Matches(t, q) {
				out = append(out, Entry{Transaction: t, Provider: src.Name()})
			}
		}
	}
	return out, nil
}

func (a *Aggregator) selected(q domain.TransactionQuery) []Source {
	a.mu.RLock()
	defer a.mu.RUnlock()

	requested := q.RequestedSources()
	var out []Source
	for _, name := range a.namesLocked() {
		if len(requested) > 0 && !contains(requested, name, false) {
			continue
		}
		out = append(out, a.sources[name])
	}
	return out
}

func (a *Aggregator) namesLocked() []string {
	names := make([]string, 0, len(a.sources))
	for n := range a.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
