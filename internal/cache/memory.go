package cache

import (
	"context"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemorySize bounds a Memory store created with a non-positive size.
const DefaultMemorySize = 256

// Memory keeps the most recently written runs in an LRU.
type Memory struct {
	runs *lru.Cache[string, Record]
}

var _ Store = (*Memory)(nil)

func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	runs, err := lru.New[string, Record](size)
	if err != nil {
		return nil, fmt.Errorf("cache.NewMemory: %w", err)
	}
	return &Memory{runs: runs}, nil
}

func (m *Memory) Put(_ context.Context, rec Record) error {
	rec = stamp(rec)
	if rec.ID == "" {
		return fmt.Errorf("cache.Put: record has no id")
	}
	m.runs.Add(rec.ID, rec)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (Record, error) {
	rec, ok := m.runs.Get(id)
	if !ok {
		return Record{}, fmt.Errorf("cache.Get %q: %w", id, ErrNotFound)
	}
	return rec, nil
}

func (m *Memory) List(_ context.Context, limit int) ([]Record, error) {
	recs := m.runs.Values()
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// Len reports how many runs are held.
func (m *Memory) Len() int { return m.runs.Len() }

func (m *Memory) Close() error {
	m.runs.Purge()
	return nil
}
