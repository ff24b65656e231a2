package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeffawe/LedgerMind/internal/answer"
	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/plan"
	"github.com/Jeffawe/LedgerMind/internal/validate"
)

func record(id string, at time.Time) Record {
	return Record{
		Request: domain.UserRequest{RequestID: id, UserID: "u_1", Message: "spending?"},
		Plan: plan.Plan{
			SchemaVersion: plan.SchemaVersion,
			Objective:     "Review",
			Calls:         []plan.Call{{ID: "s1", Tool: "ledger.category_summary", Args: map[string]any{}, Purpose: "p"}},
		},
		Evidence: []domain.ToolResponse{{
			RequestID: id + ":s1",
			Tool:      "ledger.category_summary",
			OK:        true,
			Result:    map[string]any{"debit_total": 487.45},
			Errors:    []string{},
		}},
		Answer: answer.EngineAnswer{
			SchemaVersion: answer.SchemaVersion,
			Summary:       answer.Summary{Headline: "You spent $487.45"},
		},
		Issues:    []validate.Issue{{Code: validate.CodeOptionsCount, Path: "options", Severity: validate.SeverityWarn}},
		CreatedAt: at,
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	mem, err := NewMemory(8)
	require.NoError(t, err)
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return map[string]Store{"memory": mem, "sqlite": db}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, record("req_1", at)))

			got, err := s.Get(ctx, "req_1")
			require.NoError(t, err)
			assert.Equal(t, "req_1", got.ID)
			assert.Equal(t, "You spent $487.45", got.Answer.Summary.Headline)
			assert.Equal(t, 487.45, got.Evidence[0].Result["debit_total"])
			assert.Equal(t, "ledger.category_summary", got.Plan.Calls[0].Tool)
			assert.Len(t, got.Issues, 1)
			assert.True(t, at.Equal(got.CreatedAt))
		})
	}
}

func TestStoreNotFound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreReplaceAndList(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, record("req_a", base)))
			require.NoError(t, s.Put(ctx, record("req_b", base.Add(time.Hour))))
			require.NoError(t, s.Put(ctx, record("req_c", base.Add(2*time.Hour))))

			updated := record("req_a", base.Add(3*time.Hour))
			updated.Answer.Summary.Headline = "updated"
			require.NoError(t, s.Put(ctx, updated))

			recs, err := s.List(ctx, 2)
			require.NoError(t, err)
			require.Len(t, recs, 2)
			assert.Equal(t, "req_a", recs[0].ID)
			assert.Equal(t, "updated", recs[0].Answer.Summary.Headline)
			assert.Equal(t, "req_c", recs[1].ID)

			all, err := s.List(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestListOrdersSubSecond(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, record("req_older", base)))
			require.NoError(t, s.Put(ctx, record("req_newer", base.Add(500*time.Millisecond))))
			require.NoError(t, s.Put(ctx, record("req_newest", base.Add(500*time.Millisecond+time.Nanosecond))))

			recs, err := s.List(ctx, 0)
			require.NoError(t, err)
			require.Len(t, recs, 3)
			assert.Equal(t, []string{"req_newest", "req_newer", "req_older"},
				[]string{recs[0].ID, recs[1].ID, recs[2].ID})
		})
	}
}

func TestPutStampsRecord(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rec := record("req_z", time.Time{})
			require.NoError(t, s.Put(context.Background(), rec))
			got, err := s.Get(context.Background(), "req_z")
			require.NoError(t, err)
			assert.False(t, got.CreatedAt.IsZero())

			assert.Error(t, s.Put(context.Background(), Record{}))
		})
	}
}

func TestMemoryEvictsOldest(t *testing.T) {
	mem, err := NewMemory(2)
	require.NoError(t, err)
	ctx := context.Background()
	now := time.Now()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, mem.Put(ctx, record(id, now)))
	}
	assert.Equal(t, 2, mem.Len())
	_, err = mem.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLitePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	db, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, db.Put(context.Background(), record("req_keep", time.Now())))
	require.NoError(t, db.Close())

	again, err := OpenSQLite(path)
	require.NoError(t, err)
	defer again.Close()
	_, err = again.Get(context.Background(), "req_keep")
	assert.NoError(t, err)
}
