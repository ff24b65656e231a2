// Package cache stores completed pipeline runs so their answers can be
// fetched and revalidated later.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Jeffawe/LedgerMind/internal/answer"
	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/plan"
	"github.com/Jeffawe/LedgerMind/internal/validate"
)

// ErrNotFound is returned when no run is stored under an id.
var ErrNotFound = errors.New("run not found")

// Record is one completed run. ID is the request id.
type Record struct {
	ID        string                `json:"id"`
	Request   domain.UserRequest    `json:"request"`
	Plan      plan.Plan             `json:"plan"`
	Evidence  []domain.ToolResponse `json:"evidence"`
	Answer    answer.EngineAnswer   `json:"answer"`
	Issues    []validate.Issue      `json:"issues"`
	CreatedAt time.Time             `json:"created_at"`
}

// Store persists run records. Implementations are safe for concurrent use.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

func stamp(rec Record) Record {
	if rec.ID == "" {
		rec.ID = rec.Request.RequestID
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec
}
