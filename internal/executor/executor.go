// Package executor runs the calls of a plan against the tool registry.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/metrics"
	"github.com/Jeffawe/LedgerMind/internal/plan"
	"github.com/Jeffawe/LedgerMind/internal/tools"
)

// Options configures an Executor.
type Options struct {
	// LedgerID scopes every tool call; defaults to domain.DefaultLedgerID.
	LedgerID string
	Logger   *slog.Logger
}

// Executor runs plan calls sequentially. A failing call never stops the run.
type Executor struct {
	registry *tools.Registry
	ledgerID string
	logger   *slog.Logger
}

// New returns an Executor resolving tools from reg.
func New(reg *tools.Registry, opts Options) *Executor {
	e := &Executor{registry: reg, ledgerID: opts.LedgerID, logger: opts.Logger}
	if e.ledgerID == "" {
		e.ledgerID = domain.DefaultLedgerID
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Run executes every call of p in order and returns one response per call.
func (e *Executor) Run(ctx context.Context, p plan.Plan, req domain.UserRequest) []domain.ToolResponse {
	req = req.WithDefaults()
	tctx := domain.ToolContext{
		UserID:        req.UserID,
		LedgerID:      e.ledgerID,
		Timezone:      req.Context.Timezone,
		PolicyProfile: req.Context.PolicyProfile,
	}

	out := make([]domain.ToolResponse, 0, len(p.Calls))
	for _, call := range p.Calls {
		treq := domain.ToolRequest{
			RequestID: req.RequestID + ":" + call.ID,
			Tool:      call.Tool,
			Args:      call.Args,
			Filters:   filtersFromArgs(call.Args),
			Context:   tctx,
		}
		if treq.Args == nil {
			treq.Args = map[string]any{}
		}

		start := time.Now()
		resp := e.runOne(ctx, treq)
		metrics.RecordToolCall(call.Tool, resp.OK)

		log := e.logger.With("request_id", req.RequestID, "call_id", call.ID, "tool", call.Tool, "elapsed", time.Since(start))
		if resp.OK {
			log.Info("tool call complete")
		} else {
			log.Warn("tool call failed", "errors", resp.Errors)
		}
		out = append(out, resp)
	}
	return out
}

func (e *Executor) runOne(ctx context.Context, req domain.ToolRequest) (resp domain.ToolResponse) {
	defer func() {
		if r := recover(); r != nil {
			resp = domain.Failure(req, req.Tool, fmt.Sprintf("panic: %v", r))
		}
	}()

	if e.registry == nil {
		return domain.Failure(req, req.Tool, fmt.Sprintf("%v: %q", tools.ErrToolNotFound, req.Tool))
	}
	tool, err := e.registry.Get(req.Tool)
	if err != nil {
		return domain.Failure(req, req.Tool, errorMessage(err))
	}

	resp, err = tool.Run(ctx, req)
	if err != nil {
		return domain.Failure(req, req.Tool, errorMessage(err))
	}
	return normalize(req, resp)
}

// normalize fills envelope fields a tool left empty.
func normalize(req domain.ToolRequest, resp domain.ToolResponse) domain.ToolResponse {
	if resp.RequestID == "" {
		resp.RequestID = req.RequestID
	}
	if resp.Tool == "" {
		resp.Tool = req.Tool
	}
	if resp.Context == (domain.ToolContext{}) {
		resp.Context = req.Context
	}
	if resp.Result == nil {
		resp.Result = map[string]any{}
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	return resp
}

// errorMessage is the error text, or its Go type when the text is empty.
func errorMessage(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	if u := errors.Unwrap(err); u != nil && u.Error() != "" {
		return u.Error()
	}
	return fmt.Sprintf("%T", err)
}

// filtersFromArgs derives canonical filters when args carry a usable date
// range; otherwise tools read their args directly.
func filtersFromArgs(args map[string]any) *domain.TransactionQuery {
	q, err := domain.QueryFromArgs(args)
	if err != nil || q.DateRange.Start.IsZero() || q.DateRange.End.IsZero() {
		return nil
	}
	if q.DateRange.Validate() != nil {
		return nil
	}
	return &q
}
