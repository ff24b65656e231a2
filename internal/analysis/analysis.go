// Package analysis implements the deterministic ledger analysis tools the
// planner can call.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/ledger"
	"github.com/Jeffawe/LedgerMind/internal/profile"
	"github.com/Jeffawe/LedgerMind/internal/schema"
	"github.com/Jeffawe/LedgerMind/internal/tools"
)

// Tool names.
const (
	CategorySummary      = "ledger.category_summary"
	CategorySummaryAlias = "ledgers.category_summary"
	MonthSummary         = "ledgers.month_summary"
	Anomalies            = "detect.anomalies"
	RecurringCharges     = "detect.recurring_charges"
	Subscriptions        = "detect.subscriptions"
	CashflowForecast     = "forecast.cashflow_30d"
	CheckRecommendation  = "policy.check_recommendation"
	uncategorized        = "uncategorized"
)

// Ledger is the transaction query surface the tools read from.
type Ledger interface {
	Query(ctx context.Context, q domain.TransactionQuery) ([]ledger.Entry, error)
}

// Deps are the collaborators shared by the tools.
type Deps struct {
	Ledger   Ledger
	Profiles *profile.Store
	// Now defaults to time.Now.
	Now func() time.Time
}

// RegisterDefaults registers every analysis tool and its aliases.
func RegisterDefaults(reg *tools.Registry, deps Deps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	category := &categorySummaryTool{deps: deps}
	recurring := &recurringTool{deps: deps}

	reg.Register(category)
	reg.Register(tools.Alias(CategorySummaryAlias, category))
	reg.Register(&monthSummaryTool{deps: deps})
	reg.Register(&anomaliesTool{deps: deps})
	reg.Register(recurring)
	reg.Register(tools.Alias(Subscriptions, recurring))
	reg.Register(&cashflowTool{deps: deps})
	reg.Register(&policyTool{deps: deps})
}

// transactionArgsSchema is the args schema shared by the transaction tools.
func transactionArgsSchema() map[string]any {
	str := map[string]any{"type": "string"}
	strList := map[string]any{"type": "array", "items": str}
	num := map[string]any{"type": "number"}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"date_range": map[string]any{
				"type": []any{"object", "null"},
				"properties": map[string]any{
					"start": map[string]any{"type": "string", "description": "YYYY-MM-DD"},
					"end":   map[string]any{"type": "string", "description": "YYYY-MM-DD"},
				},
				"required": []any{"start", "end"},
			},
			"group_by": map[string]any{"type": []any{"string", "null"}},
			"filters": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"accounts":          strList,
					"exclude_transfers": map[string]any{"type": "boolean"},
				},
			},
			"currency":          str,
			"source":            str,
			"providers":         strList,
			"accounts":          strList,
			"categories":        strList,
			"query":             str,
			"txn_type":          map[string]any{"type": "string", "enum": []any{"debit", "credit"}},
			"positive":          map[string]any{"type": "boolean"},
			"min_amount":        num,
			"max_amount":        num,
			"exclude_transfers": map[string]any{"type": "boolean"},
			"extra":             map[string]any{"type": "object"},
		},
	}
}

func checkArgs(spec tools.Spec, args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	if err := schema.ValidateValue(spec.ArgsSchema, args); err != nil {
		return fmt.Errorf("invalid args for %s: %w", spec.Name, err)
	}
	return nil
}

// today returns the current date in the request timezone.
func today(now func() time.Time, tz string) domain.Date {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc = time.UTC
	}
	return domain.DateOf(now().In(loc))
}

// resolveQuery returns the filters a tool runs with: request filters when
// present, otherwise filters read from args, and a trailing window of
// defaultDays ending today when no date range is given.
func resolveQuery(req domain.ToolRequest, day domain.Date, defaultDays int) (domain.TransactionQuery, error) {
	var q domain.TransactionQuery
	if req.Filters != nil {
		q = *req.Filters
	} else {
		var err error
		if q, err = domain.QueryFromArgs(req.Args); err != nil {
			return q, err
		}
	}
	if q.DateRange.Start.IsZero() || q.DateRange.End.IsZero() {
		q.DateRange = domain.DateRange{Start: day.AddDays(-(defaultDays - 1)), End: day}
	}
	if err := q.Validate(); err != nil {
		return q, err
	}
	return q, nil
}

// fetch resolves the query for req and loads the matching entries.
func fetch(ctx context.Context, deps Deps, req domain.ToolRequest, defaultDays int) ([]ledger.Entry, domain.TransactionQuery, error) {
	q, err := resolveQuery(req, today(deps.Now, req.Context.Timezone), defaultDays)
	if err != nil {
		return nil, q, err
	}
	if deps.Ledger == nil {
		return nil, q, fmt.Errorf("no ledger configured")
	}
	entries, err := deps.Ledger.Query(ctx, q)
	if err != nil {
		return nil, q, err
	}
	return entries, q, nil
}

func categoryOf(e ledger.Entry) string {
	if e.Category == "" {
		return uncategorized
	}
	return e.Category
}

// orderedTotals accumulates per-key totals and remembers first-seen order.
type orderedTotals struct {
	keys   []string
	totals map[string]float64
}

func newOrderedTotals() *orderedTotals {
	return &orderedTotals{totals: make(map[string]float64)}
}

func (o *orderedTotals) add(key string, v float64) {
	if _, ok := o.totals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.totals[key] += v
}
