package analysis

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/tools"
)

type categorySummaryTool struct {
	deps Deps
}

func (t *categorySummaryTool) Spec() tools.Spec {
	return tools.Spec{
		Name:        CategorySummary,
		Description: "Summarize spend/income totals grouped by category for the filtered transaction date range.",
		ArgsSchema:  transactionArgsSchema(),
	}
}

type categoryTotals struct {
	Category    string  `json:"category"`
	TxnCount    int     `json:"txn_count"`
	DebitTotal  float64 `json:"debit_total"`
	CreditTotal float64 `json:"credit_total"`
	NetTotal    float64 `json:"net_total"`
}

func (t *categorySummaryTool) Run(ctx context.Context, req domain.ToolRequest) (domain.ToolResponse, error) {
	spec := t.Spec()
	if err := checkArgs(spec, req.Args); err != nil {
		return domain.ToolResponse{}, err
	}
	entries, q, err := fetch(ctx, t.deps, req, 30)
	if err != nil {
		return domain.ToolResponse{}, err
	}

	var (
		order  []string
		groups = make(map[string]*categoryTotals)
	)
	for _, e := range entries {
		name := categoryOf(e)
		g, ok := groups[name]
		if !ok {
			g = &categoryTotals{Category: name}
			groups[name] = g
			order = append(order, name)
		}
		g.TxnCount++
		if e.IsCredit() {
			g.CreditTotal += e.Amount
			g.NetTotal += e.Amount
		} else {
			g.DebitTotal += e.Amount
			g.NetTotal -= e.Amount
		}
	}

	categories := make([]categoryTotals, 0, len(order))
	var totalDebit, totalCredit, net float64
	for _, name := range order {
		g := groups[name]
		totalDebit += g.DebitTotal
		totalCredit += g.CreditTotal
		net += g.NetTotal
		categories = append(categories, categoryTotals{
			Category:    g.Category,
			TxnCount:    g.TxnCount,
			DebitTotal:  domain.Round2(g.DebitTotal),
			CreditTotal: domain.Round2(g.CreditTotal),
			NetTotal:    domain.Round2(g.NetTotal),
		})
	}
	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].DebitTotal+categories[i].CreditTotal > categories[j].DebitTotal+categories[j].CreditTotal
	})

	return domain.Success(req, spec.Name, map[string]any{
		"categories":        categories,
		"category_count":    len(categories),
		"total_debit":       domain.Round2(totalDebit),
		"total_credit":      domain.Round2(totalCredit),
		"net_total":         domain.Round2(net),
		"filters_used":      q.AsMap(),
		"transaction_count": len(entries),
	}), nil
}

type monthSummaryTool struct {
	deps Deps
}

const errMonthNumber = "month_number must be an integer from 1 to 12"

func (t *monthSummaryTool) Spec() tools.Spec {
	return tools.Spec{
		Name: MonthSummary,
		Description: "Summarize monthly spending/income totals and top categories. " +
			"Takes `month_number` (1-12) as an argument; optional `year` defaults to current year.",
		ArgsSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"month_number": map[string]any{
					"type":        "integer",
					"minimum":     1,
					"maximum":     12,
					"description": "Calendar month number to summarize (1=Jan ... 12=Dec).",
				},
				"year": map[string]any{
					"type":        "integer",
					"description": "Four-digit year for the monthly summary. Defaults to current year.",
				},
				"currency": map[string]any{"type": "string"},
				"filters":  map[string]any{"type": "object"},
			},
			"required": []any{"month_number"},
		},
	}
}

func (t *monthSummaryTool) Run(ctx context.Context, req domain.ToolRequest) (domain.ToolResponse, error) {
	spec := t.Spec()
	args := make(map[string]any, len(req.Args)+1)
	for k, v := range req.Args {
		args[k] = v
	}
	if _, ok := args["month_number"]; !ok {
		if m, ok := args["month"]; ok {
			args["month_number"] = m
		}
	}
	delete(args, "month")

	month, ok := intArg(args["month_number"])
	if !ok || month < 1 || month > 12 {
		return domain.Failure(req, spec.Name, errMonthNumber), nil
	}
	args["month_number"] = month

	day := today(t.deps.Now, req.Context.Timezone)
	year := day.Year()
	if y, ok := intArg(args["year"]); ok && y != 0 {
		year = y
	}
	if _, present := args["year"]; present {
		args["year"] = year
	}
	if err := checkArgs(spec, args); err != nil {
		return domain.ToolResponse{}, err
	}

	// Request filters stay authoritative for everything but the window.
	var q domain.TransactionQuery
	if req.Filters != nil {
		q = *req.Filters
	} else {
		var err error
		if q, err = domain.QueryFromArgs(args); err != nil {
			return domain.ToolResponse{}, err
		}
	}
	first := domain.NewDate(year, time.Month(month), 1)
	q.DateRange = domain.DateRange{Start: first, End: first.LastOfMonth()}
	scoped := req
	scoped.Filters = &q

	entries, q, err := fetch(ctx, t.deps, scoped, 31)
	if err != nil {
		return domain.ToolResponse{}, err
	}

	var debit, credit float64
	byCategory := newOrderedTotals()
	for _, e := range entries {
		if e.IsCredit() {
			credit += e.Amount
			continue
		}
		debit += e.Amount
		byCategory.add(categoryOf(e), e.Amount)
	}
	debit, credit = domain.Round2(debit), domain.Round2(credit)

	names := append([]string(nil), byCategory.keys...)
	sort.SliceStable(names, func(i, j int) bool {
		return byCategory.totals[names[i]] > byCategory.totals[names[j]]
	})
	if len(names) > 5 {
		names = names[:5]
	}
	top := make([]map[string]any, 0, len(names))
	for _, n := range names {
		top = append(top, map[string]any{"category": n, "debit_total": domain.Round2(byCategory.totals[n])})
	}

	return domain.Success(req, spec.Name, map[string]any{
		"year":                 year,
		"month_number":         month,
		"month_name":           time.Month(month).String(),
		"transaction_count":    len(entries),
		"debit_total":          debit,
		"credit_total":         credit,
		"net_cashflow":         domain.Round2(credit - debit),
		"top_debit_categories": top,
		"filters_used":         q.AsMap(),
	}), nil
}

// intArg accepts JSON numbers with no fractional part and numeric strings.
func intArg(v any) (int, bool) {
	if s, ok := v.(string); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		return n, err == nil
	}
	f, ok := domain.Number(v)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}
