package analysis

import (
	"context"

	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/tools"
)

type cashflowTool struct {
	deps Deps
}

func (t *cashflowTool) Spec() tools.Spec {
	return tools.Spec{
		Name:        CashflowForecast,
		Description: "Project net cashflow over the next 30 days using recent daily income/spend patterns.",
		ArgsSchema:  transactionArgsSchema(),
	}
}

func (t *cashflowTool) Run(ctx context.Context, req domain.ToolRequest) (domain.ToolResponse, error) {
	spec := t.Spec()
	if err := checkArgs(spec, req.Args); err != nil {
		return domain.ToolResponse{}, err
	}
	entries, q, err := fetch(ctx, t.deps, req, 90)
	if err != nil {
		return domain.ToolResponse{}, err
	}

	var debit, credit float64
	for _, e := range entries {
		if e.IsCredit() {
			credit += e.Amount
		} else {
			debit += e.Amount
		}
	}

	days := max(q.DateRange.Days(), 1)
	avgNet := (credit - debit) / float64(days)
	avgSpend := debit / float64(days)
	avgIncome := credit / float64(days)

	start := today(t.deps.Now, req.Context.Timezone).AddDays(1)
	return domain.Success(req, spec.Name, map[string]any{
		"lookback_days":              days,
		"lookback_transaction_count": len(entries),
		"avg_daily_net":              domain.Round2(avgNet),
		"avg_daily_spend":            domain.Round2(avgSpend),
		"avg_daily_income":           domain.Round2(avgIncome),
		"projected_30d": map[string]any{
			"start":        start.String(),
			"end":          start.AddDays(29).String(),
			"net_cashflow": domain.Round2(avgNet * 30),
			"spend":        domain.Round2(avgSpend * 30),
			"income":       domain.Round2(avgIncome * 30),
		},
		"method":       "simple trailing average over lookback window (default 90 days)",
		"filters_used": q.AsMap(),
	}), nil
}
