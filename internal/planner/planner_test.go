package planner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/llm"
	"github.com/Jeffawe/LedgerMind/internal/plan"
	"github.com/Jeffawe/LedgerMind/internal/tools"
)

func fixedNow() time.Time { return time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC) }

func stubTool(name string) tools.Tool {
	return tools.Func{
		ToolSpec: tools.Spec{Name: name, Description: "stub"},
		Fn: func(_ context.Context, req domain.ToolRequest) (domain.ToolResponse, error) {
			return domain.Success(req, name, map[string]any{}), nil
		},
	}
}

func registry(names ...string) *tools.Registry {
	reg := tools.NewRegistry()
	for _, n := range names {
		reg.Register(stubTool(n))
	}
	return reg
}

func request() domain.UserRequest {
	return domain.UserRequest{RequestID: "req_1", UserID: "u_1", Message: "How am I doing?"}
}

func newPlanner(mock *llm.MockProvider, reg *tools.Registry) *Planner {
	client := llm.NewClient(mock, llm.ClientOptions{})
	return New(client, reg, Options{Now: fixedNow})
}

const modelPlan = `{
  "objective": "Review spending",
  "calls": [
    {"id": "s1", "tool": "ledger.monthly_summary", "args": {"month": 3}, "purpose": "month view"},
    {"id": "s2", "tool": "ledger.unknown", "args": {}, "purpose": "nope"}
  ],
  "output": {"response_schema": "ledgermind.v1.decision_response", "focus": ["spend_reduction"]}
}`

func TestAcquireParsedPlan(t *testing.T) {
	mock := &llm.MockProvider{Response: "```json\n" + modelPlan + "\n```"}
	p := newPlanner(mock, registry("ledger.category_summary", "ledger.monthly_summary"))

	res := p.Acquire(context.Background(), request())
	if res.Outcome != plan.OutcomeParsed {
		t.Fatalf("Outcome = %q (%s), want parsed", res.Outcome, res.Reason)
	}
	if res.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", res.Dropped)
	}
	if got := res.Plan.ToolNames(); len(got) != 1 || got[0] != "ledger.monthly_summary" {
		t.Errorf("ToolNames = %v", got)
	}
	if res.Plan.SchemaVersion != plan.SchemaVersion {
		t.Errorf("SchemaVersion = %q", res.Plan.SchemaVersion)
	}
	prompts := mock.Prompts()
	if len(prompts) != 1 || !strings.Contains(prompts[0], "2026-03-14") {
		t.Errorf("prompt should carry today's date")
	}
}

func TestAcquireFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		response string
		reason   string
		dropped  int
	}{
		{"empty output", "", ReasonEmptyOutput, 0},
		{"whitespace output", "   \n", ReasonEmptyOutput, 0},
		{"not json", "I think you should save more", ReasonInvalidPlan, 0},
		{"schema violation", `{"objective": "x"}`, ReasonInvalidPlan, 0},
		{"only unknown tools", `{"objective":"x","calls":[{"id":"s1","tool":"bank.transfer","purpose":"p"}],"output":{"response_schema":"r"}}`, ReasonNoKnownTools, 1},
		{"no calls", `{"objective":"x","calls":[],"output":{"response_schema":"r"}}`, ReasonNoKnownTools, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPlanner(&llm.MockProvider{Response: tt.response}, registry("ledger.monthly_summary", "ledger.category_summary"))
			res := p.Acquire(context.Background(), request())
			if res.Outcome != plan.OutcomeFallback {
				t.Fatalf("Outcome = %q, want fallback", res.Outcome)
			}
			if res.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", res.Reason, tt.reason)
			}
			if res.Dropped != tt.dropped {
				t.Errorf("Dropped = %d, want %d", res.Dropped, tt.dropped)
			}
			if got := res.Plan.ToolNames(); len(got) != 1 || got[0] != DefaultPreferredTool {
				t.Errorf("ToolNames = %v, want preferred tool", got)
			}
		})
	}
}

func TestProviderErrorFallsBack(t *testing.T) {
	mock := &llm.MockProvider{Err: context.DeadlineExceeded}
	p := newPlanner(mock, registry("ledger.category_summary"))
	res := p.Acquire(context.Background(), request())
	if res.Outcome != plan.OutcomeFallback || res.Reason != ReasonEmptyOutput {
		t.Errorf("got %q/%q", res.Outcome, res.Reason)
	}
}

func TestEmptyPlanWithoutTools(t *testing.T) {
	mock := &llm.MockProvider{Response: modelPlan}
	p := newPlanner(mock, tools.NewRegistry())
	res := p.Acquire(context.Background(), request())
	if res.Outcome != plan.OutcomeEmpty {
		t.Fatalf("Outcome = %q, want empty", res.Outcome)
	}
	if mock.Calls() != 0 {
		t.Errorf("model should not be called without tools")
	}
	if res.Plan.Objective != "How am I doing?" || len(res.Plan.Calls) != 0 {
		t.Errorf("plan = %+v", res.Plan)
	}
	if res.Plan.Calls == nil {
		t.Errorf("Calls should be an empty slice")
	}
	if res.Plan.Assumptions.Currency != "USD" {
		t.Errorf("Currency = %q", res.Plan.Assumptions.Currency)
	}
}

func TestNilCompleterFallsBack(t *testing.T) {
	p := New(nil, registry("ledger.category_summary"), Options{Now: fixedNow})
	if got := p.Acquire(context.Background(), request()).Outcome; got != plan.OutcomeFallback {
		t.Errorf("Outcome = %q", got)
	}
}

func TestFallbackPlanShape(t *testing.T) {
	day := domain.NewDate(2026, time.March, 14)
	specs := []tools.Spec{{Name: "ledger.cashflow_30d"}, {Name: "ledger.category_summary"}}

	p := FallbackPlan(specs, DefaultPreferredTool, day)
	if len(p.Calls) != 1 {
		t.Fatalf("calls = %d", len(p.Calls))
	}
	c := p.Calls[0]
	if c.ID != "s1" || c.Tool != DefaultPreferredTool {
		t.Errorf("call = %+v", c)
	}
	if c.Purpose != "Compute spending and income totals by category" {
		t.Errorf("Purpose = %q", c.Purpose)
	}
	window, ok := c.Args["date_range"].(map[string]any)
	if !ok || window["start"] != "2026-03-01" || window["end"] != "2026-03-14" {
		t.Errorf("date_range = %v", c.Args["date_range"])
	}
	if c.Args["exclude_transfers"] != true {
		t.Errorf("exclude_transfers = %v", c.Args["exclude_transfers"])
	}
	if p.Assumptions.DateRange == nil || p.Assumptions.DateRange.Start.String() != "2026-03-01" {
		t.Errorf("assumptions = %+v", p.Assumptions)
	}
	if p.Output.ResponseSchema != plan.ResponseSchema {
		t.Errorf("ResponseSchema = %q", p.Output.ResponseSchema)
	}
	if len(p.Output.Focus) != 2 || p.Output.Focus[1] != "cash_buffer" {
		t.Errorf("Focus = %v", p.Output.Focus)
	}

	other := FallbackPlan(specs, "ledger.missing", day)
	if other.Calls[0].Tool != "ledger.cashflow_30d" {
		t.Errorf("without preferred tool, want first spec; got %q", other.Calls[0].Tool)
	}
}

func TestTodayUsesTimezone(t *testing.T) {
	tests := []struct {
		tz   string
		want string
	}{
		{"UTC", "2026-03-14"},
		{"Asia/Tokyo", "2026-03-15"},
		{"Not/AZone", "2026-03-14"},
		{"", "2026-03-14"},
	}
	for _, tt := range tests {
		if got := Today(fixedNow, tt.tz).String(); got != tt.want {
			t.Errorf("Today(%q) = %s, want %s", tt.tz, got, tt.want)
		}
	}
}
