package composer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Jeffawe/LedgerMind/internal/answer"
	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/llm"
	"github.com/Jeffawe/LedgerMind/internal/plan"
	"github.com/Jeffawe/LedgerMind/internal/validate"
)

func request() domain.UserRequest {
	return domain.UserRequest{RequestID: "req_42", UserID: "u_1", Message: "Where can I cut back?"}
}

func testPlan() plan.Plan {
	return plan.Plan{
		SchemaVersion: plan.SchemaVersion,
		Objective:     "Review spending",
		Calls:         []plan.Call{{ID: "s1", Tool: "ledger.category_summary", Purpose: "totals"}},
	}
}

func evidence() []domain.ToolResponse {
	return []domain.ToolResponse{
		{
			RequestID: "req_42:s1",
			Tool:      "ledger.category_summary",
			OK:        true,
			Result: map[string]any{
				"debit_total":  487.45,
				"credit_total": 3200,
				"currency":     "USD",
				"categories":   []any{},
				"has_data":     true,
			},
		},
		{RequestID: "req_42:s2", Tool: "detect.anomalies", OK: true, Result: map[string]any{"count": 2}},
	}
}

const modelAnswer = `{
  "schema": "ledgermind.answer.v1",
  "summary": {"headline": "Dining is your largest flexible spend", "bullets": []},
  "supporting_numbers": [],
  "options": [
    {"id": "o1", "title": "Cook at home", "why": "cheaper", "steps": ["plan meals"], "impact": [], "tradeoffs": []},
    {"id": "o2", "title": "Cap dining", "why": "measurable", "steps": ["set cap"], "impact": [], "tradeoffs": []}
  ],
  "recommended_action": {"title": "Cap dining", "next_7_days": [], "next_30_days": [], "policy_alignment": []},
  "risks_and_tradeoffs": []
}`

func compose(t *testing.T, mock *llm.MockProvider, ev []domain.ToolResponse) Resolution {
	t.Helper()
	c := New(llm.NewClient(mock, llm.ClientOptions{}), Options{})
	return c.Resolve(context.Background(), request(), testPlan(), ev)
}

func TestResolveUsesModelAnswer(t *testing.T) {
	mock := &llm.MockProvider{Response: modelAnswer}
	res := compose(t, mock, evidence())
	if res.Source != SourceModel {
		t.Fatalf("Source = %q (%s), want model", res.Source, res.Reason)
	}
	if res.Answer.Summary.Headline != "Dining is your largest flexible spend" {
		t.Errorf("Headline = %q", res.Answer.Summary.Headline)
	}
	prompts := mock.Prompts()
	if len(prompts) != 1 || !strings.Contains(prompts[0], `"citation_id": "c2"`) {
		t.Errorf("prompt should list evidence with citation ids")
	}
}

func TestResolveFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		mock   *llm.MockProvider
		reason string
	}{
		{"empty", &llm.MockProvider{Response: ""}, ReasonEmptyOutput},
		{"provider error", &llm.MockProvider{Err: errors.New("connection refused")}, ReasonEmptyOutput},
		{"prose", &llm.MockProvider{Response: "Spend less on coffee."}, ReasonInvalidAnswer},
		{"contract violation", &llm.MockProvider{Response: `{"summary": {"bullets": []}}`}, ReasonInvalidAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compose(t, tt.mock, evidence())
			if res.Source != SourceFallback {
				t.Fatalf("Source = %q, want fallback", res.Source)
			}
			if res.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", res.Reason, tt.reason)
			}
		})
	}
}

func TestFallbackNumbersFromFirstEvidence(t *testing.T) {
	a := Fallback(request(), testPlan(), evidence())

	if len(a.SupportingNumbers) != 2 {
		t.Fatalf("SupportingNumbers = %+v, want 2", a.SupportingNumbers)
	}
	first, second := a.SupportingNumbers[0], a.SupportingNumbers[1]
	if first.ID != "n1" || first.Label != "Credit Total (ledger.category_summary)" || first.Value != 3200 {
		t.Errorf("first = %+v", first)
	}
	if second.ID != "n2" || second.Value != 487.45 {
		t.Errorf("second = %+v", second)
	}
	if second.EvidenceRef == nil || second.EvidenceRef.CitationID != "c1" || second.EvidenceRef.Path != "result.debit_total" {
		t.Errorf("EvidenceRef = %+v", second.EvidenceRef)
	}
	if second.Unit != "USD" || second.Type != answer.NumberEvidence {
		t.Errorf("unit/type = %q/%q", second.Unit, second.Type)
	}
	if !strings.HasPrefix(a.Summary.Headline, "Grounded review") {
		t.Errorf("Headline = %q", a.Summary.Headline)
	}
	if a.Summary.Bullets[0] != "Objective: Review spending" || a.Summary.Bullets[1] != "Tool calls executed: 2" {
		t.Errorf("Bullets = %v", a.Summary.Bullets)
	}
	if a.Trace.PlanID != "req_42" || len(a.Trace.ToolCallsUsed) != 2 {
		t.Errorf("Trace = %+v", a.Trace)
	}
	if a.AssumptionsAndConfidence.Confidence != 0.7 {
		t.Errorf("Confidence = %v", a.AssumptionsAndConfidence.Confidence)
	}
}

func TestFallbackWithoutEvidence(t *testing.T) {
	a := Fallback(request(), testPlan(), nil)
	if len(a.SupportingNumbers) != 0 || a.SupportingNumbers == nil {
		t.Errorf("SupportingNumbers = %v, want empty slice", a.SupportingNumbers)
	}
	if a.Summary.Headline != "Tool-backed financial review generated; review options below." {
		t.Errorf("Headline = %q", a.Summary.Headline)
	}
	if len(a.Options) != 2 {
		t.Errorf("Options = %d", len(a.Options))
	}
}

func TestFallbackPassesValidation(t *testing.T) {
	tests := []struct {
		name string
		ev   []domain.ToolResponse
	}{
		{"with numbers", evidence()},
		{"failing first tool", []domain.ToolResponse{
			{Tool: "ledger.category_summary", OK: false, Result: map[string]any{}, Errors: []string{"ledger offline"}},
			{Tool: "detect.anomalies", OK: true, Result: map[string]any{"count": 1}},
		}},
		{"no evidence", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Fallback(request(), testPlan(), tt.ev)
			if issues := validate.Validate(&a, validate.FromResponses(tt.ev)); len(issues) != 0 {
				t.Errorf("issues = %v", issues)
			}
		})
	}
}

func TestTitleCase(t *testing.T) {
	tests := map[string]string{
		"debit_total":       "Debit Total",
		"net":               "Net",
		"projected_balance": "Projected Balance",
		"API_calls":         "Api Calls",
	}
	for in, want := range tests {
		if got := titleCase(in); got != want {
			t.Errorf("titleCase(%q) = %q, want %q", in, got, want)
		}
	}
}
