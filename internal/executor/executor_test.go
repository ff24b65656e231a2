package executor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/plan"
	"github.com/Jeffawe/LedgerMind/internal/tools"
)

type emptyErr struct{}

func (emptyErr) Error() string { return "" }

func echoTool(name string) tools.Tool {
	return tools.Func{
		ToolSpec: tools.Spec{Name: name, Description: "echo"},
		Fn: func(_ context.Context, req domain.ToolRequest) (domain.ToolResponse, error) {
			result := map[string]any{"args": req.Args, "has_filters": req.Filters != nil}
			return domain.Success(req, name, result), nil
		},
	}
}

func failingTool(name string, err error) tools.Tool {
	return tools.Func{
		ToolSpec: tools.Spec{Name: name},
		Fn: func(context.Context, domain.ToolRequest) (domain.ToolResponse, error) {
			return domain.ToolResponse{}, err
		},
	}
}

func panickingTool(name string) tools.Tool {
	return tools.Func{
		ToolSpec: tools.Spec{Name: name},
		Fn: func(context.Context, domain.ToolRequest) (domain.ToolResponse, error) {
			panic("boom")
		},
	}
}

func request() domain.UserRequest {
	return domain.UserRequest{RequestID: "req_1", UserID: "u_1", Message: "spending?"}
}

func TestRunPreservesOrderAndLength(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(echoTool("a"))
	reg.Register(failingTool("b", errors.New("ledger offline")))
	reg.Register(panickingTool("c"))

	p := plan.Plan{Calls: []plan.Call{
		{ID: "s1", Tool: "b"},
		{ID: "s2", Tool: "missing.tool"},
		{ID: "s3", Tool: "a", Args: map[string]any{"x": 1}},
		{ID: "s4", Tool: "c"},
		{ID: "s5", Tool: "b"},
	}}

	got := New(reg, Options{}).Run(context.Background(), p, request())
	if len(got) != len(p.Calls) {
		t.Fatalf("len = %d, want %d", len(got), len(p.Calls))
	}

	tests := []struct {
		tool    string
		ok      bool
		errPart string
	}{
		{"b", false, "ledger offline"},
		{"missing.tool", false, "tool not found"},
		{"a", true, ""},
		{"c", false, "panic: boom"},
		{"b", false, "ledger offline"},
	}
	for i, tt := range tests {
		r := got[i]
		if r.Tool != tt.tool || r.OK != tt.ok {
			t.Errorf("[%d] tool=%s ok=%v, want %s %v", i, r.Tool, r.OK, tt.tool, tt.ok)
		}
		if r.RequestID != "req_1:"+p.Calls[i].ID {
			t.Errorf("[%d] request_id = %q", i, r.RequestID)
		}
		if tt.errPart != "" && (len(r.Errors) != 1 || !strings.Contains(r.Errors[0], tt.errPart)) {
			t.Errorf("[%d] errors = %v, want %q", i, r.Errors, tt.errPart)
		}
		if !tt.ok && len(r.Result) != 0 {
			t.Errorf("[%d] failed response should have empty result", i)
		}
	}
}

func TestRunBuildsToolContext(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(echoTool("a"))
	p := plan.Plan{Calls: []plan.Call{{ID: "s1", Tool: "a"}}}

	got := New(reg, Options{LedgerID: "ldg_test"}).Run(context.Background(), p, request())
	ctx := got[0].Context
	if ctx.UserID != "u_1" || ctx.LedgerID != "ldg_test" || ctx.Timezone != "UTC" || ctx.PolicyProfile != "default_v1" {
		t.Errorf("context = %+v", ctx)
	}

	got = New(reg, Options{}).Run(context.Background(), p, request())
	if got[0].Context.LedgerID != domain.DefaultLedgerID {
		t.Errorf("default ledger id = %q", got[0].Context.LedgerID)
	}
}

func TestRunDerivesFilters(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(echoTool("a"))
	p := plan.Plan{Calls: []plan.Call{
		{ID: "s1", Tool: "a", Args: map[string]any{"date_range": map[string]any{"start": "2026-03-01", "end": "2026-03-14"}}},
		{ID: "s2", Tool: "a", Args: map[string]any{"date_range": map[string]any{"start": "soon", "end": "later"}}},
		{ID: "s3", Tool: "a", Args: map[string]any{"date_range": map[string]any{"start": "2026-03-14", "end": "2026-03-01"}}},
	}}

	got := New(reg, Options{}).Run(context.Background(), p, request())
	want := []bool{true, false, false}
	for i, w := range want {
		if got[i].Result["has_filters"] != w {
			t.Errorf("[%d] has_filters = %v, want %v", i, got[i].Result["has_filters"], w)
		}
	}
}

func TestRunEmptyErrorUsesTypeName(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(failingTool("a", emptyErr{}))
	p := plan.Plan{Calls: []plan.Call{{ID: "s1", Tool: "a"}}}

	got := New(reg, Options{}).Run(context.Background(), p, request())
	if got[0].Errors[0] != "executor.emptyErr" {
		t.Errorf("errors = %v", got[0].Errors)
	}
}

func TestRunEmptyPlan(t *testing.T) {
	got := New(nil, Options{}).Run(context.Background(), plan.Plan{}, request())
	if len(got) != 0 {
		t.Errorf("expected no responses, got %d", len(got))
	}
}
