package validate

import (
	"reflect"
	"testing"

	"github.com/Jeffawe/LedgerMind/internal/domain"
)

type categoryTotal struct {
	Category   string  `json:"category"`
	DebitTotal float64 `json:"debit_total"`
}

func TestNormalizeResponses(t *testing.T) {
	ev := FromResponses([]domain.ToolResponse{
		{RequestID: "r:s1", Tool: "a", OK: true, Result: map[string]any{"x": 1}},
		{RequestID: "r:s2", Tool: "b", OK: false, Errors: []string{"boom"}},
	})
	b := ev.Normalize()
	if !reflect.DeepEqual(b.CitationIDs(), []string{"c1", "c2"}) {
		t.Errorf("citation ids = %v", b.CitationIDs())
	}
	if b.ToolOutputs["b"].OK || b.ToolOutputs["b"].Errors[0] != "boom" {
		t.Errorf("tool output b = %+v", b.ToolOutputs["b"])
	}
	if _, ok := b.Citations["c2"]["result"]; !ok {
		t.Error("failed responses still get a citation payload")
	}
}

func TestNormalizeTypedResults(t *testing.T) {
	ev := FromResponses([]domain.ToolResponse{{
		Tool: "ledger.category_summary",
		OK:   true,
		Result: map[string]any{
			"top":    categoryTotal{Category: "dining", DebitTotal: 120},
			"totals": map[string]float64{"debit": 10},
		},
	}})
	b := ev.Normalize()
	if !b.Resolve("c1", "result.top.debit_total") {
		t.Error("typed struct fields should resolve by JSON name")
	}
	if !b.Resolve("c1", "result.totals.debit") {
		t.Error("typed maps should resolve")
	}
}

func TestResolve(t *testing.T) {
	b := FromResponses([]domain.ToolResponse{{
		Tool: "t", OK: true,
		Result: map[string]any{"a": map[string]any{"b": 2}, "list": []any{1, 2}},
	}}).Normalize()

	tests := []struct {
		citation string
		path     string
		want     bool
	}{
		{"c1", "result.a.b", true},
		{"c1", "result..a.b.", true},
		{"c1", "", true},
		{"c1", "result.a.c", false},
		{"c1", "result.a.b.c", false},
		{"c1", "result.list.0", false},
		{"c9", "result", false},
	}
	for _, tt := range tests {
		if got := b.Resolve(tt.citation, tt.path); got != tt.want {
			t.Errorf("Resolve(%q, %q) = %v, want %v", tt.citation, tt.path, got, tt.want)
		}
	}
}

func TestBundleWithoutCitations(t *testing.T) {
	b := Bundle{ToolOutputs: map[string]ToolOutput{
		"a": {OK: true, Citations: []Citation{{CitationID: "src_1"}, {CitationID: ""}}},
		"b": {OK: true, Citations: []Citation{{CitationID: "src_2"}}},
	}}
	ev := FromBundle(b)
	got := ev.Normalize()
	if !reflect.DeepEqual(got.CitationIDs(), []string{"src_1", "src_2"}) {
		t.Errorf("citation ids = %v", got.CitationIDs())
	}
	if !got.Resolve("src_1", "anything.at.all") {
		t.Error("paths cannot be checked without a citations map")
	}
}
