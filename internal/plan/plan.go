// Package plan defines the tool plan produced by the planner and the parsing
// rules applied to model output.
package plan

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/schema"
)

const (
	SchemaVersion  = "ledgermind.plan.v1"
	ResponseSchema = "ledgermind.v1.decision_response"
)

// Plan is an ordered list of tool calls plus the objective they serve.
type Plan struct {
	SchemaVersion string       `json:"schema"`
	Objective     string       `json:"objective"`
	Assumptions   Assumptions  `json:"assumptions"`
	Calls         []Call       `json:"calls"`
	Output        OutputTarget `json:"output"`
}

// Assumptions records defaults the plan was built under.
type Assumptions struct {
	DateRange *domain.DateRange `json:"date_range,omitempty"`
	Currency  string            `json:"currency,omitempty"`
}

// Call is a single tool invocation in a plan.
type Call struct {
	ID      string         `json:"id"`
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args"`
	Purpose string         `json:"purpose"`
}

// OutputTarget names the answer contract and focus areas.
type OutputTarget struct {
	ResponseSchema string   `json:"response_schema"`
	Focus          []string `json:"focus"`
}

// Parse decodes model output into a Plan. The text must satisfy the plan
// contract and carry valid date ranges.
func Parse(raw []byte) (Plan, error) {
	if err := schema.Validate(schema.Plan, raw); err != nil {
		return Plan{}, fmt.Errorf("plan.Parse: %w", err)
	}
	var p Plan
	if err := json.Unmarshal(raw, &p); err != nil {
		return Plan{}, fmt.Errorf("plan.Parse: %w", err)
	}
	if p.SchemaVersion == "" {
		p.SchemaVersion = SchemaVersion
	}
	for i := range p.Calls {
		if p.Calls[i].Args == nil {
			p.Calls[i].Args = map[string]any{}
		}
	}
	if p.Calls == nil {
		p.Calls = []Call{}
	}
	if p.Output.Focus == nil {
		p.Output.Focus = []string{}
	}
	return p, nil
}

// FilterCalls returns a copy of p keeping only calls whose tool is known.
// It also reports how many calls were dropped.
func FilterCalls(p Plan, known func(name string) bool) (Plan, int) {
	kept := make([]Call, 0, len(p.Calls))
	for _, c := range p.Calls {
		if known(c.Tool) {
			kept = append(kept, c)
		}
	}
	dropped := len(p.Calls) - len(kept)
	p.Calls = kept
	return p, dropped
}

// ToolNames lists the tool of every call in order.
func (p Plan) ToolNames() []string {
	names := make([]string, 0, len(p.Calls))
	for _, c := range p.Calls {
		names = append(names, c.Tool)
	}
	return names
}

// Fingerprint is a stable hash of the plan's JSON form.
func (p Plan) Fingerprint() string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("sha256:%x", h)
}
