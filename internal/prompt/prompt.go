// Package prompt builds the LLM prompts for the planning and answer stages.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/plan"
	"github.com/Jeffawe/LedgerMind/internal/profile"
	"github.com/Jeffawe/LedgerMind/internal/redact"
	"github.com/Jeffawe/LedgerMind/internal/schema"
	"github.com/Jeffawe/LedgerMind/internal/tools"
)

// PlanRules are the instructions given to the planning model.
var PlanRules = []string{
	"Return JSON only.",
	"Use only tool names from available_tools.",
	"Prefer grounded, minimal tool calls.",
}

// AnswerRules are the instructions given to the answer model.
var AnswerRules = []string{
	"Return JSON only.",
	"Cite evidence-backed numbers using evidence_ref.",
	"If a number is estimated, mark type='assumption' and include assumption text.",
	"Keep recommendations conservative and actionable.",
}

// PlanOpts configures planning prompt construction.
type PlanOpts struct {
	Request domain.UserRequest
	Profile profile.Profile
	Tools   []tools.Spec
	// Today anchors relative phrases such as "this month".
	Today domain.Date
}

// BuildPlan assembles the planning prompt.
func BuildPlan(opts PlanOpts) string {
	var b strings.Builder

	b.WriteString(`You are the planning stage of a personal finance assistant. Your task is to create a tool plan for the user request.

You MUST output ONLY valid JSON matching the plan contract below. No markdown, no prose outside JSON.

`)
	writeRules(&b, PlanRules)

	if !opts.Today.IsZero() {
		fmt.Fprintf(&b, "Today is %s (timezone %s). Dates in tool args use YYYY-MM-DD.\n\n", opts.Today, opts.Request.Context.Timezone)
	}

	writeJSON(&b, "user_request", opts.Request)
	b.WriteString(profile.FormatForPrompt(opts.Profile))

	b.WriteString("## Available Tools\n\n")
	catalog := make([]map[string]any, 0, len(opts.Tools))
	for _, s := range opts.Tools {
		catalog = append(catalog, map[string]any{
			"name":        s.Name,
			"description": s.Description,
			"args_schema": s.ArgsSchema,
		})
	}
	writeJSON(&b, "available_tools", catalog)

	writeContract(&b, schema.Plan)
	fmt.Fprintf(&b, "Set \"schema\" to %q and output.response_schema to %q.\n", plan.SchemaVersion, plan.ResponseSchema)
	return b.String()
}

// AnswerOpts configures answer prompt construction.
type AnswerOpts struct {
	Request  domain.UserRequest
	Profile  profile.Profile
	Plan     plan.Plan
	Evidence []domain.ToolResponse
}

// BuildAnswer assembles the answer prompt. Evidence strings are redacted
// before they are embedded.
func BuildAnswer(opts AnswerOpts) string {
	var b strings.Builder

	b.WriteString(`You are the answer stage of a personal finance assistant. Your task is to generate a grounded financial decision response from tool evidence.

You MUST output ONLY valid JSON matching the answer contract below. No markdown, no prose outside JSON.

`)
	writeRules(&b, AnswerRules)

	b.WriteString("Evidence items are cited positionally: the first item is citation c1, the second c2, and so on. ")
	b.WriteString("evidence_ref.path is a dotted path into the cited item, for example \"result.debit_total\".\n\n")

	writeJSON(&b, "user_request", opts.Request)
	b.WriteString(profile.FormatForPrompt(opts.Profile))
	writeJSON(&b, "plan", opts.Plan)

	b.WriteString("## Evidence\n\n")
	items := make([]map[string]any, 0, len(opts.Evidence))
	for i, r := range opts.Evidence {
		items = append(items, map[string]any{
			"citation_id": fmt.Sprintf("c%d", i+1),
			"tool":        r.Tool,
			"ok":          r.OK,
			"result":      redact.Value(generic(r.Result)),
			"errors":      redact.Value(toAnySlice(r.Errors)),
		})
	}
	writeJSON(&b, "evidence", items)

	writeContract(&b, schema.Answer)
	return b.String()
}

func writeRules(b *strings.Builder, rules []string) {
	b.WriteString("## Rules\n\n")
	for i, r := range rules {
		fmt.Fprintf(b, "%d. %s\n", i+1, r)
	}
	b.WriteString("\n")
}

func writeContract(b *strings.Builder, c schema.Contract) {
	b.WriteString("## Output Contract (JSON Schema)\n\n")
	b.WriteString(schema.Text(c))
	b.WriteString("\n\n")
}

func writeJSON(b *strings.Builder, tag string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		data = []byte("null")
	}
	fmt.Fprintf(b, "<%s>\n%s\n</%s>\n\n", tag, data, tag)
}

// generic round-trips v through JSON so typed tool results become plain maps.
func generic(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
