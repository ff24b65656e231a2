package validate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Jeffawe/LedgerMind/internal/domain"
)

// Citation names a citable payload inside a tool output.
type Citation struct {
	CitationID string `json:"citation_id"`
}

// ToolOutput is a tool response as seen by the grounding checks.
type ToolOutput struct {
	RequestID string             `json:"request_id"`
	OK        bool               `json:"ok"`
	Result    map[string]any     `json:"result"`
	Errors    []string           `json:"errors"`
	Context   domain.ToolContext `json:"context"`
	Citations []Citation         `json:"citations,omitempty"`
}

// Bundle is the normalized evidence the grounding checks consume. When
// Citations is nil, citation ids are collected from tool outputs and paths
// cannot be verified.
type Bundle struct {
	ToolOutputs map[string]ToolOutput     `json:"tool_outputs"`
	Citations   map[string]map[string]any `json:"citations"`
}

type evidenceKind int

const (
	kindResponses evidenceKind = iota
	kindBundle
)

// Evidence is either the raw tool responses of a run or an explicit bundle.
type Evidence struct {
	kind      evidenceKind
	responses []domain.ToolResponse
	bundle    Bundle
}

// FromResponses wraps raw tool responses.
func FromResponses(responses []domain.ToolResponse) Evidence {
	return Evidence{kind: kindResponses, responses: responses}
}

// FromBundle wraps an explicit bundle.
func FromBundle(b Bundle) Evidence {
	return Evidence{kind: kindBundle, bundle: b}
}

// CitationID is the id assigned to the response at zero-based position i.
func CitationID(i int) string {
	return fmt.Sprintf("c%d", i+1)
}

// Normalize returns the bundle form. Raw responses get one citation per
// response in call order; the payload is {"result": result}. Responses for
// the same tool name overwrite each other in ToolOutputs.
func (e Evidence) Normalize() Bundle {
	if e.kind == kindBundle {
		return e.bundle
	}
	b := Bundle{
		ToolOutputs: make(map[string]ToolOutput, len(e.responses)),
		Citations:   make(map[string]map[string]any, len(e.responses)),
	}
	for i, r := range e.responses {
		result := genericObject(r.Result)
		b.ToolOutputs[r.Tool] = ToolOutput{
			RequestID: r.RequestID,
			OK:        r.OK,
			Result:    result,
			Errors:    r.Errors,
			Context:   r.Context,
		}
		b.Citations[CitationID(i)] = map[string]any{"result": result}
	}
	return b
}

// CitationIDs lists the known citation ids, sorted.
func (b Bundle) CitationIDs() []string {
	seen := make(map[string]bool)
	if b.Citations != nil {
		for id := range b.Citations {
			seen[id] = true
		}
	} else {
		for _, out := range b.ToolOutputs {
			for _, c := range out.Citations {
				if c.CitationID != "" {
					seen[c.CitationID] = true
				}
			}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve walks a dotted key path through the payload cited by id. Empty
// path segments are skipped. Without a citations map nothing can be checked
// and Resolve reports true.
func (b Bundle) Resolve(citationID, path string) bool {
	if b.Citations == nil {
		return true
	}
	payload, ok := b.Citations[citationID]
	if !ok || payload == nil {
		return false
	}
	var cur any = payload
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		cur, ok = m[part]
		if !ok {
			return false
		}
	}
	return true
}

// genericObject converts typed tool results into plain JSON maps so paths
// resolve the same way they would against the serialized evidence.
func genericObject(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return m
	}
	return out
}
