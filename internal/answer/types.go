// Package answer defines the structured answer returned to callers.
package answer

// SchemaVersion is the only answer schema the validator accepts.
const SchemaVersion = "ledgermind.answer.v1"

// EngineAnswer is the top-level answer object.
type EngineAnswer struct {
	SchemaVersion            string                 `json:"schema"`
	Summary                  Summary                `json:"summary"`
	SupportingNumbers        []NumericEvidence      `json:"supporting_numbers"`
	Options                  []Option               `json:"options"`
	RecommendedAction        *RecommendedAction     `json:"recommended_action,omitempty"`
	RisksAndTradeoffs        []string               `json:"risks_and_tradeoffs"`
	AssumptionsAndConfidence *AssumptionsConfidence `json:"assumptions_and_confidence,omitempty"`
	Trace                    *Trace                 `json:"trace,omitempty"`
}

// Summary is the headline and key points.
type Summary struct {
	Headline string   `json:"headline"`
	Bullets  []string `json:"bullets"`
}

// NumericEvidence is a number stated in the answer, either cited from tool
// evidence or labeled as an assumption.
type NumericEvidence struct {
	ID          string       `json:"id"`
	Label       string       `json:"label"`
	Value       float64      `json:"value"`
	Unit        string       `json:"unit"`
	Type        NumberType   `json:"type"`
	EvidenceRef *EvidenceRef `json:"evidence_ref,omitempty"`
	Assumption  string       `json:"assumption,omitempty"`
}

// EvidenceRef points at a location inside a citation payload.
type EvidenceRef struct {
	CitationID string `json:"citation_id"`
	Path       string `json:"path"`
}

// Option is one candidate course of action.
type Option struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Why       string            `json:"why"`
	Steps     []string          `json:"steps"`
	Impact    []NumericEvidence `json:"impact"`
	Tradeoffs []string          `json:"tradeoffs"`
}

// RecommendedAction is the single action the answer recommends.
type RecommendedAction struct {
	Title           string        `json:"title"`
	Next7Days       []string      `json:"next_7_days"`
	Next30Days      []string      `json:"next_30_days"`
	PolicyAlignment []PolicyCheck `json:"policy_alignment"`
}

// PolicyCheck records how the recommendation fares against a policy rule.
type PolicyCheck struct {
	Rule    string      `json:"rule"`
	Status  CheckStatus `json:"status"`
	Details string      `json:"details"`
}

// AssumptionsConfidence states assumptions and a confidence score.
type AssumptionsConfidence struct {
	Assumptions         []string `json:"assumptions"`
	Confidence          float64  `json:"confidence"`
	ConfidenceReasoning []string `json:"confidence_reasoning"`
}

// Trace links the answer back to the plan that produced it.
type Trace struct {
	PlanID            string   `json:"plan_id"`
	ToolCallsUsed     []string `json:"tool_calls_used"`
	ValidationTargets []string `json:"validation_targets"`
}
