package plan

// Outcome records how a plan was obtained.
type Outcome string

const (
	// OutcomeParsed means the model produced a usable plan.
	OutcomeParsed Outcome = "parsed"
	// OutcomeFallback means the deterministic fallback plan was used.
	OutcomeFallback Outcome = "fallback"
	// OutcomeEmpty means no tools were available, so the plan has no calls.
	OutcomeEmpty Outcome = "empty"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeParsed, OutcomeFallback, OutcomeEmpty:
		return true
	}
	return false
}

// Result pairs a plan with how it was obtained.
type Result struct {
	Plan    Plan
	Outcome Outcome
	// Reason explains a fallback; empty for parsed plans.
	Reason string
	// Dropped counts calls removed for naming unknown tools.
	Dropped int
}
