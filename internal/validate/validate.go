package validate

import (
	"fmt"

	"github.com/Jeffawe/LedgerMind/internal/answer"
)

// Bounds on the option count before OPTIONS_COUNT is raised.
const (
	MinOptions = 2
	MaxOptions = 3
)

// Validate runs every check against a and returns all findings in check
// order. It never stops early and never mutates a; a nil answer is checked
// as the zero answer.
func Validate(a *answer.EngineAnswer, ev Evidence) []Issue {
	if a == nil {
		a = &answer.EngineAnswer{}
	}
	issues := []Issue{}

	if a.SchemaVersion != answer.SchemaVersion {
		issues = append(issues, errorAt(CodeSchemaVersion, "schema_version",
			"Unexpected answer schema version: %q", a.SchemaVersion))
	}

	if a.Summary.Headline == "" {
		issues = append(issues, errorAt(CodeMissingHeadline, "summary.headline", "Missing summary headline"))
	}
	if a.RecommendedAction == nil || a.RecommendedAction.Title == "" {
		issues = append(issues, errorAt(CodeMissingActionTitle, "recommended_action.title",
			"Missing recommended action title"))
	}

	issues = append(issues, checkOptions(a.Options)...)

	bundle := ev.Normalize()
	issues = append(issues, checkNumbers(a.SupportingNumbers, bundle)...)
	issues = append(issues, checkUncitedText(a)...)

	return issues
}

func checkOptions(options []answer.Option) []Issue {
	var issues []Issue
	if len(options) < MinOptions || len(options) > MaxOptions {
		issues = append(issues, warnAt(CodeOptionsCount, "options",
			"Expected %d-%d options; got %d", MinOptions, MaxOptions, len(options)))
	}
	for i, opt := range options {
		prefix := fmt.Sprintf("options[%d]", i)
		if opt.Title == "" {
			issues = append(issues, errorAt(CodeOptionMissingTitle, prefix+".title", "Option %d missing title", i))
		}
		if len(opt.Steps) == 0 {
			issues = append(issues, warnAt(CodeOptionMissingSteps, prefix+".steps", "Option %d has no steps", i))
		}
	}
	return issues
}

func checkNumbers(numbers []answer.NumericEvidence, bundle Bundle) []Issue {
	known := make(map[string]bool)
	for _, id := range bundle.CitationIDs() {
		known[id] = true
	}

	var issues []Issue
	for i, n := range numbers {
		prefix := fmt.Sprintf("supporting_numbers[%d]", i)
		nid := n.ID
		if nid == "" {
			nid = prefix
		}

		switch n.Type {
		case answer.NumberEvidence:
			ref := n.EvidenceRef
			if ref == nil {
				issues = append(issues, errorAt(CodeEvidenceMissingRef, prefix+".evidence_ref",
					"Evidence number missing evidence_ref: %s", nid))
				continue
			}
			if ref.CitationID == "" {
				issues = append(issues, errorAt(CodeEvidenceMissingCitationID, prefix+".evidence_ref.citation_id",
					"Evidence ref missing citation_id: %s", nid))
				continue
			}
			if !known[ref.CitationID] {
				issues = append(issues, errorAt(CodeUnknownCitationID, prefix+".evidence_ref.citation_id",
					"citation_id %q not found in evidence bundle (number %s)", ref.CitationID, nid))
				continue
			}
			if ref.Path != "" && !bundle.Resolve(ref.CitationID, ref.Path) {
				issues = append(issues, warnAt(CodeEvidencePathUnresolved, prefix+".evidence_ref.path",
					"Could not resolve evidence path %q for citation %q (number %s)", ref.Path, ref.CitationID, nid))
			}
		case answer.NumberAssumption:
			if n.Assumption == "" {
				issues = append(issues, errorAt(CodeAssumptionMissingRationale, prefix+".assumption",
					"Assumption number missing rationale: %s", nid))
			}
		default:
			issues = append(issues, errorAt(CodeUnknownNumberType, prefix+".type",
				"Unknown %s.type: %q", prefix, n.Type))
		}
	}
	return issues
}

func checkUncitedText(a *answer.EngineAnswer) []Issue {
	supported := SupportedTokens(a.SupportingNumbers)
	var issues []Issue
	for _, f := range textFields(a) {
		for _, tok := range ExtractNumericTokens(f.text) {
			if trivialToken.MatchString(tok) {
				continue
			}
			if _, ok := supported[tok]; ok {
				continue
			}
			issues = append(issues, warnAt(CodeUncitedNumberInText, f.path,
				"Found numeric token %q in %s not present in supporting_numbers", tok, f.path))
		}
	}
	return issues
}
