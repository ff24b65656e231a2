// Package validate checks an EngineAnswer for structural soundness and for
// grounding of its numbers in tool evidence. Findings are data, never errors.
package validate

import "fmt"

// Severity of a validation finding.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

func (s Severity) Valid() bool {
	return s == SeverityError || s == SeverityWarn
}

// Issue codes.
const (
	CodeSchemaVersion              = "SCHEMA_VERSION"
	CodeMissingHeadline            = "MISSING_HEADLINE"
	CodeMissingActionTitle         = "MISSING_RECOMMENDED_ACTION_TITLE"
	CodeOptionsCount               = "OPTIONS_COUNT"
	CodeOptionMissingTitle         = "OPTION_MISSING_TITLE"
	CodeOptionMissingSteps         = "OPTION_MISSING_STEPS"
	CodeEvidenceMissingRef         = "EVIDENCE_MISSING_REF"
	CodeEvidenceMissingCitationID  = "EVIDENCE_MISSING_CITATION_ID"
	CodeUnknownCitationID          = "UNKNOWN_CITATION_ID"
	CodeEvidencePathUnresolved     = "EVIDENCE_PATH_UNRESOLVED"
	CodeAssumptionMissingRationale = "ASSUMPTION_MISSING_RATIONALE"
	CodeUnknownNumberType          = "UNKNOWN_NUMBER_TYPE"
	CodeUncitedNumberInText        = "UNCITED_NUMBER_IN_TEXT"
)

// Issue is a single validation finding.
type Issue struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Path     string   `json:"path"`
	Severity Severity `json:"severity"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s %s: %s", i.Severity, i.Code, i.Path, i.Message)
}

func errorAt(code, path, format string, args ...any) Issue {
	return Issue{Code: code, Message: fmt.Sprintf(format, args...), Path: path, Severity: SeverityError}
}

func warnAt(code, path, format string, args ...any) Issue {
	return Issue{Code: code, Message: fmt.Sprintf(format, args...), Path: path, Severity: SeverityWarn}
}

// Count returns the number of error and warn issues.
func Count(issues []Issue) (errs, warns int) {
	for _, is := range issues {
		switch is.Severity {
		case SeverityError:
			errs++
		case SeverityWarn:
			warns++
		}
	}
	return errs, warns
}

// MeetsThreshold reports whether any issue is at least as severe as level.
// "warn" matches warnings and errors; "error" matches errors only.
func MeetsThreshold(issues []Issue, level Severity) bool {
	errs, warns := Count(issues)
	switch level {
	case SeverityError:
		return errs > 0
	case SeverityWarn:
		return errs+warns > 0
	}
	return false
}
