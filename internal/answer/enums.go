package answer

// NumberType distinguishes cited numbers from estimates.
type NumberType string

const (
	NumberEvidence   NumberType = "evidence"
	NumberAssumption NumberType = "assumption"
)

func (n NumberType) Valid() bool {
	switch n {
	case NumberEvidence, NumberAssumption:
		return true
	}
	return false
}

// CheckStatus is the outcome of a policy alignment check.
type CheckStatus string

const (
	StatusPass    CheckStatus = "pass"
	StatusFail    CheckStatus = "fail"
	StatusWarning CheckStatus = "warning"
)

func (s CheckStatus) Valid() bool {
	switch s {
	case StatusPass, StatusFail, StatusWarning:
		return true
	}
	return false
}

// Worst returns the most severe status in statuses: fail, then warning,
// then pass.
func Worst(statuses ...CheckStatus) CheckStatus {
	worst := StatusPass
	for _, s := range statuses {
		switch s {
		case StatusFail:
			return StatusFail
		case StatusWarning:
			worst = StatusWarning
		}
	}
	return worst
}
