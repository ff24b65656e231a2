package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Jeffawe/LedgerMind/internal/answer"
	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/profile"
	"github.com/Jeffawe/LedgerMind/internal/tools"
)

var (
	highRiskTerms  = []string{"margin", "options", "leverage", "crypto", "day trade"}
	liquidityTerms = []string{"emergency fund", "cash buffer", "liquidity", "savings"}
)

type policyTool struct {
	deps Deps
}

func (t *policyTool) Spec() tools.Spec {
	return tools.Spec{
		Name:        CheckRecommendation,
		Description: "Check whether a proposed recommendation aligns with the active policy profile and return pass/warn/fail signals.",
		ArgsSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"recommendation": map[string]any{
					"type":        []any{"string", "object"},
					"description": "Proposed recommendation text (or structured object) to validate against policy rules.",
				},
			},
			"required": []any{"recommendation"},
		},
	}
}

func (t *policyTool) Run(_ context.Context, req domain.ToolRequest) (domain.ToolResponse, error) {
	spec := t.Spec()
	if err := checkArgs(spec, req.Args); err != nil {
		return domain.ToolResponse{}, err
	}

	prof := t.profile(req.Context.PolicyProfile)
	text := recommendationText(req.Args["recommendation"])
	checks := CheckRecommendationText(text, prof)

	statuses := make([]answer.CheckStatus, 0, len(checks))
	for _, c := range checks {
		statuses = append(statuses, c.Status)
	}
	return domain.Success(req, spec.Name, map[string]any{
		"overall_status": answer.Worst(statuses...),
		"checks":         checks,
		"policy_profile": prof.AsMap(),
	}), nil
}

func (t *policyTool) profile(id string) profile.Profile {
	if t.deps.Profiles != nil {
		return t.deps.Profiles.Fetch(id)
	}
	p, err := profile.LoadBuiltin(domain.DefaultPolicyProfile)
	if err != nil {
		return profile.Profile{ID: domain.DefaultPolicyProfile}
	}
	return *p
}

// CheckRecommendationText evaluates a recommendation against prof.
func CheckRecommendationText(text string, prof profile.Profile) []answer.PolicyCheck {
	lower := strings.ToLower(text)
	var checks []answer.PolicyCheck

	if strings.TrimSpace(text) == "" {
		checks = append(checks, answer.PolicyCheck{Rule: "Provide a concrete recommendation", Status: answer.StatusFail, Details: "Recommendation text is required."})
	} else {
		checks = append(checks, answer.PolicyCheck{Rule: "Provide a concrete recommendation", Status: answer.StatusPass, Details: "Recommendation provided."})
	}

	if prof.Conservative() && containsAny(lower, highRiskTerms) {
		checks = append(checks, answer.PolicyCheck{Rule: "Respect risk tolerance", Status: answer.StatusWarning, Details: "Recommendation mentions higher-risk actions while profile is conservative."})
	} else {
		checks = append(checks, answer.PolicyCheck{Rule: "Respect risk tolerance", Status: answer.StatusPass, Details: "No obvious risk-tolerance conflict detected."})
	}

	if containsAny(lower, liquidityTerms) {
		checks = append(checks, answer.PolicyCheck{Rule: "Protect liquidity before optimization", Status: answer.StatusPass, Details: "Recommendation references liquidity/cash buffer protection."})
	} else {
		checks = append(checks, answer.PolicyCheck{Rule: "Protect liquidity before optimization", Status: answer.StatusWarning, Details: "Recommendation does not explicitly mention liquidity protection."})
	}

	if strings.Contains(lower, "save") || strings.Contains(lower, "reduce") {
		if strings.Contains(lower, "assumption") || strings.Contains(lower, "estimate") {
			checks = append(checks, answer.PolicyCheck{Rule: "Label estimated savings as assumptions", Status: answer.StatusPass, Details: "Savings/impact appears labeled as estimate/assumption."})
		} else {
			checks = append(checks, answer.PolicyCheck{Rule: "Label estimated savings as assumptions", Status: answer.StatusWarning, Details: "Potential savings claims should be labeled as estimates."})
		}
	}
	return checks
}

func recommendationText(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
