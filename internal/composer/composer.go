// Package composer turns a plan and its tool evidence into an EngineAnswer.
package composer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Jeffawe/LedgerMind/internal/answer"
	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/llm"
	"github.com/Jeffawe/LedgerMind/internal/metrics"
	"github.com/Jeffawe/LedgerMind/internal/plan"
	"github.com/Jeffawe/LedgerMind/internal/profile"
	"github.com/Jeffawe/LedgerMind/internal/prompt"
)

// Source records where an answer came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Fallback reasons.
const (
	ReasonEmptyOutput   = "empty_model_output"
	ReasonInvalidAnswer = "invalid_answer"
)

// Resolution pairs an answer with its source.
type Resolution struct {
	Answer answer.EngineAnswer
	Source Source
	// Reason explains a fallback; empty for model answers.
	Reason string
}

// Options configures a Composer.
type Options struct {
	Profiles *profile.Store
	Logger   *slog.Logger
}

// Composer writes the final answer from the plan and tool evidence.
type Composer struct {
	completer llm.Completer
	profiles  *profile.Store
	logger    *slog.Logger
}

// New returns a Composer backed by c. A nil completer always yields the
// fallback answer.
func New(c llm.Completer, opts Options) *Composer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{completer: c, profiles: opts.Profiles, logger: logger}
}

// Compose returns the answer for req.
func (c *Composer) Compose(ctx context.Context, req domain.UserRequest, p plan.Plan, evidence []domain.ToolResponse) answer.EngineAnswer {
	return c.Resolve(ctx, req, p, evidence).Answer
}

// Resolve asks the model for an answer and falls back to a deterministic
// template when the model's text is empty or fails the answer contract.
func (c *Composer) Resolve(ctx context.Context, req domain.UserRequest, p plan.Plan, evidence []domain.ToolResponse) Resolution {
	req = req.WithDefaults()
	log := c.logger.With("request_id", req.RequestID, "policy_profile", req.Context.PolicyProfile)
	log.Info("composer start", "plan_calls", len(p.Calls), "evidence", len(evidence))

	var text string
	if c.completer != nil {
		text = c.completer.Complete(ctx, prompt.BuildAnswer(prompt.AnswerOpts{
			Request:  req,
			Profile:  c.profile(req.Context.PolicyProfile),
			Plan:     p,
			Evidence: evidence,
		}))
	}
	text = llm.ExtractJSON(text)

	reason := ReasonEmptyOutput
	if text != "" {
		a, err := answer.Parse([]byte(text))
		if err == nil {
			log.Info("composer accepted model answer")
			return Resolution{Answer: a, Source: SourceModel}
		}
		log.Info("model answer rejected", "error", err)
		reason = ReasonInvalidAnswer
	}

	log.Info("using fallback answer", "reason", reason)
	metrics.RecordFallback("answer", reason)
	return Resolution{Answer: Fallback(req, p, evidence), Source: SourceFallback, Reason: reason}
}

func (c *Composer) profile(id string) profile.Profile {
	if c.profiles != nil {
		return c.profiles.Fetch(id)
	}
	if prof, err := profile.LoadBuiltin(id); err == nil {
		return *prof
	}
	return profile.Profile{ID: id}
}

// Fallback builds the template answer. Numeric top-level fields of the first
// evidence item become cited supporting numbers.
func Fallback(req domain.UserRequest, p plan.Plan, evidence []domain.ToolResponse) answer.EngineAnswer {
	numbers := fallbackNumbers(evidence)

	headline := "Tool-backed financial review generated; review options below."
	if len(numbers) > 0 {
		headline = "Grounded review generated from tool evidence; prioritize the largest flexible spend areas first."
	}

	toolNames := make([]string, 0, len(evidence))
	for _, r := range evidence {
		toolNames = append(toolNames, r.Tool)
	}

	return answer.EngineAnswer{
		SchemaVersion: answer.SchemaVersion,
		Summary: answer.Summary{
			Headline: headline,
			Bullets: []string{
				"Objective: " + p.Objective,
				fmt.Sprintf("Tool calls executed: %d", len(evidence)),
				"Recommendation prioritizes conservative, low-friction savings first.",
			},
		},
		SupportingNumbers: numbers,
		Options: []answer.Option{
			{
				ID:    "o1",
				Title: "Low-friction recurring cost cleanup",
				Why:   "Recurring charges are often the fastest savings with limited disruption.",
				Steps: []string{
					"Review recurring charges flagged by the detector.",
					"Cancel or downgrade the least valuable one first.",
				},
				Impact:    []answer.NumericEvidence{},
				Tradeoffs: []string{"May lose access to a service you use occasionally."},
			},
			{
				ID:    "o2",
				Title: "Category cap for next month",
				Why:   "Category limits create a measurable behavior change without changing fixed obligations.",
				Steps: []string{
					"Set a cap for the largest flexible category.",
					"Check weekly and adjust before month-end.",
				},
				Impact: []answer.NumericEvidence{{
					ID:         "n_assump_1",
					Label:      "Estimated monthly savings",
					Value:      50,
					Unit:       "USD",
					Type:       answer.NumberAssumption,
					Assumption: "Illustrative target pending a full category trend baseline.",
				}},
				Tradeoffs: []string{"Requires consistent follow-through during the month."},
			},
		},
		RecommendedAction: &answer.RecommendedAction{
			Title: "Start with recurring-cost cleanup, then enforce one spending cap for 4 weeks.",
			Next7Days: []string{
				"Review flagged recurring charges and cancel or downgrade one.",
				"Set a weekly cap for the top flexible category.",
			},
			Next30Days: []string{
				"Re-run the same plan and compare category totals month over month.",
				"Confirm cancelled charges do not recur.",
			},
			PolicyAlignment: []answer.PolicyCheck{{
				Rule:    "Maintain minimum checking balance",
				Status:  answer.StatusPass,
				Details: "Proposed actions reduce discretionary spend only.",
			}},
		},
		RisksAndTradeoffs: []string{
			"If the period includes unusual income or one-time expenses, results may not represent a typical month.",
			"Subscription detection may include false positives without merchant-level review.",
		},
		AssumptionsAndConfidence: &answer.AssumptionsConfidence{
			Assumptions: []string{
				"Tool outputs are complete for the requested ledger and date range.",
				"Detected recurring charges include discretionary subscriptions that can be reviewed.",
			},
			Confidence: 0.7,
			ConfidenceReasoning: []string{
				"Recommendations are grounded in tool outputs provided to the answer stage.",
				"Some projected savings values may be assumptions and are labeled as such.",
			},
		},
		Trace: &answer.Trace{
			PlanID:            req.RequestID,
			ToolCallsUsed:     toolNames,
			ValidationTargets: []string{"all_numbers_cited_or_assumed", "schema_valid"},
		},
	}
}

func fallbackNumbers(evidence []domain.ToolResponse) []answer.NumericEvidence {
	numbers := []answer.NumericEvidence{}
	if len(evidence) == 0 {
		return numbers
	}
	first := evidence[0]

	keys := make([]string, 0, len(first.Result))
	for k := range first.Result {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, ok := domain.Number(first.Result[k])
		if !ok {
			continue
		}
		numbers = append(numbers, answer.NumericEvidence{
			ID:          fmt.Sprintf("n%d", len(numbers)+1),
			Label:       fmt.Sprintf("%s (%s)", titleCase(k), first.Tool),
			Value:       v,
			Unit:        "USD",
			Type:        answer.NumberEvidence,
			EvidenceRef: &answer.EvidenceRef{CitationID: "c1", Path: "result." + k},
		})
	}
	return numbers
}

// titleCase turns a snake_case key into "Title Case".
func titleCase(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
