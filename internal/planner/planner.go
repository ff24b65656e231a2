// Package planner turns a user request into a tool plan, using the model when
// it produces a usable plan and a deterministic fallback otherwise.
package planner

import (
	"context"
	"log/slog"
	"time"

	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/llm"
	"github.com/Jeffawe/LedgerMind/internal/metrics"
	"github.com/Jeffawe/LedgerMind/internal/plan"
	"github.com/Jeffawe/LedgerMind/internal/profile"
	"github.com/Jeffawe/LedgerMind/internal/prompt"
	"github.com/Jeffawe/LedgerMind/internal/tools"
)

// DefaultPreferredTool is the fallback plan's tool when registered.
const DefaultPreferredTool = "ledger.category_summary"

// Fallback reasons.
const (
	ReasonNoTools      = "no_tools_registered"
	ReasonEmptyOutput  = "empty_model_output"
	ReasonInvalidPlan  = "invalid_plan"
	ReasonNoKnownTools = "no_known_tools"
)

// Options configures a Planner.
type Options struct {
	PreferredTool string
	Profiles      *profile.Store
	Logger        *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Planner turns a request into a tool plan, falling back to a
// deterministic plan when the model output cannot be used.
type Planner struct {
	completer llm.Completer
	registry  *tools.Registry
	preferred string
	profiles  *profile.Store
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a Planner that asks c for plans over the tools in reg.
func New(c llm.Completer, reg *tools.Registry, opts Options) *Planner {
	p := &Planner{
		completer: c,
		registry:  reg,
		preferred: opts.PreferredTool,
		profiles:  opts.Profiles,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if p.preferred == "" {
		p.preferred = DefaultPreferredTool
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Plan returns the plan for req.
func (p *Planner) Plan(ctx context.Context, req domain.UserRequest) plan.Plan {
	return p.Acquire(ctx, req).Plan
}

// Acquire returns the plan for req together with how it was obtained.
func (p *Planner) Acquire(ctx context.Context, req domain.UserRequest) plan.Result {
	req = req.WithDefaults()
	log := p.logger.With("request_id", req.RequestID, "policy_profile", req.Context.PolicyProfile)

	var specs []tools.Spec
	if p.registry != nil {
		specs = p.registry.Specs()
	}
	if len(specs) == 0 {
		log.Info("no tools registered; using empty plan")
		return plan.Result{Plan: EmptyPlan(req), Outcome: plan.OutcomeEmpty, Reason: ReasonNoTools}
	}

	day := Today(p.now, req.Context.Timezone)
	log.Info("planner start", "tools", len(specs))

	var text string
	if p.completer != nil {
		text = p.completer.Complete(ctx, prompt.BuildPlan(prompt.PlanOpts{
			Request: req,
			Profile: p.profile(req.Context.PolicyProfile),
			Tools:   specs,
			Today:   day,
		}))
	}
	text = llm.ExtractJSON(text)
	if text == "" {
		return p.fallback(log, specs, day, ReasonEmptyOutput, 0)
	}

	parsed, err := plan.Parse([]byte(text))
	if err != nil {
		log.Info("model plan rejected", "error", err)
		return p.fallback(log, specs, day, ReasonInvalidPlan, 0)
	}

	known := make(map[string]bool, len(specs))
	for _, s := range specs {
		known[s.Name] = true
	}
	filtered, dropped := plan.FilterCalls(parsed, func(name string) bool { return known[name] })
	if dropped > 0 {
		log.Info("dropped calls to unknown tools", "dropped", dropped)
	}
	if len(filtered.Calls) == 0 {
		return p.fallback(log, specs, day, ReasonNoKnownTools, dropped)
	}

	log.Info("planner accepted model plan", "calls", len(filtered.Calls))
	return plan.Result{Plan: filtered, Outcome: plan.OutcomeParsed, Dropped: dropped}
}

func (p *Planner) fallback(log *slog.Logger, specs []tools.Spec, day domain.Date, reason string, dropped int) plan.Result {
	log.Info("using fallback plan", "reason", reason)
	metrics.RecordFallback("plan", reason)
	return plan.Result{
		Plan:    FallbackPlan(specs, p.preferred, day),
		Outcome: plan.OutcomeFallback,
		Reason:  reason,
		Dropped: dropped,
	}
}

func (p *Planner) profile(id string) profile.Profile {
	if p.profiles != nil {
		return p.profiles.Fetch(id)
	}
	if prof, err := profile.LoadBuiltin(id); err == nil {
		return *prof
	}
	if prof, err := profile.LoadBuiltin(domain.DefaultPolicyProfile); err == nil {
		return *prof
	}
	return profile.Profile{ID: id}
}

// EmptyPlan is the plan used when no tools are available.
func EmptyPlan(req domain.UserRequest) plan.Plan {
	return plan.Plan{
		SchemaVersion: plan.SchemaVersion,
		Objective:     req.Message,
		Assumptions:   plan.Assumptions{Currency: "USD"},
		Calls:         []plan.Call{},
		Output: plan.OutputTarget{
			ResponseSchema: plan.ResponseSchema,
			Focus:          []string{"spend_reduction"},
		},
	}
}

// FallbackPlan is a single month-to-date call to the preferred tool, or to
// the first tool in specs when the preferred one is not registered.
func FallbackPlan(specs []tools.Spec, preferred string, day domain.Date) plan.Plan {
	selected := ""
	for _, s := range specs {
		if s.Name == preferred {
			selected = preferred
			break
		}
	}
	if selected == "" && len(specs) > 0 {
		selected = specs[0].Name
	}

	window := domain.DateRange{Start: day.FirstOfMonth(), End: day}
	return plan.Plan{
		SchemaVersion: plan.SchemaVersion,
		Objective:     "Generate a grounded financial performance review and improvements plan",
		Assumptions:   plan.Assumptions{DateRange: &window, Currency: "USD"},
		Calls: []plan.Call{{
			ID:   "s1",
			Tool: selected,
			Args: map[string]any{
				"date_range":        window.AsArgs(),
				"exclude_transfers": true,
			},
			Purpose: "Compute spending and income totals by category",
		}},
		Output: plan.OutputTarget{
			ResponseSchema: plan.ResponseSchema,
			Focus:          []string{"spend_reduction", "cash_buffer"},
		},
	}
}

// Today returns the current date in timezone tz, falling back to UTC.
func Today(now func() time.Time, tz string) domain.Date {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc = time.UTC
	}
	return domain.DateOf(now().In(loc))
}
