// Package engine wires the planner, executor, composer and validator into a
// single synchronous pipeline run.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jeffawe/LedgerMind/internal/answer"
	"github.com/Jeffawe/LedgerMind/internal/cache"
	"github.com/Jeffawe/LedgerMind/internal/composer"
	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/metrics"
	"github.com/Jeffawe/LedgerMind/internal/plan"
	"github.com/Jeffawe/LedgerMind/internal/validate"
)

const tracerName = "github.com/Jeffawe/LedgerMind/internal/engine"

// Stage names used for spans and duration metrics.
const (
	StagePlan     = "plan"
	StageExecute  = "execute"
	StageCompose  = "compose"
	StageValidate = "validate"
)

// Planner produces the plan for a request.
type Planner interface {
	Acquire(ctx context.Context, req domain.UserRequest) plan.Result
}

// Executor runs every plan call and returns one response per call.
type Executor interface {
	Run(ctx context.Context, p plan.Plan, req domain.UserRequest) []domain.ToolResponse
}

// Composer turns evidence into an answer.
type Composer interface {
	Resolve(ctx context.Context, req domain.UserRequest, p plan.Plan, evidence []domain.ToolResponse) composer.Resolution
}

// Recorder keeps completed runs. cache.Store satisfies it.
type Recorder interface {
	Put(ctx context.Context, rec cache.Record) error
}

// Options configures an Engine.
type Options struct {
	// Recorder is optional.
	Recorder Recorder
	Logger   *slog.Logger
}

// Engine runs one request through plan, execute, compose and validate.
type Engine struct {
	planner  Planner
	executor Executor
	composer Composer
	recorder Recorder
	logger   *slog.Logger
}

// New wires the stages into an Engine.
func New(p Planner, e Executor, c Composer, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{planner: p, executor: e, composer: c, recorder: opts.Recorder, logger: logger}
}

// Result is everything a run produced.
type Result struct {
	Request  domain.UserRequest
	Plan     plan.Result
	Evidence []domain.ToolResponse
	Answer   composer.Resolution
	Issues   []validate.Issue
}

// Record converts r into a cache record.
func (r Result) Record() cache.Record {
	return cache.Record{
		ID:       r.Request.RequestID,
		Request:  r.Request,
		Plan:     r.Plan.Plan,
		Evidence: r.Evidence,
		Answer:   r.Answer.Answer,
		Issues:   r.Issues,
	}
}

// Run answers req and returns the answer with its validation issues. The only
// error is an invalid request.
func (e *Engine) Run(ctx context.Context, req domain.UserRequest) (answer.EngineAnswer, []validate.Issue, error) {
	res, err := e.Execute(ctx, req)
	if err != nil {
		return answer.EngineAnswer{}, nil, err
	}
	return res.Answer.Answer, res.Issues, nil
}

// Execute is Run with the intermediate plan and evidence exposed.
func (e *Engine) Execute(ctx context.Context, req domain.UserRequest) (Result, error) {
	if err := req.Validate(); err != nil {
		metrics.RecordRun("invalid_request")
		return Result{}, fmt.Errorf("engine.Run: %w", err)
	}
	req = req.WithDefaults()
	log := e.logger.With("request_id", req.RequestID)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "engine.Run",
		trace.WithAttributes(
			attribute.String("request_id", req.RequestID),
			attribute.String("policy_profile", req.Context.PolicyProfile),
		))
	defer span.End()

	started := time.Now()
	res := Result{Request: req}

	stage(ctx, StagePlan, func(ctx context.Context, span trace.Span) {
		res.Plan = e.planner.Acquire(ctx, req)
		span.SetAttributes(
			attribute.String("outcome", string(res.Plan.Outcome)),
			attribute.Int("calls", len(res.Plan.Plan.Calls)),
		)
	})
	stage(ctx, StageExecute, func(ctx context.Context, span trace.Span) {
		res.Evidence = e.executor.Run(ctx, res.Plan.Plan, req)
		failed := 0
		for _, r := range res.Evidence {
			if !r.OK {
				failed++
			}
		}
		span.SetAttributes(attribute.Int("responses", len(res.Evidence)), attribute.Int("failed", failed))
	})
	stage(ctx, StageCompose, func(ctx context.Context, span trace.Span) {
		res.Answer = e.composer.Resolve(ctx, req, res.Plan.Plan, res.Evidence)
		span.SetAttributes(attribute.String("source", string(res.Answer.Source)))
	})
	stage(ctx, StageValidate, func(_ context.Context, span trace.Span) {
		res.Issues = validate.Validate(&res.Answer.Answer, validate.FromResponses(res.Evidence))
		errs, warns := validate.Count(res.Issues)
		span.SetAttributes(attribute.Int("errors", errs), attribute.Int("warnings", warns))
	})

	for _, is := range res.Issues {
		metrics.RecordIssue(is.Code, string(is.Severity))
	}
	errs, warns := validate.Count(res.Issues)
	outcome := "ok"
	if errs > 0 {
		outcome = "invalid"
		span.SetStatus(codes.Error, fmt.Sprintf("%d validation errors", errs))
	}
	metrics.RecordRun(outcome)

	if e.recorder != nil {
		if err := e.recorder.Put(ctx, res.Record()); err != nil {
			log.Warn("failed to record run", "error", err)
		}
	}

	log.Info("run complete",
		"plan_outcome", res.Plan.Outcome,
		"answer_source", res.Answer.Source,
		"errors", errs,
		"warnings", warns,
		"elapsed", time.Since(started),
	)
	return res, nil
}

// Revalidate re-runs the validator against a stored run.
func Revalidate(rec cache.Record) []validate.Issue {
	return validate.Validate(&rec.Answer, validate.FromResponses(rec.Evidence))
}

func stage(ctx context.Context, name string, fn func(context.Context, trace.Span)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "engine."+name)
	defer span.End()
	start := time.Now()
	fn(ctx, span)
	metrics.ObserveStage(name, time.Since(start).Seconds())
}
