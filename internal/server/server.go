// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Jeffawe/LedgerMind/internal/answer"
	"github.com/Jeffawe/LedgerMind/internal/cache"
	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/engine"
	"github.com/Jeffawe/LedgerMind/internal/profile"
	"github.com/Jeffawe/LedgerMind/internal/tools"
	"github.com/Jeffawe/LedgerMind/internal/validate"
)

//go:embed static/index.html
var indexHTML []byte

// Runner executes a pipeline run. *engine.Engine satisfies it.
type Runner interface {
	Execute(ctx context.Context, req domain.UserRequest) (engine.Result, error)
}

type Options struct {
	Runner   Runner
	Registry *tools.Registry
	Profiles *profile.Store
	// Cache is optional; the /v1/runs routes answer 404 without it.
	Cache  cache.Store
	Logger *slog.Logger
	Debug  bool
}

type Server struct {
	opts   Options
	logger *slog.Logger
	router *gin.Engine
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// AnalyzeResponse is the body of a successful analyze call.
type AnalyzeResponse struct {
	RequestID    string              `json:"request_id"`
	UserID       string              `json:"user_id"`
	Answer       answer.EngineAnswer `json:"answer"`
	Issues       []validate.Issue    `json:"issues"`
	PlanOutcome  string              `json:"plan_outcome"`
	AnswerSource string              `json:"answer_source"`
}

func New(opts Options) *Server {
	s := &Server{opts: opts, logger: opts.Logger}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("ledgermind"))
	if opts.Debug {
		r.Use(gin.Logger())
	}

	r.GET("/", s.handleIndex)
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/analyze", s.handleAnalyze)

	v1 := r.Group("/v1")
	v1.POST("/analyze", s.handleAnalyze)
	v1.GET("/tools", s.handleTools)
	v1.GET("/profiles", s.handleProfiles)
	v1.GET("/runs", s.handleListRuns)
	v1.GET("/runs/:id", s.handleGetRun)
	v1.POST("/runs/:id/validate", s.handleRevalidate)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req domain.UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_JSON"})
		return
	}
	if req.RequestID == "" {
		req.RequestID = "req_" + uuid.NewString()
	}

	res, err := s.opts.Runner.Execute(c.Request.Context(), req)
	if errors.Is(err, domain.ErrInvalidRequest) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	if err != nil {
		s.logger.Error("analyze failed", "request_id", req.RequestID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "analysis failed", Code: "INTERNAL"})
		return
	}

	c.JSON(http.StatusOK, AnalyzeResponse{
		RequestID:    res.Request.RequestID,
		UserID:       res.Request.UserID,
		Answer:       res.Answer.Answer,
		Issues:       nonNil(res.Issues),
		PlanOutcome:  string(res.Plan.Outcome),
		AnswerSource: string(res.Answer.Source),
	})
}

func (s *Server) handleTools(c *gin.Context) {
	specs := []tools.Spec{}
	if s.opts.Registry != nil {
		specs = s.opts.Registry.Specs()
	}
	c.JSON(http.StatusOK, gin.H{"tools": specs})
}

func (s *Server) handleProfiles(c *gin.Context) {
	profiles := []profile.Profile{}
	if s.opts.Profiles != nil {
		for _, id := range s.opts.Profiles.IDs() {
			profiles = append(profiles, s.opts.Profiles.Fetch(id))
		}
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.opts.Cache == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []cache.Record{}})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer", Code: "INVALID_LIMIT"})
		return
	}
	recs, err := s.opts.Cache.List(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("list runs failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not list runs", Code: "INTERNAL"})
		return
	}
	if recs == nil {
		recs = []cache.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": recs})
}

func (s *Server) handleGetRun(c *gin.Context) {
	rec, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleRevalidate(c *gin.Context) {
	rec, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"request_id": rec.ID,
		"issues":     nonNil(engine.Revalidate(rec)),
	})
}

func (s *Server) lookup(c *gin.Context) (cache.Record, bool) {
	id := c.Param("id")
	if s.opts.Cache == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "run cache disabled", Code: "RUN_NOT_FOUND"})
		return cache.Record{}, false
	}
	rec, err := s.opts.Cache.Get(c.Request.Context(), id)
	if errors.Is(err, cache.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "run not found", Code: "RUN_NOT_FOUND"})
		return cache.Record{}, false
	}
	if err != nil {
		s.logger.Error("run lookup failed", "request_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not load run", Code: "INTERNAL"})
		return cache.Record{}, false
	}
	return rec, true
}

func nonNil(issues []validate.Issue) []validate.Issue {
	if issues == nil {
		return []validate.Issue{}
	}
	return issues
}
