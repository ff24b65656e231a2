package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Jeffawe/LedgerMind/internal/metrics"
)

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 60 * time.Second

// ClientOptions configures a Client.
type ClientOptions struct {
	Settings Settings
	Timeout  time.Duration
	// RequestsPerMinute enables a token-bucket limiter when > 0.
	RequestsPerMinute int
	Logger            *slog.Logger
}

// Client adapts a Provider to the fail-soft Completer contract. Provider
// errors, timeouts and limiter failures are logged and reported as "".
type Client struct {
	provider Provider
	settings Settings
	timeout  time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger
}

var _ Completer = (*Client)(nil)

func NewClient(p Provider, opts ClientOptions) *Client {
	c := &Client{
		provider: p,
		settings: opts.Settings,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if opts.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), opts.RequestsPerMinute)
	}
	return c
}

// Provider returns the wrapped provider.
func (c *Client) Provider() Provider { return c.provider }

// Complete sends prompt to the provider and returns the trimmed reply, or ""
// when the model is unavailable.
func (c *Client) Complete(ctx context.Context, prompt string) string {
	name := c.provider.Name()
	log := c.logger.With("provider", name, "model", c.settings.Model)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			log.Warn("llm rate limiter wait failed", "error", err)
			metrics.RecordLLMCall(name, "rate_limited", 0)
			return ""
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log.Debug("llm request start", "prompt_chars", len(prompt), "timeout", c.timeout)
	start := time.Now()
	text, err := c.provider.Generate(ctx, prompt, c.settings)
	elapsed := time.Since(start)
	if err != nil {
		log.Warn("llm request failed", "error", err, "elapsed", elapsed)
		metrics.RecordLLMCall(name, "error", elapsed.Seconds())
		return ""
	}

	text = strings.TrimSpace(text)
	status := "ok"
	if text == "" {
		status = "empty"
	}
	metrics.RecordLLMCall(name, status, elapsed.Seconds())
	log.Debug("llm request complete", "response_chars", len(text), "elapsed", elapsed)
	return text
}
