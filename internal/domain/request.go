// Package domain defines the request and tool envelope types shared by every
// stage of the LedgerMind pipeline.
package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultTimezone      = "UTC"
	DefaultPolicyProfile = "default_v1"
	DefaultLedgerID      = "ldg_main"
)

// ErrInvalidRequest is returned when a UserRequest fails validation.
var ErrInvalidRequest = errors.New("invalid request")

var validate = validator.New(validator.WithRequiredStructEnabled())

// RequestContext carries per-request settings supplied by the caller.
type RequestContext struct {
	Timezone      string `json:"timezone"`
	PolicyProfile string `json:"policy_profile"`
}

// UserRequest is the pipeline input.
type UserRequest struct {
	RequestID string         `json:"request_id" validate:"required"`
	UserID    string         `json:"user_id" validate:"required"`
	Message   string         `json:"message" validate:"required,min=1"`
	Context   RequestContext `json:"context"`
}

// WithDefaults returns a copy of r with empty context fields filled in.
func (r UserRequest) WithDefaults() UserRequest {
	if strings.TrimSpace(r.Context.Timezone) == "" {
		r.Context.Timezone = DefaultTimezone
	}
	if strings.TrimSpace(r.Context.PolicyProfile) == "" {
		r.Context.PolicyProfile = DefaultPolicyProfile
	}
	return r
}

// Validate checks required fields. The returned error wraps ErrInvalidRequest.
func (r UserRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// ToolContext is the per-request scope handed to every tool invocation.
type ToolContext struct {
	UserID        string `json:"user_id"`
	LedgerID      string `json:"ledger_id"`
	Timezone      string `json:"timezone"`
	PolicyProfile string `json:"policy_profile"`
}

// ToolRequest is a single scoped tool invocation.
type ToolRequest struct {
	RequestID string            `json:"request_id"`
	Tool      string            `json:"tool"`
	Args      map[string]any    `json:"args"`
	Filters   *TransactionQuery `json:"filters,omitempty"`
	Context   ToolContext       `json:"context"`
}

// ToolResponse is the outcome of a single tool invocation.
type ToolResponse struct {
	RequestID string         `json:"request_id"`
	Tool      string         `json:"tool"`
	OK        bool           `json:"ok"`
	Result    map[string]any `json:"result"`
	Errors    []string       `json:"errors"`
	Context   ToolContext    `json:"context"`
}

// Success builds an ok response for req.
func Success(req ToolRequest, tool string, result map[string]any) ToolResponse {
	if result == nil {
		result = map[string]any{}
	}
	return ToolResponse{
		RequestID: req.RequestID,
		Tool:      tool,
		OK:        true,
		Result:    result,
		Errors:    []string{},
		Context:   req.Context,
	}
}

// Failure builds a failed response for req carrying msgs.
func Failure(req ToolRequest, tool string, msgs ...string) ToolResponse {
	if msgs == nil {
		msgs = []string{}
	}
	return ToolResponse{
		RequestID: req.RequestID,
		Tool:      tool,
		OK:        false,
		Result:    map[string]any{},
		Errors:    msgs,
		Context:   req.Context,
	}
}
