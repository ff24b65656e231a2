// Package tools defines the analysis tool contract and the registry the
// planner and executor resolve tools from.
package tools

import (
	"context"

	"github.com/Jeffawe/LedgerMind/internal/domain"
)

// Spec describes a tool to the planner.
type Spec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	ArgsSchema  map[string]any `json:"args_schema"`
}

// Tool is a deterministic analysis unit. A returned error is reported to the
// caller as a failed ToolResponse, never as a pipeline failure.
type Tool interface {
	Spec() Spec
	Run(ctx context.Context, req domain.ToolRequest) (domain.ToolResponse, error)
}

// Func adapts a plain function to the Tool interface.
type Func struct {
	ToolSpec Spec
	Fn       func(ctx context.Context, req domain.ToolRequest) (domain.ToolResponse, error)
}

func (f Func) Spec() Spec { return f.ToolSpec }

func (f Func) Run(ctx context.Context, req domain.ToolRequest) (domain.ToolResponse, error) {
	return f.Fn(ctx, req)
}

// Alias exposes tool under another name.
func Alias(name string, tool Tool) Tool {
	return &alias{name: name, Tool: tool}
}

type alias struct {
	Tool
	name string
}

func (a *alias) Spec() Spec {
	s := a.Tool.Spec()
	s.Name = a.name
	return s
}

func (a *alias) Run(ctx context.Context, req domain.ToolRequest) (domain.ToolResponse, error) {
	resp, err := a.Tool.Run(ctx, req)
	if err == nil {
		resp.Tool = a.name
	}
	return resp, err
}
