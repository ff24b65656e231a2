// Package llm defines the provider interface and implementations for LLM interaction.
package llm

import (
	"context"
	"strings"
)

// Settings configures the LLM request.
type Settings struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Provider generates text from a prompt using an LLM.
type Provider interface {
	Generate(ctx context.Context, prompt string, settings Settings) (string, error)
	Name() string
}

// Completer is the fail-soft text completion used by the planner and the
// composer. An unavailable model yields "".
type Completer interface {
	Complete(ctx context.Context, prompt string) string
}

// ExtractJSON strips surrounding whitespace and a Markdown code fence from a
// model reply.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the info string ("json", "JSON", ...).
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "json"), "JSON")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
