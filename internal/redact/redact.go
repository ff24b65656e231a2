// Package redact masks account identifiers and secrets in ledger text before
// it is sent to a model.
package redact

import "regexp"

const placeholder = "[REDACTED]"

var patterns []*regexp.Regexp

func init() {
	raw := []string{
		// Card numbers: 13-19 digits, optionally grouped by spaces or dashes
		`\b(?:\d[ -]?){12,18}\d\b`,
		// IBANs
		`\b[A-Z]{2}\d{2}(?:[ ]?[A-Z0-9]{4}){3,7}(?:[ ]?[A-Z0-9]{1,3})?\b`,
		// Account and routing numbers following a label
		`(?i)\b(acct|account|routing|aba)\s*(no\.?|number|#)?\s*[:#]?\s*\d{4,17}\b`,
		// E-mail addresses
		`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
		// Bearer tokens
		`Bearer\s+[A-Za-z0-9\-._~+/]+=*`,
		// Generic key/secret/token/password assignments
		`(?i)(api[_-]?key|api[_-]?secret|secret[_-]?key|token|password|passwd|credentials)\s*[:=]\s*\S+`,
	}
	for _, r := range raw {
		patterns = append(patterns, regexp.MustCompile(r))
	}
}

// Redact replaces sensitive patterns in text with [REDACTED].
func Redact(text string) string {
	for _, p := range patterns {
		text = p.ReplaceAllString(text, placeholder)
	}
	return text
}

// Value returns a copy of v with every string inside maps and slices
// redacted. Numbers, booleans and map keys are left alone.
func Value(v any) any {
	switch t := v.(type) {
	case string:
		return Redact(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Value(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Value(item)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, item := range t {
			out[i] = Redact(item)
		}
		return out
	}
	return v
}
