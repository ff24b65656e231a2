// Package render produces Markdown output from an answer and its validation
// issues.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Jeffawe/LedgerMind/internal/answer"
	"github.com/Jeffawe/LedgerMind/internal/validate"
)

// Markdown renders an answer and its issues as a Markdown report.
func Markdown(a *answer.EngineAnswer, issues []validate.Issue) string {
	var b strings.Builder

	b.WriteString("# LedgerMind Answer\n\n")
	fmt.Fprintf(&b, "**%s**\n\n", a.Summary.Headline)
	for _, bullet := range a.Summary.Bullets {
		fmt.Fprintf(&b, "- %s\n", bullet)
	}
	if len(a.Summary.Bullets) > 0 {
		b.WriteString("\n")
	}

	if len(a.SupportingNumbers) > 0 {
		b.WriteString("## Supporting Numbers\n\n")
		b.WriteString("| ID | Label | Value | Source |\n|----|-------|-------|--------|\n")
		for _, n := range a.SupportingNumbers {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", n.ID, n.Label, formatValue(n), source(n))
		}
		b.WriteString("\n")
	}

	if len(a.Options) > 0 {
		b.WriteString("## Options\n\n")
		for _, opt := range a.Options {
			renderOption(&b, opt)
		}
	}

	if ra := a.RecommendedAction; ra != nil {
		b.WriteString("## Recommended Action\n\n")
		fmt.Fprintf(&b, "**%s**\n\n", ra.Title)
		renderList(&b, "Next 7 days", ra.Next7Days)
		renderList(&b, "Next 30 days", ra.Next30Days)
		if len(ra.PolicyAlignment) > 0 {
			b.WriteString("**Policy alignment:**\n")
			for _, pc := range ra.PolicyAlignment {
				fmt.Fprintf(&b, "- [%s] %s: %s\n", pc.Status, pc.Rule, pc.Details)
			}
			b.WriteString("\n")
		}
	}

	if len(a.RisksAndTradeoffs) > 0 {
		b.WriteString("## Risks and Tradeoffs\n\n")
		for _, r := range a.RisksAndTradeoffs {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("\n")
	}

	if ac := a.AssumptionsAndConfidence; ac != nil {
		b.WriteString("## Assumptions and Confidence\n\n")
		fmt.Fprintf(&b, "**Confidence:** %.0f%%\n\n", ac.Confidence*100)
		renderList(&b, "Assumptions", ac.Assumptions)
		renderList(&b, "Reasoning", ac.ConfidenceReasoning)
	}

	Issues(&b, issues)
	return b.String()
}

// Issues appends the validation section to b.
func Issues(b *strings.Builder, issues []validate.Issue) {
	b.WriteString("## Validation\n\n")
	if len(issues) == 0 {
		b.WriteString("No issues found.\n\n")
		return
	}
	errs, warns := validate.Count(issues)
	fmt.Fprintf(b, "**Issues:** %d errors, %d warnings\n\n", errs, warns)
	for _, is := range filterIssues(issues, validate.SeverityError) {
		fmt.Fprintf(b, "- **%s** `%s` %s\n", is.Code, is.Path, is.Message)
	}
	for _, is := range filterIssues(issues, validate.SeverityWarn) {
		fmt.Fprintf(b, "- %s `%s` %s\n", is.Code, is.Path, is.Message)
	}
	b.WriteString("\n")
}

func filterIssues(issues []validate.Issue, sev validate.Severity) []validate.Issue {
	var result []validate.Issue
	for _, is := range issues {
		if is.Severity == sev {
			result = append(result, is)
		}
	}
	return result
}

func renderOption(b *strings.Builder, opt answer.Option) {
	fmt.Fprintf(b, "### %s\n\n", opt.Title)
	if opt.Why != "" {
		fmt.Fprintf(b, "%s\n\n", opt.Why)
	}
	for i, s := range opt.Steps {
		fmt.Fprintf(b, "%d. %s\n", i+1, s)
	}
	if len(opt.Steps) > 0 {
		b.WriteString("\n")
	}
	for _, n := range opt.Impact {
		fmt.Fprintf(b, "**Impact:** %s %s (%s)\n\n", n.Label, formatValue(n), source(n))
	}
	for _, t := range opt.Tradeoffs {
		fmt.Fprintf(b, "> Tradeoff: %s\n", t)
	}
	if len(opt.Tradeoffs) > 0 {
		b.WriteString("\n")
	}
}

func renderList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s:**\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

func formatValue(n answer.NumericEvidence) string {
	v := strconv.FormatFloat(n.Value, 'f', -1, 64)
	switch strings.ToUpper(n.Unit) {
	case "USD", "$":
		return "$" + strconv.FormatFloat(n.Value, 'f', 2, 64)
	case "":
		return v
	}
	return v + " " + n.Unit
}

func source(n answer.NumericEvidence) string {
	if n.Type == answer.NumberAssumption {
		return "assumption: " + n.Assumption
	}
	if n.EvidenceRef != nil {
		return n.EvidenceRef.CitationID + " " + n.EvidenceRef.Path
	}
	return string(n.Type)
}
