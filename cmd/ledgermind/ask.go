package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/render"
	"github.com/Jeffawe/LedgerMind/internal/server"
	"github.com/Jeffawe/LedgerMind/internal/validate"
)

const defaultMessage = "Show me this month's spending overview"

type askFlags struct {
	requestID     string
	userID        string
	timezone      string
	policyProfile string
	format        string
	out           string
	failOn        string
}

func newAskCmd(rf *rootFlags) *cobra.Command {
	f := &askFlags{}

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Answer a question about the ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := defaultMessage
			if len(args) == 1 {
				message = args[0]
			}
			return runAsk(cmd.Context(), rf, f, message)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.requestID, "request-id", "", "Request ID (default: req_cli_<timestamp>)")
	flags.StringVar(&f.userID, "user-id", "u_cli", "User ID")
	flags.StringVar(&f.timezone, "timezone", domain.DefaultTimezone, "IANA timezone for relative dates")
	flags.StringVar(&f.policyProfile, "policy-profile", domain.DefaultPolicyProfile, "Policy profile ID")
	flags.StringVar(&f.format, "format", "json", "Output format: json or md")
	flags.StringVar(&f.out, "out", "", "Output file path (default: stdout)")
	flags.StringVar(&f.failOn, "fail-on", "", "Exit non-zero if any issue meets this severity: error or warn")

	return cmd
}

func runAsk(ctx context.Context, rf *rootFlags, f *askFlags, message string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	threshold, err := parseFailOn(f.failOn)
	if err != nil {
		return err
	}
	if f.format != "json" && f.format != "md" {
		return exitError(exitInput, "unknown format: %s", f.format)
	}

	a, err := buildApp(rf, true)
	if err != nil {
		return err
	}
	defer a.Close()

	req := domain.UserRequest{
		RequestID: f.requestID,
		UserID:    f.userID,
		Message:   message,
		Context:   domain.RequestContext{Timezone: f.timezone, PolicyProfile: f.policyProfile},
	}
	if req.RequestID == "" {
		req.RequestID = "req_cli_" + time.Now().Format("20060102150405")
	}

	res, err := a.engine.Execute(ctx, req)
	if err != nil {
		return exitError(exitInput, "invalid request: %v", err)
	}

	var output string
	switch f.format {
	case "md":
		output = render.Markdown(&res.Answer.Answer, res.Issues)
	default:
		issues := res.Issues
		if issues == nil {
			issues = []validate.Issue{}
		}
		data, err := json.MarshalIndent(server.AnalyzeResponse{
			RequestID:    res.Request.RequestID,
			UserID:       res.Request.UserID,
			Answer:       res.Answer.Answer,
			Issues:       issues,
			PlanOutcome:  string(res.Plan.Outcome),
			AnswerSource: string(res.Answer.Source),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		output = string(data) + "\n"
	}
	if err := writeOutput(rf, f.out, output); err != nil {
		return err
	}

	if threshold != "" && validate.MeetsThreshold(res.Issues, threshold) {
		errs, warns := validate.Count(res.Issues)
		return exitError(exitThreshold, "validation found %d errors and %d warnings (fail-on %s)", errs, warns, threshold)
	}
	return nil
}

// parseFailOn maps the --fail-on flag to a severity. Empty disables the check.
func parseFailOn(s string) (validate.Severity, error) {
	switch strings.ToLower(s) {
	case "":
		return "", nil
	case "error", "errors":
		return validate.SeverityError, nil
	case "warn", "warning", "warnings":
		return validate.SeverityWarn, nil
	}
	return "", exitError(exitInput, "unrecognized --fail-on value %q (want error or warn)", s)
}
