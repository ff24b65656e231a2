package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Jeffawe/LedgerMind/internal/llm"
	"github.com/Jeffawe/LedgerMind/internal/server"
	"github.com/Jeffawe/LedgerMind/internal/validate"
)

// --- Pure function tests ---

func TestParseFailOn(t *testing.T) {
	tests := []struct {
		input   string
		want    validate.Severity
		wantErr bool
	}{
		{"", "", false},
		{"error", validate.SeverityError, false},
		{"ERRORS", validate.SeverityError, false},
		{"warn", validate.SeverityWarn, false},
		{"Warning", validate.SeverityWarn, false},
		{"critical", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseFailOn(tt.input)
			if tt.wantErr {
				assertExitCode(t, err, exitInput)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseFailOn(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// --- runAsk integration tests via MockProvider ---

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LEDGERMIND_MODEL", "LEDGERMIND_LEDGER_DB", "LEDGERMIND_CACHE_DB", "LEDGERMIND_ADDR",
		"LOG_LEVEL", "OLLAMA_BASE_URL", "OLLAMA_MODEL", "OLLAMA_TIMEOUT_SECONDS", "OLLAMA_TEMPERATURE",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

// setup writes a config that keeps every database inside a temp dir.
func setup(t *testing.T, provider llm.Provider) (*rootFlags, *bytes.Buffer, string) {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	cfg := "ledger:\n  db: " + filepath.Join(dir, "ledger.db") + "\n" +
		"cache:\n  backend: sqlite\n  db: " + filepath.Join(dir, "runs.db") + "\n" +
		"log:\n  level: error\n"
	cfgPath := writeTempFile(t, dir, "ledgermind.yaml", cfg)

	var out bytes.Buffer
	return &rootFlags{configPath: cfgPath, provider: provider, stdout: &out, stderr: &bytes.Buffer{}}, &out, dir
}

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeLedgerCSV(t *testing.T, dir string) string {
	t.Helper()
	first := time.Now().UTC().Format("2006-01") + "-01"
	content := "id,posted_on,description,category,amount,currency\n" +
		"t1," + first + ",Blue Bottle,Dining,-12.50,USD\n" +
		"t2," + first + ",Payroll,Income,2500,USD\n"
	return writeTempFile(t, dir, "march.csv", content)
}

func assertExitCode(t *testing.T, err error, wantCode int) {
	t.Helper()
	if wantCode == 0 {
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		return
	}
	if err == nil {
		t.Fatalf("expected exit code %d, got nil error", wantCode)
	}
	var ee *exitErr
	if !errors.As(err, &ee) {
		t.Fatalf("expected *exitErr, got %T: %v", err, err)
	}
	if ee.code != wantCode {
		t.Errorf("exit code = %d, want %d (msg: %s)", ee.code, wantCode, ee.msg)
	}
}

func defaultAskFlags() *askFlags {
	return &askFlags{userID: "u_cli", timezone: "UTC", policyProfile: "default_v1", format: "json"}
}

func TestRunAskHappyPath(t *testing.T) {
	rf, out, _ := setup(t, &llm.MockProvider{Response: ""})
	f := defaultAskFlags()
	f.requestID = "req_cli_test"

	err := runAsk(context.Background(), rf, f, defaultMessage)
	assertExitCode(t, err, 0)

	var resp server.AnalyzeResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if resp.RequestID != "req_cli_test" || resp.UserID != "u_cli" {
		t.Errorf("ids = %q/%q", resp.RequestID, resp.UserID)
	}
	if resp.PlanOutcome != "fallback" || resp.AnswerSource != "fallback" {
		t.Errorf("outcome/source = %q/%q", resp.PlanOutcome, resp.AnswerSource)
	}
	if len(resp.Issues) != 0 {
		t.Errorf("issues = %v", resp.Issues)
	}
}

func TestRunAskDefaultRequestID(t *testing.T) {
	rf, out, _ := setup(t, &llm.MockProvider{})
	err := runAsk(context.Background(), rf, defaultAskFlags(), defaultMessage)
	assertExitCode(t, err, 0)
	if !strings.Contains(out.String(), `"request_id": "req_cli_`) {
		t.Errorf("expected generated request id, got %s", out.String())
	}
}

func TestRunAskMarkdown(t *testing.T) {
	rf, _, dir := setup(t, &llm.MockProvider{})
	f := defaultAskFlags()
	f.format = "md"
	f.out = filepath.Join(dir, "answer.md")

	assertExitCode(t, runAsk(context.Background(), rf, f, "How am I doing?"), 0)
	data, err := os.ReadFile(f.out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "# LedgerMind Answer") {
		t.Errorf("markdown output = %s", data)
	}
}

func TestRunAskFailOn(t *testing.T) {
	oneOption := `{"schema":"ledgermind.answer.v1","summary":{"headline":"Fine"},"options":[{"id":"o1","title":"Hold","why":"stable","steps":["wait"]}],"recommended_action":{"title":"Hold"}}`
	tests := []struct {
		failOn string
		want   int
	}{
		{"", 0},
		{"error", 0},
		{"warn", exitThreshold},
	}
	for _, tt := range tests {
		t.Run(tt.failOn, func(t *testing.T) {
			rf, _, _ := setup(t, &llm.MockProvider{Responses: []string{"", oneOption}})
			f := defaultAskFlags()
			f.failOn = tt.failOn
			assertExitCode(t, runAsk(context.Background(), rf, f, defaultMessage), tt.want)
		})
	}
}

func TestRunAskInputErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*rootFlags, *askFlags)
		want   int
	}{
		{"unrecognized fail-on", func(_ *rootFlags, f *askFlags) { f.failOn = "bogus" }, exitInput},
		{"unknown format", func(_ *rootFlags, f *askFlags) { f.format = "yaml" }, exitInput},
		{"missing config", func(rf *rootFlags, _ *askFlags) { rf.configPath = "/nonexistent/ledgermind.yaml" }, exitInput},
		{"empty user", func(_ *rootFlags, f *askFlags) { f.userID = "" }, exitInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rf, _, _ := setup(t, &llm.MockProvider{})
			f := defaultAskFlags()
			tt.mutate(rf, f)
			assertExitCode(t, runAsk(context.Background(), rf, f, defaultMessage), tt.want)
		})
	}
}

func TestRunAskProviderError(t *testing.T) {
	rf, _, _ := setup(t, nil)
	rf.model = "claude-sonnet-4-5"
	assertExitCode(t, runAsk(context.Background(), rf, defaultAskFlags(), defaultMessage), exitProvider)
}

func TestRunAskLedgerStoreError(t *testing.T) {
	rf, _, dir := setup(t, &llm.MockProvider{})
	blocker := writeTempFile(t, dir, "blocker", "not a directory")
	t.Setenv("LEDGERMIND_LEDGER_DB", filepath.Join(blocker, "ledger.db"))
	assertExitCode(t, runAsk(context.Background(), rf, defaultAskFlags(), defaultMessage), exitStore)
}

// --- import / revalidate ---

func TestRunImport(t *testing.T) {
	rf, out, dir := setup(t, nil)
	csvPath := writeLedgerCSV(t, dir)

	assertExitCode(t, runImport(rf, []string{csvPath}), 0)
	assertExitCode(t, runImport(rf, []string{csvPath}), 0)

	text := out.String()
	if !strings.Contains(text, "imported "+csvPath+": 2 transactions") {
		t.Errorf("first import output = %s", text)
	}
	if !strings.Contains(text, "skipped "+csvPath) {
		t.Errorf("second import should be skipped: %s", text)
	}
	if !strings.Contains(text, "ledger now holds 2 transactions") {
		t.Errorf("count output = %s", text)
	}

	assertExitCode(t, runImport(rf, []string{filepath.Join(dir, "missing.csv")}), exitInput)
}

func TestImportedLedgerFeedsAsk(t *testing.T) {
	rf, out, dir := setup(t, &llm.MockProvider{})
	assertExitCode(t, runImport(rf, []string{writeLedgerCSV(t, dir)}), 0)
	out.Reset()

	assertExitCode(t, runAsk(context.Background(), rf, defaultAskFlags(), defaultMessage), 0)
	var resp server.AnalyzeResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, n := range resp.Answer.SupportingNumbers {
		if n.Value == 12.5 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the imported debit among supporting numbers: %+v", resp.Answer.SupportingNumbers)
	}
}

func TestRunRevalidate(t *testing.T) {
	rf, out, _ := setup(t, &llm.MockProvider{})
	f := defaultAskFlags()
	f.requestID = "req_cached"
	assertExitCode(t, runAsk(context.Background(), rf, f, defaultMessage), 0)
	out.Reset()

	assertExitCode(t, runRevalidate(rf, "req_cached", "json", "warn"), 0)
	if !strings.Contains(out.String(), `"request_id": "req_cached"`) {
		t.Errorf("output = %s", out.String())
	}

	out.Reset()
	assertExitCode(t, runRevalidate(rf, "req_cached", "md", ""), 0)
	if !strings.Contains(out.String(), "No issues found") {
		t.Errorf("md output = %s", out.String())
	}

	assertExitCode(t, runRevalidate(rf, "req_unknown", "json", ""), exitInput)
	assertExitCode(t, runRevalidate(rf, "req_cached", "xml", ""), exitInput)
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd(&rootFlags{})
	want := []string{"ask", "serve", "import", "tools", "profiles", "revalidate"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestToolsAndProfilesCommands(t *testing.T) {
	rf, out, _ := setup(t, nil)

	cmd := newToolsCmd(rf)
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "ledger.category_summary") || !strings.Contains(out.String(), "forecast.cashflow_30d") {
		t.Errorf("tools output = %s", out.String())
	}

	out.Reset()
	cmd = newProfilesCmd(rf)
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "default_v1") || !strings.Contains(out.String(), "growth_v1") {
		t.Errorf("profiles output = %s", out.String())
	}
}
