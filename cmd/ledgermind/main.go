package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd(&rootFlags{}).Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(rf *rootFlags) *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgermind",
		Short:         "Answer personal finance questions with grounded, tool-backed evidence",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&rf.configPath, "config", "", "Config file path (YAML)")
	flags.StringVar(&rf.model, "model", "", "Model ID (e.g., claude-sonnet-4-5, openai:gpt-4o, ollama:llama3.1:8b)")
	flags.StringVar(&rf.logFormat, "log-format", "", "Log format: text or json")
	flags.BoolVar(&rf.verbose, "verbose", false, "Log processing steps at debug level")

	root.AddCommand(
		newAskCmd(rf),
		newServeCmd(rf),
		newImportCmd(rf),
		newToolsCmd(rf),
		newProfilesCmd(rf),
		newRevalidateCmd(rf),
	)
	return root
}

type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func exitError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// Exit codes.
const (
	exitThreshold = 2
	exitInput     = 3
	exitProvider  = 4
	exitStore     = 5
)
