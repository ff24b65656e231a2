package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Jeffawe/LedgerMind/internal/engine"
	"github.com/Jeffawe/LedgerMind/internal/ledger"
	"github.com/Jeffawe/LedgerMind/internal/render"
	"github.com/Jeffawe/LedgerMind/internal/validate"
)

func newImportCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Import JSON or CSV ledger exports into the ledger database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rf, args)
		},
	}
}

func runImport(rf *rootFlags, paths []string) error {
	a, err := buildApp(rf, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	for _, path := range paths {
		f, err := ledger.LoadFile(path)
		if err != nil {
			return exitError(exitInput, "failed to load %s: %v", path, err)
		}
		imported, err := a.store.Import(ctx, f)
		if err != nil {
			return exitError(exitStore, "failed to import %s: %v", path, err)
		}
		if imported {
			fmt.Fprintf(rf.out(), "imported %s: %d transactions (%s)\n", path, len(f.Transactions), f.Hash)
		} else {
			fmt.Fprintf(rf.out(), "skipped %s: already imported (%s)\n", path, f.Hash)
		}
	}
	n, err := a.store.Count(ctx)
	if err != nil {
		return exitError(exitStore, "%v", err)
	}
	fmt.Fprintf(rf.out(), "ledger now holds %d transactions\n", n)
	return nil
}

func newToolsCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the registered analysis tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(rf, false)
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(rf, map[string]any{"tools": a.registry.Specs()})
		},
	}
}

func newProfilesCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List policy profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(rf, false)
			if err != nil {
				return err
			}
			defer a.Close()
			for _, id := range a.profiles.IDs() {
				p := a.profiles.Fetch(id)
				fmt.Fprintf(rf.out(), "%s\t%s\n", p.ID, p.Description)
			}
			return nil
		},
	}
}

func newRevalidateCmd(rf *rootFlags) *cobra.Command {
	var format, failOn string
	cmd := &cobra.Command{
		Use:   "revalidate <request-id>",
		Short: "Re-run validation on a cached run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRevalidate(rf, args[0], format, failOn)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or md")
	cmd.Flags().StringVar(&failOn, "fail-on", "", "Exit non-zero if any issue meets this severity: error or warn")
	return cmd
}

func runRevalidate(rf *rootFlags, id, format, failOn string) error {
	threshold, err := parseFailOn(failOn)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(rf)
	if err != nil {
		return err
	}
	runs, err := openCache(cfg.Cache)
	if err != nil {
		return exitError(exitStore, "failed to open run cache: %v", err)
	}
	if runs == nil {
		return exitError(exitInput, "run cache is disabled")
	}
	defer runs.Close()

	rec, err := runs.Get(context.Background(), id)
	if err != nil {
		return exitError(exitInput, "%v", err)
	}
	issues := engine.Revalidate(rec)

	switch format {
	case "md":
		var b strings.Builder
		render.Issues(&b, issues)
		if err := writeOutput(rf, "", b.String()); err != nil {
			return err
		}
	case "json":
		if issues == nil {
			issues = []validate.Issue{}
		}
		if err := printJSON(rf, map[string]any{"request_id": rec.ID, "issues": issues}); err != nil {
			return err
		}
	default:
		return exitError(exitInput, "unknown format: %s", format)
	}

	if threshold != "" && validate.MeetsThreshold(issues, threshold) {
		return exitError(exitThreshold, "run %s has issues at or above %s", id, threshold)
	}
	return nil
}

func printJSON(rf *rootFlags, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	return writeOutput(rf, "", string(data)+"\n")
}
