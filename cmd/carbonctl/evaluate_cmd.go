package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/config"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/engine"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/project"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/store"
)

// runEvaluateCmd implements `carbonctl evaluate`.
//
// Exit codes:
//
//	0 = every project evaluated (and compliant, with --fail-on-noncompliant)
//	1 = a project is non-compliant and --fail-on-noncompliant is set
//	2 = runtime error
func runEvaluateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		rulesPath     string
		pattern       string
		dateStr       string
		parallelism   int
		jsonOutput    bool
		outDir        string
		storeDSN      string
		failOnNonComp bool
		readiness     bool
		logLevel      string
	)

	cmd.StringVar(&rulesPath, "rules", "rules/catalogue.yaml", "Path to the rule catalogue")
	cmd.StringVar(&pattern, "project", "", "Project record path or glob, e.g. 'projects/**/*.json' (REQUIRED)")
	cmd.StringVar(&dateStr, "date", "", "Evaluation date YYYY-MM-DD (default: today in the catalogue timezone)")
	cmd.IntVar(&parallelism, "parallel", 1, "Rules evaluated concurrently per project")
	cmd.BoolVar(&jsonOutput, "json", false, "Print reports as a JSON array")
	cmd.StringVar(&outDir, "out", "", "Directory to write <report_id>.json files into")
	cmd.StringVar(&storeDSN, "store", "", "Persist reports: SQLite path or postgres:// URL")
	cmd.BoolVar(&failOnNonComp, "fail-on-noncompliant", false, "Exit 1 when any project is non-compliant")
	cmd.BoolVar(&readiness, "readiness", false, "Print data readiness warnings before evaluating")
	cmd.StringVar(&logLevel, "log-level", "WARN", "Log level (DEBUG, INFO, WARN, ERROR)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if pattern == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --project is required")
		return 2
	}
	if parallelism < 1 {
		_, _ = fmt.Fprintln(stderr, "Error: --parallel must be at least 1")
		return 2
	}

	logger, err := config.NewLogger(logLevel, "text", stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	paths, err := expandProjects(pattern)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	cat, err := rules.Load(rulesPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	e, err := engine.New(cat, engine.WithLogger(logger), engine.WithParallelism(parallelism))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	date := e.Today()
	if dateStr != "" {
		if date, err = project.ParseDate(dateStr); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: --date: %v\n", err)
			return 2
		}
	}

	ctx := context.Background()
	var rs store.ReportStore
	if storeDSN != "" {
		s, err := openStore(ctx, storeDSN)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		defer func() { _ = s.Close() }()
		rs = s
	}
	if outDir != "" {
		//nolint:gosec // G301: report output directory
		if err := os.MkdirAll(outDir, 0755); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}

	reports := make([]*findings.Report, 0, len(paths))
	nonCompliant := 0
	for _, path := range paths {
		p, err := project.LoadFile(path)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		if readiness && !jsonOutput {
			printReadiness(stdout, path, project.CheckReadiness(p))
		}

		r, err := e.Evaluate(ctx, p, engine.OnDate(date))
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
			return 2
		}
		if !r.Summary.Compliant {
			nonCompliant++
		}
		if rs != nil {
			if err := rs.Save(ctx, r); err != nil {
				_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
				return 2
			}
		}
		if outDir != "" {
			if err := writeReport(filepath.Join(outDir, r.ID.String()+".json"), r); err != nil {
				_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
				return 2
			}
		}
		if !jsonOutput {
			printReport(stdout, path, r)
		}
		reports = append(reports, r)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		_, _ = fmt.Fprintln(stdout, string(data))
	}

	if failOnNonComp && nonCompliant > 0 {
		return 1
	}
	return 0
}

// expandProjects resolves a path or doublestar glob to a sorted file list.
func expandProjects(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("--project %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("--project %q matched no files", pattern)
	}
	sort.Strings(matches)
	return matches, nil
}

func openStore(ctx context.Context, dsn string) (*store.SQLStore, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return store.OpenPostgres(ctx, dsn)
	}
	return store.OpenSQLite(ctx, dsn)
}

func writeReport(path string, r *findings.Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	//nolint:gosec // G306: reports are shared with reviewers
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func printReadiness(w io.Writer, path string, r project.Readiness) {
	for _, msg := range r.Errors {
		_, _ = fmt.Fprintf(w, "%s: readiness error: %s\n", path, msg)
	}
	for _, msg := range r.Warnings {
		_, _ = fmt.Fprintf(w, "%s: readiness warning: %s\n", path, msg)
	}
}

func printReport(w io.Writer, path string, r *findings.Report) {
	s := r.Summary
	if s.Compliant {
		_, _ = fmt.Fprintf(w, "%s✅ COMPLIANT%s  %s (%s)\n", colorGreen, colorReset, r.ProjectName, path)
	} else {
		_, _ = fmt.Fprintf(w, "%s❌ NON-COMPLIANT%s  %s (%s)\n", colorRed, colorReset, r.ProjectName, path)
	}
	_, _ = fmt.Fprintf(w, "Rules %s, evaluated %s: %d checks, %d passed, %d failed (critical %d, high %d, medium %d, low %d)\n",
		r.RulesVersion, r.EvaluationDate, s.Total, s.Passed, s.Failed, s.Critical, s.High, s.Medium, s.Low)
	for _, f := range r.Failures() {
		_, _ = fmt.Fprintf(w, "  - [%s] %s: %s\n", f.Severity, f.RuleName, f.Description)
	}
}
