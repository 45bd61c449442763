package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/engine"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/narrative"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/project"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
)

// runNarrativeCmd implements `carbonctl narrative <check|prompt>`.
func runNarrativeCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: carbonctl narrative <check|prompt> [flags]")
		return 2
	}
	switch args[0] {
	case "check":
		return runNarrativeCheck(args[1:], os.Stdin, stdout, stderr)
	case "prompt":
		return runNarrativePrompt(args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown narrative subcommand: %s\n", args[0])
		return 2
	}
}

// runNarrativeCheck scans generated text for compliance determinations.
// The text is read from the file argument, or stdin when none is given.
//
// Exit codes:
//
//	0 = clean (or sanitized with --sanitize)
//	1 = text makes compliance determinations
//	2 = runtime error
func runNarrativeCheck(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("narrative check", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var sanitize bool
	cmd.BoolVar(&sanitize, "sanitize", false, "Print the text with determinations rewritten instead of failing")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	var (
		data []byte
		err  error
	)
	if cmd.NArg() > 0 {
		data, err = os.ReadFile(cmd.Arg(0))
	} else {
		data, err = io.ReadAll(stdin)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	text := string(data)

	if sanitize {
		_, _ = fmt.Fprint(stdout, narrative.Sanitize(text))
		return 0
	}
	violations := narrative.Validate(text)
	if len(violations) == 0 {
		_, _ = fmt.Fprintf(stdout, "%s✅ CLEAN%s\n", colorGreen, colorReset)
		return 0
	}
	_, _ = fmt.Fprintf(stdout, "%s❌ %d determination(s)%s\n", colorRed, len(violations), colorReset)
	for _, v := range violations {
		_, _ = fmt.Fprintf(stdout, "  - %s\n", v)
	}
	return 1
}

// runNarrativePrompt evaluates a project and prints the prompts a narrative
// generator would receive.
func runNarrativePrompt(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("narrative prompt", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var rulesPath, projectPath, dateStr, kind, audience string
	cmd.StringVar(&rulesPath, "rules", "rules/catalogue.yaml", "Path to the rule catalogue")
	cmd.StringVar(&projectPath, "project", "", "Project record (REQUIRED)")
	cmd.StringVar(&dateStr, "date", "", "Evaluation date YYYY-MM-DD")
	cmd.StringVar(&kind, "kind", string(narrative.KindExecutiveSummary), "Narrative kind")
	cmd.StringVar(&audience, "audience", "executive", "Audience for stakeholder_update")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if projectPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --project is required")
		return 2
	}

	cat, err := rules.Load(rulesPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	e, err := engine.New(cat)
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
	p, err := project.LoadFile(projectPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	r, err := e.Evaluate(context.Background(), p, engine.OnDate(date))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	prompt, err := narrative.UserPrompt(narrative.Kind(kind), narrative.BuildBrief(r, p), audience)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	_, _ = fmt.Fprintf(stdout, "%sSYSTEM:%s\n%s\n\n", colorBold, colorReset, narrative.SystemPrompt())
	_, _ = fmt.Fprintf(stdout, "%sUSER:%s\n%s\n", colorBold, colorReset, prompt)
	return 0
}
