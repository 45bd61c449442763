package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/engine"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
)

// runRulesCmd implements `carbonctl rules <validate|diff>`.
func runRulesCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: carbonctl rules <validate|diff> [flags]")
		return 2
	}
	switch args[0] {
	case "validate":
		return runRulesValidate(args[1:], stdout, stderr)
	case "diff":
		return runRulesDiff(args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown rules subcommand: %s\n", args[0])
		return 2
	}
}

// runRulesValidate loads a catalogue and binds every enabled rule to a check.
//
// Exit codes:
//
//	0 = valid, every enabled rule has a check
//	1 = valid, but enabled rules have no check (each reports a WARNING finding)
//	2 = invalid catalogue
func runRulesValidate(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("rules validate", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		rulesPath  string
		jsonOutput bool
	)
	cmd.StringVar(&rulesPath, "rules", "rules/catalogue.yaml", "Path to the rule catalogue")
	cmd.BoolVar(&jsonOutput, "json", false, "Output as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() > 0 {
		rulesPath = cmd.Arg(0)
	}

	cat, err := rules.Load(rulesPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s❌ INVALID%s %v\n", colorRed, colorReset, err)
		return 2
	}
	e, err := engine.New(cat)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s❌ INVALID%s %v\n", colorRed, colorReset, err)
		return 2
	}
	missing := e.Unimplemented()

	if jsonOutput {
		data, _ := json.MarshalIndent(map[string]any{
			"version":       cat.Version,
			"digest":        cat.Digest(),
			"rules":         len(cat.Rules),
			"enabled":       len(cat.Enabled()),
			"unimplemented": missing,
		}, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		_, _ = fmt.Fprintf(stdout, "%s✅ VALID%s catalogue %s (%d rules, %d enabled)\n",
			colorGreen, colorReset, cat.Version, len(cat.Rules), len(cat.Enabled()))
		_, _ = fmt.Fprintf(stdout, "Digest: %s\n", cat.Digest())
		for _, id := range missing {
			_, _ = fmt.Fprintf(stdout, "  - %s: enabled but has no check; reports as unimplemented (WARNING)\n", id)
		}
	}
	if len(missing) > 0 {
		return 1
	}
	return 0
}

// runRulesDiff compares two catalogues.
//
// Exit codes:
//
//	0 = no changes, or changes with a higher version
//	1 = rules changed without a version bump
//	2 = runtime error
func runRulesDiff(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("rules diff", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var jsonOutput bool
	cmd.BoolVar(&jsonOutput, "json", false, "Output as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 2 {
		_, _ = fmt.Fprintln(stderr, "Usage: carbonctl rules diff [--json] <old.yaml> <new.yaml>")
		return 2
	}

	old, err := rules.Load(cmd.Arg(0))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	updated, err := rules.Load(cmd.Arg(1))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	diff := rules.Diff(old, updated)

	if jsonOutput {
		data, err := json.MarshalIndent(diff, "", "  ")
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		_, _ = fmt.Fprintf(stdout, "%s -> %s: %d change(s)\n", diff.OldVersion, diff.NewVersion, len(diff.Changes))
		for _, c := range diff.Changes {
			if len(c.Fields) > 0 {
				_, _ = fmt.Fprintf(stdout, "  %-8s %s %v\n", c.Kind, c.RuleID, c.Fields)
			} else {
				_, _ = fmt.Fprintf(stdout, "  %-8s %s\n", c.Kind, c.RuleID)
			}
		}
		if diff.NeedsBump() {
			_, _ = fmt.Fprintf(stdout, "%s❌ rules changed but version was not increased%s\n", colorRed, colorReset)
		}
	}
	if diff.NeedsBump() {
		return 1
	}
	return 0
}
