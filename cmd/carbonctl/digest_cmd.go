package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/engine"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/project"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
)

// runDigestCmd prints the catalogue digest and, with --project, the input
// digest identifying an evaluation. Equal input digests produce equal findings.
func runDigestCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("digest", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var rulesPath, projectPath, dateStr string
	cmd.StringVar(&rulesPath, "rules", "rules/catalogue.yaml", "Path to the rule catalogue")
	cmd.StringVar(&projectPath, "project", "", "Project record")
	cmd.StringVar(&dateStr, "date", "", "Evaluation date YYYY-MM-DD")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	cat, err := rules.Load(rulesPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintf(stdout, "catalogue %s %s\n", cat.Version, cat.Digest())
	if projectPath == "" {
		return 0
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
	digest, err := e.InputDigest(p, date)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintf(stdout, "input %s %s\n", date, digest)
	return 0
}
