package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/config"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/engine"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
)

const (
	cataloguePath = "../../rules/catalogue.yaml"
	projectPath   = "../../pkg/project/testdata/project.json"
)

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"carbonctl"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Dispatch(t *testing.T) {
	code, _, stderr := run(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "USAGE")

	code, stdout, _ := run(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "evaluate")

	code, stdout, _ = run(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "carbonctl dev")

	code, _, stderr = run(t, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command: frobnicate")
}

func TestEvaluate_JSON(t *testing.T) {
	code, stdout, stderr := run(t, "evaluate", "--rules", cataloguePath, "--project", projectPath, "--date", "2024-06-01", "--json")
	require.Equal(t, 0, code, stderr)

	var reports []findings.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "1.2.0", reports[0].RulesVersion)
	assert.Equal(t, "2024-06-01", reports[0].EvaluationDate.String())
	assert.False(t, reports[0].Summary.Compliant)
	assert.Len(t, reports[0].Findings, reports[0].Summary.Total)
}

func TestEvaluate_FailOnNonCompliant(t *testing.T) {
	code, stdout, _ := run(t, "evaluate", "--rules", cataloguePath, "--project", projectPath, "--date", "2024-06-01", "--fail-on-noncompliant")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "NON-COMPLIANT")
	assert.Contains(t, stdout, "[CRITICAL]")
}

func TestEvaluate_OutputsAndStore(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "reports")
	db := filepath.Join(dir, "reports.db")

	code, _, stderr := run(t, "evaluate", "--rules", cataloguePath, "--project", "../../pkg/project/testdata/**/*.json",
		"--date", "2024-06-01", "--out", out, "--store", db, "--readiness")
	require.Equal(t, 0, code, stderr)

	written, err := filepath.Glob(filepath.Join(out, "*.json"))
	require.NoError(t, err)
	require.Len(t, written, 1)
	data, err := os.ReadFile(written[0])
	require.NoError(t, err)
	var r findings.Report
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, strings.TrimSuffix(filepath.Base(written[0]), ".json"), r.ID.String())

	_, err = os.Stat(db)
	assert.NoError(t, err)
}

func TestEvaluate_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing project", []string{"evaluate", "--rules", cataloguePath}, "--project is required"},
		{"no match", []string{"evaluate", "--rules", cataloguePath, "--project", "nothing/*.json"}, "matched no files"},
		{"bad date", []string{"evaluate", "--rules", cataloguePath, "--project", projectPath, "--date", "01/06/2024"}, "--date"},
		{"bad catalogue", []string{"evaluate", "--rules", "missing.yaml", "--project", projectPath}, "Error"},
		{"bad parallel", []string{"evaluate", "--project", projectPath, "--parallel", "0"}, "--parallel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := run(t, tt.args...)
			assert.Equal(t, 2, code)
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestRulesValidate(t *testing.T) {
	code, stdout, _ := run(t, "rules", "validate", "--rules", cataloguePath)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "VALID")
	assert.Contains(t, stdout, "1.2.0")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("- version: \"1.0.0\"\n- rule_id: x\n  name: X\n- rule_id: x\n  name: Y\n"), 0o600))
	code, _, stderr := run(t, "rules", "validate", bad)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "INVALID")
}

const offsetsCatalogue = "- version: \"1.0.0\"\n- rule_id: carbon_offsets\n  name: Carbon Offsets\n"

func TestRulesValidate_Unimplemented(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(offsetsCatalogue), 0o600))

	code, stdout, _ := run(t, "rules", "validate", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "carbon_offsets: enabled but has no check; reports as unimplemented (WARNING)")
}

func TestLogUnimplemented(t *testing.T) {
	cat, err := rules.Parse([]byte(offsetsCatalogue))
	require.NoError(t, err)
	e, err := engine.New(cat)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger, err := config.NewLogger("info", "json", &buf)
	require.NoError(t, err)

	logUnimplemented(logger, e)
	assert.Contains(t, buf.String(), `"msg":"enabled rules without checks report as unimplemented"`)
	assert.Contains(t, buf.String(), `"rule_ids":["carbon_offsets"]`)
	assert.NotContains(t, buf.String(), "skipped")

	full, err := rules.Load(cataloguePath)
	require.NoError(t, err)
	e, err = engine.New(full)
	require.NoError(t, err)
	buf.Reset()
	logUnimplemented(logger, e)
	assert.Empty(t, buf.String())
}

func TestRulesDiff(t *testing.T) {
	original, err := os.ReadFile(cataloguePath)
	require.NoError(t, err)
	dir := t.TempDir()

	renamed := strings.Replace(string(original), "name: EPD Validity and Certification", "name: EPD Validity", 1)
	unbumped := filepath.Join(dir, "unbumped.yaml")
	require.NoError(t, os.WriteFile(unbumped, []byte(renamed), 0o600))

	bumped := filepath.Join(dir, "bumped.yaml")
	require.NoError(t, os.WriteFile(bumped, []byte(strings.Replace(renamed, `version: "1.2.0"`, `version: "1.3.0"`, 1)), 0o600))

	code, stdout, _ := run(t, "rules", "diff", cataloguePath, cataloguePath)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "0 change(s)")

	code, stdout, _ = run(t, "rules", "diff", cataloguePath, unbumped)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "epd_validity")
	assert.Contains(t, stdout, "version was not increased")

	code, stdout, _ = run(t, "rules", "diff", "--json", cataloguePath, bumped)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, `"version_bumped": true`)

	code, _, _ = run(t, "rules", "diff", cataloguePath)
	assert.Equal(t, 2, code)
}

func TestDigest(t *testing.T) {
	code, stdout, _ := run(t, "digest", "--rules", cataloguePath, "--project", projectPath, "--date", "2024-06-01")
	require.Equal(t, 0, code)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "catalogue 1.2.0 sha256:"))
	assert.True(t, strings.HasPrefix(lines[1], "input 2024-06-01 "))

	_, again, _ := run(t, "digest", "--rules", cataloguePath, "--project", projectPath, "--date", "2024-06-01")
	assert.Equal(t, stdout, again)
}

func TestNarrativeCheck(t *testing.T) {
	dir := t.TempDir()
	clean := filepath.Join(dir, "clean.txt")
	dirty := filepath.Join(dir, "dirty.txt")
	require.NoError(t, os.WriteFile(clean, []byte("The rules engine recorded one critical finding."), 0o600))
	require.NoError(t, os.WriteFile(dirty, []byte("I conclude that the project is fine. This passes."), 0o600))

	code, stdout, _ := run(t, "narrative", "check", clean)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "CLEAN")

	code, stdout, _ = run(t, "narrative", "check", dirty)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "Forbidden pattern found")

	code, stdout, _ = run(t, "narrative", "check", "--sanitize", dirty)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "The rules engine determined that")
}

func TestNarrativePrompt(t *testing.T) {
	code, stdout, stderr := run(t, "narrative", "prompt", "--rules", cataloguePath, "--project", projectPath,
		"--date", "2024-06-01", "--kind", "remediation_plan")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "SYSTEM:")
	assert.Contains(t, stdout, "remediation plan")

	code, _, stderr = run(t, "narrative", "prompt", "--rules", cataloguePath, "--project", projectPath, "--kind", "limerick")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "unknown kind")
}
