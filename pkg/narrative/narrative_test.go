package narrative

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/project"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"The engine reported two critical findings for concrete.", 0},
		{"This passes the NCC threshold.", 1},
		{"I conclude that the EPD is acceptable.", 1},
		{"The slab should be marked as fail.", 1},
		{"My analysis shows pass for every EPD.", 1},
		{"Based on the evaluation, this fails.", 2},
		{"I evaluated the invoices myself.", 1},
		{"This is compliant. This is non-compliant.", 2},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := Validate(tt.text)
			assert.Len(t, got, tt.want, "%v", got)
		})
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "The rules engine determined that the EPD expired.", Sanitize("I determine that the EPD expired."))
	assert.Equal(t, "It is recommended replacing the supplier.", Sanitize("I suggest replacing the supplier."))
	assert.Equal(t, "Per the analysis, carbon is high.", Sanitize("Per my analysis, carbon is high."))
	assert.Empty(t, Validate(Sanitize("I find that transport is documented.")))
}

func fixtureReport(t *testing.T) (*findings.Report, *project.Project) {
	t.Helper()
	p, err := project.LoadFile("../project/testdata/project.json")
	require.NoError(t, err)

	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	r := findings.NewReport(uuid.New(), p, "1.2.0", project.MustDate("2024-06-01"), at)
	r.Add(
		findings.NewBuilder("ncc_embodied_carbon", "NCC 2022 Embodied Carbon Compliance").Outcome(true, findings.SeverityCritical).Describe("ok").Build(),
		findings.NewBuilder("transport_verification", "Transport").Outcome(false, findings.SeverityMedium).
			Describe(strings.Repeat("x", 150)).Remediation(findings.Remediation{Action: "Check", ResponsibleParty: "Logistics"}).Build(),
		findings.NewBuilder("double_counting", "Double-Counting Prevention").Outcome(false, findings.SeverityCritical).
			Describe("Material 'concrete' appears in multiple sources").Build(),
	)
	r.Summarize()
	return r, p
}

func TestBuildBrief(t *testing.T) {
	r, p := fixtureReport(t)
	b := BuildBrief(r, p)

	assert.Equal(t, "Parramatta Commercial Tower", b.ProjectName)
	assert.Equal(t, 3, b.Summary.Total)
	assert.False(t, b.Summary.Compliant)
	assert.InDelta(t, 33.33, b.PassRatePct, 0.01)
	assert.Equal(t, 1, b.EPDCount)

	require.Len(t, b.Failures, 2)
	assert.Equal(t, findings.SeverityCritical, b.Failures[0].Severity)
	require.Len(t, b.TopIssues, 2)
	assert.Equal(t, strings.Repeat("x", 100)+"...", b.TopIssues[1].Description)
	assert.Len(t, b.Failures[1].Description, 150)
}

func TestUserPrompt(t *testing.T) {
	r, p := fixtureReport(t)
	b := BuildBrief(r, p)

	for _, k := range Kinds {
		prompt, err := UserPrompt(k, b, "technical")
		require.NoError(t, err, k)
		assert.Contains(t, prompt, "Parramatta Commercial Tower", k)
	}

	prompt, err := UserPrompt(KindExecutiveSummary, b, "")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Overall Status: NON-COMPLIANT")
	assert.Contains(t, prompt, "1. [CRITICAL] Double-Counting Prevention")

	prompt, err = UserPrompt(KindStakeholderUpdate, b, "board")
	require.NoError(t, err)
	assert.Contains(t, prompt, "senior executives")

	_, err = UserPrompt("poem", b, "")
	require.Error(t, err)

	clean := BuildBrief(findings.NewReport(uuid.New(), p, "1.2.0", project.MustDate("2024-06-01"), time.Now()), p)
	_, err = UserPrompt(KindRemediationPlan, clean, "")
	require.Error(t, err)
}

func TestGuard(t *testing.T) {
	r, p := fixtureReport(t)
	b := BuildBrief(r, p)

	reply := func(text string) Generator {
		return GeneratorFunc(func(_ context.Context, req Request) (string, error) {
			if req.Prompt == "" || req.System == "" {
				return "", errors.New("prompts not rendered")
			}
			return text, nil
		})
	}
	req := Request{Kind: KindExecutiveSummary, Brief: b}

	t.Run("clean text passes through", func(t *testing.T) {
		out, err := Guard(reply("Two critical findings remain open.")).Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "Two critical findings remain open.", out)
	})

	t.Run("strict rejects assertions", func(t *testing.T) {
		_, err := Guard(reply("I conclude that the project is fine.")).Generate(context.Background(), req)
		require.ErrorIs(t, err, ErrAssertion)
	})

	t.Run("lenient sanitizes", func(t *testing.T) {
		out, err := Guard(reply("I conclude that transport is documented."), Lenient()).Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "The rules engine determined that transport is documented.", out)
	})

	t.Run("lenient still rejects what it cannot rewrite", func(t *testing.T) {
		_, err := Guard(reply("Overall this passes."), Lenient()).Generate(context.Background(), req)
		require.ErrorIs(t, err, ErrAssertion)
	})

	t.Run("generator error", func(t *testing.T) {
		boom := GeneratorFunc(func(context.Context, Request) (string, error) { return "", errors.New("quota") })
		_, err := Guard(boom).Generate(context.Background(), req)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrAssertion)
	})

	t.Run("no prompt and no brief", func(t *testing.T) {
		_, err := Guard(reply("x")).Generate(context.Background(), Request{Kind: KindExecutiveSummary})
		require.Error(t, err)
	})
}
