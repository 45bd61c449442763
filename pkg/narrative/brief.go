package narrative

import (
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/project"
)

// TopIssueLimit caps the issues carried in a Brief.
const TopIssueLimit = 5

const issueTextLimit = 100

// Issue is a failed finding as presented to a generator.
type Issue struct {
	Severity         findings.Severity `json:"severity"`
	RuleName         string            `json:"rule_name"`
	Description      string            `json:"description"`
	Action           string            `json:"action"`
	ResponsibleParty string            `json:"responsible_party"`
}

// Brief is the read-only fact sheet a generator writes from. Every value in
// it was decided by the engine.
type Brief struct {
	ProjectName     string           `json:"project_name"`
	ProjectType     project.Type     `json:"project_type"`
	RulesVersion    string           `json:"rules_version"`
	EvaluationDate  string           `json:"evaluation_date"`
	Summary         findings.Summary `json:"summary"`
	PassRatePct     float64          `json:"pass_rate_pct"`
	TotalCarbonKg   string           `json:"total_embodied_carbon_kg"`
	CarbonIntensity string           `json:"carbon_intensity_kg_per_m2"`
	EPDCount        int              `json:"epd_count"`
	InvoiceCount    int              `json:"invoice_count"`
	BIMModelCount   int              `json:"bim_model_count"`
	TopIssues       []Issue          `json:"top_issues"`
	Failures        []Issue          `json:"failures"`
}

// BuildBrief extracts the facts of r and p a generator may use. Failures are
// ordered most severe first; TopIssues is the head of that list with
// descriptions shortened.
func BuildBrief(r *findings.Report, p *project.Project) *Brief {
	b := &Brief{
		ProjectName:     p.Name,
		ProjectType:     p.Type,
		RulesVersion:    r.RulesVersion,
		EvaluationDate:  r.EvaluationDate.String(),
		Summary:         r.Summary,
		TotalCarbonKg:   p.TotalEmbodiedCarbon().StringFixed(2),
		CarbonIntensity: "N/A",
		EPDCount:        len(p.EPDs),
		InvoiceCount:    len(p.Invoices),
		BIMModelCount:   len(p.BIMModels),
		TopIssues:       []Issue{},
		Failures:        []Issue{},
	}
	if b.Summary.Total == 0 && len(r.Findings) > 0 {
		b.Summary = findings.Summarize(r.Findings)
	}
	if b.Summary.Total > 0 {
		b.PassRatePct = float64(b.Summary.Passed) / float64(b.Summary.Total) * 100
	}
	if v, ok := p.CarbonIntensity(); ok {
		b.CarbonIntensity = v.StringFixed(2)
	}

	for _, f := range r.Failures() {
		issue := Issue{
			Severity:         f.Severity,
			RuleName:         f.RuleName,
			Description:      f.Description,
			Action:           f.Remediation.Action,
			ResponsibleParty: f.Remediation.ResponsibleParty,
		}
		b.Failures = append(b.Failures, issue)
		if len(b.TopIssues) < TopIssueLimit {
			issue.Description = truncate(issue.Description, issueTextLimit)
			b.TopIssues = append(b.TopIssues, issue)
		}
	}
	return b
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
