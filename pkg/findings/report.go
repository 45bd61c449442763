package findings

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
	"github.com/shopspring/decimal"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/project"
)

// Summary is derived from a report's findings and nothing else.
type Summary struct {
	Total     int  `json:"total_checks"`
	Passed    int  `json:"passed_checks"`
	Failed    int  `json:"failed_checks"`
	Critical  int  `json:"critical_count"`
	High      int  `json:"high_count"`
	Medium    int  `json:"medium_count"`
	Low       int  `json:"low_count"`
	Compliant bool `json:"compliant"`
}

// Summarize counts findings. Failed findings are bucketed by severity with
// LOW and WARNING sharing one bucket; a failed INFO finding only counts as failed.
// The project is compliant when there are no critical or high failures.
func Summarize(fs []Finding) Summary {
	var s Summary
	for _, f := range fs {
		s.Total++
		if f.Passed {
			s.Passed++
			continue
		}
		s.Failed++
		switch f.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		case SeverityLow, SeverityWarning:
			s.Low++
		}
	}
	s.Compliant = s.Critical == 0 && s.High == 0
	return s
}

// Aggregates carries the derived project figures reporting layers display.
type Aggregates struct {
	TotalEmbodiedCarbonKg decimal.Decimal     `json:"total_embodied_carbon_kg"`
	CarbonIntensity       decimal.NullDecimal `json:"carbon_intensity_kg_per_m2"`
	OperationalEmissions  decimal.Decimal     `json:"operational_emissions_kg"`
	EvidenceCount         int                 `json:"evidence_count"`
}

// AggregatesOf computes the report aggregates for p.
func AggregatesOf(p *project.Project) *Aggregates {
	a := &Aggregates{
		TotalEmbodiedCarbonKg: p.TotalEmbodiedCarbon(),
		OperationalEmissions:  p.OperationalEmissions(),
		EvidenceCount:         len(p.AllEvidence()),
	}
	if v, ok := p.CarbonIntensity(); ok {
		a.CarbonIntensity = decimal.NewNullDecimal(v)
	}
	return a
}

// Report is the ordered result of evaluating one project against one catalogue.
type Report struct {
	ID             uuid.UUID    `json:"report_id"`
	ProjectID      uuid.UUID    `json:"project_id"`
	ProjectName    string       `json:"project_name"`
	RulesVersion   string       `json:"rules_version"`
	EvaluationDate project.Date `json:"evaluation_date"`
	GeneratedAt    time.Time    `json:"generated_at"`
	Findings       []Finding    `json:"findings"`
	Summary        Summary      `json:"summary"`
	Aggregates     *Aggregates  `json:"aggregates,omitempty"`
}

// NewReport starts an empty report for p.
func NewReport(id uuid.UUID, p *project.Project, rulesVersion string, date project.Date, at time.Time) *Report {
	return &Report{
		ID:             id,
		ProjectID:      p.ID,
		ProjectName:    p.Name,
		RulesVersion:   rulesVersion,
		EvaluationDate: date,
		GeneratedAt:    at,
		Findings:       []Finding{},
	}
}

// Add appends findings in order.
func (r *Report) Add(fs ...Finding) {
	r.Findings = append(r.Findings, fs...)
}

// Summarize recomputes the summary from the findings and stores it.
func (r *Report) Summarize() Summary {
	r.Summary = Summarize(r.Findings)
	return r.Summary
}

// Failures returns the failed findings ordered by severity, most serious first.
// Findings of equal severity keep report order.
func (r *Report) Failures() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if !f.Passed {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() < out[j].Severity.Rank()
	})
	return out
}

// ForRule returns the findings emitted by one rule.
func (r *Report) ForRule(ruleID string) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.RuleID == ruleID {
			out = append(out, f)
		}
	}
	return out
}

// Digest hashes the report's findings with identities and timestamps cleared.
// Two evaluations of the same inputs produce the same digest.
func (r *Report) Digest() (string, error) {
	stripped := make([]Finding, len(r.Findings))
	for i, f := range r.Findings {
		f.ID = uuid.Nil
		f.CheckedAt = time.Time{}
		stripped[i] = f
	}
	return CanonicalHash(struct {
		ProjectID      uuid.UUID    `json:"project_id"`
		RulesVersion   string       `json:"rules_version"`
		EvaluationDate project.Date `json:"evaluation_date"`
		Findings       []Finding    `json:"findings"`
	}{r.ProjectID, r.RulesVersion, r.EvaluationDate, stripped})
}

// Canonical returns the RFC 8785 form of v's JSON.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("findings: marshal: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("findings: canonicalize: %w", err)
	}
	return canon, nil
}

// CanonicalHash returns "sha256:<hex>" over Canonical(v).
func CanonicalHash(v any) (string, error) {
	canon, err := Canonical(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// InputDigest identifies an evaluation by its inputs: the project record, the
// catalogue (by its own digest) and the evaluation date. Equal digests imply
// equal findings.
func InputDigest(p *project.Project, catalogueDigest string, date project.Date) (string, error) {
	return CanonicalHash(struct {
		Project   *project.Project `json:"project"`
		Catalogue string           `json:"catalogue"`
		Date      project.Date     `json:"evaluation_date"`
	}{p, catalogueDigest, date})
}
