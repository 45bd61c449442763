// Package findings defines the outputs of a rules evaluation: findings,
// the report that orders them, and the summary derived from them.
//
// Determinism: a report's summary is a pure function of its findings, and
// Report.Digest hashes the canonical (RFC 8785) JSON of the findings with
// generated identities and timestamps removed.
package findings

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity ranks how serious a failed finding is.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityWarning:  3,
	SeverityInfo:     4,
}

// Rank orders severities, most serious first. Unknown severities sort last.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// ParseSeverity accepts any casing of a known severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := severityRank[sev]; !ok {
		return "", fmt.Errorf("findings: unknown severity %q", s)
	}
	return sev, nil
}

// Remediation tells a reviewer how to resolve a failed finding.
type Remediation struct {
	Action           string   `json:"action"`
	ResponsibleParty string   `json:"responsible_party"`
	Resources        []string `json:"resources,omitempty"`
}

// EntityRef points at the record a finding examined.
type EntityRef struct {
	Type string `json:"entity_type"`
	ID   string `json:"entity_id"`
}

// Finding is the outcome of one rule applied to one entity (or the whole project).
// It is never modified after Build.
type Finding struct {
	ID           uuid.UUID      `json:"id"`
	RuleID       string         `json:"rule_id"`
	RuleName     string         `json:"rule_name"`
	Severity     Severity       `json:"severity"`
	Passed       bool           `json:"passed"`
	Description  string         `json:"description"`
	Entity       *EntityRef     `json:"entity,omitempty"`
	EvidenceURIs []string       `json:"evidence_uris"`
	Remediation  Remediation    `json:"remediation"`
	CheckedAt    time.Time      `json:"checked_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Builder assembles a Finding.
type Builder struct {
	f Finding
}

// NewBuilder starts a finding for the given rule.
func NewBuilder(ruleID, ruleName string) *Builder {
	return &Builder{f: Finding{RuleID: ruleID, RuleName: ruleName, EvidenceURIs: []string{}}}
}

func (b *Builder) Named(name string) *Builder { b.f.RuleName = name; return b }
func (b *Builder) ID(id uuid.UUID) *Builder { b.f.ID = id; return b }
func (b *Builder) At(t time.Time) *Builder { b.f.CheckedAt = t; return b }
func (b *Builder) Severity(s Severity) *Builder { b.f.Severity = s; return b }
func (b *Builder) Passed(passed bool) *Builder { b.f.Passed = passed; return b }
func (b *Builder) Describe(text string) *Builder { b.f.Description = text; return b }
func (b *Builder) Remediation(r Remediation) *Builder { b.f.Remediation = r; return b }

// Outcome sets pass/fail; a pass is always reported at INFO, a failure at onFail.
func (b *Builder) Outcome(passed bool, onFail Severity) *Builder {
	b.f.Passed = passed
	if passed {
		b.f.Severity = SeverityInfo
	} else {
		b.f.Severity = onFail
	}
	return b
}

// Entity records which record was examined.
func (b *Builder) Entity(kind, id string) *Builder {
	b.f.Entity = &EntityRef{Type: kind, ID: id}
	return b
}

// Evidence appends evidence URIs.
func (b *Builder) Evidence(uris ...string) *Builder {
	b.f.EvidenceURIs = append(b.f.EvidenceURIs, uris...)
	return b
}

// Meta sets a metadata entry.
func (b *Builder) Meta(key string, value any) *Builder {
	if b.f.Metadata == nil {
		b.f.Metadata = make(map[string]any)
	}
	b.f.Metadata[key] = value
	return b
}

// Build returns the finding. The builder must not be reused afterwards.
func (b *Builder) Build() Finding {
	return b.f
}
