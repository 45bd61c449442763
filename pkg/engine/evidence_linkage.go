package engine

import (
	"fmt"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
)

type evidenceLinkageConditions struct {
	RequireHash *bool `yaml:"require_hash"`
}

// evidenceLinkage checks every EPD is backed by hashed source documents and
// that every EPD reference on an invoice line resolves.
type evidenceLinkage struct {
	rule        rules.Rule
	requireHash bool
}

func newEvidenceLinkage(rule rules.Rule, _ rules.GlobalSettings) (Check, error) {
	var c evidenceLinkageConditions
	if err := rule.DecodeConditions(&c); err != nil {
		return nil, err
	}
	requireHash := true
	if c.RequireHash != nil {
		requireHash = *c.RequireHash
	}
	return &evidenceLinkage{rule: rule, requireHash: requireHash}, nil
}

func (c *evidenceLinkage) Evaluate(ec *EvalContext) []findings.Finding {
	p := ec.Project
	out := make([]findings.Finding, 0, len(p.EPDs))

	for _, e := range p.EPDs {
		var issues []string
		if len(e.Evidence) == 0 {
			issues = append(issues, "No evidence documents attached")
		}
		unhashed := e.Evidence.Unhashed()
		if c.requireHash {
			for _, ev := range unhashed {
				issues = append(issues, fmt.Sprintf("Evidence '%s' missing SHA-256 hash", ev.Label()))
			}
		}

		okText := fmt.Sprintf("%d evidence document(s) verified", len(e.Evidence))
		out = append(out, ec.Finding(c.rule).
			Outcome(len(issues) == 0, findings.SeverityCritical).
			Describe(outcome(fmt.Sprintf("EPD %s evidence linkage", e.Number), issues, okText)).
			Entity(entityEPD, e.ID.String()).
			Evidence(e.Evidence.URIs()...).
			Meta("evidence_count", len(e.Evidence)).
			Meta("unhashed_count", len(unhashed)).
			Build())
	}

	tmpl := c.rule.Remediation.Remediation()
	for _, inv := range p.Invoices {
		for _, li := range inv.LineItems {
			if !li.EPDID.Valid {
				continue
			}
			if _, ok := ec.EPD(li.EPDID.UUID); ok {
				continue
			}
			out = append(out, ec.Finding(c.rule).
				Outcome(false, findings.SeverityHigh).
				Describe(fmt.Sprintf("Invoice %s line %d references non-existent EPD %s",
					inv.Number, li.LineNumber, li.EPDID.UUID)).
				Entity(entityInvoice, inv.ID.String()).
				Remediation(findings.Remediation{
					Action:           "Fix broken EPD reference or provide missing EPD",
					ResponsibleParty: tmpl.ResponsibleParty,
					Resources:        tmpl.Resources,
				}).
				Meta("line_number", li.LineNumber).
				Meta("epd_id", li.EPDID.UUID.String()).
				Build())
		}
	}
	return out
}
