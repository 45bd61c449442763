package engine

import (
	"fmt"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
)

type temporalConditions struct {
	ToleranceDays *int `yaml:"tolerance_days"`
}

// temporalValidity checks each invoice falls inside the project period,
// widened by the tolerance on both sides, and that every EPD its lines
// reference was valid on the invoice date. An open-ended project runs to the
// evaluation date. References to unknown EPDs are left to evidence_linkage.
type temporalValidity struct {
	rule      rules.Rule
	tolerance int
}

func newTemporalValidity(rule rules.Rule, _ rules.GlobalSettings) (Check, error) {
	var c temporalConditions
	if err := rule.DecodeConditions(&c); err != nil {
		return nil, err
	}
	tol := 30
	if c.ToleranceDays != nil {
		tol = *c.ToleranceDays
	}
	if tol < 0 {
		return nil, configErr(rule, "tolerance_days must not be negative")
	}
	return &temporalValidity{rule: rule, tolerance: tol}, nil
}

func (c *temporalValidity) Evaluate(ec *EvalContext) []findings.Finding {
	p := ec.Project
	from := p.StartDate.AddDays(-c.tolerance)
	until := p.EndOr(ec.Date).AddDays(c.tolerance)

	out := make([]findings.Finding, 0, len(p.Invoices))
	for _, inv := range p.Invoices {
		var issues []string
		if !inv.Date.Within(from, until) {
			issues = append(issues, fmt.Sprintf("Invoice date %s outside project period", inv.Date))
		}
		for _, li := range inv.LineItems {
			if !li.EPDID.Valid {
				continue
			}
			if e, ok := ec.EPD(li.EPDID.UUID); ok && !e.IsValidOn(inv.Date) {
				issues = append(issues, fmt.Sprintf("EPD %s not valid on invoice date", e.Number))
			}
		}

		out = append(out, ec.Finding(c.rule).
			Outcome(len(issues) == 0, findings.SeverityMedium).
			Describe(outcome(fmt.Sprintf("Invoice %s dated %s", inv.Number, inv.Date), issues, "Dates aligned")).
			Entity(entityInvoice, inv.ID.String()).
			Evidence(inv.Evidence.URIs()...).
			Meta("window_start", from.String()).
			Meta("window_end", until.String()).
			Build())
	}
	return out
}
