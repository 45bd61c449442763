package engine

import (
	"fmt"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
)

// scopeBoundary checks GHG Protocol categorisation: purchased materials
// (Scope 3 category 1) and upstream transport (category 4) are documented,
// and no utility meter starts before construction ends, so operational
// energy is kept out of the construction boundary.
type scopeBoundary struct {
	rule rules.Rule
}

func newScopeBoundary(rule rules.Rule, _ rules.GlobalSettings) (Check, error) {
	var none struct{}
	if err := rule.DecodeConditions(&none); err != nil {
		return nil, err
	}
	return &scopeBoundary{rule: rule}, nil
}

func (c *scopeBoundary) Evaluate(ec *EvalContext) []findings.Finding {
	p := ec.Project

	var issues []string
	if len(p.EPDs) == 0 {
		issues = append(issues, "No EPDs documented for Scope 3 Category 1")
	}
	if len(p.TransportLogs) == 0 {
		issues = append(issues, "No transport logs for Scope 3 Category 4")
	}
	constructionEnd := p.EndOr(ec.Date)
	for _, m := range p.Meters {
		if m.StartDate.Before(constructionEnd) {
			issues = append(issues, fmt.Sprintf("Meter %s readings overlap construction period", m.MeterID))
		}
	}

	return []findings.Finding{ec.Finding(c.rule).
		Outcome(len(issues) == 0, findings.SeverityHigh).
		Describe(outcome("GHG Protocol scope boundary alignment", issues, "Properly categorized")).
		Entity(entityProject, p.ID.String()).
		Meta("scope3_cat1_epds", len(p.EPDs)).
		Meta("scope3_cat4_transport_logs", len(p.TransportLogs)).
		Meta("meters", len(p.Meters)).
		Build()}
}
