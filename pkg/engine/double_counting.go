package engine

import (
	"fmt"
	"strings"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/match"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
)

// doubleCounting flags materials claimed through both the building model and
// supplier invoices. References are grouped by normalized material name; a
// group is a duplicate only when it spans both sources.
type doubleCounting struct {
	rule rules.Rule
}

func newDoubleCounting(rule rules.Rule, _ rules.GlobalSettings) (Check, error) {
	var none struct{}
	if err := rule.DecodeConditions(&none); err != nil {
		return nil, err
	}
	return &doubleCounting{rule: rule}, nil
}

type materialRefs struct {
	refs       []string
	fromModel  bool
	fromLedger bool
}

func (c *doubleCounting) Evaluate(ec *EvalContext) []findings.Finding {
	groups := make(map[string]*materialRefs)
	var order []string
	add := func(name, ref string, model bool) {
		key := match.Normalize(name)
		if key == "" {
			return
		}
		g, ok := groups[key]
		if !ok {
			g = &materialRefs{}
			groups[key] = g
			order = append(order, key)
		}
		g.refs = append(g.refs, ref)
		if model {
			g.fromModel = true
		} else {
			g.fromLedger = true
		}
	}

	for _, el := range ec.Project.Elements() {
		add(el.MaterialName, "BIM:"+el.Ref(), true)
	}
	for _, inv := range ec.Project.Invoices {
		for _, li := range inv.LineItems {
			add(li.ProductName, fmt.Sprintf("Invoice:%s:%d", inv.Number, li.LineNumber), false)
		}
	}

	var out []findings.Finding
	for _, key := range order {
		g := groups[key]
		if !g.fromModel || !g.fromLedger {
			continue
		}
		out = append(out, ec.Finding(c.rule).
			Outcome(false, findings.SeverityCritical).
			Describe(fmt.Sprintf("Material '%s' appears in multiple sources: %s", key, strings.Join(g.refs, ", "))).
			Entity(entityProject, ec.Project.ID.String()).
			Meta("material", key).
			Meta("references", append([]string(nil), g.refs...)).
			Build())
	}
	if len(out) > 0 {
		return out
	}

	return []findings.Finding{ec.Finding(c.rule).
		Outcome(true, findings.SeverityCritical).
		Describe("No double-counting detected across data sources").
		Entity(entityProject, ec.Project.ID.String()).
		Remediation(findings.Remediation{
			Action:           "Continue monitoring for duplicates",
			ResponsibleParty: c.rule.Remediation.ResponsibleParty,
		}).
		Build()}
}
