package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/project"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/units"
)

type wasteConditions struct {
	DiversionTargetPct *float64 `yaml:"diversion_target_pct"`
}

// wasteCircularity checks each waste stream is classified, has a facility
// and carries the documents its classification demands, then reports the
// project diversion rate over streams recorded in mass units.
type wasteCircularity struct {
	rule   rules.Rule
	target decimal.Decimal
}

func newWasteCircularity(rule rules.Rule, _ rules.GlobalSettings) (Check, error) {
	var c wasteConditions
	if err := rule.DecodeConditions(&c); err != nil {
		return nil, err
	}
	target := decimalOr(c.DiversionTargetPct, "70")
	if target.IsNegative() || target.GreaterThan(decimal.NewFromInt(100)) {
		return nil, configErr(rule, "diversion_target_pct must be within [0, 100]")
	}
	return &wasteCircularity{rule: rule, target: target}, nil
}

func (c *wasteCircularity) Evaluate(ec *EvalContext) []findings.Finding {
	var (
		out      []findings.Finding
		totalKG  = decimal.Zero
		diverted = decimal.Zero
	)
	for _, ws := range ec.Project.WasteStreams {
		if kg, ok := units.ToKilograms(ws.Quantity, ws.Unit); ok {
			totalKG = totalKG.Add(kg)
			if ws.Type.Diverted() {
				diverted = diverted.Add(kg)
			}
		}

		var issues []string
		if ws.Type == "" {
			issues = append(issues, "Missing waste type classification")
		}
		if ws.DisposalFacility == "" {
			issues = append(issues, "Missing disposal facility")
		}
		if ws.Type == project.WasteHazardous && !ws.Evidence.Has(project.EvidenceWasteReceipt) {
			issues = append(issues, "Hazardous waste missing special handling documentation")
		}
		if ws.RecycledContentPct.Valid && ws.RecycledContentPct.Decimal.IsPositive() &&
			!ws.Evidence.Has(project.EvidenceCertification) {
			issues = append(issues, "Recycled content claim lacks certification")
		}

		head := fmt.Sprintf("Waste stream: %s (%s %s)", ws.Description, ws.Quantity, ws.Unit)
		out = append(out, ec.Finding(c.rule).
			Outcome(len(issues) == 0, findings.SeverityMedium).
			Describe(outcome(head, issues, "Properly documented")).
			Entity(entityWasteStream, ws.ID.String()).
			Evidence(ws.Evidence.URIs()...).
			Build())
	}

	if !totalKG.IsPositive() {
		return out
	}

	rate := diverted.Div(totalKG).Mul(decimal.NewFromInt(100))
	tmpl := c.rule.Remediation.Remediation()
	out = append(out, ec.Finding(c.rule).
		Named(c.rule.Name+" - Diversion Rate").
		Outcome(rate.GreaterThanOrEqual(c.target), findings.SeverityMedium).
		Describe(fmt.Sprintf("Waste diversion rate: %s%% (target: %s%%)", rate.StringFixed(1), c.target)).
		Entity(entityProject, ec.Project.ID.String()).
		Remediation(findings.Remediation{
			Action:           fmt.Sprintf("Increase recycling and reuse to achieve %s%% diversion target", c.target),
			ResponsibleParty: "Site manager",
			Resources:        tmpl.Resources,
		}).
		Meta("total_waste_kg", totalKG.InexactFloat64()).
		Meta("diverted_kg", diverted.InexactFloat64()).
		Meta("diversion_rate_pct", rate.InexactFloat64()).
		Build())
	return out
}
