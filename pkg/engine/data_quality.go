package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
)

type dataQualityConditions struct {
	MinPrimaryCoveragePct *float64 `yaml:"min_primary_coverage_pct"`
}

// dataQuality measures primary-data coverage: the share of invoices backed
// by at least one evidence document. A project without invoices has none.
type dataQuality struct {
	rule   rules.Rule
	target decimal.Decimal
}

func newDataQuality(rule rules.Rule, _ rules.GlobalSettings) (Check, error) {
	var c dataQualityConditions
	if err := rule.DecodeConditions(&c); err != nil {
		return nil, err
	}
	target := decimalOr(c.MinPrimaryCoveragePct, "80")
	if target.IsNegative() || target.GreaterThan(decimal.NewFromInt(100)) {
		return nil, configErr(rule, "min_primary_coverage_pct must be within [0, 100]")
	}
	return &dataQuality{rule: rule, target: target}, nil
}

func (c *dataQuality) Evaluate(ec *EvalContext) []findings.Finding {
	total := len(ec.Project.Invoices)
	primary := 0
	for _, inv := range ec.Project.Invoices {
		if len(inv.Evidence) > 0 {
			primary++
		}
	}

	coverage := decimal.Zero
	if total > 0 {
		coverage = decimal.NewFromInt(int64(primary)).
			Div(decimal.NewFromInt(int64(total))).
			Mul(decimal.NewFromInt(100))
	}
	passed := coverage.GreaterThanOrEqual(c.target)

	desc := fmt.Sprintf("Primary data coverage: %s%% (target: %s%%)", coverage.StringFixed(1), c.target)
	if passed {
		desc += " - SUFFICIENT"
	} else {
		desc += fmt.Sprintf(" - INSUFFICIENT (missing %s%%)", c.target.Sub(coverage).StringFixed(1))
	}

	return []findings.Finding{ec.Finding(c.rule).
		Outcome(passed, findings.SeverityHigh).
		Describe(desc).
		Entity(entityProject, ec.Project.ID.String()).
		Meta("primary_coverage_pct", coverage.InexactFloat64()).
		Meta("total_materials", total).
		Meta("primary_data_count", primary).
		Build()}
}
