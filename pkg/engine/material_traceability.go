package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/match"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/project"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/units"
)

type materialTraceabilityConditions struct {
	MatchThreshold       *float64 `yaml:"match_threshold"`
	QuantityTolerancePct *float64 `yaml:"quantity_tolerance_pct"`
}

// materialTraceability links every BIM element to an invoice line, by exact
// normalized name first and fuzzy match second, and checks the line carries
// a carbon figure, a supplier ABN and a quantity close to the modelled one.
type materialTraceability struct {
	rule      rules.Rule
	matcher   match.Matcher
	tolerance decimal.Decimal
}

func newMaterialTraceability(rule rules.Rule, settings rules.GlobalSettings) (Check, error) {
	var c materialTraceabilityConditions
	if err := rule.DecodeConditions(&c); err != nil {
		return nil, err
	}
	threshold := settings.MatchThreshold
	if c.MatchThreshold != nil {
		threshold = *c.MatchThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, configErr(rule, "match_threshold %v must be within [0, 1]", threshold)
	}
	tol := decimalOr(c.QuantityTolerancePct, "10")
	if err := requireNonNegative(rule, "quantity_tolerance_pct", tol); err != nil {
		return nil, err
	}
	return &materialTraceability{rule: rule, matcher: match.New(threshold), tolerance: tol}, nil
}

type invoiceLine struct {
	item    project.LineItem
	invoice *project.Invoice
}

func (c *materialTraceability) Evaluate(ec *EvalContext) []findings.Finding {
	// Later lines with the same normalized name replace earlier ones; keys
	// keep first-seen order so fuzzy ties resolve the same way every run.
	lines := make(map[string]invoiceLine)
	var keys []string
	for i := range ec.Project.Invoices {
		inv := &ec.Project.Invoices[i]
		for _, li := range inv.LineItems {
			key := match.Normalize(li.ProductName)
			if _, seen := lines[key]; !seen {
				keys = append(keys, key)
			}
			lines[key] = invoiceLine{item: li, invoice: inv}
		}
	}

	var out []findings.Finding
	for _, el := range ec.Project.Elements() {
		var issues []string
		b := ec.Finding(c.rule)

		key := match.Normalize(el.MaterialName)
		hit, ok := lines[key]
		if !ok {
			if m, found := c.matcher.Best(key, keys); found {
				hit, ok = lines[m.Candidate], true
				b.Meta("match_ratio", m.Ratio)
			} else {
				issues = append(issues, fmt.Sprintf("No invoice found for BIM material '%s'", el.MaterialName))
			}
		}

		if ok {
			b.Meta("invoice_number", hit.invoice.Number).Meta("line_number", hit.item.LineNumber)
			if !hit.item.HasCarbonLink() {
				issues = append(issues, "No EPD or emissions factor linked")
			}
			if hit.invoice.SupplierABN == "" {
				issues = append(issues, "Missing supplier ABN")
			}
			if issue := c.quantityIssue(el, hit.item); issue != "" {
				issues = append(issues, issue)
			}
		}

		out = append(out, b.
			Outcome(len(issues) == 0, findings.SeverityHigh).
			Describe(outcome(fmt.Sprintf("BIM element '%s' (%s)", el.Label(), el.MaterialName), issues, "Fully traceable")).
			Entity(entityElement, el.Ref()).
			Evidence(el.Evidence.URIs()...).
			Build())
	}
	return out
}

// quantityIssue reconciles modelled against invoiced quantity when the units
// match, including labels the units table does not know, or are convertible.
// Incomparable units are not reconciled.
func (c *materialTraceability) quantityIssue(el project.Element, li project.LineItem) string {
	same := el.Unit.Canonical() == li.Unit.Canonical()
	if !same && !units.Comparable(el.Unit, li.Unit) {
		return ""
	}
	if li.Quantity.IsZero() {
		return "Invoice quantity is zero; variance cannot be computed"
	}
	modelled := el.Quantity
	if !same {
		var err error
		if modelled, err = units.Convert(el.Quantity, el.Unit, li.Unit); err != nil {
			return ""
		}
	}
	variance := modelled.Sub(li.Quantity).Abs().Div(li.Quantity.Abs()).Mul(decimal.NewFromInt(100))
	if variance.GreaterThan(c.tolerance) {
		return fmt.Sprintf("Quantity variance %s%% exceeds ±%s%% tolerance", variance.StringFixed(1), c.tolerance)
	}
	return ""
}
