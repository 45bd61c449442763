package engine

import (
	"fmt"
	"slices"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/project"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
)

type epdValidityConditions struct {
	RecognizedSources []string `yaml:"recognized_sources"`
}

// epdValidity checks each EPD is in date, verified when product-specific,
// registered, and published by a recognised program operator.
type epdValidity struct {
	rule    rules.Rule
	sources []string
}

func newEPDValidity(rule rules.Rule, _ rules.GlobalSettings) (Check, error) {
	var c epdValidityConditions
	if err := rule.DecodeConditions(&c); err != nil {
		return nil, err
	}
	if len(c.RecognizedSources) == 0 {
		return nil, configErr(rule, "conditions.recognized_sources is required")
	}
	return &epdValidity{rule: rule, sources: c.RecognizedSources}, nil
}

func (c *epdValidity) Evaluate(ec *EvalContext) []findings.Finding {
	out := make([]findings.Finding, 0, len(ec.Project.EPDs))
	for _, e := range ec.Project.EPDs {
		var issues []string
		if !e.IsValidOn(ec.Date) {
			issues = append(issues, fmt.Sprintf("EPD expired or not yet valid on %s", ec.Date))
		}
		productSpecific := e.Type == project.EPDProductSpecific
		if productSpecific && !e.Verified {
			issues = append(issues, "Product-specific EPD must be third-party verified")
		}
		if e.Number == "" {
			issues = append(issues, "Missing EPD registration number")
		}
		if src := e.SourceOrDefault(); !slices.Contains(c.sources, src) {
			issues = append(issues, fmt.Sprintf("EPD source '%s' not in recognized list", src))
		}

		onFail := findings.SeverityWarning
		if productSpecific {
			onFail = findings.SeverityCritical
		}
		out = append(out, ec.Finding(c.rule).
			Outcome(len(issues) == 0, onFail).
			Describe(outcome(fmt.Sprintf("EPD '%s' (%s)", e.ProductName, e.Number), issues, "Valid and verified")).
			Entity(entityEPD, e.ID.String()).
			Evidence(e.Evidence.URIs()...).
			Meta("epd_number", e.Number).
			Meta("epd_type", string(e.Type)).
			Meta("valid_from", e.ValidFrom.String()).
			Meta("valid_until", e.ValidUntil.String()).
			Build())
	}
	return out
}
