package engine

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/project"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
)

type embodiedCarbonConditions struct {
	DefaultThreshold *float64           `yaml:"default_threshold"`
	Thresholds       map[string]float64 `yaml:"thresholds"`
}

var projectTypes = []project.Type{
	project.TypeResidential, project.TypeCommercial, project.TypeIndustrial, project.TypeInfrastructure,
}

// embodiedCarbon compares whole-project carbon intensity (kg CO2-e per m² of
// gross floor area) with the threshold for the project type, and requires
// every EPD to declare its mandatory stages.
type embodiedCarbon struct {
	rule       rules.Rule
	fallback   decimal.Decimal
	thresholds map[project.Type]decimal.Decimal
}

func newEmbodiedCarbon(rule rules.Rule, _ rules.GlobalSettings) (Check, error) {
	var c embodiedCarbonConditions
	if err := rule.DecodeConditions(&c); err != nil {
		return nil, err
	}
	chk := &embodiedCarbon{
		rule:       rule,
		fallback:   decimalOr(c.DefaultThreshold, "850"),
		thresholds: make(map[project.Type]decimal.Decimal, len(c.Thresholds)),
	}
	if !chk.fallback.IsPositive() {
		return nil, configErr(rule, "default_threshold must be positive")
	}
	keys := make([]string, 0, len(c.Thresholds))
	for k := range c.Thresholds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t := project.Type(strings.ToLower(k))
		if !slices.Contains(projectTypes, t) {
			return nil, configErr(rule, "thresholds: unknown project type %q", k)
		}
		v := decimal.NewFromFloat(c.Thresholds[k])
		if !v.IsPositive() {
			return nil, configErr(rule, "thresholds.%s must be positive", k)
		}
		chk.thresholds[t] = v
	}
	return chk, nil
}

func (c *embodiedCarbon) threshold(t project.Type) decimal.Decimal {
	if v, ok := c.thresholds[t]; ok {
		return v
	}
	return c.fallback
}

func (c *embodiedCarbon) Evaluate(ec *EvalContext) []findings.Finding {
	p := ec.Project
	threshold := c.threshold(p.Type)

	intensity, ok := p.CarbonIntensity()
	if !ok {
		return []findings.Finding{ec.Finding(c.rule).
			Outcome(false, findings.SeverityCritical).
			Describe("Cannot calculate carbon intensity - missing gross floor area").
			Entity(entityProject, p.ID.String()).
			Remediation(findings.Remediation{Action: "Provide gross floor area for project", ResponsibleParty: "Design team"}).
			Meta("threshold", threshold.InexactFloat64()).
			Meta("project_type", string(p.Type)).
			Build()}
	}

	var incomplete []string
	for _, e := range p.EPDs {
		for _, stage := range e.Stages.MissingMandatory() {
			incomplete = append(incomplete, fmt.Sprintf("EPD %s missing %s", e.Number, stage))
		}
	}
	exceeds := intensity.GreaterThan(threshold)
	passed := !exceeds && len(incomplete) == 0

	var desc strings.Builder
	fmt.Fprintf(&desc, "Carbon intensity: %s kg CO2-e/m² (threshold: %s kg CO2-e/m²)", intensity.StringFixed(2), threshold)
	if passed {
		desc.WriteString(" - COMPLIANT")
	} else {
		if exceeds {
			fmt.Fprintf(&desc, " - EXCEEDS threshold by %s kg CO2-e/m²", intensity.Sub(threshold).StringFixed(2))
		}
		if len(incomplete) > 0 {
			desc.WriteString("; Incomplete stages: " + strings.Join(incomplete, "; "))
		}
	}

	return []findings.Finding{ec.Finding(c.rule).
		Outcome(passed, findings.SeverityCritical).
		Describe(desc.String()).
		Entity(entityProject, p.ID.String()).
		Meta("carbon_intensity", intensity.InexactFloat64()).
		Meta("threshold", threshold.InexactFloat64()).
		Meta("project_type", string(p.Type)).
		Meta("gross_floor_area_m2", p.GrossFloorArea.Decimal.InexactFloat64()).
		Build()}
}
