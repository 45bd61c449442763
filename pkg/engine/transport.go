package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
)

type transportConditions struct {
	MaxDomesticKM        *float64 `yaml:"max_domestic_km"`
	MaxInternationalKM   *float64 `yaml:"max_international_km"`
	EmissionsFactorRange *bounds  `yaml:"emissions_factor_range"`
	LoadFactorRange      *bounds  `yaml:"load_factor_range"`
}

// transport checks each leg for a plausible distance, emissions factor and
// load factor. Legs between countries get the international distance limit.
type transport struct {
	rule             rules.Rule
	maxDomestic      decimal.Decimal
	maxInternational decimal.Decimal
	emissionsFactor  decimalRange
	loadFactor       decimalRange
}

func newTransport(rule rules.Rule, _ rules.GlobalSettings) (Check, error) {
	var c transportConditions
	if err := rule.DecodeConditions(&c); err != nil {
		return nil, err
	}
	chk := &transport{
		rule:             rule,
		maxDomestic:      decimalOr(c.MaxDomesticKM, "5000"),
		maxInternational: decimalOr(c.MaxInternationalKM, "20000"),
	}
	var err error
	if chk.emissionsFactor, err = c.EmissionsFactorRange.resolve(rule, "emissions_factor_range", "0.01", "2.0"); err != nil {
		return nil, err
	}
	if chk.loadFactor, err = c.LoadFactorRange.resolve(rule, "load_factor_range", "0.3", "1.0"); err != nil {
		return nil, err
	}
	return chk, nil
}

func (c *transport) Evaluate(ec *EvalContext) []findings.Finding {
	var out []findings.Finding
	for _, log := range ec.Project.TransportLogs {
		for _, leg := range log.Legs {
			var issues []string

			international := leg.International()
			limit := c.maxDomestic
			if international {
				limit = c.maxInternational
			}
			if leg.DistanceKM.GreaterThan(limit) {
				issues = append(issues, fmt.Sprintf("Distance %s km exceeds maximum %s km", leg.DistanceKM, limit))
			}
			var ef any
			if leg.EmissionsFactor.Valid {
				ef = leg.EmissionsFactor.Decimal.InexactFloat64()
				if !c.emissionsFactor.contains(leg.EmissionsFactor.Decimal) {
					issues = append(issues, fmt.Sprintf("Emissions factor %s outside realistic range (%s)",
						leg.EmissionsFactor.Decimal, c.emissionsFactor))
				}
			}
			if lf := leg.Load(); !c.loadFactor.contains(lf) {
				issues = append(issues, fmt.Sprintf("Load factor %s outside realistic range (%s)", lf, c.loadFactor))
			}

			head := fmt.Sprintf("Transport leg: %s → %s (%s km)",
				leg.Origin.CityOr("Unknown"), leg.Destination.CityOr("Unknown"), leg.DistanceKM)
			out = append(out, ec.Finding(c.rule).
				Outcome(len(issues) == 0, findings.SeverityMedium).
				Describe(outcome(head, issues, "Verified")).
				Entity(entityTransportLeg, leg.ID.String()).
				Evidence(log.Evidence.URIs()...).
				Meta("shipment_id", log.ShipmentID).
				Meta("distance_km", leg.DistanceKM.InexactFloat64()).
				Meta("transport_mode", string(leg.Mode)).
				Meta("emissions_factor", ef).
				Meta("international", international).
				Build())
		}
	}
	return out
}
