package project

import "github.com/shopspring/decimal"

// TotalEmbodiedCarbon sums, in kg CO2-e, the life-cycle totals of every EPD,
// the emissions of every transport leg with a factor, and the recorded
// emissions of every waste stream. Absent values contribute zero.
func (p *Project) TotalEmbodiedCarbon() decimal.Decimal {
	total := decimal.Zero
	for _, e := range p.EPDs {
		total = total.Add(e.Stages.Total())
	}
	for _, t := range p.TransportLogs {
		total = total.Add(t.TotalEmissions())
	}
	for _, w := range p.WasteStreams {
		if w.TotalEmissions.Valid {
			total = total.Add(w.TotalEmissions.Decimal)
		}
	}
	return total
}

// CarbonIntensity is TotalEmbodiedCarbon per m² of gross floor area.
// ok is false when the floor area is missing or not positive.
func (p *Project) CarbonIntensity() (perM2 decimal.Decimal, ok bool) {
	if !p.GrossFloorArea.Valid || !p.GrossFloorArea.Decimal.IsPositive() {
		return decimal.Zero, false
	}
	return p.TotalEmbodiedCarbon().Div(p.GrossFloorArea.Decimal), true
}

// OperationalEmissions sums meter emissions, kept apart from embodied carbon.
func (p *Project) OperationalEmissions() decimal.Decimal {
	total := decimal.Zero
	for _, m := range p.Meters {
		total = total.Add(m.TotalEmissions())
	}
	return total
}
