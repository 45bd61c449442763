package project

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/units"
)

// TransportMode is how a leg was travelled.
type TransportMode string

const (
	ModeRoad TransportMode = "road"
	ModeRail TransportMode = "rail"
	ModeSea  TransportMode = "sea"
	ModeAir  TransportMode = "air"
)

// TransportLog records the delivery of one shipment.
type TransportLog struct {
	ID           uuid.UUID      `json:"id"`
	ShipmentID   string         `json:"shipment_id"`
	MaterialName string         `json:"material_name"`
	InvoiceID    uuid.NullUUID  `json:"invoice_id"`
	Legs         []Leg          `json:"legs"`
	Evidence     EvidenceList   `json:"evidence"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// TotalDistance sums the distance of every leg, in km.
func (t TransportLog) TotalDistance() decimal.Decimal {
	total := decimal.Zero
	for _, l := range t.Legs {
		total = total.Add(l.DistanceKM)
	}
	return total
}

// TotalEmissions sums Leg.Emissions over every leg, in kg CO2-e.
func (t TransportLog) TotalEmissions() decimal.Decimal {
	total := decimal.Zero
	for _, l := range t.Legs {
		total = total.Add(l.Emissions())
	}
	return total
}

// Leg is one origin-to-destination movement.
type Leg struct {
	ID              uuid.UUID           `json:"id"`
	Origin          Location            `json:"origin"`
	Destination     Location            `json:"destination"`
	DistanceKM      decimal.Decimal     `json:"distance_km"`
	Mode            TransportMode       `json:"transport_mode"`
	VehicleType     string              `json:"vehicle_type,omitempty"`
	CargoWeightKG   decimal.Decimal     `json:"cargo_weight_kg"`
	LoadFactor      decimal.NullDecimal `json:"load_factor"`
	EmissionsFactor decimal.NullDecimal `json:"emissions_factor"`
	TotalEmissions  decimal.NullDecimal `json:"total_emissions"`
	Date            Date                `json:"transport_date"`
	Metadata        map[string]any      `json:"metadata,omitempty"`
}

// Load returns the load factor, 1.0 when not recorded.
func (l Leg) Load() decimal.Decimal {
	if l.LoadFactor.Valid {
		return l.LoadFactor.Decimal
	}
	return decimal.NewFromInt(1)
}

// International reports whether origin and destination are in different countries.
func (l Leg) International() bool {
	return l.Origin.CountryOrDefault() != l.Destination.CountryOrDefault()
}

// Emissions is cargo tonnes × km × factor (kg CO2-e per tonne-km), or zero
// when no factor is recorded.
func (l Leg) Emissions() decimal.Decimal {
	if !l.EmissionsFactor.Valid {
		return decimal.Zero
	}
	tonnes := units.KilogramsToTonnes(l.CargoWeightKG)
	return tonnes.Mul(l.DistanceKM).Mul(l.EmissionsFactor.Decimal)
}

// WasteType classifies the fate of a waste stream.
type WasteType string

const (
	WasteLandfill    WasteType = "landfill"
	WasteRecycled    WasteType = "recycled"
	WasteReused      WasteType = "reused"
	WasteIncinerated WasteType = "incinerated"
	WasteHazardous   WasteType = "hazardous"
)

// Diverted reports whether the stream counts as diverted from landfill.
func (w WasteType) Diverted() bool {
	return w == WasteRecycled || w == WasteReused
}

// WasteStream is one tracked construction waste disposal.
type WasteStream struct {
	ID                 uuid.UUID           `json:"id"`
	Type               WasteType           `json:"waste_type"`
	MaterialCategory   MaterialCategory    `json:"material_category"`
	Description        string              `json:"material_description"`
	Quantity           decimal.Decimal     `json:"quantity"`
	Unit               units.Unit          `json:"unit"`
	DisposalDate       Date                `json:"disposal_date"`
	DisposalFacility   string              `json:"disposal_facility"`
	DisposalLocation   *Location           `json:"disposal_location,omitempty"`
	EmissionsFactor    decimal.NullDecimal `json:"emissions_factor"`
	TotalEmissions     decimal.NullDecimal `json:"total_emissions"`
	RecycledContentPct decimal.NullDecimal `json:"recycled_content_pct"`
	DiversionPct       decimal.NullDecimal `json:"diversion_from_landfill_pct"`
	Evidence           EvidenceList        `json:"evidence"`
	Metadata           map[string]any      `json:"metadata,omitempty"`
}

// MeterType is the utility a meter measures.
type MeterType string

const (
	MeterElectricity MeterType = "electricity"
	MeterGas         MeterType = "gas"
	MeterWater       MeterType = "water"
	MeterOther       MeterType = "other"
)

// Meter is a utility meter with its readings.
type Meter struct {
	ID                    uuid.UUID           `json:"id"`
	MeterID               string              `json:"meter_id"`
	Type                  MeterType           `json:"meter_type"`
	Location              Location            `json:"location"`
	BuildingArea          decimal.NullDecimal `json:"building_area"`
	Readings              []Reading           `json:"readings"`
	EmissionsFactor       decimal.NullDecimal `json:"emissions_factor"`
	EmissionsFactorSource string              `json:"emissions_factor_source,omitempty"`
	StartDate             Date                `json:"start_date"`
	EndDate               Date                `json:"end_date"`
	Evidence              EvidenceList        `json:"evidence"`
	Metadata              map[string]any      `json:"metadata,omitempty"`
}

// Reading is one cumulative meter reading.
type Reading struct {
	ID        uuid.UUID       `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Value     decimal.Decimal `json:"value"`
	Unit      units.Unit      `json:"unit"`
}

// TotalConsumption is the spread between the highest and lowest cumulative
// reading, or zero with fewer than two readings.
func (m Meter) TotalConsumption() decimal.Decimal {
	if len(m.Readings) < 2 {
		return decimal.Zero
	}
	lo, hi := m.Readings[0].Value, m.Readings[0].Value
	for _, r := range m.Readings[1:] {
		lo = decimal.Min(lo, r.Value)
		hi = decimal.Max(hi, r.Value)
	}
	return hi.Sub(lo)
}

// TotalEmissions is consumption × emissions factor, or zero without a factor.
func (m Meter) TotalEmissions() decimal.Decimal {
	if !m.EmissionsFactor.Valid {
		return decimal.Zero
	}
	return m.TotalConsumption().Mul(m.EmissionsFactor.Decimal)
}
