// Package project defines the canonical construction project record the rules
// engine evaluates, together with the pure aggregate helpers that reporting
// layers read (total embodied carbon, carbon intensity, evidence walk).
//
// Records are treated as immutable once decoded. Nothing in this module
// mutates a Project after Decode returns it.
package project

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type classifies a project for threshold selection.
type Type string

const (
	TypeResidential    Type = "residential"
	TypeCommercial     Type = "commercial"
	TypeIndustrial     Type = "industrial"
	TypeInfrastructure Type = "infrastructure"
)

// MaterialCategory is the coarse material family of an EPD, line item or element.
type MaterialCategory string

const (
	CategoryConcrete   MaterialCategory = "concrete"
	CategorySteel      MaterialCategory = "steel"
	CategoryTimber     MaterialCategory = "timber"
	CategoryAluminum   MaterialCategory = "aluminum"
	CategoryGlass      MaterialCategory = "glass"
	CategoryInsulation MaterialCategory = "insulation"
	CategoryMasonry    MaterialCategory = "masonry"
	CategoryFinishes   MaterialCategory = "finishes"
	CategoryMEP        MaterialCategory = "mep"
	CategoryOther      MaterialCategory = "other"
)

// Location is a postal/geographic location.
type Location struct {
	Address   string   `json:"address,omitempty"`
	City      string   `json:"city,omitempty"`
	State     string   `json:"state,omitempty"`
	Country   string   `json:"country,omitempty"`
	Postcode  string   `json:"postcode,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// DefaultCountry is assumed when a location omits its country.
const DefaultCountry = "Australia"

// CountryOrDefault returns the location's country, or DefaultCountry when unset.
func (l Location) CountryOrDefault() string {
	if l.Country == "" {
		return DefaultCountry
	}
	return l.Country
}

// CityOr returns the city, or fallback when unset.
func (l Location) CityOr(fallback string) string {
	if l.City == "" {
		return fallback
	}
	return l.City
}

// Project is the complete canonical record for one construction project.
type Project struct {
	ID             uuid.UUID           `json:"id"`
	Name           string              `json:"project_name"`
	Type           Type                `json:"project_type"`
	StartDate      Date                `json:"start_date"`
	EndDate        *Date               `json:"end_date,omitempty"`
	Location       Location            `json:"location"`
	GrossFloorArea decimal.NullDecimal `json:"gross_floor_area_m2"`
	BuildingHeight decimal.NullDecimal `json:"building_height_m"`
	Storeys        *int                `json:"number_of_storeys,omitempty"`

	BIMModels     []BIMModel     `json:"bim_models"`
	EPDs          []EPD          `json:"epds"`
	Invoices      []Invoice      `json:"invoices"`
	Meters        []Meter        `json:"meters"`
	TransportLogs []TransportLog `json:"transport_logs"`
	WasteStreams  []WasteStream  `json:"waste_streams"`

	Evidence EvidenceList `json:"evidence_documents"`

	CreatedAt time.Time      `json:"created_at,omitempty"`
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EPDByID indexes the project's EPDs by identifier.
func (p *Project) EPDByID() map[uuid.UUID]*EPD {
	out := make(map[uuid.UUID]*EPD, len(p.EPDs))
	for i := range p.EPDs {
		out[p.EPDs[i].ID] = &p.EPDs[i]
	}
	return out
}

// EndOr returns the project end date, or fallback for an open-ended project.
func (p *Project) EndOr(fallback Date) Date {
	if p.EndDate == nil || p.EndDate.IsZero() {
		return fallback
	}
	return *p.EndDate
}

// Elements returns every BIM element across all models, in model order.
func (p *Project) Elements() []Element {
	var out []Element
	for _, m := range p.BIMModels {
		out = append(out, m.Elements...)
	}
	return out
}

