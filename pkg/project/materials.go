package project

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/units"
)

// EPDType is the EPD classification.
type EPDType string

const (
	EPDProductSpecific EPDType = "product-specific"
	EPDIndustryAverage EPDType = "industry-average"
	EPDGeneric         EPDType = "generic"
)

// LCAStages is the life-cycle breakdown of an EPD, in kg CO2-e per declared unit.
// A1-A3, A4 and A5 are mandatory; B, C and D are optional.
type LCAStages struct {
	A1A3 decimal.NullDecimal `json:"a1_a3"`
	A4   decimal.NullDecimal `json:"a4"`
	A5   decimal.NullDecimal `json:"a5"`
	B1B7 decimal.NullDecimal `json:"b1_b7"`
	C1C4 decimal.NullDecimal `json:"c1_c4"`
	D    decimal.NullDecimal `json:"d"`
}

// MissingMandatory lists the mandatory stages that are not declared.
func (s LCAStages) MissingMandatory() []string {
	var missing []string
	if !s.A1A3.Valid {
		missing = append(missing, "A1-A3")
	}
	if !s.A4.Valid {
		missing = append(missing, "A4")
	}
	if !s.A5.Valid {
		missing = append(missing, "A5")
	}
	return missing
}

// Total is the embodied carbon over A1-A5 plus C1-C4 and D when declared.
// The use stage (B) is operational and excluded.
func (s LCAStages) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range []decimal.NullDecimal{s.A1A3, s.A4, s.A5, s.C1C4, s.D} {
		if v.Valid {
			total = total.Add(v.Decimal)
		}
	}
	return total
}

// EPD is an Environmental Product Declaration.
type EPD struct {
	ID               uuid.UUID        `json:"id"`
	Number           string           `json:"epd_number"`
	ProductName      string           `json:"product_name"`
	Manufacturer     string           `json:"manufacturer"`
	DeclaredUnit     units.Unit       `json:"declared_unit"`
	GWPTotal         decimal.Decimal  `json:"gwp_total"`
	Stages           LCAStages        `json:"lca_stages"`
	ValidFrom        Date             `json:"valid_from"`
	ValidUntil       Date             `json:"valid_until"`
	Verified         bool             `json:"is_verified"`
	VerificationBody string           `json:"verification_body,omitempty"`
	Type             EPDType          `json:"epd_type"`
	Category         MaterialCategory `json:"category"`
	URL              string           `json:"epd_url,omitempty"`
	Source           string           `json:"source"`
	Evidence         EvidenceList     `json:"evidence"`
	CreatedAt        *time.Time       `json:"created_at,omitempty"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
}

// DefaultEPDSource is the registry assumed when an EPD does not name one.
const DefaultEPDSource = "EPD Australasia"

// SourceOrDefault returns the EPD's registry, or DefaultEPDSource when unset.
func (e EPD) SourceOrDefault() string {
	if e.Source == "" {
		return DefaultEPDSource
	}
	return e.Source
}

// IsValidOn reports whether d falls inside the validity interval, inclusive.
func (e EPD) IsValidOn(d Date) bool {
	return d.Within(e.ValidFrom, e.ValidUntil)
}

// Invoice is a supplier invoice exported from an ERP.
type Invoice struct {
	ID               uuid.UUID       `json:"id"`
	Number           string          `json:"invoice_number"`
	PurchaseOrder    string          `json:"purchase_order,omitempty"`
	SupplierName     string          `json:"supplier_name"`
	SupplierABN      string          `json:"supplier_abn,omitempty"`
	BuyerName        string          `json:"buyer_name"`
	BuyerABN         string          `json:"buyer_abn,omitempty"`
	Date             Date            `json:"invoice_date"`
	DeliveryDate     *Date           `json:"delivery_date,omitempty"`
	PaymentDate      *Date           `json:"payment_date,omitempty"`
	LineItems        []LineItem      `json:"line_items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Tax              decimal.Decimal `json:"tax"`
	Total            decimal.Decimal `json:"total"`
	Currency         string          `json:"currency,omitempty"`
	DeliveryLocation *Location       `json:"delivery_location,omitempty"`
	Evidence         EvidenceList    `json:"evidence"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
}

// LineItem is one priced line of an invoice.
type LineItem struct {
	ID               uuid.UUID           `json:"id"`
	LineNumber       int                 `json:"line_number"`
	ProductCode      string              `json:"product_code,omitempty"`
	ProductName      string              `json:"product_name"`
	Description      string              `json:"description,omitempty"`
	Quantity         decimal.Decimal     `json:"quantity"`
	Unit             units.Unit          `json:"unit"`
	UnitPrice        decimal.Decimal     `json:"unit_price"`
	TotalPrice       decimal.Decimal     `json:"total_price"`
	Currency         string              `json:"currency,omitempty"`
	MaterialCategory MaterialCategory    `json:"material_category,omitempty"`
	EPDID            uuid.NullUUID       `json:"epd_id"`
	EmissionsFactor  decimal.NullDecimal `json:"emissions_factor"`
	Metadata         map[string]any      `json:"metadata,omitempty"`
}

// HasCarbonLink reports whether the line can be tied to a carbon figure:
// an EPD reference, an explicit emissions factor, or one carried in metadata.
func (li LineItem) HasCarbonLink() bool {
	if li.EPDID.Valid || li.EmissionsFactor.Valid {
		return true
	}
	v, ok := li.Metadata["emissions_factor"]
	return ok && v != nil
}

// BIMModel is an imported building-information model.
type BIMModel struct {
	ID          uuid.UUID      `json:"id"`
	ProjectName string         `json:"project_name"`
	IFCSchema   string         `json:"ifc_schema,omitempty"`
	Software    string         `json:"software,omitempty"`
	Author      string         `json:"author,omitempty"`
	CreatedDate *time.Time     `json:"created_date,omitempty"`
	Elements    []Element      `json:"elements"`
	Location    *Location      `json:"location,omitempty"`
	Evidence    EvidenceList   `json:"evidence"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Element is one building element taken from a model.
type Element struct {
	ID               uuid.UUID           `json:"id"`
	GUID             string              `json:"ifc_guid"`
	IFCType          string              `json:"ifc_type"`
	Name             string              `json:"name,omitempty"`
	Quantity         decimal.Decimal     `json:"quantity"`
	Unit             units.Unit          `json:"unit"`
	Volume           decimal.NullDecimal `json:"volume"`
	Area             decimal.NullDecimal `json:"area"`
	Length           decimal.NullDecimal `json:"length"`
	MaterialName     string              `json:"material_name"`
	MaterialCategory MaterialCategory    `json:"material_category"`
	Storey           string              `json:"storey,omitempty"`
	Zone             string              `json:"zone,omitempty"`
	Properties       map[string]any      `json:"properties,omitempty"`
	Evidence         EvidenceList        `json:"evidence"`
	Metadata         map[string]any      `json:"metadata,omitempty"`
}

// Ref is the element's stable model identifier: its IFC GlobalId, or the
// record id when the model did not carry one.
func (e Element) Ref() string {
	if e.GUID != "" {
		return e.GUID
	}
	return e.ID.String()
}

// Label names the element for humans: its name, else its IFC type.
func (e Element) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.IFCType
}
