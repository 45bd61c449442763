package project

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nullDec(s string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(s)) }

func TestLoadFile_Fixture(t *testing.T) {
	p, err := LoadFile("testdata/project.json")
	require.NoError(t, err)

	assert.Equal(t, "Parramatta Commercial Tower", p.Name)
	assert.Equal(t, TypeCommercial, p.Type)
	assert.Equal(t, "2024-01-15", p.StartDate.String())
	require.NotNil(t, p.EndDate)
	assert.Equal(t, "2025-06-30", p.EndDate.String())
	require.Len(t, p.EPDs, 1)
	assert.True(t, p.EPDs[0].Stages.Total().Equal(dec("300")))
	require.Len(t, p.Invoices, 1)
	require.True(t, p.Invoices[0].LineItems[0].EPDID.Valid)
	assert.Equal(t, p.EPDs[0].ID, p.Invoices[0].LineItems[0].EPDID.UUID)
	assert.Equal(t, "2O2Fr$t4X7Zf8NOew3FLOH", p.Elements()[0].Ref())
}

func TestDecode_SchemaRejectsUnknownProjectType(t *testing.T) {
	doc := `{"project_name":"x","project_type":"spaceport","start_date":"2024-01-01"}`
	_, err := DecodeBytes([]byte(doc))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestDecode_SchemaRequiresMandatoryStages(t *testing.T) {
	doc := `{"project_name":"x","project_type":"commercial","start_date":"2024-01-01",
	  "epds":[{"epd_number":"E1","product_name":"p","valid_from":"2024-01-01","valid_until":"2025-01-01",
	  "epd_type":"generic","lca_stages":{"a1_a3":1,"a4":1}}]}`
	_, err := DecodeBytes([]byte(doc))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := Decode(strings.NewReader("{"))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestValidate_EndBeforeStart(t *testing.T) {
	end := MustDate("2023-12-31")
	p := &Project{Name: "x", Type: TypeCommercial, StartDate: MustDate("2024-01-01"), EndDate: &end}
	err := p.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "precedes start_date")
}

func TestValidate_EPDInterval(t *testing.T) {
	p := &Project{StartDate: MustDate("2024-01-01"), EPDs: []EPD{{
		Number:     "E-1",
		ValidFrom:  MustDate("2025-01-01"),
		ValidUntil: MustDate("2024-01-01"),
		Stages:     LCAStages{A1A3: nullDec("1"), A4: nullDec("1"), A5: nullDec("1")},
	}}}
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid_until")
}

func TestAggregates(t *testing.T) {
	p, err := LoadFile("testdata/project.json")
	require.NoError(t, err)

	// 300 (EPD) + 24 t * 18 km * 0.1 (transport)
	assert.Equal(t, "343.2", p.TotalEmbodiedCarbon().String())

	intensity, ok := p.CarbonIntensity()
	require.True(t, ok)
	assert.Equal(t, "0.3432", intensity.String())

	p.GrossFloorArea = decimal.NullDecimal{}
	_, ok = p.CarbonIntensity()
	assert.False(t, ok)

	p.GrossFloorArea = nullDec("0")
	_, ok = p.CarbonIntensity()
	assert.False(t, ok, "zero floor area leaves intensity undefined")
}

func TestAggregates_EmptyProject(t *testing.T) {
	p := &Project{}
	assert.True(t, p.TotalEmbodiedCarbon().IsZero())
	assert.True(t, p.OperationalEmissions().IsZero())
	assert.Empty(t, p.AllEvidence())
}

func TestLCAStages_TotalIncludesOptionalStages(t *testing.T) {
	s := LCAStages{
		A1A3: nullDec("100"), A4: nullDec("10"), A5: nullDec("5"),
		B1B7: nullDec("999"), C1C4: nullDec("7"), D: nullDec("-2"),
	}
	assert.Equal(t, "120", s.Total().String())
	assert.Empty(t, s.MissingMandatory())
	assert.Equal(t, []string{"A4", "A5"}, LCAStages{A1A3: nullDec("1")}.MissingMandatory())
}

func TestLeg_Defaults(t *testing.T) {
	leg := Leg{
		Origin:        Location{City: "Sydney"},
		Destination:   Location{City: "Auckland", Country: "New Zealand"},
		DistanceKM:    dec("2150"),
		CargoWeightKG: dec("1000"),
	}
	assert.True(t, leg.Load().Equal(decimal.NewFromInt(1)))
	assert.True(t, leg.International())
	assert.True(t, leg.Emissions().IsZero())

	leg.EmissionsFactor = nullDec("0.5")
	assert.Equal(t, "1075", leg.Emissions().String())
}

func TestMeter_Consumption(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := Meter{
		Readings: []Reading{
			{Timestamp: ts, Value: dec("120")},
			{Timestamp: ts.Add(time.Hour), Value: dec("100")},
			{Timestamp: ts.Add(2 * time.Hour), Value: dec("180.5")},
		},
		EmissionsFactor: nullDec("0.7"),
	}
	assert.Equal(t, "80.5", m.TotalConsumption().String())
	assert.Equal(t, "56.35", m.TotalEmissions().String())

	m.Readings = m.Readings[:1]
	assert.True(t, m.TotalConsumption().IsZero())
}

func TestAllEvidence_Order(t *testing.T) {
	epdID := uuid.MustParse("5d1c3f9e-7a2b-4b8e-8f60-3c2e1d0a9b11")
	p := &Project{
		Evidence: EvidenceList{{URI: "p1"}},
		EPDs:     []EPD{{ID: epdID, Evidence: EvidenceList{{URI: "e1"}, {URI: "e2"}}}},
		BIMModels: []BIMModel{{Elements: []Element{{GUID: "G1", Evidence: EvidenceList{{URI: "el1"}}}}}},
		WasteStreams: []WasteStream{{Evidence: EvidenceList{{URI: "w1"}}}},
	}
	var uris []string
	for _, oe := range p.AllEvidence() {
		uris = append(uris, oe.Evidence.URI)
	}
	assert.Equal(t, []string{"p1", "e1", "e2", "el1", "w1"}, uris)
	assert.Equal(t, OwnerEPD, p.AllEvidence()[1].OwnerKind)
	assert.Equal(t, epdID.String(), p.AllEvidence()[1].OwnerID)
	assert.Equal(t, "G1", p.AllEvidence()[3].OwnerID)
}

func TestEvidenceList_Helpers(t *testing.T) {
	l := EvidenceList{
		{Type: EvidenceWasteReceipt, URI: "a", Hash: "sha256:1"},
		{Type: EvidencePhoto, URI: "b", Filename: "b.jpg"},
	}
	assert.True(t, l.Has(EvidenceWasteReceipt))
	assert.False(t, l.Has(EvidenceCertification))
	assert.Equal(t, []string{"a", "b"}, l.URIs())
	require.Len(t, l.Unhashed(), 1)
	assert.Equal(t, "b.jpg", l.Unhashed()[0].Label())
	assert.Nil(t, EvidenceList(nil).URIs())
}

func TestCheckReadiness(t *testing.T) {
	r := CheckReadiness(&Project{})
	assert.False(t, r.Ready())
	assert.Len(t, r.Errors, 3)
	assert.Len(t, r.Warnings, 3)
	assert.Error(t, r.Err())

	p, err := LoadFile("testdata/project.json")
	require.NoError(t, err)
	r = CheckReadiness(p)
	assert.True(t, r.Ready())
	assert.NoError(t, r.Err())
	assert.Empty(t, r.Warnings)
}

func TestDate_JSON(t *testing.T) {
	var v struct {
		A Date  `json:"a"`
		B *Date `json:"b"`
		C Date  `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"2024-02-29","b":null,"c":"2024-03-01T10:00:00Z"}`), &v))
	assert.Equal(t, "2024-02-29", v.A.String())
	assert.Nil(t, v.B)
	assert.Equal(t, "2024-03-01", v.C.String())

	out, err := json.Marshal(v.A)
	require.NoError(t, err)
	assert.Equal(t, `"2024-02-29"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"a":"29/02/2024"}`), &v))
}

func TestDate_Arithmetic(t *testing.T) {
	d := MustDate("2024-01-31")
	assert.Equal(t, "2024-03-01", d.AddDays(30).String())
	assert.Equal(t, "2024-01-01", d.AddDays(-30).String())
	assert.True(t, d.Within(MustDate("2024-01-31"), MustDate("2024-01-31")))
	assert.False(t, d.Within(MustDate("2024-02-01"), MustDate("2024-03-01")))
	assert.Equal(t, "", Date{}.String())
}
