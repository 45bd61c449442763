package project

import (
	"time"

	"github.com/google/uuid"
)

// EvidenceType tags what an evidence document proves.
type EvidenceType string

const (
	EvidenceEPD           EvidenceType = "epd"
	EvidenceInvoice       EvidenceType = "invoice"
	EvidenceMeterReading  EvidenceType = "meter_reading"
	EvidenceTransportLog  EvidenceType = "transport_log"
	EvidenceWasteReceipt  EvidenceType = "waste_receipt"
	EvidenceBIMModel      EvidenceType = "bim_model"
	EvidenceIFCFile       EvidenceType = "ifc_file"
	EvidenceCertification EvidenceType = "certification"
	EvidenceTestReport    EvidenceType = "test_report"
	EvidencePhoto         EvidenceType = "photo"
	EvidenceOther         EvidenceType = "other"
)

// Evidence is a reference to a source document. It is owned by the entity
// that lists it.
type Evidence struct {
	ID        uuid.UUID      `json:"id"`
	Type      EvidenceType   `json:"type"`
	URI       string         `json:"uri"`
	Filename  string         `json:"filename,omitempty"`
	Hash      string         `json:"hash,omitempty"`
	CreatedAt *time.Time     `json:"created_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Label names the document for humans: its filename, else its URI.
func (e Evidence) Label() string {
	if e.Filename != "" {
		return e.Filename
	}
	return e.URI
}

// Hashed reports whether a content hash is recorded.
func (e Evidence) Hashed() bool { return e.Hash != "" }

// EvidenceList is the evidence attached to one entity.
type EvidenceList []Evidence

// URIs returns the URI of every document, in order.
func (l EvidenceList) URIs() []string {
	if len(l) == 0 {
		return nil
	}
	out := make([]string, 0, len(l))
	for _, e := range l {
		out = append(out, e.URI)
	}
	return out
}

// Has reports whether any document has type t.
func (l EvidenceList) Has(t EvidenceType) bool {
	for _, e := range l {
		if e.Type == t {
			return true
		}
	}
	return false
}

// Unhashed returns the documents without a content hash.
func (l EvidenceList) Unhashed() []Evidence {
	var out []Evidence
	for _, e := range l {
		if !e.Hashed() {
			out = append(out, e)
		}
	}
	return out
}

// OwnerKind names the entity type that owns an evidence document.
type OwnerKind string

const (
	OwnerProject   OwnerKind = "project"
	OwnerEPD       OwnerKind = "epd"
	OwnerInvoice   OwnerKind = "invoice"
	OwnerBIMModel  OwnerKind = "bim_model"
	OwnerElement   OwnerKind = "ifc_element"
	OwnerMeter     OwnerKind = "meter"
	OwnerTransport OwnerKind = "transport_log"
	OwnerWaste     OwnerKind = "waste_stream"
)

// OwnedEvidence is an evidence document together with the entity holding it.
type OwnedEvidence struct {
	OwnerKind OwnerKind `json:"owner_kind"`
	OwnerID   string    `json:"owner_id"`
	Evidence  Evidence  `json:"evidence"`
}

// AllEvidence walks every evidence document reachable from the project.
// Order is deterministic: project documents first, then EPDs, invoices,
// BIM models (model, then its elements), meters, transport logs, waste streams.
func (p *Project) AllEvidence() []OwnedEvidence {
	var out []OwnedEvidence
	add := func(kind OwnerKind, id string, list []Evidence) {
		for _, e := range list {
			out = append(out, OwnedEvidence{OwnerKind: kind, OwnerID: id, Evidence: e})
		}
	}

	add(OwnerProject, p.ID.String(), p.Evidence)
	for _, e := range p.EPDs {
		add(OwnerEPD, e.ID.String(), e.Evidence)
	}
	for _, inv := range p.Invoices {
		add(OwnerInvoice, inv.ID.String(), inv.Evidence)
	}
	for _, m := range p.BIMModels {
		add(OwnerBIMModel, m.ID.String(), m.Evidence)
		for _, el := range m.Elements {
			add(OwnerElement, el.Ref(), el.Evidence)
		}
	}
	for _, m := range p.Meters {
		add(OwnerMeter, m.ID.String(), m.Evidence)
	}
	for _, t := range p.TransportLogs {
		add(OwnerTransport, t.ID.String(), t.Evidence)
	}
	for _, w := range p.WasteStreams {
		add(OwnerWaste, w.ID.String(), w.Evidence)
	}
	return out
}
