package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/project"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
)

// Entity types recorded on findings.
const (
	entityProject      = "project"
	entityEPD          = "epd"
	entityInvoice      = "invoice"
	entityElement      = "ifc_element"
	entityTransportLeg = "transport_leg"
	entityWasteStream  = "waste_stream"
)

// EvalContext is the per-evaluation state handed to every check. One is built
// for each Evaluate call and shared read-only by that call's checks.
type EvalContext struct {
	Date    project.Date
	Project *project.Project

	now   func() time.Time
	newID func() uuid.UUID
	epds  map[uuid.UUID]*project.EPD
}

// NewEvalContext builds a context for evaluating p on date. A nil clock or id
// source falls back to time.Now and uuid.New.
func NewEvalContext(p *project.Project, date project.Date, now func() time.Time, newID func() uuid.UUID) *EvalContext {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.New
	}
	return &EvalContext{
		Date:    date,
		Project: p,
		now:     now,
		newID:   newID,
		epds:    p.EPDByID(),
	}
}

// EPD resolves an EPD reference.
func (ec *EvalContext) EPD(id uuid.UUID) (*project.EPD, bool) {
	e, ok := ec.epds[id]
	return e, ok
}

// Finding starts a finding for rule with a fresh identity, the current time
// and the rule's remediation template.
func (ec *EvalContext) Finding(rule rules.Rule) *findings.Builder {
	return findings.NewBuilder(rule.ID, rule.Name).
		ID(ec.newID()).
		At(ec.now().UTC()).
		Remediation(rule.Remediation.Remediation())
}

// outcome joins a description head with its issues, or with okText when there
// are none.
func outcome(head string, issues []string, okText string) string {
	if len(issues) > 0 {
		return head + ": " + strings.Join(issues, "; ")
	}
	return head + ": " + okText
}
