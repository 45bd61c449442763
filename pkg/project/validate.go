package project

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the record invariants the schema cannot express:
// end date not before start date, well-formed EPD validity intervals, and
// declared mandatory LCA stages. All violations are reported together.
func (p *Project) Validate() error {
	var problems []string

	if p.EndDate != nil && !p.EndDate.IsZero() && p.EndDate.Before(p.StartDate) {
		problems = append(problems, fmt.Sprintf("end_date %s precedes start_date %s", p.EndDate, p.StartDate))
	}
	for i, e := range p.EPDs {
		if e.ValidUntil.Before(e.ValidFrom) {
			problems = append(problems, fmt.Sprintf("epds[%d] %q: valid_until %s precedes valid_from %s",
				i, e.Number, e.ValidUntil, e.ValidFrom))
		}
		if missing := e.Stages.MissingMandatory(); len(missing) > 0 {
			problems = append(problems, fmt.Sprintf("epds[%d] %q: missing mandatory stages %s",
				i, e.Number, strings.Join(missing, ", ")))
		}
	}
	for i, m := range p.Meters {
		if !m.EndDate.IsZero() && m.EndDate.Before(m.StartDate) {
			problems = append(problems, fmt.Sprintf("meters[%d] %q: end_date precedes start_date", i, m.MeterID))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}

// Readiness is the outcome of a pre-evaluation data completeness check.
// Errors mean the evaluation is not meaningful; warnings flag partial data.
type Readiness struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Ready reports whether no blocking errors were found.
func (r Readiness) Ready() bool { return len(r.Errors) == 0 }

// Err folds the blocking errors into a single error, or nil.
func (r Readiness) Err() error {
	if r.Ready() {
		return nil
	}
	return errors.New("project not ready: " + strings.Join(r.Errors, "; "))
}

// CheckReadiness reports which data sources an evaluation would be missing.
func CheckReadiness(p *Project) Readiness {
	var r Readiness
	if len(p.EPDs) == 0 {
		r.Errors = append(r.Errors, "No EPDs found")
	}
	if len(p.Invoices) == 0 {
		r.Errors = append(r.Errors, "No invoices found")
	}
	if len(p.BIMModels) == 0 {
		r.Errors = append(r.Errors, "No BIM models found")
	}
	if !p.GrossFloorArea.Valid {
		r.Warnings = append(r.Warnings, "Gross floor area not specified")
	}
	if len(p.TransportLogs) == 0 {
		r.Warnings = append(r.Warnings, "No transport logs found")
	}
	if len(p.WasteStreams) == 0 {
		r.Warnings = append(r.Warnings, "No waste streams found")
	}
	return r
}
