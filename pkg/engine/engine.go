// Package engine evaluates a project against a rule catalogue.
//
// Each enabled rule is bound to a Check when the engine is built; condition
// payloads are decoded and validated at that point, so a bad catalogue fails
// at startup rather than mid-evaluation. Evaluation itself never fails on
// project data: every data problem becomes a finding.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/project"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
)

// Tracker wraps an operation in a span and RED metrics.
// *observability.Provider satisfies it.
type Tracker interface {
	TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error))
}

type boundCheck struct {
	rule          rules.Rule
	check         Check
	unimplemented bool
}

// Engine evaluates projects against one catalogue. It is immutable after New
// and safe for concurrent use.
type Engine struct {
	catalogue   *rules.Catalogue
	registry    *Registry
	bound       []boundCheck
	logger      *slog.Logger
	tracker     Tracker
	parallelism int
	now         func() time.Time
	newID       func() uuid.UUID
	location    *time.Location
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry replaces the default check registry.
func WithRegistry(r *Registry) Option { return func(e *Engine) { e.registry = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithTracker instruments evaluations.
func WithTracker(t Tracker) Option { return func(e *Engine) { e.tracker = t } }

// WithParallelism runs up to n checks concurrently. Findings keep catalogue
// order regardless of n.
func WithParallelism(n int) Option { return func(e *Engine) { e.parallelism = n } }

// WithClock sets the time source for finding and report timestamps.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithIDSource sets the generator for finding and report identities. It must
// be safe for concurrent use when parallelism is above one.
func WithIDSource(newID func() uuid.UUID) Option { return func(e *Engine) { e.newID = newID } }

// New binds every enabled rule in cat to its check. Unregistered rules are
// bound to a check that reports them as unimplemented.
func New(cat *rules.Catalogue, opts ...Option) (*Engine, error) {
	if cat == nil {
		return nil, errors.New("engine: nil catalogue")
	}
	e := &Engine{
		catalogue:   cat,
		parallelism: 1,
		now:         time.Now,
		newID:       uuid.New,
		location:    time.UTC,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = DefaultRegistry()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "engine")
	if e.parallelism < 1 {
		e.parallelism = 1
	}

	if tz := cat.Settings.Timezone; tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, &rules.ConfigError{Source: cat.Source(), Msg: fmt.Sprintf("global_settings.timezone %q", tz), Err: err}
		}
		e.location = loc
	}

	for _, r := range cat.Enabled() {
		factory, ok := e.registry.Lookup(r.ID)
		if !ok {
			e.logger.Warn("no check registered for rule", "rule_id", r.ID)
			e.bound = append(e.bound, boundCheck{rule: r, check: unimplemented{rule: r}, unimplemented: true})
			continue
		}
		chk, err := factory(r, cat.Settings)
		if err != nil {
			var ce *rules.ConfigError
			if errors.As(err, &ce) {
				if ce.Source == "" {
					ce.Source = cat.Source()
				}
				return nil, ce
			}
			return nil, &rules.ConfigError{Source: cat.Source(), Line: r.Line(), RuleID: r.ID, Msg: "bind check", Err: err}
		}
		e.bound = append(e.bound, boundCheck{rule: r, check: chk})
	}
	return e, nil
}

// Catalogue returns the catalogue the engine was built from.
func (e *Engine) Catalogue() *rules.Catalogue { return e.catalogue }

// Rules returns the enabled rules in evaluation order.
func (e *Engine) Rules() []rules.Rule {
	out := make([]rules.Rule, len(e.bound))
	for i, b := range e.bound {
		out[i] = b.rule
	}
	return out
}

// Unimplemented lists enabled rule ids that have no registered check.
func (e *Engine) Unimplemented() []string {
	var ids []string
	for _, b := range e.bound {
		if b.unimplemented {
			ids = append(ids, b.rule.ID)
		}
	}
	return ids
}

// Today is the default evaluation date: the current calendar date in the
// catalogue's timezone.
func (e *Engine) Today() project.Date {
	return project.DateOf(e.now().In(e.location))
}

// InputDigest identifies an evaluation of p on date by its inputs.
func (e *Engine) InputDigest(p *project.Project, date project.Date) (string, error) {
	return findings.InputDigest(p, e.catalogue.Digest(), date)
}

type evalOptions struct {
	date project.Date
}

// EvalOption configures a single evaluation.
type EvalOption func(*evalOptions)

// OnDate evaluates as of d instead of today.
func OnDate(d project.Date) EvalOption {
	return func(o *evalOptions) { o.date = d }
}

// Evaluate runs every bound check against p and returns the summarized report.
// The only errors are a nil project and a cancelled context.
func (e *Engine) Evaluate(ctx context.Context, p *project.Project, opts ...EvalOption) (report *findings.Report, err error) {
	if p == nil {
		return nil, errors.New("engine: nil project")
	}
	var o evalOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.date.IsZero() {
		o.date = e.Today()
	}

	if e.tracker != nil {
		var done func(error)
		ctx, done = e.tracker.TrackOperation(ctx, "engine.evaluate",
			attribute.String("project.id", p.ID.String()),
			attribute.String("rules.version", e.catalogue.Version),
		)
		defer func() { done(err) }()
	}

	start := time.Now()
	ec := NewEvalContext(p, o.date, e.now, e.newID)
	facts := ProjectFacts(p, o.date)

	results := make([][]findings.Finding, len(e.bound))
	run := func(i int) {
		b := e.bound[i]
		results[i] = e.runOne(ctx, ec, facts, b)
	}

	if e.parallelism > 1 && len(e.bound) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.parallelism)
		for i := range e.bound {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				run(i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("engine: evaluation cancelled: %w", err)
		}
	} else {
		for i := range e.bound {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("engine: evaluation cancelled: %w", err)
			}
			run(i)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("engine: evaluation cancelled: %w", err)
	}

	report = findings.NewReport(e.newID(), p, e.catalogue.Version, o.date, e.now().UTC())
	for _, fs := range results {
		report.Add(fs...)
	}
	report.Aggregates = findings.AggregatesOf(p)
	summary := report.Summarize()

	e.logger.InfoContext(ctx, "project evaluated",
		"project_id", p.ID,
		"rules_version", e.catalogue.Version,
		"evaluation_date", o.date.String(),
		"rules", len(e.bound),
		"findings", summary.Total,
		"failed", summary.Failed,
		"compliant", summary.Compliant,
		"duration", time.Since(start),
	)
	return report, nil
}

func (e *Engine) runOne(ctx context.Context, ec *EvalContext, facts rules.Facts, b boundCheck) []findings.Finding {
	applies, err := b.rule.Applies(facts)
	if err != nil {
		e.logger.WarnContext(ctx, "applies_when could not be evaluated", "rule_id", b.rule.ID, "error", err)
		return []findings.Finding{ec.Finding(b.rule).
			Outcome(false, findings.SeverityWarning).
			Describe(fmt.Sprintf("Rule '%s' applicability could not be determined: %v", b.rule.ID, err)).
			Entity(entityProject, ec.Project.ID.String()).
			Meta("applies_when", b.rule.AppliesWhen).
			Build()}
	}
	if !applies {
		e.logger.DebugContext(ctx, "rule not applicable", "rule_id", b.rule.ID)
		return []findings.Finding{ec.Finding(b.rule).
			Outcome(true, findings.SeverityInfo).
			Describe(fmt.Sprintf("Rule '%s' not applicable", b.rule.ID)).
			Entity(entityProject, ec.Project.ID.String()).
			Meta("applies_when", b.rule.AppliesWhen).
			Build()}
	}

	fs := b.check.Evaluate(ec)
	e.logger.DebugContext(ctx, "rule evaluated", "rule_id", b.rule.ID, "findings", len(fs))
	return fs
}

// ProjectFacts exposes the project attributes applies_when expressions read.
func ProjectFacts(p *project.Project, date project.Date) rules.Facts {
	gfa := 0.0
	if p.GrossFloorArea.Valid {
		gfa = p.GrossFloorArea.Decimal.InexactFloat64()
	}
	return rules.Facts{
		EvaluationDate: date.String(),
		Project: map[string]any{
			"id":                  p.ID.String(),
			"name":                p.Name,
			"type":                string(p.Type),
			"country":             p.Location.CountryOrDefault(),
			"state":               p.Location.State,
			"gross_floor_area_m2": gfa,
			"has_floor_area":      p.GrossFloorArea.Valid,
			"epd_count":           int64(len(p.EPDs)),
			"invoice_count":       int64(len(p.Invoices)),
			"element_count":       int64(len(p.Elements())),
			"transport_log_count": int64(len(p.TransportLogs)),
			"waste_stream_count":  int64(len(p.WasteStreams)),
			"meter_count":         int64(len(p.Meters)),
			"start_date":          p.StartDate.String(),
			"end_date":            p.EndOr(project.Date{}).String(),
		},
	}
}
