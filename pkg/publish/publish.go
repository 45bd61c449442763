// Package publish announces completed evaluations to downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
)

// EventReportCompleted is the Type of a ReportCompleted event.
const EventReportCompleted = "compliance.report.completed"

// ReportCompleted is published once per stored evaluation.
type ReportCompleted struct {
	Type           string           `json:"type"`
	ReportID       string           `json:"report_id"`
	ProjectID      string           `json:"project_id"`
	ProjectName    string           `json:"project_name"`
	RulesVersion   string           `json:"rules_version"`
	EvaluationDate string           `json:"evaluation_date"`
	Summary        findings.Summary `json:"summary"`
	Digest         string           `json:"digest"`
	ArchiveAddress string           `json:"archive_address,omitempty"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

// NewReportCompleted builds the event for r.
func NewReportCompleted(r *findings.Report, archiveAddress string, at time.Time) (*ReportCompleted, error) {
	digest, err := r.Digest()
	if err != nil {
		return nil, err
	}
	return &ReportCompleted{
		Type:           EventReportCompleted,
		ReportID:       r.ID.String(),
		ProjectID:      r.ProjectID.String(),
		ProjectName:    r.ProjectName,
		RulesVersion:   r.RulesVersion,
		EvaluationDate: r.EvaluationDate.String(),
		Summary:        findings.Summarize(r.Findings),
		Digest:         digest,
		ArchiveAddress: archiveAddress,
		OccurredAt:     at.UTC(),
	}, nil
}

// Publisher announces completed reports.
type Publisher interface {
	ReportCompleted(ctx context.Context, r *findings.Report, archiveAddress string) error
	Close() error
}

// Noop discards events.
type Noop struct{}

func (Noop) ReportCompleted(context.Context, *findings.Report, string) error { return nil }
func (Noop) Close() error                                                   { return nil }

// streamPublisher is the part of jetstream.JetStream used here.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// JetStream publishes ReportCompleted events on <subject>.<project_id>.
type JetStream struct {
	js      streamPublisher
	subject string
	conn    *nats.Conn
	now     func() time.Time
}

// NewJetStream publishes through js under subject.
func NewJetStream(js streamPublisher, subject string) *JetStream {
	return &JetStream{js: js, subject: subject, now: time.Now}
}

// StreamName is the JetStream stream Connect ensures exists.
const StreamName = "COMPLIANCE_REPORTS"

// Connect dials url, ensures a stream captures subject.>, and returns a
// publisher owning the connection.
func Connect(ctx context.Context, url, subject string) (*JetStream, error) {
	conn, err := nats.Connect(url, nats.Name("carbonctl"))
	if err != nil {
		return nil, fmt.Errorf("publish: connect to NATS: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("publish: create JetStream context: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{subject + ".>"},
		Storage:  jetstream.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("publish: ensure stream %s: %w", StreamName, err)
	}
	p := NewJetStream(js, subject)
	p.conn = conn
	return p, nil
}

// Subject returns the subject events for projectID are published on.
func (p *JetStream) Subject(projectID string) string {
	return p.subject + "." + projectID
}

// ReportCompleted publishes the event, deduplicated by report id.
func (p *JetStream) ReportCompleted(ctx context.Context, r *findings.Report, archiveAddress string) error {
	event, err := NewReportCompleted(r, archiveAddress, p.now())
	if err != nil {
		return fmt.Errorf("publish: build event: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("publish: marshal event: %w", err)
	}
	subject := p.Subject(event.ProjectID)
	if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.ReportID)); err != nil {
		return fmt.Errorf("publish: %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection when Connect opened it.
func (p *JetStream) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
