// Package store persists evaluated compliance reports.
//
// Reports are immutable: Save inserts and never updates. The full report is
// kept as JSON alongside a few indexed columns for listing.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
)

// ErrNotFound is returned when no report has the requested id.
var ErrNotFound = errors.New("store: report not found")

// ReportStore persists reports.
type ReportStore interface {
	Save(ctx context.Context, r *findings.Report) error
	Get(ctx context.Context, id uuid.UUID) (*findings.Report, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]Entry, error)
	Close() error
}

// Entry is a report listing row.
type Entry struct {
	ReportID       uuid.UUID `json:"report_id"`
	ProjectID      uuid.UUID `json:"project_id"`
	RulesVersion   string    `json:"rules_version"`
	EvaluationDate string    `json:"evaluation_date"`
	Compliant      bool      `json:"compliant"`
	FailedChecks   int       `json:"failed_checks"`
	Digest         string    `json:"digest"`
}

// DefaultListLimit applies when ListByProject is given a non-positive limit.
const DefaultListLimit = 50

type dialect struct {
	name string
	// bind returns the placeholder for the n-th (1-based) argument.
	bind func(n int) string
	// timeArg converts a timestamp into the column's representation.
	timeArg func(t time.Time) any
}

var (
	postgresDialect = dialect{
		name:    "postgres",
		bind:    func(n int) string { return "$" + strconv.Itoa(n) },
		timeArg: func(t time.Time) any { return t.UTC() },
	}
	sqliteDialect = dialect{
		name: "sqlite",
		bind: func(int) string { return "?" },
		// Fixed width keeps lexical order equal to time order.
		timeArg: func(t time.Time) any { return t.UTC().Format("2006-01-02T15:04:05.000000000Z") },
	}
)

// SQLStore is a ReportStore over database/sql.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

var _ ReportStore = (*SQLStore)(nil)

func (s *SQLStore) q(format string, n int) string {
	args := make([]any, n)
	for i := range args {
		args[i] = s.d.bind(i + 1)
	}
	return fmt.Sprintf(format, args...)
}

// Save inserts r. The summary is recomputed from the findings first.
func (s *SQLStore) Save(ctx context.Context, r *findings.Report) error {
	summary := r.Summarize()
	digest, err := r.Digest()
	if err != nil {
		return fmt.Errorf("store: digest report: %w", err)
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: encode report: %w", err)
	}

	query := s.q(`INSERT INTO reports (report_id, project_id, project_name, rules_version, evaluation_date, generated_at, compliant, failed_checks, digest, body) VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`, 10)
	_, err = s.db.ExecContext(ctx, query,
		r.ID.String(), r.ProjectID.String(), r.ProjectName, r.RulesVersion, r.EvaluationDate.String(),
		s.d.timeArg(r.GeneratedAt), summary.Compliant, summary.Failed, digest, string(body),
	)
	if err != nil {
		return fmt.Errorf("store: insert report %s: %w", r.ID, err)
	}
	return nil
}

// Get loads the report with id.
func (s *SQLStore) Get(ctx context.Context, id uuid.UUID) (*findings.Report, error) {
	var body string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT body FROM reports WHERE report_id = %s`, 1), id.String()).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get report %s: %w", id, err)
	}
	var r findings.Report
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("store: decode report %s: %w", id, err)
	}
	return &r, nil
}

// ListByProject returns the project's reports, newest first.
func (s *SQLStore) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := s.q(`SELECT report_id, project_id, rules_version, evaluation_date, compliant, failed_checks, digest FROM reports WHERE project_id = %s ORDER BY generated_at DESC, report_id LIMIT %s`, 2)
	rows, err := s.db.QueryContext(ctx, query, projectID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("store: list reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []Entry{}
	for rows.Next() {
		var (
			e                   Entry
			reportID, projectID string
		)
		if err := rows.Scan(&reportID, &projectID, &e.RulesVersion, &e.EvaluationDate, &e.Compliant, &e.FailedChecks, &e.Digest); err != nil {
			return nil, fmt.Errorf("store: scan report: %w", err)
		}
		if e.ReportID, err = uuid.Parse(reportID); err != nil {
			return nil, fmt.Errorf("store: report id %q: %w", reportID, err)
		}
		if e.ProjectID, err = uuid.Parse(projectID); err != nil {
			return nil, fmt.Errorf("store: project id %q: %w", projectID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list reports: %w", err)
	}
	return entries, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error { return s.db.Close() }
