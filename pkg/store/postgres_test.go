package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgres(db)
	r := sampleReport(uuid.New(), generatedAt, false)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO reports (report_id, project_id, project_name, rules_version, evaluation_date, generated_at, compliant, failed_checks, digest, body) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)).
		WithArgs(r.ID.String(), r.ProjectID.String(), "Harbour Street Tower", "2.1.0", "2024-06-01",
			generatedAt, false, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Save(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgres(db)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT body FROM reports WHERE report_id = $1`)).
		WithArgs(id.String()).
		WillReturnError(sql.ErrNoRows)

	_, err = s.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListByProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgres(db)
	projectID := uuid.New()
	reportID := uuid.New()

	rows := sqlmock.NewRows([]string{"report_id", "project_id", "rules_version", "evaluation_date", "compliant", "failed_checks", "digest"}).
		AddRow(reportID.String(), projectID.String(), "2.1.0", "2024-06-01", true, 0, "sha256:abc")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT report_id, project_id, rules_version, evaluation_date, compliant, failed_checks, digest FROM reports WHERE project_id = $1 ORDER BY generated_at DESC, report_id LIMIT $2`)).
		WithArgs(projectID.String(), DefaultListLimit).
		WillReturnRows(rows)

	entries, err := s.ListByProject(context.Background(), projectID, -1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, reportID, entries[0].ReportID)
	assert.True(t, entries[0].Compliant)
	assert.Equal(t, "sha256:abc", entries[0].Digest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListBadID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"report_id", "project_id", "rules_version", "evaluation_date", "compliant", "failed_checks", "digest"}).
		AddRow("not-a-uuid", uuid.NewString(), "2.1.0", "2024-06-01", true, 0, "sha256:abc")
	mock.ExpectQuery("SELECT report_id").WillReturnRows(rows)

	_, err = NewPostgres(db).ListByProject(context.Background(), uuid.New(), 5)
	require.Error(t, err)
}
