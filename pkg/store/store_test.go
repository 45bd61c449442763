package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/project"
)

var generatedAt = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func sampleReport(projectID uuid.UUID, at time.Time, passed bool) *findings.Report {
	p := &project.Project{ID: projectID, Name: "Harbour Street Tower"}
	r := findings.NewReport(uuid.New(), p, "2.1.0", project.MustDate("2024-06-01"), at)
	r.Add(
		findings.NewBuilder("epd_validity", "EPD Validity").
			ID(uuid.New()).At(at).
			Outcome(true, findings.SeverityCritical).
			Describe("EPD 'Rebar' (S-P-1): Valid and verified").
			Entity("EPD", "S-P-1").
			Build(),
		findings.NewBuilder("double_counting", "Double Counting Prevention").
			ID(uuid.New()).At(at).
			Outcome(passed, findings.SeverityCritical).
			Describe("Material 'steel beam' appears in multiple sources").
			Evidence("BIM:G1", "Invoice:INV-7:2").
			Build(),
	)
	r.Summarize()
	return r
}

func openMemory(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_SaveGet(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	r := sampleReport(uuid.New(), generatedAt, false)
	require.NoError(t, s.Save(ctx, r))

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, r.ProjectName, got.ProjectName)
	assert.True(t, r.GeneratedAt.Equal(got.GeneratedAt))
	assert.Equal(t, r.Summary, got.Summary)
	require.Len(t, got.Findings, 2)
	assert.Equal(t, []string{"BIM:G1", "Invoice:INV-7:2"}, got.Findings[1].EvidenceURIs)

	want, err := r.Digest()
	require.NoError(t, err)
	have, err := got.Digest()
	require.NoError(t, err)
	assert.Equal(t, want, have)
}

func TestSQLiteStore_DuplicateRejected(t *testing.T) {
	s := openMemory(t)
	r := sampleReport(uuid.New(), generatedAt, true)
	require.NoError(t, s.Save(context.Background(), r))
	require.Error(t, s.Save(context.Background(), r))
}

func TestSQLiteStore_NotFound(t *testing.T) {
	s := openMemory(t)
	_, err := s.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListByProject(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	projectID := uuid.New()

	older := sampleReport(projectID, generatedAt, true)
	newer := sampleReport(projectID, generatedAt.Add(time.Hour), false)
	other := sampleReport(uuid.New(), generatedAt, true)
	for _, r := range []*findings.Report{older, newer, other} {
		require.NoError(t, s.Save(ctx, r))
	}

	entries, err := s.ListByProject(ctx, projectID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, newer.ID, entries[0].ReportID)
	assert.False(t, entries[0].Compliant)
	assert.Equal(t, 1, entries[0].FailedChecks)
	assert.Equal(t, older.ID, entries[1].ReportID)
	assert.True(t, entries[1].Compliant)
	assert.Equal(t, "2024-06-01", entries[1].EvaluationDate)
	assert.Equal(t, "2.1.0", entries[1].RulesVersion)

	limited, err := s.ListByProject(ctx, projectID, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	none, err := s.ListByProject(ctx, uuid.New(), 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMigrate_UnknownDialect(t *testing.T) {
	require.Error(t, Migrate(context.Background(), nil, "oracle"))
}

func TestOpen_NoneConfigured(t *testing.T) {
	s, err := Open(context.Background(), "", "")
	require.NoError(t, err)
	assert.Nil(t, s)
}
