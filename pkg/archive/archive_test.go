package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/project"
)

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte(`{"report_id":"r-1"}`)
	address, err := s.Put(ctx, data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(address, "sha256:"))
	assert.Len(t, address, len("sha256:")+64)

	again, err := s.Put(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, address, again)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, strings.TrimPrefix(address, "sha256:")+".json", entries[0].Name())

	got, err := s.Get(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	ok, err := s.Exists(ctx, address)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, address))
	require.NoError(t, s.Delete(ctx, address))

	ok, err = s.Exists(ctx, address)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(ctx, address)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInvalidAddress(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, address := range []string{"", "md5:abcd", "sha256:zz", "sha256:abcd", "sha256:../../etc/passwd"} {
		_, err := s.Get(ctx, address)
		assert.Error(t, err, address)
		_, err = s.Exists(ctx, address)
		assert.Error(t, err, address)
		assert.Error(t, s.Delete(ctx, address), address)
	}
}

func TestReport_SameContentSameAddress(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	p := &project.Project{ID: uuid.New(), Name: "Archive Test"}
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	build := func() *findings.Report {
		r := findings.NewReport(uuid.MustParse("6f1c2a52-8d0e-4b6a-9a1e-3f2f4b1d7c90"), p, "1.0.0", project.MustDate("2024-06-01"), at)
		r.Add(findings.NewBuilder("data_quality", "Data Quality").Outcome(true, findings.SeverityMedium).At(at).Build())
		r.Summarize()
		return r
	}

	a, err := Report(ctx, s, build())
	require.NoError(t, err)
	b, err := Report(ctx, s, build())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	data, err := s.Get(ctx, a)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"project_name":"Archive Test"`)
}

func TestNewStoreFromEnv(t *testing.T) {
	ctx := context.Background()

	t.Run("default none", func(t *testing.T) {
		t.Setenv("ARCHIVE_STORAGE_TYPE", "")
		s, err := NewStoreFromEnv(ctx)
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("fs", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("ARCHIVE_STORAGE_TYPE", "fs")
		t.Setenv("DATA_DIR", dir)
		s, err := NewStoreFromEnv(ctx)
		require.NoError(t, err)
		fs, ok := s.(*FileStore)
		require.True(t, ok, "expected *FileStore, got %T", s)
		assert.Equal(t, filepath.Join(dir, "archive"), fs.baseDir)
	})

	t.Run("s3 missing bucket", func(t *testing.T) {
		t.Setenv("ARCHIVE_STORAGE_TYPE", "s3")
		t.Setenv("ARCHIVE_S3_BUCKET", "")
		_, err := NewStoreFromEnv(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ARCHIVE_S3_BUCKET is required")
	})

	t.Run("s3", func(t *testing.T) {
		t.Setenv("ARCHIVE_STORAGE_TYPE", "s3")
		t.Setenv("ARCHIVE_S3_BUCKET", "compliance-reports")
		t.Setenv("ARCHIVE_S3_ENDPOINT", "http://127.0.0.1:9000")
		t.Setenv("ARCHIVE_S3_PREFIX", "reports/")
		s, err := NewStoreFromEnv(ctx)
		require.NoError(t, err)
		s3s, ok := s.(*S3Store)
		require.True(t, ok, "expected *S3Store, got %T", s)
		assert.Equal(t, "compliance-reports", s3s.bucket)
		assert.Equal(t, "reports/abc.json", *s3s.key("abc.json"))
	})

	t.Run("gcs missing bucket", func(t *testing.T) {
		t.Setenv("ARCHIVE_STORAGE_TYPE", "gcs")
		t.Setenv("ARCHIVE_GCS_BUCKET", "")
		_, err := NewStoreFromEnv(ctx)
		require.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		t.Setenv("ARCHIVE_STORAGE_TYPE", "ftp")
		_, err := NewStoreFromEnv(ctx)
		require.Error(t, err)
	})
}
