package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Backend names an archive backend.
type Backend string

const (
	BackendNone Backend = "none"
	BackendFS   Backend = "fs"
	BackendS3   Backend = "s3"
	BackendGCS  Backend = "gcs"
)

// NewStoreFromEnv builds the archive selected by ARCHIVE_STORAGE_TYPE:
//   - "none" (default): returns nil, nil
//   - "fs": DATA_DIR/archive (DATA_DIR defaults to "data")
//   - "s3": ARCHIVE_S3_BUCKET (required), ARCHIVE_S3_REGION or AWS_REGION,
//     ARCHIVE_S3_ENDPOINT, ARCHIVE_S3_PREFIX
//   - "gcs": ARCHIVE_GCS_BUCKET (required), ARCHIVE_GCS_PREFIX; needs -tags gcp
func NewStoreFromEnv(ctx context.Context) (Store, error) {
	backend := Backend(os.Getenv("ARCHIVE_STORAGE_TYPE"))
	switch backend {
	case "", BackendNone:
		return nil, nil
	case BackendFS:
		dataDir := os.Getenv("DATA_DIR")
		if dataDir == "" {
			dataDir = "data"
		}
		return NewFileStore(filepath.Join(dataDir, "archive"))
	case BackendS3:
		return newS3StoreFromEnv(ctx)
	case BackendGCS:
		return newGCSStoreFromEnv(ctx)
	default:
		return nil, fmt.Errorf("archive: unsupported storage type %q", backend)
	}
}

func newS3StoreFromEnv(ctx context.Context) (Store, error) {
	bucket := os.Getenv("ARCHIVE_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("archive: ARCHIVE_S3_BUCKET is required for S3 storage")
	}
	region := os.Getenv("ARCHIVE_S3_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "ap-southeast-2"
	}
	return NewS3Store(ctx, S3Config{
		Bucket:   bucket,
		Region:   region,
		Endpoint: os.Getenv("ARCHIVE_S3_ENDPOINT"),
		Prefix:   os.Getenv("ARCHIVE_S3_PREFIX"),
	})
}
