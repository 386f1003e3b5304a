package archive

import (
	"context"
	"fmt"
	"path/filepath"
)

// Backend selects an archive implementation.
type Backend string

const (
	BackendFS     Backend = "fs"
	BackendMemory Backend = "memory"
	BackendS3     Backend = "s3"
)

// Open creates the archive backend named by kind. The fs backend lives
// under <dataDir>/archive; s3 requires cfg.Bucket.
func Open(ctx context.Context, kind Backend, dataDir string, cfg S3Config) (Store, error) {
	switch kind {
	case BackendFS, "":
		return NewFileStore(filepath.Join(dataDir, "archive"))
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("ARCHIVE_S3_BUCKET is required for the s3 backend")
		}
		if cfg.Region == "" {
			cfg.Region = "us-east-1"
		}
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s", kind)
	}
}
