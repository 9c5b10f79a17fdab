package storage

import (
	"context"
	"fmt"

	"github.com/smallplates/internal/config"
)

// Open builds the configured backend.
func Open(ctx context.Context, cfg config.StorageConfig) (Bucket, error) {
	switch cfg.Backend {
	case config.StorageBackendGCS:
		return NewGCSBucket(ctx, GCSConfig{
			Bucket:          cfg.Bucket,
			CredentialsFile: cfg.CredentialsFile,
			PublicBaseURL:   cfg.PublicBaseURL,
		})
	case config.StorageBackendLocal, "":
		return NewLocalBucket(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
