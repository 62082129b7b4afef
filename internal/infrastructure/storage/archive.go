package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	syncapp "github.com/storesync/backend/internal/application/sync"
	infraconfig "github.com/storesync/backend/internal/infrastructure/config"
)

// NewArchiveStore selects and initializes the archive backend named by
// the retention configuration. Returns nil when archival is disabled;
// the retention service never touches the store in that case and treats
// a nil store with archival enabled as a wiring error.
func NewArchiveStore(ctx context.Context, cfg infraconfig.RetentionConfig, logger *zap.Logger) (syncapp.ArchiveStore, error) {
	if !cfg.ArchiveEnabled {
		return nil, nil
	}

	switch cfg.ArchiveBackend {
	case "s3":
		store, err := NewS3ArchiveStore(cfg, WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "local":
		return NewLocalArchiveStore(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.ArchiveBackend)
	}
}
