package syncapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/config"
	"github.com/storesync/backend/internal/infrastructure/scheduler"
)

// ArchiveStore writes pruned attempt batches to cold storage
type ArchiveStore interface {
	// Put stores one object under the given key
	Put(ctx context.Context, key string, data []byte) error
}

// RetentionService prunes aged attempt rows in batches, optionally
// archiving each batch before deletion. Archival failures abort the pass:
// rows are only deleted once their copy is safely stored.
type RetentionService struct {
	attempts syncdomain.AttemptRepository
	archive  ArchiveStore
	config   config.RetentionConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewRetentionService creates a new RetentionService. archive may be nil
// when archival is disabled.
func NewRetentionService(
	attempts syncdomain.AttemptRepository,
	archive ArchiveStore,
	cfg config.RetentionConfig,
	logger *zap.Logger,
) *RetentionService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &RetentionService{
		attempts: attempts,
		archive:  archive,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes one retention pass and returns the number of pruned rows
func (s *RetentionService) Run(ctx context.Context) (int, error) {
	if !s.config.Enabled {
		return 0, nil
	}

	now := s.now()
	cutoff := now.Add(-s.config.MaxAge)
	pruned := 0

	for batch := 1; ; batch++ {
		rows, err := s.attempts.ListPrunable(ctx, cutoff, int64(s.config.KeepRows), s.config.BatchSize)
		if err != nil {
			return pruned, err
		}
		if len(rows) == 0 {
			break
		}

		if s.config.ArchiveEnabled {
			if s.archive == nil {
				return pruned, fmt.Errorf("archival enabled but no archive store wired")
			}
			key := archiveKey(s.config.S3Prefix, now, batch)
			data, err := encodeArchiveBatch(rows)
			if err != nil {
				return pruned, err
			}
			if err := s.archive.Put(ctx, key, data); err != nil {
				return pruned, fmt.Errorf("archive batch before prune: %w", err)
			}
		}

		ids := make([]uuid.UUID, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		deleted, err := s.attempts.DeleteByIDs(ctx, ids)
		if err != nil {
			return pruned, err
		}
		pruned += int(deleted)

		if len(rows) < s.config.BatchSize {
			break
		}
	}

	if pruned > 0 {
		s.logger.Info("Attempt retention pass complete",
			zap.Int("pruned", pruned),
			zap.Time("cutoff", cutoff),
			zap.Bool("archived", s.config.ArchiveEnabled))
	}
	return pruned, nil
}

// archivedAttempt is the archive line format for a pruned attempt row
type archivedAttempt struct {
	ID            string    `json:"id"`
	EntityType    string    `json:"entity_type"`
	LocalID       string    `json:"local_id,omitempty"`
	RemoteID      string    `json:"remote_id,omitempty"`
	Outcome       string    `json:"outcome"`
	AttemptNumber int       `json:"attempt_number,omitempty"`
	Title         string    `json:"title"`
	Detail        string    `json:"detail,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// encodeArchiveBatch renders attempts as JSON lines, one row per line
func encodeArchiveBatch(rows []syncdomain.SyncAttempt) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range rows {
		row := &rows[i]
		record := archivedAttempt{
			ID:            row.ID.String(),
			EntityType:    string(row.EntityType),
			LocalID:       row.LocalID,
			RemoteID:      row.RemoteID,
			Outcome:       string(row.Outcome),
			AttemptNumber: row.AttemptNumber,
			Title:         row.Title,
			Detail:        row.Detail,
			OccurredAt:    row.OccurredAt,
		}
		if err := enc.Encode(record); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// archiveKey builds a date-partitioned object key so archives from one
// pass never collide with another's.
func archiveKey(prefix string, at time.Time, batch int) string {
	at = at.UTC()
	if prefix == "" {
		prefix = "sync-attempts"
	}
	return fmt.Sprintf("%s/%s/attempts-%s-%04d.jsonl",
		prefix, at.Format("2006/01/02"), at.Format("150405"), batch)
}

// Ensure RetentionService implements the poll trigger's retention contract
var _ scheduler.RetentionRunner = (*RetentionService)(nil)
