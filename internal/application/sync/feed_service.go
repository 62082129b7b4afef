package syncapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/config"
	"github.com/storesync/backend/internal/infrastructure/scheduler"
)

// defaultWatermarkOverlap absorbs clock skew between the watermark scan
// and rows committing with equal timestamps.
const defaultWatermarkOverlap = time.Second

// ChangeFeedService pulls changed records from both sides of the sync
// boundary and submits them to the dispatcher as change events.
//
// Cursors advance only after a page's events are all enqueued, so a crash
// mid-run re-fetches an already seen page instead of skipping one;
// duplicate events resolve to no-ops downstream.
type ChangeFeedService struct {
	remote   syncdomain.RemotePlatform
	local    syncdomain.LocalStore
	cursors  syncdomain.CursorRepository
	sink     syncdomain.JobSink
	config   config.SyncConfig
	pageSize int
	logger   *zap.Logger
	now      func() time.Time
}

// NewChangeFeedService creates a new ChangeFeedService
func NewChangeFeedService(
	remote syncdomain.RemotePlatform,
	local syncdomain.LocalStore,
	cursors syncdomain.CursorRepository,
	sink syncdomain.JobSink,
	cfg config.SyncConfig,
	pageSize int,
	logger *zap.Logger,
) *ChangeFeedService {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &ChangeFeedService{
		remote:   remote,
		local:    local,
		cursors:  cursors,
		sink:     sink,
		config:   cfg,
		pageSize: pageSize,
		logger:   logger,
		now:      time.Now,
	}
}

// FetchRemote pages the platform's changed-since listing and enqueues an
// event per record. full ignores the stored cursor and enumerates the
// whole catalog; unchanged records resolve to no-ops by fingerprint.
func (s *ChangeFeedService) FetchRemote(ctx context.Context, entityType syncdomain.EntityType, full bool) (int, error) {
	if !entityConfig(s.config, entityType).Enabled {
		return 0, nil
	}

	cursor := ""
	if !full {
		stored, err := s.cursors.Get(ctx, entityType, syncdomain.OriginRemote)
		if err != nil && !errors.Is(err, syncdomain.ErrCursorNotFound) {
			return 0, err
		}
		if stored != nil {
			cursor = stored.Cursor
		}
	}

	total := 0
	for {
		records, next, err := s.remote.ListChanged(ctx, entityType, cursor, s.pageSize)
		if err != nil {
			return total, fmt.Errorf("list remote %s changes: %w", entityType, err)
		}

		for i := range records {
			event := s.eventFromRemote(entityType, &records[i])
			if err := s.sink.Submit(syncdomain.NewEventJob(event)); err != nil {
				// Backpressure: stop without advancing past this page so
				// the next run picks it up again.
				return total, err
			}
			total++
		}

		if next != "" && next != cursor {
			if err := s.cursors.Advance(ctx, entityType, syncdomain.OriginRemote, next); err != nil {
				return total, err
			}
		}
		if len(records) < s.pageSize {
			if total > 0 {
				s.logger.Debug("Remote feed enqueued changes",
					zap.String("entity_type", string(entityType)),
					zap.Int("count", total),
					zap.Bool("full", full))
			}
			return total, nil
		}
		cursor = next
	}
}

// FetchLocal scans the local store's modification watermark and enqueues
// an event per changed row. full rescans from the beginning of time.
func (s *ChangeFeedService) FetchLocal(ctx context.Context, entityType syncdomain.EntityType, full bool) (int, error) {
	if !entityConfig(s.config, entityType).Enabled {
		return 0, nil
	}

	var floor time.Time
	if !full {
		stored, err := s.cursors.Get(ctx, entityType, syncdomain.OriginLocal)
		if err != nil && !errors.Is(err, syncdomain.ErrCursorNotFound) {
			return 0, err
		}
		if stored != nil {
			floor = syncdomain.ParseLocalWatermark(stored.Cursor)
		}
	}

	total := 0
	since := floor
	for {
		records, err := s.local.ListChangedSince(ctx, entityType, since, s.pageSize)
		if err != nil {
			return total, fmt.Errorf("list local %s changes: %w", entityType, err)
		}
		if len(records) == 0 {
			return total, nil
		}

		maxSeen := since
		for i := range records {
			rec := &records[i]
			event := s.eventFromLocal(entityType, rec)
			if err := s.sink.Submit(syncdomain.NewEventJob(event)); err != nil {
				return total, err
			}
			total++
			if rec.ModifiedAt.After(maxSeen) {
				maxSeen = rec.ModifiedAt
			}
		}

		// The persisted watermark backs off by a small overlap to absorb
		// rows committing with equal timestamps, but never regresses
		// behind what was already covered.
		watermark := maxSeen.Add(-s.overlap())
		if watermark.Before(floor) {
			watermark = floor
		}
		if watermark.After(floor) {
			if err := s.cursors.Advance(ctx, entityType, syncdomain.OriginLocal, syncdomain.LocalWatermark(watermark)); err != nil {
				return total, err
			}
			floor = watermark
		}

		if len(records) < s.pageSize {
			if total > 0 {
				s.logger.Debug("Local feed enqueued changes",
					zap.String("entity_type", string(entityType)),
					zap.Int("count", total),
					zap.Bool("full", full))
			}
			return total, nil
		}
		since = maxSeen
	}
}

// FetchAll runs both feeds for every enabled entity type. Per-type errors
// are collected rather than short-circuiting the remaining types.
func (s *ChangeFeedService) FetchAll(ctx context.Context, full bool) (int, error) {
	total := 0
	var errs []error
	for _, entityType := range syncdomain.AllEntityTypes() {
		if !entityConfig(s.config, entityType).Enabled {
			continue
		}

		n, err := s.FetchRemote(ctx, entityType, full)
		total += n
		if err != nil {
			errs = append(errs, fmt.Errorf("%s remote feed: %w", entityType, err))
		}

		n, err = s.FetchLocal(ctx, entityType, full)
		total += n
		if err != nil {
			errs = append(errs, fmt.Errorf("%s local feed: %w", entityType, err))
		}
	}
	return total, errors.Join(errs...)
}

func (s *ChangeFeedService) eventFromRemote(entityType syncdomain.EntityType, rec *syncdomain.RemoteRecord) *syncdomain.ChangeEvent {
	kind := syncdomain.ChangeKindUpdated
	if rec.Deleted || (rec.State != nil && rec.State.Deleted) {
		kind = syncdomain.ChangeKindDeleted
	}
	return &syncdomain.ChangeEvent{
		EntityType: entityType,
		Origin:     syncdomain.OriginRemote,
		SourceID:   rec.ID,
		Kind:       kind,
		Payload:    rec.State,
		ObservedAt: s.now(),
		DedupeKey:  syncdomain.NewDedupeKey(syncdomain.OriginRemote, entityType, rec.ID, rec.State.Fingerprint()),
	}
}

func (s *ChangeFeedService) eventFromLocal(entityType syncdomain.EntityType, rec *syncdomain.LocalRecord) *syncdomain.ChangeEvent {
	kind := syncdomain.ChangeKindUpdated
	if rec.State != nil && rec.State.Deleted {
		kind = syncdomain.ChangeKindDeleted
	}
	return &syncdomain.ChangeEvent{
		EntityType: entityType,
		Origin:     syncdomain.OriginLocal,
		SourceID:   rec.ID,
		Kind:       kind,
		Payload:    rec.State,
		ObservedAt: s.now(),
		DedupeKey:  syncdomain.NewDedupeKey(syncdomain.OriginLocal, entityType, rec.ID, rec.State.Fingerprint()),
	}
}

func (s *ChangeFeedService) overlap() time.Duration {
	if s.config.WatermarkOverlap > 0 {
		return s.config.WatermarkOverlap
	}
	return defaultWatermarkOverlap
}

// Ensure ChangeFeedService implements the poll trigger's feed contract
var _ scheduler.ChangeFeed = (*ChangeFeedService)(nil)
