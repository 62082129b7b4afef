package syncapp

import (
	"context"
	"math"
	"time"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/ratelimit"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
	defaultTimelineDays  = 7
	maxTimelineDays      = 90
)

// QueueProbe reports the dispatcher's current backlog
type QueueProbe interface {
	QueueDepth() int
}

// EngineProbe reports whether a background sync pass is active
type EngineProbe interface {
	SyncAllRunning() bool
}

// LimiterProbe reports outbound rate limiter usage
type LimiterProbe interface {
	Stats() ratelimit.Stats
}

// StatusService is the read side of the engine: per-entity mapping
// counts, the attempt activity feed, and engine health. It projects from
// the stores on every call and keeps no counters of its own.
type StatusService struct {
	mappings syncdomain.MappingRepository
	attempts syncdomain.AttemptRepository
	queue    QueueProbe
	engine   EngineProbe
	limiter  LimiterProbe
	now      func() time.Time
}

// NewStatusService creates a new StatusService. The probes may be nil
// when the corresponding component is not wired (tests, partial setups).
func NewStatusService(
	mappings syncdomain.MappingRepository,
	attempts syncdomain.AttemptRepository,
	queue QueueProbe,
	engine EngineProbe,
	limiter LimiterProbe,
) *StatusService {
	return &StatusService{
		mappings: mappings,
		attempts: attempts,
		queue:    queue,
		engine:   engine,
		limiter:  limiter,
		now:      time.Now,
	}
}

// StatusSummary returns per-entity mapping counts, 24h success rates,
// and engine-level health in one projection.
func (s *StatusService) StatusSummary(ctx context.Context) (*StatusSummaryDTO, error) {
	now := s.now()
	outcomes, err := s.attempts.CountByOutcomeSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	types := syncdomain.AllEntityTypes()
	entities := make([]EntityStatusDTO, 0, len(types))
	for _, entityType := range types {
		counts, err := s.mappings.CountByState(ctx, entityType)
		if err != nil {
			return nil, err
		}

		dto := EntityStatusDTO{
			EntityType:  string(entityType),
			DisplayName: entityType.DisplayName(),
			Synced:      counts[syncdomain.StateSynced],
			Pending:     counts[syncdomain.StatePending],
			InFlight:    counts[syncdomain.StateInFlight],
			Errors:      counts[syncdomain.StateError],
			Conflicts:   counts[syncdomain.StateConflict],
		}
		for _, n := range counts {
			dto.Total += n
		}

		var successes, attempts int64
		for outcome, n := range outcomes[entityType] {
			attempts += n
			if outcome == syncdomain.OutcomeSuccess {
				successes += n
			}
		}
		dto.Attempts24h = attempts
		dto.SuccessRate24h = successRate(successes, attempts)

		lastSynced, err := s.lastSyncedAt(ctx, entityType)
		if err != nil {
			return nil, err
		}
		dto.LastSyncedAt = lastSynced

		entities = append(entities, dto)
	}

	engine := EngineStatusDTO{}
	if s.queue != nil {
		engine.QueueDepth = s.queue.QueueDepth()
	}
	if s.engine != nil {
		engine.SyncAllRunning = s.engine.SyncAllRunning()
	}
	if s.limiter != nil {
		stats := s.limiter.Stats()
		engine.LimiterRPS = stats.CurrentRPS
		engine.LimiterAcquired = stats.TotalAcquired
		engine.LimiterTimedOut = stats.TotalTimedOut
		engine.LimiterAvgWaitMs = stats.AvgWaitTime.Milliseconds()
	}

	return &StatusSummaryDTO{
		Entities:    entities,
		Engine:      engine,
		GeneratedAt: now,
	}, nil
}

// RecentActivity returns the newest attempts, optionally filtered by
// entity type. The limit defaults to 20 and is capped at 100.
func (s *StatusService) RecentActivity(ctx context.Context, limit int, entityType *syncdomain.EntityType) ([]ActivityEntryDTO, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	attempts, err := s.attempts.ListRecent(ctx, entityType, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]ActivityEntryDTO, len(attempts))
	for i := range attempts {
		entries[i] = activityEntry(&attempts[i])
	}
	return entries, nil
}

// ErrorDetail returns the most recent failure per entity type
func (s *StatusService) ErrorDetail(ctx context.Context) ([]ErrorEntryDTO, error) {
	failures, err := s.attempts.LastErrorPerEntityType(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]ErrorEntryDTO, 0, len(failures))
	for _, entityType := range syncdomain.AllEntityTypes() {
		attempt, ok := failures[entityType]
		if !ok {
			continue
		}
		entries = append(entries, ErrorEntryDTO{
			EntityType: string(entityType),
			Outcome:    string(attempt.Outcome),
			Title:      attempt.Title,
			Detail:     attempt.Detail,
			OccurredAt: attempt.OccurredAt,
		})
	}
	return entries, nil
}

// ActivityTimeline returns per-day success and failure counts for the
// last N days, newest day last. Defaults to 7 days, capped at 90.
func (s *StatusService) ActivityTimeline(ctx context.Context, days int) ([]TimelinePointDTO, error) {
	if days <= 0 {
		days = defaultTimelineDays
	}
	if days > maxTimelineDays {
		days = maxTimelineDays
	}

	daily, err := s.attempts.CountPerDay(ctx, days)
	if err != nil {
		return nil, err
	}

	points := make([]TimelinePointDTO, len(daily))
	for i, d := range daily {
		points[i] = TimelinePointDTO{
			Day:       d.Day.Format("2006-01-02"),
			Successes: d.Successes,
			Failures:  d.Failures,
		}
	}
	return points, nil
}

// lastSyncedAt finds the most recently settled mapping of one type
func (s *StatusService) lastSyncedAt(ctx context.Context, entityType syncdomain.EntityType) (*time.Time, error) {
	synced := syncdomain.StateSynced
	mappings, err := s.mappings.FindAll(ctx, syncdomain.MappingFilter{
		EntityType: &entityType,
		State:      &synced,
		Page:       1,
		PageSize:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, nil
	}
	return mappings[0].LastSyncedAt, nil
}

func activityEntry(attempt *syncdomain.SyncAttempt) ActivityEntryDTO {
	return ActivityEntryDTO{
		ID:            attempt.ID.String(),
		EntityType:    string(attempt.EntityType),
		LocalID:       attempt.LocalID,
		RemoteID:      attempt.RemoteID,
		Outcome:       string(attempt.Outcome),
		AttemptNumber: attempt.AttemptNumber,
		Title:         attempt.Title,
		Detail:        attempt.Detail,
		OccurredAt:    attempt.OccurredAt,
	}
}

// successRate reports successes over attempts as a percentage with one
// decimal. No attempts at all reads as fully healthy.
func successRate(successes, attempts int64) float64 {
	if attempts == 0 {
		return 100.0
	}
	return math.Round(float64(successes)/float64(attempts)*1000) / 10
}
