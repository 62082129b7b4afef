package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SyncAttempt is one append-only log row per orchestration attempt. The
// log feeds the activity/status projection and retry eligibility; rows
// are never mutated, and the only deletion path is retention pruning.
type SyncAttempt struct {
	// ID is the attempt identifier
	ID uuid.UUID
	// EntityType is the kind of business entity
	EntityType EntityType
	// LocalID is the local identifier at attempt time (may be empty)
	LocalID string
	// RemoteID is the remote identifier at attempt time (may be empty)
	RemoteID string
	// Outcome classifies how the attempt ended
	Outcome Outcome
	// AttemptNumber is the consecutive failure count at record time;
	// zero for successes
	AttemptNumber int
	// Title is a human-readable one-liner for the activity feed
	Title string
	// Detail carries the failure message or resolution note
	Detail string
	// OccurredAt is when the attempt finished
	OccurredAt time.Time
}

// NewSyncAttempt builds a log row for a finished attempt
func NewSyncAttempt(m *EntityMapping, outcome Outcome, title, detail string, at time.Time) *SyncAttempt {
	attempt := &SyncAttempt{
		ID:         uuid.New(),
		EntityType: m.EntityType,
		LocalID:    m.LocalID,
		RemoteID:   m.RemoteID,
		Outcome:    outcome,
		Title:      title,
		Detail:     detail,
		OccurredAt: at,
	}
	if outcome != OutcomeSuccess {
		attempt.AttemptNumber = m.AttemptCount
	}
	return attempt
}

// AttemptRepository persists and queries the append-only attempt log
type AttemptRepository interface {
	// Append writes one attempt row; rows are immutable once written
	Append(ctx context.Context, attempt *SyncAttempt) error

	// LastForMapping returns the most recent attempt touching the
	// mapping's identifiers, or ErrAttemptNotFound
	LastForMapping(ctx context.Context, m *EntityMapping) (*SyncAttempt, error)

	// ListRecent returns the newest attempts, optionally filtered by
	// entity type, newest first
	ListRecent(ctx context.Context, entityType *EntityType, limit int) ([]SyncAttempt, error)

	// CountByOutcomeSince aggregates outcome counts per entity type for
	// attempts at or after the cutoff
	CountByOutcomeSince(ctx context.Context, since time.Time) (map[EntityType]map[Outcome]int64, error)

	// CountPerDay returns per-day success and failure counts for the
	// trailing window, oldest day first
	CountPerDay(ctx context.Context, days int) ([]DailyActivity, error)

	// LastErrorPerEntityType returns the most recent non-success attempt
	// for each entity type that has one
	LastErrorPerEntityType(ctx context.Context) (map[EntityType]SyncAttempt, error)

	// ListPrunable returns attempt rows older than the cutoff or beyond
	// the row budget (oldest first), up to limit
	ListPrunable(ctx context.Context, olderThan time.Time, keepRows int64, limit int) ([]SyncAttempt, error)

	// DeleteByIDs removes pruned rows after archival
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)

	// Count returns the total number of attempt rows
	Count(ctx context.Context) (int64, error)
}

// DailyActivity is one day's aggregate for the activity timeline
type DailyActivity struct {
	Day       time.Time
	Successes int64
	Failures  int64
}
