package syncapp

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/ratelimit"
)

// ---------------------------------------------------------------------------
// Probe fakes
// ---------------------------------------------------------------------------

type fakeQueueProbe struct {
	depth int
}

func (p *fakeQueueProbe) QueueDepth() int { return p.depth }

type fakeEngineProbe struct {
	running bool
}

func (p *fakeEngineProbe) SyncAllRunning() bool { return p.running }

type fakeLimiterProbe struct {
	stats ratelimit.Stats
}

func (p *fakeLimiterProbe) Stats() ratelimit.Stats { return p.stats }

// ---------------------------------------------------------------------------
// Seeding helpers
// ---------------------------------------------------------------------------

func seedStatusMapping(repo *mockMappingRepo, entityType syncdomain.EntityType, state syncdomain.SyncState, updatedAt time.Time, lastSyncedAt *time.Time) {
	repo.add(&syncdomain.EntityMapping{
		ID:           uuid.New(),
		EntityType:   entityType,
		LocalID:      uuid.NewString(),
		RemoteID:     uuid.NewString(),
		Direction:    syncdomain.DirectionBidirectional,
		State:        state,
		Version:      1,
		LastSyncedAt: lastSyncedAt,
		CreatedAt:    updatedAt,
		UpdatedAt:    updatedAt,
	})
}

func seedStatusAttempt(t *testing.T, repo *mockAttemptRepo, entityType syncdomain.EntityType, outcome syncdomain.Outcome, title string, occurredAt time.Time) {
	t.Helper()
	err := repo.Append(context.Background(), &syncdomain.SyncAttempt{
		ID:         uuid.New(),
		EntityType: entityType,
		LocalID:    "loc-1",
		RemoteID:   "wp-1",
		Outcome:    outcome,
		Title:      title,
		Detail:     "detail for " + title,
		OccurredAt: occurredAt,
	})
	require.NoError(t, err)
}

// ---------------------------------------------------------------------------
// StatusSummary
// ---------------------------------------------------------------------------

func TestStatusService_StatusSummary(t *testing.T) {
	mappings := newMockMappingRepo()
	attempts := newMockAttemptRepo()

	now := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	recentSync := now.Add(-30 * time.Minute)
	olderSync := now.Add(-3 * time.Hour)

	// Products: two synced rows and one resting in error. The most
	// recently updated synced row carries the last-synced timestamp the
	// summary should surface.
	seedStatusMapping(mappings, syncdomain.EntityTypeProduct, syncdomain.StateSynced, now.Add(-30*time.Minute), &recentSync)
	seedStatusMapping(mappings, syncdomain.EntityTypeProduct, syncdomain.StateSynced, now.Add(-3*time.Hour), &olderSync)
	seedStatusMapping(mappings, syncdomain.EntityTypeProduct, syncdomain.StateError, now.Add(-10*time.Minute), nil)
	seedStatusMapping(mappings, syncdomain.EntityTypeOrder, syncdomain.StateConflict, now.Add(-time.Hour), nil)

	// Product attempts: three successes and one retryable failure inside
	// the 24h window, plus one success old enough to fall out of it.
	seedStatusAttempt(t, attempts, syncdomain.EntityTypeProduct, syncdomain.OutcomeSuccess, "Product updated locally", now.Add(-time.Hour))
	seedStatusAttempt(t, attempts, syncdomain.EntityTypeProduct, syncdomain.OutcomeSuccess, "Product updated on platform", now.Add(-2*time.Hour))
	seedStatusAttempt(t, attempts, syncdomain.EntityTypeProduct, syncdomain.OutcomeSuccess, "Product in sync", now.Add(-3*time.Hour))
	seedStatusAttempt(t, attempts, syncdomain.EntityTypeProduct, syncdomain.OutcomeRetryableFailure, "Product sync failed", now.Add(-4*time.Hour))
	seedStatusAttempt(t, attempts, syncdomain.EntityTypeProduct, syncdomain.OutcomeSuccess, "Product created locally", now.Add(-48*time.Hour))

	svc := NewStatusService(
		mappings,
		attempts,
		&fakeQueueProbe{depth: 5},
		&fakeEngineProbe{running: true},
		&fakeLimiterProbe{stats: ratelimit.Stats{
			TotalAcquired: 120,
			TotalTimedOut: 3,
			CurrentRPS:    8.5,
			AvgWaitTime:   250 * time.Millisecond,
		}},
	)
	svc.now = func() time.Time { return now }

	summary, err := svc.StatusSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Entities, 4)
	assert.Equal(t, now, summary.GeneratedAt)

	for i, entityType := range syncdomain.AllEntityTypes() {
		assert.Equal(t, string(entityType), summary.Entities[i].EntityType)
		assert.Equal(t, entityType.DisplayName(), summary.Entities[i].DisplayName)
	}

	products := summary.Entities[0]
	assert.Equal(t, int64(3), products.Total)
	assert.Equal(t, int64(2), products.Synced)
	assert.Equal(t, int64(1), products.Errors)
	assert.Equal(t, int64(0), products.Conflicts)
	assert.Equal(t, int64(4), products.Attempts24h)
	assert.Equal(t, 75.0, products.SuccessRate24h)
	require.NotNil(t, products.LastSyncedAt)
	assert.True(t, products.LastSyncedAt.Equal(recentSync))

	orders := summary.Entities[1]
	assert.Equal(t, int64(1), orders.Total)
	assert.Equal(t, int64(1), orders.Conflicts)
	assert.Equal(t, int64(0), orders.Attempts24h)
	assert.Equal(t, 100.0, orders.SuccessRate24h)
	assert.Nil(t, orders.LastSyncedAt)

	customers := summary.Entities[2]
	assert.Equal(t, int64(0), customers.Total)
	assert.Equal(t, 100.0, customers.SuccessRate24h)

	assert.Equal(t, 5, summary.Engine.QueueDepth)
	assert.True(t, summary.Engine.SyncAllRunning)
	assert.Equal(t, 8.5, summary.Engine.LimiterRPS)
	assert.Equal(t, int64(120), summary.Engine.LimiterAcquired)
	assert.Equal(t, int64(3), summary.Engine.LimiterTimedOut)
	assert.Equal(t, int64(250), summary.Engine.LimiterAvgWaitMs)
}

func TestStatusService_StatusSummary_NilProbes(t *testing.T) {
	svc := NewStatusService(newMockMappingRepo(), newMockAttemptRepo(), nil, nil, nil)

	summary, err := svc.StatusSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Entities, 4)

	for _, entity := range summary.Entities {
		assert.Equal(t, int64(0), entity.Total)
		assert.Equal(t, 100.0, entity.SuccessRate24h)
		assert.Nil(t, entity.LastSyncedAt)
	}
	assert.Equal(t, EngineStatusDTO{}, summary.Engine)
}

// ---------------------------------------------------------------------------
// RecentActivity
// ---------------------------------------------------------------------------

func TestStatusService_RecentActivity_ClampsLimit(t *testing.T) {
	attempts := newMockAttemptRepo()
	svc := NewStatusService(newMockMappingRepo(), attempts, nil, nil, nil)

	_, err := svc.RecentActivity(context.Background(), 0, nil)
	require.NoError(t, err)
	_, err = svc.RecentActivity(context.Background(), 500, nil)
	require.NoError(t, err)
	_, err = svc.RecentActivity(context.Background(), 7, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{20, 100, 7}, attempts.limitsSeen)
}

func TestStatusService_RecentActivity_MapsAttempts(t *testing.T) {
	attempts := newMockAttemptRepo()
	svc := NewStatusService(newMockMappingRepo(), attempts, nil, nil, nil)

	base := time.Date(2026, 8, 22, 9, 0, 0, 0, time.UTC)
	older := &syncdomain.SyncAttempt{
		ID:         uuid.New(),
		EntityType: syncdomain.EntityTypeOrder,
		LocalID:    "loc-7",
		Outcome:    syncdomain.OutcomeSuccess,
		Title:      "Order created on platform",
		OccurredAt: base,
	}
	newer := &syncdomain.SyncAttempt{
		ID:            uuid.New(),
		EntityType:    syncdomain.EntityTypeProduct,
		RemoteID:      "wp-9",
		Outcome:       syncdomain.OutcomeRetryableFailure,
		AttemptNumber: 2,
		Title:         "Product sync failed",
		Detail:        "platform temporarily unavailable",
		OccurredAt:    base.Add(time.Minute),
	}
	require.NoError(t, attempts.Append(context.Background(), older))
	require.NoError(t, attempts.Append(context.Background(), newer))

	entries, err := svc.RecentActivity(context.Background(), 10, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, newer.ID.String(), entries[0].ID)
	assert.Equal(t, "PRODUCT", entries[0].EntityType)
	assert.Equal(t, "wp-9", entries[0].RemoteID)
	assert.Empty(t, entries[0].LocalID)
	assert.Equal(t, "RETRYABLE_FAILURE", entries[0].Outcome)
	assert.Equal(t, 2, entries[0].AttemptNumber)
	assert.Equal(t, "Product sync failed", entries[0].Title)
	assert.Equal(t, "platform temporarily unavailable", entries[0].Detail)
	assert.True(t, entries[0].OccurredAt.Equal(newer.OccurredAt))

	assert.Equal(t, older.ID.String(), entries[1].ID)
	assert.Equal(t, "loc-7", entries[1].LocalID)
	assert.Equal(t, 0, entries[1].AttemptNumber)

	productType := syncdomain.EntityTypeProduct
	filtered, err := svc.RecentActivity(context.Background(), 10, &productType)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, newer.ID.String(), filtered[0].ID)
}

// ---------------------------------------------------------------------------
// ErrorDetail
// ---------------------------------------------------------------------------

func TestStatusService_ErrorDetail_OrdersByEntityType(t *testing.T) {
	attempts := newMockAttemptRepo()
	svc := NewStatusService(newMockMappingRepo(), attempts, nil, nil, nil)

	base := time.Date(2026, 8, 22, 9, 0, 0, 0, time.UTC)
	seedStatusAttempt(t, attempts, syncdomain.EntityTypeCustomer, syncdomain.OutcomeRetryableFailure, "Customer sync failed", base)
	seedStatusAttempt(t, attempts, syncdomain.EntityTypeOrder, syncdomain.OutcomeSuccess, "Order in sync", base.Add(time.Minute))
	seedStatusAttempt(t, attempts, syncdomain.EntityTypeProduct, syncdomain.OutcomeFatalFailure, "Product sync failed", base.Add(2*time.Minute))

	entries, err := svc.ErrorDetail(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// PRODUCT sorts ahead of CUSTOMER regardless of which failed last.
	assert.Equal(t, "PRODUCT", entries[0].EntityType)
	assert.Equal(t, "FATAL_FAILURE", entries[0].Outcome)
	assert.Equal(t, "Product sync failed", entries[0].Title)
	assert.Equal(t, "detail for Product sync failed", entries[0].Detail)

	assert.Equal(t, "CUSTOMER", entries[1].EntityType)
	assert.Equal(t, "RETRYABLE_FAILURE", entries[1].Outcome)
}

// ---------------------------------------------------------------------------
// ActivityTimeline
// ---------------------------------------------------------------------------

func TestStatusService_ActivityTimeline(t *testing.T) {
	attempts := newMockAttemptRepo()
	attempts.daily = []syncdomain.DailyActivity{
		{Day: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), Successes: 12, Failures: 1},
		{Day: time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC), Successes: 9, Failures: 0},
	}
	svc := NewStatusService(newMockMappingRepo(), attempts, nil, nil, nil)

	points, err := svc.ActivityTimeline(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, TimelinePointDTO{Day: "2026-08-20", Successes: 12, Failures: 1}, points[0])
	assert.Equal(t, TimelinePointDTO{Day: "2026-08-21", Successes: 9, Failures: 0}, points[1])

	_, err = svc.ActivityTimeline(context.Background(), 200)
	require.NoError(t, err)
	_, err = svc.ActivityTimeline(context.Background(), 14)
	require.NoError(t, err)

	assert.Equal(t, []int{7, 90, 14}, attempts.daysSeen)
}

// ---------------------------------------------------------------------------
// successRate
// ---------------------------------------------------------------------------

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		name      string
		successes int64
		attempts  int64
		want      float64
	}{
		{name: "no attempts reads healthy", successes: 0, attempts: 0, want: 100.0},
		{name: "all succeeded", successes: 5, attempts: 5, want: 100.0},
		{name: "three quarters", successes: 3, attempts: 4, want: 75.0},
		{name: "one third rounds down", successes: 1, attempts: 3, want: 33.3},
		{name: "two thirds rounds up", successes: 2, attempts: 3, want: 66.7},
		{name: "total loss", successes: 0, attempts: 8, want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, successRate(tt.successes, tt.attempts))
		})
	}
}
