// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SyncMetrics provides sync metrics for the synchronization engine.
// It tracks job outcomes, webhook ingestion, and mapping state health.
type SyncMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	jobsTotal          *Counter
	conflictsTotal     *Counter
	webhookEventsTotal *Counter

	// Histogram metrics (distributions)
	jobDuration *Histogram

	// Gauge metrics (point-in-time values)
	queueDepth    *Gauge
	mappingsCount *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data providers for periodic collection
	statsProvider MappingStatsProvider
	queueProvider QueueDepthProvider
}

// MappingStateCount is one bucket of the mapping state breakdown.
type MappingStateCount struct {
	EntityType string
	State      string
	Count      int64
}

// MappingStatsProvider provides mapping state counts for periodic metrics
// collection. This interface allows the telemetry layer to query sync state
// without depending on the sync domain directly.
type MappingStatsProvider interface {
	// CountMappingsByState returns mapping counts grouped by entity type and state
	CountMappingsByState(ctx context.Context) ([]MappingStateCount, error)
}

// QueueDepthProvider reports the current depth of the dispatch queue.
type QueueDepthProvider interface {
	QueueDepth() int
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 1 minute
	StatsProvider   MappingStatsProvider
	QueueProvider   QueueDepthProvider
}

// NewSyncMetrics creates a new SyncMetrics instance.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		stopChan:      make(chan struct{}),
		statsProvider: cfg.StatsProvider,
		queueProvider: cfg.QueueProvider,
	}

	// Initialize counter metrics
	var err error

	// Job metrics
	sm.jobsTotal, err = NewCounter(
		cfg.Meter,
		"sync_jobs_processed_total",
		"Total number of sync jobs processed",
		"{jobs}",
	)
	if err != nil {
		return nil, err
	}

	sm.conflictsTotal, err = NewCounter(
		cfg.Meter,
		"sync_conflicts_total",
		"Total number of conflicts detected during resolution",
		"{conflicts}",
	)
	if err != nil {
		return nil, err
	}

	// Webhook metrics
	sm.webhookEventsTotal, err = NewCounter(
		cfg.Meter,
		"sync_webhook_events_total",
		"Total number of webhook deliveries ingested",
		"{events}",
	)
	if err != nil {
		return nil, err
	}

	sm.jobDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "sync_job_duration_seconds",
		Description: "Duration of sync job processing",
		Unit:        "s",
		Boundaries:  SyncDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	// Sync state gauge metrics
	sm.queueDepth, err = NewGauge(
		cfg.Meter,
		"sync_queue_depth",
		"Current number of jobs waiting in the dispatch queue",
		"{jobs}",
	)
	if err != nil {
		return nil, err
	}

	sm.mappingsCount, err = NewGauge(
		cfg.Meter,
		"sync_entity_mappings",
		"Current number of entity mappings per state",
		"{mappings}",
	)
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// =============================================================================
// Job Metrics
// =============================================================================

// JobTrigger identifies what caused a job to run, for metrics labeling.
type JobTrigger string

const (
	JobTriggerEvent     JobTrigger = "event"
	JobTriggerReconcile JobTrigger = "reconcile"
	JobTriggerManual    JobTrigger = "manual"
)

// RecordJob records one processed sync job with its outcome and duration.
// This should be called from the application layer after a job settles.
func (sm *SyncMetrics) RecordJob(ctx context.Context, entityType, outcome string, trigger JobTrigger, duration time.Duration) {
	sm.jobsTotal.Inc(ctx,
		AttrEntityType.String(entityType),
		AttrOutcome.String(outcome),
		AttrTrigger.String(string(trigger)),
	)
	sm.jobDuration.RecordDuration(ctx, duration,
		AttrEntityType.String(entityType),
		AttrOutcome.String(outcome),
	)
}

// RecordConflict records a detected conflict.
// This should be called when resolution finds both sides changed.
func (sm *SyncMetrics) RecordConflict(ctx context.Context, entityType string) {
	sm.conflictsTotal.Inc(ctx,
		AttrEntityType.String(entityType),
	)
}

// =============================================================================
// Webhook Metrics
// =============================================================================

// RecordWebhookEvent records one ingested webhook delivery.
// The result is the terminal ingest status (accepted, duplicate, rejected...).
func (sm *SyncMetrics) RecordWebhookEvent(ctx context.Context, topic, result string) {
	sm.webhookEventsTotal.Inc(ctx,
		AttrEventTopic.String(topic),
		AttrIngestResult.String(result),
	)
}

// =============================================================================
// Sync State Metrics
// =============================================================================

// RecordQueueDepth records the current dispatch queue depth.
// This is a gauge metric that should be updated periodically.
func (sm *SyncMetrics) RecordQueueDepth(ctx context.Context, depth int64) {
	sm.queueDepth.Record(ctx, depth)
}

// RecordMappingCount records the number of mappings in one state bucket.
// This is a gauge metric that should be updated periodically.
func (sm *SyncMetrics) RecordMappingCount(ctx context.Context, entityType, state string, count int64) {
	sm.mappingsCount.Record(ctx, count,
		AttrEntityType.String(entityType),
		AttrSyncState.String(state),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects queue depth and mapping state counts every interval
// (default: 1 minute). This is non-blocking - use Stop() to stop collection.
func (sm *SyncMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	sm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}

		go sm.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (sm *SyncMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	sm.collectSyncGauges(ctx)

	for {
		select {
		case <-sm.stopChan:
			sm.logger.Info("Stopping periodic sync metrics collection")
			return
		case <-ctx.Done():
			sm.logger.Info("Context cancelled, stopping periodic sync metrics collection")
			return
		case <-ticker.C:
			sm.collectSyncGauges(ctx)
		}
	}
}

// collectSyncGauges collects the queue depth and mapping state gauges.
func (sm *SyncMetrics) collectSyncGauges(ctx context.Context) {
	if sm.queueProvider != nil {
		sm.RecordQueueDepth(ctx, int64(sm.queueProvider.QueueDepth()))
	}

	if sm.statsProvider == nil {
		sm.logger.Debug("No mapping stats provider configured, skipping mapping metrics collection")
		return
	}

	counts, err := sm.statsProvider.CountMappingsByState(ctx)
	if err != nil {
		sm.logger.Warn("Failed to get mapping state counts for metrics collection", zap.Error(err))
		return
	}

	for _, c := range counts {
		sm.RecordMappingCount(ctx, c.EntityType, c.State, c.Count)
	}
}

// Stop stops the periodic collection.
func (sm *SyncMetrics) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
