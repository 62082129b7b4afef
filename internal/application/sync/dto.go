package syncapp

import (
	"time"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/config"
)

// EntityStatusDTO summarizes one entity type's sync posture
type EntityStatusDTO struct {
	EntityType     string     `json:"entity_type"`
	DisplayName    string     `json:"display_name"`
	Total          int64      `json:"total"`
	Synced         int64      `json:"synced"`
	Pending        int64      `json:"pending"`
	InFlight       int64      `json:"in_flight"`
	Errors         int64      `json:"errors"`
	Conflicts      int64      `json:"conflicts"`
	SuccessRate24h float64    `json:"success_rate_24h"`
	Attempts24h    int64      `json:"attempts_24h"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
}

// EngineStatusDTO reports queue and limiter health
type EngineStatusDTO struct {
	QueueDepth       int     `json:"queue_depth"`
	SyncAllRunning   bool    `json:"sync_all_running"`
	LimiterRPS       float64 `json:"limiter_rps"`
	LimiterAcquired  int64   `json:"limiter_acquired"`
	LimiterTimedOut  int64   `json:"limiter_timed_out"`
	LimiterAvgWaitMs int64   `json:"limiter_avg_wait_ms"`
}

// StatusSummaryDTO is the full status projection
type StatusSummaryDTO struct {
	Entities    []EntityStatusDTO `json:"entities"`
	Engine      EngineStatusDTO   `json:"engine"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// ActivityEntryDTO is one attempt row in the activity feed
type ActivityEntryDTO struct {
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

// ErrorEntryDTO is the most recent failure for one entity type
type ErrorEntryDTO struct {
	EntityType string    `json:"entity_type"`
	Outcome    string    `json:"outcome"`
	Title      string    `json:"title"`
	Detail     string    `json:"detail"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TimelinePointDTO is one day's attempt counts
type TimelinePointDTO struct {
	Day       string `json:"day"`
	Successes int64  `json:"successes"`
	Failures  int64  `json:"failures"`
}

// MappingDTO is the review projection of one entity mapping
type MappingDTO struct {
	ID           string     `json:"id"`
	EntityType   string     `json:"entity_type"`
	LocalID      string     `json:"local_id,omitempty"`
	RemoteID     string     `json:"remote_id,omitempty"`
	Direction    string     `json:"direction"`
	State        string     `json:"state"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	AttemptCount int        `json:"attempt_count"`
	Version      int        `json:"version"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// entityConfig selects the per-entity sync settings block
func entityConfig(cfg config.SyncConfig, entityType syncdomain.EntityType) config.EntitySyncConfig {
	switch entityType {
	case syncdomain.EntityTypeProduct:
		return cfg.Products
	case syncdomain.EntityTypeOrder:
		return cfg.Orders
	case syncdomain.EntityTypeCustomer:
		return cfg.Customers
	case syncdomain.EntityTypeInventoryLevel:
		return cfg.Inventory
	default:
		return config.EntitySyncConfig{}
	}
}
