package sync

import (
	"context"
	"time"
)

// ---------------------------------------------------------------------------
// Remote Platform Port
// ---------------------------------------------------------------------------

// RemoteRecord is one record from a remote changed-entity listing
type RemoteRecord struct {
	// ID is the platform identifier
	ID string
	// State is the normalized snapshot; nil when the listing only
	// reports a deletion
	State *EntityState
	// Deleted marks records the listing reports as removed
	Deleted bool
	// EventID is the platform's change identifier when one exists
	EventID string
}

// RemotePlatform is the narrow contract against the commerce platform.
// Implementations classify failures at this boundary by wrapping the
// package sentinels: ErrPlatformUnavailable and ErrRateLimited for
// retryable conditions, ErrPlatformRejected for permanent rejections,
// ErrRemoteNotFound for missing records.
type RemotePlatform interface {
	// ListChanged pages through records changed since the cursor. An
	// empty cursor starts from the beginning; an empty next cursor
	// signals exhaustion.
	ListChanged(ctx context.Context, entityType EntityType, cursor string, pageSize int) (records []RemoteRecord, nextCursor string, err error)

	// Get retrieves one record's current state
	Get(ctx context.Context, entityType EntityType, remoteID string) (*EntityState, error)

	// Create writes a new record and returns its platform identifier
	Create(ctx context.Context, entityType EntityType, state *EntityState) (string, error)

	// Update overwrites an existing record
	Update(ctx context.Context, entityType EntityType, remoteID string, state *EntityState) error

	// Delete removes a record
	Delete(ctx context.Context, entityType EntityType, remoteID string) error
}

// ---------------------------------------------------------------------------
// Local Store Port
// ---------------------------------------------------------------------------

// LocalRecord is one record from a local changed-entity scan
type LocalRecord struct {
	// ID is the local identifier
	ID string
	// State is the normalized snapshot
	State *EntityState
	// ModifiedAt is the local modification time driving the watermark
	ModifiedAt time.Time
}

// LocalStore is the narrow contract against the local business system's
// records. Absent records yield ErrLocalNotFound.
type LocalStore interface {
	// ListChangedSince scans records modified after the watermark,
	// oldest first, excluding rows whose latest modification was itself
	// a sync write
	ListChangedSince(ctx context.Context, entityType EntityType, since time.Time, limit int) ([]LocalRecord, error)

	// Get retrieves one record's current state
	Get(ctx context.Context, entityType EntityType, localID string) (*EntityState, error)

	// Create writes a new record and returns its local identifier
	Create(ctx context.Context, entityType EntityType, state *EntityState) (string, error)

	// Update overwrites an existing record
	Update(ctx context.Context, entityType EntityType, localID string, state *EntityState) error

	// Delete removes (or deactivates) a record
	Delete(ctx context.Context, entityType EntityType, localID string) error
}

// ---------------------------------------------------------------------------
// Supporting Ports
// ---------------------------------------------------------------------------

// TokenSource supplies the remote platform credential. Token storage and
// OAuth exchange live outside this service; only validity is consumed.
type TokenSource interface {
	// Token returns the current credential
	Token(ctx context.Context) (string, error)

	// Refresh obtains a fresh credential after an authorization failure
	Refresh(ctx context.Context) (string, error)
}

// RateGate paces outbound remote calls. Acquire blocks cooperatively up
// to a bounded wait and fails with ErrRateLimited when the budget is
// exhausted; callers are never blocked indefinitely and requests are
// never silently dropped.
type RateGate interface {
	Acquire(ctx context.Context) error
}

// JobSink accepts orchestration jobs for asynchronous processing. Submit
// fails with ErrQueueFull when the bounded queue rejects the job.
type JobSink interface {
	Submit(job *SyncJob) error
}

// SyncJob is one unit of orchestration work. Event jobs carry an observed
// change; reconcile jobs re-resolve an entity from live state (manual
// triggers and retries).
type SyncJob struct {
	// Event is set for event jobs
	Event *ChangeEvent
	// EntityType, Origin, SourceID identify the entity for reconcile jobs
	EntityType EntityType
	Origin     Origin
	SourceID   string
	// Manual marks operator-triggered jobs (retry-failed, sync-one)
	Manual bool
	// EnqueuedAt is when the job entered the queue
	EnqueuedAt time.Time
}

// NewEventJob wraps a change event for dispatch
func NewEventJob(event *ChangeEvent) *SyncJob {
	return &SyncJob{
		Event:      event,
		EntityType: event.EntityType,
		Origin:     event.Origin,
		SourceID:   event.SourceID,
		EnqueuedAt: time.Now(),
	}
}

// NewReconcileJob requests a fresh resolve-and-apply for one entity
func NewReconcileJob(entityType EntityType, origin Origin, sourceID string, manual bool) *SyncJob {
	return &SyncJob{
		EntityType: entityType,
		Origin:     origin,
		SourceID:   sourceID,
		Manual:     manual,
		EnqueuedAt: time.Now(),
	}
}

// Key returns the serialization key: jobs with equal keys must be handled
// by the same worker in submission order.
func (j *SyncJob) Key() string {
	return string(j.EntityType) + "/" + j.SourceID
}

// IsReconcile reports whether the job re-resolves from live state
func (j *SyncJob) IsReconcile() bool {
	return j.Event == nil
}
