package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// EntityMapping
// ---------------------------------------------------------------------------

// EntityMapping is the durable identity bridge between one local and one
// remote representation of a business entity. It is the engine's single
// source of truth for what has been synchronized and how the last run
// ended. Mappings are never deleted; they leave the active population only
// by being disabled or by resting in error.
type EntityMapping struct {
	// ID is the mapping identifier
	ID uuid.UUID
	// EntityType is the kind of business entity
	EntityType EntityType
	// LocalID is the identifier in the local system, empty until the
	// local counterpart exists
	LocalID string
	// RemoteID is the identifier on the remote platform, empty until the
	// remote counterpart exists
	RemoteID string
	// Direction controls which side's changes propagate
	Direction SyncDirection
	// State is the current state machine position
	State SyncState
	// LocalFingerprint is the content hash of the local side at last sync
	LocalFingerprint string
	// RemoteFingerprint is the content hash of the remote side at last sync
	RemoteFingerprint string
	// LastSyncedAt is when the last successful sync finished
	LastSyncedAt *time.Time
	// LastError holds the most recent failure detail
	LastError string
	// AttemptCount counts consecutive failed attempts since the last
	// success; reset to zero on success
	AttemptCount int
	// Version is the monotonic row version for optimistic concurrency
	Version int
	// CreatedAt is when the mapping was first observed
	CreatedAt time.Time
	// UpdatedAt is when the mapping was last written
	UpdatedAt time.Time
}

// NewEntityMapping creates a mapping from the first observed occurrence of
// an entity on either side.
func NewEntityMapping(entityType EntityType, origin Origin, sourceID string, direction SyncDirection) (*EntityMapping, error) {
	if !entityType.IsValid() {
		return nil, ErrInvalidEntityType
	}
	if !origin.IsValid() {
		return nil, ErrInvalidOrigin
	}
	if sourceID == "" {
		return nil, ErrMissingSourceID
	}
	if direction == "" {
		direction = DirectionBidirectional
	}
	if !direction.IsValid() {
		return nil, ErrInvalidDirection
	}

	now := time.Now()
	m := &EntityMapping{
		ID:         uuid.New(),
		EntityType: entityType,
		Direction:  direction,
		State:      StatePending,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if origin == OriginLocal {
		m.LocalID = sourceID
	} else {
		m.RemoteID = sourceID
	}
	return m, nil
}

// SourceID returns the identifier for the given side
func (m *EntityMapping) SourceID(origin Origin) string {
	if origin == OriginLocal {
		return m.LocalID
	}
	return m.RemoteID
}

// Fingerprint returns the recorded fingerprint for the given side
func (m *EntityMapping) Fingerprint(origin Origin) string {
	if origin == OriginLocal {
		return m.LocalFingerprint
	}
	return m.RemoteFingerprint
}

// IsLinked reports whether both sides have an identifier
func (m *EntityMapping) IsLinked() bool {
	return m.LocalID != "" && m.RemoteID != ""
}

// BeginAttempt moves the mapping into flight
func (m *EntityMapping) BeginAttempt() {
	m.State = StateInFlight
	m.UpdatedAt = time.Now()
}

// LinkLocal records a newly created local counterpart
func (m *EntityMapping) LinkLocal(localID string) {
	m.LocalID = localID
	m.UpdatedAt = time.Now()
}

// LinkRemote records a newly created remote counterpart
func (m *EntityMapping) LinkRemote(remoteID string) {
	m.RemoteID = remoteID
	m.UpdatedAt = time.Now()
}

// RecordSuccess finishes a clean run: fingerprints are advanced, the error
// trail and attempt count are cleared.
func (m *EntityMapping) RecordSuccess(localFP, remoteFP string, at time.Time) {
	m.State = StateSynced
	m.LocalFingerprint = localFP
	m.RemoteFingerprint = remoteFP
	m.LastSyncedAt = &at
	m.LastError = ""
	m.AttemptCount = 0
	m.UpdatedAt = at
}

// RecordConflictResolved finishes a run that auto-resolved a conflict. The
// mapping is synchronized but stays visibly marked until the next clean run.
func (m *EntityMapping) RecordConflictResolved(localFP, remoteFP string, at time.Time, detail string) {
	m.RecordSuccess(localFP, remoteFP, at)
	m.State = StateConflict
	m.LastError = detail
}

// RecordFailure finishes a failed run
func (m *EntityMapping) RecordFailure(detail string, at time.Time) {
	m.State = StateError
	m.LastError = detail
	m.AttemptCount++
	m.UpdatedAt = at
}

// Disable takes the mapping out of the sync population
func (m *EntityMapping) Disable() {
	m.Direction = DirectionDisabled
	m.UpdatedAt = time.Now()
}

// ---------------------------------------------------------------------------
// Repository Interfaces
// ---------------------------------------------------------------------------

// MappingReader provides read access to mappings
type MappingReader interface {
	// FindByID retrieves a mapping by its identifier
	FindByID(ctx context.Context, id uuid.UUID) (*EntityMapping, error)

	// FindByLocalID retrieves the mapping bound to a local identifier
	FindByLocalID(ctx context.Context, entityType EntityType, localID string) (*EntityMapping, error)

	// FindByRemoteID retrieves the mapping bound to a remote identifier
	FindByRemoteID(ctx context.Context, entityType EntityType, remoteID string) (*EntityMapping, error)

	// FindBySource dispatches to FindByLocalID or FindByRemoteID
	FindBySource(ctx context.Context, entityType EntityType, origin Origin, sourceID string) (*EntityMapping, error)
}

// MappingFinder provides query access to mappings
type MappingFinder interface {
	// FindAll retrieves mappings matching the filter
	FindAll(ctx context.Context, filter MappingFilter) ([]EntityMapping, error)

	// Count returns the number of mappings matching the filter
	Count(ctx context.Context, filter MappingFilter) (int64, error)

	// FindRetryCandidates retrieves error-state mappings that are not
	// disabled, oldest update first
	FindRetryCandidates(ctx context.Context, limit int) ([]EntityMapping, error)

	// CountByState aggregates mapping counts per state for one entity type
	CountByState(ctx context.Context, entityType EntityType) (map[SyncState]int64, error)
}

// MappingWriter provides write access to mappings
type MappingWriter interface {
	// Create persists a new mapping. Fails with ErrConflictingIdentity
	// when either side's identifier is already bound elsewhere.
	Create(ctx context.Context, mapping *EntityMapping) error

	// Update persists mapping changes guarded by the row version. Fails
	// with ErrStaleWrite when a concurrent writer advanced the version
	// and with ErrConflictingIdentity on a uniqueness violation.
	Update(ctx context.Context, mapping *EntityMapping) error
}

// MappingRepository combines all mapping persistence operations
type MappingRepository interface {
	MappingReader
	MappingFinder
	MappingWriter
}

// MappingFilter defines query criteria for mappings
type MappingFilter struct {
	EntityType *EntityType
	State      *SyncState
	Direction  *SyncDirection
	// HasError filters mappings carrying a non-empty last error
	HasError *bool

	Page     int
	PageSize int
}
