package models

import (
	"time"

	"github.com/google/uuid"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
)

// EntityMappingModel is the persistence model for the EntityMapping domain entity.
//
// The two partial unique indexes enforce that a local or remote identifier is
// linked by at most one mapping per entity type. Rows where a side is not yet
// linked (empty identifier) are excluded from the constraint.
type EntityMappingModel struct {
	ID                uuid.UUID  `gorm:"type:uuid;primary_key"`
	EntityType        string     `gorm:"type:varchar(20);not null;uniqueIndex:uq_entity_mappings_local,priority:1,where:local_id <> '';uniqueIndex:uq_entity_mappings_remote,priority:1,where:remote_id <> ''"`
	LocalID           string     `gorm:"type:varchar(100);not null;default:'';uniqueIndex:uq_entity_mappings_local,priority:2,where:local_id <> ''"`
	RemoteID          string     `gorm:"type:varchar(100);not null;default:'';uniqueIndex:uq_entity_mappings_remote,priority:2,where:remote_id <> ''"`
	Direction         string     `gorm:"type:varchar(20);not null;default:'BIDIRECTIONAL'"`
	State             string     `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_entity_mappings_state"`
	LocalFingerprint  string     `gorm:"type:varchar(64);not null;default:''"`
	RemoteFingerprint string     `gorm:"type:varchar(64);not null;default:''"`
	LastSyncedAt      *time.Time `gorm:"index"`
	LastError         string     `gorm:"type:text"`
	AttemptCount      int        `gorm:"not null;default:0"`
	Version           int        `gorm:"not null;default:1"`
	CreatedAt         time.Time  `gorm:"not null"`
	UpdatedAt         time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (EntityMappingModel) TableName() string {
	return "entity_mappings"
}

// ToDomain converts the persistence model to a domain EntityMapping entity.
func (m *EntityMappingModel) ToDomain() *syncdomain.EntityMapping {
	return &syncdomain.EntityMapping{
		ID:                m.ID,
		EntityType:        syncdomain.EntityType(m.EntityType),
		LocalID:           m.LocalID,
		RemoteID:          m.RemoteID,
		Direction:         syncdomain.SyncDirection(m.Direction),
		State:             syncdomain.SyncState(m.State),
		LocalFingerprint:  m.LocalFingerprint,
		RemoteFingerprint: m.RemoteFingerprint,
		LastSyncedAt:      m.LastSyncedAt,
		LastError:         m.LastError,
		AttemptCount:      m.AttemptCount,
		Version:           m.Version,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain EntityMapping entity.
func (m *EntityMappingModel) FromDomain(em *syncdomain.EntityMapping) {
	m.ID = em.ID
	m.EntityType = em.EntityType.String()
	m.LocalID = em.LocalID
	m.RemoteID = em.RemoteID
	m.Direction = em.Direction.String()
	m.State = em.State.String()
	m.LocalFingerprint = em.LocalFingerprint
	m.RemoteFingerprint = em.RemoteFingerprint
	m.LastSyncedAt = em.LastSyncedAt
	m.LastError = em.LastError
	m.AttemptCount = em.AttemptCount
	m.Version = em.Version
	m.CreatedAt = em.CreatedAt
	m.UpdatedAt = em.UpdatedAt
}

// EntityMappingModelFromDomain creates a new persistence model from a domain EntityMapping entity.
func EntityMappingModelFromDomain(em *syncdomain.EntityMapping) *EntityMappingModel {
	m := &EntityMappingModel{}
	m.FromDomain(em)
	return m
}

// SyncAttemptModel is the persistence model for the SyncAttempt domain entity.
type SyncAttemptModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	EntityType    string    `gorm:"type:varchar(20);not null;index:idx_sync_attempts_entity_occurred,priority:1"`
	LocalID       string    `gorm:"type:varchar(100);not null;default:''"`
	RemoteID      string    `gorm:"type:varchar(100);not null;default:''"`
	Outcome       string    `gorm:"type:varchar(20);not null;index:idx_sync_attempts_outcome"`
	AttemptNumber int       `gorm:"not null;default:0"`
	Title         string    `gorm:"type:varchar(255);not null;default:''"`
	Detail        string    `gorm:"type:text"`
	OccurredAt    time.Time `gorm:"not null;index:idx_sync_attempts_entity_occurred,priority:2;index:idx_sync_attempts_occurred"`
}

// TableName returns the table name for GORM
func (SyncAttemptModel) TableName() string {
	return "sync_attempts"
}

// ToDomain converts the persistence model to a domain SyncAttempt entity.
func (m *SyncAttemptModel) ToDomain() *syncdomain.SyncAttempt {
	return &syncdomain.SyncAttempt{
		ID:            m.ID,
		EntityType:    syncdomain.EntityType(m.EntityType),
		LocalID:       m.LocalID,
		RemoteID:      m.RemoteID,
		Outcome:       syncdomain.Outcome(m.Outcome),
		AttemptNumber: m.AttemptNumber,
		Title:         m.Title,
		Detail:        m.Detail,
		OccurredAt:    m.OccurredAt,
	}
}

// FromDomain populates the persistence model from a domain SyncAttempt entity.
func (m *SyncAttemptModel) FromDomain(a *syncdomain.SyncAttempt) {
	m.ID = a.ID
	m.EntityType = a.EntityType.String()
	m.LocalID = a.LocalID
	m.RemoteID = a.RemoteID
	m.Outcome = a.Outcome.String()
	m.AttemptNumber = a.AttemptNumber
	m.Title = a.Title
	m.Detail = a.Detail
	m.OccurredAt = a.OccurredAt
}

// SyncAttemptModelFromDomain creates a new persistence model from a domain SyncAttempt entity.
func SyncAttemptModelFromDomain(a *syncdomain.SyncAttempt) *SyncAttemptModel {
	m := &SyncAttemptModel{}
	m.FromDomain(a)
	return m
}

// SyncCursorModel is the persistence model for the SyncCursor domain entity.
// A cursor row is keyed by entity type and origin so each feed advances
// independently.
type SyncCursorModel struct {
	EntityType string    `gorm:"type:varchar(20);primaryKey"`
	Origin     string    `gorm:"type:varchar(10);primaryKey"`
	Cursor     string    `gorm:"type:text;not null;default:''"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncCursorModel) TableName() string {
	return "sync_cursors"
}

// ToDomain converts the persistence model to a domain SyncCursor entity.
func (m *SyncCursorModel) ToDomain() *syncdomain.SyncCursor {
	return &syncdomain.SyncCursor{
		EntityType: syncdomain.EntityType(m.EntityType),
		Origin:     syncdomain.Origin(m.Origin),
		Cursor:     m.Cursor,
		UpdatedAt:  m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain SyncCursor entity.
func (m *SyncCursorModel) FromDomain(c *syncdomain.SyncCursor) {
	m.EntityType = c.EntityType.String()
	m.Origin = c.Origin.String()
	m.Cursor = c.Cursor
	m.UpdatedAt = c.UpdatedAt
}
