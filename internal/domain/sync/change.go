package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ChangeEvent is the normalized unit of work consumed by the orchestrator.
// Both the change fetcher and the webhook pipeline produce this shape, so
// polling and push share one downstream path. Events are never persisted
// beyond the dedupe window.
type ChangeEvent struct {
	// EntityType is the kind of business entity that changed
	EntityType EntityType
	// Origin is the side the change was observed on
	Origin Origin
	// SourceID is the entity's identifier on the origin side
	SourceID string
	// Kind classifies the change
	Kind ChangeKind
	// Payload is the origin side's snapshot at observation time; nil for
	// bare delete notifications that carry no body
	Payload *EntityState
	// ObservedAt is when the change was observed (event time when the
	// source provides one, otherwise receipt time)
	ObservedAt time.Time
	// DedupeKey identifies this observation for duplicate suppression
	DedupeKey string
}

// Validate checks the event is well formed
func (e *ChangeEvent) Validate() error {
	if !e.EntityType.IsValid() {
		return ErrInvalidEntityType
	}
	if !e.Origin.IsValid() {
		return ErrInvalidOrigin
	}
	if e.SourceID == "" {
		return ErrMissingSourceID
	}
	if !e.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidChangeKind, e.Kind)
	}
	return nil
}

// Key returns the serialization key: all events for the same entity on the
// same side must be processed in order by one worker.
func (e *ChangeEvent) Key() string {
	return string(e.EntityType) + "/" + e.SourceID
}

// NewDedupeKey derives a deterministic dedupe key for observations that do
// not carry a source-assigned event id: same origin, entity, and content
// always collapse to the same key.
func NewDedupeKey(origin Origin, entityType EntityType, sourceID, fingerprint string) string {
	sum := sha256.Sum256([]byte(string(origin) + "|" + string(entityType) + "|" + sourceID + "|" + fingerprint))
	return hex.EncodeToString(sum[:])
}
