// Package sync contains the core synchronization domain: the identity
// mapping between local and remote representations of business entities,
// the conflict resolution rules, and the ports through which the engine
// talks to the two systems it keeps aligned.
package sync

import "strings"

// ---------------------------------------------------------------------------
// Entity Types
// ---------------------------------------------------------------------------

// EntityType identifies a kind of business entity under synchronization.
type EntityType string

const (
	EntityTypeProduct        EntityType = "PRODUCT"
	EntityTypeOrder          EntityType = "ORDER"
	EntityTypeCustomer       EntityType = "CUSTOMER"
	EntityTypeInventoryLevel EntityType = "INVENTORY_LEVEL"
)

// IsValid checks if the entity type is a known value
func (e EntityType) IsValid() bool {
	switch e {
	case EntityTypeProduct, EntityTypeOrder, EntityTypeCustomer, EntityTypeInventoryLevel:
		return true
	}
	return false
}

// String returns the string representation
func (e EntityType) String() string {
	return string(e)
}

// DisplayName returns a human-readable name for activity titles
func (e EntityType) DisplayName() string {
	switch e {
	case EntityTypeProduct:
		return "Product"
	case EntityTypeOrder:
		return "Order"
	case EntityTypeCustomer:
		return "Customer"
	case EntityTypeInventoryLevel:
		return "Inventory level"
	default:
		return string(e)
	}
}

// AllEntityTypes returns every synchronizable entity type
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityTypeProduct,
		EntityTypeOrder,
		EntityTypeCustomer,
		EntityTypeInventoryLevel,
	}
}

// ParseEntityType parses a case-insensitive entity type string
func ParseEntityType(s string) (EntityType, error) {
	e := EntityType(strings.ToUpper(strings.TrimSpace(s)))
	if !e.IsValid() {
		return "", ErrInvalidEntityType
	}
	return e, nil
}

// ---------------------------------------------------------------------------
// Origin
// ---------------------------------------------------------------------------

// Origin identifies which system a change or identifier belongs to.
type Origin string

const (
	OriginLocal  Origin = "LOCAL"
	OriginRemote Origin = "REMOTE"
)

// IsValid checks if the origin is a known value
func (o Origin) IsValid() bool {
	return o == OriginLocal || o == OriginRemote
}

// String returns the string representation
func (o Origin) String() string {
	return string(o)
}

// Opposite returns the other side
func (o Origin) Opposite() Origin {
	if o == OriginLocal {
		return OriginRemote
	}
	return OriginLocal
}

// ParseOrigin parses a case-insensitive origin string
func ParseOrigin(s string) (Origin, error) {
	o := Origin(strings.ToUpper(strings.TrimSpace(s)))
	if !o.IsValid() {
		return "", ErrInvalidOrigin
	}
	return o, nil
}

// ---------------------------------------------------------------------------
// Change Kind
// ---------------------------------------------------------------------------

// ChangeKind classifies an observed change.
type ChangeKind string

const (
	ChangeKindCreated ChangeKind = "CREATED"
	ChangeKindUpdated ChangeKind = "UPDATED"
	ChangeKindDeleted ChangeKind = "DELETED"
)

// IsValid checks if the change kind is a known value
func (k ChangeKind) IsValid() bool {
	switch k {
	case ChangeKindCreated, ChangeKindUpdated, ChangeKindDeleted:
		return true
	}
	return false
}

// String returns the string representation
func (k ChangeKind) String() string {
	return string(k)
}

// ---------------------------------------------------------------------------
// Sync Direction
// ---------------------------------------------------------------------------

// SyncDirection controls which side's changes propagate for an entity.
type SyncDirection string

const (
	DirectionBidirectional SyncDirection = "BIDIRECTIONAL"
	DirectionLocalToRemote SyncDirection = "LOCAL_TO_REMOTE"
	DirectionRemoteToLocal SyncDirection = "REMOTE_TO_LOCAL"
	DirectionDisabled      SyncDirection = "DISABLED"
)

// IsValid checks if the direction is a known value
func (d SyncDirection) IsValid() bool {
	switch d {
	case DirectionBidirectional, DirectionLocalToRemote, DirectionRemoteToLocal, DirectionDisabled:
		return true
	}
	return false
}

// String returns the string representation
func (d SyncDirection) String() string {
	return string(d)
}

// AllowsLocalToRemote reports whether local changes may be pushed out
func (d SyncDirection) AllowsLocalToRemote() bool {
	return d == DirectionBidirectional || d == DirectionLocalToRemote
}

// AllowsRemoteToLocal reports whether remote changes may be pulled in
func (d SyncDirection) AllowsRemoteToLocal() bool {
	return d == DirectionBidirectional || d == DirectionRemoteToLocal
}

// ParseSyncDirection parses a case-insensitive direction string
func ParseSyncDirection(s string) (SyncDirection, error) {
	d := SyncDirection(strings.ToUpper(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", ErrInvalidDirection
	}
	return d, nil
}

// ---------------------------------------------------------------------------
// Sync State
// ---------------------------------------------------------------------------

// SyncState is the per-mapping synchronization state machine position.
type SyncState string

const (
	StatePending  SyncState = "PENDING"
	StateInFlight SyncState = "IN_FLIGHT"
	StateSynced   SyncState = "SYNCED"
	StateError    SyncState = "ERROR"
	// StateConflict marks a mapping whose last run auto-resolved a
	// both-sides-changed conflict. It counts as synced for scheduling
	// but is surfaced distinctly for review.
	StateConflict SyncState = "CONFLICT"
)

// IsValid checks if the state is a known value
func (s SyncState) IsValid() bool {
	switch s {
	case StatePending, StateInFlight, StateSynced, StateError, StateConflict:
		return true
	}
	return false
}

// String returns the string representation
func (s SyncState) String() string {
	return string(s)
}

// IsSettled reports whether the last run finished cleanly
func (s SyncState) IsSettled() bool {
	return s == StateSynced || s == StateConflict
}

// ParseSyncState parses a case-insensitive state string
func ParseSyncState(s string) (SyncState, error) {
	st := SyncState(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", ErrInvalidSyncState
	}
	return st, nil
}

// ---------------------------------------------------------------------------
// Attempt Outcome
// ---------------------------------------------------------------------------

// Outcome classifies a single sync attempt.
type Outcome string

const (
	OutcomeSuccess          Outcome = "SUCCESS"
	OutcomeRetryableFailure Outcome = "RETRYABLE_FAILURE"
	OutcomeFatalFailure     Outcome = "FATAL_FAILURE"
)

// IsValid checks if the outcome is a known value
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomeRetryableFailure, OutcomeFatalFailure:
		return true
	}
	return false
}

// String returns the string representation
func (o Outcome) String() string {
	return string(o)
}

// ---------------------------------------------------------------------------
// Tie Break Policy
// ---------------------------------------------------------------------------

// TieBreak selects the winner when both sides changed since the last sync.
type TieBreak string

const (
	TieBreakMostRecentWins TieBreak = "MOST_RECENT_WINS"
	TieBreakRemoteWins     TieBreak = "REMOTE_WINS"
	TieBreakLocalWins      TieBreak = "LOCAL_WINS"
)

// IsValid checks if the tie break policy is a known value
func (t TieBreak) IsValid() bool {
	switch t {
	case TieBreakMostRecentWins, TieBreakRemoteWins, TieBreakLocalWins:
		return true
	}
	return false
}

// String returns the string representation
func (t TieBreak) String() string {
	return string(t)
}

// ParseTieBreak parses a case-insensitive tie break string
func ParseTieBreak(s string) (TieBreak, error) {
	t := TieBreak(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", ErrInvalidTieBreak
	}
	return t, nil
}
