package sync

// ---------------------------------------------------------------------------
// Decision
// ---------------------------------------------------------------------------

// Action is the write direction a resolution produces.
type Action string

const (
	ActionApplyToRemote Action = "APPLY_TO_REMOTE"
	ActionApplyToLocal  Action = "APPLY_TO_LOCAL"
	ActionNoOp          Action = "NO_OP"
)

// Decision is the outcome of conflict resolution for one entity.
type Decision struct {
	// Action is the write direction
	Action Action
	// Op is the operation the applier must perform for apply actions
	Op ChangeKind
	// Payload is the winning side's state for create/update applies
	Payload *EntityState
	// Reason explains the decision for logging and the activity feed
	Reason string
	// Conflicted marks a both-sides-changed situation that was resolved
	// automatically; recorded for visibility
	Conflicted bool
}

// Target returns the side the decision writes to
func (d Decision) Target() Origin {
	if d.Action == ActionApplyToRemote {
		return OriginRemote
	}
	return OriginLocal
}

// IsApply reports whether the decision requires a write
func (d Decision) IsApply() bool {
	return d.Action == ActionApplyToRemote || d.Action == ActionApplyToLocal
}

func noOp(reason string) Decision {
	return Decision{Action: ActionNoOp, Reason: reason}
}

// ---------------------------------------------------------------------------
// Resolver
// ---------------------------------------------------------------------------

// Resolver decides, for one entity, which side's state wins and whether a
// write is needed. It is pure: the same inputs always produce the same
// decision, and no I/O happens here.
type Resolver struct {
	tieBreak TieBreak
}

// NewResolver creates a resolver with the given tie break policy
func NewResolver(tieBreak TieBreak) (*Resolver, error) {
	if tieBreak == "" {
		tieBreak = TieBreakMostRecentWins
	}
	if !tieBreak.IsValid() {
		return nil, ErrInvalidTieBreak
	}
	return &Resolver{tieBreak: tieBreak}, nil
}

// TieBreak returns the configured policy
func (r *Resolver) TieBreak() TieBreak {
	return r.tieBreak
}

// Resolve compares both sides' current states against the fingerprints
// recorded at last sync and produces a Decision.
//
// A nil state means the record is absent on that side: absent with a
// recorded fingerprint is a deletion-shaped change, absent without one has
// simply never existed there.
func (r *Resolver) Resolve(direction SyncDirection, local, remote *EntityState, m *EntityMapping) Decision {
	if direction == DirectionDisabled {
		return noOp("direction disabled")
	}

	localChanged := sideChanged(local, m.LocalFingerprint)
	remoteChanged := sideChanged(remote, m.RemoteFingerprint)
	localDeleted := sideDeleted(local, m.LocalFingerprint)
	remoteDeleted := sideDeleted(remote, m.RemoteFingerprint)

	// Deletes propagate ahead of any concurrent update so removed records
	// are never resurrected.
	if localDeleted || remoteDeleted {
		return r.resolveDeletion(direction, m, localChanged, remoteChanged, localDeleted, remoteDeleted)
	}

	switch {
	case !localChanged && !remoteChanged:
		return noOp("fingerprints match")

	case localChanged && !remoteChanged:
		if !direction.AllowsLocalToRemote() {
			return noOp("ignored: local side is not authoritative")
		}
		return apply(ActionApplyToRemote, local, remote, m.RemoteID, "local changed since last sync")

	case !localChanged && remoteChanged:
		if !direction.AllowsRemoteToLocal() {
			return noOp("ignored: remote side is not authoritative")
		}
		return apply(ActionApplyToLocal, remote, local, m.LocalID, "remote changed since last sync")

	default: // both changed
		return r.resolveBothChanged(direction, local, remote, m)
	}
}

// resolveBothChanged handles the concurrent-modification cases.
func (r *Resolver) resolveBothChanged(direction SyncDirection, local, remote *EntityState, m *EntityMapping) Decision {
	// One-directional modes have no conflicts: the authoritative side
	// overwrites unconditionally.
	if direction == DirectionLocalToRemote {
		return apply(ActionApplyToRemote, local, remote, m.RemoteID, "local overwrites: remote side is not authoritative")
	}
	if direction == DirectionRemoteToLocal {
		return apply(ActionApplyToLocal, remote, local, m.LocalID, "remote overwrites: local side is not authoritative")
	}

	winner := r.pickWinner(local, remote)
	var d Decision
	if winner == OriginLocal {
		d = apply(ActionApplyToRemote, local, remote, m.RemoteID, "conflict: both sides changed, local wins ("+string(r.tieBreak)+")")
	} else {
		d = apply(ActionApplyToLocal, remote, local, m.LocalID, "conflict: both sides changed, remote wins ("+string(r.tieBreak)+")")
	}
	d.Conflicted = true
	return d
}

// pickWinner applies the tie break policy. Equal timestamps fall to the
// remote side, the storefront being the customer-facing system.
func (r *Resolver) pickWinner(local, remote *EntityState) Origin {
	switch r.tieBreak {
	case TieBreakLocalWins:
		return OriginLocal
	case TieBreakRemoteWins:
		return OriginRemote
	default:
		if local != nil && remote != nil && local.ModifiedAt.After(remote.ModifiedAt) {
			return OriginLocal
		}
		return OriginRemote
	}
}

// resolveDeletion propagates a delete observed on either side.
func (r *Resolver) resolveDeletion(direction SyncDirection, m *EntityMapping, localChanged, remoteChanged, localDeleted, remoteDeleted bool) Decision {
	if localDeleted && remoteDeleted {
		return noOp("deleted on both sides")
	}

	conflicted := localChanged && remoteChanged

	if localDeleted {
		if !direction.AllowsLocalToRemote() {
			return noOp("ignored: local delete, local side is not authoritative")
		}
		if m.RemoteID == "" {
			return noOp("local deleted before remote counterpart existed")
		}
		return Decision{
			Action:     ActionApplyToRemote,
			Op:         ChangeKindDeleted,
			Reason:     "local deleted, propagating delete",
			Conflicted: conflicted,
		}
	}

	if !direction.AllowsRemoteToLocal() {
		return noOp("ignored: remote delete, remote side is not authoritative")
	}
	if m.LocalID == "" {
		return noOp("remote deleted before local counterpart existed")
	}
	return Decision{
		Action:     ActionApplyToLocal,
		Op:         ChangeKindDeleted,
		Reason:     "remote deleted, propagating delete",
		Conflicted: conflicted,
	}
}

// apply builds a create-or-update decision toward the side holding
// counterpart. A missing counterpart yields create-then-link semantics.
func apply(action Action, winner, counterpart *EntityState, counterpartID, reason string) Decision {
	op := ChangeKindUpdated
	if counterpart == nil && counterpartID == "" {
		op = ChangeKindCreated
	} else if counterpart == nil {
		// Linked but gone without ever recording content; recreate.
		op = ChangeKindCreated
	}
	return Decision{
		Action:  action,
		Op:      op,
		Payload: winner,
		Reason:  reason,
	}
}

// sideChanged reports whether a side differs from its state at last sync
func sideChanged(state *EntityState, recordedFP string) bool {
	if state == nil {
		return recordedFP != ""
	}
	if state.Deleted {
		return true
	}
	return state.Fingerprint() != recordedFP
}

// sideDeleted reports whether a side's change is a deletion
func sideDeleted(state *EntityState, recordedFP string) bool {
	if state == nil {
		return recordedFP != ""
	}
	return state.Deleted
}
