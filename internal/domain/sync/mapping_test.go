package sync

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntityMapping(t *testing.T) {
	t.Run("seeds the local side for local-origin entities", func(t *testing.T) {
		m, err := NewEntityMapping(EntityTypeProduct, OriginLocal, "prod-1", DirectionBidirectional)
		require.NoError(t, err)
		require.NotNil(t, m)

		assert.NotEqual(t, uuid.Nil, m.ID)
		assert.Equal(t, EntityTypeProduct, m.EntityType)
		assert.Equal(t, "prod-1", m.LocalID)
		assert.Empty(t, m.RemoteID)
		assert.Equal(t, StatePending, m.State)
		assert.Equal(t, DirectionBidirectional, m.Direction)
		assert.Equal(t, 1, m.Version)
		assert.Equal(t, 0, m.AttemptCount)
		assert.Nil(t, m.LastSyncedAt)
		assert.Equal(t, m.CreatedAt, m.UpdatedAt)
	})

	t.Run("seeds the remote side for remote-origin entities", func(t *testing.T) {
		m, err := NewEntityMapping(EntityTypeCustomer, OriginRemote, "wix-9", DirectionBidirectional)
		require.NoError(t, err)

		assert.Equal(t, "wix-9", m.RemoteID)
		assert.Empty(t, m.LocalID)
	})

	t.Run("defaults an empty direction to bidirectional", func(t *testing.T) {
		m, err := NewEntityMapping(EntityTypeOrder, OriginLocal, "ord-1", "")
		require.NoError(t, err)
		assert.Equal(t, DirectionBidirectional, m.Direction)
	})

	t.Run("keeps an explicit direction", func(t *testing.T) {
		m, err := NewEntityMapping(EntityTypeOrder, OriginLocal, "ord-2", DirectionLocalToRemote)
		require.NoError(t, err)
		assert.Equal(t, DirectionLocalToRemote, m.Direction)
	})

	t.Run("fails with invalid entity type", func(t *testing.T) {
		_, err := NewEntityMapping("WIDGET", OriginLocal, "w-1", DirectionBidirectional)
		assert.ErrorIs(t, err, ErrInvalidEntityType)
	})

	t.Run("fails with invalid origin", func(t *testing.T) {
		_, err := NewEntityMapping(EntityTypeProduct, "UPSTREAM", "prod-1", DirectionBidirectional)
		assert.ErrorIs(t, err, ErrInvalidOrigin)
	})

	t.Run("fails with empty source id", func(t *testing.T) {
		_, err := NewEntityMapping(EntityTypeProduct, OriginLocal, "", DirectionBidirectional)
		assert.ErrorIs(t, err, ErrMissingSourceID)
	})

	t.Run("fails with invalid direction", func(t *testing.T) {
		_, err := NewEntityMapping(EntityTypeProduct, OriginLocal, "prod-1", "SIDEWAYS")
		assert.ErrorIs(t, err, ErrInvalidDirection)
	})
}

func TestEntityMapping_Accessors(t *testing.T) {
	m := &EntityMapping{
		EntityType:        EntityTypeProduct,
		LocalID:           "prod-1",
		RemoteID:          "wix-1",
		LocalFingerprint:  "lfp",
		RemoteFingerprint: "rfp",
	}

	t.Run("source id per side", func(t *testing.T) {
		assert.Equal(t, "prod-1", m.SourceID(OriginLocal))
		assert.Equal(t, "wix-1", m.SourceID(OriginRemote))
	})

	t.Run("fingerprint per side", func(t *testing.T) {
		assert.Equal(t, "lfp", m.Fingerprint(OriginLocal))
		assert.Equal(t, "rfp", m.Fingerprint(OriginRemote))
	})

	t.Run("linked only when both ids are present", func(t *testing.T) {
		assert.True(t, m.IsLinked())
		assert.False(t, (&EntityMapping{LocalID: "prod-1"}).IsLinked())
		assert.False(t, (&EntityMapping{RemoteID: "wix-1"}).IsLinked())
	})
}

func TestEntityMapping_Transitions(t *testing.T) {
	at := time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC)

	newMapping := func(t *testing.T) *EntityMapping {
		m, err := NewEntityMapping(EntityTypeProduct, OriginLocal, "prod-1", DirectionBidirectional)
		require.NoError(t, err)
		return m
	}

	t.Run("begin attempt moves into flight", func(t *testing.T) {
		m := newMapping(t)
		m.BeginAttempt()
		assert.Equal(t, StateInFlight, m.State)
	})

	t.Run("linking records counterpart ids", func(t *testing.T) {
		m := newMapping(t)
		m.LinkRemote("wix-7")
		assert.Equal(t, "wix-7", m.RemoteID)
		assert.True(t, m.IsLinked())

		r, err := NewEntityMapping(EntityTypeProduct, OriginRemote, "wix-8", DirectionBidirectional)
		require.NoError(t, err)
		r.LinkLocal("prod-8")
		assert.Equal(t, "prod-8", r.LocalID)
	})

	t.Run("success clears the error trail", func(t *testing.T) {
		m := newMapping(t)
		m.RecordFailure("boom", at)
		m.RecordFailure("boom again", at.Add(time.Minute))
		require.Equal(t, 2, m.AttemptCount)

		m.RecordSuccess("lfp2", "rfp2", at.Add(2*time.Minute))

		assert.Equal(t, StateSynced, m.State)
		assert.Equal(t, "lfp2", m.LocalFingerprint)
		assert.Equal(t, "rfp2", m.RemoteFingerprint)
		require.NotNil(t, m.LastSyncedAt)
		assert.Equal(t, at.Add(2*time.Minute), *m.LastSyncedAt)
		assert.Empty(t, m.LastError)
		assert.Equal(t, 0, m.AttemptCount)
		assert.Equal(t, at.Add(2*time.Minute), m.UpdatedAt)
	})

	t.Run("failure accumulates the attempt count", func(t *testing.T) {
		m := newMapping(t)
		m.RecordFailure("remote 500", at)

		assert.Equal(t, StateError, m.State)
		assert.Equal(t, "remote 500", m.LastError)
		assert.Equal(t, 1, m.AttemptCount)

		m.RecordFailure("remote 500", at.Add(time.Minute))
		assert.Equal(t, 2, m.AttemptCount)
	})

	t.Run("resolved conflict is synced but stays visible", func(t *testing.T) {
		m := newMapping(t)
		m.RecordConflictResolved("lfp3", "rfp3", at, "both sides changed, remote wins")

		assert.Equal(t, StateConflict, m.State)
		assert.True(t, m.State.IsSettled())
		assert.Equal(t, "both sides changed, remote wins", m.LastError)
		assert.Equal(t, "lfp3", m.LocalFingerprint)
		assert.Equal(t, "rfp3", m.RemoteFingerprint)
		require.NotNil(t, m.LastSyncedAt)
		assert.Equal(t, 0, m.AttemptCount)
	})

	t.Run("disable removes the mapping from the sync population", func(t *testing.T) {
		m := newMapping(t)
		m.Disable()
		assert.Equal(t, DirectionDisabled, m.Direction)
		assert.False(t, m.Direction.AllowsLocalToRemote())
		assert.False(t, m.Direction.AllowsRemoteToLocal())
	})
}
