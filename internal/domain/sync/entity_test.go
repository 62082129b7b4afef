package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityType(t *testing.T) {
	t.Run("normalizes case and whitespace", func(t *testing.T) {
		e, err := ParseEntityType("  product ")
		require.NoError(t, err)
		assert.Equal(t, EntityTypeProduct, e)

		e, err = ParseEntityType("inventory_level")
		require.NoError(t, err)
		assert.Equal(t, EntityTypeInventoryLevel, e)
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		_, err := ParseEntityType("widget")
		assert.ErrorIs(t, err, ErrInvalidEntityType)

		_, err = ParseEntityType("")
		assert.ErrorIs(t, err, ErrInvalidEntityType)
	})

	t.Run("every listed type is valid", func(t *testing.T) {
		all := AllEntityTypes()
		require.Len(t, all, 4)
		for _, e := range all {
			assert.True(t, e.IsValid(), e.String())
		}
	})

	t.Run("display names", func(t *testing.T) {
		assert.Equal(t, "Product", EntityTypeProduct.DisplayName())
		assert.Equal(t, "Inventory level", EntityTypeInventoryLevel.DisplayName())
		assert.Equal(t, "WIDGET", EntityType("WIDGET").DisplayName())
	})
}

func TestParseOrigin(t *testing.T) {
	t.Run("parses both sides", func(t *testing.T) {
		o, err := ParseOrigin("local")
		require.NoError(t, err)
		assert.Equal(t, OriginLocal, o)

		o, err = ParseOrigin(" REMOTE ")
		require.NoError(t, err)
		assert.Equal(t, OriginRemote, o)
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		_, err := ParseOrigin("upstream")
		assert.ErrorIs(t, err, ErrInvalidOrigin)
	})

	t.Run("opposite flips the side", func(t *testing.T) {
		assert.Equal(t, OriginRemote, OriginLocal.Opposite())
		assert.Equal(t, OriginLocal, OriginRemote.Opposite())
	})
}

func TestSyncDirection(t *testing.T) {
	t.Run("parses case-insensitively", func(t *testing.T) {
		d, err := ParseSyncDirection("local_to_remote")
		require.NoError(t, err)
		assert.Equal(t, DirectionLocalToRemote, d)
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		_, err := ParseSyncDirection("SIDEWAYS")
		assert.ErrorIs(t, err, ErrInvalidDirection)
	})

	t.Run("authority gates", func(t *testing.T) {
		assert.True(t, DirectionBidirectional.AllowsLocalToRemote())
		assert.True(t, DirectionBidirectional.AllowsRemoteToLocal())

		assert.True(t, DirectionLocalToRemote.AllowsLocalToRemote())
		assert.False(t, DirectionLocalToRemote.AllowsRemoteToLocal())

		assert.False(t, DirectionRemoteToLocal.AllowsLocalToRemote())
		assert.True(t, DirectionRemoteToLocal.AllowsRemoteToLocal())

		assert.False(t, DirectionDisabled.AllowsLocalToRemote())
		assert.False(t, DirectionDisabled.AllowsRemoteToLocal())
	})
}

func TestSyncState(t *testing.T) {
	t.Run("parses case-insensitively", func(t *testing.T) {
		s, err := ParseSyncState("in_flight")
		require.NoError(t, err)
		assert.Equal(t, StateInFlight, s)
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		_, err := ParseSyncState("LIMBO")
		assert.ErrorIs(t, err, ErrInvalidSyncState)
	})

	t.Run("settled covers clean and conflict-resolved runs", func(t *testing.T) {
		assert.True(t, StateSynced.IsSettled())
		assert.True(t, StateConflict.IsSettled())

		assert.False(t, StatePending.IsSettled())
		assert.False(t, StateInFlight.IsSettled())
		assert.False(t, StateError.IsSettled())
	})
}

func TestParseTieBreak(t *testing.T) {
	t.Run("parses policies", func(t *testing.T) {
		tb, err := ParseTieBreak("most_recent_wins")
		require.NoError(t, err)
		assert.Equal(t, TieBreakMostRecentWins, tb)

		tb, err = ParseTieBreak("LOCAL_WINS")
		require.NoError(t, err)
		assert.Equal(t, TieBreakLocalWins, tb)
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		_, err := ParseTieBreak("coin_flip")
		assert.ErrorIs(t, err, ErrInvalidTieBreak)
	})
}
