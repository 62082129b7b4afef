package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validChangeEvent() *ChangeEvent {
	return &ChangeEvent{
		EntityType: EntityTypeProduct,
		Origin:     OriginRemote,
		SourceID:   "wix-1",
		Kind:       ChangeKindUpdated,
		ObservedAt: time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC),
		DedupeKey:  "evt-1",
	}
}

func TestChangeEvent_Validate(t *testing.T) {
	t.Run("accepts a well-formed event", func(t *testing.T) {
		assert.NoError(t, validChangeEvent().Validate())
	})

	t.Run("rejects invalid entity type", func(t *testing.T) {
		e := validChangeEvent()
		e.EntityType = "WIDGET"
		assert.ErrorIs(t, e.Validate(), ErrInvalidEntityType)
	})

	t.Run("rejects invalid origin", func(t *testing.T) {
		e := validChangeEvent()
		e.Origin = "UPSTREAM"
		assert.ErrorIs(t, e.Validate(), ErrInvalidOrigin)
	})

	t.Run("rejects missing source id", func(t *testing.T) {
		e := validChangeEvent()
		e.SourceID = ""
		assert.ErrorIs(t, e.Validate(), ErrMissingSourceID)
	})

	t.Run("rejects invalid change kind", func(t *testing.T) {
		e := validChangeEvent()
		e.Kind = "MUTATED"
		assert.ErrorIs(t, e.Validate(), ErrInvalidChangeKind)
	})
}

func TestChangeEvent_Key(t *testing.T) {
	e := validChangeEvent()
	assert.Equal(t, "PRODUCT/wix-1", e.Key())

	// The key ignores the origin: a webhook and a poll observation of the
	// same entity serialize onto the same worker.
	e.Origin = OriginLocal
	assert.Equal(t, "PRODUCT/wix-1", e.Key())
}

func TestNewDedupeKey(t *testing.T) {
	t.Run("deterministic for equal observations", func(t *testing.T) {
		a := NewDedupeKey(OriginRemote, EntityTypeProduct, "wix-1", "fp-1")
		b := NewDedupeKey(OriginRemote, EntityTypeProduct, "wix-1", "fp-1")
		assert.Equal(t, a, b)
		assert.Len(t, a, 64)
	})

	t.Run("every component participates", func(t *testing.T) {
		base := NewDedupeKey(OriginRemote, EntityTypeProduct, "wix-1", "fp-1")

		assert.NotEqual(t, base, NewDedupeKey(OriginLocal, EntityTypeProduct, "wix-1", "fp-1"))
		assert.NotEqual(t, base, NewDedupeKey(OriginRemote, EntityTypeOrder, "wix-1", "fp-1"))
		assert.NotEqual(t, base, NewDedupeKey(OriginRemote, EntityTypeProduct, "wix-2", "fp-1"))
		assert.NotEqual(t, base, NewDedupeKey(OriginRemote, EntityTypeProduct, "wix-1", "fp-2"))
	})
}

func TestSyncJob(t *testing.T) {
	t.Run("event jobs carry their change", func(t *testing.T) {
		e := validChangeEvent()
		j := NewEventJob(e)

		assert.Same(t, e, j.Event)
		assert.Equal(t, e.EntityType, j.EntityType)
		assert.Equal(t, e.Origin, j.Origin)
		assert.Equal(t, e.SourceID, j.SourceID)
		assert.False(t, j.IsReconcile())
		assert.False(t, j.Manual)
		assert.Equal(t, e.Key(), j.Key())
	})

	t.Run("reconcile jobs resolve from live state", func(t *testing.T) {
		j := NewReconcileJob(EntityTypeOrder, OriginLocal, "ord-5", true)

		assert.Nil(t, j.Event)
		assert.True(t, j.IsReconcile())
		assert.True(t, j.Manual)
		assert.Equal(t, "ORDER/ord-5", j.Key())
	})
}
