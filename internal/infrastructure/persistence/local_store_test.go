package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
)

func setupLocalStoreTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.LocalProductModel{},
		&models.LocalCustomerModel{},
		&models.LocalSalesOrderModel{},
		&models.LocalInventoryItemModel{},
	)
	require.NoError(t, err)

	return db
}

func newLocalStore(t *testing.T) (*GormLocalStore, *gorm.DB) {
	db := setupLocalStoreTestDB(t)
	return NewGormLocalStore(db, "MAIN", "STANDARD"), db
}

func remoteProductState(sku, name string, price string) *syncdomain.EntityState {
	return &syncdomain.EntityState{
		EntityType: syncdomain.EntityTypeProduct,
		Origin:     syncdomain.OriginRemote,
		ID:         "wix-" + sku,
		Attributes: map[string]any{
			"sku":         sku,
			"name":        name,
			"description": "",
			"price":       price,
			"currency":    "USD",
			"active":      true,
		},
		ModifiedAt: time.Now(),
	}
}

func TestGormLocalStore_CreateAndGet(t *testing.T) {
	store, db := newLocalStore(t)
	ctx := context.Background()

	t.Run("creates a product with defaults and sync marker", func(t *testing.T) {
		id, err := store.Create(ctx, syncdomain.EntityTypeProduct, remoteProductState("SKU-1", "Widget", "19.90"))
		require.NoError(t, err)
		require.NotEmpty(t, id)

		var row models.LocalProductModel
		require.NoError(t, db.First(&row, "id = ?", id).Error)
		assert.Equal(t, "SKU-1", row.SKU)
		assert.Equal(t, "Widget", row.Name)
		assert.Equal(t, "STANDARD", row.PriceList)
		assert.Equal(t, syncdomain.OriginRemote.String(), row.LastSyncOrigin)
		assert.True(t, row.Active)
		assert.True(t, decimal.RequireFromString("19.90").Equal(row.Price))
	})

	t.Run("get returns the normalized state", func(t *testing.T) {
		id, err := store.Create(ctx, syncdomain.EntityTypeProduct, remoteProductState("SKU-2", "Gadget", "5.00"))
		require.NoError(t, err)

		state, err := store.Get(ctx, syncdomain.EntityTypeProduct, id)
		require.NoError(t, err)
		assert.Equal(t, syncdomain.OriginLocal, state.Origin)
		assert.Equal(t, id, state.ID)
		assert.Equal(t, "SKU-2", state.Attributes["sku"])
		assert.False(t, state.Deleted)
	})

	t.Run("creates an inventory level in the default warehouse", func(t *testing.T) {
		state := &syncdomain.EntityState{
			EntityType: syncdomain.EntityTypeInventoryLevel,
			Origin:     syncdomain.OriginRemote,
			ID:         "wix-inv-1",
			Attributes: map[string]any{"sku": "SKU-1", "quantity": int64(40)},
		}
		id, err := store.Create(ctx, syncdomain.EntityTypeInventoryLevel, state)
		require.NoError(t, err)

		var row models.LocalInventoryItemModel
		require.NoError(t, db.First(&row, "id = ?", id).Error)
		assert.Equal(t, "MAIN", row.Warehouse)
		assert.EqualValues(t, 40, row.Quantity)
	})

	t.Run("duplicate natural key fails with a conflict", func(t *testing.T) {
		_, err := store.Create(ctx, syncdomain.EntityTypeProduct, remoteProductState("SKU-1", "Widget Again", "1.00"))
		assert.ErrorIs(t, err, syncdomain.ErrConflictingIdentity)
	})

	t.Run("get of an unknown id fails", func(t *testing.T) {
		_, err := store.Get(ctx, syncdomain.EntityTypeProduct, uuid.NewString())
		assert.ErrorIs(t, err, syncdomain.ErrLocalNotFound)
	})

	t.Run("get of a malformed id fails", func(t *testing.T) {
		_, err := store.Get(ctx, syncdomain.EntityTypeProduct, "not-a-uuid")
		assert.ErrorIs(t, err, syncdomain.ErrLocalNotFound)
	})

	t.Run("unknown entity type is rejected", func(t *testing.T) {
		_, err := store.Create(ctx, syncdomain.EntityType("GIFT_CARD"), remoteProductState("SKU-9", "Card", "1.00"))
		assert.ErrorIs(t, err, syncdomain.ErrInvalidEntityType)
	})
}

func TestGormLocalStore_Update(t *testing.T) {
	store, db := newLocalStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, syncdomain.EntityTypeProduct, remoteProductState("SKU-U", "Before", "10.00"))
	require.NoError(t, err)

	updated := remoteProductState("SKU-U", "After", "12.50")
	require.NoError(t, store.Update(ctx, syncdomain.EntityTypeProduct, id, updated))

	var row models.LocalProductModel
	require.NoError(t, db.First(&row, "id = ?", id).Error)
	assert.Equal(t, "After", row.Name)
	assert.True(t, decimal.RequireFromString("12.50").Equal(row.Price))
	assert.Equal(t, syncdomain.OriginRemote.String(), row.LastSyncOrigin)

	t.Run("update of an unknown id fails", func(t *testing.T) {
		err := store.Update(ctx, syncdomain.EntityTypeProduct, uuid.NewString(), updated)
		assert.ErrorIs(t, err, syncdomain.ErrLocalNotFound)
	})

	t.Run("absent attributes keep current values", func(t *testing.T) {
		partial := &syncdomain.EntityState{
			EntityType: syncdomain.EntityTypeProduct,
			Origin:     syncdomain.OriginRemote,
			ID:         "wix-SKU-U",
			Attributes: map[string]any{"name": "Renamed"},
		}
		require.NoError(t, store.Update(ctx, syncdomain.EntityTypeProduct, id, partial))

		var after models.LocalProductModel
		require.NoError(t, db.First(&after, "id = ?", id).Error)
		assert.Equal(t, "Renamed", after.Name)
		assert.Equal(t, "SKU-U", after.SKU)
		assert.True(t, decimal.RequireFromString("12.50").Equal(after.Price))
	})
}

func TestGormLocalStore_Delete(t *testing.T) {
	store, db := newLocalStore(t)
	ctx := context.Background()

	t.Run("product delete deactivates", func(t *testing.T) {
		id, err := store.Create(ctx, syncdomain.EntityTypeProduct, remoteProductState("SKU-D", "Doomed", "3.00"))
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, syncdomain.EntityTypeProduct, id))

		var row models.LocalProductModel
		require.NoError(t, db.First(&row, "id = ?", id).Error)
		assert.False(t, row.Active)

		state, err := store.Get(ctx, syncdomain.EntityTypeProduct, id)
		require.NoError(t, err)
		assert.True(t, state.Deleted)
	})

	t.Run("order delete cancels", func(t *testing.T) {
		orderState := &syncdomain.EntityState{
			EntityType: syncdomain.EntityTypeOrder,
			Origin:     syncdomain.OriginRemote,
			ID:         "wix-ord-1",
			Attributes: map[string]any{
				"number":         "SO-1001",
				"customer_email": "jo@example.com",
				"status":         "NEW",
				"total":          "42.00",
				"currency":       "USD",
			},
		}
		id, err := store.Create(ctx, syncdomain.EntityTypeOrder, orderState)
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, syncdomain.EntityTypeOrder, id))

		var row models.LocalSalesOrderModel
		require.NoError(t, db.First(&row, "id = ?", id).Error)
		assert.Equal(t, "CANCELLED", row.Status)
	})

	t.Run("inventory delete zeroes the level", func(t *testing.T) {
		state := &syncdomain.EntityState{
			EntityType: syncdomain.EntityTypeInventoryLevel,
			Origin:     syncdomain.OriginRemote,
			ID:         "wix-inv-d",
			Attributes: map[string]any{"sku": "SKU-D", "quantity": int64(12)},
		}
		id, err := store.Create(ctx, syncdomain.EntityTypeInventoryLevel, state)
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, syncdomain.EntityTypeInventoryLevel, id))

		var row models.LocalInventoryItemModel
		require.NoError(t, db.First(&row, "id = ?", id).Error)
		assert.Zero(t, row.Quantity)
	})

	t.Run("delete of an unknown id fails", func(t *testing.T) {
		err := store.Delete(ctx, syncdomain.EntityTypeCustomer, uuid.NewString())
		assert.ErrorIs(t, err, syncdomain.ErrLocalNotFound)
	})
}

func TestGormLocalStore_ListChangedSince(t *testing.T) {
	store, db := newLocalStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-1 * time.Hour)

	insertProduct := func(sku string, updatedAt time.Time, syncOrigin string) uuid.UUID {
		row := models.LocalProductModel{
			ID:             uuid.New(),
			SKU:            sku,
			Name:           "Product " + sku,
			Price:          decimal.New(100, -1),
			Currency:       "USD",
			Active:         true,
			LastSyncOrigin: syncOrigin,
			CreatedAt:      updatedAt,
			UpdatedAt:      updatedAt,
		}
		require.NoError(t, db.Create(&row).Error)
		return row.ID
	}

	first := insertProduct("LC-1", base.Add(1*time.Minute), "")
	second := insertProduct("LC-2", base.Add(2*time.Minute), "")
	insertProduct("LC-3", base.Add(3*time.Minute), syncdomain.OriginRemote.String())
	insertProduct("LC-0", base.Add(-10*time.Minute), "")

	t.Run("returns operator edits after the watermark, oldest first", func(t *testing.T) {
		records, err := store.ListChangedSince(ctx, syncdomain.EntityTypeProduct, base, 10)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, first.String(), records[0].ID)
		assert.Equal(t, second.String(), records[1].ID)
		assert.True(t, records[0].ModifiedAt.Before(records[1].ModifiedAt))
	})

	t.Run("sync-applied rows are excluded", func(t *testing.T) {
		records, err := store.ListChangedSince(ctx, syncdomain.EntityTypeProduct, base, 10)
		require.NoError(t, err)
		for _, rec := range records {
			assert.NotEqual(t, "LC-3", rec.State.Attributes["sku"])
		}
	})

	t.Run("honors the limit", func(t *testing.T) {
		records, err := store.ListChangedSince(ctx, syncdomain.EntityTypeProduct, base, 1)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, first.String(), records[0].ID)
	})

	t.Run("watermark excludes older rows", func(t *testing.T) {
		records, err := store.ListChangedSince(ctx, syncdomain.EntityTypeProduct, base.Add(90*time.Second), 10)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, second.String(), records[0].ID)
	})

	t.Run("empty scan for another entity type", func(t *testing.T) {
		records, err := store.ListChangedSince(ctx, syncdomain.EntityTypeCustomer, base, 10)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}
