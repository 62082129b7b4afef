package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
)

// GormLocalStore implements the sync engine's LocalStore port over the
// local commerce tables. Every write stamps last_sync_origin so the
// watermark scan can tell sync-applied rows from operator edits; deletes
// are soft: products and customers deactivate, orders cancel, inventory
// levels zero out.
type GormLocalStore struct {
	db               *gorm.DB
	defaultWarehouse string
	defaultPriceList string
}

// NewGormLocalStore creates a new GormLocalStore
func NewGormLocalStore(db *gorm.DB, defaultWarehouse, defaultPriceList string) *GormLocalStore {
	return &GormLocalStore{
		db:               db,
		defaultWarehouse: defaultWarehouse,
		defaultPriceList: defaultPriceList,
	}
}

// ---------------------------------------------------------------------------
// LocalStore implementation
// ---------------------------------------------------------------------------

// ListChangedSince scans records modified after the watermark, oldest
// first. Rows whose latest write was a sync apply are excluded so applied
// remote changes never echo back into the outbound feed.
func (s *GormLocalStore) ListChangedSince(ctx context.Context, entityType syncdomain.EntityType, since time.Time, limit int) ([]syncdomain.LocalRecord, error) {
	query := s.db.WithContext(ctx).
		Where("updated_at > ? AND last_sync_origin <> ?", since, syncdomain.OriginRemote).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	switch entityType {
	case syncdomain.EntityTypeProduct:
		var rows []models.LocalProductModel
		if err := query.Find(&rows).Error; err != nil {
			return nil, err
		}
		records := make([]syncdomain.LocalRecord, len(rows))
		for i, row := range rows {
			records[i] = syncdomain.LocalRecord{ID: row.ID.String(), State: row.ToState(), ModifiedAt: row.UpdatedAt}
		}
		return records, nil

	case syncdomain.EntityTypeCustomer:
		var rows []models.LocalCustomerModel
		if err := query.Find(&rows).Error; err != nil {
			return nil, err
		}
		records := make([]syncdomain.LocalRecord, len(rows))
		for i, row := range rows {
			records[i] = syncdomain.LocalRecord{ID: row.ID.String(), State: row.ToState(), ModifiedAt: row.UpdatedAt}
		}
		return records, nil

	case syncdomain.EntityTypeOrder:
		var rows []models.LocalSalesOrderModel
		if err := query.Find(&rows).Error; err != nil {
			return nil, err
		}
		records := make([]syncdomain.LocalRecord, len(rows))
		for i, row := range rows {
			records[i] = syncdomain.LocalRecord{ID: row.ID.String(), State: row.ToState(), ModifiedAt: row.UpdatedAt}
		}
		return records, nil

	case syncdomain.EntityTypeInventoryLevel:
		var rows []models.LocalInventoryItemModel
		if err := query.Find(&rows).Error; err != nil {
			return nil, err
		}
		records := make([]syncdomain.LocalRecord, len(rows))
		for i, row := range rows {
			records[i] = syncdomain.LocalRecord{ID: row.ID.String(), State: row.ToState(), ModifiedAt: row.UpdatedAt}
		}
		return records, nil

	default:
		return nil, syncdomain.ErrInvalidEntityType
	}
}

// Get retrieves one record's current state
func (s *GormLocalStore) Get(ctx context.Context, entityType syncdomain.EntityType, localID string) (*syncdomain.EntityState, error) {
	id, err := uuid.Parse(localID)
	if err != nil {
		return nil, syncdomain.ErrLocalNotFound
	}

	switch entityType {
	case syncdomain.EntityTypeProduct:
		var row models.LocalProductModel
		if err := s.first(ctx, &row, id); err != nil {
			return nil, err
		}
		return row.ToState(), nil
	case syncdomain.EntityTypeCustomer:
		var row models.LocalCustomerModel
		if err := s.first(ctx, &row, id); err != nil {
			return nil, err
		}
		return row.ToState(), nil
	case syncdomain.EntityTypeOrder:
		var row models.LocalSalesOrderModel
		if err := s.first(ctx, &row, id); err != nil {
			return nil, err
		}
		return row.ToState(), nil
	case syncdomain.EntityTypeInventoryLevel:
		var row models.LocalInventoryItemModel
		if err := s.first(ctx, &row, id); err != nil {
			return nil, err
		}
		return row.ToState(), nil
	default:
		return nil, syncdomain.ErrInvalidEntityType
	}
}

// Create writes a new record from a snapshot and returns its identifier.
// Only remote-origin changes create local rows, so the sync marker is
// always stamped. Natural key collisions (sku, email, order number)
// surface as ErrConflictingIdentity for the caller to classify as fatal.
func (s *GormLocalStore) Create(ctx context.Context, entityType syncdomain.EntityType, state *syncdomain.EntityState) (string, error) {
	id := uuid.New()

	switch entityType {
	case syncdomain.EntityTypeProduct:
		row := models.LocalProductModel{
			ID:             id,
			Currency:       "USD",
			PriceList:      s.defaultPriceList,
			Active:         true,
			LastSyncOrigin: syncdomain.OriginRemote.String(),
		}
		row.ApplyState(state)
		if err := s.create(ctx, &row); err != nil {
			return "", err
		}
	case syncdomain.EntityTypeCustomer:
		row := models.LocalCustomerModel{
			ID:             id,
			Active:         true,
			LastSyncOrigin: syncdomain.OriginRemote.String(),
		}
		row.ApplyState(state)
		if err := s.create(ctx, &row); err != nil {
			return "", err
		}
	case syncdomain.EntityTypeOrder:
		row := models.LocalSalesOrderModel{
			ID:             id,
			Status:         "NEW",
			Currency:       "USD",
			PlacedAt:       time.Now(),
			LastSyncOrigin: syncdomain.OriginRemote.String(),
		}
		row.ApplyState(state)
		if err := s.create(ctx, &row); err != nil {
			return "", err
		}
	case syncdomain.EntityTypeInventoryLevel:
		row := models.LocalInventoryItemModel{
			ID:             id,
			Warehouse:      s.defaultWarehouse,
			TrackInventory: true,
			LastSyncOrigin: syncdomain.OriginRemote.String(),
		}
		row.ApplyState(state)
		if err := s.create(ctx, &row); err != nil {
			return "", err
		}
	default:
		return "", syncdomain.ErrInvalidEntityType
	}

	return id.String(), nil
}

// Update overwrites an existing record's business fields from a snapshot
func (s *GormLocalStore) Update(ctx context.Context, entityType syncdomain.EntityType, localID string, state *syncdomain.EntityState) error {
	id, err := uuid.Parse(localID)
	if err != nil {
		return syncdomain.ErrLocalNotFound
	}

	switch entityType {
	case syncdomain.EntityTypeProduct:
		var row models.LocalProductModel
		if err := s.first(ctx, &row, id); err != nil {
			return err
		}
		row.ApplyState(state)
		row.LastSyncOrigin = syncdomain.OriginRemote.String()
		return s.save(ctx, &row)
	case syncdomain.EntityTypeCustomer:
		var row models.LocalCustomerModel
		if err := s.first(ctx, &row, id); err != nil {
			return err
		}
		row.ApplyState(state)
		row.LastSyncOrigin = syncdomain.OriginRemote.String()
		return s.save(ctx, &row)
	case syncdomain.EntityTypeOrder:
		var row models.LocalSalesOrderModel
		if err := s.first(ctx, &row, id); err != nil {
			return err
		}
		row.ApplyState(state)
		row.LastSyncOrigin = syncdomain.OriginRemote.String()
		return s.save(ctx, &row)
	case syncdomain.EntityTypeInventoryLevel:
		var row models.LocalInventoryItemModel
		if err := s.first(ctx, &row, id); err != nil {
			return err
		}
		row.ApplyState(state)
		row.LastSyncOrigin = syncdomain.OriginRemote.String()
		return s.save(ctx, &row)
	default:
		return syncdomain.ErrInvalidEntityType
	}
}

// Delete soft-removes a record: products and customers deactivate, orders
// move to CANCELLED, inventory levels zero out. Rows are never dropped so
// the identity the mapping points at stays resolvable.
func (s *GormLocalStore) Delete(ctx context.Context, entityType syncdomain.EntityType, localID string) error {
	id, err := uuid.Parse(localID)
	if err != nil {
		return syncdomain.ErrLocalNotFound
	}

	switch entityType {
	case syncdomain.EntityTypeProduct:
		var row models.LocalProductModel
		if err := s.first(ctx, &row, id); err != nil {
			return err
		}
		row.Active = false
		row.LastSyncOrigin = syncdomain.OriginRemote.String()
		return s.save(ctx, &row)
	case syncdomain.EntityTypeCustomer:
		var row models.LocalCustomerModel
		if err := s.first(ctx, &row, id); err != nil {
			return err
		}
		row.Active = false
		row.LastSyncOrigin = syncdomain.OriginRemote.String()
		return s.save(ctx, &row)
	case syncdomain.EntityTypeOrder:
		var row models.LocalSalesOrderModel
		if err := s.first(ctx, &row, id); err != nil {
			return err
		}
		row.Status = "CANCELLED"
		row.LastSyncOrigin = syncdomain.OriginRemote.String()
		return s.save(ctx, &row)
	case syncdomain.EntityTypeInventoryLevel:
		var row models.LocalInventoryItemModel
		if err := s.first(ctx, &row, id); err != nil {
			return err
		}
		row.Quantity = 0
		row.LastSyncOrigin = syncdomain.OriginRemote.String()
		return s.save(ctx, &row)
	default:
		return syncdomain.ErrInvalidEntityType
	}
}

// Ensure GormLocalStore implements LocalStore
var _ syncdomain.LocalStore = (*GormLocalStore)(nil)

// ---------------------------------------------------------------------------
// Query helpers
// ---------------------------------------------------------------------------

func (s *GormLocalStore) first(ctx context.Context, dest any, id uuid.UUID) error {
	if err := s.db.WithContext(ctx).First(dest, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return syncdomain.ErrLocalNotFound
		}
		return err
	}
	return nil
}

func (s *GormLocalStore) create(ctx context.Context, row any) error {
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: natural key already in use", syncdomain.ErrConflictingIdentity)
		}
		return err
	}
	return nil
}

func (s *GormLocalStore) save(ctx context.Context, row any) error {
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: natural key already in use", syncdomain.ErrConflictingIdentity)
		}
		return err
	}
	return nil
}
