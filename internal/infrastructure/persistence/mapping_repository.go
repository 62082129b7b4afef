package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
)

// GormMappingRepository implements MappingRepository using GORM
type GormMappingRepository struct {
	db *gorm.DB
}

// NewGormMappingRepository creates a new GormMappingRepository
func NewGormMappingRepository(db *gorm.DB) *GormMappingRepository {
	return &GormMappingRepository{db: db}
}

// ---------------------------------------------------------------------------
// MappingReader implementation
// ---------------------------------------------------------------------------

// FindByID finds a mapping by its ID
func (r *GormMappingRepository) FindByID(ctx context.Context, id uuid.UUID) (*syncdomain.EntityMapping, error) {
	var model models.EntityMappingModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, syncdomain.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByLocalID finds the mapping bound to a local identifier
func (r *GormMappingRepository) FindByLocalID(ctx context.Context, entityType syncdomain.EntityType, localID string) (*syncdomain.EntityMapping, error) {
	var model models.EntityMappingModel
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND local_id = ?", entityType, localID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, syncdomain.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByRemoteID finds the mapping bound to a remote identifier
func (r *GormMappingRepository) FindByRemoteID(ctx context.Context, entityType syncdomain.EntityType, remoteID string) (*syncdomain.EntityMapping, error) {
	var model models.EntityMappingModel
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND remote_id = ?", entityType, remoteID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, syncdomain.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySource finds the mapping bound to an identifier on the given side
func (r *GormMappingRepository) FindBySource(ctx context.Context, entityType syncdomain.EntityType, origin syncdomain.Origin, sourceID string) (*syncdomain.EntityMapping, error) {
	if origin == syncdomain.OriginLocal {
		return r.FindByLocalID(ctx, entityType, sourceID)
	}
	return r.FindByRemoteID(ctx, entityType, sourceID)
}

// ---------------------------------------------------------------------------
// MappingFinder implementation
// ---------------------------------------------------------------------------

// FindAll finds mappings matching the filter with pagination
func (r *GormMappingRepository) FindAll(ctx context.Context, filter syncdomain.MappingFilter) ([]syncdomain.EntityMapping, error) {
	var mappingModels []models.EntityMappingModel
	query := r.applyFilter(r.db.WithContext(ctx), filter)

	if err := query.Order("updated_at DESC").Find(&mappingModels).Error; err != nil {
		return nil, err
	}

	mappings := make([]syncdomain.EntityMapping, len(mappingModels))
	for i, model := range mappingModels {
		mappings[i] = *model.ToDomain()
	}
	return mappings, nil
}

// Count returns the number of mappings matching the filter
func (r *GormMappingRepository) Count(ctx context.Context, filter syncdomain.MappingFilter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx), filter)
	if err := query.Model(&models.EntityMappingModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindRetryCandidates finds error-state mappings still in the sync
// population, oldest update first
func (r *GormMappingRepository) FindRetryCandidates(ctx context.Context, limit int) ([]syncdomain.EntityMapping, error) {
	var mappingModels []models.EntityMappingModel
	query := r.db.WithContext(ctx).
		Where("state = ? AND direction <> ?", syncdomain.StateError, syncdomain.DirectionDisabled).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&mappingModels).Error; err != nil {
		return nil, err
	}

	mappings := make([]syncdomain.EntityMapping, len(mappingModels))
	for i, model := range mappingModels {
		mappings[i] = *model.ToDomain()
	}
	return mappings, nil
}

// CountByState aggregates mapping counts per state for one entity type
func (r *GormMappingRepository) CountByState(ctx context.Context, entityType syncdomain.EntityType) (map[syncdomain.SyncState]int64, error) {
	type stateCount struct {
		State string
		Count int64
	}
	var counts []stateCount

	err := r.db.WithContext(ctx).
		Model(&models.EntityMappingModel{}).
		Select("state, count(*) as count").
		Where("entity_type = ?", entityType).
		Group("state").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	result := make(map[syncdomain.SyncState]int64, len(counts))
	for _, c := range counts {
		result[syncdomain.SyncState(c.State)] = c.Count
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// MappingWriter implementation
// ---------------------------------------------------------------------------

// Create persists a new mapping
func (r *GormMappingRepository) Create(ctx context.Context, mapping *syncdomain.EntityMapping) error {
	model := models.EntityMappingModelFromDomain(mapping)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return syncdomain.ErrConflictingIdentity
		}
		return err
	}
	return nil
}

// Update persists mapping changes guarded by the row version. The stored
// version must still match the one the caller loaded; the write advances it
// by one. On success the in-memory mapping is advanced to the stored version.
func (r *GormMappingRepository) Update(ctx context.Context, mapping *syncdomain.EntityMapping) error {
	result := r.db.WithContext(ctx).
		Model(&models.EntityMappingModel{}).
		Where("id = ? AND version = ?", mapping.ID, mapping.Version).
		Updates(map[string]interface{}{
			"local_id":           mapping.LocalID,
			"remote_id":          mapping.RemoteID,
			"direction":          mapping.Direction.String(),
			"state":              mapping.State.String(),
			"local_fingerprint":  mapping.LocalFingerprint,
			"remote_fingerprint": mapping.RemoteFingerprint,
			"last_synced_at":     mapping.LastSyncedAt,
			"last_error":         mapping.LastError,
			"attempt_count":      mapping.AttemptCount,
			"version":            mapping.Version + 1,
			"updated_at":         mapping.UpdatedAt,
		})

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return syncdomain.ErrConflictingIdentity
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return syncdomain.ErrStaleWrite
	}

	mapping.Version++
	return nil
}

// Ensure GormMappingRepository implements MappingRepository
var _ syncdomain.MappingRepository = (*GormMappingRepository)(nil)

// ---------------------------------------------------------------------------
// Filter helpers
// ---------------------------------------------------------------------------

// applyFilter applies filter criteria and pagination to the query
func (r *GormMappingRepository) applyFilter(query *gorm.DB, filter syncdomain.MappingFilter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	return query
}

// applyFilterWithoutPagination applies only the filter criteria
func (r *GormMappingRepository) applyFilterWithoutPagination(query *gorm.DB, filter syncdomain.MappingFilter) *gorm.DB {
	if filter.EntityType != nil {
		query = query.Where("entity_type = ?", *filter.EntityType)
	}
	if filter.State != nil {
		query = query.Where("state = ?", *filter.State)
	}
	if filter.Direction != nil {
		query = query.Where("direction = ?", *filter.Direction)
	}
	if filter.HasError != nil {
		if *filter.HasError {
			query = query.Where("last_error <> ''")
		} else {
			query = query.Where("last_error = ''")
		}
	}
	return query
}
