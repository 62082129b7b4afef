package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
)

// GormCursorRepository implements CursorRepository using GORM
type GormCursorRepository struct {
	db *gorm.DB
}

// NewGormCursorRepository creates a new GormCursorRepository
func NewGormCursorRepository(db *gorm.DB) *GormCursorRepository {
	return &GormCursorRepository{db: db}
}

// Get retrieves the cursor for one entity type and side
func (r *GormCursorRepository) Get(ctx context.Context, entityType syncdomain.EntityType, origin syncdomain.Origin) (*syncdomain.SyncCursor, error) {
	var model models.SyncCursorModel
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND origin = ?", entityType, origin).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, syncdomain.ErrCursorNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Advance upserts the cursor value
func (r *GormCursorRepository) Advance(ctx context.Context, entityType syncdomain.EntityType, origin syncdomain.Origin, cursor string) error {
	model := &models.SyncCursorModel{
		EntityType: entityType.String(),
		Origin:     origin.String(),
		Cursor:     cursor,
		UpdatedAt:  time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entity_type"}, {Name: "origin"}},
			DoUpdates: clause.AssignmentColumns([]string{"cursor", "updated_at"}),
		}).
		Create(model).Error
}

// Ensure GormCursorRepository implements CursorRepository
var _ syncdomain.CursorRepository = (*GormCursorRepository)(nil)
