package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
)

// GormAttemptRepository implements AttemptRepository using GORM
type GormAttemptRepository struct {
	db *gorm.DB
}

// NewGormAttemptRepository creates a new GormAttemptRepository
func NewGormAttemptRepository(db *gorm.DB) *GormAttemptRepository {
	return &GormAttemptRepository{db: db}
}

// Append writes one attempt row
func (r *GormAttemptRepository) Append(ctx context.Context, attempt *syncdomain.SyncAttempt) error {
	model := models.SyncAttemptModelFromDomain(attempt)
	return r.db.WithContext(ctx).Create(model).Error
}

// LastForMapping returns the most recent attempt touching the mapping's
// identifiers
func (r *GormAttemptRepository) LastForMapping(ctx context.Context, m *syncdomain.EntityMapping) (*syncdomain.SyncAttempt, error) {
	query := r.db.WithContext(ctx).Where("entity_type = ?", m.EntityType)
	switch {
	case m.LocalID != "" && m.RemoteID != "":
		query = query.Where("(local_id = ? OR remote_id = ?)", m.LocalID, m.RemoteID)
	case m.LocalID != "":
		query = query.Where("local_id = ?", m.LocalID)
	case m.RemoteID != "":
		query = query.Where("remote_id = ?", m.RemoteID)
	default:
		return nil, syncdomain.ErrAttemptNotFound
	}

	var model models.SyncAttemptModel
	if err := query.Order("occurred_at DESC").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, syncdomain.ErrAttemptNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListRecent returns the newest attempts, optionally filtered by entity type
func (r *GormAttemptRepository) ListRecent(ctx context.Context, entityType *syncdomain.EntityType, limit int) ([]syncdomain.SyncAttempt, error) {
	query := r.db.WithContext(ctx)
	if entityType != nil {
		query = query.Where("entity_type = ?", *entityType)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var attemptModels []models.SyncAttemptModel
	if err := query.Order("occurred_at DESC").Find(&attemptModels).Error; err != nil {
		return nil, err
	}

	attempts := make([]syncdomain.SyncAttempt, len(attemptModels))
	for i, model := range attemptModels {
		attempts[i] = *model.ToDomain()
	}
	return attempts, nil
}

// CountByOutcomeSince aggregates outcome counts per entity type for attempts
// at or after the cutoff
func (r *GormAttemptRepository) CountByOutcomeSince(ctx context.Context, since time.Time) (map[syncdomain.EntityType]map[syncdomain.Outcome]int64, error) {
	type outcomeCount struct {
		EntityType string
		Outcome    string
		Count      int64
	}
	var counts []outcomeCount

	err := r.db.WithContext(ctx).
		Model(&models.SyncAttemptModel{}).
		Select("entity_type, outcome, count(*) as count").
		Where("occurred_at >= ?", since).
		Group("entity_type, outcome").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	result := make(map[syncdomain.EntityType]map[syncdomain.Outcome]int64)
	for _, c := range counts {
		et := syncdomain.EntityType(c.EntityType)
		if result[et] == nil {
			result[et] = make(map[syncdomain.Outcome]int64)
		}
		result[et][syncdomain.Outcome(c.Outcome)] = c.Count
	}
	return result, nil
}

// CountPerDay returns per-day success and failure counts for the trailing
// window, oldest day first. Days without activity are omitted.
func (r *GormAttemptRepository) CountPerDay(ctx context.Context, days int) ([]syncdomain.DailyActivity, error) {
	if days <= 0 {
		days = 1
	}
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -(days - 1))
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	type dailyResult struct {
		Day       time.Time
		Successes int64
		Failures  int64
	}
	var results []dailyResult

	err := r.db.WithContext(ctx).
		Model(&models.SyncAttemptModel{}).
		Select(`
			DATE(occurred_at) as day,
			SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END) as successes,
			SUM(CASE WHEN outcome <> ? THEN 1 ELSE 0 END) as failures
		`, syncdomain.OutcomeSuccess, syncdomain.OutcomeSuccess).
		Where("occurred_at >= ?", start).
		Group("DATE(occurred_at)").
		Order("day ASC").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	activity := make([]syncdomain.DailyActivity, len(results))
	for i, res := range results {
		activity[i] = syncdomain.DailyActivity{
			Day:       res.Day,
			Successes: res.Successes,
			Failures:  res.Failures,
		}
	}
	return activity, nil
}

// LastErrorPerEntityType returns the most recent non-success attempt for
// each entity type that has one
func (r *GormAttemptRepository) LastErrorPerEntityType(ctx context.Context) (map[syncdomain.EntityType]syncdomain.SyncAttempt, error) {
	result := make(map[syncdomain.EntityType]syncdomain.SyncAttempt)

	for _, entityType := range syncdomain.AllEntityTypes() {
		var model models.SyncAttemptModel
		err := r.db.WithContext(ctx).
			Where("entity_type = ? AND outcome <> ?", entityType, syncdomain.OutcomeSuccess).
			Order("occurred_at DESC").
			First(&model).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		result[entityType] = *model.ToDomain()
	}
	return result, nil
}

// ListPrunable returns attempt rows older than the cutoff or beyond the row
// budget, oldest first, up to limit. A keepRows of zero or less disables the
// row budget.
func (r *GormAttemptRepository) ListPrunable(ctx context.Context, olderThan time.Time, keepRows int64, limit int) ([]syncdomain.SyncAttempt, error) {
	var excess int64
	if keepRows > 0 {
		total, err := r.Count(ctx)
		if err != nil {
			return nil, err
		}
		if total > keepRows {
			excess = total - keepRows
		}
	}

	query := r.db.WithContext(ctx).Order("occurred_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var attemptModels []models.SyncAttemptModel
	if err := query.Find(&attemptModels).Error; err != nil {
		return nil, err
	}

	// The oldest rows come back first, so the first excess rows are the
	// ones over the row budget regardless of age.
	attempts := make([]syncdomain.SyncAttempt, 0, len(attemptModels))
	for i, model := range attemptModels {
		if int64(i) < excess || model.OccurredAt.Before(olderThan) {
			attempts = append(attempts, *model.ToDomain())
		}
	}
	return attempts, nil
}

// DeleteByIDs removes pruned rows after archival
func (r *GormAttemptRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Delete(&models.SyncAttemptModel{}, "id IN ?", ids)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Count returns the total number of attempt rows
func (r *GormAttemptRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.SyncAttemptModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormAttemptRepository implements AttemptRepository
var _ syncdomain.AttemptRepository = (*GormAttemptRepository)(nil)
