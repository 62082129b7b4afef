// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormMappingStatsProvider implements MappingStatsProvider using GORM.
// It queries the entity_mappings table directly for aggregated counts.
type GormMappingStatsProvider struct {
	db *gorm.DB
}

// NewGormMappingStatsProvider creates a new GormMappingStatsProvider.
func NewGormMappingStatsProvider(db *gorm.DB) *GormMappingStatsProvider {
	return &GormMappingStatsProvider{db: db}
}

// CountMappingsByState returns mapping counts grouped by entity type and state.
func (p *GormMappingStatsProvider) CountMappingsByState(ctx context.Context) ([]MappingStateCount, error) {
	type result struct {
		EntityType string `gorm:"column:entity_type"`
		State      string `gorm:"column:state"`
		Count      int64  `gorm:"column:count"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("entity_mappings").
		Select("entity_type, state, COUNT(*) as count").
		Group("entity_type").
		Group("state").
		Find(&results).Error

	if err != nil {
		return nil, err
	}

	counts := make([]MappingStateCount, 0, len(results))
	for _, r := range results {
		counts = append(counts, MappingStateCount{
			EntityType: r.EntityType,
			State:      r.State,
			Count:      r.Count,
		})
	}

	return counts, nil
}
