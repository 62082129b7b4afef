package syncapp

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
)

const (
	defaultMappingPageSize = 20
	maxMappingPageSize     = 100

	// disableRetries bounds the read-modify-write loop against concurrent
	// orchestrator writes to the same mapping
	disableRetries = 3
)

// ListMappingsInput carries the query parameters of a mapping listing.
// EntityType and State are raw strings; empty means no filter.
type ListMappingsInput struct {
	EntityType string
	State      string
	Page       int
	PageSize   int
}

// MappingAdminService serves the manual review surface: listing mappings
// (error and conflict rows in particular), inspecting one, and taking a
// mapping out of the sync population.
type MappingAdminService struct {
	mappings syncdomain.MappingRepository
	logger   *zap.Logger
}

// NewMappingAdminService creates a new MappingAdminService
func NewMappingAdminService(mappings syncdomain.MappingRepository, logger *zap.Logger) *MappingAdminService {
	return &MappingAdminService{
		mappings: mappings,
		logger:   logger,
	}
}

// List returns one page of mappings matching the filter plus the total
// match count. Unknown entity types or states are rejected rather than
// silently matching nothing.
func (s *MappingAdminService) List(ctx context.Context, input ListMappingsInput) ([]MappingDTO, int64, error) {
	filter := syncdomain.MappingFilter{
		Page:     input.Page,
		PageSize: input.PageSize,
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = defaultMappingPageSize
	}
	if filter.PageSize > maxMappingPageSize {
		filter.PageSize = maxMappingPageSize
	}

	if input.EntityType != "" {
		entityType, err := syncdomain.ParseEntityType(input.EntityType)
		if err != nil {
			return nil, 0, err
		}
		filter.EntityType = &entityType
	}
	if input.State != "" {
		state, err := syncdomain.ParseSyncState(input.State)
		if err != nil {
			return nil, 0, err
		}
		filter.State = &state
	}

	mappings, err := s.mappings.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.mappings.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	dtos := make([]MappingDTO, len(mappings))
	for i := range mappings {
		dtos[i] = mappingDTO(&mappings[i])
	}
	return dtos, total, nil
}

// Get returns a single mapping by id
func (s *MappingAdminService) Get(ctx context.Context, id uuid.UUID) (*MappingDTO, error) {
	mapping, err := s.mappings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mappingDTO(mapping)
	return &dto, nil
}

// Disable turns off synchronization for one mapping. Disabling an already
// disabled mapping is a no-op. Concurrent orchestrator writes are absorbed
// by re-reading and retrying the version-guarded update.
func (s *MappingAdminService) Disable(ctx context.Context, id uuid.UUID) (*MappingDTO, error) {
	for attempt := 0; ; attempt++ {
		mapping, err := s.mappings.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if mapping.Direction == syncdomain.DirectionDisabled {
			dto := mappingDTO(mapping)
			return &dto, nil
		}

		mapping.Disable()
		err = s.mappings.Update(ctx, mapping)
		if err == nil {
			s.logger.Info("Mapping disabled",
				zap.String("mapping_id", mapping.ID.String()),
				zap.String("entity_type", string(mapping.EntityType)))
			dto := mappingDTO(mapping)
			return &dto, nil
		}
		if !errors.Is(err, syncdomain.ErrStaleWrite) || attempt+1 >= disableRetries {
			return nil, err
		}
	}
}

func mappingDTO(m *syncdomain.EntityMapping) MappingDTO {
	return MappingDTO{
		ID:           m.ID.String(),
		EntityType:   string(m.EntityType),
		LocalID:      m.LocalID,
		RemoteID:     m.RemoteID,
		Direction:    string(m.Direction),
		State:        string(m.State),
		LastSyncedAt: m.LastSyncedAt,
		LastError:    m.LastError,
		AttemptCount: m.AttemptCount,
		Version:      m.Version,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
