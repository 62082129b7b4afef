package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncapp "github.com/storesync/backend/internal/application/sync"
)

// MappingHandler handles entity mapping review endpoints
type MappingHandler struct {
	BaseHandler
	adminService *syncapp.MappingAdminService
}

// NewMappingHandler creates a new MappingHandler
func NewMappingHandler(adminService *syncapp.MappingAdminService) *MappingHandler {
	return &MappingHandler{
		adminService: adminService,
	}
}

// List godoc
// @ID           listMappings
// @Summary      List entity mappings
// @Description  Returns a page of mappings for review, filterable by entity type and sync state
// @Tags         mappings
// @Produce      json
// @Param        entity_type query string false "Entity type filter" Enums(PRODUCT, ORDER, CUSTOMER, INVENTORY_LEVEL)
// @Param        state query string false "Sync state filter" Enums(PENDING, IN_FLIGHT, SYNCED, ERROR, CONFLICT)
// @Param        page query int false "Page number (default 1)"
// @Param        page_size query int false "Page size (default 20, max 100)"
// @Success      200 {object} dto.Response{data=[]syncapp.MappingDTO}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/mappings [get]
func (h *MappingHandler) List(c *gin.Context) {
	var query MappingListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	// Set defaults so the response meta reflects what was actually served
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 20
	}
	if query.PageSize > 100 {
		query.PageSize = 100
	}

	mappings, total, err := h.adminService.List(c.Request.Context(), syncapp.ListMappingsInput{
		EntityType: query.EntityType,
		State:      query.State,
		Page:       query.Page,
		PageSize:   query.PageSize,
	})
	if err != nil {
		handleSyncError(&h.BaseHandler, c, err)
		return
	}

	h.SuccessWithMeta(c, mappings, total, query.Page, query.PageSize)
}

// Get godoc
// @ID           getMapping
// @Summary      Get a single mapping
// @Description  Returns one mapping with its sync state, fingerprints metadata and last error
// @Tags         mappings
// @Produce      json
// @Param        id path string true "Mapping ID" format(uuid)
// @Success      200 {object} dto.Response{data=syncapp.MappingDTO}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/mappings/{id} [get]
func (h *MappingHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid mapping ID")
		return
	}

	mapping, err := h.adminService.Get(c.Request.Context(), id)
	if err != nil {
		handleSyncError(&h.BaseHandler, c, err)
		return
	}

	h.Success(c, mapping)
}

// Disable godoc
// @ID           disableMapping
// @Summary      Disable synchronization for a mapping
// @Description  Takes the mapping out of the sync population; disabling twice is a no-op
// @Tags         mappings
// @Produce      json
// @Param        id path string true "Mapping ID" format(uuid)
// @Success      200 {object} dto.Response{data=syncapp.MappingDTO}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/mappings/{id}/disable [post]
func (h *MappingHandler) Disable(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid mapping ID")
		return
	}

	mapping, err := h.adminService.Disable(c.Request.Context(), id)
	if err != nil {
		handleSyncError(&h.BaseHandler, c, err)
		return
	}

	h.Success(c, mapping)
}
