package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	syncapp "github.com/storesync/backend/internal/application/sync"
	syncdomain "github.com/storesync/backend/internal/domain/sync"
)

// SyncHandler handles synchronization status and trigger endpoints
type SyncHandler struct {
	BaseHandler
	statusService *syncapp.StatusService
	orchestrator  *syncapp.OrchestratorService
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(statusService *syncapp.StatusService, orchestrator *syncapp.OrchestratorService) *SyncHandler {
	return &SyncHandler{
		statusService: statusService,
		orchestrator:  orchestrator,
	}
}

// GetStatus godoc
// @ID           getSyncStatus
// @Summary      Get synchronization status
// @Description  Returns per-entity sync counts, success rates and engine health
// @Tags         sync
// @Produce      json
// @Success      200 {object} dto.Response{data=syncapp.StatusSummaryDTO}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/status [get]
func (h *SyncHandler) GetStatus(c *gin.Context) {
	summary, err := h.statusService.StatusSummary(c.Request.Context())
	if err != nil {
		handleSyncError(&h.BaseHandler, c, err)
		return
	}

	h.Success(c, summary)
}

// GetActivity godoc
// @ID           getSyncActivity
// @Summary      List recent sync activity
// @Description  Returns the newest sync attempts, optionally filtered by entity type
// @Tags         sync
// @Produce      json
// @Param        limit query int false "Maximum entries to return (default 20, max 100)"
// @Param        entity_type query string false "Entity type filter" Enums(PRODUCT, ORDER, CUSTOMER, INVENTORY_LEVEL)
// @Success      200 {object} dto.Response{data=[]syncapp.ActivityEntryDTO}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/activity [get]
func (h *SyncHandler) GetActivity(c *gin.Context) {
	var query ActivityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var entityType *syncdomain.EntityType
	if query.EntityType != "" {
		parsed, err := syncdomain.ParseEntityType(query.EntityType)
		if err != nil {
			handleSyncError(&h.BaseHandler, c, err)
			return
		}
		entityType = &parsed
	}

	entries, err := h.statusService.RecentActivity(c.Request.Context(), query.Limit, entityType)
	if err != nil {
		handleSyncError(&h.BaseHandler, c, err)
		return
	}

	h.Success(c, entries)
}

// GetActivityTimeline godoc
// @ID           getSyncActivityTimeline
// @Summary      Get daily activity timeline
// @Description  Returns per-day success and failure counts for the last N days
// @Tags         sync
// @Produce      json
// @Param        days query int false "Number of days to cover (default 7, max 90)"
// @Success      200 {object} dto.Response{data=[]syncapp.TimelinePointDTO}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/activity/timeline [get]
func (h *SyncHandler) GetActivityTimeline(c *gin.Context) {
	var query TimelineQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	points, err := h.statusService.ActivityTimeline(c.Request.Context(), query.Days)
	if err != nil {
		handleSyncError(&h.BaseHandler, c, err)
		return
	}

	h.Success(c, points)
}

// GetErrors godoc
// @ID           getSyncErrors
// @Summary      Get most recent failure per entity type
// @Description  Returns the latest failure detail for each entity type that has one
// @Tags         sync
// @Produce      json
// @Success      200 {object} dto.Response{data=[]syncapp.ErrorEntryDTO}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/errors [get]
func (h *SyncHandler) GetErrors(c *gin.Context) {
	entries, err := h.statusService.ErrorDetail(c.Request.Context())
	if err != nil {
		handleSyncError(&h.BaseHandler, c, err)
		return
	}

	h.Success(c, entries)
}

// TriggerSyncAll godoc
// @ID           triggerSyncAll
// @Summary      Start a bulk synchronization pass
// @Description  Enqueues reconcile work for all entity types and returns immediately
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        request body SyncAllRequest false "Pass options"
// @Success      200 {object} dto.Response{data=TriggerAckResponse} "A pass is already running"
// @Success      202 {object} dto.Response{data=TriggerAckResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/all [post]
func (h *SyncHandler) TriggerSyncAll(c *gin.Context) {
	var req SyncAllRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, "Invalid request body")
			return
		}
	}

	if !h.orchestrator.SyncAll(c.Request.Context(), req.Full) {
		h.Success(c, TriggerAckResponse{
			Accepted: false,
			Message:  "A synchronization pass is already running",
		})
		return
	}

	h.Accepted(c, TriggerAckResponse{
		Accepted: true,
		Message:  "Synchronization pass started",
	})
}

// TriggerRetryFailed godoc
// @ID           triggerRetryFailed
// @Summary      Re-enqueue failed mappings
// @Description  Queues one fresh attempt for every errored mapping, optionally limited to one entity type
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        request body RetryFailedRequest false "Retry options"
// @Success      202 {object} dto.Response{data=RetryAckResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      429 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/retry-failed [post]
func (h *SyncHandler) TriggerRetryFailed(c *gin.Context) {
	var req RetryFailedRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, "Invalid request body")
			return
		}
	}

	var entityType *syncdomain.EntityType
	if req.EntityType != "" {
		parsed, err := syncdomain.ParseEntityType(req.EntityType)
		if err != nil {
			handleSyncError(&h.BaseHandler, c, err)
			return
		}
		entityType = &parsed
	}

	enqueued, err := h.orchestrator.RetryFailed(c.Request.Context(), entityType)
	if err != nil {
		handleSyncError(&h.BaseHandler, c, err)
		return
	}

	h.Accepted(c, RetryAckResponse{
		Accepted: true,
		Enqueued: enqueued,
		Message:  fmt.Sprintf("Re-enqueued %d failed mappings", enqueued),
	})
}

// TriggerSyncOne godoc
// @ID           triggerSyncOne
// @Summary      Reconcile a single record
// @Description  Enqueues a reconcile job for one record identified by its origin-side id
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        request body SyncOneRequest true "Record to reconcile"
// @Success      202 {object} dto.Response{data=TriggerAckResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      429 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/one [post]
func (h *SyncHandler) TriggerSyncOne(c *gin.Context) {
	var req SyncOneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	entityType, err := syncdomain.ParseEntityType(req.EntityType)
	if err != nil {
		handleSyncError(&h.BaseHandler, c, err)
		return
	}
	origin, err := syncdomain.ParseOrigin(req.Origin)
	if err != nil {
		handleSyncError(&h.BaseHandler, c, err)
		return
	}

	if err := h.orchestrator.SyncOne(c.Request.Context(), entityType, origin, req.ID); err != nil {
		handleSyncError(&h.BaseHandler, c, err)
		return
	}

	h.Accepted(c, TriggerAckResponse{
		Accepted: true,
		Message:  "Reconcile job enqueued",
	})
}
