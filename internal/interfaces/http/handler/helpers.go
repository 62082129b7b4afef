package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/interfaces/http/dto"
)

// handleSyncError maps synchronization domain errors onto HTTP responses.
// Anything unrecognized is surfaced as an internal error.
func handleSyncError(h *BaseHandler, c *gin.Context, err error) {
	switch {
	case errors.Is(err, syncdomain.ErrMappingNotFound):
		h.NotFound(c, "Mapping not found")
	case errors.Is(err, syncdomain.ErrInvalidEntityType):
		h.BadRequest(c, "Unknown entity type")
	case errors.Is(err, syncdomain.ErrInvalidOrigin):
		h.BadRequest(c, "Unknown origin")
	case errors.Is(err, syncdomain.ErrInvalidSyncState):
		h.BadRequest(c, "Unknown sync state")
	case errors.Is(err, syncdomain.ErrMissingSourceID):
		h.BadRequest(c, "Missing record id")
	case errors.Is(err, syncdomain.ErrStaleWrite):
		h.Error(c, http.StatusConflict, dto.ErrCodeConcurrencyConflict, "Mapping was modified concurrently")
	case errors.Is(err, syncdomain.ErrConflictingIdentity):
		h.Error(c, http.StatusConflict, dto.ErrCodeIdentityConflict, "Identifier is already bound to a different counterpart")
	case errors.Is(err, syncdomain.ErrQueueFull):
		h.Error(c, http.StatusTooManyRequests, dto.ErrCodeQueueSaturated, "Sync queue is full, try again later")
	default:
		h.HandleError(c, err)
	}
}
