package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	syncapp "github.com/storesync/backend/internal/application/sync"
	"github.com/storesync/backend/internal/interfaces/http/dto"
)

// webhookSignatureHeader carries the HMAC signature of the raw body
const webhookSignatureHeader = "X-Wix-Webhook-Signature"

// WebhookHandler receives change notifications from the commerce platform
type WebhookHandler struct {
	BaseHandler
	ingestService *syncapp.WebhookIngestService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(ingestService *syncapp.WebhookIngestService) *WebhookHandler {
	return &WebhookHandler{
		ingestService: ingestService,
	}
}

// WebhookAckResponse reports how a webhook delivery was handled
type WebhookAckResponse struct {
	Status     string `json:"status"`
	EntityType string `json:"entity_type,omitempty"`
	EventID    string `json:"event_id,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Receive godoc
// @ID           receiveWixWebhook
// @Summary      Receive a Wix webhook
// @Description  Verifies the signature, deduplicates the event and enqueues a sync job
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        X-Wix-Webhook-Signature header string true "HMAC signature of the raw body"
// @Success      200 {object} dto.Response{data=WebhookAckResponse} "Accepted, duplicate or ignored"
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo} "Signature did not verify"
// @Failure      413 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      429 {object} dto.Response{error=dto.ErrorInfo} "Queue overloaded, sender should retry"
// @Router       /webhooks/wix [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeBadRequest, "Request body exceeds maximum allowed size")
			return
		}
		h.BadRequest(c, "Unreadable request body")
		return
	}

	result := h.ingestService.Ingest(c.Request.Context(), raw, c.GetHeader(webhookSignatureHeader))

	switch result.Status {
	case syncapp.IngestRejected:
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeSignatureInvalid, "Webhook signature verification failed")
	case syncapp.IngestOverloaded:
		h.Error(c, http.StatusTooManyRequests, dto.ErrCodeQueueSaturated, "Sync queue is full, retry later")
	default:
		h.Success(c, WebhookAckResponse{
			Status:     string(result.Status),
			EntityType: string(result.EntityType),
			EventID:    result.EventID,
			Detail:     result.Detail,
		})
	}
}
