package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/storesync/backend/internal/infrastructure/auth"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	BaseHandler
	jwtService *auth.JWTService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{
		jwtService: jwtService,
	}
}

// IssueToken godoc
// @Summary      Exchange an API key for a bearer token
// @Description  Verifies the dashboard API key and returns a short-lived JWT for the protected endpoints
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body TokenRequest true "API key"
// @Success      200 {object} dto.Response{data=auth.IssuedToken}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /auth/token [post]
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.jwtService.VerifyAPIKey(req.APIKey); err != nil {
		h.Unauthorized(c, "Invalid API key")
		return
	}

	issued, err := h.jwtService.IssueToken()
	if err != nil {
		h.InternalError(c, "Failed to issue token")
		return
	}

	h.Success(c, issued)
}
