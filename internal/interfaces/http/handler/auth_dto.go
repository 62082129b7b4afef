package handler

// TokenRequest represents the request body for the token exchange
type TokenRequest struct {
	APIKey string `json:"api_key" binding:"required,min=16,max=256"`
}
