package commerce

import (
	"context"
	"errors"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
)

// ErrNoAPIKey indicates the adapter was configured without a credential
var ErrNoAPIKey = errors.New("wix: api key is not configured")

// StaticTokenSource serves a fixed API key from configuration. The
// platform authenticates with long-lived keys, so Refresh re-serves the
// same value; a 401 that survives a refresh means the key was revoked.
type StaticTokenSource struct {
	apiKey string
}

// NewStaticTokenSource creates a token source around a configured API key
func NewStaticTokenSource(apiKey string) *StaticTokenSource {
	return &StaticTokenSource{apiKey: apiKey}
}

// Token returns the configured credential
func (s *StaticTokenSource) Token(_ context.Context) (string, error) {
	if s.apiKey == "" {
		return "", ErrNoAPIKey
	}
	return s.apiKey, nil
}

// Refresh re-serves the configured credential
func (s *StaticTokenSource) Refresh(ctx context.Context) (string, error) {
	return s.Token(ctx)
}

// Ensure StaticTokenSource implements the TokenSource interface
var _ syncdomain.TokenSource = (*StaticTokenSource)(nil)
