package services

import (
	"context"
	"fmt"
)

// DashboardService mints scoped embed tokens for the published BI dashboard.
// The three-step chain (workspace token, tokeninfo, scoped exchange) lives
// behind the injected TokenGetter's provider; this service only exposes the
// cached result.
type DashboardService struct {
	embedTokens TokenGetter
}

func NewDashboardService(embedTokens TokenGetter) *DashboardService {
	return &DashboardService{embedTokens: embedTokens}
}

// EmbedToken returns a scoped embed token for the frontend iframe.
func (s *DashboardService) EmbedToken(ctx context.Context) (string, error) {
	token, err := s.embedTokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to mint embed token: %w", err)
	}
	return token, nil
}
