package services

import (
	"context"
	"fmt"

	"nycdemo-backend/internal/models"
	"nycdemo-backend/internal/store"

	"github.com/google/uuid"
)

// RegistrationService handles event-registration business logic.
type RegistrationService struct {
	store store.Store
}

func NewRegistrationService(store store.Store) *RegistrationService {
	return &RegistrationService{store: store}
}

func mapRegistrationToResponse(reg *models.Registration) models.RegistrationResponse {
	return models.RegistrationResponse{
		ID:           reg.ID,
		UserID:       reg.UserID,
		LocationType: reg.LocationType,
		Borough:      reg.Borough,
		Neighborhood: reg.Neighborhood,
		State:        reg.State,
		Reason:       reg.Reason,
		CreatedAt:    reg.CreatedAt,
	}
}

// CreateRegistration stores a new registration with a server-assigned id.
// Field presence is validated at the handler boundary.
func (s *RegistrationService) CreateRegistration(ctx context.Context, req models.CreateRegistrationRequest) (*models.RegistrationResponse, error) {
	params := store.CreateRegistrationParams{
		ID:           uuid.New(),
		UserID:       req.UserID,
		LocationType: req.LocationType,
		Borough:      req.Borough,
		Neighborhood: req.Neighborhood,
		State:        req.State,
		Reason:       req.Reason,
	}

	created, err := s.store.CreateRegistration(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create registration in store: %w", err)
	}

	resp := mapRegistrationToResponse(created)
	return &resp, nil
}

// ListRegistrations returns all registrations, newest first, for dashboard
// polling.
func (s *RegistrationService) ListRegistrations(ctx context.Context) ([]models.RegistrationResponse, error) {
	regs, err := s.store.ListRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations from store: %w", err)
	}

	responses := make([]models.RegistrationResponse, 0, len(regs))
	for i := range regs {
		responses = append(responses, mapRegistrationToResponse(&regs[i]))
	}
	return responses, nil
}

// GetStats returns the aggregated counts the map coloring uses.
func (s *RegistrationService) GetStats(ctx context.Context) (*models.StatsResponse, error) {
	stats, err := s.store.GetRegistrationStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get registration stats from store: %w", err)
	}
	return stats, nil
}

// ListTopics returns topic-analysis rows, empty when the sync job has not run
// yet.
func (s *RegistrationService) ListTopics(ctx context.Context) ([]models.TopicResponse, error) {
	topics, err := s.store.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics from store: %w", err)
	}

	responses := make([]models.TopicResponse, 0, len(topics))
	for _, t := range topics {
		responses = append(responses, models.TopicResponse{
			TopicLabel: t.TopicLabel,
			TopicCount: t.TopicCount,
			TopWords:   t.TopWords,
			UpdatedAt:  t.UpdatedAt,
		})
	}
	return responses, nil
}
