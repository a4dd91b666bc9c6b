package store

import (
	"context"
	"errors"

	"nycdemo-backend/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// CreateRegistrationParams contains parameters for creating a registration.
// Optional location fields are nil when the registrant picked a non-NYC state
// or skipped the neighborhood step.
type CreateRegistrationParams struct {
	ID           uuid.UUID
	UserID       string
	LocationType string
	Borough      *string
	Neighborhood *string
	State        *string
	Reason       string
}

// Store defines the interface for database operations.
// This allows for mocking in tests and potential DB backend switching.
type Store interface {
	// Ping verifies database connectivity for the health endpoint.
	Ping(ctx context.Context) error

	// Registration operations
	CreateRegistration(ctx context.Context, arg CreateRegistrationParams) (*models.Registration, error)
	ListRegistrations(ctx context.Context) ([]models.Registration, error)
	GetRegistrationStats(ctx context.Context) (*models.StatsResponse, error)

	// Topic operations
	ListTopics(ctx context.Context) ([]models.Topic, error)
}
