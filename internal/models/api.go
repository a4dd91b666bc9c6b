package models

import (
	"time"

	"github.com/google/uuid"
)

// --- Request Structs ---

// CreateRegistrationRequest defines the expected body for POST /registrations.
type CreateRegistrationRequest struct {
	UserID       string  `json:"user_id"`
	LocationType string  `json:"location_type"`
	Borough      *string `json:"borough,omitempty"`
	Neighborhood *string `json:"neighborhood,omitempty"`
	State        *string `json:"state,omitempty"`
	Reason       string  `json:"reason"`
}

// AskRequest defines the expected body for POST /genie/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// --- Response Structs ---

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RegistrationResponse defines a registration as returned by the API.
type RegistrationResponse struct {
	ID           uuid.UUID `json:"id"`
	UserID       string    `json:"user_id"`
	LocationType string    `json:"location_type"`
	Borough      *string   `json:"borough"`
	Neighborhood *string   `json:"neighborhood"`
	State        *string   `json:"state"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// BoroughCount is one aggregated map-coloring bucket.
type BoroughCount struct {
	Borough string `json:"borough"`
	Count   int64  `json:"count"`
}

// NeighborhoodCount is one aggregated neighborhood bucket.
type NeighborhoodCount struct {
	Borough      string `json:"borough"`
	Neighborhood string `json:"neighborhood"`
	Count        int64  `json:"count"`
}

// StatsResponse defines the body of GET /registrations/stats.
type StatsResponse struct {
	Total          int64               `json:"total"`
	ByBorough      []BoroughCount      `json:"by_borough"`
	ByNeighborhood []NeighborhoodCount `json:"by_neighborhood"`
}

// TopicResponse defines one row of GET /topics.
type TopicResponse struct {
	TopicLabel string    `json:"topic_label"`
	TopicCount int64     `json:"topic_count"`
	TopWords   *string   `json:"top_words"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DashboardTokenResponse defines the body of GET /dashboard-token.
type DashboardTokenResponse struct {
	Token string `json:"token"`
}

// HealthResponse defines the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db"`
}

// AskResponse is the flattened projection of one completed Genie message plus
// at most one result-set fetch. Answer and SQL are null when the message
// carried no matching attachment.
type AskResponse struct {
	Answer             *string  `json:"answer"`
	SQL                *string  `json:"sql"`
	Columns            []string `json:"columns"`
	Rows               [][]any  `json:"rows"`
	SuggestedQuestions []string `json:"suggested_questions"`
	ConversationID     string   `json:"conversation_id"`
	MessageID          string   `json:"message_id"`
}
