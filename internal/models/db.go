package models

import (
	"time"

	"github.com/google/uuid"
)

// Registration mirrors a row in the event_registrations table.
type Registration struct {
	ID           uuid.UUID
	UserID       string
	LocationType string
	Borough      *string
	Neighborhood *string
	State        *string
	Reason       string
	CreatedAt    time.Time
}

// Topic mirrors a row in the topic_analysis table, which is synced back from
// the NLP pipeline and may not exist yet on a fresh database.
type Topic struct {
	TopicLabel string
	TopicCount int64
	TopWords   *string
	UpdatedAt  time.Time
}
