package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"

	"nycdemo-backend/internal/models"
	"nycdemo-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUndefinedTable is SQLSTATE 42P01, raised before the topic-analysis sync
// job has created its table.
const pgUndefinedTable = "42P01"

// Compile-time check to ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

const createRegistration = `-- name: CreateRegistration :one
INSERT INTO event_registrations (id, user_id, location_type, borough, neighborhood, state, reason)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, user_id, location_type, borough, neighborhood, state, reason, created_at;
`

// CreateRegistration inserts a new registration row and returns it with its
// database-assigned timestamp.
func (s *PostgresStore) CreateRegistration(ctx context.Context, arg store.CreateRegistrationParams) (*models.Registration, error) {
	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := s.db.QueryRow(ctx, createRegistration,
		id,
		arg.UserID,
		arg.LocationType,
		arg.Borough,
		arg.Neighborhood,
		arg.State,
		arg.Reason,
	)

	var reg models.Registration
	err := row.Scan(
		&reg.ID,
		&reg.UserID,
		&reg.LocationType,
		&reg.Borough,
		&reg.Neighborhood,
		&reg.State,
		&reg.Reason,
		&reg.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			log.Printf("ERROR [PostgresStore] CreateRegistration: PostgreSQL error for user %s: Code=%s, Message=%s", arg.UserID, pgErr.Code, pgErr.Message)
		}
		return nil, fmt.Errorf("database error creating registration: %w", err)
	}

	return &reg, nil
}

const listRegistrations = `-- name: ListRegistrations :many
SELECT id, user_id, location_type, borough, neighborhood, state, reason, created_at
FROM event_registrations
ORDER BY created_at DESC;
`

func (s *PostgresStore) ListRegistrations(ctx context.Context) ([]models.Registration, error) {
	rows, err := s.db.Query(ctx, listRegistrations)
	if err != nil {
		return nil, fmt.Errorf("error querying registrations: %w", err)
	}
	defer rows.Close()

	var items []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := rows.Scan(
			&reg.ID,
			&reg.UserID,
			&reg.LocationType,
			&reg.Borough,
			&reg.Neighborhood,
			&reg.State,
			&reg.Reason,
			&reg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning registration row: %w", err)
		}
		items = append(items, reg)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registration rows: %w", err)
	}

	return items, nil
}

const countByBorough = `-- name: CountByBorough :many
SELECT borough, COUNT(*) AS count
FROM event_registrations
WHERE borough IS NOT NULL
GROUP BY borough
ORDER BY count DESC;
`

const countByNeighborhood = `-- name: CountByNeighborhood :many
SELECT borough, neighborhood, COUNT(*) AS count
FROM event_registrations
WHERE neighborhood IS NOT NULL
GROUP BY borough, neighborhood
ORDER BY count DESC;
`

const countTotal = `-- name: CountTotal :one
SELECT COUNT(*) AS count FROM event_registrations;
`

// GetRegistrationStats aggregates registration counts for the dashboard map.
func (s *PostgresStore) GetRegistrationStats(ctx context.Context) (*models.StatsResponse, error) {
	stats := &models.StatsResponse{
		ByBorough:      []models.BoroughCount{},
		ByNeighborhood: []models.NeighborhoodCount{},
	}

	boroughRows, err := s.db.Query(ctx, countByBorough)
	if err != nil {
		return nil, fmt.Errorf("error querying borough counts: %w", err)
	}
	defer boroughRows.Close()

	for boroughRows.Next() {
		var bc models.BoroughCount
		if err := boroughRows.Scan(&bc.Borough, &bc.Count); err != nil {
			return nil, fmt.Errorf("error scanning borough count: %w", err)
		}
		stats.ByBorough = append(stats.ByBorough, bc)
	}
	if err = boroughRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating borough counts: %w", err)
	}

	neighborhoodRows, err := s.db.Query(ctx, countByNeighborhood)
	if err != nil {
		return nil, fmt.Errorf("error querying neighborhood counts: %w", err)
	}
	defer neighborhoodRows.Close()

	for neighborhoodRows.Next() {
		var nc models.NeighborhoodCount
		if err := neighborhoodRows.Scan(&nc.Borough, &nc.Neighborhood, &nc.Count); err != nil {
			return nil, fmt.Errorf("error scanning neighborhood count: %w", err)
		}
		stats.ByNeighborhood = append(stats.ByNeighborhood, nc)
	}
	if err = neighborhoodRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating neighborhood counts: %w", err)
	}

	if err := s.db.QueryRow(ctx, countTotal).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("error querying total count: %w", err)
	}

	return stats, nil
}

const listTopics = `-- name: ListTopics :many
SELECT topic_label, topic_count, top_words, updated_at
FROM topic_analysis
ORDER BY topic_count DESC;
`

// ListTopics returns topic-analysis rows. A missing table is treated as an
// empty result, not an error: the NLP sync job creates it on first run.
func (s *PostgresStore) ListTopics(ctx context.Context) ([]models.Topic, error) {
	rows, err := s.db.Query(ctx, listTopics)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
			return []models.Topic{}, nil
		}
		return nil, fmt.Errorf("error querying topics: %w", err)
	}
	defer rows.Close()

	var items []models.Topic
	for rows.Next() {
		var t models.Topic
		if err := rows.Scan(&t.TopicLabel, &t.TopicCount, &t.TopWords, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning topic row: %w", err)
		}
		items = append(items, t)
	}

	if err = rows.Err(); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
			return []models.Topic{}, nil
		}
		return nil, fmt.Errorf("error iterating topic rows: %w", err)
	}

	return items, nil
}
