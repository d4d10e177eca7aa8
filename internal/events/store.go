package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable indicates the event store dependency is not configured.
var ErrStoreUnavailable = errors.New("events: store unavailable")

// Store persists domain events in Postgres.
type Store interface {
	EventStore
	GetDomainEvent(ctx context.Context, id uuid.UUID) (Event, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

// InsertDomainEvent persists a domain event and returns the stored row.
func (s *pgStore) InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (Event, error) {
	if s == nil || s.pool == nil {
		return Event{}, ErrStoreUnavailable
	}
	var ev Event
	err := s.pool.QueryRow(ctx, `INSERT INTO domain_events (topic, aggregate_id, payload)
VALUES ($1, $2, $3) RETURNING id, topic, aggregate_id, payload, occurred_at`,
		topic, aggregateID, payload).Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}

// GetDomainEvent fetches a domain event by ID.
func (s *pgStore) GetDomainEvent(ctx context.Context, id uuid.UUID) (Event, error) {
	if s == nil || s.pool == nil {
		return Event{}, ErrStoreUnavailable
	}
	var ev Event
	err := s.pool.QueryRow(ctx, `SELECT id, topic, aggregate_id, payload, occurred_at FROM domain_events WHERE id = $1`, id).
		Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}
