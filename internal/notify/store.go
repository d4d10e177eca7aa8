package notify

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SoftFusion-Technologies/backend-compras/internal/events"
)

// ErrStoreUnavailable indicates the webhook store dependency is not configured.
var ErrStoreUnavailable = errors.New("notify: store unavailable")

// Delivery status values.
const (
	StatusPending    = "pending"
	StatusDelivering = "delivering"
	StatusDelivered  = "delivered"
	StatusFailed     = "failed"
	StatusDead       = "dead"
)

// Endpoint is a registered webhook receiver.
type Endpoint struct {
	ID        uuid.UUID
	Name      string
	URL       string
	Secret    string
	Topics    []string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Delivery is one scheduled webhook delivery attempt chain.
type Delivery struct {
	ID             uuid.UUID
	EndpointID     uuid.UUID
	EventID        uuid.UUID
	Status         string
	Attempt        int
	MaxAttempt     int
	NextAttemptAt  time.Time
	LastError      *string
	ResponseStatus *int
	ResponseBody   *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Store defines the persistence operations required for webhook management.
type Store interface {
	CreateEndpoint(ctx context.Context, ep Endpoint) (Endpoint, error)
	UpdateEndpoint(ctx context.Context, ep Endpoint) (Endpoint, error)
	GetEndpoint(ctx context.Context, id uuid.UUID) (Endpoint, error)
	ListEndpoints(ctx context.Context, limit, offset int) ([]Endpoint, error)
	DeleteEndpoint(ctx context.Context, id uuid.UUID) error

	ListActiveEndpointsForTopic(ctx context.Context, topic string) ([]Endpoint, error)
	EnqueueDelivery(ctx context.Context, endpointID, eventID uuid.UUID, maxAttempt int) (Delivery, error)
	DequeueDueDeliveries(ctx context.Context, limit int) ([]Delivery, error)
	MarkDelivering(ctx context.Context, id uuid.UUID) error
	MarkDelivered(ctx context.Context, id uuid.UUID, status int, body string) error
	MarkFailedWithBackoff(ctx context.Context, id uuid.UUID, delaySec int, lastError string) error
	MarkDead(ctx context.Context, id uuid.UUID, lastError string) error
	GetDelivery(ctx context.Context, id uuid.UUID) (Delivery, error)
	ResetDeliveryForReplay(ctx context.Context, id uuid.UUID) (Delivery, error)
	ListDeliveries(ctx context.Context, status string, limit, offset int) ([]Delivery, error)
	CountDeliveries(ctx context.Context, status string) (int64, error)

	GetDomainEvent(ctx context.Context, id uuid.UUID) (events.Event, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const endpointColumns = `id, name, url, secret, topics, active, created_at, updated_at`

func scanEndpoint(row interface{ Scan(...any) error }) (Endpoint, error) {
	var ep Endpoint
	if err := row.Scan(&ep.ID, &ep.Name, &ep.URL, &ep.Secret, &ep.Topics, &ep.Active, &ep.CreatedAt, &ep.UpdatedAt); err != nil {
		return Endpoint{}, err
	}
	return ep, nil
}

const deliveryColumns = `id, endpoint_id, event_id, status, attempt, max_attempt, next_attempt_at, last_error, response_status, response_body, created_at, updated_at`

func scanDelivery(row interface{ Scan(...any) error }) (Delivery, error) {
	var del Delivery
	var lastErr, respBody sql.NullString
	var respStatus sql.NullInt32
	if err := row.Scan(&del.ID, &del.EndpointID, &del.EventID, &del.Status, &del.Attempt, &del.MaxAttempt,
		&del.NextAttemptAt, &lastErr, &respStatus, &respBody, &del.CreatedAt, &del.UpdatedAt); err != nil {
		return Delivery{}, err
	}
	if lastErr.Valid {
		del.LastError = &lastErr.String
	}
	if respStatus.Valid {
		status := int(respStatus.Int32)
		del.ResponseStatus = &status
	}
	if respBody.Valid {
		del.ResponseBody = &respBody.String
	}
	return del, nil
}

func (s *pgStore) CreateEndpoint(ctx context.Context, ep Endpoint) (Endpoint, error) {
	if s == nil || s.pool == nil {
		return Endpoint{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `INSERT INTO webhook_endpoints (name, url, secret, topics, active)
VALUES ($1, $2, $3, $4, $5) RETURNING `+endpointColumns,
		ep.Name, ep.URL, ep.Secret, ep.Topics, ep.Active)
	return scanEndpoint(row)
}

func (s *pgStore) UpdateEndpoint(ctx context.Context, ep Endpoint) (Endpoint, error) {
	if s == nil || s.pool == nil {
		return Endpoint{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `UPDATE webhook_endpoints
SET name = $2, url = $3, secret = $4, topics = $5, active = $6, updated_at = now()
WHERE id = $1 RETURNING `+endpointColumns,
		ep.ID, ep.Name, ep.URL, ep.Secret, ep.Topics, ep.Active)
	return scanEndpoint(row)
}

func (s *pgStore) GetEndpoint(ctx context.Context, id uuid.UUID) (Endpoint, error) {
	if s == nil || s.pool == nil {
		return Endpoint{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `SELECT `+endpointColumns+` FROM webhook_endpoints WHERE id = $1`, id)
	return scanEndpoint(row)
}

func (s *pgStore) ListEndpoints(ctx context.Context, limit, offset int) ([]Endpoint, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `SELECT `+endpointColumns+` FROM webhook_endpoints ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	endpoints := make([]Endpoint, 0, limit)
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, rows.Err()
}

func (s *pgStore) DeleteEndpoint(ctx context.Context, id uuid.UUID) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM webhook_endpoints WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *pgStore) ListActiveEndpointsForTopic(ctx context.Context, topic string) ([]Endpoint, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT `+endpointColumns+` FROM webhook_endpoints WHERE active AND $1 = ANY(topics)`, strings.TrimSpace(topic))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, rows.Err()
}

func (s *pgStore) EnqueueDelivery(ctx context.Context, endpointID, eventID uuid.UUID, maxAttempt int) (Delivery, error) {
	if s == nil || s.pool == nil {
		return Delivery{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `INSERT INTO webhook_deliveries (endpoint_id, event_id, max_attempt)
VALUES ($1, $2, $3) RETURNING `+deliveryColumns, endpointID, eventID, maxAttempt)
	return scanDelivery(row)
}

// DequeueDueDeliveries claims due pending/failed deliveries. SKIP LOCKED keeps
// concurrent workers from fighting over the same rows.
func (s *pgStore) DequeueDueDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	if limit <= 0 {
		limit = 1
	}
	rows, err := s.pool.Query(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries
WHERE status IN ('pending', 'failed') AND next_attempt_at <= now()
ORDER BY next_attempt_at
LIMIT $1
FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deliveries := make([]Delivery, 0, limit)
	for rows.Next() {
		del, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, del)
	}
	return deliveries, rows.Err()
}

func (s *pgStore) MarkDelivering(ctx context.Context, id uuid.UUID) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	_, err := s.pool.Exec(ctx, `UPDATE webhook_deliveries SET status = 'delivering', updated_at = now() WHERE id = $1`, id)
	return err
}

func (s *pgStore) MarkDelivered(ctx context.Context, id uuid.UUID, status int, body string) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	var respStatus any
	if status > 0 {
		respStatus = status
	}
	var respBody any
	if body != "" {
		respBody = body
	}
	_, err := s.pool.Exec(ctx, `UPDATE webhook_deliveries
SET status = 'delivered', attempt = attempt + 1, response_status = $2, response_body = $3, updated_at = now()
WHERE id = $1`, id, respStatus, respBody)
	return err
}

func (s *pgStore) MarkFailedWithBackoff(ctx context.Context, id uuid.UUID, delaySec int, lastError string) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	_, err := s.pool.Exec(ctx, `UPDATE webhook_deliveries
SET status = 'failed', attempt = attempt + 1, last_error = $3,
    next_attempt_at = now() + make_interval(secs => $2), updated_at = now()
WHERE id = $1`, id, delaySec, lastError)
	return err
}

func (s *pgStore) MarkDead(ctx context.Context, id uuid.UUID, lastError string) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	_, err := s.pool.Exec(ctx, `UPDATE webhook_deliveries
SET status = 'dead', attempt = attempt + 1, last_error = $2, updated_at = now()
WHERE id = $1`, id, lastError)
	return err
}

func (s *pgStore) GetDelivery(ctx context.Context, id uuid.UUID) (Delivery, error) {
	if s == nil || s.pool == nil {
		return Delivery{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE id = $1`, id)
	return scanDelivery(row)
}

// ResetDeliveryForReplay moves a dead or delivered delivery back to pending so
// the dispatcher picks it up on the next tick.
func (s *pgStore) ResetDeliveryForReplay(ctx context.Context, id uuid.UUID) (Delivery, error) {
	if s == nil || s.pool == nil {
		return Delivery{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `UPDATE webhook_deliveries
SET status = 'pending', attempt = 0, last_error = NULL, next_attempt_at = now(), updated_at = now()
WHERE id = $1 RETURNING `+deliveryColumns, id)
	return scanDelivery(row)
}

func (s *pgStore) ListDeliveries(ctx context.Context, status string, limit, offset int) ([]Delivery, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	status = strings.TrimSpace(status)
	var (
		rows pgx.Rows
		err  error
	)
	if status != "" {
		rows, err = s.pool.Query(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, status, limit, offset)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deliveries := make([]Delivery, 0, limit)
	for rows.Next() {
		del, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, del)
	}
	return deliveries, rows.Err()
}

func (s *pgStore) CountDeliveries(ctx context.Context, status string) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, ErrStoreUnavailable
	}
	status = strings.TrimSpace(status)
	var total int64
	if status != "" {
		err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM webhook_deliveries WHERE status = $1`, status).Scan(&total)
		return total, err
	}
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM webhook_deliveries`).Scan(&total)
	return total, err
}

func (s *pgStore) GetDomainEvent(ctx context.Context, id uuid.UUID) (events.Event, error) {
	if s == nil || s.pool == nil {
		return events.Event{}, ErrStoreUnavailable
	}
	var ev events.Event
	err := s.pool.QueryRow(ctx, `SELECT id, topic, aggregate_id, payload, occurred_at FROM domain_events WHERE id = $1`, id).
		Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	if err != nil {
		return events.Event{}, err
	}
	return ev, nil
}
