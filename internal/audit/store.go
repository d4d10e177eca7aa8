package audit

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable indicates the audit store dependency is not configured.
var ErrStoreUnavailable = errors.New("audit: store unavailable")

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

// InsertAuditLog persists an audit entry and returns the generated identifier.
func (s *pgStore) InsertAuditLog(ctx context.Context, entry Entry) (uuid.UUID, error) {
	if s == nil || s.pool == nil {
		return uuid.Nil, ErrStoreUnavailable
	}
	var metadata any
	if len(entry.Metadata) > 0 {
		metadata = []byte(entry.Metadata)
	}
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `INSERT INTO audit_logs
(actor_kind, action, resource_type, resource_id, method, path, route, status, ip, user_agent, request_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		entry.ActorKind, entry.Action, entry.ResourceType, entry.ResourceID, entry.Method, entry.Path,
		entry.Route, entry.Status, entry.IP, entry.UserAgent, entry.RequestID, metadata).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ListAuditLogs fetches audit entries newest first.
func (s *pgStore) ListAuditLogs(ctx context.Context, limit, offset int) ([]Entry, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `SELECT id, actor_kind, action, resource_type, resource_id, method, path, route, status, ip, user_agent, request_id, metadata, created_at
FROM audit_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var resourceID, route, ip, ua, requestID sql.NullString
		var metadata []byte
		if err := rows.Scan(&entry.ID, &entry.ActorKind, &entry.Action, &entry.ResourceType, &resourceID,
			&entry.Method, &entry.Path, &route, &entry.Status, &ip, &ua, &requestID, &metadata, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if resourceID.Valid {
			entry.ResourceID = &resourceID.String
		}
		if route.Valid {
			entry.Route = &route.String
		}
		if ip.Valid {
			entry.IP = &ip.String
		}
		if ua.Valid {
			entry.UserAgent = &ua.String
		}
		if requestID.Valid {
			entry.RequestID = &requestID.String
		}
		entry.Metadata = metadata
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountAuditLogs counts stored audit entries.
func (s *pgStore) CountAuditLogs(ctx context.Context) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, ErrStoreUnavailable
	}
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
