package taxcatalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrStoreUnavailable indicates the tax catalog store dependency is not configured.
var ErrStoreUnavailable = errors.New("taxcatalog: store unavailable")

// Tax is a configured tax type eligible for attachment to purchases.
type Tax struct {
	ID           uuid.UUID
	Code         string
	Kind         string
	Description  string
	RateFraction decimal.Decimal
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store provides database accessors for the configured tax catalog.
type Store interface {
	Insert(ctx context.Context, tax Tax) (Tax, error)
	Update(ctx context.Context, tax Tax) (Tax, error)
	Delete(ctx context.Context, code string) (bool, error)
	GetByCode(ctx context.Context, code string) (Tax, error)
	List(ctx context.Context, onlyActive bool, limit, offset int) ([]Tax, error)
	Count(ctx context.Context, onlyActive bool) (int64, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const taxColumns = `id, code, kind, description, rate_fraction::text, active, created_at, updated_at`

func scanTax(row interface{ Scan(...any) error }) (Tax, error) {
	var tax Tax
	var rate string
	if err := row.Scan(&tax.ID, &tax.Code, &tax.Kind, &tax.Description, &rate, &tax.Active, &tax.CreatedAt, &tax.UpdatedAt); err != nil {
		return Tax{}, err
	}
	parsed, err := decimal.NewFromString(rate)
	if err != nil {
		return Tax{}, err
	}
	tax.RateFraction = parsed
	return tax, nil
}

// Insert persists a new configured tax and returns the stored row.
func (s *pgStore) Insert(ctx context.Context, tax Tax) (Tax, error) {
	if s == nil || s.pool == nil {
		return Tax{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `INSERT INTO configured_taxes (code, kind, description, rate_fraction, active)
VALUES ($1, $2, $3, $4::numeric, $5) RETURNING `+taxColumns,
		tax.Code, tax.Kind, tax.Description, tax.RateFraction.String(), tax.Active)
	return scanTax(row)
}

// Update mutates an existing configured tax identified by code.
func (s *pgStore) Update(ctx context.Context, tax Tax) (Tax, error) {
	if s == nil || s.pool == nil {
		return Tax{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `UPDATE configured_taxes
SET kind = $2, description = $3, rate_fraction = $4::numeric, active = $5, updated_at = now()
WHERE lower(code) = lower($1) RETURNING `+taxColumns,
		tax.Code, tax.Kind, tax.Description, tax.RateFraction.String(), tax.Active)
	return scanTax(row)
}

// Delete removes a configured tax by code and reports whether a row existed.
func (s *pgStore) Delete(ctx context.Context, code string) (bool, error) {
	if s == nil || s.pool == nil {
		return false, ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM configured_taxes WHERE lower(code) = lower($1)`, code)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetByCode fetches a configured tax by its unique code.
func (s *pgStore) GetByCode(ctx context.Context, code string) (Tax, error) {
	if s == nil || s.pool == nil {
		return Tax{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `SELECT `+taxColumns+` FROM configured_taxes WHERE lower(code) = lower($1)`, strings.TrimSpace(code))
	return scanTax(row)
}

// List fetches configured taxes ordered by code with pagination.
func (s *pgStore) List(ctx context.Context, onlyActive bool, limit, offset int) ([]Tax, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + taxColumns + ` FROM configured_taxes ORDER BY code LIMIT $1 OFFSET $2`
	if onlyActive {
		query = `SELECT ` + taxColumns + ` FROM configured_taxes WHERE active ORDER BY code LIMIT $1 OFFSET $2`
	}
	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	taxes := make([]Tax, 0, limit)
	for rows.Next() {
		tax, err := scanTax(rows)
		if err != nil {
			return nil, err
		}
		taxes = append(taxes, tax)
	}
	return taxes, rows.Err()
}

// Count counts configured taxes, optionally only active ones.
func (s *pgStore) Count(ctx context.Context, onlyActive bool) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, ErrStoreUnavailable
	}
	query := `SELECT COUNT(*) FROM configured_taxes`
	if onlyActive {
		query += ` WHERE active`
	}
	var total int64
	if err := s.pool.QueryRow(ctx, query).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
