package supplier

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable indicates the supplier store dependency is not configured.
var ErrStoreUnavailable = errors.New("supplier: store unavailable")

// Supplier is a vendor purchases are booked against.
type Supplier struct {
	ID        uuid.UUID
	Name      string
	CUIT      *string
	Email     *string
	Phone     *string
	Address   *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store provides database accessors for suppliers.
type Store interface {
	Insert(ctx context.Context, s Supplier) (Supplier, error)
	Update(ctx context.Context, s Supplier) (Supplier, error)
	Get(ctx context.Context, id uuid.UUID) (Supplier, error)
	List(ctx context.Context, search string, limit, offset int) ([]Supplier, error)
	Count(ctx context.Context, search string) (int64, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const supplierColumns = `id, name, cuit, email, phone, address, active, created_at, updated_at`

func scanSupplier(row interface{ Scan(...any) error }) (Supplier, error) {
	var s Supplier
	var cuit, email, phone, address sql.NullString
	if err := row.Scan(&s.ID, &s.Name, &cuit, &email, &phone, &address, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return Supplier{}, err
	}
	if cuit.Valid {
		s.CUIT = &cuit.String
	}
	if email.Valid {
		s.Email = &email.String
	}
	if phone.Valid {
		s.Phone = &phone.String
	}
	if address.Valid {
		s.Address = &address.String
	}
	return s, nil
}

func nullable(v *string) any {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return strings.TrimSpace(*v)
}

// Insert persists a new supplier and returns the stored row.
func (s *pgStore) Insert(ctx context.Context, sup Supplier) (Supplier, error) {
	if s == nil || s.pool == nil {
		return Supplier{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `INSERT INTO suppliers (name, cuit, email, phone, address, active)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+supplierColumns,
		sup.Name, nullable(sup.CUIT), nullable(sup.Email), nullable(sup.Phone), nullable(sup.Address), sup.Active)
	return scanSupplier(row)
}

// Update mutates an existing supplier.
func (s *pgStore) Update(ctx context.Context, sup Supplier) (Supplier, error) {
	if s == nil || s.pool == nil {
		return Supplier{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `UPDATE suppliers
SET name = $2, cuit = $3, email = $4, phone = $5, address = $6, active = $7, updated_at = now()
WHERE id = $1 RETURNING `+supplierColumns,
		sup.ID, sup.Name, nullable(sup.CUIT), nullable(sup.Email), nullable(sup.Phone), nullable(sup.Address), sup.Active)
	return scanSupplier(row)
}

// Get fetches a supplier by ID.
func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (Supplier, error) {
	if s == nil || s.pool == nil {
		return Supplier{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id)
	return scanSupplier(row)
}

// List fetches suppliers filtered by a name/cuit search term with pagination.
func (s *pgStore) List(ctx context.Context, search string, limit, offset int) ([]Supplier, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	search = strings.TrimSpace(search)
	var (
		query string
		args  []any
	)
	if search != "" {
		query = `SELECT ` + supplierColumns + ` FROM suppliers WHERE name ILIKE '%' || $1 || '%' OR cuit ILIKE '%' || $1 || '%' ORDER BY name LIMIT $2 OFFSET $3`
		args = []any{search, limit, offset}
	} else {
		query = `SELECT ` + supplierColumns + ` FROM suppliers ORDER BY name LIMIT $1 OFFSET $2`
		args = []any{limit, offset}
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]Supplier, 0, limit)
	for rows.Next() {
		sup, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

// Count counts suppliers matching the search term.
func (s *pgStore) Count(ctx context.Context, search string) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, ErrStoreUnavailable
	}
	search = strings.TrimSpace(search)
	var total int64
	if search != "" {
		err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers WHERE name ILIKE '%' || $1 || '%' OR cuit ILIKE '%' || $1 || '%'`, search).Scan(&total)
		return total, err
	}
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`).Scan(&total)
	return total, err
}

// Exists reports whether a supplier with the given ID is present.
func (s *pgStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if s == nil || s.pool == nil {
		return false, ErrStoreUnavailable
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM suppliers WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
