package purchase

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrStoreUnavailable indicates the purchase store dependency is not configured.
var ErrStoreUnavailable = errors.New("purchase: store unavailable")

// Record is a persisted purchase header with its computed totals.
type Record struct {
	ID                uuid.UUID
	SupplierID        uuid.UUID
	InvoiceNumber     *string
	PaymentTerm       string
	DueDate           *time.Time
	Notes             *string
	SubtotalNet       decimal.Decimal
	VATTotal          decimal.Decimal
	PerceptionsTotal  decimal.Decimal
	WithholdingsTotal decimal.Decimal
	OtherTaxesTotal   decimal.Decimal
	GrandTotal        decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ItemRecord is one persisted purchase row.
type ItemRecord struct {
	ID               uuid.UUID
	PurchaseID       uuid.UUID
	ProductID        *int64
	Description      string
	Quantity         decimal.Decimal
	UnitCostNet      decimal.Decimal
	VATRatePercent   decimal.Decimal
	PriceIncludesVAT bool
	DiscountPercent  decimal.Decimal
	OtherTaxesAmount decimal.Decimal
	LineTotal        decimal.Decimal
}

// TaxLineRecord is one persisted tax line.
type TaxLineRecord struct {
	ID           uuid.UUID
	PurchaseID   uuid.UUID
	Kind         string
	Code         *string
	Description  string
	Base         decimal.Decimal
	RateFraction decimal.Decimal
	Amount       decimal.Decimal
}

// Store provides database accessors for purchases. Header, items and tax
// lines are written inside one transaction.
type Store interface {
	Create(ctx context.Context, rec Record, items []ItemRecord, taxes []TaxLineRecord) (Record, error)
	Replace(ctx context.Context, rec Record, items []ItemRecord, taxes []TaxLineRecord) (Record, error)
	Get(ctx context.Context, id uuid.UUID) (Record, []ItemRecord, []TaxLineRecord, error)
	List(ctx context.Context, limit, offset int) ([]Record, error)
	Count(ctx context.Context) (int64, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const purchaseColumns = `id, supplier_id, invoice_number, payment_term, due_date, notes,
subtotal_net::text, vat_total::text, perceptions_total::text, withholdings_total::text,
other_taxes_total::text, grand_total::text, created_at, updated_at`

func scanPurchase(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	var invoice, notes sql.NullString
	var due sql.NullTime
	var subtotal, vat, perc, with, other, grand string
	if err := row.Scan(&rec.ID, &rec.SupplierID, &invoice, &rec.PaymentTerm, &due, &notes,
		&subtotal, &vat, &perc, &with, &other, &grand, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	if invoice.Valid {
		rec.InvoiceNumber = &invoice.String
	}
	if notes.Valid {
		rec.Notes = &notes.String
	}
	if due.Valid {
		d := due.Time
		rec.DueDate = &d
	}
	var err error
	if rec.SubtotalNet, err = decimal.NewFromString(subtotal); err != nil {
		return Record{}, err
	}
	if rec.VATTotal, err = decimal.NewFromString(vat); err != nil {
		return Record{}, err
	}
	if rec.PerceptionsTotal, err = decimal.NewFromString(perc); err != nil {
		return Record{}, err
	}
	if rec.WithholdingsTotal, err = decimal.NewFromString(with); err != nil {
		return Record{}, err
	}
	if rec.OtherTaxesTotal, err = decimal.NewFromString(other); err != nil {
		return Record{}, err
	}
	if rec.GrandTotal, err = decimal.NewFromString(grand); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *pgStore) insertHeader(ctx context.Context, tx pgx.Tx, rec Record) (Record, error) {
	row := tx.QueryRow(ctx, `INSERT INTO purchases
(supplier_id, invoice_number, payment_term, due_date, notes,
 subtotal_net, vat_total, perceptions_total, withholdings_total, other_taxes_total, grand_total)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11::numeric)
RETURNING `+purchaseColumns,
		rec.SupplierID, rec.InvoiceNumber, rec.PaymentTerm, rec.DueDate, rec.Notes,
		rec.SubtotalNet.String(), rec.VATTotal.String(), rec.PerceptionsTotal.String(),
		rec.WithholdingsTotal.String(), rec.OtherTaxesTotal.String(), rec.GrandTotal.String())
	return scanPurchase(row)
}

func (s *pgStore) updateHeader(ctx context.Context, tx pgx.Tx, rec Record) (Record, error) {
	row := tx.QueryRow(ctx, `UPDATE purchases SET
supplier_id = $2, invoice_number = $3, payment_term = $4, due_date = $5, notes = $6,
subtotal_net = $7::numeric, vat_total = $8::numeric, perceptions_total = $9::numeric,
withholdings_total = $10::numeric, other_taxes_total = $11::numeric, grand_total = $12::numeric,
updated_at = now()
WHERE id = $1 RETURNING `+purchaseColumns,
		rec.ID, rec.SupplierID, rec.InvoiceNumber, rec.PaymentTerm, rec.DueDate, rec.Notes,
		rec.SubtotalNet.String(), rec.VATTotal.String(), rec.PerceptionsTotal.String(),
		rec.WithholdingsTotal.String(), rec.OtherTaxesTotal.String(), rec.GrandTotal.String())
	return scanPurchase(row)
}

func insertDetails(ctx context.Context, tx pgx.Tx, purchaseID uuid.UUID, items []ItemRecord, taxes []TaxLineRecord) error {
	for _, item := range items {
		_, err := tx.Exec(ctx, `INSERT INTO purchase_items
(purchase_id, product_id, description, quantity, unit_cost_net, vat_rate_percent, price_includes_vat, discount_percent, other_taxes_amount, line_total)
VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8::numeric, $9::numeric, $10::numeric)`,
			purchaseID, item.ProductID, item.Description, item.Quantity.String(), item.UnitCostNet.String(),
			item.VATRatePercent.String(), item.PriceIncludesVAT, item.DiscountPercent.String(),
			item.OtherTaxesAmount.String(), item.LineTotal.String())
		if err != nil {
			return err
		}
	}
	for _, tax := range taxes {
		_, err := tx.Exec(ctx, `INSERT INTO purchase_taxes
(purchase_id, kind, code, description, base, rate_fraction, amount)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric)`,
			purchaseID, tax.Kind, tax.Code, tax.Description, tax.Base.String(), tax.RateFraction.String(), tax.Amount.String())
		if err != nil {
			return err
		}
	}
	return nil
}

// Create persists a purchase with its items and tax lines transactionally.
func (s *pgStore) Create(ctx context.Context, rec Record, items []ItemRecord, taxes []TaxLineRecord) (Record, error) {
	if s == nil || s.pool == nil {
		return Record{}, ErrStoreUnavailable
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	stored, err := s.insertHeader(ctx, tx, rec)
	if err != nil {
		return Record{}, err
	}
	if err := insertDetails(ctx, tx, stored.ID, items, taxes); err != nil {
		return Record{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Record{}, err
	}
	return stored, nil
}

// Replace rewrites a purchase header and swaps its items and tax lines.
func (s *pgStore) Replace(ctx context.Context, rec Record, items []ItemRecord, taxes []TaxLineRecord) (Record, error) {
	if s == nil || s.pool == nil {
		return Record{}, ErrStoreUnavailable
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	stored, err := s.updateHeader(ctx, tx, rec)
	if err != nil {
		return Record{}, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM purchase_items WHERE purchase_id = $1`, stored.ID); err != nil {
		return Record{}, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM purchase_taxes WHERE purchase_id = $1`, stored.ID); err != nil {
		return Record{}, err
	}
	if err := insertDetails(ctx, tx, stored.ID, items, taxes); err != nil {
		return Record{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Record{}, err
	}
	return stored, nil
}

// Get fetches a purchase with its items and tax lines.
func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (Record, []ItemRecord, []TaxLineRecord, error) {
	if s == nil || s.pool == nil {
		return Record{}, nil, nil, ErrStoreUnavailable
	}
	rec, err := scanPurchase(s.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id))
	if err != nil {
		return Record{}, nil, nil, err
	}

	itemRows, err := s.pool.Query(ctx, `SELECT id, purchase_id, product_id, description,
quantity::text, unit_cost_net::text, vat_rate_percent::text, price_includes_vat,
discount_percent::text, other_taxes_amount::text, line_total::text
FROM purchase_items WHERE purchase_id = $1 ORDER BY id`, id)
	if err != nil {
		return Record{}, nil, nil, err
	}
	defer itemRows.Close()

	var items []ItemRecord
	for itemRows.Next() {
		var item ItemRecord
		var productID sql.NullInt64
		var qty, unit, rate, disc, other, total string
		if err := itemRows.Scan(&item.ID, &item.PurchaseID, &productID, &item.Description,
			&qty, &unit, &rate, &item.PriceIncludesVAT, &disc, &other, &total); err != nil {
			return Record{}, nil, nil, err
		}
		if productID.Valid {
			item.ProductID = &productID.Int64
		}
		if item.Quantity, err = decimal.NewFromString(qty); err != nil {
			return Record{}, nil, nil, err
		}
		if item.UnitCostNet, err = decimal.NewFromString(unit); err != nil {
			return Record{}, nil, nil, err
		}
		if item.VATRatePercent, err = decimal.NewFromString(rate); err != nil {
			return Record{}, nil, nil, err
		}
		if item.DiscountPercent, err = decimal.NewFromString(disc); err != nil {
			return Record{}, nil, nil, err
		}
		if item.OtherTaxesAmount, err = decimal.NewFromString(other); err != nil {
			return Record{}, nil, nil, err
		}
		if item.LineTotal, err = decimal.NewFromString(total); err != nil {
			return Record{}, nil, nil, err
		}
		items = append(items, item)
	}
	if err := itemRows.Err(); err != nil {
		return Record{}, nil, nil, err
	}

	taxRows, err := s.pool.Query(ctx, `SELECT id, purchase_id, kind, code, description,
base::text, rate_fraction::text, amount::text
FROM purchase_taxes WHERE purchase_id = $1 ORDER BY id`, id)
	if err != nil {
		return Record{}, nil, nil, err
	}
	defer taxRows.Close()

	var taxes []TaxLineRecord
	for taxRows.Next() {
		var tax TaxLineRecord
		var code sql.NullString
		var base, rate, amount string
		if err := taxRows.Scan(&tax.ID, &tax.PurchaseID, &tax.Kind, &code, &tax.Description, &base, &rate, &amount); err != nil {
			return Record{}, nil, nil, err
		}
		if code.Valid {
			tax.Code = &code.String
		}
		if tax.Base, err = decimal.NewFromString(base); err != nil {
			return Record{}, nil, nil, err
		}
		if tax.RateFraction, err = decimal.NewFromString(rate); err != nil {
			return Record{}, nil, nil, err
		}
		if tax.Amount, err = decimal.NewFromString(amount); err != nil {
			return Record{}, nil, nil, err
		}
		taxes = append(taxes, tax)
	}
	if err := taxRows.Err(); err != nil {
		return Record{}, nil, nil, err
	}
	return rec, items, taxes, nil
}

// List fetches purchase headers newest first.
func (s *pgStore) List(ctx context.Context, limit, offset int) ([]Record, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `SELECT `+purchaseColumns+` FROM purchases ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		rec, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count counts stored purchases.
func (s *pgStore) Count(ctx context.Context) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, ErrStoreUnavailable
	}
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchases`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
