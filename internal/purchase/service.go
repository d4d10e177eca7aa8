package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/SoftFusion-Technologies/backend-compras/internal/common"
	"github.com/SoftFusion-Technologies/backend-compras/internal/events"
	"github.com/SoftFusion-Technologies/backend-compras/internal/numeric"
	"github.com/SoftFusion-Technologies/backend-compras/internal/obs"
)

// Payment terms. Deferred terms require a due date on the header.
const (
	PaymentTermCash           = "contado"
	PaymentTermCredit         = "credito"
	PaymentTermCurrentAccount = "cuenta_corriente"
)

// TaxSelectionInput references a configured tax by code, optionally
// overriding the suggested base.
type TaxSelectionInput struct {
	Code string
	Base *decimal.Decimal
}

// SubmitInput carries everything needed to compute and persist a purchase.
type SubmitInput struct {
	SupplierID         uuid.UUID
	InvoiceNumber      *string
	PaymentTerm        string
	DueDate            *time.Time
	Notes              *string
	Items              []Item
	Taxes              []TaxSelectionInput
	ManualPerceptions  decimal.Decimal
	ManualWithholdings decimal.Decimal
}

// Catalog resolves configured taxes by code.
type Catalog interface {
	FindConfigured(ctx context.Context, code string) (ConfiguredTax, bool, error)
}

// SupplierDirectory answers supplier existence checks.
type SupplierDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Emitter publishes domain events after successful writes.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Service hosts the purchase engine behind validation, persistence and
// event emission.
type Service struct {
	Store     Store
	Suppliers SupplierDirectory
	Catalog   Catalog
	Bus       Emitter
	Logger    zerolog.Logger
}

type computed struct {
	totals   Totals
	payload  Payload
	items    []ItemRecord
	taxLines []TaxLineRecord
}

// Preview runs the engine over the input without persisting anything.
func (s *Service) Preview(ctx context.Context, input SubmitInput) (Payload, error) {
	if err := validateLines(input); err != nil {
		return Payload{}, err
	}
	result, err := s.compute(ctx, input)
	if err != nil {
		return Payload{}, err
	}
	if obs.PurchasePreviewTotal != nil {
		obs.PurchasePreviewTotal.Inc()
	}
	return result.payload, nil
}

// Create validates, computes and persists a new purchase, then emits
// purchase.created.
func (s *Service) Create(ctx context.Context, input SubmitInput) (Record, Payload, error) {
	if err := s.validateHeader(ctx, input); err != nil {
		countWrite("create", "rejected")
		return Record{}, Payload{}, err
	}
	result, err := s.compute(ctx, input)
	if err != nil {
		countWrite("create", "rejected")
		return Record{}, Payload{}, err
	}
	rec := s.toRecord(input, result.totals)
	stored, err := s.Store.Create(ctx, rec, result.items, result.taxLines)
	if err != nil {
		countWrite("create", "error")
		return Record{}, Payload{}, err
	}
	countWrite("create", "ok")
	if obs.PurchaseGrandTotal != nil {
		obs.PurchaseGrandTotal.Observe(result.payload.GrandTotal)
	}
	s.emit(ctx, events.TopicPurchaseCreated, stored, result.payload)
	return stored, result.payload, nil
}

// Update recomputes a purchase and replaces its items and tax lines,
// then emits purchase.updated.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input SubmitInput) (Record, Payload, error) {
	if err := s.validateHeader(ctx, input); err != nil {
		countWrite("update", "rejected")
		return Record{}, Payload{}, err
	}
	result, err := s.compute(ctx, input)
	if err != nil {
		countWrite("update", "rejected")
		return Record{}, Payload{}, err
	}
	rec := s.toRecord(input, result.totals)
	rec.ID = id
	stored, err := s.Store.Replace(ctx, rec, result.items, result.taxLines)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			countWrite("update", "rejected")
			return Record{}, Payload{}, common.ErrNotFound("purchase")
		}
		countWrite("update", "error")
		return Record{}, Payload{}, err
	}
	countWrite("update", "ok")
	s.emit(ctx, events.TopicPurchaseUpdated, stored, result.payload)
	return stored, result.payload, nil
}

// Get fetches a purchase with its rows.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Record, []ItemRecord, []TaxLineRecord, error) {
	rec, items, taxes, err := s.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, nil, nil, common.ErrNotFound("purchase")
		}
		return Record{}, nil, nil, err
	}
	return rec, items, taxes, nil
}

// List fetches purchase headers with pagination.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Record, int64, error) {
	records, err := s.Store.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Store.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *Service) validateHeader(ctx context.Context, input SubmitInput) error {
	if input.SupplierID == uuid.Nil {
		return common.ErrBadRequest("supplier is required", nil)
	}
	if s.Suppliers != nil {
		exists, err := s.Suppliers.Exists(ctx, input.SupplierID)
		if err != nil {
			return err
		}
		if !exists {
			return common.ErrBadRequest("supplier does not exist", nil)
		}
	}
	term := input.PaymentTerm
	if term == "" {
		term = PaymentTermCash
	}
	switch term {
	case PaymentTermCash, PaymentTermCredit, PaymentTermCurrentAccount:
	default:
		return common.ErrBadRequest("unknown payment term", map[string]any{"paymentTerm": input.PaymentTerm})
	}
	if (term == PaymentTermCredit || term == PaymentTermCurrentAccount) && input.DueDate == nil {
		return common.ErrBadRequest("due date is required for deferred payment terms", nil)
	}
	return validateLines(input)
}

func validateLines(input SubmitInput) error {
	if len(input.Items) == 0 {
		return common.ErrBadRequest("at least one item is required", nil)
	}
	for i, item := range input.Items {
		if !item.Quantity.IsPositive() {
			return common.ErrBadRequest("quantity must be greater than zero", map[string]any{"item": i})
		}
	}
	return nil
}

// compute resolves the tax selection against the catalog and runs the
// engine. Attach rejections surface as validation errors.
func (s *Service) compute(ctx context.Context, input SubmitInput) (computed, error) {
	lines := make([]Line, len(input.Items))
	for i, item := range input.Items {
		lines[i] = item.Line
	}
	probe := Aggregate(lines, nil, decimal.Zero, decimal.Zero)

	var selection Selection
	for _, sel := range input.Taxes {
		if s.Catalog == nil {
			return computed{}, common.ErrBadRequest("tax selection is not supported without a catalog", nil)
		}
		tax, found, err := s.Catalog.FindConfigured(ctx, sel.Code)
		if err != nil {
			return computed{}, err
		}
		if !found {
			countRejection("unknown_code")
			return computed{}, common.ErrBadRequest("unknown tax code", map[string]any{"code": sel.Code})
		}
		if err := selection.Attach(tax, probe.SubtotalNet, probe.VATTotal); err != nil {
			switch {
			case errors.Is(err, ErrVATManaged):
				countRejection("vat_managed")
				return computed{}, common.ErrBadRequest("VAT is computed from line items and cannot be attached", map[string]any{"code": sel.Code})
			case errors.Is(err, ErrDuplicateTax):
				countRejection("duplicate")
				return computed{}, common.ErrBadRequest("tax code already attached", map[string]any{"code": sel.Code})
			default:
				return computed{}, err
			}
		}
		if sel.Base != nil {
			selection.SetBase(selection.Len()-1, *sel.Base)
		}
	}

	selected := selection.Records()
	totals := Aggregate(lines, selected, input.ManualPerceptions, input.ManualWithholdings)
	payload := BuildPayload(input.Items, selected, input.ManualPerceptions, input.ManualWithholdings)
	taxLines := BuildTaxLines(selected, totals.SubtotalNet, totals.VATTotal, input.ManualPerceptions, input.ManualWithholdings)

	items := make([]ItemRecord, len(input.Items))
	for i, item := range input.Items {
		lt := ComputeLine(item.Line)
		items[i] = ItemRecord{
			ProductID:        item.ProductID,
			Description:      item.Description,
			Quantity:         item.Quantity.Round(3),
			UnitCostNet:      numeric.Round2(item.UnitCost),
			VATRatePercent:   numeric.Round2(item.VATRatePercent),
			PriceIncludesVAT: item.PriceIncludesVAT,
			DiscountPercent:  numeric.Round2(item.DiscountPercent),
			OtherTaxesAmount: numeric.Round2(item.OtherTaxes),
			LineTotal:        numeric.Round2(lt.Total),
		}
	}
	taxRecords := make([]TaxLineRecord, len(taxLines))
	for i, rec := range taxLines {
		var code *string
		if rec.Code != "" {
			c := rec.Code
			code = &c
		}
		taxRecords[i] = TaxLineRecord{
			Kind:         string(rec.Kind),
			Code:         code,
			Description:  rec.Description,
			Base:         numeric.Round2(rec.Base),
			RateFraction: rec.Rate,
			Amount:       numeric.Round2(rec.Amount),
		}
	}
	return computed{totals: totals, payload: payload, items: items, taxLines: taxRecords}, nil
}

func (s *Service) toRecord(input SubmitInput, totals Totals) Record {
	term := input.PaymentTerm
	if term == "" {
		term = PaymentTermCash
	}
	return Record{
		SupplierID:        input.SupplierID,
		InvoiceNumber:     input.InvoiceNumber,
		PaymentTerm:       term,
		DueDate:           input.DueDate,
		Notes:             input.Notes,
		SubtotalNet:       numeric.Round2(totals.SubtotalNet),
		VATTotal:          numeric.Round2(totals.VATTotal),
		PerceptionsTotal:  numeric.Round2(totals.Perceptions),
		WithholdingsTotal: numeric.Round2(totals.Withholdings),
		OtherTaxesTotal:   numeric.Round2(totals.OtherTaxes),
		GrandTotal:        numeric.Round2(totals.GrandTotal),
	}
}

func (s *Service) emit(ctx context.Context, topic string, rec Record, payload Payload) {
	if s.Bus == nil {
		return
	}
	body := struct {
		PurchaseID string  `json:"purchaseId"`
		SupplierID string  `json:"supplierId"`
		GrandTotal float64 `json:"grandTotal"`
		Payload    Payload `json:"payload"`
	}{
		PurchaseID: rec.ID.String(),
		SupplierID: rec.SupplierID.String(),
		GrandTotal: payload.GrandTotal,
		Payload:    payload,
	}
	if _, err := s.Bus.Emit(ctx, topic, rec.ID, body); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Msg(fmt.Sprintf("event emission failed for purchase %s", rec.ID))
	}
}

func countWrite(op, result string) {
	if obs.PurchasesTotal != nil {
		obs.PurchasesTotal.WithLabelValues(op, result).Inc()
	}
}

func countRejection(reason string) {
	if obs.TaxAttachRejectedTotal != nil {
		obs.TaxAttachRejectedTotal.WithLabelValues(reason).Inc()
	}
}
