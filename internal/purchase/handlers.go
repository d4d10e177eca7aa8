package purchase

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SoftFusion-Technologies/backend-compras/internal/common"
	"github.com/SoftFusion-Technologies/backend-compras/internal/numeric"
)

// Handler exposes purchase endpoints.
type Handler struct {
	Svc            *Service
	Validate       *validator.Validate
	DefaultVATRate decimal.Decimal
	DefaultLimit   int
	MaxLimit       int
}

// flexNumber accepts JSON numbers and free-form numeric strings. Strings
// go through the tolerant parser, so "1.234,56" and "1,234.56" both load.
type flexNumber struct {
	d decimal.Decimal
}

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		f.d = decimal.Zero
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f.d = numeric.ParseDecimal(s, decimal.Zero)
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		f.d = decimal.Zero
		return nil
	}
	f.d = d
	return nil
}

// flexQuantity behaves like flexNumber but sanitizes string input the way
// the quantity field does: digits plus at most one separator and three
// decimals.
type flexQuantity struct {
	d decimal.Decimal
}

func (f *flexQuantity) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		f.d = decimal.Zero
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f.d = numeric.ParseDecimal(numeric.SanitizeQuantity(s, 3), decimal.Zero)
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		f.d = decimal.Zero
		return nil
	}
	f.d = d
	return nil
}

// itemPayload mirrors PayloadDetail so a fetched purchase re-submits as-is.
// The unitCost/otherTaxes aliases keep older clients working.
type itemPayload struct {
	ProductID        *int64       `json:"productId"`
	Description      string       `json:"description" validate:"required,max=255"`
	Quantity         flexQuantity `json:"quantity"`
	UnitCostNet      *flexNumber  `json:"unitCostNet"`
	UnitCostLegacy   *flexNumber  `json:"unitCost"`
	VATRatePercent   *flexNumber  `json:"vatRatePercent"`
	PriceIncludesVAT bool         `json:"priceIncludesVat"`
	DiscountPercent  flexNumber   `json:"discountPercent"`
	OtherTaxesAmount *flexNumber  `json:"otherTaxesAmount"`
	OtherTaxesLegacy *flexNumber  `json:"otherTaxes"`
}

func firstFlex(primary, alias *flexNumber) decimal.Decimal {
	if primary != nil {
		return primary.d
	}
	if alias != nil {
		return alias.d
	}
	return decimal.Zero
}

func (h *Handler) vatRateOrDefault(rate *flexNumber) decimal.Decimal {
	if rate != nil {
		return rate.d
	}
	if h.DefaultVATRate.IsPositive() {
		return h.DefaultVATRate
	}
	return decimal.NewFromInt(21)
}

type taxSelectionPayload struct {
	Code string      `json:"code" validate:"required,max=32"`
	Base *flexNumber `json:"base"`
}

type purchaseRequest struct {
	SupplierID         uuid.UUID             `json:"supplierId"`
	InvoiceNumber      *string               `json:"invoiceNumber" validate:"omitempty,max=40"`
	PaymentTerm        string                `json:"paymentTerm" validate:"omitempty,oneof=contado credito cuenta_corriente"`
	DueDate            *string               `json:"dueDate"`
	Notes              *string               `json:"notes" validate:"omitempty,max=500"`
	Detalles           []itemPayload         `json:"detalles" validate:"dive"`
	Impuestos          []taxSelectionPayload `json:"impuestos" validate:"dive"`
	ManualPerceptions  flexNumber            `json:"manualPerceptions"`
	ManualWithholdings flexNumber            `json:"manualWithholdings"`
}

func (h *Handler) decode(r *http.Request) (SubmitInput, error) {
	var payload purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return SubmitInput{}, common.ErrBadRequest("invalid payload", nil)
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			return SubmitInput{}, common.ErrBadRequest(err.Error(), nil)
		}
	}

	var dueDate *time.Time
	if payload.DueDate != nil && *payload.DueDate != "" {
		parsed, err := parseDate(*payload.DueDate)
		if err != nil {
			return SubmitInput{}, common.ErrBadRequest("dueDate must be YYYY-MM-DD or RFC 3339", nil)
		}
		dueDate = &parsed
	}

	items := make([]Item, len(payload.Detalles))
	for i, d := range payload.Detalles {
		items[i] = Item{
			ProductID:   d.ProductID,
			Description: d.Description,
			Line: Line{
				Quantity:         d.Quantity.d,
				UnitCost:         firstFlex(d.UnitCostNet, d.UnitCostLegacy),
				VATRatePercent:   h.vatRateOrDefault(d.VATRatePercent),
				PriceIncludesVAT: d.PriceIncludesVAT,
				DiscountPercent:  d.DiscountPercent.d,
				OtherTaxes:       firstFlex(d.OtherTaxesAmount, d.OtherTaxesLegacy),
			},
		}
	}
	taxes := make([]TaxSelectionInput, len(payload.Impuestos))
	for i, t := range payload.Impuestos {
		sel := TaxSelectionInput{Code: t.Code}
		if t.Base != nil {
			base := t.Base.d
			sel.Base = &base
		}
		taxes[i] = sel
	}

	return SubmitInput{
		SupplierID:         payload.SupplierID,
		InvoiceNumber:      payload.InvoiceNumber,
		PaymentTerm:        payload.PaymentTerm,
		DueDate:            dueDate,
		Notes:              payload.Notes,
		Items:              items,
		Taxes:              taxes,
		ManualPerceptions:  payload.ManualPerceptions.d,
		ManualWithholdings: payload.ManualWithholdings.d,
	}, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

type purchaseResponse struct {
	ID                uuid.UUID  `json:"id"`
	SupplierID        uuid.UUID  `json:"supplierId"`
	InvoiceNumber     *string    `json:"invoiceNumber"`
	PaymentTerm       string     `json:"paymentTerm"`
	DueDate           *time.Time `json:"dueDate"`
	Notes             *string    `json:"notes"`
	SubtotalNet       float64    `json:"subtotalNet"`
	VATTotal          float64    `json:"vatTotal"`
	PerceptionsTotal  float64    `json:"perceptionsTotal"`
	WithholdingsTotal float64    `json:"withholdingsTotal"`
	OtherTaxesTotal   float64    `json:"otherTaxesTotal"`
	GrandTotal        float64    `json:"grandTotal"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

type purchaseDetailResponse struct {
	purchaseResponse
	Detalles  []PayloadDetail `json:"detalles"`
	Impuestos []PayloadTax    `json:"impuestos"`
}

func toPurchaseResponse(rec Record) purchaseResponse {
	return purchaseResponse{
		ID:                rec.ID,
		SupplierID:        rec.SupplierID,
		InvoiceNumber:     rec.InvoiceNumber,
		PaymentTerm:       rec.PaymentTerm,
		DueDate:           rec.DueDate,
		Notes:             rec.Notes,
		SubtotalNet:       rec.SubtotalNet.InexactFloat64(),
		VATTotal:          rec.VATTotal.InexactFloat64(),
		PerceptionsTotal:  rec.PerceptionsTotal.InexactFloat64(),
		WithholdingsTotal: rec.WithholdingsTotal.InexactFloat64(),
		OtherTaxesTotal:   rec.OtherTaxesTotal.InexactFloat64(),
		GrandTotal:        rec.GrandTotal.InexactFloat64(),
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
}

func toDetailResponse(rec Record, items []ItemRecord, taxes []TaxLineRecord) purchaseDetailResponse {
	details := make([]PayloadDetail, len(items))
	for i, it := range items {
		details[i] = PayloadDetail{
			ProductID:        it.ProductID,
			Description:      it.Description,
			Quantity:         it.Quantity.InexactFloat64(),
			UnitCostNet:      it.UnitCostNet.InexactFloat64(),
			VATRatePercent:   it.VATRatePercent.InexactFloat64(),
			PriceIncludesVAT: it.PriceIncludesVAT,
			DiscountPercent:  it.DiscountPercent.InexactFloat64(),
			OtherTaxesAmount: it.OtherTaxesAmount.InexactFloat64(),
			LineTotal:        it.LineTotal.InexactFloat64(),
		}
	}
	impuestos := make([]PayloadTax, len(taxes))
	for i, tl := range taxes {
		impuestos[i] = PayloadTax{
			Type:         tl.Kind,
			Code:         tl.Code,
			Base:         tl.Base.InexactFloat64(),
			RateFraction: tl.RateFraction.InexactFloat64(),
			Amount:       tl.Amount.InexactFloat64(),
		}
	}
	return purchaseDetailResponse{
		purchaseResponse: toPurchaseResponse(rec),
		Detalles:         details,
		Impuestos:        impuestos,
	}
}

// Create validates, computes and persists a new purchase.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	input, err := h.decode(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	rec, payload, err := h.Svc.Create(r.Context(), input)
	if err != nil {
		writePurchaseError(w, err, "failed to create purchase")
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
		"purchase": toPurchaseResponse(rec),
		"payload":  payload,
	}})
}

// Update recomputes an existing purchase and replaces its rows.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.ErrBadRequest("invalid purchase id", nil))
		return
	}
	input, err := h.decode(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	rec, payload, err := h.Svc.Update(r.Context(), id, input)
	if err != nil {
		writePurchaseError(w, err, "failed to update purchase")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"purchase": toPurchaseResponse(rec),
		"payload":  payload,
	}})
}

// Preview runs the engine over the request body without persisting. The
// response mirrors what a subsequent create would store.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	input, err := h.decode(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	payload, err := h.Svc.Preview(r.Context(), input)
	if err != nil {
		writePurchaseError(w, err, "failed to compute totals")
		return
	}
	common.JSONData(w, http.StatusOK, payload)
}

// Get fetches one purchase with its items and tax lines.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.ErrBadRequest("invalid purchase id", nil))
		return
	}
	rec, items, taxes, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writePurchaseError(w, err, "failed to fetch purchase")
		return
	}
	common.JSONData(w, http.StatusOK, toDetailResponse(rec, items, taxes))
}

// List returns purchase headers with pagination, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, h.DefaultLimit, h.MaxLimit)
	records, total, err := h.Svc.List(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		writePurchaseError(w, err, "failed to list purchases")
		return
	}
	items := make([]purchaseResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, toPurchaseResponse(rec))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

func writePurchaseError(w http.ResponseWriter, err error, fallback string) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.WriteError(w, err)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", fallback, nil)
}
