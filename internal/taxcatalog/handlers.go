package taxcatalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/SoftFusion-Technologies/backend-compras/internal/common"
	"github.com/SoftFusion-Technologies/backend-compras/internal/purchase"
)

// Handler exposes configured tax catalog endpoints.
type Handler struct {
	Svc          *Service
	Validate     *validator.Validate
	DefaultLimit int
	MaxLimit     int
}

type taxPayload struct {
	Code         string          `json:"code" validate:"required,max=32"`
	Kind         string          `json:"kind" validate:"required"`
	Description  string          `json:"description" validate:"max=255"`
	RateFraction decimal.Decimal `json:"rateFraction"`
	Active       *bool           `json:"active"`
}

type taxResponse struct {
	ID           uuid.UUID       `json:"id"`
	Code         string          `json:"code"`
	Kind         string          `json:"kind"`
	Description  string          `json:"description"`
	RateFraction decimal.Decimal `json:"rateFraction"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func toResponse(tax Tax) taxResponse {
	return taxResponse{
		ID:           tax.ID,
		Code:         tax.Code,
		Kind:         tax.Kind,
		Description:  tax.Description,
		RateFraction: tax.RateFraction,
		Active:       tax.Active,
		CreatedAt:    tax.CreatedAt,
		UpdatedAt:    tax.UpdatedAt,
	}
}

func (h *Handler) decode(r *http.Request) (Tax, error) {
	var payload taxPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return Tax{}, common.ErrBadRequest("invalid payload", nil)
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			return Tax{}, common.ErrBadRequest(err.Error(), nil)
		}
	}
	kind, err := purchase.ParseTaxKind(payload.Kind)
	if err != nil {
		return Tax{}, common.ErrBadRequest("kind must be one of Percepcion, Retencion, Otro, IVA", nil)
	}
	if payload.RateFraction.IsNegative() || payload.RateFraction.GreaterThan(decimal.NewFromInt(1)) {
		return Tax{}, common.ErrBadRequest("rateFraction must be between 0 and 1", nil)
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	return Tax{
		Code:         strings.TrimSpace(payload.Code),
		Kind:         string(kind),
		Description:  strings.TrimSpace(payload.Description),
		RateFraction: payload.RateFraction,
		Active:       active,
	}, nil
}

// Create inserts a new configured tax.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tax, err := h.decode(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	created, err := h.Svc.Create(r.Context(), tax)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.WriteError(w, common.ErrConflict("tax code already exists"))
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create tax", nil)
		return
	}
	common.JSONData(w, http.StatusCreated, toResponse(created))
}

// Update mutates an existing configured tax identified by code.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.WriteError(w, common.ErrBadRequest("code is required", nil))
		return
	}
	tax, err := h.decode(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	tax.Code = code
	updated, err := h.Svc.Update(r.Context(), tax)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.WriteError(w, common.ErrNotFound("tax"))
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update tax", nil)
		return
	}
	common.JSONData(w, http.StatusOK, toResponse(updated))
}

// Delete removes a configured tax by code.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.WriteError(w, common.ErrBadRequest("code is required", nil))
		return
	}
	deleted, err := h.Svc.Delete(r.Context(), code)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete tax", nil)
		return
	}
	if !deleted {
		common.WriteError(w, common.ErrNotFound("tax"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Get fetches a single configured tax by code.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	tax, err := h.Svc.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.WriteError(w, common.ErrNotFound("tax"))
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to fetch tax", nil)
		return
	}
	common.JSONData(w, http.StatusOK, toResponse(tax))
}

// List returns configured taxes with pagination. `?active=true` restricts
// the listing to active entries.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, h.DefaultLimit, h.MaxLimit)
	onlyActive := strings.EqualFold(r.URL.Query().Get("active"), "true")
	taxes, total, err := h.Svc.List(r.Context(), onlyActive, perPage, (page-1)*perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list taxes", nil)
		return
	}
	items := make([]taxResponse, 0, len(taxes))
	for _, tax := range taxes {
		items = append(items, toResponse(tax))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}
