package supplier

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

	"github.com/SoftFusion-Technologies/backend-compras/internal/common"
)

// Handler exposes supplier CRUD endpoints.
type Handler struct {
	Store        Store
	Validate     *validator.Validate
	DefaultLimit int
	MaxLimit     int
}

type supplierPayload struct {
	Name    string  `json:"name" validate:"required,max=160"`
	CUIT    *string `json:"cuit" validate:"omitempty,max=13"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone" validate:"omitempty,max=40"`
	Address *string `json:"address" validate:"omitempty,max=255"`
	Active  *bool   `json:"active"`
}

type supplierResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CUIT      *string   `json:"cuit,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Address   *string   `json:"address,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toResponse(s Supplier) supplierResponse {
	return supplierResponse{
		ID:        s.ID,
		Name:      s.Name,
		CUIT:      s.CUIT,
		Email:     s.Email,
		Phone:     s.Phone,
		Address:   s.Address,
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (h *Handler) decode(r *http.Request) (Supplier, error) {
	var payload supplierPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return Supplier{}, common.ErrBadRequest("invalid payload", nil)
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			return Supplier{}, common.ErrBadRequest(err.Error(), nil)
		}
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	return Supplier{
		Name:    strings.TrimSpace(payload.Name),
		CUIT:    payload.CUIT,
		Email:   payload.Email,
		Phone:   payload.Phone,
		Address: payload.Address,
		Active:  active,
	}, nil
}

// Create inserts a new supplier.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	sup, err := h.decode(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	created, err := h.Store.Insert(r.Context(), sup)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.WriteError(w, common.ErrConflict("supplier cuit already registered"))
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create supplier", nil)
		return
	}
	common.JSONData(w, http.StatusCreated, toResponse(created))
}

// Update mutates an existing supplier.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.ErrBadRequest("invalid supplier id", nil))
		return
	}
	sup, err := h.decode(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	sup.ID = id
	updated, err := h.Store.Update(r.Context(), sup)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.WriteError(w, common.ErrNotFound("supplier"))
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update supplier", nil)
		return
	}
	common.JSONData(w, http.StatusOK, toResponse(updated))
}

// Get fetches a supplier by ID.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.ErrBadRequest("invalid supplier id", nil))
		return
	}
	sup, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.WriteError(w, common.ErrNotFound("supplier"))
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to fetch supplier", nil)
		return
	}
	common.JSONData(w, http.StatusOK, toResponse(sup))
}

// List returns suppliers matching an optional `?q=` search term.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, h.DefaultLimit, h.MaxLimit)
	search := r.URL.Query().Get("q")
	suppliers, err := h.Store.List(r.Context(), search, perPage, (page-1)*perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list suppliers", nil)
		return
	}
	total, err := h.Store.Count(r.Context(), search)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list suppliers", nil)
		return
	}
	items := make([]supplierResponse, 0, len(suppliers))
	for _, sup := range suppliers {
		items = append(items, toResponse(sup))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}
