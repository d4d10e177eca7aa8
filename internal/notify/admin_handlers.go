package notify

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/SoftFusion-Technologies/backend-compras/internal/common"
	"github.com/SoftFusion-Technologies/backend-compras/internal/events"
)

// AdminHandler exposes management endpoints for webhook configuration and monitoring.
type AdminHandler struct {
	Store        Store
	DefaultLimit int
	MaxLimit     int
}

type endpointRequest struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Active *bool    `json:"active"`
	Topics []string `json:"topics"`
}

type endpointResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Topics    []string  `json:"topics"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// The secret is write-only; responses never echo it back.
func toEndpointResponse(ep Endpoint) endpointResponse {
	return endpointResponse{
		ID:        ep.ID,
		Name:      ep.Name,
		URL:       ep.URL,
		Topics:    ep.Topics,
		Active:    ep.Active,
		CreatedAt: ep.CreatedAt,
		UpdatedAt: ep.UpdatedAt,
	}
}

type deliveryResponse struct {
	ID             uuid.UUID `json:"id"`
	EndpointID     uuid.UUID `json:"endpointId"`
	EventID        uuid.UUID `json:"eventId"`
	Status         string    `json:"status"`
	Attempt        int       `json:"attempt"`
	MaxAttempt     int       `json:"maxAttempt"`
	NextAttemptAt  time.Time `json:"nextAttemptAt"`
	LastError      *string   `json:"lastError,omitempty"`
	ResponseStatus *int      `json:"responseStatus,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toDeliveryResponse(del Delivery) deliveryResponse {
	return deliveryResponse{
		ID:             del.ID,
		EndpointID:     del.EndpointID,
		EventID:        del.EventID,
		Status:         del.Status,
		Attempt:        del.Attempt,
		MaxAttempt:     del.MaxAttempt,
		NextAttemptAt:  del.NextAttemptAt,
		LastError:      del.LastError,
		ResponseStatus: del.ResponseStatus,
		CreatedAt:      del.CreatedAt,
	}
}

func decodeEndpoint(r *http.Request) (Endpoint, error) {
	var req endpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return Endpoint{}, common.ErrBadRequest("invalid payload", nil)
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.URL) == "" || strings.TrimSpace(req.Secret) == "" {
		return Endpoint{}, common.ErrBadRequest("name, url and secret are required", nil)
	}
	if err := validateURL(req.URL); err != nil {
		return Endpoint{}, common.ErrBadRequest(err.Error(), nil)
	}
	topics := normaliseTopics(req.Topics)
	if len(topics) == 0 {
		topics = events.DefaultTopics()
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return Endpoint{
		Name:   strings.TrimSpace(req.Name),
		URL:    strings.TrimSpace(req.URL),
		Secret: req.Secret,
		Topics: topics,
		Active: active,
	}, nil
}

func normaliseTopics(raw []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(raw))
	for _, topic := range raw {
		trimmed := strings.TrimSpace(topic)
		if trimmed == "" || !events.ValidTopic(trimmed) {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// CreateEndpoint registers a new webhook endpoint.
func (h *AdminHandler) CreateEndpoint(w http.ResponseWriter, r *http.Request) {
	ep, err := decodeEndpoint(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	created, err := h.Store.CreateEndpoint(r.Context(), ep)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create endpoint", nil)
		return
	}
	common.JSONData(w, http.StatusCreated, toEndpointResponse(created))
}

// UpdateEndpoint mutates an existing webhook endpoint.
func (h *AdminHandler) UpdateEndpoint(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.ErrBadRequest("invalid endpoint id", nil))
		return
	}
	ep, err := decodeEndpoint(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	ep.ID = id
	updated, err := h.Store.UpdateEndpoint(r.Context(), ep)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.WriteError(w, common.ErrNotFound("endpoint"))
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update endpoint", nil)
		return
	}
	common.JSONData(w, http.StatusOK, toEndpointResponse(updated))
}

// GetEndpoint fetches a webhook endpoint by ID.
func (h *AdminHandler) GetEndpoint(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.ErrBadRequest("invalid endpoint id", nil))
		return
	}
	ep, err := h.Store.GetEndpoint(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.WriteError(w, common.ErrNotFound("endpoint"))
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to fetch endpoint", nil)
		return
	}
	common.JSONData(w, http.StatusOK, toEndpointResponse(ep))
}

// ListEndpoints returns registered webhook endpoints.
func (h *AdminHandler) ListEndpoints(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, h.DefaultLimit, h.MaxLimit)
	endpoints, err := h.Store.ListEndpoints(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list endpoints", nil)
		return
	}
	items := make([]endpointResponse, 0, len(endpoints))
	for _, ep := range endpoints {
		items = append(items, toEndpointResponse(ep))
	}
	common.JSONData(w, http.StatusOK, items)
}

// DeleteEndpoint removes a webhook endpoint.
func (h *AdminHandler) DeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.ErrBadRequest("invalid endpoint id", nil))
		return
	}
	if err := h.Store.DeleteEndpoint(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.WriteError(w, common.ErrNotFound("endpoint"))
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete endpoint", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDeliveries returns deliveries, optionally filtered by `?status=`.
func (h *AdminHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, h.DefaultLimit, h.MaxLimit)
	status := r.URL.Query().Get("status")
	deliveries, err := h.Store.ListDeliveries(r.Context(), status, perPage, (page-1)*perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list deliveries", nil)
		return
	}
	total, err := h.Store.CountDeliveries(r.Context(), status)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list deliveries", nil)
		return
	}
	items := make([]deliveryResponse, 0, len(deliveries))
	for _, del := range deliveries {
		items = append(items, toDeliveryResponse(del))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// ReplayDelivery resets a delivery so the dispatcher retries it on the next tick.
func (h *AdminHandler) ReplayDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.ErrBadRequest("invalid delivery id", nil))
		return
	}
	del, err := h.Store.ResetDeliveryForReplay(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.WriteError(w, common.ErrNotFound("delivery"))
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to replay delivery", nil)
		return
	}
	common.JSONData(w, http.StatusOK, toDeliveryResponse(del))
}
