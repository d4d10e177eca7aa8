package supplier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	suppliers map[uuid.UUID]Supplier
}

func newFakeStore() *fakeStore {
	return &fakeStore{suppliers: map[uuid.UUID]Supplier{}}
}

func (f *fakeStore) Insert(_ context.Context, s Supplier) (Supplier, error) {
	s.ID = uuid.New()
	f.suppliers[s.ID] = s
	return s, nil
}

func (f *fakeStore) Update(_ context.Context, s Supplier) (Supplier, error) {
	if _, ok := f.suppliers[s.ID]; !ok {
		return Supplier{}, pgx.ErrNoRows
	}
	f.suppliers[s.ID] = s
	return s, nil
}

func (f *fakeStore) Get(_ context.Context, id uuid.UUID) (Supplier, error) {
	s, ok := f.suppliers[id]
	if !ok {
		return Supplier{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeStore) List(_ context.Context, _ string, _, _ int) ([]Supplier, error) {
	out := make([]Supplier, 0, len(f.suppliers))
	for _, s := range f.suppliers {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) Count(_ context.Context, _ string) (int64, error) {
	return int64(len(f.suppliers)), nil
}

func (f *fakeStore) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := f.suppliers[id]
	return ok, nil
}

func newTestHandler(store Store) *Handler {
	return &Handler{Store: store, Validate: validator.New(), DefaultLimit: 20, MaxLimit: 100}
}

func TestCreateRequiresName(t *testing.T) {
	h := newTestHandler(newFakeStore())
	rr := httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/api/v1/proveedores", strings.NewReader(`{"cuit":"30-1234"}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateAndGet(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store)

	rr := httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/api/v1/proveedores", strings.NewReader(`{"name":"Distribuidora Sur","cuit":"30-71234567-8"}`)))
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Len(t, store.suppliers, 1)

	var id uuid.UUID
	for key := range store.suppliers {
		id = key
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/proveedores/"+id.String(), nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr = httptest.NewRecorder()
	h.Get(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Distribuidora Sur")
}

func TestGetUnknownSupplierReturnsNotFound(t *testing.T) {
	h := newTestHandler(newFakeStore())
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/proveedores/"+id.String(), nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	h.Get(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
