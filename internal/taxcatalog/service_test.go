package taxcatalog

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/SoftFusion-Technologies/backend-compras/internal/purchase"
)

type fakeStore struct {
	taxes     []Tax
	listCalls int
}

func (f *fakeStore) Insert(_ context.Context, tax Tax) (Tax, error) {
	f.taxes = append(f.taxes, tax)
	return tax, nil
}

func (f *fakeStore) Update(_ context.Context, tax Tax) (Tax, error) { return tax, nil }

func (f *fakeStore) Delete(_ context.Context, _ string) (bool, error) { return true, nil }

func (f *fakeStore) GetByCode(_ context.Context, code string) (Tax, error) {
	for _, tax := range f.taxes {
		if tax.Code == code {
			return tax, nil
		}
	}
	return Tax{}, pgx.ErrNoRows
}

func (f *fakeStore) List(_ context.Context, onlyActive bool, _, _ int) ([]Tax, error) {
	f.listCalls++
	if !onlyActive {
		return f.taxes, nil
	}
	out := make([]Tax, 0, len(f.taxes))
	for _, tax := range f.taxes {
		if tax.Active {
			out = append(out, tax)
		}
	}
	return out, nil
}

func (f *fakeStore) Count(_ context.Context, _ bool) (int64, error) {
	return int64(len(f.taxes)), nil
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestListActiveUsesCacheOnSecondCall(t *testing.T) {
	store := &fakeStore{taxes: []Tax{
		{Code: "PERC-IIBB", Kind: "Percepcion", RateFraction: decimal.RequireFromString("0.03"), Active: true},
		{Code: "OLD", Kind: "Otro", Active: false},
	}}
	svc := NewService(store, newTestCache(t), zerolog.Nop())

	first, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, 1, store.listCalls, "second call should be served from cache")
}

func TestCreateInvalidatesCache(t *testing.T) {
	store := &fakeStore{taxes: []Tax{
		{Code: "PERC-IIBB", Kind: "Percepcion", RateFraction: decimal.RequireFromString("0.03"), Active: true},
	}}
	svc := NewService(store, newTestCache(t), zerolog.Nop())

	_, err := svc.ListActive(context.Background())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), Tax{Code: "RET-GAN", Kind: "Retencion", RateFraction: decimal.RequireFromString("0.02"), Active: true})
	require.NoError(t, err)

	refreshed, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, refreshed, 2)
	require.Equal(t, 2, store.listCalls)
}

func TestConfiguredSkipsUnknownKinds(t *testing.T) {
	store := &fakeStore{taxes: []Tax{
		{Code: "PERC-IIBB", Kind: "Percepcion", RateFraction: decimal.RequireFromString("0.03"), Active: true},
		{Code: "BROKEN", Kind: "Aduana", RateFraction: decimal.RequireFromString("0.01"), Active: true},
	}}
	svc := NewService(store, NewCache(nil, 0), zerolog.Nop())

	configured, err := svc.Configured(context.Background())
	require.NoError(t, err)
	require.Len(t, configured, 1)
	require.Equal(t, purchase.TaxKindPerception, configured[0].Kind)
}

func TestFindConfiguredIsCaseInsensitive(t *testing.T) {
	store := &fakeStore{taxes: []Tax{
		{Code: "PERC-IIBB", Kind: "Percepcion", RateFraction: decimal.RequireFromString("0.03"), Active: true},
	}}
	svc := NewService(store, NewCache(nil, 0), zerolog.Nop())

	tax, found, err := svc.FindConfigured(context.Background(), "perc-iibb")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "PERC-IIBB", tax.Code)

	_, found, err = svc.FindConfigured(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, found)
}
