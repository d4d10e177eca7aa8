package taxcatalog

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/SoftFusion-Technologies/backend-compras/internal/purchase"
)

// Service resolves configured taxes, keeping the active list warm in Redis.
type Service struct {
	store  Store
	cache  *Cache
	logger zerolog.Logger
}

// NewService constructs a Service.
func NewService(store Store, cache *Cache, logger zerolog.Logger) *Service {
	return &Service{store: store, cache: cache, logger: logger}
}

// ListActive returns all active configured taxes, served from cache when warm.
func (s *Service) ListActive(ctx context.Context) ([]Tax, error) {
	var cached []Tax
	hit, err := s.cache.GetActive(ctx, &cached)
	if err != nil {
		s.logger.Warn().Err(err).Msg("tax catalog cache read failed")
	}
	if hit {
		return cached, nil
	}
	taxes, err := s.store.List(ctx, true, 500, 0)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetActive(ctx, taxes); err != nil {
		s.logger.Warn().Err(err).Msg("tax catalog cache write failed")
	}
	return taxes, nil
}

// Configured converts the active catalog into attachable tax definitions.
// Rows whose kind no longer parses are skipped rather than failing the lookup.
func (s *Service) Configured(ctx context.Context) ([]purchase.ConfiguredTax, error) {
	taxes, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]purchase.ConfiguredTax, 0, len(taxes))
	for _, tax := range taxes {
		kind, err := purchase.ParseTaxKind(tax.Kind)
		if err != nil {
			s.logger.Warn().Str("code", tax.Code).Str("kind", tax.Kind).Msg("skipping tax with unknown kind")
			continue
		}
		out = append(out, purchase.ConfiguredTax{
			Code:        tax.Code,
			Kind:        kind,
			Description: tax.Description,
			Rate:        tax.RateFraction,
		})
	}
	return out, nil
}

// FindConfigured resolves a single attachable tax by code from the active catalog.
func (s *Service) FindConfigured(ctx context.Context, code string) (purchase.ConfiguredTax, bool, error) {
	configured, err := s.Configured(ctx)
	if err != nil {
		return purchase.ConfiguredTax{}, false, err
	}
	for _, tax := range configured {
		if strings.EqualFold(tax.Code, code) {
			return tax, true, nil
		}
	}
	return purchase.ConfiguredTax{}, false, nil
}

// Create persists a new configured tax and invalidates the cached list.
func (s *Service) Create(ctx context.Context, tax Tax) (Tax, error) {
	created, err := s.store.Insert(ctx, tax)
	if err != nil {
		return Tax{}, err
	}
	s.invalidate(ctx)
	return created, nil
}

// Update mutates a configured tax and invalidates the cached list.
func (s *Service) Update(ctx context.Context, tax Tax) (Tax, error) {
	updated, err := s.store.Update(ctx, tax)
	if err != nil {
		return Tax{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// Delete removes a configured tax and invalidates the cached list.
func (s *Service) Delete(ctx context.Context, code string) (bool, error) {
	deleted, err := s.store.Delete(ctx, code)
	if err != nil {
		return false, err
	}
	if deleted {
		s.invalidate(ctx)
	}
	return deleted, nil
}

// List proxies the store list without touching the cache.
func (s *Service) List(ctx context.Context, onlyActive bool, limit, offset int) ([]Tax, int64, error) {
	taxes, err := s.store.List(ctx, onlyActive, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Count(ctx, onlyActive)
	if err != nil {
		return nil, 0, err
	}
	return taxes, total, nil
}

// GetByCode proxies the store lookup.
func (s *Service) GetByCode(ctx context.Context, code string) (Tax, error) {
	return s.store.GetByCode(ctx, code)
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("tax catalog cache invalidation failed")
	}
}
