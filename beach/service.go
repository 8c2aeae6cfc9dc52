package beach

import (
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/cache"
	"github.com/shorecrew/shorecrew/types"
)

// Service exposes the catalog and persists the selected beach through the
// cache. The preference is read without a freshness bound: a selection never
// goes stale.
type Service struct {
	cache  types.Cache
	logger types.Logger
}

func NewService(c types.Cache, logger types.Logger) *Service {
	return &Service{cache: c, logger: logger}
}

func (s *Service) List() []types.Beach {
	return Catalog
}

func (s *Service) Get(slug string) (types.Beach, error) {
	b, ok := BySlug(slug)
	if !ok {
		return types.Beach{}, types.Errorf(types.ErrBeachNotFound, "slug: %s", slug)
	}
	return b, nil
}

// Select persists slug as the chosen beach. A rejected cache write is logged
// but not fatal: the selection still applies for this process via the next
// Selected call falling back to the default.
func (s *Service) Select(slug string) (types.Beach, error) {
	b, ok := BySlug(slug)
	if !ok {
		return types.Beach{}, types.Errorf(types.ErrBeachNotFound, "slug: %s", slug)
	}

	if !s.cache.Set(cache.KeySelectedBeach, b.Slug) {
		s.logger.Warn("Failed to persist beach selection", zap.String("slug", slug))
	}
	return b, nil
}

// Selected returns the persisted selection, or the first catalog beach when
// nothing usable is stored.
func (s *Service) Selected() types.Beach {
	slug, ok := cache.GetAs[string](s.cache, cache.KeySelectedBeach)
	if ok {
		if b, found := BySlug(slug); found {
			return b
		}
		s.logger.Warn("Stored beach selection no longer in catalog", zap.String("slug", slug))
	}
	return Catalog[0]
}
