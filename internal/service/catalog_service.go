package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"pharmacy/internal/domain"
	"pharmacy/internal/repository"
	"pharmacy/internal/store"
)

// RecommendedCount is how many medicines the recommendations strip shows.
const RecommendedCount = 3

// CatalogService fetches the catalog once and shares it between workspaces.
// A failed fetch is not cached; the next caller tries again.
type CatalogService struct {
	source repository.MedicineSource

	mu        sync.RWMutex
	loaded    bool
	medicines []domain.Medicine
}

func NewCatalogService(source repository.MedicineSource) *CatalogService {
	return &CatalogService{source: source}
}

func (s *CatalogService) Medicines(ctx context.Context) ([]domain.Medicine, error) {
	const op = "CatalogService.Medicines"
	s.mu.RLock()
	if s.loaded {
		ms := slices.Clone(s.medicines)
		s.mu.RUnlock()
		return ms, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return slices.Clone(s.medicines), nil
	}
	ms, err := s.source.ListMedicines(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: op, Err: err}
	}
	s.medicines = ms
	s.loaded = true
	slog.Info("catalog loaded", "op", op, "medicines", len(ms))
	return slices.Clone(ms), nil
}

// Refresh drops the cached catalog so the next read fetches it again.
func (s *CatalogService) Refresh() {
	s.mu.Lock()
	s.loaded = false
	s.medicines = nil
	s.mu.Unlock()
}

// Hydrate fills a workspace catalog. A fetch failure is recorded on the
// catalog state instead of being returned.
func (s *CatalogService) Hydrate(ctx context.Context, c *store.Catalog) store.CatalogState {
	c.Dispatch(store.StartLoading{})
	ms, err := s.Medicines(ctx)
	if err != nil {
		slog.Error("failed to load catalog", "op", "CatalogService.Hydrate", "err", err)
		return c.Dispatch(store.LoadFailed{Err: err})
	}
	return c.Load(ms)
}

func (s *CatalogService) Medicine(ctx context.Context, id string) (domain.Medicine, error) {
	ms, err := s.Medicines(ctx)
	if err != nil {
		return domain.Medicine{}, err
	}
	i := slices.IndexFunc(ms, func(m domain.Medicine) bool { return m.ID == id })
	if i < 0 {
		return domain.Medicine{}, &domain.NotFoundError{Kind: "medicine", ID: id}
	}
	return ms[i], nil
}

// Recommended returns the first few catalog entries.
func (s *CatalogService) Recommended(ctx context.Context) ([]domain.Medicine, error) {
	ms, err := s.Medicines(ctx)
	if err != nil {
		return nil, err
	}
	return ms[:min(RecommendedCount, len(ms))], nil
}

// Brands lists the distinct brands in catalog order, for the filter drawer.
func (s *CatalogService) Brands(ctx context.Context) ([]string, error) {
	ms, err := s.Medicines(ctx)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, m := range ms {
		if m.Brand != "" && !slices.Contains(out, m.Brand) {
			out = append(out, m.Brand)
		}
	}
	return out, nil
}

// View returns the filtered medicines of a workspace catalog sorted by key.
func View(state store.CatalogState, key domain.SortKey) ([]domain.Medicine, error) {
	if key == "" {
		key = domain.SortRelevance
	}
	if !key.Valid() {
		return nil, &domain.ValidationError{Fields: map[string]string{"sort": fmt.Sprintf("unknown sort key %q", key)}}
	}
	return store.Sorted(state.Filtered, key), nil
}
