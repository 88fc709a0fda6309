package store

import (
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"pharmacy/internal/domain"
)

type CatalogState struct {
	Items      []domain.Medicine  `json:"-"`
	Filtered   []domain.Medicine  `json:"medicines"`
	SearchTerm string             `json:"searchTerm"`
	Filters    domain.FilterState `json:"filters"`
	Loading    bool               `json:"loading"`
	Error      string             `json:"error,omitempty"`
}

func (s CatalogState) clone() CatalogState {
	s.Items = slices.Clone(s.Items)
	s.Filtered = slices.Clone(s.Filtered)
	s.Filters = s.Filters.Clone()
	return s
}

// CatalogAction is a state transition of the catalog.
type CatalogAction interface {
	reduceCatalog(CatalogState) CatalogState
}

// StartLoading marks a catalog fetch as in flight.
type StartLoading struct{}

// LoadMedicines replaces the full catalog and clears any load error.
type LoadMedicines struct{ Medicines []domain.Medicine }

// LoadFailed records a failed fetch. The view is emptied.
type LoadFailed struct{ Err error }

type SetSearchTerm struct{ Term string }

type UpdateFilter struct{ Update domain.FilterUpdate }

type ResetFilters struct{}

func (StartLoading) reduceCatalog(s CatalogState) CatalogState {
	s.Loading = true
	return s
}

func (a LoadMedicines) reduceCatalog(s CatalogState) CatalogState {
	s.Items = slices.Clone(a.Medicines)
	s.Loading = false
	s.Error = ""
	return refilter(s)
}

func (a LoadFailed) reduceCatalog(s CatalogState) CatalogState {
	s.Items = nil
	s.Filtered = []domain.Medicine{}
	s.Loading = false
	if a.Err != nil {
		s.Error = a.Err.Error()
	} else {
		s.Error = "failed to load medicines"
	}
	return s
}

func (a SetSearchTerm) reduceCatalog(s CatalogState) CatalogState {
	s.SearchTerm = a.Term
	return refilter(s)
}

func (a UpdateFilter) reduceCatalog(s CatalogState) CatalogState {
	if a.Update == nil {
		return s
	}
	s.Filters = a.Update.Apply(s.Filters.Clone())
	return refilter(s)
}

func (ResetFilters) reduceCatalog(s CatalogState) CatalogState {
	s.Filters = domain.DefaultFilters()
	return refilter(s)
}

// ReduceCatalog applies a to s without touching any store.
func ReduceCatalog(s CatalogState, a CatalogAction) CatalogState {
	return a.reduceCatalog(s)
}

func refilter(s CatalogState) CatalogState {
	s.Filtered = ApplyFilters(s.Items, s.SearchTerm, s.Filters)
	return s
}

// ApplyFilters returns the items passing every active predicate, in catalog order.
func ApplyFilters(items []domain.Medicine, term string, f domain.FilterState) []domain.Medicine {
	out := make([]domain.Medicine, 0, len(items))
	term = strings.ToLower(term)
	for _, m := range items {
		if Matches(m, term, f) {
			out = append(out, m)
		}
	}
	return out
}

// Matches evaluates the predicates in order and stops at the first failure.
// term must already be lower case.
func Matches(m domain.Medicine, term string, f domain.FilterState) bool {
	if term != "" &&
		!strings.Contains(strings.ToLower(m.Name), term) &&
		!strings.Contains(strings.ToLower(m.Description), term) {
		return false
	}
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, m.Category) {
		return false
	}
	if len(f.Brands) > 0 && !slices.Contains(f.Brands, m.Brand) {
		return false
	}
	if m.Price.LessThan(f.PriceRange.Min) || m.Price.GreaterThan(f.PriceRange.Max) {
		return false
	}
	if f.Availability != nil && m.InStock != *f.Availability {
		return false
	}
	if f.PrescriptionRequired != nil && m.RequiresPrescription != *f.PrescriptionRequired {
		return false
	}
	return true
}

// Sorted returns a sorted copy of items. Equal keys keep their input order.
// Relevance sorts names alphabetically regardless of case.
// An unknown key leaves the order unchanged.
func Sorted(items []domain.Medicine, key domain.SortKey) []domain.Medicine {
	out := slices.Clone(items)
	var less func(a, b domain.Medicine) bool
	switch key {
	case domain.SortRelevance:
		// collators keep scratch buffers and are not shared between calls
		names := collate.New(language.English)
		less = func(a, b domain.Medicine) bool { return names.CompareString(a.Name, b.Name) < 0 }
	case domain.SortPriceLow:
		less = func(a, b domain.Medicine) bool { return a.Price.LessThan(b.Price) }
	case domain.SortPriceHigh:
		less = func(a, b domain.Medicine) bool { return a.Price.GreaterThan(b.Price) }
	case domain.SortRating:
		less = func(a, b domain.Medicine) bool { return a.Rating > b.Rating }
	case domain.SortDiscount:
		less = func(a, b domain.Medicine) bool { return a.DiscountPercentage > b.DiscountPercentage }
	default:
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Catalog is the catalog state container.
type Catalog struct {
	c container[CatalogState]
}

func NewCatalog() *Catalog {
	cat := &Catalog{}
	cat.c.state = CatalogState{
		Items:    []domain.Medicine{},
		Filtered: []domain.Medicine{},
		Filters:  domain.DefaultFilters(),
	}
	return cat
}

func (c *Catalog) Dispatch(a CatalogAction) CatalogState {
	return c.c.apply(a.reduceCatalog).clone()
}

func (c *Catalog) Snapshot() CatalogState { return c.c.get().clone() }

func (c *Catalog) Load(ms []domain.Medicine) CatalogState {
	return c.Dispatch(LoadMedicines{Medicines: ms})
}

func (c *Catalog) SetSearchTerm(term string) CatalogState {
	return c.Dispatch(SetSearchTerm{Term: term})
}

func (c *Catalog) SetFilter(u domain.FilterUpdate) CatalogState {
	return c.Dispatch(UpdateFilter{Update: u})
}

func (c *Catalog) ResetFilters() CatalogState { return c.Dispatch(ResetFilters{}) }
