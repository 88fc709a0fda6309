package store

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy/internal/domain"
)

func med(id string, price int64, cat domain.Category) domain.Medicine {
	return domain.Medicine{
		ID:          id,
		Name:        "Medicine " + id,
		Brand:       "Cipla",
		Description: "tablets",
		Price:       decimal.NewFromInt(price),
		Category:    cat,
		InStock:     true,
	}
}

func ids(ms []domain.Medicine) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}

func sampleCatalog() []domain.Medicine {
	brands := []string{"Cipla", "Lupin", "Biocon"}
	cats := []domain.Category{domain.CategoryOTC, domain.CategoryPrescription, domain.CategoryVitamins}
	r := rand.New(rand.NewPCG(1, 2))
	var out []domain.Medicine
	for i := range 60 {
		m := med(fmt.Sprintf("m%02d", i), int64(r.IntN(1200)), cats[r.IntN(len(cats))])
		m.Brand = brands[r.IntN(len(brands))]
		m.InStock = r.IntN(10) > 0
		m.RequiresPrescription = r.IntN(2) == 0
		if i%7 == 0 {
			m.Description = "Fast relief from PAIN"
		}
		out = append(out, m)
	}
	return out
}

func TestCatalog_FilteredViewSatisfiesPredicates(t *testing.T) {
	items := sampleCatalog()
	yes, no := true, false
	updates := [][]domain.FilterUpdate{
		{domain.SetCategories{Categories: []domain.Category{domain.CategoryOTC}}},
		{domain.SetBrands{Brands: []string{"Lupin", "Biocon"}}, domain.SetAvailability{Value: &yes}},
		{domain.SetPriceRange{Range: domain.PriceRange{Min: decimal.NewFromInt(100), Max: decimal.NewFromInt(400)}}},
		{domain.SetPrescriptionRequired{Value: &no}, domain.SetCategories{Categories: []domain.Category{domain.CategoryVitamins, domain.CategoryOTC}}},
	}
	for i, us := range updates {
		for _, term := range []string{"", "pain", "MEDICINE m1"} {
			t.Run(fmt.Sprintf("%d/%q", i, term), func(t *testing.T) {
				c := NewCatalog()
				c.Load(items)
				c.SetSearchTerm(term)
				var s CatalogState
				for _, u := range us {
					s = c.SetFilter(u)
				}

				kept := map[string]bool{}
				for _, m := range s.Filtered {
					kept[m.ID] = true
					assert.True(t, Matches(m, strings.ToLower(term), s.Filters), "kept %s violates a predicate", m.ID)
				}
				for _, m := range items {
					if !kept[m.ID] {
						assert.False(t, Matches(m, strings.ToLower(term), s.Filters), "dropped %s satisfies all predicates", m.ID)
					}
				}
			})
		}
	}
}

func TestCatalog_SearchMatchesNameOrDescription(t *testing.T) {
	c := NewCatalog()
	a := med("a", 10, domain.CategoryOTC)
	a.Name = "Dolo 650mg"
	b := med("b", 10, domain.CategoryOTC)
	b.Description = "Relieves FEVER"
	c.Load([]domain.Medicine{a, b, med("c", 10, domain.CategoryOTC)})

	assert.Equal(t, []string{"a"}, ids(c.SetSearchTerm("dolo").Filtered))
	assert.Equal(t, []string{"b"}, ids(c.SetSearchTerm("fever").Filtered))
	assert.Len(t, c.SetSearchTerm("").Filtered, 3)
}

func TestCatalog_InvertedPriceRangeYieldsEmptyView(t *testing.T) {
	c := NewCatalog()
	c.Load(sampleCatalog())
	s := c.SetFilter(domain.SetPriceRange{Range: domain.PriceRange{Min: decimal.NewFromInt(500), Max: decimal.NewFromInt(100)}})
	assert.Empty(t, s.Filtered)
	assert.Empty(t, s.Error)
}

func TestCatalog_ResetRestoresDefaultView(t *testing.T) {
	items := []domain.Medicine{med("a", 10, domain.CategoryOTC), med("b", 999, domain.CategoryVitamins), med("c", 1000, domain.CategoryOTC)}
	c := NewCatalog()
	initial := c.Load(items)

	c.SetSearchTerm("zzz")
	c.SetFilter(domain.SetCategories{Categories: []domain.Category{domain.CategoryVitamins}})
	c.ResetFilters()
	s := c.SetSearchTerm("")

	assert.Equal(t, ids(initial.Filtered), ids(s.Filtered))
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Filtered))
	assert.Equal(t, domain.DefaultFilters(), s.Filters)
}

func TestCatalog_LoadFailedEmptiesView(t *testing.T) {
	c := NewCatalog()
	c.Load([]domain.Medicine{med("a", 1, domain.CategoryOTC)})
	c.Dispatch(StartLoading{})
	s := c.Dispatch(LoadFailed{Err: fmt.Errorf("backend down")})
	assert.Empty(t, s.Filtered)
	assert.False(t, s.Loading)
	assert.Equal(t, "backend down", s.Error)
}

func TestCatalog_SnapshotIsolation(t *testing.T) {
	c := NewCatalog()
	s := c.Load([]domain.Medicine{med("a", 1, domain.CategoryOTC)})
	s.Filtered[0].Name = "changed"
	assert.Equal(t, "Medicine a", c.Snapshot().Filtered[0].Name)
}

func TestSorted_PriceAscDescStable(t *testing.T) {
	items := []domain.Medicine{
		med("a", 30, domain.CategoryOTC),
		med("b", 10, domain.CategoryOTC),
		med("c", 20, domain.CategoryOTC),
		med("d", 10, domain.CategoryOTC),
		med("e", 40, domain.CategoryOTC),
	}
	asc := Sorted(items, domain.SortPriceLow)
	desc := Sorted(asc, domain.SortPriceHigh)

	require.Equal(t, []string{"b", "d", "c", "a", "e"}, ids(asc))
	assert.Equal(t, []string{"e", "a", "c", "b", "d"}, ids(desc), "equal prices keep relative order")
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(items), "input is not modified")
}

func TestSorted_Keys(t *testing.T) {
	a := med("a", 1, domain.CategoryOTC)
	a.Name, a.Rating, a.DiscountPercentage = "Zinc", 3.1, 20
	b := med("b", 1, domain.CategoryOTC)
	b.Name, b.Rating, b.DiscountPercentage = "Aspirin", 4.9, 0
	c := med("c", 1, domain.CategoryOTC)
	c.Name, c.Rating, c.DiscountPercentage = "Mox", 4.0, 25
	items := []domain.Medicine{a, b, c}

	assert.Equal(t, []string{"b", "c", "a"}, ids(Sorted(items, domain.SortRelevance)))
	assert.Equal(t, []string{"b", "c", "a"}, ids(Sorted(items, domain.SortRating)))
	assert.Equal(t, []string{"c", "a", "b"}, ids(Sorted(items, domain.SortDiscount)))
	assert.Equal(t, []string{"a", "b", "c"}, ids(Sorted(items, "unknown")))

	lower := med("d", 1, domain.CategoryOTC)
	lower.Name = "aspirin"
	assert.Equal(t, []string{"d", "a"}, ids(Sorted([]domain.Medicine{a, lower}, domain.SortRelevance)))
	other := med("e", 1, domain.CategoryOTC)
	other.Name = "lisinopril"
	assert.Equal(t, []string{"b", "e", "c", "a"}, ids(Sorted([]domain.Medicine{a, other, c, b}, domain.SortRelevance)))
}
