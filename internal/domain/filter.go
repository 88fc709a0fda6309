package domain

import "github.com/shopspring/decimal"

// PriceRange is inclusive on both ends. Min greater than Max is allowed and matches nothing.
type PriceRange struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// FilterState is the set of active catalog constraints.
// Empty Categories or Brands and nil flags mean "no constraint".
type FilterState struct {
	Categories           []Category `json:"categories"`
	Brands               []string   `json:"brands"`
	PriceRange           PriceRange `json:"priceRange"`
	Availability         *bool      `json:"availability"`
	PrescriptionRequired *bool      `json:"prescriptionRequired"`
}

// DefaultFilters returns the unconstrained filter set.
func DefaultFilters() FilterState {
	return FilterState{
		Categories: []Category{},
		Brands:     []string{},
		PriceRange: PriceRange{Min: decimal.Zero, Max: decimal.NewFromInt(1000)},
	}
}

// FilterUpdate changes exactly one filter dimension.
// The set of variants is closed: only types in this package implement it.
type FilterUpdate interface {
	Apply(FilterState) FilterState
	filterUpdate()
}

type SetCategories struct{ Categories []Category }

func (u SetCategories) Apply(f FilterState) FilterState {
	f.Categories = append([]Category{}, u.Categories...)
	return f
}

type SetBrands struct{ Brands []string }

func (u SetBrands) Apply(f FilterState) FilterState {
	f.Brands = append([]string{}, u.Brands...)
	return f
}

type SetPriceRange struct{ Range PriceRange }

func (u SetPriceRange) Apply(f FilterState) FilterState {
	f.PriceRange = u.Range
	return f
}

// SetAvailability with a nil Value clears the constraint.
type SetAvailability struct{ Value *bool }

func (u SetAvailability) Apply(f FilterState) FilterState {
	f.Availability = cloneBool(u.Value)
	return f
}

// SetPrescriptionRequired with a nil Value clears the constraint.
type SetPrescriptionRequired struct{ Value *bool }

func (u SetPrescriptionRequired) Apply(f FilterState) FilterState {
	f.PrescriptionRequired = cloneBool(u.Value)
	return f
}

func (SetCategories) filterUpdate()           {}
func (SetBrands) filterUpdate()               {}
func (SetPriceRange) filterUpdate()           {}
func (SetAvailability) filterUpdate()         {}
func (SetPrescriptionRequired) filterUpdate() {}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// Clone returns a copy that shares no slices or pointers with f.
func (f FilterState) Clone() FilterState {
	f.Categories = append([]Category{}, f.Categories...)
	f.Brands = append([]string{}, f.Brands...)
	f.Availability = cloneBool(f.Availability)
	f.PrescriptionRequired = cloneBool(f.PrescriptionRequired)
	return f
}
