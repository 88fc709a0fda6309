package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Category is one of the fixed catalog sections.
type Category string

const (
	CategoryPrescription    Category = "Prescription"
	CategoryOTC             Category = "OTC Medicines"
	CategoryVitamins        Category = "Vitamins"
	CategorySkincare        Category = "Skincare"
	CategoryPersonalCare    Category = "Personal Care"
	CategoryCovidEssentials Category = "COVID Essentials"
	CategoryMedicalDevices  Category = "Medical Devices"
	CategoryPainRelief      Category = "Pain Relief"
	CategoryAntibiotics     Category = "Antibiotics"
	CategoryDiabetesCare    Category = "Diabetes Care"
	CategoryHeartHealth     Category = "Heart Health"
	CategoryRespiratory     Category = "Respiratory Care"
	CategoryDigestiveHealth Category = "Digestive Health"
	CategoryMentalHealth    Category = "Mental Health"
)

var knownCategories = map[Category]struct{}{
	CategoryPrescription:    {},
	CategoryOTC:             {},
	CategoryVitamins:        {},
	CategorySkincare:        {},
	CategoryPersonalCare:    {},
	CategoryCovidEssentials: {},
	CategoryMedicalDevices:  {},
	CategoryPainRelief:      {},
	CategoryAntibiotics:     {},
	CategoryDiabetesCare:    {},
	CategoryHeartHealth:     {},
	CategoryRespiratory:     {},
	CategoryDigestiveHealth: {},
	CategoryMentalHealth:    {},
}

func (c Category) Valid() bool {
	_, ok := knownCategories[c]
	return ok
}

// Medicine is a catalog entry. It is never mutated after the catalog is loaded.
type Medicine struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Brand                string          `json:"brand"`
	Description          string          `json:"description"`
	Price                decimal.Decimal `json:"price"`
	Image                string          `json:"image"`
	Category             Category        `json:"category"`
	RequiresPrescription bool            `json:"requiresPrescription"`
	Dosage               string          `json:"dosage,omitempty"`
	SideEffects          []string        `json:"sideEffects,omitempty"`
	Ingredients          []string        `json:"ingredients,omitempty"`
	InStock              bool            `json:"inStock"`
	Rating               float64         `json:"rating"`
	ReviewCount          int             `json:"reviewCount"`
	DiscountPercentage   int             `json:"discountPercentage"`
}

// Validate checks the value ranges a catalog entry must respect.
func (m Medicine) Validate() error {
	switch {
	case m.ID == "":
		return fmt.Errorf("medicine: empty id")
	case m.Price.IsNegative():
		return fmt.Errorf("medicine %s: negative price", m.ID)
	case !m.Category.Valid():
		return fmt.Errorf("medicine %s: unknown category %q", m.ID, m.Category)
	case m.Rating < 0 || m.Rating > 5:
		return fmt.Errorf("medicine %s: rating out of range", m.ID)
	case m.ReviewCount < 0:
		return fmt.Errorf("medicine %s: negative review count", m.ID)
	case m.DiscountPercentage < 0 || m.DiscountPercentage > 100:
		return fmt.Errorf("medicine %s: discount out of range", m.ID)
	}
	return nil
}

// SortKey selects the presentation order of a catalog view.
type SortKey string

const (
	SortRelevance SortKey = "relevance"
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
	SortRating    SortKey = "rating"
	SortDiscount  SortKey = "discount"
)

func (k SortKey) Valid() bool {
	switch k {
	case SortRelevance, SortPriceLow, SortPriceHigh, SortRating, SortDiscount:
		return true
	}
	return false
}
