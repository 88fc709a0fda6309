package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quantity bounds enforced by callers; the cart itself does not clamp.
const (
	MinLineQuantity = 1
	MaxLineQuantity = 10
)

// CartLine is one product in the cart with the fields captured when it was added.
type CartLine struct {
	ProductID            string          `json:"productId"`
	Name                 string          `json:"name"`
	Price                decimal.Decimal `json:"price"`
	Image                string          `json:"image"`
	RequiresPrescription bool            `json:"requiresPrescription"`
	Quantity             int             `json:"quantity"`
	PrescriptionUploaded bool            `json:"prescriptionUploaded"`
	PrescriptionURL      string          `json:"prescriptionUrl,omitempty"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// NeedsPrescription reports whether the line blocks checkout.
func (l CartLine) NeedsPrescription() bool {
	return l.RequiresPrescription && !l.PrescriptionUploaded
}

// LineFromMedicine captures the denormalized fields of m.
func LineFromMedicine(m Medicine, quantity int) CartLine {
	return CartLine{
		ProductID:            m.ID,
		Name:                 m.Name,
		Price:                m.Price,
		Image:                m.Image,
		RequiresPrescription: m.RequiresPrescription,
		Quantity:             quantity,
	}
}

// CartSnapshot is a frozen copy of the cart handed to checkout.
type CartSnapshot struct {
	Lines       []CartLine      `json:"lines"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	TotalItems  int             `json:"totalItems"`
}

// WishlistItem is a medicine saved for later.
type WishlistItem struct {
	Medicine
	AddedAt time.Time `json:"addedAt"`
}
