package store

import (
	"slices"

	"github.com/shopspring/decimal"

	"pharmacy/internal/domain"
)

type CartState struct {
	Lines       []domain.CartLine `json:"items"`
	TotalAmount decimal.Decimal   `json:"totalAmount"`
	TotalItems  int               `json:"totalItems"`
}

func (s CartState) clone() CartState {
	s.Lines = slices.Clone(s.Lines)
	return s
}

// Line returns the line for productID, if present.
func (s CartState) Line(productID string) (domain.CartLine, bool) {
	i := s.index(productID)
	if i < 0 {
		return domain.CartLine{}, false
	}
	return s.Lines[i], true
}

func (s CartState) index(productID string) int {
	return slices.IndexFunc(s.Lines, func(l domain.CartLine) bool { return l.ProductID == productID })
}

// PendingPrescriptions lists lines that require a prescription not yet uploaded.
func (s CartState) PendingPrescriptions() []string {
	var ids []string
	for _, l := range s.Lines {
		if l.NeedsPrescription() {
			ids = append(ids, l.ProductID)
		}
	}
	return ids
}

// Freeze returns a deep copy suitable for building an order.
func (s CartState) Freeze() domain.CartSnapshot {
	return domain.CartSnapshot{
		Lines:       slices.Clone(s.Lines),
		TotalAmount: s.TotalAmount,
		TotalItems:  s.TotalItems,
	}
}

type CartAction interface {
	reduceCart(CartState) CartState
}

// AddItem merges into an existing line by adding exactly one unit.
// Quantity only applies when a new line is created; values below 1 become 1.
type AddItem struct {
	Product  domain.Medicine
	Quantity int
}

type RemoveItem struct{ ProductID string }

// SetQuantity stores the quantity as given. Callers keep it within bounds.
type SetQuantity struct {
	ProductID string
	Quantity  int
}

type AttachPrescription struct {
	ProductID string
	URL       string
}

type ClearCart struct{}

// RemoveOrdered takes the quantities of an ordered snapshot off the cart.
// Units added after the snapshot was taken stay.
type RemoveOrdered struct{ Lines []domain.CartLine }

// RestoreCart replaces the lines with previously persisted ones.
type RestoreCart struct{ Lines []domain.CartLine }

func (a AddItem) reduceCart(s CartState) CartState {
	lines := slices.Clone(s.Lines)
	if i := s.index(a.Product.ID); i >= 0 {
		lines[i].Quantity++
	} else {
		q := a.Quantity
		if q < domain.MinLineQuantity {
			q = domain.MinLineQuantity
		}
		lines = append(lines, domain.LineFromMedicine(a.Product, q))
	}
	return totals(lines)
}

func (a RemoveItem) reduceCart(s CartState) CartState {
	lines := slices.DeleteFunc(slices.Clone(s.Lines), func(l domain.CartLine) bool {
		return l.ProductID == a.ProductID
	})
	return totals(lines)
}

func (a SetQuantity) reduceCart(s CartState) CartState {
	i := s.index(a.ProductID)
	if i < 0 {
		return s
	}
	lines := slices.Clone(s.Lines)
	lines[i].Quantity = a.Quantity
	return totals(lines)
}

func (a AttachPrescription) reduceCart(s CartState) CartState {
	i := s.index(a.ProductID)
	if i < 0 {
		return s
	}
	lines := slices.Clone(s.Lines)
	lines[i].PrescriptionUploaded = true
	lines[i].PrescriptionURL = a.URL
	return totals(lines)
}

func (ClearCart) reduceCart(CartState) CartState { return totals(nil) }

func (a RemoveOrdered) reduceCart(s CartState) CartState {
	lines := slices.Clone(s.Lines)
	for _, ordered := range a.Lines {
		i := slices.IndexFunc(lines, func(l domain.CartLine) bool { return l.ProductID == ordered.ProductID })
		if i < 0 {
			continue
		}
		if left := lines[i].Quantity - ordered.Quantity; left > 0 {
			lines[i].Quantity = left
		} else {
			lines = slices.Delete(lines, i, i+1)
		}
	}
	return totals(lines)
}

func (a RestoreCart) reduceCart(CartState) CartState {
	return totals(slices.Clone(a.Lines))
}

// totals rebuilds the derived fields from the lines alone.
func totals(lines []domain.CartLine) CartState {
	if lines == nil {
		lines = []domain.CartLine{}
	}
	s := CartState{Lines: lines, TotalAmount: decimal.Zero}
	for _, l := range lines {
		s.TotalAmount = s.TotalAmount.Add(l.Subtotal())
		s.TotalItems += l.Quantity
	}
	return s
}

func ReduceCart(s CartState, a CartAction) CartState {
	return a.reduceCart(s)
}

// Cart is the cart state container.
type Cart struct {
	c container[CartState]
}

func NewCart() *Cart {
	cart := &Cart{}
	cart.c.state = totals(nil)
	return cart
}

func (c *Cart) Dispatch(a CartAction) CartState {
	return c.c.apply(a.reduceCart).clone()
}

func (c *Cart) Snapshot() CartState { return c.c.get().clone() }

func (c *Cart) AddItem(m domain.Medicine, quantity int) CartState {
	return c.Dispatch(AddItem{Product: m, Quantity: quantity})
}

func (c *Cart) RemoveItem(productID string) CartState {
	return c.Dispatch(RemoveItem{ProductID: productID})
}

func (c *Cart) SetQuantity(productID string, quantity int) CartState {
	return c.Dispatch(SetQuantity{ProductID: productID, Quantity: quantity})
}

func (c *Cart) AttachPrescription(productID, url string) CartState {
	return c.Dispatch(AttachPrescription{ProductID: productID, URL: url})
}

func (c *Cart) Clear() CartState { return c.Dispatch(ClearCart{}) }

func (c *Cart) RemoveOrdered(snap domain.CartSnapshot) CartState {
	return c.Dispatch(RemoveOrdered{Lines: snap.Lines})
}
