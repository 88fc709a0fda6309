package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// EstimatedDeliveryWindow is added to the creation time of every order.
const EstimatedDeliveryWindow = 7 * 24 * time.Hour

var forward = map[OrderStatus]OrderStatus{
	OrderStatusProcessing: OrderStatusConfirmed,
	OrderStatusConfirmed:  OrderStatusShipped,
	OrderStatusShipped:    OrderStatusDelivered,
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusConfirmed, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether next is reachable from s in one step.
// Steps may skip ahead along the fulfillment chain but never go back.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.IsTerminal() || !next.Valid() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	for cur, ok := forward[s]; ok; cur, ok = forward[cur] {
		if cur == next {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "creditCard"
	PaymentPayPal     PaymentMethod = "paypal"
	PaymentCOD        PaymentMethod = "cod"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentCreditCard || p == PaymentPayPal || p == PaymentCOD
}

type ShippingAddress struct {
	Name    string `json:"name"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	PinCode string `json:"pinCode"`
	Country string `json:"country"`
}

// OrderLine is a cart line frozen into an order.
type OrderLine struct {
	CartLine
	Subtotal decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID                string          `json:"id"`
	UserID            string          `json:"userId"`
	Items             []OrderLine     `json:"items"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	Status            OrderStatus     `json:"status"`
	ShippingAddress   ShippingAddress `json:"shippingAddress"`
	PaymentMethod     PaymentMethod   `json:"paymentMethod"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	EstimatedDelivery *time.Time      `json:"estimatedDelivery,omitempty"`
	TrackingNumber    string          `json:"trackingNumber,omitempty"`
}

// Clone deep-copies the order so callers never share the items slice.
func (o Order) Clone() Order {
	o.Items = append([]OrderLine(nil), o.Items...)
	if o.EstimatedDelivery != nil {
		t := *o.EstimatedDelivery
		o.EstimatedDelivery = &t
	}
	return o
}

// OrderPatch lists the fields a partial update may touch. Nil fields are left as stored.
type OrderPatch struct {
	Status         *OrderStatus
	TrackingNumber *string
	UpdatedAt      time.Time
}

func (p OrderPatch) ApplyTo(o *Order) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.TrackingNumber != nil {
		o.TrackingNumber = *p.TrackingNumber
	}
	o.UpdatedAt = p.UpdatedAt
}
