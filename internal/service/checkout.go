package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"pharmacy/internal/domain"
	"pharmacy/internal/store"
)

var (
	FreeShippingThreshold = decimal.NewFromInt(50)
	FlatShippingFee       = decimal.RequireFromString("5.99")
	TaxRate               = decimal.RequireFromString("0.08")
)

const defaultCountry = "India"

type ShippingForm struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,number,len=10"`
	Address   string `json:"address" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state" validate:"required"`
	PinCode   string `json:"pinCode" validate:"required,number,len=6"`
	Country   string `json:"country"`
}

type PaymentForm struct {
	Method     domain.PaymentMethod `json:"paymentMethod" validate:"required,oneof=creditCard paypal cod"`
	CardName   string               `json:"cardName,omitempty"`
	CardNumber string               `json:"cardNumber,omitempty"`
	ExpDate    string               `json:"expDate,omitempty"`
	CVV        string               `json:"cvv,omitempty"`
}

type cardDetails struct {
	CardName   string `json:"cardName" validate:"required"`
	CardNumber string `json:"cardNumber" validate:"required,number,len=16"`
	ExpDate    string `json:"expDate" validate:"required,mmyy"`
	CVV        string `json:"cvv" validate:"required,number,min=3,max=4"`
}

type CheckoutRequest struct {
	Shipping ShippingForm `json:"shipping"`
	Payment  PaymentForm  `json:"payment"`
}

// Normalize strips formatting the forms accept but do not store.
func (r *CheckoutRequest) Normalize() {
	sh := &r.Shipping
	for _, f := range []*string{&sh.FirstName, &sh.LastName, &sh.Email, &sh.Address, &sh.City, &sh.State, &sh.PinCode, &sh.Country} {
		*f = strings.TrimSpace(*f)
	}
	sh.Phone = digitsOnly(sh.Phone)
	if sh.Country == "" {
		sh.Country = defaultCountry
	}
	r.Payment.CardNumber = strings.ReplaceAll(r.Payment.CardNumber, " ", "")
	r.Payment.CardName = strings.TrimSpace(r.Payment.CardName)
}

// Validate checks both forms and merges their field errors.
func (r CheckoutRequest) Validate() error {
	fields := map[string]string{}
	collect := func(err error) error {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			for k, v := range ve.Fields {
				fields[k] = v
			}
			return nil
		}
		return err
	}
	if err := collect(validateStruct(r.Shipping)); err != nil {
		return err
	}
	if err := collect(validateStruct(r.Payment)); err != nil {
		return err
	}
	if r.Payment.Method == domain.PaymentCreditCard {
		card := cardDetails{r.Payment.CardName, r.Payment.CardNumber, r.Payment.ExpDate, r.Payment.CVV}
		if err := collect(validateStruct(card)); err != nil {
			return err
		}
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func (f ShippingForm) ShippingAddress() domain.ShippingAddress {
	return domain.ShippingAddress{
		Name:    f.FirstName + " " + f.LastName,
		Street:  f.Address,
		City:    f.City,
		State:   f.State,
		PinCode: f.PinCode,
		Country: f.Country,
	}
}

// Summary is the price breakdown shown before an order is placed.
type Summary struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Shipping   decimal.Decimal `json:"shipping"`
	Tax        decimal.Decimal `json:"tax"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
	TotalItems int             `json:"totalItems"`
}

// Summarize prices a cart. An empty cart costs nothing.
func Summarize(c domain.CartSnapshot) Summary {
	sum := Summary{Subtotal: c.TotalAmount, Shipping: decimal.Zero, TotalItems: c.TotalItems}
	if len(c.Lines) == 0 {
		sum.Tax = decimal.Zero
		sum.GrandTotal = decimal.Zero
		return sum
	}
	if c.TotalAmount.LessThan(FreeShippingThreshold) {
		sum.Shipping = FlatShippingFee
	}
	sum.Tax = c.TotalAmount.Mul(TaxRate).Round(2)
	sum.GrandTotal = sum.Subtotal.Add(sum.Shipping).Add(sum.Tax)
	return sum
}

// CheckoutService turns a workspace cart into an order.
type CheckoutService struct {
	orders *OrderService
}

func NewCheckoutService(orders *OrderService) *CheckoutService {
	return &CheckoutService{orders: orders}
}

func (s *CheckoutService) Summary(ws *Workspace) Summary {
	return Summarize(ws.Cart.Snapshot().Freeze())
}

// PlaceOrder validates the forms, checks the cart can be ordered, records the
// order and takes the ordered lines off the cart. Lines added while the order
// was being recorded stay in the cart. On any failure the cart is left as it was.
func (s *CheckoutService) PlaceOrder(ctx context.Context, ws *Workspace, req CheckoutRequest) (*domain.Order, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	uid := ws.UserID()
	if uid == "" {
		ws.UI.Notify(store.ToastError, "Please sign in", "You need to be signed in to complete your order")
		return nil, domain.ErrAuthRequired
	}
	cart := ws.Cart.Snapshot()
	if len(cart.Lines) == 0 {
		ws.UI.Notify(store.ToastWarning, "Your cart is empty", "")
		return nil, domain.ErrEmptyCart
	}
	if pending := cart.PendingPrescriptions(); len(pending) > 0 {
		ws.UI.Notify(store.ToastWarning, "Prescription required", "Upload a prescription for every item that requires one")
		return nil, fmt.Errorf("%w: %s", domain.ErrPrescriptionMissing, strings.Join(pending, ", "))
	}

	ordered := cart.Freeze()
	o, err := s.orders.Create(ctx, uid, ordered, req.Shipping.ShippingAddress(), req.Payment.Method)
	if err != nil {
		ws.UI.Notify(store.ToastError, "Error placing order", "There was an error processing your order. Please try again.")
		return nil, err
	}
	ws.Cart.RemoveOrdered(ordered)
	ws.UI.Notify(store.ToastSuccess, "Order placed successfully", "Thank you for your purchase!")
	return o, nil
}
