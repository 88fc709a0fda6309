package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pharmacy/internal/domain"
	"pharmacy/internal/repository"
)

// EventPublisher receives order lifecycle notifications after they are stored.
type EventPublisher interface {
	OrderCreated(ctx context.Context, o domain.Order) error
	OrderStatusChanged(ctx context.Context, o domain.Order, prev domain.OrderStatus) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) OrderCreated(context.Context, domain.Order) error { return nil }

func (NopPublisher) OrderStatusChanged(context.Context, domain.Order, domain.OrderStatus) error {
	return nil
}

// OrderService records orders and moves them through the fulfillment states.
type OrderService struct {
	orders repository.OrderRepository
	tx     repository.TxManager
	events EventPublisher
	now    func() time.Time
}

func NewOrderService(orders repository.OrderRepository, tx repository.TxManager, events EventPublisher) *OrderService {
	if events == nil {
		events = NopPublisher{}
	}
	return &OrderService{orders: orders, tx: tx, events: events, now: time.Now}
}

// Create freezes the cart into a processing order. The total is taken from the
// cart as is; shipping and tax are not part of the stored amount.
func (s *OrderService) Create(ctx context.Context, userID string, cart domain.CartSnapshot, ship domain.ShippingAddress, pm domain.PaymentMethod) (*domain.Order, error) {
	const op = "OrderService.Create"
	if userID == "" {
		return nil, domain.ErrAuthRequired
	}
	if len(cart.Lines) == 0 {
		return nil, domain.ErrEmptyCart
	}
	if !pm.Valid() {
		return nil, &domain.ValidationError{Fields: map[string]string{"paymentMethod": "unsupported payment method"}}
	}

	now := s.now().UTC()
	eta := now.Add(domain.EstimatedDeliveryWindow)
	lines := make([]domain.OrderLine, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		lines = append(lines, domain.OrderLine{CartLine: l, Subtotal: l.Subtotal()})
	}
	o := domain.Order{
		UserID:            userID,
		Items:             lines,
		TotalAmount:       cart.TotalAmount,
		Status:            domain.OrderStatusProcessing,
		ShippingAddress:   ship,
		PaymentMethod:     pm,
		CreatedAt:         now,
		UpdatedAt:         now,
		EstimatedDelivery: &eta,
	}
	if err := s.orders.CreateOrder(ctx, &o); err != nil {
		return nil, &domain.PersistenceError{Op: op, Err: err}
	}
	slog.Info("order created", "op", op, "order_id", o.ID, "user_id", userID, "total", o.TotalAmount.StringFixed(2))

	if err := s.events.OrderCreated(ctx, o); err != nil {
		slog.Warn("failed to publish order event", "op", op, "order_id", o.ID, "err", err)
	}
	return &o, nil
}

// FetchForUser lists the user's orders newest first.
func (s *OrderService) FetchForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	const op = "OrderService.FetchForUser"
	if userID == "" {
		return nil, domain.ErrAuthRequired
	}
	orders, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: op, Err: err}
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

func (s *OrderService) FetchByID(ctx context.Context, id string) (*domain.Order, error) {
	const op = "OrderService.FetchByID"
	o, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, orderLookupErr(op, id, err)
	}
	return o, nil
}

// UpdateStatus moves an order along the status graph. Asking for the current
// status returns the order untouched.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, next domain.OrderStatus) (*domain.Order, error) {
	return s.transition(ctx, id, next, nil)
}

// ApplyFulfillment is UpdateStatus plus an optional tracking number, used by
// the fulfillment stream.
func (s *OrderService) ApplyFulfillment(ctx context.Context, id string, next domain.OrderStatus, tracking string) (*domain.Order, error) {
	var tn *string
	if tracking != "" {
		tn = &tracking
	}
	return s.transition(ctx, id, next, tn)
}

func (s *OrderService) transition(ctx context.Context, id string, next domain.OrderStatus, tracking *string) (*domain.Order, error) {
	const op = "OrderService.UpdateStatus"
	if !next.Valid() {
		return nil, &domain.ValidationError{Fields: map[string]string{"status": fmt.Sprintf("unknown status %q", next)}}
	}

	var (
		updated *domain.Order
		prev    domain.OrderStatus
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		cur, err := s.orders.GetOrder(ctx, id)
		if err != nil {
			return orderLookupErr(op, id, err)
		}
		prev = cur.Status
		if cur.Status == next && (tracking == nil || *tracking == cur.TrackingNumber) {
			updated = cur
			return nil
		}
		if cur.Status != next && !cur.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, cur.Status, next)
		}
		patch := domain.OrderPatch{Status: &next, TrackingNumber: tracking, UpdatedAt: s.now().UTC()}
		updated, err = s.orders.UpdateOrder(ctx, id, patch)
		if err != nil {
			return orderLookupErr(op, id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if prev != updated.Status {
		slog.Info("order status changed", "op", op, "order_id", id, "from", prev, "to", updated.Status)
		if err := s.events.OrderStatusChanged(ctx, *updated, prev); err != nil {
			slog.Warn("failed to publish order event", "op", op, "order_id", id, "err", err)
		}
	}
	return updated, nil
}

func orderLookupErr(op, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.NotFoundError{Kind: "order", ID: id}
	}
	return &domain.PersistenceError{Op: op, Err: err}
}
