package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pharmacy/internal/domain"
)

func TestMemoryStore_OrderCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	t0 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	o := domain.Order{UserID: "u1", Status: domain.OrderStatusProcessing, CreatedAt: t0, UpdatedAt: t0,
		Items: []domain.OrderLine{{CartLine: domain.CartLine{ProductID: "a", Quantity: 1}, Subtotal: decimal.NewFromInt(5)}}}
	if err := store.CreateOrder(ctx, &o); err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.ID == "" {
		t.Fatalf("no id")
	}

	got, err := store.GetOrder(ctx, o.ID)
	if err != nil || got.ID != o.ID {
		t.Fatalf("get: %v", err)
	}
	// returned copies must not alias stored items
	got.Items[0].Quantity = 99
	again, _ := store.GetOrder(ctx, o.ID)
	if again.Items[0].Quantity != 1 {
		t.Fatalf("stored order was mutated through a copy")
	}

	shipped := domain.OrderStatusShipped
	tracking := "TRK1"
	upd, err := store.UpdateOrder(ctx, o.ID, domain.OrderPatch{Status: &shipped, TrackingNumber: &tracking, UpdatedAt: t0.Add(time.Hour)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if upd.Status != shipped || upd.TrackingNumber != tracking || upd.UserID != "u1" || len(upd.Items) != 1 {
		t.Fatalf("patch not merged: %+v", upd)
	}

	if _, err := store.GetOrder(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.UpdateOrder(ctx, "nope", domain.OrderPatch{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStore_ListOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	t0 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	for i, at := range []time.Time{t0, t0.Add(2 * time.Hour), t0.Add(time.Hour), t0.Add(2 * time.Hour)} {
		o := domain.Order{UserID: "u1", CreatedAt: at, TrackingNumber: string(rune('a' + i))}
		if err := store.CreateOrder(ctx, &o); err != nil {
			t.Fatal(err)
		}
	}
	other := domain.Order{UserID: "u2", CreatedAt: t0}
	_ = store.CreateOrder(ctx, &other)

	list, err := store.ListOrdersByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	var got string
	for _, o := range list {
		got += o.TrackingNumber
	}
	if got != "dbca" {
		t.Fatalf("order = %q, want dbca", got)
	}

	empty, err := store.ListOrdersByUser(ctx, "nobody")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %v %v", empty, err)
	}
}

func TestMemoryStore_ProfileMerge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := store.PutProfile(ctx, domain.UserProfile{UID: "u1", Email: "a@b.co", DisplayName: "Asha", CreatedAt: t0}); err != nil {
		t.Fatal(err)
	}
	city := "Pune"
	p, err := store.MergeProfile(ctx, "u1", domain.ProfileUpdate{City: &city, Allergies: []string{"penicillin"}}, t0.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if p.Email != "a@b.co" || p.City != "Pune" || len(p.Allergies) != 1 || !p.CreatedAt.Equal(t0) {
		t.Fatalf("merge lost fields: %+v", p)
	}

	fresh, err := store.MergeProfile(ctx, "u2", domain.ProfileUpdate{City: &city}, t0)
	if err != nil || fresh.UID != "u2" {
		t.Fatalf("merge into missing profile: %v", err)
	}
}

func TestMemoryStore_Accounts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.CreateAccount(ctx, Account{UID: "u1", Email: "A@B.co"}); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateAccount(ctx, Account{UID: "u2", Email: "a@b.CO"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	a, err := store.GetAccountByEmail(ctx, "a@b.co")
	if err != nil || a.UID != "u1" {
		t.Fatalf("lookup by email: %v", err)
	}
	v, err := store.BumpTokenVersion(ctx, "u1")
	if err != nil || v != 1 {
		t.Fatalf("bump: %v %v", v, err)
	}
}

func TestMemoryTx_ReadModifyWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tx := NewMemoryTx(store)

	o := domain.Order{UserID: "u1", Status: domain.OrderStatusProcessing}
	if err := store.CreateOrder(ctx, &o); err != nil {
		t.Fatal(err)
	}

	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		cur, err := store.GetOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if cur.Status != domain.OrderStatusProcessing {
			t.Fatalf("precondition")
		}
		next := domain.OrderStatusConfirmed
		_, err = store.UpdateOrder(ctx, o.ID, domain.OrderPatch{Status: &next})
		return err
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	got, _ := store.GetOrder(ctx, o.ID)
	if got.Status != domain.OrderStatusConfirmed {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestMemoryStore_State(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if _, err := store.GetState(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found")
	}
	_ = store.PutState(ctx, "k", []byte("v"))
	v, err := store.GetState(ctx, "k")
	if err != nil || string(v) != "v" {
		t.Fatalf("get state: %q %v", v, err)
	}
	_ = store.DeleteState(ctx, "k")
	if _, err := store.GetState(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete")
	}
}
