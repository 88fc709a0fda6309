package store

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
)

type ToastStatus string

const (
	ToastInfo    ToastStatus = "info"
	ToastWarning ToastStatus = "warning"
	ToastSuccess ToastStatus = "success"
	ToastError   ToastStatus = "error"
)

const (
	defaultToastDuration = 5 * time.Second
	// maxToasts bounds the queue between expiries.
	maxToasts = 10
)

// Toast is a transient notification. It disappears once ExpiresAt passes.
type Toast struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Status      ToastStatus   `json:"status"`
	Duration    time.Duration `json:"-"`
	IsClosable  bool          `json:"isClosable"`
	ExpiresAt   time.Time     `json:"expiresAt"`
}

// MarshalJSON writes the duration in milliseconds.
func (t Toast) MarshalJSON() ([]byte, error) {
	type toast Toast
	return json.Marshal(struct {
		toast
		Duration int64 `json:"duration"`
	}{toast(t), t.Duration.Milliseconds()})
}

func (t Toast) expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

type Drawer string

const (
	DrawerSearch Drawer = "search"
	DrawerCart   Drawer = "cart"
	DrawerFilter Drawer = "filter"
)

// UIState is never persisted.
type UIState struct {
	Toasts     []Toast `json:"toasts"`
	SearchOpen bool    `json:"isSearchOpen"`
	CartOpen   bool    `json:"isCartOpen"`
	FilterOpen bool    `json:"isFilterOpen"`
	Loading    bool    `json:"isLoading"`
}

type UIAction interface {
	reduceUI(UIState) UIState
}

type ShowToast struct{ Toast Toast }

type DismissToast struct{ ID string }

type ToggleDrawer struct{ Drawer Drawer }

type SetLoading struct{ Loading bool }

// ExpireToasts drops every toast that has expired by Now.
type ExpireToasts struct{ Now time.Time }

func (a ShowToast) reduceUI(s UIState) UIState {
	s.Toasts = append(slices.Clone(s.Toasts), a.Toast)
	if n := len(s.Toasts) - maxToasts; n > 0 {
		s.Toasts = s.Toasts[n:]
	}
	return s
}

func (a ExpireToasts) reduceUI(s UIState) UIState {
	s.Toasts = slices.DeleteFunc(slices.Clone(s.Toasts), func(t Toast) bool { return t.expired(a.Now) })
	return s
}

func (a DismissToast) reduceUI(s UIState) UIState {
	s.Toasts = slices.DeleteFunc(slices.Clone(s.Toasts), func(t Toast) bool { return t.ID == a.ID })
	return s
}

func (a ToggleDrawer) reduceUI(s UIState) UIState {
	switch a.Drawer {
	case DrawerSearch:
		s.SearchOpen = !s.SearchOpen
	case DrawerCart:
		s.CartOpen = !s.CartOpen
	case DrawerFilter:
		s.FilterOpen = !s.FilterOpen
	}
	return s
}

func (a SetLoading) reduceUI(s UIState) UIState {
	s.Loading = a.Loading
	return s
}

// UIBus carries ephemeral view signals. Expired toasts are pruned on every
// Dispatch and Snapshot.
type UIBus struct {
	c   container[UIState]
	now func() time.Time
}

type UIBusOption func(*UIBus)

func WithUIClock(now func() time.Time) UIBusOption {
	return func(b *UIBus) { b.now = now }
}

func NewUIBus(opts ...UIBusOption) *UIBus {
	b := &UIBus{now: time.Now}
	b.c.state = UIState{Toasts: []Toast{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *UIBus) Dispatch(a UIAction) UIState {
	now := b.now()
	if st, ok := a.(ShowToast); ok {
		a = ShowToast{Toast: stamp(st.Toast, now)}
	}
	expire := ExpireToasts{Now: now}
	s := b.c.apply(func(s UIState) UIState {
		return a.reduceUI(expire.reduceUI(s))
	})
	s.Toasts = slices.Clone(s.Toasts)
	return s
}

func (b *UIBus) Snapshot() UIState {
	s := b.c.apply(ExpireToasts{Now: b.now()}.reduceUI)
	s.Toasts = slices.Clone(s.Toasts)
	return s
}

// Notify queues a closable toast with a fresh id and returns it.
func (b *UIBus) Notify(status ToastStatus, title, description string) Toast {
	t := stamp(Toast{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Status:      status,
		IsClosable:  true,
	}, b.now())
	b.Dispatch(ShowToast{Toast: t})
	return t
}

func stamp(t Toast, now time.Time) Toast {
	if t.Duration <= 0 {
		t.Duration = defaultToastDuration
	}
	if t.ExpiresAt.IsZero() {
		t.ExpiresAt = now.Add(t.Duration)
	}
	return t
}
