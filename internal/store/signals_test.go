package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy/internal/domain"
)

func TestWishlist_SetLike(t *testing.T) {
	w := NewWishlist()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	a := med("a", 1, domain.CategoryOTC)

	w.Dispatch(AddToWishlist{Medicine: a, At: at})
	s := w.Dispatch(AddToWishlist{Medicine: a, At: at.Add(time.Hour)})
	require.Len(t, s.Items, 1)
	assert.Equal(t, at, s.Items[0].AddedAt)

	s = w.Dispatch(RemoveFromWishlist{ProductID: "a"})
	assert.Empty(t, s.Items)

	s = w.Dispatch(RestoreWishlist{Items: []domain.WishlistItem{{Medicine: a}, {Medicine: a}}})
	assert.Len(t, s.Items, 1)
	assert.True(t, s.Contains("a"))
}

func TestUIBus_ToastsAndDrawers(t *testing.T) {
	b := NewUIBus()
	t1 := b.Notify(ToastSuccess, "Added to cart", "")
	t2 := b.Notify(ToastError, "Failed", "try again")
	assert.NotEqual(t, t1.ID, t2.ID)
	assert.True(t, t1.IsClosable)

	s := b.Dispatch(DismissToast{ID: t1.ID})
	require.Len(t, s.Toasts, 1)
	assert.Equal(t, t2.ID, s.Toasts[0].ID)

	s = b.Dispatch(ToggleDrawer{Drawer: DrawerCart})
	assert.True(t, s.CartOpen)
	assert.False(t, s.SearchOpen)
	s = b.Dispatch(ToggleDrawer{Drawer: DrawerCart})
	assert.False(t, s.CartOpen)

	s = b.Dispatch(SetLoading{Loading: true})
	assert.True(t, s.Loading)
}

func TestUIBus_ToastsExpire(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewUIBus(WithUIClock(func() time.Time { return now }))

	first := b.Notify(ToastSuccess, "Added to cart", "")
	assert.Equal(t, now.Add(defaultToastDuration), first.ExpiresAt)
	now = now.Add(3 * time.Second)
	b.Notify(ToastInfo, "Added to wishlist", "")
	require.Len(t, b.Snapshot().Toasts, 2)

	now = now.Add(2 * time.Second)
	s := b.Snapshot()
	require.Len(t, s.Toasts, 1)
	assert.Equal(t, "Added to wishlist", s.Toasts[0].Title)

	now = now.Add(time.Hour)
	assert.Empty(t, b.Dispatch(SetLoading{Loading: false}).Toasts)
}

func TestUIBus_ToastQueueIsBounded(t *testing.T) {
	b := NewUIBus()
	var last Toast
	for i := 0; i < 500; i++ {
		last = b.Notify(ToastSuccess, "Added to cart", "")
	}
	s := b.Snapshot()
	assert.Len(t, s.Toasts, maxToasts)
	assert.Equal(t, last.ID, s.Toasts[len(s.Toasts)-1].ID)
}

func TestToast_DurationInMilliseconds(t *testing.T) {
	b, err := json.Marshal(Toast{ID: "t1", Title: "Saved", Status: ToastSuccess, Duration: 5 * time.Second})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.EqualValues(t, 5000, got["duration"])
	assert.Equal(t, "t1", got["id"])
}

func TestSession_Lifecycle(t *testing.T) {
	s := NewSession()
	assert.False(t, s.Snapshot().SignedIn())

	st := s.Dispatch(SetUser{User: domain.User{UID: "u1", Email: "a@b.co"}, Token: "tok"})
	assert.True(t, st.SignedIn())
	assert.Nil(t, st.Profile)

	st = s.Dispatch(SetProfile{Profile: domain.UserProfile{UID: "u1", City: "Pune"}})
	require.NotNil(t, st.Profile)
	assert.Equal(t, "Pune", st.Profile.City)

	st = s.Dispatch(SessionFailed{Err: errors.New("boom")})
	assert.Equal(t, "boom", st.Error)
	assert.True(t, st.SignedIn())

	st = s.Dispatch(ClearUser{})
	assert.False(t, st.SignedIn())
	assert.Empty(t, st.Token)
}
