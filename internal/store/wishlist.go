package store

import (
	"slices"
	"time"

	"pharmacy/internal/domain"
)

type WishlistState struct {
	Items []domain.WishlistItem `json:"items"`
}

func (s WishlistState) Contains(productID string) bool {
	return slices.ContainsFunc(s.Items, func(it domain.WishlistItem) bool { return it.ID == productID })
}

type WishlistAction interface {
	reduceWishlist(WishlistState) WishlistState
}

// AddToWishlist is ignored when the product is already present.
type AddToWishlist struct {
	Medicine domain.Medicine
	At       time.Time
}

type RemoveFromWishlist struct{ ProductID string }

type ClearWishlist struct{}

type RestoreWishlist struct{ Items []domain.WishlistItem }

func (a AddToWishlist) reduceWishlist(s WishlistState) WishlistState {
	if s.Contains(a.Medicine.ID) {
		return s
	}
	items := slices.Clone(s.Items)
	items = append(items, domain.WishlistItem{Medicine: a.Medicine, AddedAt: a.At})
	return WishlistState{Items: items}
}

func (a RemoveFromWishlist) reduceWishlist(s WishlistState) WishlistState {
	return WishlistState{Items: slices.DeleteFunc(slices.Clone(s.Items), func(it domain.WishlistItem) bool {
		return it.ID == a.ProductID
	})}
}

func (ClearWishlist) reduceWishlist(WishlistState) WishlistState {
	return WishlistState{Items: []domain.WishlistItem{}}
}

func (a RestoreWishlist) reduceWishlist(WishlistState) WishlistState {
	var s WishlistState
	s.Items = []domain.WishlistItem{}
	for _, it := range a.Items {
		if !s.Contains(it.ID) {
			s.Items = append(s.Items, it)
		}
	}
	return s
}

type Wishlist struct {
	c container[WishlistState]
}

func NewWishlist() *Wishlist {
	w := &Wishlist{}
	w.c.state = WishlistState{Items: []domain.WishlistItem{}}
	return w
}

func (w *Wishlist) Dispatch(a WishlistAction) WishlistState {
	s := w.c.apply(a.reduceWishlist)
	return WishlistState{Items: slices.Clone(s.Items)}
}

func (w *Wishlist) Snapshot() WishlistState {
	return WishlistState{Items: slices.Clone(w.c.get().Items)}
}
