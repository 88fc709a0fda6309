package service

import (
	"context"
	"fmt"
	"time"

	"pharmacy/internal/domain"
	"pharmacy/internal/store"
)

// ShopService resolves catalog ids for cart and wishlist actions. Quantity
// bounds are enforced here; the cart itself accepts any value.
type ShopService struct {
	catalog *CatalogService
	now     func() time.Time
}

func NewShopService(catalog *CatalogService) *ShopService {
	return &ShopService{catalog: catalog, now: time.Now}
}

func checkQuantity(q int) error {
	if q < domain.MinLineQuantity || q > domain.MaxLineQuantity {
		return &domain.ValidationError{Fields: map[string]string{
			"quantity": fmt.Sprintf("must be between %d and %d", domain.MinLineQuantity, domain.MaxLineQuantity),
		}}
	}
	return nil
}

// AddToCart adds one unit of an existing line or a new line of quantity units.
func (s *ShopService) AddToCart(ctx context.Context, ws *Workspace, productID string, quantity int) (store.CartState, error) {
	if err := checkQuantity(quantity); err != nil {
		return store.CartState{}, err
	}
	m, err := s.catalog.Medicine(ctx, productID)
	if err != nil {
		return store.CartState{}, err
	}
	st := ws.Cart.AddItem(m, quantity)
	ws.UI.Notify(store.ToastSuccess, "Added to cart", m.Name+" has been added to your cart")
	return st, nil
}

func (s *ShopService) SetQuantity(ws *Workspace, productID string, quantity int) (store.CartState, error) {
	if err := checkQuantity(quantity); err != nil {
		return store.CartState{}, err
	}
	if _, ok := ws.Cart.Snapshot().Line(productID); !ok {
		return store.CartState{}, &domain.NotFoundError{Kind: "cart line", ID: productID}
	}
	return ws.Cart.SetQuantity(productID, quantity), nil
}

func (s *ShopService) RemoveFromCart(ws *Workspace, productID string) store.CartState {
	return ws.Cart.RemoveItem(productID)
}

func (s *ShopService) AddToWishlist(ctx context.Context, ws *Workspace, productID string) (store.WishlistState, error) {
	m, err := s.catalog.Medicine(ctx, productID)
	if err != nil {
		return store.WishlistState{}, err
	}
	if ws.Wishlist.Snapshot().Contains(productID) {
		return ws.Wishlist.Snapshot(), nil
	}
	st := ws.Wishlist.Dispatch(store.AddToWishlist{Medicine: m, At: s.now().UTC()})
	ws.UI.Notify(store.ToastInfo, "Added to wishlist", m.Name)
	return st, nil
}

func (s *ShopService) RemoveFromWishlist(ws *Workspace, productID string) store.WishlistState {
	return ws.Wishlist.Dispatch(store.RemoveFromWishlist{ProductID: productID})
}

// MoveToCart adds a wishlist item to the cart and drops it from the wishlist.
func (s *ShopService) MoveToCart(ctx context.Context, ws *Workspace, productID string) (store.CartState, error) {
	if !ws.Wishlist.Snapshot().Contains(productID) {
		return store.CartState{}, &domain.NotFoundError{Kind: "wishlist item", ID: productID}
	}
	st, err := s.AddToCart(ctx, ws, productID, 1)
	if err != nil {
		return store.CartState{}, err
	}
	ws.Wishlist.Dispatch(store.RemoveFromWishlist{ProductID: productID})
	return st, nil
}
