package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"pharmacy/internal/domain"
	"pharmacy/internal/service"
	"pharmacy/internal/store"
	"pharmacy/internal/upload"
)

// Catalog handlers

// @Summary List the full catalog
// @Tags medicines
// @Produce json
// @Success 200 {array} domain.Medicine
// @Failure 503 {object} map[string]string
// @Router /medicines [get]
func (s *Server) listMedicines(c *gin.Context) {
	ms, err := s.Catalog.Medicines(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ms)
}

// @Summary Get medicine by id
// @Tags medicines
// @Produce json
// @Param id path string true "Medicine ID"
// @Success 200 {object} domain.Medicine
// @Failure 404 {object} map[string]string
// @Router /medicines/{id} [get]
func (s *Server) getMedicine(c *gin.Context) {
	m, err := s.Catalog.Medicine(c, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// @Summary Recommended medicines
// @Tags medicines
// @Produce json
// @Success 200 {array} domain.Medicine
// @Router /recommendations [get]
func (s *Server) recommended(c *gin.Context) {
	ms, err := s.Catalog.Recommended(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ms)
}

// @Summary Distinct brands
// @Tags medicines
// @Produce json
// @Success 200 {array} string
// @Router /brands [get]
func (s *Server) brands(c *gin.Context) {
	bs, err := s.Catalog.Brands(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, bs)
}

type catalogResp struct {
	store.CatalogState
	Sort domain.SortKey `json:"sort"`
}

// @Summary Filtered catalog view of the workspace
// @Tags catalog
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Param sort query string false "relevance | price-low | price-high | rating | discount"
// @Success 200 {object} catalogResp
// @Failure 400 {object} map[string]string
// @Router /catalog [get]
func (s *Server) getCatalog(c *gin.Context) {
	s.writeCatalog(c, workspace(c).Catalog.Snapshot())
}

func (s *Server) writeCatalog(c *gin.Context, st store.CatalogState) {
	key := domain.SortKey(c.Query("sort"))
	if key == "" {
		key = domain.SortRelevance
	}
	sorted, err := service.View(st, key)
	if err != nil {
		abortWithError(c, err)
		return
	}
	st.Filtered = sorted
	c.JSON(http.StatusOK, catalogResp{CatalogState: st, Sort: key})
}

type searchReq struct {
	Term string `json:"term"`
}

// @Summary Set search term
// @Tags catalog
// @Accept json
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Param input body searchReq true "Search"
// @Success 200 {object} catalogResp
// @Router /catalog/search [put]
func (s *Server) setSearchTerm(c *gin.Context) {
	var req searchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s.writeCatalog(c, workspace(c).Catalog.SetSearchTerm(req.Term))
}

// filterReq carries one filter update. Kind selects which fields are read.
type filterReq struct {
	Kind       string            `json:"kind" binding:"required,oneof=categories brands priceRange availability prescriptionRequired"`
	Categories []domain.Category `json:"categories"`
	Brands     []string          `json:"brands"`
	Min        *decimal.Decimal  `json:"min"`
	Max        *decimal.Decimal  `json:"max"`
	Value      *bool             `json:"value"`
}

func (r filterReq) update() (domain.FilterUpdate, error) {
	switch r.Kind {
	case "categories":
		for _, cat := range r.Categories {
			if !cat.Valid() {
				return nil, &domain.ValidationError{Fields: map[string]string{"categories": "unknown category " + string(cat)}}
			}
		}
		return domain.SetCategories{Categories: r.Categories}, nil
	case "brands":
		return domain.SetBrands{Brands: r.Brands}, nil
	case "priceRange":
		if r.Min == nil || r.Max == nil {
			return nil, &domain.ValidationError{Fields: map[string]string{"priceRange": "min and max are required"}}
		}
		return domain.SetPriceRange{Range: domain.PriceRange{Min: *r.Min, Max: *r.Max}}, nil
	case "availability":
		return domain.SetAvailability{Value: r.Value}, nil
	default:
		return domain.SetPrescriptionRequired{Value: r.Value}, nil
	}
}

// @Summary Apply one filter update
// @Tags catalog
// @Accept json
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Param input body filterReq true "Filter update"
// @Success 200 {object} catalogResp
// @Failure 400 {object} map[string]string
// @Router /catalog/filters [put]
func (s *Server) updateFilter(c *gin.Context) {
	var req filterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter update"})
		return
	}
	u, err := req.update()
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.writeCatalog(c, workspace(c).Catalog.SetFilter(u))
}

// @Summary Reset filters
// @Tags catalog
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Success 200 {object} catalogResp
// @Router /catalog/filters [delete]
func (s *Server) resetFilters(c *gin.Context) {
	s.writeCatalog(c, workspace(c).Catalog.ResetFilters())
}

// Cart handlers

type cartResp struct {
	Cart    store.CartState `json:"cart"`
	Summary service.Summary `json:"summary"`
}

func cartView(st store.CartState) cartResp {
	return cartResp{Cart: st, Summary: service.Summarize(st.Freeze())}
}

// @Summary Get cart
// @Tags cart
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Success 200 {object} cartResp
// @Router /cart [get]
func (s *Server) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, cartView(workspace(c).Cart.Snapshot()))
}

type addItemReq struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity"`
}

// @Summary Add item to cart
// @Tags cart
// @Accept json
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Param input body addItemReq true "Item"
// @Success 200 {object} cartResp
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /cart/items [post]
func (s *Server) addCartItem(c *gin.Context) {
	var req addItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	st, err := s.Shop.AddToCart(c, workspace(c), req.ProductID, req.Quantity)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartView(st))
}

type quantityReq struct {
	Quantity int `json:"quantity"`
}

// @Summary Set line quantity
// @Tags cart
// @Accept json
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Param productId path string true "Product ID"
// @Param input body quantityReq true "Quantity"
// @Success 200 {object} cartResp
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /cart/items/{productId} [patch]
func (s *Server) setCartQuantity(c *gin.Context) {
	var req quantityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	st, err := s.Shop.SetQuantity(workspace(c), c.Param("productId"), req.Quantity)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartView(st))
}

// @Summary Remove line
// @Tags cart
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Param productId path string true "Product ID"
// @Success 200 {object} cartResp
// @Router /cart/items/{productId} [delete]
func (s *Server) removeCartItem(c *gin.Context) {
	c.JSON(http.StatusOK, cartView(s.Shop.RemoveFromCart(workspace(c), c.Param("productId"))))
}

// @Summary Clear cart
// @Tags cart
// @Param X-Session-ID header string true "Workspace"
// @Success 204
// @Router /cart [delete]
func (s *Server) clearCart(c *gin.Context) {
	workspace(c).Cart.Clear()
	c.Status(http.StatusNoContent)
}

// @Summary Upload a prescription for a cart line
// @Tags cart
// @Accept multipart/form-data
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Param productId path string true "Product ID"
// @Param file formData file true "JPEG, PNG or PDF up to 5MB"
// @Success 200 {object} domain.CartLine
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /cart/items/{productId}/prescription [post]
func (s *Server) uploadPrescription(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer f.Close()

	line, err := s.Prescriptions.Upload(c, workspace(c), c.Param("productId"), upload.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, line)
}

// Wishlist handlers

// @Summary Get wishlist
// @Tags wishlist
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Success 200 {object} store.WishlistState
// @Router /wishlist [get]
func (s *Server) getWishlist(c *gin.Context) {
	c.JSON(http.StatusOK, workspace(c).Wishlist.Snapshot())
}

type wishlistReq struct {
	ProductID string `json:"productId" binding:"required"`
}

// @Summary Add to wishlist
// @Tags wishlist
// @Accept json
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Param input body wishlistReq true "Item"
// @Success 200 {object} store.WishlistState
// @Failure 404 {object} map[string]string
// @Router /wishlist/items [post]
func (s *Server) addWishlistItem(c *gin.Context) {
	var req wishlistReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	st, err := s.Shop.AddToWishlist(c, workspace(c), req.ProductID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary Remove from wishlist
// @Tags wishlist
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Param productId path string true "Product ID"
// @Success 200 {object} store.WishlistState
// @Router /wishlist/items/{productId} [delete]
func (s *Server) removeWishlistItem(c *gin.Context) {
	c.JSON(http.StatusOK, s.Shop.RemoveFromWishlist(workspace(c), c.Param("productId")))
}

// @Summary Move a wishlist item to the cart
// @Tags wishlist
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Param productId path string true "Product ID"
// @Success 200 {object} cartResp
// @Failure 404 {object} map[string]string
// @Router /wishlist/items/{productId}/move-to-cart [post]
func (s *Server) moveToCart(c *gin.Context) {
	st, err := s.Shop.MoveToCart(c, workspace(c), c.Param("productId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartView(st))
}

// @Summary Clear wishlist
// @Tags wishlist
// @Param X-Session-ID header string true "Workspace"
// @Success 204
// @Router /wishlist [delete]
func (s *Server) clearWishlist(c *gin.Context) {
	workspace(c).Wishlist.Dispatch(store.ClearWishlist{})
	c.Status(http.StatusNoContent)
}

// UI handlers

// @Summary Get view signals
// @Tags ui
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Success 200 {object} store.UIState
// @Router /ui [get]
func (s *Server) getUI(c *gin.Context) {
	c.JSON(http.StatusOK, workspace(c).UI.Snapshot())
}

// @Summary Dismiss a toast
// @Tags ui
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Param id path string true "Toast ID"
// @Success 200 {object} store.UIState
// @Router /ui/toasts/{id} [delete]
func (s *Server) dismissToast(c *gin.Context) {
	c.JSON(http.StatusOK, workspace(c).UI.Dispatch(store.DismissToast{ID: c.Param("id")}))
}

// @Summary Toggle a drawer
// @Tags ui
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Param drawer path string true "search | cart | filter"
// @Success 200 {object} store.UIState
// @Failure 400 {object} map[string]string
// @Router /ui/drawers/{drawer}/toggle [post]
func (s *Server) toggleDrawer(c *gin.Context) {
	d := store.Drawer(c.Param("drawer"))
	switch d {
	case store.DrawerSearch, store.DrawerCart, store.DrawerFilter:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown drawer"})
		return
	}
	c.JSON(http.StatusOK, workspace(c).UI.Dispatch(store.ToggleDrawer{Drawer: d}))
}
