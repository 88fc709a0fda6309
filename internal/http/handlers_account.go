package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmacy/internal/domain"
	"pharmacy/internal/service"
	"pharmacy/internal/store"
)

// Account handlers

// @Summary Create an account and sign the workspace in
// @Tags auth
// @Accept json
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Param input body service.RegisterInput true "Account"
// @Success 201 {object} identity.Session
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /auth/register [post]
func (s *Server) register(c *gin.Context) {
	var req service.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	sess, err := s.Sessions.Register(c, workspace(c), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// @Summary Sign in
// @Tags auth
// @Accept json
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Param input body service.LoginInput true "Credentials"
// @Success 200 {object} identity.Session
// @Failure 401 {object} map[string]string
// @Router /auth/login [post]
func (s *Server) login(c *gin.Context) {
	var req service.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	sess, err := s.Sessions.Login(c, workspace(c), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// @Summary Sign out everywhere
// @Tags auth
// @Param X-Session-ID header string true "Workspace"
// @Success 204
// @Failure 401 {object} map[string]string
// @Router /auth/logout [post]
func (s *Server) logout(c *gin.Context) {
	if err := s.Sessions.SignOut(c, workspace(c)); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Current session
// @Tags auth
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Success 200 {object} store.SessionState
// @Router /auth/session [get]
func (s *Server) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, workspace(c).Session.Snapshot())
}

// @Summary Get profile
// @Tags profile
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Success 200 {object} domain.UserProfile
// @Failure 401 {object} map[string]string
// @Router /profile [get]
func (s *Server) getProfile(c *gin.Context) {
	p, err := s.Sessions.Profile(c, workspace(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Merge profile fields
// @Tags profile
// @Accept json
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Param input body domain.ProfileUpdate true "Fields to change"
// @Success 200 {object} domain.UserProfile
// @Failure 401 {object} map[string]string
// @Router /profile [patch]
func (s *Server) updateProfile(c *gin.Context) {
	var req domain.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := s.Sessions.UpdateProfile(c, workspace(c), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Order handlers

// @Summary Price breakdown of the cart
// @Tags checkout
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Success 200 {object} service.Summary
// @Router /checkout/summary [get]
func (s *Server) checkoutSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.Checkout.Summary(workspace(c)))
}

// @Summary Place an order from the cart
// @Tags checkout
// @Accept json
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Param input body service.CheckoutRequest true "Shipping and payment"
// @Success 201 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /checkout [post]
func (s *Server) placeOrder(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	o, err := s.Checkout.PlaceOrder(c, workspace(c), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// @Summary Orders of the signed-in user, newest first
// @Tags orders
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Success 200 {array} domain.Order
// @Failure 401 {object} map[string]string
// @Router /orders [get]
func (s *Server) listOrders(c *gin.Context) {
	list, err := s.Orders.FetchForUser(c, workspace(c).UserID())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ownOrder loads an order of the signed-in user. Orders of other users are
// reported as missing.
func (s *Server) ownOrder(c *gin.Context) (*domain.Order, bool) {
	uid := workspace(c).UserID()
	if uid == "" {
		abortWithError(c, domain.ErrAuthRequired)
		return nil, false
	}
	o, err := s.Orders.FetchByID(c, c.Param("id"))
	if err == nil && o.UserID != uid {
		err = &domain.NotFoundError{Kind: "order", ID: c.Param("id")}
	}
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return o, true
}

// @Summary Get order by id
// @Tags orders
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /orders/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	o, ok := s.ownOrder(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, o)
}

type statusReq struct {
	Status domain.OrderStatus `json:"status" binding:"required"`
}

// @Summary Cancel an order
// @Description Customers may only cancel. Shipping and delivery arrive from fulfillment.
// @Tags orders
// @Accept json
// @Produce json
// @Param X-Session-ID header string true "Workspace"
// @Param id path string true "Order ID"
// @Param input body statusReq true "Status"
// @Success 200 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/status [patch]
func (s *Server) updateOrderStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if _, ok := s.ownOrder(c); !ok {
		return
	}
	if req.Status != domain.OrderStatusCancelled {
		abortWithError(c, &domain.ValidationError{Fields: map[string]string{"status": "orders can only be cancelled here"}})
		return
	}
	o, err := s.Orders.UpdateStatus(c, c.Param("id"), req.Status)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if o.Status == domain.OrderStatusCancelled {
		workspace(c).UI.Notify(store.ToastInfo, "Order cancelled", o.ID)
	}
	c.JSON(http.StatusOK, o)
}
