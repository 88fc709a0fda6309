package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"pharmacy/internal/domain"
	"pharmacy/internal/repository"
	"pharmacy/internal/service"
)

// SessionHeader names the client workspace a request belongs to.
const SessionHeader = "X-Session-ID"

const workspaceKey = "workspace"

// FileServer hands back documents stored by an in-process uploader.
type FileServer interface {
	Object(key string) ([]byte, bool)
}

type Deps struct {
	Catalog       *service.CatalogService
	Workspaces    *service.Workspaces
	Sessions      *service.SessionService
	Shop          *service.ShopService
	Orders        *service.OrderService
	Checkout      *service.CheckoutService
	Prescriptions *service.PrescriptionService
	// Files is optional; nil when documents live in an external bucket.
	Files FileServer
}

type Server struct {
	engine *gin.Engine
	Deps
}

func NewServer(d Deps) *Server {
	r := gin.New()
	r.Use(requestLogger(), gin.Recovery())
	s := &Server{engine: r, Deps: d}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	s.engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if s.Files != nil {
		s.engine.GET("/files/*key", s.getFile)
	}

	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/medicines", s.listMedicines)
		v1.GET("/medicines/:id", s.getMedicine)
		v1.GET("/recommendations", s.recommended)
		v1.GET("/brands", s.brands)

		ws := v1.Group("", s.withWorkspace, s.adoptBearer)

		catalog := ws.Group("/catalog")
		catalog.GET("", s.getCatalog)
		catalog.PUT("/search", s.setSearchTerm)
		catalog.PUT("/filters", s.updateFilter)
		catalog.DELETE("/filters", s.resetFilters)

		cart := ws.Group("/cart")
		cart.GET("", s.getCart)
		cart.DELETE("", s.clearCart)
		cart.POST("/items", s.addCartItem)
		cart.PATCH("/items/:productId", s.setCartQuantity)
		cart.DELETE("/items/:productId", s.removeCartItem)
		cart.POST("/items/:productId/prescription", s.uploadPrescription)

		wishlist := ws.Group("/wishlist")
		wishlist.GET("", s.getWishlist)
		wishlist.DELETE("", s.clearWishlist)
		wishlist.POST("/items", s.addWishlistItem)
		wishlist.DELETE("/items/:productId", s.removeWishlistItem)
		wishlist.POST("/items/:productId/move-to-cart", s.moveToCart)

		ui := ws.Group("/ui")
		ui.GET("", s.getUI)
		ui.DELETE("/toasts/:id", s.dismissToast)
		ui.POST("/drawers/:drawer/toggle", s.toggleDrawer)

		auth := ws.Group("/auth")
		auth.POST("/register", s.register)
		auth.POST("/login", s.login)
		auth.POST("/logout", s.logout)
		auth.GET("/session", s.getSession)

		ws.GET("/profile", s.getProfile)
		ws.PATCH("/profile", s.updateProfile)

		ws.GET("/checkout/summary", s.checkoutSummary)
		ws.POST("/checkout", s.placeOrder)

		orders := ws.Group("/orders")
		orders.GET("", s.listOrders)
		orders.GET("/:id", s.getOrder)
		orders.PATCH("/:id/status", s.updateOrderStatus)
	}
}

func (s *Server) getFile(c *gin.Context) {
	b, ok := s.Files.Object(strings.TrimPrefix(c.Param("key"), "/"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Data(http.StatusOK, http.DetectContentType(b), b)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"workspace", c.GetHeader(SessionHeader),
		)
	}
}

// withWorkspace opens the caller's workspace and, for writes, flushes its
// persisted slices once the handler is done.
func (s *Server) withWorkspace(c *gin.Context) {
	ws, err := s.Workspaces.Get(c, c.GetHeader(SessionHeader))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Set(workspaceKey, ws)
	c.Next()

	if c.Request.Method == http.MethodGet {
		return
	}
	if err := s.Workspaces.Flush(c, ws); err != nil {
		slog.Error("failed to flush workspace", "workspace", ws.ID, "err", err)
	}
}

// adoptBearer signs the workspace in when the request carries a valid token.
func (s *Server) adoptBearer(c *gin.Context) {
	h := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || token == "" {
		c.Next()
		return
	}
	if _, err := s.Sessions.Adopt(c, workspace(c), token); err != nil {
		abortWithError(c, err)
		return
	}
	c.Next()
}

func workspace(c *gin.Context) *service.Workspace {
	return c.MustGet(workspaceKey).(*service.Workspace)
}

func abortWithError(c *gin.Context, err error) {
	status := mapErrorToStatus(err)
	body := gin.H{"error": err.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body["fields"] = ve.Fields
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "route", c.FullPath(), "err", err)
	}
	c.AbortWithStatusJSON(status, body)
}

func mapErrorToStatus(err error) int {
	var (
		ve  *domain.ValidationError
		ur  *domain.UploadRejectedError
		nf  *domain.NotFoundError
		per *domain.PersistenceError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &ur):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuthRequired), errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.As(err, &nf), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, domain.ErrEmptyCart), errors.Is(err, domain.ErrPrescriptionMissing):
		return http.StatusConflict
	case errors.As(err, &per):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
