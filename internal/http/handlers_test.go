package httpapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"pharmacy/internal/domain"
	"pharmacy/internal/identity"
	"pharmacy/internal/repository"
	"pharmacy/internal/service"
	"pharmacy/internal/upload"
)

const device = "device-1"

func init() { gin.SetMode(gin.TestMode) }

func setupServer(t *testing.T) *Server {
	t.Helper()
	store := repository.NewMemoryStore(
		domain.Medicine{ID: "m1", Name: "Crocin Advance", Brand: "GSK India", Price: decimal.RequireFromString("2.50"), Category: domain.CategoryPainRelief, InStock: true, Rating: 4.5},
		domain.Medicine{ID: "m2", Name: "Augmentin 625", Brand: "GSK India", Price: decimal.RequireFromString("12"), Category: domain.CategoryAntibiotics, RequiresPrescription: true, InStock: true, Rating: 4.1},
		domain.Medicine{ID: "m3", Name: "Vitamin C", Brand: "Himalaya", Price: decimal.RequireFromString("6"), Category: domain.CategoryVitamins, InStock: false, Rating: 4.8},
	)
	idp := identity.NewLocalProvider(store, "test-secret", time.Hour, identity.WithHashCost(bcrypt.MinCost))
	catalog := service.NewCatalogService(store)
	orders := service.NewOrderService(store, repository.NewMemoryTx(store), nil)
	files := upload.NewMemoryUploader("http://files.local")
	return NewServer(Deps{
		Catalog:       catalog,
		Workspaces:    service.NewWorkspaces(store, catalog, idp),
		Sessions:      service.NewSessionService(idp, store),
		Shop:          service.NewShopService(catalog),
		Orders:        orders,
		Checkout:      service.NewCheckoutService(orders),
		Prescriptions: service.NewPrescriptionService(files),
		Files:         files,
	})
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return doJSONAs(t, s, device, method, path, body)
}

func doJSONAs(t *testing.T, s *Server, ws, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if ws != "" {
		req.Header.Set(SessionHeader, ws)
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func register(t *testing.T, s *Server) {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"email": "ann@example.com", "password": "secret1", "displayName": "Ann",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register code %v: %s", w.Code, w.Body.String())
	}
}

func checkoutBody() map[string]any {
	return map[string]any{
		"shipping": map[string]any{
			"firstName": "Ann", "lastName": "Lee", "email": "ann@example.com", "phone": "9876543210",
			"address": "1 Main St", "city": "Pune", "state": "MH", "pinCode": "411001",
		},
		"payment": map[string]any{"paymentMethod": "cod"},
	}
}

func TestCatalogFlow(t *testing.T) {
	s := setupServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/v1/medicines/m2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get medicine code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/api/v1/medicines/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/api/v1/recommendations", nil)
	if got := decode[[]domain.Medicine](t, w); len(got) != 3 {
		t.Fatalf("recommended: %v", got)
	}

	w = doJSON(t, s, http.MethodPut, "/api/v1/catalog/search", map[string]any{"term": "AUG"})
	got := decode[catalogResp](t, w)
	if len(got.Filtered) != 1 || got.Filtered[0].ID != "m2" {
		t.Fatalf("search: %+v", got.Filtered)
	}

	doJSON(t, s, http.MethodPut, "/api/v1/catalog/search", map[string]any{"term": ""})
	w = doJSON(t, s, http.MethodPut, "/api/v1/catalog/filters?sort=price-high", map[string]any{"kind": "availability", "value": true})
	got = decode[catalogResp](t, w)
	if len(got.Filtered) != 2 || got.Filtered[0].ID != "m2" || got.Sort != domain.SortPriceHigh {
		t.Fatalf("availability filter: %+v", got)
	}

	w = doJSON(t, s, http.MethodPut, "/api/v1/catalog/filters", map[string]any{"kind": "priceRange", "min": "10", "max": "1"})
	if got = decode[catalogResp](t, w); len(got.Filtered) != 0 {
		t.Fatalf("inverted range should match nothing: %+v", got.Filtered)
	}

	w = doJSON(t, s, http.MethodDelete, "/api/v1/catalog/filters", nil)
	if got = decode[catalogResp](t, w); len(got.Filtered) != 3 {
		t.Fatalf("reset: %+v", got.Filtered)
	}

	// other workspaces keep their own view
	w = doJSONAs(t, s, "device-2", http.MethodGet, "/api/v1/catalog?sort=rating", nil)
	got = decode[catalogResp](t, w)
	if len(got.Filtered) != 3 || got.Filtered[0].ID != "m3" {
		t.Fatalf("second workspace: %+v", got.Filtered)
	}
}

func TestCatalog_BadRequests(t *testing.T) {
	s := setupServer(t)
	w := doJSONAs(t, s, "", http.MethodGet, "/api/v1/catalog", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing session: expected 400, got %v", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/api/v1/catalog?sort=cheapest", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad sort: expected 400, got %v", w.Code)
	}
	w = doJSON(t, s, http.MethodPut, "/api/v1/catalog/filters", map[string]any{"kind": "colour"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad filter kind: expected 400, got %v", w.Code)
	}
	w = doJSON(t, s, http.MethodPut, "/api/v1/catalog/filters", map[string]any{"kind": "categories", "categories": []string{"Snacks"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad category: expected 400, got %v", w.Code)
	}
}

func TestCheckoutFlow(t *testing.T) {
	s := setupServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/cart/items", map[string]any{"productId": "m1", "quantity": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("add item code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodPost, "/api/v1/cart/items", map[string]any{"productId": "m2"})
	cart := decode[cartResp](t, w)
	if cart.Cart.TotalItems != 3 || !cart.Cart.TotalAmount.Equal(decimal.RequireFromString("17")) {
		t.Fatalf("cart totals: %+v", cart.Cart)
	}
	if !cart.Summary.Shipping.Equal(decimal.RequireFromString("5.99")) {
		t.Fatalf("summary: %+v", cart.Summary)
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/checkout", checkoutBody())
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous checkout: expected 401, got %v", w.Code)
	}

	register(t, s)
	w = doJSON(t, s, http.MethodPost, "/api/v1/checkout", checkoutBody())
	if w.Code != http.StatusConflict {
		t.Fatalf("missing prescription: expected 409, got %v", w.Code)
	}

	w = uploadFile(t, s, "/api/v1/cart/items/m2/prescription", "rx.pdf", "application/pdf", []byte("%PDF-1.4"))
	if w.Code != http.StatusOK {
		t.Fatalf("upload code %v: %s", w.Code, w.Body.String())
	}
	line := decode[domain.CartLine](t, w)
	key, ok := strings.CutPrefix(line.PrescriptionURL, "http://files.local/")
	if !ok || !line.PrescriptionUploaded {
		t.Fatalf("line after upload: %+v", line)
	}
	w = doJSON(t, s, http.MethodGet, "/files/"+key, nil)
	if w.Code != http.StatusOK || w.Body.String() != "%PDF-1.4" {
		t.Fatalf("stored document: %v %q", w.Code, w.Body.String())
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/checkout", checkoutBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("checkout code %v: %s", w.Code, w.Body.String())
	}
	order := decode[domain.Order](t, w)
	if order.Status != domain.OrderStatusProcessing || !order.TotalAmount.Equal(decimal.RequireFromString("17")) {
		t.Fatalf("order: %+v", order)
	}

	w = doJSON(t, s, http.MethodGet, "/api/v1/cart", nil)
	if cart = decode[cartResp](t, w); len(cart.Cart.Lines) != 0 {
		t.Fatalf("cart not cleared: %+v", cart.Cart)
	}

	w = doJSON(t, s, http.MethodGet, "/api/v1/orders", nil)
	if list := decode[[]domain.Order](t, w); len(list) != 1 || list[0].ID != order.ID {
		t.Fatalf("orders: %+v", list)
	}

	// customers cancel; fulfillment moves the rest
	for _, st := range []string{"shipped", "delivered"} {
		w = doJSON(t, s, http.MethodPatch, "/api/v1/orders/"+order.ID+"/status", map[string]any{"status": st})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %v", st, w.Code)
		}
	}
	w = doJSON(t, s, http.MethodGet, "/api/v1/orders/"+order.ID, nil)
	if got := decode[domain.Order](t, w); got.Status != domain.OrderStatusProcessing {
		t.Fatalf("status changed to %s", got.Status)
	}
	w = doJSON(t, s, http.MethodPatch, "/api/v1/orders/"+order.ID+"/status", map[string]any{"status": "cancelled"})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodPatch, "/api/v1/orders/"+order.ID+"/status", map[string]any{"status": "cancelled"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", w.Code)
	}

	// other users cannot see the order
	doJSONAs(t, s, "device-2", http.MethodPost, "/api/v1/auth/register", map[string]any{
		"email": "bob@example.com", "password": "secret2", "displayName": "Bob",
	})
	w = doJSONAs(t, s, "device-2", http.MethodGet, "/api/v1/orders/"+order.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign order: expected 404, got %v", w.Code)
	}
}

func TestCheckout_ValidationErrors(t *testing.T) {
	s := setupServer(t)
	register(t, s)
	doJSON(t, s, http.MethodPost, "/api/v1/cart/items", map[string]any{"productId": "m1"})

	body := checkoutBody()
	body["shipping"].(map[string]any)["pinCode"] = "12"
	body["payment"] = map[string]any{"paymentMethod": "creditCard", "cardNumber": "1234"}
	w := doJSON(t, s, http.MethodPost, "/api/v1/checkout", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}
	resp := decode[struct {
		Fields map[string]string `json:"fields"`
	}](t, w)
	for _, f := range []string{"pinCode", "cardName", "cardNumber", "expDate", "cvv"} {
		if _, ok := resp.Fields[f]; !ok {
			t.Fatalf("missing field error %q in %v", f, resp.Fields)
		}
	}
}

func TestSessionAndProfile(t *testing.T) {
	s := setupServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/v1/profile", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", w.Code)
	}

	register(t, s)
	w = doJSON(t, s, http.MethodPatch, "/api/v1/profile", map[string]any{"city": "Pune", "allergies": []string{"penicillin"}})
	if w.Code != http.StatusOK {
		t.Fatalf("update profile code %v", w.Code)
	}
	if p := decode[domain.UserProfile](t, w); p.City != "Pune" || p.DisplayName != "Ann" {
		t.Fatalf("profile: %+v", p)
	}

	w = doJSON(t, s, http.MethodPatch, "/api/v1/profile", map[string]any{"firstName": "", "pinCode": "12-456"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid profile: expected 400, got %v", w.Code)
	}
	if !strings.Contains(w.Body.String(), "pinCode") || !strings.Contains(w.Body.String(), "firstName") {
		t.Fatalf("missing field errors: %s", w.Body.String())
	}

	w = doJSONAs(t, s, "device-2", http.MethodPost, "/api/v1/auth/login", map[string]any{"email": "ann@example.com", "password": "secret1"})
	if w.Code != http.StatusOK {
		t.Fatalf("login code %v", w.Code)
	}
	sess := decode[identity.Session](t, w)

	// a bearer token signs in a fresh workspace
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil)
	req.Header.Set(SessionHeader, "device-3")
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(sess.User.UID)) {
		t.Fatalf("bearer session: %v %s", rec.Code, rec.Body.String())
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/auth/logout", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodPost, "/api/v1/auth/login", map[string]any{"email": "ann@example.com", "password": "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %v", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil)
	req.Header.Set(SessionHeader, "device-4")
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec = httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token: expected 401, got %v", rec.Code)
	}
}

func TestWishlistAndUI(t *testing.T) {
	s := setupServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/wishlist/items", map[string]any{"productId": "m3"})
	if w.Code != http.StatusOK {
		t.Fatalf("wishlist add code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodPost, "/api/v1/wishlist/items/m3/move-to-cart", nil)
	if cart := decode[cartResp](t, w); cart.Cart.TotalItems != 1 {
		t.Fatalf("move to cart: %+v", cart)
	}
	w = doJSON(t, s, http.MethodPost, "/api/v1/wishlist/items/m3/move-to-cart", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", w.Code)
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/ui/drawers/cart/toggle", nil)
	ui := decode[struct {
		Toasts []struct {
			ID string `json:"id"`
		} `json:"toasts"`
		CartOpen bool `json:"isCartOpen"`
	}](t, w)
	if !ui.CartOpen || len(ui.Toasts) == 0 {
		t.Fatalf("ui: %+v", ui)
	}
	w = doJSON(t, s, http.MethodDelete, "/api/v1/ui/toasts/"+ui.Toasts[0].ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("dismiss code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodPost, "/api/v1/ui/drawers/sidebar/toggle", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}
}

func TestPrescriptionUpload_Rejected(t *testing.T) {
	s := setupServer(t)
	doJSON(t, s, http.MethodPost, "/api/v1/cart/items", map[string]any{"productId": "m2"})

	w := uploadFile(t, s, "/api/v1/cart/items/m2/prescription", "rx.gif", "image/gif", []byte("GIF89a"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/api/v1/cart", nil)
	cart := decode[cartResp](t, w)
	if len(cart.Cart.Lines) != 1 || !cart.Cart.Lines[0].NeedsPrescription() {
		t.Fatalf("line changed after rejected upload: %+v", cart.Cart.Lines)
	}
}

func uploadFile(t *testing.T, s *Server, path, name, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(SessionHeader, device)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestMapErrorToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&domain.ValidationError{Fields: map[string]string{"a": "b"}}, http.StatusBadRequest},
		{&domain.UploadRejectedError{Reason: "too big"}, http.StatusBadRequest},
		{domain.ErrAuthRequired, http.StatusUnauthorized},
		{&domain.NotFoundError{Kind: "order", ID: "1"}, http.StatusNotFound},
		{domain.ErrInvalidTransition, http.StatusConflict},
		{&domain.PersistenceError{Op: "x", Err: repository.ErrDuplicate}, http.StatusServiceUnavailable},
		{bytes.ErrTooLarge, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToStatus(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
