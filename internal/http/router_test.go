package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yenix/go-store-backend/internal/config"
	"github.com/yenix/go-store-backend/internal/store/jsonstore"
)

// newTestServer mounts the full router over an empty snapshot store.
func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	st, err := jsonstore.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	r := gin.New()
	RegisterRoutes(r, st, config.Config{})
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	r := newTestServer(t)
	w := do(t, r, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestUnknownRouteEnvelope(t *testing.T) {
	r := newTestServer(t)
	w := do(t, r, http.MethodGet, "/api/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	decode(t, w, &body)
	if body["code"] != "not_found" {
		t.Fatalf("body = %v", body)
	}
}

func TestSetupFlow(t *testing.T) {
	r := newTestServer(t)

	w := do(t, r, http.MethodGet, "/api/auth/check", nil)
	var check map[string]bool
	decode(t, w, &check)
	if !check["setupRequired"] {
		t.Fatal("fresh instance should require setup")
	}

	w = do(t, r, http.MethodPost, "/api/auth/setup", map[string]string{
		"site_title": "My Shop",
		"admin_user": "root",
		"admin_pass": "rootpw",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("setup status = %d: %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/api/auth/check", nil)
	decode(t, w, &check)
	if check["setupRequired"] {
		t.Fatal("setup should be complete")
	}

	// Replaying setup is refused.
	w = do(t, r, http.MethodPost, "/api/auth/setup", map[string]string{
		"admin_user": "root2",
		"admin_pass": "x",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("replayed setup status = %d", w.Code)
	}

	// The site title landed in settings.
	w = do(t, r, http.MethodGet, "/api/settings", nil)
	var settings map[string]string
	decode(t, w, &settings)
	if settings["site_title"] != "My Shop" {
		t.Fatalf("site_title = %q", settings["site_title"])
	}

	// The created admin can log in.
	w = do(t, r, http.MethodPost, "/api/auth/login", map[string]string{
		"username": "root",
		"password": "rootpw",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
	if bytes.Contains(w.Body.Bytes(), []byte("password_hash")) {
		t.Fatalf("login response leaked credentials: %s", w.Body.String())
	}
}

func TestRegisterValidationAndDuplicate(t *testing.T) {
	r := newTestServer(t)

	w := do(t, r, http.MethodPost, "/api/auth/register", map[string]string{"username": "alice"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing password status = %d", w.Code)
	}

	w = do(t, r, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "alice", "password": "pw",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "ALICE", "password": "other",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", w.Code)
	}
	var body map[string]any
	decode(t, w, &body)
	if body["code"] != "conflict" {
		t.Fatalf("body = %v", body)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	r := newTestServer(t)
	w := do(t, r, http.MethodPost, "/api/auth/login", map[string]string{
		"username": "ghost", "password": "x",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	decode(t, w, &body)
	if body["code"] != "unauthorized" {
		t.Fatalf("body = %v", body)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	r := newTestServer(t)

	w := do(t, r, http.MethodPost, "/api/categories", map[string]any{
		"name": "Games", "description": "d",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create category = %d: %s", w.Code, w.Body.String())
	}
	var cat struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &cat)

	w = do(t, r, http.MethodPost, "/api/products", map[string]any{
		"category_id": cat.ID,
		"name":        "Widget",
		"price":       "9.99",
		"stock":       7,
		"features":    []string{"a", "b"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create product = %d: %s", w.Code, w.Body.String())
	}
	var prod struct {
		ID    int64  `json:"id"`
		Stock int    `json:"stock"`
		Price string `json:"price"`
	}
	decode(t, w, &prod)
	if prod.Stock != 7 {
		t.Fatalf("stock = %d", prod.Stock)
	}

	// Price-only update must not clobber stock.
	w = do(t, r, http.MethodPut, "/api/products/"+itoa(prod.ID), map[string]any{
		"price": "12.50",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update product = %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &prod)
	if prod.Stock != 7 {
		t.Fatalf("partial update changed stock to %d", prod.Stock)
	}

	// Category filter.
	w = do(t, r, http.MethodGet, "/api/products?category_id="+itoa(cat.ID), nil)
	var list []map[string]any
	decode(t, w, &list)
	if len(list) != 1 {
		t.Fatalf("filtered products = %d", len(list))
	}

	// Unknown product is a 404.
	w = do(t, r, http.MethodGet, "/api/products/9999", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing product = %d", w.Code)
	}

	// Category listing carries product counts.
	w = do(t, r, http.MethodGet, "/api/categories", nil)
	var cats []struct {
		ProductCount int64 `json:"product_count"`
	}
	decode(t, w, &cats)
	if len(cats) != 1 || cats[0].ProductCount != 1 {
		t.Fatalf("categories = %#v", cats)
	}
}

func TestOrderEndpoints(t *testing.T) {
	r := newTestServer(t)

	w := do(t, r, http.MethodPost, "/api/categories", map[string]any{"name": "c"})
	var cat struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &cat)

	w = do(t, r, http.MethodPost, "/api/products", map[string]any{
		"category_id": cat.ID, "name": "Scarce", "price": "5.00", "stock": 1,
	})
	var prod struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &prod)

	// Missing fields.
	w = do(t, r, http.MethodPost, "/api/orders", map[string]any{"user_id": 1})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing product_id = %d", w.Code)
	}

	// Price omitted: falls back to the product's current price.
	w = do(t, r, http.MethodPost, "/api/orders", map[string]any{
		"user_id": 1, "product_id": prod.ID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("order status = %d: %s", w.Code, w.Body.String())
	}
	var placed struct {
		Success bool `json:"success"`
		Order   struct {
			Price string `json:"price"`
		} `json:"order"`
	}
	decode(t, w, &placed)
	if !placed.Success || placed.Order.Price != "5" {
		t.Fatalf("placed = %+v (%s)", placed, w.Body.String())
	}

	// Stock exhausted.
	w = do(t, r, http.MethodPost, "/api/orders", map[string]any{
		"user_id": 1, "product_id": prod.ID,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("out-of-stock status = %d", w.Code)
	}
	var body map[string]any
	decode(t, w, &body)
	if body["code"] != "out_of_stock" {
		t.Fatalf("body = %v", body)
	}

	// Listing requires user_id.
	w = do(t, r, http.MethodGet, "/api/orders", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("orders without user_id = %d", w.Code)
	}
	w = do(t, r, http.MethodGet, "/api/orders?user_id=1", nil)
	var orders []map[string]any
	decode(t, w, &orders)
	if len(orders) != 1 {
		t.Fatalf("orders = %d", len(orders))
	}
}

func TestAdminEndpoints(t *testing.T) {
	r := newTestServer(t)

	w := do(t, r, http.MethodPost, "/api/users", map[string]string{
		"username": "staff", "role": "Admin",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create user = %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID   int64  `json:"id"`
		Role string `json:"role"`
	}
	decode(t, w, &created)
	if created.Role != "Admin" {
		t.Fatalf("role = %q", created.Role)
	}

	// Admin-created account without a password gets the default credential.
	w = do(t, r, http.MethodPost, "/api/auth/login", map[string]string{
		"username": "staff", "password": "admin123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("default credential login = %d", w.Code)
	}

	w = do(t, r, http.MethodGet, "/api/users", nil)
	if bytes.Contains(w.Body.Bytes(), []byte("password")) {
		t.Fatalf("user listing leaked credentials: %s", w.Body.String())
	}

	w = do(t, r, http.MethodPost, "/api/settings", map[string]string{"footer_text": "hi"})
	if w.Code != http.StatusOK {
		t.Fatalf("update settings = %d", w.Code)
	}
	var settings map[string]string
	decode(t, w, &settings)
	if settings["footer_text"] != "hi" {
		t.Fatalf("settings = %v", settings)
	}

	w = do(t, r, http.MethodGet, "/api/logs?limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logs = %d", w.Code)
	}
	var logs []map[string]any
	decode(t, w, &logs)
	if len(logs) == 0 {
		t.Fatal("expected audit entries from the mutations above")
	}

	w = do(t, r, http.MethodGet, "/api/dashboard/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats = %d", w.Code)
	}
	var stats map[string]any
	decode(t, w, &stats)
	if _, okKey := stats["total_sales"]; !okKey {
		t.Fatalf("stats = %v", stats)
	}

	w = do(t, r, http.MethodDelete, "/api/users/"+itoa(created.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete user = %d", w.Code)
	}
	w = do(t, r, http.MethodDelete, "/api/users/"+itoa(created.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete = %d", w.Code)
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
