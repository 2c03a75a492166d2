package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/yenix/go-store-backend/internal/domain"
	"github.com/yenix/go-store-backend/internal/store"
)

// newTestStore opens a fresh SQLite database in a temp dir, migrated and
// seeded with default settings.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func addProduct(t *testing.T, s *Store, name string, stock int, price string) *domain.Product {
	t.Helper()
	ctx := context.Background()
	cat, err := s.AddCategory(ctx, domain.Category{Name: "test"})
	if err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	p, err := s.AddProduct(ctx, domain.Product{
		CategoryID: cat.ID,
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
	})
	if err != nil {
		t.Fatalf("AddProduct: %v", err)
	}
	return p
}

func TestOpenSeedsDefaultSettings(t *testing.T) {
	s := newTestStore(t)
	settings, err := s.Settings(context.Background())
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if settings["site_title"] == "" {
		t.Fatalf("default settings not seeded: %#v", settings)
	}
}

func TestCategoryCRUDAndCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cat, err := s.AddCategory(ctx, domain.Category{Name: "Games", Description: "d"})
	if err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	if cat.ID == 0 {
		t.Fatal("category not assigned an id")
	}

	if _, err := s.AddProduct(ctx, domain.Product{CategoryID: cat.ID, Name: "P1", Price: decimal.New(100, -2), Stock: 1}); err != nil {
		t.Fatalf("AddProduct: %v", err)
	}

	name := "Renamed"
	updated, err := s.UpdateCategory(ctx, cat.ID, store.CategoryPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}
	if updated.Name != "Renamed" || updated.Description != "d" {
		t.Fatalf("patch clobbered fields: %#v", updated)
	}

	cats, err := s.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 1 || cats[0].ProductCount != 1 {
		t.Fatalf("categories = %#v", cats)
	}

	if err := s.DeleteCategory(ctx, cat.ID); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	prods, err := s.ListProducts(ctx, 0)
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(prods) != 0 {
		t.Fatalf("cascade left products behind: %#v", prods)
	}

	if err := s.DeleteCategory(ctx, cat.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestProductListFilterAndRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cat1, err := s.AddCategory(ctx, domain.Category{Name: "c1"})
	if err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	cat2, err := s.AddCategory(ctx, domain.Category{Name: "c2"})
	if err != nil {
		t.Fatalf("AddCategory: %v", err)
	}

	p, err := s.AddProduct(ctx, domain.Product{
		CategoryID:    cat1.ID,
		Name:          "Listed",
		Price:         decimal.RequireFromString("49.00"),
		Stock:         5,
		Features:      domain.StringList{"Level 425-475", "Haki V1"},
		SupportedMaps: domain.StringList{"Grand Piece Online"},
	})
	if err != nil {
		t.Fatalf("AddProduct: %v", err)
	}
	if _, err := s.AddProduct(ctx, domain.Product{CategoryID: cat2.ID, Name: "Other", Price: decimal.Zero}); err != nil {
		t.Fatalf("AddProduct: %v", err)
	}

	filtered, err := s.ListProducts(ctx, cat1.ID)
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != p.ID {
		t.Fatalf("filtered = %#v", filtered)
	}

	got, err := s.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if len(got.Features) != 2 || got.Features[0] != "Level 425-475" {
		t.Fatalf("features lost order or content: %#v", got.Features)
	}
	if !got.Price.Equal(decimal.RequireFromString("49.00")) {
		t.Fatalf("price = %s", got.Price)
	}

	all, err := s.ListProducts(ctx, 0)
	if err != nil {
		t.Fatalf("ListProducts(0): %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all = %d products", len(all))
	}
}

func TestProductPartialUpdateLeavesStock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := addProduct(t, s, "Widget", 7, "9.99")

	price := decimal.RequireFromString("12.50")
	updated, err := s.UpdateProduct(ctx, p.ID, store.ProductPatch{Price: &price})
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if updated.Stock != 7 {
		t.Fatalf("price-only update changed stock to %d", updated.Stock)
	}
	if !updated.Price.Equal(price) {
		t.Fatalf("price = %s", updated.Price)
	}

	stock := 3
	updated, err = s.UpdateProduct(ctx, p.ID, store.ProductPatch{Stock: &stock})
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if !updated.Price.Equal(price) {
		t.Fatalf("stock-only update changed price to %s", updated.Price)
	}
	if updated.Stock != 3 {
		t.Fatalf("stock = %d", updated.Stock)
	}
}

func TestUpdateProductNotFound(t *testing.T) {
	s := newTestStore(t)
	name := "x"
	_, err := s.UpdateProduct(context.Background(), 12345, store.ProductPatch{Name: &name})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDuplicateUsernameCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AddUser(ctx, store.NewUser{Username: "Alice", Password: "pw"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	_, err := s.AddUser(ctx, store.NewUser{Username: "alice", Password: "pw2"})
	if !errors.Is(err, store.ErrDuplicateUsername) {
		t.Fatalf("duplicate username: %v", err)
	}

	exists, err := s.UserExists(ctx, "ALICE")
	if err != nil || !exists {
		t.Fatalf("UserExists = %v, %v", exists, err)
	}
}

func TestAuthenticate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AddUser(ctx, store.NewUser{Username: "bob", Password: "hunter2"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	u, err := s.Authenticate(ctx, "BOB", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.LastLogin.IsZero() {
		t.Fatal("last login not recorded")
	}
	if u.PasswordHash != "" {
		t.Fatal("authenticate returned credential material")
	}

	if _, err := s.Authenticate(ctx, "bob", "wrong"); !errors.Is(err, store.ErrInvalidCredentials) {
		t.Fatalf("bad password: %v", err)
	}
	if _, err := s.Authenticate(ctx, "nobody", "x"); !errors.Is(err, store.ErrInvalidCredentials) {
		t.Fatalf("unknown user: %v", err)
	}
}

func TestListUsersStripsCredentials(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AddUser(ctx, store.NewUser{Username: "carol", Password: "pw"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("users = %#v", users)
	}
	if users[0].PasswordHash != "" {
		t.Fatal("listing leaked credential material")
	}
}

func TestSettingsLastWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpdateSettings(ctx, map[string]string{"site_title": "A", "footer_text": "f"}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	got, err := s.UpdateSettings(ctx, map[string]string{"site_title": "B"})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if got["site_title"] != "B" {
		t.Fatalf("site_title = %q", got["site_title"])
	}
	if got["footer_text"] != "f" {
		t.Fatalf("unrelated key lost: %#v", got)
	}
}

func TestMutationsWriteAuditRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AddCategory(ctx, domain.Category{Name: "audited"}); err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	if _, err := s.AddUser(ctx, store.NewUser{Username: "frank", Password: "pw"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	logs, err := s.RecentLogs(ctx, 10)
	if err != nil {
		t.Fatalf("RecentLogs: %v", err)
	}
	if len(logs) < 2 {
		t.Fatalf("expected audit rows, got %#v", logs)
	}
	// Newest first.
	if logs[0].Action != "Add User" || logs[1].Action != "Add Category" {
		t.Fatalf("log order = %q, %q", logs[0].Action, logs[1].Action)
	}
}

func TestPlaceOrderDecrementsAndAudits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := addProduct(t, s, "Item", 3, "10.00")

	order, err := s.PlaceOrder(ctx, 42, p.ID, p.Price)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.ID == 0 || order.UserID != 42 || !order.Price.Equal(p.Price) {
		t.Fatalf("order = %#v", order)
	}

	got, err := s.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got.Stock != 2 {
		t.Fatalf("stock = %d, want 2", got.Stock)
	}

	logs, err := s.RecentLogs(ctx, 1)
	if err != nil {
		t.Fatalf("RecentLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != "Place Order" {
		t.Fatalf("order not audited: %#v", logs)
	}
	if logs[0].Actor != "42" {
		t.Fatalf("audit actor = %q", logs[0].Actor)
	}
}

func TestPlaceOrderPriceSnapshotImmutable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := addProduct(t, s, "Snap", 5, "10.00")

	order, err := s.PlaceOrder(ctx, 1, p.ID, p.Price)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	newPrice := decimal.RequireFromString("99.00")
	if _, err := s.UpdateProduct(ctx, p.ID, store.ProductPatch{Price: &newPrice}); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}

	orders, err := s.OrdersForUser(ctx, 1)
	if err != nil || len(orders) != 1 {
		t.Fatalf("OrdersForUser = %#v, %v", orders, err)
	}
	if !orders[0].Price.Equal(order.Price) {
		t.Fatalf("order price drifted: %s", orders[0].Price)
	}
}

func TestPlaceOrderExhaustsStock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := addProduct(t, s, "Scarce", 2, "5.00")

	for i := 0; i < 2; i++ {
		if _, err := s.PlaceOrder(ctx, 1, p.ID, p.Price); err != nil {
			t.Fatalf("order %d: %v", i, err)
		}
	}
	if _, err := s.PlaceOrder(ctx, 1, p.ID, p.Price); !errors.Is(err, store.ErrOutOfStock) {
		t.Fatalf("expected out of stock, got %v", err)
	}

	got, err := s.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got.Stock != 0 {
		t.Fatalf("stock = %d, want 0", got.Stock)
	}
	orders, err := s.OrdersForUser(ctx, 1)
	if err != nil {
		t.Fatalf("OrdersForUser: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("orders = %d, want 2", len(orders))
	}
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.PlaceOrder(context.Background(), 1, 999, decimal.Zero); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPlaceOrderConcurrentLastUnit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := addProduct(t, s, "LastOne", 1, "1.00")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.PlaceOrder(ctx, int64(i+1), p.ID, p.Price)
		}(i)
	}
	wg.Wait()

	var okCount, oosCount int
	for _, err := range errs {
		switch {
		case err == nil:
			okCount++
		case errors.Is(err, store.ErrOutOfStock):
			oosCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if okCount != 1 || oosCount != 1 {
		t.Fatalf("got %d successes and %d out-of-stock, want 1/1", okCount, oosCount)
	}

	got, err := s.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got.Stock != 0 {
		t.Fatalf("stock = %d, want 0", got.Stock)
	}
}

func TestDashboardStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := addProduct(t, s, "Stat", 5, "10.00")
	if _, err := s.AddUser(ctx, store.NewUser{Username: "eve", Password: "pw"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := s.PlaceOrder(ctx, 1, p.ID, p.Price); err != nil {
			t.Fatalf("PlaceOrder: %v", err)
		}
	}

	stats, err := s.DashboardStats(ctx)
	if err != nil {
		t.Fatalf("DashboardStats: %v", err)
	}
	if !stats.TotalSales.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("TotalSales = %s", stats.TotalSales)
	}
	if stats.ActiveUsers != 1 || stats.TotalProducts != 1 {
		t.Fatalf("stats = %#v", stats)
	}
	if stats.PendingOrders != 0 {
		t.Fatalf("PendingOrders = %d", stats.PendingOrders)
	}
}
