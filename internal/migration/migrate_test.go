package migration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/yenix/go-store-backend/internal/auth"
	"github.com/yenix/go-store-backend/internal/domain"
	"github.com/yenix/go-store-backend/internal/store/jsonstore"
	"github.com/yenix/go-store-backend/internal/store/sqlstore"
)

func newTarget(t *testing.T) *sqlstore.Store {
	t.Helper()
	dst, err := sqlstore.Open(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("open target: %v", err)
	}
	return dst
}

func sourceSnapshot(t *testing.T) *jsonstore.Snapshot {
	t.Helper()
	hash, err := auth.HashPassword("already-hashed")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &jsonstore.Snapshot{
		Categories: []domain.Category{
			{ID: 3, Name: "ACCOUNT", Description: "d"},
			{ID: 7, Name: "PROGRAM"},
		},
		Products: []domain.Product{
			{
				ID:         11,
				CategoryID: 3,
				Name:       "Grand Piece Online",
				Price:      decimal.RequireFromString("49.00"),
				Stock:      5,
				Features:   domain.StringList{"Level Max"},
			},
		},
		Users: []domain.User{
			{ID: 1, Username: "hashed", PasswordHash: hash, Role: domain.RoleSuperAdmin, Status: domain.StatusActive},
			{ID: 2, Username: "plain", LegacyPassword: "oldpass", Role: domain.RoleMember, Status: domain.StatusActive},
			{ID: 3, Username: "nopass", Role: domain.RoleMember, Status: domain.StatusActive},
		},
		Settings: map[string]string{"site_title": "Migrated Title"},
	}
}

func TestRunCopiesEverything(t *testing.T) {
	ctx := context.Background()
	dst := newTarget(t)
	snap := sourceSnapshot(t)

	rep := Run(ctx, snap, dst)
	if rep.Failed() {
		t.Fatalf("migration errors: %v", rep.Errors)
	}
	if rep.UsersMigrated != 3 || rep.CategoriesCopied != 2 || rep.ProductsCopied != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if rep.SettingsApplied != 1 {
		t.Fatalf("settings applied = %d", rep.SettingsApplied)
	}

	// Catalog IDs are preserved.
	p, err := dst.GetProduct(ctx, 11)
	if err != nil {
		t.Fatalf("GetProduct(11): %v", err)
	}
	if p.CategoryID != 3 || !p.Price.Equal(decimal.RequireFromString("49.00")) {
		t.Fatalf("product = %#v", p)
	}

	// An already-hashed credential is carried verbatim and still verifies.
	if _, err := dst.Authenticate(ctx, "hashed", "already-hashed"); err != nil {
		t.Fatalf("hashed credential: %v", err)
	}
	// A legacy plaintext credential is hashed and verifies.
	if _, err := dst.Authenticate(ctx, "plain", "oldpass"); err != nil {
		t.Fatalf("plaintext credential: %v", err)
	}
	// A row without any credential gets the default.
	if _, err := dst.Authenticate(ctx, "nopass", "admin123"); err != nil {
		t.Fatalf("default credential: %v", err)
	}

	settings, err := dst.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if settings["site_title"] != "Migrated Title" {
		t.Fatalf("site_title = %q", settings["site_title"])
	}
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dst := newTarget(t)
	snap := sourceSnapshot(t)

	first := Run(ctx, snap, dst)
	if first.Failed() {
		t.Fatalf("first run errors: %v", first.Errors)
	}
	second := Run(ctx, snap, dst)
	if second.Failed() {
		t.Fatalf("second run errors: %v", second.Errors)
	}

	if second.UsersMigrated != 0 || second.UsersSkipped != 3 {
		t.Fatalf("second run users = %+v", second)
	}
	if second.CategoriesCopied != 0 || second.CategoriesSkipped != 2 {
		t.Fatalf("second run categories = %+v", second)
	}
	if second.ProductsCopied != 0 || second.ProductsSkipped != 1 {
		t.Fatalf("second run products = %+v", second)
	}

	users, err := dst.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("users duplicated: %d rows", len(users))
	}
	prods, err := dst.ListProducts(ctx, 0)
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(prods) != 1 {
		t.Fatalf("products duplicated: %d rows", len(prods))
	}
}

func TestRunSkipsExistingUsernameCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	dst := newTarget(t)

	snap := &jsonstore.Snapshot{
		Users: []domain.User{
			{ID: 1, Username: "Admin", LegacyPassword: "a"},
			{ID: 2, Username: "ADMIN", LegacyPassword: "b"},
		},
	}
	rep := Run(ctx, snap, dst)
	if rep.Failed() {
		t.Fatalf("errors: %v", rep.Errors)
	}
	if rep.UsersMigrated != 1 || rep.UsersSkipped != 1 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestRunContinuesPastBadRecords(t *testing.T) {
	ctx := context.Background()
	dst := newTarget(t)

	snap := &jsonstore.Snapshot{
		Users: []domain.User{
			{ID: 1, Username: "", LegacyPassword: "x"}, // unnamed row cannot insert
			{ID: 2, Username: "good", LegacyPassword: "pw"},
		},
	}
	rep := Run(ctx, snap, dst)
	if rep.UsersMigrated != 1 {
		t.Fatalf("good record not migrated: %+v", rep)
	}
	if _, err := dst.Authenticate(ctx, "good", "pw"); err != nil {
		t.Fatalf("good credential: %v", err)
	}
}
