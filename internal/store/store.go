// Package store – storage contract.
//
// Store is the abstract operation set both persistence backends implement:
// the whole-file JSON snapshot store (jsonstore) and the relational store
// (sqlstore). The HTTP layer and the migration tool depend only on this
// interface; the concrete backend is selected at startup.
//
// Every mutating catalog/account/settings operation appends its audit entry
// inside the same atomic unit as the primary mutation: the two are durable
// together or not at all.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/yenix/go-store-backend/internal/domain"
)

// DefaultLogLimit is the number of audit entries RecentLogs returns when the
// caller passes a non-positive limit.
const DefaultLogLimit = 50

// DefaultPassword is assigned when an administrative add-user request omits
// the credential. Carried over from the legacy system.
const DefaultPassword = "admin123"

// Audit actor labels used for mutations not attributable to a specific user.
const (
	ActorSystem = "System"
	ActorAdmin  = "Admin"
)

// CategoryWithCount is a category annotated with its live product count, as
// returned by ListCategories.
type CategoryWithCount struct {
	domain.Category
	ProductCount int64 `json:"product_count"`
}

// CategoryPatch is a partial category update; only non-nil fields are written.
type CategoryPatch struct {
	Name        *string
	Description *string
	ImageURL    *string
}

// ProductPatch is a partial product update; only non-nil fields are written.
// A nil Stock leaves stock untouched, so price-only or name-only updates never
// clobber inventory.
type ProductPatch struct {
	CategoryID    *int64
	Name          *string
	Price         *decimal.Decimal
	Stock         *int
	Description   *string
	ImageURL      *string
	Features      *domain.StringList
	SupportedMaps *domain.StringList
}

// NewUser carries the input for user creation. Password is the plaintext
// credential supplied by the caller; backends hash it before storing and
// substitute DefaultPassword when it is empty. Role defaults to Member and
// Status to Active.
type NewUser struct {
	Username string
	Password string
	Role     string
	Status   string
}

// DashboardStats aggregates the numbers shown on the admin dashboard.
type DashboardStats struct {
	TotalSales    decimal.Decimal `json:"total_sales"`
	ActiveUsers   int64           `json:"active_users"`
	TotalProducts int64           `json:"total_products"`
	PendingOrders int64           `json:"pending_orders"`
}

// Store is the storage contract. Implementations must be safe for concurrent
// use and must honor the provided context on blocking operations.
type Store interface {
	// ListCategories returns all categories, each with its product count.
	ListCategories(ctx context.Context) ([]CategoryWithCount, error)
	// AddCategory inserts a category and returns it with its assigned ID.
	AddCategory(ctx context.Context, c domain.Category) (*domain.Category, error)
	// UpdateCategory applies a partial update and returns the updated row.
	UpdateCategory(ctx context.Context, id int64, patch CategoryPatch) (*domain.Category, error)
	// DeleteCategory removes a category and cascades to its products.
	DeleteCategory(ctx context.Context, id int64) error

	// ListProducts returns products, optionally filtered by category
	// (categoryID 0 means all).
	ListProducts(ctx context.Context, categoryID int64) ([]domain.Product, error)
	// GetProduct fetches one product by id.
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	// AddProduct inserts a product and returns it with its assigned ID.
	AddProduct(ctx context.Context, p domain.Product) (*domain.Product, error)
	// UpdateProduct applies a partial update and returns the updated row.
	UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (*domain.Product, error)
	// DeleteProduct removes one product.
	DeleteProduct(ctx context.Context, id int64) error

	// ListUsers returns all accounts with credential material stripped.
	ListUsers(ctx context.Context) ([]domain.User, error)
	// UserExists reports whether a username is taken (case-insensitive).
	UserExists(ctx context.Context, username string) (bool, error)
	// Authenticate verifies a credential and updates last-login on success.
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	// AddUser creates an account, rejecting duplicate usernames.
	AddUser(ctx context.Context, nu NewUser) (*domain.User, error)
	// DeleteUser removes one account.
	DeleteUser(ctx context.Context, id int64) error
	// SetupRequired reports whether the instance has no accounts yet.
	SetupRequired(ctx context.Context) (bool, error)

	// Settings returns all settings as a key/value map.
	Settings(ctx context.Context) (map[string]string, error)
	// UpdateSettings upserts the given keys (last write wins) and returns the
	// full resulting map.
	UpdateSettings(ctx context.Context, updates map[string]string) (map[string]string, error)

	// AppendLog records one audit entry.
	AppendLog(ctx context.Context, action, details, actor string) error
	// RecentLogs returns the newest entries first, at most limit
	// (DefaultLogLimit when limit <= 0).
	RecentLogs(ctx context.Context, limit int) ([]domain.LogEntry, error)

	// PlaceOrder atomically verifies stock, records the order with the given
	// price snapshot, decrements stock by one, and appends the audit entry.
	PlaceOrder(ctx context.Context, userID, productID int64, price decimal.Decimal) (*domain.Order, error)
	// OrdersForUser returns a user's orders, newest first.
	OrdersForUser(ctx context.Context, userID int64) ([]domain.Order, error)

	// DashboardStats computes the admin dashboard aggregates.
	DashboardStats(ctx context.Context) (*DashboardStats, error)
}
