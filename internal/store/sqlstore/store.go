// Package sqlstore – contract implementation.
//
// Every mutating operation runs in an explicit transaction that includes its
// audit row, so the primary mutation and the log entry commit or roll back
// together. Single-row reads run as plain statements. Order placement
// additionally serializes within the process (see PlaceOrder).
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yenix/go-store-backend/internal/auth"
	"github.com/yenix/go-store-backend/internal/domain"
	"github.com/yenix/go-store-backend/internal/store"
)

// Store is the relational backend.
type Store struct {
	db *gorm.DB

	// orderMu serializes order placement within this process. The conditional
	// decrement in PlaceOrder still guards against cross-process writers; the
	// mutex keeps concurrent in-process placements from tripping SQLite's
	// write-transaction upgrade contention.
	orderMu sync.Mutex
}

var _ store.Store = (*Store)(nil)

// New wraps an already-opened and migrated database handle.
func New(db *gorm.DB) *Store { return &Store{db: db} }

// Open opens the database at path, migrates the schema, and seeds default
// settings when none exist.
func Open(path string) (*Store, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	if err := seedDefaultSettings(db, store.DefaultSettings()); err != nil {
		return nil, fmt.Errorf("seed settings: %w", err)
	}
	return New(db), nil
}

// translate maps GORM's missing-row sentinel to the contract error.
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

// appendLog inserts one audit row on the given handle, which inside mutating
// operations is always the surrounding transaction.
func appendLog(tx *gorm.DB, action, details, actor string) error {
	return tx.Create(&domain.LogEntry{
		Action:    action,
		Details:   details,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}).Error
}

// --- Categories ---

// ListCategories returns all categories annotated with their product counts.
func (s *Store) ListCategories(ctx context.Context) ([]store.CategoryWithCount, error) {
	var cats []domain.Category
	if err := s.db.WithContext(ctx).Order("id").Find(&cats).Error; err != nil {
		return nil, err
	}

	type catCount struct {
		CategoryID int64
		N          int64
	}
	var counts []catCount
	err := s.db.WithContext(ctx).
		Model(&domain.Product{}).
		Select("category_id, COUNT(*) AS n").
		Group("category_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	byCat := make(map[int64]int64, len(counts))
	for _, c := range counts {
		byCat[c.CategoryID] = c.N
	}

	out := make([]store.CategoryWithCount, 0, len(cats))
	for _, c := range cats {
		out = append(out, store.CategoryWithCount{Category: c, ProductCount: byCat[c.ID]})
	}
	return out, nil
}

// AddCategory inserts a category and its audit row in one transaction.
func (s *Store) AddCategory(ctx context.Context, c domain.Category) (*domain.Category, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, fmt.Errorf("%w: category name required", store.ErrValidation)
	}
	c.ID = 0

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&c).Error; err != nil {
			return err
		}
		return appendLog(tx, "Add Category", fmt.Sprintf("Added category %s", c.Name), store.ActorAdmin)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCategory writes only the supplied patch fields.
func (s *Store) UpdateCategory(ctx context.Context, id int64, patch store.CategoryPatch) (*domain.Category, error) {
	updates := map[string]any{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.ImageURL != nil {
		updates["image_url"] = *patch.ImageURL
	}

	var c domain.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		if len(updates) > 0 {
			if err := tx.Model(&domain.Category{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
		}
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			return err
		}
		return appendLog(tx, "Update Category", fmt.Sprintf("Updated category ID %d", id), store.ActorAdmin)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteCategory removes the category and cascades to its products.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&domain.Category{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		if err := tx.Delete(&domain.Product{}, "category_id = ?", id).Error; err != nil {
			return err
		}
		return appendLog(tx, "Delete Category", fmt.Sprintf("Deleted category ID %d", id), store.ActorAdmin)
	})
}

// --- Products ---

// ListProducts returns products, filtered by category when categoryID > 0.
func (s *Store) ListProducts(ctx context.Context, categoryID int64) ([]domain.Product, error) {
	q := s.db.WithContext(ctx).Order("id")
	if categoryID > 0 {
		q = q.Where("category_id = ?", categoryID)
	}
	var out []domain.Product
	err := q.Find(&out).Error
	return out, err
}

// GetProduct fetches one product by id.
func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// AddProduct inserts a product and its audit row in one transaction.
func (s *Store) AddProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("%w: product name required", store.ErrValidation)
	}
	if p.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", store.ErrValidation)
	}
	if p.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", store.ErrValidation)
	}
	p.ID = 0

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		return appendLog(tx, "Add Product", fmt.Sprintf("Added product %s", p.Name), store.ActorAdmin)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProduct writes only the supplied patch fields; unspecified columns,
// including stock, are left untouched.
func (s *Store) UpdateProduct(ctx context.Context, id int64, patch store.ProductPatch) (*domain.Product, error) {
	if patch.Price != nil && patch.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", store.ErrValidation)
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", store.ErrValidation)
	}

	updates := map[string]any{}
	if patch.CategoryID != nil {
		updates["category_id"] = *patch.CategoryID
	}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Price != nil {
		updates["price"] = *patch.Price
	}
	if patch.Stock != nil {
		updates["stock"] = *patch.Stock
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.ImageURL != nil {
		updates["image_url"] = *patch.ImageURL
	}
	if patch.Features != nil {
		updates["features"] = *patch.Features
	}
	if patch.SupportedMaps != nil {
		updates["supported_maps"] = *patch.SupportedMaps
	}

	var p domain.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		if len(updates) > 0 {
			if err := tx.Model(&domain.Product{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
		}
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			return err
		}
		return appendLog(tx, "Update Product", fmt.Sprintf("Updated product ID %d", id), store.ActorAdmin)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProduct removes one product.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&domain.Product{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		return appendLog(tx, "Delete Product", fmt.Sprintf("Deleted product ID %d", id), store.ActorAdmin)
	})
}

// --- Users ---

// ListUsers returns all accounts with credential material stripped.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	for i := range users {
		users[i] = users[i].Sanitized()
	}
	return users, nil
}

// UserExists reports whether the username is taken, case-insensitively.
func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("LOWER(username) = LOWER(?)", username).
		Count(&n).Error
	return n > 0, err
}

// Authenticate verifies the credential against the stored bcrypt hash and
// records the login time. The same error covers unknown usernames and bad
// credentials.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	var u domain.User
	err := s.db.WithContext(ctx).
		Where("LOWER(username) = LOWER(?)", username).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, store.ErrInvalidCredentials
	}

	now := domain.Timestamp{Time: time.Now().UTC()}
	err = s.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", u.ID).
		Update("last_login", now).Error
	if err != nil {
		return nil, err
	}
	u.LastLogin = now
	out := u.Sanitized()
	return &out, nil
}

// AddUser creates an account inside one transaction: uniqueness check,
// insert, audit row.
func (s *Store) AddUser(ctx context.Context, nu store.NewUser) (*domain.User, error) {
	nu.Username = strings.TrimSpace(nu.Username)
	if nu.Username == "" {
		return nil, fmt.Errorf("%w: username required", store.ErrValidation)
	}

	password := nu.Password
	if password == "" {
		password = store.DefaultPassword
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := domain.User{
		Username:     nu.Username,
		PasswordHash: hash,
		Role:         nu.Role,
		Status:       nu.Status,
		CreatedAt:    time.Now().UTC(),
	}
	if u.Role == "" {
		u.Role = domain.RoleMember
	}
	if u.Status == "" {
		u.Status = domain.StatusActive
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.User{}).
			Where("LOWER(username) = LOWER(?)", u.Username).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return store.ErrDuplicateUsername
		}
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		return appendLog(tx, "Add User", fmt.Sprintf("Added user %s", u.Username), store.ActorAdmin)
	})
	if err != nil {
		return nil, err
	}
	out := u.Sanitized()
	return &out, nil
}

// DeleteUser removes one account.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&domain.User{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		return appendLog(tx, "Delete User", fmt.Sprintf("Deleted user ID %d", id), store.ActorAdmin)
	})
}

// SetupRequired reports whether no accounts exist yet.
func (s *Store) SetupRequired(ctx context.Context) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.User{}).Count(&n).Error
	return n == 0, err
}

// --- Settings ---

// Settings returns all settings rows as a map.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	var rows []domain.Setting
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// UpdateSettings upserts each key (insert, or update value on key conflict)
// and the audit row in one transaction, then returns the full map. Keys are
// applied in sorted order so statement order is deterministic.
func (s *Store) UpdateSettings(ctx context.Context, updates map[string]string) (map[string]string, error) {
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, k := range keys {
			row := domain.Setting{Key: k, Value: updates[k]}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value"}),
			}).Create(&row).Error
			if err != nil {
				return err
			}
		}
		return appendLog(tx, "Update Settings", "Updated system settings", store.ActorAdmin)
	})
	if err != nil {
		return nil, err
	}
	return s.Settings(ctx)
}

// --- Logs ---

// AppendLog records one audit entry.
func (s *Store) AppendLog(ctx context.Context, action, details, actor string) error {
	return appendLog(s.db.WithContext(ctx), action, details, actor)
}

// RecentLogs returns the newest entries first.
func (s *Store) RecentLogs(ctx context.Context, limit int) ([]domain.LogEntry, error) {
	if limit <= 0 {
		limit = store.DefaultLogLimit
	}
	var out []domain.LogEntry
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// --- Orders ---

// PlaceOrder performs the placement sequence in one transaction: re-read
// stock, reject when empty, decrement conditionally, insert the order with
// its price snapshot, append the audit row. The conditional UPDATE with a
// RowsAffected check means two racers can never both consume the last unit.
func (s *Store) PlaceOrder(ctx context.Context, userID, productID int64, price decimal.Decimal) (*domain.Order, error) {
	if price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", store.ErrValidation)
	}

	s.orderMu.Lock()
	defer s.orderMu.Unlock()

	var order domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.Product
		if err := tx.First(&p, "id = ?", productID).Error; err != nil {
			return translate(err)
		}
		if p.Stock <= 0 {
			return store.ErrOutOfStock
		}

		res := tx.Model(&domain.Product{}).
			Where("id = ? AND stock > 0", productID).
			UpdateColumn("stock", gorm.Expr("stock - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to another writer between the read and here.
			return store.ErrOutOfStock
		}

		order = domain.Order{
			UserID:    userID,
			ProductID: productID,
			Price:     price,
			Status:    domain.OrderCompleted,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		return appendLog(tx, "Place Order",
			fmt.Sprintf("Order %d: user %d purchased product %d", order.ID, userID, productID),
			strconv.FormatInt(userID, 10))
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// OrdersForUser returns the user's orders, newest first.
func (s *Store) OrdersForUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	var out []domain.Order
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&out).Error
	return out, err
}

// --- Stats ---

// DashboardStats computes the dashboard aggregates with real queries.
func (s *Store) DashboardStats(ctx context.Context) (*store.DashboardStats, error) {
	stats := &store.DashboardStats{}

	var totalSales float64
	err := s.db.WithContext(ctx).
		Model(&domain.Order{}).
		Select("COALESCE(SUM(price), 0)").
		Scan(&totalSales).Error
	if err != nil {
		return nil, err
	}
	stats.TotalSales = decimal.NewFromFloat(totalSales).Round(2)

	if err := s.db.WithContext(ctx).Model(&domain.User{}).Count(&stats.ActiveUsers).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&domain.Product{}).Count(&stats.TotalProducts).Error; err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("status = ?", domain.OrderPending).
		Count(&stats.PendingOrders).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}
