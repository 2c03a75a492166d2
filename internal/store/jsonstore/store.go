// Package jsonstore implements the storage contract with a whole-file JSON
// snapshot: the full dataset is resident in memory and every mutation rewrites
// one document on disk before returning. Reads are served from memory.
//
// The document layout is the legacy one — top-level categories, products,
// users, orders, and logs collections plus a settings map — so files written
// by the previous system load unchanged (plaintext credentials found in old
// documents are hashed on first load).
//
// Concurrency: whole-file rewrite has no write isolation, so all mutations are
// serialized behind a single writer lock per process; reads share an RLock.
// Mutations are applied to a deep copy that is persisted via temp-file+rename
// and only then swapped into memory, so a failed write leaves both memory and
// disk at the previous state.
//
// ID allocation is a store-owned monotonic counter per collection, initialised
// to max+1 at load and never rewound when rows are deleted.
package jsonstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/yenix/go-store-backend/internal/auth"
	"github.com/yenix/go-store-backend/internal/domain"
	"github.com/yenix/go-store-backend/internal/store"
)

// Snapshot is the persisted document. Collection order is preserved exactly
// as loaded; numeric IDs per collection are independent counters.
type Snapshot struct {
	Categories []domain.Category `json:"categories"`
	Products   []domain.Product  `json:"products"`
	Users      []domain.User     `json:"users"`
	Orders     []domain.Order    `json:"orders"`
	Settings   map[string]string `json:"settings"`
	Logs       []domain.LogEntry `json:"logs"`
}

// sequences holds the next ID per collection.
type sequences struct {
	category int64
	product  int64
	user     int64
	order    int64
	log      int64
}

// Store is the file-snapshot backend.
type Store struct {
	mu   sync.RWMutex
	path string
	data Snapshot
	seq  sequences
}

var _ store.Store = (*Store)(nil)

// Open loads the snapshot at path, or seeds the deterministic baseline
// dataset when no file exists yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	snap, err := ReadSnapshot(path)
	switch {
	case err == nil:
		s.data = *snap
		if hashLegacyCredentials(&s.data) {
			// Plaintext from an old document: rewrite immediately so it
			// never stays on disk.
			if err := s.persist(s.data); err != nil {
				return nil, fmt.Errorf("rewrite legacy snapshot: %w", err)
			}
			log.Info().Str("path", path).Msg("hashed legacy credentials in snapshot")
		}
	case os.IsNotExist(err):
		seeded, err := seedSnapshot()
		if err != nil {
			return nil, err
		}
		s.data = *seeded
		if err := s.persist(s.data); err != nil {
			return nil, fmt.Errorf("write seed snapshot: %w", err)
		}
		log.Info().Str("path", path).Msg("seeded snapshot store")
	default:
		return nil, err
	}

	s.seq = initSequences(s.data)
	return s, nil
}

// ReadSnapshot decodes the document at path without seeding or normalizing
// credentials. The migration tool uses it to inspect a source dataset as-is;
// a missing file surfaces as an os.IsNotExist error.
func ReadSnapshot(path string) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	normalize(&snap)
	return &snap, nil
}

// Snapshot returns a deep copy of the current dataset.
func (s *Store) Snapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.clone()
}

// normalize fills in collections missing from older documents.
func normalize(snap *Snapshot) {
	if snap.Categories == nil {
		snap.Categories = []domain.Category{}
	}
	if snap.Products == nil {
		snap.Products = []domain.Product{}
	}
	if snap.Users == nil {
		snap.Users = []domain.User{}
	}
	if snap.Orders == nil {
		snap.Orders = []domain.Order{}
	}
	if snap.Settings == nil {
		snap.Settings = map[string]string{}
	}
	if snap.Logs == nil {
		snap.Logs = []domain.LogEntry{}
	}
}

// hashLegacyCredentials replaces plaintext passwords loaded from a legacy
// document with bcrypt hashes. It reports whether anything changed.
func hashLegacyCredentials(snap *Snapshot) bool {
	changed := false
	for i := range snap.Users {
		u := &snap.Users[i]
		if u.PasswordHash == "" && u.LegacyPassword != "" {
			h, err := auth.HashPassword(u.LegacyPassword)
			if err != nil {
				// bcrypt only fails on absurd input lengths; skip the row.
				log.Warn().Str("username", u.Username).Err(err).Msg("could not hash legacy credential")
				continue
			}
			u.PasswordHash = h
			u.LegacyPassword = ""
			changed = true
		}
	}
	return changed
}

func initSequences(snap Snapshot) sequences {
	seq := sequences{category: 1, product: 1, user: 1, order: 1, log: 1}
	for _, c := range snap.Categories {
		if c.ID >= seq.category {
			seq.category = c.ID + 1
		}
	}
	for _, p := range snap.Products {
		if p.ID >= seq.product {
			seq.product = p.ID + 1
		}
	}
	for _, u := range snap.Users {
		if u.ID >= seq.user {
			seq.user = u.ID + 1
		}
	}
	for _, o := range snap.Orders {
		if o.ID >= seq.order {
			seq.order = o.ID + 1
		}
	}
	for _, l := range snap.Logs {
		if l.ID >= seq.log {
			seq.log = l.ID + 1
		}
	}
	return seq
}

// clone deep-copies the snapshot through its JSON encoding. The dataset is
// small by design (it is rewritten wholesale on every mutation anyway).
func (s Snapshot) clone() (*Snapshot, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out Snapshot
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	normalize(&out)
	return &out, nil
}

// persist writes the document atomically: temp file in the same directory,
// then rename over the target. A crash mid-write leaves the old file intact.
func (s *Store) persist(snap Snapshot) error {
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// mutate runs fn against a deep copy of the dataset, persists the result, and
// swaps it into memory only after the write succeeds. Callers must hold the
// write lock.
func (s *Store) mutate(fn func(*Snapshot) error) error {
	next, err := s.data.clone()
	if err != nil {
		return err
	}
	if err := fn(next); err != nil {
		return err
	}
	if err := s.persist(*next); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	s.data = *next
	return nil
}

func newLogEntry(id int64, action, details, actor string) domain.LogEntry {
	return domain.LogEntry{
		ID:        id,
		Action:    action,
		Details:   details,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}
}

// --- Categories ---

// ListCategories returns all categories annotated with their product counts.
func (s *Store) ListCategories(ctx context.Context) ([]store.CategoryWithCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.CategoryWithCount, 0, len(s.data.Categories))
	for _, c := range s.data.Categories {
		var n int64
		for _, p := range s.data.Products {
			if p.CategoryID == c.ID {
				n++
			}
		}
		out = append(out, store.CategoryWithCount{Category: c, ProductCount: n})
	}
	return out, nil
}

// AddCategory inserts a category with the next sequence ID.
func (s *Store) AddCategory(ctx context.Context, c domain.Category) (*domain.Category, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, fmt.Errorf("%w: category name required", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.seq.category
	logID := s.seq.log
	err := s.mutate(func(next *Snapshot) error {
		next.Categories = append(next.Categories, c)
		next.Logs = append(next.Logs, newLogEntry(logID, "Add Category",
			fmt.Sprintf("Added category %s", c.Name), store.ActorAdmin))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.seq.category++
	s.seq.log++
	return &c, nil
}

// UpdateCategory applies non-nil patch fields to the category.
func (s *Store) UpdateCategory(ctx context.Context, id int64, patch store.CategoryPatch) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.data.Categories {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, store.ErrNotFound
	}

	logID := s.seq.log
	var updated domain.Category
	err := s.mutate(func(next *Snapshot) error {
		c := &next.Categories[idx]
		if patch.Name != nil {
			c.Name = *patch.Name
		}
		if patch.Description != nil {
			c.Description = *patch.Description
		}
		if patch.ImageURL != nil {
			c.ImageURL = *patch.ImageURL
		}
		updated = *c
		next.Logs = append(next.Logs, newLogEntry(logID, "Update Category",
			fmt.Sprintf("Updated category ID %d", id), store.ActorAdmin))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.seq.log++
	return &updated, nil
}

// DeleteCategory removes the category and every product referencing it.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, c := range s.data.Categories {
		if c.ID == id {
			found = true
			break
		}
	}
	if !found {
		return store.ErrNotFound
	}

	logID := s.seq.log
	err := s.mutate(func(next *Snapshot) error {
		cats := next.Categories[:0]
		for _, c := range next.Categories {
			if c.ID != id {
				cats = append(cats, c)
			}
		}
		next.Categories = cats

		prods := next.Products[:0]
		for _, p := range next.Products {
			if p.CategoryID != id {
				prods = append(prods, p)
			}
		}
		next.Products = prods

		next.Logs = append(next.Logs, newLogEntry(logID, "Delete Category",
			fmt.Sprintf("Deleted category ID %d", id), store.ActorAdmin))
		return nil
	})
	if err != nil {
		return err
	}
	s.seq.log++
	return nil
}

// --- Products ---

// ListProducts returns products, filtered by category when categoryID > 0.
func (s *Store) ListProducts(ctx context.Context, categoryID int64) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.data.Products))
	for _, p := range s.data.Products {
		if categoryID > 0 && p.CategoryID != categoryID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// GetProduct fetches one product by id.
func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.data.Products {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

// AddProduct inserts a product with the next sequence ID.
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

	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.seq.product
	logID := s.seq.log
	err := s.mutate(func(next *Snapshot) error {
		next.Products = append(next.Products, p)
		next.Logs = append(next.Logs, newLogEntry(logID, "Add Product",
			fmt.Sprintf("Added product %s", p.Name), store.ActorAdmin))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.seq.product++
	s.seq.log++
	return &p, nil
}

// UpdateProduct applies non-nil patch fields to the product.
func (s *Store) UpdateProduct(ctx context.Context, id int64, patch store.ProductPatch) (*domain.Product, error) {
	if patch.Price != nil && patch.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", store.ErrValidation)
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.data.Products {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, store.ErrNotFound
	}

	logID := s.seq.log
	var updated domain.Product
	err := s.mutate(func(next *Snapshot) error {
		p := &next.Products[idx]
		if patch.CategoryID != nil {
			p.CategoryID = *patch.CategoryID
		}
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Price != nil {
			p.Price = *patch.Price
		}
		if patch.Stock != nil {
			p.Stock = *patch.Stock
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.ImageURL != nil {
			p.ImageURL = *patch.ImageURL
		}
		if patch.Features != nil {
			p.Features = *patch.Features
		}
		if patch.SupportedMaps != nil {
			p.SupportedMaps = *patch.SupportedMaps
		}
		updated = *p
		next.Logs = append(next.Logs, newLogEntry(logID, "Update Product",
			fmt.Sprintf("Updated product ID %d", id), store.ActorAdmin))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.seq.log++
	return &updated, nil
}

// DeleteProduct removes one product.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, p := range s.data.Products {
		if p.ID == id {
			found = true
			break
		}
	}
	if !found {
		return store.ErrNotFound
	}

	logID := s.seq.log
	err := s.mutate(func(next *Snapshot) error {
		prods := next.Products[:0]
		for _, p := range next.Products {
			if p.ID != id {
				prods = append(prods, p)
			}
		}
		next.Products = prods
		next.Logs = append(next.Logs, newLogEntry(logID, "Delete Product",
			fmt.Sprintf("Deleted product ID %d", id), store.ActorAdmin))
		return nil
	})
	if err != nil {
		return err
	}
	s.seq.log++
	return nil
}

// --- Users ---

// ListUsers returns all accounts with credential material stripped.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.User, 0, len(s.data.Users))
	for _, u := range s.data.Users {
		out = append(out, u.Sanitized())
	}
	return out, nil
}

// UserExists reports whether the username is taken, case-insensitively.
func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userExistsLocked(username), nil
}

func (s *Store) userExistsLocked(username string) bool {
	for _, u := range s.data.Users {
		if strings.EqualFold(u.Username, username) {
			return true
		}
	}
	return false
}

// Authenticate verifies the credential and records the login time.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, u := range s.data.Users {
		if strings.EqualFold(u.Username, username) {
			idx = i
			break
		}
	}
	if idx == -1 || !auth.CheckPassword(s.data.Users[idx].PasswordHash, password) {
		return nil, store.ErrInvalidCredentials
	}

	var out domain.User
	err := s.mutate(func(next *Snapshot) error {
		next.Users[idx].LastLogin = domain.Timestamp{Time: time.Now().UTC()}
		out = next.Users[idx].Sanitized()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AddUser creates an account. The username must be unique case-insensitively;
// an omitted credential falls back to the default, and the role to Member.
func (s *Store) AddUser(ctx context.Context, nu store.NewUser) (*domain.User, error) {
	nu.Username = strings.TrimSpace(nu.Username)
	if nu.Username == "" {
		return nil, fmt.Errorf("%w: username required", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userExistsLocked(nu.Username) {
		return nil, store.ErrDuplicateUsername
	}

	password := nu.Password
	if password == "" {
		password = store.DefaultPassword
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	role := nu.Role
	if role == "" {
		role = domain.RoleMember
	}
	status := nu.Status
	if status == "" {
		status = domain.StatusActive
	}

	u := domain.User{
		ID:           s.seq.user,
		Username:     nu.Username,
		PasswordHash: hash,
		Role:         role,
		Status:       status,
		CreatedAt:    time.Now().UTC(),
	}
	logID := s.seq.log
	err = s.mutate(func(next *Snapshot) error {
		next.Users = append(next.Users, u)
		next.Logs = append(next.Logs, newLogEntry(logID, "Add User",
			fmt.Sprintf("Added user %s", u.Username), store.ActorAdmin))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.seq.user++
	s.seq.log++
	out := u.Sanitized()
	return &out, nil
}

// DeleteUser removes one account.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, u := range s.data.Users {
		if u.ID == id {
			found = true
			break
		}
	}
	if !found {
		return store.ErrNotFound
	}

	logID := s.seq.log
	err := s.mutate(func(next *Snapshot) error {
		users := next.Users[:0]
		for _, u := range next.Users {
			if u.ID != id {
				users = append(users, u)
			}
		}
		next.Users = users
		next.Logs = append(next.Logs, newLogEntry(logID, "Delete User",
			fmt.Sprintf("Deleted user ID %d", id), store.ActorAdmin))
		return nil
	})
	if err != nil {
		return err
	}
	s.seq.log++
	return nil
}

// SetupRequired reports whether no accounts exist yet.
func (s *Store) SetupRequired(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.Users) == 0, nil
}

// --- Settings ---

// Settings returns a copy of the settings map.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.data.Settings))
	for k, v := range s.data.Settings {
		out[k] = v
	}
	return out, nil
}

// UpdateSettings merges the given keys into the settings map, last write wins.
func (s *Store) UpdateSettings(ctx context.Context, updates map[string]string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logID := s.seq.log
	err := s.mutate(func(next *Snapshot) error {
		for k, v := range updates {
			next.Settings[k] = v
		}
		next.Logs = append(next.Logs, newLogEntry(logID, "Update Settings",
			"Updated system settings", store.ActorAdmin))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.seq.log++

	out := make(map[string]string, len(s.data.Settings))
	for k, v := range s.data.Settings {
		out[k] = v
	}
	return out, nil
}

// --- Logs ---

// AppendLog records one audit entry.
func (s *Store) AppendLog(ctx context.Context, action, details, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logID := s.seq.log
	err := s.mutate(func(next *Snapshot) error {
		next.Logs = append(next.Logs, newLogEntry(logID, action, details, actor))
		return nil
	})
	if err != nil {
		return err
	}
	s.seq.log++
	return nil
}

// RecentLogs returns the newest entries first.
func (s *Store) RecentLogs(ctx context.Context, limit int) ([]domain.LogEntry, error) {
	if limit <= 0 {
		limit = store.DefaultLogLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.data.Logs)
	if limit > n {
		limit = n
	}
	out := make([]domain.LogEntry, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.data.Logs[i])
	}
	return out, nil
}

// --- Orders ---

// PlaceOrder runs the whole placement under the writer lock: stock check,
// order append, decrement, and audit entry commit as one snapshot rewrite.
func (s *Store) PlaceOrder(ctx context.Context, userID, productID int64, price decimal.Decimal) (*domain.Order, error) {
	if price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.data.Products {
		if p.ID == productID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, store.ErrNotFound
	}
	if s.data.Products[idx].Stock <= 0 {
		return nil, store.ErrOutOfStock
	}

	order := domain.Order{
		ID:        s.seq.order,
		UserID:    userID,
		ProductID: productID,
		Price:     price,
		Status:    domain.OrderCompleted,
		CreatedAt: time.Now().UTC(),
	}
	logID := s.seq.log
	err := s.mutate(func(next *Snapshot) error {
		next.Products[idx].Stock--
		next.Orders = append(next.Orders, order)
		next.Logs = append(next.Logs, newLogEntry(logID, "Place Order",
			fmt.Sprintf("Order %d: user %d purchased product %d", order.ID, userID, productID),
			strconv.FormatInt(userID, 10)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.seq.order++
	s.seq.log++
	return &order, nil
}

// OrdersForUser returns the user's orders, newest first.
func (s *Store) OrdersForUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Order{}
	for i := len(s.data.Orders) - 1; i >= 0; i-- {
		if s.data.Orders[i].UserID == userID {
			out = append(out, s.data.Orders[i])
		}
	}
	return out, nil
}

// --- Stats ---

// DashboardStats aggregates over the in-memory dataset.
func (s *Store) DashboardStats(ctx context.Context) (*store.DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &store.DashboardStats{
		TotalSales:    decimal.Zero,
		ActiveUsers:   int64(len(s.data.Users)),
		TotalProducts: int64(len(s.data.Products)),
	}
	for _, o := range s.data.Orders {
		stats.TotalSales = stats.TotalSales.Add(o.Price)
		if o.Status == domain.OrderPending {
			stats.PendingOrders++
		}
	}
	return stats, nil
}
