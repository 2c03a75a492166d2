// Package sqlstore – migration import helpers.
//
// These entry points exist for the one-shot migration tool and are not part
// of the storage contract. They differ from the regular mutators in two ways:
// catalog rows keep their original numeric IDs (skipping IDs already present,
// so a re-run never duplicates rows), and none of them write audit entries —
// a migration is a bulk copy, not a user action.
package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yenix/go-store-backend/internal/auth"
	"github.com/yenix/go-store-backend/internal/domain"
	"github.com/yenix/go-store-backend/internal/store"
)

// ImportCategory inserts a category preserving its original ID. It reports
// false when a row with that ID already exists.
func (s *Store) ImportCategory(ctx context.Context, c domain.Category) (bool, error) {
	return s.importRow(ctx, &domain.Category{}, c.ID, &c)
}

// ImportProduct inserts a product preserving its original ID. It reports
// false when a row with that ID already exists.
func (s *Store) ImportProduct(ctx context.Context, p domain.Product) (bool, error) {
	return s.importRow(ctx, &domain.Product{}, p.ID, &p)
}

// importRow checks the target ID explicitly before inserting, rather than
// relying on insert-time uniqueness errors.
func (s *Store) importRow(ctx context.Context, model any, id int64, row any) (bool, error) {
	inserted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		inserted = true
		return nil
	})
	return inserted, err
}

// ImportUser inserts a user unless the username already exists
// (case-insensitive). The target row always carries a bcrypt hash: an
// already-hashed source credential is kept verbatim, a legacy plaintext one
// is hashed, and a source row with no credential at all gets the default
// credential hashed. The target assigns a fresh ID.
func (s *Store) ImportUser(ctx context.Context, u domain.User) (bool, error) {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return false, fmt.Errorf("%w: username required", store.ErrValidation)
	}
	if !auth.IsHash(u.PasswordHash) {
		plain := u.PasswordHash
		if plain == "" {
			plain = u.LegacyPassword
		}
		if plain == "" {
			plain = store.DefaultPassword
		}
		hash, err := auth.HashPassword(plain)
		if err != nil {
			return false, err
		}
		u.PasswordHash = hash
	}
	u.LegacyPassword = ""
	u.ID = 0

	inserted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.User{}).
			Where("LOWER(username) = LOWER(?)", u.Username).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		inserted = true
		return nil
	})
	return inserted, err
}
