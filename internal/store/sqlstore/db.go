// Package sqlstore implements the storage contract on normalized relational
// tables, backed by GORM over SQLite (pure Go driver). This file contains
// database bootstrapping: opening the handle with PRAGMAs, schema migration,
// and first-run seeding of default settings.
//
// Multi-step operations are not implicitly atomic here; every mutating
// contract method wraps its statements — primary change plus audit row — in
// an explicit transaction (see store.go).
package sqlstore

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yenix/go-store-backend/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if the parent directory does not exist instead of the
	// driver's opaque "out of memory (14)".
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all storefront tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Category{},
		&domain.Product{},
		&domain.User{},
		&domain.Order{},
		&domain.Setting{},
		&domain.LogEntry{},
	)
}

// seedDefaultSettings inserts the baseline settings, but only when the table
// is empty — existing values are never overwritten on startup.
func seedDefaultSettings(db *gorm.DB, defaults map[string]string) error {
	var n int64
	if err := db.Model(&domain.Setting{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for k, v := range defaults {
		if err := db.Create(&domain.Setting{Key: k, Value: v}).Error; err != nil {
			return err
		}
	}
	return nil
}
