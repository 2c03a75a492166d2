// Package migration copies a file-snapshot dataset into the relational store.
// It is a batch client of both backends, intended to run once per deployment
// transition and never concurrently with live traffic.
//
// Merge policy:
//   - Users: skip any username that already exists in the target
//     (case-insensitive); otherwise insert with a bcrypt credential hash.
//   - Categories/products: insert preserving the original numeric IDs; skip
//     IDs already present, so re-running never duplicates rows.
//   - Settings: upsert, source values win for matching keys.
//
// Orders and audit logs are not copied; they belong to whichever store
// recorded them. A failure on one record is collected into the Report and the
// run continues — only an unreadable source dataset is fatal, and that is the
// caller's concern before Run is invoked.
package migration

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/yenix/go-store-backend/internal/store/jsonstore"
	"github.com/yenix/go-store-backend/internal/store/sqlstore"
)

// Report summarizes one migration run.
type Report struct {
	UsersMigrated     int
	UsersSkipped      int
	CategoriesCopied  int
	CategoriesSkipped int
	ProductsCopied    int
	ProductsSkipped   int
	SettingsApplied   int
	Errors            []error
}

// Failed reports whether any record could not be migrated.
func (r *Report) Failed() bool { return len(r.Errors) > 0 }

// Run merges the snapshot into the relational store. Each record is processed
// independently; per-record failures are logged, collected, and never abort
// the rest of the run.
func Run(ctx context.Context, snap *jsonstore.Snapshot, dst *sqlstore.Store) *Report {
	rep := &Report{}

	log.Info().Int("count", len(snap.Users)).Msg("migrating users")
	for _, u := range snap.Users {
		inserted, err := dst.ImportUser(ctx, u)
		switch {
		case err != nil:
			rep.Errors = append(rep.Errors, fmt.Errorf("user %q: %w", u.Username, err))
			log.Warn().Err(err).Str("username", u.Username).Msg("user migration failed")
		case inserted:
			rep.UsersMigrated++
		default:
			rep.UsersSkipped++
			log.Info().Str("username", u.Username).Msg("skipping existing user")
		}
	}

	log.Info().Int("count", len(snap.Categories)).Msg("migrating categories")
	for _, c := range snap.Categories {
		inserted, err := dst.ImportCategory(ctx, c)
		switch {
		case err != nil:
			rep.Errors = append(rep.Errors, fmt.Errorf("category %d: %w", c.ID, err))
			log.Warn().Err(err).Int64("id", c.ID).Msg("category migration failed")
		case inserted:
			rep.CategoriesCopied++
		default:
			rep.CategoriesSkipped++
		}
	}

	log.Info().Int("count", len(snap.Products)).Msg("migrating products")
	for _, p := range snap.Products {
		inserted, err := dst.ImportProduct(ctx, p)
		switch {
		case err != nil:
			rep.Errors = append(rep.Errors, fmt.Errorf("product %d: %w", p.ID, err))
			log.Warn().Err(err).Int64("id", p.ID).Msg("product migration failed")
		case inserted:
			rep.ProductsCopied++
		default:
			rep.ProductsSkipped++
		}
	}

	if len(snap.Settings) > 0 {
		log.Info().Int("count", len(snap.Settings)).Msg("migrating settings")
		if _, err := dst.UpdateSettings(ctx, snap.Settings); err != nil {
			rep.Errors = append(rep.Errors, fmt.Errorf("settings: %w", err))
			log.Warn().Err(err).Msg("settings migration failed")
		} else {
			rep.SettingsApplied = len(snap.Settings)
		}
	}

	log.Info().
		Int("users", rep.UsersMigrated).
		Int("users_skipped", rep.UsersSkipped).
		Int("categories", rep.CategoriesCopied).
		Int("products", rep.ProductsCopied).
		Int("settings", rep.SettingsApplied).
		Int("errors", len(rep.Errors)).
		Msg("migration complete")
	return rep
}
