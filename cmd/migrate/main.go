// Command migrate copies a JSON snapshot dataset into the SQLite store.
//
// It is a one-shot batch tool: read the snapshot, merge it into the target
// database, print a summary, exit. Re-running is safe — existing users,
// categories, and products are skipped, and settings are upserted.
//
// A missing snapshot file is not an error (there is simply nothing to
// migrate); an unreadable or malformed one is fatal.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yenix/go-store-backend/internal/config"
	"github.com/yenix/go-store-backend/internal/migration"
	"github.com/yenix/go-store-backend/internal/store/jsonstore"
	"github.com/yenix/go-store-backend/internal/store/sqlstore"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	dataPath := flag.String("data", cfg.DataPath, "path to the JSON snapshot to migrate from")
	dbPath := flag.String("db", cfg.DBPath, "path to the target SQLite database")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	snap, err := jsonstore.ReadSnapshot(*dataPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", *dataPath).Msg("no snapshot file, nothing to migrate")
			return
		}
		log.Fatal().Err(err).Str("path", *dataPath).Msg("read snapshot")
	}

	dst, err := sqlstore.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dbPath).Msg("open target database")
	}

	rep := migration.Run(context.Background(), snap, dst)

	for _, e := range rep.Errors {
		log.Warn().Err(e).Msg("record not migrated")
	}
	log.Info().
		Int("users_migrated", rep.UsersMigrated).
		Int("users_skipped", rep.UsersSkipped).
		Int("categories_copied", rep.CategoriesCopied).
		Int("categories_skipped", rep.CategoriesSkipped).
		Int("products_copied", rep.ProductsCopied).
		Int("products_skipped", rep.ProductsSkipped).
		Int("settings_applied", rep.SettingsApplied).
		Msg("done")

	if rep.Failed() {
		os.Exit(1)
	}
}
