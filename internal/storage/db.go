// Package storage opens the local sqlite database, applies schema
// migrations and wires up the repositories.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/exposurekit/internal/repositories/cache"
	"github.com/dmitrijs2005/exposurekit/internal/repositories/checkins"
	"github.com/dmitrijs2005/exposurekit/internal/repositories/matches"
	"github.com/dmitrijs2005/exposurekit/internal/repositories/packages"
	"github.com/dmitrijs2005/exposurekit/internal/repositories/state"
	"github.com/dmitrijs2005/exposurekit/internal/repositories/tracewarnings"
	"github.com/dmitrijs2005/exposurekit/internal/storage/migrations"
)

// Repositories bundles every repository backed by the local database.
type Repositories struct {
	Packages      packages.Store
	TraceWarnings tracewarnings.Repository
	Matches       matches.Repository
	Checkins      checkins.Repository
	Cache         cache.Repository
	State         *state.Store

	DB *sql.DB
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the database at dsn, migrates it and returns the
// repository set. A single connection is used so that concurrent country
// downloads are serialized at the store, as required by the shared-resource
// policy, and so the foreign_keys pragma applies to every statement.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Repositories{
		Packages:      packages.NewSQLiteStore(db),
		TraceWarnings: tracewarnings.NewSQLiteRepository(db),
		Matches:       matches.NewSQLiteRepository(db),
		Checkins:      checkins.NewSQLiteRepository(db),
		Cache:         cache.NewSQLiteRepository(db),
		State:         state.NewStore(state.NewSQLiteRepository(db)),
		DB:            db,
	}, nil
}
