package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"kwik.app/dispatch/core/config"
	"kwik.app/dispatch/core/db"
)

// OpenCallStore returns the Postgres store when DATABASE_URL is set and an
// in-memory store seeded from the mock data file otherwise. The returned
// close func is never nil.
func OpenCallStore(ctx context.Context, cfg config.Config) (CallStore, func(), error) {
	if cfg.DB.Enabled() {
		database, err := db.New(ctx, cfg.DB)
		if err != nil {
			return nil, func() {}, fmt.Errorf("connecting to database: %w", err)
		}
		if err := database.EnsureSchema(ctx); err != nil {
			database.Close()
			return nil, func() {}, err
		}
		slog.InfoContext(ctx, "database connected")
		return NewStores(database.Conn()).Calls(), database.Close, nil
	}

	seed, err := LoadMockCalls(cfg.MockDataPath, time.Now().UTC())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.WarnContext(ctx, "mock data file not found, starting with an empty call store", "path", cfg.MockDataPath)
	case err != nil:
		return nil, func() {}, err
	default:
		slog.InfoContext(ctx, "using in-memory call store", "seeded_calls", len(seed))
	}
	return NewMemoryCallStore(seed...), func() {}, nil
}
