package api

import (
	"context"
	"database/sql"
	"fmt"

	redisclient "libchat/internal/redis"
	"libchat/internal/storage"
)

// ReadinessCheck pings the database and, when configured, redis. A nil cache means redis is
// disabled and is not part of readiness.
func ReadinessCheck(db *sql.DB, cache *redisclient.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := storage.Ping(ctx, db); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if cache == nil {
			return nil
		}
		if err := cache.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}
}
