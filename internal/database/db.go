package database

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/mighty/internal/config"
)

var DB *pgxpool.Pool

//go:embed schema.sql
var schema string

// ConnectDB opens the global pool. Callers that skip it leave DB nil and every
// persistence path becomes a no-op.
func ConnectDB(ctx context.Context, cfg config.PostgresConfig) error {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return fmt.Errorf("db ping error: %w", err)
	}
	DB = pool
	return nil
}

// Migrate creates the tables the server and historian write to.
func Migrate(ctx context.Context) error {
	if DB == nil {
		return fmt.Errorf("database not connected")
	}
	_, err := DB.Exec(ctx, schema)
	return err
}

// Close releases the pool if one was opened.
func Close() {
	if DB != nil {
		DB.Close()
		DB = nil
	}
}
