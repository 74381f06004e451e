package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver

	"dsr-backend/internal/shared/telemetry"
)

// Options controls database pool and connectivity behavior.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

var (
	openDB = sql.Open

	shared   *sql.DB
	sharedMu sync.Mutex
)

func (o Options) withDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 10
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = 5
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = time.Hour
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = 5 * time.Second
	}
	return o
}

// IsLambdaRuntime reports whether the current process is running in AWS Lambda.
func IsLambdaRuntime() bool {
	return strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")) != ""
}

// LambdaOptions caps the pool for many short-lived concurrent instances.
func LambdaOptions(base Options) Options {
	opts := base
	opts.MaxOpenConns = min(max(opts.MaxOpenConns, 1), 2)
	opts.MaxIdleConns = 1
	opts.ConnMaxIdleTime = 30 * time.Second
	opts.ConnMaxLifetime = 15 * time.Minute
	opts.PingTimeout = 3 * time.Second
	return opts
}

// MigrateOptions returns a single-connection pool for CLI migrations.
func MigrateOptions(base Options) Options {
	opts := base
	opts.MaxOpenConns = 1
	opts.MaxIdleConns = 1
	return opts
}

// Connect opens the ledger database and pings it before returning.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}
	opts = opts.withDefaults()

	sqlDB, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	if opts.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	stats := sqlDB.Stats()
	telemetry.Info("db.init", map[string]any{
		"max_open": stats.MaxOpenConnections,
		"max_idle": opts.MaxIdleConns,
		"open":     stats.OpenConnections,
		"idle":     stats.Idle,
	})
	return sqlDB, nil
}

// GetSingleton returns the pool shared by every invocation in one Lambda
// execution environment. A failed connect is not cached.
func GetSingleton(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared != nil {
		return shared, nil
	}
	sqlDB, err := Connect(ctx, databaseURL, opts)
	if err != nil {
		return nil, err
	}
	shared = sqlDB
	return shared, nil
}
