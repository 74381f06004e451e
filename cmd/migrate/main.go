package main

// Run database migrations:
//   go run ./cmd/migrate          # apply pending migrations
//   go run ./cmd/migrate status   # print applied state

import (
	"context"
	"log"
	"os"

	"dsr-backend/internal/shared/config"
	"dsr-backend/internal/shared/storage/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	opts := db.MigrateOptions(db.Options{
		ConnMaxLifetime: cfg.DBConnLifetime,
		PingTimeout:     cfg.DBPingTimeout,
	})
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "up":
		err = db.RunMigrations(ctx, sqlDB)
	case "status":
		err = db.MigrationStatus(ctx, sqlDB)
	default:
		log.Printf("unknown command %q (want up or status)", cmd)
		os.Exit(2)
	}
	if err != nil {
		log.Printf("migrate %s failed: %v", cmd, err)
		os.Exit(1)
	}
}
