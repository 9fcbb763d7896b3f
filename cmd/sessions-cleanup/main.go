// sessions-cleanup deletes expired sessions. Run it from cron; concurrent
// runs are serialized by a Postgres advisory lock.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/headwatersai/headwaters-backend/internal/auth"
	"github.com/headwatersai/headwaters-backend/internal/config"
	"github.com/headwatersai/headwaters-backend/internal/db"
	"github.com/headwatersai/headwaters-backend/internal/observability"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
)

const lockKey = "headwaters:sessions-cleanup"

var (
	dsn     = flag.String("dsn", "", "Postgres DSN (default: env DATABASE_URL)")
	schema  = flag.String("schema", config.EnvOrDefault("DB_SCHEMA", config.DefaultSchema), "table schema")
	dryRun  = flag.Bool("dry-run", false, "count expired sessions without deleting them")
	timeout = flag.Duration("timeout", 5*time.Minute, "overall deadline")
)

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_URL")
	}
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	logger := observability.NewLogger(config.EnvOrDefault("LOG_LEVEL", "info"), config.EnvOrDefault("LOG_FORMAT", "text"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	sqlDB, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("open database: %v", err)
	}
	defer sqlDB.Close()
	if err := sqlDB.PingContext(ctx); err != nil {
		fatalf("ping database: %v", err)
	}

	d, err := db.Open(postgres.New(postgres.Config{Conn: sqlDB}), *schema)
	if err != nil {
		fatalf("%v", err)
	}

	release, ok, err := db.TryAdvisoryLock(ctx, d, lockKey)
	if err != nil {
		fatalf("%v", err)
	}
	if !ok {
		logger.Info("another cleanup is running, exiting")
		return
	}
	defer release()

	svc := auth.NewService(d, nil, logger)
	start := time.Now()
	if *dryRun {
		n, err := svc.CountExpiredSessions(ctx)
		if err != nil {
			fatalf("count expired sessions: %v", err)
		}
		logger.Info("dry run", "expired_sessions", n)
		return
	}

	n, err := svc.CleanupExpiredSessions(ctx)
	if err != nil {
		fatalf("delete expired sessions: %v", err)
	}
	logger.Info("expired sessions deleted", "count", n, "duration", time.Since(start))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "sessions-cleanup: "+format+"\n", args...)
	os.Exit(1)
}
