package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Options describes the Postgres connection.
type Options struct {
	DSN    string
	Schema string
}

// Connect opens Postgres and qualifies every table with the configured
// schema. Callers pass the handle on through each package's Init/New.
func Connect(opts Options) (*gorm.DB, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	d, err := Open(postgres.Open(opts.DSN), opts.Schema)
	if err != nil {
		return nil, err
	}

	sqlDB, err := d.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if opts.Schema != "" {
		if err := EnsureSchema(d, opts.Schema); err != nil {
			return nil, fmt.Errorf("ensure schema %s: %w", opts.Schema, err)
		}
	}

	return d, nil
}

// Open wraps gorm.Open with the shared logger and naming strategy. It is
// also used by the cmd tools that bring their own *sql.DB.
func Open(dialector gorm.Dialector, tableSchema string) (*gorm.DB, error) {
	naming := schema.NamingStrategy{}
	if tableSchema != "" {
		naming.TablePrefix = tableSchema + "."
	}

	d, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newLogger(),
		NamingStrategy: naming,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return d, nil
}

func newLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             100 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
