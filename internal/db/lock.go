package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// TryAdvisoryLock takes a session-level Postgres advisory lock keyed by
// hashtext(key) without blocking. ok is false when another process holds it.
// The lock lives on one pooled connection, so the caller must invoke release
// before returning that connection's work to the pool.
func TryAdvisoryLock(ctx context.Context, d *gorm.DB, key string) (release func(), ok bool, err error) {
	sqlDB, err := d.DB()
	if err != nil {
		return nil, false, fmt.Errorf("get sql.DB: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire conn: %w", err)
	}

	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, key).Scan(&ok); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("advisory lock: %w", err)
	}
	if !ok {
		conn.Close()
		return nil, false, nil
	}

	release = func() {
		var dummy bool
		_ = conn.QueryRowContext(context.Background(), `SELECT pg_advisory_unlock(hashtext($1))`, key).Scan(&dummy)
		conn.Close()
	}
	return release, true, nil
}
