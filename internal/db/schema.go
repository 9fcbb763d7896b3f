package db

import "gorm.io/gorm"

// EnsureSchema creates the Postgres schema if needed. Other dialects have no
// schemas, so it is a no-op there.
func EnsureSchema(d *gorm.DB, schema string) error {
	if d.Dialector.Name() != "postgres" {
		return nil
	}
	return d.Exec(`CREATE SCHEMA IF NOT EXISTS "` + schema + `"`).Error
}
