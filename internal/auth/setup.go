package auth

import (
	"fmt"

	"gorm.io/gorm"
)

// Init migrates the account tables.
func Init(d *gorm.DB) error {
	if err := d.AutoMigrate(&User{}, &Session{}); err != nil {
		return fmt.Errorf("auto-migrate auth tables: %w", err)
	}
	return nil
}
