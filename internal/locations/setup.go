package locations

import (
	"fmt"

	"gorm.io/gorm"
)

// Init migrates saved_locations. The auth tables must exist first.
func Init(d *gorm.DB) error {
	if err := d.AutoMigrate(&SavedLocation{}); err != nil {
		return fmt.Errorf("auto-migrate locations: %w", err)
	}
	return nil
}
