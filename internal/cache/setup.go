package cache

import (
	"fmt"

	"gorm.io/gorm"
)

// Init migrates the cache tables.
func Init(d *gorm.DB) error {
	if err := d.AutoMigrate(&Watershed{}, &StreamGauge{}, &GaugeReading{}, &Facility{}); err != nil {
		return fmt.Errorf("auto-migrate cache tables: %w", err)
	}
	return nil
}
