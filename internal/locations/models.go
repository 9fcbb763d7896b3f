package locations

import (
	"time"

	"github.com/headwatersai/headwaters-backend/internal/auth"
)

// SavedLocation is a user's bookmarked point. Rows go away with the user.
type SavedLocation struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID         string    `gorm:"type:varchar(36);not null;index" json:"-"`
	User           auth.User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Name           string    `gorm:"not null" json:"name"`
	Latitude       float64   `gorm:"not null" json:"latitude"`
	Longitude      float64   `gorm:"not null" json:"longitude"`
	WatershedHUC12 *string   `gorm:"column:watershed_huc12;type:varchar(12)" json:"watershedHuc12"`
	Address        *string   `json:"address"`
	Notes          *string   `json:"notes"`
	CreatedAt      time.Time `gorm:"index" json:"createdAt"`
}
