package auth

import (
	"time"

	"github.com/headwatersai/headwaters-backend/internal/tiers"
)

type User struct {
	ID                   string `gorm:"primaryKey;type:varchar(36)"`
	Email                string `gorm:"uniqueIndex;not null"`
	PasswordHash         string `gorm:"not null"`
	FullName             *string
	SubscriptionTier     tiers.Tier `gorm:"type:varchar(20);not null;default:'free'"`
	StripeCustomerID     *string
	StripeSubscriptionID *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Session rows are deleted with their user.
type Session struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	UserID    string    `gorm:"type:varchar(36);not null;index"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
}

// CanAccessFeature reports whether u's tier unlocks f. A nil user has no access.
func CanAccessFeature(u *User, f tiers.Feature) bool {
	if u == nil {
		return false
	}
	return u.SubscriptionTier.Allows(f)
}
