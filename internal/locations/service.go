// Package locations stores the map points users save, capped per
// subscription tier.
package locations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/headwatersai/headwaters-backend/internal/auth"
	"github.com/headwatersai/headwaters-backend/internal/tiers"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("Location not found")

// LimitError reports that the user's tier allows no more saved locations.
type LimitError struct {
	Limit int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("Location limit reached. Your plan allows %d saved locations.", e.Limit)
}

// NewLocation is the input for Create. Empty optional strings are stored as NULL.
type NewLocation struct {
	Name           string
	Latitude       float64
	Longitude      float64
	WatershedHUC12 string
	Address        string
	Notes          string
}

type Service struct {
	db    *gorm.DB
	clock clockwork.Clock
}

// NewService wires the locations service. A nil clock means wall time.
func NewService(d *gorm.DB, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{db: d, clock: clock}
}

// List returns the user's locations, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]SavedLocation, error) {
	out := []SavedLocation{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Create saves a location unless the user is already at their tier's cap.
// The user row is locked FOR UPDATE before counting, so concurrent creates
// for one user take turns and cannot overshoot the cap.
func (s *Service) Create(ctx context.Context, userID string, tier tiers.Tier, in NewLocation) (*SavedLocation, error) {
	loc := &SavedLocation{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           in.Name,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		WatershedHUC12: nullable(in.WatershedHUC12),
		Address:        nullable(in.Address),
		Notes:          nullable(in.Notes),
		CreatedAt:      s.clock.Now().UTC(),
	}
	limit := tier.MaxSavedLocations()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner auth.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&owner, "id = ?", userID).Error
		if err != nil {
			return fmt.Errorf("lock user %s: %w", userID, err)
		}

		var count int64
		if err := tx.Model(&SavedLocation{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(limit) {
			return &LimitError{Limit: limit}
		}
		return tx.Omit("User").Create(loc).Error
	})
	if err != nil {
		return nil, err
	}
	return loc, nil
}

// Delete removes one of the user's locations. Another user's id is
// reported as ErrNotFound.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&SavedLocation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// All returns every saved location across users, oldest first. limit <= 0
// means no limit.
func (s *Service) All(ctx context.Context, limit int) ([]SavedLocation, error) {
	var out []SavedLocation
	q := s.db.WithContext(ctx).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
