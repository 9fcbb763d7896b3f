package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/headwatersai/headwaters-backend/internal/tiers"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

const SessionDuration = 30 * 24 * time.Hour

// Service owns accounts and sessions.
type Service struct {
	db     *gorm.DB
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewService wires the auth service. A nil clock means wall time.
func NewService(d *gorm.DB, clock clockwork.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: d, clock: clock, logger: logger.With("component", "auth")}
}

// ProfileUpdate carries the optional fields of a profile edit. Nil means unchanged.
type ProfileUpdate struct {
	FullName *string
	Email    *string
}

// Register creates a free-tier account and its first session.
func (s *Service) Register(ctx context.Context, email, password string, fullName *string) (*User, *Session, error) {
	email = NormalizeEmail(email)

	hash, err := HashPassword(password)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now().UTC()
	user := &User{
		ID:               uuid.NewString(),
		Email:            email,
		PasswordHash:     hash,
		FullName:         fullName,
		SubscriptionTier: tiers.Free,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var session *Session
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}
		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return err
		}
		created, err := s.createSession(tx, user.ID)
		session = created
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// Login checks credentials and opens a new session. Unknown emails and wrong
// passwords produce the same error.
func (s *Service) Login(ctx context.Context, email, password string) (*User, *Session, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		// Burn the same hashing work as a real check.
		VerifyPassword(password, dummyHash())
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	if NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	session, err := s.createSession(s.db.WithContext(ctx), user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	hash, err := HashPassword(password)
	if err == nil {
		err = s.db.WithContext(ctx).Model(&User{}).Where("id = ?", user.ID).
			Update("password_hash", hash).Error
	}
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
}

// CreateSession opens a session for userID expiring SessionDuration from now.
func (s *Service) CreateSession(ctx context.Context, userID string) (*Session, error) {
	return s.createSession(s.db.WithContext(ctx), userID)
}

func (s *Service) createSession(tx *gorm.DB, userID string) (*Session, error) {
	now := s.clock.Now().UTC()
	session := &Session{
		ID:        rand.Text(),
		UserID:    userID,
		ExpiresAt: now.Add(SessionDuration),
		CreatedAt: now,
	}
	if err := tx.Omit("User").Create(session).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// ValidateSession returns the session and its user. An expired session is
// deleted before ErrSessionExpired is returned.
func (s *Service) ValidateSession(ctx context.Context, id string) (*User, *Session, error) {
	if id == "" {
		return nil, nil, ErrSessionNotFound
	}

	var session Session
	err := s.db.WithContext(ctx).Preload("User").First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load session: %w", err)
	}
	if session.User.ID == "" {
		return nil, nil, ErrSessionNotFound
	}

	if !s.clock.Now().Before(session.ExpiresAt) {
		if err := s.db.WithContext(ctx).Delete(&Session{}, "id = ?", id).Error; err != nil {
			s.logger.WarnContext(ctx, "delete expired session failed", "error", err)
		}
		return nil, nil, ErrSessionExpired
	}

	user := session.User
	return &user, &session, nil
}

// Logout deletes the session. Unknown ids are not an error.
func (s *Service) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.db.WithContext(ctx).Delete(&Session{}, "id = ?", id).Error
}

// InvalidateAllSessions signs the user out everywhere.
func (s *Service) InvalidateAllSessions(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&Session{}, "user_id = ?", userID)
	return res.RowsAffected, res.Error
}

// ChangePassword verifies current, stores next and drops every session of the
// user. Both writes commit together or not at all.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if !VerifyPassword(current, user.PasswordHash) {
			return ErrWrongPassword
		}

		if err := tx.Model(&User{}).Where("id = ?", userID).Updates(map[string]any{
			"password_hash": hash,
			"updated_at":    s.clock.Now().UTC(),
		}).Error; err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if err := tx.Delete(&Session{}, "user_id = ?", userID).Error; err != nil {
			return fmt.Errorf("invalidate sessions: %w", err)
		}
		return nil
	})
}

// UpdateProfile applies a partial edit. A new email must not belong to
// another account.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		changes := map[string]any{}
		if upd.FullName != nil {
			changes["full_name"] = *upd.FullName
		}
		if upd.Email != nil {
			email := NormalizeEmail(*upd.Email)
			var taken int64
			if err := tx.Model(&User{}).Where("email = ? AND id <> ?", email, userID).Count(&taken).Error; err != nil {
				return err
			}
			if taken > 0 {
				return ErrEmailInUse
			}
			changes["email"] = email
		}
		if len(changes) == 0 {
			return nil
		}
		changes["updated_at"] = s.clock.Now().UTC()

		if err := tx.Model(&User{}).Where("id = ?", userID).Updates(changes).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailInUse
			}
			return err
		}
		return tx.First(&user, "id = ?", userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateSubscription records a billing change. Nil ids leave the stored ids untouched.
// WithTx returns a copy of the service that runs every query on tx.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	cp := *s
	cp.db = tx
	return &cp
}

func (s *Service) UpdateSubscription(ctx context.Context, userID string, tier tiers.Tier, customerID, subscriptionID *string) (*User, error) {
	if _, ok := tiers.Parse(string(tier)); !ok {
		return nil, ErrInvalidTier
	}

	changes := map[string]any{
		"subscription_tier": tier,
		"updated_at":        s.clock.Now().UTC(),
	}
	if customerID != nil {
		changes["stripe_customer_id"] = *customerID
	}
	if subscriptionID != nil {
		changes["stripe_subscription_id"] = *subscriptionID
	}

	res := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Updates(changes)
	if res.Error != nil {
		return nil, fmt.Errorf("update subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return s.GetUserByID(ctx, userID)
}

func (s *Service) GetUserByID(ctx context.Context, id string) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", NormalizeEmail(email)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CleanupExpiredSessions deletes every session past its expiry. It is run ad
// hoc from cmd/sessions-cleanup, never from the request path.
func (s *Service) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.clock.Now().UTC()).Delete(&Session{})
	return res.RowsAffected, res.Error
}

// CountExpiredSessions reports what CleanupExpiredSessions would delete.
func (s *Service) CountExpiredSessions(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Session{}).Where("expires_at <= ?", s.clock.Now().UTC()).Count(&n).Error
	return n, err
}

var (
	dummyOnce sync.Once
	dummy     string
)

func dummyHash() string {
	dummyOnce.Do(func() {
		dummy, _ = HashPassword("headwaters-timing-equaliser")
	})
	return dummy
}
