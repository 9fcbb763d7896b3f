package utils

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidSession marks a missing or expired session. Validators wrap it so
// callers can tell "log in again" apart from a storage failure.
var ErrInvalidSession = errors.New("invalid session")

type contextKey string

const ContextAuthKey contextKey = "auth"

// SessionUser is the slice of the account the HTTP layer needs once a
// session has been validated.
type SessionUser struct {
	ID               string
	Email            string
	FullName         *string
	SubscriptionTier string
	CreatedAt        time.Time
}

// AuthContext is the validated session carried on a request context.
type AuthContext struct {
	SessionID string
	ExpiresAt time.Time
	User      SessionUser
}

func WithAuth(ctx context.Context, a AuthContext) context.Context {
	return context.WithValue(ctx, ContextAuthKey, a)
}

func GetAuthFromContext(ctx context.Context) (AuthContext, bool) {
	a, ok := ctx.Value(ContextAuthKey).(AuthContext)
	return a, ok
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	a, ok := GetAuthFromContext(ctx)
	if !ok || a.User.ID == "" {
		return "", false
	}
	return a.User.ID, true
}
