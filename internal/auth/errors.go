package auth

import (
	"errors"
	"fmt"

	"github.com/headwatersai/headwaters-backend/internal/utils"
)

// The text of these errors is shown to the client as-is.
var (
	ErrEmailTaken         = errors.New("Email already registered")
	ErrInvalidCredentials = errors.New("Invalid email or password")
	ErrUserNotFound       = errors.New("User not found")
	ErrWrongPassword      = errors.New("Current password is incorrect")
	ErrEmailInUse         = errors.New("Email already in use")
	ErrInvalidTier        = errors.New("Invalid subscription tier")
)

var (
	ErrSessionNotFound = fmt.Errorf("session not found: %w", utils.ErrInvalidSession)
	ErrSessionExpired  = fmt.Errorf("session expired: %w", utils.ErrInvalidSession)
)
