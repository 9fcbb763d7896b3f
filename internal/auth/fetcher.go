package auth

import (
	"context"

	"github.com/headwatersai/headwaters-backend/internal/utils"
)

// Authenticate adapts ValidateSession to middleware.SessionValidator.
func (s *Service) Authenticate(ctx context.Context, sessionID string) (utils.AuthContext, error) {
	user, session, err := s.ValidateSession(ctx, sessionID)
	if err != nil {
		return utils.AuthContext{}, err
	}
	return utils.AuthContext{
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
		User: utils.SessionUser{
			ID:               user.ID,
			Email:            user.Email,
			FullName:         user.FullName,
			SubscriptionTier: string(user.SubscriptionTier),
			CreatedAt:        user.CreatedAt,
		},
	}, nil
}
