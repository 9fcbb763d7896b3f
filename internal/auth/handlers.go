package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/headwatersai/headwaters-backend/internal/middleware"
	"github.com/headwatersai/headwaters-backend/internal/utils"
)

const minPasswordLength = 8

type Handler struct {
	svc           *Service
	secureCookies bool
}

// NewHandler builds the auth HTTP handlers. secureCookies should be true in production.
func NewHandler(svc *Service, secureCookies bool) *Handler {
	return &Handler{svc: svc, secureCookies: secureCookies}
}

type userResponse struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	FullName         *string    `json:"fullName"`
	SubscriptionTier string     `json:"subscriptionTier"`
	CreatedAt        *time.Time `json:"createdAt,omitempty"`
}

func toUserResponse(u *User, withCreated bool) userResponse {
	resp := userResponse{
		ID:               u.ID,
		Email:            u.Email,
		FullName:         u.FullName,
		SubscriptionTier: string(u.SubscriptionTier),
	}
	if withCreated {
		created := u.CreatedAt
		resp.CreatedAt = &created
	}
	return resp
}

type credentials struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"fullName"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(body.Email) == "" || body.Password == "" {
		utils.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	if passwordLength(body.Password) < minPasswordLength {
		utils.WriteError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}
	if !ValidEmail(strings.TrimSpace(body.Email)) {
		utils.WriteError(w, http.StatusBadRequest, "Invalid email format")
		return
	}

	user, session, err := h.svc.Register(r.Context(), body.Email, body.Password, body.FullName)
	if errors.Is(err, ErrEmailTaken) {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "registration failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.setSessionCookie(w, session)
	utils.WriteJSON(w, map[string]any{
		"success": true,
		"user":    toUserResponse(user, false),
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(body.Email) == "" || body.Password == "" {
		utils.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, session, err := h.svc.Login(r.Context(), body.Email, body.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		utils.WriteError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "login failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.setSessionCookie(w, session)
	utils.WriteJSON(w, map[string]any{
		"success": true,
		"user":    toUserResponse(user, false),
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.svc.Logout(r.Context(), cookie.Value); err != nil {
			slog.ErrorContext(r.Context(), "logout failed", "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	}

	h.clearSessionCookie(w)
	utils.WriteJSON(w, map[string]any{"success": true})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		utils.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	user, _, err := h.svc.ValidateSession(r.Context(), cookie.Value)
	if errors.Is(err, utils.ErrInvalidSession) {
		h.clearSessionCookie(w)
		utils.WriteError(w, http.StatusUnauthorized, "Session expired")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "auth check failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	utils.WriteJSON(w, map[string]any{
		"success": true,
		"user":    toUserResponse(user, true),
	})
}

type profileRequest struct {
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var body profileRequest
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Email != nil && !ValidEmail(strings.TrimSpace(*body.Email)) {
		utils.WriteError(w, http.StatusBadRequest, "Invalid email format")
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), userID, ProfileUpdate{FullName: body.FullName, Email: body.Email})
	switch {
	case errors.Is(err, ErrEmailInUse):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrUserNotFound):
		utils.WriteError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "profile update failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	utils.WriteJSON(w, map[string]any{
		"success": true,
		"user":    toUserResponse(user, true),
	})
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword signs the user out everywhere on success, including this
// browser, so the cookie is cleared as well.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var body passwordRequest
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.CurrentPassword == "" || body.NewPassword == "" {
		utils.WriteError(w, http.StatusBadRequest, "Current and new password are required")
		return
	}
	if passwordLength(body.NewPassword) < minPasswordLength {
		utils.WriteError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	err := h.svc.ChangePassword(r.Context(), userID, body.CurrentPassword, body.NewPassword)
	switch {
	case errors.Is(err, ErrWrongPassword):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrUserNotFound):
		utils.WriteError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "password change failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}

	h.clearSessionCookie(w)
	utils.WriteJSON(w, map[string]any{
		"success": true,
		"message": "Password updated. Please log in again.",
	})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, s *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    s.ID,
		Path:     "/",
		MaxAge:   int(SessionDuration / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
