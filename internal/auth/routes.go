package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/headwatersai/headwaters-backend/internal/middleware"
)

func SetupRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Get("/me", h.Me)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(h.svc))
		r.Patch("/profile", h.UpdateProfile)
		r.Post("/password", h.ChangePassword)
	})

	return r
}
