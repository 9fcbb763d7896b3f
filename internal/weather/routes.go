package weather

import (
	"github.com/go-chi/chi/v5"
	"github.com/headwatersai/headwaters-backend/internal/middleware"
	"github.com/headwatersai/headwaters-backend/internal/tiers"
)

// SetupRoutes registers the weather endpoints on the /api subrouter.
func SetupRoutes(r chi.Router, h *Handler, sessions middleware.SessionValidator) {
	r.Get("/weather", h.Weather)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessions))
		r.Use(middleware.RequireFeature(tiers.Alerts))
		r.Get("/alerts", h.StateAlerts)
		r.Get("/alerts/flood", h.FloodAlerts)
	})
}
