package hydro

import (
	"github.com/go-chi/chi/v5"
	"github.com/headwatersai/headwaters-backend/internal/middleware"
	"github.com/headwatersai/headwaters-backend/internal/tiers"
)

// SetupRoutes registers the hydrology endpoints on r, which is expected to
// be the /api subrouter.
func SetupRoutes(r chi.Router, h *Handler, sessions middleware.SessionValidator) {
	// Public routes
	r.Get("/watershed", h.Watershed)
	r.Get("/gauges", h.Gauges)
	r.Get("/facilities", h.Facilities)
	r.Get("/flowlines", h.Flowlines)

	// Tier-gated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessions))

		r.With(middleware.RequireFeature(tiers.RealtimeData)).
			Get("/gauges/{siteId}/history", h.GaugeHistory)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireFeature(tiers.WaterQuality))
			r.Get("/facilities/violations", h.HUCViolations)
			r.Get("/facilities/{registryId}", h.FacilityDetail)
			r.Get("/water-quality", h.WaterQuality)
		})
	})
}
