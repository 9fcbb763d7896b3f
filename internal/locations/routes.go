package locations

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/headwatersai/headwaters-backend/internal/middleware"
)

// SetupRoutes mounts the saved-location endpoints. Every route needs a session.
func SetupRoutes(h *Handler, sessions middleware.SessionValidator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.SessionMiddleware(sessions))

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Delete("/", h.Delete)

	return r
}
