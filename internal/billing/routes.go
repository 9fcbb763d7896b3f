package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()

	// Public routes; requests are authenticated by signature.
	r.Post("/billing", h.Webhook)

	return r
}
