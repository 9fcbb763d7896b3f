package locations

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/headwatersai/headwaters-backend/internal/geo"
	"github.com/headwatersai/headwaters-backend/internal/tiers"
	"github.com/headwatersai/headwaters-backend/internal/utils"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	locs, err := h.svc.List(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "list locations failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "Failed to fetch locations")
		return
	}

	utils.WriteJSON(w, map[string]any{
		"success":   true,
		"count":     len(locs),
		"locations": locs,
	})
}

// createRequest keeps the coordinates untyped so a string "40.1" can be
// told apart from a missing field.
type createRequest struct {
	Name           string `json:"name"`
	Latitude       any    `json:"latitude"`
	Longitude      any    `json:"longitude"`
	WatershedHUC12 string `json:"watershedHuc12"`
	Address        string `json:"address"`
	Notes          string `json:"notes"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	auth, ok := utils.GetAuthFromContext(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var body createRequest
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Name == "" || body.Latitude == nil || body.Longitude == nil {
		utils.WriteError(w, http.StatusBadRequest, "Name, latitude, and longitude are required")
		return
	}
	lat, latOK := body.Latitude.(float64)
	lng, lngOK := body.Longitude.(float64)
	if !latOK || !lngOK {
		utils.WriteError(w, http.StatusBadRequest, "Latitude and longitude must be numbers")
		return
	}
	if !geo.ValidLatLng(lat, lng) {
		utils.WriteError(w, http.StatusBadRequest, "Coordinates out of range")
		return
	}

	loc, err := h.svc.Create(r.Context(), auth.User.ID, tiers.Tier(auth.User.SubscriptionTier), NewLocation{
		Name:           body.Name,
		Latitude:       lat,
		Longitude:      lng,
		WatershedHUC12: body.WatershedHUC12,
		Address:        body.Address,
		Notes:          body.Notes,
	})
	var limitErr *LimitError
	if errors.As(err, &limitErr) {
		utils.WriteError(w, http.StatusForbidden, limitErr.Error())
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "save location failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "Failed to save location")
		return
	}

	utils.WriteJSON(w, map[string]any{
		"success":  true,
		"location": loc,
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		utils.WriteError(w, http.StatusBadRequest, "Location ID is required")
		return
	}

	err := h.svc.Delete(r.Context(), userID, id)
	if errors.Is(err, ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "delete location failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "Failed to delete location")
		return
	}

	utils.WriteJSON(w, map[string]any{
		"success": true,
		"message": "Location deleted",
	})
}
