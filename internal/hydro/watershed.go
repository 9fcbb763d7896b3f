package hydro

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/headwatersai/headwaters-backend/internal/geo"
	"github.com/headwatersai/headwaters-backend/internal/usgs"
	"github.com/headwatersai/headwaters-backend/internal/utils"
)

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type watershedResponse struct {
	HUC12          string          `json:"huc12"`
	HUC10          string          `json:"huc10"`
	HUC8           string          `json:"huc8"`
	HUC6           string          `json:"huc6"`
	HUC4           string          `json:"huc4"`
	HUC2           string          `json:"huc2"`
	Name           string          `json:"name"`
	AreaSqKm       float64         `json:"areaSqKm"`
	States         string          `json:"states"`
	Centroid       latLng          `json:"centroid"`
	Boundary       json.RawMessage `json:"boundary"`
	UpstreamHUC12s []string        `json:"upstreamHuc12s"`
}

// Watershed handles GET /api/watershed?lat&lng or ?huc12.
func (h *Handler) Watershed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	latStr, lngStr, huc12 := q.Get("lat"), q.Get("lng"), q.Get("huc12")

	if latStr == "" && lngStr == "" && huc12 == "" {
		utils.WriteError(w, http.StatusBadRequest, "Either lat/lng coordinates or huc12 code is required")
		return
	}

	ctx := r.Context()
	start := time.Now()
	var (
		ws  *usgs.Watershed
		err error
	)
	switch {
	case huc12 != "":
		ws, err = h.usgs.WatershedByHUC12(ctx, huc12)
		if errors.Is(err, usgs.ErrInvalidHUC) {
			utils.WriteError(w, http.StatusBadRequest, "Invalid HUC code")
			return
		}
	case latStr != "" && lngStr != "":
		lat, latOK := parseFloat(latStr)
		lng, lngOK := parseFloat(lngStr)
		if !latOK || !lngOK {
			utils.WriteError(w, http.StatusBadRequest, "Invalid coordinates")
			return
		}
		if !geo.ValidLatLng(lat, lng) {
			utils.WriteError(w, http.StatusBadRequest, "Coordinates out of range")
			return
		}
		ws, err = h.usgs.WatershedByPoint(ctx, lat, lng)
	}
	if err != nil {
		h.fail(w, r, "Failed to fetch watershed data", err)
		return
	}
	if ws == nil {
		utils.WriteError(w, http.StatusNotFound, "No watershed found for the given location")
		return
	}

	upstreamHUCs, err := h.usgs.UpstreamHUC12s(ctx, ws.HUC12)
	if err != nil {
		h.fail(w, r, "Failed to fetch watershed data", err)
		return
	}
	fetched := time.Since(start)

	start = time.Now()
	if err := h.store.UpsertWatershed(ctx, ws, upstreamHUCs); err != nil {
		h.fail(w, r, "Failed to fetch watershed data", err)
		return
	}

	utils.AddServerTiming(w, utils.Timing{Name: "usgs", Dur: fetched}, utils.Timing{Name: "upsert", Dur: time.Since(start)})
	utils.AddCacheHeaders(w, publicMaxAge)
	utils.WriteJSON(w, map[string]any{
		"success": true,
		"watershed": watershedResponse{
			HUC12:          ws.HUC12,
			HUC10:          ws.HUC10,
			HUC8:           ws.HUC8,
			HUC6:           ws.HUC6,
			HUC4:           ws.HUC4,
			HUC2:           ws.HUC2,
			Name:           ws.Name,
			AreaSqKm:       ws.AreaSqKm,
			States:         ws.States,
			Centroid:       latLng{Lat: ws.CentroidLat, Lng: ws.CentroidLng},
			Boundary:       ws.Boundary,
			UpstreamHUC12s: upstreamHUCs,
		},
	})
}
