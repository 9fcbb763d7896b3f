package hydro

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/headwatersai/headwaters-backend/internal/geo"
	"github.com/headwatersai/headwaters-backend/internal/usgs"
	"github.com/headwatersai/headwaters-backend/internal/utils"
)

type latestReading struct {
	Timestamp        string   `json:"timestamp"`
	DischargeCfs     *float64 `json:"dischargeCfs"`
	GageHeightFt     *float64 `json:"gageHeightFt"`
	WaterTempCelsius *float64 `json:"waterTempCelsius"`
}

type gaugeResponse struct {
	SiteID           string         `json:"siteId"`
	SiteName         string         `json:"siteName"`
	Latitude         float64        `json:"latitude"`
	Longitude        float64        `json:"longitude"`
	StateCode        string         `json:"stateCode"`
	County           string         `json:"county"`
	DrainageAreaSqMi *float64       `json:"drainageAreaSqMi"`
	DatumElevationFt *float64       `json:"datumElevationFt"`
	SiteType         string         `json:"siteType"`
	LatestReading    *latestReading `json:"latestReading"`
}

// Gauges handles GET /api/gauges?huc, ?state or ?west&south&east&north, with
// readings=true adding each site's latest instantaneous values. Sites past
// the live-reading cap get their newest cached reading instead.
func (h *Handler) Gauges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	var (
		gauges []usgs.Gauge
		err    error
	)
	start := time.Now()
	if huc := q.Get("huc"); huc != "" {
		gauges, err = h.usgs.GaugesByHUC(ctx, huc)
		if errors.Is(err, usgs.ErrInvalidHUC) {
			utils.WriteError(w, http.StatusBadRequest, "Invalid HUC code")
			return
		}
	} else if q.Has("state") {
		state, ok := geo.NormalizeState(q.Get("state"))
		if !ok {
			utils.WriteError(w, http.StatusBadRequest, "Invalid state code")
			return
		}
		gauges, err = h.usgs.GaugesByState(ctx, state)
	} else {
		bbox, perr := geo.ParseBBox(q)
		switch {
		case errors.Is(perr, geo.ErrBBoxInvalid):
			utils.WriteError(w, http.StatusBadRequest, "Invalid bounding box coordinates")
			return
		case perr != nil:
			utils.WriteError(w, http.StatusBadRequest, "Either huc code or bounding box (west, south, east, north) is required")
			return
		}
		gauges, err = h.usgs.GaugesByBBox(ctx, bbox)
	}
	if err != nil {
		h.fail(w, r, "Failed to fetch gauge data", err)
		return
	}
	fetched := time.Since(start)

	start = time.Now()
	if err := h.store.UpsertGauges(ctx, gauges); err != nil {
		h.fail(w, r, "Failed to fetch gauge data", err)
		return
	}

	latest := map[string]*latestReading{}
	if q.Get("readings") == "true" && len(gauges) > 0 {
		sites := make([]string, 0, min(len(gauges), maxReadingSites))
		for _, g := range gauges[:min(len(gauges), maxReadingSites)] {
			sites = append(sites, g.SiteID)
		}
		readings, err := h.usgs.InstantaneousValues(ctx, sites)
		if err != nil {
			h.fail(w, r, "Failed to fetch gauge data", err)
			return
		}
		// Readings arrive oldest first, so the last one per site wins.
		for _, rd := range readings {
			latest[rd.SiteID] = &latestReading{
				Timestamp:        rd.Timestamp,
				DischargeCfs:     rd.DischargeCfs,
				GageHeightFt:     rd.GageHeightFt,
				WaterTempCelsius: rd.WaterTempCelsius,
			}
		}
		if err := h.store.UpsertReadings(ctx, readings); err != nil {
			h.fail(w, r, "Failed to fetch gauge data", err)
			return
		}

		if len(gauges) > maxReadingSites {
			rest := make([]string, 0, len(gauges)-maxReadingSites)
			for _, g := range gauges[maxReadingSites:] {
				rest = append(rest, g.SiteID)
			}
			cached, err := h.store.LatestReadings(ctx, rest)
			if err != nil {
				h.fail(w, r, "Failed to fetch gauge data", err)
				return
			}
			for id, rd := range cached {
				latest[id] = &latestReading{
					Timestamp:        rd.Timestamp,
					DischargeCfs:     rd.DischargeCfs,
					GageHeightFt:     rd.GageHeightFt,
					WaterTempCelsius: rd.WaterTempCelsius,
				}
			}
		}
	}

	out := make([]gaugeResponse, 0, len(gauges))
	for _, g := range gauges {
		out = append(out, gaugeResponse{
			SiteID:           g.SiteID,
			SiteName:         g.SiteName,
			Latitude:         g.Latitude,
			Longitude:        g.Longitude,
			StateCode:        g.StateCode,
			County:           g.CountyName,
			DrainageAreaSqMi: g.DrainageAreaSqMi,
			DatumElevationFt: g.DatumElevationFt,
			SiteType:         g.SiteType,
			LatestReading:    latest[g.SiteID],
		})
	}

	utils.AddServerTiming(w, utils.Timing{Name: "usgs", Dur: fetched}, utils.Timing{Name: "upsert", Dur: time.Since(start)})
	utils.AddCacheHeaders(w, publicMaxAge)
	utils.WriteJSON(w, map[string]any{
		"success": true,
		"count":   len(out),
		"gauges":  out,
	})
}

const dateLayout = "2006-01-02"

// GaugeHistory handles GET /api/gauges/{siteId}/history?start&end with
// daily mean values between the two dates.
func (h *Handler) GaugeHistory(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteId")
	startDate, endDate := r.URL.Query().Get("start"), r.URL.Query().Get("end")

	if startDate == "" || endDate == "" {
		utils.WriteError(w, http.StatusBadRequest, "start and end dates (YYYY-MM-DD) are required")
		return
	}
	from, err1 := time.Parse(dateLayout, startDate)
	to, err2 := time.Parse(dateLayout, endDate)
	if err1 != nil || err2 != nil || to.Before(from) {
		utils.WriteError(w, http.StatusBadRequest, "Invalid date range")
		return
	}

	readings, err := h.usgs.DailyValues(r.Context(), []string{siteID}, startDate, endDate)
	if err != nil {
		h.fail(w, r, "Failed to fetch gauge history", err)
		return
	}
	if readings == nil {
		readings = []usgs.Reading{}
	}

	utils.WriteJSON(w, map[string]any{
		"success":  true,
		"siteId":   siteID,
		"start":    startDate,
		"end":      endDate,
		"count":    len(readings),
		"readings": readings,
	})
}
