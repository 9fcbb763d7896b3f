package hydro

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/headwatersai/headwaters-backend/internal/geo"
	"github.com/headwatersai/headwaters-backend/internal/respcache"
	"github.com/headwatersai/headwaters-backend/internal/utils"
)

// boundedBBox parses the request's bounding box and enforces the
// maxBBoxDegrees limit. It writes the 400 itself and reports false.
func (h *Handler) boundedBBox(w http.ResponseWriter, r *http.Request) (geo.BBox, bool) {
	bbox, err := geo.ParseBBox(r.URL.Query())
	switch {
	case errors.Is(err, geo.ErrBBoxMissing):
		utils.WriteError(w, http.StatusBadRequest, "Bounding box (west, south, east, north) is required")
		return bbox, false
	case err != nil:
		utils.WriteError(w, http.StatusBadRequest, "Invalid bounding box coordinates")
		return bbox, false
	case !bbox.Within(maxBBoxDegrees):
		utils.WriteError(w, http.StatusBadRequest, "Bounding box too large. Maximum 2 degrees width and height.")
		return bbox, false
	}
	return bbox, true
}

// flowlinesKey normalizes the box so "-105" and "-105.0" share an entry.
func flowlinesKey(b geo.BBox) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return respcache.Key("flowlines", url.Values{
		"west":  {f(b.West)},
		"south": {f(b.South)},
		"east":  {f(b.East)},
		"north": {f(b.North)},
	})
}

// Flowlines handles GET /api/flowlines?west&south&east&north.
func (h *Handler) Flowlines(w http.ResponseWriter, r *http.Request) {
	bbox, ok := h.boundedBBox(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	key := flowlinesKey(bbox)

	if body, hit := h.cache.Get(ctx, key); hit {
		w.Header().Set("X-Cache", "HIT")
		utils.AddCacheHeaders(w, publicMaxAge)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
		return
	}

	start := time.Now()
	flowlines, err := h.usgs.Flowlines(ctx, bbox)
	if err != nil {
		h.fail(w, r, "Failed to fetch flowlines data", err)
		return
	}

	body, err := json.Marshal(map[string]any{
		"success":   true,
		"bounds":    bbox,
		"flowlines": flowlines,
	})
	if err != nil {
		h.fail(w, r, "Failed to fetch flowlines data", err)
		return
	}
	h.cache.Set(ctx, key, body, h.cacheTTL)

	w.Header().Set("X-Cache", "MISS")
	utils.AddServerTiming(w, utils.Timing{Name: "usgs", Dur: time.Since(start)})
	utils.AddCacheHeaders(w, publicMaxAge)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}
