package hydro

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/headwatersai/headwaters-backend/internal/epa"
	"github.com/headwatersai/headwaters-backend/internal/geo"
	"github.com/headwatersai/headwaters-backend/internal/utils"
	"golang.org/x/sync/errgroup"
)

type address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

type facilityResponse struct {
	RegistryID           string   `json:"registryId"`
	FacilityName         string   `json:"facilityName"`
	Latitude             float64  `json:"latitude"`
	Longitude            float64  `json:"longitude"`
	Address              address  `json:"address"`
	FacilityType         string   `json:"facilityType"`
	NAICSCodes           []string `json:"naicsCodes"`
	SICCodes             []string `json:"sicCodes"`
	NPDESPermitIDs       []string `json:"npdesPermitIds"`
	IsMajorDischarger    bool     `json:"isMajorDischarger"`
	ComplianceStatus     string   `json:"complianceStatus"`
	LastInspectionDate   *string  `json:"lastInspectionDate"`
	ViolationsLast3Years int      `json:"violationsLast3Years"`
}

func toFacilityResponse(f epa.Facility) facilityResponse {
	return facilityResponse{
		RegistryID:   f.RegistryID,
		FacilityName: f.FacilityName,
		Latitude:     f.Latitude,
		Longitude:    f.Longitude,
		Address: address{
			Street: f.StreetAddress,
			City:   f.City,
			State:  f.StateCode,
			Zip:    f.ZipCode,
		},
		FacilityType:         f.FacilityType,
		NAICSCodes:           f.NAICSCodes,
		SICCodes:             f.SICCodes,
		NPDESPermitIDs:       f.NPDESPermitIDs,
		IsMajorDischarger:    f.IsMajorDischarger,
		ComplianceStatus:     f.ComplianceStatus,
		LastInspectionDate:   f.LastInspectionDate,
		ViolationsLast3Years: f.ViolationsLast3Years,
	}
}

var huc8Pattern = regexp.MustCompile(`^\d{8}$`)

// Facilities handles GET /api/facilities?huc8, ?lat&lng[&radius],
// ?state[&filter=major|noncompliant] or ?west&south&east&north. The radius
// is in miles.
func (h *Handler) Facilities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	var (
		facilities []epa.Facility
		err        error
	)
	start := time.Now()
	switch {
	case q.Get("huc8") != "":
		facilities, err = h.epa.FacilitiesByHUC(ctx, q.Get("huc8"))
	case q.Get("lat") != "" && q.Get("lng") != "":
		lat, latOK := parseFloat(q.Get("lat"))
		lng, lngOK := parseFloat(q.Get("lng"))
		if !latOK || !lngOK {
			utils.WriteError(w, http.StatusBadRequest, "Invalid coordinates")
			return
		}
		radius := defaultRadiusMiles
		if s := q.Get("radius"); s != "" {
			v, ok := parseFloat(s)
			if !ok || v <= 0 {
				utils.WriteError(w, http.StatusBadRequest, "Invalid radius")
				return
			}
			radius = v
		}
		facilities, err = h.epa.FacilitiesByRadius(ctx, lat, lng, radius)
	case q.Has("state"):
		state, ok := geo.NormalizeState(q.Get("state"))
		if !ok {
			utils.WriteError(w, http.StatusBadRequest, "Invalid state code")
			return
		}
		switch q.Get("filter") {
		case "":
			facilities, err = h.epa.FacilitiesByState(ctx, state)
		case "major":
			facilities, err = h.epa.MajorDischargers(ctx, state)
		case "noncompliant":
			facilities, err = h.epa.NonCompliantFacilities(ctx, state)
		default:
			utils.WriteError(w, http.StatusBadRequest, "Invalid filter. Must be: major or noncompliant")
			return
		}
	default:
		bbox, perr := geo.ParseBBox(q)
		switch {
		case errors.Is(perr, geo.ErrBBoxInvalid):
			utils.WriteError(w, http.StatusBadRequest, "Invalid bounding box coordinates")
			return
		case perr != nil:
			utils.WriteError(w, http.StatusBadRequest, "Either huc8, lat/lng with optional radius, or bounding box is required")
			return
		}
		facilities, err = h.epa.FacilitiesByBBox(ctx, bbox)
	}
	if err != nil {
		h.fail(w, r, "Failed to fetch facility data", err)
		return
	}
	fetched := time.Since(start)

	start = time.Now()
	if err := h.store.UpsertFacilities(ctx, facilities); err != nil {
		h.fail(w, r, "Failed to fetch facility data", err)
		return
	}

	out := make([]facilityResponse, 0, len(facilities))
	for _, f := range facilities {
		out = append(out, toFacilityResponse(f))
	}

	utils.AddServerTiming(w, utils.Timing{Name: "epa", Dur: fetched}, utils.Timing{Name: "upsert", Dur: time.Since(start)})
	utils.AddCacheHeaders(w, publicMaxAge)
	utils.WriteJSON(w, map[string]any{
		"success":    true,
		"count":      len(out),
		"facilities": out,
	})
}

// FacilityDetail handles GET /api/facilities/{registryId}: the facility with
// its permits and effluent violations.
func (h *Handler) FacilityDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "registryId")
	ctx := r.Context()

	facility, err := h.epa.FacilityDetail(ctx, id)
	if err != nil {
		h.fail(w, r, "Failed to fetch facility data", err)
		return
	}
	if facility == nil {
		utils.WriteError(w, http.StatusNotFound, "Facility not found")
		return
	}

	var (
		permits    []epa.Permit
		violations []epa.Violation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		permits, err = h.epa.Permits(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		violations, err = h.epa.Violations(gctx, id, "", "")
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(w, r, "Failed to fetch facility data", err)
		return
	}

	if err := h.store.UpsertFacilities(ctx, []epa.Facility{*facility}); err != nil {
		h.fail(w, r, "Failed to fetch facility data", err)
		return
	}

	utils.WriteJSON(w, map[string]any{
		"success":    true,
		"facility":   toFacilityResponse(*facility),
		"permits":    permits,
		"violations": violations,
	})
}

// HUCViolations handles GET /api/facilities/violations?huc8[&start&end]:
// effluent violations for every facility in a HUC-8. Dates are YYYY-MM-DD.
func (h *Handler) HUCViolations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	huc8 := q.Get("huc8")
	if huc8 == "" {
		utils.WriteError(w, http.StatusBadRequest, "huc8 is required")
		return
	}
	if !huc8Pattern.MatchString(huc8) {
		utils.WriteError(w, http.StatusBadRequest, "Invalid HUC code")
		return
	}

	from, to, ok := echoDateRange(q.Get("start"), q.Get("end"))
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid date range")
		return
	}

	violations, err := h.epa.ViolationsByHUC(r.Context(), huc8, from, to)
	if err != nil {
		h.fail(w, r, "Failed to fetch violation data", err)
		return
	}

	utils.WriteJSON(w, map[string]any{
		"success":    true,
		"huc8":       huc8,
		"count":      len(violations),
		"violations": violations,
	})
}

// echoDateRange converts optional YYYY-MM-DD bounds to ECHO's MM/DD/YYYY.
func echoDateRange(start, end string) (from, to string, ok bool) {
	const echoLayout = "01/02/2006"
	var s, e time.Time
	if start != "" {
		t, err := time.Parse(dateLayout, start)
		if err != nil {
			return "", "", false
		}
		s, from = t, t.Format(echoLayout)
	}
	if end != "" {
		t, err := time.Parse(dateLayout, end)
		if err != nil {
			return "", "", false
		}
		e, to = t, t.Format(echoLayout)
	}
	if !s.IsZero() && !e.IsZero() && e.Before(s) {
		return "", "", false
	}
	return from, to, true
}

// WaterQuality handles GET /api/water-quality?west&south&east&north.
func (h *Handler) WaterQuality(w http.ResponseWriter, r *http.Request) {
	bbox, ok := h.boundedBBox(w, r)
	if !ok {
		return
	}

	results, err := h.epa.WaterQuality(r.Context(), bbox)
	if err != nil {
		h.fail(w, r, "Failed to fetch water quality data", err)
		return
	}

	utils.WriteJSON(w, map[string]any{
		"success": true,
		"bounds":  bbox,
		"count":   len(results),
		"results": results,
	})
}
