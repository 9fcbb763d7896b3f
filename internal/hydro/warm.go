package hydro

import (
	"context"
	"fmt"
)

// WarmResult summarizes one point refreshed by Warm.
type WarmResult struct {
	HUC12      string
	Upstream   int
	Facilities int
}

// Warm refreshes the cached watershed and nearby facilities for a point,
// the same records a watershed and facility lookup would store. A point
// outside every HUC-12 still refreshes its facilities.
func (h *Handler) Warm(ctx context.Context, lat, lng float64) (WarmResult, error) {
	var res WarmResult

	ws, err := h.usgs.WatershedByPoint(ctx, lat, lng)
	if err != nil {
		return res, fmt.Errorf("watershed: %w", err)
	}
	if ws != nil {
		upstreamHUCs, err := h.usgs.UpstreamHUC12s(ctx, ws.HUC12)
		if err != nil {
			return res, fmt.Errorf("upstream hucs: %w", err)
		}
		if err := h.store.UpsertWatershed(ctx, ws, upstreamHUCs); err != nil {
			return res, err
		}
		res.HUC12 = ws.HUC12
		res.Upstream = len(upstreamHUCs)
	}

	facilities, err := h.epa.FacilitiesByRadius(ctx, lat, lng, defaultRadiusMiles)
	if err != nil {
		return res, fmt.Errorf("facilities: %w", err)
	}
	if err := h.store.UpsertFacilities(ctx, facilities); err != nil {
		return res, err
	}
	res.Facilities = len(facilities)
	return res, nil
}

// WarmWatershed re-fetches one cached HUC-12 and its upstream list. It
// returns false when the National Map no longer has the unit.
func (h *Handler) WarmWatershed(ctx context.Context, huc12 string) (bool, error) {
	ws, err := h.usgs.WatershedByHUC12(ctx, huc12)
	if err != nil {
		return false, fmt.Errorf("watershed %s: %w", huc12, err)
	}
	if ws == nil {
		return false, nil
	}
	upstreamHUCs, err := h.usgs.UpstreamHUC12s(ctx, ws.HUC12)
	if err != nil {
		return false, fmt.Errorf("upstream hucs: %w", err)
	}
	if err := h.store.UpsertWatershed(ctx, ws, upstreamHUCs); err != nil {
		return false, err
	}
	return true, nil
}
