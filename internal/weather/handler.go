// Package weather serves NOAA forecasts, alerts, precipitation and station
// observations for points inside the continental United States.
package weather

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/headwatersai/headwaters-backend/internal/geo"
	"github.com/headwatersai/headwaters-backend/internal/noaa"
	"github.com/headwatersai/headwaters-backend/internal/respcache"
	"github.com/headwatersai/headwaters-backend/internal/utils"
	"golang.org/x/sync/errgroup"
)

const (
	TypeForecast      = "forecast"
	TypeHourly        = "hourly"
	TypeAlerts        = "alerts"
	TypePrecipitation = "precipitation"
	TypeObservations  = "observations"
	TypeAll           = "all"
)

var validTypes = map[string]bool{
	TypeForecast:      true,
	TypeHourly:        true,
	TypeAlerts:        true,
	TypePrecipitation: true,
	TypeObservations:  true,
	TypeAll:           true,
}

type Options struct {
	NOAA *noaa.Client

	// Cache holds rendered responses. Nil disables it.
	Cache    respcache.Cache
	CacheTTL time.Duration

	Logger *slog.Logger
}

type Handler struct {
	noaa     *noaa.Client
	cache    respcache.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

func NewHandler(opts Options) *Handler {
	h := &Handler{
		noaa:     opts.NOAA,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   opts.Logger,
	}
	if h.cache == nil {
		h.cache = respcache.Noop{}
	}
	if h.cacheTTL <= 0 {
		h.cacheTTL = 10 * time.Minute
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.logger = h.logger.With("component", "weather")
	return h
}

type location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// Weather handles GET /api/weather?lat&lng&type[&radius].
func (h *Handler) Weather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("lat") == "" || q.Get("lng") == "" {
		utils.WriteError(w, http.StatusBadRequest, "Latitude and longitude are required")
		return
	}
	lat, latOK := parseFloat(q.Get("lat"))
	lng, lngOK := parseFloat(q.Get("lng"))
	if !latOK || !lngOK {
		utils.WriteError(w, http.StatusBadRequest, "Invalid coordinates")
		return
	}
	if !geo.InContinentalUS(lat, lng) {
		utils.WriteError(w, http.StatusBadRequest, "Coordinates must be within the continental United States")
		return
	}

	kind := q.Get("type")
	if kind == "" {
		kind = TypeForecast
	}
	if !validTypes[kind] {
		utils.WriteError(w, http.StatusBadRequest, "Invalid type. Must be: forecast, hourly, alerts, precipitation, observations, or all")
		return
	}

	radiusKm := noaa.DefaultRadiusKm
	if kind == TypeObservations && q.Get("radius") != "" {
		v, ok := parseFloat(q.Get("radius"))
		if !ok || v <= 0 {
			utils.WriteError(w, http.StatusBadRequest, "Invalid radius")
			return
		}
		radiusKm = v
	}

	ctx := r.Context()
	keyParams := url.Values{
		"lat":  {formatFloat(lat)},
		"lng":  {formatFloat(lng)},
		"type": {kind},
	}
	if kind == TypeObservations {
		keyParams.Set("radius", formatFloat(radiusKm))
	}
	key := respcache.Key("weather", keyParams)
	if body, hit := h.cache.Get(ctx, key); hit {
		w.Header().Set("X-Cache", "HIT")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
		return
	}

	start := time.Now()
	resp, err := h.fetch(r, kind, lat, lng, radiusKm)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to fetch weather data", "type", kind, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "Failed to fetch weather data")
		return
	}
	resp["success"] = true
	resp["type"] = kind
	resp["location"] = location{Lat: lat, Lng: lng}

	body, err := json.Marshal(resp)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to encode weather data", "type", kind, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "Failed to fetch weather data")
		return
	}
	h.cache.Set(ctx, key, body, h.cacheTTL)

	w.Header().Set("X-Cache", "MISS")
	utils.AddServerTiming(w, utils.Timing{Name: "noaa", Dur: time.Since(start)})
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (h *Handler) fetch(r *http.Request, kind string, lat, lng, radiusKm float64) (map[string]any, error) {
	ctx := r.Context()
	switch kind {
	case TypeForecast, TypeHourly:
		get := h.noaa.Forecast
		if kind == TypeHourly {
			get = h.noaa.HourlyForecast
		}
		fc, err := get(ctx, lat, lng)
		if err != nil {
			return nil, err
		}
		return map[string]any{"forecast": fc}, nil

	case TypeAlerts:
		alerts, err := h.noaa.Alerts(ctx, lat, lng)
		if err != nil {
			return nil, err
		}
		return map[string]any{"alertCount": len(alerts), "alerts": alerts}, nil

	case TypePrecipitation:
		precip, err := h.noaa.PrecipitationForecast(ctx, lat, lng)
		if err != nil {
			return nil, err
		}
		return map[string]any{"precipitationForecast": precip}, nil

	case TypeObservations:
		obs, err := h.noaa.ObservationsForArea(ctx, lat, lng, radiusKm)
		if err != nil {
			return nil, err
		}
		return map[string]any{"radiusKm": radiusKm, "stationCount": len(obs), "observations": obs}, nil
	}

	// all: any failure fails the whole response.
	var (
		forecast, hourly *noaa.Forecast
		alerts           []noaa.Alert
		precip           []noaa.HourlyPrecipitation
		obs              []noaa.Observation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		forecast, err = h.noaa.Forecast(gctx, lat, lng)
		return err
	})
	g.Go(func() (err error) {
		hourly, err = h.noaa.HourlyForecast(gctx, lat, lng)
		return err
	})
	g.Go(func() (err error) {
		alerts, err = h.noaa.Alerts(gctx, lat, lng)
		return err
	})
	g.Go(func() (err error) {
		precip, err = h.noaa.PrecipitationForecast(gctx, lat, lng)
		return err
	})
	g.Go(func() (err error) {
		obs, err = h.noaa.ObservationsForArea(gctx, lat, lng, noaa.DefaultRadiusKm)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return map[string]any{
		"forecast":              forecast,
		"hourlyForecast":        hourly,
		"alerts":                alerts,
		"precipitationForecast": precip,
		"observations":          obs,
	}, nil
}

// FloodAlerts handles GET /api/alerts/flood?state=XX. Without a state it
// returns every active flood alert in the country.
func (h *Handler) FloodAlerts(w http.ResponseWriter, r *http.Request) {
	state, ok := geo.NormalizeState(r.URL.Query().Get("state"))
	if state != "" && !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid state code")
		return
	}

	alerts, err := h.noaa.FloodAlerts(r.Context(), state)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to fetch flood alerts", "state", state, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "Failed to fetch flood alerts")
		return
	}

	utils.WriteJSON(w, map[string]any{
		"success":    true,
		"state":      state,
		"alertCount": len(alerts),
		"alerts":     alerts,
	})
}

// StateAlerts handles GET /api/alerts?state=XX, every active NWS alert for
// one state.
func (h *Handler) StateAlerts(w http.ResponseWriter, r *http.Request) {
	state, ok := geo.NormalizeState(r.URL.Query().Get("state"))
	if state == "" {
		utils.WriteError(w, http.StatusBadRequest, "State code is required")
		return
	}
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid state code")
		return
	}

	alerts, err := h.noaa.AlertsByState(r.Context(), state)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to fetch alerts", "state", state, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "Failed to fetch alerts")
		return
	}

	utils.WriteJSON(w, map[string]any{
		"success":    true,
		"state":      state,
		"alertCount": len(alerts),
		"alerts":     alerts,
	})
}
