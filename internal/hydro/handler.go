// Package hydro serves the watershed, stream gauge, EPA facility and
// flowline endpoints. Each request fetches from the upstream APIs, mirrors
// the records into the cache tables and returns the normalized JSON.
package hydro

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/headwatersai/headwaters-backend/internal/cache"
	"github.com/headwatersai/headwaters-backend/internal/epa"
	"github.com/headwatersai/headwaters-backend/internal/respcache"
	"github.com/headwatersai/headwaters-backend/internal/usgs"
	"github.com/headwatersai/headwaters-backend/internal/utils"
)

const (
	// publicMaxAge is the Cache-Control max-age on public lookups.
	publicMaxAge = 300

	// maxBBoxDegrees bounds flowline and water-quality boxes.
	maxBBoxDegrees = 2.0

	// maxReadingSites caps the sites sent in one IV request.
	maxReadingSites = 100

	defaultRadiusMiles = 25.0
)

type Options struct {
	USGS  *usgs.Client
	EPA   *epa.Client
	Store *cache.Store

	// Cache holds rendered flowline responses. Nil disables it.
	Cache    respcache.Cache
	CacheTTL time.Duration

	Logger *slog.Logger
}

type Handler struct {
	usgs     *usgs.Client
	epa      *epa.Client
	store    *cache.Store
	cache    respcache.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

func NewHandler(opts Options) *Handler {
	h := &Handler{
		usgs:     opts.USGS,
		epa:      opts.EPA,
		store:    opts.Store,
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
	h.logger = h.logger.With("component", "hydro")
	return h
}

// fail logs err and writes a generic 500 with msg.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg, "path", r.URL.Path, "error", err)
	utils.WriteError(w, http.StatusInternalServerError, msg)
}

// parseFloat parses a query value, rejecting NaN and infinities.
func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
