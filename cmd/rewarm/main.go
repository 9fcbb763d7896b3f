// rewarm refreshes the watershed and facility cache for every saved
// location so the first lookup after a data refresh is not a cold fetch.
// With -stale it also re-fetches cached watersheds older than that age.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/headwatersai/headwaters-backend/internal/cache"
	"github.com/headwatersai/headwaters-backend/internal/config"
	"github.com/headwatersai/headwaters-backend/internal/db"
	"github.com/headwatersai/headwaters-backend/internal/epa"
	"github.com/headwatersai/headwaters-backend/internal/hydro"
	"github.com/headwatersai/headwaters-backend/internal/locations"
	"github.com/headwatersai/headwaters-backend/internal/observability"
	"github.com/headwatersai/headwaters-backend/internal/upstream"
	"github.com/headwatersai/headwaters-backend/internal/usgs"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

var (
	limit       = flag.Int("limit", 0, "max saved locations to process (0 = all)")
	concurrency = flag.Int("concurrency", 4, "points refreshed in parallel")
	dryRun      = flag.Bool("dry-run", false, "list the points without fetching")
	stale       = flag.Duration("stale", 0, "also refresh watersheds cached longer ago than this (0 = off)")
)

type point struct{ lat, lng float64 }

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatalf("config: %v", err)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	d, err := db.Connect(db.Options{DSN: cfg.DatabaseURL, Schema: cfg.DBSchema})
	if err != nil {
		fatalf("%v", err)
	}
	if err := cache.Init(d); err != nil {
		fatalf("%v", err)
	}

	saved, err := locations.NewService(d, nil).All(ctx, *limit)
	if err != nil {
		fatalf("load saved locations: %v", err)
	}

	// Several users often save the same spot.
	seen := map[point]bool{}
	var points []point
	for _, l := range saved {
		p := point{l.Latitude, l.Longitude}
		if !seen[p] {
			seen[p] = true
			points = append(points, p)
		}
	}
	fmt.Printf("%d saved locations, %d distinct points\n", len(saved), len(points))

	if *dryRun {
		for _, p := range points {
			fmt.Printf("  %.5f,%.5f\n", p.lat, p.lng)
		}
		return
	}

	newUpstream := func(provider string) *upstream.Client {
		return upstream.New(upstream.Options{
			Provider: provider,
			Timeout:  cfg.UpstreamTimeout,
			RPS:      cfg.UpstreamRPS,
			Logger:   logger,
		})
	}
	store := cache.NewStore(d, nil, logger)
	h := hydro.NewHandler(hydro.Options{
		USGS:   usgs.NewClient(newUpstream(usgs.Provider)),
		EPA:    epa.NewClient(newUpstream(epa.Provider)),
		Store:  store,
		Logger: logger,
	})

	var failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*concurrency, 1))
	for _, p := range points {
		g.Go(func() error {
			res, err := h.Warm(gctx, p.lat, p.lng)
			if err != nil {
				failed.Add(1)
				logger.Warn("rewarm failed", "lat", p.lat, "lng", p.lng, "error", err)
				return nil
			}
			fmt.Printf("✓ %.5f,%.5f huc12=%s upstream=%d facilities=%d\n", p.lat, p.lng, res.HUC12, res.Upstream, res.Facilities)
			return nil
		})
	}
	_ = g.Wait()
	total := len(points)

	if *stale > 0 {
		// Runs after the points so watersheds they just refreshed are skipped.
		old, err := store.StaleWatersheds(ctx, time.Now().Add(-*stale), *limit)
		if err != nil {
			fatalf("load stale watersheds: %v", err)
		}
		fmt.Printf("\n%d watersheds cached more than %s ago\n", len(old), *stale)
		total += len(old)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(*concurrency, 1))
		for _, ws := range old {
			g.Go(func() error {
				found, err := h.WarmWatershed(gctx, ws.HUC12)
				switch {
				case err != nil:
					failed.Add(1)
					logger.Warn("rewarm failed", "huc12", ws.HUC12, "error", err)
				case !found:
					fmt.Printf("- huc12=%s no longer published\n", ws.HUC12)
				default:
					fmt.Printf("✓ huc12=%s\n", ws.HUC12)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	fmt.Printf("\nDone. %d refreshed, %d failed.\n", total-int(failed.Load()), failed.Load())
	if failed.Load() > 0 {
		os.Exit(1)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "rewarm: "+format+"\n", args...)
	os.Exit(1)
}
