package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/headwatersai/headwaters-backend/internal/auth"
	"github.com/headwatersai/headwaters-backend/internal/billing"
	"github.com/headwatersai/headwaters-backend/internal/cache"
	"github.com/headwatersai/headwaters-backend/internal/config"
	"github.com/headwatersai/headwaters-backend/internal/db"
	"github.com/headwatersai/headwaters-backend/internal/epa"
	"github.com/headwatersai/headwaters-backend/internal/hydro"
	"github.com/headwatersai/headwaters-backend/internal/locations"
	"github.com/headwatersai/headwaters-backend/internal/middleware"
	"github.com/headwatersai/headwaters-backend/internal/noaa"
	"github.com/headwatersai/headwaters-backend/internal/observability"
	"github.com/headwatersai/headwaters-backend/internal/respcache"
	"github.com/headwatersai/headwaters-backend/internal/upstream"
	"github.com/headwatersai/headwaters-backend/internal/usgs"
	"github.com/headwatersai/headwaters-backend/internal/utils"
	"github.com/headwatersai/headwaters-backend/internal/weather"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := db.Connect(db.Options{DSN: cfg.DatabaseURL, Schema: cfg.DBSchema})
	if err != nil {
		return err
	}
	for _, initFn := range []func(*gorm.DB) error{auth.Init, locations.Init, cache.Init, billing.Init} {
		if err := initFn(d); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	newUpstream := func(provider string, headers map[string]string) *upstream.Client {
		return upstream.New(upstream.Options{
			Provider: provider,
			Timeout:  cfg.UpstreamTimeout,
			RPS:      cfg.UpstreamRPS,
			Headers:  headers,
			Logger:   logger,
			Metrics:  metrics,
		})
	}
	usgsClient := usgs.NewClient(newUpstream(usgs.Provider, nil))
	epaClient := epa.NewClient(newUpstream(epa.Provider, nil))
	noaaClient := noaa.NewClient(newUpstream(noaa.Provider, noaa.Headers(cfg.NOAAUserAgent)))

	var responses respcache.Cache = respcache.Noop{}
	var redis *respcache.Redis
	if cfg.RedisAddr != "" {
		redis = respcache.NewRedis(respcache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, metrics, logger)
		defer redis.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redis.Ping(pingCtx); err != nil {
			logger.Warn("redis unreachable, responses will not be cached until it recovers", "addr", cfg.RedisAddr, "error", err)
		}
		cancel()
		responses = redis
	}

	authSvc := auth.NewService(d, nil, logger)
	store := cache.NewStore(d, metrics, logger)

	hydroHandler := hydro.NewHandler(hydro.Options{
		USGS:     usgsClient,
		EPA:      epaClient,
		Store:    store,
		Cache:    responses,
		CacheTTL: cfg.ResponseCacheTTL,
		Logger:   logger,
	})
	weatherHandler := weather.NewHandler(weather.Options{
		NOAA:     noaaClient,
		Cache:    responses,
		CacheTTL: cfg.ResponseCacheTTL,
		Logger:   logger,
	})

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.Get("/", RootHandler)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, map[string]any{"status": "ok"})
	})
	r.Get("/readyz", readyHandler(d, redis))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Mount("/auth", auth.SetupRoutes(auth.NewHandler(authSvc, cfg.Production())))
		r.Mount("/locations", locations.SetupRoutes(locations.NewHandler(locations.NewService(d, nil)), authSvc))
		r.Mount("/webhooks", billing.SetupRoutes(billing.NewHandler(d, authSvc, cfg.BillingWebhookSecret, logger)))
		hydro.SetupRoutes(r, hydroHandler, authSvc)
		weather.SetupRoutes(r, weatherHandler, authSvc)
	})

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// readyHandler reports 503 until the database answers. Redis state is
// reported but does not change the status code.
func readyHandler(d *gorm.DB, redis *respcache.Redis) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]any{"database": "ok"}
		code := http.StatusOK

		sqlDB, err := d.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if redis != nil {
			status["redis"] = "ok"
			if err := redis.Ping(ctx); err != nil {
				status["redis"] = err.Error()
			}
		}
		utils.WriteJSONStatus(w, code, status)
	}
}
