package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/headwatersai/headwaters-backend/internal/observability"
	"github.com/headwatersai/headwaters-backend/internal/tiers"
	"github.com/headwatersai/headwaters-backend/internal/utils"
)

const SessionCookieName = "session_id"

// SessionValidator resolves a session cookie value to an authenticated
// context. Errors wrapping utils.ErrInvalidSession mean "not logged in";
// anything else is a server fault.
type SessionValidator interface {
	Authenticate(ctx context.Context, sessionID string) (utils.AuthContext, error)
}

// SessionMiddleware validates the session cookie and threads the result
// through the request context for downstream handlers.
func SessionMiddleware(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			auth, err := validator.Authenticate(r.Context(), cookie.Value)
			if err != nil {
				if errors.Is(err, utils.ErrInvalidSession) {
					utils.WriteError(w, http.StatusUnauthorized, "Invalid session")
					return
				}
				slog.ErrorContext(r.Context(), "session validation failed", "error", err)
				utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.WithAuth(r.Context(), auth)))
		})
	}
}

// RequireFeature rejects users whose tier does not unlock feature. It must
// run after SessionMiddleware.
func RequireFeature(feature tiers.Feature) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, ok := utils.GetAuthFromContext(r.Context())
			if !ok {
				utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !tiers.Tier(auth.User.SubscriptionTier).Allows(feature) {
				utils.WriteError(w, http.StatusForbidden, "Your plan does not include "+string(feature))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware echoes the Origin back only when it is on the allow-list.
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods",
					"GET, POST, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers",
					"Content-Type, Authorization")
			}

			w.Header().Set("Access-Control-Expose-Headers", "Server-Timing, Cache-Control")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Metrics records request counts and latency keyed by the chi route pattern,
// so /api/facilities/{registryId} is one series rather than one per id.
func Metrics(m *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}
