// Package respcache is a read-through cache for rendered upstream responses
// that are expensive to fetch and slow to change, such as NHD flowlines.
package respcache

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/headwatersai/headwaters-backend/internal/observability"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "headwaters:"

// Cache stores opaque response bodies. Implementations treat backend errors
// as misses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Key builds a cache key from a route name and its query. url.Values.Encode
// sorts by parameter name, so equivalent queries share a key.
func Key(route string, q url.Values) string {
	return keyPrefix + route + "?" + q.Encode()
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (Noop) Set(context.Context, string, []byte, time.Duration) {}

// Options describes the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

type Redis struct {
	rdb     *redis.Client
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRedis connects lazily; use Ping to check the server is reachable.
// metrics may be nil.
func NewRedis(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		rdb: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		logger:  logger.With("component", "respcache"),
		metrics: metrics,
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		r.count("miss")
		return nil, false
	case err != nil:
		r.count("error")
		r.logger.WarnContext(ctx, "cache get failed", "key", key, "error", err)
		return nil, false
	}
	r.count("hit")
	return b, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := r.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		r.count("error")
		r.logger.WarnContext(ctx, "cache set failed", "key", key, "error", err)
	}
}

func (r *Redis) count(result string) {
	if r.metrics != nil {
		r.metrics.ResponseCache.WithLabelValues(result).Inc()
	}
}
