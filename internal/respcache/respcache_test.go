package respcache

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/headwatersai/headwaters-backend/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestKey_SortsQuery(t *testing.T) {
	a := Key("flowlines", url.Values{"west": {"-105"}, "east": {"-104"}})
	b := Key("flowlines", url.Values{"east": {"-104"}, "west": {"-105"}})
	assert.Equal(t, a, b)
	assert.Equal(t, "headwaters:flowlines?east=-104&west=-105", a)
}

func TestNoop(t *testing.T) {
	var c Cache = Noop{}
	c.Set(context.Background(), "k", []byte("v"), time.Minute)
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestRedis_UnreachableDegradesToMiss(t *testing.T) {
	m := observability.NewMetricsForTesting()
	// Nothing listens on port 1.
	c := NewRedis(Options{Addr: "127.0.0.1:1"}, m, nil)
	t.Cleanup(func() { c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Error(t, c.Ping(ctx))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ResponseCache.WithLabelValues("error")))
	assert.Zero(t, testutil.ToFloat64(m.ResponseCache.WithLabelValues("hit")))
}
