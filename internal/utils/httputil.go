package utils

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AddCacheHeaders marks a response as cacheable by browsers and CDNs. Vary
// is appended so a CORS Vary: Origin survives.
func AddCacheHeaders(w http.ResponseWriter, maxAgeSeconds int) {
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAgeSeconds))
	w.Header().Add("Vary", "Accept-Encoding")
}

// Timing is one Server-Timing metric.
type Timing struct {
	Name string
	Dur  time.Duration
}

// AddServerTiming appends metrics to the Server-Timing header, e.g.
// "usgs;dur=182, upsert;dur=9".
func AddServerTiming(w http.ResponseWriter, timings ...Timing) {
	if len(timings) == 0 {
		return
	}
	var b strings.Builder
	for i, t := range timings {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s;dur=%d", t.Name, t.Dur.Milliseconds())
	}
	w.Header().Add("Server-Timing", b.String())
}
