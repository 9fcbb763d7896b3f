package weather_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/headwatersai/headwaters-backend/internal/auth"
	"github.com/headwatersai/headwaters-backend/internal/db/dbtest"
	"github.com/headwatersai/headwaters-backend/internal/middleware"
	"github.com/headwatersai/headwaters-backend/internal/noaa"
	"github.com/headwatersai/headwaters-backend/internal/tiers"
	"github.com/headwatersai/headwaters-backend/internal/upstream"
	"github.com/headwatersai/headwaters-backend/internal/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache map[string][]byte

func (m memCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := m[key]
	return v, ok
}

func (m memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	m[key] = value
}

type testEnv struct {
	srv          *httptest.Server
	authSvc      *auth.Service
	forecastHits atomic.Int32
	alertsQuery  atomic.Value
	failAlerts   atomic.Bool
}

func (e *testEnv) fakeNWS(t *testing.T) *httptest.Server {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/points/40.0000,-105.0000", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"properties":{"gridId":"BOU","gridX":62,"gridY":60,
			"forecast":"%[1]s/gridpoints/BOU/62,60/forecast",
			"forecastHourly":"%[1]s/gridpoints/BOU/62,60/forecast/hourly"}}`, srv.URL)
	})
	mux.HandleFunc("/gridpoints/BOU/62,60/forecast", func(w http.ResponseWriter, r *http.Request) {
		e.forecastHits.Add(1)
		w.Write([]byte(`{"properties":{"periods":[
			{"number":1,"name":"Today","temperature":54,"shortForecast":"Sunny"},
			{"number":2,"name":"Tonight","temperature":28,"shortForecast":"Clear"}]}}`))
	})
	mux.HandleFunc("/gridpoints/BOU/62,60/forecast/hourly", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"properties":{"periods":[{"number":1,"temperature":50}]}}`))
	})
	mux.HandleFunc("/gridpoints/BOU/62,60", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"properties":{"quantitativePrecipitation":{"values":[{"validTime":"2026-03-01T12:00:00+00:00/PT6H","value":2.54}]}}}`))
	})
	mux.HandleFunc("/gridpoints/BOU/62,60/stations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[{"properties":{"stationIdentifier":"KBDU","name":"Boulder Municipal"},"geometry":{"coordinates":[-105.2258,40.0394]}}]}`))
	})
	mux.HandleFunc("/stations/KBDU/observations/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"properties":{"timestamp":"2026-03-01T11:55:00+00:00","temperature":{"value":3.2}}}`))
	})
	mux.HandleFunc("/alerts/active", func(w http.ResponseWriter, r *http.Request) {
		if e.failAlerts.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		e.alertsQuery.Store(r.URL.RawQuery)
		w.Write([]byte(`{"features":[{"properties":{"id":"urn:oid:1","event":"Flood Watch","areaDesc":"Boulder"}}]}`))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{}
	nws := e.fakeNWS(t)

	d := dbtest.Open(t)
	require.NoError(t, auth.Init(d))
	e.authSvc = auth.NewService(d, nil, nil)

	client := noaa.NewClient(upstream.New(upstream.Options{Provider: noaa.Provider, Headers: noaa.Headers("test (test@example.com)")}))
	client.BaseURL = nws.URL

	h := weather.NewHandler(weather.Options{NOAA: client, Cache: memCache{}})
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		weather.SetupRoutes(r, h, e.authSvc)
	})
	e.srv = httptest.NewServer(r)
	t.Cleanup(e.srv.Close)
	return e
}

func (e *testEnv) get(t *testing.T, path, sessionID string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.srv.URL+path, nil)
	require.NoError(t, err)
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sessionID})
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestWeather_Forecast(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.get(t, "/api/weather?lat=40.0&lng=-105.0&type=forecast", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "forecast", body["type"])
	assert.Equal(t, map[string]any{"lat": 40.0, "lng": -105.0}, body["location"])

	periods := body["forecast"].(map[string]any)["periods"].([]any)
	require.NotEmpty(t, periods)
	assert.Equal(t, "Today", periods[0].(map[string]any)["name"])
	assert.Equal(t, "Tonight", periods[1].(map[string]any)["name"])
}

func TestWeather_DefaultTypeAndCache(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.get(t, "/api/weather?lat=40&lng=-105", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "forecast", body["type"])
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))

	resp, _ = e.get(t, "/api/weather?lng=-105.0&lat=40.00&type=forecast", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))
	assert.Equal(t, int32(1), e.forecastHits.Load())
}

func TestWeather_Validation(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		query string
		msg   string
	}{
		{"?lat=40", "Latitude and longitude are required"},
		{"?lat=abc&lng=-105", "Invalid coordinates"},
		{"?lat=10&lng=10", "Coordinates must be within the continental United States"},
		{"?lat=40&lng=-105&type=radar", "Invalid type. Must be: forecast, hourly, alerts, precipitation, observations, or all"},
		{"?lat=40&lng=-105&type=observations&radius=0", "Invalid radius"},
	}
	for _, tt := range tests {
		resp, body := e.get(t, "/api/weather"+tt.query, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, tt.query)
		assert.Equal(t, tt.msg, body["error"], tt.query)
	}
}

func TestWeather_Kinds(t *testing.T) {
	e := newTestEnv(t)

	_, body := e.get(t, "/api/weather?lat=40&lng=-105&type=alerts", "")
	assert.Equal(t, 1.0, body["alertCount"])

	_, body = e.get(t, "/api/weather?lat=40&lng=-105&type=precipitation", "")
	p := body["precipitationForecast"].([]any)[0].(map[string]any)
	assert.Equal(t, "PT6H", p["duration"])

	_, body = e.get(t, "/api/weather?lat=40&lng=-105&type=observations&radius=25", "")
	assert.Equal(t, 25.0, body["radiusKm"])
	assert.Equal(t, 1.0, body["stationCount"])
}

func TestWeather_All(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.get(t, "/api/weather?lat=40&lng=-105&type=all", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, k := range []string{"forecast", "hourlyForecast", "alerts", "precipitationForecast", "observations"} {
		assert.Contains(t, body, k)
	}
}

func TestWeather_AllFailsWhenOnePartFails(t *testing.T) {
	e := newTestEnv(t)
	e.failAlerts.Store(true)

	resp, body := e.get(t, "/api/weather?lat=40&lng=-105&type=all", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to fetch weather data", body["error"])
}

func TestFloodAlerts(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.get(t, "/api/alerts/flood?state=CO", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ctx := context.Background()
	user, session, err := e.authSvc.Register(ctx, "w@example.com", "password123", nil)
	require.NoError(t, err)

	resp, _ = e.get(t, "/api/alerts/flood?state=CO", session.ID)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, err = e.authSvc.UpdateSubscription(ctx, user.ID, tiers.Enthusiast, nil, nil)
	require.NoError(t, err)

	resp, body := e.get(t, "/api/alerts/flood?state=co", session.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CO", body["state"])
	assert.Equal(t, 1.0, body["alertCount"])
	assert.Contains(t, e.alertsQuery.Load(), "area=CO")

	resp, body = e.get(t, "/api/alerts/flood?state=Colorado", session.ID)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid state code", body["error"])
}

func TestStateAlerts(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.get(t, "/api/alerts?state=CO", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ctx := context.Background()
	user, session, err := e.authSvc.Register(ctx, "s@example.com", "password123", nil)
	require.NoError(t, err)
	_, err = e.authSvc.UpdateSubscription(ctx, user.ID, tiers.Professional, nil, nil)
	require.NoError(t, err)

	resp, body := e.get(t, "/api/alerts?state=co", session.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CO", body["state"])
	assert.Equal(t, 1.0, body["alertCount"])
	assert.Equal(t, "area=CO", e.alertsQuery.Load())

	for _, tc := range []struct{ query, msg string }{
		{"", "State code is required"},
		{"?state=C0", "Invalid state code"},
	} {
		resp, body := e.get(t, "/api/alerts"+tc.query, session.ID)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, tc.query)
		assert.Equal(t, tc.msg, body["error"], tc.query)
	}
}
