package locations_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/headwatersai/headwaters-backend/internal/auth"
	"github.com/headwatersai/headwaters-backend/internal/db/dbtest"
	"github.com/headwatersai/headwaters-backend/internal/locations"
	"github.com/headwatersai/headwaters-backend/internal/middleware"
	"github.com/headwatersai/headwaters-backend/internal/tiers"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type testEnv struct {
	srv     *httptest.Server
	authSvc *auth.Service
	clock   *clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	d := dbtest.Open(t)
	require.NoError(t, auth.Init(d))
	require.NoError(t, locations.Init(d))

	authSvc := auth.NewService(d, nil, nil)
	clock := clockwork.NewFakeClock()
	r := chi.NewRouter()
	r.Mount("/api/locations", locations.SetupRoutes(locations.NewHandler(locations.NewService(d, clock)), authSvc))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, authSvc: authSvc, clock: clock}
}

// signUp registers a user and returns its id and session cookie value.
func (e *testEnv) signUp(t *testing.T, email string) (string, string) {
	t.Helper()
	user, session, err := e.authSvc.Register(context.Background(), email, "password123", nil)
	require.NoError(t, err)
	return user.ID, session.ID
}

func (e *testEnv) do(t *testing.T, method, path, sessionID string, body any) (int, map[string]any) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sessionID})
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func boulder(name string) map[string]any {
	return map[string]any{"name": name, "latitude": 40.015, "longitude": -105.27}
}

func TestCreateAndList(t *testing.T) {
	e := newTestEnv(t)
	_, sid := e.signUp(t, "a@b.com")

	status, body := e.do(t, http.MethodPost, "/api/locations", sid, map[string]any{
		"name": "Home", "latitude": 40.015, "longitude": -105.27,
		"watershedHuc12": "101900050302", "notes": "",
	})
	require.Equal(t, http.StatusOK, status, body)
	loc := body["location"].(map[string]any)
	assert.Equal(t, "Home", loc["name"])
	assert.Equal(t, "101900050302", loc["watershedHuc12"])
	assert.Nil(t, loc["notes"], "empty strings are stored as null")
	assert.NotEmpty(t, loc["id"])
	assert.NotContains(t, loc, "userId")

	e.clock.Advance(time.Minute)
	e.do(t, http.MethodPost, "/api/locations", sid, boulder("Work"))

	status, body = e.do(t, http.MethodGet, "/api/locations", sid, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2.0, body["count"])
	list := body["locations"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "Work", list[0].(map[string]any)["name"], "newest first")
}

func TestList_EmptyIsArray(t *testing.T) {
	e := newTestEnv(t)
	_, sid := e.signUp(t, "a@b.com")

	status, body := e.do(t, http.MethodGet, "/api/locations", sid, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, body["locations"])
}

func TestRequiresSession(t *testing.T) {
	e := newTestEnv(t)

	status, body := e.do(t, http.MethodGet, "/api/locations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Authentication required", body["error"])

	status, body = e.do(t, http.MethodGet, "/api/locations", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid session", body["error"])
}

func TestCreate_Validation(t *testing.T) {
	e := newTestEnv(t)
	_, sid := e.signUp(t, "a@b.com")

	tests := []struct {
		name string
		body map[string]any
		want string
	}{
		{"missing name", map[string]any{"latitude": 40.0, "longitude": -105.0}, "Name, latitude, and longitude are required"},
		{"missing lng", map[string]any{"name": "x", "latitude": 40.0}, "Name, latitude, and longitude are required"},
		{"string lat", map[string]any{"name": "x", "latitude": "40", "longitude": -105.0}, "Latitude and longitude must be numbers"},
		{"lat range", map[string]any{"name": "x", "latitude": 91.0, "longitude": -105.0}, "Coordinates out of range"},
		{"lng range", map[string]any{"name": "x", "latitude": 40.0, "longitude": -181.0}, "Coordinates out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := e.do(t, http.MethodPost, "/api/locations", sid, tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestCreate_FreeTierLimit(t *testing.T) {
	e := newTestEnv(t)
	userID, sid := e.signUp(t, "a@b.com")

	for i := 1; i <= 3; i++ {
		status, body := e.do(t, http.MethodPost, "/api/locations", sid, boulder(fmt.Sprintf("spot %d", i)))
		require.Equal(t, http.StatusOK, status, "location %d: %v", i, body)
	}

	status, body := e.do(t, http.MethodPost, "/api/locations", sid, boulder("spot 4"))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Location limit reached. Your plan allows 3 saved locations.", body["error"])

	// An upgrade takes effect on the next request.
	_, err := e.authSvc.UpdateSubscription(context.Background(), userID, tiers.Enthusiast, nil, nil)
	require.NoError(t, err)
	status, _ = e.do(t, http.MethodPost, "/api/locations", sid, boulder("spot 4"))
	assert.Equal(t, http.StatusOK, status)
}

func TestDelete(t *testing.T) {
	e := newTestEnv(t)
	_, alice := e.signUp(t, "alice@example.com")
	_, bob := e.signUp(t, "bob@example.com")

	_, body := e.do(t, http.MethodPost, "/api/locations", alice, boulder("Home"))
	id := body["location"].(map[string]any)["id"].(string)

	status, body := e.do(t, http.MethodDelete, "/api/locations", alice, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Location ID is required", body["error"])

	status, body = e.do(t, http.MethodDelete, "/api/locations?id="+id, bob, nil)
	assert.Equal(t, http.StatusNotFound, status, "other users cannot delete it")
	assert.Equal(t, "Location not found", body["error"])

	status, body = e.do(t, http.MethodDelete, "/api/locations?id="+id, alice, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Location deleted", body["message"])

	status, _ = e.do(t, http.MethodDelete, "/api/locations?id="+id, alice, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestService_LimitError(t *testing.T) {
	d := dbtest.Open(t)
	require.NoError(t, auth.Init(d))
	require.NoError(t, locations.Init(d))
	user, _, err := auth.NewService(d, nil, nil).Register(context.Background(), "a@b.com", "password123", nil)
	require.NoError(t, err)

	svc := locations.NewService(d, nil)
	ctx := context.Background()
	for i := 0; i < tiers.Free.MaxSavedLocations(); i++ {
		_, err := svc.Create(ctx, user.ID, tiers.Free, locations.NewLocation{Name: "x", Latitude: 1, Longitude: 1})
		require.NoError(t, err)
	}
	_, err = svc.Create(ctx, user.ID, tiers.Free, locations.NewLocation{Name: "x", Latitude: 1, Longitude: 1})
	var limitErr *locations.LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 3, limitErr.Limit)

	all, err := svc.All(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestService_CreateLocksUserRow(t *testing.T) {
	d := dbtest.Open(t)
	require.NoError(t, auth.Init(d))
	require.NoError(t, locations.Init(d))
	user, _, err := auth.NewService(d, nil, nil).Register(context.Background(), "lock@b.com", "password123", nil)
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		locked []string
	)
	require.NoError(t, d.Callback().Query().Before("gorm:query").Register("test:record_locks", func(tx *gorm.DB) {
		c, ok := tx.Statement.Clauses["FOR"]
		if !ok {
			return
		}
		if l, ok := c.Expression.(clause.Locking); ok {
			mu.Lock()
			locked = append(locked, tx.Statement.Table+" "+l.Strength)
			mu.Unlock()
		}
	}))

	_, err = locations.NewService(d, nil).Create(context.Background(), user.ID, tiers.Free,
		locations.NewLocation{Name: "x", Latitude: 1, Longitude: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"users UPDATE"}, locked)
}

func TestService_ConcurrentCreatesRespectCap(t *testing.T) {
	d := dbtest.Open(t)
	require.NoError(t, auth.Init(d))
	require.NoError(t, locations.Init(d))
	user, _, err := auth.NewService(d, nil, nil).Register(context.Background(), "race@b.com", "password123", nil)
	require.NoError(t, err)
	svc := locations.NewService(d, nil)

	var (
		wg      sync.WaitGroup
		created atomic.Int32
		limited atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), user.ID, tiers.Free,
				locations.NewLocation{Name: fmt.Sprintf("spot %d", i), Latitude: 1, Longitude: 1})
			var limitErr *locations.LimitError
			switch {
			case err == nil:
				created.Add(1)
			case errors.As(err, &limitErr):
				limited.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), created.Load())
	assert.Equal(t, int32(5), limited.Load())
}

func TestService_CreateUnknownUser(t *testing.T) {
	d := dbtest.Open(t)
	require.NoError(t, auth.Init(d))
	require.NoError(t, locations.Init(d))

	_, err := locations.NewService(d, nil).Create(context.Background(), "no-such-user", tiers.Free,
		locations.NewLocation{Name: "x", Latitude: 1, Longitude: 1})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
