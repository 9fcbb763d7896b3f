package auth_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/headwatersai/headwaters-backend/internal/auth"
	"github.com/headwatersai/headwaters-backend/internal/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer mounts the auth routes the way main.go does, on a fresh
// in-memory database.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	d := dbtest.Open(t)
	require.NoError(t, auth.Init(d))

	svc := auth.NewService(d, nil, nil)
	r := chi.NewRouter()
	r.Mount("/api/auth", auth.SetupRoutes(auth.NewHandler(svc, false)))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// newClientWithJar returns an http.Client with a fresh cookie jar that automatically
// carries cookies between requests.
func newClientWithJar(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func sendJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" {
			return c
		}
	}
	return nil
}

// TestRegisterThenMe covers the documented end-to-end flow: register, then
// /me with the returned cookie yields the same account.
func TestRegisterThenMe(t *testing.T) {
	srv := newTestServer(t)
	client := newClientWithJar(t)

	resp, body := sendJSON(t, client, http.MethodPost, srv.URL+"/api/auth/register",
		map[string]string{"email": "a@b.com", "password": "password123"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	assert.Equal(t, true, body["success"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "free", user["subscriptionTier"])
	assert.Equal(t, "a@b.com", user["email"])

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 30*24*60*60, cookie.MaxAge)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	resp, body = sendJSON(t, client, http.MethodGet, srv.URL+"/api/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	me := body["user"].(map[string]any)
	assert.Equal(t, "a@b.com", me["email"])
	assert.Equal(t, user["id"], me["id"])
	assert.NotEmpty(t, me["createdAt"])
}

func TestRegister_Validation(t *testing.T) {
	srv := newTestServer(t)
	client := newClientWithJar(t)

	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{"missing password", map[string]string{"email": "a@b.com"}, "Email and password are required"},
		{"missing email", map[string]string{"password": "password123"}, "Email and password are required"},
		{"short password", map[string]string{"email": "a@b.com", "password": "short"}, "Password must be at least 8 characters"},
		{"short multibyte password", map[string]string{"email": "a@b.com", "password": "ééééééé"}, "Password must be at least 8 characters"},
		{"bad email", map[string]string{"email": "not-an-email", "password": "password123"}, "Invalid email format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := sendJSON(t, client, http.MethodPost, srv.URL+"/api/auth/register", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	srv := newTestServer(t)
	client := newClientWithJar(t)

	resp, _ := sendJSON(t, client, http.MethodPost, srv.URL+"/api/auth/register",
		map[string]string{"email": "a@b.com", "password": "password123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := sendJSON(t, client, http.MethodPost, srv.URL+"/api/auth/register",
		map[string]string{"email": "A@B.COM", "password": "password123"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Email already registered", body["error"])
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	client := newClientWithJar(t)

	sendJSON(t, client, http.MethodPost, srv.URL+"/api/auth/register",
		map[string]string{"email": "a@b.com", "password": "password123"})

	resp, body := sendJSON(t, newClientWithJar(t), http.MethodPost, srv.URL+"/api/auth/login",
		map[string]string{"email": "a@b.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid email or password", body["error"])

	resp, body = sendJSON(t, newClientWithJar(t), http.MethodPost, srv.URL+"/api/auth/login",
		map[string]string{"email": "A@b.com", "password": "password123"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, sessionCookie(resp))
	assert.Equal(t, "a@b.com", body["user"].(map[string]any)["email"])
}

func TestLogoutThenMe(t *testing.T) {
	srv := newTestServer(t)
	client := newClientWithJar(t)

	sendJSON(t, client, http.MethodPost, srv.URL+"/api/auth/register",
		map[string]string{"email": "a@b.com", "password": "password123"})

	resp, body := sendJSON(t, client, http.MethodPost, srv.URL+"/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, body = sendJSON(t, client, http.MethodGet, srv.URL+"/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Not authenticated", body["error"], "jar dropped the cleared cookie")
}

func TestMe_StaleCookie(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "stale"})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	cleared := sessionCookie(resp)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestChangePassword_SignsOutEverywhere(t *testing.T) {
	srv := newTestServer(t)
	browser := newClientWithJar(t)
	phone := newClientWithJar(t)

	sendJSON(t, browser, http.MethodPost, srv.URL+"/api/auth/register",
		map[string]string{"email": "a@b.com", "password": "password123"})
	sendJSON(t, phone, http.MethodPost, srv.URL+"/api/auth/login",
		map[string]string{"email": "a@b.com", "password": "password123"})

	resp, body := sendJSON(t, browser, http.MethodPost, srv.URL+"/api/auth/password",
		map[string]string{"currentPassword": "nope-nope", "newPassword": "brand-new-pass"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Current password is incorrect", body["error"])

	resp, _ = sendJSON(t, browser, http.MethodPost, srv.URL+"/api/auth/password",
		map[string]string{"currentPassword": "password123", "newPassword": "brand-new-pass"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = sendJSON(t, phone, http.MethodGet, srv.URL+"/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Session expired", body["error"])

	resp, _ = sendJSON(t, newClientWithJar(t), http.MethodPost, srv.URL+"/api/auth/login",
		map[string]string{"email": "a@b.com", "password": "brand-new-pass"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUpdateProfile_RequiresSession(t *testing.T) {
	srv := newTestServer(t)

	resp, body := sendJSON(t, newClientWithJar(t), http.MethodPatch, srv.URL+"/api/auth/profile",
		map[string]string{"fullName": "X"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Authentication required", body["error"])
}

func TestUpdateProfile(t *testing.T) {
	srv := newTestServer(t)
	client := newClientWithJar(t)

	sendJSON(t, newClientWithJar(t), http.MethodPost, srv.URL+"/api/auth/register",
		map[string]string{"email": "taken@b.com", "password": "password123"})
	sendJSON(t, client, http.MethodPost, srv.URL+"/api/auth/register",
		map[string]string{"email": "a@b.com", "password": "password123"})

	resp, body := sendJSON(t, client, http.MethodPatch, srv.URL+"/api/auth/profile",
		map[string]string{"email": "taken@b.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Email already in use", body["error"])

	resp, body = sendJSON(t, client, http.MethodPatch, srv.URL+"/api/auth/profile",
		map[string]string{"fullName": "Rachel Carson", "email": "Rachel@b.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	user := body["user"].(map[string]any)
	assert.Equal(t, "Rachel Carson", user["fullName"])
	assert.Equal(t, "rachel@b.com", user["email"])
}
