package authtest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseofpeople/sessionkit/pkg/observability"
)

var alice = Account{
	Username:     "alice",
	Email:        "alice@example.com",
	Password:     "pw123",
	Role:         "volunteer",
	Permissions:  []string{"view_dashboard"},
	Organization: 7,
}

func do(t *testing.T, method, url, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestLogin(t *testing.T) {
	_, ts := NewTestServer(t, WithAccount(alice))

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"by username", map[string]string{"username": "alice", "password": "pw123"}, http.StatusOK},
		{"by email", map[string]string{"email": "alice@example.com", "password": "pw123"}, http.StatusOK},
		{"email in username field", map[string]string{"username": "alice@example.com", "password": "pw123"}, http.StatusUnauthorized},
		{"wrong password", map[string]string{"username": "alice", "password": "nope"}, http.StatusUnauthorized},
		{"missing identifier", map[string]string{"password": "pw123"}, http.StatusBadRequest},
		{"missing password", map[string]string{"username": "alice"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, ts.URL+LoginPath, "", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == http.StatusOK {
				assert.NotEmpty(t, body["access"])
				assert.NotEmpty(t, body["refresh"])
			}
		})
	}
}

func TestOversizedBodyRejected(t *testing.T) {
	srv := New(WithAccount(alice))

	body := `{"username":"alice","password":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, LoginPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, srv.Hits(LoginPath))
}

func TestRegister(t *testing.T) {
	srv, ts := NewTestServer(t, WithAccount(alice))

	body := map[string]string{
		"username":         "bob",
		"email":            "bob@example.com",
		"password":         "secret",
		"password_confirm": "secret",
		"first_name":       "Bob",
		"last_name":        "van Dyke",
	}
	resp, _ := do(t, http.MethodPost, ts.URL+RegisterPath, "", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	account, ok := srv.Account("bob@example.com")
	require.True(t, ok)
	assert.Equal(t, "van Dyke", account.LastName)
	assert.Equal(t, "user", account.Role)

	t.Run("duplicate", func(t *testing.T) {
		resp, out := do(t, http.MethodPost, ts.URL+RegisterPath, "", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, out, "username")
		assert.Contains(t, out, "email")
	})

	t.Run("password mismatch", func(t *testing.T) {
		resp, out := do(t, http.MethodPost, ts.URL+RegisterPath, "", map[string]string{
			"username": "carol", "email": "carol@example.com", "password": "a", "password_confirm": "b",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, out, "password")
	})
}

func TestRefreshAndProfile(t *testing.T) {
	srv, ts := NewTestServer(t)
	id := srv.AddAccount(alice)
	access, refresh := srv.IssueTokens(id)

	resp, profile := do(t, http.MethodGet, ts.URL+ProfilePath, access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(id), profile["id"])
	assert.Equal(t, "volunteer", profile["role"])
	assert.Equal(t, float64(7), profile["organization"])

	srv.ExpireAccess(access)
	resp, out := do(t, http.MethodGet, ts.URL+ProfilePath, access, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token_not_valid", out["code"])

	resp, out = do(t, http.MethodPost, ts.URL+RefreshPath, "", map[string]string{"refresh": refresh})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	newAccess, _ := out["access"].(string)
	require.NotEmpty(t, newAccess)
	assert.NotContains(t, out, "refresh")

	resp, _ = do(t, http.MethodGet, ts.URL+ProfilePath, newAccess, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	srv.RevokeRefresh(refresh)
	resp, _ = do(t, http.MethodPost, ts.URL+RefreshPath, "", map[string]string{"refresh": refresh})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+ProfilePath, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEnqueue(t *testing.T) {
	srv, ts := NewTestServer(t)
	srv.Enqueue(LoginPath, http.StatusOK, map[string]string{"access": "A1", "refresh": "R1"})
	srv.Enqueue(LoginPath, http.StatusServiceUnavailable, nil)

	resp, out := do(t, http.MethodPost, ts.URL+LoginPath, "", map[string]string{"email": "x", "password": "y"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "A1", out["access"])

	resp, _ = do(t, http.MethodPost, ts.URL+LoginPath, "", map[string]string{"email": "x", "password": "y"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// queue drained, falls through to the real handler
	resp, _ = do(t, http.MethodPost, ts.URL+LoginPath, "", map[string]string{"email": "x", "password": "y"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, 3, srv.Hits(LoginPath))
	reqs := srv.RequestsTo(LoginPath)
	require.Len(t, reqs, 3)
	assert.JSONEq(t, `{"email":"x","password":"y"}`, reqs[0].Body)
}

func TestHealthAndNotFound(t *testing.T) {
	_, ts := NewTestServer(t)

	resp, out := do(t, http.MethodGet, ts.URL+HealthPath, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", out["status"])

	resp, _ = do(t, http.MethodGet, ts.URL+"/nope/", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWithMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewServerMetrics(registry)
	_, ts := NewTestServer(t, WithMetrics(metrics))

	do(t, http.MethodGet, ts.URL+HealthPath, "", nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", HealthPath, "200")))
}

func TestUpsertAccount(t *testing.T) {
	srv, ts := NewTestServer(t, WithAccount(alice))
	original, ok := srv.Account("alice")
	require.True(t, ok)

	updated := alice
	updated.Password = "rotated"
	updated.Role = "admin"
	id, created := srv.UpsertAccount(updated)
	assert.False(t, created)
	assert.Equal(t, original.ID, id)

	resp, _ := do(t, http.MethodPost, ts.URL+LoginPath, "", map[string]string{"username": "alice", "password": "pw123"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, ts.URL+LoginPath, "", map[string]string{"username": "alice", "password": "rotated"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got, ok := srv.Account("alice@example.com")
	require.True(t, ok)
	assert.Equal(t, "admin", got.Role)

	id, created = srv.UpsertAccount(Account{Username: "bob", Email: "bob@example.com", Password: "pw"})
	assert.True(t, created)
	assert.NotEqual(t, original.ID, id)
}
