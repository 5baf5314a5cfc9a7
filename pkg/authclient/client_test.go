package authclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseofpeople/sessionkit/pkg/authtest"
	"github.com/pulseofpeople/sessionkit/pkg/observability"
	"github.com/pulseofpeople/sessionkit/pkg/storage"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newClient(t *testing.T, baseURL string, store storage.Store, opts ...Option) *Client {
	t.Helper()
	c, err := New(baseURL, store, opts...)
	require.NoError(t, err)
	return c
}

func seededStore(t *testing.T, access, refresh string) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), access, refresh))
	return store
}

func tokens(t *testing.T, store storage.Store) (string, string) {
	t.Helper()
	pair, err := storage.Load(context.Background(), store)
	require.NoError(t, err)
	return pair.Access, pair.Refresh
}

func TestNew(t *testing.T) {
	store := storage.NewMemoryStore()

	tests := []struct {
		name    string
		baseURL string
		wantErr bool
		want    string
	}{
		{"trailing slash trimmed", "http://127.0.0.1:8000/api/", false, "http://127.0.0.1:8000/api"},
		{"https", "https://api.example.com", false, "https://api.example.com"},
		{"bad scheme", "ftp://example.com", true, ""},
		{"missing host", "http://", true, ""},
		{"empty", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.baseURL, store)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.BaseURL())
		})
	}

	_, err := New("http://localhost", nil)
	assert.Error(t, err)
}

func TestExecute_BearerHeader(t *testing.T) {
	srv, ts := authtest.NewTestServer(t)
	srv.Enqueue(authtest.ProfilePath, http.StatusOK, map[string]int{"id": 1})
	srv.Enqueue(authtest.ProfilePath, http.StatusOK, map[string]int{"id": 1})

	store := seededStore(t, "A1", "R1")
	c := newClient(t, ts.URL, store)

	resp, err := c.Execute(context.Background(), ProfilePath, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, store.Clear(context.Background()))
	_, err = c.Execute(context.Background(), ProfilePath, nil)
	require.NoError(t, err)

	reqs := srv.RequestsTo(authtest.ProfilePath)
	require.Len(t, reqs, 2)
	assert.Equal(t, "Bearer A1", reqs[0].Authorization)
	assert.Empty(t, reqs[1].Authorization)
	assert.NotEmpty(t, reqs[0].RequestID)
}

func TestExecute_EncodesBody(t *testing.T) {
	srv, ts := authtest.NewTestServer(t)
	srv.Enqueue("/surveys/", http.StatusCreated, map[string]string{"status": "created"})

	c := newClient(t, ts.URL, seededStore(t, "A1", "R1"))
	resp, err := c.Execute(context.Background(), "/surveys/", &RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"title": "ward 12"},
		Header: http.Header{"X-Client": []string{"cli"}},
	})
	require.NoError(t, err)
	assert.True(t, resp.OK())

	var out map[string]string
	require.NoError(t, resp.DecodeJSON(&out))
	assert.Equal(t, "created", out["status"])

	reqs := srv.RequestsTo("/surveys/")
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.JSONEq(t, `{"title":"ward 12"}`, reqs[0].Body)
}

func TestExecute_RefreshAndRetry(t *testing.T) {
	srv, ts := authtest.NewTestServer(t)
	srv.Enqueue(authtest.ProfilePath, http.StatusUnauthorized, map[string]string{"detail": "expired"})
	srv.Enqueue(authtest.RefreshPath, http.StatusOK, map[string]string{"access": "A2"})
	srv.Enqueue(authtest.ProfilePath, http.StatusOK, map[string]string{"body": "B"})

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	var expired atomic.Int32

	store := seededStore(t, "A1", "R1")
	c := newClient(t, ts.URL, store,
		WithMetrics(metrics),
		WithSessionExpiredHandler(func() { expired.Add(1) }),
	)

	resp, err := c.Execute(context.Background(), ProfilePath, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"body":"B"}`, string(resp.Body))

	access, refresh := tokens(t, store)
	assert.Equal(t, "A2", access)
	assert.Equal(t, "R1", refresh)

	assert.Equal(t, 1, srv.Hits(authtest.RefreshPath))
	assert.Equal(t, 2, srv.Hits(authtest.ProfilePath))
	assert.Equal(t, int32(0), expired.Load())

	reqs := srv.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "Bearer A1", reqs[0].Authorization)
	assert.Empty(t, reqs[1].Authorization, "refresh must not carry a bearer token")
	assert.JSONEq(t, `{"refresh":"R1"}`, reqs[1].Body)
	assert.Equal(t, "Bearer A2", reqs[2].Authorization)
	assert.Equal(t, reqs[0].RequestID, reqs[2].RequestID)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RefreshTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET", "200")))
}

func TestExecute_RetryIsNotRepeated(t *testing.T) {
	srv, ts := authtest.NewTestServer(t)
	srv.Enqueue(authtest.ProfilePath, http.StatusUnauthorized, nil)
	srv.Enqueue(authtest.RefreshPath, http.StatusOK, map[string]string{"access": "A2"})
	srv.Enqueue(authtest.ProfilePath, http.StatusUnauthorized, nil)

	store := seededStore(t, "A1", "R1")
	c := newClient(t, ts.URL, store)

	resp, err := c.Execute(context.Background(), ProfilePath, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, 1, srv.Hits(authtest.RefreshPath))
	assert.Equal(t, 2, srv.Hits(authtest.ProfilePath))

	access, refresh := tokens(t, store)
	assert.Equal(t, "A2", access)
	assert.Equal(t, "R1", refresh)
}

func TestExecute_RefreshRejected(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv, ts := authtest.NewTestServer(t)
			srv.Enqueue(authtest.ProfilePath, http.StatusUnauthorized, map[string]string{"detail": "expired"})
			srv.Enqueue(authtest.RefreshPath, status, map[string]string{"detail": "nope"})

			var expired atomic.Int32
			store := seededStore(t, "A1", "R1")
			c := newClient(t, ts.URL, store, WithSessionExpiredHandler(func() { expired.Add(1) }))

			resp, err := c.Execute(context.Background(), ProfilePath, nil)
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.JSONEq(t, `{"detail":"expired"}`, string(resp.Body))

			access, refresh := tokens(t, store)
			assert.Empty(t, access)
			assert.Empty(t, refresh)
			assert.Equal(t, int32(1), expired.Load())
			assert.Equal(t, 1, srv.Hits(authtest.ProfilePath))
		})
	}
}

func TestExecute_RefreshTransportError(t *testing.T) {
	srv, ts := authtest.NewTestServer(t)
	srv.Enqueue(authtest.ProfilePath, http.StatusUnauthorized, nil)

	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if strings.HasSuffix(r.URL.Path, RefreshPath) {
			return nil, errors.New("connection reset")
		}
		return http.DefaultTransport.RoundTrip(r)
	})}

	var expired atomic.Int32
	store := seededStore(t, "A1", "R1")
	c := newClient(t, ts.URL, store,
		WithHTTPClient(hc),
		WithSessionExpiredHandler(func() { expired.Add(1) }),
	)

	resp, err := c.Execute(context.Background(), ProfilePath, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	access, refresh := tokens(t, store)
	assert.Empty(t, access)
	assert.Empty(t, refresh)
	assert.Equal(t, int32(1), expired.Load())
}

func TestExecute_NoRefreshToken(t *testing.T) {
	srv, ts := authtest.NewTestServer(t)
	srv.Enqueue(authtest.ProfilePath, http.StatusUnauthorized, nil)

	var expired atomic.Int32
	store := seededStore(t, "A1", "")
	c := newClient(t, ts.URL, store, WithSessionExpiredHandler(func() { expired.Add(1) }))

	resp, err := c.Execute(context.Background(), ProfilePath, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, srv.Hits(authtest.RefreshPath))
	assert.Equal(t, int32(0), expired.Load())

	access, _ := tokens(t, store)
	assert.Equal(t, "A1", access)
}

func TestExecute_NetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := newClient(t, url, seededStore(t, "A1", "R1"))
	_, err := c.Execute(context.Background(), ProfilePath, nil)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestExecute_ConcurrentRefreshIsShared(t *testing.T) {
	srv, ts := authtest.NewTestServer(t, authtest.WithRefreshDelay(100*time.Millisecond))
	id := srv.AddAccount(authtest.Account{Username: "alice", Email: "alice@example.com", Password: "pw123"})
	access, refresh := srv.IssueTokens(id)
	srv.ExpireAccess(access)

	var expired atomic.Int32
	store := seededStore(t, access, refresh)
	c := newClient(t, ts.URL, store, WithSessionExpiredHandler(func() { expired.Add(1) }))

	const callers = 8
	statuses := make([]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := c.Execute(context.Background(), ProfilePath, nil)
			if assert.NoError(t, err) {
				statuses[i] = resp.StatusCode
			}
		}(i)
	}
	wg.Wait()

	for _, s := range statuses {
		assert.Equal(t, http.StatusOK, s)
	}
	assert.Equal(t, 1, srv.Hits(authtest.RefreshPath))
	assert.Equal(t, int32(0), expired.Load())

	newAccess, newRefresh := tokens(t, store)
	assert.NotEqual(t, access, newAccess)
	assert.Equal(t, refresh, newRefresh)
}

func TestExecute_ConcurrentRefreshFailureExpiresOnce(t *testing.T) {
	srv, ts := authtest.NewTestServer(t, authtest.WithRefreshDelay(100*time.Millisecond))
	id := srv.AddAccount(authtest.Account{Username: "alice", Email: "alice@example.com", Password: "pw123"})
	access, refresh := srv.IssueTokens(id)
	srv.ExpireAccess(access)
	srv.RevokeRefresh(refresh)

	var expired atomic.Int32
	store := seededStore(t, access, refresh)
	c := newClient(t, ts.URL, store, WithSessionExpiredHandler(func() { expired.Add(1) }))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := c.Execute(context.Background(), ProfilePath, nil)
			if assert.NoError(t, err) {
				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, srv.Hits(authtest.RefreshPath))
	assert.Equal(t, int32(1), expired.Load())
}

func TestExecute_StaleGenerationSkipsRefresh(t *testing.T) {
	srv, ts := authtest.NewTestServer(t)
	srv.Enqueue(authtest.ProfilePath, http.StatusOK, map[string]string{"ok": "yes"})

	store := seededStore(t, "A1", "R1")
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		// Another caller rotates the token while this request is on the wire
		if r.Header.Get("Authorization") == "Bearer A1" {
			_ = store.SetAccess(r.Context(), "A2")
			rec := httptest.NewRecorder()
			rec.WriteHeader(http.StatusUnauthorized)
			return rec.Result(), nil
		}
		return http.DefaultTransport.RoundTrip(r)
	})}

	c := newClient(t, ts.URL, store, WithHTTPClient(hc))
	resp, err := c.Execute(context.Background(), ProfilePath, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, srv.Hits(authtest.RefreshPath))

	reqs := srv.RequestsTo(authtest.ProfilePath)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer A2", reqs[0].Authorization)
}

func TestLogin(t *testing.T) {
	srv, ts := authtest.NewTestServer(t, authtest.WithAccount(authtest.Account{
		Username: "alice", Email: "alice@example.com", Password: "pw123",
	}))
	c := newClient(t, ts.URL, storage.NewMemoryStore())
	ctx := context.Background()

	pair, err := c.Login(ctx, LoginRequest{Username: "alice", Password: "pw123"})
	require.NoError(t, err)
	assert.True(t, pair.Authenticated())
	assert.NotEmpty(t, pair.Refresh)

	_, err = c.Login(ctx, LoginRequest{Username: "alice", Password: "wrong"})
	require.ErrorIs(t, err, ErrRejected)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Contains(t, string(statusErr.Body), "No active account")

	srv.Enqueue(LoginPath, http.StatusOK, map[string]string{"access": "A1"})
	_, err = c.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "pw123"})
	assert.ErrorIs(t, err, ErrInvalidResponse)

	reqs := srv.RequestsTo(LoginPath)
	require.Len(t, reqs, 3)
	assert.JSONEq(t, `{"username":"alice","password":"pw123"}`, reqs[0].Body)
	assert.JSONEq(t, `{"email":"alice@example.com","password":"pw123"}`, reqs[2].Body)
}

func TestRegister(t *testing.T) {
	_, ts := authtest.NewTestServer(t)
	c := newClient(t, ts.URL, storage.NewMemoryStore())

	req := RegisterRequest{
		Username:        "bob",
		Email:           "bob@example.com",
		Password:        "secret",
		PasswordConfirm: "secret",
		FirstName:       "Bob",
	}
	require.NoError(t, c.Register(context.Background(), req))

	err := c.Register(context.Background(), req)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestRefresh(t *testing.T) {
	srv, ts := authtest.NewTestServer(t)
	c := newClient(t, ts.URL, storage.NewMemoryStore())

	srv.Enqueue(RefreshPath, http.StatusOK, map[string]string{})
	_, err := c.Refresh(context.Background(), "R1")
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = c.Refresh(context.Background(), "R1")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestHealth(t *testing.T) {
	srv, ts := authtest.NewTestServer(t)
	c := newClient(t, ts.URL, storage.NewMemoryStore(), WithTimeout(time.Second))

	assert.NoError(t, c.Health(context.Background()))

	srv.Enqueue(HealthPath, http.StatusServiceUnavailable, nil)
	assert.ErrorIs(t, c.Health(context.Background()), ErrRejected)
}

func TestSetSessionExpiredHandler(t *testing.T) {
	srv, ts := authtest.NewTestServer(t)
	srv.Enqueue(ProfilePath, http.StatusUnauthorized, nil)
	srv.Enqueue(RefreshPath, http.StatusUnauthorized, nil)

	var first, second atomic.Int32
	c := newClient(t, ts.URL, seededStore(t, "A1", "R1"), WithSessionExpiredHandler(func() { first.Add(1) }))
	c.SetSessionExpiredHandler(func() { second.Add(1) })

	_, err := c.Execute(context.Background(), ProfilePath, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(0), first.Load())
	assert.Equal(t, int32(1), second.Load())
}

func TestWithTracing(t *testing.T) {
	_, ts := authtest.NewTestServer(t)
	c := newClient(t, ts.URL, storage.NewMemoryStore(), WithTracing())

	assert.NotNil(t, c.httpClient.Transport)
	assert.NoError(t, c.Health(context.Background()))
}
