package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseofpeople/sessionkit/pkg/authtest"
	"github.com/pulseofpeople/sessionkit/pkg/config"
	"github.com/pulseofpeople/sessionkit/pkg/storage"
)

type harness struct {
	srv  *authtest.Server
	env  *Env
	root *Command
	in   *bytes.Buffer
	out  *bytes.Buffer
	err  *bytes.Buffer
}

func newHarness(t *testing.T, opts ...authtest.Option) *harness {
	t.Helper()
	srv, ts := authtest.NewTestServer(t, opts...)

	cfg := config.Default()
	cfg.API.URL = ts.URL
	cfg.Storage.Type = "memory"
	cfg.Observability.LogLevel = "error"

	h := &harness{srv: srv, in: &bytes.Buffer{}, out: &bytes.Buffer{}, err: &bytes.Buffer{}}
	env, err := NewEnv(context.Background(), cfg, h.in, h.out, h.err)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })

	h.env = env
	h.root = NewRootCommand(env)
	return h
}

func (h *harness) run(args ...string) error {
	h.out.Reset()
	h.err.Reset()
	return h.root.Execute(args)
}

var alice = authtest.Account{
	Username:     "alice",
	Email:        "alice@example.com",
	Password:     "pw123",
	Role:         "volunteer",
	Permissions:  []string{"submit_survey", "view_dashboard"},
	Organization: 4,
}

func TestNewRootCommand(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "pulse-session", h.root.Name)
	expected := []string{"login", "signup", "logout", "whoami", "can", "request", "status"}
	for _, name := range expected {
		assert.Contains(t, h.root.Subcommands, name)
	}
	assert.Len(t, h.root.Subcommands, len(expected))
}

func TestCommandUsage(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run())
	output := h.out.String()
	assert.Contains(t, output, "Usage: pulse-session <command> [args]")
	assert.Contains(t, output, "whoami")
	assert.Less(t, strings.Index(output, "  can"), strings.Index(output, "  whoami"), "commands are sorted")

	require.NoError(t, h.run("--help"))
	assert.Contains(t, h.out.String(), "Commands:")

	assert.EqualError(t, h.run("nope"), "unknown command: nope")
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t, authtest.WithAccount(alice))

	require.NoError(t, h.run("login", "--password", "pw123", "alice@example.com"))
	assert.Contains(t, h.out.String(), "Logged in as alice <alice@example.com> (role: volunteer)")

	require.NoError(t, h.run("whoami"))
	assert.Contains(t, h.out.String(), "Worker:       true")
	assert.Contains(t, h.out.String(), "Organization: 4")
	assert.Contains(t, h.out.String(), "Permissions:  submit_survey, view_dashboard")

	require.NoError(t, h.run("whoami", "--json"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &body))
	assert.Equal(t, "volunteer", body["role"])
	assert.Equal(t, true, body["is_worker"])
	assert.Equal(t, []interface{}{"submit_survey", "view_dashboard"}, body["permissions"])

	require.NoError(t, h.run("logout"))
	assert.Contains(t, h.out.String(), "Logged out")
	assert.Contains(t, h.err.String(), "Redirecting to /login")

	assert.ErrorIs(t, h.run("whoami"), ErrNotLoggedIn)
}

func TestLogin_Failures(t *testing.T) {
	h := newHarness(t, authtest.WithAccount(alice))

	assert.ErrorIs(t, h.run("login", "--identifier", "alice", "--password", "wrong"), ErrLoginFailed)
	assert.Error(t, h.run("login", "alice"))

	h.in.WriteString("pw123\n")
	require.NoError(t, h.run("login", "--identifier", "alice", "--password-stdin"))
}

func TestSignup(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("signup", "--email", "bob@example.com", "--password", "secret", "--name", "Bob van Dyke"))
	assert.Contains(t, h.out.String(), "Logged in as bob <bob@example.com> (role: user)")

	account, ok := h.srv.Account("bob")
	require.True(t, ok)
	assert.Equal(t, "Bob", account.FirstName)
	assert.Equal(t, "van Dyke", account.LastName)

	assert.ErrorIs(t, h.run("signup", "--email", "bob@example.com", "--password", "secret"), ErrSignupFailed)
	assert.Error(t, h.run("signup", "--password", "secret"))
}

func TestCan(t *testing.T) {
	h := newHarness(t, authtest.WithAccount(alice))

	assert.ErrorIs(t, h.run("can", "view_dashboard"), ErrNotLoggedIn)

	require.NoError(t, h.run("login", "--password", "pw123", "alice"))

	require.NoError(t, h.run("can", "view_dashboard"))
	assert.Equal(t, "yes\n", h.out.String())

	assert.ErrorIs(t, h.run("can", "manage_users"), ErrPermissionDenied)
	assert.Equal(t, "no\n", h.out.String())

	assert.Error(t, h.run("can"))
}

func TestRequest(t *testing.T) {
	h := newHarness(t, authtest.WithAccount(alice))
	require.NoError(t, h.run("login", "--password", "pw123", "alice"))

	require.NoError(t, h.run("request", "/profile/me/"))
	assert.Contains(t, h.err.String(), "200 OK")
	assert.Contains(t, h.out.String(), `"email":"alice@example.com"`)

	h.srv.Enqueue("/surveys/", http.StatusCreated, map[string]string{"status": "created"})
	require.NoError(t, h.run("request", "--method", "post", "--data", `{"title":"ward 9"}`, "--header", "X-Trace: cli", "/surveys/"))
	reqs := h.srv.RequestsTo("/surveys/")
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.JSONEq(t, `{"title":"ward 9"}`, reqs[0].Body)

	assert.Error(t, h.run("request", "--data", "{oops", "/surveys/"))
	assert.Error(t, h.run("request"))

	h.srv.Enqueue("/missing/", http.StatusNotFound, map[string]string{"detail": "Not found."})
	err := h.run("request", "/missing/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, h.out.String(), "Not found.")
}

func TestRequest_RefreshWithMetrics(t *testing.T) {
	h := newHarness(t, authtest.WithAccount(alice))
	require.NoError(t, h.run("login", "--password", "pw123", "alice"))

	pair, err := storage.Load(context.Background(), h.env.Store)
	require.NoError(t, err)
	h.srv.ExpireAccess(pair.Access)

	require.NoError(t, h.run("request", "--metrics", "/profile/me/"))
	assert.Equal(t, 1, h.srv.Hits(authtest.RefreshPath))
	assert.Contains(t, h.err.String(), `pulse_session_refresh_total{result="success"} 1`)
}

func TestStatus(t *testing.T) {
	h := newHarness(t, authtest.WithAccount(alice))

	require.NoError(t, h.run("status"))
	assert.Contains(t, h.out.String(), "Health:       ok")
	assert.Contains(t, h.out.String(), "Token store:  memory")
	assert.Contains(t, h.out.String(), "Session:      unauthenticated")

	require.NoError(t, h.run("login", "--password", "pw123", "alice"))
	require.NoError(t, h.run("status", "--metrics"))
	assert.Contains(t, h.out.String(), "Session:      authenticated as alice@example.com (volunteer)")
	assert.Contains(t, h.err.String(), "pulse_session_authenticated 1")

	h.srv.Enqueue(authtest.HealthPath, http.StatusServiceUnavailable, nil)
	assert.Error(t, h.run("status"))
	assert.Contains(t, h.out.String(), "unreachable")
}
