package authtest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pulseofpeople/sessionkit/pkg/httputil"
	"github.com/pulseofpeople/sessionkit/pkg/observability"
)

// Endpoint paths served by the mock
const (
	LoginPath    = "/auth/login/"
	RegisterPath = "/auth/register/"
	RefreshPath  = "/auth/refresh/"
	ProfilePath  = "/profile/me/"
	HealthPath   = "/health/"
)

// Account is a user known to the mock auth service
type Account struct {
	ID           int
	Username     string
	Email        string
	Password     string
	FirstName    string
	LastName     string
	Role         string // empty omits the field from profile responses
	Permissions  []string
	AvatarURL    string
	Organization int // zero omits the field
	Ward         string
	Constituency string
}

// Reply is a scripted response returned instead of the normal handler
type Reply struct {
	Status int
	Body   interface{}
}

// RecordedRequest captures a request as seen by the mock
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
	Body          string
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics instruments the router with HTTP metrics
func WithMetrics(metrics *observability.ServerMetrics) Option {
	return func(s *Server) { s.metrics = metrics }
}

// WithAccount seeds an account
func WithAccount(a Account) Option {
	return func(s *Server) { s.addAccount(a) }
}

// WithRefreshDelay holds every refresh response for d
func WithRefreshDelay(d time.Duration) Option {
	return func(s *Server) { s.refreshDelay = d }
}

// Server is an in-memory implementation of the auth service HTTP API
type Server struct {
	mu           sync.Mutex
	accounts     map[int]*Account
	nextID       int
	access       map[string]int // access token -> account ID
	refresh      map[string]int // refresh token -> account ID
	scripts      map[string][]Reply
	hits         map[string]int
	requests     []RecordedRequest
	refreshDelay time.Duration

	logger  *observability.Logger
	metrics *observability.ServerMetrics
	handler http.Handler
}

// New creates a mock auth server handler
func New(opts ...Option) *Server {
	s := &Server{
		accounts: make(map[int]*Account),
		nextID:   1,
		access:   make(map[string]int),
		refresh:  make(map[string]int),
		scripts:  make(map[string][]Reply),
		hits:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = observability.OrNop(s.logger)

	router := mux.NewRouter()
	router.HandleFunc(LoginPath, s.handleLogin).Methods(http.MethodPost)
	router.HandleFunc(RegisterPath, s.handleRegister).Methods(http.MethodPost)
	router.HandleFunc(RefreshPath, s.handleRefresh).Methods(http.MethodPost)
	router.HandleFunc(ProfilePath, s.handleProfile).Methods(http.MethodGet)
	router.HandleFunc(HealthPath, s.handleHealth).Methods(http.MethodGet)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteDetail(w, http.StatusNotFound, "Not found.")
	})

	middlewares := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(s.logger),
		httputil.LoggingMiddleware(s.logger),
	}
	if s.metrics != nil {
		middlewares = append(middlewares, observability.HTTPMetricsMiddleware(s.metrics))
	}
	middlewares = append(middlewares,
		httputil.MaxBytesMiddleware(maxBodyBytes),
		s.record,
		s.scripted,
		httputil.ContentTypeMiddleware,
	)

	s.handler = httputil.Chain(middlewares...)(router)
	return s
}

// NewTestServer starts the mock on a loopback listener, closed with the test
func NewTestServer(t testing.TB, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	s := New(opts...)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// AddAccount registers an account and returns its assigned ID
func (s *Server) AddAccount(a Account) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAccount(a)
}

// UpsertAccount updates the account sharing a's username or email, keeping
// its ID and issued tokens, or adds a when there is none.
func (s *Server) UpsertAccount(a Account) (id int, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.lookupLocked(a.Username, a.Email); existing != nil {
		a.ID = existing.ID
		*existing = a
		return a.ID, false
	}
	return s.addAccount(a), true
}

func (s *Server) addAccount(a Account) int {
	if a.ID == 0 {
		a.ID = s.nextID
	}
	if a.ID >= s.nextID {
		s.nextID = a.ID + 1
	}
	s.accounts[a.ID] = &a
	return a.ID
}

// IssueTokens mints a fresh token pair for an existing account
func (s *Server) IssueTokens(accountID int) (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(accountID)
}

func (s *Server) issueLocked(accountID int) (access, refresh string) {
	access = "access-" + uuid.NewString()
	refresh = "refresh-" + uuid.NewString()
	s.access[access] = accountID
	s.refresh[refresh] = accountID
	return access, refresh
}

// ExpireAccess invalidates an access token so it is answered with 401
func (s *Server) ExpireAccess(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.access, token)
}

// RevokeRefresh invalidates a refresh token
func (s *Server) RevokeRefresh(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, token)
}

// Enqueue scripts the next response for path. Replies are consumed in order
// and bypass the normal handler entirely.
func (s *Server) Enqueue(path string, status int, body interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[path] = append(s.scripts[path], Reply{Status: status, Body: body})
}

// Hits returns how many requests reached path
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// Requests returns every recorded request in arrival order
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsTo returns the recorded requests for path
func (s *Server) RequestsTo(path string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Account returns a copy of the account with the given username or email
func (s *Server) Account(identifier string) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.lookupLocked(identifier, identifier); a != nil {
		return *a, true
	}
	return Account{}, false
}

func (s *Server) lookupLocked(username, email string) *Account {
	for _, a := range s.accounts {
		if username != "" && strings.EqualFold(a.Username, username) {
			return a
		}
		if email != "" && strings.EqualFold(a.Email, email) {
			return a
		}
	}
	return nil
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(r)
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}

		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.requests = append(s.requests, RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get(httputil.RequestIDHeader),
			Body:          body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) scripted(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		queue := s.scripts[r.URL.Path]
		var reply *Reply
		if len(queue) > 0 {
			reply = &queue[0]
			s.scripts[r.URL.Path] = queue[1:]
		}
		s.mu.Unlock()

		if reply == nil {
			next.ServeHTTP(w, r)
			return
		}
		if r.URL.Path == RefreshPath {
			s.delayRefresh(r)
		}

		s.logger.ForContext(r.Context()).
			WithField("path", r.URL.Path).
			Debugf("serving scripted %d", reply.Status)
		if reply.Body == nil {
			w.WriteHeader(reply.Status)
			return
		}
		_ = httputil.WriteJSON(w, reply.Status, reply.Body)
	})
}

func (s *Server) delayRefresh(r *http.Request) {
	if s.refreshDelay <= 0 {
		return
	}
	select {
	case <-time.After(s.refreshDelay):
	case <-r.Context().Done():
	}
}
