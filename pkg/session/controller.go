package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/pulseofpeople/sessionkit/pkg/auth"
	"github.com/pulseofpeople/sessionkit/pkg/authclient"
	"github.com/pulseofpeople/sessionkit/pkg/observability"
	"github.com/pulseofpeople/sessionkit/pkg/storage"
)

// AuthService is the subset of the auth client the controller drives
type AuthService interface {
	Executor
	Login(ctx context.Context, req authclient.LoginRequest) (auth.TokenPair, error)
	Register(ctx context.Context, req authclient.RegisterRequest) error
	SetSessionExpiredHandler(fn authclient.SessionExpiredFunc)
}

// State is the coarse session state
type State string

const (
	StateInitializing    State = "initializing"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

// Snapshot is a consistent copy of the session
type Snapshot struct {
	User           *auth.User `json:"user"`
	IsLoading      bool       `json:"is_loading"`
	IsInitializing bool       `json:"is_initializing"`
	State          State      `json:"state"`
}

// SignupParams holds the registration form fields
type SignupParams struct {
	Email    string
	Password string
	Name     string // split on the first space into first and last name
	Role     string // requested role; empty means auth.DefaultRole
}

// Option configures a Controller
type Option func(*Controller)

// WithNavigator sets where logout and session expiry send the user
func WithNavigator(n Navigator) Option {
	return func(c *Controller) { c.navigator = n }
}

// WithLogger sets the controller logger
func WithLogger(logger *observability.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithMetrics records login, signup and logout metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// Controller owns the in-memory session. It is the only writer of the
// current user; a nil user is the authoritative logged-out signal.
type Controller struct {
	service    AuthService
	store      storage.Store
	reconciler *Reconciler
	navigator  Navigator
	logger     *observability.Logger
	metrics    *observability.Metrics

	mu             sync.RWMutex
	user           *auth.User
	isLoading      bool
	isInitializing bool
}

// NewController creates a controller in the initializing state and installs
// its session-expired handler on service, replacing any previous one.
func NewController(service AuthService, store storage.Store, opts ...Option) *Controller {
	c := &Controller{
		service:        service,
		store:          store,
		navigator:      nopNavigator{},
		isInitializing: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = observability.OrNop(c.logger).WithField("component", "session")
	c.reconciler = NewReconciler(service, store, c.logger, c.metrics)

	service.SetSessionExpiredHandler(c.handleSessionExpired)
	return c
}

// Initialize runs the one-time startup reconciliation. Without a stored
// access token no request is made.
func (c *Controller) Initialize(ctx context.Context) *auth.User {
	defer c.finishInitializing()

	logger := c.logger.ForContext(ctx)
	logger.Debug("Checking for existing session")

	access, err := c.store.Get(ctx, storage.AccessToken)
	if err != nil {
		logger.WithError(err).Error("Failed to read access token")
		return nil
	}
	if access == "" {
		logger.Debug("No token found")
		return nil
	}

	user := c.reconciler.Reconcile(ctx)
	c.setUser(user)
	return user.Clone()
}

// Login authenticates with identifier tried first as a username, then, only
// if the server rejects that, as an email. It reports success.
func (c *Controller) Login(ctx context.Context, identifier, password string) bool {
	c.setLoading(true)
	defer c.setLoading(false)
	return c.login(ctx, identifier, password)
}

func (c *Controller) login(ctx context.Context, identifier, password string) bool {
	logger := c.logger.ForContext(ctx).WithField("identifier", identifier)
	logger.Info("Attempting login")

	pair, via, err := c.authenticate(ctx, identifier, password)
	if err != nil {
		result := "rejected"
		if !errors.Is(err, authclient.ErrRejected) {
			result = "error"
		}
		c.metrics.RecordLogin(result, via)
		logger.WithError(err).Warn("Login failed")
		return false
	}

	if err := c.store.Set(ctx, pair.Access, pair.Refresh); err != nil {
		c.metrics.RecordLogin("error", via)
		logger.WithError(err).Error("Failed to store tokens")
		return false
	}

	// Either branch below settles the session, so a login without a prior
	// Initialize still leaves the initializing state.
	user := c.reconciler.Reconcile(ctx)
	c.setUser(user)
	c.finishInitializing()
	if user == nil {
		c.metrics.RecordLogin("profile_failed", via)
		logger.Warn("Login succeeded but the profile could not be loaded")
		return false
	}

	c.metrics.RecordLogin("success", via)
	logger.WithField("role", string(user.Role)).Info("Login successful")
	return true
}

func (c *Controller) authenticate(ctx context.Context, identifier, password string) (auth.TokenPair, string, error) {
	pair, err := c.service.Login(ctx, authclient.LoginRequest{Username: identifier, Password: password})
	if err == nil || !errors.Is(err, authclient.ErrRejected) {
		return pair, "username", err
	}

	c.logger.ForContext(ctx).Debug("Username login rejected, retrying as email")
	pair, err = c.service.Login(ctx, authclient.LoginRequest{Email: identifier, Password: password})
	return pair, "email", err
}

// Signup registers an account and then logs in with the same credentials.
// The requested role is not transmitted; the server assigns the role.
func (c *Controller) Signup(ctx context.Context, params SignupParams) bool {
	c.setLoading(true)
	defer c.setLoading(false)

	logger := c.logger.ForContext(ctx).WithField("email", params.Email)
	logger.Info("Attempting signup")

	if params.Role != "" {
		if _, err := auth.ParseRole(params.Role); err != nil {
			logger.WithError(err).Warn("Requested role is not recognised")
		}
	}

	firstName, lastName := SplitName(params.Name)
	err := c.service.Register(ctx, authclient.RegisterRequest{
		Username:        auth.EmailLocalPart(params.Email),
		Email:           params.Email,
		Password:        params.Password,
		PasswordConfirm: params.Password,
		FirstName:       firstName,
		LastName:        lastName,
	})
	if err != nil {
		result := "rejected"
		if !errors.Is(err, authclient.ErrRejected) {
			result = "error"
		}
		c.metrics.RecordSignup(result)
		logger.WithError(err).Warn("Signup failed")
		return false
	}

	c.metrics.RecordSignup("success")
	logger.Info("Signup successful, logging in")
	return c.login(ctx, params.Email, params.Password)
}

// SplitName splits a display name on its first space
func SplitName(name string) (first, last string) {
	first, last, _ = strings.Cut(name, " ")
	return first, last
}

// Logout clears tokens and the user, then redirects to login. It is safe to
// call repeatedly.
func (c *Controller) Logout(ctx context.Context) {
	c.logger.ForContext(ctx).Info("Logging out")

	if err := c.store.Clear(ctx); err != nil {
		c.logger.ForContext(ctx).WithError(err).Error("Failed to clear tokens")
	}
	c.setUser(nil)
	c.metrics.RecordLogout()
	c.navigator.RedirectToLogin()
}

func (c *Controller) handleSessionExpired() {
	c.logger.Warn("Session expired, redirecting to login")
	c.setUser(nil)
	c.navigator.RedirectToLogin()
}

// User returns a copy of the current user, or nil when logged out
func (c *Controller) User() *auth.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user.Clone()
}

// IsLoading reports whether a login or signup exchange is in flight
func (c *Controller) IsLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isLoading
}

// IsInitializing reports whether the startup reconciliation is still running
func (c *Controller) IsInitializing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isInitializing
}

// Snapshot returns the whole session under one lock
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state := StateUnauthenticated
	switch {
	case c.isInitializing:
		state = StateInitializing
	case c.user != nil:
		state = StateAuthenticated
	}

	return Snapshot{
		User:           c.user.Clone(),
		IsLoading:      c.isLoading,
		IsInitializing: c.isInitializing,
		State:          state,
	}
}

// HasPermission reports whether the current user holds p
func (c *Controller) HasPermission(p auth.Permission) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user.HasPermission(p)
}

// IsWorker reports whether the current user holds a field-worker role
func (c *Controller) IsWorker() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user.IsWorker()
}

func (c *Controller) setUser(user *auth.User) {
	c.mu.Lock()
	c.user = user
	c.mu.Unlock()
	c.metrics.SetAuthenticated(user != nil)
}

func (c *Controller) finishInitializing() {
	c.mu.Lock()
	c.isInitializing = false
	c.mu.Unlock()
}

func (c *Controller) setLoading(loading bool) {
	c.mu.Lock()
	c.isLoading = loading
	c.mu.Unlock()
}
