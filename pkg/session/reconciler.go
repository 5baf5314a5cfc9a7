package session

import (
	"context"
	"errors"

	"github.com/pulseofpeople/sessionkit/pkg/auth"
	"github.com/pulseofpeople/sessionkit/pkg/authclient"
	"github.com/pulseofpeople/sessionkit/pkg/observability"
	"github.com/pulseofpeople/sessionkit/pkg/storage"
)

// Executor performs authenticated requests
type Executor interface {
	Execute(ctx context.Context, endpoint string, opts *authclient.RequestOptions) (*authclient.Response, error)
}

// Reconciler turns the stored access token into a user by querying the profile endpoint
type Reconciler struct {
	executor Executor
	store    storage.Store
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewReconciler creates a reconciler. logger and metrics may be nil.
func NewReconciler(executor Executor, store storage.Store, logger *observability.Logger, metrics *observability.Metrics) *Reconciler {
	return &Reconciler{
		executor: executor,
		store:    store,
		logger:   observability.OrNop(logger).WithField("component", "reconciler"),
		metrics:  metrics,
	}
}

// Reconcile fetches the profile and normalises it. Any failure invalidates
// the session: tokens are cleared and nil is returned.
func (r *Reconciler) Reconcile(ctx context.Context) *auth.User {
	logger := r.logger.ForContext(ctx)

	resp, err := r.executor.Execute(ctx, authclient.ProfilePath, nil)
	if err != nil {
		return r.invalidate(ctx, "profile request failed", err)
	}
	if !resp.OK() {
		logger.WithField("status", resp.StatusCode).Info("Session invalid")
		return r.invalidate(ctx, "", nil)
	}

	var profile auth.Profile
	if err := resp.DecodeJSON(&profile); err != nil {
		return r.invalidate(ctx, "malformed profile payload", err)
	}
	user, err := profile.User()
	if err != nil {
		return r.invalidate(ctx, "unusable profile payload", err)
	}

	if user.Role == auth.RoleUnknown {
		logger.WithField("role", profile.Role).Warn("Profile carries an unrecognised role")
	}

	r.metrics.RecordReconcile("valid")
	logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"role":    string(user.Role),
	}).Info("Session valid")
	return user
}

func (r *Reconciler) invalidate(ctx context.Context, reason string, err error) *auth.User {
	logger := r.logger.ForContext(ctx)
	if err != nil {
		level := logger.WithError(err)
		if errors.Is(err, authclient.ErrNetwork) {
			level.Warn(reason)
		} else {
			level.Error(reason)
		}
	}

	if clearErr := r.store.Clear(ctx); clearErr != nil {
		logger.WithError(clearErr).Error("Failed to clear tokens")
	}
	r.metrics.RecordReconcile("invalid")
	return nil
}
