package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pulseofpeople/sessionkit/pkg/authclient"
	"github.com/pulseofpeople/sessionkit/pkg/config"
	"github.com/pulseofpeople/sessionkit/pkg/observability"
	"github.com/pulseofpeople/sessionkit/pkg/session"
	"github.com/pulseofpeople/sessionkit/pkg/storage"
)

// Env wires the session stack for command execution
type Env struct {
	Config *config.Config
	In     io.Reader
	Out    io.Writer
	Err    io.Writer

	Logger   *observability.Logger
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Store    storage.Store
	Client   *authclient.Client
	Session  *session.Controller

	ctx    context.Context
	closer io.Closer
}

// NewEnv opens the configured token store and builds the client and
// controller. Logs go to errOut.
func NewEnv(ctx context.Context, cfg *config.Config, in io.Reader, out, errOut io.Writer) (*Env, error) {
	env := &Env{
		Config: cfg,
		In:     in,
		Out:    out,
		Err:    errOut,
		Logger: observability.NewLogger(cfg.Observability.Level(), errOut),
		ctx:    ctx,
	}

	if cfg.Observability.MetricsEnabled {
		env.Registry = prometheus.NewRegistry()
		env.Metrics = observability.NewMetrics(env.Registry)
	}

	store, closer, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}
	env.Store, env.closer = store, closer

	opts := []authclient.Option{
		authclient.WithTimeout(cfg.API.Timeout),
		authclient.WithLogger(env.Logger),
		authclient.WithMetrics(env.Metrics),
	}
	if cfg.Observability.OTelEnabled {
		opts = append(opts, authclient.WithTracing())
	}
	client, err := authclient.New(cfg.API.URL, store, opts...)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	env.Client = client

	loginRoute := cfg.API.LoginRoute
	env.Session = session.NewController(client, store,
		session.WithLogger(env.Logger),
		session.WithMetrics(env.Metrics),
		session.WithNavigator(session.NavigatorFunc(func() {
			fmt.Fprintf(errOut, "Redirecting to %s\n", loginRoute)
		})),
	)

	return env, nil
}

// Context returns the context commands run under
func (e *Env) Context() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

// Close releases the token store
func (e *Env) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}
