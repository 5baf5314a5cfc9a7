package authclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pulseofpeople/sessionkit/pkg/observability"
	"github.com/pulseofpeople/sessionkit/pkg/storage"
)

// Refresh outcomes recorded in metrics
const (
	refreshSuccess  = "success"
	refreshRejected = "rejected"
	refreshError    = "error"
	refreshReused   = "reused"
)

// Execute performs an authenticated request against endpoint.
//
// The current access token is sent as a bearer credential. A 401 with a
// refresh token on hand triggers a single refresh followed by exactly one
// retry, whose response is returned whatever its status. Concurrent 401s for
// the same access token share one refresh. When the refresh is rejected the
// tokens are cleared, the session-expired handler runs, and the original 401
// is returned.
//
// HTTP error statuses are returned as responses, not errors. The error is
// non-nil only for transport failures (ErrNetwork), unencodable bodies, or
// token store failures.
func (c *Client) Execute(ctx context.Context, endpoint string, opts *RequestOptions) (*Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	if observability.GetRequestID(ctx) == "" {
		ctx = observability.WithRequestID(ctx, uuid.NewString())
	}
	ctx, span := observability.Tracer().Start(ctx, "authclient.Execute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("auth.endpoint", endpoint),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := c.execute(ctx, span, method, endpoint, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.metrics.RecordRequest(method, resp.StatusCode, time.Since(start))
	return resp, nil
}

func (c *Client) execute(ctx context.Context, span trace.Span, method, endpoint string, opts *RequestOptions) (*Response, error) {
	logger := c.logger.ForContext(ctx).WithField("endpoint", endpoint)

	body, err := encodeBody(opts.Body)
	if err != nil {
		return nil, err
	}

	access, err := c.store.Get(ctx, storage.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read access token: %w", err)
	}

	resp, err := c.send(ctx, method, endpoint, body, opts.Header, access)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	refresh, err := c.store.Get(ctx, storage.RefreshToken)
	if err != nil {
		logger.WithError(err).Warn("Could not read refresh token, returning 401")
		return resp, nil
	}
	if refresh == "" {
		logger.Debug("401 without refresh token")
		return resp, nil
	}

	span.AddEvent("token.refresh")
	newAccess, ok := c.refreshAccess(ctx, access, refresh)
	if !ok {
		return resp, nil
	}

	return c.send(ctx, method, endpoint, body, opts.Header, newAccess)
}

// refreshAccess obtains the access token that supersedes sent. Callers that
// observe a 401 for the same token generation share a single refresh call.
func (c *Client) refreshAccess(ctx context.Context, sent, refresh string) (string, bool) {
	v, err, shared := c.refreshGroup.Do("refresh:"+sent, func() (interface{}, error) {
		// Detached so one caller's cancellation cannot end the session for all
		rctx := context.WithoutCancel(ctx)

		// Another generation may have completed since our request went out
		current, err := c.store.Get(rctx, storage.AccessToken)
		if err != nil {
			return "", fmt.Errorf("failed to re-read access token: %w", err)
		}
		if current != sent {
			if current == "" {
				return "", errSessionEnded
			}
			c.metrics.RecordRefresh(refreshReused)
			return current, nil
		}

		return c.doRefresh(rctx, refresh)
	})
	if err != nil {
		if !errors.Is(err, errSessionEnded) {
			c.logger.ForContext(ctx).WithError(err).Debug("Refresh did not produce a token")
		}
		return "", false
	}
	if shared {
		c.logger.ForContext(ctx).Debug("Shared in-flight token refresh")
	}
	return v.(string), true
}

func (c *Client) doRefresh(ctx context.Context, refresh string) (string, error) {
	logger := c.logger.ForContext(ctx)
	logger.Info("Access token rejected, refreshing")

	access, err := c.Refresh(ctx, refresh)
	if err != nil {
		result := refreshError
		if isRejection(err) {
			result = refreshRejected
		}
		c.metrics.RecordRefresh(result)
		logger.WithError(err).Warn("Token refresh failed, ending session")
		c.expireSession(ctx)
		return "", err
	}

	// The refresh token is left untouched
	if err := c.store.SetAccess(ctx, access); err != nil {
		c.metrics.RecordRefresh(refreshError)
		logger.WithError(err).Error("Failed to persist refreshed access token")
		return "", fmt.Errorf("failed to store refreshed access token: %w", err)
	}

	c.metrics.RecordRefresh(refreshSuccess)
	logger.Info("Token refreshed successfully")
	return access, nil
}

func (c *Client) expireSession(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.ForContext(ctx).WithError(err).Error("Failed to clear tokens after refresh failure")
	}
	c.metrics.RecordSessionExpired()
	if fn := c.sessionExpiredHandler(); fn != nil {
		fn()
	}
}
