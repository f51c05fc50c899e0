package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/logani/storefront/expiry"
	"github.com/logani/storefront/internal/audit"
	"github.com/logani/storefront/internal/backend"
	"github.com/logani/storefront/internal/flows"
	"github.com/logani/storefront/refresh"
	"github.com/logani/storefront/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Client is the authenticated API access layer. Build one with [New].
type Client struct {
	config      Config
	log         zerolog.Logger
	store       session.Store
	ownedRedis  redis.UniversalClient
	transport   *backend.Transport
	policy      expiry.Policy
	coordinator *refresh.Coordinator
	flows       flows.Service
	metrics     *Metrics
	events      *audit.Dispatcher

	logoutMu    sync.Mutex
	logoutHooks []func(ctx context.Context) error

	closed    atomic.Bool
	closeOnce sync.Once
}

type ensureFunc func(ctx context.Context, observed string) (string, error)

func (f ensureFunc) Ensure(ctx context.Context, observed string) (string, error) {
	return f(ctx, observed)
}

func (c *Client) ensure(ctx context.Context, observed string) (string, error) {
	return c.coordinator.Ensure(ctx, observed)
}

// Do sends req through the request pipeline and returns the response for every
// status code. Errors are reserved for failures where no usable response exists:
// KindConfig, KindStore, KindReauth and KindTransient.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	const op = "do"
	if c.closed.Load() {
		return nil, &Error{Kind: KindConfig, Op: op, Message: "client closed", Err: ErrClosed}
	}

	start := time.Now()
	res := c.flows.Request(ctx, backend.Call{
		Method: req.Method,
		Path:   req.Path,
		Query:  req.Query,
		Header: req.Header,
		Body:   req.Body,
	})
	c.metrics.Observe(MetricRequestLatency, time.Since(start))

	switch res.Failure {
	case flows.RequestFailureNone:
	case flows.RequestFailureConfig:
		return nil, configError(op)
	case flows.RequestFailureStore:
		return nil, &Error{Kind: KindStore, Op: op, Message: "session store unavailable", Err: res.Err}
	case flows.RequestFailureReauth:
		return nil, reauthError(op, res.Err)
	default:
		return nil, &Error{Kind: KindTransient, Op: op, Message: "request failed", Err: res.Err}
	}

	return &Response{
		StatusCode: res.Reply.Status,
		Header:     res.Reply.Header,
		Body:       res.Reply.Body,
		Refreshed:  res.Refreshed,
		Retried:    res.Retried,
	}, nil
}

// DoJSON is Do for JSON endpoints. req.JSON is marshalled into the body when set. A
// non-2xx response becomes a KindServer error carrying the backend's status, code
// and message; otherwise the body is decoded into out (when out is non-nil and the
// body is not empty).
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	const op = "do json"
	if req.Body == nil && req.JSON != nil {
		body, err := json.Marshal(req.JSON)
		if err != nil {
			return &Error{Kind: KindUnknown, Op: op, Message: "encode request", Err: err}
		}
		req.Body = body
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		apiErr := backend.ParseError(resp.StatusCode, resp.Body, http.StatusText(resp.StatusCode))
		return &Error{
			Kind:    KindServer,
			Op:      fmt.Sprintf("%s %s", methodOrGet(req.Method), req.Path),
			Status:  apiErr.Status,
			Code:    apiErr.Code,
			Message: apiErr.Message,
		}
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := resp.DecodeJSON(out); err != nil {
		return &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Message: "malformed response body", Err: err}
	}
	return nil
}

// EnsureFreshToken returns an access token that is not stale, refreshing first if
// needed. With no stored session it returns a KindReauth error wrapping
// ErrNotAuthenticated.
func (c *Client) EnsureFreshToken(ctx context.Context) (string, error) {
	const op = "ensure fresh token"
	sess, err := c.store.Load(ctx)
	if err != nil {
		return "", &Error{Kind: KindStore, Op: op, Message: "session store unavailable", Err: err}
	}
	if !sess.Authenticated() {
		return "", reauthError(op, ErrNotAuthenticated)
	}
	if !c.policy.Stale(sess.ExpiresAt) {
		return sess.AccessToken, nil
	}
	if !c.transport.Configured() {
		return "", configError(op)
	}
	token, err := c.coordinator.Ensure(ctx, sess.AccessToken)
	if err != nil {
		if IsReauthRequired(err) {
			return "", reauthError(op, err)
		}
		return "", &Error{Kind: KindTransient, Op: op, Message: "refresh interrupted", Err: err}
	}
	return token, nil
}

// Session returns the stored session. The zero Session means logged out.
func (c *Client) Session(ctx context.Context) (session.Session, error) {
	sess, err := c.store.Load(ctx)
	if err != nil {
		return session.Session{}, &Error{Kind: KindStore, Op: "session", Message: "session store unavailable", Err: err}
	}
	return sess, nil
}

// Config returns a copy of the client's configuration.
func (c *Client) Config() Config {
	return cloneConfig(c.config)
}

// MetricsSnapshot returns the current counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// EventsDropped returns how many session events were dropped on a full buffer.
func (c *Client) EventsDropped() uint64 {
	return c.events.Dropped()
}

// RefreshInFlight reports whether a refresh exchange is outstanding.
func (c *Client) RefreshInFlight() bool {
	return c.coordinator.InFlight()
}

// Close flushes pending events and releases the Redis client the builder dialed. The
// stored session is kept.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.events.Close()
		if c.ownedRedis != nil {
			err = c.ownedRedis.Close()
		}
	})
	return err
}

func (c *Client) refreshHooks() refresh.Hooks {
	return refresh.Hooks{
		OnExchange: func() { c.metrics.Inc(MetricRefreshExchange) },
		OnSettle: func(err error, elapsed time.Duration) {
			c.metrics.Observe(MetricRefreshLatency, elapsed)
			if err != nil {
				c.metrics.Inc(MetricRefreshFailure)
				c.emit(context.Background(), EventRefreshFailed, 0, err, nil)
				return
			}
			c.metrics.Inc(MetricRefreshSuccess)
			c.emit(context.Background(), EventRefresh, 0, nil, nil)
		},
		OnJoin: func() { c.metrics.Inc(MetricRefreshJoined) },
		OnSkip: func() { c.metrics.Inc(MetricRefreshSkipped) },
		OnReauth: func(cause error) {
			c.metrics.Inc(MetricReauthRequired)
			c.emit(context.Background(), EventReauthRequired, 0, cause, nil)
		},
	}
}

func methodOrGet(m string) string {
	if m == "" {
		return http.MethodGet
	}
	return m
}
