package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/logani/storefront/expiry"
	"github.com/logani/storefront/session"
	"github.com/rs/zerolog"
)

// ErrReauthRequired is returned when a new access token cannot be obtained. The
// session store has been cleared by the time a caller observes it.
var ErrReauthRequired = errors.New("reauthentication required")

// ErrNoRefreshToken is wrapped into ErrReauthRequired when the store holds no
// refresh token to exchange.
var ErrNoRefreshToken = errors.New("no refresh token stored")

// ErrMalformedTokens is wrapped into ErrReauthRequired when the exchange succeeds but
// does not return both tokens.
var ErrMalformedTokens = errors.New("refresh response missing tokens")

// Exchanger trades a refresh token for a new token set. The returned session carries
// the new access token, refresh token and expiry; its User is optional.
type Exchanger interface {
	Exchange(ctx context.Context, refreshToken string) (session.Session, error)
}

// ExchangeFunc adapts a function to [Exchanger].
type ExchangeFunc func(ctx context.Context, refreshToken string) (session.Session, error)

// Exchange calls f.
func (f ExchangeFunc) Exchange(ctx context.Context, refreshToken string) (session.Session, error) {
	return f(ctx, refreshToken)
}

// Hooks receive coordinator lifecycle notifications. Nil hooks are skipped.
//
// OnSettle and OnReauth run after the in-flight flag is cleared and every waiter has
// been released, so a slow hook delays only the leader's own return.
type Hooks struct {
	// OnExchange fires when a leader starts a network exchange.
	OnExchange func()
	// OnSettle fires after an exchange completes with its error (nil on success).
	OnSettle func(err error, elapsed time.Duration)
	// OnJoin fires when a caller queues behind an in-flight exchange.
	OnJoin func()
	// OnSkip fires when a leader finds the store already refreshed.
	OnSkip func()
	// OnReauth fires once per failed refresh, after the store was cleared.
	OnReauth func(cause error)
}

// Config configures a [Coordinator].
type Config struct {
	Store     session.Store
	Exchanger Exchanger
	Policy    expiry.Policy
	// Timeout bounds one exchange. The exchange ignores the caller's cancellation.
	Timeout time.Duration
	Logger  zerolog.Logger
	Hooks   Hooks
}

type outcome struct {
	token string
	err   error

	// notifications replayed by the leader after settle
	exchanged bool
	exchErr   error
	elapsed   time.Duration
	reauth    error
}

// Coordinator owns the refresh-in-progress flag and the queue of waiters for one
// session. It is safe for concurrent use.
type Coordinator struct {
	store     session.Store
	exchanger Exchanger
	policy    expiry.Policy
	timeout   time.Duration
	log       zerolog.Logger
	hooks     Hooks

	mu       sync.Mutex
	inFlight bool
	waiters  []chan outcome

	exchanges atomic.Uint64
}

// New validates cfg and returns a Coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, errors.New("refresh: session store required")
	}
	if cfg.Exchanger == nil {
		return nil, errors.New("refresh: exchanger required")
	}
	if cfg.Timeout < 0 {
		return nil, errors.New("refresh: negative timeout")
	}
	if cfg.Policy.Now == nil {
		cfg.Policy.Now = time.Now
	}
	return &Coordinator{
		store:     cfg.Store,
		exchanger: cfg.Exchanger,
		policy:    cfg.Policy,
		timeout:   cfg.Timeout,
		log:       cfg.Logger,
		hooks:     cfg.Hooks,
	}, nil
}

// Ensure returns a fresh access token.
//
// observed is the access token the caller found unusable (stale, or rejected with 401).
// When it is non-empty and the store already holds a different token that is not
// stale, that token is returned without a network call. Pass "" to force an exchange.
//
// If an exchange is already in flight the caller waits for it; a waiter whose ctx ends
// first returns ctx.Err() while the exchange continues for everyone else.
func (c *Coordinator) Ensure(ctx context.Context, observed string) (string, error) {
	c.mu.Lock()
	if c.inFlight {
		ch := make(chan outcome, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		if c.hooks.OnJoin != nil {
			c.hooks.OnJoin()
		}

		select {
		case o := <-ch:
			return o.token, o.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c.inFlight = true
	c.mu.Unlock()

	out := outcome{err: fmt.Errorf("%w: refresh aborted", ErrReauthRequired)}
	defer func() {
		c.settle(out)
		c.notify(out)
	}()

	out = c.lead(ctx, observed)
	return out.token, out.err
}

// InFlight reports whether an exchange is currently outstanding.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Waiting returns the number of callers queued behind the in-flight exchange.
func (c *Coordinator) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Exchanges returns the number of network exchanges started so far.
func (c *Coordinator) Exchanges() uint64 {
	return c.exchanges.Load()
}

// settle clears the flag and releases every waiter, in enqueue order, with out.
func (c *Coordinator) settle(out outcome) {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.inFlight = false
	c.mu.Unlock()

	for _, w := range waiters {
		w <- outcome{token: out.token, err: out.err}
	}
}

func (c *Coordinator) notify(out outcome) {
	if out.exchanged && c.hooks.OnSettle != nil {
		c.hooks.OnSettle(out.exchErr, out.elapsed)
	}
	if out.reauth != nil && c.hooks.OnReauth != nil {
		c.hooks.OnReauth(out.reauth)
	}
}

func (c *Coordinator) lead(ctx context.Context, observed string) outcome {
	ctx = context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	current, err := c.store.Load(ctx)
	if err != nil {
		return c.fail(ctx, err)
	}

	if observed != "" && current.AccessToken != "" && current.AccessToken != observed &&
		!c.policy.Stale(current.ExpiresAt) {
		if c.hooks.OnSkip != nil {
			c.hooks.OnSkip()
		}
		c.log.Debug().Msg("refresh skipped: session already renewed")
		return outcome{token: current.AccessToken}
	}

	if current.RefreshToken == "" {
		return c.fail(ctx, ErrNoRefreshToken)
	}

	c.exchanges.Add(1)
	if c.hooks.OnExchange != nil {
		c.hooks.OnExchange()
	}
	c.log.Debug().Int64("user_id", current.User.ID).Msg("refresh exchange started")

	start := time.Now()
	next, err := c.exchanger.Exchange(ctx, current.RefreshToken)
	if err == nil && (next.AccessToken == "" || next.RefreshToken == "") {
		err = ErrMalformedTokens
	}
	elapsed := time.Since(start)

	var out outcome
	if err != nil {
		out = c.fail(ctx, err)
	} else {
		renewed := current.WithTokens(next)
		if err := c.store.Save(ctx, renewed); err != nil {
			out = c.fail(ctx, err)
		} else {
			c.log.Debug().Int64("expires_at", renewed.ExpiresAt).Msg("refresh exchange completed")
			out = outcome{token: renewed.AccessToken}
		}
	}
	out.exchanged = true
	out.exchErr = err
	out.elapsed = elapsed
	return out
}

func (c *Coordinator) fail(ctx context.Context, cause error) outcome {
	if err := c.store.Clear(ctx); err != nil {
		c.log.Warn().Err(err).Msg("clear session after failed refresh")
	}
	c.log.Warn().Err(cause).Msg("refresh failed; session cleared")
	return outcome{err: fmt.Errorf("%w: %w", ErrReauthRequired, cause), reauth: cause}
}
