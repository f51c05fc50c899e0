package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
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

// Builder assembles a [Client]. A Builder can be used once.
type Builder struct {
	config     Config
	store      session.Store
	redis      redis.UniversalClient
	httpClient *http.Client
	logger     zerolog.Logger
	eventSink  EventSink
	now        func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets Config.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithStore injects a session store, overriding Config.Store.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithRedis supplies the Redis client for the redis store backend. The caller keeps
// ownership; Client.Close does not close it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient replaces the HTTP client. HTTP.Timeout is then ignored.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithLogger sets the logger. The default discards everything.
func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.logger = log
	return b
}

// WithEventSink sets the session event sink and enables events.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	b.config.Events.Enabled = true
	return b
}

// WithClock overrides the clock used for expiry decisions and event timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the client.
//
// A missing BaseURL is not an error: it is logged at warn level and every
// request-issuing call returns a KindConfig error, while Logout still clears the
// local session.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := b.logger.With().Str("component", "storefront").Logger()
	if cfg.BaseURL == "" {
		log.Warn().Msg("API base URL is not configured; requests will fail")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- SESSION STORE --------
	store, ownedRedis, err := b.buildStore(cfg)
	if err != nil {
		return nil, err
	}

	// -------- TRANSPORT --------
	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTP.Timeout}
	}
	transport, err := backend.NewTransport(cfg.BaseURL, httpClient, cfg.HTTP.Headers, cfg.HTTP.UserAgent)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:     cloneConfig(cfg),
		log:        log,
		store:      store,
		ownedRedis: ownedRedis,
		transport:  transport,
		policy:     expiry.Policy{Margin: cfg.Expiry.Margin, Now: now},
		metrics:    NewMetrics(cfg.Metrics),
		events: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Events.Enabled,
			BufferSize: cfg.Events.BufferSize,
			DropIfFull: cfg.Events.DropIfFull,
			Now:        now,
		}, b.eventSink),
	}

	// -------- FLOWS --------
	c.flows = flows.New(flows.Deps{
		Request: flows.RequestDeps{
			Configured:  transport.Configured,
			Sessions:    store,
			Stale:       c.policy.Stale,
			Refresher:   ensureFunc(c.ensure),
			Transport:   transport,
			RefreshPath: cfg.Endpoints.Refresh,
			OnSend:      func() { c.metrics.Inc(MetricRequestSent) },
			OnRetry:     func() { c.metrics.Inc(MetricRequestRetried) },
		},
		Auth: flows.AuthDeps{
			Configured:         transport.Configured,
			Transport:          transport,
			Sessions:           store,
			LoginPath:          cfg.Endpoints.Login,
			RegisterPath:       cfg.Endpoints.Register,
			ForgotPasswordPath: cfg.Endpoints.ForgotPassword,
			ResetPasswordPath:  cfg.Endpoints.ResetPassword,
		},
		Logout: flows.LogoutDeps{
			Configured: transport.Configured,
			Sessions:   store,
			Transport:  transport,
			LogoutPath: cfg.Endpoints.Logout,
			Warn: func(msg string, err error) {
				log.Warn().Err(err).Msg(msg)
			},
		},
		Exchange: flows.ExchangeDeps{
			Transport:   transport,
			RefreshPath: cfg.Endpoints.Refresh,
		},
	})

	// -------- REFRESH COORDINATOR --------
	coordinator, err := refresh.New(refresh.Config{
		Store:     store,
		Exchanger: c.flows.Exchanger(),
		Policy:    c.policy,
		Timeout:   cfg.HTTP.RefreshTimeout,
		Logger:    log,
		Hooks:     c.refreshHooks(),
	})
	if err != nil {
		return nil, err
	}
	c.coordinator = coordinator

	b.built = true
	return c, nil
}

// buildStore returns the session store and, when the builder dialed Redis itself,
// the client the Client must close.
func (b *Builder) buildStore(cfg Config) (session.Store, redis.UniversalClient, error) {
	if b.store != nil {
		return b.store, nil, nil
	}

	switch cfg.Store.Backend {
	case StoreFile:
		key, err := cfg.Store.key()
		if err != nil {
			return nil, nil, err
		}
		fs, err := session.NewFileStore(cfg.Store.FilePath, key)
		if err != nil {
			return nil, nil, err
		}
		return fs, nil, nil

	case StoreRedis:
		if b.redis != nil {
			return session.NewRedisStore(b.redis, cfg.Store.RedisKey), nil, nil
		}
		if cfg.Store.RedisAddr == "" {
			return nil, nil, errors.New("redis store requires Store.RedisAddr or WithRedis")
		}
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
		rs := session.NewRedisStore(rdb, cfg.Store.RedisKey)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis store: %w", err)
		}
		return rs, rdb, nil

	default:
		return session.NewMemoryStore(), nil, nil
	}
}
