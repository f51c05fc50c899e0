package storefront

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/logani/storefront/expiry"
	"github.com/logani/storefront/session"
)

// Config is the full client configuration. Start from [DefaultConfig] or
// [LoadConfig] and override fields.
type Config struct {
	// BaseURL of the storefront backend. An empty value is accepted; every
	// request-issuing call then fails with KindConfig before any network I/O.
	BaseURL   string          `yaml:"base_url"`
	Endpoints EndpointsConfig `yaml:"endpoints"`
	Expiry    ExpiryConfig    `yaml:"expiry"`
	HTTP      HTTPConfig      `yaml:"http"`
	Store     StoreConfig     `yaml:"store"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Events    EventsConfig    `yaml:"events"`
}

// EndpointsConfig holds the auth endpoint paths, relative to BaseURL.
type EndpointsConfig struct {
	Login          string `yaml:"login"`
	Register       string `yaml:"register"`
	Refresh        string `yaml:"refresh"`
	Logout         string `yaml:"logout"`
	ForgotPassword string `yaml:"forgot_password"`
	ResetPassword  string `yaml:"reset_password"`
}

// ExpiryConfig controls proactive refresh.
type ExpiryConfig struct {
	// Margin before expires_at at which a token counts as stale.
	Margin time.Duration `yaml:"margin"`
}

// HTTPConfig controls the transport.
type HTTPConfig struct {
	// Timeout bounds one HTTP exchange. Zero means no client-side timeout.
	Timeout time.Duration `yaml:"timeout"`
	// RefreshTimeout bounds the refresh exchange, which runs detached from the
	// caller's context.
	RefreshTimeout time.Duration     `yaml:"refresh_timeout"`
	UserAgent      string            `yaml:"user_agent"`
	Headers        map[string]string `yaml:"headers"`
}

// StoreBackend selects where the session is persisted.
type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreFile   StoreBackend = "file"
	StoreRedis  StoreBackend = "redis"
)

// StoreConfig selects and configures the session store. It is ignored when a store
// is injected with [Builder.WithStore].
type StoreConfig struct {
	Backend  StoreBackend `yaml:"backend"`
	FilePath string       `yaml:"file_path"`
	// EncryptionKey is a base64-encoded 32-byte key sealing the file store. Empty
	// leaves the file in plaintext.
	EncryptionKey string `yaml:"encryption_key"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisKey      string `yaml:"redis_key"`
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// EventsConfig controls the async session event dispatcher.
type EventsConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// Default endpoint paths of the storefront backend.
const (
	DefaultLoginPath          = "/users/login/"
	DefaultRegisterPath       = "/users/register/"
	DefaultRefreshPath        = "/users/refresh-token/"
	DefaultLogoutPath         = "/users/logout/"
	DefaultForgotPasswordPath = "/users/forgot-password/"
	DefaultResetPasswordPath  = "/users/reset-password/"
)

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Endpoints: EndpointsConfig{
			Login:          DefaultLoginPath,
			Register:       DefaultRegisterPath,
			Refresh:        DefaultRefreshPath,
			Logout:         DefaultLogoutPath,
			ForgotPassword: DefaultForgotPasswordPath,
			ResetPassword:  DefaultResetPasswordPath,
		},
		Expiry: ExpiryConfig{
			Margin: expiry.DefaultMargin,
		},
		HTTP: HTTPConfig{
			Timeout:        15 * time.Second,
			RefreshTimeout: 10 * time.Second,
			UserAgent:      "storefront-go",
			Headers: map[string]string{
				"Content-Type":               "application/json",
				"ngrok-skip-browser-warning": "true",
			},
		},
		Store: StoreConfig{
			Backend:  StoreMemory,
			RedisKey: session.DefaultRedisKey,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.HTTP.Headers != nil {
		out.HTTP.Headers = make(map[string]string, len(cfg.HTTP.Headers))
		for k, v := range cfg.HTTP.Headers {
			out.HTTP.Headers[k] = v
		}
	}
	return out
}

// Validate checks the configuration for values the client cannot run with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}

	if base := strings.TrimSpace(c.BaseURL); base != "" {
		u, err := url.Parse(base)
		if err != nil {
			return fmt.Errorf("BaseURL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("BaseURL scheme must be http or https, got %q", u.Scheme)
		}
		if u.Host == "" {
			return errors.New("BaseURL must include a host")
		}
	}

	for name, path := range map[string]string{
		"Login":          c.Endpoints.Login,
		"Register":       c.Endpoints.Register,
		"Refresh":        c.Endpoints.Refresh,
		"Logout":         c.Endpoints.Logout,
		"ForgotPassword": c.Endpoints.ForgotPassword,
		"ResetPassword":  c.Endpoints.ResetPassword,
	} {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("Endpoints.%s must not be empty", name)
		}
	}

	if c.Expiry.Margin < 0 || c.Expiry.Margin >= time.Hour {
		return errors.New("Expiry.Margin must be >= 0 and < 1h")
	}

	if c.HTTP.Timeout < 0 {
		return errors.New("HTTP.Timeout must be >= 0")
	}
	if c.HTTP.RefreshTimeout < 0 {
		return errors.New("HTTP.RefreshTimeout must be >= 0")
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StoreFile:
		if strings.TrimSpace(c.Store.FilePath) == "" {
			return errors.New("Store.FilePath required for file backend")
		}
	case StoreRedis:
		if strings.TrimSpace(c.Store.RedisKey) == "" {
			return errors.New("Store.RedisKey must not be empty")
		}
	default:
		return fmt.Errorf("Store.Backend %q not supported", c.Store.Backend)
	}
	if _, err := c.Store.key(); err != nil {
		return err
	}

	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events.BufferSize must be > 0 when events are enabled")
	}

	return nil
}

func (s StoreConfig) key() ([]byte, error) {
	if s.EncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("Store.EncryptionKey: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("Store.EncryptionKey must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// LintWarning is a configuration that is valid but probably unintended.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports valid but questionable settings.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	if strings.TrimSpace(c.BaseURL) == "" {
		ws = append(ws, LintWarning{"base_url_missing", "no BaseURL: every request will fail with a config error"})
	} else if strings.HasPrefix(strings.ToLower(c.BaseURL), "http://") {
		ws = append(ws, LintWarning{"base_url_plaintext", "BaseURL uses http: tokens travel unencrypted"})
	}
	if c.Expiry.Margin == 0 {
		ws = append(ws, LintWarning{"expiry_margin_zero", "zero expiry margin: tokens may expire in flight"})
	}
	if c.Store.Backend == StoreMemory {
		ws = append(ws, LintWarning{"store_ephemeral", "memory store: the session is lost on restart"})
	}
	if c.Store.Backend == StoreFile && c.Store.EncryptionKey == "" {
		ws = append(ws, LintWarning{"store_plaintext", "file store without encryption key: tokens are stored in plaintext"})
	}
	if c.HTTP.RefreshTimeout == 0 {
		ws = append(ws, LintWarning{"refresh_unbounded", "no refresh timeout: a hung refresh blocks every waiter"})
	}
	return ws
}
