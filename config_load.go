package storefront

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by [LoadConfig].
const (
	EnvBaseURL      = "STOREFRONT_API_URL"
	EnvStoreBackend = "STOREFRONT_STORE_BACKEND"
	EnvStorePath    = "STOREFRONT_STORE_PATH"
	EnvRedisAddr    = "STOREFRONT_REDIS_ADDR"
	EnvStoreKey     = "STOREFRONT_STORE_KEY"
	EnvExpiryMargin = "STOREFRONT_EXPIRY_MARGIN"
)

// LoadConfig builds a Config from defaults, then the YAML file at path (skipped when
// path is empty), then environment variables. envFiles are loaded into the process
// environment first with godotenv; missing files are ignored and variables already
// set are not overridden.
func LoadConfig(path string, envFiles ...string) (Config, error) {
	cfg := defaultConfig()

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok {
		cfg.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvStoreBackend); ok && v != "" {
		cfg.Store.Backend = StoreBackend(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := lookup(EnvStorePath); ok && v != "" {
		cfg.Store.FilePath = v
	}
	if v, ok := lookup(EnvRedisAddr); ok && v != "" {
		cfg.Store.RedisAddr = v
	}
	if v, ok := lookup(EnvStoreKey); ok && v != "" {
		cfg.Store.EncryptionKey = v
	}
	if v, ok := lookup(EnvExpiryMargin); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvExpiryMargin, err)
		}
		cfg.Expiry.Margin = d
	}
	return nil
}
