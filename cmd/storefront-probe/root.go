package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/logani/storefront"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	envFile    string
	baseURL    string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "storefront-probe",
		Short:         "Exercise the storefront API client",
		Long:          `storefront-probe logs in against a storefront backend, keeps the session in the configured store, and fires concurrent authenticated requests to show token refresh behaviour.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	root.PersistentFlags().StringVar(&g.baseURL, "base-url", "", "backend base URL (overrides config and "+storefront.EnvBaseURL+")")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newLoginCmd(g),
		newLogoutCmd(g),
		newWhoamiCmd(g),
		newProbeCmd(g),
		newDemoCmd(g),
	)
	return root
}

func (g *globalFlags) logger() zerolog.Logger {
	level := zerolog.InfoLevel
	if g.verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
}

// openClient loads the configuration and builds a client. With the redis backend and
// no address configured, an in-process miniredis stands in; the session then lives
// only as long as the command.
func (g *globalFlags) openClient() (*storefront.Client, func(), error) {
	var envFiles []string
	if g.envFile != "" {
		envFiles = append(envFiles, g.envFile)
	}
	cfg, err := storefront.LoadConfig(g.configPath, envFiles...)
	if err != nil {
		return nil, nil, err
	}
	if g.baseURL != "" {
		cfg.BaseURL = g.baseURL
	}
	if cfg.Store.Backend == storefront.StoreMemory {
		cfg.Store.Backend = storefront.StoreFile
		if cfg.Store.FilePath == "" {
			cfg.Store.FilePath = defaultSessionPath()
		}
	}

	log := g.logger()
	for _, w := range cfg.Lint() {
		log.Debug().Str("code", w.Code).Msg(w.Message)
	}

	b := storefront.New().WithConfig(cfg).WithLogger(log).WithLatencyHistograms(true)
	cleanup := func() {}
	if cfg.Store.Backend == storefront.StoreRedis && cfg.Store.RedisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		log.Warn().Str("addr", mr.Addr()).Msg("no redis address configured; using in-process miniredis")
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		b.WithRedis(rdb)
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
	}

	c, err := b.Build()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return c, func() {
		_ = c.Close()
		cleanup()
	}, nil
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".storefront-session"
	}
	return filepath.Join(dir, "storefront", "session")
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
