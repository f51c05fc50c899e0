package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/logani/storefront"
	"github.com/logani/storefront/internal/fakebackend"
	"github.com/logani/storefront/session"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const (
	demoEmail    = "demo@example.com"
	demoPassword = "demo-password-123"
)

func newDemoCmd(g *globalFlags) *cobra.Command {
	var (
		callers int
		delay   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Show single-flight refresh against an in-process backend",
		Long: `demo starts a fake storefront backend and an in-process Redis, stores a session whose
access token has already expired, and releases concurrent callers at once. Every caller
is served while the backend sees a single refresh call. A second round revokes the
renewed access token server-side to show the 401 replay path.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if callers <= 0 {
				return errors.New("--callers must be > 0")
			}
			ctx := commandContext(cmd)
			out := cmd.OutOrStdout()
			log := g.logger()

			fb, err := fakebackend.New(fakebackend.Options{RefreshDelay: delay})
			if err != nil {
				return err
			}
			srv := fb.Start()
			defer srv.Close()
			fb.AddUser("Demo", demoEmail, demoPassword)

			mr, err := miniredis.Run()
			if err != nil {
				return fmt.Errorf("start miniredis: %w", err)
			}
			defer mr.Close()
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			defer rdb.Close()

			cfg := storefront.DefaultConfig()
			cfg.BaseURL = srv.URL
			cfg.Store.Backend = storefront.StoreRedis
			c, err := storefront.New().
				WithConfig(cfg).
				WithRedis(rdb).
				WithLogger(log).
				WithLatencyHistograms(true).
				Build()
			if err != nil {
				return err
			}
			defer c.Close()

			if _, err := c.Login(ctx, demoEmail, demoPassword); err != nil {
				return describe(err)
			}
			stale, err := fb.IssueTokens(demoEmail, -time.Minute)
			if err != nil {
				return err
			}
			store := session.NewRedisStore(rdb, cfg.Store.RedisKey)
			sess, err := store.Load(ctx)
			if err != nil {
				return err
			}
			sess = sess.WithTokens(session.Session{
				AccessToken:  stale.Access,
				RefreshToken: stale.Refresh,
				ExpiresAt:    stale.ExpiresAt,
			})
			if err := store.Save(ctx, sess); err != nil {
				return err
			}

			fmt.Fprintf(out, "round 1: %d callers, stored access token expired\n", callers)
			before := fb.RefreshCalls()
			report, err := runProbe(ctx, c, callers, "/echo/")
			if err != nil {
				return describe(err)
			}
			report.print(out)
			fmt.Fprintf(out, "backend refresh calls: %d\n\n", fb.RefreshCalls()-before)

			renewed, err := store.Load(ctx)
			if err != nil {
				return err
			}
			fb.RevokeAccess(renewed.AccessToken)

			fmt.Fprintf(out, "round 2: %d callers, fresh access token revoked server-side\n", callers)
			before = fb.RefreshCalls()
			report, err = runProbe(ctx, c, callers, "/echo/")
			if err != nil {
				return describe(err)
			}
			report.print(out)
			fmt.Fprintf(out, "backend refresh calls: %d\n", fb.RefreshCalls()-before)
			return nil
		},
	}
	cmd.Flags().IntVarP(&callers, "callers", "n", 20, "concurrent callers per round")
	cmd.Flags().DurationVar(&delay, "refresh-delay", 200*time.Millisecond, "latency added to every refresh response")
	return cmd
}
