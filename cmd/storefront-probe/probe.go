package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/logani/storefront"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newProbeCmd(g *globalFlags) *cobra.Command {
	var (
		concurrency int
		path        string
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Fire concurrent authenticated GETs and report refresh calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency <= 0 {
				return errors.New("--concurrency must be > 0")
			}
			c, done, err := g.openClient()
			if err != nil {
				return err
			}
			defer done()

			report, err := runProbe(commandContext(cmd), c, concurrency, path)
			if err != nil {
				return describe(err)
			}
			report.print(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 10, "number of simultaneous requests")
	cmd.Flags().StringVarP(&path, "path", "p", "/clients/client-by-bearer-token", "endpoint to GET")
	return cmd
}

type probeReport struct {
	latency   latencies
	statuses  map[int]int
	exchanges uint64
	joined    uint64
	skipped   uint64
	retried   uint64
	firstErr  error
}

// runProbe releases every caller at once so they all observe the same session. It only
// fails outright when no request could be sent at all.
func runProbe(ctx context.Context, c *storefront.Client, concurrency int, path string) (probeReport, error) {
	before := c.MetricsSnapshot()

	var (
		mu       sync.Mutex
		samples  = make([]time.Duration, 0, concurrency)
		statuses = make(map[int]int)
		firstErr error
		failed   int
		start    = make(chan struct{})
	)

	grp, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		grp.Go(func() error {
			<-start
			began := time.Now()
			res, err := c.Do(gctx, storefront.Request{Method: http.MethodGet, Path: path})
			elapsed := time.Since(began)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				if firstErr == nil {
					firstErr = err
				}
				return nil
			}
			samples = append(samples, elapsed)
			statuses[res.StatusCode]++
			return nil
		})
	}

	began := time.Now()
	close(start)
	_ = grp.Wait()
	total := time.Since(began)

	after := c.MetricsSnapshot()
	delta := func(id storefront.MetricID) uint64 { return after.Counters[id] - before.Counters[id] }

	report := probeReport{
		latency:   summarize(total, samples, failed),
		statuses:  statuses,
		exchanges: delta(storefront.MetricRefreshExchange),
		joined:    delta(storefront.MetricRefreshJoined),
		skipped:   delta(storefront.MetricRefreshSkipped),
		retried:   delta(storefront.MetricRequestRetried),
		firstErr:  firstErr,
	}
	if len(samples) == 0 && firstErr != nil {
		return report, firstErr
	}
	return report, nil
}

func (r probeReport) print(w io.Writer) {
	r.latency.print(w)
	codes := make([]int, 0, len(r.statuses))
	for code := range r.statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  status %d: %d\n", code, r.statuses[code])
	}
	fmt.Fprintf(w, "refresh: exchanges=%d joined=%d skipped=%d retried=%d\n",
		r.exchanges, r.joined, r.skipped, r.retried)
	if r.firstErr != nil {
		fmt.Fprintf(w, "first error: %v\n", r.firstErr)
	}
}
