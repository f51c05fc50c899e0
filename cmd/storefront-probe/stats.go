package main

import (
	"fmt"
	"io"
	"slices"
	"time"
)

// latencies summarises how long probe callers waited. Callers that joined a refresh
// wait about one exchange longer than the rest, so spread approximates its cost.
type latencies struct {
	wall    time.Duration
	ok      int
	failed  int
	fastest time.Duration
	median  time.Duration
	slowest time.Duration
}

func summarize(wall time.Duration, samples []time.Duration, failed int) latencies {
	l := latencies{wall: wall, ok: len(samples), failed: failed}
	if len(samples) == 0 {
		return l
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	l.fastest = sorted[0]
	l.median = sorted[(len(sorted)-1)/2]
	l.slowest = sorted[len(sorted)-1]
	return l
}

func (l latencies) spread() time.Duration {
	return l.slowest - l.fastest
}

func (l latencies) print(w io.Writer) {
	fmt.Fprintf(w, "requests: ok=%d failed=%d wall=%s\n", l.ok, l.failed, l.wall.Round(time.Millisecond))
	if l.ok == 0 {
		return
	}
	fmt.Fprintf(w, "  latency: fastest=%s median=%s slowest=%s spread=%s\n",
		l.fastest.Round(time.Microsecond),
		l.median.Round(time.Microsecond),
		l.slowest.Round(time.Microsecond),
		l.spread().Round(time.Microsecond))
}
