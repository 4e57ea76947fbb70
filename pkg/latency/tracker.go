// Package latency measures round-trip time between sending a frame and
// receiving the recognizer's prediction for it, and counts frames dropped
// before they were sent.
package latency

import (
	"context"
	"expvar"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	// PendingTTL is how long a sent frame waits for its prediction before it
	// is considered lost.
	PendingTTL = 10 * time.Second

	// ReportWindow is the aggregation window for reports.
	ReportWindow = 5 * time.Second

	// PruneInterval is how often lost frames are evicted.
	PruneInterval = time.Second
)

// Report summarizes one window.
type Report struct {
	AvgLatencyMs     float64 `json:"avg_latency_ms"`
	MaxLatencyMs     float64 `json:"max_latency_ms"`
	ThroughputPerSec float64 `json:"throughput_per_sec"`
	Dropped          int     `json:"dropped"`
	Lost             int     `json:"lost"`
	Pending          int     `json:"pending"`
}

// Metrics mirrors the latest report into expvar values.
type Metrics struct {
	AvgLatencyMs *expvar.Float
	MaxLatencyMs *expvar.Float
	Throughput   *expvar.Float
	Dropped      *expvar.Int // cumulative
	Lost         *expvar.Int // cumulative
	Vars         *expvar.Map
}

func newMetrics() *Metrics {
	m := &Metrics{
		AvgLatencyMs: &expvar.Float{},
		MaxLatencyMs: &expvar.Float{},
		Throughput:   &expvar.Float{},
		Dropped:      &expvar.Int{},
		Lost:         &expvar.Int{},
		Vars:         &expvar.Map{},
	}
	m.Vars.Init()
	m.Vars.Set("avg_latency_ms", m.AvgLatencyMs)
	m.Vars.Set("max_latency_ms", m.MaxLatencyMs)
	m.Vars.Set("throughput_per_sec", m.Throughput)
	m.Vars.Set("dropped_total", m.Dropped)
	m.Vars.Set("lost_total", m.Lost)
	return m
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now for RTT measurement.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithTTL overrides PendingTTL.
func WithTTL(ttl time.Duration) Option {
	return func(t *Tracker) { t.ttl = ttl }
}

// WithWindow overrides ReportWindow.
func WithWindow(window time.Duration) Option {
	return func(t *Tracker) { t.window = window }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// Tracker correlates sent frames with received predictions by frame ts.
// It is observational only and never influences the pipeline.
type Tracker struct {
	now     func() time.Time
	ttl     time.Duration
	window  time.Duration
	logger  *slog.Logger
	metrics *Metrics

	pending *ttlcache.Cache[int64, time.Time]
	expired atomic.Int64 // lifetime count of TTL evictions

	mu      sync.Mutex
	sum     time.Duration
	max     time.Duration
	count   int
	dropped int
	lost    int
	last    Report
}

// NewTracker creates a Tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		now:     time.Now,
		ttl:     PendingTTL,
		window:  ReportWindow,
		logger:  slog.Default(),
		metrics: newMetrics(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.pending = ttlcache.New[int64, time.Time](
		ttlcache.WithTTL[int64, time.Time](t.ttl),
		ttlcache.WithDisableTouchOnHit[int64, time.Time](),
	)
	t.pending.OnEviction(t.onEviction)
	return t
}

// onEviction counts frames whose prediction never arrived. Deletions by
// Correlate or Close are not losses.
func (t *Tracker) onEviction(_ context.Context, reason ttlcache.EvictionReason, _ *ttlcache.Item[int64, time.Time]) {
	if reason != ttlcache.EvictionReasonExpired {
		return
	}
	t.mu.Lock()
	t.lost++
	t.mu.Unlock()
	t.metrics.Lost.Add(1)
	t.expired.Add(1)
}

// Metrics returns the expvar values the tracker maintains.
func (t *Tracker) Metrics() *Metrics {
	return t.metrics
}

// FrameSent records that the frame with ts went out now.
func (t *Tracker) FrameSent(ts int64) {
	t.pending.Set(ts, t.now(), ttlcache.DefaultTTL)
}

// FrameDropped counts a frame that was refused before sending.
func (t *Tracker) FrameDropped(ts int64) {
	t.mu.Lock()
	t.dropped++
	t.mu.Unlock()
	t.metrics.Dropped.Add(1)
}

// Correlate matches a prediction to its pending frame. It returns the RTT
// and true when the frame was still pending.
func (t *Tracker) Correlate(ts int64) (time.Duration, bool) {
	item := t.pending.Get(ts)
	if item == nil {
		return 0, false
	}
	t.pending.Delete(ts)

	rtt := t.now().Sub(item.Value())
	if rtt < 0 {
		rtt = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sum += rtt
	t.count++
	if rtt > t.max {
		t.max = rtt
	}
	return rtt, true
}

// Pending returns the number of frames still waiting for a prediction.
// Frames past the TTL are not counted even before Prune removes them.
func (t *Tracker) Pending() int {
	return t.pending.Len()
}

// Prune evicts frames that have waited longer than the TTL and returns how
// many were evicted. Evicted frames never contribute to RTT statistics.
func (t *Tracker) Prune() int {
	before := t.expired.Load()
	t.pending.DeleteExpired()
	return int(t.expired.Load() - before)
}

// Report computes the window summary and resets the window counters.
func (t *Tracker) Report() Report {
	t.mu.Lock()
	r := Report{
		MaxLatencyMs:     float64(t.max) / float64(time.Millisecond),
		ThroughputPerSec: float64(t.count) / t.window.Seconds(),
		Dropped:          t.dropped,
		Lost:             t.lost,
	}
	if t.count > 0 {
		r.AvgLatencyMs = float64(t.sum) / float64(t.count) / float64(time.Millisecond)
	}
	t.sum, t.max, t.count, t.dropped, t.lost = 0, 0, 0, 0, 0
	t.mu.Unlock()

	r.Pending = t.pending.Len()

	t.metrics.AvgLatencyMs.Set(r.AvgLatencyMs)
	t.metrics.MaxLatencyMs.Set(r.MaxLatencyMs)
	t.metrics.Throughput.Set(r.ThroughputPerSec)

	t.mu.Lock()
	t.last = r
	t.mu.Unlock()
	return r
}

// Last returns the most recent report.
func (t *Tracker) Last() Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Run prunes and reports on independent tickers until ctx is done. fn may be
// nil; reports are always logged at debug level.
func (t *Tracker) Run(ctx context.Context, fn func(Report)) {
	prune := time.NewTicker(PruneInterval)
	defer prune.Stop()
	report := time.NewTicker(t.window)
	defer report.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-prune.C:
			if n := t.Prune(); n > 0 {
				t.logger.Debug("Pruned lost frames", slog.Int("count", n))
			}
		case <-report.C:
			r := t.Report()
			t.logger.Debug("Latency report",
				slog.Float64("avg_ms", r.AvgLatencyMs),
				slog.Float64("max_ms", r.MaxLatencyMs),
				slog.Float64("throughput", r.ThroughputPerSec),
				slog.Int("dropped", r.Dropped))
			if fn != nil {
				fn(r)
			}
		}
	}
}

// Close releases the pending map.
func (t *Tracker) Close() {
	t.pending.DeleteAll()
}
