// Package telemetry records HTTP and evaluation metrics and serves them in
// the Prometheus text exposition format.
package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Histogram
// ---------------------------------------------------------------------------

// histogram stores non-cumulative bucket counts; export accumulates them.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64
	count        int64
	sum          uint64 // math.Float64bits
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{boundaries: boundaries, bucketCounts: make([]int64, len(boundaries))}
}

// Observe records a single value. Values above the last boundary only count
// towards +Inf.
func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	for {
		old := atomic.LoadUint64(&h.sum)
		if atomic.CompareAndSwapUint64(&h.sum, old, math.Float64bits(math.Float64frombits(old)+v)) {
			break
		}
	}
	i := sort.SearchFloat64s(h.boundaries, v)
	if i == len(h.boundaries) {
		return
	}
	h.mu.Lock()
	h.bucketCounts[i]++
	h.mu.Unlock()
}

func (h *histogram) Count() int64 { return atomic.LoadInt64(&h.count) }

func (h *histogram) Sum() float64 { return math.Float64frombits(atomic.LoadUint64(&h.sum)) }

func (h *histogram) cumulative() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int64, len(h.bucketCounts))
	var running int64
	for i, c := range h.bucketCounts {
		running += c
		out[i] = running
	}
	return out
}

// ---------------------------------------------------------------------------
// Labeled series
// ---------------------------------------------------------------------------

// LabelsKey joins label values into a series key.
func LabelsKey(values ...string) string {
	return strings.Join(values, "|")
}

// counters holds int64 series keyed by LabelsKey. It backs both counters and
// gauges.
type counters struct {
	mu    sync.RWMutex
	items map[string]*int64
}

func newCounters() *counters {
	return &counters{items: make(map[string]*int64)}
}

func (s *counters) add(key string, delta int64) {
	s.mu.RLock()
	p, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		s.mu.Lock()
		if p, ok = s.items[key]; !ok {
			p = new(int64)
			s.items[key] = p
		}
		s.mu.Unlock()
	}
	atomic.AddInt64(p, delta)
}

func (s *counters) get(key string) int64 {
	s.mu.RLock()
	p, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(p)
}

// sorted returns the series in key order so the exposition is stable.
func (s *counters) sorted() ([]string, map[string]int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	vals := make(map[string]int64, len(s.items))
	for k, p := range s.items {
		keys = append(keys, k)
		vals[k] = atomic.LoadInt64(p)
	}
	sort.Strings(keys)
	return keys, vals
}

// ---------------------------------------------------------------------------
// Provider
// ---------------------------------------------------------------------------

// durationBuckets are request duration boundaries in seconds. Evaluations of
// large exports run for seconds, so the upper buckets are wide.
var durationBuckets = []float64{0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0, 10.0, 30.0}

// Provider owns every metric the server exports.
type Provider struct {
	enabled bool

	durMu     sync.RWMutex
	durations map[string]*histogram // method|route|status

	active     int64
	runs       *counters // set|emr
	patients   *counters // set
	outcomes   *counters // indicator|outcome
	rejections *counters // reason
}

// NewProvider creates a provider. A disabled provider records nothing and
// its middleware passes requests straight through.
func NewProvider(enabled bool) *Provider {
	return &Provider{
		enabled:    enabled,
		durations:  make(map[string]*histogram),
		runs:       newCounters(),
		patients:   newCounters(),
		outcomes:   newCounters(),
		rejections: newCounters(),
	}
}

func (p *Provider) duration(key string) *histogram {
	p.durMu.RLock()
	h, ok := p.durations[key]
	p.durMu.RUnlock()
	if ok {
		return h
	}
	p.durMu.Lock()
	defer p.durMu.Unlock()
	if h, ok = p.durations[key]; !ok {
		h = newHistogram(durationBuckets)
		p.durations[key] = h
	}
	return h
}

// RequestDuration returns the histogram for one method, route and status, or
// nil when no such request was seen.
func (p *Provider) RequestDuration(method, route string, status int) *histogram {
	p.durMu.RLock()
	defer p.durMu.RUnlock()
	return p.durations[LabelsKey(method, route, strconv.Itoa(status))]
}

// ActiveRequests is the number of requests in flight.
func (p *Provider) ActiveRequests() int64 { return atomic.LoadInt64(&p.active) }

// RecordEvaluation counts one dataset evaluated against set.
func (p *Provider) RecordEvaluation(set, emr string, patients int) {
	if !p.enabled {
		return
	}
	p.runs.add(LabelsKey(set, emr), 1)
	p.patients.add(set, int64(patients))
}

// RecordOutcomes adds one indicator's per-patient outcome counts.
func (p *Provider) RecordOutcomes(indicatorID string, passed, failed, notApplicable int) {
	if !p.enabled {
		return
	}
	p.outcomes.add(LabelsKey(indicatorID, "pass"), int64(passed))
	p.outcomes.add(LabelsKey(indicatorID, "fail"), int64(failed))
	p.outcomes.add(LabelsKey(indicatorID, "n/a"), int64(notApplicable))
}

// RecordRejection counts an upload that could not be evaluated.
func (p *Provider) RecordRejection(reason string) {
	if !p.enabled {
		return
	}
	p.rejections.add(reason, 1)
}

// Evaluations returns the run count for set and emr.
func (p *Provider) Evaluations(set, emr string) int64 { return p.runs.get(LabelsKey(set, emr)) }

// Outcomes returns the count recorded for one indicator outcome.
func (p *Provider) Outcomes(indicatorID, outcome string) int64 {
	return p.outcomes.get(LabelsKey(indicatorID, outcome))
}

// ---------------------------------------------------------------------------
// Middleware and handler
// ---------------------------------------------------------------------------

// MetricsMiddleware records request duration by route pattern and the number
// of requests in flight.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !p.enabled {
				return next(c)
			}
			atomic.AddInt64(&p.active, 1)
			defer atomic.AddInt64(&p.active, -1)
			start := time.Now()

			// Commit error responses here so the recorded status is final.
			if err := next(c); err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			key := LabelsKey(c.Request().Method, route, strconv.Itoa(c.Response().Status))
			p.duration(key).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// PrometheusHandler serves every metric in text exposition format.
func (p *Provider) PrometheusHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		writeHeader(&b, "http_server_request_duration_seconds", "Duration of HTTP requests in seconds.", "histogram")
		p.durMu.RLock()
		keys := make([]string, 0, len(p.durations))
		for k := range p.durations {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts := strings.SplitN(k, "|", 3)
			if len(parts) != 3 {
				continue
			}
			labels := fmt.Sprintf("method=%q,route=%q,status_code=%q", parts[0], parts[1], parts[2])
			writeHistogram(&b, "http_server_request_duration_seconds", labels, p.durations[k])
		}
		p.durMu.RUnlock()
		b.WriteByte('\n')

		writeHeader(&b, "http_server_active_requests", "Number of active HTTP requests.", "gauge")
		fmt.Fprintf(&b, "http_server_active_requests %d\n\n", p.ActiveRequests())

		writeCounter(&b, "cdreport_evaluations_total", "Datasets evaluated by indicator set and EMR.",
			p.runs, "set", "emr")
		writeCounter(&b, "cdreport_patients_evaluated_total", "Patient rows evaluated by indicator set.",
			p.patients, "set")
		writeCounter(&b, "cdreport_indicator_outcomes_total", "Per-patient indicator outcomes.",
			p.outcomes, "indicator", "outcome")
		writeCounter(&b, "cdreport_upload_rejections_total", "Uploads that could not be evaluated, by reason.",
			p.rejections, "reason")

		return c.String(http.StatusOK, b.String())
	}
}

// ---------------------------------------------------------------------------
// Exposition helpers
// ---------------------------------------------------------------------------

func writeHeader(b *strings.Builder, name, help, typ string) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, typ)
}

func writeCounter(b *strings.Builder, name, help string, s *counters, labelNames ...string) {
	writeHeader(b, name, help, "counter")
	keys, vals := s.sorted()
	for _, k := range keys {
		values := strings.SplitN(k, "|", len(labelNames))
		if len(values) != len(labelNames) {
			continue
		}
		pairs := make([]string, len(labelNames))
		for i, n := range labelNames {
			pairs[i] = fmt.Sprintf("%s=%q", n, values[i])
		}
		fmt.Fprintf(b, "%s{%s} %d\n", name, strings.Join(pairs, ","), vals[k])
	}
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, labels string, h *histogram) {
	cum := h.cumulative()
	total := h.Count()
	for i, le := range h.boundaries {
		fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, le, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, total)
	fmt.Fprintf(b, "%s_sum{%s} %g\n", name, labels, h.Sum())
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, total)
}
