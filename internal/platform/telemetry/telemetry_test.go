package telemetry

import (
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newEcho(p *Provider) *echo.Echo {
	e := echo.New()
	e.Use(p.MetricsMiddleware())
	e.GET("/metrics", p.PrometheusHandler())
	return e
}

func serve(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

// ---------------------------------------------------------------------------
// MetricsMiddleware
// ---------------------------------------------------------------------------

func TestMetricsMiddleware_RecordsDurationByRoute(t *testing.T) {
	p := NewProvider(true)
	e := newEcho(p)
	e.GET("/api/v1/indicators/:id", func(c echo.Context) error {
		time.Sleep(2 * time.Millisecond)
		return c.String(http.StatusOK, "ok")
	})

	serve(e, http.MethodGet, "/api/v1/indicators/a1c-target")
	serve(e, http.MethodGet, "/api/v1/indicators/ldl-target")

	hist := p.RequestDuration(http.MethodGet, "/api/v1/indicators/:id", http.StatusOK)
	if hist == nil {
		t.Fatal("expected a histogram keyed by the route pattern")
	}
	if hist.Count() != 2 {
		t.Fatalf("expected 2 observations, got %d", hist.Count())
	}
	if hist.Sum() <= 0 {
		t.Fatal("expected positive duration sum")
	}
}

func TestMetricsMiddleware_ErrorStatus(t *testing.T) {
	p := NewProvider(true)
	e := newEcho(p)
	e.GET("/fail", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "no patient records found")
	})

	rec := serve(e, http.MethodGet, "/fail")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if p.RequestDuration(http.MethodGet, "/fail", http.StatusUnprocessableEntity) == nil {
		t.Error("expected the error status to be recorded")
	}
}

func TestMetricsMiddleware_ActiveRequests(t *testing.T) {
	p := NewProvider(true)
	e := newEcho(p)
	observed := make(chan int64, 1)
	e.GET("/slow", func(c echo.Context) error {
		observed <- p.ActiveRequests()
		return c.NoContent(http.StatusOK)
	})

	serve(e, http.MethodGet, "/slow")
	if got := <-observed; got != 1 {
		t.Fatalf("expected 1 active request during handling, got %d", got)
	}
	if got := p.ActiveRequests(); got != 0 {
		t.Fatalf("expected 0 active requests afterwards, got %d", got)
	}
}

func TestMetricsMiddleware_Disabled(t *testing.T) {
	p := NewProvider(false)
	e := newEcho(p)
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	serve(e, http.MethodGet, "/x")
	p.RecordEvaluation("Diabetes", "PSS", 10)
	p.RecordOutcomes("a1c-target", 1, 1, 1)

	if p.RequestDuration(http.MethodGet, "/x", http.StatusOK) != nil {
		t.Error("expected no request metrics when disabled")
	}
	if p.Evaluations("Diabetes", "PSS") != 0 || p.Outcomes("a1c-target", "pass") != 0 {
		t.Error("expected no evaluation metrics when disabled")
	}
}

// ---------------------------------------------------------------------------
// Evaluation counters
// ---------------------------------------------------------------------------

func TestRecordEvaluation(t *testing.T) {
	p := NewProvider(true)
	p.RecordEvaluation("Diabetes", "PSS", 120)
	p.RecordEvaluation("Diabetes", "PSS", 30)
	p.RecordEvaluation("Diabetes", "Oscar", 5)
	p.RecordOutcomes("a1c-target", 7, 2, 1)
	p.RecordOutcomes("a1c-target", 1, 0, 0)

	if got := p.Evaluations("Diabetes", "PSS"); got != 2 {
		t.Errorf("expected 2 PSS runs, got %d", got)
	}
	if got := p.Evaluations("Diabetes", "Oscar"); got != 1 {
		t.Errorf("expected 1 Oscar run, got %d", got)
	}
	if got := p.Outcomes("a1c-target", "pass"); got != 8 {
		t.Errorf("expected 8 passes, got %d", got)
	}
	if got := p.Outcomes("a1c-target", "n/a"); got != 1 {
		t.Errorf("expected 1 n/a, got %d", got)
	}
}

func TestRecord_ConcurrentSafe(t *testing.T) {
	p := NewProvider(true)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.RecordEvaluation("Hypertension", "Accuro", 1)
			p.RecordOutcomes("bp-control", 1, 0, 0)
		}()
	}
	wg.Wait()

	if got := p.Evaluations("Hypertension", "Accuro"); got != 50 {
		t.Errorf("expected 50 runs, got %d", got)
	}
	if got := p.Outcomes("bp-control", "pass"); got != 50 {
		t.Errorf("expected 50 passes, got %d", got)
	}
}

// ---------------------------------------------------------------------------
// Histogram
// ---------------------------------------------------------------------------

func TestHistogram_Buckets(t *testing.T) {
	h := newHistogram([]float64{0.010, 0.100, 1.0})
	h.Observe(0.005)
	h.Observe(0.010)
	h.Observe(0.5)
	h.Observe(3.0)

	if h.Count() != 4 {
		t.Fatalf("expected count=4, got %d", h.Count())
	}
	want := []int64{2, 2, 3}
	got := h.cumulative()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bucket %d: expected %d, got %d", i, want[i], got[i])
		}
	}
	if math.Abs(h.Sum()-3.515) > 1e-9 {
		t.Errorf("expected sum 3.515, got %g", h.Sum())
	}
}

// ---------------------------------------------------------------------------
// PrometheusHandler
// ---------------------------------------------------------------------------

func TestPrometheusHandler_Format(t *testing.T) {
	p := NewProvider(true)
	e := newEcho(p)
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	serve(e, http.MethodGet, "/health")
	p.RecordEvaluation("Diabetes", "PSS", 3)
	p.RecordOutcomes("dm-assessment", 1, 1, 1)
	p.RecordRejection("invalid file type")

	rec := serve(e, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()

	for _, want := range []string{
		"# TYPE http_server_request_duration_seconds histogram",
		`http_server_request_duration_seconds_count{method="GET",route="/health",status_code="200"} 1`,
		`http_server_request_duration_seconds_bucket{method="GET",route="/health",status_code="200",le="+Inf"} 1`,
		"# TYPE http_server_active_requests gauge",
		`cdreport_evaluations_total{set="Diabetes",emr="PSS"} 1`,
		`cdreport_patients_evaluated_total{set="Diabetes"} 3`,
		`cdreport_indicator_outcomes_total{indicator="dm-assessment",outcome="n/a"} 1`,
		`cdreport_upload_rejections_total{reason="invalid file type"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics output to contain %q, body:\n%s", want, body)
		}
	}
}
