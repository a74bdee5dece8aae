package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/store"
	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type fakeSource struct {
	snapshot goToken.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goToken.MetricsSnapshot { return f.snapshot }
func (f fakeSource) ListenerDropped() uint64                  { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goToken.MetricsSnapshot{
			Counters:   map[goToken.MetricID]uint64{},
			Histograms: map[goToken.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goToken.MetricsSnapshot{
			Counters: map[goToken.MetricID]uint64{
				goToken.MetricLogin: 7,
			},
			Histograms: map[goToken.MetricID][]uint64{
				goToken.MetricCheckLoginLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "gotoken_login_total 7") {
		t.Fatalf("expected login counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "gotoken_check_login_latency_seconds_bucket{le=\"0.005\"} 1") {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "gotoken_check_login_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "gotoken_listener_dropped_total 2") {
		t.Fatalf("expected listener dropped counter in output, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goToken.MetricsSnapshot{
			Counters:   map[goToken.MetricID]uint64{goToken.MetricLogin: 1},
			Histograms: map[goToken.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCollectorGathersEngineMetrics(t *testing.T) {
	cfg := goToken.DefaultConfig()
	cfg.IsPrint = false
	r, err := goToken.New().
		WithConfig(cfg).
		WithStore(store.NewMemory(store.WithSweepInterval(-1))).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer r.Close()

	e := r.MustEngine("")
	tok, err := e.Login(context.Background(), "10001")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := e.CheckLogin(context.Background(), tok); err != nil {
		t.Fatalf("check: %v", err)
	}

	reg := prom.NewPedanticRegistry()
	if err := reg.Register(NewPrometheusExporter(e)); err != nil {
		t.Fatalf("register: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}
	login := byName["gotoken_login_total"]
	if login == nil || login.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected gotoken_login_total 1, got %v", login)
	}
	latency := byName["gotoken_check_login_latency_seconds"]
	if latency == nil || latency.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Fatalf("expected one latency sample, got %v", latency)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goToken.MetricsSnapshot{
			Counters: map[goToken.MetricID]uint64{
				goToken.MetricLogin:             1000,
				goToken.MetricCheckLoginSuccess: 40000,
				goToken.MetricCheckLoginFailure: 120,
				goToken.MetricLogout:            800,
				goToken.MetricSessionCreated:    800,
				goToken.MetricSessionDestroyed:  20,
			},
			Histograms: map[goToken.MetricID][]uint64{
				goToken.MetricCheckLoginLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
