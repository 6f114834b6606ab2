package prometheus_test

import (
	"strings"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/valyala/fasthttp"

	"github.com/fluxorio/poolserver/pkg/core"
	"github.com/fluxorio/poolserver/pkg/core/concurrency"
	"github.com/fluxorio/poolserver/pkg/observability/prometheus"
	"github.com/fluxorio/poolserver/pkg/tcp"
)

func gaugeValue(t *testing.T, reg *promclient.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestPoolObserver(t *testing.T) {
	reg := promclient.NewRegistry()
	m := prometheus.NewMetrics(reg)

	pool, err := concurrency.NewPool(2,
		concurrency.WithName("test"),
		concurrency.WithLogger(core.NewNopLogger()),
		concurrency.WithObserver(m.PoolObserver("test")),
	)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if err := m.RegisterPool(pool); err != nil {
		t.Fatalf("RegisterPool: %v", err)
	}

	if got := gaugeValue(t, reg, "poolserver_pool_workers_alive"); got != 2 {
		t.Errorf("workers_alive = %v, want 2", got)
	}

	for i := 0; i < 5; i++ {
		_ = pool.Submit(func() {})
	}
	_ = pool.Submit(func() { panic("boom") })
	pool.Shutdown()

	if got := testutil.ToFloat64(m.JobsQueued.WithLabelValues("test")); got != 6 {
		t.Errorf("jobs_queued = %v, want 6", got)
	}
	if got := testutil.ToFloat64(m.JobsFinished.WithLabelValues("test", "ok")); got != 5 {
		t.Errorf("jobs_finished{ok} = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.JobsFinished.WithLabelValues("test", "panic")); got != 1 {
		t.Errorf("jobs_finished{panic} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.WorkerExits.WithLabelValues("test", "panicked")); got != 1 {
		t.Errorf("worker_exits{panicked} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.WorkerExits.WithLabelValues("test", "terminated")); got != 1 {
		t.Errorf("worker_exits{terminated} = %v, want 1", got)
	}
	if got := gaugeValue(t, reg, "poolserver_pool_workers_alive"); got != 0 {
		t.Errorf("workers_alive = %v after shutdown, want 0", got)
	}

	// Registering the same pool twice is a wiring error.
	if err := m.RegisterPool(pool); err == nil {
		t.Error("second RegisterPool should fail")
	}
}

func TestRecordResponse(t *testing.T) {
	reg := promclient.NewRegistry()
	m := prometheus.NewMetrics(reg)

	m.RecordResponse("index", 200, 10*time.Millisecond)
	m.RecordResponse("index", 200, 20*time.Millisecond)
	m.RecordResponse("not_found", 404, time.Millisecond)

	if got := testutil.ToFloat64(m.SiteResponsesTotal.WithLabelValues("index", "200")); got != 2 {
		t.Errorf("responses{index,200} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SiteResponsesTotal.WithLabelValues("not_found", "404")); got != 1 {
		t.Errorf("responses{not_found,404} = %v, want 1", got)
	}
}

type fakeServer struct{ m tcp.ServerMetrics }

func (f *fakeServer) Metrics() tcp.ServerMetrics { return f.m }

func TestRegisterServer(t *testing.T) {
	reg := promclient.NewRegistry()
	m := prometheus.NewMetrics(reg)

	srv := &fakeServer{m: tcp.ServerMetrics{TotalAccepted: 7, RejectedConnections: 1, ActiveConnections: 3}}
	if err := m.RegisterServer(srv); err != nil {
		t.Fatalf("RegisterServer: %v", err)
	}

	if got := gaugeValue(t, reg, "poolserver_tcp_connections_active"); got != 3 {
		t.Errorf("connections_active = %v, want 3", got)
	}

	expected := `
# HELP poolserver_tcp_connections_accepted_total Connections accepted
# TYPE poolserver_tcp_connections_accepted_total counter
poolserver_tcp_connections_accepted_total 7
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "poolserver_tcp_connections_accepted_total"); err != nil {
		t.Error(err)
	}
}

func TestHandler(t *testing.T) {
	reg := promclient.NewRegistry()
	m := prometheus.NewMetrics(reg)
	m.RecordResponse("index", 200, time.Millisecond)

	srv := prometheus.NewServer(reg)

	var req fasthttp.Request
	req.SetRequestURI("/metrics")
	var ctx fasthttp.RequestCtx
	ctx.Init(&req, nil, nil)
	srv.Handler(&ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200", ctx.Response.StatusCode())
	}
	if !strings.Contains(string(ctx.Response.Body()), `poolserver_site_responses_total{route="index",status="200"} 1`) {
		t.Errorf("metrics body missing site counter:\n%s", ctx.Response.Body())
	}

	var other fasthttp.Request
	other.SetRequestURI("/")
	var otherCtx fasthttp.RequestCtx
	otherCtx.Init(&other, nil, nil)
	srv.Handler(&otherCtx)
	if otherCtx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Errorf("status = %d, want 404", otherCtx.Response.StatusCode())
	}
}

func TestNewRegistry(t *testing.T) {
	reg, registerer := prometheus.NewRegistry()
	m := prometheus.NewMetrics(registerer)
	m.RecordResponse("sleep", 200, time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	seen := map[string]bool{}
	for _, mf := range families {
		seen[mf.GetName()] = true
		if mf.GetName() == "poolserver_site_responses_total" {
			var service string
			for _, lp := range mf.GetMetric()[0].GetLabel() {
				if lp.GetName() == "service" {
					service = lp.GetValue()
				}
			}
			if service != "poolserver" {
				t.Errorf("service label = %q, want poolserver", service)
			}
		}
	}
	for _, name := range []string{"go_goroutines", "poolserver_site_responses_total"} {
		if !seen[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}

	// A second registry must accept the same metric set.
	_, again := prometheus.NewRegistry()
	_ = prometheus.NewMetrics(again)
}
