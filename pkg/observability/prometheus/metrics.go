package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fluxorio/poolserver/pkg/core/concurrency"
	"github.com/fluxorio/poolserver/pkg/tcp"
)

var (
	// DefaultRegistry is the default Prometheus registry
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer is the default Prometheus registerer
	DefaultRegisterer = prometheus.WrapRegistererWith(serviceLabels, DefaultRegistry)

	serviceLabels = prometheus.Labels{"service": "poolserver"}
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registerer prometheus.Registerer

	// Worker pool metrics
	JobsQueued     *prometheus.CounterVec
	JobsStarted    *prometheus.CounterVec
	JobsFinished   *prometheus.CounterVec
	JobDuration    *prometheus.HistogramVec
	WorkersStarted *prometheus.CounterVec
	WorkerExits    *prometheus.CounterVec

	// Site metrics
	SiteResponsesTotal   *prometheus.CounterVec
	SiteResponseDuration *prometheus.HistogramVec
}

// NewRegistry returns a fresh registry carrying the Go runtime and process
// collectors, plus a registerer on it that adds the service label.
// Each process component gets its own so repeated wiring never collides.
func NewRegistry() (*prometheus.Registry, prometheus.Registerer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, prometheus.WrapRegistererWith(serviceLabels, reg)
}

// NewMetrics creates a new metrics collection
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Metrics{
		registerer: registerer,

		JobsQueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolserver_pool_jobs_queued_total",
				Help: "Total number of jobs accepted by Submit",
			},
			[]string{"pool"},
		),
		JobsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolserver_pool_jobs_started_total",
				Help: "Total number of jobs dequeued by a worker",
			},
			[]string{"pool"},
		),
		JobsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolserver_pool_jobs_finished_total",
				Help: "Total number of jobs that finished, by outcome",
			},
			[]string{"pool", "outcome"}, // outcome: ok, panic
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poolserver_pool_job_duration_seconds",
				Help:    "Job execution time in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"pool"},
		),
		WorkersStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolserver_pool_workers_started_total",
				Help: "Total number of worker goroutines started, replacements included",
			},
			[]string{"pool"},
		),
		WorkerExits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolserver_pool_worker_exits_total",
				Help: "Total number of worker goroutine exits, by reason",
			},
			[]string{"pool", "reason"}, // reason: terminated, panicked
		),

		SiteResponsesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolserver_site_responses_total",
				Help: "Total number of responses written",
			},
			[]string{"route", "status"},
		),
		SiteResponseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poolserver_site_response_duration_seconds",
				Help:    "Time from request read to response flushed, in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

// RecordResponse implements site.Recorder
func (m *Metrics) RecordResponse(route string, status int, elapsed time.Duration) {
	m.SiteResponsesTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.SiteResponseDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// PoolObserver returns a concurrency.Observer recording into m under the pool label
func (m *Metrics) PoolObserver(pool string) concurrency.Observer {
	return &poolObserver{
		queued:   m.JobsQueued.WithLabelValues(pool),
		started:  m.JobsStarted.WithLabelValues(pool),
		ok:       m.JobsFinished.WithLabelValues(pool, "ok"),
		panicked: m.JobsFinished.WithLabelValues(pool, "panic"),
		duration: m.JobDuration.WithLabelValues(pool),
		spawned:  m.WorkersStarted.WithLabelValues(pool),
		exits:    m.WorkerExits.MustCurryWith(prometheus.Labels{"pool": pool}),
	}
}

type poolObserver struct {
	queued   prometheus.Counter
	started  prometheus.Counter
	ok       prometheus.Counter
	panicked prometheus.Counter
	duration prometheus.Observer
	spawned  prometheus.Counter
	exits    *prometheus.CounterVec
}

func (o *poolObserver) WorkerStarted(int) {
	o.spawned.Inc()
}

func (o *poolObserver) WorkerExited(_ int, reason concurrency.ExitReason) {
	o.exits.WithLabelValues(reason.String()).Inc()
}

func (o *poolObserver) JobQueued() {
	o.queued.Inc()
}

func (o *poolObserver) JobStarted(int) {
	o.started.Inc()
}

func (o *poolObserver) JobFinished(_ int, elapsed time.Duration, panicked bool) {
	o.duration.Observe(elapsed.Seconds())
	if panicked {
		o.panicked.Inc()
	} else {
		o.ok.Inc()
	}
}

// PoolStats is the read side of a pool; *concurrency.Pool satisfies it
type PoolStats interface {
	Name() string
	Size() int
	Alive() int
	Pending() int
}

// RegisterPool exposes live pool gauges, sampled at scrape time
func (m *Metrics) RegisterPool(pool PoolStats) error {
	labels := prometheus.Labels{"pool": pool.Name()}
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "poolserver_pool_size",
			Help:        "Configured number of workers",
			ConstLabels: labels,
		}, func() float64 { return float64(pool.Size()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "poolserver_pool_workers_alive",
			Help:        "Worker goroutines currently running",
			ConstLabels: labels,
		}, func() float64 { return float64(pool.Alive()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "poolserver_pool_pending_messages",
			Help:        "Messages queued and not yet taken by a worker",
			ConstLabels: labels,
		}, func() float64 { return float64(pool.Pending()) }),
	}
	return m.register(collectors...)
}

// ServerStats is the read side of a TCP server; *tcp.TCPServer satisfies it
type ServerStats interface {
	Metrics() tcp.ServerMetrics
}

// RegisterServer exposes TCP server counters, sampled at scrape time
func (m *Metrics) RegisterServer(server ServerStats) error {
	counter := func(name, help string, get func(tcp.ServerMetrics) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help},
			func() float64 { return float64(get(server.Metrics())) })
	}
	return m.register(
		counter("poolserver_tcp_connections_accepted_total", "Connections accepted",
			func(s tcp.ServerMetrics) int64 { return s.TotalAccepted }),
		counter("poolserver_tcp_connections_rejected_total", "Connections refused by the pool",
			func(s tcp.ServerMetrics) int64 { return s.RejectedConnections }),
		counter("poolserver_tcp_connections_handled_total", "Connections whose handler ran",
			func(s tcp.ServerMetrics) int64 { return s.HandledConnections }),
		counter("poolserver_tcp_connections_errors_total", "Connection handlers that returned an error",
			func(s tcp.ServerMetrics) int64 { return s.ErrorConnections }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "poolserver_tcp_connections_active",
			Help: "Connections submitted and not yet closed",
		}, func() float64 { return float64(server.Metrics().ActiveConnections) }),
	)
}

func (m *Metrics) register(collectors ...prometheus.Collector) error {
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			return err
		}
	}
	return nil
}
