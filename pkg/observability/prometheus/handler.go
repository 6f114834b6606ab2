package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Handler returns a fasthttp handler serving gatherer in the text exposition format
func Handler(gatherer prometheus.Gatherer) fasthttp.RequestHandler {
	if gatherer == nil {
		gatherer = DefaultRegistry
	}
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// NewServer returns a fasthttp server answering /metrics and 404 elsewhere.
// Callers run it with ListenAndServe and stop it with Shutdown.
func NewServer(gatherer prometheus.Gatherer) *fasthttp.Server {
	metricsHandler := Handler(gatherer)
	return &fasthttp.Server{
		Name: "poolserver-metrics",
		Handler: func(ctx *fasthttp.RequestCtx) {
			if string(ctx.Path()) == "/metrics" {
				metricsHandler(ctx)
				return
			}
			ctx.NotFound()
		},
	}
}
