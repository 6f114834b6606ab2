// Package site answers one HTTP/1.x request per connection with a canned page.
//
// Routing is a fixed rule: GET / serves the index page, GET /sleep holds the
// worker for SlowDelay and then serves the sleep page, anything else gets the
// 404 page. It exists to give the worker pool realistic per-connection jobs.
package site

import (
	"bufio"
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxorio/poolserver/pkg/core"
	"github.com/fluxorio/poolserver/pkg/tcp"
)

//go:embed public/*.html
var embedded embed.FS

const (
	indexPage    = "index.html"
	sleepPage    = "sleep.html"
	notFoundPage = "404.html"
)

// Route names reported to the Recorder
const (
	RouteIndex      = "index"
	RouteSleep      = "sleep"
	RouteNotFound   = "not_found"
	RouteBadRequest = "bad_request"
)

// Recorder receives one observation per response written
type Recorder interface {
	RecordResponse(route string, status int, elapsed time.Duration)
}

// Config configures the Handler
type Config struct {
	// PublicDir overrides the embedded pages when set. It must contain
	// index.html, sleep.html and 404.html.
	PublicDir string

	// SlowDelay is how long GET /sleep holds the worker. Defaults to 5s.
	SlowDelay time.Duration

	Logger   core.Logger
	Recorder Recorder
}

// Handler serves the canned pages
type Handler struct {
	pages     map[string][]byte
	slowDelay time.Duration
	logger    core.Logger
	recorder  Recorder
}

// NewHandler loads the pages up front so a missing file fails at startup
// rather than on a worker.
func NewHandler(cfg Config) (*Handler, error) {
	var pagesFS fs.FS
	if cfg.PublicDir != "" {
		pagesFS = os.DirFS(cfg.PublicDir)
	} else {
		sub, err := fs.Sub(embedded, "public")
		if err != nil {
			return nil, err
		}
		pagesFS = sub
	}

	pages := make(map[string][]byte, 3)
	for _, name := range []string{indexPage, sleepPage, notFoundPage} {
		data, err := fs.ReadFile(pagesFS, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load page %s: %w", name, err)
		}
		pages[name] = data
	}

	if cfg.SlowDelay <= 0 {
		cfg.SlowDelay = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = core.NewDefaultLogger()
	}

	return &Handler{
		pages:     pages,
		slowDelay: cfg.SlowDelay,
		logger:    cfg.Logger,
		recorder:  cfg.Recorder,
	}, nil
}

// Handle is a tcp.ConnectionHandler
func (h *Handler) Handle(ctx *tcp.ConnContext) error {
	return h.Serve(ctx.Context, ctx.Conn)
}

// Serve reads one request from rw and writes one response.
// A peer that closes without sending anything gets no response.
func (h *Handler) Serve(ctx context.Context, rw io.ReadWriter) error {
	start := time.Now()
	span := trace.SpanFromContext(ctx)

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	counter := &countingReader{r: rw}
	route := h.route(ctx, req, resp, counter)
	if route == "" {
		return nil
	}

	span.SetAttributes(
		attribute.String("http.route", route),
		attribute.Int("http.status_code", resp.StatusCode()),
	)

	bw := bufio.NewWriter(rw)
	if err := resp.Write(bw); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush response: %w", err)
	}

	if h.recorder != nil {
		h.recorder.RecordResponse(route, resp.StatusCode(), time.Since(start))
	}
	return nil
}

// route parses the request into req and fills resp. It returns the route
// name, or "" when the peer sent nothing.
func (h *Handler) route(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response, r *countingReader) string {
	resp.Header.SetServer("poolserver")
	resp.SetConnectionClose()

	if err := req.Read(bufio.NewReader(r)); err != nil {
		if r.n == 0 {
			return ""
		}
		h.logger.WithContext(ctx).Warnf("malformed request: %v", err)
		resp.SetStatusCode(fasthttp.StatusBadRequest)
		resp.Header.SetContentType("text/plain; charset=utf-8")
		resp.SetBodyString(fasthttp.StatusMessage(fasthttp.StatusBadRequest))
		return RouteBadRequest
	}

	method := string(req.Header.Method())
	path := string(req.URI().Path())
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.target", path),
	)

	resp.Header.SetContentType("text/html; charset=utf-8")

	switch {
	case method == fasthttp.MethodGet && path == "/":
		resp.SetStatusCode(fasthttp.StatusOK)
		resp.SetBody(h.pages[indexPage])
		return RouteIndex
	case method == fasthttp.MethodGet && path == "/sleep":
		sleep(ctx, h.slowDelay)
		resp.SetStatusCode(fasthttp.StatusOK)
		resp.SetBody(h.pages[sleepPage])
		return RouteSleep
	default:
		resp.SetStatusCode(fasthttp.StatusNotFound)
		resp.SetBody(h.pages[notFoundPage])
		return RouteNotFound
	}
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}
