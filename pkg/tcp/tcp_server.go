package tcp

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxorio/poolserver/pkg/core"
	"github.com/fluxorio/poolserver/pkg/core/failfast"
)

const tracerName = "github.com/fluxorio/poolserver/pkg/tcp"

// TCPServer accepts connections one at a time and hands each one to a
// Submitter as a single job. It owns no worker goroutines of its own.
type TCPServer struct {
	config    *TCPServerConfig
	submitter Submitter
	logger    core.Logger
	tracer    trace.Tracer

	mu          sync.RWMutex
	listener    net.Listener
	handler     ConnectionHandler
	middlewares []Middleware
	effective   ConnectionHandler

	stopping atomic.Bool
	done     chan struct{}
	doneOnce sync.Once

	totalAccepted       atomic.Int64
	rejectedConnections atomic.Int64
	handledConnections  atomic.Int64
	errorConnections    atomic.Int64
	activeConns         atomic.Int64
}

// TCPServerConfig configures the TCP server.
type TCPServerConfig struct {
	Addr string

	// TLSConfig enables TLS when non-nil.
	TLSConfig *tls.Config

	// ReadTimeout bounds reading the request and starts when the job starts
	// running. WriteTimeout bounds each write and starts when that write is
	// issued, so a slow handler does not eat into it.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// AcceptLimit stops the accept loop after that many connections.
	// 0 means unlimited.
	AcceptLimit int

	Logger         core.Logger
	TracerProvider trace.TracerProvider
}

// DefaultTCPServerConfig returns a sensible default configuration.
func DefaultTCPServerConfig(addr string) *TCPServerConfig {
	if addr == "" {
		addr = "127.0.0.1:7878"
	}
	return &TCPServerConfig{
		Addr:         addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// NewTCPServer creates a new TCP server feeding submitter.
// Panics if submitter is nil.
func NewTCPServer(submitter Submitter, config *TCPServerConfig) *TCPServer {
	failfast.NotNil(submitter, "submitter")

	if config == nil {
		config = DefaultTCPServerConfig("")
	}
	if config.Addr == "" {
		config.Addr = "127.0.0.1:7878"
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 5 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if config.AcceptLimit < 0 {
		config.AcceptLimit = 0
	}

	logger := config.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	s := &TCPServer{
		config:    config,
		submitter: submitter,
		logger:    logger,
		tracer:    tp.Tracer(tracerName),
		handler:   defaultConnectionHandler,
		done:      make(chan struct{}),
	}
	s.effective = s.handler
	return s
}

func defaultConnectionHandler(ctx *ConnContext) error {
	// Default: do nothing. Connection will be closed by server.
	return nil
}

// SetHandler sets the connection handler (fail-fast on nil).
func (s *TCPServer) SetHandler(handler ConnectionHandler) {
	failfast.NotNil(handler, "tcp handler")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
	s.rebuildHandlerLocked()
}

// Use adds middleware. The first middleware added runs outermost.
// Fail-fast: panics if any middleware is nil.
func (s *TCPServer) Use(mw ...Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range mw {
		failfast.NotNil(m, "tcp middleware")
		s.middlewares = append(s.middlewares, m)
	}
	s.rebuildHandlerLocked()
}

func (s *TCPServer) rebuildHandlerLocked() {
	h := s.handler
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		h = s.middlewares[i](h)
	}
	s.effective = h
}

// ListeningAddr returns the actual listening address (useful when Addr is ":0").
// Returns empty string if not currently listening.
func (s *TCPServer) ListeningAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Done is closed once the accept loop has exited, whether through Stop,
// the accept limit or a listener error.
func (s *TCPServer) Done() <-chan struct{} {
	return s.done
}

// Start binds the listener and runs the accept loop until Stop is called or
// the accept limit is reached, in which case it returns nil.
func (s *TCPServer) Start() error {
	defer s.doneOnce.Do(func() { close(s.done) })

	var (
		ln  net.Listener
		err error
	)
	if s.config.TLSConfig != nil {
		ln, err = tls.Listen("tcp", s.config.Addr, s.config.TLSConfig)
	} else {
		ln, err = net.Listen("tcp", s.config.Addr)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.stopping.Load() {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.listener = ln
	s.mu.Unlock()

	s.logger.Infof("tcp server listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.stopping.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		accepted := s.totalAccepted.Add(1)
		s.dispatch(conn)

		if limit := s.config.AcceptLimit; limit > 0 && accepted >= int64(limit) {
			s.logger.Infof("tcp server accepted %d connections, no longer accepting", accepted)
			s.stopping.Store(true)
			s.closeListener()
			return nil
		}
	}
}

// Stop closes the listener to break the accept loop.
func (s *TCPServer) Stop() error {
	s.stopping.Store(true)
	s.closeListener()
	return nil
}

func (s *TCPServer) closeListener() {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
}

// dispatch wraps conn in a job that owns everything it touches.
func (s *TCPServer) dispatch(conn net.Conn) {
	requestID := core.GenerateRequestID()
	acceptedAt := time.Now()

	s.activeConns.Add(1)
	err := s.submitter.Submit(func() {
		s.serveConn(conn, requestID, acceptedAt)
	})
	if err != nil {
		s.activeConns.Add(-1)
		s.rejectedConnections.Add(1)
		s.logger.Warnf("tcp: rejected connection from %s: %v", conn.RemoteAddr(), err)
		_ = conn.Close()
	}
}

// serveConn runs on a worker goroutine. A panic in the handler is not
// recovered here; use the Recovery middleware to isolate it per connection.
func (s *TCPServer) serveConn(conn net.Conn, requestID string, acceptedAt time.Time) {
	defer s.activeConns.Add(-1)
	defer conn.Close()

	ctx := core.WithRequestID(context.Background(), requestID)
	ctx, span := s.tracer.Start(ctx, "tcp.conn",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("net.peer.addr", conn.RemoteAddr().String()),
			attribute.String("request.id", requestID),
			attribute.Int64("queue.wait_ms", time.Since(acceptedAt).Milliseconds()),
		),
	)
	defer span.End()

	_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	conn = &deadlineConn{Conn: conn, writeTimeout: s.config.WriteTimeout}

	cctx := &ConnContext{
		Context:    ctx,
		Conn:       conn,
		Logger:     s.logger.WithContext(ctx),
		RequestID:  requestID,
		AcceptedAt: acceptedAt,
		LocalAddr:  conn.LocalAddr(),
		RemoteAddr: conn.RemoteAddr(),
	}

	s.mu.RLock()
	h := s.effective
	s.mu.RUnlock()

	s.handledConnections.Add(1)
	if err := h(cctx); err != nil {
		s.errorConnections.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		cctx.Logger.Errorf("tcp handler error: %v", err)
	}
}

// Metrics returns current server metrics.
func (s *TCPServer) Metrics() ServerMetrics {
	return ServerMetrics{
		TotalAccepted:       s.totalAccepted.Load(),
		RejectedConnections: s.rejectedConnections.Load(),
		HandledConnections:  s.handledConnections.Load(),
		ErrorConnections:    s.errorConnections.Load(),
		ActiveConnections:   s.activeConns.Load(),
		AcceptLimit:         s.config.AcceptLimit,
	}
}

// deadlineConn arms the write deadline on every Write.
type deadlineConn struct {
	net.Conn
	writeTimeout time.Duration
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}
