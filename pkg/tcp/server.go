package tcp

import (
	"context"
	"net"
	"time"

	"github.com/fluxorio/poolserver/pkg/core"
	"github.com/fluxorio/poolserver/pkg/core/concurrency"
)

// Server represents a TCP server abstraction.
type Server interface {
	// Start binds and runs the accept loop (blocking).
	Start() error

	// Stop closes the listener. Connections already handed to the
	// Submitter are left to drain there.
	Stop() error

	// SetHandler sets the connection handler (fail-fast on nil).
	SetHandler(handler ConnectionHandler)

	// Metrics returns current server metrics.
	Metrics() ServerMetrics
}

// Submitter receives one self-contained job per accepted connection.
// *concurrency.Pool satisfies it.
type Submitter interface {
	Submit(job concurrency.Job) error
}

// ConnectionHandler handles a single TCP connection.
// The server closes the connection after handler returns.
type ConnectionHandler func(ctx *ConnContext) error

// Middleware wraps a ConnectionHandler.
type Middleware func(next ConnectionHandler) ConnectionHandler

// ConnContext carries per-connection state into the handler.
type ConnContext struct {
	// Context carries the request ID and the connection's tracing span.
	Context context.Context
	Conn    net.Conn
	Logger  core.Logger

	RequestID  string
	AcceptedAt time.Time
	LocalAddr  net.Addr
	RemoteAddr net.Addr
}

// ServerMetrics provides TCP server counters.
type ServerMetrics struct {
	TotalAccepted       int64 // Connections returned by Accept
	RejectedConnections int64 // Connections the Submitter refused
	HandledConnections  int64 // Connections whose handler ran
	ErrorConnections    int64 // Handlers that returned an error
	ActiveConnections   int64 // Submitted and not yet closed (queued + handling)
	AcceptLimit         int   // 0 means unlimited
}
