package tcp

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/fluxorio/poolserver/pkg/core"
)

// ErrHandlerPanic is wrapped by the error Recovery returns for a recovered panic.
var ErrHandlerPanic = errors.New("tcp handler panicked")

// Recovery turns a handler panic into an error so the worker goroutine
// running the connection survives.
func Recovery(logger core.Logger) Middleware {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	return func(next ConnectionHandler) ConnectionHandler {
		return func(ctx *ConnContext) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.WithFields(map[string]interface{}{
						"request_id": ctx.RequestID,
						"remote":     addrString(ctx.RemoteAddr),
					}).Errorf("panic in tcp handler (isolated): %v\n%s", r, debug.Stack())
					err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
				}
			}()
			return next(ctx)
		}
	}
}

// AccessLog logs one line per connection once its handler returns.
func AccessLog(logger core.Logger) Middleware {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	return func(next ConnectionHandler) ConnectionHandler {
		return func(ctx *ConnContext) error {
			start := time.Now()
			err := next(ctx)
			l := logger.WithFields(map[string]interface{}{
				"request_id": ctx.RequestID,
				"remote":     addrString(ctx.RemoteAddr),
				"queued":     start.Sub(ctx.AcceptedAt).String(),
				"elapsed":    time.Since(start).String(),
			})
			if err != nil {
				l.Warnf("connection finished with error: %v", err)
			} else {
				l.Info("connection finished")
			}
			return err
		}
	}
}

func addrString(addr interface{ String() string }) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
