package concurrency

import (
	"github.com/fluxorio/poolserver/pkg/core"
)

// RestartPolicy decides what happens to a worker whose job panicked
type RestartPolicy int

const (
	// RestartNever lets the worker die; pool capacity shrinks by one for good.
	RestartNever RestartPolicy = iota
	// RestartOnPanic replaces the dead worker with a fresh goroutine under the
	// same id, as long as shutdown has not begun.
	RestartOnPanic
)

func (p RestartPolicy) String() string {
	switch p {
	case RestartNever:
		return "never"
	case RestartOnPanic:
		return "on-panic"
	default:
		return "unknown"
	}
}

// ParseRestartPolicy maps a config string to a RestartPolicy
func ParseRestartPolicy(s string) (RestartPolicy, error) {
	switch s {
	case "", "never":
		return RestartNever, nil
	case "on-panic":
		return RestartOnPanic, nil
	default:
		return RestartNever, &ConfigurationError{Field: "restart", Value: s, Err: errUnknownPolicy}
	}
}

// Option configures a Pool
type Option func(*Pool)

// WithName sets the pool name used in log lines
func WithName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLogger sets the pool logger
func WithLogger(logger core.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver sets the lifecycle observer
func WithObserver(observer Observer) Option {
	return func(p *Pool) {
		if observer != nil {
			p.observer = observer
		}
	}
}

// WithRestartPolicy sets the restart policy. The default is RestartNever.
func WithRestartPolicy(policy RestartPolicy) Option {
	return func(p *Pool) {
		p.restart = policy
	}
}
