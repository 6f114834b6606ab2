package concurrency

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSize is wrapped by the ConfigurationError returned for a non-positive pool size
	ErrInvalidSize = errors.New("pool size must be greater than zero")

	// ErrPoolClosed is returned by Submit once Shutdown has begun
	ErrPoolClosed = errors.New("pool is shut down")

	// ErrNilJob is returned by Submit for a nil job
	ErrNilJob = errors.New("job cannot be nil")

	errUnknownPolicy = errors.New("unknown restart policy")
)

// ConfigurationError reports an invalid pool construction parameter.
// The caller must not use the pool when it is returned.
type ConfigurationError struct {
	Field string
	Value interface{}
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid pool configuration: %s=%v: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
