package concurrency

import "time"

// ExitReason explains why a worker goroutine stopped
type ExitReason int

const (
	// ExitTerminated means the worker received its poison pill
	ExitTerminated ExitReason = iota
	// ExitPanicked means the worker died while running a job
	ExitPanicked
)

func (r ExitReason) String() string {
	switch r {
	case ExitTerminated:
		return "terminated"
	case ExitPanicked:
		return "panicked"
	default:
		return "unknown"
	}
}

// Observer receives pool lifecycle events.
// Methods are called from worker and submitter goroutines and must not block.
type Observer interface {
	WorkerStarted(id int)
	WorkerExited(id int, reason ExitReason)
	JobQueued()
	JobStarted(id int)
	JobFinished(id int, elapsed time.Duration, panicked bool)
}

// NopObserver ignores every event. Embed it to implement a subset of Observer.
type NopObserver struct{}

func (NopObserver) WorkerStarted(int) {}
func (NopObserver) WorkerExited(int, ExitReason) {}
func (NopObserver) JobQueued() {}
func (NopObserver) JobStarted(int) {}
func (NopObserver) JobFinished(int, time.Duration, bool) {}
