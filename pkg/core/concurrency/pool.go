package concurrency

import (
	"sync"
	"sync/atomic"

	"github.com/fluxorio/poolserver/pkg/core"
)

// State is the pool lifecycle stage
type State int32

const (
	// StateActive accepts submissions
	StateActive State = iota
	// StateShuttingDown no longer accepts submissions and is draining
	StateShuttingDown
	// StateStopped means every worker goroutine has exited
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateShuttingDown:
		return "shutting-down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Pool runs submitted jobs on a fixed number of worker goroutines.
//
// Workers compete for messages on one shared Queue. Shutdown sends one
// Terminate per worker behind everything already queued, so every job
// submitted before Shutdown runs before the workers exit.
type Pool struct {
	name     string
	size     int
	queue    *Queue
	logger   core.Logger
	observer Observer
	restart  RestartPolicy

	// mu guards state and the workers slice. Submit holds it shared while
	// enqueuing so that no job can land behind the poison pills.
	mu      sync.RWMutex
	state   State
	workers []*worker

	alive        atomic.Int32
	shutdownOnce sync.Once
	stopped      chan struct{}
}

// NewPool creates a pool of size workers and starts them.
// It returns a *ConfigurationError wrapping ErrInvalidSize when size <= 0.
func NewPool(size int, opts ...Option) (*Pool, error) {
	if size <= 0 {
		return nil, &ConfigurationError{Field: "size", Value: size, Err: ErrInvalidSize}
	}

	p := &Pool{
		name:     "default",
		size:     size,
		queue:    NewQueue(),
		logger:   core.NewDefaultLogger(),
		observer: NopObserver{},
		restart:  RestartNever,
		state:    StateActive,
		workers:  make([]*worker, size),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.mu.Lock()
	for id := 0; id < size; id++ {
		p.workers[id] = p.spawnLocked(id)
	}
	p.mu.Unlock()

	p.logger.Infof("pool %s: started %d workers (restart=%s)", p.name, size, p.restart)
	return p, nil
}

// spawnLocked starts a worker goroutine for id. p.mu must be held.
func (p *Pool) spawnLocked(id int) *worker {
	w := newWorker(id, p)
	p.alive.Add(1)
	go w.run()
	return w
}

// Submit enqueues job and returns immediately.
// It does not wait for, or report on, the job's execution. The queue is
// unbounded, so sustained overload grows memory rather than blocking callers.
// After Shutdown has begun Submit returns ErrPoolClosed.
func (p *Pool) Submit(job Job) error {
	if job == nil {
		return ErrNilJob
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.state != StateActive {
		return ErrPoolClosed
	}
	p.queue.Send(NewJob(job))
	p.observer.JobQueued()
	return nil
}

// Shutdown enqueues one Terminate per worker and blocks until every worker
// goroutine has exited, joining them in id order. Jobs already queued run
// first. There is no timeout: a job that never returns keeps Shutdown blocked.
// Calling Shutdown again, concurrently or later, waits for the same result.
func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.state = StateShuttingDown
		p.mu.Unlock()

		p.logger.Infof("pool %s: sending terminate to %d workers", p.name, p.size)
		for i := 0; i < p.size; i++ {
			p.queue.Send(Terminate())
		}

		for id := 0; id < p.size; id++ {
			p.logger.Debugf("pool %s: shutting down worker %d", p.name, id)
			p.joinWorker(id)
		}

		p.mu.Lock()
		p.state = StateStopped
		p.mu.Unlock()
		close(p.stopped)

		p.logger.Infof("pool %s: all workers stopped", p.name)
	})
	<-p.stopped
}

// joinWorker waits for the goroutine currently holding id, following
// replacements made by RestartOnPanic.
func (p *Pool) joinWorker(id int) {
	for {
		p.mu.RLock()
		w := p.workers[id]
		p.mu.RUnlock()

		w.join()

		p.mu.RLock()
		replaced := p.workers[id] != w
		p.mu.RUnlock()
		if !replaced {
			return
		}
	}
}

// Close implements io.Closer by calling Shutdown
func (p *Pool) Close() error {
	p.Shutdown()
	return nil
}

// workerExited is called from the exiting worker goroutine itself. Any
// replacement is installed before w.done is closed so joinWorker sees it.
func (p *Pool) workerExited(w *worker, reason ExitReason) {
	p.alive.Add(-1)
	p.observer.WorkerExited(w.id, reason)

	if reason == ExitPanicked {
		p.mu.Lock()
		if p.state == StateActive && p.restart == RestartOnPanic {
			p.workers[w.id] = p.spawnLocked(w.id)
			p.logger.Warnf("pool %s: worker %d replaced after job failure", p.name, w.id)
		} else {
			p.logger.Warnf("pool %s: worker %d lost, capacity is now %d of %d",
				p.name, w.id, p.alive.Load(), p.size)
		}
		p.mu.Unlock()
	}

	close(w.done)
}

// Name returns the pool name
func (p *Pool) Name() string {
	return p.name
}

// Size returns the number of workers the pool was created with
func (p *Pool) Size() int {
	return p.size
}

// Alive returns the number of worker goroutines currently running
func (p *Pool) Alive() int {
	return int(p.alive.Load())
}

// Pending returns the number of queued messages not yet taken by a worker
func (p *Pool) Pending() int {
	return p.queue.Len()
}

// State returns the lifecycle state
func (p *Pool) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Done is closed once Shutdown has finished
func (p *Pool) Done() <-chan struct{} {
	return p.stopped
}
