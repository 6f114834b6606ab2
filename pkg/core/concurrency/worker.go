package concurrency

import (
	"runtime/debug"
	"time"
)

// worker owns one goroutine that drains the pool queue.
// done is closed once the goroutine has returned; the pool waits on it the
// way a thread join would.
type worker struct {
	id   int
	pool *Pool
	done chan struct{}
}

func newWorker(id int, pool *Pool) *worker {
	return &worker{
		id:   id,
		pool: pool,
		done: make(chan struct{}),
	}
}

// run is the worker loop: Idle -> Executing -> Idle, or Idle -> Terminated.
func (w *worker) run() {
	reason := ExitTerminated
	defer func() {
		w.pool.workerExited(w, reason)
	}()

	w.pool.observer.WorkerStarted(w.id)

	for {
		// The queue lock is released before the job runs.
		msg := w.pool.queue.Receive()

		switch msg.Kind() {
		case KindTerminate:
			w.pool.logger.Debugf("pool %s: worker %d is terminating", w.pool.name, w.id)
			return
		case KindJob:
			w.pool.logger.Debugf("pool %s: worker %d got a job", w.pool.name, w.id)
			if !w.execute(msg.Job()) {
				reason = ExitPanicked
				return
			}
		}
	}
}

// execute runs job on the worker goroutine and reports whether it returned
// normally. A panic is recovered here only so it cannot take the process down;
// the worker still exits afterwards.
func (w *worker) execute(job Job) (ok bool) {
	start := time.Now()
	w.pool.observer.JobStarted(w.id)

	defer func() {
		if !ok {
			r := recover()
			w.pool.logger.Errorf("pool %s: worker %d: job failed, worker exiting: %v\n%s",
				w.pool.name, w.id, r, debug.Stack())
		}
		w.pool.observer.JobFinished(w.id, time.Since(start), !ok)
	}()

	job()
	return true
}

// join blocks until the worker goroutine has exited
func (w *worker) join() {
	<-w.done
}
