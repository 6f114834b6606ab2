package concurrency

import (
	"sync"
)

// Queue is an unbounded multi-producer, multi-consumer FIFO of Messages.
//
// Receivers compete for a single mutex; the mutex is held only while a
// message is being taken off the head, never while the caller acts on it.
// Dequeue order therefore equals enqueue order across all producers, while
// which receiver gets a given message is unspecified.
type Queue struct {
	mu    sync.Mutex
	ready *sync.Cond
	items []Message
	head  int
}

// NewQueue creates an empty Queue
func NewQueue() *Queue {
	q := &Queue{}
	q.ready = sync.NewCond(&q.mu)
	return q
}

// Send appends msg to the tail. It never blocks on queue depth.
func (q *Queue) Send(msg Message) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()
	q.ready.Signal()
}

// Receive blocks until a message is available and removes it from the head.
// Each message is returned to exactly one caller.
func (q *Queue) Receive() Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head == len(q.items) {
		q.ready.Wait()
	}

	msg := q.items[q.head]
	q.items[q.head] = Message{} // drop the job reference
	q.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	return msg
}

// Len returns the number of queued messages
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
