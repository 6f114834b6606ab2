package concurrency

import (
	"sync"
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	var got []int
	for i := 0; i < 200; i++ {
		i := i
		q.Send(NewJob(func() { got = append(got, i) }))
	}
	q.Send(Terminate())

	if q.Len() != 201 {
		t.Fatalf("Len() = %d, want 201", q.Len())
	}

	for {
		msg := q.Receive()
		if msg.Kind() == KindTerminate {
			break
		}
		msg.Job()()
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d after draining, want 0", q.Len())
	}
}

func TestQueue_ReceiveBlocksUntilSend(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	received := make(chan Message, 1)
	go func() {
		received <- q.Receive()
	}()

	select {
	case <-received:
		t.Fatal("Receive() returned on an empty queue")
	case <-time.After(30 * time.Millisecond):
	}

	q.Send(Terminate())
	select {
	case msg := <-received:
		if msg.Kind() != KindTerminate {
			t.Errorf("Kind() = %v, want terminate", msg.Kind())
		}
	case <-time.After(time.Second):
		t.Fatal("Receive() did not wake up after Send")
	}
}

func TestQueue_CompetingConsumersExactlyOnce(t *testing.T) {
	t.Parallel()

	const (
		producers = 4
		perProd   = 500
		consumers = 6
	)

	q := NewQueue()
	seen := make([]int32, producers*perProd)
	var mu sync.Mutex

	var cwg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				msg := q.Receive()
				if msg.Kind() == KindTerminate {
					return
				}
				msg.Job()()
			}
		}()
	}

	var pwg sync.WaitGroup
	for p := 0; p < producers; p++ {
		pwg.Add(1)
		go func(p int) {
			defer pwg.Done()
			for i := 0; i < perProd; i++ {
				idx := p*perProd + i
				q.Send(NewJob(func() {
					mu.Lock()
					seen[idx]++
					mu.Unlock()
				}))
			}
		}(p)
	}
	pwg.Wait()
	for c := 0; c < consumers; c++ {
		q.Send(Terminate())
	}
	cwg.Wait()

	for i, n := range seen {
		if n != 1 {
			t.Fatalf("message %d delivered %d times, want 1", i, n)
		}
	}
}

func TestQueue_CompactsConsumedPrefix(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	for i := 0; i < 1000; i++ {
		q.Send(NewJob(func() {}))
	}
	for i := 0; i < 900; i++ {
		q.Receive()
	}
	if q.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", q.Len())
	}
	if q.head > 64 && q.head*2 >= len(q.items) {
		t.Errorf("consumed prefix not reclaimed: head=%d len=%d", q.head, len(q.items))
	}
}

func TestMessage(t *testing.T) {
	t.Parallel()

	job := NewJob(func() {})
	if job.Kind() != KindJob || job.Job() == nil {
		t.Errorf("NewJob() = %v/%v, want job with payload", job.Kind(), job.Job() != nil)
	}

	pill := Terminate()
	if pill.Kind() != KindTerminate || pill.Job() != nil {
		t.Errorf("Terminate() should carry no payload")
	}
	if KindTerminate.String() != "terminate" || KindJob.String() != "job" {
		t.Errorf("unexpected Kind strings: %s, %s", KindJob, KindTerminate)
	}
}

func TestNamedJob(t *testing.T) {
	t.Parallel()

	var ran bool
	nj := NewNamedJob("conn-1", func() { ran = true })
	if nj.Name() != "conn-1" {
		t.Errorf("Name() = %q, want conn-1", nj.Name())
	}
	nj.Job()()
	if !ran {
		t.Error("Job() should return the wrapped job")
	}

	var empty *NamedJob
	if empty.Job() != nil {
		t.Error("nil NamedJob should yield a nil Job")
	}
}
