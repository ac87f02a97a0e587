// ABOUTME: Bounded double-ended queue connecting two pipeline stages
// ABOUTME: Blocking send/receive with stop (abort) and finish (drain) semantics
package queue

import (
	"io"
	"sync"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
)

// Queue is a fixed-capacity deque with one producer and one consumer.
// Ordinary traffic is FIFO; SendFront and ReceiveBack are reserved for
// flush and discard paths.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	items    []T
	head     int
	count    int
	stopped  bool
	finished bool
}

// New creates a queue holding at most capacity items
func New[T any](capacity int) (*Queue[T], error) {
	if capacity <= 0 {
		return nil, audio.ErrAlloc
	}
	q := &Queue[T]{items: make([]T, capacity)}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q, nil
}

// Send appends item, blocking while the queue is full
func (q *Queue[T]) Send(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.waitSpace(); err != nil {
		return err
	}
	q.items[(q.head+q.count)%len(q.items)] = item
	q.count++
	q.notEmpty.Signal()
	return nil
}

// SendFront inserts item at the read position so it is received next
func (q *Queue[T]) SendFront(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.waitSpace(); err != nil {
		return err
	}
	q.head = (q.head - 1 + len(q.items)) % len(q.items)
	q.items[q.head] = item
	q.count++
	q.notEmpty.Signal()
	return nil
}

// Receive removes the oldest item, blocking while the queue is empty.
// It returns io.EOF once a finished queue has drained.
func (q *Queue[T]) Receive() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if err := q.waitItem(); err != nil {
		return zero, err
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.count--
	q.notFull.Signal()
	return item, nil
}

// ReceiveBack removes the most recently sent item
func (q *Queue[T]) ReceiveBack() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if err := q.waitItem(); err != nil {
		return zero, err
	}
	return q.popBack(), nil
}

// TryReceiveBack is ReceiveBack without blocking; ok is false when nothing was removed
func (q *Queue[T]) TryReceiveBack() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped || q.count == 0 {
		return item, false
	}
	return q.popBack(), true
}

// Peek returns the next item without removing it
func (q *Queue[T]) Peek() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped || q.count == 0 {
		return item, false
	}
	return q.items[q.head], true
}

// Stop aborts every blocked and future call and discards queued items
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopped = true
	q.clear()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Finish rejects further sends while letting queued items drain
func (q *Queue[T]) Finish() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.finished = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Reset empties the queue and clears stop and finish.
// No goroutine may be blocked inside the queue.
func (q *Queue[T]) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.clear()
	q.stopped = false
	q.finished = false
}

// IsFull reports whether a Send would block right now
func (q *Queue[T]) IsFull() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count == len(q.items)
}

// IsEmpty reports whether a Receive would block right now
func (q *Queue[T]) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count == 0
}

// Len returns the number of queued items
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the queue capacity
func (q *Queue[T]) Cap() int {
	return len(q.items)
}

func (q *Queue[T]) waitSpace() error {
	for !q.stopped && !q.finished && q.count == len(q.items) {
		q.notFull.Wait()
	}
	if q.stopped || q.finished {
		return audio.ErrAborted
	}
	return nil
}

func (q *Queue[T]) waitItem() error {
	for !q.stopped && !q.finished && q.count == 0 {
		q.notEmpty.Wait()
	}
	if q.stopped {
		return audio.ErrAborted
	}
	if q.count == 0 {
		return io.EOF
	}
	return nil
}

func (q *Queue[T]) popBack() T {
	var zero T
	idx := (q.head + q.count - 1) % len(q.items)
	item := q.items[idx]
	q.items[idx] = zero
	q.count--
	q.notFull.Signal()
	return item
}

func (q *Queue[T]) clear() {
	var zero T
	for i := range q.items {
		q.items[i] = zero
	}
	q.head = 0
	q.count = 0
}
