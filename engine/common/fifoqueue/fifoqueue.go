package fifoqueue

import (
	"fmt"
	mathbits "math/bits"
	"sync"

	"github.com/ef-ds/deque"
)

// FifoQueue implements a FIFO queue with max capacity and length observer.
// Elements that exceed the queue's max capacity are dropped and Push returns
// false. By default, the theoretical capacity equals the largest `int` value.
// Each time the queue's length changes, the QueueLengthObserver is called
// with the new length.
//
// The queue is concurrency safe. The QueueLengthObserver must be non-blocking.
type FifoQueue[T any] struct {
	mu             sync.RWMutex
	queue          deque.Deque
	maxCapacity    int
	lengthObserver QueueLengthObserver
}

// ConstructorOption is an optional argument for NewFifoQueue.
type ConstructorOption func(*options) error

type options struct {
	maxCapacity    int
	lengthObserver QueueLengthObserver
}

// QueueLengthObserver is a callback that can optionally be provided
// to the `NewFifoQueue` constructor (via `WithLengthObserver` option).
type QueueLengthObserver func(int)

// WithCapacity specifies the max number of elements the queue can hold.
func WithCapacity(capacity int) ConstructorOption {
	return func(o *options) error {
		if capacity < 1 {
			return fmt.Errorf("capacity for Fifo queue must be positive")
		}
		o.maxCapacity = capacity
		return nil
	}
}

// WithLengthObserver registers a callback invoked with the new length after
// every push and pop.
func WithLengthObserver(callback QueueLengthObserver) ConstructorOption {
	return func(o *options) error {
		if callback == nil {
			return fmt.Errorf("nil is not a valid QueueLengthObserver")
		}
		o.lengthObserver = callback
		return nil
	}
}

func NewFifoQueue[T any](opts ...ConstructorOption) (*FifoQueue[T], error) {
	o := &options{
		maxCapacity:    1<<(mathbits.UintSize-1) - 1,
		lengthObserver: func(int) {},
	}
	for _, opt := range opts {
		err := opt(o)
		if err != nil {
			return nil, fmt.Errorf("failed to apply constructor option to fifoqueue queue: %w", err)
		}
	}
	return &FifoQueue[T]{
		maxCapacity:    o.maxCapacity,
		lengthObserver: o.lengthObserver,
	}, nil
}

// Push appends the given value to the tail of the queue.
// If queue capacity is reached, the element is dropped and false is returned.
func (q *FifoQueue[T]) Push(element T) bool {
	length, pushed := q.push(element)

	if pushed {
		q.lengthObserver(length)
	}
	return pushed
}

func (q *FifoQueue[T]) push(element T) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	length := q.queue.Len()
	if length < q.maxCapacity {
		q.queue.PushBack(element)
		return length + 1, true
	}
	return length, false
}

// Front peeks at the head of the queue without removing it.
func (q *FifoQueue[T]) Front() (T, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	v, ok := q.queue.Front()
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// Pop removes and returns the queue's head element.
func (q *FifoQueue[T]) Pop() (T, bool) {
	event, length, ok := q.pop()
	if !ok {
		var zero T
		return zero, false
	}

	q.lengthObserver(length)
	return event, true
}

func (q *FifoQueue[T]) pop() (T, int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	v, ok := q.queue.PopFront()
	if !ok {
		var zero T
		return zero, 0, false
	}
	return v.(T), q.queue.Len(), true
}

// Len returns the current length of the queue.
func (q *FifoQueue[T]) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.queue.Len()
}
