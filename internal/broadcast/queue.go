// ABOUTME: Unbounded FIFO feeding a lossless subscriber channel
// ABOUTME: push never blocks; a pump goroutine drains into the channel in order

package broadcast

import "sync"

type queue[T any] struct {
	mu    sync.Mutex
	items []T
	wake  chan struct{} // capacity 1, signals a push
	stop  chan struct{}
	once  sync.Once
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

func (q *queue[T]) push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

// close stops the pump, which then closes its channel. Pending values are
// discarded.
func (q *queue[T]) close() {
	q.once.Do(func() { close(q.stop) })
}

// pump moves values to out until close, then closes out.
func (q *queue[T]) pump(out chan<- T) {
	defer close(out)
	for {
		v, ok := q.pop()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-q.stop:
				return
			}
		}
		select {
		case out <- v:
		case <-q.stop:
			return
		}
	}
}
