package stream

import (
	"context"
	"sync"

	"github.com/eapache/queue"
)

// inbox is the unbounded FIFO of raw inbound frames for one session.
// Insertion never blocks and never drops; the single consumer blocks until
// a frame arrives or its context is cancelled.
type inbox struct {
	mu   sync.Mutex
	q    *queue.Queue
	wake chan struct{} // one-slot wakeup for the consumer
}

func newInbox() *inbox {
	return &inbox{
		q:    queue.New(),
		wake: make(chan struct{}, 1),
	}
}

// Push appends a frame in arrival order
func (b *inbox) Push(frame []byte) {
	b.mu.Lock()
	b.q.Add(frame)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Pop removes the oldest frame, blocking until one is available. It
// returns false once ctx is cancelled and the queue has been drained of
// the frame it was woken for.
func (b *inbox) Pop(ctx context.Context) ([]byte, bool) {
	for {
		b.mu.Lock()
		if b.q.Length() > 0 {
			frame := b.q.Remove().([]byte)
			b.mu.Unlock()
			return frame, true
		}
		b.mu.Unlock()

		select {
		case <-b.wake:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Len reports the number of queued frames
func (b *inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.q.Length()
}
