package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// DefaultFlushTimeout bounds how long Close waits for queued events.
const DefaultFlushTimeout = 3 * time.Second

// job is one queued event; exactly one field is set.
type job struct {
	transition *TransitionEvent
	system     *SystemEvent
}

// AsyncPublisher queues events for a background goroutine that forwards
// them to another Publisher in order. Publish and PublishSystem never wait
// on the broker; when the queue is full the event is dropped and counted.
type AsyncPublisher struct {
	next Publisher
	jobs chan job
	done chan struct{}

	// FlushTimeout bounds Close. Set before the first Close.
	FlushTimeout time.Duration

	mu      sync.Mutex
	closed  bool
	dropped uint64
}

// NewAsyncPublisher starts forwarding to next with room for size events.
func NewAsyncPublisher(next Publisher, size int) *AsyncPublisher {
	if size <= 0 {
		size = DefaultBufferSize
	}
	a := &AsyncPublisher{
		next:         next,
		jobs:         make(chan job, size),
		done:         make(chan struct{}),
		FlushTimeout: DefaultFlushTimeout,
	}
	go a.forward()
	return a
}

func (a *AsyncPublisher) forward() {
	defer close(a.done)
	for j := range a.jobs {
		var err error
		if j.transition != nil {
			err = a.next.Publish(*j.transition)
		} else {
			err = a.next.PublishSystem(*j.system)
		}
		if err != nil {
			log.Printf("mqtt: %v", err)
		}
	}
}

func (a *AsyncPublisher) enqueue(j job) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("publisher closed")
	}
	select {
	case a.jobs <- j:
		return nil
	default:
		a.dropped++
		return fmt.Errorf("publish queue full, %d dropped", a.dropped)
	}
}

// Publish queues a transition.
func (a *AsyncPublisher) Publish(event TransitionEvent) error {
	return a.enqueue(job{transition: &event})
}

// PublishSystem queues a system event.
func (a *AsyncPublisher) PublishSystem(event SystemEvent) error {
	return a.enqueue(job{system: &event})
}

// Dropped returns the number of events refused because the queue was full.
func (a *AsyncPublisher) Dropped() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Close stops accepting events, waits up to FlushTimeout for the queue to
// drain, then closes the wrapped publisher.
func (a *AsyncPublisher) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.jobs)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
	case <-time.After(a.FlushTimeout):
		log.Printf("mqtt: %d events not flushed before close", len(a.jobs))
	}
	return a.next.Close()
}
