package mqtt

import (
	"sync"
	"testing"
	"time"

	"github.com/sweeney/rover/internal/fsm"
)

// stalledPublisher blocks every publish until release is closed, as a
// broker on a half-open link would.
type stalledPublisher struct {
	release chan struct{}

	mu     sync.Mutex
	events []string
	closed bool
}

func newStalledPublisher() *stalledPublisher {
	return &stalledPublisher{release: make(chan struct{})}
}

func (s *stalledPublisher) Publish(event TransitionEvent) error {
	<-s.release
	s.mu.Lock()
	s.events = append(s.events, string(event.To))
	s.mu.Unlock()
	return nil
}

func (s *stalledPublisher) PublishSystem(event SystemEvent) error {
	<-s.release
	s.mu.Lock()
	s.events = append(s.events, event.Event)
	s.mu.Unlock()
	return nil
}

func (s *stalledPublisher) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *stalledPublisher) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func transitionTo(to fsm.State) TransitionEvent {
	return TransitionEvent{Transition: fsm.Transition{From: fsm.StateWander, To: to}}
}

func TestAsyncPublisherDoesNotWaitForBroker(t *testing.T) {
	next := newStalledPublisher()
	a := NewAsyncPublisher(next, 8)

	done := make(chan struct{})
	go func() {
		a.Publish(transitionTo(fsm.StateBackingUpFromBump))
		a.Publish(transitionTo(fsm.StateTurningAfterFlash))
		a.PublishSystem(SystemEvent{Event: "HEARTBEAT"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish waited on a stalled broker")
	}

	close(next.release)
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	want := []string{"BACK_UP_BUMP", "TURN", "HEARTBEAT"}
	got := next.recorded()
	if len(got) != len(want) {
		t.Fatalf("forwarded %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
	if !next.closed {
		t.Error("expected wrapped publisher closed")
	}
}

func TestAsyncPublisherDropsWhenFull(t *testing.T) {
	next := newStalledPublisher()
	a := NewAsyncPublisher(next, 2)
	a.FlushTimeout = 10 * time.Millisecond

	var failed int
	for i := 0; i < 10; i++ {
		if err := a.Publish(transitionTo(fsm.StateWander)); err != nil {
			failed++
		}
	}
	// One job may already be held by the forwarding goroutine.
	if failed < 7 || failed > 8 {
		t.Errorf("expected 7 or 8 refused, got %d", failed)
	}
	if a.Dropped() != uint64(failed) {
		t.Errorf("Dropped: got %d, want %d", a.Dropped(), failed)
	}

	a.Close()
	close(next.release)
}

func TestAsyncPublisherCloseFlushes(t *testing.T) {
	next := NewFakePublisher()
	a := NewAsyncPublisher(next, 0)
	a.Publish(transitionTo(fsm.StateWander))
	a.PublishSystem(SystemEvent{Event: "SHUTDOWN", Retained: true})

	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if len(next.Events) != 1 || len(next.SystemEvents) != 1 || !next.Closed {
		t.Errorf("expected flush then close, got %d/%d closed=%v", len(next.Events), len(next.SystemEvents), next.Closed)
	}
	if err := a.Publish(transitionTo(fsm.StateWander)); err == nil {
		t.Error("expected error after Close")
	}
}

func TestAsyncPublisherCloseTimesOut(t *testing.T) {
	next := newStalledPublisher()
	a := NewAsyncPublisher(next, 4)
	a.FlushTimeout = 20 * time.Millisecond
	a.PublishSystem(SystemEvent{Event: "SHUTDOWN"})

	done := make(chan struct{})
	go func() {
		a.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close hung on a stalled broker")
	}
	close(next.release)
}
