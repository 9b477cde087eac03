package mqtt

import (
	"testing"
)

func fill(o *outbox, from, to int) {
	for i := from; i < to; i++ {
		o.push(pending{topic: "t", payload: []byte{byte(i)}})
	}
}

func TestOutboxEmpty(t *testing.T) {
	o := newOutbox(10)
	if got := o.takeAll(); got != nil {
		t.Errorf("expected nil from empty outbox, got %d items", len(got))
	}
}

func TestOutboxOrder(t *testing.T) {
	o := newOutbox(10)
	fill(o, 0, 5)

	got := o.takeAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i, msg := range got {
		if msg.payload[0] != byte(i) {
			t.Errorf("item %d: expected payload %d, got %d", i, i, msg.payload[0])
		}
	}
	if o.takeAll() != nil {
		t.Error("expected outbox empty after takeAll")
	}
}

func TestOutboxOverflowKeepsNewest(t *testing.T) {
	o := newOutbox(5)
	fill(o, 0, 8)

	got := o.takeAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i, msg := range got {
		if want := byte(i + 3); msg.payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, msg.payload[0])
		}
	}
	if o.dropped != 3 {
		t.Errorf("expected 3 dropped, got %d", o.dropped)
	}
}

func TestOutboxReuse(t *testing.T) {
	o := newOutbox(5)
	fill(o, 0, 3)
	o.takeAll()

	fill(o, 10, 14)
	got := o.takeAll()
	if len(got) != 4 {
		t.Fatalf("expected 4 items, got %d", len(got))
	}
	for i, msg := range got {
		if want := byte(10 + i); msg.payload[0] != want {
			t.Errorf("item %d: expected %d, got %d", i, want, msg.payload[0])
		}
	}
}

func TestOutboxLenAndFields(t *testing.T) {
	o := newOutbox(0)
	o.push(pending{topic: "a"})
	o.push(pending{topic: TopicSystem, payload: []byte(`{}`), qos: 1, retained: true})
	if o.len() != 1 {
		t.Fatalf("expected capacity clamped to 1, len %d", o.len())
	}

	got := o.takeAll()
	if got[0].topic != TopicSystem || got[0].qos != 1 || !got[0].retained {
		t.Errorf("fields not preserved: %+v", got[0])
	}
	if o.len() != 0 {
		t.Errorf("expected len 0 after takeAll, got %d", o.len())
	}
}
