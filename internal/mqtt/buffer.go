package mqtt

import "log"

// DefaultBufferSize is the number of messages held while disconnected.
const DefaultBufferSize = 256

// pending is a serialized message waiting for the broker.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO of messages published while the broker
// was unreachable. When full the oldest message is overwritten.
// Not safe for concurrent use; the caller must synchronize.
type outbox struct {
	slots   []pending
	next    int
	count   int
	dropped uint64
	// warned is set once a drop has been logged since the last drain.
	warned bool
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{slots: make([]pending, capacity)}
}

func (o *outbox) push(msg pending) {
	size := len(o.slots)
	if o.count == size {
		o.dropped++
		if !o.warned {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", size)
			o.warned = true
		}
	} else {
		o.count++
	}
	o.slots[o.next] = msg
	o.next = (o.next + 1) % size
}

// takeAll removes and returns every held message, oldest first.
func (o *outbox) takeAll() []pending {
	if o.count == 0 {
		return nil
	}
	size := len(o.slots)
	out := make([]pending, o.count)
	first := (o.next - o.count + size) % size
	for i := range out {
		out[i] = o.slots[(first+i)%size]
		o.slots[(first+i)%size] = pending{}
	}
	o.count = 0
	o.next = 0
	o.warned = false
	return out
}

func (o *outbox) len() int {
	return o.count
}
