package servo

import "bytes"

// FakePort records bytes written to a servo bus.
type FakePort struct {
	bytes.Buffer
	Closed   bool
	WriteErr error
}

// Write records p unless WriteErr is set.
func (p *FakePort) Write(b []byte) (int, error) {
	if p.WriteErr != nil {
		return 0, p.WriteErr
	}
	return p.Buffer.Write(b)
}

// Close marks the port closed.
func (p *FakePort) Close() error {
	p.Closed = true
	return nil
}
