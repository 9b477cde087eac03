package serialio

// FakeLink is an in-memory line link for tests.
type FakeLink struct {
	// Incoming holds lines waiting to be read, oldest first.
	Incoming []string
	// Written records every line written.
	Written []string
	// WriteError, if set, is returned by WriteLine (the line is not recorded).
	WriteError error
	// Drains counts calls to Drain.
	Drains int
}

// NewFakeLink creates a FakeLink with lines already queued.
func NewFakeLink(incoming ...string) *FakeLink {
	return &FakeLink{Incoming: incoming}
}

// Push queues lines for reading.
func (f *FakeLink) Push(lines ...string) {
	f.Incoming = append(f.Incoming, lines...)
}

// ReadLine pops the oldest queued line.
func (f *FakeLink) ReadLine() (string, bool) {
	if len(f.Incoming) == 0 {
		return "", false
	}
	l := f.Incoming[0]
	f.Incoming = f.Incoming[1:]
	return l, true
}

// WriteLine records s.
func (f *FakeLink) WriteLine(s string) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Written = append(f.Written, s)
	return nil
}

// Drain drops all queued lines.
func (f *FakeLink) Drain() {
	f.Drains++
	f.Incoming = nil
}

// Count returns how many times s was written.
func (f *FakeLink) Count(s string) int {
	n := 0
	for _, w := range f.Written {
		if w == s {
			n++
		}
	}
	return n
}
