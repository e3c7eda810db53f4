package ttl

// Transition records one SetLine call.
type Transition struct {
	Line  int
	State bool
}

// FakeWriter is a test double that records line transitions.
type FakeWriter struct {
	// Transitions contains every SetLine call in order, including
	// negative lines (which the real writer ignores).
	Transitions []Transition

	// SetError, if set, will be returned by SetLine.
	SetError error

	// Closed tracks if Close was called.
	Closed bool

	levels map[int]bool
}

// NewFakeWriter creates a FakeWriter.
func NewFakeWriter() *FakeWriter {
	return &FakeWriter{levels: make(map[int]bool)}
}

// SetLine records the transition.
func (f *FakeWriter) SetLine(line int, state bool) error {
	if f.SetError != nil {
		return f.SetError
	}

	f.Transitions = append(f.Transitions, Transition{Line: line, State: state})
	if line >= 0 {
		f.levels[line] = state
	}
	return nil
}

// Level returns the last level driven on a line (false if never driven).
func (f *FakeWriter) Level(line int) bool {
	return f.levels[line]
}

// Close marks the writer as closed and drives all known lines low, matching
// the real writer.
func (f *FakeWriter) Close() error {
	for line := range f.levels {
		f.levels[line] = false
	}
	f.Closed = true
	return nil
}

// Reset clears recorded transitions.
func (f *FakeWriter) Reset() {
	f.Transitions = nil
	f.levels = make(map[int]bool)
	f.Closed = false
	f.SetError = nil
}
