package source

import "errors"

// FakeReader is a test double that returns scripted blocks.
type FakeReader struct {
	// Blocks contains scripted blocks to return, one per ReadBlock call.
	Blocks [][][]float64

	// index tracks current position in Blocks
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by ReadBlock
	ReadError error
}

// NewFakeReader creates a FakeReader with the given blocks.
func NewFakeReader(blocks [][][]float64) *FakeReader {
	return &FakeReader{Blocks: blocks}
}

// ReadBlock returns the next scripted block. When the script is exhausted
// it returns an error, so a run loop driven by it terminates.
func (f *FakeReader) ReadBlock() ([][]float64, error) {
	if f.ReadError != nil {
		return nil, f.ReadError
	}
	if f.index >= len(f.Blocks) {
		return nil, errors.New("no blocks left")
	}

	block := f.Blocks[f.index]
	f.index++
	return block, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of the script.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
	f.ReadError = nil
}
