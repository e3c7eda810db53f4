// Package source acquires blocks of analog samples with hardware
// abstraction. The real implementation captures from an audio device; the
// sine and fake implementations allow synthetic input and testing.
package source

// Reader delivers fixed-size blocks of samples.
type Reader interface {
	// ReadBlock returns the next block: one slice per channel, each
	// holding the same number of samples. It blocks until a full block
	// is available.
	ReadBlock() ([][]float64, error)

	// Close stops acquisition and releases resources.
	Close() error
}
