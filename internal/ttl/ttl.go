// Package ttl drives digital output lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package ttl

// Writer drives digital output lines.
type Writer interface {
	// SetLine drives the given line to the given level. Negative lines
	// are ignored (a detector with no output line configured).
	SetLine(line int, state bool) error

	// Close drives all requested lines low and releases GPIO resources.
	Close() error
}

// DefaultChip is the GPIO chip the real writer opens.
const DefaultChip = "gpiochip0"
