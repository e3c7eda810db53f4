//go:build !linux

package ttl

import "errors"

// RealWriter is not available on non-Linux platforms.
type RealWriter struct{}

// NewRealWriter returns an error on non-Linux platforms.
func NewRealWriter(chipName string) (*RealWriter, error) {
	return nil, errors.New("ttl: not supported on this platform (requires Linux)")
}

// SetLine is not implemented on non-Linux platforms.
func (w *RealWriter) SetLine(line int, state bool) error {
	return errors.New("ttl: not supported")
}

// Close is not implemented on non-Linux platforms.
func (w *RealWriter) Close() error {
	return nil
}
