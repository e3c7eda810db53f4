//go:build linux

package ttl

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealWriter drives GPIO lines on actual hardware using the Linux GPIO
// character device. Lines are requested lazily on first use and held until
// Close.
type RealWriter struct {
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// NewRealWriter opens the named GPIO chip ("" for the default).
func NewRealWriter(chipName string) (*RealWriter, error) {
	if chipName == "" {
		chipName = DefaultChip
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	return &RealWriter{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
	}, nil
}

// SetLine drives the given line. The line is requested as an output (initial
// level low) the first time it is used.
func (w *RealWriter) SetLine(line int, state bool) error {
	if line < 0 {
		return nil
	}

	l, ok := w.lines[line]
	if !ok {
		var err error
		l, err = w.chip.RequestLine(line, gpiocdev.AsOutput(0))
		if err != nil {
			return fmt.Errorf("request line %d: %w", line, err)
		}
		w.lines[line] = l
	}

	v := 0
	if state {
		v = 1
	}
	if err := l.SetValue(v); err != nil {
		return fmt.Errorf("set line %d: %w", line, err)
	}
	return nil
}

// Close drives every requested line low, then releases all GPIO resources.
// Driving low first ensures no trigger pulse is left high across a restart.
func (w *RealWriter) Close() error {
	var errs []error

	for n, l := range w.lines {
		if err := l.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("lower line %d: %w", n, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", n, err))
		}
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
