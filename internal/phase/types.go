// Package phase contains the pure phase-landmark detection core.
// This package has NO external dependencies (no GPIO, MQTT, OS, or clocks).
// Timing is always expressed as absolute sample numbers supplied by the host.
package phase

import "fmt"

// Landmark identifies one of the four detectable waveform features.
type Landmark int

const (
	Peak Landmark = iota
	FallingZero
	Trough
	RisingZero
)

// String returns the canonical name used in control messages and payloads.
func (l Landmark) String() string {
	switch l {
	case Peak:
		return "PEAK"
	case FallingZero:
		return "FALLING_ZERO"
	case Trough:
		return "TROUGH"
	case RisingZero:
		return "RISING_ZERO"
	}
	return fmt.Sprintf("Landmark(%d)", int(l))
}

// ParseLandmark converts a canonical landmark name back to a Landmark.
func ParseLandmark(s string) (Landmark, error) {
	switch s {
	case "PEAK":
		return Peak, nil
	case "FALLING_ZERO":
		return FallingZero, nil
	case "TROUGH":
		return Trough, nil
	case "RISING_ZERO":
		return RisingZero, nil
	}
	return 0, fmt.Errorf("unknown landmark %q", s)
}

// Phase records the last landmark the waveform crossed. It is the memory
// that prevents a landmark from firing twice within the same half-cycle.
type Phase int

const (
	PhaseNone Phase = iota
	FallingPos
	FallingNeg
	RisingNeg
	RisingPos
)

// EventKind distinguishes the three digital-line transitions the detector
// can produce.
type EventKind int

const (
	// TriggerOn starts a pulse on the output line.
	TriggerOn EventKind = iota
	// TriggerOff ends a pulse, either at a landmark re-arm or at the
	// pulse-width ceiling.
	TriggerOff
	// LineClear drives a retired output line low after reconfiguration.
	LineClear
)

func (k EventKind) String() string {
	switch k {
	case TriggerOn:
		return "ON"
	case TriggerOff:
		return "OFF"
	case LineClear:
		return "CLEAR"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is a single digital-line transition produced by the detector.
type Event struct {
	// SampleNumber is the absolute sample index the transition applies to.
	SampleNumber int64
	// Line is the digital output line the transition drives.
	Line int
	// Kind says why the transition was emitted.
	Kind EventKind
}

// State returns the digital level the event drives: high only for TriggerOn.
func (e Event) State() bool { return e.Kind == TriggerOn }

// PulseWidthSamples is the maximum duration of an emitted pulse, in samples,
// before it is turned off automatically. Fixed in samples, not wall time, so
// the pulse ceiling scales with the sample rate.
const PulseWidthSamples = 2000

// LineNone marks a disabled line or an unselected channel.
const LineNone = -1

// Block is one processing block of samples for a stream. Channels is indexed
// by global channel index; every channel carries NumSamples samples.
type Block struct {
	FirstSample int64
	Channels    [][]float64
	NumSamples  int
}

// EventCounts tracks the number of each event kind emitted since the stream
// was added.
type EventCounts struct {
	On     int
	Off    int
	Clears int
}

// StreamState is the mutable detector state for one stream. A StreamState is
// owned exclusively by the Detector that created it.
type StreamState struct {
	// Target is the landmark that triggers the output.
	Target Landmark
	// TriggerChannel is the global index of the analyzed channel,
	// LineNone when no channel is selected.
	TriggerChannel int
	// OutputLine is the digital line pulses are emitted on. Negative
	// disables emission.
	OutputLine int
	// GateLine is the digital input line gating detection, LineNone when
	// ungated.
	GateLine int
	// Active is the current gate state. Detection only emits while true.
	Active bool
	// Counts accumulates emitted events.
	Counts EventCounts

	lastSample          float64
	currentPhase        Phase
	clearLine           int // retired line awaiting a LineClear, LineNone if none
	lastTTLWord         uint64
	samplesSinceTrigger int
	wasTriggered        bool
}

func newStreamState() *StreamState {
	return &StreamState{
		GateLine:  LineNone,
		Active:    true,
		clearLine: LineNone,
	}
}

// Held reports whether a pulse is currently high (an on was emitted with no
// matching off yet).
func (s *StreamState) Held() bool { return s.wasTriggered }

// PendingClear returns the line awaiting a LineClear, or LineNone.
func (s *StreamState) PendingClear() int { return s.clearLine }
