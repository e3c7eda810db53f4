// Package status provides a thread-safe status tracker for the phase-trigger
// daemon. It is designed to be read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/phase-trigger/internal/phase"
)

// Config contains daemon configuration for display.
type Config struct {
	SampleRate  int
	BlockSize   int
	Channels    int
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	Device      string // audio device name, or "synth"
}

// StreamStatus is the displayed state of one detector stream.
type StreamStatus struct {
	Stream   uint16
	Target   string
	Channel  int
	Output   int
	GateLine int
	Active   bool
	Held     bool
	Counts   phase.EventCounts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Streams       []StreamStatus
	Blocks        int64 // blocks processed so far
	SampleNumber  int64 // absolute sample index at the end of the last block
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the per-stream detector state and block progress.
// Called from runLoop after every processed block.
func (t *Tracker) Update(streams []StreamStatus, blocks, sampleNumber int64) {
	t.mu.Lock()
	t.snap.Streams = streams
	t.snap.Blocks = blocks
	t.snap.SampleNumber = sampleNumber
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

// StreamStatusOf builds a StreamStatus from the detector's state for id.
func StreamStatusOf(d *phase.Detector, id uint16) StreamStatus {
	s := d.Stream(id)
	if s == nil {
		return StreamStatus{Stream: id}
	}
	return StreamStatus{
		Stream:   id,
		Target:   s.Target.String(),
		Channel:  s.TriggerChannel,
		Output:   s.OutputLine,
		GateLine: s.GateLine,
		Active:   s.Active,
		Held:     s.Held(),
		Counts:   s.Counts,
	}
}
