package status

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sweeney/phase-trigger/internal/phase"
)

func testConfig() Config {
	return Config{
		SampleRate:  1000,
		BlockSize:   128,
		Channels:    1,
		HeartbeatMs: 900000,
		Broker:      "tcp://broker:1883",
		HTTPPort:    ":8080",
		Device:      "synth",
	}
}

func TestTrackerSnapshot(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tr := NewTracker(start, testConfig())

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("expected start time %v, got %v", start, snap.StartTime)
	}
	if snap.Config.Broker != "tcp://broker:1883" {
		t.Errorf("unexpected broker: %s", snap.Config.Broker)
	}
	if snap.Now.IsZero() {
		t.Error("Snapshot should stamp Now")
	}
}

func TestTrackerUpdate(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())

	tr.Update([]StreamStatus{{
		Stream:   1,
		Target:   "TROUGH",
		Channel:  0,
		Output:   3,
		GateLine: -1,
		Active:   true,
		Counts:   phase.EventCounts{On: 4, Off: 4},
	}}, 17, 2176)

	snap := tr.Snapshot()
	if len(snap.Streams) != 1 {
		t.Fatalf("expected 1 stream, got %d", len(snap.Streams))
	}
	if snap.Streams[0].Target != "TROUGH" || snap.Streams[0].Counts.On != 4 {
		t.Errorf("unexpected stream status: %+v", snap.Streams[0])
	}
	if snap.Blocks != 17 || snap.SampleNumber != 2176 {
		t.Errorf("unexpected progress: blocks=%d sample=%d", snap.Blocks, snap.SampleNumber)
	}
}

func TestTrackerMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected true")
	}
	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected false")
	}
}

func TestStreamStatusOf(t *testing.T) {
	d := phase.NewDetector()
	s := d.AddStream(3)
	s.Target = phase.RisingZero
	s.OutputLine = 5
	d.SetGateLine(3, 2) // word zero, stream goes inactive

	st := StreamStatusOf(d, 3)
	if st.Stream != 3 || st.Target != "RISING_ZERO" || st.Output != 5 {
		t.Errorf("unexpected status: %+v", st)
	}
	if st.Active {
		t.Error("expected inactive stream")
	}

	// Unknown stream yields a zero status rather than a panic.
	if got := StreamStatusOf(d, 9); got.Stream != 9 || got.Target != "" {
		t.Errorf("unexpected status for unknown stream: %+v", got)
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tr := NewTracker(start, testConfig())
	tr.Update([]StreamStatus{{
		Stream: 1,
		Target: "PEAK",
		Output: 2,
		Active: true,
		Counts: phase.EventCounts{On: 2, Off: 1, Clears: 1},
	}}, 5, 640)

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if len(parsed.Status.Streams) != 1 {
		t.Fatalf("expected 1 stream, got %d", len(parsed.Status.Streams))
	}
	st := parsed.Status.Streams[0]
	if st.Target != "PEAK" || st.Counts.On != 2 || st.Counts.Clears != 1 {
		t.Errorf("unexpected stream JSON: %+v", st)
	}
	if parsed.Status.Blocks != 5 || parsed.Status.SampleNumber != 640 {
		t.Errorf("unexpected progress JSON: %+v", parsed.Status)
	}
	if parsed.Status.Config.SampleRate != 1000 {
		t.Errorf("unexpected config JSON: %+v", parsed.Status.Config)
	}
	if parsed.Status.Event != "" {
		t.Errorf("web JSON should carry no event, got %q", parsed.Status.Event)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())

	var parsed StatusJSON
	payload := FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM")
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("unexpected event JSON: %+v", parsed.Status)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Now().Add(-90 * time.Second)
	tr := NewTracker(start, testConfig())

	up := tr.Snapshot().Uptime()
	if up < 89*time.Second || up > 92*time.Second {
		t.Errorf("unexpected uptime %v", up)
	}
}
