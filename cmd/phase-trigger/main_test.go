package main

import (
	"encoding/json"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/phase-trigger/internal/mqtt"
	"github.com/sweeney/phase-trigger/internal/phase"
	"github.com/sweeney/phase-trigger/internal/status"
	"github.com/sweeney/phase-trigger/internal/ttl"
)

// fakeClock returns a now() func advancing one second per call.
func fakeClock() func() time.Time {
	t := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

type fixture struct {
	det     *phase.Detector
	blocks  chan [][]float64
	pub     *mqtt.FakePublisher
	writer  *ttl.FakeWriter
	tracker *status.Tracker
}

func newFixture(target phase.Landmark, outputLine int) *fixture {
	det := phase.NewDetector()
	st := det.AddStream(streamID)
	st.Target = target
	st.OutputLine = outputLine

	return &fixture{
		det:     det,
		blocks:  make(chan [][]float64, 8),
		pub:     mqtt.NewFakePublisher(),
		writer:  ttl.NewFakeWriter(),
		tracker: status.NewTracker(time.Now(), status.Config{Broker: "tcp://test:1883"}),
	}
}

// runToCompletion closes the block channel and runs the loop until it drains.
func (f *fixture) runToCompletion(t *testing.T, heartbeat time.Duration) {
	t.Helper()
	close(f.blocks)
	err := runLoop(f.det, f.blocks, f.pub.Controls(), f.writer, f.pub, f.pub, f.tracker, heartbeat, fakeClock(), nil)
	if err != nil {
		t.Fatalf("runLoop: %v", err)
	}
}

func TestRunLoopEmitsTrigger(t *testing.T) {
	f := newFixture(phase.RisingZero, 2)
	f.blocks <- [][]float64{{-0.5, 0.5}}
	f.runToCompletion(t, 0)

	if len(f.pub.Events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(f.pub.Events))
	}
	ev := f.pub.Events[0]
	if ev.Stream != streamID || ev.Event.Kind != phase.TriggerOn || ev.Event.Line != 2 {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Event.SampleNumber != 1 {
		t.Errorf("expected trigger at sample 1, got %d", ev.Event.SampleNumber)
	}

	if len(f.writer.Transitions) != 1 {
		t.Fatalf("expected 1 line transition, got %d", len(f.writer.Transitions))
	}
	if !f.writer.Level(2) {
		t.Error("expected line 2 driven high")
	}

	snap := f.tracker.Snapshot()
	if snap.Blocks != 1 || snap.SampleNumber != 2 {
		t.Errorf("unexpected progress: %+v", snap)
	}
	if len(snap.Streams) != 1 || snap.Streams[0].Counts.On != 1 {
		t.Errorf("unexpected stream status: %+v", snap.Streams)
	}
}

func TestRunLoopAbsoluteSampleNumbersAcrossBlocks(t *testing.T) {
	f := newFixture(phase.RisingZero, 1)
	f.blocks <- [][]float64{{-0.5, -0.2}}
	f.blocks <- [][]float64{{-0.1, 0.3}}
	f.runToCompletion(t, 0)

	if len(f.pub.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.pub.Events))
	}
	// The crossing happens on the second block's second sample.
	if f.pub.Events[0].Event.SampleNumber != 3 {
		t.Errorf("expected trigger at absolute sample 3, got %d", f.pub.Events[0].Event.SampleNumber)
	}
}

func TestRunLoopAppliesControlBeforeBlock(t *testing.T) {
	f := newFixture(phase.Peak, 3)

	// Retarget to TROUGH before the block: the peak at sample 1 must not
	// fire; the trough at sample 4 must.
	f.pub.InjectControl(mqtt.ControlMessage{
		Stream: streamID,
		Set:    "phase",
		Value:  json.RawMessage(`"TROUGH"`),
	})
	f.blocks <- [][]float64{{0.5, 0.3, -0.1, -0.4, -0.2, 0.1}}
	f.runToCompletion(t, 0)

	if len(f.pub.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.pub.Events))
	}
	if f.pub.Events[0].Event.SampleNumber != 4 {
		t.Errorf("expected trough at sample 4, got %+v", f.pub.Events[0].Event)
	}
}

func TestRunLoopGateTransitions(t *testing.T) {
	f := newFixture(phase.RisingZero, 2)
	f.det.SetGateLine(streamID, 3) // word is zero: gated off

	// Gate opens, trigger fires.
	f.pub.InjectControl(mqtt.ControlMessage{
		Stream: streamID,
		TTL:    &mqtt.TTLTransition{Line: 3, State: true, Word: 1 << 3},
	})
	f.blocks <- [][]float64{{-0.5, 0.5}}

	// Gate closes with the pulse still high: forced off at the next
	// block's first sample.
	f.pub.InjectControl(mqtt.ControlMessage{
		Stream: streamID,
		TTL:    &mqtt.TTLTransition{Line: 3, State: false, Word: 0},
	})
	f.blocks <- [][]float64{{0.6, 0.7}}
	f.runToCompletion(t, 0)

	if len(f.pub.Events) != 2 {
		t.Fatalf("expected on+off, got %v", f.pub.Events)
	}
	if f.pub.Events[0].Event.Kind != phase.TriggerOn {
		t.Errorf("expected TriggerOn first, got %+v", f.pub.Events[0].Event)
	}
	off := f.pub.Events[1].Event
	if off.Kind != phase.TriggerOff || off.SampleNumber != 2 {
		t.Errorf("expected forced TriggerOff at sample 2, got %+v", off)
	}
	if f.writer.Level(2) {
		t.Error("expected line 2 driven low after the forced off")
	}
}

func TestRunLoopOutputLineReconfiguration(t *testing.T) {
	f := newFixture(phase.RisingZero, 2)

	f.pub.InjectControl(mqtt.ControlMessage{
		Stream: streamID,
		Set:    "ttl_out",
		Value:  json.RawMessage(`5`),
	})
	f.blocks <- [][]float64{{-0.5, 0.5}}
	f.runToCompletion(t, 0)

	// LineClear on the retired line 2, TriggerOn on line 5.
	var clearSeen, onSeen bool
	for _, ev := range f.pub.Events {
		switch ev.Event.Kind {
		case phase.LineClear:
			clearSeen = true
			if ev.Event.Line != 2 {
				t.Errorf("expected clear on line 2, got %+v", ev.Event)
			}
		case phase.TriggerOn:
			onSeen = true
			if ev.Event.Line != 5 {
				t.Errorf("expected trigger on line 5, got %+v", ev.Event)
			}
		}
	}
	if !clearSeen || !onSeen {
		t.Errorf("expected both clear and trigger, got %v", f.pub.Events)
	}
	if f.writer.Level(2) {
		t.Error("retired line 2 should be low")
	}
	if !f.writer.Level(5) {
		t.Error("new line 5 should be high")
	}
}

func TestRunLoopShutdownSignal(t *testing.T) {
	f := newFixture(phase.Peak, 0)
	sig := make(chan os.Signal, 1)
	done := make(chan error, 1)

	go func() {
		done <- runLoop(f.det, f.blocks, f.pub.Controls(), f.writer, f.pub, f.pub, f.tracker, 0, fakeClock(), sig)
	}()

	sig <- syscall.SIGTERM
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runLoop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not stop on signal")
	}

	if len(f.pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(f.pub.SystemEvents))
	}
	ev := f.pub.SystemEvents[0]
	if ev.Event != "SHUTDOWN" || ev.Reason != "SIGTERM" {
		t.Errorf("unexpected system event: %+v", ev)
	}
	if !ev.Retained {
		t.Error("shutdown event should be retained")
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	f := newFixture(phase.Peak, 0)
	// The fake clock advances one second per call; a sub-second heartbeat
	// interval fires on the first block.
	f.blocks <- [][]float64{{0.1, 0.2}}
	f.runToCompletion(t, 500*time.Millisecond)

	var heartbeats int
	for _, ev := range f.pub.SystemEvents {
		if ev.Event == "HEARTBEAT" {
			heartbeats++
		}
	}
	if heartbeats != 1 {
		t.Errorf("expected 1 heartbeat, got %d", heartbeats)
	}
}

func TestRunLoopSurvivesPublishErrors(t *testing.T) {
	f := newFixture(phase.RisingZero, 2)
	f.pub.PublishError = errMock
	f.blocks <- [][]float64{{-0.5, 0.5}}
	f.runToCompletion(t, 0)

	// The line is still driven even though publishing failed.
	if !f.writer.Level(2) {
		t.Error("expected line 2 driven high despite publish failure")
	}
}

func TestRunLoopSurvivesWriterErrors(t *testing.T) {
	f := newFixture(phase.RisingZero, 2)
	f.writer.SetError = errMock
	f.blocks <- [][]float64{{-0.5, 0.5}}
	f.runToCompletion(t, 0)

	if len(f.pub.Events) != 1 {
		t.Errorf("expected the event to be published despite write failure, got %d", len(f.pub.Events))
	}
}

func TestApplyControlMalformed(t *testing.T) {
	det := phase.NewDetector()
	st := det.AddStream(streamID)
	st.Target = phase.Peak

	// None of these may panic or change state.
	applyControl(det, mqtt.ControlMessage{Stream: streamID, Set: "bogus"})
	applyControl(det, mqtt.ControlMessage{Stream: streamID, Set: "phase", Value: json.RawMessage(`"SIDEWAYS"`)})
	applyControl(det, mqtt.ControlMessage{Stream: streamID, Set: "channel", Value: json.RawMessage(`"not an int"`)})

	if st.Target != phase.Peak || st.TriggerChannel != 0 {
		t.Errorf("malformed controls must not change state: %+v", st)
	}
}

var errMock = errors.New("mock failure")
