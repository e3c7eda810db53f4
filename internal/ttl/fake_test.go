package ttl

import (
	"errors"
	"testing"
)

func TestFakeWriterRecordsTransitions(t *testing.T) {
	f := NewFakeWriter()

	if err := f.SetLine(3, true); err != nil {
		t.Fatalf("SetLine: %v", err)
	}
	if err := f.SetLine(3, false); err != nil {
		t.Fatalf("SetLine: %v", err)
	}
	if err := f.SetLine(5, true); err != nil {
		t.Fatalf("SetLine: %v", err)
	}

	want := []Transition{{3, true}, {3, false}, {5, true}}
	if len(f.Transitions) != len(want) {
		t.Fatalf("expected %d transitions, got %d", len(want), len(f.Transitions))
	}
	for i, tr := range want {
		if f.Transitions[i] != tr {
			t.Errorf("transition %d: expected %+v, got %+v", i, tr, f.Transitions[i])
		}
	}

	if f.Level(3) {
		t.Error("line 3 should be low after the off transition")
	}
	if !f.Level(5) {
		t.Error("line 5 should be high")
	}
}

func TestFakeWriterSetError(t *testing.T) {
	f := NewFakeWriter()
	f.SetError = errors.New("boom")

	if err := f.SetLine(1, true); err == nil {
		t.Error("expected SetLine to return the configured error")
	}
	if len(f.Transitions) != 0 {
		t.Error("failed SetLine should not be recorded")
	}
}

func TestFakeWriterCloseLowersLines(t *testing.T) {
	f := NewFakeWriter()
	f.SetLine(2, true)

	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !f.Closed {
		t.Error("Closed should be set")
	}
	if f.Level(2) {
		t.Error("Close should drive line 2 low")
	}
}

func TestFakeWriterReset(t *testing.T) {
	f := NewFakeWriter()
	f.SetLine(2, true)
	f.Close()

	f.Reset()
	if len(f.Transitions) != 0 || f.Closed || f.Level(2) {
		t.Error("Reset should clear all recorded state")
	}
}
