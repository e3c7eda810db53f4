package phase

// Detector owns per-stream detection state and advances it one block at a
// time. It is single-threaded by contract: one Process call runs to
// completion before the next, and streams never share state.
type Detector struct {
	streams map[uint16]*StreamState
}

// NewDetector creates a Detector with no streams.
func NewDetector() *Detector {
	return &Detector{streams: make(map[uint16]*StreamState)}
}

// AddStream creates fresh state for a stream id, replacing any existing
// state for that id, and returns it.
func (d *Detector) AddStream(id uint16) *StreamState {
	s := newStreamState()
	d.streams[id] = s
	return s
}

// RemoveStream drops the state for a stream id.
func (d *Detector) RemoveStream(id uint16) {
	delete(d.streams, id)
}

// Stream returns the state for a stream id, or nil if the stream is unknown.
func (d *Detector) Stream(id uint16) *StreamState {
	return d.streams[id]
}

// classify evaluates the four landmark predicates against the previous
// sample, in priority order; the first match wins. The predicates are
// mutually exclusive per sample (distinct sign/slope conditions), and the
// phase guard stops a landmark from firing twice in the same half-cycle.
// A sample equal to the previous one matches nothing, so flat runs never
// re-fire. Zero belongs to the non-negative side.
func classify(s, p float64, cur Phase) (Landmark, Phase, bool) {
	switch {
	case s < p && s > 0 && cur != FallingPos:
		return Peak, FallingPos, true
	case s < 0 && p >= 0 && cur != FallingNeg:
		return FallingZero, FallingNeg, true
	case s > p && s < 0 && cur != RisingNeg:
		return Trough, RisingNeg, true
	case s > 0 && p <= 0 && cur != RisingPos:
		return RisingZero, RisingPos, true
	}
	return 0, cur, false
}

// Process consumes one block for the given stream and returns the digital
// line events it produced, in non-decreasing sample order. Events sharing a
// sample are ordered: landmark trigger, pulse-width off, line clear.
//
// A zero-length block or an unknown stream is a no-op. When emission
// preconditions fail (inactive gate, disabled output line, out-of-range
// channel) the engine still tracks the waveform but emits no landmark
// events and runs no pulse-width countdown; a pulse left high when the
// channel is unset or the gate closes is forced off at the block's first
// sample.
func (d *Detector) Process(id uint16, block Block) []Event {
	s := d.streams[id]
	if s == nil || block.NumSamples == 0 {
		return nil
	}

	channelValid := s.TriggerChannel >= 0 && s.TriggerChannel < len(block.Channels)
	canEmit := s.Active && s.OutputLine >= 0 && channelValid

	var events []Event

	for i := 0; i < block.NumSamples; i++ {
		if channelValid {
			sample := block.Channels[s.TriggerChannel][i]

			if landmark, next, crossed := classify(sample, s.lastSample, s.currentPhase); crossed {
				// Phase memory advances even when the landmark is not
				// the target or emission is disabled.
				s.currentPhase = next
				if canEmit && landmark == s.Target {
					events = append(events, Event{
						SampleNumber: block.FirstSample + int64(i),
						Line:         s.OutputLine,
						Kind:         TriggerOn,
					})
					s.samplesSinceTrigger = 0
					s.wasTriggered = true
					s.Counts.On++
				}
			}

			s.lastSample = sample
		}

		if canEmit && s.wasTriggered {
			if s.samplesSinceTrigger > PulseWidthSamples {
				events = append(events, Event{
					SampleNumber: block.FirstSample + int64(i),
					Line:         s.OutputLine,
					Kind:         TriggerOff,
				})
				s.wasTriggered = false
				s.Counts.Off++
			} else {
				s.samplesSinceTrigger++
			}
		}

		if s.clearLine != LineNone {
			events = append(events, Event{
				SampleNumber: block.FirstSample + int64(i),
				Line:         s.clearLine,
				Kind:         LineClear,
			})
			s.clearLine = LineNone
			s.Counts.Clears++
		}
	}

	// An unset channel or a closed gate must not leave a pulse held high.
	if s.wasTriggered && (s.TriggerChannel < 0 || !s.Active) {
		events = append(events, Event{
			SampleNumber: block.FirstSample,
			Line:         s.OutputLine,
			Kind:         TriggerOff,
		})
		s.wasTriggered = false
		s.Counts.Off++
	}

	return events
}
