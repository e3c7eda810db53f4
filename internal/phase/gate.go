package phase

// Gate and reconfiguration policy. These entry points mutate a stream's
// state between Process calls; they never touch other streams.

// HandleTTLEvent records a digital-word snapshot for a stream and, when the
// transition is on the stream's gate line, updates the active flag.
func (d *Detector) HandleTTLEvent(id uint16, line int, state bool, word uint64) {
	s := d.streams[id]
	if s == nil {
		return
	}

	s.lastTTLWord = word

	if s.GateLine >= 0 && line == s.GateLine {
		s.Active = state
	}
}

// SetTarget changes the landmark that triggers the output.
func (d *Detector) SetTarget(id uint16, target Landmark) {
	if s := d.streams[id]; s != nil {
		s.Target = target
	}
}

// SetTriggerChannel changes the analyzed channel. Pass LineNone when no
// channel is selected; detection stops emitting until a channel is set.
func (d *Detector) SetTriggerChannel(id uint16, channel int) {
	if s := d.streams[id]; s != nil {
		s.TriggerChannel = channel
	}
}

// SetOutputLine retires the current output line and switches to a new one.
// The retired line gets a LineClear on the first sample of the next block.
// If a clear is already pending from an earlier reconfiguration, it is kept:
// the intermediate line was never processed, so it was never driven high.
func (d *Detector) SetOutputLine(id uint16, line int) {
	s := d.streams[id]
	if s == nil {
		return
	}

	if s.clearLine == LineNone && s.OutputLine >= 0 {
		s.clearLine = s.OutputLine
	}
	s.OutputLine = line
}

// SetGateLine changes the gating input line and immediately re-derives the
// active flag from the last seen digital word, so detection does not wait
// for the next transition on the new line. A negative line disables gating
// and forces the detector active.
func (d *Detector) SetGateLine(id uint16, line int) {
	s := d.streams[id]
	if s == nil {
		return
	}

	s.GateLine = line
	if line >= 0 {
		s.Active = s.lastTTLWord&(1<<uint(line)) != 0
	} else {
		s.Active = true
	}
}
