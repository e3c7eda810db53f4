package source

import "math"

// SineReader generates a continuous sine wave on every channel. It backs
// the -synth mode and keeps tests independent of audio hardware.
type SineReader struct {
	channels  int
	blockSize int
	step      float64 // phase advance per sample, radians
	amplitude float64
	phase     float64
	closed    bool
}

// NewSineReader creates a generator producing freq-Hz sine blocks at the
// given sample rate.
func NewSineReader(channels, blockSize int, freq, sampleRate, amplitude float64) *SineReader {
	return &SineReader{
		channels:  channels,
		blockSize: blockSize,
		step:      2 * math.Pi * freq / sampleRate,
		amplitude: amplitude,
	}
}

// ReadBlock returns the next block, continuing the waveform across calls.
func (s *SineReader) ReadBlock() ([][]float64, error) {
	block := make([][]float64, s.channels)
	for ch := range block {
		block[ch] = make([]float64, s.blockSize)
	}

	for i := 0; i < s.blockSize; i++ {
		v := s.amplitude * math.Sin(s.phase)
		s.phase += s.step
		for ch := 0; ch < s.channels; ch++ {
			block[ch][i] = v
		}
	}
	if s.phase > 2*math.Pi {
		s.phase = math.Mod(s.phase, 2*math.Pi)
	}

	return block, nil
}

// Close marks the generator as closed.
func (s *SineReader) Close() error {
	s.closed = true
	return nil
}
