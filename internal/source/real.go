package source

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/gen2brain/malgo"
)

// RealReader captures samples from an audio input device and re-frames them
// into fixed-size blocks. The device callback copies interleaved float32
// frames into a channel; ReadBlock de-interleaves and converts to float64.
type RealReader struct {
	ctx       *malgo.AllocatedContext
	device    *malgo.Device
	channels  int
	blockSize int

	frames  chan []float32
	pending []float32 // interleaved frames carried over between blocks
	closed  bool
}

// NewRealReader opens an audio capture device. deviceName selects a device
// by substring match ("" for the system default).
func NewRealReader(deviceName string, sampleRate, channels, blockSize int) (*RealReader, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	r := &RealReader{
		ctx:       ctx,
		channels:  channels,
		blockSize: blockSize,
		frames:    make(chan []float32, 64),
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = uint32(channels)
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	if deviceName != "" {
		infos, err := ctx.Devices(malgo.Capture)
		if err == nil {
			for _, info := range infos {
				if strings.Contains(strings.ToLower(info.Name()), strings.ToLower(deviceName)) {
					cfg.Capture.DeviceID = info.ID.Pointer()
					break
				}
			}
		}
	}

	onRecvFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		if len(pInputSamples) == 0 {
			return
		}
		n := int(framecount) * channels
		src := unsafe.Slice((*float32)(unsafe.Pointer(&pInputSamples[0])), n)
		buf := make([]float32, n)
		copy(buf, src)
		select {
		case r.frames <- buf:
		default:
			// Consumer is behind; dropping is better than blocking the
			// device callback.
		}
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	r.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("start capture: %w", err)
	}

	return r, nil
}

// ReadBlock assembles the next blockSize frames into per-channel slices.
func (r *RealReader) ReadBlock() ([][]float64, error) {
	if r.closed {
		return nil, errors.New("source: closed")
	}

	need := r.blockSize * r.channels
	for len(r.pending) < need {
		buf, ok := <-r.frames
		if !ok {
			return nil, errors.New("source: capture stopped")
		}
		r.pending = append(r.pending, buf...)
	}

	block := make([][]float64, r.channels)
	for ch := range block {
		block[ch] = make([]float64, r.blockSize)
	}
	for i := 0; i < r.blockSize; i++ {
		for ch := 0; ch < r.channels; ch++ {
			block[ch][i] = float64(r.pending[i*r.channels+ch])
		}
	}
	r.pending = r.pending[need:]

	return block, nil
}

// Close stops the capture device and releases the audio context.
func (r *RealReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if r.device != nil {
		r.device.Uninit()
		r.device = nil
	}
	if r.ctx != nil {
		_ = r.ctx.Uninit()
		r.ctx.Free()
		r.ctx = nil
	}
	return nil
}
