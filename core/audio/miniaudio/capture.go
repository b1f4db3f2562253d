package miniaudio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-voice/core/audio"
)

type captureDevice struct {
	device *malgo.Device

	// scratch is reused across callbacks so the real-time path does not
	// allocate after the first period.
	scratch []float32

	onSamples func(samples []float32)

	mu sync.Mutex
}

func newCaptureDevice(audioContext *malgo.AllocatedContext, constraints audio.CaptureConstraints) (*captureDevice, error) {
	c := &captureDevice{}

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(constraints.SampleRate)
	config.Capture.Format = malgo.FormatF32
	// miniaudio always delivers what we ask for here, multi-channel devices
	// are downmixed by the backend
	config.Capture.Channels = 1
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	if constraints.FrameSize > 0 {
		config.PeriodSizeInFrames = uint32(constraints.FrameSize)
	}
	config.Periods = 3

	// miniaudio does not expose echo cancellation, noise suppression or AGC
	if constraints.EchoCancellation || constraints.NoiseSuppression || constraints.AutoGainControl {
		logger.Debug("platform voice processing not available through miniaudio, continuing without it")
	}

	bytesPerFrame := malgo.SampleSizeInBytes(malgo.FormatF32)

	var err error
	c.device, err = malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			onSamples := c.onSamples
			if onSamples == nil {
				return
			}

			if cap(c.scratch) < int(frameCount) {
				c.scratch = make([]float32, frameCount)
			}
			samples := c.scratch[:frameCount]
			for i := range samples {
				samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(pInput[i*4:]))
			}
			onSamples(samples)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize capture device: %w", audio.ClassifyDeviceError(err))
	}

	return c, nil
}

func (c *captureDevice) SampleRate() int {
	return int(c.device.SampleRate())
}

func (c *captureDevice) Start(onSamples func(samples []float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("%w: device not initialized", audio.ErrDevice)
	} else if c.device.IsStarted() {
		return nil
	}

	c.onSamples = onSamples
	if err := c.device.Start(); err != nil {
		c.onSamples = nil
		return fmt.Errorf("failed to start capture device: %w", audio.ClassifyDeviceError(err))
	}

	return nil
}

func (c *captureDevice) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil || !c.device.IsStarted() {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}

	c.onSamples = nil
	return nil
}

func (c *captureDevice) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}

	c.onSamples = nil
	return nil
}
