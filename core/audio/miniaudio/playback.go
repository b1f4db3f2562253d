package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-voice/core/audio"
)

type playbackDevice struct {
	device   *malgo.Device
	encoding audio.EncodingInfo

	fill func(out []byte)

	mu sync.Mutex
}

func newPlaybackDevice(audioContext *malgo.AllocatedContext, encoding audio.EncodingInfo) (*playbackDevice, error) {
	if encoding.Format != audio.EncodingLinear16 {
		return nil, fmt.Errorf("%w: unsupported playback format %q", audio.ErrDevice, encoding.Format.Name())
	}

	c := &playbackDevice{encoding: encoding}

	sampleRate := uint32(encoding.SampleRate)
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format)

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = sampleRate
	config.Playback.Format = format
	config.Playback.Channels = 1
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = sampleRate / 50 // ~20ms of audio
	config.Periods = 4

	var err error
	if c.device, err = malgo.InitDevice(
		audioContext.Context,
		config,
		malgo.DeviceCallbacks{Data: func(pOutput, _ []byte, frameCount uint32) {
			need := int(frameCount) * bytesPerFrame
			if need > len(pOutput) {
				need = len(pOutput)
			}
			if fill := c.fill; fill != nil {
				fill(pOutput[:need])
				return
			}
			clear(pOutput[:need])
		}},
	); err != nil {
		return nil, fmt.Errorf("failed to initialize playback device: %w", audio.ClassifyDeviceError(err))
	}

	return c, nil
}

func (c *playbackDevice) EncodingInfo() audio.EncodingInfo { return c.encoding }

func (c *playbackDevice) Start(fill func(out []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("%w: device not initialized", audio.ErrDevice)
	}

	c.fill = fill
	if err := c.device.Start(); err != nil {
		c.fill = nil
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

// Stop halts the device. miniaudio waits for an in-flight data callback
// before returning, so fill is never called after Stop.
func (c *playbackDevice) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil || !c.device.IsStarted() {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}
	c.fill = nil
	return nil
}

func (c *playbackDevice) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}

	c.device.Uninit()
	c.device = nil
	c.fill = nil
	return nil
}
