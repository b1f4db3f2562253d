package portaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-voice/core/audio"
)

// Client opens microphone capture through PortAudio. Playback is served by
// the miniaudio backend.
type Client struct {
	mu         sync.Mutex
	terminated bool
}

func NewClient() (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", audio.ClassifyDeviceError(err))
	}

	return &Client{}, nil
}

func (c *Client) OpenCapture(_ context.Context, constraints audio.CaptureConstraints) (audio.CaptureDevice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated {
		return nil, fmt.Errorf("%w: client closed", audio.ErrDevice)
	}

	sampleRate := constraints.SampleRate
	if sampleRate == 0 {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to find default input device: %w", audio.ClassifyDeviceError(err))
		}
		sampleRate = int(device.DefaultSampleRate)
	}
	frameSize := constraints.FrameSize
	if frameSize <= 0 {
		frameSize = audio.DefaultCaptureConstraints().FrameSize
	}

	d := &captureDevice{sampleRate: sampleRate}
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), frameSize, d.process)
	if err != nil {
		return nil, fmt.Errorf("failed to open PortAudio stream: %w", audio.ClassifyDeviceError(err))
	}
	d.stream = stream

	return d, nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated {
		return
	}
	c.terminated = true
	_ = portaudio.Terminate()
}

type captureDevice struct {
	stream     *portaudio.Stream
	sampleRate int

	mu        sync.Mutex
	started   bool
	onSamples func(samples []float32)
}

func (d *captureDevice) process(in []float32) {
	if onSamples := d.onSamples; onSamples != nil {
		onSamples(in)
	}
}

func (d *captureDevice) SampleRate() int { return d.sampleRate }

func (d *captureDevice) Start(onSamples func(samples []float32)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		return fmt.Errorf("%w: stream closed", audio.ErrDevice)
	} else if d.started {
		return nil
	}

	d.onSamples = onSamples
	if err := d.stream.Start(); err != nil {
		d.onSamples = nil
		return fmt.Errorf("failed to start PortAudio stream: %w", audio.ClassifyDeviceError(err))
	}
	d.started = true
	return nil
}

func (d *captureDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil || !d.started {
		return nil
	}

	d.started = false
	if err := d.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop PortAudio stream: %w", err)
	}
	d.onSamples = nil
	return nil
}

func (d *captureDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		return nil
	}

	err := d.stream.Close()
	d.stream = nil
	d.onSamples = nil
	if err != nil {
		return fmt.Errorf("failed to close PortAudio stream: %w", err)
	}
	return nil
}
