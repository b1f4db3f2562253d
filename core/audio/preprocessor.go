package audio

import (
	"errors"
	"fmt"
	"sync"
)

type PreprocessorOptions struct {
	// HighPassCutoffHz enables the high-pass filter when greater than zero.
	HighPassCutoffHz float64
}

// Preprocessor owns an acquired capture device and the processing state shared
// by everything downstream of it: the native sample rate and the filter chain.
type Preprocessor struct {
	mu        sync.Mutex
	device    CaptureDevice
	filter    *HighPass
	destroyed bool
}

func NewPreprocessor(device CaptureDevice, opts PreprocessorOptions) *Preprocessor {
	p := &Preprocessor{device: device}
	if opts.HighPassCutoffHz > 0 && device.SampleRate() > 0 {
		p.filter = NewHighPass(opts.HighPassCutoffHz, device.SampleRate())
	}
	return p
}

func (p *Preprocessor) SampleRate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device == nil {
		return 0
	}
	return p.device.SampleRate()
}

// Start enables the device callback.
func (p *Preprocessor) Start(onSamples func(samples []float32)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return fmt.Errorf("preprocessor destroyed")
	}
	if err := p.device.Start(onSamples); err != nil {
		return ClassifyDeviceError(err)
	}
	return nil
}

// Process runs the filter chain in place. It must be called from a single
// goroutine.
func (p *Preprocessor) Process(frame []float32) {
	if p.filter != nil {
		p.filter.Apply(frame)
	}
}

// Destroy stops and releases the device. Repeated calls are ignored.
func (p *Preprocessor) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return nil
	}
	p.destroyed = true

	var errs error
	if err := p.device.Stop(); err != nil {
		errs = errors.Join(errs, fmt.Errorf("failed to stop capture device: %w", err))
	}
	if err := p.device.Close(); err != nil {
		errs = errors.Join(errs, fmt.Errorf("failed to close capture device: %w", err))
	}
	return errs
}
