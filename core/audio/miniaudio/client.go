package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-voice/core/audio"
)

// Client owns the miniaudio context that every capture and playback device is
// opened against.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext

	mu     sync.Mutex
	closed bool
}

func NewClient() (*Client, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) { logger.Debug("malgo", "message", message) },
	)
	if err != nil {
		return nil, fmt.Errorf("malgo InitContext failed: %w", audio.ClassifyDeviceError(err))
	}

	return &Client{audioContext: audioCtx}, nil
}

func (c *Client) OpenCapture(_ context.Context, constraints audio.CaptureConstraints) (audio.CaptureDevice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("%w: client closed", audio.ErrDevice)
	}

	capture, err := newCaptureDevice(c.audioContext, constraints)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}
	return capture, nil
}

func (c *Client) OpenPlayback(_ context.Context, encoding audio.EncodingInfo) (audio.PlaybackDevice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("%w: client closed", audio.ErrDevice)
	}

	playback, err := newPlaybackDevice(c.audioContext, encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}
	return playback, nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true

	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}
