package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPermissionDenied is returned when the platform refuses access to the
	// capture device.
	ErrPermissionDenied = errors.New("audio device permission denied")
	// ErrDevice covers device setup failures that are not permission related.
	ErrDevice = errors.New("audio device error")
)

// ClassifyDeviceError wraps a platform error with [ErrPermissionDenied] or
// [ErrDevice] so callers can branch with errors.Is.
func ClassifyDeviceError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDevice) {
		return err
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "denied") || strings.Contains(msg, "permission") || strings.Contains(msg, "not allowed") {
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %w", ErrDevice, err)
}

// CaptureConstraints are requested from the platform when opening a capture
// device. Backends apply what they support and ignore the rest.
type CaptureConstraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
	Channels         int
	// SampleRate of 0 lets the device pick its native rate.
	SampleRate int
	// FrameSize is the number of samples per callback, 0 for the backend
	// default.
	FrameSize int
}

func DefaultCaptureConstraints() CaptureConstraints {
	return CaptureConstraints{
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
		Channels:         1,
		FrameSize:        4096,
	}
}

// CaptureDevice delivers mono float samples at SampleRate. onSamples runs on
// the platform's real-time thread and must not block or retain the slice.
type CaptureDevice interface {
	SampleRate() int
	Start(onSamples func(samples []float32)) error
	Stop() error
	Close() error
}

type CaptureOpener interface {
	OpenCapture(ctx context.Context, constraints CaptureConstraints) (CaptureDevice, error)
}

// PlaybackDevice pulls audio through fill, which runs on the platform's
// real-time thread. fill must write exactly len(out) bytes.
type PlaybackDevice interface {
	EncodingInfo() EncodingInfo
	Start(fill func(out []byte)) error
	Stop() error
	Close() error
}

type PlaybackOpener interface {
	OpenPlayback(ctx context.Context, encoding EncodingInfo) (PlaybackDevice, error)
}
