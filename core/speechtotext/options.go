package speechtotext

import (
	"time"

	"github.com/koscakluka/ema-voice/core/audio"
)

const (
	DefaultModel             = "nova-3"
	DefaultLanguage          = "en-US"
	DefaultKeepAliveInterval = 5 * time.Second
	DefaultSendQueueSize     = 64
)

type TranscriptionOptions struct {
	EncodingInfo audio.EncodingInfo

	Model    string
	Language string

	// InterimResults requests non-final segments from the provider
	InterimResults bool
	// SpeechEvents requests speech-started and utterance-end events from
	// the provider
	SpeechEvents bool

	KeepAliveInterval time.Duration
	SendQueueSize     int
}

func DefaultTranscriptionOptions() TranscriptionOptions {
	return TranscriptionOptions{
		EncodingInfo:      audio.GetDefaultEncodingInfo(),
		Model:             DefaultModel,
		Language:          DefaultLanguage,
		InterimResults:    true,
		SpeechEvents:      true,
		KeepAliveInterval: DefaultKeepAliveInterval,
		SendQueueSize:     DefaultSendQueueSize,
	}
}

type TranscriptionOption func(*TranscriptionOptions)

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}

func WithModel(model string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		if model != "" {
			o.Model = model
		}
	}
}

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		if language != "" {
			o.Language = language
		}
	}
}

func WithInterimResults(enabled bool) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimResults = enabled
	}
}

func WithSpeechEvents(enabled bool) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechEvents = enabled
	}
}

// WithKeepAliveInterval sets how long the link may stay idle before a
// keep-alive message is sent. Zero or negative disables keep-alives.
func WithKeepAliveInterval(interval time.Duration) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.KeepAliveInterval = interval
	}
}

// WithSendQueueSize sets how many audio frames may wait for the socket
// before new frames are dropped.
func WithSendQueueSize(size int) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		if size > 0 {
			o.SendQueueSize = size
		}
	}
}
