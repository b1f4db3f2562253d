package orchestration

import (
	"time"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	"github.com/koscakluka/ema-voice/internal/metrics"
)

type OrchestratorOption func(*Orchestrator)

func WithCaptureOpener(opener audio.CaptureOpener) OrchestratorOption {
	return func(o *Orchestrator) {
		o.captureOpener = opener
	}
}

func WithPlaybackOpener(opener audio.PlaybackOpener) OrchestratorOption {
	return func(o *Orchestrator) {
		o.playbackOpener = opener
	}
}

func WithSpeechToTextClient(client speechtotext.Streamer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.speechToText = client
	}
}

func WithTextToSpeechClient(client texttospeech.Synthesizer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.textToSpeech = client
	}
}

// WithBoundaryPolicy replaces the punctuation based chunking of spoken text.
func WithBoundaryPolicy(policy texttospeech.BoundaryPolicy) OrchestratorOption {
	return func(o *Orchestrator) {
		o.playbackOptions.boundaryPolicy = policy
	}
}

func WithTranscriptionOptions(opts ...speechtotext.TranscriptionOption) OrchestratorOption {
	return func(o *Orchestrator) {
		o.captureOptions.transcription = append(o.captureOptions.transcription, opts...)
	}
}

// WithSilenceTimeout sets how long the aggregator waits without new final
// segments before closing an utterance on its own.
func WithSilenceTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.captureOptions.silenceTimeout = timeout
	}
}

// WithHighPassFilter enables a first-order high-pass filter on captured
// audio. A cutoff of 0 disables it.
func WithHighPassFilter(cutoffHz float64) OrchestratorOption {
	return func(o *Orchestrator) {
		o.captureOptions.highPassCutoffHz = cutoffHz
	}
}

// WithVolumeGain scales the reported input level before clamping.
func WithVolumeGain(gain float64) OrchestratorOption {
	return func(o *Orchestrator) {
		if gain > 0 {
			o.captureOptions.volumeGain = gain
		}
	}
}

func WithCaptureConstraints(constraints audio.CaptureConstraints) OrchestratorOption {
	return func(o *Orchestrator) {
		o.captureOptions.constraints = constraints
	}
}

func WithPlaybackBufferDuration(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.playbackOptions.bufferDuration = d
	}
}

// WithPlaybackStartThreshold sets how much audio is buffered before playback
// starts.
func WithPlaybackStartThreshold(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.playbackOptions.startThreshold = d
	}
}

// WithMaxPendingChunks caps the synthesis queue. Chunks beyond the cap are
// rejected and the rest of the generation is dropped.
func WithMaxPendingChunks(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.playbackOptions.maxPending = n
	}
}

func WithVoiceReferenceID(id string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.playbackOptions.voiceReferenceID = id
	}
}

// WithBargeIn stops assistant speech as soon as the user starts speaking.
func WithBargeIn(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.bargeIn = enabled
	}
}

func WithMetrics(m *metrics.Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

type callbackOptions struct {
	onEvent                func(event events.Event)
	onSpeechStarted        func()
	onInterimTranscription func(transcript string)
	onTranscription        func(transcript string)
	onVolume               func(level float64)
	onPlaybackStarted      func()
	onPlaybackEnded        func()
	onError                func(err events.Error)
}

// WithEventHandler receives every event, before the typed callbacks.
func WithEventHandler(handler func(event events.Event)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onEvent = handler
	}
}

func WithSpeechStartedCallback(callback func()) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onSpeechStarted = callback
	}
}

func WithInterimTranscriptionCallback(callback func(transcript string)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onInterimTranscription = callback
	}
}

// WithTranscriptionCallback receives the text of every completed utterance.
func WithTranscriptionCallback(callback func(transcript string)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onTranscription = callback
	}
}

func WithVolumeCallback(callback func(level float64)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onVolume = callback
	}
}

func WithPlaybackStartedCallback(callback func()) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onPlaybackStarted = callback
	}
}

func WithPlaybackEndedCallback(callback func()) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onPlaybackEnded = callback
	}
}

func WithErrorCallback(callback func(err events.Error)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onError = callback
	}
}
