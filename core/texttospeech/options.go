package texttospeech

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/koscakluka/ema-voice/core/audio"
)

var (
	// ErrSynthesisHTTP is returned when the synthesis endpoint answers with a
	// non-2xx status or without a body.
	ErrSynthesisHTTP = errors.New("synthesis request failed")
	// ErrQueueFull is returned when a chunk is enqueued while the queue is at
	// capacity. The chunk is dropped.
	ErrQueueFull = errors.New("synthesis queue full")
	// ErrQueueClosed is returned when enqueueing after Seal or Stop.
	ErrQueueClosed = errors.New("synthesis queue closed")
)

// HTTPStatusError describes a failed synthesis response.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("synthesis request failed with status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("synthesis request failed with status %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func (e *HTTPStatusError) Unwrap() error { return ErrSynthesisHTTP }

// Request is a single piece of text to synthesize.
type Request struct {
	Text string
	// VoiceReferenceID selects the voice. Empty uses the synthesizer default.
	VoiceReferenceID string
}

// Synthesizer turns text into audio, streaming the audio as it arrives.
type Synthesizer interface {
	// Synthesize calls onAudio with every run of audio bytes in order. If
	// onAudio returns an error, synthesis stops and that error is returned.
	Synthesize(ctx context.Context, req Request, onAudio func(audio []byte) error) error
	// EncodingInfo describes the audio passed to onAudio.
	EncodingInfo() audio.EncodingInfo
}

// AudioSink receives synthesized audio in order.
type AudioSink interface {
	// AddChunk appends audio. It may block until there is room and returns
	// an error once the sink is gone or ctx is done.
	AddChunk(ctx context.Context, audio []byte) error
	// MarkComplete signals that no more audio will be added.
	MarkComplete()
}

type QueueOptions struct {
	MaxPending       int
	VoiceReferenceID string

	// ErrorCallback receives synthesis failures. Cancellation is not
	// reported.
	ErrorCallback func(chunk TextChunk, err error)
	// OverflowCallback is called when a chunk is rejected with ErrQueueFull.
	OverflowCallback func(chunk TextChunk)
	// StateCallback is called when loading changes.
	StateCallback func(loading bool)
	// ChunkSynthesizedCallback is called after a chunk has been fully
	// appended to the sink.
	ChunkSynthesizedCallback func(chunk TextChunk, bytes int)
}

const DefaultMaxPending = 256

type QueueOption func(*QueueOptions)

func WithMaxPending(maxPending int) QueueOption {
	return func(o *QueueOptions) {
		if maxPending > 0 {
			o.MaxPending = maxPending
		}
	}
}

func WithVoiceReferenceID(id string) QueueOption {
	return func(o *QueueOptions) { o.VoiceReferenceID = id }
}

func WithErrorCallback(callback func(chunk TextChunk, err error)) QueueOption {
	return func(o *QueueOptions) { o.ErrorCallback = callback }
}

func WithOverflowCallback(callback func(chunk TextChunk)) QueueOption {
	return func(o *QueueOptions) { o.OverflowCallback = callback }
}

func WithStateCallback(callback func(loading bool)) QueueOption {
	return func(o *QueueOptions) { o.StateCallback = callback }
}

func WithChunkSynthesizedCallback(callback func(chunk TextChunk, bytes int)) QueueOption {
	return func(o *QueueOptions) { o.ChunkSynthesizedCallback = callback }
}
