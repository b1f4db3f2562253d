package speechtotext

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

var ErrConnection = errors.New("transcription connection failed")

// Segment is a single transcript result as received from the provider.
type Segment struct {
	Text      string
	IsFinal   bool
	Timestamp time.Time
}

// Handlers receive events from a transcription stream. Any of them may be
// nil.
type Handlers struct {
	OnOpen  func()
	OnClose func()
	OnError func(err error)

	OnSegment func(segment Segment)
	// OnUtteranceEnd is called when the provider signals the end of an
	// utterance.
	OnUtteranceEnd  func()
	OnSpeechStarted func()
}

// Streamer is a duplex link to a speech recognition provider.
type Streamer interface {
	Connect(ctx context.Context, handlers Handlers, opts ...TranscriptionOption) error
	// SetHandlers replaces the handlers without reconnecting.
	SetHandlers(handlers Handlers)
	// SendAudio queues little-endian PCM for sending. It never blocks and
	// drops the frame when the link is not open or is backed up, reporting
	// false.
	SendAudio(pcm []byte) bool
	Disconnect() error
}

// HandlerSlot holds handlers that can be swapped while a stream is running.
// Handlers are read at dispatch time, so a replacement takes effect on the
// next event.
type HandlerSlot struct {
	handlers atomic.Pointer[Handlers]
}

func (s *HandlerSlot) Set(handlers Handlers) {
	s.handlers.Store(&handlers)
}

func (s *HandlerSlot) Load() Handlers {
	if h := s.handlers.Load(); h != nil {
		return *h
	}
	return Handlers{}
}

func (s *HandlerSlot) Open() {
	if h := s.Load(); h.OnOpen != nil {
		h.OnOpen()
	}
}

func (s *HandlerSlot) Close() {
	if h := s.Load(); h.OnClose != nil {
		h.OnClose()
	}
}

func (s *HandlerSlot) Error(err error) {
	if h := s.Load(); h.OnError != nil {
		h.OnError(err)
	}
}

func (s *HandlerSlot) Segment(segment Segment) {
	if h := s.Load(); h.OnSegment != nil {
		h.OnSegment(segment)
	}
}

func (s *HandlerSlot) UtteranceEnd() {
	if h := s.Load(); h.OnUtteranceEnd != nil {
		h.OnUtteranceEnd()
	}
}

func (s *HandlerSlot) SpeechStarted() {
	if h := s.Load(); h.OnSpeechStarted != nil {
		h.OnSpeechStarted()
	}
}
