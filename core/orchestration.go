package orchestration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	"github.com/koscakluka/ema-voice/internal/metrics"
)

var ErrClosed = errors.New("orchestrator closed")

// Orchestrator composes a capture session and a playback session. At most
// one of each is active at a time and they run independently of each other.
type Orchestrator struct {
	captureOpener  audio.CaptureOpener
	playbackOpener audio.PlaybackOpener
	speechToText   speechtotext.Streamer
	textToSpeech   texttospeech.Synthesizer

	captureOptions  captureOptions
	playbackOptions playbackOptions
	bargeIn         bool
	metrics         *metrics.Metrics
	callbacks       callbackOptions

	dispatcher *eventDispatcher

	// muted outlives capture sessions.
	muted atomic.Bool
	// volume holds the float64 bits of the playback volume applied to every
	// new playback session.
	volume atomic.Uint64

	// captureMu serializes capture lifecycle changes. Readers use the atomics.
	captureMu    sync.Mutex
	captureState atomic.Int32
	capture      atomic.Pointer[captureSession]

	// playbackMu serializes playback lifecycle changes. Readers use the
	// pointer.
	playbackMu sync.Mutex
	playback   atomic.Pointer[playbackSession]

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		captureOptions: captureOptions{
			constraints: audio.DefaultCaptureConstraints(),
			volumeGain:  audio.DefaultVolumeGain,
		},
	}
	o.volume.Store(math.Float64bits(1))

	for _, opt := range opts {
		opt(o)
	}

	userEmitter := newCallbackEventEmitter(o.callbacks)
	o.dispatcher = newEventDispatcher(func(event events.Event) {
		if _, ok := event.(events.UserSpeechStarted); ok && o.bargeIn {
			if err := o.StopSpeaking(); err != nil {
				logger.Error("failed to stop speaking on barge-in", "error", err)
			}
		}
		userEmitter(event)
	})

	return o
}

func (o *Orchestrator) emit(event events.Event) {
	o.dispatcher.emit(event)
}

// Close stops both sessions and delivers the remaining events. It must not
// be called from an event handler.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() {
		o.closed.Store(true)

		var errs error
		if err := o.Stop(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to stop capture: %w", err))
		}
		if err := o.StopSpeaking(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to stop playback: %w", err))
		}
		o.dispatcher.close()
		o.closeErr = errs
	})
	return o.closeErr
}

// Start opens a capture session. Calling it while a session is active does
// nothing. A failed start releases everything it acquired, reports the
// failure as an error event and returns it.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.captureMu.Lock()
	defer o.captureMu.Unlock()
	return o.startLocked(ctx)
}

func (o *Orchestrator) startLocked(ctx context.Context) error {
	if o.closed.Load() {
		return ErrClosed
	}
	if CaptureState(o.captureState.Load()) != CaptureIdle {
		return nil
	}

	session := newCaptureSession(o.captureOpener, o.speechToText,
		o.captureOptions, &o.muted, o.emit, o.metrics)
	o.setCaptureState(session.id, CaptureStarting)

	if err := session.start(ctx); err != nil {
		o.metrics.RecordCaptureFailure(captureFailureKind(err))
		logger.Error("failed to start capture", "session_id", session.id, "error", err)
		o.emit(events.NewError(session.id, "capture", err))
		o.setCaptureState(session.id, CaptureIdle)
		return err
	}

	o.capture.Store(session)
	o.setCaptureState(session.id, CaptureListening)
	return nil
}

// Stop ends the capture session, flushing any pending utterance before the
// transcription link closes. Calling it while idle does nothing.
func (o *Orchestrator) Stop() error {
	o.captureMu.Lock()
	defer o.captureMu.Unlock()
	return o.stopLocked()
}

func (o *Orchestrator) stopLocked() error {
	session := o.capture.Load()
	if session == nil || CaptureState(o.captureState.Load()) != CaptureListening {
		return nil
	}

	o.setCaptureState(session.id, CaptureStopping)
	err := session.stop()
	o.capture.Store(nil)
	o.setCaptureState(session.id, CaptureIdle)
	return err
}

func (o *Orchestrator) ToggleListening(ctx context.Context) error {
	o.captureMu.Lock()
	defer o.captureMu.Unlock()

	if CaptureState(o.captureState.Load()) == CaptureListening {
		return o.stopLocked()
	}
	return o.startLocked(ctx)
}

// ToggleMute flips the mute state and returns the new one.
func (o *Orchestrator) ToggleMute() bool {
	for {
		muted := o.muted.Load()
		if o.muted.CompareAndSwap(muted, !muted) {
			o.emit(events.NewCaptureMuteChanged(o.captureID(), !muted))
			return !muted
		}
	}
}

// SetMuted replaces captured audio with silence while muted. The session and
// the transcription link stay open.
func (o *Orchestrator) SetMuted(muted bool) {
	if o.muted.Swap(muted) != muted {
		o.emit(events.NewCaptureMuteChanged(o.captureID(), muted))
	}
}

func (o *Orchestrator) setCaptureState(sessionID string, state CaptureState) {
	if CaptureState(o.captureState.Swap(int32(state))) != state {
		o.emit(events.NewCaptureStateChanged(sessionID, state.String()))
	}
}

func (o *Orchestrator) captureID() string {
	if session := o.capture.Load(); session != nil {
		return session.id
	}
	return ""
}

func captureFailureKind(err error) string {
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return "permission"
	case errors.Is(err, speechtotext.ErrConnection):
		return "connection"
	default:
		return "device"
	}
}

// Speak synthesizes one complete utterance, replacing whatever is playing.
func (o *Orchestrator) Speak(ctx context.Context, text string) error {
	o.playbackMu.Lock()
	defer o.playbackMu.Unlock()

	session, err := o.replacePlaybackLocked(ctx)
	if err != nil {
		return err
	}
	err = session.append(text)
	session.finish()
	return err
}

// StreamText adds text to the current streamed generation, starting a new
// one if none is open. Text is synthesized chunk by chunk as sentence
// boundaries arrive.
func (o *Orchestrator) StreamText(ctx context.Context, text string) error {
	o.playbackMu.Lock()
	defer o.playbackMu.Unlock()

	session := o.playback.Load()
	if session == nil || !session.open {
		var err error
		if session, err = o.replacePlaybackLocked(ctx); err != nil {
			return err
		}
		session.open = true
		session.streaming.Store(true)
	}
	return session.append(text)
}

// FinishStream flushes the text of the streamed generation that did not end
// on a boundary. Playback ends once its audio has been played.
func (o *Orchestrator) FinishStream() {
	o.playbackMu.Lock()
	defer o.playbackMu.Unlock()

	if session := o.playback.Load(); session != nil && session.open {
		session.finish()
	}
}

// SpeakStream streams the content of an LLM completion into a new
// generation and finishes it once the completion ends.
func (o *Orchestrator) SpeakStream(ctx context.Context, stream llms.Stream) (string, error) {
	o.playbackMu.Lock()
	session, err := o.replacePlaybackLocked(ctx)
	if err == nil {
		session.open = true
		session.streaming.Store(true)
	}
	o.playbackMu.Unlock()
	if err != nil {
		return "", err
	}

	text, err := llms.ContentText(ctx, stream, func(text string) error {
		o.playbackMu.Lock()
		defer o.playbackMu.Unlock()
		if o.playback.Load() != session || !session.open {
			return context.Canceled
		}
		return session.append(text)
	})

	o.playbackMu.Lock()
	if o.playback.Load() == session && session.open {
		session.finish()
	}
	o.playbackMu.Unlock()

	if errors.Is(err, context.Canceled) {
		return text, nil
	}
	return text, err
}

// StopSpeaking aborts synthesis and playback. Audio that was not played yet
// is discarded.
func (o *Orchestrator) StopSpeaking() error {
	o.playbackMu.Lock()
	defer o.playbackMu.Unlock()

	session := o.playback.Swap(nil)
	if session == nil {
		return nil
	}
	return session.destroy()
}

func (o *Orchestrator) Pause() {
	if session := o.playback.Load(); session != nil {
		session.buffer.Pause()
	}
}

func (o *Orchestrator) Resume() {
	if session := o.playback.Load(); session != nil {
		session.buffer.Resume()
	}
}

// SetVolume sets the playback volume, clamped to [0, 1]. It applies to the
// current and every later playback session.
func (o *Orchestrator) SetVolume(v float64) {
	v = clamp01(v)
	o.volume.Store(math.Float64bits(v))
	if session := o.playback.Load(); session != nil {
		session.buffer.SetVolume(v)
	}
}

// replacePlaybackLocked destroys the current playback session before
// creating a new one, so that two sessions never write to the device.
func (o *Orchestrator) replacePlaybackLocked(ctx context.Context) (*playbackSession, error) {
	if o.closed.Load() {
		return nil, ErrClosed
	}

	if previous := o.playback.Swap(nil); previous != nil {
		if err := previous.destroy(); err != nil {
			logger.Warn("failed to release previous playback session", "session_id", previous.id, "error", err)
		}
	}

	session, err := newPlaybackSession(ctx, o.textToSpeech, o.playbackOpener,
		o.playbackOptions, o.playbackVolume(), o.emit, o.metrics)
	if err != nil {
		logger.Error("failed to start playback", "error", err)
		o.emit(events.NewError("", "playback", err))
		return nil, err
	}
	o.playback.Store(session)
	return session, nil
}

func (o *Orchestrator) playbackVolume() float64 {
	return math.Float64frombits(o.volume.Load())
}

// CaptureSnapshot is the observable state of the capture side.
type CaptureSnapshot struct {
	State             CaptureState
	IsListening       bool
	IsConnected       bool
	InterimTranscript string
	FinalTranscript   string
	// IsSpeaking is true while the provider reports user speech.
	IsSpeaking bool
	IsMuted    bool
	// Volume is the latest input level in [0, 1].
	Volume float64
}

func (o *Orchestrator) Capture() CaptureSnapshot {
	snapshot := CaptureSnapshot{
		State:   CaptureState(o.captureState.Load()),
		IsMuted: o.muted.Load(),
	}
	snapshot.IsListening = snapshot.State == CaptureListening
	if session := o.capture.Load(); session != nil {
		snapshot.IsConnected = session.isConnected()
		snapshot.IsSpeaking = session.isSpeaking()
		snapshot.Volume = session.inputLevel()
		snapshot.InterimTranscript, snapshot.FinalTranscript = session.transcripts()
	}
	return snapshot
}

// PlaybackSnapshot is the observable state of the playback side.
type PlaybackSnapshot struct {
	State PlaybackState
	// IsSpeaking is true while audio is being played.
	IsSpeaking bool
	// IsLoading is true while synthesis work is pending or in flight.
	IsLoading bool
	// IsStreaming is true while a streamed generation accepts text.
	IsStreaming bool
	Volume      float64
}

func (o *Orchestrator) Playback() PlaybackSnapshot {
	snapshot := PlaybackSnapshot{Volume: o.playbackVolume()}
	if session := o.playback.Load(); session != nil {
		snapshot.State = session.buffer.State()
		snapshot.IsSpeaking = session.isSpeaking()
		snapshot.IsLoading = session.isLoading()
		snapshot.IsStreaming = session.streaming.Load()
	}
	return snapshot
}
