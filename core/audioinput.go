package orchestration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"github.com/koscakluka/ema-voice/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// captureRingFrames is how many device frames the capture ring holds before
// the device callback starts dropping samples.
const captureRingFrames = 16

type CaptureState int32

const (
	CaptureIdle CaptureState = iota
	CaptureStarting
	CaptureListening
	CaptureStopping
)

func (s CaptureState) String() string {
	switch s {
	case CaptureIdle:
		return "idle"
	case CaptureStarting:
		return "starting"
	case CaptureListening:
		return "listening"
	case CaptureStopping:
		return "stopping"
	}
	return fmt.Sprintf("CaptureState(%d)", int32(s))
}

type captureOptions struct {
	constraints      audio.CaptureConstraints
	highPassCutoffHz float64
	volumeGain       float64
	silenceTimeout   time.Duration
	transcription    []speechtotext.TranscriptionOption
}

// captureSession owns one microphone to transcription run: the capture
// device, the preprocessing chain, the transcription link and the utterance
// aggregator.
type captureSession struct {
	id       string
	opener   audio.CaptureOpener
	streamer speechtotext.Streamer
	options  captureOptions
	emit     eventEmitter
	metrics  *metrics.Metrics

	// muted is shared with the orchestrator so mute survives restarts.
	muted *atomic.Bool

	// active gates every dispatch; it is false before start completes and
	// from the first step of stop.
	active atomic.Bool
	// connected mirrors the transcription link state.
	connected atomic.Bool
	// speaking is set between speech start and utterance end.
	speaking atomic.Bool
	// level holds the float64 bits of the latest input level.
	level atomic.Uint64

	preprocessor *audio.Preprocessor
	aggregator   *speechtotext.Aggregator
	ring         *audio.Ring[float32]
	wake         chan struct{}

	cancelWorker context.CancelFunc
	workerDone   chan struct{}

	stopOnce sync.Once
	stopErr  error
}

func newCaptureSession(
	opener audio.CaptureOpener,
	streamer speechtotext.Streamer,
	options captureOptions,
	muted *atomic.Bool,
	emit eventEmitter,
	m *metrics.Metrics,
) *captureSession {
	if emit == nil {
		emit = noopEventEmitter
	}
	return &captureSession{
		id:       uuid.NewString(),
		opener:   opener,
		streamer: streamer,
		options:  options,
		emit:     emit,
		metrics:  m,
		muted:    muted,
		wake:     make(chan struct{}, 1),
	}
}

// start acquires the device, connects the transcription link and only then
// enables the device callback. On failure everything acquired so far is
// released before returning.
func (s *captureSession) start(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "capture session start")
	defer span.End()
	span.SetAttributes(attribute.String("capture.session_id", s.id))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if s.opener == nil {
		return fmt.Errorf("%w: no capture device configured", audio.ErrDevice)
	}
	if s.streamer == nil {
		return fmt.Errorf("%w: no transcription client configured", speechtotext.ErrConnection)
	}

	device, err := s.opener.OpenCapture(ctx, s.options.constraints)
	if err != nil {
		return fmt.Errorf("failed to open capture device: %w", audio.ClassifyDeviceError(err))
	}
	s.preprocessor = audio.NewPreprocessor(device, audio.PreprocessorOptions{
		HighPassCutoffHz: s.options.highPassCutoffHz,
	})
	sampleRate := s.preprocessor.SampleRate()
	if sampleRate <= 0 {
		_ = s.preprocessor.Destroy()
		return fmt.Errorf("%w: capture device reported sample rate %d", audio.ErrDevice, sampleRate)
	}
	span.SetAttributes(attribute.Int("capture.sample_rate", sampleRate))

	s.aggregator = s.newAggregator()

	transcriptionOptions := append([]speechtotext.TranscriptionOption{
		speechtotext.WithEncodingInfo(audio.GetDefaultEncodingInfo()),
	}, s.options.transcription...)
	if err := s.streamer.Connect(ctx, s.handlers(), transcriptionOptions...); err != nil {
		s.aggregator.Close()
		if destroyErr := s.preprocessor.Destroy(); destroyErr != nil {
			err = errors.Join(err, destroyErr)
		}
		if !errors.Is(err, speechtotext.ErrConnection) {
			err = fmt.Errorf("%w: %w", speechtotext.ErrConnection, err)
		}
		return err
	}

	frameSize := s.options.constraints.FrameSize
	if frameSize <= 0 {
		frameSize = audio.DefaultCaptureConstraints().FrameSize
	}
	s.ring = audio.NewRing[float32](frameSize * captureRingFrames)

	workerCtx, cancel := context.WithCancel(context.Background())
	s.cancelWorker = cancel
	s.workerDone = make(chan struct{})
	resampler := audio.NewResampler(sampleRate, audio.DefaultSampleRate)
	goWorker(workerCtx, "capture", func(ctx context.Context) error {
		return s.process(ctx, frameSize, resampler)
	}, s.workerDone)

	s.active.Store(true)
	if err := s.preprocessor.Start(s.onSamples); err != nil {
		return errors.Join(err, s.stop())
	}

	s.metrics.RecordCaptureStarted()
	return nil
}

func (s *captureSession) newAggregator() *speechtotext.Aggregator {
	var opts []speechtotext.AggregatorOption
	if s.options.silenceTimeout > 0 {
		opts = append(opts, speechtotext.WithSilenceTimeout(s.options.silenceTimeout))
	}
	aggregator := speechtotext.NewAggregator(opts...)
	aggregator.SetTranscriptHandler(func(interim, final string) {
		s.emit(events.NewUserTranscriptInterimUpdated(s.id, interim))
	})
	aggregator.SetUtteranceEndHandler(func(text string) {
		s.speaking.Store(false)
		s.metrics.RecordUtterance(text)
		s.emit(events.NewUserTranscriptFinal(s.id, text))
	})
	return aggregator
}

func (s *captureSession) handlers() speechtotext.Handlers {
	return speechtotext.Handlers{
		OnOpen: func() {
			s.connected.Store(true)
			s.emit(events.NewCaptureConnectionChanged(s.id, true))
		},
		OnClose: func() {
			s.connected.Store(false)
			s.emit(events.NewCaptureConnectionChanged(s.id, false))
		},
		OnError: func(err error) {
			s.connected.Store(false)
			// Failures while connecting are returned from start instead.
			if !s.active.Load() {
				return
			}
			logger.Error("transcription link failed", "session_id", s.id, "error", err)
			s.emit(events.NewError(s.id, "transcription", err))
		},
		OnSegment: func(segment speechtotext.Segment) {
			if !s.active.Load() {
				return
			}
			s.aggregator.Add(segment)
			if segment.IsFinal && segment.Text != "" {
				s.emit(events.NewUserTranscriptSegment(s.id, segment.Text, s.aggregator.FinalText()))
			}
		},
		OnUtteranceEnd: func() {
			if !s.active.Load() {
				return
			}
			s.aggregator.EndUtterance()
		},
		OnSpeechStarted: func() {
			if !s.active.Load() {
				return
			}
			s.speaking.Store(true)
			s.emit(events.NewUserSpeechStarted(s.id))
		},
	}
}

// onSamples runs on the device thread and only copies into the ring.
func (s *captureSession) onSamples(samples []float32) {
	if !s.active.Load() {
		return
	}
	if n := s.ring.Write(samples); n < len(samples) {
		s.metrics.RecordOverrun(len(samples) - n)
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *captureSession) process(ctx context.Context, frameSize int, resampler *audio.Resampler) error {
	meter := audio.NewVolumeMeter(s.options.volumeGain)
	frame := make([]float32, frameSize)
	var resampled []float32
	var pcm []byte

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		}

		for {
			n := s.ring.Read(frame)
			if n == 0 {
				break
			}
			samples := frame[:n]

			s.preprocessor.Process(samples)
			if s.muted != nil && s.muted.Load() {
				clear(samples)
			}

			level := meter.Level(samples)
			s.level.Store(math.Float64bits(level))
			s.metrics.SetInputLevel(level)
			s.emit(events.NewCaptureVolumeUpdated(s.id, level))

			resampled = resampler.Process(resampled[:0], samples)
			pcm = audio.EncodePCM16(pcm[:0], resampled)
			if len(pcm) == 0 || !s.active.Load() {
				continue
			}
			s.metrics.RecordFrame(s.streamer.SendAudio(pcm))
		}
	}
}

// stop detaches the callback, releases the device, flushes the pending
// utterance and closes the link, in that order. Repeated calls return the
// first result.
func (s *captureSession) stop() error {
	s.stopOnce.Do(func() {
		s.active.Store(false)

		var errs error
		if s.preprocessor != nil {
			if err := s.preprocessor.Destroy(); err != nil {
				errs = errors.Join(errs, err)
			}
		}
		if s.cancelWorker != nil {
			s.cancelWorker()
			<-s.workerDone
		}
		if s.aggregator != nil {
			s.aggregator.Flush()
		}
		if err := s.streamer.Disconnect(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to close transcription link: %w", err))
		}

		s.connected.Store(false)
		s.speaking.Store(false)
		s.level.Store(0)
		s.stopErr = errs
	})
	return s.stopErr
}

func (s *captureSession) isConnected() bool { return s.connected.Load() }
func (s *captureSession) isSpeaking() bool  { return s.speaking.Load() }

func (s *captureSession) inputLevel() float64 {
	return math.Float64frombits(s.level.Load())
}

func (s *captureSession) transcripts() (interim, final string) {
	if s.aggregator == nil {
		return "", ""
	}
	return s.aggregator.InterimText(), s.aggregator.FinalText()
}
