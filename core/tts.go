package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	"github.com/koscakluka/ema-voice/internal/metrics"
)

type playbackOptions struct {
	bufferDuration   time.Duration
	startThreshold   time.Duration
	maxPending       int
	voiceReferenceID string
	boundaryPolicy   texttospeech.BoundaryPolicy
}

// playbackSession is one generation of synthesized speech: the chunker
// feeding a synthesis queue that writes into a playback buffer.
type playbackSession struct {
	id      string
	emit    eventEmitter
	metrics *metrics.Metrics
	created time.Time

	chunker *texttospeech.Chunker
	queue   *texttospeech.Queue
	buffer  *audioBuffer

	// open is true while a streamed generation accepts more text. It is
	// guarded by the orchestrator's playback mutex.
	open bool
	// streaming is the observable streaming flag, cleared on finish, stop
	// and queue overflow.
	streaming atomic.Bool
	// overflowed is set once the queue rejected a chunk; the rest of the
	// generation is dropped.
	overflowed atomic.Bool
	loading    atomic.Bool
}

func newPlaybackSession(
	ctx context.Context,
	synthesizer texttospeech.Synthesizer,
	opener audio.PlaybackOpener,
	options playbackOptions,
	volume float64,
	emit eventEmitter,
	m *metrics.Metrics,
) (*playbackSession, error) {
	if synthesizer == nil {
		return nil, fmt.Errorf("no text-to-speech client configured")
	}
	if emit == nil {
		emit = noopEventEmitter
	}

	p := &playbackSession{
		id:      uuid.NewString(),
		emit:    emit,
		metrics: m,
		created: time.Now(),
	}

	var bufferOptions []audioBufferOption
	if options.bufferDuration > 0 {
		bufferOptions = append(bufferOptions, withBufferDuration(options.bufferDuration))
	}
	if options.startThreshold > 0 {
		bufferOptions = append(bufferOptions, withStartThreshold(options.startThreshold))
	}
	p.buffer = newAudioBuffer(synthesizer.EncodingInfo(), audioBufferCallbacks{
		onPlaybackStart: func() {
			p.metrics.RecordPlaybackStarted(time.Since(p.created).Seconds())
			p.emit(events.NewAssistantPlaybackStarted(p.id))
		},
		onPlaybackEnd: func() {
			p.emit(events.NewAssistantPlaybackEnded(p.id))
		},
		onStateChange: func(state PlaybackState) {
			p.emit(events.NewAssistantPlaybackStateChanged(p.id, state.String()))
		},
	}, bufferOptions...)
	p.buffer.SetVolume(volume)

	if err := p.buffer.initialize(ctx, opener); err != nil {
		return nil, errors.Join(err, p.buffer.Destroy())
	}

	p.queue = texttospeech.NewQueue(synthesizer, p.buffer,
		texttospeech.WithMaxPending(options.maxPending),
		texttospeech.WithVoiceReferenceID(options.voiceReferenceID),
		texttospeech.WithStateCallback(func(loading bool) {
			p.loading.Store(loading)
			p.emit(events.NewAssistantSpeechLoadingChanged(p.id, loading))
		}),
		texttospeech.WithErrorCallback(func(chunk texttospeech.TextChunk, err error) {
			p.metrics.RecordSynthesis(0, true)
			p.emit(events.NewError(p.id, "synthesis", err))
		}),
		texttospeech.WithOverflowCallback(func(chunk texttospeech.TextChunk) {
			p.metrics.RecordQueueRejection()
			p.overflowed.Store(true)
			p.streaming.Store(false)
		}),
		texttospeech.WithChunkSynthesizedCallback(func(chunk texttospeech.TextChunk, bytes int) {
			p.metrics.RecordSynthesis(bytes, false)
			p.emit(events.NewAssistantSpeechChunkSynthesized(p.id, chunk.Index, chunk.Text, bytes))
		}),
	)
	p.chunker = texttospeech.NewChunker(options.boundaryPolicy, p.enqueue)

	m.RecordPlaybackSession()
	return p, nil
}

// enqueue runs under the chunker lock. Rejections are reported through the
// overflow callback.
func (p *playbackSession) enqueue(chunk texttospeech.TextChunk) {
	if p.overflowed.Load() {
		return
	}
	_ = p.queue.Enqueue(chunk)
}

func (p *playbackSession) append(text string) error {
	if p.overflowed.Load() {
		return texttospeech.ErrQueueFull
	}
	p.chunker.Append(text)
	if p.overflowed.Load() {
		return texttospeech.ErrQueueFull
	}
	return nil
}

// finish flushes buffered text and seals the queue so the buffer completes
// once the last chunk is synthesized.
func (p *playbackSession) finish() {
	p.open = false
	p.streaming.Store(false)
	if p.overflowed.Load() {
		p.chunker.Reset()
	} else {
		p.chunker.Flush()
	}
	p.queue.Seal()
}

// destroy aborts synthesis and releases the playback device. The queue is
// stopped first so nothing writes into the buffer while it is torn down.
func (p *playbackSession) destroy() error {
	p.open = false
	p.streaming.Store(false)
	p.chunker.Reset()
	p.queue.Stop()
	err := p.buffer.Destroy()
	p.loading.Store(false)
	return err
}

func (p *playbackSession) isSpeaking() bool {
	return p.buffer.State() == PlaybackSpeaking
}

func (p *playbackSession) isLoading() bool {
	return p.loading.Load()
}
