package texttospeech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Queue synthesizes text chunks one at a time, in the order they were
// enqueued, streaming the audio of each into a sink. Request n+1 is not
// started before every byte of request n has been appended.
type Queue struct {
	synthesizer Synthesizer
	sink        AudioSink
	options     QueueOptions

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	pending   []TextChunk
	running   bool
	sealed    bool
	stopped   bool
	completed bool
	loading   bool
}

func NewQueue(synthesizer Synthesizer, sink AudioSink, opts ...QueueOption) *Queue {
	options := QueueOptions{MaxPending: DefaultMaxPending}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		synthesizer: synthesizer,
		sink:        sink,
		options:     options,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Enqueue adds a chunk and starts the worker if it is not running.
// Whitespace-only chunks are accepted and skipped.
func (q *Queue) Enqueue(chunk TextChunk) error {
	q.mu.Lock()
	if q.stopped || q.sealed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if len(q.pending) >= q.options.MaxPending {
		q.mu.Unlock()
		logger.Warn("synthesis queue full, dropping chunk",
			"chunk_index", chunk.Index, "max_pending", q.options.MaxPending)
		if q.options.OverflowCallback != nil {
			q.options.OverflowCallback(chunk)
		}
		return ErrQueueFull
	}

	q.pending = append(q.pending, chunk)
	startWorker := !q.running
	q.running = true
	changed := !q.loading
	q.loading = true
	q.mu.Unlock()

	if changed {
		q.notifyLoading()
	}
	if startWorker {
		q.wg.Add(1)
		go q.run()
	}
	return nil
}

// Seal marks the end of input. Once everything enqueued has been
// synthesized the sink is marked complete.
func (q *Queue) Seal() {
	q.mu.Lock()
	if q.sealed || q.stopped {
		q.mu.Unlock()
		return
	}
	q.sealed = true
	idle := !q.running
	q.mu.Unlock()

	if idle {
		q.complete()
	}
}

// Stop aborts the in-flight request and drops pending chunks. Audio that was
// already appended stays in the sink. Stop waits for the worker to exit and
// must not be called from a queue callback.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.pending = nil
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}

// Len returns the number of chunks waiting to be synthesized.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) IsLoading() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loading
}

func (q *Queue) run() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		if q.stopped || len(q.pending) == 0 {
			q.running = false
			finished := q.sealed && !q.stopped
			changed := q.loading
			q.loading = false
			q.mu.Unlock()

			if changed {
				q.notifyLoading()
			}
			if finished {
				q.complete()
			}
			return
		}
		chunk := q.pending[0]
		q.pending[0] = TextChunk{}
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.process(chunk)
	}
}

func (q *Queue) process(chunk TextChunk) {
	if strings.TrimSpace(chunk.Text) == "" {
		return
	}

	ctx, span := tracer.Start(q.ctx, "synthesize chunk")
	defer span.End()
	span.SetAttributes(
		attribute.Int("synthesis.chunk_index", chunk.Index),
		attribute.Int("synthesis.chunk_length", len(chunk.Text)),
	)

	appended := 0
	err := q.synthesizer.Synthesize(ctx, Request{
		Text:             chunk.Text,
		VoiceReferenceID: q.options.VoiceReferenceID,
	}, func(audio []byte) error {
		if len(audio) == 0 {
			return nil
		}
		if err := q.sink.AddChunk(ctx, audio); err != nil {
			return fmt.Errorf("failed to append audio: %w", err)
		}
		appended += len(audio)
		return nil
	})
	span.SetAttributes(attribute.Int("synthesis.bytes", appended))

	switch {
	case err == nil:
		if q.options.ChunkSynthesizedCallback != nil {
			q.options.ChunkSynthesizedCallback(chunk, appended)
		}
	case errors.Is(err, context.Canceled) || q.ctx.Err() != nil:
		// stopped on purpose
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("failed to synthesize chunk", "chunk_index", chunk.Index, "error", err)
		if q.options.ErrorCallback != nil {
			q.options.ErrorCallback(chunk, err)
		}
	}
}

func (q *Queue) complete() {
	q.mu.Lock()
	if q.completed {
		q.mu.Unlock()
		return
	}
	q.completed = true
	q.mu.Unlock()

	q.sink.MarkComplete()
}

// notifyLoading reports the current loading state, which may already differ
// from the change that triggered the call.
func (q *Queue) notifyLoading() {
	if q.options.StateCallback != nil {
		q.options.StateCallback(q.IsLoading())
	}
}
