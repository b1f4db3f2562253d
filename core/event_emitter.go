package orchestration

import (
	"sync"

	"github.com/koscakluka/ema-voice/core/events"
)

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts callbackOptions) eventEmitter {
	return func(event events.Event) {
		if opts.onEvent != nil {
			opts.onEvent(event)
		}

		switch typedEvent := event.(type) {
		case events.UserSpeechStarted:
			if opts.onSpeechStarted != nil {
				opts.onSpeechStarted()
			}
		case events.UserTranscriptInterimUpdated:
			if opts.onInterimTranscription != nil {
				opts.onInterimTranscription(typedEvent.Transcript)
			}
		case events.UserTranscriptFinal:
			if opts.onTranscription != nil {
				opts.onTranscription(typedEvent.Transcript)
			}
		case events.CaptureVolumeUpdated:
			if opts.onVolume != nil {
				opts.onVolume(typedEvent.Level)
			}
		case events.AssistantPlaybackStarted:
			if opts.onPlaybackStarted != nil {
				opts.onPlaybackStarted()
			}
		case events.AssistantPlaybackEnded:
			if opts.onPlaybackEnded != nil {
				opts.onPlaybackEnded()
			}
		case events.Error:
			if opts.onError != nil {
				opts.onError(typedEvent)
			}
		}
	}
}

// eventDispatcher delivers events to a handler on its own goroutine, in the
// order they were emitted. emit never blocks, so it is safe to call from
// audio callbacks, queue workers and transport readers, and handlers may call
// back into the orchestrator.
type eventDispatcher struct {
	handler eventEmitter

	mu      sync.Mutex
	cond    *sync.Cond
	pending []events.Event
	closed  bool
	done    chan struct{}
}

func newEventDispatcher(handler eventEmitter) *eventDispatcher {
	if handler == nil {
		handler = noopEventEmitter
	}
	d := &eventDispatcher{handler: handler, done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

func (d *eventDispatcher) emit(event events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	// A volume update replaces one queued directly before it.
	if _, ok := event.(events.CaptureVolumeUpdated); ok && len(d.pending) > 0 {
		last := len(d.pending) - 1
		if previous, ok := d.pending[last].(events.CaptureVolumeUpdated); ok && previous.SessionID() == event.SessionID() {
			d.pending[last] = event
			return
		}
	}
	d.pending = append(d.pending, event)
	d.cond.Signal()
}

// close delivers what is already pending and stops the dispatcher. It must
// not be called from a handler.
func (d *eventDispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.cond.Signal()
	d.mu.Unlock()
	<-d.done
}

func (d *eventDispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.pending) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.pending) == 0 {
			d.mu.Unlock()
			return
		}
		batch := d.pending
		d.pending = nil
		d.mu.Unlock()

		for _, event := range batch {
			d.deliver(event)
		}
	}
}

func (d *eventDispatcher) deliver(event events.Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("event handler panicked", "event", event.Kind(), "panic", recovered)
		}
	}()
	d.handler(event)
}
