package speechtotext

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultSilenceTimeout = 1500 * time.Millisecond

// Aggregator folds transcript segments into utterances. An utterance ends
// when no segment arrives for the silence timeout or when EndUtterance is
// called, whichever comes first, and is emitted exactly once.
type Aggregator struct {
	silenceTimeout time.Duration

	mu         sync.Mutex
	finals     []string
	interim    string
	timer      *time.Timer
	generation uint64
	closed     bool

	onUtteranceEnd atomic.Pointer[func(text string)]
	onTranscript   atomic.Pointer[func(interim, final string)]
}

type AggregatorOption func(*Aggregator)

func WithSilenceTimeout(timeout time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if timeout > 0 {
			a.silenceTimeout = timeout
		}
	}
}

func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{silenceTimeout: DefaultSilenceTimeout}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetUtteranceEndHandler sets the function receiving completed utterances.
func (a *Aggregator) SetUtteranceEndHandler(handler func(text string)) {
	a.onUtteranceEnd.Store(&handler)
}

// SetTranscriptHandler sets the function notified whenever the interim or
// accumulated final text changes.
func (a *Aggregator) SetTranscriptHandler(handler func(interim, final string)) {
	a.onTranscript.Store(&handler)
}

// Add folds a segment into the current utterance. Interim segments replace
// the interim text, final segments are appended. Both restart the silence
// timer. Empty segments are ignored.
func (a *Aggregator) Add(segment Segment) {
	text := strings.TrimSpace(segment.Text)
	if text == "" {
		return
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if segment.IsFinal {
		a.finals = append(a.finals, text)
		a.interim = ""
	} else {
		a.interim = text
	}
	a.restartTimerLocked()
	interim, final := a.interim, strings.Join(a.finals, " ")
	a.mu.Unlock()

	a.notifyTranscript(interim, final)
}

// EndUtterance emits the current utterance immediately.
func (a *Aggregator) EndUtterance() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	text := a.takeLocked()
	a.mu.Unlock()

	a.emit(text)
}

// Flush emits any pending utterance and stops the aggregator. Nothing is
// emitted after Flush returns.
func (a *Aggregator) Flush() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	text := a.takeLocked()
	a.closed = true
	a.mu.Unlock()

	a.emit(text)
}

// Reset discards the current utterance without emitting it.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.takeLocked()
	a.mu.Unlock()

	a.notifyTranscript("", "")
}

// Close stops the silence timer and discards pending text.
func (a *Aggregator) Close() {
	a.mu.Lock()
	a.takeLocked()
	a.closed = true
	a.mu.Unlock()
}

func (a *Aggregator) InterimText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.interim
}

func (a *Aggregator) FinalText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.finals, " ")
}

func (a *Aggregator) restartTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
	}
	a.generation++
	generation := a.generation
	a.timer = time.AfterFunc(a.silenceTimeout, func() { a.expire(generation) })
}

func (a *Aggregator) expire(generation uint64) {
	a.mu.Lock()
	if a.closed || generation != a.generation {
		a.mu.Unlock()
		return
	}
	text := a.takeLocked()
	a.mu.Unlock()

	a.emit(text)
}

// takeLocked returns the utterance text and resets all state. The final
// text wins, the interim text is used only when nothing was finalized.
func (a *Aggregator) takeLocked() string {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.generation++

	text := strings.Join(a.finals, " ")
	if text == "" {
		text = a.interim
	}
	a.finals = nil
	a.interim = ""
	return text
}

func (a *Aggregator) emit(text string) {
	if text == "" {
		return
	}
	a.notifyTranscript("", "")
	if handler := a.onUtteranceEnd.Load(); handler != nil && *handler != nil {
		(*handler)(text)
	}
}

func (a *Aggregator) notifyTranscript(interim, final string) {
	if handler := a.onTranscript.Load(); handler != nil && *handler != nil {
		(*handler)(interim, final)
	}
}
