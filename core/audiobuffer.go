package orchestration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-voice/core/audio"
)

const (
	DefaultPlaybackBufferDuration = 30 * time.Second
	DefaultPlaybackStartThreshold = 200 * time.Millisecond
)

var errBufferDestroyed = errors.New("playback buffer destroyed")

type PlaybackState int

const (
	PlaybackIdle PlaybackState = iota
	PlaybackBuffering
	PlaybackSpeaking
	PlaybackPaused
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackIdle:
		return "idle"
	case PlaybackBuffering:
		return "buffering"
	case PlaybackSpeaking:
		return "speaking"
	case PlaybackPaused:
		return "paused"
	}
	return fmt.Sprintf("PlaybackState(%d)", int(s))
}

type audioBufferCallbacks struct {
	onPlaybackStart func()
	onPlaybackEnd   func()
	onStateChange   func(state PlaybackState)
}

// audioBuffer is a ring-backed playback session. The synthesis queue is its
// only writer and the playback device callback its only reader.
type audioBuffer struct {
	encoding       audio.EncodingInfo
	capacity       int
	startThreshold int
	callbacks      audioBufferCallbacks

	// device is the opened playback device; nil until initialize succeeds.
	device audio.PlaybackDevice
	// volume holds the float32 bits of the output gain.
	volume atomic.Uint32

	mu   sync.Mutex
	cond *sync.Cond

	// ring is dropped on destroy, after the device is stopped.
	ring  *audio.Ring[byte]
	state PlaybackState
	// pausedFrom is the state to return to on resume.
	pausedFrom PlaybackState

	complete  bool
	starting  bool
	started   bool
	ended     bool
	destroyed bool

	appended int
	played   int
}

type audioBufferOption func(*audioBuffer)

func withBufferDuration(d time.Duration) audioBufferOption {
	return func(b *audioBuffer) {
		if n := b.encoding.ByteCount(d); n > 0 {
			b.capacity = n
		}
	}
}

func withStartThreshold(d time.Duration) audioBufferOption {
	return func(b *audioBuffer) {
		if d >= 0 {
			b.startThreshold = b.encoding.ByteCount(d)
		}
	}
}

func newAudioBuffer(encoding audio.EncodingInfo, callbacks audioBufferCallbacks, opts ...audioBufferOption) *audioBuffer {
	if encoding.IsZero() {
		encoding = audio.GetDefaultEncodingInfo()
	}
	b := &audioBuffer{
		encoding:  encoding,
		callbacks: callbacks,
	}
	b.cond = sync.NewCond(&b.mu)
	b.capacity = encoding.ByteCount(DefaultPlaybackBufferDuration)
	b.startThreshold = encoding.ByteCount(DefaultPlaybackStartThreshold)
	b.volume.Store(math.Float32bits(1))
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// initialize allocates the ring and starts the playback device.
func (b *audioBuffer) initialize(ctx context.Context, opener audio.PlaybackOpener) error {
	if opener == nil {
		return fmt.Errorf("%w: no playback device configured", audio.ErrDevice)
	}

	ring := audio.NewRing[byte](b.capacity)
	b.mu.Lock()
	b.ring = ring
	// The threshold must be reachable with a full ring.
	b.startThreshold = min(b.startThreshold, ring.Cap())
	b.mu.Unlock()

	device, err := opener.OpenPlayback(ctx, b.encoding)
	if err != nil {
		return fmt.Errorf("failed to open playback device: %w", audio.ClassifyDeviceError(err))
	}
	b.device = device

	if err := device.Start(b.fill); err != nil {
		_ = device.Close()
		return fmt.Errorf("failed to start playback device: %w", audio.ClassifyDeviceError(err))
	}
	return nil
}

// AddChunk appends synthesized audio. It blocks while the ring is full until
// the device consumes data, ctx is done or the buffer is destroyed.
func (b *audioBuffer) AddChunk(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	wake := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer wake()

	for len(data) > 0 {
		b.mu.Lock()
		for !b.destroyed && b.ring != nil && ctx.Err() == nil && b.ring.Free() == 0 {
			b.cond.Wait()
		}
		if b.destroyed || b.ring == nil {
			b.mu.Unlock()
			return errBufferDestroyed
		}
		if err := ctx.Err(); err != nil {
			b.mu.Unlock()
			return err
		}
		ring := b.ring
		b.mu.Unlock()

		n := ring.Write(data)
		data = data[n:]

		b.mu.Lock()
		b.appended += n
		changed := b.state == PlaybackIdle
		if changed {
			b.state = PlaybackBuffering
		}
		b.mu.Unlock()

		if changed {
			b.notifyState(PlaybackBuffering)
		}
		b.advance()
	}
	return nil
}

// MarkComplete signals that no more chunks will be added.
func (b *audioBuffer) MarkComplete() {
	b.mu.Lock()
	if b.complete || b.destroyed {
		b.mu.Unlock()
		return
	}
	b.complete = true
	if b.state == PlaybackIdle {
		b.state = PlaybackBuffering
	}
	b.mu.Unlock()

	b.advance()
}

// advance moves a buffering session to speaking once enough audio is
// buffered, or to idle if input completed without anything left to play.
func (b *audioBuffer) advance() {
	b.mu.Lock()
	if b.destroyed || b.ring == nil || b.starting || b.state != PlaybackBuffering {
		b.mu.Unlock()
		return
	}

	buffered := b.ring.Len()
	if buffered < b.frameBytes() && b.complete {
		b.ring.Discard()
		b.state = PlaybackIdle
		end := b.started && !b.ended
		b.ended = b.ended || end
		b.mu.Unlock()

		b.notifyState(PlaybackIdle)
		if end && b.callbacks.onPlaybackEnd != nil {
			b.callbacks.onPlaybackEnd()
		}
		return
	}
	if buffered < b.frameBytes() || (buffered < b.startThreshold && !b.complete) {
		b.mu.Unlock()
		return
	}

	if b.started {
		b.state = PlaybackSpeaking
		b.mu.Unlock()
		b.notifyState(PlaybackSpeaking)
		return
	}

	// First start: announce before the device may consume anything.
	b.started = true
	b.starting = true
	b.mu.Unlock()

	if b.callbacks.onPlaybackStart != nil {
		b.callbacks.onPlaybackStart()
	}

	b.mu.Lock()
	b.starting = false
	changed := !b.destroyed && b.state == PlaybackBuffering
	if changed {
		b.state = PlaybackSpeaking
	}
	b.mu.Unlock()

	if changed {
		b.notifyState(PlaybackSpeaking)
	}
}

// frameBytes is the size of one mono sample.
func (b *audioBuffer) frameBytes() int {
	return max(b.encoding.Format.ByteSize(), 1)
}

// fill runs on the device thread. It never blocks and pads underruns with
// silence.
func (b *audioBuffer) fill(out []byte) {
	b.mu.Lock()
	state, ring := b.state, b.ring
	b.mu.Unlock()

	n := 0
	if state == PlaybackSpeaking && ring != nil {
		// Whole samples only. A trailing partial sample waits in the ring.
		frame := b.frameBytes()
		want := min(len(out), ring.Len())
		n = ring.Read(out[:want-want%frame])
		if n > 0 && b.encoding.Format == audio.EncodingLinear16 {
			if gain := math.Float32frombits(b.volume.Load()); gain != 1 {
				audio.ScalePCM16(out[:n], gain)
			}
		}
	}
	silence := b.encoding.SilenceValue()
	for i := n; i < len(out); i++ {
		out[i] = silence
	}
	if state != PlaybackSpeaking {
		return
	}

	b.mu.Lock()
	b.played += n
	if n > 0 {
		b.cond.Broadcast()
	}
	var next PlaybackState
	changed, end := false, false
	if b.state == PlaybackSpeaking && b.ring != nil && b.ring.Len() < b.frameBytes() {
		changed = true
		if b.complete {
			b.ring.Discard()
			next = PlaybackIdle
			end = !b.ended
			b.ended = true
		} else {
			next = PlaybackBuffering
		}
		b.state = next
	}
	b.mu.Unlock()

	if changed {
		b.notifyState(next)
	}
	if end && b.callbacks.onPlaybackEnd != nil {
		b.callbacks.onPlaybackEnd()
	}
}

// Pause suspends consumption. Buffered audio is kept.
func (b *audioBuffer) Pause() {
	b.mu.Lock()
	if b.destroyed || (b.state != PlaybackSpeaking && b.state != PlaybackBuffering) {
		b.mu.Unlock()
		return
	}
	b.pausedFrom = b.state
	b.state = PlaybackPaused
	b.mu.Unlock()

	b.notifyState(PlaybackPaused)
}

func (b *audioBuffer) Resume() {
	b.mu.Lock()
	if b.destroyed || b.state != PlaybackPaused {
		b.mu.Unlock()
		return
	}
	b.state = PlaybackBuffering
	resumeSpeaking := b.pausedFrom == PlaybackSpeaking && b.ring != nil && b.ring.Len() >= b.frameBytes()
	if resumeSpeaking {
		b.state = PlaybackSpeaking
	}
	next := b.state
	b.mu.Unlock()

	b.notifyState(next)
	b.advance()
}

// SetVolume sets the output gain, clamped to [0, 1].
func (b *audioBuffer) SetVolume(v float64) {
	b.volume.Store(math.Float32bits(float32(clamp01(v))))
}

func (b *audioBuffer) Volume() float64 {
	return float64(math.Float32frombits(b.volume.Load()))
}

func (b *audioBuffer) State() PlaybackState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Buffered returns the number of bytes waiting to be played.
func (b *audioBuffer) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ring == nil {
		return 0
	}
	return b.ring.Len()
}

// Destroy stops the device and releases the ring. Repeated calls are
// ignored. No device callback runs after Destroy returns.
func (b *audioBuffer) Destroy() error {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return nil
	}
	b.destroyed = true
	wasIdle := b.state == PlaybackIdle
	b.state = PlaybackIdle
	b.cond.Broadcast()
	b.mu.Unlock()

	var errs error
	if b.device != nil {
		if err := b.device.Stop(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to stop playback device: %w", err))
		}
		if err := b.device.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to close playback device: %w", err))
		}
	}

	b.mu.Lock()
	b.ring = nil
	b.mu.Unlock()

	if !wasIdle {
		b.notifyState(PlaybackIdle)
	}
	return errs
}

func (b *audioBuffer) notifyState(state PlaybackState) {
	if b.callbacks.onStateChange != nil {
		b.callbacks.onStateChange(state)
	}
}
