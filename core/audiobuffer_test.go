package orchestration

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-voice/core/audio"
)

// fakePlaybackDevice only consumes audio when the test pulls it.
type fakePlaybackDevice struct {
	encoding audio.EncodingInfo

	mu      sync.Mutex
	fillFn  func([]byte)
	played  []byte
	stopped bool
	closed  atomic.Int32
}

func (d *fakePlaybackDevice) EncodingInfo() audio.EncodingInfo { return d.encoding }

func (d *fakePlaybackDevice) Start(fill func([]byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fillFn = fill
	return nil
}

func (d *fakePlaybackDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

func (d *fakePlaybackDevice) Close() error {
	d.closed.Add(1)
	return nil
}

// pull runs one device callback of n bytes and returns what it produced.
func (d *fakePlaybackDevice) pull(n int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || d.fillFn == nil {
		return nil
	}
	out := make([]byte, n)
	d.fillFn(out)
	d.played = append(d.played, out...)
	return out
}

type fakePlaybackOpener struct {
	mu      sync.Mutex
	devices []*fakePlaybackDevice
	err     error
}

func (o *fakePlaybackOpener) OpenPlayback(_ context.Context, encoding audio.EncodingInfo) (audio.PlaybackDevice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	device := &fakePlaybackDevice{encoding: encoding}
	o.devices = append(o.devices, device)
	return device, nil
}

func (o *fakePlaybackOpener) last() *fakePlaybackDevice {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.devices) == 0 {
		return nil
	}
	return o.devices[len(o.devices)-1]
}

type bufferRecorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *bufferRecorder) add(entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *bufferRecorder) count(entry string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e == entry {
			n++
		}
	}
	return n
}

func (r *bufferRecorder) callbacks() audioBufferCallbacks {
	return audioBufferCallbacks{
		onPlaybackStart: func() { r.add("start") },
		onPlaybackEnd:   func() { r.add("end") },
		onStateChange:   func(state PlaybackState) { r.add(state.String()) },
	}
}

var testEncoding = audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingLinear16}

func newTestBuffer(t *testing.T, recorder *bufferRecorder, opts ...audioBufferOption) (*audioBuffer, *fakePlaybackDevice) {
	t.Helper()
	opener := &fakePlaybackOpener{}
	buffer := newAudioBuffer(testEncoding, recorder.callbacks(), opts...)
	if err := buffer.initialize(context.Background(), opener); err != nil {
		t.Fatalf("expected buffer to initialize, got %v", err)
	}
	return buffer, opener.last()
}

func TestAudioBufferPlaysChunksInOrderAndFiresLifecycleOnce(t *testing.T) {
	recorder := &bufferRecorder{}
	buffer, device := newTestBuffer(t, recorder)
	defer buffer.Destroy()

	first := bytes.Repeat([]byte{1}, 1024)
	second := bytes.Repeat([]byte{2}, 1024)
	if err := buffer.AddChunk(context.Background(), first); err != nil {
		t.Fatalf("expected chunk to be added, got %v", err)
	}
	if err := buffer.AddChunk(context.Background(), second); err != nil {
		t.Fatalf("expected chunk to be added, got %v", err)
	}

	// Below the start threshold nothing is played yet.
	if out := device.pull(512); !bytes.Equal(out, make([]byte, 512)) {
		t.Fatalf("expected silence while buffering")
	}
	if recorder.count("start") != 0 {
		t.Fatalf("expected playback not to start below the threshold")
	}

	buffer.MarkComplete()
	if recorder.count("start") != 1 || buffer.State() != PlaybackSpeaking {
		t.Fatalf("expected completion to start playback, state %s", buffer.State())
	}

	var played []byte
	for range 5 {
		played = append(played, device.pull(512)...)
	}
	if !bytes.Equal(played[:2048], append(append([]byte(nil), first...), second...)) {
		t.Fatalf("expected both chunks to play in order")
	}
	if !bytes.Equal(played[2048:], make([]byte, len(played)-2048)) {
		t.Fatalf("expected silence after the buffered audio")
	}
	if recorder.count("start") != 1 || recorder.count("end") != 1 {
		t.Fatalf("expected one start and one end, got %v", recorder.entries)
	}
	if buffer.State() != PlaybackIdle {
		t.Fatalf("expected idle after draining, got %s", buffer.State())
	}
}

func TestAudioBufferStartsAtThreshold(t *testing.T) {
	recorder := &bufferRecorder{}
	buffer, device := newTestBuffer(t, recorder, withStartThreshold(10*time.Millisecond))
	defer buffer.Destroy()

	// 10ms of linear16 at 16kHz is 320 bytes.
	_ = buffer.AddChunk(context.Background(), make([]byte, 300))
	if buffer.State() != PlaybackBuffering {
		t.Fatalf("expected buffering below threshold, got %s", buffer.State())
	}
	_ = buffer.AddChunk(context.Background(), bytes.Repeat([]byte{7}, 100))
	if buffer.State() != PlaybackSpeaking {
		t.Fatalf("expected speaking at threshold, got %s", buffer.State())
	}

	device.pull(400)
	if buffer.State() != PlaybackBuffering {
		t.Fatalf("expected underrun to return to buffering, got %s", buffer.State())
	}
	if recorder.count("end") != 0 {
		t.Fatalf("expected no end before input completes")
	}
}

func TestAudioBufferKeepsSamplesWholeAcrossOddRuns(t *testing.T) {
	recorder := &bufferRecorder{}
	buffer, device := newTestBuffer(t, recorder, withStartThreshold(0))
	defer buffer.Destroy()

	_ = buffer.AddChunk(context.Background(), []byte{1, 2, 3})
	if out := device.pull(8); !bytes.Equal(out, []byte{1, 2, 0, 0, 0, 0, 0, 0}) {
		t.Fatalf("expected only the whole sample to play, got %x", out)
	}
	if buffer.State() != PlaybackBuffering {
		t.Fatalf("expected a lone byte to count as an underrun, got %s", buffer.State())
	}

	_ = buffer.AddChunk(context.Background(), []byte{4, 5, 6})
	if out := device.pull(8); !bytes.Equal(out, []byte{3, 4, 5, 6, 0, 0, 0, 0}) {
		t.Fatalf("expected the split sample to be rejoined, got %x", out)
	}

	_ = buffer.AddChunk(context.Background(), []byte{7})
	buffer.MarkComplete()
	if buffer.State() != PlaybackIdle || recorder.count("end") != 1 {
		t.Fatalf("expected a trailing partial sample to be dropped on completion, state %s", buffer.State())
	}
	if buffer.Buffered() != 0 {
		t.Fatalf("expected nothing left buffered, got %d", buffer.Buffered())
	}
}

func TestAudioBufferPauseKeepsData(t *testing.T) {
	recorder := &bufferRecorder{}
	buffer, device := newTestBuffer(t, recorder, withStartThreshold(0))
	defer buffer.Destroy()

	_ = buffer.AddChunk(context.Background(), bytes.Repeat([]byte{3}, 100))
	buffer.MarkComplete()
	buffer.Pause()
	if buffer.State() != PlaybackPaused {
		t.Fatalf("expected paused, got %s", buffer.State())
	}
	if out := device.pull(100); !bytes.Equal(out, make([]byte, 100)) {
		t.Fatalf("expected silence while paused")
	}
	if buffer.Buffered() != 100 {
		t.Fatalf("expected buffered data to be kept, got %d", buffer.Buffered())
	}

	buffer.Resume()
	if out := device.pull(100); !bytes.Equal(out, bytes.Repeat([]byte{3}, 100)) {
		t.Fatalf("expected buffered data after resume")
	}
	device.pull(10)
	if recorder.count("end") != 1 {
		t.Fatalf("expected playback to end once, got %v", recorder.entries)
	}
}

func TestAudioBufferVolumeIsClampedAndApplied(t *testing.T) {
	recorder := &bufferRecorder{}
	buffer, device := newTestBuffer(t, recorder, withStartThreshold(0))
	defer buffer.Destroy()

	buffer.SetVolume(2)
	if buffer.Volume() != 1 {
		t.Fatalf("expected volume clamped to 1, got %f", buffer.Volume())
	}
	buffer.SetVolume(-1)
	if buffer.Volume() != 0 {
		t.Fatalf("expected volume clamped to 0, got %f", buffer.Volume())
	}

	buffer.SetVolume(0.5)
	_ = buffer.AddChunk(context.Background(), audio.EncodePCM16(nil, []float32{0.5, -0.5}))
	out := audio.DecodePCM16(nil, device.pull(4))
	if out[0] < 0.24 || out[0] > 0.26 || out[1] > -0.24 || out[1] < -0.26 {
		t.Fatalf("expected samples scaled by half, got %v", out)
	}
}

func TestAudioBufferAddChunkBlocksUntilConsumed(t *testing.T) {
	recorder := &bufferRecorder{}
	buffer, device := newTestBuffer(t, recorder, withBufferDuration(time.Millisecond), withStartThreshold(0))
	defer buffer.Destroy()

	capacity := buffer.ring.Cap()
	done := make(chan error, 1)
	go func() {
		done <- buffer.AddChunk(context.Background(), make([]byte, capacity+64))
	}()

	select {
	case <-done:
		t.Fatalf("expected AddChunk to block while the ring is full")
	case <-time.After(50 * time.Millisecond):
	}

	deadline := time.After(time.Second)
	for {
		device.pull(16)
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("expected AddChunk to finish, got %v", err)
			}
			return
		case <-deadline:
			t.Fatalf("expected AddChunk to resume after consumption")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestAudioBufferAddChunkReleasedByCancellationAndDestroy(t *testing.T) {
	recorder := &bufferRecorder{}
	buffer, _ := newTestBuffer(t, recorder, withBufferDuration(time.Millisecond))

	full := make([]byte, buffer.ring.Cap())
	_ = buffer.AddChunk(context.Background(), full)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- buffer.AddChunk(ctx, []byte{1}) }()
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}

	go func() { done <- buffer.AddChunk(context.Background(), []byte{1}) }()
	time.Sleep(20 * time.Millisecond)
	_ = buffer.Destroy()
	if err := <-done; !errors.Is(err, errBufferDestroyed) {
		t.Fatalf("expected destroyed error, got %v", err)
	}
}

func TestAudioBufferDestroyIsIdempotentAndDetachesDevice(t *testing.T) {
	recorder := &bufferRecorder{}
	buffer, device := newTestBuffer(t, recorder, withStartThreshold(0))

	_ = buffer.AddChunk(context.Background(), make([]byte, 64))
	if err := buffer.Destroy(); err != nil {
		t.Fatalf("expected destroy to succeed, got %v", err)
	}
	if err := buffer.Destroy(); err != nil {
		t.Fatalf("expected second destroy to succeed, got %v", err)
	}

	if device.closed.Load() != 1 {
		t.Fatalf("expected device closed once, got %d", device.closed.Load())
	}
	if out := device.pull(16); out != nil {
		t.Fatalf("expected no callback after destroy")
	}
	if buffer.State() != PlaybackIdle || buffer.Buffered() != 0 {
		t.Fatalf("expected idle empty buffer after destroy")
	}
	if recorder.count("end") != 0 {
		t.Fatalf("expected destroy not to report a natural end")
	}
	if err := buffer.AddChunk(context.Background(), []byte{1}); !errors.Is(err, errBufferDestroyed) {
		t.Fatalf("expected destroyed buffer to reject chunks, got %v", err)
	}
}

func TestAudioBufferInitializeReportsDeviceErrors(t *testing.T) {
	buffer := newAudioBuffer(testEncoding, audioBufferCallbacks{})
	err := buffer.initialize(context.Background(), &fakePlaybackOpener{err: errors.New("no output device")})
	if !errors.Is(err, audio.ErrDevice) {
		t.Fatalf("expected device error, got %v", err)
	}
	if err := buffer.initialize(context.Background(), nil); !errors.Is(err, audio.ErrDevice) {
		t.Fatalf("expected device error without opener, got %v", err)
	}
}
