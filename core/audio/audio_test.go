package audio

import (
	"errors"
	"math"
	"testing"
)

func sine(freq float64, rate int, seconds float64) []float32 {
	n := int(float64(rate) * seconds)
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.8 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

// dominantFrequency estimates frequency from rising zero crossings.
func dominantFrequency(samples []float32, rate int) float64 {
	crossings := 0
	first, last := -1, -1
	for i := 1; i < len(samples); i++ {
		if samples[i-1] < 0 && samples[i] >= 0 {
			if first < 0 {
				first = i
			}
			last = i
			crossings++
		}
	}
	if crossings < 2 {
		return 0
	}
	return float64(crossings-1) / (float64(last-first) / float64(rate))
}

func TestResampleRoundTripPreservesDominantFrequency(t *testing.T) {
	for _, rate := range []int{8000, 22050, 44100, 48000} {
		original := sine(440, rate, 1)

		down := Resample(original, rate, DefaultSampleRate)
		if got := dominantFrequency(down, DefaultSampleRate); math.Abs(got-440) > 440*0.01 {
			t.Fatalf("rate %d: expected ~440Hz at 16kHz, got %f", rate, got)
		}

		back := Resample(down, DefaultSampleRate, rate)
		if got := dominantFrequency(back, rate); math.Abs(got-440) > 440*0.01 {
			t.Fatalf("rate %d: expected ~440Hz after round trip, got %f", rate, got)
		}
	}
}

func TestResamplerStreamingMatchesWholeBuffer(t *testing.T) {
	input := sine(300, 48000, 0.5)
	whole := Resample(input, 48000, 16000)

	r := NewResampler(48000, 16000)
	var streamed []float32
	for start := 0; start < len(input); start += 4096 {
		end := min(start+4096, len(input))
		streamed = r.Process(streamed, input[start:end])
	}

	if len(streamed) != len(whole) {
		t.Fatalf("expected %d streamed samples, got %d", len(whole), len(streamed))
	}
	for i := range whole {
		if math.Abs(float64(whole[i]-streamed[i])) > 1e-5 {
			t.Fatalf("sample %d differs: whole %f streamed %f", i, whole[i], streamed[i])
		}
	}
}

func TestResamplerPassthrough(t *testing.T) {
	r := NewResampler(16000, 16000)
	in := []float32{0.1, 0.2, 0.3}
	out := r.Process(nil, in)
	if len(out) != 3 || out[2] != 0.3 {
		t.Fatalf("expected passthrough copy, got %v", out)
	}
}

func TestEncodeDecode16RoundTrip(t *testing.T) {
	samples := []float32{
		math.Nextafter32(1.0/32767, 0),
		math.Nextafter32(-1.0/32768, 0),
		math.Nextafter32(0.5/32767, 1),
		math.Nextafter32(1, 0),
		math.Nextafter32(-1, 0),
	}
	for i := -10000; i <= 10000; i++ {
		samples = append(samples, float32(i)/10000)
	}
	for _, x := range samples {
		if diff := math.Abs(float64(Decode16(Encode16(x)) - x)); diff > 1.0/32768 {
			t.Fatalf("round trip of %g off by %g", x, diff)
		}
	}
}

func TestEncode16ClampsSymmetrically(t *testing.T) {
	if got := Encode16(2); got != 32767 {
		t.Fatalf("expected 32767 for +2, got %d", got)
	}
	if got := Encode16(-2); got != -32768 {
		t.Fatalf("expected -32768 for -2, got %d", got)
	}
	if got := Encode16(0); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestEncodePCM16IsLittleEndian(t *testing.T) {
	pcm := EncodePCM16(nil, []float32{1, -1})
	if len(pcm) != 4 {
		t.Fatalf("expected 4 bytes, got %d", len(pcm))
	}
	if pcm[0] != 0xFF || pcm[1] != 0x7F || pcm[2] != 0x00 || pcm[3] != 0x80 {
		t.Fatalf("unexpected byte layout % x", pcm)
	}

	samples := DecodePCM16(nil, pcm)
	if samples[0] != 1 || samples[1] != -1 {
		t.Fatalf("expected [1 -1], got %v", samples)
	}
}

func TestScalePCM16(t *testing.T) {
	pcm := EncodePCM16(nil, []float32{0.5, -0.5})
	ScalePCM16(pcm, 0)
	for _, b := range pcm {
		if b != 0 {
			t.Fatalf("expected silence after zero gain, got % x", pcm)
		}
	}
}

func TestRingWrapsAround(t *testing.T) {
	r := NewRing[byte](5)
	if r.Cap() != 8 {
		t.Fatalf("expected capacity rounded to 8, got %d", r.Cap())
	}

	if n := r.Write([]byte{1, 2, 3, 4, 5, 6}); n != 6 {
		t.Fatalf("expected 6 written, got %d", n)
	}
	out := make([]byte, 4)
	if n := r.Read(out); n != 4 {
		t.Fatalf("expected 4 read, got %d", n)
	}
	if n := r.Write([]byte{7, 8, 9, 10, 11, 12, 13}); n != 6 {
		t.Fatalf("expected only 6 to fit, got %d", n)
	}
	if r.Free() != 0 {
		t.Fatalf("expected full ring, free %d", r.Free())
	}

	rest := make([]byte, 16)
	n := r.Read(rest)
	want := []byte{5, 6, 7, 8, 9, 10, 11, 12}
	if n != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), n)
	}
	for i := range want {
		if rest[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, rest[:n])
		}
	}
}

func TestRingConcurrentProducerConsumerKeepsOrder(t *testing.T) {
	r := NewRing[int](64)
	const total = 100000

	done := make(chan struct{})
	go func() {
		defer close(done)
		next := 0
		batch := make([]int, 17)
		for next < total {
			for i := range batch {
				batch[i] = next + i
			}
			size := min(len(batch), total-next)
			next += r.Write(batch[:size])
		}
	}()

	expected := 0
	buf := make([]int, 13)
	for expected < total {
		n := r.Read(buf)
		for _, v := range buf[:n] {
			if v != expected {
				t.Fatalf("expected %d, got %d", expected, v)
			}
			expected++
		}
	}
	<-done
}

func TestVolumeMeterClampsToOne(t *testing.T) {
	meter := NewVolumeMeter(0)
	if meter.Gain != DefaultVolumeGain {
		t.Fatalf("expected default gain, got %f", meter.Gain)
	}
	loud := []float32{1, -1, 1, -1}
	if got := meter.Level(loud); got != 1 {
		t.Fatalf("expected clamped level 1, got %f", got)
	}
	if got := meter.Level(nil); got != 0 {
		t.Fatalf("expected 0 for empty frame, got %f", got)
	}
	quiet := []float32{0.01, -0.01}
	if got := meter.Level(quiet); math.Abs(got-0.05) > 1e-6 {
		t.Fatalf("expected 0.05, got %f", got)
	}
}

func TestHighPassRemovesDCOffset(t *testing.T) {
	f := NewHighPass(80, 16000)
	frame := make([]float32, 16000)
	for i := range frame {
		frame[i] = 0.5
	}
	f.Apply(frame)
	if math.Abs(float64(frame[len(frame)-1])) > 0.01 {
		t.Fatalf("expected DC to decay, last sample %f", frame[len(frame)-1])
	}
}

func TestClassifyDeviceError(t *testing.T) {
	if err := ClassifyDeviceError(errors.New("Access denied by user")); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if err := ClassifyDeviceError(errors.New("no backend")); !errors.Is(err, ErrDevice) {
		t.Fatalf("expected device error, got %v", err)
	}
	if err := ClassifyDeviceError(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestEncodingInfoByteMath(t *testing.T) {
	e := GetDefaultEncodingInfo()
	if got := e.BytesPerSecond(); got != 32000 {
		t.Fatalf("expected 32000 B/s, got %d", got)
	}
	if got := e.ByteCount(100_000_000); got != 3200 {
		t.Fatalf("expected 3200 bytes for 100ms, got %d", got)
	}
	if got := e.Duration(32000).Seconds(); got != 1 {
		t.Fatalf("expected 1s, got %f", got)
	}
}
