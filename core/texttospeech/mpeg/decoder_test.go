package mpeg

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/faiface/beep"
	"github.com/koscakluka/ema-voice/core/audio"
)

type sineStreamer struct {
	rate      int
	remaining int
	pos       int
}

func (s *sineStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.remaining == 0 {
		return 0, false
	}
	n := min(len(samples), s.remaining)
	for i := range samples[:n] {
		v := 0.5 * math.Sin(2*math.Pi*440*float64(s.pos)/float64(s.rate))
		samples[i] = [2]float64{v, v}
		s.pos++
	}
	s.remaining -= n
	return n, true
}

func (s *sineStreamer) Err() error { return nil }

func TestDecoderResamplesToMonoLinear16(t *testing.T) {
	decoder := NewDecoder(16000)
	source := &sineStreamer{rate: 44100, remaining: 44100}

	var pcm []byte
	runs := 0
	err := decoder.stream(context.Background(), source,
		beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2},
		func(run []byte) error {
			runs++
			pcm = append(pcm, run...)
			return nil
		})
	if err != nil {
		t.Fatalf("expected decode to succeed, got %v", err)
	}

	samples := len(pcm) / 2
	if samples < 15990 || samples > 16010 {
		t.Fatalf("expected about one second at 16kHz, got %d samples", samples)
	}
	if runs < 2 {
		t.Fatalf("expected audio to be delivered incrementally, got %d runs", runs)
	}

	decoded := audio.DecodePCM16(nil, pcm)
	peak := float32(0)
	for _, v := range decoded {
		peak = max(peak, v)
	}
	if math.Abs(float64(peak)-0.5) > 0.01 {
		t.Fatalf("expected peak amplitude near 0.5, got %f", peak)
	}
}

func TestDecoderStopsOnCancellation(t *testing.T) {
	decoder := NewDecoder(16000)
	source := &sineStreamer{rate: 16000, remaining: 160000}

	ctx, cancel := context.WithCancel(context.Background())
	err := decoder.stream(ctx, source, beep.Format{SampleRate: 16000, NumChannels: 2, Precision: 2},
		func([]byte) error {
			cancel()
			return nil
		})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestDecoderRejectsEmptyStream(t *testing.T) {
	decoder := NewDecoder(0)
	if decoder.EncodingInfo() != audio.GetDefaultEncodingInfo() {
		t.Fatalf("expected default encoding info, got %+v", decoder.EncodingInfo())
	}

	err := decoder.Decode(context.Background(), bytes.NewReader(nil), func([]byte) error { return nil })
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}
