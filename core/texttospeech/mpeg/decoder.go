// Package mpeg decodes streamed MPEG audio from synthesis responses into mono
// linear16 PCM.
package mpeg

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/koscakluka/ema-voice/core/audio"
)

const framesPerRead = 1152

var ErrDecode = errors.New("mpeg decode failed")

// Decoder converts MPEG frames to mono linear16 at SampleRate while the body
// is still being read.
type Decoder struct {
	SampleRate int
}

func NewDecoder(sampleRate int) *Decoder {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	return &Decoder{SampleRate: sampleRate}
}

func (d *Decoder) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: d.SampleRate, Format: audio.EncodingLinear16}
}

func (d *Decoder) Decode(ctx context.Context, body io.Reader, onAudio func(audio []byte) error) error {
	streamer, format, err := mp3.Decode(io.NopCloser(body))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	defer streamer.Close()

	return d.stream(ctx, streamer, format, onAudio)
}

func (d *Decoder) stream(ctx context.Context, streamer beep.Streamer, format beep.Format, onAudio func(audio []byte) error) error {
	resampler := audio.NewResampler(int(format.SampleRate), d.SampleRate)

	frames := make([][2]float64, framesPerRead)
	mono := make([]float32, 0, framesPerRead)
	var resampled []float32
	var pcm []byte

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, ok := streamer.Stream(frames)
		if n > 0 {
			mono = mono[:0]
			for _, frame := range frames[:n] {
				if format.NumChannels > 1 {
					mono = append(mono, float32((frame[0]+frame[1])/2))
				} else {
					mono = append(mono, float32(frame[0]))
				}
			}

			resampled = resampler.Process(resampled[:0], mono)
			pcm = audio.EncodePCM16(pcm[:0], resampled)
			if len(pcm) > 0 {
				run := make([]byte, len(pcm))
				copy(run, pcm)
				if err := onAudio(run); err != nil {
					return err
				}
			}
		}
		if !ok {
			break
		}
	}

	if err := streamer.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}
