package deepgram

import (
	"fmt"

	"github.com/koscakluka/ema-voice/core/audio"
)

type encodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

type encodingFormat string

func (e encodingFormat) Name() string { return string(e) }

const (
	encodingLinear16 encodingFormat = "linear16"
	encodingALaw     encodingFormat = "alaw"
	encodingMulaw    encodingFormat = "mulaw"
)

func convertEncoding(encoding audio.EncodingInfo) (*encodingInfo, error) {
	switch encoding.Format {
	case audio.EncodingLinear16:
		switch encoding.SampleRate {
		case 8000, 16000, 24000, 32000, 48000:
			return &encodingInfo{SampleRate: encoding.SampleRate, Format: encodingLinear16}, nil
		}
	case audio.EncodingALaw, audio.EncodingMulaw:
		format := encodingMulaw
		if encoding.Format == audio.EncodingALaw {
			format = encodingALaw
		}
		if encoding.SampleRate == 8000 || encoding.SampleRate == 16000 {
			return &encodingInfo{SampleRate: encoding.SampleRate, Format: format}, nil
		}
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
	}
	return nil, fmt.Errorf("unsupported sample rate %d for %s speech", encoding.SampleRate, encoding.Format.Name())
}
