package audio

import (
	"encoding/binary"
	"math"
)

// Encode16 converts a float sample to signed 16-bit PCM. Samples are clamped
// to [-1, 1] first; negative values scale by 32768 and positive by 32767 so
// both ends of the range are reachable. Values round to the nearest step.
func Encode16(x float32) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	if x < 0 {
		return int16(math.Round(float64(x) * 32768))
	}
	return int16(math.Round(float64(x) * 32767))
}

// Decode16 is the inverse of [Encode16].
func Decode16(v int16) float32 {
	if v < 0 {
		return float32(v) / 32768
	}
	return float32(v) / 32767
}

// EncodePCM16 writes samples as little-endian linear16 into dst, growing it
// when needed, and returns the encoded bytes.
func EncodePCM16(dst []byte, samples []float32) []byte {
	need := len(samples) * 2
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	dst = dst[:need]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(Encode16(s)))
	}
	return dst
}

// DecodePCM16 reads little-endian linear16 bytes into float samples. A
// trailing odd byte is ignored.
func DecodePCM16(dst []float32, pcm []byte) []float32 {
	n := len(pcm) / 2
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := range n {
		dst[i] = Decode16(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return dst
}

// ScalePCM16 applies gain in place to little-endian linear16 audio.
func ScalePCM16(pcm []byte, gain float32) {
	if gain == 1 {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		v := int16(binary.LittleEndian.Uint16(pcm[i:]))
		binary.LittleEndian.PutUint16(pcm[i:], uint16(Encode16(Decode16(v)*gain)))
	}
}
