package audio

import "math"

// HighPass is a first-order IIR high-pass filter used to strip rumble and DC
// offset before audio leaves for transcription.
type HighPass struct {
	alpha float32
	prevX float32
	prevY float32
}

func NewHighPass(cutoffHz float64, sampleRate int) *HighPass {
	rc := 1 / (2 * math.Pi * cutoffHz)
	dt := 1 / float64(sampleRate)
	return &HighPass{alpha: float32(rc / (rc + dt))}
}

// Apply filters frame in place.
func (f *HighPass) Apply(frame []float32) {
	for i, x := range frame {
		y := f.alpha * (f.prevY + x - f.prevX)
		f.prevX = x
		f.prevY = y
		frame[i] = y
	}
}

func (f *HighPass) Reset() {
	f.prevX, f.prevY = 0, 0
}
