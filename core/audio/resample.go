package audio

// Resample converts a whole buffer from one rate to another using linear
// interpolation. It is deterministic and allocates the output.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	r := NewResampler(fromRate, toRate)
	out := r.Process(nil, samples)
	return r.Flush(out)
}

// Resampler is a streaming linear-interpolation resampler. It keeps the
// fractional read position and the last input sample between calls, so frames
// processed one after another join without discontinuities.
type Resampler struct {
	fromRate int
	toRate   int
	step     float64

	// pos is the read position relative to the start of the next input frame;
	// -1 < pos refers to prev.
	pos     float64
	prev    float32
	hasPrev bool
}

func NewResampler(fromRate, toRate int) *Resampler {
	return &Resampler{
		fromRate: fromRate,
		toRate:   toRate,
		step:     float64(fromRate) / float64(toRate),
	}
}

// Passthrough reports whether input and output rates match.
func (r *Resampler) Passthrough() bool { return r.fromRate == r.toRate }

// Process appends the resampled frame to dst. Work is linear in the frame
// length.
func (r *Resampler) Process(dst, frame []float32) []float32 {
	if r.Passthrough() {
		return append(dst, frame...)
	}
	if len(frame) == 0 {
		return dst
	}

	at := func(i int) float32 {
		if i < 0 {
			return r.prev
		}
		return frame[i]
	}

	if !r.hasPrev {
		r.prev = frame[0]
		r.hasPrev = true
		r.pos = 0
	}

	last := len(frame) - 1
	for r.pos <= float64(last) {
		i := int(r.pos)
		if r.pos < 0 {
			i = -1
		}
		frac := float32(r.pos - float64(i))
		a := at(i)
		b := a
		if i+1 <= last {
			b = at(i + 1)
		}
		dst = append(dst, a+(b-a)*frac)
		r.pos += r.step
	}

	r.pos -= float64(len(frame))
	r.prev = frame[last]
	return dst
}

// Flush emits nothing further but resets stream state so the resampler can be
// reused for an unrelated stream.
func (r *Resampler) Flush(dst []float32) []float32 {
	r.Reset()
	return dst
}

func (r *Resampler) Reset() {
	r.pos = 0
	r.prev = 0
	r.hasPrev = false
}
