package audio

import "math"

// DefaultVolumeGain scales RMS into a display level. It is a visual heuristic,
// not a calibrated measure.
const DefaultVolumeGain = 5.0

// VolumeMeter turns frames into a normalized [0, 1] level for meters.
type VolumeMeter struct {
	Gain float64
}

func NewVolumeMeter(gain float64) VolumeMeter {
	if gain <= 0 {
		gain = DefaultVolumeGain
	}
	return VolumeMeter{Gain: gain}
}

// Level returns min(1, rms*gain).
func (m VolumeMeter) Level(frame []float32) float64 {
	return math.Min(1, RMS(frame)*m.Gain)
}

func RMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
