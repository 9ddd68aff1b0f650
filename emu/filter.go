package emu

import "math"

// LowPass is a first-order RC low-pass filter over interleaved stereo
// blocks. State carries across blocks.
type LowPass struct {
	alpha float64
	prevL float64
	prevR float64
}

// NewLowPass builds a filter with corner frequency cutoffHz at sampleRate.
// alpha = dt / (RC + dt) where RC = 1/(2*pi*fc).
func NewLowPass(cutoffHz float64, sampleRate int) *LowPass {
	return &LowPass{alpha: 1.0 / (float64(sampleRate)/(2*math.Pi*cutoffHz) + 1)}
}

// Apply filters buf in place.
func (f *LowPass) Apply(buf []int16) {
	for i := 0; i+1 < len(buf); i += 2 {
		f.prevL = f.alpha*float64(buf[i]) + (1-f.alpha)*f.prevL
		f.prevR = f.alpha*float64(buf[i+1]) + (1-f.alpha)*f.prevR
		buf[i] = int16(math.Round(f.prevL))
		buf[i+1] = int16(math.Round(f.prevR))
	}
}

// Reset clears the filter history.
func (f *LowPass) Reset() {
	f.prevL, f.prevR = 0, 0
}

// clampInt32 clamps v to [min, max].
func clampInt32(v, min, max int32) int32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
