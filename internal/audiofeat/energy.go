package audiofeat

import "math"

const energyFrameMS = 20

// energyStats computes window RMS, peak amplitude and the variance of
// per-20ms-frame RMS values.
func energyStats(samples []float64, rate int) (rms, peak, frameVar float64) {
	var sq float64
	for _, s := range samples {
		sq += s * s
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	rms = math.Sqrt(sq / float64(len(samples)))

	frames := frameRMS(samples, rate)
	if len(frames) < 2 {
		return rms, peak, 0
	}
	var mean float64
	for _, f := range frames {
		mean += f
	}
	mean /= float64(len(frames))
	for _, f := range frames {
		d := f - mean
		frameVar += d * d
	}
	frameVar /= float64(len(frames))
	return rms, peak, frameVar
}

// frameRMS slices the window into 20ms frames and returns per-frame RMS.
func frameRMS(samples []float64, rate int) []float64 {
	frame := rate * energyFrameMS / 1000
	if frame <= 0 {
		return nil
	}
	var out []float64
	for start := 0; start+frame <= len(samples); start += frame {
		var sq float64
		for _, s := range samples[start : start+frame] {
			sq += s * s
		}
		out = append(out, math.Sqrt(sq/float64(frame)))
	}
	return out
}
