package audiofeat

import "math"

const (
	pitchFrameMS = 30
	pitchHopMS   = 15 // 50% overlap
	pitchMinHz   = 50
	pitchMaxHz   = 500

	// A candidate autocorrelation peak must carry at least this fraction of
	// the zero-lag energy to count as voiced.
	peakStrength = 0.3
)

// pitchTrack estimates one pitch value per overlapping ~30ms frame via
// autocorrelation restricted to the 50-500Hz band. Unvoiced frames yield 0.
func pitchTrack(samples []float64, rate int) []float64 {
	frame := rate * pitchFrameMS / 1000
	hop := rate * pitchHopMS / 1000
	if frame <= 0 || hop <= 0 || len(samples) < frame {
		return nil
	}
	var out []float64
	for start := 0; start+frame <= len(samples); start += hop {
		out = append(out, framePitch(samples[start:start+frame], rate))
	}
	return out
}

// framePitch returns the pitch of one frame, or 0 when unvoiced. The first
// strong autocorrelation peak past the minimum-period floor wins, which biases
// toward the fundamental over its subharmonics.
func framePitch(frame []float64, rate int) float64 {
	minLag := rate / pitchMaxHz
	maxLag := rate / pitchMinHz
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(frame) {
		maxLag = len(frame) - 1
	}
	if minLag >= maxLag {
		return 0
	}

	var energy float64
	for _, s := range frame {
		energy += s * s
	}
	if energy == 0 {
		return 0
	}

	prev := 0.0
	rising := false
	for lag := minLag; lag <= maxLag; lag++ {
		var ac float64
		for i := 0; i+lag < len(frame); i++ {
			ac += frame[i] * frame[i+lag]
		}
		if ac > prev {
			rising = true
		} else if rising && prev >= peakStrength*energy {
			// prev was a local maximum above the strength floor
			return float64(rate) / float64(lag-1)
		} else if ac < prev {
			rising = false
		}
		prev = ac
	}
	if rising && prev >= peakStrength*energy {
		return float64(rate) / float64(maxLag)
	}
	return 0
}

// pitchStats returns the mean over voiced frames and a normalized variance.
func pitchStats(pitches []float64, basePitch float64) (mean, variance float64) {
	var sum float64
	var n int
	for _, p := range pitches {
		if p > 0 {
			sum += p
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	mean = sum / float64(n)

	var sq float64
	for _, p := range pitches {
		if p > 0 {
			d := p - mean
			sq += d * d
		}
	}
	sd := math.Sqrt(sq / float64(n))
	// Half the baseline pitch of spread saturates the normalized variance.
	variance = clamp01(sd / (basePitch / 2))
	return mean, variance
}

// pitchContour fits a line through the voiced pitch series and returns the
// slope normalized to [-1,1] plus its rising/falling/flat classification.
func pitchContour(pitches []float64) (slope float64, class string) {
	var xs, ys []float64
	for i, p := range pitches {
		if p > 0 {
			xs = append(xs, float64(i))
			ys = append(ys, p)
		}
	}
	if len(xs) < 2 {
		return 0, "flat"
	}
	raw := linearSlope(xs, ys)
	// Hz-per-frame; +/-5 Hz per 15ms hop saturates.
	slope = clamp(raw/5, -1, 1)
	switch {
	case slope > 0.1:
		class = "rising"
	case slope < -0.1:
		class = "falling"
	default:
		class = "flat"
	}
	return slope, class
}

func linearSlope(xs, ys []float64) float64 {
	n := float64(len(xs))
	var sx, sy, sxy, sxx float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
		sxy += xs[i] * ys[i]
		sxx += xs[i] * xs[i]
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
