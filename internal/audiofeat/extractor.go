package audiofeat

import (
	"time"

	"murmur/arbiter/internal/types"
)

// Baseline holds the per-user normalization anchors. Values are learned by the
// profile store; the zero user falls back to the global defaults.
type Baseline struct {
	Pitch  float64 // Hz
	Energy float64 // RMS in [0,1] sample units
	Tempo  float64 // typical speech-time fraction
}

// DefaultBaseline are the global anchors used before any per-user learning.
func DefaultBaseline() Baseline {
	return Baseline{Pitch: 200, Energy: 0.1, Tempo: 1.0}
}

// Features is the full prosodic/temporal read on one audio window. Normalized
// values sit at 0.5 when at baseline. OK is false when extraction fell back to
// neutral values (missing or malformed audio).
type Features struct {
	PitchMean     float64 // Hz, 0 if unvoiced
	PitchNorm     float64 // vs baseline, [0,1]
	PitchVariance float64 // [0,1]
	Contour       float64 // slope, [-1,1]
	ContourClass  string  // "rising" | "falling" | "flat"

	EnergyMean float64 // normalized [0,1]
	EnergyPeak float64 // normalized [0,1]
	EnergyVar  float64 // per-20ms-frame variance, normalized [0,1]

	Duration    time.Duration
	SpeechRatio float64 // speech frames / total frames
	PauseRatio  float64 // 1 - SpeechRatio
	Tempo       float64 // speech fraction vs baseline tempo

	RisingTone bool
	Emphatic   bool
	Hesitant   bool

	OK bool
}

// Neutral returns midpoint features, used whenever extraction cannot run.
// The decision path must keep moving on malformed audio.
func Neutral() Features {
	return Features{
		PitchNorm:     0.5,
		PitchVariance: 0.5,
		ContourClass:  "flat",
		EnergyMean:    0.5,
		EnergyPeak:    0.5,
		EnergyVar:     0.5,
		SpeechRatio:   0.5,
		PauseRatio:    0.5,
		Tempo:         1.0,
		OK:            false,
	}
}

// Extract runs the full feature pipeline over one window. It never fails; any
// condition it cannot process degrades to Neutral().
func Extract(w *types.AudioWindow, base Baseline) Features {
	if w == nil || w.SampleRate <= 0 || len(w.Samples) == 0 {
		return Neutral()
	}
	if base.Pitch <= 0 {
		base.Pitch = 200
	}
	if base.Energy <= 0 {
		base.Energy = 0.1
	}
	if base.Tempo <= 0 {
		base.Tempo = 1.0
	}

	f := Features{OK: true, ContourClass: "flat"}
	f.Duration = w.Duration()

	pitches := pitchTrack(w.Samples, w.SampleRate)
	f.PitchMean, f.PitchVariance = pitchStats(pitches, base.Pitch)
	f.PitchNorm = normalizeAgainst(f.PitchMean, base.Pitch)
	f.Contour, f.ContourClass = pitchContour(pitches)

	rms, peak, evar := energyStats(w.Samples, w.SampleRate)
	f.EnergyMean = normalizeAgainst(rms, base.Energy)
	f.EnergyPeak = normalizeAgainst(peak, base.Energy*3)
	f.EnergyVar = clamp01(evar * 50)

	f.SpeechRatio = speechRatio(w.Samples, w.SampleRate, rms)
	f.PauseRatio = 1 - f.SpeechRatio
	f.Tempo = f.SpeechRatio / base.Tempo

	f.RisingTone = f.Contour > 0.1
	f.Emphatic = f.EnergyPeak > 0.7 && f.PitchVariance > 0.3
	f.Hesitant = f.PauseRatio > 0.3 && f.EnergyMean < 0.4

	return f
}

// BackchannelScore folds the prosodic evidence into one score in [0,1], where
// high means "sounds like passive listener feedback". Short, quiet, flat
// utterances score high; loud, emphatic or rising ones score low.
func (f Features) BackchannelScore() float64 {
	if !f.OK {
		return 0.5
	}
	score := 0.5
	if f.Duration > 0 && f.Duration < time.Second {
		score += 0.2
	} else if f.Duration >= 2*time.Second {
		score -= 0.15
	}
	if f.EnergyMean < 0.4 {
		score += 0.1
	} else if f.EnergyMean > 0.7 {
		score -= 0.1
	}
	switch f.ContourClass {
	case "falling", "flat":
		score += 0.1
	}
	if f.RisingTone {
		score -= 0.15
	}
	if f.Emphatic {
		score -= 0.2
	}
	if f.Hesitant {
		score += 0.05
	}
	return clamp01(score)
}

// normalizeAgainst maps v onto [0,1] with 0.5 at the baseline anchor.
func normalizeAgainst(v, base float64) float64 {
	if v <= 0 || base <= 0 {
		return 0.5
	}
	return clamp01(v / (v + base))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
