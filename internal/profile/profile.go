package profile

import (
	"time"

	"murmur/arbiter/internal/audiofeat"
)

// Smoothing factor for running averages (durations and audio baselines).
const alpha = 0.1

// Threshold adaptation bounds.
const (
	historyCap     = 20
	lockInAccuracy = 0.85
	revertAccuracy = 0.70
)

// ThresholdPoint is one (threshold, measured accuracy) observation.
type ThresholdPoint struct {
	Threshold float64 `json:"threshold"`
	Accuracy  float64 `json:"accuracy"`
}

// Profile is the per-user adaptive state. It is mutated only through its own
// update methods, and only under the owning Store's lock.
type Profile struct {
	UserID string `json:"user_id"`

	BackchannelPhrases map[string]int `json:"backchannel_phrases"`
	CommandPhrases     map[string]int `json:"command_phrases"`

	AvgBackchannelDur float64 `json:"avg_backchannel_dur"` // seconds
	AvgCommandDur     float64 `json:"avg_command_dur"`     // seconds

	Baseline audiofeat.Baseline `json:"baseline"`

	Threshold    float64          `json:"threshold"`
	History      []ThresholdPoint `json:"history"`
	Interactions int              `json:"interactions"`
}

// NewProfile returns a fresh profile with global default baselines.
func NewProfile(userID string) *Profile {
	return &Profile{
		UserID:             userID,
		BackchannelPhrases: make(map[string]int),
		CommandPhrases:     make(map[string]int),
		Baseline:           audiofeat.DefaultBaseline(),
		Threshold:          0.5,
	}
}

// normalize repairs nil maps and zero baselines after deserialization.
func (p *Profile) normalize() {
	if p.BackchannelPhrases == nil {
		p.BackchannelPhrases = make(map[string]int)
	}
	if p.CommandPhrases == nil {
		p.CommandPhrases = make(map[string]int)
	}
	if p.Baseline.Pitch <= 0 {
		p.Baseline = audiofeat.DefaultBaseline()
	}
	if p.Threshold <= 0 {
		p.Threshold = 0.5
	}
}

// RecordInteraction folds one confirmed classification into the profile.
// Audio baselines move only on confirmed backchannels, so command shouts do
// not poison the listener-feedback anchors.
func (p *Profile) RecordInteraction(phrase string, backchannel bool, dur time.Duration, feats *audiofeat.Features) {
	p.Interactions++
	secs := dur.Seconds()
	if backchannel {
		p.BackchannelPhrases[phrase]++
		p.AvgBackchannelDur = smooth(p.AvgBackchannelDur, secs)
		if feats != nil && feats.OK {
			if feats.PitchMean > 0 {
				p.Baseline.Pitch = smooth(p.Baseline.Pitch, feats.PitchMean)
			}
			if feats.EnergyMean > 0 {
				p.Baseline.Energy = smooth(p.Baseline.Energy, feats.EnergyMean*0.2)
			}
			if feats.SpeechRatio > 0 {
				p.Baseline.Tempo = smooth(p.Baseline.Tempo, feats.SpeechRatio)
			}
		}
	} else {
		p.CommandPhrases[phrase]++
		p.AvgCommandDur = smooth(p.AvgCommandDur, secs)
	}
}

func smooth(old, v float64) float64 {
	if old == 0 {
		return v
	}
	return old*(1-alpha) + v*alpha
}

// PhraseConfidence returns how strongly this exact phrase has historically
// been a backchannel for this user: backchannel / (backchannel + command).
// Unseen phrases return 0.5 until enough interactions exist to trust the
// user's overall backchannel rate instead.
func (p *Profile) PhraseConfidence(phrase string) float64 {
	b := p.BackchannelPhrases[phrase]
	c := p.CommandPhrases[phrase]
	if b+c > 0 {
		return float64(b) / float64(b+c)
	}
	if p.Interactions > 10 {
		return p.backchannelRate()
	}
	return 0.5
}

func (p *Profile) backchannelRate() float64 {
	var b, total int
	for _, n := range p.BackchannelPhrases {
		b += n
		total += n
	}
	for _, n := range p.CommandPhrases {
		total += n
	}
	if total == 0 {
		return 0.5
	}
	return float64(b) / float64(total)
}

// RecordAccuracy feeds one (threshold, accuracy) observation into the bounded
// history and adapts the stored threshold: good accuracy locks the current
// value in, poor accuracy reverts to the best-performing prior one.
func (p *Profile) RecordAccuracy(threshold, accuracy float64) {
	p.History = append(p.History, ThresholdPoint{Threshold: threshold, Accuracy: accuracy})
	if len(p.History) > historyCap {
		p.History = p.History[len(p.History)-historyCap:]
	}
	switch {
	case accuracy >= lockInAccuracy:
		p.Threshold = threshold
	case accuracy < revertAccuracy:
		best := ThresholdPoint{Threshold: p.Threshold, Accuracy: -1}
		for _, pt := range p.History {
			if pt.Accuracy > best.Accuracy {
				best = pt
			}
		}
		p.Threshold = best.Threshold
	}
}

// clone deep-copies the profile so persistence can run off the hot path.
func (p *Profile) clone() *Profile {
	cp := *p
	cp.BackchannelPhrases = make(map[string]int, len(p.BackchannelPhrases))
	for k, v := range p.BackchannelPhrases {
		cp.BackchannelPhrases[k] = v
	}
	cp.CommandPhrases = make(map[string]int, len(p.CommandPhrases))
	for k, v := range p.CommandPhrases {
		cp.CommandPhrases[k] = v
	}
	cp.History = append([]ThresholdPoint(nil), p.History...)
	return &cp
}
