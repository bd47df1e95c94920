package fusion

import (
	"sync"

	"murmur/arbiter/internal/types"
)

// Weights for the four signal sources. Missing sources are dropped and the
// remaining weights renormalized, so a transcript-only event still scores.
type Weights struct {
	Word    float64
	Prosody float64
	Context float64
	User    float64
}

func DefaultWeights() Weights {
	return Weights{Word: 0.4, Prosody: 0.3, Context: 0.2, User: 0.1}
}

// Signals are the per-source scores for one event. Nil pointers mean the
// source had nothing to say; the context score is always present.
type Signals struct {
	Word    float64
	Prosody *float64
	Context float64
	User    *float64

	Features types.FeatureSnapshot
}

// Stats are the scorer's running counters, for monitoring and for the
// profile store's threshold adaptation.
type Stats struct {
	Total           int64   `json:"total"`
	Backchannels    int64   `json:"backchannels"`
	Interruptions   int64   `json:"interruptions"`
	MeanBackchannel float64 `json:"mean_backchannel_score"`
	MeanInterrupt   float64 `json:"mean_interrupt_score"`
	Threshold       float64 `json:"threshold"`
}

// Scorer fuses component scores into one decision bit. The threshold is
// mutable at runtime without restart.
type Scorer struct {
	weights Weights

	mu        sync.Mutex
	threshold float64
	stats     Stats
	sumBack   float64
	sumInt    float64
}

func NewScorer(w Weights, threshold float64) *Scorer {
	if w.Word <= 0 && w.Prosody <= 0 && w.Context <= 0 && w.User <= 0 {
		w = DefaultWeights()
	}
	if threshold <= 0 || threshold >= 1 {
		threshold = 0.5
	}
	return &Scorer{weights: w, threshold: threshold}
}

func (s *Scorer) Threshold() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threshold
}

// SetThreshold swaps the decision threshold at runtime. Out-of-range values
// are rejected silently and the current threshold kept.
func (s *Scorer) SetThreshold(v float64) {
	if v <= 0 || v >= 1 {
		return
	}
	s.mu.Lock()
	s.threshold = v
	s.mu.Unlock()
}

// Score fuses the available signals under the given threshold. A threshold
// of 0 means "use the scorer's current default". The result is recorded in
// the running counters.
func (s *Scorer) Score(sig Signals, threshold float64) types.ConfidenceResult {
	if threshold <= 0 || threshold >= 1 {
		threshold = s.Threshold()
	}

	wsum := s.weights.Word + s.weights.Context
	total := sig.Word*s.weights.Word + sig.Context*s.weights.Context
	if sig.Prosody != nil {
		wsum += s.weights.Prosody
		total += *sig.Prosody * s.weights.Prosody
	}
	if sig.User != nil {
		wsum += s.weights.User
		total += *sig.User * s.weights.User
	}
	overall := 0.5
	if wsum > 0 {
		overall = total / wsum
	}

	return s.Finalize(sig, overall, threshold)
}

// Finalize builds and records the result for an engine that computed its own
// overall score.
func (s *Scorer) Finalize(sig Signals, overall, threshold float64) types.ConfidenceResult {
	if threshold <= 0 || threshold >= 1 {
		threshold = s.Threshold()
	}
	res := types.ConfidenceResult{
		WordScore:     sig.Word,
		ProsodyScore:  sig.Prosody,
		ContextScore:  sig.Context,
		UserScore:     sig.User,
		Overall:       overall,
		Threshold:     threshold,
		IsBackchannel: overall >= threshold,
		Features:      sig.Features,
	}
	s.record(res)
	return res
}

func (s *Scorer) record(res types.ConfidenceResult) {
	s.mu.Lock()
	s.stats.Total++
	if res.IsBackchannel {
		s.stats.Backchannels++
		s.sumBack += res.Overall
		s.stats.MeanBackchannel = s.sumBack / float64(s.stats.Backchannels)
	} else {
		s.stats.Interruptions++
		s.sumInt += res.Overall
		s.stats.MeanInterrupt = s.sumInt / float64(s.stats.Interruptions)
	}
	s.mu.Unlock()

	metricClassifications.WithLabelValues(classLabel(res.IsBackchannel)).Inc()
	metricOverallScore.Observe(res.Overall)
}

func classLabel(backchannel bool) string {
	if backchannel {
		return "backchannel"
	}
	return "interrupt"
}

// Stats returns a copy of the running counters.
func (s *Scorer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Threshold = s.threshold
	return st
}
