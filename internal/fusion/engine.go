package fusion

import (
	"context"
	"log"
	"math"

	"murmur/arbiter/internal/audiofeat"
	"murmur/arbiter/internal/convo"
	"murmur/arbiter/internal/lexicon"
	"murmur/arbiter/internal/types"
)

// Inputs are the pre-extracted features handed to an engine. Extraction
// happens once in the controller; classification is a pure function of these.
type Inputs struct {
	Lexical  lexicon.Result
	Audio    audiofeat.Features
	HasAudio bool
	Context  convo.Features
	User     *float64

	// Effective threshold for this event (0 means scorer default).
	Threshold float64
}

// Engine is one classifier variant. All variants share the single contract
// and are selected by a pure function of the inputs, never by object shape.
type Engine interface {
	Name() string
	Classify(ctx context.Context, ev types.SpeechEvent, in Inputs) (types.ConfidenceResult, error)
}

func snapshot(ev types.SpeechEvent, in Inputs) types.FeatureSnapshot {
	snap := types.FeatureSnapshot{
		Text:          ev.Text,
		TokenCount:    len(in.Lexical.Tokens),
		FillerMatches: in.Lexical.FillerMatches,
		AgentSpeakMS:  in.Context.AgentSpeakingFor.Milliseconds(),
		AgentQuestion: in.Context.AgentAskedQuestion,
	}
	if len(in.Lexical.CommandMatches) > 0 {
		snap.CommandMatch = in.Lexical.CommandMatches[0]
	}
	if in.HasAudio && in.Audio.OK {
		snap.PitchMean = in.Audio.PitchMean
		snap.PitchContour = in.Audio.Contour
		snap.EnergyMean = in.Audio.EnergyMean
		snap.PauseRatio = in.Audio.PauseRatio
	}
	return snap
}

func (in Inputs) signals(ev types.SpeechEvent) Signals {
	sig := Signals{
		Word:     in.Lexical.Score,
		Context:  in.Context.Score,
		User:     in.User,
		Features: snapshot(ev, in),
	}
	if in.HasAudio && in.Audio.OK {
		p := in.Audio.BackchannelScore()
		sig.Prosody = &p
	}
	return sig
}

// RuleEngine is the default weighted-fusion classifier.
type RuleEngine struct {
	scorer *Scorer
}

func NewRuleEngine(s *Scorer) *RuleEngine { return &RuleEngine{scorer: s} }

func (e *RuleEngine) Name() string { return "rule" }

func (e *RuleEngine) Classify(_ context.Context, ev types.SpeechEvent, in Inputs) (types.ConfidenceResult, error) {
	return e.scorer.Score(in.signals(ev), in.Threshold), nil
}

// StatEngine weighs each signal by its distance from neutral, so a source
// with a strong opinion dominates sources sitting on the fence.
type StatEngine struct {
	scorer *Scorer
}

func NewStatEngine(s *Scorer) *StatEngine { return &StatEngine{scorer: s} }

func (e *StatEngine) Name() string { return "stat" }

func (e *StatEngine) Classify(_ context.Context, ev types.SpeechEvent, in Inputs) (types.ConfidenceResult, error) {
	sig := in.signals(ev)

	vals := []float64{sig.Word, sig.Context}
	if sig.Prosody != nil {
		vals = append(vals, *sig.Prosody)
	}
	if sig.User != nil {
		vals = append(vals, *sig.User)
	}
	var num, den float64
	for _, v := range vals {
		conviction := math.Abs(v - 0.5)
		num += v * conviction
		den += conviction
	}
	overall := 0.5
	if den > 0 {
		overall = num / den
	}
	return e.scorer.Finalize(sig, overall, in.Threshold), nil
}

// Fuser picks an engine variant per event and runs it. Selection is a pure
// function of configuration and the extracted inputs.
type Fuser struct {
	Scorer *Scorer

	mode     string
	minWords int
	rule     *RuleEngine
	stat     *StatEngine
	gen      Engine
}

// NewFuser builds the variant set. gen may be nil when no generative
// classifier is configured. minWords is the smallest token count worth a
// model round trip.
func NewFuser(scorer *Scorer, mode string, gen Engine, minWords int) *Fuser {
	if minWords <= 0 {
		minWords = 3
	}
	return &Fuser{
		Scorer:   scorer,
		mode:     mode,
		minWords: minWords,
		rule:     NewRuleEngine(scorer),
		stat:     NewStatEngine(scorer),
		gen:      gen,
	}
}

// pick decides which variant handles this event. The generative engine only
// sees final transcripts with enough lexical content to be worth a model
// round trip; everything else stays on the local engines.
func (f *Fuser) pick(ev types.SpeechEvent, in Inputs) Engine {
	switch f.mode {
	case "stat":
		return f.stat
	case "generative":
		if f.gen != nil && ev.Final && len(in.Lexical.Tokens) >= f.minWords {
			return f.gen
		}
	}
	return f.rule
}

// Classify runs the selected engine. Engine failure degrades to the rule
// engine rather than surfacing an error to the decision path.
func (f *Fuser) Classify(ctx context.Context, ev types.SpeechEvent, in Inputs) types.ConfidenceResult {
	eng := f.pick(ev, in)
	res, err := eng.Classify(ctx, ev, in)
	if err != nil {
		log.Printf("[fusion] %s engine failed, using rule engine: %v", eng.Name(), err)
		metricEngineFallbacks.Inc()
		res, _ = f.rule.Classify(ctx, ev, in)
		metricEngineClassifications.WithLabelValues(f.rule.Name()).Inc()
		return res
	}
	metricEngineClassifications.WithLabelValues(eng.Name()).Inc()
	return res
}
