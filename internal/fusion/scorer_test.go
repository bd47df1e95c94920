package fusion

import (
	"context"
	"errors"
	"testing"

	"murmur/arbiter/internal/convo"
	"murmur/arbiter/internal/lexicon"
	"murmur/arbiter/internal/types"
)

func f64(v float64) *float64 { return &v }

func TestFullSignalFusion(t *testing.T) {
	s := NewScorer(DefaultWeights(), 0.5)
	res := s.Score(Signals{
		Word:    1.0,
		Prosody: f64(0.8),
		Context: 0.6,
		User:    f64(0.9),
	}, 0)
	want := 1.0*0.4 + 0.8*0.3 + 0.6*0.2 + 0.9*0.1
	if diff := res.Overall - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected overall %v, got %v", want, res.Overall)
	}
	if !res.IsBackchannel {
		t.Fatal("score above threshold should classify backchannel")
	}
}

func TestMissingSignalRenormalization(t *testing.T) {
	s := NewScorer(DefaultWeights(), 0.5)
	// word and context only: weights 0.4 and 0.2 renormalize to 2/3 and 1/3
	res := s.Score(Signals{Word: 0.9, Context: 0.6}, 0)
	want := (0.9*0.4 + 0.6*0.2) / 0.6
	if diff := res.Overall - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected renormalized overall %v, got %v", want, res.Overall)
	}
	if res.ProsodyScore != nil || res.UserScore != nil {
		t.Fatal("missing signals should stay nil in the result")
	}
}

func TestThresholdMonotonicity(t *testing.T) {
	sig := Signals{Word: 0.8, Context: 0.5}
	low := NewScorer(DefaultWeights(), 0.3).Score(sig, 0)
	high := NewScorer(DefaultWeights(), 0.7).Score(sig, 0)
	// Raising the threshold can only flip backchannel -> interrupt, never the
	// other way.
	if !low.IsBackchannel && high.IsBackchannel {
		t.Fatal("raising threshold must not create new backchannels")
	}
}

func TestRuntimeThresholdUpdate(t *testing.T) {
	s := NewScorer(DefaultWeights(), 0.5)
	s.SetThreshold(0.7)
	if s.Threshold() != 0.7 {
		t.Fatalf("expected threshold 0.7, got %v", s.Threshold())
	}
	s.SetThreshold(1.5) // rejected
	if s.Threshold() != 0.7 {
		t.Fatalf("out-of-range threshold should be rejected, got %v", s.Threshold())
	}
}

func TestStatsCounters(t *testing.T) {
	s := NewScorer(DefaultWeights(), 0.5)
	s.Score(Signals{Word: 1.0, Context: 0.8}, 0) // backchannel
	s.Score(Signals{Word: 0.0, Context: 0.2}, 0) // interrupt
	s.Score(Signals{Word: 0.9, Context: 0.9}, 0) // backchannel

	st := s.Stats()
	if st.Total != 3 {
		t.Fatalf("expected 3 classifications, got %d", st.Total)
	}
	if st.Backchannels != 2 || st.Interruptions != 1 {
		t.Fatalf("unexpected class counts: %+v", st)
	}
	if st.MeanBackchannel <= st.MeanInterrupt {
		t.Fatalf("backchannel mean should exceed interrupt mean: %+v", st)
	}
}

func TestStatEngineConvictionWeighting(t *testing.T) {
	s := NewScorer(DefaultWeights(), 0.5)
	e := NewStatEngine(s)
	// Word is emphatic (0.95), context is nearly neutral (0.52): the stat
	// engine should land close to the word signal.
	in := Inputs{
		Lexical: lexicon.Result{Score: 0.95, Tokens: []string{"yeah"}},
		Context: convo.Features{Score: 0.52},
	}
	res, err := e.Classify(context.Background(), types.SpeechEvent{Text: "yeah"}, in)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if res.Overall < 0.9 {
		t.Fatalf("conviction weighting should track the confident signal, got %v", res.Overall)
	}
}

type failingEngine struct{}

func (failingEngine) Name() string { return "failing" }
func (failingEngine) Classify(context.Context, types.SpeechEvent, Inputs) (types.ConfidenceResult, error) {
	return types.ConfidenceResult{}, errors.New("model unavailable")
}

func TestFuserFallsBackToRuleEngine(t *testing.T) {
	s := NewScorer(DefaultWeights(), 0.5)
	f := NewFuser(s, "generative", failingEngine{}, 3)
	in := Inputs{
		Lexical: lexicon.Result{Score: 1.0, Tokens: []string{"yeah", "okay", "sure"}},
		Context: convo.Features{Score: 0.5},
	}
	ev := types.SpeechEvent{Text: "yeah okay sure", Final: true}
	res := f.Classify(context.Background(), ev, in)
	if !res.IsBackchannel {
		t.Fatal("fallback rule engine should still classify the event")
	}
}

func TestFuserSkipsGenerativeForShortInterim(t *testing.T) {
	s := NewScorer(DefaultWeights(), 0.5)
	f := NewFuser(s, "generative", failingEngine{}, 3)
	in := Inputs{
		Lexical: lexicon.Result{Score: 1.0, Tokens: []string{"yeah"}},
		Context: convo.Features{Score: 0.5},
	}
	if eng := f.pick(types.SpeechEvent{Text: "yeah", Final: false}, in); eng.Name() != "rule" {
		t.Fatalf("short interim transcript should stay on the rule engine, got %s", eng.Name())
	}
}

func TestFuserHonorsMinWordFloor(t *testing.T) {
	s := NewScorer(DefaultWeights(), 0.5)
	f := NewFuser(s, "generative", failingEngine{}, 5)
	in := Inputs{
		Lexical: lexicon.Result{Score: 0.0, Tokens: []string{"what", "about", "the", "price"}},
		Context: convo.Features{Score: 0.5},
	}
	ev := types.SpeechEvent{Text: "what about the price", Final: true}
	if eng := f.pick(ev, in); eng.Name() != "rule" {
		t.Fatalf("below the word floor the rule engine should handle it, got %s", eng.Name())
	}

	f = NewFuser(s, "generative", failingEngine{}, 4)
	if eng := f.pick(ev, in); eng.Name() != "failing" {
		t.Fatalf("at the word floor the generative engine should be consulted, got %s", eng.Name())
	}
}

func TestParseVerdict(t *testing.T) {
	v, err := parseVerdict("```json\n{\"backchannel\": true, \"confidence\": 0.9}\n```")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !v.Backchannel || v.Confidence != 0.9 {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	if _, err := parseVerdict("sorry, I cannot help"); err == nil {
		t.Fatal("non-JSON reply should error")
	}
}
