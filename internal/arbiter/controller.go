package arbiter

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"murmur/arbiter/internal/audiofeat"
	"murmur/arbiter/internal/config"
	"murmur/arbiter/internal/convo"
	"murmur/arbiter/internal/fusion"
	"murmur/arbiter/internal/lexicon"
	"murmur/arbiter/internal/profile"
	"murmur/arbiter/internal/reconcile"
	"murmur/arbiter/internal/types"
)

// Hooks are the host's side-effect surface. The controller never stops
// playback or emits anything itself; it asks the host to.
type Hooks struct {
	OnDecision       func(d types.Decision, r types.Reasoning)
	RequestInterrupt func(reason string)
}

// Controller is the single entry point the host talks to. It owns the agent
// speaking state, routes voice-activity triggers and transcripts through the
// reconciler, and turns fused scores into IGNORE / INTERRUPT / RESPOND.
type Controller struct {
	mu         sync.Mutex
	agentState types.AgentState
	lastEval   *evaluation
	acc        map[string]*accuracyMeter

	matcher  *lexicon.Matcher
	tracker  *convo.Tracker
	profiles *profile.Store
	fuser    *fusion.Fuser
	rec      *reconcile.Reconciler
	hooks    Hooks
	accEvery int
}

// accuracyMeter accumulates per-user decision margins between threshold
// adaptation points.
type accuracyMeter struct {
	sum float64
	n   int
}

type evaluation struct {
	Decision  types.Decision
	Reasoning types.Reasoning
}

// New wires the full arbitration pipeline from configuration. profiles may be
// nil for a stateless controller (per-user learning disabled).
func New(cfg config.Config, profiles *profile.Store, hooks Hooks) *Controller {
	scorer := fusion.NewScorer(fusion.Weights{
		Word:    cfg.Arbiter.WordWeight,
		Prosody: cfg.Arbiter.ProsodyWeight,
		Context: cfg.Arbiter.ContextWeight,
		User:    cfg.Arbiter.UserWeight,
	}, cfg.Arbiter.Threshold)

	var gen fusion.Engine
	if cfg.Arbiter.Engine == "generative" && cfg.OpenAI.APIKey != "" {
		gen = fusion.NewGenerativeEngine(cfg.OpenAI.APIKey, cfg.OpenAI.Model, scorer)
	}

	accEvery := cfg.Profile.PersistEvery
	if accEvery <= 0 {
		accEvery = 10
	}
	c := &Controller{
		agentState: types.AgentSilent,
		acc:        make(map[string]*accuracyMeter),
		matcher: lexicon.New(cfg.Arbiter.FillerWords, cfg.Arbiter.FillerPhrases,
			cfg.Arbiter.CommandWords, cfg.Arbiter.CommandPhrases),
		tracker:  convo.NewTracker(time.Duration(cfg.Arbiter.SilenceGapMS)*time.Millisecond, cfg.Arbiter.Languages),
		profiles: profiles,
		fuser:    fusion.NewFuser(scorer, cfg.Arbiter.Engine, gen, cfg.Arbiter.MinWordCount),
		hooks:    hooks,
		accEvery: accEvery,
	}
	c.rec = reconcile.New(
		time.Duration(cfg.Reconcile.TimeoutMS)*time.Millisecond,
		cfg.Reconcile.TimeoutPolicy,
		c.reconcileClassify,
		reconcile.Callbacks{
			OnIgnore:    c.resolvedIgnore,
			OnInterrupt: c.resolvedInterrupt,
			OnTimeout:   c.resolvedTimeout,
		},
	)
	return c
}

// Scorer exposes the fusion scorer for runtime threshold updates and stats.
func (c *Controller) Scorer() *fusion.Scorer { return c.fuser.Scorer }

// AgentState returns the current agent speaking state.
func (c *Controller) AgentState() types.AgentState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentState
}

// AgentSpeakingChanged is the host's agent-state notification. Stopping
// discards any tentative interruption still waiting on a transcript.
func (c *Controller) AgentSpeakingChanged(speaking bool, utterance string) {
	c.mu.Lock()
	if speaking {
		c.agentState = types.AgentSpeaking
	} else {
		c.agentState = types.AgentSilent
	}
	c.mu.Unlock()

	if speaking {
		c.tracker.AgentStartedSpeaking(utterance, time.Now())
	} else {
		c.tracker.AgentStoppedSpeaking()
		c.rec.Reset()
	}
}

// VoiceActivity is the acoustic speech-onset trigger. Semantically blind; it
// only opens the reconciliation window.
func (c *Controller) VoiceActivity() {
	c.rec.OnVoiceActivity(c.AgentState(), time.Now())
}

// Transcript is a transcript arrival. While the agent speaks, it resolves any
// pending interruption; otherwise it is decided directly (the agent-silent
// path, and the defensive no-trigger path).
func (c *Controller) Transcript(ev types.SpeechEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if c.rec.OnTranscript(ev) {
		return // resolution callbacks emit the decision
	}
	d, r := c.Decide(ev)
	c.emit(d, r)
}

// Decide classifies one speech event against the current agent state and
// returns the decision with its structured reasoning. Side effects are left
// to the caller. Rules, in priority order: silent agent always gets a
// response; a command word always interrupts, filler or not; a backchannel
// verdict is ignored; anything ambiguous interrupts rather than silently
// discarding user speech.
func (c *Controller) Decide(ev types.SpeechEvent) (types.Decision, types.Reasoning) {
	eval := c.evaluate(ev)
	return eval.Decision, eval.Reasoning
}

func (c *Controller) evaluate(ev types.SpeechEvent) evaluation {
	now := ev.At
	if now.IsZero() {
		now = time.Now()
	}
	state := c.AgentState()

	lex := c.matcher.Match(ev.Text)
	norm := lexicon.Normalize(ev.Text)

	base := audiofeat.DefaultBaseline()
	if c.profiles != nil {
		base = c.profiles.BaselineFor(ev.UserID)
	}
	feats := audiofeat.Extract(ev.Audio, base)
	ctxFeats := c.tracker.Analyze(ev.Text, now)

	in := fusion.Inputs{
		Lexical:  lex,
		Audio:    feats,
		HasAudio: ev.Audio != nil,
		Context:  ctxFeats,
	}
	if c.profiles != nil && ev.UserID != "" {
		if score, ok := c.profiles.PhraseConfidence(ev.UserID, norm); ok {
			in.User = &score
		}
		in.Threshold = c.profiles.ThresholdFor(ev.UserID, 0)
	}

	conf := c.fuser.Classify(context.Background(), ev, in)

	var decision types.Decision
	var class, why string
	switch {
	case state == types.AgentSilent:
		decision = types.DecisionRespond
		class = "turn"
		why = "agent is silent; user speech starts a normal turn"
	case lex.HasCommand:
		decision = types.DecisionInterrupt
		class = "command"
		why = fmt.Sprintf("command %q while agent speaking; overrides filler evidence", lex.CommandMatches[0])
	case conf.IsBackchannel:
		decision = types.DecisionIgnore
		class = "backchannel"
		why = fmt.Sprintf("fused score %.2f >= threshold %.2f; passive listener feedback", conf.Overall, conf.Threshold)
	default:
		decision = types.DecisionInterrupt
		class = "turn"
		why = fmt.Sprintf("fused score %.2f < threshold %.2f; user is taking the turn", conf.Overall, conf.Threshold)
	}

	matched := lex.CommandMatches
	if decision == types.DecisionIgnore {
		matched = lex.FillerMatches
	}
	r := types.Reasoning{
		ID:             uuid.New().String(),
		Decision:       decision.String(),
		Classification: class,
		Matched:        matched,
		Confidence:     conf,
		AgentState:     state.String(),
		Justification:  why,
		At:             now,
	}

	c.learn(ev, norm, now, decision, conf, feats)
	metricDecisions.WithLabelValues(decision.String()).Inc()
	return evaluation{Decision: decision, Reasoning: r}
}

// learn feeds the confirmed classification back into the profile store and
// the conversation tracker. A backchannel does not count as taking a turn.
func (c *Controller) learn(ev types.SpeechEvent, norm string, at time.Time, d types.Decision, conf types.ConfidenceResult, feats audiofeat.Features) {
	if d != types.DecisionIgnore {
		c.tracker.UserSpoke(at)
	}
	if c.profiles == nil || ev.UserID == "" || norm == "" {
		return
	}
	var fp *audiofeat.Features
	if feats.OK {
		fp = &feats
	}
	c.profiles.Confirm(ev.UserID, norm, d == types.DecisionIgnore, feats.Duration, fp)
	c.meterAccuracy(ev.UserID, conf)
}

// meterAccuracy folds the decision margin (distance of the fused score from
// the threshold, normalized to [0,1]) into a per-user running mean, and every
// accEvery classifications hands it to the profile store as the accuracy
// observation driving threshold adaptation. Confident, well-separated scores
// read as an accurate threshold; scores hugging the threshold do not.
func (c *Controller) meterAccuracy(userID string, conf types.ConfidenceResult) {
	den := conf.Threshold
	if 1-conf.Threshold > den {
		den = 1 - conf.Threshold
	}
	if den <= 0 {
		return
	}
	margin := math.Abs(conf.Overall-conf.Threshold) / den

	c.mu.Lock()
	m := c.acc[userID]
	if m == nil {
		m = &accuracyMeter{}
		c.acc[userID] = m
	}
	m.sum += margin
	m.n++
	var report float64
	ready := m.n >= c.accEvery
	if ready {
		report = m.sum / float64(m.n)
		delete(c.acc, userID)
	}
	c.mu.Unlock()

	if ready {
		c.profiles.RecordAccuracy(userID, conf.Threshold, report)
	}
}

// reconcileClassify runs the full evaluation for the reconciler and encodes
// the final decision in the backchannel bit, so the command override applies
// on the reconciled path too. The evaluation is stashed for the resolution
// callback that follows synchronously.
func (c *Controller) reconcileClassify(ev types.SpeechEvent) types.ConfidenceResult {
	eval := c.evaluate(ev)
	c.mu.Lock()
	c.lastEval = &eval
	c.mu.Unlock()
	conf := eval.Reasoning.Confidence
	conf.IsBackchannel = eval.Decision == types.DecisionIgnore
	return conf
}

func (c *Controller) takeEval() *evaluation {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.lastEval
	c.lastEval = nil
	return e
}

func (c *Controller) resolvedIgnore(ev types.SpeechEvent, conf types.ConfidenceResult) {
	if e := c.takeEval(); e != nil {
		c.emit(e.Decision, e.Reasoning)
	}
}

func (c *Controller) resolvedInterrupt(ev types.SpeechEvent, conf types.ConfidenceResult) {
	if e := c.takeEval(); e != nil {
		c.emit(e.Decision, e.Reasoning)
	}
}

func (c *Controller) resolvedTimeout(fallback types.Decision) {
	r := types.Reasoning{
		ID:             uuid.New().String(),
		Decision:       fallback.String(),
		Classification: "timeout",
		AgentState:     c.AgentState().String(),
		Justification:  "no transcript arrived in the reconciliation window; applied fallback policy",
		At:             time.Now(),
	}
	metricDecisions.WithLabelValues(fallback.String()).Inc()
	c.emit(fallback, r)
}

// emit delivers the decision to the host. Interrupting additionally asks the
// host to halt playback and moves the agent into the transitioning state
// until the host confirms silence via AgentSpeakingChanged.
func (c *Controller) emit(d types.Decision, r types.Reasoning) {
	if d == types.DecisionInterrupt {
		c.mu.Lock()
		if c.agentState == types.AgentSpeaking {
			c.agentState = types.AgentTransitioning
		}
		c.mu.Unlock()
		if c.hooks.RequestInterrupt != nil {
			c.hooks.RequestInterrupt(r.Justification)
		}
	}
	if c.hooks.OnDecision != nil {
		c.hooks.OnDecision(d, r)
	}
}

// ResetConversation drops all conversational state: agent state, pending
// interruptions, and the context tracker. Learned profiles and the runtime
// threshold survive. Used by the stateless one-shot classification path.
func (c *Controller) ResetConversation() {
	c.rec.Reset()
	c.tracker.Reset()
	c.mu.Lock()
	c.agentState = types.AgentSilent
	c.lastEval = nil
	c.mu.Unlock()
}
