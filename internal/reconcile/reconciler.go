package reconcile

import (
	"log"
	"sync"
	"time"

	"murmur/arbiter/internal/types"
)

// Resolution is how one pending interruption ended.
type Resolution int

const (
	ResolvedIgnore Resolution = iota
	ResolvedInterrupt
	ResolvedTimeout
)

func (r Resolution) String() string {
	switch r {
	case ResolvedIgnore:
		return "ignore"
	case ResolvedInterrupt:
		return "interrupt"
	case ResolvedTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Classifier resolves an attached transcript into a confidence result. It is
// synchronous and side-effect-free; the reconciler calls it outside its lock.
type Classifier func(ev types.SpeechEvent) types.ConfidenceResult

// Callbacks fire exactly once per pending record, from whichever goroutine
// resolved it (transcript arrival or the timeout timer). All fields optional.
type Callbacks struct {
	OnIgnore    func(ev types.SpeechEvent, conf types.ConfidenceResult)
	OnInterrupt func(ev types.SpeechEvent, conf types.ConfidenceResult)
	OnTimeout   func(fallback types.Decision)
}

// pending is the single tentative-interruption slot. At most one is live; a
// fresh voice-activity trigger discards and replaces an unresolved one.
type pending struct {
	gen         uint64
	triggeredAt time.Time
	agentState  types.AgentState
	timer       *time.Timer
}

// Reconciler aligns the fast acoustic trigger with the slower transcript for
// the same speech event. One mutex serializes the pending slot; timeouts use
// a wake-on-timer, never a poll loop. A generation counter makes resolution
// exactly-once even when a late timer races a transcript.
type Reconciler struct {
	mu   sync.Mutex
	gen  uint64
	open *pending

	timeout  time.Duration
	fallback types.Decision
	classify Classifier
	cb       Callbacks
}

// New builds a reconciler. fallbackPolicy is "interrupt" or "ignore"
// (default: ignore while speaking, so acoustic noise cannot stop the agent).
func New(timeout time.Duration, fallbackPolicy string, classify Classifier, cb Callbacks) *Reconciler {
	if timeout <= 0 {
		timeout = 400 * time.Millisecond
	}
	fb := types.DecisionIgnore
	if fallbackPolicy == "interrupt" {
		fb = types.DecisionInterrupt
	}
	return &Reconciler{timeout: timeout, fallback: fb, classify: classify, cb: cb}
}

// Pending reports whether a tentative interruption is currently open.
func (r *Reconciler) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open != nil
}

// OnVoiceActivity opens a new pending record when the agent is speaking.
// Last trigger wins: any unresolved record is discarded, not queued.
func (r *Reconciler) OnVoiceActivity(agentState types.AgentState, now time.Time) {
	if agentState != types.AgentSpeaking {
		return
	}
	r.mu.Lock()
	if r.open != nil {
		r.open.timer.Stop()
		metricSuperseded.Inc()
	}
	r.gen++
	gen := r.gen
	p := &pending{gen: gen, triggeredAt: now, agentState: agentState}
	p.timer = time.AfterFunc(r.timeout, func() { r.fireTimeout(gen) })
	r.open = p
	r.mu.Unlock()
	metricOpened.Inc()
}

// OnTranscript attaches a transcript to the open pending record and resolves
// it through the classifier. With no open record this is a no-op (the
// controller still handles such events for the agent-silent case) and false
// is returned.
func (r *Reconciler) OnTranscript(ev types.SpeechEvent) bool {
	r.mu.Lock()
	p := r.open
	if p == nil {
		r.mu.Unlock()
		return false
	}
	p.timer.Stop()
	r.open = nil
	r.mu.Unlock()

	conf := r.classify(ev)
	metricResolveLatency.Observe(float64(time.Since(p.triggeredAt).Milliseconds()))
	if conf.IsBackchannel {
		metricResolved.WithLabelValues(ResolvedIgnore.String()).Inc()
		if r.cb.OnIgnore != nil {
			r.cb.OnIgnore(ev, conf)
		}
	} else {
		metricResolved.WithLabelValues(ResolvedInterrupt.String()).Inc()
		if r.cb.OnInterrupt != nil {
			r.cb.OnInterrupt(ev, conf)
		}
	}
	return true
}

// fireTimeout resolves a pending record whose transcript never arrived. The
// generation check makes a stale timer a no-op.
func (r *Reconciler) fireTimeout(gen uint64) {
	r.mu.Lock()
	if r.open == nil || r.open.gen != gen {
		r.mu.Unlock()
		return
	}
	p := r.open
	r.open = nil
	r.mu.Unlock()

	log.Printf("[reconcile] no transcript within %v (trigger %v ago), applying fallback %s",
		r.timeout, time.Since(p.triggeredAt).Round(time.Millisecond), r.fallback)
	metricResolved.WithLabelValues(ResolvedTimeout.String()).Inc()
	if r.cb.OnTimeout != nil {
		r.cb.OnTimeout(r.fallback)
	}
}

// Reset discards any open pending record without resolving it. Used when the
// agent stops speaking on its own, making the tentative interruption moot.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	if r.open != nil {
		r.open.timer.Stop()
		r.open = nil
	}
	r.mu.Unlock()
}
