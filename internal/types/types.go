package types

import "time"

// AgentState tracks what the agent's mouth is doing right now.
type AgentState int

const (
	AgentSilent AgentState = iota
	AgentSpeaking
	AgentTransitioning
)

func (s AgentState) String() string {
	switch s {
	case AgentSilent:
		return "silent"
	case AgentSpeaking:
		return "speaking"
	case AgentTransitioning:
		return "transitioning"
	default:
		return "unknown"
	}
}

// Decision is the arbitration outcome for one speech event.
type Decision int

const (
	DecisionIgnore Decision = iota
	DecisionInterrupt
	DecisionRespond
)

func (d Decision) String() string {
	switch d {
	case DecisionIgnore:
		return "ignore"
	case DecisionInterrupt:
		return "interrupt"
	case DecisionRespond:
		return "respond"
	default:
		return "unknown"
	}
}

// AudioWindow is a slice of normalized mono samples in [-1,1].
type AudioWindow struct {
	Samples    []float64
	SampleRate int
}

func (w *AudioWindow) Duration() time.Duration {
	if w == nil || w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(w.Samples)) / float64(w.SampleRate) * float64(time.Second))
}

// SpeechEvent is one transcript arrival from the STT pipeline. Immutable once
// created; the audio window is optional.
type SpeechEvent struct {
	Text       string       `json:"text"`
	Final      bool         `json:"final"`
	Confidence float64      `json:"confidence"`
	At         time.Time    `json:"at"`
	UserID     string       `json:"user_id,omitempty"`
	Audio      *AudioWindow `json:"-"`
}

// FeatureSnapshot captures what the scorer saw, for explainability.
type FeatureSnapshot struct {
	Text          string   `json:"text"`
	TokenCount    int      `json:"token_count"`
	FillerMatches []string `json:"filler_matches,omitempty"`
	CommandMatch  string   `json:"command_match,omitempty"`
	PitchMean     float64  `json:"pitch_mean,omitempty"`
	PitchContour  float64  `json:"pitch_contour,omitempty"`
	EnergyMean    float64  `json:"energy_mean,omitempty"`
	PauseRatio    float64  `json:"pause_ratio,omitempty"`
	AgentSpeakMS  int64    `json:"agent_speak_ms,omitempty"`
	AgentQuestion bool     `json:"agent_question,omitempty"`
}

// ConfidenceResult is the fused classification for one speech event.
// Optional component scores are nil when their signal source was unavailable.
type ConfidenceResult struct {
	WordScore     float64         `json:"word_score"`
	ProsodyScore  *float64        `json:"prosody_score,omitempty"`
	ContextScore  float64         `json:"context_score"`
	UserScore     *float64        `json:"user_score,omitempty"`
	Overall       float64         `json:"overall"`
	Threshold     float64         `json:"threshold"`
	IsBackchannel bool            `json:"is_backchannel"`
	Features      FeatureSnapshot `json:"features"`
}

// Reasoning is the structured explanation attached to every decision.
type Reasoning struct {
	ID             string           `json:"id"`
	Decision       string           `json:"decision"`
	Classification string           `json:"classification"`
	Matched        []string         `json:"matched,omitempty"`
	Confidence     ConfidenceResult `json:"confidence"`
	AgentState     string           `json:"agent_state"`
	Justification  string           `json:"justification"`
	At             time.Time        `json:"at"`
}
