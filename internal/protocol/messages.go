package protocol

import (
	"encoding/json"

	"murmur/arbiter/internal/types"
)

// MessageType enumerates all event-channel message types.
type MessageType string

const (
	// Host -> engine
	MsgAgentSpeaking MessageType = "agent_speaking"
	MsgVoiceActivity MessageType = "voice_activity"
	MsgTranscript    MessageType = "transcript"

	// Engine -> host
	MsgDecision     MessageType = "decision"
	MsgStopPlayback MessageType = "stop_playback"
)

// Envelope is the outer JSON wrapper for all WebSocket messages.
type Envelope struct {
	Type      MessageType     `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	TsMs      int64           `json:"ts_ms,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// --- Host -> engine payloads ---

// AgentSpeakingPayload reports an agent playback state change. Utterance is
// the text being spoken, used for question detection.
type AgentSpeakingPayload struct {
	Speaking  bool   `json:"speaking"`
	Utterance string `json:"utterance,omitempty"`
}

// VoiceActivityPayload is the acoustic speech-onset trigger. It carries no
// semantics; the transcript that follows carries them.
type VoiceActivityPayload struct {
	EnergyRMS float64 `json:"energy_rms,omitempty"`
}

// TranscriptPayload carries one STT result. AudioULaw is optional
// base64-encoded G.711 μ-law of the utterance window for prosody analysis.
type TranscriptPayload struct {
	Text       string  `json:"text"`
	Final      bool    `json:"final"`
	Confidence float64 `json:"confidence,omitempty"`
	AudioULaw  string  `json:"audio_ulaw,omitempty"`
	SampleRate int     `json:"sample_rate,omitempty"`
}

// --- Engine -> host payloads ---

// DecisionPayload delivers one arbitration verdict with its full reasoning.
type DecisionPayload struct {
	Decision  string          `json:"decision"`
	Reasoning types.Reasoning `json:"reasoning"`
}

// StopPlaybackPayload asks the host to halt agent audio immediately.
type StopPlaybackPayload struct {
	Reason string `json:"reason,omitempty"`
}
