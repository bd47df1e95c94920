package convo

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// Tracker keeps the conversational state one session needs for context
// scoring: when the agent started talking, what it last said, when the user
// last spoke, and how many agent turns have gone by without a user turn.
type Tracker struct {
	mu sync.Mutex

	agentSpeakingSince  time.Time
	lastAgentUtterance  string
	lastUserSpoke       time.Time
	agentTurnsSinceUser int

	silenceGap time.Duration
	languages  []string
}

// Features is the contextual read for one user utterance.
type Features struct {
	AgentSpeakingFor    time.Duration
	AgentAskedQuestion  bool
	HasNegation         bool
	MidSentence         bool
	AfterSilence        bool
	SilenceFor          time.Duration
	AgentTurnsSinceUser int
	Score               float64
}

func NewTracker(silenceGap time.Duration, languages []string) *Tracker {
	if silenceGap <= 0 {
		silenceGap = 2 * time.Second
	}
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	return &Tracker{silenceGap: silenceGap, languages: languages}
}

// AgentStartedSpeaking records the start of an agent utterance.
func (t *Tracker) AgentStartedSpeaking(text string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.agentSpeakingSince = at
	if text != "" {
		t.lastAgentUtterance = text
	}
	t.agentTurnsSinceUser++
}

// AgentStoppedSpeaking clears the speaking-start timestamp.
func (t *Tracker) AgentStoppedSpeaking() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.agentSpeakingSince = time.Time{}
}

// SetAgentUtterance updates the last agent utterance without marking a turn,
// for hosts that stream the text separately from the speaking signal.
func (t *Tracker) SetAgentUtterance(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastAgentUtterance = text
}

// UserSpoke records a completed user turn and resets turn dominance.
func (t *Tracker) UserSpoke(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastUserSpoke = at
	t.agentTurnsSinceUser = 0
}

// Reset clears all conversational history, keeping configuration.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.agentSpeakingSince = time.Time{}
	t.lastAgentUtterance = ""
	t.lastUserSpoke = time.Time{}
	t.agentTurnsSinceUser = 0
}

// Analyze computes contextual features and score for the given user text.
// The score starts neutral at 0.5 (context is always available) and moves up
// toward backchannel or down toward genuine interruption.
func (t *Tracker) Analyze(userText string, now time.Time) Features {
	t.mu.Lock()
	defer t.mu.Unlock()

	f := Features{Score: 0.5, AgentTurnsSinceUser: t.agentTurnsSinceUser}

	if !t.agentSpeakingSince.IsZero() && now.After(t.agentSpeakingSince) {
		f.AgentSpeakingFor = now.Sub(t.agentSpeakingSince)
	}
	f.AgentAskedQuestion = isQuestion(t.lastAgentUtterance, t.languages)
	f.HasNegation = hasNegation(userText)
	f.MidSentence = looksMidSentence(userText)
	if !t.lastUserSpoke.IsZero() {
		f.SilenceFor = now.Sub(t.lastUserSpoke)
		f.AfterSilence = f.SilenceFor > t.silenceGap
	}

	// Long agent monologue invites backchannels.
	if f.AgentSpeakingFor > 5*time.Second {
		f.Score += 0.15
	}
	if f.AgentSpeakingFor > 10*time.Second {
		f.Score += 0.10
	}
	if f.HasNegation {
		f.Score += 0.10
	}
	if f.AgentTurnsSinceUser >= 3 {
		f.Score += 0.10
	}
	// A just-asked question makes any user speech likely a real answer.
	if f.AgentAskedQuestion {
		f.Score -= 0.15
	}
	if f.AfterSilence {
		if f.SilenceFor > 2*t.silenceGap {
			f.Score -= 0.15
		} else {
			f.Score -= 0.10
		}
	}
	if f.MidSentence {
		f.Score -= 0.10
	}

	if f.Score < 0 {
		f.Score = 0
	}
	if f.Score > 1 {
		f.Score = 1
	}
	return f
}

var questionRE = map[string]*regexp.Regexp{
	"en": regexp.MustCompile(`(?i)^(?:who|what|when|where|why|how|is|are|was|were|do|does|did|can|could|would|will|should|shall|may|have|has)\b`),
}

var questionKeywords = map[string][]string{
	"en": {"right?", "okay?", "correct?", "don't you", "isn't it", "aren't you"},
}

// isQuestion applies per-language regex/keyword heuristics to the agent's
// last utterance. Unknown languages fall through to the punctuation check.
func isQuestion(text string, languages []string) bool {
	s := strings.TrimSpace(text)
	if s == "" {
		return false
	}
	if strings.HasSuffix(s, "?") {
		return true
	}
	lower := strings.ToLower(s)
	for _, lang := range languages {
		if re, ok := questionRE[lang]; ok && re.MatchString(lower) {
			return true
		}
		for _, kw := range questionKeywords[lang] {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

var negationMarkers = []string{"no", "not", "don't", "dont", "stop", "never", "wrong", "incorrect", "nope"}

func hasNegation(text string) bool {
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,!?;:")
		for _, m := range negationMarkers {
			if tok == m {
				return true
			}
		}
	}
	return false
}

var conjunctions = []string{"and", "but", "or", "because", "so", "that", "although", "while", "if"}

// looksMidSentence: no terminal punctuation and a trailing/inner conjunction
// suggests the user is still composing the thought.
func looksMidSentence(text string) bool {
	s := strings.TrimSpace(text)
	if s == "" {
		return false
	}
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") {
		return false
	}
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		for _, c := range conjunctions {
			if tok == c {
				return true
			}
		}
	}
	return false
}
