package lexicon

import (
	"strings"
)

// Result is the lexical read on one utterance. HasCommand is reported
// independently of the filler score: a command anywhere in the text wins over
// any amount of filler.
type Result struct {
	Score          float64
	HasCommand     bool
	CommandMatches []string
	FillerMatches  []string
	Tokens         []string
	AllFiller      bool
}

type Matcher struct {
	fillerWords    map[string]struct{}
	fillerPhrases  []string
	commandWords   map[string]struct{}
	commandPhrases []string
}

func New(fillerWords, fillerPhrases, commandWords, commandPhrases []string) *Matcher {
	m := &Matcher{
		fillerWords:  make(map[string]struct{}, len(fillerWords)),
		commandWords: make(map[string]struct{}, len(commandWords)),
	}
	for _, w := range fillerWords {
		m.fillerWords[Normalize(w)] = struct{}{}
	}
	for _, w := range commandWords {
		m.commandWords[Normalize(w)] = struct{}{}
	}
	for _, p := range fillerPhrases {
		if n := Normalize(p); n != "" {
			m.fillerPhrases = append(m.fillerPhrases, n)
		}
	}
	for _, p := range commandPhrases {
		if n := Normalize(p); n != "" {
			m.commandPhrases = append(m.commandPhrases, n)
		}
	}
	return m
}

// Normalize lowercases, strips punctuation and collapses whitespace. Hyphens
// survive so "uh-huh" stays one token.
func Normalize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '\'':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Match classifies the text. Command phrases are checked first and
// short-circuit the filler analysis; filler scoring still runs so the caller
// can report both signals.
func (m *Matcher) Match(text string) Result {
	norm := Normalize(text)
	res := Result{}
	if norm == "" {
		return res
	}
	res.Tokens = strings.Fields(norm)

	for _, p := range m.commandPhrases {
		if strings.Contains(norm, p) {
			res.HasCommand = true
			res.CommandMatches = append(res.CommandMatches, p)
		}
	}
	for _, tok := range res.Tokens {
		if _, ok := m.commandWords[tok]; ok {
			res.HasCommand = true
			res.CommandMatches = append(res.CommandMatches, tok)
		}
	}

	fillerPhraseHit := false
	for _, p := range m.fillerPhrases {
		if strings.Contains(norm, p) {
			fillerPhraseHit = true
			res.FillerMatches = append(res.FillerMatches, p)
		}
	}

	fillerTokens := 0
	for _, tok := range res.Tokens {
		if _, ok := m.fillerWords[tok]; ok {
			fillerTokens++
			res.FillerMatches = append(res.FillerMatches, tok)
		}
	}
	res.AllFiller = len(res.Tokens) > 0 && fillerTokens == len(res.Tokens)

	res.Score = m.fillerScore(norm, res.Tokens, fillerTokens, fillerPhraseHit, res.AllFiller)
	return res
}

// fillerScore: 1.0 for exact phrase or all-filler text, tiered values for
// partial overlap, a boost for very short utterances carrying any filler word,
// 0 with no filler evidence.
func (m *Matcher) fillerScore(norm string, tokens []string, fillerTokens int, phraseHit, allFiller bool) float64 {
	for _, p := range m.fillerPhrases {
		if norm == p {
			return 1.0
		}
	}
	if allFiller {
		return 1.0
	}
	if len(tokens) == 0 {
		return 0
	}
	ratio := float64(fillerTokens) / float64(len(tokens))
	score := 0.0
	switch {
	case ratio >= 0.75:
		score = 0.8
	case ratio >= 0.5:
		score = 0.6
	case ratio > 0:
		score = 0.3
	}
	if phraseHit && score < 0.8 {
		score = 0.8
	}
	// Short utterances with any filler content lean backchannel.
	if len(tokens) <= 2 && fillerTokens > 0 && score < 0.7 {
		score = 0.7
	}
	return score
}
