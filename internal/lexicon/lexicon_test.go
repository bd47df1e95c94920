package lexicon

import "testing"

func testMatcher() *Matcher {
	return New(
		[]string{"yeah", "okay", "uh-huh", "hmm", "right", "sure"},
		[]string{"uh huh", "got it", "go on"},
		[]string{"stop", "wait", "no", "pause"},
		[]string{"hold on", "hang on", "one second"},
	)
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Yeah, OKAY!":   "yeah okay",
		"  Uh-huh...  ": "uh-huh",
		"Stop. Now!":    "stop now",
		"":              "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAllFillerScoresOne(t *testing.T) {
	m := testMatcher()
	r := m.Match("yeah okay uh-huh")
	if r.Score != 1.0 {
		t.Fatalf("all-filler text should score 1.0, got %v", r.Score)
	}
	if r.HasCommand {
		t.Fatal("no command expected")
	}
	if !r.AllFiller {
		t.Fatal("AllFiller should be set")
	}
}

func TestCommandAlwaysSignalled(t *testing.T) {
	m := testMatcher()
	r := m.Match("yeah okay but wait")
	if !r.HasCommand {
		t.Fatal("command word should be detected among fillers")
	}
	if len(r.CommandMatches) == 0 {
		t.Fatal("command matches should name the matched word")
	}
}

func TestCommandPhraseSubstring(t *testing.T) {
	m := testMatcher()
	r := m.Match("could you hold on a moment")
	if !r.HasCommand {
		t.Fatal("command phrase should match as substring")
	}
}

func TestNoFillerEvidence(t *testing.T) {
	m := testMatcher()
	r := m.Match("tell me about pricing")
	if r.Score != 0 {
		t.Fatalf("no filler evidence should score 0, got %v", r.Score)
	}
	if r.HasCommand {
		t.Fatal("no command expected")
	}
}

func TestShortUtteranceBoost(t *testing.T) {
	m := testMatcher()
	r := m.Match("yeah definitely")
	if r.Score < 0.7 {
		t.Fatalf("short utterance with a filler word should score >= 0.7, got %v", r.Score)
	}
}

func TestPartialOverlapTiers(t *testing.T) {
	m := testMatcher()
	// 2 of 4 tokens are filler
	r := m.Match("yeah okay tell me")
	if r.Score != 0.6 {
		t.Fatalf("half-filler text should score 0.6, got %v", r.Score)
	}
	// 1 of 4 tokens
	r = m.Match("sure tell me everything")
	if r.Score != 0.3 {
		t.Fatalf("low-filler text should score 0.3, got %v", r.Score)
	}
}

func TestEmptyInput(t *testing.T) {
	m := testMatcher()
	r := m.Match("   ")
	if r.Score != 0 || r.HasCommand {
		t.Fatalf("empty input should be inert, got %+v", r)
	}
}
