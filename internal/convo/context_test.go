package convo

import (
	"testing"
	"time"
)

func TestNeutralByDefault(t *testing.T) {
	tr := NewTracker(0, nil)
	f := tr.Analyze("yeah", time.Now())
	if f.Score != 0.5 {
		t.Fatalf("fresh tracker should score neutral 0.5, got %v", f.Score)
	}
}

func TestLongMonologueRaisesScore(t *testing.T) {
	tr := NewTracker(0, nil)
	now := time.Now()
	tr.AgentStartedSpeaking("let me explain the plan in detail.", now.Add(-6*time.Second))
	f := tr.Analyze("yeah", now)
	if f.Score != 0.65 {
		t.Fatalf("6s monologue should add 0.15, got %v", f.Score)
	}

	tr2 := NewTracker(0, nil)
	tr2.AgentStartedSpeaking("let me explain the plan in detail.", now.Add(-11*time.Second))
	f = tr2.Analyze("yeah", now)
	if f.Score != 0.75 {
		t.Fatalf("11s monologue should add 0.25, got %v", f.Score)
	}
}

func TestQuestionLowersScore(t *testing.T) {
	tr := NewTracker(0, nil)
	now := time.Now()
	tr.AgentStartedSpeaking("What is your budget?", now)
	f := tr.Analyze("around ten thousand", now)
	if !f.AgentAskedQuestion {
		t.Fatal("question should be detected")
	}
	if f.Score >= 0.5 {
		t.Fatalf("answer to a question should score below neutral, got %v", f.Score)
	}
}

func TestQuestionKeywordHeuristic(t *testing.T) {
	if !isQuestion("Is that acceptable", []string{"en"}) {
		t.Fatal("leading auxiliary verb should flag a question")
	}
	if !isQuestion("That works, right?", []string{"en"}) {
		t.Fatal("trailing question mark should flag a question")
	}
	if isQuestion("I will now describe the setup.", []string{"en"}) {
		t.Fatal("plain statement flagged as question")
	}
}

func TestNegationRaisesScore(t *testing.T) {
	tr := NewTracker(0, nil)
	f := tr.Analyze("no that's wrong", time.Now())
	if !f.HasNegation {
		t.Fatal("negation should be detected")
	}
	if f.Score != 0.6 {
		t.Fatalf("negation should add 0.10, got %v", f.Score)
	}
}

func TestTurnDominance(t *testing.T) {
	tr := NewTracker(0, nil)
	now := time.Now()
	for i := 0; i < 3; i++ {
		tr.AgentStartedSpeaking("more agent talk", now)
		tr.AgentStoppedSpeaking()
	}
	f := tr.Analyze("mm", now)
	if f.AgentTurnsSinceUser != 3 {
		t.Fatalf("expected 3 agent turns, got %d", f.AgentTurnsSinceUser)
	}
	if f.Score != 0.6 {
		t.Fatalf("turn dominance should add 0.10, got %v", f.Score)
	}
}

func TestSilenceGapLowersScore(t *testing.T) {
	tr := NewTracker(2*time.Second, nil)
	now := time.Now()
	tr.UserSpoke(now.Add(-3 * time.Second))
	f := tr.Analyze("hello again", now)
	if !f.AfterSilence {
		t.Fatal("silence gap should be detected")
	}
	if f.Score != 0.4 {
		t.Fatalf("speaking after silence should subtract 0.10, got %v", f.Score)
	}

	tr.UserSpoke(now.Add(-5 * time.Second))
	f = tr.Analyze("hello again", now)
	if f.Score != 0.35 {
		t.Fatalf("long silence should subtract 0.15, got %v", f.Score)
	}
}

func TestMidSentenceLowersScore(t *testing.T) {
	tr := NewTracker(0, nil)
	f := tr.Analyze("i was thinking that we could", time.Now())
	if !f.MidSentence {
		t.Fatal("mid-sentence should be detected")
	}
	if f.Score != 0.4 {
		t.Fatalf("mid-sentence should subtract 0.10, got %v", f.Score)
	}
}

func TestUserSpokeResetsDominance(t *testing.T) {
	tr := NewTracker(0, nil)
	now := time.Now()
	tr.AgentStartedSpeaking("a", now)
	tr.AgentStartedSpeaking("b", now)
	tr.UserSpoke(now)
	tr.AgentStartedSpeaking("c", now)
	f := tr.Analyze("ok", now.Add(time.Second))
	if f.AgentTurnsSinceUser != 1 {
		t.Fatalf("user turn should reset dominance, got %d", f.AgentTurnsSinceUser)
	}
}

func TestScoreClamped(t *testing.T) {
	tr := NewTracker(2*time.Second, nil)
	now := time.Now()
	tr.AgentStartedSpeaking("What is your budget?", now)
	tr.UserSpoke(now.Add(-10 * time.Second))
	f := tr.Analyze("well i think that we could", now)
	if f.Score < 0 || f.Score > 1 {
		t.Fatalf("score out of range: %v", f.Score)
	}
}

func TestResetClearsHistory(t *testing.T) {
	tr := NewTracker(0, nil)
	now := time.Now()
	for i := 0; i < 4; i++ {
		tr.AgentStartedSpeaking("and another thing", now)
	}
	tr.Reset()
	tr.AgentStartedSpeaking("hello there", now)
	f := tr.Analyze("yeah", now)
	if f.AgentTurnsSinceUser != 1 {
		t.Fatalf("reset should clear turn dominance, got %d", f.AgentTurnsSinceUser)
	}
	if f.Score != 0.5 {
		t.Fatalf("reset tracker should score neutral, got %v", f.Score)
	}
}
