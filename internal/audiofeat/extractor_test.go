package audiofeat

import (
	"math"
	"testing"
	"time"

	"murmur/arbiter/internal/types"
)

func sineWindow(freq float64, rate int, dur time.Duration, amp float64) *types.AudioWindow {
	n := int(float64(rate) * dur.Seconds())
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return &types.AudioWindow{Samples: samples, SampleRate: rate}
}

func TestMissingAudioIsNeutral(t *testing.T) {
	f := Extract(nil, DefaultBaseline())
	if f.OK {
		t.Fatal("missing audio should not report OK")
	}
	if f.EnergyMean != 0.5 || f.PauseRatio != 0.5 {
		t.Fatalf("expected neutral midpoints, got %+v", f)
	}

	f = Extract(&types.AudioWindow{SampleRate: 16000}, DefaultBaseline())
	if f.OK {
		t.Fatal("empty window should not report OK")
	}
}

func TestPitchOnSine(t *testing.T) {
	w := sineWindow(200, 16000, 300*time.Millisecond, 0.5)
	f := Extract(w, DefaultBaseline())
	if !f.OK {
		t.Fatal("extraction should succeed on a clean sine")
	}
	if f.PitchMean < 180 || f.PitchMean > 220 {
		t.Fatalf("expected pitch near 200Hz, got %.1f", f.PitchMean)
	}
	if f.ContourClass != "flat" {
		t.Fatalf("steady sine should have a flat contour, got %q", f.ContourClass)
	}
}

func TestPitchBandLimits(t *testing.T) {
	// 1kHz is above the 500Hz ceiling; the tracker must not report it.
	w := sineWindow(1000, 16000, 200*time.Millisecond, 0.5)
	f := Extract(w, DefaultBaseline())
	if f.PitchMean > 520 {
		t.Fatalf("pitch above band should not be reported, got %.1f", f.PitchMean)
	}
}

func TestRisingContour(t *testing.T) {
	rate := 16000
	n := rate / 2
	samples := make([]float64, n)
	phase := 0.0
	for i := range samples {
		// sweep 150 -> 350 Hz
		freq := 150 + 200*float64(i)/float64(n)
		phase += 2 * math.Pi * freq / float64(rate)
		samples[i] = 0.5 * math.Sin(phase)
	}
	f := Extract(&types.AudioWindow{Samples: samples, SampleRate: rate}, DefaultBaseline())
	if f.Contour <= 0.1 {
		t.Fatalf("sweep up should give rising contour, got %.3f", f.Contour)
	}
	if !f.RisingTone {
		t.Fatal("RisingTone should be set for an upward sweep")
	}
}

func TestDuration(t *testing.T) {
	w := sineWindow(200, 8000, 250*time.Millisecond, 0.3)
	f := Extract(w, DefaultBaseline())
	if f.Duration < 240*time.Millisecond || f.Duration > 260*time.Millisecond {
		t.Fatalf("expected ~250ms duration, got %v", f.Duration)
	}
}

func TestPauseRatioWithGap(t *testing.T) {
	rate := 8000
	w := sineWindow(200, rate, 200*time.Millisecond, 0.5)
	// append 200ms of near-silence
	w.Samples = append(w.Samples, make([]float64, rate/5)...)
	f := Extract(w, DefaultBaseline())
	if f.PauseRatio < 0.3 {
		t.Fatalf("half-silent window should have a meaningful pause ratio, got %.2f", f.PauseRatio)
	}
}

func TestBackchannelScoreNeutralOnFailure(t *testing.T) {
	if got := Neutral().BackchannelScore(); got != 0.5 {
		t.Fatalf("neutral features should score 0.5, got %v", got)
	}
}

func TestBackchannelScoreShortQuiet(t *testing.T) {
	w := sineWindow(200, 16000, 300*time.Millisecond, 0.1)
	f := Extract(w, DefaultBaseline())
	if s := f.BackchannelScore(); s <= 0.5 {
		t.Fatalf("short quiet flat utterance should lean backchannel, got %v", s)
	}
}

func TestDecodeULaw(t *testing.T) {
	payload := make([]byte, 160) // 20ms at 8kHz
	for i := range payload {
		payload[i] = byte(i)
	}
	w := DecodeULaw(payload, 8000)
	if w == nil {
		t.Fatal("expected a decoded window")
	}
	if w.SampleRate != 8000 {
		t.Fatalf("expected 8kHz, got %d", w.SampleRate)
	}
	if len(w.Samples) != 160 {
		t.Fatalf("expected 160 samples, got %d", len(w.Samples))
	}
	for _, s := range w.Samples {
		if s < -1 || s > 1 {
			t.Fatalf("sample out of range: %v", s)
		}
	}
	if DecodeULaw(nil, 8000) != nil {
		t.Fatal("empty payload should decode to nil")
	}
}
