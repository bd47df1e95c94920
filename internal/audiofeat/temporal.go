package audiofeat

// Energy-threshold voice-activity pass over 20ms frames. A frame counts as
// speech when its RMS clears a fraction of the window RMS, with short
// consecutive-frame requirements on both edges so isolated spikes and dips do
// not flip the state.
const (
	vadThresholdFrac = 0.5
	vadMinStart      = 2 // consecutive speech frames to enter speech
	vadHangover      = 2 // consecutive quiet frames to leave speech
)

// speechRatio returns the fraction of frames judged to carry speech.
func speechRatio(samples []float64, rate int, windowRMS float64) float64 {
	frames := frameRMS(samples, rate)
	if len(frames) == 0 || windowRMS <= 0 {
		return 0.5
	}
	threshold := windowRMS * vadThresholdFrac

	speaking := false
	consecSpeech := 0
	nonSpeech := 0
	speechFrames := 0
	for _, f := range frames {
		if !speaking {
			if f >= threshold {
				consecSpeech++
				if consecSpeech >= vadMinStart {
					speaking = true
					nonSpeech = 0
					// the run-up frames were speech too
					speechFrames += consecSpeech - 1
				}
			} else {
				consecSpeech = 0
			}
		} else {
			if f < threshold {
				nonSpeech++
				if nonSpeech >= vadHangover {
					speaking = false
					consecSpeech = 0
					nonSpeech = 0
					continue
				}
			} else {
				nonSpeech = 0
			}
		}
		if speaking {
			speechFrames++
		}
	}
	return float64(speechFrames) / float64(len(frames))
}
