package audiofeat

import (
	"encoding/binary"

	"github.com/zaf/g711"

	"murmur/arbiter/internal/types"
)

// DecodeULaw converts a G.711 μ-law payload (telephony hosts ship these at
// 8kHz) into a normalized audio window for feature extraction.
func DecodeULaw(payload []byte, rate int) *types.AudioWindow {
	if len(payload) == 0 {
		return nil
	}
	if rate <= 0 {
		rate = 8000
	}
	lpcm := g711.DecodeUlaw(payload)
	samples := make([]float64, 0, len(lpcm)/2)
	for i := 0; i+1 < len(lpcm); i += 2 {
		v := int16(binary.LittleEndian.Uint16(lpcm[i:]))
		samples = append(samples, float64(v)/32768.0)
	}
	if len(samples) == 0 {
		return nil
	}
	return &types.AudioWindow{Samples: samples, SampleRate: rate}
}
