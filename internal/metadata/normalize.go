package metadata

import (
	"fmt"
	"math"
)

// Normalize rescales samples by their maximum so the loudest sample maps to
// exactly 1. The empty sequence normalizes to the empty sequence; a non-empty
// all-zero sequence has no maximum to divide by and fails with
// KindDegenerateWaveform. Negative or non-finite samples are malformed
// input.
func Normalize(samples []float64) ([]float64, error) {
	out := make([]float64, len(samples))
	if len(samples) == 0 {
		return out, nil
	}

	maxValue := 0.0
	for i, s := range samples {
		if s < 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, &ResolutionError{
				Kind: KindUnreachable,
				Op:   opNormalize,
				Err:  fmt.Errorf("sample %d is not a non-negative finite number: %v", i, s),
			}
		}
		if s > maxValue {
			maxValue = s
		}
	}
	if maxValue == 0 {
		return nil, &ResolutionError{Kind: KindDegenerateWaveform, Op: opNormalize}
	}

	for i, s := range samples {
		if s == maxValue {
			out[i] = 1
			continue
		}
		out[i] = s / maxValue
	}
	return out, nil
}
