package dsp

import "math"

// RMS calculates the root mean square of a block, in sample units
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}

	var sum float64
	for _, x := range data {
		sum += x * x
	}
	return math.Sqrt(sum / float64(len(data)))
}

// MeanRMS is the average of the per-channel RMS of a two-channel block
func MeanRMS(left, right []float64) float64 {
	return (RMS(left) + RMS(right)) / 2
}

// Deinterleave splits an interleaved two-channel block into left and right.
// The right channel is multiplied by polarity (+1 or -1) to undo a reversed
// microphone wiring.
func Deinterleave(block []int16, polarity int) ([]int16, []int16) {
	frames := len(block) / 2
	left := make([]int16, frames)
	right := make([]int16, frames)
	for i := 0; i < frames; i++ {
		left[i] = block[2*i]
		r := block[2*i+1]
		if polarity < 0 {
			// -32768 has no positive counterpart
			if r == math.MinInt16 {
				r = math.MaxInt16
			} else {
				r = -r
			}
		}
		right[i] = r
	}
	return left, right
}
