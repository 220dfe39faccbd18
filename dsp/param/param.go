// Package param maps normalized control values in [0, 1] to the voice
// engine's physical units (Hz, ms, dB, %).
//
// All mapping functions are pure, allocation-free, and safe to call from a
// real-time audio thread. Inputs outside the source range are clamped
// before mapping, so outputs always lie within the destination range.
package param

import "math"

// LinToLin maps x from [inMin, inMax] to [outMin, outMax] linearly.
// x is clamped to the input range first. The output range may be inverted
// (outMin > outMax).
func LinToLin(x, inMin, inMax, outMin, outMax float64) float64 {
	if inMax == inMin {
		return outMin
	}

	t := (clampIn(x, inMin, inMax) - inMin) / (inMax - inMin)

	return outMin + t*(outMax-outMin)
}

// LinToExp maps x from [inMin, inMax] to [outMin, outMax] exponentially,
// for perceptually logarithmic controls such as cutoff and decay times.
// outMin and outMax must be nonzero and share the same sign; the output
// range may be inverted. x is clamped to the input range first.
func LinToExp(x, inMin, inMax, outMin, outMax float64) float64 {
	if inMax == inMin || outMin == 0 || outMax == 0 {
		return outMin
	}

	if (outMin > 0) != (outMax > 0) {
		return outMin
	}

	t := (clampIn(x, inMin, inMax) - inMin) / (inMax - inMin)

	return outMin * math.Exp(t*math.Log(outMax/outMin))
}

// ExpToLin inverts LinToExp: it maps y from the exponential output range
// back to the linear input range.
func ExpToLin(y, inMin, inMax, outMin, outMax float64) float64 {
	if outMin == 0 || outMax == 0 || outMin == outMax {
		return inMin
	}

	t := math.Log(y/outMin) / math.Log(outMax/outMin)

	return inMin + clampIn(t, 0, 1)*(inMax-inMin)
}

// clampIn limits x to [lo, hi] where lo <= hi is not required.
func clampIn(x, lo, hi float64) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}

	if x < lo {
		return lo
	}

	if x > hi {
		return hi
	}

	return x
}
