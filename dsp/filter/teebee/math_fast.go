//go:build fastmath

package teebee

import (
	"github.com/meko-christian/algo-approx"
)

// mathTanh computes tanh(x) using a clamped rational approximation.
// Accurate to roughly 3 decimal places over the saturating range, which is
// sufficient for the stage nonlinearities and keeps per-sample cost low.
func mathTanh(x float64) float64 {
	if x > 3 {
		return 1
	}

	if x < -3 {
		return -1
	}

	x2 := x * x
	y := x * (27 + x2) / (27 + 9*x2)

	if y > 1 {
		return 1
	}

	if y < -1 {
		return -1
	}

	return y
}

// mathExp computes e^x using fast approximation.
func mathExp(x float64) float64 {
	return approx.FastExp(x)
}
