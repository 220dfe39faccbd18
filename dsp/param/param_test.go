package param

import (
	"math"
	"testing"
)

func TestLinToLinEndpoints(t *testing.T) {
	if got := LinToLin(0, 0, 1, 200, 2000); got != 200 {
		t.Fatalf("LinToLin(0) = %g, want 200", got)
	}

	if got := LinToLin(1, 0, 1, 200, 2000); got != 2000 {
		t.Fatalf("LinToLin(1) = %g, want 2000", got)
	}

	if got := LinToLin(0.5, 0, 1, 400, 480); got != 440 {
		t.Fatalf("LinToLin(0.5) = %g, want 440", got)
	}
}

func TestLinToLinClampsInput(t *testing.T) {
	if got := LinToLin(-3, 0, 1, -60, 0); got != -60 {
		t.Fatalf("LinToLin(-3) = %g, want -60", got)
	}

	if got := LinToLin(7, 0, 1, -60, 0); got != 0 {
		t.Fatalf("LinToLin(7) = %g, want 0", got)
	}
}

func TestLinToExpEndpoints(t *testing.T) {
	if got := LinToExp(0, 0, 1, 314, 2394); math.Abs(got-314) > 1e-9 {
		t.Fatalf("LinToExp(0) = %g, want 314", got)
	}

	if got := LinToExp(1, 0, 1, 314, 2394); math.Abs(got-2394) > 1e-9 {
		t.Fatalf("LinToExp(1) = %g, want 2394", got)
	}

	// Geometric midpoint at the halfway position.
	want := math.Sqrt(314 * 2394)
	if got := LinToExp(0.5, 0, 1, 314, 2394); math.Abs(got-want) > 1e-9 {
		t.Fatalf("LinToExp(0.5) = %g, want %g", got, want)
	}
}

func TestLinToExpInvertedRange(t *testing.T) {
	lo := LinToExp(1, 0, 1, 350, 100)
	hi := LinToExp(0, 0, 1, 350, 100)

	if math.Abs(hi-350) > 1e-9 || math.Abs(lo-100) > 1e-9 {
		t.Fatalf("inverted range endpoints = (%g, %g), want (350, 100)", hi, lo)
	}

	mid := LinToExp(0.5, 0, 1, 350, 100)
	if mid <= 100 || mid >= 350 {
		t.Fatalf("inverted range midpoint out of bounds: %g", mid)
	}
}

func TestOutputsStayInRange(t *testing.T) {
	ranges := []Range{
		CutoffHz, TuningHz, ResonancePct, EnvModPct, AccentPct, VolumeDB,
		DecayNormalMs, DecayExtendedMs, AmpDecayMs, AccentDecayMs,
		FeedbackHighpassHz, SoftAttackMs, SlideTimeMs, ShaperDrive,
	}

	for _, r := range ranges {
		for i := -10; i <= 110; i++ {
			x := float64(i) / 100
			if got := r.Map(x); !r.Contains(got) {
				t.Fatalf("Map(%g) = %g outside range [%g, %g]", x, got, r.Min, r.Max)
			}
		}
	}
}

func TestRoundTrip(t *testing.T) {
	ranges := []Range{CutoffHz, TuningHz, VolumeDB, DecayNormalMs, FeedbackHighpassHz, SoftAttackMs}

	for _, r := range ranges {
		for i := 0; i <= 100; i++ {
			x := float64(i) / 100

			back := r.Normalize(r.Map(x))
			if math.Abs(back-x) > 1e-9 {
				t.Fatalf("round trip of %g through [%g, %g] = %g", x, r.Min, r.Max, back)
			}
		}
	}
}

func TestLinToExpDegenerate(t *testing.T) {
	if got := LinToExp(0.5, 0, 1, 0, 100); got != 0 {
		t.Fatalf("zero outMin should return outMin, got %g", got)
	}

	if got := LinToExp(0.5, 0, 1, -10, 100); got != -10 {
		t.Fatalf("mixed-sign range should return outMin, got %g", got)
	}

	if got := LinToLin(0.5, 1, 1, 5, 9); got != 5 {
		t.Fatalf("empty input range should return outMin, got %g", got)
	}
}
