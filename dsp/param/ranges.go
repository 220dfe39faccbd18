package param

// Range describes an engine-unit destination range for a normalized
// control. Exp selects exponential mapping; Min > Max denotes an inverted
// knob (higher normalized input maps to a lower engine value).
type Range struct {
	Min float64
	Max float64
	Exp bool
}

// Map converts a normalized value in [0, 1] into the range's engine units.
func (r Range) Map(normalized float64) float64 {
	if r.Exp {
		return LinToExp(normalized, 0, 1, r.Min, r.Max)
	}

	return LinToLin(normalized, 0, 1, r.Min, r.Max)
}

// Normalize converts an engine-unit value back to a normalized position.
func (r Range) Normalize(value float64) float64 {
	if r.Exp {
		return ExpToLin(value, 0, 1, r.Min, r.Max)
	}

	if r.Max == r.Min {
		return 0
	}

	return clampIn((value-r.Min)/(r.Max-r.Min), 0, 1)
}

// Contains reports whether value lies within the range, regardless of
// inversion.
func (r Range) Contains(value float64) bool {
	lo, hi := r.Min, r.Max
	if lo > hi {
		lo, hi = hi, lo
	}

	return value >= lo && value <= hi
}

// Engine-unit ranges of the modeled hardware. Decay has two ranges: the
// period-accurate narrow range and the wider range available in extended
// mode. FeedbackHighpass is inverted so that a higher knob position
// lowers the feedback-path corner frequency.
var (
	CutoffHz           = Range{Min: 314, Max: 2394, Exp: true}
	TuningHz           = Range{Min: 400, Max: 480}
	ResonancePct       = Range{Min: 0, Max: 100}
	EnvModPct          = Range{Min: 0, Max: 100}
	AccentPct          = Range{Min: 0, Max: 100}
	VolumeDB           = Range{Min: -60, Max: 0}
	DecayNormalMs      = Range{Min: 200, Max: 2000, Exp: true}
	DecayExtendedMs    = Range{Min: 30, Max: 3000, Exp: true}
	AmpDecayMs         = Range{Min: 30, Max: 3000}
	AccentDecayMs      = Range{Min: 30, Max: 3000}
	FeedbackHighpassHz = Range{Min: 350, Max: 100, Exp: true}
	SoftAttackMs       = Range{Min: 0.3, Max: 3000, Exp: true}
	SlideTimeMs        = Range{Min: 2, Max: 360}
	ShaperDrive        = Range{Min: 25, Max: 80}
)
