package synth

// Param identifies a normalized control of the engine.
type Param int

const (
	// ParamWaveform blends the oscillator from saw (0) to square (1).
	ParamWaveform Param = iota
	// ParamTuning maps to the master tuning in 400-480 Hz.
	ParamTuning
	// ParamCutoff maps exponentially to the filter cutoff in 314-2394 Hz.
	ParamCutoff
	// ParamResonance maps to filter resonance in 0-100 percent.
	ParamResonance
	// ParamEnvMod maps to filter envelope modulation depth in 0-100 percent.
	ParamEnvMod
	// ParamDecay maps exponentially to the filter-envelope decay time; the
	// range depends on extended mode (200-2000 ms normal, 30-3000 ms
	// extended).
	ParamDecay
	// ParamAccent maps to accent emphasis in 0-100 percent.
	ParamAccent
	// ParamVolume maps to output volume in -60..0 dB.
	ParamVolume
	// ParamNormalDecay (extended mode) maps to the amplitude-envelope decay
	// time in 30-3000 ms.
	ParamNormalDecay
	// ParamAccentDecay (extended mode) maps to the accent decay time of
	// both envelopes in 30-3000 ms.
	ParamAccentDecay
	// ParamFeedbackFilter (extended mode) maps to the feedback highpass
	// corner, inverted, 350 down to 100 Hz.
	ParamFeedbackFilter
	// ParamSoftAttack (extended mode) maps exponentially to the amplitude
	// attack time in 0.3-3000 ms.
	ParamSoftAttack
	// ParamSlideTime (extended mode) maps to the slide time in 2-360 ms.
	ParamSlideTime
	// ParamSquareDriver (extended mode) maps to the feedback shaper drive
	// in 25-80.
	ParamSquareDriver
)

func (p Param) String() string {
	switch p {
	case ParamWaveform:
		return "waveform"
	case ParamTuning:
		return "tuning"
	case ParamCutoff:
		return "cutoff"
	case ParamResonance:
		return "resonance"
	case ParamEnvMod:
		return "env_mod"
	case ParamDecay:
		return "decay"
	case ParamAccent:
		return "accent"
	case ParamVolume:
		return "volume"
	case ParamNormalDecay:
		return "normal_decay"
	case ParamAccentDecay:
		return "accent_decay"
	case ParamFeedbackFilter:
		return "feedback_filter"
	case ParamSoftAttack:
		return "soft_attack"
	case ParamSlideTime:
		return "slide_time"
	case ParamSquareDriver:
		return "square_driver"
	default:
		return "unknown"
	}
}

// extendedOnly reports whether the parameter only responds while extended
// mode is enabled.
func (p Param) extendedOnly() bool {
	switch p {
	case ParamNormalDecay, ParamAccentDecay, ParamFeedbackFilter,
		ParamSoftAttack, ParamSlideTime, ParamSquareDriver:
		return true
	default:
		return false
	}
}
