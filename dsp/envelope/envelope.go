// Package envelope implements the decay-centric envelope generator used
// twice in the bass voice: once for filter-cutoff modulation and once for
// output amplitude.
//
// The generator has no sustain or release stage. A gate-on event triggers
// Attack, which rises exponentially to full level and falls into Decay;
// Decay runs toward zero regardless of the gate, so held notes decay
// exactly like released ones. Legato slides do not retrigger: the caller
// simply never calls Trigger, and the envelope keeps running; SetAccented
// lets a slide swap the active decay time mid-cycle. An accented trigger
// substitutes the accent decay time for the normal one.
package envelope

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-303/dsp/core"
)

const (
	defaultDecayMs       = 400.0
	defaultAccentDecayMs = 200.0
	defaultAttackMs      = 3.0

	minTimeMs = 0.05
	maxTimeMs = 30000.0

	// attackDone is the level at which Attack hands over to Decay.
	attackDone = 0.999

	// idleFloor snaps near-zero decay tails to exact zero so the state
	// machine returns to Idle instead of chasing denormals.
	idleFloor = 1e-9
)

// Stage identifies the envelope state machine position.
type Stage int

const (
	StageIdle Stage = iota
	StageAttack
	StageDecay
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageAttack:
		return "attack"
	case StageDecay:
		return "decay"
	default:
		return "unknown"
	}
}

// Option mutates constructor configuration.
type Option func(*config) error

type config struct {
	decayMs       float64
	accentDecayMs float64
	attackMs      float64
}

func defaultConfig() config {
	return config{
		decayMs:       defaultDecayMs,
		accentDecayMs: defaultAccentDecayMs,
		attackMs:      defaultAttackMs,
	}
}

// WithDecayMs sets the normal decay time constant in milliseconds.
func WithDecayMs(decayMs float64) Option {
	return func(cfg *config) error {
		if err := validateTimeMs(decayMs, "decay"); err != nil {
			return err
		}

		cfg.decayMs = decayMs

		return nil
	}
}

// WithAccentDecayMs sets the decay time used for accented notes.
func WithAccentDecayMs(accentDecayMs float64) Option {
	return func(cfg *config) error {
		if err := validateTimeMs(accentDecayMs, "accent decay"); err != nil {
			return err
		}

		cfg.accentDecayMs = accentDecayMs

		return nil
	}
}

// WithAttackMs sets the attack time constant in milliseconds. The filter
// envelope of the modeled hardware uses an effectively instantaneous
// attack; pass a value near the minimum for that behavior.
func WithAttackMs(attackMs float64) Option {
	return func(cfg *config) error {
		if err := validateTimeMs(attackMs, "attack"); err != nil {
			return err
		}

		cfg.attackMs = attackMs

		return nil
	}
}

// Generator is a single attack/decay envelope.
type Generator struct {
	sampleRate float64

	decayMs       float64
	accentDecayMs float64
	attackMs      float64

	attackCoeff       float64
	decayCoeff        float64
	accentDecayCoeff  float64
	currentDecayCoeff float64

	stage    Stage
	level    float64
	accented bool
}

// New constructs an envelope generator at the given sample rate.
func New(sampleRate float64, opts ...Option) (*Generator, error) {
	if !core.IsFinite(sampleRate) || sampleRate <= 0 {
		return nil, fmt.Errorf("envelope: sample rate must be > 0 and finite: %f", sampleRate)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	g := &Generator{
		sampleRate:    sampleRate,
		decayMs:       cfg.decayMs,
		accentDecayMs: cfg.accentDecayMs,
		attackMs:      cfg.attackMs,
	}
	g.rebuild()

	return g, nil
}

// SampleRate returns the sample rate in Hz.
func (g *Generator) SampleRate() float64 { return g.sampleRate }

// DecayMs returns the normal decay time constant.
func (g *Generator) DecayMs() float64 { return g.decayMs }

// AccentDecayMs returns the accent decay time constant.
func (g *Generator) AccentDecayMs() float64 { return g.accentDecayMs }

// AttackMs returns the attack time constant.
func (g *Generator) AttackMs() float64 { return g.attackMs }

// Stage returns the current state machine stage.
func (g *Generator) Stage() Stage { return g.stage }

// Level returns the current output level in [0, 1].
func (g *Generator) Level() float64 { return g.level }

// Accented reports whether the running cycle was triggered with accent.
func (g *Generator) Accented() bool { return g.accented }

// SetSampleRate updates the sample rate and recomputes coefficients.
func (g *Generator) SetSampleRate(sampleRate float64) error {
	if !core.IsFinite(sampleRate) || sampleRate <= 0 {
		return fmt.Errorf("envelope: sample rate must be > 0 and finite: %f", sampleRate)
	}

	g.sampleRate = sampleRate
	g.rebuild()

	return nil
}

// SetDecayMs updates the normal decay time, clamped to the valid range.
func (g *Generator) SetDecayMs(decayMs float64) {
	if !core.IsFinite(decayMs) {
		return
	}

	g.decayMs = core.Clamp(decayMs, minTimeMs, maxTimeMs)
	g.rebuild()
}

// SetAccentDecayMs updates the accent decay time, clamped to the valid range.
func (g *Generator) SetAccentDecayMs(accentDecayMs float64) {
	if !core.IsFinite(accentDecayMs) {
		return
	}

	g.accentDecayMs = core.Clamp(accentDecayMs, minTimeMs, maxTimeMs)
	g.rebuild()
}

// SetAttackMs updates the attack time, clamped to the valid range.
func (g *Generator) SetAttackMs(attackMs float64) {
	if !core.IsFinite(attackMs) {
		return
	}

	g.attackMs = core.Clamp(attackMs, minTimeMs, maxTimeMs)
	g.rebuild()
}

// Trigger starts a new attack cycle from the current level. Retriggering a
// running envelope does not reset the level, so there is no discontinuity.
func (g *Generator) Trigger(accented bool) {
	g.stage = StageAttack
	g.accented = accented

	g.currentDecayCoeff = g.decayCoeff
	if accented {
		g.currentDecayCoeff = g.accentDecayCoeff
	}
}

// SetAccented switches the running cycle between the normal and accent
// decay times without retriggering. Legato slides use this to adopt the
// new note's accent while the level keeps falling continuously.
func (g *Generator) SetAccented(accented bool) {
	g.accented = accented

	g.currentDecayCoeff = g.decayCoeff
	if accented {
		g.currentDecayCoeff = g.accentDecayCoeff
	}
}

// Reset returns the envelope to Idle at level zero.
func (g *Generator) Reset() {
	g.stage = StageIdle
	g.level = 0
	g.accented = false
}

// ProcessSample advances the envelope by one sample and returns the level.
func (g *Generator) ProcessSample() float64 {
	switch g.stage {
	case StageAttack:
		g.level += (1 - g.level) * g.attackCoeff
		if g.level >= attackDone {
			g.level = 1
			g.stage = StageDecay
		}
	case StageDecay:
		g.level *= g.currentDecayCoeff
		if g.level < idleFloor {
			g.level = 0
			g.stage = StageIdle
		}
	}

	return g.level
}

func (g *Generator) rebuild() {
	g.attackCoeff = onePoleCoeff(g.attackMs, g.sampleRate)
	g.decayCoeff = decayCoeff(g.decayMs, g.sampleRate)
	g.accentDecayCoeff = decayCoeff(g.accentDecayMs, g.sampleRate)

	g.currentDecayCoeff = g.decayCoeff
	if g.accented {
		g.currentDecayCoeff = g.accentDecayCoeff
	}
}

// onePoleCoeff returns the per-sample approach rate for a one-pole ramp
// with time constant ms.
func onePoleCoeff(ms, sampleRate float64) float64 {
	tau := ms * 1e-3 * sampleRate
	if tau < 1 {
		return 1
	}

	return 1 - math.Exp(-1/tau)
}

// decayCoeff returns the per-sample multiplier for an exponential decay
// with time constant ms.
func decayCoeff(ms, sampleRate float64) float64 {
	tau := ms * 1e-3 * sampleRate
	if tau < 1 {
		tau = 1
	}

	return math.Exp(-1 / tau)
}

func validateTimeMs(value float64, name string) error {
	if !core.IsFinite(value) || value < minTimeMs || value > maxTimeMs {
		return fmt.Errorf("envelope: %s must be in [%g, %g] ms: %f", name, minTimeMs, maxTimeMs, value)
	}

	return nil
}
