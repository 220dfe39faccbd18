// Package osc provides the band-limited blend oscillator of the bass
// voice: a phase-accumulator source whose output crossfades between a
// sawtooth and a square wave, with exponential pitch glide for slides.
//
// Band-limiting uses PolyBLEP edge correction on the saw reset and on
// both square transitions, which keeps alias energy well below the
// harmonic content for fundamentals up to a few kHz.
package osc

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-303/dsp/core"
)

const (
	defaultBlend       = 1.0
	defaultTuningHz    = 440.0
	defaultSlideTimeMs = 60.0

	minTuningHz    = 1.0
	maxTuningHz    = 10000.0
	minSlideTimeMs = 0.1
	maxSlideTimeMs = 10000.0

	// maxFrequencyRatio limits the fundamental to a fraction of Nyquist so
	// the PolyBLEP correction window stays shorter than half a period.
	maxFrequencyRatio = 0.45
)

// Option mutates constructor configuration.
type Option func(*config) error

type config struct {
	blend       float64
	tuningHz    float64
	slideTimeMs float64
}

func defaultConfig() config {
	return config{
		blend:       defaultBlend,
		tuningHz:    defaultTuningHz,
		slideTimeMs: defaultSlideTimeMs,
	}
}

// WithBlend sets the saw/square blend in [0, 1] (0 = saw, 1 = square).
func WithBlend(blend float64) Option {
	return func(cfg *config) error {
		if !core.IsFinite(blend) || blend < 0 || blend > 1 {
			return fmt.Errorf("osc: blend must be in [0, 1]: %f", blend)
		}

		cfg.blend = blend

		return nil
	}
}

// WithTuningHz sets the master tuning (frequency of A4) in Hz.
func WithTuningHz(tuningHz float64) Option {
	return func(cfg *config) error {
		if !core.IsFinite(tuningHz) || tuningHz < minTuningHz || tuningHz > maxTuningHz {
			return fmt.Errorf("osc: tuning must be in [%g, %g] Hz: %f", minTuningHz, maxTuningHz, tuningHz)
		}

		cfg.tuningHz = tuningHz

		return nil
	}
}

// WithSlideTimeMs sets the pitch glide time constant in milliseconds.
func WithSlideTimeMs(slideTimeMs float64) Option {
	return func(cfg *config) error {
		if !core.IsFinite(slideTimeMs) || slideTimeMs < minSlideTimeMs || slideTimeMs > maxSlideTimeMs {
			return fmt.Errorf("osc: slide time must be in [%g, %g] ms: %f", minSlideTimeMs, maxSlideTimeMs, slideTimeMs)
		}

		cfg.slideTimeMs = slideTimeMs

		return nil
	}
}

// Oscillator is a monophonic band-limited saw/square blend source.
type Oscillator struct {
	sampleRate float64

	blend       float64
	tuningHz    float64
	slideTimeMs float64
	bend        float64

	phase      float64
	freqHz     float64
	targetHz   float64
	slideCoeff float64
	sliding    bool

	note int
}

// New constructs an oscillator at the given sample rate.
func New(sampleRate float64, opts ...Option) (*Oscillator, error) {
	if !core.IsFinite(sampleRate) || sampleRate <= 0 {
		return nil, fmt.Errorf("osc: sample rate must be > 0 and finite: %f", sampleRate)
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

	o := &Oscillator{
		sampleRate:  sampleRate,
		blend:       cfg.blend,
		tuningHz:    cfg.tuningHz,
		slideTimeMs: cfg.slideTimeMs,
		note:        -1,
	}
	o.updateSlideCoeff()

	return o, nil
}

// SampleRate returns the sample rate in Hz.
func (o *Oscillator) SampleRate() float64 { return o.sampleRate }

// Blend returns the saw/square blend.
func (o *Oscillator) Blend() float64 { return o.blend }

// TuningHz returns the master tuning in Hz.
func (o *Oscillator) TuningHz() float64 { return o.tuningHz }

// SlideTimeMs returns the glide time constant in milliseconds.
func (o *Oscillator) SlideTimeMs() float64 { return o.slideTimeMs }

// FrequencyHz returns the instantaneous oscillator frequency.
func (o *Oscillator) FrequencyHz() float64 { return o.freqHz }

// TargetFrequencyHz returns the frequency the glide is approaching.
func (o *Oscillator) TargetFrequencyHz() float64 { return o.targetHz }

// Sliding reports whether a pitch glide is still in progress.
func (o *Oscillator) Sliding() bool { return o.sliding }

// SetBlend updates the saw/square blend, clamped to [0, 1].
func (o *Oscillator) SetBlend(blend float64) {
	if !core.IsFinite(blend) {
		return
	}

	o.blend = core.Clamp(blend, 0, 1)
}

// SetTuningHz updates the master tuning, clamped to the valid range, and
// retunes the current note.
func (o *Oscillator) SetTuningHz(tuningHz float64) {
	if !core.IsFinite(tuningHz) {
		return
	}

	o.tuningHz = core.Clamp(tuningHz, minTuningHz, maxTuningHz)
	o.retune()
}

// SetSlideTimeMs updates the glide time constant, clamped to the valid range.
func (o *Oscillator) SetSlideTimeMs(slideTimeMs float64) {
	if !core.IsFinite(slideTimeMs) {
		return
	}

	o.slideTimeMs = core.Clamp(slideTimeMs, minSlideTimeMs, maxSlideTimeMs)
	o.updateSlideCoeff()
}

// SetPitchBend sets the pitch offset in semitones and retunes the current
// note. The bend reaches the pitch through the same glide smoother as a
// slide, which avoids stepping artifacts on coarse host automation.
func (o *Oscillator) SetPitchBend(semitones float64) {
	if !core.IsFinite(semitones) {
		return
	}

	o.bend = semitones
	o.retune()
}

// PitchBend returns the pitch offset in semitones.
func (o *Oscillator) PitchBend() float64 { return o.bend }

// TriggerNote starts the given MIDI note as a fresh trigger: the pitch
// snaps immediately and the phase restarts.
func (o *Oscillator) TriggerNote(note int) {
	o.note = note
	o.targetHz = o.noteFrequency(note)
	o.freqHz = o.targetHz
	o.phase = 0
	o.sliding = false
}

// SlideToNote glides from the current pitch to the given MIDI note without
// resetting phase, reproducing the legato slide of the modeled hardware.
func (o *Oscillator) SlideToNote(note int) {
	o.note = note
	o.targetHz = o.noteFrequency(note)
	o.sliding = o.freqHz != o.targetHz
}

// Reset restores initial state; tuning, blend, and slide time are kept.
func (o *Oscillator) Reset() {
	o.phase = 0
	o.freqHz = 0
	o.targetHz = 0
	o.sliding = false
	o.bend = 0
	o.note = -1
}

// ProcessSample produces one output sample in [-1, 1].
func (o *Oscillator) ProcessSample() float64 {
	if o.targetHz <= 0 && o.freqHz <= 0 {
		return 0
	}

	if o.freqHz != o.targetHz {
		o.freqHz += (o.targetHz - o.freqHz) * o.slideCoeff
		if math.Abs(o.targetHz-o.freqHz) < 1e-3 {
			o.freqHz = o.targetHz
			o.sliding = false
		}
	}

	dt := o.freqHz / o.sampleRate

	saw := 2*o.phase - 1
	saw -= polyBLEP(o.phase, dt)

	square := 1.0
	if o.phase >= 0.5 {
		square = -1.0
	}
	square += polyBLEP(o.phase, dt)
	square -= polyBLEP(wrapPhase(o.phase+0.5), dt)

	out := (1-o.blend)*saw + o.blend*square

	o.phase += dt
	if o.phase >= 1 {
		o.phase -= 1
	}

	return out
}

// ProcessTo renders len(dst) samples into dst.
func (o *Oscillator) ProcessTo(dst []float64) {
	for i := range dst {
		dst[i] = o.ProcessSample()
	}
}

func (o *Oscillator) noteFrequency(note int) float64 {
	hz := core.MIDINoteToHz(note, o.tuningHz) * core.PitchBendRatio(o.bend)

	maxHz := o.sampleRate * 0.5 * maxFrequencyRatio
	if hz > maxHz {
		hz = maxHz
	}

	return hz
}

func (o *Oscillator) retune() {
	if o.note < 0 {
		return
	}

	o.targetHz = o.noteFrequency(o.note)
	o.sliding = o.freqHz != o.targetHz
}

func (o *Oscillator) updateSlideCoeff() {
	tau := o.slideTimeMs * 1e-3 * o.sampleRate
	if tau < 1 {
		tau = 1
	}

	o.slideCoeff = 1 - math.Exp(-1/tau)
}

// polyBLEP returns the two-sample polynomial band-limited step correction
// for a discontinuity at phase 0, given phase increment dt.
func polyBLEP(phase, dt float64) float64 {
	if dt <= 0 {
		return 0
	}

	if phase < dt {
		t := phase / dt
		return 2*t - t*t - 1
	}

	if phase > 1-dt {
		t := (phase - 1) / dt
		return t*t + 2*t + 1
	}

	return 0
}

func wrapPhase(phase float64) float64 {
	if phase >= 1 {
		return phase - 1
	}

	return phase
}
