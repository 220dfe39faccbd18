package teebee

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-303/dsp/core"
)

const (
	defaultCutoffHz           = 500.0
	defaultResonancePct       = 92.0
	defaultEnvModPct          = 0.0
	defaultFeedbackHighpassHz = 150.0
	defaultDrive              = 36.9

	minCutoffHz           = 10.0
	minFeedbackHighpassHz = 10.0
	maxFeedbackHighpassHz = 2000.0
	minDrive              = 1.0
	maxDrive              = 100.0

	// referenceDrive is the hardware shaper drive that yields unity
	// saturation scaling.
	referenceDrive = 36.9

	// envModOctaves is the cutoff sweep range at 100% envelope modulation
	// and full envelope level.
	envModOctaves = 4.0

	// maxFeedbackGain bounds the resonance feedback. A linear 4-pole ladder
	// self-oscillates at a loop gain of 4; together with the feedback
	// saturator this clamp keeps the recursion bounded for any resonance
	// setting, so extreme settings ring instead of diverging.
	maxFeedbackGain = 4.0

	// stateLimit hard-clips the per-stage integrator states.
	stateLimit = 32.0

	// cutoffNyquistRatio bounds the modulated cutoff below Nyquist.
	cutoffNyquistRatio = 0.45
)

// Option mutates constructor configuration.
type Option func(*config) error

type config struct {
	cutoffHz           float64
	resonancePct       float64
	envModPct          float64
	feedbackHighpassHz float64
	drive              float64
}

func defaultConfig() config {
	return config{
		cutoffHz:           defaultCutoffHz,
		resonancePct:       defaultResonancePct,
		envModPct:          defaultEnvModPct,
		feedbackHighpassHz: defaultFeedbackHighpassHz,
		drive:              defaultDrive,
	}
}

// WithCutoffHz sets the base cutoff in Hz.
func WithCutoffHz(cutoffHz float64) Option {
	return func(cfg *config) error {
		if err := validateFiniteRange(cutoffHz, minCutoffHz, math.Inf(1), "cutoff"); err != nil {
			return err
		}

		cfg.cutoffHz = cutoffHz

		return nil
	}
}

// WithResonancePct sets resonance in percent [0, 100].
func WithResonancePct(resonancePct float64) Option {
	return func(cfg *config) error {
		if err := validateFiniteRange(resonancePct, 0, 100, "resonance"); err != nil {
			return err
		}

		cfg.resonancePct = resonancePct

		return nil
	}
}

// WithEnvModPct sets envelope modulation depth in percent [0, 100].
func WithEnvModPct(envModPct float64) Option {
	return func(cfg *config) error {
		if err := validateFiniteRange(envModPct, 0, 100, "env mod"); err != nil {
			return err
		}

		cfg.envModPct = envModPct

		return nil
	}
}

// WithFeedbackHighpassHz sets the feedback-path highpass corner in Hz.
func WithFeedbackHighpassHz(hz float64) Option {
	return func(cfg *config) error {
		if err := validateFiniteRange(hz, minFeedbackHighpassHz, maxFeedbackHighpassHz, "feedback highpass"); err != nil {
			return err
		}

		cfg.feedbackHighpassHz = hz

		return nil
	}
}

// WithDrive sets the feedback saturator drive in [1, 100].
func WithDrive(drive float64) Option {
	return func(cfg *config) error {
		if err := validateFiniteRange(drive, minDrive, maxDrive, "drive"); err != nil {
			return err
		}

		cfg.drive = drive

		return nil
	}
}

// State contains explicit runtime state for save/restore workflows.
type State struct {
	Stage      [4]float64
	PrevOutput float64
	HPState    float64
	HPInput    float64
	EnvLevel   float64
}

// Filter is the nonlinear resonant 4-pole lowpass of the bass voice.
type Filter struct {
	sampleRate float64

	cutoffHz           float64
	resonancePct       float64
	envModPct          float64
	feedbackHighpassHz float64
	drive              float64

	coefficient float64
	feedback    float64
	driveScale  float64
	hpCoeff     float64
	outputScale float64
	lastEffHz   float64

	state State
}

// New constructs the filter at the given sample rate.
func New(sampleRate float64, opts ...Option) (*Filter, error) {
	if !core.IsFinite(sampleRate) || sampleRate <= 0 {
		return nil, fmt.Errorf("teebee: sample rate must be > 0 and finite: %f", sampleRate)
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

	f := &Filter{
		sampleRate:         sampleRate,
		cutoffHz:           cfg.cutoffHz,
		resonancePct:       cfg.resonancePct,
		envModPct:          cfg.envModPct,
		feedbackHighpassHz: cfg.feedbackHighpassHz,
		drive:              cfg.drive,
	}

	if err := f.rebuild(); err != nil {
		return nil, err
	}

	return f, nil
}

// SampleRate returns the sample rate in Hz.
func (f *Filter) SampleRate() float64 { return f.sampleRate }

// CutoffHz returns the base cutoff frequency in Hz.
func (f *Filter) CutoffHz() float64 { return f.cutoffHz }

// ResonancePct returns resonance in percent.
func (f *Filter) ResonancePct() float64 { return f.resonancePct }

// EnvModPct returns envelope modulation depth in percent.
func (f *Filter) EnvModPct() float64 { return f.envModPct }

// FeedbackHighpassHz returns the feedback-path highpass corner in Hz.
func (f *Filter) FeedbackHighpassHz() float64 { return f.feedbackHighpassHz }

// Drive returns the feedback saturator drive.
func (f *Filter) Drive() float64 { return f.drive }

// SetSampleRate updates the sample rate and rebuilds coefficients.
func (f *Filter) SetSampleRate(sampleRate float64) error {
	if !core.IsFinite(sampleRate) || sampleRate <= 0 {
		return fmt.Errorf("teebee: sample rate must be > 0 and finite: %f", sampleRate)
	}

	f.sampleRate = sampleRate

	return f.rebuild()
}

// SetCutoffHz updates the base cutoff, clamped to a valid range.
func (f *Filter) SetCutoffHz(cutoffHz float64) {
	if !core.IsFinite(cutoffHz) {
		return
	}

	f.cutoffHz = core.Clamp(cutoffHz, minCutoffHz, f.sampleRate*0.5*cutoffNyquistRatio)
	f.markDirty()
}

// SetResonancePct updates resonance, clamped to [0, 100].
func (f *Filter) SetResonancePct(resonancePct float64) {
	if !core.IsFinite(resonancePct) {
		return
	}

	f.resonancePct = core.Clamp(resonancePct, 0, 100)
	f.updateFeedback()
}

// SetEnvModPct updates envelope modulation depth, clamped to [0, 100].
func (f *Filter) SetEnvModPct(envModPct float64) {
	if !core.IsFinite(envModPct) {
		return
	}

	f.envModPct = core.Clamp(envModPct, 0, 100)
	f.markDirty()
}

// SetFeedbackHighpassHz updates the feedback highpass corner, clamped to
// its valid range.
func (f *Filter) SetFeedbackHighpassHz(hz float64) {
	if !core.IsFinite(hz) {
		return
	}

	f.feedbackHighpassHz = core.Clamp(hz, minFeedbackHighpassHz, maxFeedbackHighpassHz)
	f.updateHighpass()
}

// SetDrive updates the feedback saturator drive, clamped to [1, 100].
func (f *Filter) SetDrive(drive float64) {
	if !core.IsFinite(drive) {
		return
	}

	f.drive = core.Clamp(drive, minDrive, maxDrive)
	f.driveScale = f.drive / referenceDrive
}

// SetEnvelopeLevel feeds the filter-envelope output for the next sample.
// Level 0 leaves the base cutoff unmodulated; level 1 at 100% depth sweeps
// the cutoff up by envModOctaves octaves.
func (f *Filter) SetEnvelopeLevel(level float64) {
	if !core.IsFinite(level) {
		return
	}

	f.state.EnvLevel = core.Clamp(level, 0, 1)
}

// Reset clears the runtime state.
func (f *Filter) Reset() {
	f.state = State{}
	f.lastEffHz = 0
	f.updateCoefficient()
}

// State returns a copy of the current processor state.
func (f *Filter) State() State {
	return f.state
}

// SetState restores an externally saved processor state.
func (f *Filter) SetState(state State) error {
	if !stateIsFinite(state) {
		return fmt.Errorf("teebee: state contains NaN or Inf")
	}

	f.state = state
	f.markDirty()

	return nil
}

// ProcessSample processes one input sample.
func (f *Filter) ProcessSample(input float64) float64 {
	if !core.IsFinite(input) {
		input = 0
	}

	f.updateCoefficient()

	s := &f.state

	// Half-sample feedback estimate keeps the loop stable near
	// self-oscillation.
	feedbackSample := 0.5 * (s.Stage[3] + s.PrevOutput)

	// Highpass the regeneration so bass stays out of the feedback loop,
	// then saturate so the loop gain collapses instead of running away.
	hp := f.hpCoeff * (s.HPState + feedbackSample - s.HPInput)
	s.HPState = core.FlushDenormals(hp)
	s.HPInput = feedbackSample

	shaped := mathTanh(f.driveScale * hp)
	u := input - f.feedback*shaped

	g := f.coefficient
	s.Stage[0] = clipState(s.Stage[0] + g*(mathTanh(u)-mathTanh(s.Stage[0])))
	s.Stage[1] = clipState(s.Stage[1] + g*(mathTanh(s.Stage[0])-mathTanh(s.Stage[1])))
	s.Stage[2] = clipState(s.Stage[2] + g*(mathTanh(s.Stage[1])-mathTanh(s.Stage[2])))
	s.Stage[3] = clipState(s.Stage[3] + g*(mathTanh(s.Stage[2])-mathTanh(s.Stage[3])))

	s.Stage[0] = core.FlushDenormals(s.Stage[0])
	s.Stage[1] = core.FlushDenormals(s.Stage[1])
	s.Stage[2] = core.FlushDenormals(s.Stage[2])
	s.Stage[3] = core.FlushDenormals(s.Stage[3])

	s.PrevOutput = s.Stage[3]

	return sanitizeOutput(f.outputScale * s.Stage[3])
}

// ProcessInPlace processes a mono buffer in place.
func (f *Filter) ProcessInPlace(buf []float64) {
	for i := range buf {
		buf[i] = f.ProcessSample(buf[i])
	}
}

// ProcessTo processes src into dst. Both slices must have the same length.
func (f *Filter) ProcessTo(dst, src []float64) {
	n := len(src)
	if n == 0 {
		return
	}

	_ = dst[n-1]
	for i, x := range src {
		dst[i] = f.ProcessSample(x)
	}
}

func (f *Filter) rebuild() error {
	if err := validateFiniteRange(f.cutoffHz, minCutoffHz, math.Inf(1), "cutoff"); err != nil {
		return err
	}

	if err := validateFiniteRange(f.resonancePct, 0, 100, "resonance"); err != nil {
		return err
	}

	if err := validateFiniteRange(f.envModPct, 0, 100, "env mod"); err != nil {
		return err
	}

	if err := validateFiniteRange(f.feedbackHighpassHz, minFeedbackHighpassHz, maxFeedbackHighpassHz, "feedback highpass"); err != nil {
		return err
	}

	if err := validateFiniteRange(f.drive, minDrive, maxDrive, "drive"); err != nil {
		return err
	}

	maxCutoff := f.sampleRate * 0.5 * cutoffNyquistRatio
	if f.cutoffHz > maxCutoff {
		f.cutoffHz = maxCutoff
	}

	f.driveScale = f.drive / referenceDrive
	f.updateFeedback()
	f.updateHighpass()
	f.markDirty()
	f.updateCoefficient()

	return nil
}

// markDirty forces a coefficient recompute on the next sample.
func (f *Filter) markDirty() {
	f.lastEffHz = 0
}

// updateCoefficient recomputes the stage coefficient from the base cutoff
// and the current envelope level. The Huovilainen cutoff polynomial
// compensates the one-pole frequency warp.
func (f *Filter) updateCoefficient() {
	effHz := f.cutoffHz
	if f.envModPct > 0 && f.state.EnvLevel > 0 {
		octaves := envModOctaves * f.envModPct * 0.01 * f.state.EnvLevel
		effHz *= mathExp(octaves * math.Ln2)
	}

	maxHz := f.sampleRate * 0.5 * cutoffNyquistRatio
	if effHz > maxHz {
		effHz = maxHz
	}

	if effHz == f.lastEffHz {
		return
	}

	f.lastEffHz = effHz

	fc := effHz / f.sampleRate
	fcr := 1.8730*fc*fc*fc + 0.4955*fc*fc - 0.6490*fc + 0.9988
	if fcr < 0 {
		fcr = 0
	}

	f.coefficient = 1 - mathExp(-2*math.Pi*fcr*fc)

	resonanceComp := -3.9364*fc*fc + 1.8409*fc + 0.9968
	if resonanceComp < 0 {
		resonanceComp = 0
	}

	f.feedback = f.resonancePct * 0.01 * maxFeedbackGain * resonanceComp
	if f.feedback > maxFeedbackGain {
		f.feedback = maxFeedbackGain
	}
}

func (f *Filter) updateFeedback() {
	// Recomputed together with the coefficient; the resonance compensation
	// polynomial depends on the effective cutoff.
	f.markDirty()
	f.updateOutputScale()
}

func (f *Filter) updateOutputScale() {
	f.outputScale = 1 / (1 + 0.5*f.resonancePct*0.01*maxFeedbackGain)
}

func (f *Filter) updateHighpass() {
	f.hpCoeff = math.Exp(-2 * math.Pi * f.feedbackHighpassHz / f.sampleRate)
}

func validateFiniteRange(value, min, max float64, name string) error {
	if !core.IsFinite(value) {
		return fmt.Errorf("teebee: %s must be finite: %v", name, value)
	}

	if value < min || value > max {
		return fmt.Errorf("teebee: %s must be in [%g, %g]: %f", name, min, max, value)
	}

	return nil
}

func sanitizeOutput(value float64) float64 {
	if !core.IsFinite(value) {
		return 0
	}

	return value
}

func clipState(value float64) float64 {
	if value > stateLimit {
		return stateLimit
	}

	if value < -stateLimit {
		return -stateLimit
	}

	return value
}

func stateIsFinite(state State) bool {
	for _, v := range state.Stage {
		if !core.IsFinite(v) {
			return false
		}
	}

	return core.IsFinite(state.PrevOutput) &&
		core.IsFinite(state.HPState) &&
		core.IsFinite(state.HPInput) &&
		core.IsFinite(state.EnvLevel)
}
