package synth

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-303/dsp/core"
	"github.com/cwbudde/algo-303/dsp/envelope"
	"github.com/cwbudde/algo-303/dsp/filter/teebee"
	"github.com/cwbudde/algo-303/dsp/osc"
	"github.com/cwbudde/algo-303/dsp/param"
)

// Errors returned by Init and Process.
var (
	ErrInvalidSampleRate = errors.New("synth: sample rate must be > 0 and finite")
	ErrInvalidBlockSize  = errors.New("synth: max block size must be > 0")
	ErrBlockTooLarge     = errors.New("synth: requested block exceeds max block size")
	ErrNotInitialized    = errors.New("synth: engine not initialized")
)

// Normalized defaults of the modeled hardware's host interface.
const (
	defaultWaveform  = 1.0
	defaultTuning    = 0.5
	defaultCutoff    = 0.0
	defaultResonance = 0.92
	defaultEnvMod    = 0.0
	defaultDecay     = 0.29
	defaultAccent    = 0.78
	defaultVolume    = 0.75
)

// Fixed engine-unit values restored whenever extended mode is disabled.
// These are the measured constants of the unmodified hardware.
const (
	hwAmpDecayMs         = 1230.0
	hwAccentDecayMs      = 200.0
	hwFeedbackHighpassHz = 150.0
	hwSoftAttackMs       = 3.0
	hwSlideTimeMs        = 60.0
	hwShaperDrive        = 36.9
)

// filterEnvAttackMs keeps the filter envelope's attack effectively
// instantaneous, as in the modeled hardware.
const filterEnvAttackMs = 0.05

// outputCeiling hard-bounds the rendered samples. The filter already
// sanitizes its output; this is the last line against clipping artifacts
// reaching the host.
const outputCeiling = 1.0

// Engine is the complete monophonic bass voice.
//
// Note events, parameter setters, and the extended-mode toggle may be
// called from one control goroutine while Process runs on an audio
// goroutine. All other methods, including the state accessors, reflect
// render-side state and are intended for single-threaded or diagnostic
// use.
type Engine struct {
	sampleRate   float64
	maxBlockSize int

	oscillator *osc.Oscillator
	filter     *teebee.Filter
	filterEnv  *envelope.Generator
	ampEnv     *envelope.Generator
	voice      *Voice
	queue      *eventQueue

	extendedMode bool
	accentPct    float64
	volumeGain   float64

	scratch []float64
	out     []float32

	initialized bool
}

// New constructs and initializes an engine.
func New(opts ...core.VoiceOption) (*Engine, error) {
	cfg := core.ApplyVoiceOptions(opts...)

	e := &Engine{
		voice: NewVoice(),
		queue: newEventQueue(),
	}

	if err := e.Init(cfg.SampleRate, cfg.MaxBlockSize); err != nil {
		return nil, err
	}

	return e, nil
}

// Init (re)initializes the engine for the given sample rate and maximum
// render block size. All component state, parameters, and queued events
// are reset to the hardware defaults.
func (e *Engine) Init(sampleRate float64, maxBlockSize int) error {
	if !core.IsFinite(sampleRate) || sampleRate <= 0 {
		return fmt.Errorf("%w: %f", ErrInvalidSampleRate, sampleRate)
	}

	if maxBlockSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBlockSize, maxBlockSize)
	}

	oscillator, err := osc.New(sampleRate)
	if err != nil {
		return err
	}

	filter, err := teebee.New(sampleRate)
	if err != nil {
		return err
	}

	filterEnv, err := envelope.New(sampleRate,
		envelope.WithAttackMs(filterEnvAttackMs),
		envelope.WithAccentDecayMs(hwAccentDecayMs),
	)
	if err != nil {
		return err
	}

	ampEnv, err := envelope.New(sampleRate,
		envelope.WithAttackMs(hwSoftAttackMs),
		envelope.WithDecayMs(hwAmpDecayMs),
		envelope.WithAccentDecayMs(hwAccentDecayMs),
	)
	if err != nil {
		return err
	}

	e.sampleRate = sampleRate
	e.maxBlockSize = maxBlockSize
	e.oscillator = oscillator
	e.filter = filter
	e.filterEnv = filterEnv
	e.ampEnv = ampEnv

	// Reinitialization reuses buffer capacity where it can; any stale
	// render content is cleared.
	e.scratch = core.EnsureLen(e.scratch, maxBlockSize)
	core.Zero(e.scratch)

	if cap(e.out) >= maxBlockSize {
		e.out = e.out[:maxBlockSize]
		for i := range e.out {
			e.out[i] = 0
		}
	} else {
		e.out = make([]float32, maxBlockSize)
	}

	e.queue.reset()
	e.voice.AllNotesOff()
	e.extendedMode = false
	e.applyDefaults()
	e.initialized = true

	return nil
}

// Shutdown releases the render buffers. Safe to call multiple times; the
// engine can be revived with Init.
func (e *Engine) Shutdown() {
	e.initialized = false
	e.scratch = nil
	e.out = nil
	e.queue.reset()
}

// SampleRate returns the configured sample rate in Hz.
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// MaxBlockSize returns the largest block Process accepts.
func (e *Engine) MaxBlockSize() int { return e.maxBlockSize }

// ExtendedModeEnabled reports whether extended mode is active, as seen by
// the render side.
func (e *Engine) ExtendedModeEnabled() bool { return e.extendedMode }

// DroppedEvents returns the number of control events dropped because the
// hand-off queue was full.
func (e *Engine) DroppedEvents() uint64 { return e.queue.droppedCount() }

// CurrentNote returns the sounding MIDI note, or -1.
func (e *Engine) CurrentNote() int { return e.voice.CurrentNote() }

// GateOpen reports whether a note is currently held.
func (e *Engine) GateOpen() bool { return e.voice.GateOpen() }

// Sliding reports whether a pitch slide is active.
func (e *Engine) Sliding() bool { return e.voice.Sliding() }

// NoteAccented reports whether the sounding note is accented.
func (e *Engine) NoteAccented() bool { return e.voice.Accented() }

// AmpEnvelopeLevel returns the amplitude envelope's current level.
func (e *Engine) AmpEnvelopeLevel() float64 { return e.ampEnv.Level() }

// AmpEnvelopeStage returns the amplitude envelope's current stage.
func (e *Engine) AmpEnvelopeStage() envelope.Stage { return e.ampEnv.Stage() }

// FilterEnvelopeLevel returns the filter envelope's current level.
func (e *Engine) FilterEnvelopeLevel() float64 { return e.filterEnv.Level() }

// OscillatorFrequencyHz returns the instantaneous oscillator frequency.
func (e *Engine) OscillatorFrequencyHz() float64 { return e.oscillator.FrequencyHz() }

// SlideTimeMs returns the effective slide time in milliseconds.
func (e *Engine) SlideTimeMs() float64 { return e.oscillator.SlideTimeMs() }

// AmpDecayMs returns the effective amplitude-envelope decay in ms.
func (e *Engine) AmpDecayMs() float64 { return e.ampEnv.DecayMs() }

// AccentDecayMs returns the effective accent decay in ms.
func (e *Engine) AccentDecayMs() float64 { return e.ampEnv.AccentDecayMs() }

// SoftAttackMs returns the effective amplitude attack in ms.
func (e *Engine) SoftAttackMs() float64 { return e.ampEnv.AttackMs() }

// FeedbackHighpassHz returns the effective feedback highpass corner in Hz.
func (e *Engine) FeedbackHighpassHz() float64 { return e.filter.FeedbackHighpassHz() }

// ShaperDrive returns the effective feedback shaper drive.
func (e *Engine) ShaperDrive() float64 { return e.filter.Drive() }

// FilterDecayMs returns the effective filter-envelope decay in ms.
func (e *Engine) FilterDecayMs() float64 { return e.filterEnv.DecayMs() }

// NoteOn enqueues a note-on event. Velocity 0 acts as a note-off;
// velocity >= 100 plays the note accented.
func (e *Engine) NoteOn(note, velocity int) {
	e.queue.push(event{kind: evNoteOn, note: note, velocity: velocity})
}

// NoteOff enqueues a note-off event.
func (e *Engine) NoteOff(note int) {
	e.queue.push(event{kind: evNoteOff, note: note})
}

// AllNotesOff enqueues a forced release of all note state.
func (e *Engine) AllNotesOff() {
	e.queue.push(event{kind: evAllNotesOff})
}

// SetWaveform sets the saw/square blend from a normalized value.
func (e *Engine) SetWaveform(v float64) { e.setParam(ParamWaveform, v) }

// SetTuning sets the master tuning from a normalized value (400-480 Hz).
func (e *Engine) SetTuning(v float64) { e.setParam(ParamTuning, v) }

// SetCutoff sets the filter cutoff from a normalized value (314-2394 Hz,
// exponential).
func (e *Engine) SetCutoff(v float64) { e.setParam(ParamCutoff, v) }

// SetResonance sets filter resonance from a normalized value (0-100%).
func (e *Engine) SetResonance(v float64) { e.setParam(ParamResonance, v) }

// SetEnvMod sets filter envelope modulation depth from a normalized value
// (0-100%).
func (e *Engine) SetEnvMod(v float64) { e.setParam(ParamEnvMod, v) }

// SetDecay sets the filter-envelope decay from a normalized value. The
// engine-unit range depends on extended mode: 200-2000 ms normally,
// 30-3000 ms extended.
func (e *Engine) SetDecay(v float64) { e.setParam(ParamDecay, v) }

// SetAccent sets accent emphasis from a normalized value (0-100%).
func (e *Engine) SetAccent(v float64) { e.setParam(ParamAccent, v) }

// SetVolume sets output volume from a normalized value (-60..0 dB).
func (e *Engine) SetVolume(v float64) { e.setParam(ParamVolume, v) }

// SetNormalDecay sets the amplitude-envelope decay (extended mode only,
// 30-3000 ms).
func (e *Engine) SetNormalDecay(v float64) { e.setParam(ParamNormalDecay, v) }

// SetAccentDecay sets the accent decay of both envelopes (extended mode
// only, 30-3000 ms).
func (e *Engine) SetAccentDecay(v float64) { e.setParam(ParamAccentDecay, v) }

// SetFeedbackFilter sets the feedback highpass corner (extended mode only,
// 350 down to 100 Hz, inverted).
func (e *Engine) SetFeedbackFilter(v float64) { e.setParam(ParamFeedbackFilter, v) }

// SetSoftAttack sets the amplitude attack time (extended mode only,
// 0.3-3000 ms, exponential).
func (e *Engine) SetSoftAttack(v float64) { e.setParam(ParamSoftAttack, v) }

// SetSlideTime sets the slide time (extended mode only, 2-360 ms).
func (e *Engine) SetSlideTime(v float64) { e.setParam(ParamSlideTime, v) }

// SetSquareDriver sets the feedback shaper drive (extended mode only,
// 25-80).
func (e *Engine) SetSquareDriver(v float64) { e.setParam(ParamSquareDriver, v) }

// SetPitchBend sets the pitch offset in semitones (not normalized;
// typically within +-24).
func (e *Engine) SetPitchBend(semitones float64) {
	e.queue.push(event{kind: evPitchBend, value: semitones})
}

// SetExtendedModeEnabled toggles extended mode. Disabling it restores the
// six fixed hardware values for amplitude decay, accent decay, feedback
// highpass, soft attack, slide time, and shaper drive, discarding any
// values set while extended mode was active.
func (e *Engine) SetExtendedModeEnabled(enabled bool) {
	e.queue.push(event{kind: evExtendedMode, enabled: enabled})
}

// SetParam enqueues a normalized parameter change by identifier.
func (e *Engine) SetParam(p Param, v float64) { e.setParam(p, v) }

func (e *Engine) setParam(p Param, v float64) {
	e.queue.push(event{kind: evParam, param: p, value: v})
}

// Process renders numSamples mono samples and returns the internally owned
// output buffer, valid until the next Process call. Queued control events
// are applied before rendering. Rendering with no active note yields
// silence. numSamples beyond the size declared at Init is rejected with
// ErrBlockTooLarge rather than reallocating mid-stream.
func (e *Engine) Process(numSamples int) ([]float32, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}

	if numSamples < 0 {
		return nil, fmt.Errorf("%w: %d", ErrBlockTooLarge, numSamples)
	}

	if numSamples > e.maxBlockSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBlockTooLarge, numSamples, e.maxBlockSize)
	}

	e.drainEvents()

	scratch := e.scratch[:numSamples]
	for i := range scratch {
		envLevel := e.filterEnv.ProcessSample()
		e.filter.SetEnvelopeLevel(envLevel)

		sample := e.filter.ProcessSample(e.oscillator.ProcessSample())

		gain := e.ampEnv.ProcessSample() * e.volumeGain
		if e.ampEnv.Accented() {
			gain *= 1 + e.accentPct*0.01
		}

		v := sample * gain
		if v > outputCeiling {
			v = outputCeiling
		} else if v < -outputCeiling {
			v = -outputCeiling
		}

		scratch[i] = v
	}

	out := e.out[:numSamples]
	for i, v := range scratch {
		out[i] = float32(v)
	}

	return out, nil
}

func (e *Engine) drainEvents() {
	var ev event
	for e.queue.pop(&ev) {
		e.applyEvent(ev)
	}
}

func (e *Engine) applyEvent(ev event) {
	switch ev.kind {
	case evNoteOn:
		e.applyNoteOn(ev.note, ev.velocity)
	case evNoteOff:
		e.voice.NoteOff(ev.note)
	case evAllNotesOff:
		// Force the gate closed but let the envelopes decay out naturally
		// instead of cutting the tail.
		e.voice.AllNotesOff()
	case evParam:
		e.applyParam(ev.param, ev.value)
	case evPitchBend:
		e.oscillator.SetPitchBend(ev.value)
	case evExtendedMode:
		e.applyExtendedMode(ev.enabled)
	}
}

func (e *Engine) applyNoteOn(note, velocity int) {
	switch e.voice.NoteOn(note, velocity) {
	case TriggerFresh:
		e.oscillator.TriggerNote(note)
		e.filterEnv.Trigger(e.voice.Accented())
		e.ampEnv.Trigger(e.voice.Accented())
	case TriggerSlide:
		// The slid note's accent takes over without retriggering: both
		// envelopes switch decay times mid-cycle and the accent gain
		// follows, so the audible behavior matches the reported state.
		e.oscillator.SlideToNote(note)
		e.filterEnv.SetAccented(e.voice.Accented())
		e.ampEnv.SetAccented(e.voice.Accented())
	}
}

func (e *Engine) applyParam(p Param, v float64) {
	if p.extendedOnly() && !e.extendedMode {
		return
	}

	v = core.Clamp(v, 0, 1)

	switch p {
	case ParamWaveform:
		e.oscillator.SetBlend(v)
	case ParamTuning:
		e.oscillator.SetTuningHz(param.TuningHz.Map(v))
	case ParamCutoff:
		e.filter.SetCutoffHz(param.CutoffHz.Map(v))
	case ParamResonance:
		e.filter.SetResonancePct(param.ResonancePct.Map(v))
	case ParamEnvMod:
		e.filter.SetEnvModPct(param.EnvModPct.Map(v))
	case ParamDecay:
		e.filterEnv.SetDecayMs(e.decayRange().Map(v))
	case ParamAccent:
		e.accentPct = param.AccentPct.Map(v)
	case ParamVolume:
		e.volumeGain = core.DBToLinear(param.VolumeDB.Map(v))
	case ParamNormalDecay:
		e.ampEnv.SetDecayMs(param.AmpDecayMs.Map(v))
	case ParamAccentDecay:
		decayMs := param.AccentDecayMs.Map(v)
		e.ampEnv.SetAccentDecayMs(decayMs)
		e.filterEnv.SetAccentDecayMs(decayMs)
	case ParamFeedbackFilter:
		e.filter.SetFeedbackHighpassHz(param.FeedbackHighpassHz.Map(v))
	case ParamSoftAttack:
		e.ampEnv.SetAttackMs(param.SoftAttackMs.Map(v))
	case ParamSlideTime:
		e.oscillator.SetSlideTimeMs(param.SlideTimeMs.Map(v))
	case ParamSquareDriver:
		e.filter.SetDrive(param.ShaperDrive.Map(v))
	}
}

func (e *Engine) applyExtendedMode(enabled bool) {
	if e.extendedMode == enabled {
		return
	}

	e.extendedMode = enabled
	if !enabled {
		e.applyHardwareDefaults()
	}
}

func (e *Engine) decayRange() param.Range {
	if e.extendedMode {
		return param.DecayExtendedMs
	}

	return param.DecayNormalMs
}

func (e *Engine) applyDefaults() {
	e.applyParam(ParamWaveform, defaultWaveform)
	e.applyParam(ParamTuning, defaultTuning)
	e.applyParam(ParamCutoff, defaultCutoff)
	e.applyParam(ParamResonance, defaultResonance)
	e.applyParam(ParamEnvMod, defaultEnvMod)
	e.applyParam(ParamDecay, defaultDecay)
	e.applyParam(ParamAccent, defaultAccent)
	e.applyParam(ParamVolume, defaultVolume)
	e.applyHardwareDefaults()
	e.oscillator.SetPitchBend(0)
}

func (e *Engine) applyHardwareDefaults() {
	e.ampEnv.SetDecayMs(hwAmpDecayMs)
	e.ampEnv.SetAccentDecayMs(hwAccentDecayMs)
	e.ampEnv.SetAttackMs(hwSoftAttackMs)
	e.filterEnv.SetAccentDecayMs(hwAccentDecayMs)
	e.filter.SetFeedbackHighpassHz(hwFeedbackHighpassHz)
	e.oscillator.SetSlideTimeMs(hwSlideTimeMs)
	e.filter.SetDrive(hwShaperDrive)
}
