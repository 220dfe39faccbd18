package synth

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-303/dsp/core"
	"github.com/cwbudde/algo-303/dsp/envelope"
	"github.com/cwbudde/algo-303/dsp/spectrum"
	"github.com/cwbudde/algo-303/internal/testutil"
)

const testSampleRate = 44100.0

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	e, err := New(core.WithSampleRate(testSampleRate), core.WithMaxBlockSize(512))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	return e
}

// render pulls numSamples from the engine in max-block-size chunks and
// returns them as one float64 signal.
func render(t *testing.T, e *Engine, numSamples int) []float64 {
	t.Helper()

	out := make([]float64, 0, numSamples)
	for len(out) < numSamples {
		n := numSamples - len(out)
		if n > e.MaxBlockSize() {
			n = e.MaxBlockSize()
		}

		block, err := e.Process(n)
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}

		for _, v := range block {
			out = append(out, float64(v))
		}
	}

	return out
}

// flush applies queued control events without rendering audio.
func flush(t *testing.T, e *Engine) {
	t.Helper()

	if _, err := e.Process(0); err != nil {
		t.Fatalf("Process(0) failed: %v", err)
	}
}

func approxEq(a, b float64) bool {
	tol := 1e-6 * math.Max(1, math.Abs(b))
	return math.Abs(a-b) <= tol
}

func TestInitValidation(t *testing.T) {
	cases := []struct {
		name         string
		sampleRate   float64
		maxBlockSize int
		wantErr      error
	}{
		{"zero rate", 0, 512, ErrInvalidSampleRate},
		{"negative rate", -44100, 512, ErrInvalidSampleRate},
		{"nan rate", math.NaN(), 512, ErrInvalidSampleRate},
		{"zero block", 44100, 0, ErrInvalidBlockSize},
		{"negative block", 44100, -1, ErrInvalidBlockSize},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := &Engine{voice: NewVoice(), queue: newEventQueue()}
			if err := e.Init(tc.sampleRate, tc.maxBlockSize); !errors.Is(err, tc.wantErr) {
				t.Fatalf("Init error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestHardwareDefaults(t *testing.T) {
	e := newTestEngine(t)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"amp decay", e.AmpDecayMs(), hwAmpDecayMs},
		{"accent decay", e.AccentDecayMs(), hwAccentDecayMs},
		{"feedback highpass", e.FeedbackHighpassHz(), hwFeedbackHighpassHz},
		{"soft attack", e.SoftAttackMs(), hwSoftAttackMs},
		{"slide time", e.SlideTimeMs(), hwSlideTimeMs},
		{"shaper drive", e.ShaperDrive(), hwShaperDrive},
	}

	for _, c := range checks {
		if !approxEq(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	if e.ExtendedModeEnabled() {
		t.Error("extended mode should start disabled")
	}
}

func TestSilenceWithoutNote(t *testing.T) {
	e := newTestEngine(t)

	signal := render(t, e, 2048)
	for i, v := range signal {
		if v != 0 {
			t.Fatalf("sample %d = %v, want silence", i, v)
		}
	}
}

func TestNoteProducesExpectedPitch(t *testing.T) {
	e := newTestEngine(t)

	// Moderate resonance keeps the filter's own peak from dominating the
	// spectrum so the dominant bin is the oscillator fundamental.
	e.SetResonance(0.3)
	e.SetCutoff(0.5)
	e.NoteOn(60, 80)

	// Skip the attack transient.
	render(t, e, 4410)
	signal := render(t, e, 16384)

	if rms := testutil.RMS(signal); rms < 1e-3 {
		t.Fatalf("rendered signal is near silent, rms = %v", rms)
	}

	const wantHz = 261.63

	domHz, err := spectrum.DominantFrequencyHz(signal, testSampleRate)
	if err != nil {
		t.Fatalf("DominantFrequencyHz failed: %v", err)
	}

	if math.Abs(domHz-wantHz) > 10 {
		t.Errorf("dominant frequency = %.1f Hz, want about %.1f Hz", domHz, wantHz)
	}

	frac, err := spectrum.EnergyFractionAround(signal, testSampleRate, wantHz, 30)
	if err != nil {
		t.Fatalf("EnergyFractionAround failed: %v", err)
	}

	if frac < 0.25 {
		t.Errorf("energy fraction around %.1f Hz = %.3f, want >= 0.25", wantHz, frac)
	}
}

func TestAmplitudeDecaysOverTime(t *testing.T) {
	e := newTestEngine(t)
	e.NoteOn(60, 80)

	// Skip the attack, then compare early against late segments. The
	// amplitude envelope has no sustain, so the level must fall even while
	// the gate stays open, and keep falling after the release.
	render(t, e, 2048)
	early := testutil.RMS(render(t, e, 8192))

	render(t, e, 44100)
	late := testutil.RMS(render(t, e, 8192))

	if late >= early*0.7 {
		t.Errorf("held note did not decay: early rms %v, late rms %v", early, late)
	}

	e.NoteOff(60)
	render(t, e, 88200)
	tail := testutil.RMS(render(t, e, 8192))

	if tail >= late {
		t.Errorf("released note did not keep decaying: late rms %v, tail rms %v", late, tail)
	}
}

func TestSlideDoesNotRetriggerAmpEnvelope(t *testing.T) {
	e := newTestEngine(t)
	e.NoteOn(60, 80)

	// Get well past the attack so the envelope is decaying.
	render(t, e, 8192)

	if e.AmpEnvelopeStage() != envelope.StageDecay {
		t.Fatalf("amp envelope stage = %v, want decay", e.AmpEnvelopeStage())
	}

	before := e.AmpEnvelopeLevel()

	e.NoteOn(64, 80)
	render(t, e, 64)

	if e.AmpEnvelopeStage() != envelope.StageDecay {
		t.Fatalf("slide moved amp envelope to stage %v", e.AmpEnvelopeStage())
	}

	if level := e.AmpEnvelopeLevel(); level > before {
		t.Errorf("slide raised amp envelope level from %v to %v", before, level)
	}

	if !e.Sliding() {
		t.Error("engine should report an active slide")
	}
}

func TestSlideGlidesPitch(t *testing.T) {
	e := newTestEngine(t)
	e.NoteOn(60, 80)
	render(t, e, 512)

	startHz := e.OscillatorFrequencyHz()

	e.NoteOn(72, 80)
	render(t, e, 64)

	mid := e.OscillatorFrequencyHz()
	if mid <= startHz || mid >= 2*startHz {
		t.Fatalf("frequency %v Hz not between %v and %v during slide", mid, startHz, 2*startHz)
	}

	// 60 ms slide converges well within half a second.
	render(t, e, 22050)

	if got := e.OscillatorFrequencyHz(); math.Abs(got-2*startHz) > 1 {
		t.Errorf("frequency after slide = %v Hz, want %v Hz", got, 2*startHz)
	}
}

func TestFreshNoteRetriggersEnvelopes(t *testing.T) {
	e := newTestEngine(t)
	e.NoteOn(60, 80)
	render(t, e, 44100)

	decayed := e.AmpEnvelopeLevel()

	e.NoteOff(60)
	e.NoteOn(64, 80)
	render(t, e, 512)

	if level := e.AmpEnvelopeLevel(); level <= decayed {
		t.Errorf("fresh note did not retrigger: level %v, was %v", level, decayed)
	}
}

func TestAccentedNote(t *testing.T) {
	e := newTestEngine(t)

	e.NoteOn(60, accentVelocityThreshold)
	render(t, e, 64)

	if !e.NoteAccented() {
		t.Fatal("velocity at threshold should accent the note")
	}

	// Accent substitutes the short accent decay for the normal decay.
	accented := render(t, e, 44100)

	e.AllNotesOff()
	render(t, e, 88200)

	e.NoteOn(60, accentVelocityThreshold-1)
	render(t, e, 64)

	if e.NoteAccented() {
		t.Fatal("velocity below threshold must not accent")
	}

	plain := render(t, e, 44100)

	// The 200 ms accent decay leaves far less tail energy over one second
	// than the 1230 ms normal decay.
	accTail := testutil.RMS(accented[22050:])
	plainTail := testutil.RMS(plain[22050:])

	if accTail >= plainTail {
		t.Errorf("accent tail rms %v not below plain tail rms %v", accTail, plainTail)
	}
}

func TestExtendedOnlySettersIgnoredWhenDisabled(t *testing.T) {
	e := newTestEngine(t)

	e.SetSlideTime(1)
	e.SetNormalDecay(1)
	e.SetAccentDecay(0)
	e.SetFeedbackFilter(0)
	e.SetSoftAttack(1)
	e.SetSquareDriver(1)
	flush(t, e)

	if !approxEq(e.SlideTimeMs(), hwSlideTimeMs) {
		t.Errorf("slide time changed to %v with extended mode off", e.SlideTimeMs())
	}

	if !approxEq(e.AmpDecayMs(), hwAmpDecayMs) {
		t.Errorf("amp decay changed to %v with extended mode off", e.AmpDecayMs())
	}

	if !approxEq(e.ShaperDrive(), hwShaperDrive) {
		t.Errorf("shaper drive changed to %v with extended mode off", e.ShaperDrive())
	}
}

func TestExtendedModeRoundTrip(t *testing.T) {
	e := newTestEngine(t)

	e.SetExtendedModeEnabled(true)
	e.SetNormalDecay(1)
	e.SetAccentDecay(0)
	e.SetFeedbackFilter(0)
	e.SetSoftAttack(1)
	e.SetSlideTime(1)
	e.SetSquareDriver(1)
	flush(t, e)

	if !e.ExtendedModeEnabled() {
		t.Fatal("extended mode should be enabled")
	}

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"amp decay", e.AmpDecayMs(), 3000},
		{"accent decay", e.AccentDecayMs(), 30},
		{"feedback highpass", e.FeedbackHighpassHz(), 350},
		{"soft attack", e.SoftAttackMs(), 3000},
		{"slide time", e.SlideTimeMs(), 360},
		{"shaper drive", e.ShaperDrive(), 80},
	}

	for _, c := range checks {
		if !approxEq(c.got, c.want) {
			t.Errorf("extended %s = %v, want %v", c.name, c.got, c.want)
		}
	}

	// Disabling restores every fixed hardware value, discarding the
	// extended settings.
	e.SetExtendedModeEnabled(false)
	flush(t, e)

	restored := []struct {
		name string
		got  float64
		want float64
	}{
		{"amp decay", e.AmpDecayMs(), hwAmpDecayMs},
		{"accent decay", e.AccentDecayMs(), hwAccentDecayMs},
		{"feedback highpass", e.FeedbackHighpassHz(), hwFeedbackHighpassHz},
		{"soft attack", e.SoftAttackMs(), hwSoftAttackMs},
		{"slide time", e.SlideTimeMs(), hwSlideTimeMs},
		{"shaper drive", e.ShaperDrive(), hwShaperDrive},
	}

	for _, c := range restored {
		if !approxEq(c.got, c.want) {
			t.Errorf("restored %s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestDecayRangeDependsOnMode(t *testing.T) {
	e := newTestEngine(t)

	e.SetDecay(0)
	flush(t, e)

	if !approxEq(e.FilterDecayMs(), 200) {
		t.Errorf("normal-mode minimum decay = %v, want 200", e.FilterDecayMs())
	}

	e.SetExtendedModeEnabled(true)
	e.SetDecay(0)
	flush(t, e)

	if !approxEq(e.FilterDecayMs(), 30) {
		t.Errorf("extended-mode minimum decay = %v, want 30", e.FilterDecayMs())
	}
}

func TestPitchBend(t *testing.T) {
	e := newTestEngine(t)
	e.NoteOn(69, 80)
	render(t, e, 512)

	base := e.OscillatorFrequencyHz()

	e.SetPitchBend(12)
	render(t, e, 22050)

	if got := e.OscillatorFrequencyHz(); math.Abs(got-2*base) > 1 {
		t.Errorf("bent frequency = %v Hz, want %v Hz", got, 2*base)
	}

	e.SetPitchBend(0)
	render(t, e, 22050)

	if got := e.OscillatorFrequencyHz(); math.Abs(got-base) > 1 {
		t.Errorf("frequency after bend reset = %v Hz, want %v Hz", got, base)
	}
}

func TestStabilityAtExtremeSettings(t *testing.T) {
	e := newTestEngine(t)
	e.SetResonance(1)
	e.SetEnvMod(1)
	e.SetCutoff(1)
	e.SetAccent(1)

	// Ten seconds of one sustained accented note at maximum resonance and
	// envelope modulation must stay bounded and finite.
	e.NoteOn(36, 127)
	for rendered := 0; rendered < 10*int(testSampleRate); rendered += 22050 {
		signal := render(t, e, 22050)
		testutil.RequireFinite(t, signal)
		testutil.RequireBounded(t, signal, outputCeiling)
	}
	e.NoteOff(36)

	// Hard retriggering under the same settings must not blow up either.
	pattern := []int{36, 48, 39, 51}
	for i := 0; i < 8; i++ {
		e.NoteOn(pattern[i%len(pattern)], 127)

		signal := render(t, e, 4410)
		testutil.RequireFinite(t, signal)
		testutil.RequireBounded(t, signal, outputCeiling)

		e.NoteOff(pattern[i%len(pattern)])
	}
}

func TestProcessBlockLimits(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.Process(e.MaxBlockSize()); err != nil {
		t.Fatalf("Process at max block size failed: %v", err)
	}

	if _, err := e.Process(e.MaxBlockSize() + 1); !errors.Is(err, ErrBlockTooLarge) {
		t.Fatalf("oversized Process error = %v, want ErrBlockTooLarge", err)
	}

	if _, err := e.Process(-1); !errors.Is(err, ErrBlockTooLarge) {
		t.Fatalf("negative Process error = %v, want ErrBlockTooLarge", err)
	}
}

func TestShutdownAndRevive(t *testing.T) {
	e := newTestEngine(t)

	e.Shutdown()
	e.Shutdown() // idempotent

	if _, err := e.Process(64); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Process after Shutdown error = %v, want ErrNotInitialized", err)
	}

	if err := e.Init(testSampleRate, 256); err != nil {
		t.Fatalf("Init after Shutdown failed: %v", err)
	}

	if _, err := e.Process(256); err != nil {
		t.Fatalf("Process after revive failed: %v", err)
	}
}

func TestDroppedEventsCounted(t *testing.T) {
	e := newTestEngine(t)

	// Overfill the hand-off queue without giving the render side a chance
	// to drain it.
	for i := 0; i < eventQueueCapacity+64; i++ {
		e.SetCutoff(0.5)
	}

	if got := e.DroppedEvents(); got == 0 {
		t.Fatal("overflowing the event queue should count drops")
	}

	// The engine keeps running; excess events are simply lost.
	if _, err := e.Process(64); err != nil {
		t.Fatalf("Process after overflow failed: %v", err)
	}
}

func TestParamStrings(t *testing.T) {
	params := []Param{
		ParamWaveform, ParamTuning, ParamCutoff, ParamResonance,
		ParamEnvMod, ParamDecay, ParamAccent, ParamVolume,
		ParamNormalDecay, ParamAccentDecay, ParamFeedbackFilter,
		ParamSoftAttack, ParamSlideTime, ParamSquareDriver,
	}

	seen := map[string]bool{}
	for _, p := range params {
		s := p.String()
		if s == "" || s == "unknown" || seen[s] {
			t.Errorf("Param %d has bad or duplicate name %q", p, s)
		}
		seen[s] = true
	}
}

func BenchmarkEngineProcess(b *testing.B) {
	e, err := New(core.WithSampleRate(testSampleRate), core.WithMaxBlockSize(512))
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}

	e.SetResonance(0.9)
	e.SetEnvMod(0.8)
	e.NoteOn(48, 127)

	if _, err := e.Process(512); err != nil {
		b.Fatalf("Process failed: %v", err)
	}

	b.ReportAllocs()
	b.SetBytes(512 * 4)
	b.ResetTimer()

	for range b.N {
		if _, err := e.Process(512); err != nil {
			b.Fatalf("Process failed: %v", err)
		}
	}
}

func TestSlideCarriesAccent(t *testing.T) {
	e := newTestEngine(t)
	e.NoteOn(60, 80)

	// Past the attack; decaying at the slow 1230 ms normal rate.
	render(t, e, 8192)

	if e.NoteAccented() {
		t.Fatal("plain note must not be accented")
	}

	before := e.AmpEnvelopeLevel()

	// An accented legato note adopts the 200 ms accent decay without
	// retriggering.
	e.NoteOn(64, 127)
	render(t, e, 22050)

	if !e.NoteAccented() {
		t.Fatal("slid accented note should report accented")
	}

	if e.AmpEnvelopeStage() != envelope.StageDecay {
		t.Fatalf("amp envelope stage = %v, want decay", e.AmpEnvelopeStage())
	}

	// Half a second at the accent decay leaves ~8 percent; the normal
	// decay would leave ~67 percent.
	ratio := e.AmpEnvelopeLevel() / before
	if ratio > 0.2 {
		t.Errorf("amp level ratio after accented slide = %g, want < 0.2", ratio)
	}

	// Sliding back to a plain note returns to the normal decay.
	e.NoteOn(62, 80)
	render(t, e, 1)

	if e.NoteAccented() {
		t.Fatal("plain slid note should clear the accent")
	}

	mid := e.AmpEnvelopeLevel()
	render(t, e, 22050)

	if mid > 0 {
		ratio = e.AmpEnvelopeLevel() / mid
		if ratio < 0.5 {
			t.Errorf("amp level ratio after plain slide = %g, want the slow decay", ratio)
		}
	}
}

func TestReinitRendersSilence(t *testing.T) {
	e := newTestEngine(t)
	e.NoteOn(48, 127)

	signal := render(t, e, 512)
	if testutil.RMS(signal) == 0 {
		t.Fatal("expected a sounding note before reinitialization")
	}

	// Reinitializing at a smaller block size reuses the render buffers;
	// no stale content from the previous life may leak out.
	if err := e.Init(testSampleRate, 256); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	signal = render(t, e, 256)
	for i, v := range signal {
		if v != 0 {
			t.Fatalf("sample %d = %v after reinit, want silence", i, v)
		}
	}
}
