// Command render303 renders a short acid bass line through the voice
// engine and writes it to a mono 16-bit WAV file.
//
// Usage:
//
//	render303 [flags]
//
// Examples:
//
//	render303 -out line.wav
//	render303 -rate 48000 -cutoff 0.6 -resonance 0.95 -out squelch.wav
//	render303 -extended -slide 0.8 -out rubber.wav
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cwbudde/algo-303/dsp/core"
	"github.com/cwbudde/algo-303/dsp/synth"
)

// step is one sixteenth of the demo pattern. Slide ties a step to the
// next without retriggering; accent plays it with velocity 127.
type step struct {
	note   int
	accent bool
	slide  bool
	rest   bool
}

// A classic one-bar acid figure in A minor.
var pattern = []step{
	{note: 45, accent: true},
	{note: 45},
	{note: 57, slide: true},
	{note: 57},
	{note: 45},
	{note: 48, accent: true, slide: true},
	{note: 45},
	{rest: true},
	{note: 45},
	{note: 60, slide: true},
	{note: 57},
	{note: 45, accent: true},
	{note: 43},
	{note: 43, slide: true},
	{note: 45},
	{rest: true},
}

func main() {
	var (
		rate      = flag.Float64("rate", 44100, "sample rate in Hz")
		outPath   = flag.String("out", "render303.wav", "output WAV path")
		bpm       = flag.Float64("bpm", 130, "tempo in beats per minute")
		bars      = flag.Int("bars", 4, "number of pattern repetitions")
		waveform  = flag.Float64("waveform", 1.0, "saw/square blend [0,1]")
		cutoff    = flag.Float64("cutoff", 0.35, "filter cutoff [0,1]")
		resonance = flag.Float64("resonance", 0.92, "filter resonance [0,1]")
		envMod    = flag.Float64("envmod", 0.7, "envelope modulation [0,1]")
		decay     = flag.Float64("decay", 0.29, "filter env decay [0,1]")
		accent    = flag.Float64("accent", 0.78, "accent amount [0,1]")
		volume    = flag.Float64("volume", 0.85, "output volume [0,1]")
		extended  = flag.Bool("extended", false, "enable extended mode")
		slide     = flag.Float64("slide", 0.2, "slide time [0,1] (extended mode)")
	)
	flag.Parse()

	if err := run(*rate, *outPath, *bpm, *bars, settings{
		waveform:  *waveform,
		cutoff:    *cutoff,
		resonance: *resonance,
		envMod:    *envMod,
		decay:     *decay,
		accent:    *accent,
		volume:    *volume,
		extended:  *extended,
		slide:     *slide,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "render303:", err)
		os.Exit(1)
	}
}

type settings struct {
	waveform  float64
	cutoff    float64
	resonance float64
	envMod    float64
	decay     float64
	accent    float64
	volume    float64
	extended  bool
	slide     float64
}

func run(rate float64, outPath string, bpm float64, bars int, s settings) error {
	if bpm <= 0 {
		return fmt.Errorf("bpm must be > 0: %f", bpm)
	}

	if bars <= 0 {
		return fmt.Errorf("bars must be > 0: %d", bars)
	}

	const blockSize = 512

	engine, err := synth.New(
		core.WithSampleRate(rate),
		core.WithMaxBlockSize(blockSize),
	)
	if err != nil {
		return err
	}
	defer engine.Shutdown()

	engine.SetWaveform(s.waveform)
	engine.SetCutoff(s.cutoff)
	engine.SetResonance(s.resonance)
	engine.SetEnvMod(s.envMod)
	engine.SetDecay(s.decay)
	engine.SetAccent(s.accent)
	engine.SetVolume(s.volume)

	if s.extended {
		engine.SetExtendedModeEnabled(true)
		engine.SetSlideTime(s.slide)
	}

	stepSamples := int(rate * 60 / bpm / 4)
	gateSamples := stepSamples * 7 / 8

	var samples []float32

	for bar := 0; bar < bars; bar++ {
		for _, st := range pattern {
			if !st.rest {
				velocity := 80
				if st.accent {
					velocity = 127
				}
				engine.NoteOn(st.note, velocity)
			}

			hold := stepSamples
			if !st.rest && !st.slide {
				hold = gateSamples
			}

			block, err := render(engine, hold)
			if err != nil {
				return err
			}
			samples = append(samples, block...)

			if !st.rest && !st.slide {
				engine.NoteOff(st.note)

				tail, err := render(engine, stepSamples-gateSamples)
				if err != nil {
					return err
				}
				samples = append(samples, tail...)
			}
		}
	}

	engine.AllNotesOff()

	tail, err := render(engine, stepSamples)
	if err != nil {
		return err
	}
	samples = append(samples, tail...)

	return writeWAV(outPath, samples, int(rate))
}

func render(engine *synth.Engine, numSamples int) ([]float32, error) {
	out := make([]float32, 0, numSamples)

	for numSamples > 0 {
		n := numSamples
		if n > engine.MaxBlockSize() {
			n = engine.MaxBlockSize()
		}

		block, err := engine.Process(n)
		if err != nil {
			return nil, err
		}

		out = append(out, block...)
		numSamples -= n
	}

	return out, nil
}

func writeWAV(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	const bitDepth = 16

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: bitDepth,
		Data:           make([]int, len(samples)),
	}

	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		buf.Data[i] = int(v * 32767)
	}

	const pcm = 1
	enc := wav.NewEncoder(f, sampleRate, bitDepth, 1, pcm)

	if err := enc.Write(buf); err != nil {
		f.Close()
		return err
	}

	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
