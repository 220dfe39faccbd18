// Package synth assembles the monophonic bass voice: one blend
// oscillator, one nonlinear resonant lowpass, twin decay envelopes
// (filter and amplitude), and the single-note-memory gate/slide/accent
// logic of the modeled hardware.
//
// Engine is the orchestration entry point. Note events and normalized
// parameter changes may arrive from a control goroutine while Process
// runs on an audio callback; they are handed over through a bounded
// lock-free queue and drained at the top of each Process call, so the
// render path never blocks and never allocates in steady state.
package synth
