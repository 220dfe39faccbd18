// Package teebee provides the nonlinear resonant lowpass of the bass
// voice: a 4-stage ladder with tanh stage nonlinearities, a feedback path
// routed through a first-order highpass and a drive-scaled saturator, and
// envelope-driven cutoff modulation.
//
// The topology follows the diode-ladder character of the modeled bass
// synthesizer rather than a textbook Moog ladder: resonance feedback is
// taken from a half-sample estimate of the last stage, high-passed so low
// frequencies stay out of the regeneration loop, and saturated so the
// filter rings instead of diverging at the self-oscillation edge.
//
// The filter is stateful, deterministic, and allocation-free in the
// processing path. State can be saved and restored via State/SetState.
package teebee
