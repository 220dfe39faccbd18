// Package spectrum provides the small amount of frequency-domain analysis
// the voice engine needs for verification: magnitude spectra, dominant
// frequency estimation, and band energy ratios.
package spectrum

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
)

// MagnitudeSpectrum returns |X[k]| for the non-negative frequency bins of
// the Hann-windowed input, zero-padded to fftSize. fftSize must be a power
// of two and at least len(signal).
func MagnitudeSpectrum(signal []float64, fftSize int) ([]float64, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("spectrum: signal must not be empty")
	}

	if fftSize < len(signal) || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("spectrum: fft size must be a power of two >= len(signal): %d", fftSize)
	}

	windowed := make([]float64, len(signal))
	copy(windowed, signal)
	vecmath.MulBlockInPlace(windowed, hannWindow(len(signal)))

	in := make([]complex128, fftSize)
	for i, v := range windowed {
		in[i] = complex(v, 0)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("spectrum: %w", err)
	}

	out := make([]complex128, fftSize)
	if err := plan.Forward(out, in); err != nil {
		return nil, fmt.Errorf("spectrum: %w", err)
	}

	binCount := fftSize/2 + 1
	re := make([]float64, binCount)
	im := make([]float64, binCount)
	for i := range binCount {
		re[i] = real(out[i])
		im[i] = imag(out[i])
	}

	mags := make([]float64, binCount)
	vecmath.Magnitude(mags, re, im)

	return mags, nil
}

// DominantFrequencyHz estimates the frequency of the strongest spectral
// component of signal, ignoring the DC bin.
func DominantFrequencyHz(signal []float64, sampleRate float64) (float64, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("spectrum: sample rate must be > 0: %f", sampleRate)
	}

	fftSize := nextPow2(len(signal))

	mags, err := MagnitudeSpectrum(signal, fftSize)
	if err != nil {
		return 0, err
	}

	peak := 1
	for i := 2; i < len(mags); i++ {
		if mags[i] > mags[peak] {
			peak = i
		}
	}

	return float64(peak) * sampleRate / float64(fftSize), nil
}

// EnergyFractionAround returns the fraction of total spectral energy that
// falls within widthHz of hz.
func EnergyFractionAround(signal []float64, sampleRate, hz, widthHz float64) (float64, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("spectrum: sample rate must be > 0: %f", sampleRate)
	}

	fftSize := nextPow2(len(signal))

	mags, err := MagnitudeSpectrum(signal, fftSize)
	if err != nil {
		return 0, err
	}

	binHz := sampleRate / float64(fftSize)
	total := 0.0
	band := 0.0

	for i := 1; i < len(mags); i++ {
		e := mags[i] * mags[i]
		total += e

		if math.Abs(float64(i)*binHz-hz) <= widthHz {
			band += e
		}
	}

	if total == 0 {
		return 0, nil
	}

	return band / total, nil
}

func hannWindow(n int) []float64 {
	coeffs := make([]float64, n)
	if n == 1 {
		coeffs[0] = 1
		return coeffs
	}

	for i := range coeffs {
		coeffs[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}

	return coeffs
}

func nextPow2(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}

	return size
}
