package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/san-kum/rigidsim/internal/sim"
)

// Extractor reads one scalar from a sample.
type Extractor func(sim.Sample) float64

func KineticEnergy(s sim.Sample) float64 { return s.KineticEnergy }
func TotalEnergy(s sim.Sample) float64   { return s.TotalEnergy() }
func Awake(s sim.Sample) float64         { return float64(s.Awake) }

// BodyHeight extracts the height of the i-th sampled body, or 0 when the
// sample holds fewer bodies.
func BodyHeight(i int) Extractor {
	return func(s sim.Sample) float64 {
		if i < 0 || i >= len(s.Bodies) {
			return 0
		}
		return s.Bodies[i].Position.Y()
	}
}

// BodySpeed extracts the linear speed of the i-th sampled body.
func BodySpeed(i int) Extractor {
	return func(s sim.Sample) float64 {
		if i < 0 || i >= len(s.Bodies) {
			return 0
		}
		return s.Bodies[i].LinearVelocity.Len()
	}
}

// Channel applies f to every sample.
func Channel(samples []sim.Sample, f Extractor) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = f(s)
	}
	return out
}

// PowerSpectrum returns the magnitude of the first half of the discrete
// Fourier transform of data with its mean removed. Any length is accepted.
func PowerSpectrum(data []float64) []float64 {
	if len(data) < 2 {
		return nil
	}
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))
	centered := make([]float64, len(data))
	for i, v := range data {
		centered[i] = v - mean
	}

	spectrum := fft.FFTReal(centered)
	ps := make([]float64, len(spectrum)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(spectrum[i])
	}
	return ps
}

// DominantFrequency returns the strongest non-zero frequency in Hz of data
// sampled every interval seconds, and 0 when there is none.
func DominantFrequency(data []float64, interval float64) float64 {
	ps := PowerSpectrum(data)
	if len(ps) < 2 || interval <= 0 {
		return 0
	}
	peak := 1
	for i := 2; i < len(ps); i++ {
		if ps[i] > ps[peak] {
			peak = i
		}
	}
	if ps[peak] == 0 {
		return 0
	}
	return float64(peak) / (float64(len(data)) * interval)
}
