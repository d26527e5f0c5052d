package analysis

import (
	"math"

	"github.com/san-kum/rigidsim/internal/sim"
)

// Divergence returns, per sample, the root mean square distance between the
// body positions of two runs. Runs are compared up to the shorter one and
// bodies up to the smaller count. Two runs of a deterministic world from
// the same input yield all zeros.
func Divergence(a, b []sim.Sample) []float64 {
	n := min(len(a), len(b))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		bodies := min(len(a[i].Bodies), len(b[i].Bodies))
		if bodies == 0 {
			continue
		}
		sum := 0.0
		for k := 0; k < bodies; k++ {
			d := a[i].Bodies[k].Position.Sub(b[i].Bodies[k].Position)
			sum += d.Dot(d)
		}
		out[i] = math.Sqrt(sum / float64(bodies))
	}
	return out
}

// SeparationRate fits the mean exponential growth rate of a divergence
// series sampled every interval seconds. Samples below floor are ignored;
// a result above zero means small perturbations grow.
func SeparationRate(div []float64, interval, floor float64) float64 {
	first := -1
	for i, d := range div {
		if d > floor {
			first = i
			break
		}
	}
	if first < 0 || interval <= 0 {
		return 0
	}

	d0 := div[first]
	sumLog := 0.0
	count := 0
	for i := first + 1; i < len(div); i++ {
		if div[i] <= floor {
			continue
		}
		sumLog += math.Log(div[i]/d0) / (float64(i-first) * interval)
		count++
	}
	if count == 0 {
		return 0
	}
	return sumLog / float64(count)
}

// Identical reports whether two runs sampled the same body states.
func Identical(a, b []sim.Sample) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i].Bodies) != len(b[i].Bodies) {
			return false
		}
		for k := range a[i].Bodies {
			if a[i].Bodies[k] != b[i].Bodies[k] {
				return false
			}
		}
	}
	return true
}
