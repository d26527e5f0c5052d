package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/sim"
)

func TestDominantFrequency(t *testing.T) {
	// 2 Hz sine sampled at 100 Hz for 3 seconds
	data := make([]float64, 300)
	for i := range data {
		data[i] = 5 + math.Sin(2*math.Pi*2*float64(i)*0.01)
	}
	if got := DominantFrequency(data, 0.01); math.Abs(got-2) > 1e-9 {
		t.Errorf("expected 2 Hz, got %f", got)
	}
}

func TestPowerSpectrumRemovesMean(t *testing.T) {
	data := []float64{3, 3, 3, 3, 3}
	for i, v := range PowerSpectrum(data) {
		if v > 1e-12 {
			t.Errorf("bin %d: expected flat spectrum, got %f", i, v)
		}
	}
	if DominantFrequency(data, 0.1) != 0 {
		t.Error("constant signal has no dominant frequency")
	}
	if PowerSpectrum([]float64{1}) != nil {
		t.Error("expected nil spectrum for a single sample")
	}
}

func samplesAt(heights ...float64) []sim.Sample {
	out := make([]sim.Sample, len(heights))
	for i, h := range heights {
		out[i] = sim.Sample{
			Step:          i,
			KineticEnergy: h,
			Bodies: []sim.BodySample{{
				Position:       mgl64.Vec3{0, h, 0},
				LinearVelocity: mgl64.Vec3{h, 0, 0},
			}},
		}
	}
	return out
}

func TestChannel(t *testing.T) {
	s := samplesAt(1, 2, 3)
	if got := Channel(s, BodyHeight(0)); got[2] != 3 {
		t.Errorf("unexpected heights %v", got)
	}
	if got := Channel(s, BodyHeight(4)); got[0] != 0 {
		t.Errorf("missing body should read 0, got %v", got)
	}
	if got := Channel(s, BodySpeed(0)); got[1] != 2 {
		t.Errorf("unexpected speeds %v", got)
	}
}

func TestDivergence(t *testing.T) {
	a := samplesAt(1, 2, 3)
	b := samplesAt(1, 2.5, 5, 9)
	div := Divergence(a, b)
	want := []float64{0, 0.5, 2}
	if len(div) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(div))
	}
	for i := range want {
		if math.Abs(div[i]-want[i]) > 1e-12 {
			t.Errorf("sample %d: expected %f, got %f", i, want[i], div[i])
		}
	}
	if Identical(a, b) || !Identical(a, samplesAt(1, 2, 3)) {
		t.Error("Identical disagrees with the sample contents")
	}
}

func TestSeparationRate(t *testing.T) {
	div := make([]float64, 20)
	for i := range div {
		div[i] = 1e-6 * math.Exp(0.5*float64(i)*0.1)
	}
	if got := SeparationRate(div, 0.1, 1e-9); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("expected rate 0.5, got %f", got)
	}
	if SeparationRate(make([]float64, 5), 0.1, 1e-9) != 0 {
		t.Error("identical runs should not separate")
	}
}

func TestPhasePortraitASCII(t *testing.T) {
	p := NewPhasePortrait(samplesAt(-1, 0, 1), BodySpeed(0), BodyHeight(0))
	out := p.ASCII(20, 10)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 10 {
		t.Fatalf("expected 10 rows, got %d", len(lines))
	}
	if !strings.Contains(out, "•") || !strings.Contains(out, "─") {
		t.Errorf("expected points and an axis:\n%s", out)
	}
	if (&PhasePortrait{}).ASCII(20, 10) != "" {
		t.Error("empty portrait should render nothing")
	}
}
