package control

import (
	"math"
	"testing"
)

func TestPIDSign(t *testing.T) {
	p := NewPID(10, 0.1, 5, 0)
	if u := p.Update(1, 0.01); u >= 0 {
		t.Errorf("expected negative output above the target, got %f", u)
	}
	if u := p.Update(-1, 0.01); u <= 0 {
		t.Errorf("expected positive output below the target, got %f", u)
	}
}

func TestPIDDerivativeOnMeasurement(t *testing.T) {
	p := NewPID(0, 0, 1, 0)
	p.Update(0, 0.1)
	if u := p.Update(1, 0.1); math.Abs(u+10) > 1e-12 {
		t.Errorf("expected -10 from a rising measurement, got %f", u)
	}
	p.Target = 5
	if u := p.Update(1, 0.1); u != 0 {
		t.Errorf("setpoint change moved the derivative term: %f", u)
	}
}

func TestPIDLimitStopsWindup(t *testing.T) {
	p := NewPID(1, 1, 0, 100)
	p.Limit = 2
	for i := 0; i < 50; i++ {
		if u := p.Update(0, 0.1); u != 2 {
			t.Fatalf("step %d: expected saturated output 2, got %f", i, u)
		}
	}
	if p.integral != 0 {
		t.Errorf("integral grew while saturated: %f", p.integral)
	}
}

// a unit mass driven by the controller settles on the target
func TestPIDDrivesMassToTarget(t *testing.T) {
	p := NewPID(25, 5, 10, 3)
	x, v, dt := 0.0, 0.0, 0.01
	for i := 0; i < 3000; i++ {
		v += p.Update(x, dt) * dt
		x += v * dt
	}
	if math.Abs(x-3) > 0.01 {
		t.Errorf("expected to settle at 3, got %f", x)
	}
}

func TestPIDReset(t *testing.T) {
	p := NewPID(1, 1, 1, 1)
	p.Update(0, 0.1)
	p.Update(0, 0.1)
	p.Reset()
	if p.integral != 0 || !p.first {
		t.Error("reset left state behind")
	}
	if got := p.Params()["Kd"]; got != 1 {
		t.Errorf("expected Kd 1, got %f", got)
	}
}
