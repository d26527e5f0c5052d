package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
	"github.com/san-kum/rigidsim/internal/world"
)

// newFallingWorld returns a world with one unit sphere at height 10 and no
// ground.
func newFallingWorld(t *testing.T) (*world.World, *dynamics.Body) {
	t.Helper()
	s := world.DefaultSettings()
	s.Workers = 1
	w, err := world.New(s)
	if err != nil {
		t.Fatal(err)
	}
	def := dynamics.DefaultBodyDef()
	def.Position = mgl64.Vec3{0, 10, 0}
	b, err := w.CreateBody(def)
	if err != nil {
		t.Fatal(err)
	}
	sphere, err := shape.NewSphere(0.5)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddCollider(b, dynamics.ColliderDef{Shape: sphere, Local: geom.Identity()}); err != nil {
		t.Fatal(err)
	}
	return w, b
}

type countingDriver struct{ calls []int }

func (d *countingDriver) BeforeStep(step int) { d.calls = append(d.calls, step) }

func TestSimulatorRun(t *testing.T) {
	w, b := newFallingWorld(t)
	driver := &countingDriver{}
	sim := New(w, driver)

	result, err := sim.Run(context.Background(), Config{Dt: 0.1, Duration: 1.0, SampleEvery: 1})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(result.Samples) != 11 {
		t.Errorf("expected 11 samples, got %d", len(result.Samples))
	}
	if result.StepsTaken != 10 {
		t.Errorf("expected 10 steps, got %d", result.StepsTaken)
	}
	if len(driver.calls) != 10 || driver.calls[0] != 0 || driver.calls[9] != 9 {
		t.Errorf("driver called with %v", driver.calls)
	}

	last := result.Samples[len(result.Samples)-1]
	if math.Abs(last.Time-1.0) > 1e-12 {
		t.Errorf("expected final time 1.0, got %f", last.Time)
	}
	if last.Bodies[0].Position != b.Position() {
		t.Errorf("sample does not match body state")
	}
	// semi-implicit Euler falls 0.5*g*dt^2*n*(n+1) in n steps
	want := 10 - 0.5*9.81*0.01*10*11
	if math.Abs(b.Position().Y()-want) > 1e-9 {
		t.Errorf("expected height %f, got %f", want, b.Position().Y())
	}
}

func TestSimulatorSampling(t *testing.T) {
	w, _ := newFallingWorld(t)
	result, err := New(w, nil).Run(context.Background(), Config{Dt: 0.01, Duration: 1.0, SampleEvery: 30})
	if err != nil {
		t.Fatal(err)
	}
	// initial, steps 30, 60, 90 and the final step 100
	if len(result.Samples) != 5 {
		t.Errorf("expected 5 samples, got %d", len(result.Samples))
	}
	if got := result.Samples[len(result.Samples)-1].Step; got != 100 {
		t.Errorf("expected last sample at step 100, got %d", got)
	}
	if times := result.Times(); times[1] != result.Samples[1].Time {
		t.Errorf("Times out of sync: %v", times)
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	w, _ := newFallingWorld(t)
	sim := New(w, nil)

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Duration: 1.0}},
		{"negative dt", Config{Dt: -0.1, Duration: 1.0}},
		{"zero duration", Config{Dt: 0.1, Duration: 0}},
		{"negative duration", Config{Dt: 0.1, Duration: -1.0}},
		{"negative sample interval", Config{Dt: 0.1, Duration: 1.0, SampleEvery: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sim.Run(context.Background(), tt.cfg)
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestSimulatorCancel(t *testing.T) {
	w, _ := newFallingWorld(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := New(w, nil).Run(ctx, Config{Dt: 0.01, Duration: 1.0})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result == nil || result.StepsTaken != 0 || len(result.Samples) != 1 {
		t.Errorf("expected the initial sample only, got %+v", result)
	}
}

type testMetric struct {
	count int
	sum   float64
}

func (m *testMetric) Name() string { return "test" }
func (m *testMetric) Observe(w *world.World, t float64) {
	m.count++
	m.sum += t
}
func (m *testMetric) Value() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}
func (m *testMetric) Reset() {
	m.count = 0
	m.sum = 0
}

func TestSimulatorMetrics(t *testing.T) {
	w, _ := newFallingWorld(t)
	sim := New(w, nil)

	metric := &testMetric{count: 7}
	sim.AddMetric(metric)

	result, err := sim.Run(context.Background(), Config{Dt: 0.1, Duration: 1.0})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, ok := result.Metrics["test"]; !ok {
		t.Error("metric not found in result")
	}
	if metric.count != 10 {
		t.Errorf("expected 10 observations after reset, got %d", metric.count)
	}
}

type stepRecorder struct{ steps []int }

func (o *stepRecorder) OnStep(w *world.World, step int, t float64) { o.steps = append(o.steps, step) }

func TestSimulatorObservers(t *testing.T) {
	w, _ := newFallingWorld(t)
	sim := New(w, nil)
	obs := &stepRecorder{}
	sim.AddObserver(obs)
	for i := 0; i < 3; i++ {
		if err := sim.Step(0.01); err != nil {
			t.Fatal(err)
		}
	}
	if len(obs.steps) != 3 || obs.steps[2] != 3 {
		t.Errorf("observer saw %v", obs.steps)
	}
	if sim.Steps() != 3 || math.Abs(sim.Time()-0.03) > 1e-15 {
		t.Errorf("expected 3 steps at t=0.03, got %d at %f", sim.Steps(), sim.Time())
	}
}

func TestStepErrorWrapsWorldError(t *testing.T) {
	w, _ := newFallingWorld(t)
	err := New(w, nil).Step(math.NaN())
	var se *StepError
	if !errors.As(err, &se) || se.Step != 0 {
		t.Fatalf("expected StepError at step 0, got %v", err)
	}
	if !errors.Is(err, world.ErrInvalidTimeStep) {
		t.Errorf("expected world.ErrInvalidTimeStep in chain, got %v", err)
	}
}

func TestStepDetectsDivergence(t *testing.T) {
	w, b := newFallingWorld(t)
	sim := New(w, nil)
	if err := sim.checkFinite(); err != nil {
		t.Fatalf("fresh world reported %v", err)
	}
	b.SetLinearVelocity(mgl64.Vec3{math.Inf(1), 0, 0})
	if err := sim.checkFinite(); !errors.Is(err, ErrDiverged) {
		t.Errorf("expected ErrDiverged, got %v", err)
	}
}

func TestEnergy(t *testing.T) {
	w, b := newFallingWorld(t)
	m := b.Mass()
	if got := PotentialEnergy(w); math.Abs(got-m*9.81*10) > 1e-9 {
		t.Errorf("expected potential %f, got %f", m*9.81*10, got)
	}
	b.SetLinearVelocity(mgl64.Vec3{0, -2, 0})
	if got := KineticEnergy(w); math.Abs(got-0.5*m*4) > 1e-9 {
		t.Errorf("expected kinetic %f, got %f", 0.5*m*4, got)
	}
}

func TestEnsemble(t *testing.T) {
	heights := []float64{5, 10, 20}
	builds := make([]func() (*Simulator, error), len(heights))
	for i, h := range heights {
		h := h
		builds[i] = func() (*Simulator, error) {
			w, b := newFallingWorld(t)
			b.SetTransform(mgl64.Vec3{0, h, 0}, mgl64.QuatIdent())
			return New(w, nil), nil
		}
	}

	results, err := NewEnsemble(2, builds...).Run(context.Background(), Config{Dt: 0.01, Duration: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	for i, h := range heights {
		first := results[i].Samples[0].Bodies[0].Position.Y()
		if first != h {
			t.Errorf("result %d out of order: starts at %f, want %f", i, first, h)
		}
	}
}

func TestEnsembleStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	builds := []func() (*Simulator, error){
		func() (*Simulator, error) { return nil, boom },
	}
	if _, err := NewEnsemble(1, builds...).Run(context.Background(), Config{Dt: 0.01, Duration: 0.1}); !errors.Is(err, boom) {
		t.Errorf("expected build error, got %v", err)
	}
}
