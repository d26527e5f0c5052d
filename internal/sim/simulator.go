package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/world"
)

type Simulator struct {
	world     *world.World
	driver    Driver
	metrics   []Metric
	observers []Observer

	step int
	time float64
}

// New wraps w. driver may be nil.
func New(w *world.World, driver Driver) *Simulator {
	return &Simulator{
		world:     w,
		driver:    driver,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) World() *world.World { return s.world }

// Time returns the simulated time so far.
func (s *Simulator) Time() float64 { return s.time }

// Steps returns the number of steps taken so far.
func (s *Simulator) Steps() int { return s.step }

// Step advances the world once, runs the metrics and observers and checks
// that every body stayed finite.
func (s *Simulator) Step(dt float64) error {
	if s.driver != nil {
		s.driver.BeforeStep(s.step)
	}
	if err := s.world.Step(dt); err != nil {
		return &StepError{Step: s.step, Time: s.time, Err: err}
	}
	s.step++
	s.time = float64(s.step) * dt

	for _, m := range s.metrics {
		m.Observe(s.world, s.time)
	}
	for _, obs := range s.observers {
		obs.OnStep(s.world, s.step, s.time)
	}
	if err := s.checkFinite(); err != nil {
		return &StepError{Step: s.step, Time: s.time, Err: err}
	}
	return nil
}

func (s *Simulator) checkFinite() error {
	for _, b := range s.world.Bodies() {
		if !geom.IsFinite(b.Position()) || !geom.IsFinite(b.LinearVelocity()) || !geom.IsFinite(b.AngularVelocity()) {
			return fmt.Errorf("%w: body %d", ErrDiverged, b.ID())
		}
	}
	return nil
}

// Run steps for cfg.Duration, sampling every cfg.SampleEvery steps. The
// context is checked between steps; on cancellation the partial result is
// returned with the context error.
func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	every := max(cfg.SampleEvery, 1)
	steps := int(math.Round(cfg.Duration / cfg.Dt))
	result := &Result{
		Samples: make([]Sample, 0, steps/every+2),
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	start := time.Now()
	result.Samples = append(result.Samples, s.Sample())

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			result.Elapsed = time.Since(start)
			s.collect(result)
			return result, ctx.Err()
		default:
		}

		if err := s.Step(cfg.Dt); err != nil {
			result.Elapsed = time.Since(start)
			s.collect(result)
			return result, err
		}
		result.StepsTaken++

		if (i+1)%every == 0 || i == steps-1 {
			result.Samples = append(result.Samples, s.Sample())
		}
	}

	result.Elapsed = time.Since(start)
	s.collect(result)
	return result, nil
}

func (s *Simulator) collect(result *Result) {
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 || math.IsInf(cfg.Dt, 0) || math.IsNaN(cfg.Dt) {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 || math.IsNaN(cfg.Duration) {
		return fmt.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	if cfg.SampleEvery < 0 {
		return fmt.Errorf("sample interval must be non-negative, got %d", cfg.SampleEvery)
	}
	return nil
}

// Sample snapshots the dynamic bodies and the world counters.
func (s *Simulator) Sample() Sample {
	st := s.world.Stats()
	out := Sample{
		Step:            s.step,
		Time:            s.time,
		KineticEnergy:   KineticEnergy(s.world),
		PotentialEnergy: PotentialEnergy(s.world),
		Islands:         st.Islands,
		Manifolds:       st.Manifolds,
		MinSeparation:   st.MinSeparation,
	}
	for _, b := range s.world.Bodies() {
		if b.Type() != dynamics.Dynamic {
			continue
		}
		if !b.IsSleeping() {
			out.Awake++
		}
		out.Bodies = append(out.Bodies, BodySample{
			ID:              b.ID(),
			Position:        b.Position(),
			Orientation:     b.Orientation(),
			LinearVelocity:  b.LinearVelocity(),
			AngularVelocity: b.AngularVelocity(),
			Sleeping:        b.IsSleeping(),
		})
	}
	return out
}

// KineticEnergy sums the kinetic energy of the dynamic bodies.
func KineticEnergy(w *world.World) float64 {
	e := 0.0
	for _, b := range w.Bodies() {
		e += b.KineticEnergy()
	}
	return e
}

// PotentialEnergy is the gravitational energy of the dynamic bodies
// relative to the origin.
func PotentialEnergy(w *world.World) float64 {
	g := w.Settings().Gravity
	e := 0.0
	for _, b := range w.Bodies() {
		if b.Type() != dynamics.Dynamic {
			continue
		}
		e -= b.Mass() * b.GravityScale() * g.Dot(b.Position())
	}
	return e
}
