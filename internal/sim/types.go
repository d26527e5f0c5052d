package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/world"
)

// ErrDiverged reports a body whose state left the finite range.
var ErrDiverged = errors.New("sim: body state is not finite")

// Driver is called before every step, for scenes that apply loads over
// time.
type Driver interface {
	BeforeStep(step int)
}

type Metric interface {
	Name() string
	Observe(w *world.World, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(w *world.World, step int, t float64)
}

type Config struct {
	Dt          float64
	Duration    float64
	SampleEvery int
}

type BodySample struct {
	ID              int        `json:"id"`
	Position        mgl64.Vec3 `json:"position"`
	Orientation     mgl64.Quat `json:"orientation"`
	LinearVelocity  mgl64.Vec3 `json:"linear_velocity"`
	AngularVelocity mgl64.Vec3 `json:"angular_velocity"`
	Sleeping        bool       `json:"sleeping"`
}

// Sample is a snapshot of the dynamic bodies and world counters.
type Sample struct {
	Step            int          `json:"step"`
	Time            float64      `json:"time"`
	KineticEnergy   float64      `json:"kinetic_energy"`
	PotentialEnergy float64      `json:"potential_energy"`
	Awake           int          `json:"awake"`
	Islands         int          `json:"islands"`
	Manifolds       int          `json:"manifolds"`
	MinSeparation   float64      `json:"min_separation"`
	Bodies          []BodySample `json:"bodies"`
}

func (s Sample) TotalEnergy() float64 { return s.KineticEnergy + s.PotentialEnergy }

type Result struct {
	Samples    []Sample
	Metrics    map[string]float64
	StepsTaken int
	Elapsed    time.Duration
}

// Times returns the sample times.
func (r *Result) Times() []float64 {
	out := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = s.Time
	}
	return out
}

// StepError carries the step at which a run failed.
type StepError struct {
	Step int
	Time float64
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
