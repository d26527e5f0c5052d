package world

import (
	"fmt"
	"math"
	"runtime"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/geom"
)

// Settings configures a world. The zero value is not usable; start from
// DefaultSettings.
type Settings struct {
	Gravity mgl64.Vec3 `yaml:"gravity"`

	VelocityIterations int `yaml:"velocity_iterations"`
	PositionIterations int `yaml:"position_iterations"`

	WarmStarting    bool    `yaml:"warm_starting"`
	WarmStartFactor float64 `yaml:"warm_start_factor"`
	// FrictionFromPreviousStep bounds friction with the previous step's
	// normal impulse instead of the running one.
	FrictionFromPreviousStep bool `yaml:"friction_from_previous_step"`

	Baumgarte            float64 `yaml:"baumgarte"`
	LinearSlop           float64 `yaml:"linear_slop"`
	AngularSlop          float64 `yaml:"angular_slop"`
	MaxCorrection        float64 `yaml:"max_correction"`
	RestitutionThreshold float64 `yaml:"restitution_threshold"`
	MaxTranslation       float64 `yaml:"max_translation"`
	MaxRotation          float64 `yaml:"max_rotation"`

	SleepingEnabled      bool    `yaml:"sleeping_enabled"`
	SleepLinearVelocity  float64 `yaml:"sleep_linear_velocity"`
	SleepAngularVelocity float64 `yaml:"sleep_angular_velocity"`
	TimeToSleep          float64 `yaml:"time_to_sleep"`

	DefaultFriction    float64 `yaml:"default_friction"`
	DefaultRestitution float64 `yaml:"default_restitution"`

	// AABBMargin fattens broad phase boxes; DisplacementMultiplier scales
	// the predicted motion added to them.
	AABBMargin             float64 `yaml:"aabb_margin"`
	DisplacementMultiplier float64 `yaml:"displacement_multiplier"`

	// Workers bounds the goroutines solving islands; 1 solves inline.
	Workers int `yaml:"workers"`
}

// DefaultSettings returns the settings used by New when none are given.
func DefaultSettings() Settings {
	sc := dynamics.DefaultStepConfig(1.0 / 60)
	m := dynamics.DefaultMaterial()
	return Settings{
		Gravity:                sc.Gravity,
		VelocityIterations:     sc.VelocityIterations,
		PositionIterations:     sc.PositionIterations,
		WarmStarting:           sc.WarmStarting,
		WarmStartFactor:        sc.WarmStartFactor,
		Baumgarte:              sc.Baumgarte,
		LinearSlop:             sc.LinearSlop,
		AngularSlop:            sc.AngularSlop,
		MaxCorrection:          sc.MaxCorrection,
		RestitutionThreshold:   sc.RestitutionThreshold,
		MaxTranslation:         sc.MaxTranslation,
		MaxRotation:            sc.MaxRotation,
		SleepingEnabled:        sc.AllowSleep,
		SleepLinearVelocity:    sc.SleepLinearVelocity,
		SleepAngularVelocity:   sc.SleepAngularVelocity,
		TimeToSleep:            sc.TimeToSleep,
		DefaultFriction:        m.Friction,
		DefaultRestitution:     m.Restitution,
		AABBMargin:             0.1,
		DisplacementMultiplier: 1.7,
		Workers:                runtime.GOMAXPROCS(0),
	}
}

// Validate reports the first setting the solver cannot run with.
func (s Settings) Validate() error {
	if !geom.IsFinite(s.Gravity) {
		return fmt.Errorf("%w: non-finite gravity", ErrInvalidSettings)
	}
	if s.VelocityIterations < 1 {
		return fmt.Errorf("%w: velocity iterations must be at least 1, got %d", ErrInvalidSettings, s.VelocityIterations)
	}
	if s.PositionIterations < 0 {
		return fmt.Errorf("%w: position iterations must be non-negative, got %d", ErrInvalidSettings, s.PositionIterations)
	}
	if s.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidSettings, s.Workers)
	}
	checks := []struct {
		name string
		v    float64
	}{
		{"warm start factor", s.WarmStartFactor},
		{"baumgarte", s.Baumgarte},
		{"linear slop", s.LinearSlop},
		{"angular slop", s.AngularSlop},
		{"max correction", s.MaxCorrection},
		{"restitution threshold", s.RestitutionThreshold},
		{"sleep linear velocity", s.SleepLinearVelocity},
		{"sleep angular velocity", s.SleepAngularVelocity},
		{"time to sleep", s.TimeToSleep},
		{"default friction", s.DefaultFriction},
		{"default restitution", s.DefaultRestitution},
		{"aabb margin", s.AABBMargin},
		{"displacement multiplier", s.DisplacementMultiplier},
	}
	for _, c := range checks {
		if c.v < 0 || math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return fmt.Errorf("%w: %s must be finite and non-negative, got %f", ErrInvalidSettings, c.name, c.v)
		}
	}
	if s.WarmStartFactor > 1 || s.Baumgarte > 1 || s.DefaultRestitution > 1 {
		return fmt.Errorf("%w: warm start factor, baumgarte and restitution are fractions", ErrInvalidSettings)
	}
	if s.MaxTranslation <= 0 || s.MaxRotation <= 0 {
		return fmt.Errorf("%w: max translation and rotation must be positive", ErrInvalidSettings)
	}
	return nil
}

// DefaultMaterial is the material given to colliders that set none.
func (s Settings) DefaultMaterial() dynamics.Material {
	return dynamics.Material{Friction: s.DefaultFriction, Restitution: s.DefaultRestitution, Density: 1}
}

func (s Settings) stepConfig(dt float64) dynamics.StepConfig {
	return dynamics.StepConfig{
		Dt:                       dt,
		Gravity:                  s.Gravity,
		VelocityIterations:       s.VelocityIterations,
		PositionIterations:       s.PositionIterations,
		WarmStarting:             s.WarmStarting,
		WarmStartFactor:          s.WarmStartFactor,
		FrictionFromPreviousStep: s.FrictionFromPreviousStep,
		Baumgarte:                s.Baumgarte,
		LinearSlop:               s.LinearSlop,
		AngularSlop:              s.AngularSlop,
		MaxCorrection:            s.MaxCorrection,
		RestitutionThreshold:     s.RestitutionThreshold,
		MaxTranslation:           s.MaxTranslation,
		MaxRotation:              s.MaxRotation,
		AllowSleep:               s.SleepingEnabled,
		SleepLinearVelocity:      s.SleepLinearVelocity,
		SleepAngularVelocity:     s.SleepAngularVelocity,
		TimeToSleep:              s.TimeToSleep,
	}
}
