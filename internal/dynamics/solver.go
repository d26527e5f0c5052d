package dynamics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
)

// StepConfig carries the per-step solver parameters.
type StepConfig struct {
	Dt                 float64
	Gravity            mgl64.Vec3
	VelocityIterations int
	PositionIterations int

	WarmStarting    bool
	WarmStartFactor float64

	// FrictionFromPreviousStep bounds friction by the normal impulse the
	// contact ended the previous step with instead of the running one.
	FrictionFromPreviousStep bool

	Baumgarte            float64
	LinearSlop           float64
	AngularSlop          float64
	MaxCorrection        float64
	RestitutionThreshold float64
	MaxTranslation       float64
	MaxRotation          float64

	AllowSleep           bool
	SleepLinearVelocity  float64
	SleepAngularVelocity float64
	TimeToSleep          float64
}

// DefaultStepConfig returns the solver defaults for a step of dt seconds.
func DefaultStepConfig(dt float64) StepConfig {
	return StepConfig{
		Dt:                   dt,
		Gravity:              mgl64.Vec3{0, -9.81, 0},
		VelocityIterations:   10,
		PositionIterations:   5,
		WarmStarting:         true,
		WarmStartFactor:      1,
		Baumgarte:            0.2,
		LinearSlop:           0.005,
		AngularSlop:          2 * math.Pi / 180,
		MaxCorrection:        0.2,
		RestitutionThreshold: 1,
		MaxTranslation:       2,
		MaxRotation:          0.5 * math.Pi,
		AllowSleep:           true,
		SleepLinearVelocity:  0.02,
		SleepAngularVelocity: 3 * math.Pi / 180,
		TimeToSleep:          1,
	}
}

// BodyState is the solver's working copy of a body.
type BodyState struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
	V           mgl64.Vec3
	W           mgl64.Vec3
	InvMass     float64
	InvInertia  mgl64.Mat3 // world frame

	invInertiaLocal mgl64.Mat3
}

func stateOf(b *Body) BodyState {
	s := BodyState{
		Position:    b.position,
		Orientation: b.orientation,
		V:           b.linearVelocity,
		W:           b.angularVelocity,
	}
	if b.typ == Dynamic {
		s.InvMass = b.invMass
		s.InvInertia = b.invInertiaWorld
		s.invInertiaLocal = b.invInertiaLocal
	}
	return s
}

func (s *BodyState) updateInertia() {
	r := s.Orientation.Mat4().Mat3()
	s.InvInertia = r.Mul3(s.invInertiaLocal).Mul3(r.Transpose())
}

// velocityAt returns the velocity of the material point at offset r.
func (s *BodyState) velocityAt(r mgl64.Vec3) mgl64.Vec3 {
	return s.V.Add(s.W.Cross(r))
}

// applyImpulse adds impulse p at offset r.
func (s *BodyState) applyImpulse(p, r mgl64.Vec3) {
	s.V = s.V.Add(p.Mul(s.InvMass))
	s.W = s.W.Add(s.InvInertia.Mul3x1(r.Cross(p)))
}

// applyPositionImpulse moves the body by a pseudo impulse at offset r.
func (s *BodyState) applyPositionImpulse(p, r mgl64.Vec3) {
	s.Position = s.Position.Add(p.Mul(s.InvMass))
	s.rotate(s.InvInertia.Mul3x1(r.Cross(p)))
}

// rotate applies the small rotation vector theta and refreshes the world
// inertia.
func (s *BodyState) rotate(theta mgl64.Vec3) {
	if theta.LenSqr() == 0 {
		return
	}
	s.Orientation = geom.IntegrateRotation(s.Orientation, theta, 1)
	s.updateInertia()
}

// SolverData is handed to joints during an island solve.
type SolverData struct {
	Step   *StepConfig
	InvDt  float64
	States []BodyState
}

// warmFactor is the share of the stored impulses applied before iterating.
func (d *SolverData) warmFactor() float64 {
	if !d.Step.WarmStarting {
		return 0
	}
	return d.Step.WarmStartFactor
}

// effectiveMass returns 1/k, or 0 when k is too small to invert.
func effectiveMass(k float64) float64 {
	if k <= geom.Epsilon || math.IsNaN(k) {
		return 0
	}
	return 1 / k
}

// pointMass3 is the 3x3 mass matrix of a point constraint:
// (mA + mB) I - [rA] IA [rA] - [rB] IB [rB].
func pointMass3(a, b *BodyState, rA, rB mgl64.Vec3) mgl64.Mat3 {
	sa, sb := geom.Skew(rA), geom.Skew(rB)
	k := mgl64.Ident3().Mul(a.InvMass + b.InvMass)
	k = k.Sub(sa.Mul3(a.InvInertia).Mul3(sa))
	k = k.Sub(sb.Mul3(b.InvInertia).Mul3(sb))
	return k
}

// invert3 returns the inverse of k, or false when it is singular.
func invert3(k mgl64.Mat3) (mgl64.Mat3, bool) {
	if det := k.Det(); math.Abs(det) <= geom.Epsilon || math.IsNaN(det) {
		return mgl64.Mat3{}, false
	}
	return k.Inv(), true
}

// angularMass of a row along axis: 1 / (axis . (IA + IB) axis).
func angularMass(a, b *BodyState, axis mgl64.Vec3) float64 {
	return effectiveMass(axis.Dot(a.InvInertia.Mul3x1(axis)) + axis.Dot(b.InvInertia.Mul3x1(axis)))
}

// rowMass is 1/k for a linear row along u at offsets rA, rB.
func rowMass(a, b *BodyState, rA, rB, u mgl64.Vec3) float64 {
	ra, rb := rA.Cross(u), rB.Cross(u)
	k := a.InvMass + b.InvMass + ra.Dot(a.InvInertia.Mul3x1(ra)) + rb.Dot(b.InvInertia.Mul3x1(rb))
	return effectiveMass(k)
}
