package dynamics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
)

// JointType tags the joint variants.
type JointType uint8

const (
	BallSocketJoint JointType = iota
	FixedJoint
	DistanceJoint
)

func (t JointType) String() string {
	switch t {
	case BallSocketJoint:
		return "ball-socket"
	case FixedJoint:
		return "fixed"
	case DistanceJoint:
		return "distance"
	}
	return "unknown"
}

// ParseJointType maps a config name to a joint type.
func ParseJointType(s string) (JointType, error) {
	switch s {
	case "ball-socket", "ball", "":
		return BallSocketJoint, nil
	case "fixed":
		return FixedJoint, nil
	case "distance":
		return DistanceJoint, nil
	}
	return 0, fmt.Errorf("%w: unknown joint type %q", ErrInvalidJoint, s)
}

// JointDef describes a joint. Ball-socket and fixed joints use Anchor;
// distance joints use AnchorA and AnchorB with MinLength and MaxLength
// (both zero means the current anchor distance).
type JointDef struct {
	Type             JointType
	BodyA, BodyB     *Body
	Anchor           mgl64.Vec3
	AnchorA          mgl64.Vec3
	AnchorB          mgl64.Vec3
	MinLength        float64
	MaxLength        float64
	CollideConnected bool
}

// Joint is a constraint between two bodies solved inside an island.
//
// Prepare is called once per step with the island state indices of the two
// bodies; the other methods may only be called after it.
type Joint interface {
	ID() int
	Type() JointType
	Bodies() (*Body, *Body)
	CollideConnected() bool

	Prepare(d *SolverData, ia, ib int)
	WarmStart(d *SolverData)
	SolveVelocity(d *SolverData)
	SolvePosition(d *SolverData) bool

	// WorldAnchors returns the anchor points on each body.
	WorldAnchors() (mgl64.Vec3, mgl64.Vec3)
	// PositionError is the current constraint violation in metres.
	PositionError() float64
}

// NewJoint builds the joint variant selected by def.Type.
func NewJoint(id int, def JointDef) (Joint, error) {
	if def.BodyA == nil || def.BodyB == nil {
		return nil, fmt.Errorf("%w: joint needs two bodies", ErrInvalidJoint)
	}
	if def.BodyA == def.BodyB {
		return nil, fmt.Errorf("%w: joint connects body %d to itself", ErrInvalidJoint, def.BodyA.id)
	}
	if def.BodyA.typ != Dynamic && def.BodyB.typ != Dynamic {
		return nil, fmt.Errorf("%w: joint needs at least one dynamic body", ErrInvalidJoint)
	}
	base := jointBase{id: id, a: def.BodyA, b: def.BodyB, collide: def.CollideConnected}
	switch def.Type {
	case BallSocketJoint:
		if !geom.IsFinite(def.Anchor) {
			return nil, fmt.Errorf("%w: non-finite anchor", ErrInvalidJoint)
		}
		base.setAnchors(def.Anchor, def.Anchor)
		return &BallSocket{jointBase: base}, nil
	case FixedJoint:
		if !geom.IsFinite(def.Anchor) {
			return nil, fmt.Errorf("%w: non-finite anchor", ErrInvalidJoint)
		}
		base.setAnchors(def.Anchor, def.Anchor)
		rel := def.BodyA.orientation.Conjugate().Mul(def.BodyB.orientation).Normalize()
		return &Fixed{jointBase: base, relative: rel}, nil
	case DistanceJoint:
		return newDistance(base, def)
	}
	return nil, fmt.Errorf("%w: unknown joint type %d", ErrInvalidJoint, def.Type)
}

type jointBase struct {
	id      int
	a, b    *Body
	collide bool

	localA, localB mgl64.Vec3
	ia, ib         int
	rA, rB         mgl64.Vec3
}

func (j *jointBase) setAnchors(wa, wb mgl64.Vec3) {
	j.localA = j.a.Transform().ApplyInverse(wa)
	j.localB = j.b.Transform().ApplyInverse(wb)
}

func (j *jointBase) ID() int                { return j.id }
func (j *jointBase) Bodies() (*Body, *Body) { return j.a, j.b }
func (j *jointBase) CollideConnected() bool { return j.collide }

func (j *jointBase) WorldAnchors() (mgl64.Vec3, mgl64.Vec3) {
	return j.a.Transform().Apply(j.localA), j.b.Transform().Apply(j.localB)
}

func (j *jointBase) states(d *SolverData) (*BodyState, *BodyState) {
	return &d.States[j.ia], &d.States[j.ib]
}

// bind stores the island indices and the current lever arms.
func (j *jointBase) bind(d *SolverData, ia, ib int) {
	j.ia, j.ib = ia, ib
	a, b := j.states(d)
	j.rA = a.Orientation.Rotate(j.localA)
	j.rB = b.Orientation.Rotate(j.localB)
}

// BallSocket pins an anchor on each body to the same point.
type BallSocket struct {
	jointBase
	mass    mgl64.Mat3
	impulse mgl64.Vec3
}

func (j *BallSocket) Type() JointType { return BallSocketJoint }

func (j *BallSocket) Prepare(d *SolverData, ia, ib int) {
	j.bind(d, ia, ib)
	a, b := j.states(d)
	j.mass, _ = invert3(pointMass3(a, b, j.rA, j.rB))
	j.impulse = j.impulse.Mul(d.warmFactor())
}

func (j *BallSocket) WarmStart(d *SolverData) {
	a, b := j.states(d)
	a.applyImpulse(j.impulse.Mul(-1), j.rA)
	b.applyImpulse(j.impulse, j.rB)
}

func (j *BallSocket) SolveVelocity(d *SolverData) {
	j.impulse = j.impulse.Add(solvePoint(d, &j.jointBase, j.mass))
}

func (j *BallSocket) SolvePosition(d *SolverData) bool {
	return solvePointPosition(d, &j.jointBase) <= d.Step.LinearSlop
}

func (j *BallSocket) PositionError() float64 {
	pa, pb := j.WorldAnchors()
	return pb.Sub(pa).Len()
}

// solvePoint drives the anchor velocities together and returns the impulse
// applied to B.
func solvePoint(d *SolverData, j *jointBase, mass mgl64.Mat3) mgl64.Vec3 {
	a, b := j.states(d)
	cdot := b.velocityAt(j.rB).Sub(a.velocityAt(j.rA))
	p := mass.Mul3x1(cdot).Mul(-1)
	a.applyImpulse(p.Mul(-1), j.rA)
	b.applyImpulse(p, j.rB)
	return p
}

// solvePointPosition pulls the anchors together and returns the error
// before correction.
func solvePointPosition(d *SolverData, j *jointBase) float64 {
	a, b := j.states(d)
	rA := a.Orientation.Rotate(j.localA)
	rB := b.Orientation.Rotate(j.localB)
	c := b.Position.Add(rB).Sub(a.Position.Add(rA))
	errLen := c.Len()
	if errLen > d.Step.MaxCorrection {
		c = c.Mul(d.Step.MaxCorrection / errLen)
	}
	mass, ok := invert3(pointMass3(a, b, rA, rB))
	if !ok {
		return errLen
	}
	p := mass.Mul3x1(c).Mul(-1)
	a.applyPositionImpulse(p.Mul(-1), rA)
	b.applyPositionImpulse(p, rB)
	return errLen
}

// Fixed locks both the anchor and the relative orientation.
type Fixed struct {
	jointBase
	relative mgl64.Quat // conj(qA) * qB at creation

	mass           mgl64.Mat3
	angularMass    mgl64.Mat3
	impulse        mgl64.Vec3
	angularImpulse mgl64.Vec3
}

func (j *Fixed) Type() JointType { return FixedJoint }

func (j *Fixed) Prepare(d *SolverData, ia, ib int) {
	j.bind(d, ia, ib)
	a, b := j.states(d)
	j.mass, _ = invert3(pointMass3(a, b, j.rA, j.rB))
	j.angularMass, _ = invert3(a.InvInertia.Add(b.InvInertia))
	f := d.warmFactor()
	j.impulse = j.impulse.Mul(f)
	j.angularImpulse = j.angularImpulse.Mul(f)
}

func (j *Fixed) WarmStart(d *SolverData) {
	a, b := j.states(d)
	a.applyImpulse(j.impulse.Mul(-1), j.rA)
	b.applyImpulse(j.impulse, j.rB)
	a.W = a.W.Sub(a.InvInertia.Mul3x1(j.angularImpulse))
	b.W = b.W.Add(b.InvInertia.Mul3x1(j.angularImpulse))
}

func (j *Fixed) SolveVelocity(d *SolverData) {
	a, b := j.states(d)
	l := j.angularMass.Mul3x1(b.W.Sub(a.W)).Mul(-1)
	a.W = a.W.Sub(a.InvInertia.Mul3x1(l))
	b.W = b.W.Add(b.InvInertia.Mul3x1(l))
	j.angularImpulse = j.angularImpulse.Add(l)

	j.impulse = j.impulse.Add(solvePoint(d, &j.jointBase, j.mass))
}

func (j *Fixed) SolvePosition(d *SolverData) bool {
	a, b := j.states(d)
	c := j.angleError(a.Orientation, b.Orientation)
	angErr := c.Len()
	if m, ok := invert3(a.InvInertia.Add(b.InvInertia)); ok {
		l := m.Mul3x1(c).Mul(-1)
		a.rotate(a.InvInertia.Mul3x1(l).Mul(-1))
		b.rotate(b.InvInertia.Mul3x1(l))
	}
	linErr := solvePointPosition(d, &j.jointBase)
	return linErr <= d.Step.LinearSlop && angErr <= d.Step.AngularSlop
}

// angleError is the rotation vector taking the target orientation of B to
// its current one.
func (j *Fixed) angleError(qa, qb mgl64.Quat) mgl64.Vec3 {
	e := qb.Mul(qa.Mul(j.relative).Conjugate())
	if e.W < 0 {
		e = e.Scale(-1)
	}
	return e.V.Mul(2)
}

func (j *Fixed) PositionError() float64 {
	pa, pb := j.WorldAnchors()
	return pb.Sub(pa).Len()
}

// Distance keeps the anchor distance within [MinLength, MaxLength]. Equal
// bounds make a rigid stick; MinLength zero makes a rope.
type Distance struct {
	jointBase
	minLength, maxLength float64

	u            mgl64.Vec3
	length       float64
	mass         float64
	impulse      float64
	lowerImpulse float64
	upperImpulse float64
}

func newDistance(base jointBase, def JointDef) (*Distance, error) {
	if !geom.IsFinite(def.AnchorA) || !geom.IsFinite(def.AnchorB) {
		return nil, fmt.Errorf("%w: non-finite anchor", ErrInvalidJoint)
	}
	minL, maxL := def.MinLength, def.MaxLength
	if minL == 0 && maxL == 0 {
		minL = def.AnchorB.Sub(def.AnchorA).Len()
		maxL = minL
	}
	if minL < 0 || maxL < minL || math.IsNaN(minL) || math.IsNaN(maxL) || math.IsInf(maxL, 0) {
		return nil, fmt.Errorf("%w: distance bounds [%f, %f]", ErrInvalidJoint, minL, maxL)
	}
	base.setAnchors(def.AnchorA, def.AnchorB)
	return &Distance{jointBase: base, minLength: minL, maxLength: maxL}, nil
}

func (j *Distance) Type() JointType { return DistanceJoint }

// Limits returns the length bounds.
func (j *Distance) Limits() (float64, float64) { return j.minLength, j.maxLength }

func (j *Distance) rigid(slop float64) bool { return j.maxLength-j.minLength < 2*slop }

func (j *Distance) Prepare(d *SolverData, ia, ib int) {
	j.bind(d, ia, ib)
	a, b := j.states(d)
	delta := b.Position.Add(j.rB).Sub(a.Position.Add(j.rA))
	j.length = delta.Len()
	j.u = geom.Normalize(delta, mgl64.Vec3{1, 0, 0})
	j.mass = rowMass(a, b, j.rA, j.rB, j.u)

	f := d.warmFactor()
	j.impulse *= f
	j.lowerImpulse *= f
	j.upperImpulse *= f
	if j.rigid(d.Step.LinearSlop) {
		j.lowerImpulse, j.upperImpulse = 0, 0
	} else {
		j.impulse = 0
	}
}

func (j *Distance) WarmStart(d *SolverData) {
	j.apply(d, j.impulse+j.lowerImpulse+j.upperImpulse)
}

func (j *Distance) apply(d *SolverData, lambda float64) {
	a, b := j.states(d)
	p := j.u.Mul(lambda)
	a.applyImpulse(p.Mul(-1), j.rA)
	b.applyImpulse(p, j.rB)
}

func (j *Distance) cdot(d *SolverData) float64 {
	a, b := j.states(d)
	return j.u.Dot(b.velocityAt(j.rB).Sub(a.velocityAt(j.rA)))
}

func (j *Distance) SolveVelocity(d *SolverData) {
	if j.rigid(d.Step.LinearSlop) {
		lambda := -j.mass * j.cdot(d)
		j.impulse += lambda
		j.apply(d, lambda)
		return
	}

	// lower bound: the length may not shrink below min next step
	if j.minLength > 0 {
		s := (j.minLength - j.length) * d.InvDt
		lambda := -j.mass * (j.cdot(d) - s)
		old := j.lowerImpulse
		j.lowerImpulse = math.Max(0, old+lambda)
		j.apply(d, j.lowerImpulse-old)
	}
	// upper bound: the length may not grow beyond max next step
	{
		s := (j.maxLength - j.length) * d.InvDt
		lambda := -j.mass * (j.cdot(d) - s)
		old := j.upperImpulse
		j.upperImpulse = math.Min(0, old+lambda)
		j.apply(d, j.upperImpulse-old)
	}
}

func (j *Distance) SolvePosition(d *SolverData) bool {
	a, b := j.states(d)
	rA := a.Orientation.Rotate(j.localA)
	rB := b.Orientation.Rotate(j.localB)
	delta := b.Position.Add(rB).Sub(a.Position.Add(rA))
	length := delta.Len()
	u := geom.Normalize(delta, mgl64.Vec3{1, 0, 0})

	var c float64
	switch {
	case j.rigid(d.Step.LinearSlop):
		c = length - j.minLength
	case length < j.minLength:
		c = length - j.minLength
	case length > j.maxLength:
		c = length - j.maxLength
	default:
		return true
	}
	c = mgl64.Clamp(c, -d.Step.MaxCorrection, d.Step.MaxCorrection)
	p := u.Mul(-rowMass(a, b, rA, rB, u) * c)
	a.applyPositionImpulse(p.Mul(-1), rA)
	b.applyPositionImpulse(p, rB)
	return math.Abs(c) <= d.Step.LinearSlop
}

func (j *Distance) PositionError() float64 {
	pa, pb := j.WorldAnchors()
	l := pb.Sub(pa).Len()
	switch {
	case l < j.minLength:
		return j.minLength - l
	case l > j.maxLength:
		return l - j.maxLength
	}
	return 0
}
