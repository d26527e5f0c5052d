package dynamics

import (
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
)

// BodyType selects how a body responds to forces.
type BodyType uint8

const (
	// Static bodies never move.
	Static BodyType = iota
	// Kinematic bodies move with their velocity but ignore forces.
	Kinematic
	// Dynamic bodies respond to forces and constraints.
	Dynamic
)

func (t BodyType) String() string {
	switch t {
	case Static:
		return "static"
	case Kinematic:
		return "kinematic"
	case Dynamic:
		return "dynamic"
	}
	return "unknown"
}

// ParseBodyType maps a config name to a body type.
func ParseBodyType(s string) (BodyType, error) {
	switch s {
	case "static":
		return Static, nil
	case "kinematic":
		return Kinematic, nil
	case "dynamic", "":
		return Dynamic, nil
	}
	return 0, fmt.Errorf("%w: unknown body type %q", ErrInvalidBody, s)
}

// BodyDef describes a body to create.
type BodyDef struct {
	Type            BodyType
	Position        mgl64.Vec3
	Orientation     mgl64.Quat
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
	LinearDamping   float64
	AngularDamping  float64
	GravityScale    float64
	AllowSleep      bool
	Sleeping        bool
	UserData        any
}

// DefaultBodyDef returns a dynamic body at the origin that may sleep.
func DefaultBodyDef() BodyDef {
	return BodyDef{
		Type:         Dynamic,
		Orientation:  mgl64.QuatIdent(),
		GravityScale: 1,
		AllowSleep:   true,
	}
}

// Validate checks the definition for values the solver cannot handle.
func (d BodyDef) Validate() error {
	if !geom.IsFinite(d.Position) || !geom.IsFinite(d.LinearVelocity) || !geom.IsFinite(d.AngularVelocity) {
		return fmt.Errorf("%w: non-finite pose or velocity", ErrInvalidBody)
	}
	if d.Orientation.Len() < geom.Epsilon {
		return fmt.Errorf("%w: zero orientation quaternion", ErrInvalidBody)
	}
	if d.LinearDamping < 0 || d.AngularDamping < 0 || math.IsNaN(d.LinearDamping) || math.IsNaN(d.AngularDamping) {
		return fmt.Errorf("%w: damping must be non-negative", ErrInvalidBody)
	}
	if math.IsNaN(d.GravityScale) || math.IsInf(d.GravityScale, 0) {
		return fmt.Errorf("%w: non-finite gravity scale", ErrInvalidBody)
	}
	return nil
}

// Body is a rigid body. Its position is the centre of mass.
type Body struct {
	id  int
	typ BodyType

	position        mgl64.Vec3
	orientation     mgl64.Quat
	linearVelocity  mgl64.Vec3
	angularVelocity mgl64.Vec3
	force           mgl64.Vec3
	torque          mgl64.Vec3

	mass            float64
	invMass         float64
	inertiaLocal    mgl64.Mat3
	invInertiaLocal mgl64.Mat3
	invInertiaWorld mgl64.Mat3

	linearDamping  float64
	angularDamping float64
	gravityScale   float64

	allowSleep bool
	sleeping   bool
	sleepTime  float64
	group      *sleepGroup

	colliders []*Collider
	moved     bool

	// island builder bookkeeping
	index       int
	islandStamp int
	attachStamp int
	attachIndex int

	UserData any
}

// NewBody creates a body from def. id must be unique within a world and
// index is its dense position in the world's body list.
func NewBody(id, index int, def BodyDef) (*Body, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	b := &Body{
		id:              id,
		index:           index,
		typ:             def.Type,
		position:        def.Position,
		orientation:     def.Orientation.Normalize(),
		linearDamping:   def.LinearDamping,
		angularDamping:  def.AngularDamping,
		gravityScale:    def.GravityScale,
		allowSleep:      def.AllowSleep,
		UserData:        def.UserData,
		islandStamp:     -1,
		attachStamp:     -1,
		linearVelocity:  def.LinearVelocity,
		angularVelocity: def.AngularVelocity,
	}
	if b.typ == Static {
		b.linearVelocity, b.angularVelocity = mgl64.Vec3{}, mgl64.Vec3{}
	}
	b.ResetMassData(nil)
	if def.Sleeping && b.typ != Static {
		b.sleep(&sleepGroup{bodies: []*Body{b}})
	}
	return b, nil
}

func (b *Body) ID() int          { return b.id }
func (b *Body) Type() BodyType   { return b.typ }
func (b *Body) Index() int       { return b.index }
func (b *Body) Mass() float64    { return b.mass }
func (b *Body) InvMass() float64 { return b.invMass }

// SetIndex updates the dense index after the world compacts its body list.
func (b *Body) SetIndex(i int) { b.index = i }

func (b *Body) Position() mgl64.Vec3    { return b.position }
func (b *Body) Orientation() mgl64.Quat { return b.orientation }

// Transform returns the body pose.
func (b *Body) Transform() geom.Transform {
	return geom.Transform{Position: b.position, Rotation: b.orientation}
}

// SetTransform teleports the body and wakes it.
func (b *Body) SetTransform(p mgl64.Vec3, q mgl64.Quat) {
	b.position = p
	b.orientation = q.Normalize()
	b.updateInertia()
	b.moved = true
	b.Wake()
}

// Moved reports and clears whether SetTransform was called since the last
// check.
func (b *Body) Moved() bool {
	m := b.moved
	b.moved = false
	return m
}

func (b *Body) LinearVelocity() mgl64.Vec3  { return b.linearVelocity }
func (b *Body) AngularVelocity() mgl64.Vec3 { return b.angularVelocity }

// SetLinearVelocity sets the velocity of a non-static body, waking it when
// the velocity is non-zero.
func (b *Body) SetLinearVelocity(v mgl64.Vec3) {
	if b.typ == Static {
		return
	}
	if v.LenSqr() > 0 {
		b.Wake()
	}
	b.linearVelocity = v
}

// SetAngularVelocity sets the angular velocity of a non-static body.
func (b *Body) SetAngularVelocity(w mgl64.Vec3) {
	if b.typ == Static {
		return
	}
	if w.LenSqr() > 0 {
		b.Wake()
	}
	b.angularVelocity = w
}

// SetType changes the body type and recomputes its mass.
func (b *Body) SetType(t BodyType) {
	if b.typ == t {
		return
	}
	b.typ = t
	if t == Static {
		b.linearVelocity, b.angularVelocity = mgl64.Vec3{}, mgl64.Vec3{}
	}
	b.force, b.torque = mgl64.Vec3{}, mgl64.Vec3{}
	b.ResetMassData(nil)
	b.Wake()
}

func (b *Body) LinearDamping() float64  { return b.linearDamping }
func (b *Body) AngularDamping() float64 { return b.angularDamping }
func (b *Body) GravityScale() float64   { return b.gravityScale }

func (b *Body) SetLinearDamping(c float64)  { b.linearDamping = math.Max(0, c) }
func (b *Body) SetAngularDamping(c float64) { b.angularDamping = math.Max(0, c) }
func (b *Body) SetGravityScale(s float64)   { b.gravityScale = s }

// InvInertiaWorld returns R I^-1 R^T for the current orientation.
func (b *Body) InvInertiaWorld() mgl64.Mat3 { return b.invInertiaWorld }

// InertiaLocal returns the inertia tensor about the centre of mass in body
// coordinates.
func (b *Body) InertiaLocal() mgl64.Mat3 { return b.inertiaLocal }

// Colliders returns the attached colliders in attachment order.
func (b *Body) Colliders() []*Collider { return b.colliders }

func (b *Body) attach(c *Collider) {
	b.colliders = append(b.colliders, c)
}

func (b *Body) detach(c *Collider) bool {
	for i, o := range b.colliders {
		if o == c {
			b.colliders = append(b.colliders[:i], b.colliders[i+1:]...)
			return true
		}
	}
	return false
}

// ResetMassData recomputes mass and inertia from the colliders. A dynamic
// body without mass falls back to unit mass and inertia.
func (b *Body) ResetMassData(logger *log.Logger) {
	b.mass, b.invMass = 0, 0
	b.inertiaLocal, b.invInertiaLocal = mgl64.Mat3{}, mgl64.Mat3{}
	if b.typ != Dynamic {
		b.updateInertia()
		return
	}

	var inertia mgl64.Mat3
	for _, c := range b.colliders {
		md := c.massData()
		if md.Mass <= 0 {
			continue
		}
		b.mass += md.Mass
		r := c.local.RotationMatrix()
		rotated := r.Mul3(md.Inertia).Mul3(r.Transpose())
		d := c.local.Apply(md.Center)
		// parallel axis about the body origin
		shift := mgl64.Ident3().Mul(d.Dot(d)).Sub(outer(d, d)).Mul(md.Mass)
		inertia = inertia.Add(rotated).Add(shift)
	}

	if b.mass <= geom.Epsilon {
		if logger != nil && len(b.colliders) > 0 {
			logger.Warn("dynamic body has no mass, using unit mass", "body", b.id)
		}
		b.mass = 1
		inertia = mgl64.Ident3()
	}
	b.invMass = 1 / b.mass
	b.inertiaLocal = inertia
	if det := inertia.Det(); math.Abs(det) > geom.Epsilon {
		b.invInertiaLocal = inertia.Inv()
	} else if logger != nil {
		logger.Warn("singular inertia, rotation locked", "body", b.id)
	}
	b.updateInertia()
}

func (b *Body) updateInertia() {
	r := b.orientation.Mat4().Mat3()
	b.invInertiaWorld = r.Mul3(b.invInertiaLocal).Mul3(r.Transpose())
}

func outer(a, c mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3FromCols(a.Mul(c[0]), a.Mul(c[1]), a.Mul(c[2]))
}

// ApplyForce accumulates a world force at a world point until the next
// step.
func (b *Body) ApplyForce(f, point mgl64.Vec3) {
	if b.typ != Dynamic {
		return
	}
	b.Wake()
	b.force = b.force.Add(f)
	b.torque = b.torque.Add(point.Sub(b.position).Cross(f))
}

// ApplyForceToCenter accumulates a force through the centre of mass.
func (b *Body) ApplyForceToCenter(f mgl64.Vec3) {
	if b.typ != Dynamic {
		return
	}
	b.Wake()
	b.force = b.force.Add(f)
}

// ApplyTorque accumulates a world-frame torque.
func (b *Body) ApplyTorque(t mgl64.Vec3) {
	if b.typ != Dynamic {
		return
	}
	b.Wake()
	b.torque = b.torque.Add(t)
}

// ApplyLocalTorque accumulates a torque given in body coordinates.
func (b *Body) ApplyLocalTorque(t mgl64.Vec3) {
	b.ApplyTorque(b.orientation.Rotate(t))
}

// ApplyImpulse changes velocity immediately by an impulse at a world point.
func (b *Body) ApplyImpulse(j, point mgl64.Vec3) {
	if b.typ != Dynamic {
		return
	}
	b.Wake()
	b.linearVelocity = b.linearVelocity.Add(j.Mul(b.invMass))
	b.angularVelocity = b.angularVelocity.Add(b.invInertiaWorld.Mul3x1(point.Sub(b.position).Cross(j)))
}

// ApplyLinearImpulse applies an impulse through the centre of mass.
func (b *Body) ApplyLinearImpulse(j mgl64.Vec3) {
	if b.typ != Dynamic {
		return
	}
	b.Wake()
	b.linearVelocity = b.linearVelocity.Add(j.Mul(b.invMass))
}

// ApplyAngularImpulse applies a world-frame angular impulse.
func (b *Body) ApplyAngularImpulse(l mgl64.Vec3) {
	if b.typ != Dynamic {
		return
	}
	b.Wake()
	b.angularVelocity = b.angularVelocity.Add(b.invInertiaWorld.Mul3x1(l))
}

// Force and Torque return the accumulated loads of the current step.
func (b *Body) Force() mgl64.Vec3  { return b.force }
func (b *Body) Torque() mgl64.Vec3 { return b.torque }

// ClearForces resets the accumulators.
func (b *Body) ClearForces() {
	b.force, b.torque = mgl64.Vec3{}, mgl64.Vec3{}
}

// KineticEnergy returns the translational plus rotational energy.
func (b *Body) KineticEnergy() float64 {
	if b.typ != Dynamic {
		return 0
	}
	v := b.linearVelocity
	w := b.orientation.Conjugate().Rotate(b.angularVelocity)
	return 0.5*b.mass*v.Dot(v) + 0.5*w.Dot(b.inertiaLocal.Mul3x1(w))
}

// IntegrateKinematic advances a kinematic body by its velocity.
func (b *Body) IntegrateKinematic(dt float64) {
	if b.typ != Kinematic || b.sleeping {
		return
	}
	b.position = b.position.Add(b.linearVelocity.Mul(dt))
	b.orientation = geom.IntegrateRotation(b.orientation, b.angularVelocity, dt)
	b.updateInertia()
}

// IsActive reports whether the body moves this step and keeps touching
// bodies awake.
func (b *Body) IsActive() bool {
	switch b.typ {
	case Dynamic:
		return !b.sleeping
	case Kinematic:
		return !b.sleeping && (b.linearVelocity.LenSqr() > 0 || b.angularVelocity.LenSqr() > 0)
	}
	return false
}
