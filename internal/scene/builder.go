package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

// builder adds bodies to a scene and keeps the first error, so scene
// functions can describe their layout without checking every call.
type builder struct {
	s   *Scene
	dt  float64
	err error
}

func (b *builder) fail(err error) {
	if b.err == nil && err != nil {
		b.err = err
	}
}

func (b *builder) body(name string, def dynamics.BodyDef) *dynamics.Body {
	if b.err != nil {
		return nil
	}
	body, err := b.s.World.CreateBody(def)
	if err != nil {
		b.fail(fmt.Errorf("body %q: %w", name, err))
		return nil
	}
	if name != "" {
		b.s.Named[name] = body
	}
	return body
}

func (b *builder) collider(body *dynamics.Body, s shape.Shape, def dynamics.ColliderDef) *dynamics.Collider {
	if b.err != nil || body == nil {
		return nil
	}
	def.Shape = s
	if def.Local == (geom.Transform{}) {
		def.Local = geom.Identity()
	}
	c, err := b.s.World.AddCollider(body, def)
	if err != nil {
		b.fail(fmt.Errorf("collider on body %d: %w", body.ID(), err))
		return nil
	}
	return c
}

func (b *builder) joint(def dynamics.JointDef) dynamics.Joint {
	if b.err != nil || def.BodyA == nil || def.BodyB == nil {
		return nil
	}
	j, err := b.s.World.CreateJoint(def)
	if err != nil {
		b.fail(fmt.Errorf("joint %v: %w", def.Type, err))
		return nil
	}
	return j
}

func bodyDef(typ dynamics.BodyType, pos mgl64.Vec3) dynamics.BodyDef {
	def := dynamics.DefaultBodyDef()
	def.Type = typ
	def.Position = pos
	return def
}

func (b *builder) box(name string, typ dynamics.BodyType, pos, half mgl64.Vec3, m dynamics.Material) *dynamics.Body {
	body := b.body(name, bodyDef(typ, pos))
	s, err := shape.NewBox(half)
	b.fail(err)
	if err == nil {
		b.collider(body, s, dynamics.ColliderDef{Material: m})
	}
	return body
}

func (b *builder) sphere(name string, pos mgl64.Vec3, r float64, m dynamics.Material) *dynamics.Body {
	body := b.body(name, bodyDef(dynamics.Dynamic, pos))
	s, err := shape.NewSphere(r)
	b.fail(err)
	if err == nil {
		b.collider(body, s, dynamics.ColliderDef{Material: m})
	}
	return body
}

// ground adds the static floor whose top face is y = 0.
func (b *builder) ground(halfExtent float64) *dynamics.Body {
	return b.box("ground", dynamics.Static, mgl64.Vec3{0, -0.5, 0}, mgl64.Vec3{halfExtent, 0.5, halfExtent}, dynamics.Material{})
}

func (b *builder) material() dynamics.Material {
	return b.s.World.Settings().DefaultMaterial()
}

// newShape turns a config description into a shape.
func newShape(c config.ShapeConfig) (shape.Shape, error) {
	switch c.Type {
	case "sphere":
		return shape.NewSphere(c.Radius)
	case "box":
		return shape.NewBox(mgl64.Vec3(c.HalfExtents))
	case "capsule":
		return shape.NewCapsule(c.Radius, c.HalfHeight)
	case "hull":
		return shape.NewConvexHull(vecs(c.Points))
	case "mesh":
		return shape.NewTriangleMesh(vecs(c.Points), c.Indices)
	case "heightfield":
		return shape.NewHeightField(c.Heights, c.CellSize)
	}
	return nil, fmt.Errorf("%w: unknown shape type %q", shape.ErrInvalidShape, c.Type)
}

func vecs(points [][3]float64) []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(points))
	for i, p := range points {
		out[i] = mgl64.Vec3(p)
	}
	return out
}

// eulerDegrees converts XYZ euler angles in degrees to a quaternion.
func eulerDegrees(r [3]float64) mgl64.Quat {
	if r == [3]float64{} {
		return mgl64.QuatIdent()
	}
	return mgl64.AnglesToQuat(mgl64.DegToRad(r[0]), mgl64.DegToRad(r[1]), mgl64.DegToRad(r[2]), mgl64.XYZ)
}

// custom builds the bodies and joints listed in the config.
func custom(b *builder, cfg *config.Config) {
	for _, bc := range cfg.Bodies {
		typ, err := dynamics.ParseBodyType(bc.Type)
		if err != nil {
			b.fail(err)
			return
		}
		def := bodyDef(typ, mgl64.Vec3(bc.Position))
		def.Orientation = eulerDegrees(bc.Rotation)
		def.LinearVelocity = mgl64.Vec3(bc.LinearVelocity)
		def.AngularVelocity = mgl64.Vec3(bc.AngularVelocity)
		def.LinearDamping = bc.LinearDamping
		def.AngularDamping = bc.AngularDamping
		if bc.GravityScale != nil {
			def.GravityScale = *bc.GravityScale
		}
		body := b.body(bc.Name, def)
		for _, cc := range bc.Colliders {
			s, err := newShape(cc.Shape)
			if err != nil {
				b.fail(fmt.Errorf("body %q: %w", bc.Name, err))
				return
			}
			m := dynamics.Material{Friction: cc.Friction, Restitution: cc.Restitution, Density: cc.Density}
			if m != (dynamics.Material{}) && m.Density == 0 {
				m.Density = 1
			}
			local := geom.Identity()
			local.Position = mgl64.Vec3(cc.Offset)
			b.collider(body, s, dynamics.ColliderDef{Local: local, Material: m, IsTrigger: cc.Trigger})
		}
	}
	for _, jc := range cfg.Joints {
		typ, err := dynamics.ParseJointType(jc.Type)
		if err != nil {
			b.fail(err)
			return
		}
		b.joint(dynamics.JointDef{
			Type:             typ,
			BodyA:            b.s.Named[jc.BodyA],
			BodyB:            b.s.Named[jc.BodyB],
			Anchor:           mgl64.Vec3(jc.Anchor),
			AnchorA:          mgl64.Vec3(jc.Anchor),
			AnchorB:          mgl64.Vec3(jc.AnchorB),
			MinLength:        jc.MinLength,
			MaxLength:        jc.MaxLength,
			CollideConnected: jc.CollideConnected,
		})
	}
}
