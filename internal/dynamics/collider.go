package dynamics

import (
	"fmt"
	"math"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

// Material holds surface and bulk properties.
type Material struct {
	Friction    float64
	Restitution float64
	Density     float64
}

// DefaultMaterial returns the material used when a collider sets none.
func DefaultMaterial() Material {
	return Material{Friction: 0.3, Restitution: 0, Density: 1}
}

// Filter decides which colliders may touch. Two colliders with the same
// non-zero group always collide when the group is positive and never when
// it is negative; otherwise each category must be in the other's mask.
type Filter struct {
	Category uint32
	Mask     uint32
	Group    int32
}

// DefaultFilter collides with everything.
func DefaultFilter() Filter {
	return Filter{Category: 1, Mask: math.MaxUint32}
}

// ShouldCollide applies the group, category and mask rules.
func (f Filter) ShouldCollide(o Filter) bool {
	if f.Group == o.Group && f.Group != 0 {
		return f.Group > 0
	}
	return f.Mask&o.Category != 0 && o.Mask&f.Category != 0
}

// ColliderDef describes a collider to attach.
type ColliderDef struct {
	Shape     shape.Shape
	Local     geom.Transform
	Material  Material
	Filter    Filter
	IsTrigger bool
	UserData  any
}

// Collider attaches a shape to a body.
type Collider struct {
	id       int
	body     *Body
	shape    shape.Shape
	local    geom.Transform
	material Material
	filter   Filter
	trigger  bool

	UserData any
}

// NewCollider validates def and attaches the collider to body.
func NewCollider(id int, body *Body, def ColliderDef) (*Collider, error) {
	if def.Shape == nil {
		return nil, fmt.Errorf("%w: nil shape", ErrInvalidCollider)
	}
	m := def.Material
	if m.Friction < 0 || m.Restitution < 0 || m.Restitution > 1 || m.Density < 0 ||
		math.IsNaN(m.Friction) || math.IsNaN(m.Restitution) || math.IsNaN(m.Density) {
		return nil, fmt.Errorf("%w: material %+v out of range", ErrInvalidCollider, m)
	}
	k := def.Shape.Kind()
	if (k == shape.KindTriangleMesh || k == shape.KindHeightField || k == shape.KindTriangle) && body.typ == Dynamic {
		return nil, fmt.Errorf("%w: %v shapes need a static or kinematic body", ErrInvalidCollider, k)
	}
	local := def.Local
	if local.Rotation.Len() < geom.Epsilon {
		local.Rotation = geom.Identity().Rotation
	}
	c := &Collider{
		id:       id,
		body:     body,
		shape:    def.Shape,
		local:    local,
		material: m,
		filter:   def.Filter,
		trigger:  def.IsTrigger,
		UserData: def.UserData,
	}
	body.attach(c)
	return c, nil
}

func (c *Collider) ID() int                { return c.id }
func (c *Collider) Body() *Body            { return c.body }
func (c *Collider) Shape() shape.Shape     { return c.shape }
func (c *Collider) Local() geom.Transform  { return c.local }
func (c *Collider) Material() Material     { return c.material }
func (c *Collider) Filter() Filter         { return c.filter }
func (c *Collider) IsTrigger() bool        { return c.trigger }
func (c *Collider) SetFilter(f Filter)     { c.filter = f }
func (c *Collider) SetMaterial(m Material) { c.material = m }

// Detach removes the collider from its body.
func (c *Collider) Detach() {
	if c.body != nil {
		c.body.detach(c)
	}
}

// WorldTransform is the collider pose in world space.
func (c *Collider) WorldTransform() geom.Transform {
	return c.body.Transform().Mul(c.local)
}

// WorldAABB is the tight world box of the collider.
func (c *Collider) WorldAABB() geom.AABB {
	return c.shape.LocalBounds().Transformed(c.WorldTransform())
}

func (c *Collider) massData() shape.MassData {
	if c.trigger {
		return shape.MassData{}
	}
	cv, ok := c.shape.(shape.Convex)
	if !ok {
		return shape.MassData{}
	}
	return cv.MassProperties(c.material.Density)
}

// MixFriction combines two friction coefficients.
func MixFriction(a, b float64) float64 { return math.Sqrt(a * b) }

// MixRestitution combines two restitution coefficients.
func MixRestitution(a, b float64) float64 { return math.Max(a, b) }
