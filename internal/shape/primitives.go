package shape

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
)

// Sphere is a point core with its radius as margin.
type Sphere struct {
	Radius float64
}

// NewSphere returns a sphere of the given radius.
func NewSphere(radius float64) (*Sphere, error) {
	if !positive(radius) {
		return nil, fmt.Errorf("%w: sphere radius must be positive, got %f", ErrInvalidShape, radius)
	}
	return &Sphere{Radius: radius}, nil
}

func (s *Sphere) Kind() Kind                        { return KindSphere }
func (s *Sphere) Margin() float64                   { return s.Radius }
func (s *Sphere) Support(dir mgl64.Vec3) mgl64.Vec3 { return mgl64.Vec3{} }

func (s *Sphere) LocalBounds() geom.AABB {
	r := s.Radius
	return geom.FromCenter(mgl64.Vec3{}, mgl64.Vec3{r, r, r})
}

func (s *Sphere) MassProperties(density float64) MassData {
	r := s.Radius
	m := density * 4.0 / 3.0 * math.Pi * r * r * r
	i := 0.4 * m * r * r
	return MassData{Mass: m, Inertia: mgl64.Diag3(mgl64.Vec3{i, i, i})}
}

// Capsule is a segment along the local Y axis swept by Radius.
type Capsule struct {
	Radius     float64
	HalfHeight float64
}

// NewCapsule returns a capsule whose core segment spans +-halfHeight on Y.
func NewCapsule(radius, halfHeight float64) (*Capsule, error) {
	if !positive(radius) {
		return nil, fmt.Errorf("%w: capsule radius must be positive, got %f", ErrInvalidShape, radius)
	}
	if !positive(halfHeight) {
		return nil, fmt.Errorf("%w: capsule half height must be positive, got %f", ErrInvalidShape, halfHeight)
	}
	return &Capsule{Radius: radius, HalfHeight: halfHeight}, nil
}

func (c *Capsule) Kind() Kind      { return KindCapsule }
func (c *Capsule) Margin() float64 { return c.Radius }

// Support ties on dir.Y == 0 resolve to the upper endpoint.
func (c *Capsule) Support(dir mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{0, sign(dir[1]) * c.HalfHeight, 0}
}

// Segment returns the core endpoints in local space.
func (c *Capsule) Segment() (mgl64.Vec3, mgl64.Vec3) {
	return mgl64.Vec3{0, -c.HalfHeight, 0}, mgl64.Vec3{0, c.HalfHeight, 0}
}

func (c *Capsule) LocalBounds() geom.AABB {
	r := c.Radius
	return geom.FromCenter(mgl64.Vec3{}, mgl64.Vec3{r, r + c.HalfHeight, r})
}

func (c *Capsule) MassProperties(density float64) MassData {
	r, h := c.Radius, 2*c.HalfHeight
	mc := density * math.Pi * r * r * h
	ms := density * 4.0 / 3.0 * math.Pi * r * r * r
	iy := mc*r*r/2 + ms*2*r*r/5
	ix := mc*(h*h/12+r*r/4) + ms*(2*r*r/5+h*h/4+3*h*r/8)
	return MassData{Mass: mc + ms, Inertia: mgl64.Diag3(mgl64.Vec3{ix, iy, ix})}
}

// Box is an oriented box given by its half extents.
type Box struct {
	HalfExtents mgl64.Vec3
}

// NewBox returns a box with the given half extents.
func NewBox(half mgl64.Vec3) (*Box, error) {
	for i := 0; i < 3; i++ {
		if !positive(half[i]) {
			return nil, fmt.Errorf("%w: box half extents must be positive, got %v", ErrInvalidShape, half)
		}
	}
	return &Box{HalfExtents: half}, nil
}

func (b *Box) Kind() Kind      { return KindBox }
func (b *Box) Margin() float64 { return 0 }

// Support ties on zero components resolve to the positive side.
func (b *Box) Support(dir mgl64.Vec3) mgl64.Vec3 {
	h := b.HalfExtents
	return mgl64.Vec3{sign(dir[0]) * h[0], sign(dir[1]) * h[1], sign(dir[2]) * h[2]}
}

func (b *Box) LocalBounds() geom.AABB {
	return geom.FromCenter(mgl64.Vec3{}, b.HalfExtents)
}

func (b *Box) MassProperties(density float64) MassData {
	h := b.HalfExtents
	m := density * 8 * h[0] * h[1] * h[2]
	x, y, z := h[0]*h[0], h[1]*h[1], h[2]*h[2]
	return MassData{Mass: m, Inertia: mgl64.Diag3(mgl64.Vec3{m * (y + z) / 3, m * (x + z) / 3, m * (x + y) / 3})}
}

func (b *Box) AppendFace(dst []mgl64.Vec3, dir mgl64.Vec3) ([]mgl64.Vec3, mgl64.Vec3) {
	axis := 0
	for i := 1; i < 3; i++ {
		if math.Abs(dir[i]) > math.Abs(dir[axis]) {
			axis = i
		}
	}
	s := sign(dir[axis])
	j, k := (axis+1)%3, (axis+2)%3
	h := b.HalfExtents

	corners := [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	if s < 0 {
		corners = [4][2]float64{{-1, 1}, {1, 1}, {1, -1}, {-1, -1}}
	}
	for _, c := range corners {
		var v mgl64.Vec3
		v[axis] = s * h[axis]
		v[j] = c[0] * h[j]
		v[k] = c[1] * h[k]
		dst = append(dst, v)
	}
	var n mgl64.Vec3
	n[axis] = s
	return dst, n
}
