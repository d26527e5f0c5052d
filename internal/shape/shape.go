// Package shape defines collision geometry.
//
// Convex shapes are described by a core support function plus a margin
// (spheres and capsules carry their radius as margin around a point or a
// segment). Polyhedral shapes also expose faces for contact clipping.
// Concave shapes (triangle meshes, height fields) expose the triangles that
// overlap a query box and may only be attached to static bodies.
//
// Every constructor validates its parameters and returns an error wrapping
// [ErrInvalidShape] instead of producing a degenerate shape.
package shape

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
)

var (
	// ErrInvalidShape is wrapped by every constructor validation failure.
	ErrInvalidShape = errors.New("shape: invalid shape parameters")

	// ErrDegenerateHull indicates a point cloud without volume.
	ErrDegenerateHull = errors.New("shape: degenerate convex hull")
)

// Kind tags a shape for collision dispatch.
type Kind uint8

const (
	KindSphere Kind = iota
	KindCapsule
	KindBox
	KindConvexHull
	KindTriangle
	KindTriangleMesh
	KindHeightField

	// NumKinds is the size of the dispatch matrix.
	NumKinds
)

var kindNames = [NumKinds]string{"sphere", "capsule", "box", "hull", "triangle", "mesh", "heightfield"}

func (k Kind) String() string {
	if k >= NumKinds {
		return "unknown"
	}
	return kindNames[k]
}

// Shape is implemented by every collision shape.
type Shape interface {
	Kind() Kind
	// LocalBounds is the tight box in the shape's own frame, margin included.
	LocalBounds() geom.AABB
}

// Convex is a shape with a support mapping.
type Convex interface {
	Shape
	// Support returns the farthest point of the core shape along dir.
	Support(dir mgl64.Vec3) mgl64.Vec3
	// Margin is the radius swept around the core.
	Margin() float64
	MassProperties(density float64) MassData
}

// Polyhedron is a convex shape with flat faces.
type Polyhedron interface {
	Convex
	// AppendFace appends the vertices of the face whose outward normal is
	// most aligned with dir, counter-clockwise seen from outside, and returns
	// that normal.
	AppendFace(dst []mgl64.Vec3, dir mgl64.Vec3) ([]mgl64.Vec3, mgl64.Vec3)
}

// Concave is a static triangle soup.
type Concave interface {
	Shape
	// Triangles calls fn for every triangle overlapping bounds, in the
	// shape's local frame, until fn returns false.
	Triangles(bounds geom.AABB, fn func(t Triangle) bool)
}

// MassData describes mass properties about the shape's local origin frame.
type MassData struct {
	Mass    float64
	Center  mgl64.Vec3
	Inertia mgl64.Mat3 // about Center
}

// SupportWithMargin returns the support point of the full shape.
func SupportWithMargin(c Convex, dir mgl64.Vec3) mgl64.Vec3 {
	p := c.Support(dir)
	if r := c.Margin(); r > 0 {
		p = p.Add(geom.Normalize(dir, mgl64.Vec3{1, 0, 0}).Mul(r))
	}
	return p
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
