// Package collision is the narrow phase: exact overlap tests, contact
// generation and manifold persistence between collider pairs.
//
// Shape pairs are dispatched through a fixed table indexed by shape kind.
// Convex pairs use GJK for distance and EPA for penetration; polyhedral
// pairs clip faces to produce multi-point manifolds; concave shapes are
// narrowed to triangles through their local acceleration structure.
//
// Normals always point from shape B toward shape A, and a negative
// separation means penetration.
package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/arena"
	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

// Proxy is a shape placed in the world.
type Proxy struct {
	Shape     shape.Shape
	Transform geom.Transform
}

// Point is a raw contact produced by a collide function.
type Point struct {
	PointA     mgl64.Vec3 // on the surface of A
	PointB     mgl64.Vec3 // on the surface of B
	Normal     mgl64.Vec3 // from B toward A
	Separation float64
}

// touching or grazing within this distance is not contact
const touchTolerance = 1e-9

// Scratch holds the frame buffers used while colliding pairs. It is not
// safe for concurrent use.
type Scratch struct {
	points   *arena.List[Point]
	epaVerts *arena.List[supportVertex]
	epaFaces *arena.List[epaFace]
	edges    *arena.List[epaEdge]
	polyA    *arena.List[mgl64.Vec3]
	polyB    *arena.List[mgl64.Vec3]
	clip     *arena.List[mgl64.Vec3]

	face       []mgl64.Vec3
	faceNormal mgl64.Vec3
	tri        shape.Triangle
	sphere     shape.Sphere

	// Degenerate counts results discarded for numerical reasons.
	Degenerate int
}

// NewScratch registers narrow phase buffers with a.
func NewScratch(a *arena.Arena) *Scratch {
	return &Scratch{
		points:   arena.NewList[Point](a, "collision.points", 64),
		epaVerts: arena.NewList[supportVertex](a, "collision.epa.verts", 64),
		epaFaces: arena.NewList[epaFace](a, "collision.epa.faces", 128),
		edges:    arena.NewList[epaEdge](a, "collision.epa.edges", 64),
		polyA:    arena.NewList[mgl64.Vec3](a, "collision.poly.a", 16),
		polyB:    arena.NewList[mgl64.Vec3](a, "collision.poly.b", 16),
		clip:     arena.NewList[mgl64.Vec3](a, "collision.poly.clip", 32),
	}
}

// Collide computes the contact points between a and b. The returned slice
// is owned by s and valid until the next call.
func Collide(s *Scratch, a, b Proxy) []Point {
	s.points.Truncate(0)
	fn := table[a.Shape.Kind()][b.Shape.Kind()]
	if fn == nil {
		return nil
	}
	fn(s, a, b)
	return s.points.Items()
}

// Supported reports whether a pair of shape kinds has a collide function.
func Supported(a, b shape.Kind) bool {
	return table[a][b] != nil
}

func (s *Scratch) emit(p Point) {
	if !geom.IsFinite(p.PointA) || !geom.IsFinite(p.PointB) || !geom.IsFinite(p.Normal) || math.IsNaN(p.Separation) {
		s.Degenerate++
		return
	}
	if p.Separation >= -touchTolerance {
		return
	}
	for _, q := range s.points.Items() {
		if q.PointA.Sub(p.PointA).LenSqr() < 1e-8 && q.Normal.Dot(p.Normal) > 0.999 {
			return
		}
	}
	s.points.Append(p)
}
