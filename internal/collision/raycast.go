package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

// RayHit is the first intersection of a ray with a shape.
type RayHit struct {
	T      float64 // parameter along the ray direction
	Point  mgl64.Vec3
	Normal mgl64.Vec3 // surface normal, facing the ray origin
}

const (
	advanceIterations = 32
	advanceTolerance  = 1e-6
)

// RayCast intersects the ray origin + t*dir, t in [0, maxT], with the proxy.
// dir must be unit length. Rays starting inside a solid shape report no hit.
func RayCast(p Proxy, origin, dir mgl64.Vec3, maxT float64) (RayHit, bool) {
	switch sh := p.Shape.(type) {
	case *shape.Sphere:
		return raySphere(p.Transform.Position, sh.Radius, origin, dir, maxT)
	case *shape.Box:
		return rayBox(sh, p.Transform, origin, dir, maxT)
	case shape.Triangle:
		return rayTriangle(sh.Transformed(p.Transform), origin, dir, maxT)
	case shape.Concave:
		return rayConcave(sh, p.Transform, origin, dir, maxT)
	case shape.Convex:
		return rayConvex(sh, p.Transform, origin, dir, maxT)
	}
	return RayHit{}, false
}

func raySphere(c mgl64.Vec3, r float64, origin, dir mgl64.Vec3, maxT float64) (RayHit, bool) {
	m := origin.Sub(c)
	b := m.Dot(dir)
	cc := m.Dot(m) - r*r
	if cc <= 0 || b > 0 {
		return RayHit{}, false
	}
	disc := b*b - cc
	if disc < 0 {
		return RayHit{}, false
	}
	t := -b - math.Sqrt(disc)
	if t > maxT {
		return RayHit{}, false
	}
	pt := origin.Add(dir.Mul(t))
	return RayHit{T: t, Point: pt, Normal: geom.Normalize(pt.Sub(c), dir.Mul(-1))}, true
}

func rayBox(b *shape.Box, xf geom.Transform, origin, dir mgl64.Vec3, maxT float64) (RayHit, bool) {
	o := xf.ApplyInverse(origin)
	d := xf.RotateInverse(dir)
	box := geom.AABB{Min: b.HalfExtents.Mul(-1), Max: b.HalfExtents}
	if box.ContainsPoint(o) {
		return RayHit{}, false
	}
	t, ok := box.RayCast(o, d, maxT)
	if !ok {
		return RayHit{}, false
	}
	local := o.Add(d.Mul(t))
	axis, best := 0, -1.0
	for i := 0; i < 3; i++ {
		if f := math.Abs(local[i]) / b.HalfExtents[i]; f > best {
			axis, best = i, f
		}
	}
	var n mgl64.Vec3
	n[axis] = math.Copysign(1, local[axis])
	return RayHit{T: t, Point: xf.Apply(local), Normal: xf.Rotate(n)}, true
}

// rayTriangle is two-sided Moller-Trumbore.
func rayTriangle(tri shape.Triangle, origin, dir mgl64.Vec3, maxT float64) (RayHit, bool) {
	e1 := tri.B.Sub(tri.A)
	e2 := tri.C.Sub(tri.A)
	pv := dir.Cross(e2)
	det := e1.Dot(pv)
	if math.Abs(det) < geom.Epsilon {
		return RayHit{}, false
	}
	inv := 1 / det
	tv := origin.Sub(tri.A)
	u := tv.Dot(pv) * inv
	if u < 0 || u > 1 {
		return RayHit{}, false
	}
	qv := tv.Cross(e1)
	v := dir.Dot(qv) * inv
	if v < 0 || u+v > 1 {
		return RayHit{}, false
	}
	t := e2.Dot(qv) * inv
	if t < 0 || t > maxT {
		return RayHit{}, false
	}
	n := tri.Normal()
	if n.Dot(dir) > 0 {
		n = n.Mul(-1)
	}
	return RayHit{T: t, Point: origin.Add(dir.Mul(t)), Normal: n}, true
}

func rayConcave(c shape.Concave, xf geom.Transform, origin, dir mgl64.Vec3, maxT float64) (RayHit, bool) {
	o := xf.ApplyInverse(origin)
	d := xf.RotateInverse(dir)
	bounds := geom.NewAABB(o, o.Add(d.Mul(maxT)))

	best := RayHit{T: math.Inf(1)}
	found := false
	c.Triangles(bounds, func(t shape.Triangle) bool {
		if h, ok := rayTriangle(t, o, d, math.Min(maxT, best.T)); ok && h.T < best.T {
			best, found = h, true
		}
		return true
	})
	if !found {
		return RayHit{}, false
	}
	best.Point = xf.Apply(best.Point)
	best.Normal = xf.Rotate(best.Normal)
	return best, true
}

func rayConvex(c shape.Convex, xf geom.Transform, origin, dir mgl64.Vec3, maxT float64) (RayHit, bool) {
	return advanceRay(c, xf, origin, dir, maxT, advanceIterations)
}

// advanceRay moves a point along the ray by its GJK distance to the shape
// until it reaches the surface. A gap still open after the given number of
// advances is a miss.
func advanceRay(c shape.Convex, xf geom.Transform, origin, dir mgl64.Vec3, maxT float64, iterations int) (RayHit, bool) {
	var point shape.Sphere
	r := c.Margin()
	tol := advanceTolerance * math.Max(1, c.LocalBounds().Extents().Len())

	lambda := 0.0
	x := origin
	var n mgl64.Vec3
	for iter := 0; iter <= iterations; iter++ {
		pair := newPair(&point, geom.Transform{Position: x, Rotation: mgl64.QuatIdent()}, c, xf, false)
		g := gjk(&pair)
		dist := g.distance - r
		if g.overlap || dist <= tol {
			if iter == 0 {
				return RayHit{}, false
			}
			return RayHit{T: lambda, Point: x, Normal: n}, true
		}
		if iter == iterations {
			break
		}
		n = geom.Normalize(g.pointA.Sub(g.pointB), dir.Mul(-1))
		den := -n.Dot(dir)
		if den <= geom.Epsilon {
			return RayHit{}, false
		}
		lambda += dist / den
		if lambda > maxT {
			return RayHit{}, false
		}
		x = origin.Add(dir.Mul(lambda))
	}
	// the gap never closed within the iteration cap
	return RayHit{}, false
}
