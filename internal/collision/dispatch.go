package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

type collideFunc func(s *Scratch, a, b Proxy)

var table [shape.NumKinds][shape.NumKinds]collideFunc

// a capsule whose axis is this close to the contact plane rests on both ends
const capsuleFlat = 0.2

func init() {
	register(shape.KindSphere, shape.KindSphere, sphereSphere)
	register(shape.KindSphere, shape.KindCapsule, sphereCapsule)
	register(shape.KindCapsule, shape.KindCapsule, capsuleCapsule)

	polyhedra := []shape.Kind{shape.KindBox, shape.KindConvexHull, shape.KindTriangle}
	for _, r := range []shape.Kind{shape.KindSphere, shape.KindCapsule} {
		for _, p := range polyhedra {
			register(r, p, roundPolyhedron)
		}
	}
	for i, a := range polyhedra {
		for _, b := range polyhedra[i:] {
			register(a, b, polyhedronPolyhedron)
		}
	}

	convex := []shape.Kind{shape.KindSphere, shape.KindCapsule, shape.KindBox, shape.KindConvexHull, shape.KindTriangle}
	for _, c := range convex {
		register(c, shape.KindTriangleMesh, convexConcave)
		register(c, shape.KindHeightField, convexConcave)
	}
}

// register installs fn for (a, b) and its mirror for (b, a).
func register(a, b shape.Kind, fn collideFunc) {
	table[a][b] = fn
	if a != b {
		table[b][a] = flipped(fn)
	}
}

func flipped(fn collideFunc) collideFunc {
	return func(s *Scratch, a, b Proxy) {
		start := s.points.Len()
		fn(s, b, a)
		pts := s.points.Items()[start:]
		for i := range pts {
			pts[i].PointA, pts[i].PointB = pts[i].PointB, pts[i].PointA
			pts[i].Normal = pts[i].Normal.Mul(-1)
		}
	}
}

func sphereSphere(s *Scratch, a, b Proxy) {
	ra := a.Shape.(*shape.Sphere).Radius
	rb := b.Shape.(*shape.Sphere).Radius
	s.roundPoints(a.Transform.Position, ra, b.Transform.Position, rb)
}

func sphereCapsule(s *Scratch, a, b Proxy) {
	ra := a.Shape.(*shape.Sphere).Radius
	c := b.Shape.(*shape.Capsule)
	p, q := capsuleSegment(c, b.Transform)
	cb, _ := geom.ClosestPointOnSegment(a.Transform.Position, p, q)
	s.roundPoints(a.Transform.Position, ra, cb, c.Radius)
}

func capsuleCapsule(s *Scratch, a, b Proxy) {
	ca := a.Shape.(*shape.Capsule)
	cb := b.Shape.(*shape.Capsule)
	p1, q1 := capsuleSegment(ca, a.Transform)
	p2, q2 := capsuleSegment(cb, b.Transform)
	x, y := geom.ClosestPointsSegments(p1, q1, p2, q2)
	s.roundPoints(x, ca.Radius, y, cb.Radius)
}

// roundPoints emits the contact between two spheres centred on ca and cb.
func (s *Scratch) roundPoints(ca mgl64.Vec3, ra float64, cb mgl64.Vec3, rb float64) mgl64.Vec3 {
	d := ca.Sub(cb)
	n := geom.Normalize(d, tieBreak)
	s.emit(Point{
		PointA:     ca.Sub(n.Mul(ra)),
		PointB:     cb.Add(n.Mul(rb)),
		Normal:     n,
		Separation: d.Len() - ra - rb,
	})
	return n
}

func capsuleSegment(c *shape.Capsule, xf geom.Transform) (mgl64.Vec3, mgl64.Vec3) {
	p, q := c.Segment()
	return xf.Apply(p), xf.Apply(q)
}

// roundPolyhedron collides a sphere or capsule A with a flat-faced shape B
// by running GJK on A's core and inflating the result by its radius.
func roundPolyhedron(s *Scratch, a, b Proxy) {
	start := s.points.Len()
	n, ok := s.roundCore(a.Shape.(shape.Convex), a.Transform, b)
	if !ok {
		return
	}
	c, isCapsule := a.Shape.(*shape.Capsule)
	if !isCapsule {
		return
	}
	p, q := c.Segment()
	axis := a.Transform.Rotate(q.Sub(p)).Normalize()
	if math.Abs(axis.Dot(n)) >= capsuleFlat {
		return
	}
	s.points.Truncate(start)
	s.sphere.Radius = c.Radius
	for _, end := range [2]mgl64.Vec3{p, q} {
		xf := geom.Transform{Position: a.Transform.Apply(end), Rotation: a.Transform.Rotation}
		s.roundCore(&s.sphere, xf, b)
	}
}

// roundCore emits at most one point and returns its normal.
func (s *Scratch) roundCore(round shape.Convex, xfA geom.Transform, b Proxy) (mgl64.Vec3, bool) {
	r := round.Margin()
	pair := newPair(round, xfA, b.Shape.(shape.Convex), b.Transform, false)
	g := gjk(&pair)
	if !g.overlap {
		if g.distance >= r {
			return mgl64.Vec3{}, false
		}
		n := geom.Normalize(g.pointA.Sub(g.pointB), tieBreak)
		s.emit(Point{
			PointA:     g.pointA.Sub(n.Mul(r)),
			PointB:     g.pointB,
			Normal:     n,
			Separation: g.distance - r,
		})
		return n, true
	}

	e, ok := epa(s, &pair, g.simplex)
	if !ok {
		s.Degenerate++
		return mgl64.Vec3{}, false
	}
	n := e.normal.Mul(-1)
	s.emit(Point{
		PointA:     e.pointA.Sub(n.Mul(r)),
		PointB:     e.pointB,
		Normal:     n,
		Separation: -e.depth - r,
	})
	return n, true
}

// polyhedronPolyhedron finds the penetration axis with EPA and then clips
// the incident face against the reference face for a full manifold.
func polyhedronPolyhedron(s *Scratch, a, b Proxy) {
	pa := a.Shape.(shape.Polyhedron)
	pb := b.Shape.(shape.Polyhedron)
	pair := newPair(pa, a.Transform, pb, b.Transform, false)
	g := gjk(&pair)
	if !g.overlap {
		return
	}
	e, ok := epa(s, &pair, g.simplex)
	if !ok {
		s.Degenerate++
		s.faceAxes(&pair, pa, a.Transform, pb, b.Transform)
		return
	}
	if e.depth <= geom.Epsilon {
		return
	}
	n := e.normal.Mul(-1)
	if s.clipFaces(pa, a.Transform, pb, b.Transform, n) == 0 {
		s.emit(Point{PointA: e.pointA, PointB: e.pointB, Normal: n, Separation: -e.depth})
	}
}

// faceAxes resolves an overlap EPA could not by testing face normals of
// both shapes as separating axes and contacting along the shallowest one.
// Face axes miss edge-edge contacts, which leaves those to the next step.
func (s *Scratch) faceAxes(pair *convexPair, pa shape.Polyhedron, xfA geom.Transform, pb shape.Polyhedron, xfB geom.Transform) {
	var axes [16]mgl64.Vec3
	k := 0
	addAxis := func(p shape.Polyhedron, xf geom.Transform, dir mgl64.Vec3) {
		var local mgl64.Vec3
		s.face, local = p.AppendFace(s.face[:0], xf.RotateInverse(dir))
		if n := xf.Rotate(local); n.LenSqr() > 0.5 && k < len(axes) {
			axes[k] = n.Normalize()
			k++
		}
	}
	for i := 0; i < 3; i++ {
		var e mgl64.Vec3
		e[i] = 1
		addAxis(pa, xfA, xfA.Rotate(e))
		addAxis(pa, xfA, xfA.Rotate(e.Mul(-1)))
		addAxis(pb, xfB, xfB.Rotate(e))
		addAxis(pb, xfB, xfB.Rotate(e.Mul(-1)))
	}
	centres := xfA.Position.Sub(xfB.Position)
	if centres.LenSqr() > geom.Epsilon*geom.Epsilon {
		addAxis(pa, xfA, centres.Mul(-1))
		addAxis(pb, xfB, centres)
	}

	// normal points from B toward A; separation along n is the gap between
	// A's lowest and B's highest point
	best, bestSep := mgl64.Vec3{}, math.Inf(-1)
	for _, ax := range axes[:k] {
		for _, n := range [2]mgl64.Vec3{ax, ax.Mul(-1)} {
			sep := pair.support(n.Mul(-1)).w.Dot(n)
			if sep > bestSep {
				best, bestSep = n, sep
			}
		}
	}
	if k == 0 || bestSep >= -touchTolerance {
		return
	}
	if s.clipFaces(pa, xfA, pb, xfB, best) == 0 {
		deep := pair.support(best.Mul(-1)).a
		s.emit(Point{PointA: deep, PointB: deep.Sub(best.Mul(bestSep)), Normal: best, Separation: bestSep})
	}
}

// convexConcave narrows concave B to the triangles overlapping A and
// collides each one as a world-space triangle.
func convexConcave(s *Scratch, a, b Proxy) {
	conc := b.Shape.(shape.Concave)
	fn := table[a.Shape.Kind()][shape.KindTriangle]
	local := a.Shape.LocalBounds().Transformed(b.Transform.Inverse().Mul(a.Transform))
	conc.Triangles(local, func(t shape.Triangle) bool {
		s.tri = t.Transformed(b.Transform)
		fn(s, a, Proxy{Shape: s.tri, Transform: geom.Identity()})
		return true
	})
}
