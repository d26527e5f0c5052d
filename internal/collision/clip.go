package collision

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/arena"
	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

// faces whose normal deviates further than this from the contact normal do
// not clip; the single deepest point is used instead
const minFaceAlignment = 0.9

// clipFaces builds a face manifold along contact normal n (B toward A) and
// returns the number of points emitted.
func (s *Scratch) clipFaces(pa shape.Polyhedron, xfA geom.Transform, pb shape.Polyhedron, xfB geom.Transform, n mgl64.Vec3) int {
	start := s.points.Len()

	s.loadFace(s.polyA, pa, xfA, n.Mul(-1))
	nA := s.faceNormal
	s.loadFace(s.polyB, pb, xfB, n)
	nB := s.faceNormal

	alignA := -nA.Dot(n)
	alignB := nB.Dot(n)
	if alignA < minFaceAlignment && alignB < minFaceAlignment {
		return 0
	}

	// B wins near ties so resting stacks pick the lower face consistently
	refIsB := alignB+1e-3 >= alignA
	ref, inc, refN := s.polyB, s.polyA, nB
	if !refIsB {
		ref, inc, refN = s.polyA, s.polyB, nA
	}

	out := clipAgainst(ref.Items(), refN, inc, s.clip)
	origin := ref.Items()[0]
	for _, p := range out.Items() {
		sep := p.Sub(origin).Dot(refN)
		if sep >= 0 {
			continue
		}
		onRef := p.Sub(refN.Mul(sep))
		if refIsB {
			s.emit(Point{PointA: p, PointB: onRef, Normal: refN, Separation: sep})
		} else {
			s.emit(Point{PointA: onRef, PointB: p, Normal: refN.Mul(-1), Separation: sep})
		}
	}
	return s.points.Len() - start
}

// loadFace fills dst with the world-space face of p most aligned with dir
// and leaves its normal in s.faceNormal.
func (s *Scratch) loadFace(dst *arena.List[mgl64.Vec3], p shape.Polyhedron, xf geom.Transform, dir mgl64.Vec3) {
	var local mgl64.Vec3
	s.face, local = p.AppendFace(s.face[:0], xf.RotateInverse(dir))
	dst.Truncate(0)
	for _, v := range s.face {
		dst.Append(xf.Apply(v))
	}
	s.faceNormal = xf.Rotate(local)
}

// clipAgainst clips polygon inc by the side planes of the convex polygon ref
// (counter-clockwise around refN) using Sutherland-Hodgman. inc and tmp are
// used as ping-pong buffers; the returned list holds the result.
func clipAgainst(ref []mgl64.Vec3, refN mgl64.Vec3, inc, tmp *arena.List[mgl64.Vec3]) *arena.List[mgl64.Vec3] {
	in, out := inc, tmp
	for i := range ref {
		a, b := ref[i], ref[(i+1)%len(ref)]
		side := b.Sub(a).Cross(refN)
		if side.LenSqr() < geom.Epsilon*geom.Epsilon {
			continue
		}
		side = side.Normalize()
		clipPlane(in.Items(), side, side.Dot(a), out)
		in, out = out, in
		if in.Len() == 0 {
			break
		}
	}
	return in
}

// clipPlane appends to dst the part of polygon poly with n.p <= d.
func clipPlane(poly []mgl64.Vec3, n mgl64.Vec3, d float64, dst *arena.List[mgl64.Vec3]) {
	dst.Truncate(0)
	if len(poly) == 0 {
		return
	}
	prev := poly[len(poly)-1]
	prevD := n.Dot(prev) - d
	for _, cur := range poly {
		curD := n.Dot(cur) - d
		if (prevD <= 0) != (curD <= 0) {
			t := prevD / (prevD - curD)
			dst.Append(prev.Add(cur.Sub(prev).Mul(t)))
		}
		if curD <= 0 {
			dst.Append(cur)
		}
		prev, prevD = cur, curD
	}
}
