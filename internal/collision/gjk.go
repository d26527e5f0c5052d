package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

const (
	gjkMaxIterations = 32
	gjkRelTolerance  = 1e-10
)

// tieBreak is the search direction used whenever a direction degenerates.
var tieBreak = mgl64.Vec3{1, 0, 0}

// supportVertex is a vertex of the Minkowski difference A - B remembering
// the support points it came from.
type supportVertex struct {
	a, b, w mgl64.Vec3
}

// convexPair evaluates the support mapping of A - B in world space.
type convexPair struct {
	a, b          shape.Convex
	xfA, xfB      geom.Transform
	marginA       float64
	marginB       float64
	includeMargin bool
}

func newPair(a shape.Convex, xfA geom.Transform, b shape.Convex, xfB geom.Transform, includeMargin bool) convexPair {
	p := convexPair{a: a, b: b, xfA: xfA, xfB: xfB, includeMargin: includeMargin}
	if includeMargin {
		p.marginA, p.marginB = a.Margin(), b.Margin()
	}
	return p
}

func (p *convexPair) support(d mgl64.Vec3) supportVertex {
	if d.LenSqr() < geom.Epsilon*geom.Epsilon {
		d = tieBreak
	}
	pa := p.xfA.Apply(p.a.Support(p.xfA.RotateInverse(d)))
	nd := d.Mul(-1)
	pb := p.xfB.Apply(p.b.Support(p.xfB.RotateInverse(nd)))
	if p.includeMargin {
		n := d.Normalize()
		pa = pa.Add(n.Mul(p.marginA))
		pb = pb.Sub(n.Mul(p.marginB))
	}
	return supportVertex{a: pa, b: pb, w: pa.Sub(pb)}
}

// scale is a length used to turn relative tolerances into absolute ones.
func (p *convexPair) scale() float64 {
	ea := p.a.LocalBounds().Extents().Len()
	eb := p.b.LocalBounds().Extents().Len()
	return math.Max(1e-3, math.Max(ea, eb))
}

type simplex struct {
	v    [4]supportVertex
	bary [4]float64
	n    int
}

func (s *simplex) witness() (mgl64.Vec3, mgl64.Vec3) {
	var pa, pb mgl64.Vec3
	for i := 0; i < s.n; i++ {
		pa = pa.Add(s.v[i].a.Mul(s.bary[i]))
		pb = pb.Add(s.v[i].b.Mul(s.bary[i]))
	}
	return pa, pb
}

// keep reduces the simplex to the vertices flagged in mask with the given
// barycentric weights.
func (s *simplex) keep(mask uint8, bary [4]float64) {
	n := 0
	var v [4]supportVertex
	var b [4]float64
	for i := 0; i < s.n; i++ {
		if mask&(1<<i) != 0 {
			v[n] = s.v[i]
			b[n] = bary[i]
			n++
		}
	}
	s.v, s.bary, s.n = v, b, n
}

// closest reduces the simplex to the feature nearest the origin and returns
// that point. contains is true when the origin lies inside a tetrahedron.
func (s *simplex) closest() (mgl64.Vec3, bool) {
	switch s.n {
	case 1:
		s.bary[0] = 1
		return s.v[0].w, false
	case 2:
		p, mask, bary := closestOnSegment(s.v[0].w, s.v[1].w)
		s.keep(mask, bary)
		return p, false
	case 3:
		p, mask, bary := closestOnTriangle(s.v[0].w, s.v[1].w, s.v[2].w)
		s.keep(mask, bary)
		return p, false
	default:
		return s.closestTetrahedron()
	}
}

func closestOnSegment(a, b mgl64.Vec3) (mgl64.Vec3, uint8, [4]float64) {
	ab := b.Sub(a)
	den := ab.LenSqr()
	if den < geom.Epsilon*geom.Epsilon {
		return a, 1, [4]float64{1}
	}
	t := -a.Dot(ab) / den
	switch {
	case t <= 0:
		return a, 1, [4]float64{1}
	case t >= 1:
		return b, 2, [4]float64{0, 1}
	}
	return a.Add(ab.Mul(t)), 3, [4]float64{1 - t, t}
}

// closestOnTriangle finds the point of triangle abc closest to the origin
// by Voronoi region classification.
func closestOnTriangle(a, b, c mgl64.Vec3) (mgl64.Vec3, uint8, [4]float64) {
	ab, ac := b.Sub(a), c.Sub(a)
	ap := a.Mul(-1)
	d1, d2 := ab.Dot(ap), ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a, 1, [4]float64{1}
	}
	bp := b.Mul(-1)
	d3, d4 := ab.Dot(bp), ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b, 2, [4]float64{0, 1}
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return a.Add(ab.Mul(v)), 3, [4]float64{1 - v, v}
	}
	cp := c.Mul(-1)
	d5, d6 := ab.Dot(cp), ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c, 4, [4]float64{0, 0, 1}
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return a.Add(ac.Mul(w)), 5, [4]float64{1 - w, 0, w}
	}
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).Mul(w)), 6, [4]float64{0, 1 - w, w}
	}
	den := va + vb + vc
	if math.Abs(den) < geom.Epsilon*geom.Epsilon {
		// degenerate triangle, fall back to edge ab
		p, mask, bary := closestOnSegment(a, b)
		return p, mask, bary
	}
	v, w := vb/den, vc/den
	return a.Add(ab.Mul(v)).Add(ac.Mul(w)), 7, [4]float64{1 - v - w, v, w}
}

var tetraFaces = [4][4]int{
	{0, 1, 2, 3},
	{0, 2, 3, 1},
	{0, 3, 1, 2},
	{1, 3, 2, 0},
}

func (s *simplex) closestTetrahedron() (mgl64.Vec3, bool) {
	best := math.Inf(1)
	var bestP mgl64.Vec3
	var bestMask uint8
	var bestBary [4]float64
	outside := false

	for _, f := range tetraFaces {
		a, b, c, d := s.v[f[0]].w, s.v[f[1]].w, s.v[f[2]].w, s.v[f[3]].w
		n := b.Sub(a).Cross(c.Sub(a))
		sp := n.Dot(a.Mul(-1))
		sd := n.Dot(d.Sub(a))
		flat := math.Abs(sd) < geom.Epsilon*geom.Epsilon
		if !flat && sp*sd > 0 {
			continue
		}
		outside = true
		p, mask, bary := closestOnTriangle(a, b, c)
		if dist := p.LenSqr(); dist < best {
			best, bestP = dist, p
			bestMask, bestBary = 0, [4]float64{}
			for k := 0; k < 3; k++ {
				if mask&(1<<k) != 0 {
					bestMask |= 1 << f[k]
					bestBary[f[k]] = bary[k]
				}
			}
		}
	}
	if !outside {
		return mgl64.Vec3{}, true
	}
	s.keep(bestMask, bestBary)
	return bestP, false
}

type gjkResult struct {
	overlap    bool
	distance   float64
	pointA     mgl64.Vec3
	pointB     mgl64.Vec3
	simplex    simplex
	iterations int
}

// gjk computes the distance between the two shapes of p or reports overlap.
// On overlap the final simplex is kept for EPA.
func gjk(p *convexPair) gjkResult {
	var s simplex
	d := p.xfB.Position.Sub(p.xfA.Position)
	s.v[0] = p.support(d)
	s.n = 1

	scale := p.scale()
	overlapTol := 1e-12 * scale * scale

	var res gjkResult
	var v mgl64.Vec3
	for res.iterations = 0; res.iterations < gjkMaxIterations; res.iterations++ {
		var contains bool
		v, contains = s.closest()
		vv := v.LenSqr()
		if contains || vv <= overlapTol {
			res.overlap = true
			res.simplex = s
			return res
		}

		w := p.support(v.Mul(-1))
		if vv-v.Dot(w.w) <= gjkRelTolerance*vv {
			break
		}
		duplicate := false
		for i := 0; i < s.n; i++ {
			if s.v[i].w.Sub(w.w).LenSqr() < overlapTol {
				duplicate = true
				break
			}
		}
		if duplicate {
			break
		}
		s.v[s.n] = w
		s.bary[s.n] = 0
		s.n++
	}

	res.pointA, res.pointB = s.witness()
	res.distance = v.Len()
	res.simplex = s
	return res
}
