package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/arena"
	"github.com/san-kum/rigidsim/internal/geom"
)

const (
	epaMaxIterations = 64
	epaTolerance     = 1e-4
	epaMaxFaces      = 512
)

type epaFace struct {
	i      [3]int
	normal mgl64.Vec3
	dist   float64
	dead   bool
}

type epaEdge struct {
	a, b int
}

type epaResult struct {
	normal    mgl64.Vec3 // outward normal of A - B at the closest face
	depth     float64
	pointA    mgl64.Vec3
	pointB    mgl64.Vec3
	converged bool
}

// epa expands the simplex of an overlapping GJK run into the penetration
// depth and direction. It reports false when the Minkowski difference is
// too flat to enclose the origin.
func epa(s *Scratch, p *convexPair, sim simplex) (epaResult, bool) {
	scale := p.scale()
	if !blowUp(p, &sim, scale) {
		return epaResult{}, false
	}

	verts := s.epaVerts
	faces := s.epaFaces
	verts.Truncate(0)
	faces.Truncate(0)
	for i := 0; i < 4; i++ {
		verts.Append(sim.v[i])
	}

	// orient the tetrahedron faces outward
	for _, f := range tetraFaces {
		a, b, c, d := f[0], f[1], f[2], f[3]
		vs := verts.Items()
		n := vs[b].w.Sub(vs[a].w).Cross(vs[c].w.Sub(vs[a].w))
		if n.Dot(vs[d].w.Sub(vs[a].w)) > 0 {
			b, c = c, b
		}
		if !addFace(faces, vs, a, b, c) {
			return epaResult{}, false
		}
	}

	tol := epaTolerance * scale
	var best epaFace
	res := epaResult{}
	for iter := 0; iter < epaMaxIterations; iter++ {
		bi := closestFace(faces.Items())
		if bi < 0 {
			return epaResult{}, false
		}
		best = faces.Items()[bi]

		w := p.support(best.normal)
		if w.w.Dot(best.normal)-best.dist < tol {
			res.converged = true
			break
		}
		if len(faces.Items()) > epaMaxFaces {
			break
		}

		vi := verts.Len()
		verts.Append(w)
		vs := verts.Items()

		s.edges.Truncate(0)
		fs := faces.Items()
		for k := range fs {
			f := &fs[k]
			if f.dead || f.normal.Dot(w.w.Sub(vs[f.i[0]].w)) <= 0 {
				continue
			}
			f.dead = true
			for e := 0; e < 3; e++ {
				addHorizonEdge(s.edges, epaEdge{a: f.i[e], b: f.i[(e+1)%3]})
			}
		}
		if s.edges.Len() == 0 {
			break
		}
		for _, e := range s.edges.Items() {
			addFace(faces, vs, e.a, e.b, vi)
		}
	}

	vs := verts.Items()
	a, b, c := vs[best.i[0]], vs[best.i[1]], vs[best.i[2]]
	u, v, w := barycentric(best.normal.Mul(best.dist), a.w, b.w, c.w)
	res.normal = best.normal
	res.depth = best.dist
	res.pointA = a.a.Mul(u).Add(b.a.Mul(v)).Add(c.a.Mul(w))
	res.pointB = a.b.Mul(u).Add(b.b.Mul(v)).Add(c.b.Mul(w))
	if !geom.IsFinite(res.normal) || math.IsNaN(res.depth) {
		return epaResult{}, false
	}
	return res, true
}

func addFace(faces *arena.List[epaFace], vs []supportVertex, a, b, c int) bool {
	n := vs[b].w.Sub(vs[a].w).Cross(vs[c].w.Sub(vs[a].w))
	l := n.Len()
	if l < geom.Epsilon*geom.Epsilon {
		return false
	}
	n = n.Mul(1 / l)
	faces.Append(epaFace{i: [3]int{a, b, c}, normal: n, dist: n.Dot(vs[a].w)})
	return true
}

func closestFace(fs []epaFace) int {
	best := -1
	bestDist := math.Inf(1)
	for i := range fs {
		if !fs[i].dead && fs[i].dist < bestDist {
			best, bestDist = i, fs[i].dist
		}
	}
	return best
}

// addHorizonEdge adds e unless its reverse is present, in which case both
// are interior to the visible region and the reverse is removed.
func addHorizonEdge(edges *arena.List[epaEdge], e epaEdge) {
	items := edges.Items()
	for i, o := range items {
		if o.a == e.b && o.b == e.a {
			last := len(items) - 1
			items[i] = items[last]
			edges.Truncate(last)
			return
		}
	}
	edges.Append(e)
}

// blowUp grows a GJK simplex that ended with fewer than four vertices into
// a tetrahedron enclosing the origin.
func blowUp(p *convexPair, s *simplex, scale float64) bool {
	eps := 1e-9 * scale
	axes := [6]mgl64.Vec3{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}

	if s.n == 1 {
		for _, d := range axes {
			w := p.support(d)
			if w.w.Sub(s.v[0].w).Len() > eps {
				s.v[1] = w
				s.n = 2
				break
			}
		}
		if s.n == 1 {
			return false
		}
	}
	if s.n == 2 {
		line := s.v[1].w.Sub(s.v[0].w)
		// least aligned axis gives a perpendicular start
		axis := 0
		for i := 1; i < 3; i++ {
			if math.Abs(line[i]) < math.Abs(line[axis]) {
				axis = i
			}
		}
		perp := line.Cross(axes[2*axis]).Normalize()
		rot := mgl64.QuatRotate(math.Pi/3, line.Normalize())
		for k := 0; k < 6 && s.n == 2; k++ {
			w := p.support(perp)
			if distToLine(w.w, s.v[0].w, s.v[1].w) > eps {
				s.v[2] = w
				s.n = 3
			}
			perp = rot.Rotate(perp)
		}
		if s.n == 2 {
			return false
		}
	}
	// GJK stops once the origin is within sqrt(overlapTol) of the simplex,
	// so the origin may sit that far outside a face
	in := 1e-6 * scale
	if s.n == 3 {
		n := s.v[1].w.Sub(s.v[0].w).Cross(s.v[2].w.Sub(s.v[0].w))
		if n.Len() < eps*eps {
			return false
		}
		n = n.Normalize()
		for _, d := range [2]mgl64.Vec3{n, n.Mul(-1)} {
			w := p.support(d)
			if math.Abs(w.w.Sub(s.v[0].w).Dot(n)) <= eps {
				continue
			}
			s.v[3] = w
			s.n = 4
			if originInside(s, in) {
				return true
			}
		}
		return false
	}
	return originInside(s, in)
}

// distToLine is the distance from p to the infinite line through a and b.
func distToLine(p, a, b mgl64.Vec3) float64 {
	d := b.Sub(a)
	l := d.LenSqr()
	if l == 0 {
		return p.Sub(a).Len()
	}
	q := a.Add(d.Mul(p.Sub(a).Dot(d) / l))
	return p.Sub(q).Len()
}

// originInside reports whether the tetrahedron contains the origin, allowing
// it to lie up to tol outside a face.
func originInside(s *simplex, tol float64) bool {
	for _, f := range tetraFaces {
		a, b, c, d := s.v[f[0]].w, s.v[f[1]].w, s.v[f[2]].w, s.v[f[3]].w
		n := b.Sub(a).Cross(c.Sub(a))
		l := n.Len()
		if l == 0 {
			return false
		}
		n = n.Mul(1 / l)
		// orient n toward the opposite vertex
		if n.Dot(d.Sub(a)) < 0 {
			n = n.Mul(-1)
		}
		if n.Dot(a.Mul(-1)) < -tol {
			return false
		}
	}
	return true
}

// barycentric returns the weights of p projected onto triangle abc.
func barycentric(p, a, b, c mgl64.Vec3) (float64, float64, float64) {
	v0, v1, v2 := b.Sub(a), c.Sub(a), p.Sub(a)
	d00, d01, d11 := v0.Dot(v0), v0.Dot(v1), v1.Dot(v1)
	d20, d21 := v2.Dot(v0), v2.Dot(v1)
	den := d00*d11 - d01*d01
	if math.Abs(den) < geom.Epsilon*geom.Epsilon {
		return 1, 0, 0
	}
	v := (d11*d20 - d01*d21) / den
	w := (d00*d21 - d01*d20) / den
	return 1 - v - w, v, w
}
