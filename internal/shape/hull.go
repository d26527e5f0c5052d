package shape

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
)

// ConvexHull is the convex hull of a point cloud.
type ConvexHull struct {
	Vertices []mgl64.Vec3
	faces    []hullFace
	bounds   geom.AABB
}

// hullFace is a planar polygon of the hull. Coplanar hull triangles are
// merged so a cube yields six quads.
type hullFace struct {
	normal mgl64.Vec3
	verts  []int
}

type hullTri struct {
	a, b, c int
	normal  mgl64.Vec3
	offset  float64
	dead    bool
}

// NewConvexHull computes the hull of points. At least four points that do
// not lie in a plane are required.
func NewConvexHull(points []mgl64.Vec3) (*ConvexHull, error) {
	if len(points) < 4 {
		return nil, fmt.Errorf("%w: convex hull needs at least 4 points, got %d", ErrInvalidShape, len(points))
	}
	for _, p := range points {
		if !geom.IsFinite(p) {
			return nil, fmt.Errorf("%w: non-finite hull point %v", ErrInvalidShape, p)
		}
	}
	tris, err := quickHull(points)
	if err != nil {
		return nil, err
	}

	used := make(map[int]int)
	var verts []mgl64.Vec3
	remap := func(i int) int {
		if j, ok := used[i]; ok {
			return j
		}
		used[i] = len(verts)
		verts = append(verts, points[i])
		return used[i]
	}
	live := tris[:0]
	for _, t := range tris {
		if t.dead {
			continue
		}
		t.a, t.b, t.c = remap(t.a), remap(t.b), remap(t.c)
		live = append(live, t)
	}

	h := &ConvexHull{Vertices: verts}
	h.faces = mergeFaces(verts, live)
	h.bounds = geom.AABB{Min: verts[0], Max: verts[0]}
	for _, v := range verts[1:] {
		h.bounds.Min = geom.Min(h.bounds.Min, v)
		h.bounds.Max = geom.Max(h.bounds.Max, v)
	}
	return h, nil
}

func (h *ConvexHull) Kind() Kind             { return KindConvexHull }
func (h *ConvexHull) Margin() float64        { return 0 }
func (h *ConvexHull) LocalBounds() geom.AABB { return h.bounds }

// FaceCount returns the number of merged planar faces.
func (h *ConvexHull) FaceCount() int { return len(h.faces) }

// Edges calls fn once for every edge of the merged faces.
func (h *ConvexHull) Edges(fn func(a, b mgl64.Vec3)) {
	seen := make(map[[2]int]bool)
	for _, f := range h.faces {
		for i, a := range f.verts {
			b := f.verts[(i+1)%len(f.verts)]
			key := [2]int{min(a, b), max(a, b)}
			if seen[key] {
				continue
			}
			seen[key] = true
			fn(h.Vertices[a], h.Vertices[b])
		}
	}
}

// Support returns the first vertex with maximal projection.
func (h *ConvexHull) Support(dir mgl64.Vec3) mgl64.Vec3 {
	best := 0
	bestDot := h.Vertices[0].Dot(dir)
	for i := 1; i < len(h.Vertices); i++ {
		if d := h.Vertices[i].Dot(dir); d > bestDot {
			best, bestDot = i, d
		}
	}
	return h.Vertices[best]
}

func (h *ConvexHull) AppendFace(dst []mgl64.Vec3, dir mgl64.Vec3) ([]mgl64.Vec3, mgl64.Vec3) {
	best := 0
	bestDot := math.Inf(-1)
	for i, f := range h.faces {
		if d := f.normal.Dot(dir); d > bestDot {
			best, bestDot = i, d
		}
	}
	f := h.faces[best]
	for _, vi := range f.verts {
		dst = append(dst, h.Vertices[vi])
	}
	return dst, f.normal
}

// MassProperties integrates the hull as a fan of tetrahedra around its
// vertex centroid.
func (h *ConvexHull) MassProperties(density float64) MassData {
	var ref mgl64.Vec3
	for _, v := range h.Vertices {
		ref = ref.Add(v)
	}
	ref = ref.Mul(1 / float64(len(h.Vertices)))

	canon := mgl64.Mat3{2, 1, 1, 1, 2, 1, 1, 1, 2}.Mul(1.0 / 120.0)
	var volume float64
	var center mgl64.Vec3
	var cov mgl64.Mat3
	for _, f := range h.faces {
		p0 := h.Vertices[f.verts[0]].Sub(ref)
		for i := 1; i+1 < len(f.verts); i++ {
			p1 := h.Vertices[f.verts[i]].Sub(ref)
			p2 := h.Vertices[f.verts[i+1]].Sub(ref)
			a := mgl64.Mat3FromCols(p0, p1, p2)
			det := a.Det()
			volume += det / 6
			center = center.Add(p0.Add(p1).Add(p2).Mul(det / 24))
			cov = cov.Add(a.Mul3(canon).Mul3(a.Transpose()).Mul(det))
		}
	}
	if volume <= geom.Epsilon {
		return MassData{}
	}
	center = center.Mul(1 / volume)
	// shift the covariance from ref to the centroid
	cov = cov.Sub(outer(center, center).Mul(volume))
	tr := cov.At(0, 0) + cov.At(1, 1) + cov.At(2, 2)
	inertia := mgl64.Ident3().Mul(tr).Sub(cov).Mul(density)
	return MassData{Mass: density * volume, Center: center.Add(ref), Inertia: inertia}
}

func outer(a, b mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3FromCols(b.Mul(a[0]), b.Mul(a[1]), b.Mul(a[2]))
}

func quickHull(points []mgl64.Vec3) ([]hullTri, error) {
	scale := 0.0
	for _, p := range points {
		scale = math.Max(scale, geom.Abs(p).Len())
	}
	eps := 1e-9 * math.Max(1, scale)

	// initial tetrahedron from extreme points
	i0, i1 := 0, 0
	for i, p := range points {
		if p[0] < points[i0][0] {
			i0 = i
		}
		if p[0] > points[i1][0] {
			i1 = i
		}
	}
	if points[i0].Sub(points[i1]).Len() < eps {
		i1 = -1
		for i, p := range points {
			if p.Sub(points[i0]).Len() > eps {
				i1 = i
				break
			}
		}
		if i1 < 0 {
			return nil, ErrDegenerateHull
		}
	}
	i2, best := -1, eps
	for i, p := range points {
		_, t := geom.ClosestPointOnSegment(p, points[i0], points[i1])
		q := points[i0].Add(points[i1].Sub(points[i0]).Mul(t))
		if d := p.Sub(q).Len(); d > best {
			i2, best = i, d
		}
	}
	if i2 < 0 {
		return nil, ErrDegenerateHull
	}
	n := points[i1].Sub(points[i0]).Cross(points[i2].Sub(points[i0])).Normalize()
	i3, best := -1, eps
	for i, p := range points {
		if d := math.Abs(p.Sub(points[i0]).Dot(n)); d > best {
			i3, best = i, d
		}
	}
	if i3 < 0 {
		return nil, ErrDegenerateHull
	}

	var tris []hullTri
	add := func(a, b, c int) {
		nrm := points[b].Sub(points[a]).Cross(points[c].Sub(points[a]))
		l := nrm.Len()
		if l < eps*eps {
			return
		}
		nrm = nrm.Mul(1 / l)
		tris = append(tris, hullTri{a: a, b: b, c: c, normal: nrm, offset: nrm.Dot(points[a])})
	}
	if points[i3].Sub(points[i0]).Dot(n) > 0 {
		i1, i2 = i2, i1
	}
	add(i0, i1, i2)
	add(i0, i3, i1)
	add(i1, i3, i2)
	add(i2, i3, i0)

	type edge struct{ a, b int }
	for pi, p := range points {
		if pi == i0 || pi == i1 || pi == i2 || pi == i3 {
			continue
		}
		var horizon []edge
		visible := false
		for ti := range tris {
			t := &tris[ti]
			if t.dead || t.normal.Dot(p)-t.offset <= eps {
				continue
			}
			visible = true
			t.dead = true
			for _, e := range [3]edge{{t.a, t.b}, {t.b, t.c}, {t.c, t.a}} {
				found := -1
				for hi, h := range horizon {
					if h.a == e.b && h.b == e.a {
						found = hi
						break
					}
				}
				if found >= 0 {
					horizon = append(horizon[:found], horizon[found+1:]...)
				} else {
					horizon = append(horizon, e)
				}
			}
		}
		if !visible {
			continue
		}
		for _, e := range horizon {
			add(e.a, e.b, pi)
		}
	}
	return tris, nil
}

func mergeFaces(verts []mgl64.Vec3, tris []hullTri) []hullFace {
	const coplanar = 1e-6
	var faces []hullFace
	assigned := make([]bool, len(tris))
	for i, t := range tris {
		if assigned[i] {
			continue
		}
		group := []int{t.a, t.b, t.c}
		for j := i + 1; j < len(tris); j++ {
			u := tris[j]
			if assigned[j] || u.normal.Dot(t.normal) < 1-coplanar || math.Abs(u.offset-t.offset) > coplanar*(1+math.Abs(t.offset)) {
				continue
			}
			assigned[j] = true
			group = append(group, u.a, u.b, u.c)
		}
		faces = append(faces, hullFace{normal: t.normal, verts: orderPolygon(verts, dedupe(group), t.normal)})
	}
	return faces
}

func dedupe(ids []int) []int {
	sort.Ints(ids)
	out := ids[:0]
	for i, v := range ids {
		if i == 0 || v != ids[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// orderPolygon sorts coplanar vertex ids counter-clockwise around normal.
func orderPolygon(verts []mgl64.Vec3, ids []int, normal mgl64.Vec3) []int {
	var c mgl64.Vec3
	for _, id := range ids {
		c = c.Add(verts[id])
	}
	c = c.Mul(1 / float64(len(ids)))
	u, v := geom.TangentBasis(normal)
	angle := func(id int) float64 {
		d := verts[id].Sub(c)
		return math.Atan2(d.Dot(v), d.Dot(u))
	}
	sort.SliceStable(ids, func(i, j int) bool { return angle(ids[i]) < angle(ids[j]) })
	return ids
}
