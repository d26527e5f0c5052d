package collision

import (
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/arena"
	"github.com/san-kum/rigidsim/internal/broadphase"
	"github.com/san-kum/rigidsim/internal/geom"
)

// MaxPoints is the manifold capacity.
const MaxPoints = 4

// MatchTolerance is the distance within which a new contact is treated as
// the continuation of an old one.
const MatchTolerance = 0.02

// ContactPoint is a manifold point with its accumulated impulses.
type ContactPoint struct {
	LocalA     mgl64.Vec3 // anchor in body A's frame
	LocalB     mgl64.Vec3 // anchor in body B's frame
	PointA     mgl64.Vec3
	PointB     mgl64.Vec3
	Normal     mgl64.Vec3 // from B toward A
	Tangent1   mgl64.Vec3
	Tangent2   mgl64.Vec3
	Separation float64

	NormalImpulse  float64
	TangentImpulse [2]float64

	// Persisted is set when the point matched one from the previous step.
	Persisted bool
}

// Manifold is the persistent contact state of a collider pair.
type Manifold struct {
	Pair        broadphase.Pair
	Points      [MaxPoints]ContactPoint
	Count       int
	Friction    float64
	Restitution float64

	wasTouching bool
}

// Touching reports whether the manifold currently holds points.
func (m *Manifold) Touching() bool { return m.Count > 0 }

// WasTouching reports whether the manifold held points before the last
// Update.
func (m *Manifold) WasTouching() bool { return m.wasTouching }

// Update replaces the manifold contents with pts, reducing to MaxPoints and
// carrying accumulated impulses over from matching old points. xfA and xfB
// are the body transforms used to compute local anchors.
func (m *Manifold) Update(pts []Point, xfA, xfB geom.Transform) {
	m.wasTouching = m.Count > 0
	old := m.Points
	oldCount := m.Count

	var keep [MaxPoints]int
	n := reduce(pts, keep[:])

	var used [MaxPoints]bool
	m.Count = n
	tol2 := MatchTolerance * MatchTolerance
	for i := 0; i < n; i++ {
		p := pts[keep[i]]
		cp := ContactPoint{
			LocalA:     xfA.ApplyInverse(p.PointA),
			LocalB:     xfB.ApplyInverse(p.PointB),
			PointA:     p.PointA,
			PointB:     p.PointB,
			Normal:     p.Normal,
			Separation: p.Separation,
		}
		cp.Tangent1, cp.Tangent2 = geom.TangentBasis(p.Normal)

		best, bestD := -1, tol2
		for j := 0; j < oldCount; j++ {
			if used[j] {
				continue
			}
			da := old[j].LocalA.Sub(cp.LocalA).LenSqr()
			db := old[j].LocalB.Sub(cp.LocalB).LenSqr()
			if d := math.Max(da, db); d < bestD {
				best, bestD = j, d
			}
		}
		if best >= 0 {
			used[best] = true
			cp.NormalImpulse = old[best].NormalImpulse
			cp.TangentImpulse = old[best].TangentImpulse
			cp.Persisted = true
		}
		m.Points[i] = cp
	}
	for i := n; i < MaxPoints; i++ {
		m.Points[i] = ContactPoint{}
	}
}

// Clear empties the manifold, remembering whether it was touching.
func (m *Manifold) Clear() {
	m.wasTouching = m.Count > 0
	m.Count = 0
	m.Points = [MaxPoints]ContactPoint{}
}

// reduce writes into keep the indices of at most MaxPoints points of pts
// and returns how many were chosen. Larger sets keep the deepest point, the
// point farthest from it, the point spanning the largest triangle with
// those two and finally the point adding the most area outside it.
func reduce(pts []Point, keep []int) int {
	if len(pts) <= MaxPoints {
		for i := range pts {
			keep[i] = i
		}
		return len(pts)
	}

	n := pts[0].Normal
	i0 := 0
	for i, p := range pts {
		if p.Separation < pts[i0].Separation {
			i0 = i
		}
	}
	a := pts[i0].PointA

	i1, best := -1, -1.0
	for i, p := range pts {
		if i == i0 {
			continue
		}
		if d := p.PointA.Sub(a).LenSqr(); d > best {
			i1, best = i, d
		}
	}
	b := pts[i1].PointA

	i2, best := -1, -1.0
	var signed float64
	for i, p := range pts {
		if i == i0 || i == i1 {
			continue
		}
		area := b.Sub(a).Cross(p.PointA.Sub(a)).Dot(n)
		if math.Abs(area) > best {
			i2, best, signed = i, math.Abs(area), area
		}
	}
	c := pts[i2].PointA
	// orient the triangle counter-clockwise around n
	if signed < 0 {
		b, c = c, b
	}

	i3, best := -1, 0.0
	for i, p := range pts {
		if i == i0 || i == i1 || i == i2 {
			continue
		}
		q := p.PointA
		for _, e := range [3][2]mgl64.Vec3{{a, b}, {b, c}, {c, a}} {
			// negative area means q lies outside edge e
			if out := -e[1].Sub(e[0]).Cross(q.Sub(e[0])).Dot(n); out > best {
				i3, best = i, out
			}
		}
	}

	keep[0], keep[1], keep[2] = i0, i1, i2
	if i3 < 0 {
		return 3
	}
	keep[3] = i3
	return 4
}

// ManifoldTable owns the manifolds of all collider pairs. Manifold pointers
// are invalidated by Acquire, so callers finish acquiring before resolving.
type ManifoldTable struct {
	pool  *arena.Pool[Manifold]
	index map[broadphase.Pair]arena.Handle
}

// NewManifoldTable creates an empty manifold table.
func NewManifoldTable(capacity int) *ManifoldTable {
	return &ManifoldTable{
		pool:  arena.NewPool[Manifold](capacity),
		index: make(map[broadphase.Pair]arena.Handle, capacity),
	}
}

// Acquire returns the handle for pair, creating an empty manifold if none
// exists. created reports whether it was new.
func (t *ManifoldTable) Acquire(pair broadphase.Pair) (h arena.Handle, created bool) {
	if h, ok := t.index[pair]; ok {
		return h, false
	}
	h, m := t.pool.Acquire()
	m.Pair = pair
	t.index[pair] = h
	return h, true
}

// Lookup returns the handle for pair.
func (t *ManifoldTable) Lookup(pair broadphase.Pair) (arena.Handle, bool) {
	h, ok := t.index[pair]
	return h, ok
}

// At resolves a handle.
func (t *ManifoldTable) At(h arena.Handle) *Manifold { return t.pool.At(h) }

// Release drops the manifold of pair.
func (t *ManifoldTable) Release(pair broadphase.Pair) {
	h, ok := t.index[pair]
	if !ok {
		return
	}
	t.pool.Release(h)
	delete(t.index, pair)
}

// Len returns the number of live manifolds.
func (t *ManifoldTable) Len() int { return len(t.index) }

// AppendPairs appends every live pair to dst in sorted order.
func (t *ManifoldTable) AppendPairs(dst []broadphase.Pair) []broadphase.Pair {
	start := len(dst)
	for p := range t.index {
		dst = append(dst, p)
	}
	slices.SortFunc(dst[start:], comparePairs)
	return dst
}

func comparePairs(x, y broadphase.Pair) int {
	if x.Less(y) {
		return -1
	}
	if y.Less(x) {
		return 1
	}
	return 0
}
