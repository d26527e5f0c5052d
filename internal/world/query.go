package world

import (
	"cmp"
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/collision"
	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/geom"
)

// RayHit is a ray query result.
type RayHit struct {
	Collider *dynamics.Collider
	Distance float64
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
}

// RayCast returns every collider hit by the ray within maxDistance, sorted
// by distance with ties broken by collider id. Rays starting inside a shape
// do not hit it.
func (w *World) RayCast(origin, dir mgl64.Vec3, maxDistance float64) []RayHit {
	d, ok := rayDir(dir, maxDistance)
	if !ok {
		return nil
	}
	var hits []RayHit
	w.bp.RayCast(origin, d, maxDistance, func(id int, maxT float64) float64 {
		c := w.colliders[id]
		if h, ok := collision.RayCast(proxyOf(c), origin, d, maxT); ok {
			hits = append(hits, RayHit{Collider: c, Distance: h.T, Point: h.Point, Normal: h.Normal})
		}
		return maxT
	})
	slices.SortFunc(hits, func(x, y RayHit) int {
		if c := cmp.Compare(x.Distance, y.Distance); c != 0 {
			return c
		}
		return cmp.Compare(x.Collider.ID(), y.Collider.ID())
	})
	return hits
}

// RayCastClosest returns the nearest hit.
func (w *World) RayCastClosest(origin, dir mgl64.Vec3, maxDistance float64) (RayHit, bool) {
	d, ok := rayDir(dir, maxDistance)
	if !ok {
		return RayHit{}, false
	}
	var best RayHit
	found := false
	w.bp.RayCast(origin, d, maxDistance, func(id int, maxT float64) float64 {
		c := w.colliders[id]
		h, ok := collision.RayCast(proxyOf(c), origin, d, maxT)
		if !ok {
			return maxT
		}
		if !found || h.T < best.Distance || (h.T == best.Distance && c.ID() < best.Collider.ID()) {
			best = RayHit{Collider: c, Distance: h.T, Point: h.Point, Normal: h.Normal}
			found = true
		}
		return h.T
	})
	return best, found
}

func rayDir(dir mgl64.Vec3, maxDistance float64) (mgl64.Vec3, bool) {
	l := dir.Len()
	if l < geom.Epsilon || !(maxDistance > 0) || !geom.IsFinite(dir) {
		return mgl64.Vec3{}, false
	}
	return dir.Mul(1 / l), true
}

// QueryAABB returns every collider whose broad phase box overlaps box,
// sorted by id.
func (w *World) QueryAABB(box geom.AABB) []*dynamics.Collider {
	var out []*dynamics.Collider
	w.bp.QueryAABB(box, func(id int) bool {
		out = append(out, w.colliders[id])
		return true
	})
	slices.SortFunc(out, func(x, y *dynamics.Collider) int { return cmp.Compare(x.ID(), y.ID()) })
	return out
}
