package broadphase

import (
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/arena"
	"github.com/san-kum/rigidsim/internal/geom"
)

// Pair is a candidate collider pair with A < B.
type Pair struct {
	A, B int
}

// MakePair orders two collider ids into a Pair.
func MakePair(a, b int) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Less orders pairs lexicographically.
func (p Pair) Less(o Pair) bool {
	if p.A != o.A {
		return p.A < o.A
	}
	return p.B < o.B
}

// Filter decides whether two colliders may form a pair.
type Filter func(a, b int) bool

// BroadPhase maps collider ids to tree proxies and computes candidate pairs.
type BroadPhase struct {
	tree    *Tree
	proxies map[int]int // collider id -> proxy
	moved   int
	pairs   *arena.List[Pair]
	leaves  *arena.List[int]
}

// New creates a broad phase whose frame buffers live in a.
func New(a *arena.Arena, margin, multiplier float64) *BroadPhase {
	return &BroadPhase{
		tree:    NewTree(margin, multiplier),
		proxies: make(map[int]int),
		pairs:   arena.NewList[Pair](a, "broadphase.pairs", 256),
		leaves:  arena.NewList[int](a, "broadphase.leaves", 256),
	}
}

// Tree exposes the underlying tree for queries and validation.
func (bp *BroadPhase) Tree() *Tree { return bp.tree }

// Add registers a collider with its tight box.
func (bp *BroadPhase) Add(collider int, box geom.AABB) {
	if _, ok := bp.proxies[collider]; ok {
		panic("broadphase: collider added twice")
	}
	bp.proxies[collider] = bp.tree.CreateProxy(box, collider)
}

// Remove unregisters a collider.
func (bp *BroadPhase) Remove(collider int) {
	proxy, ok := bp.proxies[collider]
	if !ok {
		return
	}
	bp.tree.DestroyProxy(proxy)
	delete(bp.proxies, collider)
}

// Update refreshes a collider box; displacement is the motion predicted for
// the coming step.
func (bp *BroadPhase) Update(collider int, box geom.AABB, displacement mgl64.Vec3) {
	proxy, ok := bp.proxies[collider]
	if !ok {
		panic("broadphase: update of unknown collider")
	}
	if bp.tree.MoveProxy(proxy, box, displacement) {
		bp.moved++
	}
}

// Refit snaps a collider box to its current pose, dropping any swept
// motion. Used for colliders that stop moving.
func (bp *BroadPhase) Refit(collider int, box geom.AABB) {
	proxy, ok := bp.proxies[collider]
	if !ok {
		panic("broadphase: refit of unknown collider")
	}
	if bp.tree.Refit(proxy, box) {
		bp.moved++
	}
}

// FatAABB returns the fattened box of a collider.
func (bp *BroadPhase) FatAABB(collider int) (geom.AABB, bool) {
	proxy, ok := bp.proxies[collider]
	if !ok {
		return geom.AABB{}, false
	}
	return bp.tree.FatAABB(proxy), true
}

// Moved returns how many proxies were reinserted since the last
// ComputeOverlappingPairs.
func (bp *BroadPhase) Moved() int { return bp.moved }

// Len returns the number of registered colliders.
func (bp *BroadPhase) Len() int { return len(bp.proxies) }

// ComputeOverlappingPairs returns every unique pair of colliders whose fat
// boxes overlap and that the filter accepts, sorted by (A, B). The result
// is valid until the next arena reset.
func (bp *BroadPhase) ComputeOverlappingPairs(filter Filter) []Pair {
	bp.moved = 0
	bp.leaves.Truncate(0)
	bp.pairs.Truncate(0)
	// leaves in collider order so traversal does not depend on map order
	for collider := range bp.proxies {
		bp.leaves.Append(collider)
	}
	leaves := bp.leaves.Items()
	slices.Sort(leaves)

	for _, collider := range leaves {
		proxy := bp.proxies[collider]
		box := bp.tree.FatAABB(proxy)
		bp.tree.Query(box, func(other int) bool {
			if other == proxy {
				return true
			}
			oc := bp.tree.UserData(other)
			// each unordered pair is produced from its lower collider id
			if oc < collider {
				return true
			}
			if filter != nil && !filter(collider, oc) {
				return true
			}
			bp.pairs.Append(Pair{A: collider, B: oc})
			return true
		})
	}

	pairs := bp.pairs.Items()
	slices.SortFunc(pairs, func(x, y Pair) int {
		if x.Less(y) {
			return -1
		}
		if y.Less(x) {
			return 1
		}
		return 0
	})
	return slices.Compact(pairs)
}

// QueryAABB calls fn with the collider id of every proxy whose fat box
// overlaps box until fn returns false.
func (bp *BroadPhase) QueryAABB(box geom.AABB, fn func(collider int) bool) {
	bp.tree.Query(box, func(proxy int) bool {
		return fn(bp.tree.UserData(proxy))
	})
}

// RayCast forwards to the tree with collider ids.
func (bp *BroadPhase) RayCast(origin, dir mgl64.Vec3, maxT float64, fn func(collider int, maxT float64) float64) {
	bp.tree.RayCast(origin, dir, maxT, func(proxy int, maxT float64) float64 {
		return fn(bp.tree.UserData(proxy), maxT)
	})
}
