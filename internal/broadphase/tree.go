// Package broadphase implements the dynamic bounding volume tree and the
// candidate pair computation built on it.
package broadphase

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
)

// NullNode marks an absent node.
const NullNode = -1

type treeNode struct {
	box    geom.AABB
	parent int // next free node while on the free list
	child1 int
	child2 int
	height int // -1 while on the free list
	data   int
}

func (n *treeNode) isLeaf() bool { return n.child1 == NullNode }

// Tree is a dynamic AABB tree. Leaves store fattened boxes so small motions
// do not touch the structure. Insertion picks the sibling that minimises
// the added surface area and rotations keep the tree height balanced.
//
// A Tree is not safe for concurrent use.
type Tree struct {
	nodes      []treeNode
	root       int
	free       int
	count      int
	insertions int
	margin     float64
	multiplier float64
	stack      []int
}

// NewTree returns an empty tree. Leaves are inflated by margin and their
// predicted displacement scaled by multiplier.
func NewTree(margin, multiplier float64) *Tree {
	t := &Tree{root: NullNode, free: NullNode, margin: margin, multiplier: multiplier}
	t.grow(16)
	return t
}

func (t *Tree) grow(capacity int) {
	old := len(t.nodes)
	t.nodes = append(t.nodes, make([]treeNode, capacity-old)...)
	for i := capacity - 1; i >= old; i-- {
		t.nodes[i] = treeNode{parent: t.free, child1: NullNode, child2: NullNode, height: -1, data: -1}
		t.free = i
	}
}

func (t *Tree) allocate() int {
	if t.free == NullNode {
		t.grow(2 * len(t.nodes))
	}
	id := t.free
	t.free = t.nodes[id].parent
	t.nodes[id] = treeNode{parent: NullNode, child1: NullNode, child2: NullNode, data: -1}
	t.count++
	return id
}

func (t *Tree) release(id int) {
	t.nodes[id] = treeNode{parent: t.free, child1: NullNode, child2: NullNode, height: -1, data: -1}
	t.free = id
	t.count--
}

// CreateProxy inserts a leaf for box carrying data and returns its id.
func (t *Tree) CreateProxy(box geom.AABB, data int) int {
	id := t.allocate()
	t.nodes[id].box = box.Expand(t.margin)
	t.nodes[id].data = data
	t.nodes[id].height = 0
	t.insertLeaf(id)
	return id
}

// DestroyProxy removes a leaf.
func (t *Tree) DestroyProxy(id int) {
	t.checkLeaf(id)
	t.removeLeaf(id)
	t.release(id)
}

// MoveProxy updates a leaf for a new tight box. The leaf is reinserted only
// when the tight box has left the fat box; the new fat box is swept along
// the predicted displacement. It reports whether the tree changed.
func (t *Tree) MoveProxy(id int, box geom.AABB, displacement mgl64.Vec3) bool {
	t.checkLeaf(id)
	if t.nodes[id].box.Contains(box) {
		return false
	}
	t.removeLeaf(id)
	t.nodes[id].box = box.Expand(t.margin).Sweep(displacement.Mul(t.multiplier))
	t.insertLeaf(id)
	return true
}

// Refit rebuilds the fat box of a leaf around box with no predicted
// displacement. It reports whether the tree changed.
func (t *Tree) Refit(id int, box geom.AABB) bool {
	t.checkLeaf(id)
	fat := box.Expand(t.margin)
	if t.nodes[id].box == fat {
		return false
	}
	t.removeLeaf(id)
	t.nodes[id].box = fat
	t.insertLeaf(id)
	return true
}

// FatAABB returns the stored box of a leaf.
func (t *Tree) FatAABB(id int) geom.AABB {
	t.checkLeaf(id)
	return t.nodes[id].box
}

// UserData returns the data attached to a leaf.
func (t *Tree) UserData(id int) int {
	t.checkLeaf(id)
	return t.nodes[id].data
}

// Len returns the number of leaves.
func (t *Tree) Len() int { return (t.count + 1) / 2 }

// Insertions returns how many leaf insertions happened so far.
func (t *Tree) Insertions() int { return t.insertions }

// Height returns the height of the root, 0 for an empty tree.
func (t *Tree) Height() int {
	if t.root == NullNode {
		return 0
	}
	return t.nodes[t.root].height
}

// AreaRatio returns the summed node area divided by the root area.
func (t *Tree) AreaRatio() float64 {
	if t.root == NullNode {
		return 0
	}
	total := 0.0
	for i := range t.nodes {
		if t.nodes[i].height >= 0 {
			total += t.nodes[i].box.SurfaceArea()
		}
	}
	rootArea := t.nodes[t.root].box.SurfaceArea()
	if rootArea == 0 {
		return 0
	}
	return total / rootArea
}

// Query calls fn for every leaf whose fat box overlaps box until fn returns
// false. The traversal stack is detached while walking, so fn may query
// the tree again.
func (t *Tree) Query(box geom.AABB, fn func(id int) bool) {
	if t.root == NullNode {
		return
	}
	stack := append(t.stack[:0], t.root)
	t.stack = nil
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[id]
		if !n.box.Overlaps(box) {
			continue
		}
		if n.isLeaf() {
			if !fn(id) {
				break
			}
			continue
		}
		stack = append(stack, n.child1, n.child2)
	}
	t.stack = stack[:0]
}

// RayCast walks the leaves whose fat box is hit by origin + s*dir with s in
// [0, maxT]. fn returns the new clip distance: 0 stops the cast, a negative
// value ignores the leaf and a positive value shortens the ray.
func (t *Tree) RayCast(origin, dir mgl64.Vec3, maxT float64, fn func(id int, maxT float64) float64) {
	if t.root == NullNode {
		return
	}
	stack := append(t.stack[:0], t.root)
	t.stack = nil
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[id]
		if _, hit := n.box.RayCast(origin, dir, maxT); !hit {
			continue
		}
		if n.isLeaf() {
			v := fn(id, maxT)
			if v == 0 {
				break
			}
			if v > 0 {
				maxT = v
			}
			continue
		}
		stack = append(stack, n.child1, n.child2)
	}
	t.stack = stack[:0]
}

func (t *Tree) checkLeaf(id int) {
	if id < 0 || id >= len(t.nodes) || t.nodes[id].height != 0 || !t.nodes[id].isLeaf() {
		panic(fmt.Sprintf("broadphase: %d is not a live proxy", id))
	}
}

func (t *Tree) insertLeaf(leaf int) {
	t.insertions++
	if t.root == NullNode {
		t.root = leaf
		t.nodes[leaf].parent = NullNode
		return
	}

	box := t.nodes[leaf].box
	index := t.root
	for !t.nodes[index].isLeaf() {
		n := &t.nodes[index]
		area := n.box.SurfaceArea()
		combined := n.box.Union(box).SurfaceArea()

		// cost of pairing with this node, and the least added cost below it
		cost := 2 * combined
		inherit := 2 * (combined - area)

		cost1 := t.descendCost(n.child1, box) + inherit
		cost2 := t.descendCost(n.child2, box) + inherit
		if cost < cost1 && cost < cost2 {
			break
		}
		if cost1 < cost2 {
			index = n.child1
		} else {
			index = n.child2
		}
	}

	sibling := index
	oldParent := t.nodes[sibling].parent
	parent := t.allocate()
	t.nodes[parent].parent = oldParent
	t.nodes[parent].box = box.Union(t.nodes[sibling].box)
	t.nodes[parent].height = t.nodes[sibling].height + 1
	t.nodes[parent].child1 = sibling
	t.nodes[parent].child2 = leaf
	t.nodes[sibling].parent = parent
	t.nodes[leaf].parent = parent

	if oldParent != NullNode {
		if t.nodes[oldParent].child1 == sibling {
			t.nodes[oldParent].child1 = parent
		} else {
			t.nodes[oldParent].child2 = parent
		}
	} else {
		t.root = parent
	}
	t.refit(t.nodes[leaf].parent)
}

func (t *Tree) descendCost(child int, box geom.AABB) float64 {
	c := &t.nodes[child]
	merged := box.Union(c.box).SurfaceArea()
	if c.isLeaf() {
		return merged
	}
	return merged - c.box.SurfaceArea()
}

func (t *Tree) removeLeaf(leaf int) {
	if leaf == t.root {
		t.root = NullNode
		return
	}
	parent := t.nodes[leaf].parent
	grand := t.nodes[parent].parent
	sibling := t.nodes[parent].child1
	if sibling == leaf {
		sibling = t.nodes[parent].child2
	}

	if grand == NullNode {
		t.root = sibling
		t.nodes[sibling].parent = NullNode
		t.release(parent)
		return
	}
	if t.nodes[grand].child1 == parent {
		t.nodes[grand].child1 = sibling
	} else {
		t.nodes[grand].child2 = sibling
	}
	t.nodes[sibling].parent = grand
	t.release(parent)
	t.refit(grand)
}

// refit walks to the root rebalancing and recomputing boxes and heights.
func (t *Tree) refit(index int) {
	for index != NullNode {
		index = t.balance(index)
		n := &t.nodes[index]
		c1, c2 := &t.nodes[n.child1], &t.nodes[n.child2]
		n.height = 1 + max(c1.height, c2.height)
		n.box = c1.box.Union(c2.box)
		index = n.parent
	}
}

// balance performs a rotation when the subtree at a is imbalanced and
// returns the index of the new subtree root.
func (t *Tree) balance(ia int) int {
	a := &t.nodes[ia]
	if a.isLeaf() || a.height < 2 {
		return ia
	}
	ib, ic := a.child1, a.child2
	b, c := &t.nodes[ib], &t.nodes[ic]
	diff := c.height - b.height

	switch {
	case diff > 1:
		t.rotateUp(ia, ic, ib, true)
		return ic
	case diff < -1:
		t.rotateUp(ia, ib, ic, false)
		return ib
	}
	return ia
}

// rotateUp lifts child up over a; other is a's remaining child. fromRight
// tells whether up was a's second child.
func (t *Tree) rotateUp(ia, iup, iother int, fromRight bool) {
	a, up, other := &t.nodes[ia], &t.nodes[iup], &t.nodes[iother]
	i1, i2 := up.child1, up.child2
	n1, n2 := &t.nodes[i1], &t.nodes[i2]

	up.child1 = ia
	up.parent = a.parent
	a.parent = iup
	if up.parent != NullNode {
		p := &t.nodes[up.parent]
		if p.child1 == ia {
			p.child1 = iup
		} else {
			p.child2 = iup
		}
	} else {
		t.root = iup
	}

	// keep the taller grandchild under up, hand the other one to a
	keep, give := i1, i2
	if n2.height > n1.height {
		keep, give = i2, i1
	}
	up.child2 = keep
	if fromRight {
		a.child2 = give
	} else {
		a.child1 = give
	}
	t.nodes[give].parent = ia

	a.box = other.box.Union(t.nodes[give].box)
	a.height = 1 + max(other.height, t.nodes[give].height)
	up.box = a.box.Union(t.nodes[keep].box)
	up.height = 1 + max(a.height, t.nodes[keep].height)
}

// Validate checks parent links, heights and box containment for the whole
// tree and panics on the first violation.
func (t *Tree) Validate() {
	if t.root == NullNode {
		return
	}
	if t.nodes[t.root].parent != NullNode {
		panic("broadphase: root has a parent")
	}
	t.validate(t.root)

	free := 0
	for i := t.free; i != NullNode; i = t.nodes[i].parent {
		free++
	}
	if free+t.count != len(t.nodes) {
		panic(fmt.Sprintf("broadphase: free list holds %d nodes, want %d", free, len(t.nodes)-t.count))
	}
}

func (t *Tree) validate(id int) int {
	n := &t.nodes[id]
	if n.isLeaf() {
		if n.child2 != NullNode || n.height != 0 {
			panic(fmt.Sprintf("broadphase: malformed leaf %d", id))
		}
		return 0
	}
	for _, c := range [2]int{n.child1, n.child2} {
		if c < 0 || c >= len(t.nodes) || t.nodes[c].parent != id {
			panic(fmt.Sprintf("broadphase: node %d has a broken child link", id))
		}
		if !n.box.Contains(t.nodes[c].box) {
			panic(fmt.Sprintf("broadphase: node %d does not contain child %d", id, c))
		}
	}
	h := 1 + max(t.validate(n.child1), t.validate(n.child2))
	if h != n.height {
		panic(fmt.Sprintf("broadphase: node %d height %d, want %d", id, n.height, h))
	}
	return h
}
