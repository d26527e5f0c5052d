package dynamics

import (
	"fmt"
	"math"
	"slices"

	"github.com/san-kum/rigidsim/internal/arena"
	"github.com/san-kum/rigidsim/internal/collision"
	"github.com/san-kum/rigidsim/internal/geom"
)

// ContactEdge is a touching, non-trigger manifold between two bodies as
// seen by the island builder. A owns the manifold's A collider.
type ContactEdge struct {
	A, B *Body
	M    *collision.Manifold
}

// JointRef ties a joint to the island state indices of its bodies.
type JointRef struct {
	J      Joint
	IA, IB int
}

// Island is a connected set of awake dynamic bodies plus read-only entries
// for the static and kinematic bodies their constraints reach. Islands live
// in arena memory and are valid until the next step.
type Island struct {
	Bodies   []*Body
	Contacts []ContactRef
	Joints   []JointRef

	states      []BodyState
	constraints []contactConstraint
}

// SolveResult reports what an island solve ended with.
type SolveResult struct {
	Slept          bool
	PositionSolved bool
	MinSeparation  float64
}

type edgeKind uint8

const (
	contactEdge edgeKind = iota
	jointEdge
)

type adjacency struct {
	kind  edgeKind
	index int
}

// IslandBuilder partitions the awake bodies into islands each step. All of
// its storage comes from the arena it was created with.
type IslandBuilder struct {
	offsets     *arena.Slab[int]
	fill        *arena.Slab[int]
	adj         *arena.Slab[adjacency]
	claimed     *arena.Slab[bool]
	islands     *arena.Slab[Island]
	bodies      *arena.Slab[*Body]
	contactRefs *arena.Slab[ContactRef]
	jointRefs   *arena.Slab[JointRef]
	states      *arena.Slab[BodyState]
	constraints *arena.Slab[contactConstraint]

	stack      *arena.List[*Body]
	islandBody *arena.List[*Body]
	contactIdx *arena.List[int]
	jointIdx   *arena.List[int]
	out        *arena.List[*Island]

	stamp  int
	serial int
}

// NewIslandBuilder registers the builder's storage with a.
func NewIslandBuilder(a *arena.Arena) *IslandBuilder {
	return &IslandBuilder{
		offsets:     arena.NewSlab[int](a, "island.offsets", 256),
		fill:        arena.NewSlab[int](a, "island.fill", 256),
		adj:         arena.NewSlab[adjacency](a, "island.adj", 1024),
		claimed:     arena.NewSlab[bool](a, "island.claimed", 1024),
		islands:     arena.NewSlab[Island](a, "island.islands", 64),
		bodies:      arena.NewSlab[*Body](a, "island.bodies", 256),
		contactRefs: arena.NewSlab[ContactRef](a, "island.contacts", 512),
		jointRefs:   arena.NewSlab[JointRef](a, "island.joints", 128),
		states:      arena.NewSlab[BodyState](a, "island.states", 256),
		constraints: arena.NewSlab[contactConstraint](a, "island.constraints", 512),
		stack:       arena.NewList[*Body](a, "island.stack", 64),
		islandBody:  arena.NewList[*Body](a, "island.scratch.bodies", 64),
		contactIdx:  arena.NewList[int](a, "island.scratch.contacts", 64),
		jointIdx:    arena.NewList[int](a, "island.scratch.joints", 16),
		out:         arena.NewList[*Island](a, "island.out", 64),
	}
}

// PropagateWake wakes every sleeping body connected to an active one by a
// touching contact or a joint, repeating until nothing changes. It returns
// the number of bodies woken.
func PropagateWake(contacts []ContactEdge, joints []Joint) int {
	woken := 0
	wake := func(a, b *Body) bool {
		if a.IsActive() && b.sleeping {
			if b.group != nil {
				woken += len(b.group.bodies)
			} else {
				woken++
			}
			b.Wake()
			return true
		}
		return false
	}
	for changed := true; changed; {
		changed = false
		for _, e := range contacts {
			if wake(e.A, e.B) || wake(e.B, e.A) {
				changed = true
			}
		}
		for _, j := range joints {
			a, b := j.Bodies()
			if wake(a, b) || wake(b, a) {
				changed = true
			}
		}
	}
	return woken
}

func skipEdge(a, b *Body) bool {
	if a.typ != Dynamic && b.typ != Dynamic {
		return true
	}
	return (a.typ == Dynamic && a.sleeping) || (b.typ == Dynamic && b.sleeping)
}

// Build partitions bodies into islands. bodies must be in creation order
// with Index matching their position, contacts sorted by collider pair and
// joints by id, so the same state always yields the same islands in the same
// order. Call PropagateWake first.
func (ib *IslandBuilder) Build(bodies []*Body, contacts []ContactEdge, joints []Joint) []*Island {
	ib.stamp++
	ib.out.Truncate(0)
	n := len(bodies)

	// adjacency in compressed rows: contacts first, then joints
	offsets := ib.offsets.Alloc(n + 1)
	for _, e := range contacts {
		if skipEdge(e.A, e.B) {
			continue
		}
		countEdge(offsets, e.A, e.B)
	}
	for _, j := range joints {
		a, b := j.Bodies()
		if skipEdge(a, b) {
			continue
		}
		countEdge(offsets, a, b)
	}
	total := 0
	for i := 0; i < n; i++ {
		c := offsets[i]
		offsets[i] = total
		total += c
	}
	offsets[n] = total
	fill := ib.fill.Alloc(n)
	copy(fill, offsets[:n])
	adj := ib.adj.Alloc(total)
	put := func(b *Body, e adjacency) {
		if b.typ == Dynamic {
			adj[fill[b.index]] = e
			fill[b.index]++
		}
	}
	for i, e := range contacts {
		if skipEdge(e.A, e.B) {
			continue
		}
		put(e.A, adjacency{contactEdge, i})
		put(e.B, adjacency{contactEdge, i})
	}
	for i, j := range joints {
		a, b := j.Bodies()
		if skipEdge(a, b) {
			continue
		}
		put(a, adjacency{jointEdge, i})
		put(b, adjacency{jointEdge, i})
	}
	claimed := ib.claimed.Alloc(len(contacts) + len(joints))

	for _, seed := range bodies {
		if seed.typ != Dynamic || seed.sleeping || seed.islandStamp == ib.stamp {
			continue
		}
		ib.serial++
		ib.islandBody.Truncate(0)
		ib.contactIdx.Truncate(0)
		ib.jointIdx.Truncate(0)
		ib.stack.Truncate(0)

		seed.islandStamp = ib.stamp
		ib.stack.Append(seed)
		for ib.stack.Len() > 0 {
			items := ib.stack.Items()
			b := items[len(items)-1]
			ib.stack.Truncate(len(items) - 1)
			b.attachIndex = ib.islandBody.Len()
			ib.islandBody.Append(b)

			for _, e := range adj[offsets[b.index]:offsets[b.index+1]] {
				slot := e.index
				if e.kind == jointEdge {
					slot += len(contacts)
				}
				if claimed[slot] {
					continue
				}
				claimed[slot] = true
				var x, y *Body
				if e.kind == contactEdge {
					ib.contactIdx.Append(e.index)
					x, y = contacts[e.index].A, contacts[e.index].B
				} else {
					ib.jointIdx.Append(e.index)
					x, y = joints[e.index].Bodies()
				}
				other := x
				if other == b {
					other = y
				}
				ib.visit(other)
			}
		}
		ib.out.Append(ib.emit(contacts, joints))
	}

	for _, b := range bodies {
		if b.typ == Dynamic && !b.sleeping && b.islandStamp != ib.stamp {
			panic(fmt.Sprintf("dynamics: awake body %d missing from every island", b.id))
		}
	}
	return ib.out.Items()
}

func countEdge(offsets []int, a, b *Body) {
	if a.typ == Dynamic {
		offsets[a.index]++
	}
	if b.typ == Dynamic {
		offsets[b.index]++
	}
}

func (ib *IslandBuilder) visit(b *Body) {
	if b.typ == Dynamic {
		if b.islandStamp != ib.stamp {
			b.islandStamp = ib.stamp
			ib.stack.Append(b)
		}
		return
	}
	if b.attachStamp != ib.serial {
		b.attachStamp = ib.serial
		b.attachIndex = ib.islandBody.Len()
		ib.islandBody.Append(b)
	}
}

// emit copies the scratch lists of the island just walked into arena
// slices with its edges in pair and creation order.
func (ib *IslandBuilder) emit(contacts []ContactEdge, joints []Joint) *Island {
	is := &ib.islands.Alloc(1)[0]
	is.Bodies = ib.bodies.Alloc(ib.islandBody.Len())
	copy(is.Bodies, ib.islandBody.Items())

	ci := ib.contactIdx.Items()
	slices.Sort(ci)
	is.Contacts = ib.contactRefs.Alloc(len(ci))
	for k, i := range ci {
		e := contacts[i]
		is.Contacts[k] = ContactRef{M: e.M, IA: e.A.attachIndex, IB: e.B.attachIndex}
	}

	ji := ib.jointIdx.Items()
	slices.Sort(ji)
	is.Joints = ib.jointRefs.Alloc(len(ji))
	for k, i := range ji {
		a, b := joints[i].Bodies()
		is.Joints[k] = JointRef{J: joints[i], IA: a.attachIndex, IB: b.attachIndex}
	}

	is.states = ib.states.Alloc(len(is.Bodies))
	is.constraints = ib.constraints.Alloc(len(is.Contacts))
	return is
}

// Solve advances the island by one step. Only the island's dynamic bodies
// are written, so islands may be solved concurrently.
func (is *Island) Solve(step *StepConfig) SolveResult {
	h := step.Dt
	for i, b := range is.Bodies {
		is.states[i] = stateOf(b)
	}

	for i, b := range is.Bodies {
		if b.typ != Dynamic {
			continue
		}
		s := &is.states[i]
		acc := step.Gravity.Mul(b.gravityScale).Add(b.force.Mul(s.InvMass))
		s.V = s.V.Add(acc.Mul(h))
		s.W = s.W.Add(s.InvInertia.Mul3x1(b.torque).Mul(h))
		s.V = s.V.Mul(1 / (1 + h*b.linearDamping))
		s.W = s.W.Mul(1 / (1 + h*b.angularDamping))
	}

	d := &SolverData{Step: step, InvDt: 1 / h, States: is.states}
	for i, ref := range is.Contacts {
		is.constraints[i].prepare(d, ref)
	}
	for _, ref := range is.Joints {
		ref.J.Prepare(d, ref.IA, ref.IB)
	}
	for i := range is.constraints {
		is.constraints[i].warmStart(d)
	}
	for _, ref := range is.Joints {
		ref.J.WarmStart(d)
	}

	for it := 0; it < step.VelocityIterations; it++ {
		for i := range is.constraints {
			is.constraints[i].solveNormal(d)
		}
		for i := range is.constraints {
			is.constraints[i].solveFriction(d)
		}
		for _, ref := range is.Joints {
			ref.J.SolveVelocity(d)
		}
	}
	for i := range is.constraints {
		is.constraints[i].store()
	}

	for i, b := range is.Bodies {
		if b.typ == Static {
			continue
		}
		s := &is.states[i]
		if t := s.V.Mul(h); t.Len() > step.MaxTranslation {
			s.V = s.V.Mul(step.MaxTranslation / t.Len())
		}
		if r := s.W.Mul(h); r.Len() > step.MaxRotation {
			s.W = s.W.Mul(step.MaxRotation / r.Len())
		}
		s.Position = s.Position.Add(s.V.Mul(h))
		s.Orientation = geom.IntegrateRotation(s.Orientation, s.W, h)
		s.updateInertia()
	}

	res := SolveResult{}
	for it := 0; it < step.PositionIterations; it++ {
		minSep := 0.0
		for i := range is.constraints {
			minSep = math.Min(minSep, is.constraints[i].solvePosition(d))
		}
		jointsOK := true
		for _, ref := range is.Joints {
			if !ref.J.SolvePosition(d) {
				jointsOK = false
			}
		}
		res.MinSeparation = minSep
		if minSep >= -3*step.LinearSlop && jointsOK {
			res.PositionSolved = true
			break
		}
	}
	if step.PositionIterations == 0 {
		res.PositionSolved = true
	}

	for i, b := range is.Bodies {
		if b.typ != Dynamic {
			continue
		}
		s := &is.states[i]
		b.position = s.Position
		b.orientation = s.Orientation
		b.linearVelocity = s.V
		b.angularVelocity = s.W
		b.updateInertia()
	}

	if step.AllowSleep {
		res.Slept = is.trySleep(step, res.PositionSolved)
	}
	return res
}

func (is *Island) trySleep(step *StepConfig, solved bool) bool {
	minTime := math.MaxFloat64
	lin2 := step.SleepLinearVelocity * step.SleepLinearVelocity
	ang2 := step.SleepAngularVelocity * step.SleepAngularVelocity
	for _, b := range is.Bodies {
		switch b.typ {
		case Dynamic:
			if !b.allowSleep || b.linearVelocity.LenSqr() > lin2 || b.angularVelocity.LenSqr() > ang2 {
				b.sleepTime = 0
				minTime = 0
			} else {
				b.sleepTime += step.Dt
				minTime = math.Min(minTime, b.sleepTime)
			}
		case Kinematic:
			if b.IsActive() {
				minTime = 0
			}
		}
	}
	if minTime < step.TimeToSleep || !solved {
		return false
	}
	dyn := make([]*Body, 0, len(is.Bodies))
	for _, b := range is.Bodies {
		if b.typ == Dynamic {
			dyn = append(dyn, b)
		}
	}
	sleepAll(dyn)
	return true
}

// DynamicCount returns the number of dynamic bodies in the island.
func (is *Island) DynamicCount() int {
	n := 0
	for _, b := range is.Bodies {
		if b.typ == Dynamic {
			n++
		}
	}
	return n
}
