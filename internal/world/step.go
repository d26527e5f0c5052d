package world

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/rigidsim/internal/arena"
	"github.com/san-kum/rigidsim/internal/broadphase"
	"github.com/san-kum/rigidsim/internal/collision"
	"github.com/san-kum/rigidsim/internal/dynamics"
)

// Step advances the world by dt seconds. An invalid dt is rejected before
// anything changes; otherwise the step always completes and the queued
// events are delivered before it returns.
func (w *World) Step(dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidTimeStep, dt)
	}
	w.arena.Reset()
	w.steps++
	cfg := w.settings.stepConfig(dt)

	w.updateBroadPhase(dt)
	pairs := w.bp.ComputeOverlappingPairs(w.shouldCollide)
	w.lastPairs = len(pairs)
	w.narrowPhase(pairs)

	edges := w.edges.Items()
	if n := dynamics.PropagateWake(edges, w.joints); n > 0 {
		w.logger.Debug("woke sleeping bodies", "count", n, "step", w.steps)
	}
	w.islands = w.builder.Build(w.bodies, edges, w.joints)
	w.solve(&cfg)

	for _, b := range w.bodies {
		b.IntegrateKinematic(dt)
		b.ClearForces()
	}
	w.flush()
	return nil
}

func (w *World) updateBroadPhase(dt float64) {
	for _, b := range w.bodies {
		if !b.Moved() && !b.IsActive() {
			continue
		}
		disp := b.LinearVelocity().Mul(dt)
		for _, c := range b.Colliders() {
			w.bp.Update(c.ID(), c.WorldAABB(), disp)
		}
	}
}

func (w *World) shouldCollide(a, b int) bool {
	ca, cb := w.colliders[a], w.colliders[b]
	ba, bb := ca.Body(), cb.Body()
	if ba == bb {
		return false
	}
	if ba.Type() != dynamics.Dynamic && bb.Type() != dynamics.Dynamic {
		return false
	}
	if !ca.Filter().ShouldCollide(cb.Filter()) {
		return false
	}
	if len(w.noCollide) > 0 && w.noCollide[makeBodyPair(ba, bb)] > 0 {
		return false
	}
	return true
}

// narrowPhase updates manifolds and trigger overlaps for the candidate
// pairs, drops the ones whose fat boxes separated and queues events.
// Manifold pointers move when the table grows, so contact edges are
// resolved from handles once every pair has been acquired.
func (w *World) narrowPhase(pairs []broadphase.Pair) {
	w.touching.Truncate(0)
	for _, p := range pairs {
		ca, cb := w.colliders[p.A], w.colliders[p.B]
		if ca.IsTrigger() || cb.IsTrigger() {
			w.updateTrigger(p, ca, cb)
			continue
		}
		if !collision.Supported(ca.Shape().Kind(), cb.Shape().Kind()) {
			continue
		}
		ba, bb := ca.Body(), cb.Body()
		if !ba.IsActive() && !bb.IsActive() {
			// nothing moved: keep the manifold for wake propagation
			if h, ok := w.manifolds.Lookup(p); ok && w.manifolds.At(h).Touching() {
				w.touching.Append(touchingPair{a: ba, b: bb, h: h})
			}
			continue
		}

		h, created := w.manifolds.Acquire(p)
		m := w.manifolds.At(h)
		if created {
			m.Friction = dynamics.MixFriction(ca.Material().Friction, cb.Material().Friction)
			m.Restitution = dynamics.MixRestitution(ca.Material().Restitution, cb.Material().Restitution)
		}
		before := w.scratch.Degenerate
		pts := collision.Collide(w.scratch, proxyOf(ca), proxyOf(cb))
		if w.scratch.Degenerate != before {
			w.logger.Debug("discarded degenerate contact", "a", p.A, "b", p.B, "step", w.steps)
		}
		m.Update(pts, ba.Transform(), bb.Transform())

		switch {
		case m.Touching() && !m.WasTouching():
			w.queueContact(p, Start, ca, cb, m)
		case m.Touching():
			w.queueContact(p, Persist, ca, cb, m)
		case m.WasTouching():
			w.queueContact(p, End, ca, cb, nil)
		}
		if m.Touching() {
			w.touching.Append(touchingPair{a: ba, b: bb, h: h})
		} else {
			w.manifolds.Release(p)
		}
	}

	// manifolds whose pair left the candidate set
	w.stalePairs = w.manifolds.AppendPairs(w.stalePairs[:0])
	for _, p := range w.stalePairs {
		if _, ok := slices.BinarySearchFunc(pairs, p, comparePairs); ok {
			continue
		}
		h, _ := w.manifolds.Lookup(p)
		if w.manifolds.At(h).Touching() {
			w.queueContact(p, End, w.colliders[p.A], w.colliders[p.B], nil)
		}
		w.manifolds.Release(p)
	}
	for p, seen := range w.triggers {
		if seen != w.steps {
			if ca, cb := w.colliders[p.A], w.colliders[p.B]; ca != nil && cb != nil {
				w.queueTrigger(p, End, ca, cb)
			}
			delete(w.triggers, p)
		}
	}

	w.edges.Truncate(0)
	for _, t := range w.touching.Items() {
		w.edges.Append(dynamics.ContactEdge{A: t.a, B: t.b, M: w.manifolds.At(t.h)})
	}
}

type touchingPair struct {
	a, b *dynamics.Body
	h    arena.Handle
}

func (w *World) updateTrigger(p broadphase.Pair, ca, cb *dynamics.Collider) {
	_, was := w.triggers[p]
	if !ca.Body().IsActive() && !cb.Body().IsActive() {
		if was {
			w.triggers[p] = w.steps
		}
		return
	}
	overlapping := len(collision.Collide(w.scratch, proxyOf(ca), proxyOf(cb))) > 0
	switch {
	case overlapping && !was:
		w.queueTrigger(p, Start, ca, cb)
	case overlapping:
		w.queueTrigger(p, Persist, ca, cb)
	case was:
		w.queueTrigger(p, End, ca, cb)
	}
	if overlapping {
		w.triggers[p] = w.steps
	} else {
		delete(w.triggers, p)
	}
}

func (w *World) queueContact(p broadphase.Pair, phase Phase, a, b *dynamics.Collider, m *collision.Manifold) {
	w.contactEvents.Append(queuedContact{pair: p, ev: contactEvent(phase, a, b, m)})
}

func (w *World) queueTrigger(p broadphase.Pair, phase Phase, a, b *dynamics.Collider) {
	ev := TriggerEvent{Phase: phase, Trigger: a, Other: b}
	if !a.IsTrigger() {
		ev.Trigger, ev.Other = b, a
	}
	w.triggerEvents.Append(queuedTrigger{pair: p, ev: ev})
}

func comparePairs(x, y broadphase.Pair) int {
	if c := cmp.Compare(x.A, y.A); c != 0 {
		return c
	}
	return cmp.Compare(x.B, y.B)
}

// solve runs the islands on up to Workers goroutines. Each island writes
// only its own bodies, manifolds and joints.
func (w *World) solve(cfg *dynamics.StepConfig) {
	results := w.results.Alloc(len(w.islands))
	if w.settings.Workers <= 1 || len(w.islands) < 2 {
		for i, is := range w.islands {
			results[i] = is.Solve(cfg)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(w.settings.Workers)
		for i, is := range w.islands {
			i, is := i, is
			g.Go(func() error {
				results[i] = is.Solve(cfg)
				return nil
			})
		}
		_ = g.Wait()
	}

	w.lastSeparation = 0
	for i, r := range results {
		w.lastSeparation = math.Min(w.lastSeparation, r.MinSeparation)
		if r.Slept {
			// sleeping bodies skip the broad phase update until they wake
			for _, b := range w.islands[i].Bodies {
				for _, c := range b.Colliders() {
					w.bp.Refit(c.ID(), c.WorldAABB())
				}
			}
			w.logger.Debug("island asleep", "island", i, "bodies", len(w.islands[i].Bodies), "step", w.steps)
		}
	}
}

// flush delivers the queued events in pair order.
func (w *World) flush() {
	if w.listener == nil {
		return
	}
	contacts := w.contactEvents.Items()
	slices.SortStableFunc(contacts, func(x, y queuedContact) int { return comparePairs(x.pair, y.pair) })
	for _, q := range contacts {
		w.listener.OnContact(q.ev)
	}
	triggers := w.triggerEvents.Items()
	slices.SortStableFunc(triggers, func(x, y queuedTrigger) int { return comparePairs(x.pair, y.pair) })
	for _, q := range triggers {
		w.listener.OnTrigger(q.ev)
	}
}
