package world

import (
	"github.com/san-kum/rigidsim/internal/broadphase"
	"github.com/san-kum/rigidsim/internal/collision"
	"github.com/san-kum/rigidsim/internal/dynamics"
)

// Phase tells where a contact or trigger overlap is in its lifetime.
type Phase uint8

const (
	Start Phase = iota
	Persist
	End
)

func (p Phase) String() string {
	switch p {
	case Start:
		return "start"
	case Persist:
		return "persist"
	case End:
		return "end"
	}
	return "unknown"
}

// ContactEvent reports a manifold change. A is the collider with the lower
// id and the normals point from B toward A.
type ContactEvent struct {
	Phase  Phase
	A, B   *dynamics.Collider
	Points [collision.MaxPoints]collision.ContactPoint
	Count  int
}

// TriggerEvent reports a trigger overlap. Trigger is the sensor collider,
// Other the collider entering or leaving it.
type TriggerEvent struct {
	Phase   Phase
	Trigger *dynamics.Collider
	Other   *dynamics.Collider
}

// Listener receives the events of a step after it completes, in collider
// pair order.
type Listener interface {
	OnContact(ContactEvent)
	OnTrigger(TriggerEvent)
}

// ListenerFuncs adapts plain functions to Listener; nil fields are skipped.
type ListenerFuncs struct {
	Contact func(ContactEvent)
	Trigger func(TriggerEvent)
}

func (l ListenerFuncs) OnContact(e ContactEvent) {
	if l.Contact != nil {
		l.Contact(e)
	}
}

func (l ListenerFuncs) OnTrigger(e TriggerEvent) {
	if l.Trigger != nil {
		l.Trigger(e)
	}
}

type queuedContact struct {
	pair broadphase.Pair
	ev   ContactEvent
}

type queuedTrigger struct {
	pair broadphase.Pair
	ev   TriggerEvent
}

func contactEvent(phase Phase, a, b *dynamics.Collider, m *collision.Manifold) ContactEvent {
	ev := ContactEvent{Phase: phase, A: a, B: b}
	if m != nil {
		ev.Points = m.Points
		ev.Count = m.Count
	}
	return ev
}
