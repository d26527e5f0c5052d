package dynamics

import "github.com/go-gl/mathgl/mgl64"

// sleepGroup links the bodies of an island that fell asleep together so
// waking one wakes them all.
type sleepGroup struct {
	bodies []*Body
}

// IsSleeping reports whether the body is asleep.
func (b *Body) IsSleeping() bool { return b.sleeping }

// AllowSleep reports whether the body may fall asleep.
func (b *Body) AllowSleep() bool { return b.allowSleep }

// SetAllowSleep toggles automatic sleeping; disabling it wakes the body.
func (b *Body) SetAllowSleep(allow bool) {
	b.allowSleep = allow
	if !allow {
		b.Wake()
	}
}

// SleepTime returns how long the body has been below the sleep thresholds.
func (b *Body) SleepTime() float64 { return b.sleepTime }

// SetSleeping puts a single body to sleep or wakes it together with every
// body it fell asleep with.
func (b *Body) SetSleeping(sleeping bool) {
	if !sleeping {
		b.Wake()
		return
	}
	if b.typ == Static || b.sleeping {
		return
	}
	b.sleep(&sleepGroup{bodies: []*Body{b}})
}

// Wake wakes the body and its sleep group.
func (b *Body) Wake() {
	if b.typ == Static {
		return
	}
	if b.group == nil {
		b.sleeping = false
		b.sleepTime = 0
		return
	}
	g := b.group
	for _, m := range g.bodies {
		m.sleeping = false
		m.sleepTime = 0
		m.group = nil
	}
}

func (b *Body) sleep(g *sleepGroup) {
	b.sleeping = true
	b.group = g
	b.linearVelocity = mgl64.Vec3{}
	b.angularVelocity = mgl64.Vec3{}
	b.force = mgl64.Vec3{}
	b.torque = mgl64.Vec3{}
}

// sleepAll puts bodies to sleep as one group.
func sleepAll(bodies []*Body) {
	g := &sleepGroup{bodies: append([]*Body(nil), bodies...)}
	for _, b := range bodies {
		b.sleep(g)
	}
}
