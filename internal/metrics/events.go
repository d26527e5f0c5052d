package metrics

import (
	"sync"

	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/world"
)

// ContactStarts counts contact and trigger Start events. Register it with
// world.WithListener and add it to the simulator to report the count.
type ContactStarts struct {
	mu       sync.Mutex
	contacts int
	triggers int
}

func NewContactStarts() *ContactStarts { return &ContactStarts{} }

func (c *ContactStarts) OnContact(e world.ContactEvent) {
	if e.Phase != world.Start {
		return
	}
	c.mu.Lock()
	c.contacts++
	c.mu.Unlock()
}

func (c *ContactStarts) OnTrigger(e world.TriggerEvent) {
	if e.Phase != world.Start {
		return
	}
	c.mu.Lock()
	c.triggers++
	c.mu.Unlock()
}

// Triggers returns the number of trigger Start events seen.
func (c *ContactStarts) Triggers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggers
}

func (c *ContactStarts) Name() string { return "contact_starts" }

func (c *ContactStarts) Observe(w *world.World, t float64) {}

func (c *ContactStarts) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.contacts)
}

func (c *ContactStarts) Reset() {
	c.mu.Lock()
	c.contacts = 0
	c.triggers = 0
	c.mu.Unlock()
}

// ContactImpulse averages the summed normal impulse over touching
// manifolds per step.
type ContactImpulse struct {
	total   float64
	samples int
}

func NewContactImpulse() *ContactImpulse { return &ContactImpulse{} }

func (c *ContactImpulse) Name() string { return "contact_impulse" }

func (c *ContactImpulse) Observe(w *world.World, t float64) {
	for _, m := range w.Manifolds() {
		for i := 0; i < m.Count; i++ {
			c.total += m.Points[i].NormalImpulse
		}
	}
	c.samples++
}

func (c *ContactImpulse) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.total / float64(c.samples)
}

func (c *ContactImpulse) Reset() {
	c.total = 0
	c.samples = 0
}

var _ world.Listener = (*ContactStarts)(nil)

// Default returns the metric set reported by a run.
func Default() []sim.Metric {
	return []sim.Metric{
		NewEnergy(),
		NewEnergyDrift(),
		NewKineticPeak(),
		NewPenetration(),
		NewJointError(),
		NewSleeping(),
		NewContactImpulse(),
	}
}
