package metrics

import (
	"math"

	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/world"
)

// Penetration is the deepest contact overlap seen, in metres.
type Penetration struct {
	name  string
	depth float64
}

func NewPenetration() *Penetration {
	return &Penetration{name: "max_penetration"}
}

func (p *Penetration) Name() string { return p.name }

func (p *Penetration) Observe(w *world.World, t float64) {
	p.depth = math.Max(p.depth, -w.Stats().MinSeparation)
}

func (p *Penetration) Value() float64 { return p.depth }
func (p *Penetration) Reset()         { p.depth = 0 }

// JointError is the largest joint violation seen, in metres.
type JointError struct {
	name  string
	worst float64
}

func NewJointError() *JointError {
	return &JointError{name: "max_joint_error"}
}

func (j *JointError) Name() string { return j.name }

func (j *JointError) Observe(w *world.World, t float64) {
	for _, joint := range w.Joints() {
		j.worst = math.Max(j.worst, joint.PositionError())
	}
}

func (j *JointError) Value() float64 { return j.worst }
func (j *JointError) Reset()         { j.worst = 0 }

// Sleeping averages the fraction of dynamic bodies asleep per step. A
// world without dynamic bodies counts as fully asleep.
type Sleeping struct {
	name    string
	ratio   float64
	samples int
}

func NewSleeping() *Sleeping {
	return &Sleeping{name: "sleeping_ratio"}
}

func (s *Sleeping) Name() string {
	return s.name
}

func (s *Sleeping) Observe(w *world.World, t float64) {
	s.samples++
	dynamic, asleep := 0, 0
	for _, b := range w.Bodies() {
		if b.Type() != dynamics.Dynamic {
			continue
		}
		dynamic++
		if b.IsSleeping() {
			asleep++
		}
	}
	if dynamic == 0 {
		s.ratio += 1
		return
	}
	s.ratio += float64(asleep) / float64(dynamic)
}

func (s *Sleeping) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return s.ratio / float64(s.samples)
}

func (s *Sleeping) Reset() {
	s.ratio = 0
	s.samples = 0
}
