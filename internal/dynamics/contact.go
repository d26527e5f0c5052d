package dynamics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/collision"
)

// ContactRef ties a manifold to the island state indices of its bodies.
// Body A owns the manifold's A collider.
type ContactRef struct {
	M      *collision.Manifold
	IA, IB int
}

type contactPoint struct {
	rA, rB        mgl64.Vec3
	normalMass    float64
	tangentMass   [2]float64
	normalImpulse float64
	tangent       [2]float64
	prevNormal    float64
	bias          float64
}

type contactConstraint struct {
	m           *collision.Manifold
	ia, ib      int
	friction    float64
	restitution float64
	count       int
	points      [collision.MaxPoints]contactPoint
}

func (c *contactConstraint) prepare(d *SolverData, ref ContactRef) {
	*c = contactConstraint{
		m:           ref.M,
		ia:          ref.IA,
		ib:          ref.IB,
		friction:    ref.M.Friction,
		restitution: ref.M.Restitution,
		count:       ref.M.Count,
	}
	a, b := &d.States[c.ia], &d.States[c.ib]
	f := d.warmFactor()
	for i := 0; i < c.count; i++ {
		mp := &c.m.Points[i]
		cp := &c.points[i]
		mid := mp.PointA.Add(mp.PointB).Mul(0.5)
		cp.rA = mid.Sub(a.Position)
		cp.rB = mid.Sub(b.Position)
		cp.normalMass = rowMass(a, b, cp.rA, cp.rB, mp.Normal)
		cp.tangentMass[0] = rowMass(a, b, cp.rA, cp.rB, mp.Tangent1)
		cp.tangentMass[1] = rowMass(a, b, cp.rA, cp.rB, mp.Tangent2)
		cp.normalImpulse = mp.NormalImpulse * f
		cp.tangent[0] = mp.TangentImpulse[0] * f
		cp.tangent[1] = mp.TangentImpulse[1] * f
		cp.prevNormal = mp.NormalImpulse

		vn := mp.Normal.Dot(a.velocityAt(cp.rA).Sub(b.velocityAt(cp.rB)))
		if vn < -d.Step.RestitutionThreshold {
			cp.bias = -c.restitution * vn
		}
	}
}

func (c *contactConstraint) warmStart(d *SolverData) {
	a, b := &d.States[c.ia], &d.States[c.ib]
	for i := 0; i < c.count; i++ {
		mp := &c.m.Points[i]
		cp := &c.points[i]
		p := mp.Normal.Mul(cp.normalImpulse).
			Add(mp.Tangent1.Mul(cp.tangent[0])).
			Add(mp.Tangent2.Mul(cp.tangent[1]))
		a.applyImpulse(p, cp.rA)
		b.applyImpulse(p.Mul(-1), cp.rB)
	}
}

func (c *contactConstraint) solveNormal(d *SolverData) {
	a, b := &d.States[c.ia], &d.States[c.ib]
	for i := 0; i < c.count; i++ {
		n := c.m.Points[i].Normal
		cp := &c.points[i]
		vn := n.Dot(a.velocityAt(cp.rA).Sub(b.velocityAt(cp.rB)))
		lambda := -cp.normalMass * (vn - cp.bias)
		old := cp.normalImpulse
		cp.normalImpulse = math.Max(old+lambda, 0)
		p := n.Mul(cp.normalImpulse - old)
		a.applyImpulse(p, cp.rA)
		b.applyImpulse(p.Mul(-1), cp.rB)
	}
}

func (c *contactConstraint) solveFriction(d *SolverData) {
	a, b := &d.States[c.ia], &d.States[c.ib]
	for i := 0; i < c.count; i++ {
		mp := &c.m.Points[i]
		cp := &c.points[i]
		bound := cp.normalImpulse
		if d.Step.FrictionFromPreviousStep {
			bound = cp.prevNormal
		}
		maxF := c.friction * bound

		dv := a.velocityAt(cp.rA).Sub(b.velocityAt(cp.rB))
		old := cp.tangent
		t0 := old[0] - cp.tangentMass[0]*mp.Tangent1.Dot(dv)
		t1 := old[1] - cp.tangentMass[1]*mp.Tangent2.Dot(dv)
		// clamp to the friction disc
		if l := math.Hypot(t0, t1); l > maxF {
			if l > 0 {
				s := maxF / l
				t0, t1 = t0*s, t1*s
			}
		}
		cp.tangent = [2]float64{t0, t1}
		p := mp.Tangent1.Mul(t0 - old[0]).Add(mp.Tangent2.Mul(t1 - old[1]))
		a.applyImpulse(p, cp.rA)
		b.applyImpulse(p.Mul(-1), cp.rB)
	}
}

// store writes the accumulated impulses back to the manifold.
func (c *contactConstraint) store() {
	for i := 0; i < c.count; i++ {
		c.m.Points[i].NormalImpulse = c.points[i].normalImpulse
		c.m.Points[i].TangentImpulse = c.points[i].tangent
	}
}

// solvePosition pushes the bodies apart along the contact normals and
// returns the smallest separation seen.
func (c *contactConstraint) solvePosition(d *SolverData) float64 {
	a, b := &d.States[c.ia], &d.States[c.ib]
	minSep := 0.0
	for i := 0; i < c.count; i++ {
		mp := &c.m.Points[i]
		n := mp.Normal
		pA := a.Position.Add(a.Orientation.Rotate(mp.LocalA))
		pB := b.Position.Add(b.Orientation.Rotate(mp.LocalB))
		sep := pA.Sub(pB).Dot(n)
		minSep = math.Min(minSep, sep)

		cval := mgl64.Clamp(d.Step.Baumgarte*(sep+d.Step.LinearSlop), -d.Step.MaxCorrection, 0)
		if cval == 0 {
			continue
		}
		mid := pA.Add(pB).Mul(0.5)
		rA, rB := mid.Sub(a.Position), mid.Sub(b.Position)
		k := rowMass(a, b, rA, rB, n)
		p := n.Mul(-k * cval)
		a.applyPositionImpulse(p, rA)
		b.applyPositionImpulse(p.Mul(-1), rB)
	}
	return minSep
}
