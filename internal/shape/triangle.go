package shape

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
)

// Triangle is a single face of a concave shape. It is zero-volume and has
// no mass; it only takes part in collision as the B side of a convex pair.
type Triangle struct {
	A, B, C mgl64.Vec3
}

func (t Triangle) Kind() Kind      { return KindTriangle }
func (t Triangle) Margin() float64 { return 0 }

func (t Triangle) LocalBounds() geom.AABB {
	b := geom.NewAABB(t.A, t.B)
	b.Min = geom.Min(b.Min, t.C)
	b.Max = geom.Max(b.Max, t.C)
	return b
}

// Normal returns the unit normal of the counter-clockwise winding.
func (t Triangle) Normal() mgl64.Vec3 {
	return geom.Normalize(t.B.Sub(t.A).Cross(t.C.Sub(t.A)), mgl64.Vec3{0, 1, 0})
}

func (t Triangle) Support(dir mgl64.Vec3) mgl64.Vec3 {
	best := t.A
	bd := t.A.Dot(dir)
	if d := t.B.Dot(dir); d > bd {
		best, bd = t.B, d
	}
	if d := t.C.Dot(dir); d > bd {
		best = t.C
	}
	return best
}

func (t Triangle) MassProperties(float64) MassData { return MassData{} }

// AppendFace returns the triangle wound so its normal faces dir.
func (t Triangle) AppendFace(dst []mgl64.Vec3, dir mgl64.Vec3) ([]mgl64.Vec3, mgl64.Vec3) {
	n := t.Normal()
	if n.Dot(dir) >= 0 {
		return append(dst, t.A, t.B, t.C), n
	}
	return append(dst, t.A, t.C, t.B), n.Mul(-1)
}

// Transformed returns the triangle mapped by xf.
func (t Triangle) Transformed(xf geom.Transform) Triangle {
	return Triangle{A: xf.Apply(t.A), B: xf.Apply(t.B), C: xf.Apply(t.C)}
}
