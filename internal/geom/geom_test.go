package geom

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestAABBOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b AABB
		want bool
	}{
		{"separate on x", NewAABB(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}), NewAABB(mgl64.Vec3{2, 0, 0}, mgl64.Vec3{3, 1, 1}), false},
		{"overlapping", NewAABB(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{2, 2, 2}), NewAABB(mgl64.Vec3{1, 1, 1}, mgl64.Vec3{3, 3, 3}), true},
		{"touching faces", NewAABB(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}), NewAABB(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{2, 1, 1}), true},
		{"nested", NewAABB(mgl64.Vec3{-5, -5, -5}, mgl64.Vec3{5, 5, 5}), NewAABB(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}), true},
		{"separate on z", NewAABB(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}), NewAABB(mgl64.Vec3{0, 0, 1.5}, mgl64.Vec3{1, 1, 2}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("expected symmetric result %v, got %v", tt.want, got)
			}
		})
	}
}

func TestAABBSurfaceAreaAndUnion(t *testing.T) {
	a := NewAABB(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 2, 3})
	if got := a.SurfaceArea(); math.Abs(got-22) > 1e-12 {
		t.Errorf("expected surface area 22, got %f", got)
	}

	b := NewAABB(mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{0, 1, 1})
	u := a.Union(b)
	if !u.Contains(a) || !u.Contains(b) {
		t.Error("expected union to contain both boxes")
	}
	if u.Min[0] != -1 || u.Max[2] != 3 {
		t.Errorf("unexpected union %v", u)
	}
}

func TestAABBSweep(t *testing.T) {
	a := NewAABB(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1})
	s := a.Sweep(mgl64.Vec3{2, -1, 0})
	if s.Max[0] != 3 || s.Min[1] != -1 || s.Min[0] != 0 {
		t.Errorf("unexpected swept box %v", s)
	}
}

func TestAABBRayCast(t *testing.T) {
	box := NewAABB(mgl64.Vec3{-1, -1, -1}, mgl64.Vec3{1, 1, 1})

	tt, ok := box.RayCast(mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{1, 0, 0}, 10)
	if !ok || math.Abs(tt-4) > 1e-12 {
		t.Errorf("expected hit at 4, got %f (%v)", tt, ok)
	}
	if _, ok := box.RayCast(mgl64.Vec3{-5, 2, 0}, mgl64.Vec3{1, 0, 0}, 10); ok {
		t.Error("expected miss for parallel offset ray")
	}
	if _, ok := box.RayCast(mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{1, 0, 0}, 3); ok {
		t.Error("expected miss for short ray")
	}
}

func TestTransformRoundTrip(t *testing.T) {
	xf := NewTransform(mgl64.Vec3{1, 2, 3}, mgl64.QuatRotate(0.7, mgl64.Vec3{0, 1, 0}))
	p := mgl64.Vec3{0.3, -0.4, 2}

	back := xf.ApplyInverse(xf.Apply(p))
	if !back.ApproxEqualThreshold(p, 1e-12) {
		t.Errorf("expected %v, got %v", p, back)
	}

	inv := xf.Inverse()
	if got := inv.Apply(xf.Apply(p)); !got.ApproxEqualThreshold(p, 1e-12) {
		t.Errorf("expected inverse transform to undo, got %v", got)
	}
}

func TestTransformedAABBContainsCorners(t *testing.T) {
	local := NewAABB(mgl64.Vec3{-1, -0.5, -2}, mgl64.Vec3{1, 0.5, 2})
	xf := NewTransform(mgl64.Vec3{3, 0, 0}, mgl64.QuatRotate(0.9, mgl64.Vec3{1, 1, 0}.Normalize()))
	world := local.Transformed(xf).Expand(1e-9)

	for i := 0; i < 8; i++ {
		c := mgl64.Vec3{local.Min[0], local.Min[1], local.Min[2]}
		if i&1 != 0 {
			c[0] = local.Max[0]
		}
		if i&2 != 0 {
			c[1] = local.Max[1]
		}
		if i&4 != 0 {
			c[2] = local.Max[2]
		}
		if !world.ContainsPoint(xf.Apply(c)) {
			t.Errorf("corner %d outside transformed box", i)
		}
	}
}

func TestTangentBasisOrthonormal(t *testing.T) {
	normals := []mgl64.Vec3{
		{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0, -1, 0},
		mgl64.Vec3{1, 1, 1}.Normalize(),
		mgl64.Vec3{0.2, -0.9, 0.1}.Normalize(),
	}
	for _, n := range normals {
		t1, t2 := TangentBasis(n)
		if math.Abs(t1.Len()-1) > 1e-9 || math.Abs(t2.Len()-1) > 1e-9 {
			t.Errorf("expected unit tangents for %v", n)
		}
		if math.Abs(t1.Dot(n)) > 1e-9 || math.Abs(t2.Dot(n)) > 1e-9 || math.Abs(t1.Dot(t2)) > 1e-9 {
			t.Errorf("expected orthogonal basis for %v", n)
		}
	}
}

func TestSkewMatchesCross(t *testing.T) {
	a := mgl64.Vec3{1, -2, 3}
	b := mgl64.Vec3{0.5, 4, -1}
	if got := Skew(a).Mul3x1(b); !got.ApproxEqualThreshold(a.Cross(b), 1e-12) {
		t.Errorf("expected %v, got %v", a.Cross(b), got)
	}
}

func TestClosestPointsSegments(t *testing.T) {
	p, q := ClosestPointsSegments(
		mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{1, 0, 0},
		mgl64.Vec3{0, 1, -1}, mgl64.Vec3{0, 1, 1},
	)
	if !p.ApproxEqualThreshold(mgl64.Vec3{0, 0, 0}, 1e-12) || !q.ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-12) {
		t.Errorf("unexpected closest points %v %v", p, q)
	}
}

func TestIntegrateRotationKeepsUnitLength(t *testing.T) {
	q := mgl64.QuatIdent()
	for i := 0; i < 1000; i++ {
		q = IntegrateRotation(q, mgl64.Vec3{0.3, 2, -1}, 1.0/60)
	}
	if math.Abs(q.Len()-1) > 1e-12 {
		t.Errorf("expected unit quaternion, got length %f", q.Len())
	}
}
