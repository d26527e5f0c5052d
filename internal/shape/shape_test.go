package shape

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
)

func cubePoints(h float64) []mgl64.Vec3 {
	var pts []mgl64.Vec3
	for _, x := range []float64{-h, h} {
		for _, y := range []float64{-h, h} {
			for _, z := range []float64{-h, h} {
				pts = append(pts, mgl64.Vec3{x, y, z})
			}
		}
	}
	return pts
}

func TestConstructorsRejectBadParameters(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"sphere zero radius", second(NewSphere(0))},
		{"sphere nan radius", second(NewSphere(math.NaN()))},
		{"capsule negative height", second(NewCapsule(1, -1))},
		{"box flat", second(NewBox(mgl64.Vec3{1, 0, 1}))},
		{"hull too few points", second(NewConvexHull(cubePoints(1)[:3]))},
		{"mesh bad index", second(NewTriangleMesh([]mgl64.Vec3{{}, {1, 0, 0}, {0, 0, 1}}, [][3]int{{0, 1, 5}}))},
		{"mesh degenerate", second(NewTriangleMesh([]mgl64.Vec3{{}, {1, 0, 0}, {2, 0, 0}}, [][3]int{{0, 1, 2}}))},
		{"heightfield too small", second(NewHeightField([][]float64{{0}}, 1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, ErrInvalidShape) {
				t.Errorf("expected ErrInvalidShape, got %v", tt.err)
			}
		})
	}
}

func second[T any](_ T, err error) error { return err }

func TestFlatPointCloudIsDegenerate(t *testing.T) {
	pts := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}, {1, 0, 1}, {0.5, 0, 0.5}}
	if _, err := NewConvexHull(pts); !errors.Is(err, ErrDegenerateHull) {
		t.Errorf("expected ErrDegenerateHull, got %v", err)
	}
}

func TestHullOfCube(t *testing.T) {
	pts := append(cubePoints(1), mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0.5, 0.2, -0.1})
	h, err := NewConvexHull(pts)
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Vertices) != 8 {
		t.Errorf("expected interior points dropped, got %d vertices", len(h.Vertices))
	}
	if h.FaceCount() != 6 {
		t.Errorf("expected 6 merged faces, got %d", h.FaceCount())
	}
	edges := 0
	h.Edges(func(a, b mgl64.Vec3) { edges++ })
	if edges != 12 {
		t.Errorf("expected 12 cube edges, got %d", edges)
	}

	face, n := h.AppendFace(nil, mgl64.Vec3{0, 1, 0.1})
	if len(face) != 4 || n.Sub(mgl64.Vec3{0, 1, 0}).Len() > 1e-9 {
		t.Fatalf("expected top quad, got %v normal %v", face, n)
	}
	// counter-clockwise seen from outside
	c := face[1].Sub(face[0]).Cross(face[2].Sub(face[0]))
	if c.Dot(n) <= 0 {
		t.Error("expected counter-clockwise winding")
	}
}

func TestHullMassMatchesBox(t *testing.T) {
	h, err := NewConvexHull(cubePoints(1))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewBox(mgl64.Vec3{1, 1, 1})

	hm := h.MassProperties(2)
	bm := b.MassProperties(2)
	if math.Abs(hm.Mass-bm.Mass) > 1e-9 {
		t.Errorf("expected mass %f, got %f", bm.Mass, hm.Mass)
	}
	if hm.Center.Len() > 1e-9 {
		t.Errorf("expected centroid at origin, got %v", hm.Center)
	}
	for i := 0; i < 9; i++ {
		if math.Abs(hm.Inertia[i]-bm.Inertia[i]) > 1e-9 {
			t.Fatalf("expected inertia %v, got %v", bm.Inertia, hm.Inertia)
		}
	}
}

func TestSupportMapping(t *testing.T) {
	b, _ := NewBox(mgl64.Vec3{1, 2, 3})
	if got := b.Support(mgl64.Vec3{1, -1, 0}); got != (mgl64.Vec3{1, -2, 3}) {
		t.Errorf("unexpected box support %v", got)
	}

	c, _ := NewCapsule(0.5, 1)
	if got := SupportWithMargin(c, mgl64.Vec3{0, 2, 0}); got != (mgl64.Vec3{0, 1.5, 0}) {
		t.Errorf("unexpected capsule support %v", got)
	}

	tri := Triangle{A: mgl64.Vec3{0, 0, 0}, B: mgl64.Vec3{0, 0, 1}, C: mgl64.Vec3{1, 0, 0}}
	if got := tri.Support(mgl64.Vec3{1, 0, 0.1}); got != tri.C {
		t.Errorf("unexpected triangle support %v", got)
	}
}

func TestTriangleFaceWindsTowardDirection(t *testing.T) {
	tri := Triangle{A: mgl64.Vec3{0, 0, 0}, B: mgl64.Vec3{1, 0, 0}, C: mgl64.Vec3{0, 0, 1}}
	for _, dir := range []mgl64.Vec3{{0, 1, 0}, {0, -1, 0}} {
		face, n := tri.AppendFace(nil, dir)
		if n.Dot(dir) <= 0 {
			t.Errorf("normal %v does not face %v", n, dir)
		}
		c := face[1].Sub(face[0]).Cross(face[2].Sub(face[0]))
		if c.Dot(n) <= 0 {
			t.Errorf("face for %v is not counter-clockwise", dir)
		}
	}
}

func TestHeightFieldSampling(t *testing.T) {
	hf, err := NewHeightField([][]float64{
		{0, 1, 2},
		{0, 1, 2},
		{0, 1, 2},
	}, 2)
	if err != nil {
		t.Fatal(err)
	}
	b := hf.LocalBounds()
	if b.Min != (mgl64.Vec3{-2, 0, -2}) || b.Max != (mgl64.Vec3{2, 2, 2}) {
		t.Errorf("unexpected bounds %v", b)
	}
	for _, tc := range []struct{ x, z, h float64 }{
		{-2, -2, 0}, {0, 0, 1}, {1, 0.5, 1.5}, {2, 2, 2},
	} {
		got, ok := hf.HeightAt(tc.x, tc.z)
		if !ok || math.Abs(got-tc.h) > 1e-9 {
			t.Errorf("HeightAt(%f, %f) = %f, want %f", tc.x, tc.z, got, tc.h)
		}
	}
	if _, ok := hf.HeightAt(5, 0); ok {
		t.Error("expected sample outside the grid to fail")
	}

	count := 0
	hf.Triangles(geom.FromCenter(mgl64.Vec3{-1, 0.5, -1}, mgl64.Vec3{0.5, 1, 0.5}), func(tri Triangle) bool {
		count++
		if tri.Normal()[1] <= 0 {
			t.Errorf("expected upward triangle, got normal %v", tri.Normal())
		}
		return true
	})
	if count != 2 {
		t.Errorf("expected one cell of triangles, got %d", count)
	}
}

func TestTriangleMeshQuery(t *testing.T) {
	var verts []mgl64.Vec3
	var idx [][3]int
	for i := 0; i < 10; i++ {
		x := float64(i) * 2
		base := len(verts)
		verts = append(verts, mgl64.Vec3{x, 0, 0}, mgl64.Vec3{x + 1, 0, 0}, mgl64.Vec3{x, 0, 1})
		idx = append(idx, [3]int{base, base + 2, base + 1})
	}
	m, err := NewTriangleMesh(verts, idx)
	if err != nil {
		t.Fatal(err)
	}
	var hit []Triangle
	m.Triangles(geom.FromCenter(mgl64.Vec3{4.5, 0, 0.5}, mgl64.Vec3{0.2, 0.2, 0.2}), func(tri Triangle) bool {
		hit = append(hit, tri)
		return true
	})
	if len(hit) != 1 || hit[0].A != (mgl64.Vec3{4, 0, 0}) {
		t.Errorf("expected only the third triangle, got %v", hit)
	}
}

func TestMassProperties(t *testing.T) {
	s, _ := NewSphere(2)
	md := s.MassProperties(1)
	want := 4.0 / 3.0 * math.Pi * 8
	if math.Abs(md.Mass-want) > 1e-9 {
		t.Errorf("expected sphere mass %f, got %f", want, md.Mass)
	}
	if math.Abs(md.Inertia.At(1, 1)-0.4*want*4) > 1e-9 {
		t.Errorf("unexpected sphere inertia %v", md.Inertia)
	}

	c, _ := NewCapsule(1, 1)
	cm := c.MassProperties(1)
	wantC := math.Pi*2 + 4.0/3.0*math.Pi
	if math.Abs(cm.Mass-wantC) > 1e-9 {
		t.Errorf("expected capsule mass %f, got %f", wantC, cm.Mass)
	}
	if cm.Inertia.At(1, 1) >= cm.Inertia.At(0, 0) {
		t.Error("expected capsule to spin more easily about its axis")
	}
}
