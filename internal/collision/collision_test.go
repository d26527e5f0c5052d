package collision

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/arena"
	"github.com/san-kum/rigidsim/internal/broadphase"
	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func at(s shape.Shape, x, y, z float64) Proxy {
	return Proxy{Shape: s, Transform: geom.NewTransform(mgl64.Vec3{x, y, z}, mgl64.QuatIdent())}
}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func vecNear(a, b mgl64.Vec3, tol float64) bool { return a.Sub(b).Len() <= tol }

func cube(h float64) []mgl64.Vec3 {
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

func TestSphereSphereDepth(t *testing.T) {
	s := NewScratch(arena.New(nil))
	sp := must(shape.NewSphere(1))
	pts := Collide(s, at(sp, 0, 0, 0), at(sp, 1.5, 0, 0))
	if len(pts) != 1 {
		t.Fatalf("expected 1 point, got %d", len(pts))
	}
	p := pts[0]
	if !near(p.Separation, -0.5, 1e-12) {
		t.Errorf("expected separation -0.5, got %f", p.Separation)
	}
	if !vecNear(p.Normal, mgl64.Vec3{-1, 0, 0}, 1e-12) {
		t.Errorf("expected normal from B to A, got %v", p.Normal)
	}
	if !vecNear(p.PointA, mgl64.Vec3{1, 0, 0}, 1e-12) || !vecNear(p.PointB, mgl64.Vec3{0.5, 0, 0}, 1e-12) {
		t.Errorf("unexpected witnesses %v %v", p.PointA, p.PointB)
	}
}

func TestCoincidentSpheresUseFixedAxis(t *testing.T) {
	s := NewScratch(arena.New(nil))
	sp := must(shape.NewSphere(1))
	pts := Collide(s, at(sp, 2, 2, 2), at(sp, 2, 2, 2))
	if len(pts) != 1 || pts[0].Normal != tieBreak {
		t.Fatalf("expected tie-break normal, got %v", pts)
	}
}

func TestTouchingShapesProduceNoPoints(t *testing.T) {
	s := NewScratch(arena.New(nil))
	sp := must(shape.NewSphere(1))
	box := must(shape.NewBox(mgl64.Vec3{1, 1, 1}))

	cases := []struct {
		name string
		a, b Proxy
	}{
		{"sphere-sphere", at(sp, 0, 0, 0), at(sp, 2, 0, 0)},
		{"sphere-box", at(sp, 0, 2, 0), at(box, 0, 0, 0)},
		{"box-box", at(box, 0, 2, 0), at(box, 0, 0, 0)},
		{"separated", at(box, 0, 5, 0), at(box, 0, 0, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if pts := Collide(s, tc.a, tc.b); len(pts) != 0 {
				t.Errorf("expected no points, got %v", pts)
			}
		})
	}
}

func TestSphereBoxBothOrders(t *testing.T) {
	s := NewScratch(arena.New(nil))
	sp := must(shape.NewSphere(0.5))
	box := must(shape.NewBox(mgl64.Vec3{1, 1, 1}))

	pts := Collide(s, at(sp, 0.2, 1.4, -0.3), at(box, 0, 0, 0))
	if len(pts) != 1 {
		t.Fatalf("expected 1 point, got %d", len(pts))
	}
	if !near(pts[0].Separation, -0.1, 1e-6) || !vecNear(pts[0].Normal, mgl64.Vec3{0, 1, 0}, 1e-6) {
		t.Errorf("unexpected contact %+v", pts[0])
	}

	pts = Collide(s, at(box, 0, 0, 0), at(sp, 0.2, 1.4, -0.3))
	if len(pts) != 1 {
		t.Fatalf("expected 1 point, got %d", len(pts))
	}
	if !vecNear(pts[0].Normal, mgl64.Vec3{0, -1, 0}, 1e-6) {
		t.Errorf("expected flipped normal, got %v", pts[0].Normal)
	}
	if pts[0].PointA[1] > pts[0].PointB[1] {
		t.Errorf("expected box point below sphere point, got %v %v", pts[0].PointA, pts[0].PointB)
	}
}

func TestDeepSphereInBoxUsesEPA(t *testing.T) {
	s := NewScratch(arena.New(nil))
	sp := must(shape.NewSphere(0.5))
	box := must(shape.NewBox(mgl64.Vec3{1, 1, 1}))

	pts := Collide(s, at(sp, 0, 0.9, 0), at(box, 0, 0, 0))
	if len(pts) != 1 {
		t.Fatalf("expected 1 point, got %d", len(pts))
	}
	if !near(pts[0].Separation, -0.6, 1e-3) {
		t.Errorf("expected separation -0.6, got %f", pts[0].Separation)
	}
	if !vecNear(pts[0].Normal, mgl64.Vec3{0, 1, 0}, 1e-3) {
		t.Errorf("expected up normal, got %v", pts[0].Normal)
	}
}

func TestBoxBoxFaceManifold(t *testing.T) {
	s := NewScratch(arena.New(nil))
	box := must(shape.NewBox(mgl64.Vec3{1, 1, 1}))

	pts := Collide(s, at(box, 0.3, 1.9, 0.2), at(box, 0, 0, 0))
	if len(pts) != 4 {
		t.Fatalf("expected 4 points, got %d", len(pts))
	}
	for _, p := range pts {
		if !near(p.Separation, -0.1, 1e-3) {
			t.Errorf("expected separation -0.1, got %f", p.Separation)
		}
		if !vecNear(p.Normal, mgl64.Vec3{0, 1, 0}, 1e-3) {
			t.Errorf("expected up normal, got %v", p.Normal)
		}
		if !near(p.PointB[1], 1, 1e-3) {
			t.Errorf("expected B point on top face, got %v", p.PointB)
		}
	}
}

func TestHullOnBox(t *testing.T) {
	s := NewScratch(arena.New(nil))
	hull := must(shape.NewConvexHull(cube(1)))
	box := must(shape.NewBox(mgl64.Vec3{2, 1, 2}))

	pts := Collide(s, at(hull, 0, 1.95, 0), at(box, 0, 0, 0))
	if len(pts) != 4 {
		t.Fatalf("expected 4 points, got %d", len(pts))
	}
	for _, p := range pts {
		if !near(p.Separation, -0.05, 1e-3) {
			t.Errorf("expected separation -0.05, got %f", p.Separation)
		}
	}
}

func posed(s shape.Shape, p mgl64.Vec3, q mgl64.Quat) Proxy {
	return Proxy{Shape: s, Transform: geom.NewTransform(p, q)}
}

func deepest(pts []Point) float64 {
	d := math.Inf(1)
	for _, p := range pts {
		d = math.Min(d, p.Separation)
	}
	return d
}

func TestPolyhedraCollideInEitherOrder(t *testing.T) {
	ground := must(shape.NewBox(mgl64.Vec3{20, 0.5, 20}))
	unit := must(shape.NewBox(mgl64.Vec3{0.5, 0.5, 0.5}))
	hull := must(shape.NewConvexHull(cube(0.5)))
	floor := at(ground, 0, -0.5, 0)
	yaw := mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 1, 0})

	cases := []struct {
		name  string
		a, b  Proxy
		count int
		sep   float64
	}{
		{"box settling at the centre", floor, at(unit, -5.77e-6, 0.49435, -3.7e-7), 4, -0.00565},
		{"box exactly centred", floor, at(unit, 0, 0.49, 0), 4, -0.01},
		{"box off centre", floor, at(unit, 3, 0.49, 0), 4, -0.01},
		{"yawed box", floor, posed(unit, mgl64.Vec3{0, 0.49, 0}, yaw), 4, -0.01},
		{"stacked boxes", at(unit, 0, 0.5, 0), at(unit, 0, 1.48, 0), 4, -0.02},
		{"hull on the ground", floor, at(hull, 0, 0.48, 0), 4, -0.02},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScratch(arena.New(nil))
			ab := append([]Point(nil), Collide(s, tc.a, tc.b)...)
			ba := append([]Point(nil), Collide(s, tc.b, tc.a)...)
			if len(ab) != tc.count || len(ba) != tc.count {
				t.Fatalf("expected %d points both ways, got %d and %d", tc.count, len(ab), len(ba))
			}
			if !vecNear(ab[0].Normal, ba[0].Normal.Mul(-1), 1e-4) {
				t.Errorf("normals not mirrored: %v and %v", ab[0].Normal, ba[0].Normal)
			}
			if !near(deepest(ab), tc.sep, 1e-4) || !near(deepest(ba), tc.sep, 1e-4) {
				t.Errorf("expected separation %g, got %g and %g", tc.sep, deepest(ab), deepest(ba))
			}
		})
	}
}

func TestFaceAxesResolveFlatOverlap(t *testing.T) {
	s := NewScratch(arena.New(nil))
	ground := must(shape.NewBox(mgl64.Vec3{20, 0.5, 20}))
	unit := must(shape.NewBox(mgl64.Vec3{0.5, 0.5, 0.5}))
	a, b := at(ground, 0, -0.5, 0), at(unit, 0, 0.49, 0)
	pair := newPair(ground, a.Transform, unit, b.Transform, false)

	s.points.Truncate(0)
	s.faceAxes(&pair, ground, a.Transform, unit, b.Transform)
	pts := s.points.Items()
	if len(pts) != 4 {
		t.Fatalf("expected 4 points, got %d", len(pts))
	}
	for _, p := range pts {
		if !vecNear(p.Normal, mgl64.Vec3{0, -1, 0}, 1e-9) || !near(p.Separation, -0.01, 1e-9) {
			t.Errorf("unexpected point %+v", p)
		}
	}
}

func TestFaceAxesIgnoreSeparatedShapes(t *testing.T) {
	s := NewScratch(arena.New(nil))
	unit := must(shape.NewBox(mgl64.Vec3{0.5, 0.5, 0.5}))
	a, b := at(unit, 0, 0, 0), at(unit, 0, 1.5, 0)
	pair := newPair(unit, a.Transform, unit, b.Transform, false)

	s.points.Truncate(0)
	s.faceAxes(&pair, unit, a.Transform, unit, b.Transform)
	if n := s.points.Len(); n != 0 {
		t.Errorf("expected no points for separated boxes, got %d", n)
	}
}

func TestCapsuleLyingFlatGetsTwoPoints(t *testing.T) {
	s := NewScratch(arena.New(nil))
	capsule := must(shape.NewCapsule(0.5, 1))
	box := must(shape.NewBox(mgl64.Vec3{3, 1, 3}))

	a := Proxy{
		Shape:     capsule,
		Transform: geom.NewTransform(mgl64.Vec3{0, 1.45, 0}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})),
	}
	pts := Collide(s, a, at(box, 0, 0, 0))
	if len(pts) != 2 {
		t.Fatalf("expected 2 points, got %d", len(pts))
	}
	for _, p := range pts {
		if !near(p.Separation, -0.05, 1e-6) {
			t.Errorf("expected separation -0.05, got %f", p.Separation)
		}
		if !near(math.Abs(p.PointA[0]), 1, 1e-6) {
			t.Errorf("expected contact under an end cap, got %v", p.PointA)
		}
	}
}

func TestCapsuleCapsuleCrossed(t *testing.T) {
	s := NewScratch(arena.New(nil))
	capsule := must(shape.NewCapsule(0.25, 1))
	a := Proxy{
		Shape:     capsule,
		Transform: geom.NewTransform(mgl64.Vec3{0, 0.4, 0}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})),
	}
	b := Proxy{
		Shape:     capsule,
		Transform: geom.NewTransform(mgl64.Vec3{}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{1, 0, 0})),
	}
	pts := Collide(s, a, b)
	if len(pts) != 1 || !near(pts[0].Separation, -0.1, 1e-9) {
		t.Fatalf("expected one point at -0.1, got %v", pts)
	}
}

func TestSphereOnHeightField(t *testing.T) {
	s := NewScratch(arena.New(nil))
	hf := must(shape.NewHeightField([][]float64{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}, 1))
	sp := must(shape.NewSphere(0.5))

	pts := Collide(s, at(sp, 0.2, 0.4, 0.1), at(hf, 0, 0, 0))
	if len(pts) == 0 {
		t.Fatal("expected contact with the terrain")
	}
	deepest := pts[0]
	for _, p := range pts {
		if p.Separation < deepest.Separation {
			deepest = p
		}
		if p.Normal[1] <= 0 {
			t.Errorf("expected upward normal, got %v", p.Normal)
		}
	}
	if !near(deepest.Separation, -0.1, 1e-6) || !vecNear(deepest.Normal, mgl64.Vec3{0, 1, 0}, 1e-6) {
		t.Errorf("unexpected deepest contact %+v", deepest)
	}
}

func TestBoxOnTriangleMesh(t *testing.T) {
	s := NewScratch(arena.New(nil))
	mesh := must(shape.NewTriangleMesh(
		[]mgl64.Vec3{{-5, 0, -5}, {5, 0, -5}, {5, 0, 5}, {-5, 0, 5}},
		[][3]int{{0, 2, 1}, {0, 3, 2}},
	))
	box := must(shape.NewBox(mgl64.Vec3{0.5, 0.5, 0.5}))

	pts := Collide(s, at(box, -1, 0.45, 2), at(mesh, 0, 0, 0))
	if len(pts) < 3 {
		t.Fatalf("expected a face manifold, got %d points", len(pts))
	}
	for _, p := range pts {
		if !near(p.Separation, -0.05, 1e-3) || !vecNear(p.Normal, mgl64.Vec3{0, 1, 0}, 1e-3) {
			t.Errorf("unexpected contact %+v", p)
		}
	}

	pts = Collide(s, at(mesh, 0, 0, 0), at(box, -1, 0.45, 2))
	for _, p := range pts {
		if !vecNear(p.Normal, mgl64.Vec3{0, -1, 0}, 1e-3) {
			t.Errorf("expected flipped normal, got %v", p.Normal)
		}
	}
}

func TestConcavePairsUnsupported(t *testing.T) {
	if Supported(shape.KindTriangleMesh, shape.KindHeightField) {
		t.Error("expected concave pairs to be unsupported")
	}
	if !Supported(shape.KindHeightField, shape.KindCapsule) {
		t.Error("expected heightfield-capsule to be supported")
	}
	for a := shape.KindSphere; a <= shape.KindTriangle; a++ {
		for b := shape.KindSphere; b <= shape.KindTriangle; b++ {
			if !Supported(a, b) {
				t.Errorf("expected %v-%v to be supported", a, b)
			}
		}
	}
}

func TestManifoldMatchesAndKeepsImpulses(t *testing.T) {
	m := &Manifold{}
	xf := geom.Identity()
	pts := []Point{
		{PointA: mgl64.Vec3{0, 0, 0}, PointB: mgl64.Vec3{0, 0.1, 0}, Normal: mgl64.Vec3{0, 1, 0}, Separation: -0.1},
		{PointA: mgl64.Vec3{1, 0, 0}, PointB: mgl64.Vec3{1, 0.1, 0}, Normal: mgl64.Vec3{0, 1, 0}, Separation: -0.1},
	}
	m.Update(pts, xf, xf)
	if m.Count != 2 || m.WasTouching() {
		t.Fatalf("unexpected first update: count %d", m.Count)
	}
	m.Points[0].NormalImpulse = 3
	m.Points[1].TangentImpulse = [2]float64{0.5, -0.5}

	moved := []Point{
		{PointA: mgl64.Vec3{1.005, 0, 0}, PointB: mgl64.Vec3{1.005, 0.1, 0}, Normal: mgl64.Vec3{0, 1, 0}, Separation: -0.1},
		{PointA: mgl64.Vec3{0.005, 0, 0}, PointB: mgl64.Vec3{0.005, 0.1, 0}, Normal: mgl64.Vec3{0, 1, 0}, Separation: -0.1},
		{PointA: mgl64.Vec3{0.5, 0, 0.5}, PointB: mgl64.Vec3{0.5, 0.1, 0.5}, Normal: mgl64.Vec3{0, 1, 0}, Separation: -0.1},
	}
	m.Update(moved, xf, xf)
	if !m.WasTouching() || !m.Touching() {
		t.Error("expected persisting manifold")
	}
	if !m.Points[0].Persisted || m.Points[0].TangentImpulse != [2]float64{0.5, -0.5} {
		t.Errorf("expected point 0 to inherit tangent impulse, got %+v", m.Points[0])
	}
	if !m.Points[1].Persisted || m.Points[1].NormalImpulse != 3 {
		t.Errorf("expected point 1 to inherit normal impulse, got %+v", m.Points[1])
	}
	if m.Points[2].Persisted || m.Points[2].NormalImpulse != 0 {
		t.Errorf("expected new point to start cold, got %+v", m.Points[2])
	}

	m.Clear()
	if m.Touching() || !m.WasTouching() {
		t.Error("expected cleared manifold to remember touching")
	}
}

func TestReduceKeepsDeepestAndSpread(t *testing.T) {
	n := mgl64.Vec3{0, 1, 0}
	var pts []Point
	for i := 0; i < 8; i++ {
		a := float64(i) * math.Pi / 4
		pts = append(pts, Point{
			PointA:     mgl64.Vec3{math.Cos(a), 0, math.Sin(a)},
			Normal:     n,
			Separation: -0.1,
		})
	}
	pts[5].Separation = -0.2

	var keep [MaxPoints]int
	if got := reduce(pts, keep[:]); got != 4 {
		t.Fatalf("expected 4 points, got %d", got)
	}
	if keep[0] != 5 {
		t.Errorf("expected deepest point first, got %d", keep[0])
	}
	if keep[1] != 1 {
		t.Errorf("expected opposite point second, got %d", keep[1])
	}
	seen := map[int]bool{}
	for _, k := range keep {
		if seen[k] {
			t.Errorf("point %d kept twice", k)
		}
		seen[k] = true
	}
}

func TestTableReleaseRecyclesSlots(t *testing.T) {
	tbl := NewManifoldTable(4)
	p1 := broadphase.MakePair(1, 2)
	p2 := broadphase.MakePair(0, 5)
	h1, created := tbl.Acquire(p1)
	if !created {
		t.Fatal("expected new manifold")
	}
	if _, created := tbl.Acquire(p1); created {
		t.Error("expected existing manifold")
	}
	tbl.Acquire(p2)
	if pairs := tbl.AppendPairs(nil); len(pairs) != 2 || pairs[0] != p2 {
		t.Errorf("expected sorted pairs, got %v", pairs)
	}
	tbl.Release(p1)
	if _, ok := tbl.Lookup(p1); ok {
		t.Error("expected released pair to be gone")
	}
	h3, _ := tbl.Acquire(broadphase.MakePair(7, 8))
	if h3 != h1 {
		t.Errorf("expected slot reuse, got %d want %d", h3, h1)
	}
	if tbl.At(h3).Pair != broadphase.MakePair(7, 8) {
		t.Error("expected recycled manifold to carry the new pair")
	}
}

func TestRayCastShapes(t *testing.T) {
	sp := must(shape.NewSphere(1))
	box := must(shape.NewBox(mgl64.Vec3{1, 2, 1}))
	capsule := must(shape.NewCapsule(0.5, 1))
	hull := must(shape.NewConvexHull(cube(1)))
	hf := must(shape.NewHeightField([][]float64{{0, 0}, {0, 0}}, 4))

	origin := mgl64.Vec3{-10, 0, 0}
	dir := mgl64.Vec3{1, 0, 0}
	cases := []struct {
		name   string
		proxy  Proxy
		origin mgl64.Vec3
		dir    mgl64.Vec3
		t      float64
		normal mgl64.Vec3
	}{
		{"sphere", at(sp, 0, 0, 0), origin, dir, 9, mgl64.Vec3{-1, 0, 0}},
		{"box", at(box, 0, 0, 0), origin, dir, 9, mgl64.Vec3{-1, 0, 0}},
		{"capsule", at(capsule, 0, 0, 0), origin, dir, 9.5, mgl64.Vec3{-1, 0, 0}},
		{"hull", at(hull, 0, 0, 0), origin, dir, 9, mgl64.Vec3{-1, 0, 0}},
		{"heightfield", at(hf, 0, 0, 0), mgl64.Vec3{0.5, 5, 0.5}, mgl64.Vec3{0, -1, 0}, 5, mgl64.Vec3{0, 1, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hit, ok := RayCast(tc.proxy, tc.origin, tc.dir, 100)
			if !ok {
				t.Fatal("expected hit")
			}
			if !near(hit.T, tc.t, 1e-4) {
				t.Errorf("expected t %f, got %f", tc.t, hit.T)
			}
			if !vecNear(hit.Normal, tc.normal, 1e-3) {
				t.Errorf("expected normal %v, got %v", tc.normal, hit.Normal)
			}
		})
	}
}

func TestRayAdvanceNeedsClosedGap(t *testing.T) {
	box := must(shape.NewBox(mgl64.Vec3{0.5, 0.5, 0.5}))
	xf := geom.Identity()
	origin := mgl64.Vec3{-3, 3, 0}
	dir := mgl64.Vec3{2.5, -3, 0}.Normalize()

	// the first advance stops short of the face it is heading for
	if hit, ok := advanceRay(box, xf, origin, dir, 100, 1); ok {
		t.Fatalf("expected a miss with the gap still open, got %+v", hit)
	}
	hit, ok := advanceRay(box, xf, origin, dir, 100, advanceIterations)
	if !ok {
		t.Fatal("expected hit")
	}
	if !near(hit.T, math.Hypot(2.5, 3), 1e-4) {
		t.Errorf("expected t %f, got %f", math.Hypot(2.5, 3), hit.T)
	}
	if !vecNear(hit.Normal, mgl64.Vec3{-1, 0, 0}, 1e-3) {
		t.Errorf("expected normal -x, got %v", hit.Normal)
	}
}

func TestRayCastMisses(t *testing.T) {
	sp := must(shape.NewSphere(1))
	box := must(shape.NewBox(mgl64.Vec3{1, 1, 1}))

	if _, ok := RayCast(at(sp, 0, 0, 0), mgl64.Vec3{-10, 3, 0}, mgl64.Vec3{1, 0, 0}, 100); ok {
		t.Error("expected ray above the sphere to miss")
	}
	if _, ok := RayCast(at(sp, 0, 0, 0), mgl64.Vec3{-10, 0, 0}, mgl64.Vec3{1, 0, 0}, 5); ok {
		t.Error("expected short ray to miss")
	}
	if _, ok := RayCast(at(box, 0, 0, 0), mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 5); ok {
		t.Error("expected ray starting inside to miss")
	}
}

