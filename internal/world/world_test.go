package world

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func testSettings(workers int) Settings {
	s := DefaultSettings()
	s.Workers = workers
	return s
}

func body(w *World, typ dynamics.BodyType, pos mgl64.Vec3) *dynamics.Body {
	def := dynamics.DefaultBodyDef()
	def.Type = typ
	def.Position = pos
	return must(w.CreateBody(def))
}

func attach(w *World, b *dynamics.Body, s shape.Shape) *dynamics.Collider {
	return must(w.AddCollider(b, dynamics.ColliderDef{Shape: s, Local: geom.Identity()}))
}

func addGround(w *World) *dynamics.Collider {
	g := body(w, dynamics.Static, mgl64.Vec3{0, -0.5, 0})
	return attach(w, g, must(shape.NewBox(mgl64.Vec3{20, 0.5, 20})))
}

func addBox(w *World, pos mgl64.Vec3, half float64) *dynamics.Body {
	b := body(w, dynamics.Dynamic, pos)
	attach(w, b, must(shape.NewBox(mgl64.Vec3{half, half, half})))
	return b
}

func addSphere(w *World, pos mgl64.Vec3, r float64) *dynamics.Body {
	b := body(w, dynamics.Dynamic, pos)
	attach(w, b, must(shape.NewSphere(r)))
	return b
}

func run(t testing.TB, w *World, steps int) {
	t.Helper()
	for i := 0; i < steps; i++ {
		if err := w.Step(1.0 / 60); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

type recorder struct {
	contacts []ContactEvent
	triggers []TriggerEvent
}

func (r *recorder) OnContact(e ContactEvent) { r.contacts = append(r.contacts, e) }
func (r *recorder) OnTrigger(e TriggerEvent) { r.triggers = append(r.triggers, e) }

func (r *recorder) count(p Phase) int {
	n := 0
	for _, e := range r.contacts {
		if e.Phase == p {
			n++
		}
	}
	return n
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero velocity iterations", func(s *Settings) { s.VelocityIterations = 0 }},
		{"negative position iterations", func(s *Settings) { s.PositionIterations = -1 }},
		{"no workers", func(s *Settings) { s.Workers = 0 }},
		{"nan gravity", func(s *Settings) { s.Gravity = mgl64.Vec3{0, math.NaN(), 0} }},
		{"negative slop", func(s *Settings) { s.LinearSlop = -0.01 }},
		{"baumgarte above one", func(s *Settings) { s.Baumgarte = 1.5 }},
		{"zero max translation", func(s *Settings) { s.MaxTranslation = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			if _, err := New(s); !errors.Is(err, ErrInvalidSettings) {
				t.Errorf("expected ErrInvalidSettings, got %v", err)
			}
		})
	}
	if _, err := New(DefaultSettings()); err != nil {
		t.Errorf("default settings rejected: %v", err)
	}
}

func TestStepRejectsInvalidTimeStep(t *testing.T) {
	w := must(New(testSettings(1)))
	b := addSphere(w, mgl64.Vec3{0, 5, 0}, 0.5)
	for _, dt := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if err := w.Step(dt); !errors.Is(err, ErrInvalidTimeStep) {
			t.Errorf("dt %v: expected ErrInvalidTimeStep, got %v", dt, err)
		}
	}
	if b.Position() != (mgl64.Vec3{0, 5, 0}) || w.Stats().Steps != 0 {
		t.Error("rejected step must not change the world")
	}
}

func TestFreeFall(t *testing.T) {
	w := must(New(testSettings(1)))
	b := addSphere(w, mgl64.Vec3{0, 10, 0}, 0.5)
	run(t, w, 60)
	// semi-implicit Euler over one second
	want := 10 - 9.81*(1.0/60)*(1.0/60)*60*61/2
	if y := b.Position().Y(); math.Abs(y-want) > 1e-9 {
		t.Errorf("expected y %f, got %f", want, y)
	}
}

func TestFatBoxSweepsScaledMotion(t *testing.T) {
	s := testSettings(1)
	s.Gravity = mgl64.Vec3{}
	s.AABBMargin = 0.05
	s.DisplacementMultiplier = 2
	w := must(New(s))
	b := body(w, dynamics.Dynamic, mgl64.Vec3{})
	c := attach(w, b, must(shape.NewBox(mgl64.Vec3{0.5, 0.5, 0.5})))
	b.SetLinearVelocity(mgl64.Vec3{6, 0, 0})

	run(t, w, 1)
	tight, v := c.WorldAABB(), b.LinearVelocity()
	run(t, w, 1)
	fat, _ := w.bp.FatAABB(c.ID())
	want := tight.Max[0] + 0.05 + v.X()/60*2
	if math.Abs(fat.Max[0]-want) > 1e-9 {
		t.Errorf("expected fat max x %f, got %f", want, fat.Max[0])
	}
}

func TestSleepingBodyRefitsProxy(t *testing.T) {
	s := testSettings(1)
	w := must(New(s))
	addGround(w)
	b := body(w, dynamics.Dynamic, mgl64.Vec3{0, 1.5, 0})
	c := attach(w, b, must(shape.NewBox(mgl64.Vec3{0.5, 0.5, 0.5})))

	for i := 0; i < 600 && !b.IsSleeping(); i++ {
		run(t, w, 1)
	}
	if !b.IsSleeping() {
		t.Fatal("expected the box to fall asleep")
	}
	fat, _ := w.bp.FatAABB(c.ID())
	want := c.WorldAABB().Expand(s.AABBMargin)
	if !fat.Min.ApproxEqual(want.Min) || !fat.Max.ApproxEqual(want.Max) {
		t.Errorf("expected fat box %v around the resting pose, got %v", want, fat)
	}
}

func TestContactEventLifecycle(t *testing.T) {
	rec := &recorder{}
	w := must(New(testSettings(1), WithListener(rec)))
	ground := addGround(w)
	ball := addSphere(w, mgl64.Vec3{0, 1, 0}, 0.5)
	run(t, w, 120)

	if n := rec.count(Start); n != 1 {
		t.Fatalf("expected one start event, got %d", n)
	}
	first := rec.contacts[0]
	if first.Phase != Start || first.Count == 0 {
		t.Fatalf("unexpected first event %+v", first)
	}
	if first.A != ground || first.B != ball.Colliders()[0] {
		t.Errorf("expected the ground collider as A")
	}
	if n := first.Points[0].Normal.Dot(mgl64.Vec3{0, -1, 0}); n < 0.99 {
		t.Errorf("normal should point from the ball toward the ground, got %v", first.Points[0].Normal)
	}
	if rec.count(End) != 0 {
		t.Fatal("no end event expected while resting")
	}

	ball.SetTransform(mgl64.Vec3{0, 10, 0}, mgl64.QuatIdent())
	run(t, w, 1)
	if n := rec.count(End); n != 1 {
		t.Errorf("expected one end event after lifting, got %d", n)
	}
	if len(w.Manifolds()) != 0 {
		t.Errorf("expected no touching manifolds, got %d", len(w.Manifolds()))
	}
}

func TestTriggerEvents(t *testing.T) {
	rec := &recorder{}
	w := must(New(testSettings(1), WithListener(rec)))
	zoneBody := body(w, dynamics.Static, mgl64.Vec3{})
	zone := must(w.AddCollider(zoneBody, dynamics.ColliderDef{
		Shape:     must(shape.NewBox(mgl64.Vec3{1, 1, 1})),
		Local:     geom.Identity(),
		IsTrigger: true,
	}))
	ball := addSphere(w, mgl64.Vec3{0, 3, 0}, 0.25)
	run(t, w, 120)

	if len(rec.triggers) < 2 {
		t.Fatalf("expected start and end trigger events, got %d", len(rec.triggers))
	}
	if e := rec.triggers[0]; e.Phase != Start || e.Trigger != zone || e.Other != ball.Colliders()[0] {
		t.Errorf("unexpected first trigger event %+v", e)
	}
	if e := rec.triggers[len(rec.triggers)-1]; e.Phase != End {
		t.Errorf("expected the last trigger event to be an end, got %v", e.Phase)
	}
	if len(rec.contacts) != 0 {
		t.Errorf("triggers must not produce contacts, got %d", len(rec.contacts))
	}
	if ball.Position().Y() > -10 {
		t.Errorf("ball should fall through the trigger, y %f", ball.Position().Y())
	}
}

func TestRayCastAndQuery(t *testing.T) {
	w := must(New(testSettings(1)))
	near := attach(w, body(w, dynamics.Static, mgl64.Vec3{5, 0, 0}), must(shape.NewBox(mgl64.Vec3{0.5, 0.5, 0.5})))
	far := attach(w, body(w, dynamics.Static, mgl64.Vec3{10, 0, 0}), must(shape.NewSphere(0.5)))

	hits := w.RayCast(mgl64.Vec3{}, mgl64.Vec3{2, 0, 0}, 100)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Collider != near || math.Abs(hits[0].Distance-4.5) > 1e-9 {
		t.Errorf("unexpected first hit %+v", hits[0])
	}
	if hits[1].Collider != far || math.Abs(hits[1].Distance-9.5) > 1e-9 {
		t.Errorf("unexpected second hit %+v", hits[1])
	}
	if hits[0].Normal.Sub(mgl64.Vec3{-1, 0, 0}).Len() > 1e-9 {
		t.Errorf("unexpected normal %v", hits[0].Normal)
	}

	closest, ok := w.RayCastClosest(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 100)
	if !ok || closest.Collider != near {
		t.Errorf("expected the near box as the closest hit")
	}
	if _, ok := w.RayCastClosest(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 4); ok {
		t.Error("hit beyond max distance")
	}
	if hits := w.RayCast(mgl64.Vec3{}, mgl64.Vec3{}, 100); hits != nil {
		t.Error("zero direction must not hit")
	}

	got := w.QueryAABB(geom.FromCenter(mgl64.Vec3{5, 0, 0}, mgl64.Vec3{1, 1, 1}))
	if len(got) != 1 || got[0] != near {
		t.Errorf("unexpected query result %v", got)
	}
	if got := w.QueryAABB(geom.NewAABB(mgl64.Vec3{-20, -20, -20}, mgl64.Vec3{20, 20, 20})); len(got) != 2 || got[0].ID() > got[1].ID() {
		t.Errorf("expected both colliders sorted by id")
	}
}

func TestJointDisablesCollision(t *testing.T) {
	s := testSettings(1)
	s.Gravity = mgl64.Vec3{}
	w := must(New(s))
	a := addBox(w, mgl64.Vec3{0, 0, 0}, 0.5)
	b := addBox(w, mgl64.Vec3{0.8, 0, 0}, 0.5)
	run(t, w, 1)
	if len(w.Manifolds()) != 1 {
		t.Fatalf("overlapping boxes should touch, got %d manifolds", len(w.Manifolds()))
	}

	j := must(w.CreateJoint(dynamics.JointDef{Type: dynamics.BallSocketJoint, BodyA: a, BodyB: b, Anchor: mgl64.Vec3{0.4, 0, 0}}))
	run(t, w, 1)
	if len(w.Manifolds()) != 0 {
		t.Errorf("joint should disable the pair, got %d manifolds", len(w.Manifolds()))
	}

	if err := w.DestroyJoint(j); err != nil {
		t.Fatal(err)
	}
	if err := w.DestroyJoint(j); !errors.Is(err, ErrUnknownJoint) {
		t.Errorf("expected ErrUnknownJoint, got %v", err)
	}
	run(t, w, 1)
	if len(w.Manifolds()) != 1 {
		t.Errorf("pair should collide again, got %d manifolds", len(w.Manifolds()))
	}
}

func TestDestroyBody(t *testing.T) {
	w := must(New(testSettings(1)))
	addGround(w)
	a := addBox(w, mgl64.Vec3{0, 0.5, 0}, 0.5)
	b := addBox(w, mgl64.Vec3{3, 0.5, 0}, 0.5)
	must(w.CreateJoint(dynamics.JointDef{Type: dynamics.DistanceJoint, BodyA: a, BodyB: b, AnchorA: a.Position(), AnchorB: b.Position()}))
	run(t, w, 5)

	if err := w.DestroyBody(a); err != nil {
		t.Fatal(err)
	}
	if err := w.DestroyBody(a); !errors.Is(err, ErrUnknownBody) {
		t.Errorf("expected ErrUnknownBody, got %v", err)
	}
	st := w.Stats()
	if st.Bodies != 2 || st.Colliders != 2 || st.Joints != 0 {
		t.Errorf("unexpected stats after destroy %+v", st)
	}
	if b.Index() != 1 {
		t.Errorf("expected body index compacted to 1, got %d", b.Index())
	}
	run(t, w, 5)
	w.ValidateTree()
}

func TestForeignBodyRejected(t *testing.T) {
	w1 := must(New(testSettings(1)))
	w2 := must(New(testSettings(1)))
	b := addBox(w1, mgl64.Vec3{}, 0.5)
	if _, err := w2.AddCollider(b, dynamics.ColliderDef{Shape: must(shape.NewSphere(1))}); !errors.Is(err, ErrUnknownBody) {
		t.Errorf("expected ErrUnknownBody, got %v", err)
	}
	if _, err := w1.AddCollider(b, dynamics.ColliderDef{}); !errors.Is(err, dynamics.ErrInvalidCollider) {
		t.Errorf("expected ErrInvalidCollider, got %v", err)
	}
}

func BenchmarkPyramidStep(b *testing.B) {
	w := must(New(testSettings(4)))
	addGround(w)
	for row := 0; row < 10; row++ {
		for i := 0; i < 10-row; i++ {
			x := float64(i) - float64(10-row)/2
			addBox(w, mgl64.Vec3{x * 1.05, 0.5 + float64(row), 0}, 0.5)
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = w.Step(1.0 / 60)
	}
}
