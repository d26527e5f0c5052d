package scene

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

func orInt(v, d int) int {
	if v > 0 {
		return v
	}
	return d
}

func orFloat(v, d float64) float64 {
	if v > 0 {
		return v
	}
	return d
}

func randomRotation(rng *rand.Rand) mgl64.Quat {
	return mgl64.AnglesToQuat(rng.Float64()*math.Pi, rng.Float64()*math.Pi, rng.Float64()*math.Pi, mgl64.XYZ)
}

func drop(b *builder, p config.SceneParams, rng *rand.Rand) {
	n := orInt(p.Count, 10)
	size := orFloat(p.Size, 0.5)
	h := orFloat(p.Height, 4)
	b.ground(30)
	m := b.material()
	for i := 0; i < n; i++ {
		pos := mgl64.Vec3{(rng.Float64()*2 - 1) * 3, h + float64(i)*3.5*size, (rng.Float64()*2 - 1) * 3}
		var body *dynamics.Body
		if i%2 == 0 {
			body = b.box("", dynamics.Dynamic, pos, mgl64.Vec3{size, size, size}, m)
		} else {
			body = b.sphere("", pos, size, m)
		}
		if body != nil {
			body.SetTransform(pos, randomRotation(rng))
		}
	}
}

func stack(b *builder, p config.SceneParams, _ *rand.Rand) {
	n := orInt(p.Count, 5)
	size := orFloat(p.Size, 0.5)
	b.ground(20)
	half := mgl64.Vec3{size, size, size}
	for i := 0; i < n; i++ {
		b.box(fmt.Sprintf("box%d", i), dynamics.Dynamic, mgl64.Vec3{0, size + float64(i)*2*size, 0}, half, dynamics.Material{})
	}
}

func pyramid(b *builder, p config.SceneParams, _ *rand.Rand) {
	base := orInt(p.Count, 5)
	size := orFloat(p.Size, 0.5)
	b.ground(float64(base)*size + 20)
	half := mgl64.Vec3{size, size, size}
	pitch := 2 * size * 1.02
	for row := 0; row < base; row++ {
		for i := 0; i < base-row; i++ {
			x := (float64(i) - float64(base-row-1)/2) * pitch
			y := size + float64(row)*2*size
			b.box("", dynamics.Dynamic, mgl64.Vec3{x, y, 0}, half, dynamics.Material{})
		}
	}
}

func dominoes(b *builder, p config.SceneParams, _ *rand.Rand) {
	n := orInt(p.Count, 20)
	scale := orFloat(p.Size, 0.5) / 0.5
	half := mgl64.Vec3{0.1, 1, 0.5}.Mul(scale)
	spacing := 1.2 * scale
	b.ground(float64(n)*spacing + 10)
	for i := 0; i < n; i++ {
		name := ""
		if i == 0 {
			name = "first"
		}
		pos := mgl64.Vec3{float64(i) * spacing, half[1], 0}
		b.box(name, dynamics.Dynamic, pos, half, dynamics.Material{})
	}
	if first := b.s.Named["first"]; first != nil {
		first.SetAngularVelocity(mgl64.Vec3{0, 0, -1.5})
	}
}

// terrainHeights samples a smooth hill field on a rows x cols grid.
func terrainHeights(rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	for r := range out {
		out[r] = make([]float64, cols)
		for c := range out[r] {
			out[r][c] = 0.6*math.Sin(float64(c)/3) * math.Cos(float64(r)/4)
		}
	}
	return out
}

func terrain(b *builder, p config.SceneParams, rng *rand.Rand) {
	n := orInt(p.Count, 12)
	size := orFloat(p.Size, 0.4)
	h := orFloat(p.Height, 4)
	field, err := shape.NewHeightField(terrainHeights(25, 25), 1)
	if err != nil {
		b.fail(err)
		return
	}
	ground := b.body("terrain", bodyDef(dynamics.Static, mgl64.Vec3{}))
	b.collider(ground, field, dynamics.ColliderDef{})
	m := b.material()
	for i := 0; i < n; i++ {
		pos := mgl64.Vec3{(rng.Float64()*2 - 1) * 8, h + float64(i)*3*size, (rng.Float64()*2 - 1) * 8}
		if i%3 == 0 {
			b.box("", dynamics.Dynamic, pos, mgl64.Vec3{size, size, size}, m)
		} else {
			b.sphere("", pos, size, m)
		}
	}
}

// rampMesh is a two-triangle ramp falling from y=2 at x=4 to the floor at
// x=8.
func rampMesh() (*shape.TriangleMesh, error) {
	verts := []mgl64.Vec3{{4, 2, -2}, {4, 2, 2}, {8, 0, -2}, {8, 0, 2}}
	return shape.NewTriangleMesh(verts, [][3]int{{0, 1, 2}, {2, 1, 3}})
}

func prismPoints(r, h float64, sides int) []mgl64.Vec3 {
	pts := make([]mgl64.Vec3, 0, 2*sides)
	for i := 0; i < sides; i++ {
		a := 2 * math.Pi * float64(i) / float64(sides)
		pts = append(pts, mgl64.Vec3{r * math.Cos(a), -h, r * math.Sin(a)}, mgl64.Vec3{r * math.Cos(a), h, r * math.Sin(a)})
	}
	return pts
}

func mixed(b *builder, p config.SceneParams, _ *rand.Rand) {
	h := orFloat(p.Height, 3)
	b.ground(20)
	m := b.material()

	ramp, err := rampMesh()
	b.fail(err)
	if err == nil {
		b.collider(b.body("ramp", bodyDef(dynamics.Static, mgl64.Vec3{})), ramp, dynamics.ColliderDef{})
	}

	b.sphere("ball", mgl64.Vec3{5, h + 1, 0}, 0.4, m)
	b.box("crate", dynamics.Dynamic, mgl64.Vec3{0, h, 0}, mgl64.Vec3{0.5, 0.3, 0.4}, m)

	pill := b.body("pill", bodyDef(dynamics.Dynamic, mgl64.Vec3{-3, h, 0}))
	if c, err := shape.NewCapsule(0.3, 0.5); b.ok(err) {
		b.collider(pill, c, dynamics.ColliderDef{Material: m})
	}
	if pill != nil {
		pill.SetTransform(pill.Position(), mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}))
	}

	nut := b.body("nut", bodyDef(dynamics.Dynamic, mgl64.Vec3{-1, h + 2, 2}))
	if hull, err := shape.NewConvexHull(prismPoints(0.5, 0.25, 6)); b.ok(err) {
		b.collider(nut, hull, dynamics.ColliderDef{Material: m})
	}

	// compound body: two boxes on one body
	dumbbell := b.body("dumbbell", bodyDef(dynamics.Dynamic, mgl64.Vec3{2, h + 3, -2}))
	for _, x := range []float64{-0.6, 0.6} {
		if s, err := shape.NewBox(mgl64.Vec3{0.25, 0.25, 0.25}); b.ok(err) {
			local := geom.Identity()
			local.Position = mgl64.Vec3{x, 0, 0}
			b.collider(dumbbell, s, dynamics.ColliderDef{Local: local, Material: m})
		}
	}

	spinnerDef := bodyDef(dynamics.Kinematic, mgl64.Vec3{-4, 0.2, -5})
	spinnerDef.AngularVelocity = mgl64.Vec3{0, 1, 0}
	spinner := b.body("spinner", spinnerDef)
	if s, err := shape.NewBox(mgl64.Vec3{2, 0.2, 0.3}); b.ok(err) {
		b.collider(spinner, s, dynamics.ColliderDef{Material: m})
	}
	b.sphere("rider", mgl64.Vec3{-4, 1.5, -5}, 0.3, m)
}

// ok records err and reports whether the caller may continue.
func (b *builder) ok(err error) bool {
	b.fail(err)
	return err == nil
}

func triggerZone(b *builder, p config.SceneParams, rng *rand.Rand) {
	n := orInt(p.Count, 6)
	size := orFloat(p.Size, 0.3)
	b.ground(20)
	zone := b.body("zone", bodyDef(dynamics.Static, mgl64.Vec3{0, 2, 0}))
	if s, err := shape.NewBox(mgl64.Vec3{2, 1, 2}); b.ok(err) {
		b.collider(zone, s, dynamics.ColliderDef{IsTrigger: true})
	}
	m := b.material()
	for i := 0; i < n; i++ {
		pos := mgl64.Vec3{(rng.Float64()*2 - 1) * 1.5, 5 + float64(i)*3*size, (rng.Float64()*2 - 1) * 1.5}
		b.sphere("", pos, size, m)
	}
}

const (
	ropeLinkRadius = 0.1
	ropeLinkHalf   = 0.15
	ropeLinkPitch  = 2 * (ropeLinkRadius + ropeLinkHalf)
	ropeBoxHalf    = 0.4
	ropeTop        = 12.0
)

// rope hangs capsule chains from a static first link, each ending in a
// box, above a static plank. The first box is twisted by a local torque
// for the first TorqueSteps steps.
func rope(b *builder, p config.SceneParams, _ *rand.Rand) {
	ropes := orInt(p.Ropes, 2)
	links := orInt(p.Links, 10)
	damping := orFloat(p.Damping, 0.03)
	torque := orFloat(p.Torque, 0.5)
	torqueSteps := orInt(p.TorqueSteps, 200)

	link, err := shape.NewCapsule(ropeLinkRadius, ropeLinkHalf)
	if !b.ok(err) {
		return
	}
	linkMaterial := dynamics.Material{Friction: 0.3, Density: 20}

	boxY := ropeTop - float64(links)*ropeLinkPitch - ropeBoxHalf
	for r := 0; r < ropes; r++ {
		x := (float64(r) - float64(ropes-1)/2) * 4
		var prev *dynamics.Body
		for k := 0; k < links; k++ {
			typ := dynamics.Dynamic
			if k == 0 {
				typ = dynamics.Static
			}
			def := bodyDef(typ, mgl64.Vec3{x, ropeTop - (float64(k)+0.5)*ropeLinkPitch, 0})
			def.LinearDamping, def.AngularDamping = damping, damping
			body := b.body(fmt.Sprintf("rope%d.link%d", r, k), def)
			b.collider(body, link, dynamics.ColliderDef{Material: linkMaterial})
			if prev != nil {
				b.joint(dynamics.JointDef{
					Type:   dynamics.BallSocketJoint,
					BodyA:  prev,
					BodyB:  body,
					Anchor: mgl64.Vec3{x, ropeTop - float64(k)*ropeLinkPitch, 0},
				})
			}
			prev = body
		}

		def := bodyDef(dynamics.Dynamic, mgl64.Vec3{x, boxY, 0})
		def.LinearDamping, def.AngularDamping = damping, damping
		box := b.body(fmt.Sprintf("box%d", r), def)
		if s, err := shape.NewBox(mgl64.Vec3{ropeBoxHalf, ropeBoxHalf, ropeBoxHalf}); b.ok(err) {
			b.collider(box, s, dynamics.ColliderDef{})
		}
		b.joint(dynamics.JointDef{
			Type:   dynamics.BallSocketJoint,
			BodyA:  prev,
			BodyB:  box,
			Anchor: mgl64.Vec3{x, ropeTop - float64(links)*ropeLinkPitch, 0},
		})
	}

	plankHalf := mgl64.Vec3{float64(ropes)*2 + 1, 0.1, 1.5}
	b.box("plank", dynamics.Static, mgl64.Vec3{0, boxY - ropeBoxHalf - 1, 0}, plankHalf, dynamics.Material{})

	driven := b.s.Named["box0"]
	if driven == nil {
		return
	}
	b.s.drive(func(step int) {
		if step < torqueSteps {
			driven.ApplyLocalTorque(mgl64.Vec3{0, torque, 0})
		}
	})
}
