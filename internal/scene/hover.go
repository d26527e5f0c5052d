package scene

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/control"
	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/shape"
)

const (
	hoverKp       = 25
	hoverKi       = 5
	hoverKd       = 10
	hoverTiltGain = 15
	hoverTiltDamp = 6
)

var hoverPlatformHalf = mgl64.Vec3{1.5, 0.2, 1.5}

// hover holds a free platform at Height with a PID on its vertical force
// and a PD torque that keeps it level, then drops Count boxes on it.
func hover(b *builder, p config.SceneParams, rng *rand.Rand) {
	target := orFloat(p.Height, 3)
	n := orInt(p.Count, 3)
	size := orFloat(p.Size, 0.25)
	b.ground(20)

	def := bodyDef(dynamics.Dynamic, mgl64.Vec3{0, target, 0})
	def.AllowSleep = false
	def.LinearDamping = 0.5
	platform := b.body("platform", def)
	if s, err := shape.NewBox(hoverPlatformHalf); b.ok(err) {
		b.collider(platform, s, dynamics.ColliderDef{Material: b.material()})
	}

	m := b.material()
	for i := 0; i < n; i++ {
		pos := mgl64.Vec3{(rng.Float64()*2 - 1) * 0.8, target + 1 + float64(i)*3*size, (rng.Float64()*2 - 1) * 0.8}
		b.box("", dynamics.Dynamic, pos, mgl64.Vec3{size, size, size}, m)
	}
	if platform == nil {
		return
	}

	pid := control.NewPID(hoverKp, hoverKi, hoverKd, target)
	gravity := b.s.World.Settings().Gravity
	dt := b.dt
	up := mgl64.Vec3{0, 1, 0}
	b.s.drive(func(step int) {
		mass := platform.Mass()
		lift := mass * pid.Update(platform.Position().Y(), dt)
		platform.ApplyForceToCenter(gravity.Mul(-mass).Add(up.Mul(lift)))

		tilt := platform.Orientation().Rotate(up).Cross(up)
		platform.ApplyTorque(tilt.Mul(hoverTiltGain * mass).Sub(platform.AngularVelocity().Mul(hoverTiltDamp * mass)))
	})
}
