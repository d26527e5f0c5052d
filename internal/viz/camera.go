package viz

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
)

const nearPlane = 0.1

// Camera orbits Target. Yaw turns about world Y, Pitch tilts toward the
// ground. Span is the world size that fills the smaller side of the
// screen at the target.
type Camera struct {
	Target     mgl64.Vec3
	Yaw, Pitch float64
	Distance   float64
	Span       float64
}

func NewCamera() *Camera {
	return &Camera{Yaw: 0.6, Pitch: 0.35, Distance: 30, Span: 12}
}

// Fit centres the camera on box and sizes the view to hold it.
func (c *Camera) Fit(box geom.AABB) {
	if !box.IsValid() {
		return
	}
	c.Target = box.Center()
	ext := box.Extents()
	c.Span = math.Max(2*math.Max(ext[0], math.Max(ext[1], ext[2]))*1.2, 1)
	c.Distance = 3 * c.Span
}

func (c *Camera) Orbit(dyaw, dpitch float64) {
	c.Yaw += dyaw
	c.Pitch = math.Max(-1.5, math.Min(1.5, c.Pitch+dpitch))
}

func (c *Camera) ZoomIn()  { c.Span = math.Max(0.5, c.Span/1.2) }
func (c *Camera) ZoomOut() { c.Span = math.Min(1e4, c.Span*1.2) }

func (c *Camera) rotation() mgl64.Quat {
	pitch := mgl64.QuatRotate(c.Pitch, mgl64.Vec3{1, 0, 0})
	yaw := mgl64.QuatRotate(-c.Yaw, mgl64.Vec3{0, 1, 0})
	return pitch.Mul(yaw)
}

// Project maps p onto a w by h surface with y growing downward. depth is
// the distance from the eye along the view axis; ok is false for points
// behind the near plane.
func (c *Camera) Project(p mgl64.Vec3, w, h float64) (x, y, depth float64, ok bool) {
	return c.project(c.rotation(), p, w, h)
}

func (c *Camera) project(q mgl64.Quat, p mgl64.Vec3, w, h float64) (float64, float64, float64, bool) {
	v := q.Rotate(p.Sub(c.Target))
	depth := c.Distance - v[2]
	if depth < nearPlane {
		return 0, 0, depth, false
	}
	s := c.Distance / depth * math.Min(w, h) / c.Span
	return w/2 + v[0]*s, h/2 - v[1]*s, depth, true
}
