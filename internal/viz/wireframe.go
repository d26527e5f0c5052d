package viz

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
	"github.com/san-kum/rigidsim/internal/world"
)

// Kind classifies a segment for colouring.
type Kind uint8

const (
	KindDynamic Kind = iota
	KindSleeping
	KindStatic
	KindTrigger
	KindJoint
	KindContact
)

const ringSegments = 16

type Segment struct {
	A, B mgl64.Vec3
	Kind Kind
}

// Frame is a world reduced to line segments.
type Frame struct {
	Segments []Segment
	Bounds   geom.AABB
}

type FrameOptions struct {
	Joints   bool
	Contacts bool
}

// BuildFrame outlines every collider of w and optionally its joints and
// contact points.
func BuildFrame(w *world.World, opts FrameOptions) *Frame {
	f := &Frame{}
	first := true
	for _, b := range w.Bodies() {
		for _, c := range b.Colliders() {
			box := c.WorldAABB()
			if first {
				f.Bounds, first = box, false
			} else {
				f.Bounds = f.Bounds.Union(box)
			}
			f.outline(c, kindOf(b, c))
		}
	}
	if opts.Joints {
		for _, j := range w.Joints() {
			a, b := j.Bodies()
			pa, pb := j.WorldAnchors()
			f.add(a.Position(), pa, KindJoint)
			f.add(pa, pb, KindJoint)
			f.add(pb, b.Position(), KindJoint)
		}
	}
	if opts.Contacts {
		for _, m := range w.Manifolds() {
			for i := 0; i < m.Count; i++ {
				f.cross(m.Points[i].PointB, 0.08)
			}
		}
	}
	return f
}

func kindOf(b *dynamics.Body, c *dynamics.Collider) Kind {
	switch {
	case c.IsTrigger():
		return KindTrigger
	case b.Type() != dynamics.Dynamic:
		return KindStatic
	case b.IsSleeping():
		return KindSleeping
	}
	return KindDynamic
}

func (f *Frame) add(a, b mgl64.Vec3, k Kind) {
	f.Segments = append(f.Segments, Segment{A: a, B: b, Kind: k})
}

func (f *Frame) cross(p mgl64.Vec3, r float64) {
	for i := 0; i < 3; i++ {
		var d mgl64.Vec3
		d[i] = r
		f.add(p.Sub(d), p.Add(d), KindContact)
	}
}

func (f *Frame) ring(center, u, v mgl64.Vec3, r float64, k Kind) {
	prev := center.Add(u.Mul(r))
	for i := 1; i <= ringSegments; i++ {
		a := 2 * math.Pi * float64(i) / ringSegments
		p := center.Add(u.Mul(r * math.Cos(a))).Add(v.Mul(r * math.Sin(a)))
		f.add(prev, p, k)
		prev = p
	}
}

func (f *Frame) outline(c *dynamics.Collider, k Kind) {
	xf := c.WorldTransform()
	ax, ay, az := xf.Rotate(mgl64.Vec3{1, 0, 0}), xf.Rotate(mgl64.Vec3{0, 1, 0}), xf.Rotate(mgl64.Vec3{0, 0, 1})

	switch s := c.Shape().(type) {
	case *shape.Sphere:
		f.ring(xf.Position, ax, ay, s.Radius, k)
		f.ring(xf.Position, ay, az, s.Radius, k)
		f.ring(xf.Position, az, ax, s.Radius, k)
	case *shape.Capsule:
		top := xf.Apply(mgl64.Vec3{0, s.HalfHeight, 0})
		bottom := xf.Apply(mgl64.Vec3{0, -s.HalfHeight, 0})
		f.ring(top, az, ax, s.Radius, k)
		f.ring(bottom, az, ax, s.Radius, k)
		for _, d := range []mgl64.Vec3{ax, ax.Mul(-1), az, az.Mul(-1)} {
			f.add(top.Add(d.Mul(s.Radius)), bottom.Add(d.Mul(s.Radius)), k)
		}
		f.add(top, top.Add(ay.Mul(s.Radius)), k)
		f.add(bottom, bottom.Sub(ay.Mul(s.Radius)), k)
	case *shape.Box:
		h := s.HalfExtents
		var corners [8]mgl64.Vec3
		for i := range corners {
			p := h
			for axis := 0; axis < 3; axis++ {
				if i&(1<<axis) == 0 {
					p[axis] = -p[axis]
				}
			}
			corners[i] = xf.Apply(p)
		}
		for i := range corners {
			for axis := 0; axis < 3; axis++ {
				if j := i | 1<<axis; j != i {
					f.add(corners[i], corners[j], k)
				}
			}
		}
	case *shape.ConvexHull:
		s.Edges(func(a, b mgl64.Vec3) { f.add(xf.Apply(a), xf.Apply(b), k) })
	case *shape.TriangleMesh:
		for i := range s.Indices {
			f.triangle(s.Triangle(i).Transformed(xf), k)
		}
	case *shape.HeightField:
		for r := 0; r < s.Rows; r++ {
			for col := 0; col < s.Cols; col++ {
				p := xf.Apply(s.Vertex(r, col))
				if col+1 < s.Cols {
					f.add(p, xf.Apply(s.Vertex(r, col+1)), k)
				}
				if r+1 < s.Rows {
					f.add(p, xf.Apply(s.Vertex(r+1, col)), k)
				}
			}
		}
	case shape.Triangle:
		f.triangle(s.Transformed(xf), k)
	case *shape.Triangle:
		f.triangle(s.Transformed(xf), k)
	}
}

func (f *Frame) triangle(t shape.Triangle, k Kind) {
	f.add(t.A, t.B, k)
	f.add(t.B, t.C, k)
	f.add(t.C, t.A, k)
}

// Line is a projected segment in surface coordinates.
type Line struct {
	X1, Y1, X2, Y2 float64
	Depth          float64
	Kind           Kind
}

// Project maps the frame onto a w by h surface, farthest lines first.
// Segments with an end behind the camera or far off screen are dropped.
func (f *Frame) Project(cam *Camera, w, h float64) []Line {
	q := cam.rotation()
	limit := 4 * math.Max(w, h)
	out := make([]Line, 0, len(f.Segments))
	for _, s := range f.Segments {
		x1, y1, d1, ok1 := cam.project(q, s.A, w, h)
		x2, y2, d2, ok2 := cam.project(q, s.B, w, h)
		if !ok1 || !ok2 {
			continue
		}
		if math.Abs(x1) > limit || math.Abs(y1) > limit || math.Abs(x2) > limit || math.Abs(y2) > limit {
			continue
		}
		out = append(out, Line{X1: x1, Y1: y1, X2: x2, Y2: y2, Depth: (d1 + d2) / 2, Kind: s.Kind})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Depth > out[j].Depth })
	return out
}

// Render draws the frame onto the canvas.
func Render(c *Canvas, f *Frame, cam *Camera) {
	if c == nil || f == nil || cam == nil {
		return
	}
	w, h := c.Size()
	for _, l := range f.Project(cam, float64(w), float64(h)) {
		c.Pen = l.Kind
		c.Line(int(math.Round(l.X1)), int(math.Round(l.Y1)), int(math.Round(l.X2)), int(math.Round(l.Y2)))
	}
}
