package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max mgl64.Vec3
}

// NewAABB returns the box spanned by two corners in any order.
func NewAABB(a, b mgl64.Vec3) AABB {
	return AABB{Min: Min(a, b), Max: Max(a, b)}
}

// FromCenter returns the box with the given center and half extents.
func FromCenter(c, half mgl64.Vec3) AABB {
	return AABB{Min: c.Sub(half), Max: c.Add(half)}
}

// IsValid reports whether Min <= Max on every axis and all values are finite.
func (b AABB) IsValid() bool {
	if !IsFinite(b.Min) || !IsFinite(b.Max) {
		return false
	}
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1] && b.Min[2] <= b.Max[2]
}

// Overlaps reports whether the boxes intersect. Touching counts.
func (b AABB) Overlaps(o AABB) bool {
	for i := 0; i < 3; i++ {
		if b.Max[i] < o.Min[i] || o.Max[i] < b.Min[i] {
			return false
		}
	}
	return true
}

// Contains reports whether o lies inside b.
func (b AABB) Contains(o AABB) bool {
	for i := 0; i < 3; i++ {
		if o.Min[i] < b.Min[i] || o.Max[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether p lies inside b.
func (b AABB) ContainsPoint(p mgl64.Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Union returns the smallest box containing both boxes.
func (b AABB) Union(o AABB) AABB {
	return AABB{Min: Min(b.Min, o.Min), Max: Max(b.Max, o.Max)}
}

// Center returns the box center.
func (b AABB) Center() mgl64.Vec3 { return b.Min.Add(b.Max).Mul(0.5) }

// Extents returns the half extents.
func (b AABB) Extents() mgl64.Vec3 { return b.Max.Sub(b.Min).Mul(0.5) }

// SurfaceArea returns the area of the box surface.
func (b AABB) SurfaceArea() float64 {
	d := b.Max.Sub(b.Min)
	return 2 * (d[0]*d[1] + d[1]*d[2] + d[2]*d[0])
}

// Expand grows the box by r on every side.
func (b AABB) Expand(r float64) AABB {
	m := mgl64.Vec3{r, r, r}
	return AABB{Min: b.Min.Sub(m), Max: b.Max.Add(m)}
}

// Sweep extends the box along displacement d.
func (b AABB) Sweep(d mgl64.Vec3) AABB {
	out := b
	for i := 0; i < 3; i++ {
		if d[i] < 0 {
			out.Min[i] += d[i]
		} else {
			out.Max[i] += d[i]
		}
	}
	return out
}

// Transformed returns the world box of a local box under t.
func (b AABB) Transformed(t Transform) AABB {
	c := t.Apply(b.Center())
	r := t.RotationMatrix()
	e := b.Extents()
	var half mgl64.Vec3
	for i := 0; i < 3; i++ {
		half[i] = math.Abs(r.At(i, 0))*e[0] + math.Abs(r.At(i, 1))*e[1] + math.Abs(r.At(i, 2))*e[2]
	}
	return FromCenter(c, half)
}

// RayCast intersects the segment origin + t*dir, t in [0, maxT], with the box
// using the slab method. It returns the entry parameter.
func (b AABB) RayCast(origin, dir mgl64.Vec3, maxT float64) (float64, bool) {
	tmin, tmax := 0.0, maxT
	for i := 0; i < 3; i++ {
		if math.Abs(dir[i]) < Epsilon {
			if origin[i] < b.Min[i] || origin[i] > b.Max[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / dir[i]
		t1 := (b.Min[i] - origin[i]) * inv
		t2 := (b.Max[i] - origin[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}
