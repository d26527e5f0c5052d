package shape

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/broadphase"
	"github.com/san-kum/rigidsim/internal/geom"
)

// TriangleMesh is a static triangle soup with its own bounding volume tree.
type TriangleMesh struct {
	Vertices []mgl64.Vec3
	Indices  [][3]int
	tree     *broadphase.Tree
	bounds   geom.AABB
}

// NewTriangleMesh builds a mesh from vertices and counter-clockwise index
// triples. Degenerate triangles are rejected.
func NewTriangleMesh(vertices []mgl64.Vec3, indices [][3]int) (*TriangleMesh, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: triangle mesh has no triangles", ErrInvalidShape)
	}
	m := &TriangleMesh{Vertices: vertices, Indices: indices, tree: broadphase.NewTree(0, 0)}
	for i, tri := range indices {
		for _, v := range tri {
			if v < 0 || v >= len(vertices) {
				return nil, fmt.Errorf("%w: triangle %d references vertex %d of %d", ErrInvalidShape, i, v, len(vertices))
			}
		}
		t := m.Triangle(i)
		if t.B.Sub(t.A).Cross(t.C.Sub(t.A)).Len() < geom.Epsilon {
			return nil, fmt.Errorf("%w: triangle %d is degenerate", ErrInvalidShape, i)
		}
		b := t.LocalBounds()
		if i == 0 {
			m.bounds = b
		} else {
			m.bounds = m.bounds.Union(b)
		}
		m.tree.CreateProxy(b, i)
	}
	return m, nil
}

func (m *TriangleMesh) Kind() Kind             { return KindTriangleMesh }
func (m *TriangleMesh) LocalBounds() geom.AABB { return m.bounds }

// Triangle returns triangle i in local space.
func (m *TriangleMesh) Triangle(i int) Triangle {
	idx := m.Indices[i]
	return Triangle{A: m.Vertices[idx[0]], B: m.Vertices[idx[1]], C: m.Vertices[idx[2]]}
}

func (m *TriangleMesh) Triangles(bounds geom.AABB, fn func(Triangle) bool) {
	m.tree.Query(bounds, func(proxy int) bool {
		return fn(m.Triangle(m.tree.UserData(proxy)))
	})
}

// HeightField is a regular grid of heights on the local XZ plane, centered
// on the origin, with Y up.
type HeightField struct {
	Rows, Cols int
	Heights    []float64 // row-major, Rows*Cols
	CellSize   float64
	bounds     geom.AABB
}

// NewHeightField builds a height field from rows of samples.
func NewHeightField(heights [][]float64, cellSize float64) (*HeightField, error) {
	if !positive(cellSize) {
		return nil, fmt.Errorf("%w: height field cell size must be positive, got %f", ErrInvalidShape, cellSize)
	}
	rows := len(heights)
	if rows < 2 {
		return nil, fmt.Errorf("%w: height field needs at least 2 rows, got %d", ErrInvalidShape, rows)
	}
	cols := len(heights[0])
	if cols < 2 {
		return nil, fmt.Errorf("%w: height field needs at least 2 columns, got %d", ErrInvalidShape, cols)
	}
	h := &HeightField{Rows: rows, Cols: cols, CellSize: cellSize, Heights: make([]float64, 0, rows*cols)}
	lo, hi := math.Inf(1), math.Inf(-1)
	for r, row := range heights {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: height field row %d has %d samples, want %d", ErrInvalidShape, r, len(row), cols)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite height in row %d", ErrInvalidShape, r)
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
			h.Heights = append(h.Heights, v)
		}
	}
	hx := float64(cols-1) * cellSize / 2
	hz := float64(rows-1) * cellSize / 2
	h.bounds = geom.AABB{Min: mgl64.Vec3{-hx, lo, -hz}, Max: mgl64.Vec3{hx, hi, hz}}
	return h, nil
}

func (h *HeightField) Kind() Kind             { return KindHeightField }
func (h *HeightField) LocalBounds() geom.AABB { return h.bounds }

// Vertex returns the grid sample at row r, column c in local space.
func (h *HeightField) Vertex(r, c int) mgl64.Vec3 {
	return mgl64.Vec3{
		h.bounds.Min[0] + float64(c)*h.CellSize,
		h.Heights[r*h.Cols+c],
		h.bounds.Min[2] + float64(r)*h.CellSize,
	}
}

// HeightAt samples the surface by bilinear interpolation on the two cell
// triangles. Points outside the grid return false.
func (h *HeightField) HeightAt(x, z float64) (float64, bool) {
	fx := (x - h.bounds.Min[0]) / h.CellSize
	fz := (z - h.bounds.Min[2]) / h.CellSize
	if fx < 0 || fz < 0 || fx > float64(h.Cols-1) || fz > float64(h.Rows-1) {
		return 0, false
	}
	c := min(int(fx), h.Cols-2)
	r := min(int(fz), h.Rows-2)
	u, v := fx-float64(c), fz-float64(r)
	h00 := h.Heights[r*h.Cols+c]
	h10 := h.Heights[r*h.Cols+c+1]
	h01 := h.Heights[(r+1)*h.Cols+c]
	h11 := h.Heights[(r+1)*h.Cols+c+1]
	if u+v <= 1 {
		return h00 + u*(h10-h00) + v*(h01-h00), true
	}
	return h11 + (1-u)*(h01-h11) + (1-v)*(h10-h11), true
}

func (h *HeightField) Triangles(bounds geom.AABB, fn func(Triangle) bool) {
	if !bounds.Overlaps(h.bounds) {
		return
	}
	c0 := clampCell(int(math.Floor((bounds.Min[0]-h.bounds.Min[0])/h.CellSize)), h.Cols-1)
	c1 := clampCell(int(math.Floor((bounds.Max[0]-h.bounds.Min[0])/h.CellSize)), h.Cols-1)
	r0 := clampCell(int(math.Floor((bounds.Min[2]-h.bounds.Min[2])/h.CellSize)), h.Rows-1)
	r1 := clampCell(int(math.Floor((bounds.Max[2]-h.bounds.Min[2])/h.CellSize)), h.Rows-1)
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			p00, p10 := h.Vertex(r, c), h.Vertex(r, c+1)
			p01, p11 := h.Vertex(r+1, c), h.Vertex(r+1, c+1)
			// both triangles wound so the normal points up (+Y)
			if !fn(Triangle{A: p00, B: p01, C: p10}) {
				return
			}
			if !fn(Triangle{A: p10, B: p01, C: p11}) {
				return
			}
		}
	}
}

func clampCell(i, cells int) int {
	if i < 0 {
		return 0
	}
	if i > cells-1 {
		return cells - 1
	}
	return i
}
