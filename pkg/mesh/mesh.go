// Package mesh provides the polygonal data model shared by the contouring,
// filtering, caching and rendering stages, together with the filters that
// operate on it.
package mesh

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoScalars is returned by filters that need per-point scalars on a mesh
// that carries none.
var ErrNoScalars = errors.New("mesh has no point scalars")

// Mesh is an indexed polygonal dataset. Triangles and Lines index into
// Points. Scalars and Normals are optional per-point attributes; when
// present their length equals len(Points).
type Mesh struct {
	Points    []r3.Vec
	Triangles [][3]int
	// Lines holds polylines; a two-point line is a single segment
	Lines   [][]int
	Scalars []float64
	Normals []r3.Vec
}

// NumPoints returns the number of points in the mesh
func (m *Mesh) NumPoints() int { return len(m.Points) }

// NumCells returns the number of triangle and line cells
func (m *Mesh) NumCells() int { return len(m.Triangles) + len(m.Lines) }

// HasScalars reports whether every point carries a scalar
func (m *Mesh) HasScalars() bool {
	return len(m.Points) > 0 && len(m.Scalars) == len(m.Points)
}

// HasNormals reports whether every point carries a normal
func (m *Mesh) HasNormals() bool {
	return len(m.Points) > 0 && len(m.Normals) == len(m.Points)
}

// Bounds returns the axis-aligned box enclosing all points. An empty mesh
// yields the zero box.
func (m *Mesh) Bounds() r3.Box {
	if len(m.Points) == 0 {
		return r3.Box{}
	}
	b := r3.Box{Min: m.Points[0], Max: m.Points[0]}
	for _, p := range m.Points[1:] {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Min.Z = math.Min(b.Min.Z, p.Z)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
		b.Max.Z = math.Max(b.Max.Z, p.Z)
	}
	return b
}

// ScalarRange returns the minimum and maximum point scalar
func (m *Mesh) ScalarRange() ([2]float64, error) {
	if !m.HasScalars() {
		return [2]float64{}, ErrNoScalars
	}
	return [2]float64{floats.Min(m.Scalars), floats.Max(m.Scalars)}, nil
}

// FaceNormal returns the unit normal of triangle i, or the zero vector for a
// degenerate triangle.
func (m *Mesh) FaceNormal(i int) r3.Vec {
	t := m.Triangles[i]
	n := r3.Cross(r3.Sub(m.Points[t[1]], m.Points[t[0]]), r3.Sub(m.Points[t[2]], m.Points[t[0]]))
	l := r3.Norm(n)
	if l == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/l, n)
}

// ComputeNormals sets per-point normals as the area-weighted average of the
// normals of the incident triangles.
func (m *Mesh) ComputeNormals() {
	normals := make([]r3.Vec, len(m.Points))
	for _, t := range m.Triangles {
		// unnormalised cross product weights by area
		n := r3.Cross(r3.Sub(m.Points[t[1]], m.Points[t[0]]), r3.Sub(m.Points[t[2]], m.Points[t[0]]))
		for _, idx := range t {
			normals[idx] = r3.Add(normals[idx], n)
		}
	}
	for i, n := range normals {
		l := r3.Norm(n)
		if l == 0 {
			normals[i] = r3.Vec{Z: 1}
			continue
		}
		normals[i] = r3.Scale(1/l, n)
	}
	m.Normals = normals
}

// Clone returns a deep copy of the mesh
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		Points:    append([]r3.Vec(nil), m.Points...),
		Triangles: append([][3]int(nil), m.Triangles...),
		Lines:     make([][]int, len(m.Lines)),
	}
	for i, l := range m.Lines {
		c.Lines[i] = append([]int(nil), l...)
	}
	if m.Scalars != nil {
		c.Scalars = append([]float64(nil), m.Scalars...)
	}
	if m.Normals != nil {
		c.Normals = append([]r3.Vec(nil), m.Normals...)
	}
	return c
}

// Append merges other into m. Attributes survive only when both meshes
// carry them.
func (m *Mesh) Append(other *Mesh) {
	keepScalars := (len(m.Points) == 0 || m.HasScalars()) && other.HasScalars()
	keepNormals := (len(m.Points) == 0 || m.HasNormals()) && other.HasNormals()

	offset := len(m.Points)
	m.Points = append(m.Points, other.Points...)
	for _, t := range other.Triangles {
		m.Triangles = append(m.Triangles, [3]int{t[0] + offset, t[1] + offset, t[2] + offset})
	}
	for _, l := range other.Lines {
		nl := make([]int, len(l))
		for i, idx := range l {
			nl[i] = idx + offset
		}
		m.Lines = append(m.Lines, nl)
	}

	if keepScalars {
		m.Scalars = append(m.Scalars, other.Scalars...)
	} else {
		m.Scalars = nil
	}
	if keepNormals {
		m.Normals = append(m.Normals, other.Normals...)
	} else {
		m.Normals = nil
	}
}

// Compact drops points that no cell references and renumbers the cells.
func (m *Mesh) Compact() {
	remap := make([]int, len(m.Points))
	for i := range remap {
		remap[i] = -1
	}
	for _, t := range m.Triangles {
		for _, idx := range t {
			remap[idx] = 0
		}
	}
	for _, l := range m.Lines {
		for _, idx := range l {
			remap[idx] = 0
		}
	}

	hasScalars := m.HasScalars()
	hasNormals := m.HasNormals()
	n := 0
	for i := range m.Points {
		if remap[i] < 0 {
			continue
		}
		remap[i] = n
		m.Points[n] = m.Points[i]
		if hasScalars {
			m.Scalars[n] = m.Scalars[i]
		}
		if hasNormals {
			m.Normals[n] = m.Normals[i]
		}
		n++
	}
	m.Points = m.Points[:n]
	if hasScalars {
		m.Scalars = m.Scalars[:n]
	}
	if hasNormals {
		m.Normals = m.Normals[:n]
	}

	for i, t := range m.Triangles {
		m.Triangles[i] = [3]int{remap[t[0]], remap[t[1]], remap[t[2]]}
	}
	for _, l := range m.Lines {
		for j, idx := range l {
			l[j] = remap[idx]
		}
	}
}

// edgeKey identifies an undirected edge between two point indices
type edgeKey struct{ a, b int }

func newEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// builder accumulates a new mesh whose points are derived from a source mesh,
// either copied or interpolated along source edges.
type builder struct {
	src    *Mesh
	out    *Mesh
	copied map[int]int
	split  map[edgeKey]int
}

func newBuilder(src *Mesh) *builder {
	out := &Mesh{}
	if src.HasScalars() {
		out.Scalars = []float64{}
	}
	if src.HasNormals() {
		out.Normals = []r3.Vec{}
	}
	return &builder{
		src:    src,
		out:    out,
		copied: make(map[int]int),
		split:  make(map[edgeKey]int),
	}
}

// point returns the output index of source point i, copying it on first use
func (b *builder) point(i int) int {
	if idx, ok := b.copied[i]; ok {
		return idx
	}
	idx := len(b.out.Points)
	b.out.Points = append(b.out.Points, b.src.Points[i])
	if b.out.Scalars != nil {
		b.out.Scalars = append(b.out.Scalars, b.src.Scalars[i])
	}
	if b.out.Normals != nil {
		b.out.Normals = append(b.out.Normals, b.src.Normals[i])
	}
	b.copied[i] = idx
	return idx
}

// interpolate returns the output index of the point on source edge (i, j)
// where the field crosses zero, given field values fi and fj.
func (b *builder) interpolate(i, j int, fi, fj float64) int {
	key := newEdgeKey(i, j)
	if idx, ok := b.split[key]; ok {
		return idx
	}
	t := 0.5
	if fj != fi {
		t = fi / (fi - fj)
	}
	pi, pj := b.src.Points[i], b.src.Points[j]
	idx := len(b.out.Points)
	b.out.Points = append(b.out.Points, lerp(pi, pj, t))
	if b.out.Scalars != nil {
		si, sj := b.src.Scalars[i], b.src.Scalars[j]
		b.out.Scalars = append(b.out.Scalars, si+t*(sj-si))
	}
	if b.out.Normals != nil {
		n := lerp(b.src.Normals[i], b.src.Normals[j], t)
		if l := r3.Norm(n); l > 0 {
			n = r3.Scale(1/l, n)
		}
		b.out.Normals = append(b.out.Normals, n)
	}
	b.split[key] = idx
	return idx
}

func lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}
