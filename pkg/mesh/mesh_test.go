package mesh

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// square returns the unit square in the z=0 plane as two triangles facing +z
func square() *Mesh {
	return &Mesh{
		Points: []r3.Vec{
			{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
		},
		Triangles: [][3]int{{0, 1, 2}, {0, 2, 3}},
	}
}

// area sums the triangle areas of m
func area(m *Mesh) float64 {
	total := 0.0
	for _, t := range m.Triangles {
		n := r3.Cross(r3.Sub(m.Points[t[1]], m.Points[t[0]]), r3.Sub(m.Points[t[2]], m.Points[t[0]]))
		total += r3.Norm(n) / 2
	}
	return total
}

func TestBounds(t *testing.T) {
	m := &Mesh{Points: []r3.Vec{{X: 1, Y: -2, Z: 3}, {X: -1, Y: 5, Z: 0}}}
	assert.Equal(t, r3.Box{
		Min: r3.Vec{X: -1, Y: -2, Z: 0},
		Max: r3.Vec{X: 1, Y: 5, Z: 3},
	}, m.Bounds())
	assert.Equal(t, r3.Box{}, (&Mesh{}).Bounds())
}

func TestScalarRange(t *testing.T) {
	m := square()
	_, err := m.ScalarRange()
	assert.ErrorIs(t, err, ErrNoScalars)

	m.Scalars = []float64{3, -1, 7, 2}
	r, err := m.ScalarRange()
	require.NoError(t, err)
	assert.Equal(t, [2]float64{-1, 7}, r)

	m.Scalars = m.Scalars[:2]
	assert.False(t, m.HasScalars(), "scalars must cover every point")
}

func TestComputeNormals(t *testing.T) {
	m := square()
	m.Points = append(m.Points, r3.Vec{X: 5, Y: 5, Z: 5})
	m.ComputeNormals()
	require.True(t, m.HasNormals())
	for i := 0; i < 4; i++ {
		assert.InDelta(t, 1, m.Normals[i].Z, 1e-12)
	}
	// unreferenced points get a default unit normal
	assert.Equal(t, r3.Vec{Z: 1}, m.Normals[4])

	assert.Equal(t, r3.Vec{Z: 1}, m.FaceNormal(0))
	degenerate := &Mesh{Points: []r3.Vec{{}, {X: 1}, {X: 2}}, Triangles: [][3]int{{0, 1, 2}}}
	assert.Equal(t, r3.Vec{}, degenerate.FaceNormal(0))
}

func TestCloneIsDeep(t *testing.T) {
	m := square()
	m.Lines = [][]int{{0, 1}}
	m.Scalars = []float64{0, 1, 2, 3}
	c := m.Clone()

	c.Points[0].X = 9
	c.Lines[0][0] = 3
	c.Scalars[0] = 9
	c.Triangles[0][0] = 3

	assert.Equal(t, 0.0, m.Points[0].X)
	assert.Equal(t, 0, m.Lines[0][0])
	assert.Equal(t, 0.0, m.Scalars[0])
	assert.Equal(t, 0, m.Triangles[0][0])
	assert.Nil(t, c.Normals)
}

func TestAppend(t *testing.T) {
	a := square()
	a.Scalars = []float64{1, 1, 1, 1}
	b := square()
	b.Scalars = []float64{2, 2, 2, 2}
	b.Lines = [][]int{{0, 2}}

	a.Append(b)
	assert.Len(t, a.Points, 8)
	assert.Equal(t, [3]int{4, 5, 6}, a.Triangles[2])
	assert.Equal(t, [][]int{{4, 6}}, a.Lines)
	assert.Equal(t, []float64{1, 1, 1, 1, 2, 2, 2, 2}, a.Scalars)

	// attributes missing on either side are dropped
	a.Append(square())
	assert.Nil(t, a.Scalars)
	assert.Len(t, a.Points, 12)

	empty := &Mesh{}
	empty.Append(b)
	assert.True(t, empty.HasScalars())
}

func TestCompact(t *testing.T) {
	m := &Mesh{
		Points:    []r3.Vec{{X: 0}, {X: 1}, {X: 2}, {X: 3}, {X: 4}, {X: 5}},
		Triangles: [][3]int{{1, 3, 5}},
		Lines:     [][]int{{5, 4}},
		Scalars:   []float64{0, 10, 20, 30, 40, 50},
	}
	m.Compact()
	assert.Equal(t, []r3.Vec{{X: 1}, {X: 3}, {X: 4}, {X: 5}}, m.Points)
	assert.Equal(t, []float64{10, 30, 40, 50}, m.Scalars)
	assert.Equal(t, [][3]int{{0, 1, 3}}, m.Triangles)
	assert.Equal(t, [][]int{{3, 2}}, m.Lines)
	assert.Equal(t, 2, m.NumCells())
}

func TestOutline(t *testing.T) {
	box := r3.Box{Min: r3.Vec{X: -1, Y: 0, Z: 2}, Max: r3.Vec{X: 1, Y: 3, Z: 4}}
	m := Outline(box)
	assert.Len(t, m.Points, 8)
	assert.Len(t, m.Lines, 12)
	assert.Empty(t, m.Triangles)
	assert.Equal(t, box, m.Bounds())

	// every edge is axis aligned and every corner has three edges
	degree := make(map[int]int)
	total := 0.0
	for _, l := range m.Lines {
		require.Len(t, l, 2)
		d := r3.Sub(m.Points[l[1]], m.Points[l[0]])
		nonzero := 0
		for _, c := range []float64{d.X, d.Y, d.Z} {
			if c != 0 {
				nonzero++
			}
		}
		assert.Equal(t, 1, nonzero)
		total += r3.Norm(d)
		degree[l[0]]++
		degree[l[1]]++
	}
	assert.InDelta(t, 4*(2+3+2), total, 1e-12)
	for i := 0; i < 8; i++ {
		assert.Equal(t, 3, degree[i])
	}
}

func TestSphereSource(t *testing.T) {
	s := Sphere{Center: r3.Vec{X: 1, Y: 2, Z: 3}, Radius: 2}
	m := SphereSource(s, 24, 12)
	require.True(t, m.HasNormals())

	for i, p := range m.Points {
		assert.InDelta(t, s.Radius, r3.Norm(r3.Sub(p, s.Center)), 1e-9)
		assert.InDelta(t, 1, r3.Dot(m.Normals[i], r3.Unit(r3.Sub(p, s.Center))), 1e-9)
	}
	for i, tri := range m.Triangles {
		c := r3.Scale(1.0/3, r3.Add(m.Points[tri[0]], r3.Add(m.Points[tri[1]], m.Points[tri[2]])))
		assert.Greater(t, r3.Dot(m.FaceNormal(i), r3.Sub(c, s.Center)), 0.0, "triangle %d faces inward", i)
	}
	assert.InDelta(t, 4*math.Pi*s.Radius*s.Radius, area(m), 0.1*4*math.Pi*s.Radius*s.Radius)
	assert.Len(t, m.Triangles, 2*24*(12-1))
}

func TestImplicitFunctions(t *testing.T) {
	s := Sphere{Center: r3.Vec{X: 1}, Radius: 2}
	assert.Equal(t, -4.0, s.Evaluate(r3.Vec{X: 1}))
	assert.Equal(t, 0.0, s.Evaluate(r3.Vec{X: 3}))
	assert.Greater(t, s.Evaluate(r3.Vec{X: 5}), 0.0)

	p := Plane{Origin: r3.Vec{Z: 1}, Normal: r3.Vec{Z: 2}}
	assert.Equal(t, 4.0, p.Evaluate(r3.Vec{X: 7, Z: 3}))
	assert.Equal(t, -2.0, p.Evaluate(r3.Vec{}))
}
