package cache

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"kneeviz/pkg/mesh"
)

func TestPolyDataRoundTrip(t *testing.T) {
	m := mesh.SphereSource(mesh.Sphere{Center: r3.Vec{X: 1.5}, Radius: 0.1}, 8, 5)
	m.Scalars = make([]float64, len(m.Points))
	for i := range m.Scalars {
		m.Scalars[i] = float64(i) / 3
	}
	m.Lines = [][]int{{0, 2, 3}, {1, 4}}

	var buf bytes.Buffer
	require.NoError(t, WritePolyData(&buf, "bone\ndistance", m))
	assert.True(t, strings.HasPrefix(buf.String(), "# vtk DataFile Version 3.0\nbone distance\nASCII\n"))

	got, err := ReadPolyData(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.Points, got.Points, "shortest float formatting is exact")
	assert.Equal(t, m.Triangles, got.Triangles)
	assert.Equal(t, m.Lines, got.Lines)
	assert.Equal(t, m.Scalars, got.Scalars)
	assert.Equal(t, m.Normals, got.Normals)
}

func TestPolyDataWithoutAttributes(t *testing.T) {
	m := &mesh.Mesh{
		Points:    []r3.Vec{{}, {X: 1}, {Y: 1}},
		Triangles: [][3]int{{0, 1, 2}},
	}
	var buf bytes.Buffer
	require.NoError(t, WritePolyData(&buf, "plain", m))
	assert.NotContains(t, buf.String(), "POINT_DATA")

	got, err := ReadPolyData(&buf)
	require.NoError(t, err)
	assert.Nil(t, got.Scalars)
	assert.Nil(t, got.Normals)
	assert.Equal(t, m.Triangles, got.Triangles)
}

func TestReadPolyDataFansPolygons(t *testing.T) {
	src := `# vtk DataFile Version 3.0
quad
ASCII
DATASET POLYDATA
POINTS 4 float
0 0 0 1 0 0 1 1 0 0 1 0
POLYGONS 1 5
4 0 1 2 3
`
	m, err := ReadPolyData(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, [][3]int{{0, 1, 2}, {0, 2, 3}}, m.Triangles)
}

func TestReadPolyDataErrors(t *testing.T) {
	header := "# vtk DataFile Version 3.0\nt\n"
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"binary", header + "BINARY\nDATASET POLYDATA\n"},
		{"grid", header + "ASCII\nDATASET STRUCTURED_POINTS\n"},
		{"truncated points", header + "ASCII\nDATASET POLYDATA\nPOINTS 2 double\n0 0 0 1\n"},
		{"bad index", header + "ASCII\nDATASET POLYDATA\nPOINTS 1 double\n0 0 0\nPOLYGONS 1 4\n3 0 1 2\n"},
		{"bad line index", header + "ASCII\nDATASET POLYDATA\nPOINTS 1 double\n0 0 0\nLINES 1 3\n2 0 5\n"},
		{"negative points", header + "ASCII\nDATASET POLYDATA\nPOINTS -1 double\n"},
		{"huge points", header + "ASCII\nDATASET POLYDATA\nPOINTS 99999999999 double\n0 0 0\n"},
		{"negative cells", header + "ASCII\nDATASET POLYDATA\nPOINTS 1 double\n0 0 0\nPOLYGONS -3 4\n"},
		{"negative cell size", header + "ASCII\nDATASET POLYDATA\nPOINTS 1 double\n0 0 0\nLINES 1 3\n-2 0 0\n"},
		{"huge cell count", header + "ASCII\nDATASET POLYDATA\nPOINTS 1 double\n0 0 0\nLINES 268435456 3\n2 0 0\n"},
		{"keyword", header + "ASCII\nDATASET POLYDATA\nVERTICES 0 0\n"},
		{"vector scalars", header + "ASCII\nDATASET POLYDATA\nPOINTS 1 double\n0 0 0\nPOINT_DATA 1\nSCALARS s double 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPolyData(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}
