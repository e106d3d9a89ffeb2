package mesh

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestDistanceConcentricSpheres(t *testing.T) {
	inner := SphereSource(Sphere{Radius: 1}, 24, 12)
	outer := SphereSource(Sphere{Radius: 3}, 48, 24)

	out, err := Distance(context.Background(), inner, outer, 3)
	require.NoError(t, err)
	require.True(t, out.HasScalars())
	assert.Nil(t, inner.Scalars, "source is not modified")
	assert.Len(t, out.Triangles, len(inner.Triangles))

	for i, d := range out.Scalars {
		// the faceted outer sphere sits slightly inside radius 3
		assert.InDelta(t, 2, d, 0.05, "point %d", i)
	}
}

func TestDistanceOnSurface(t *testing.T) {
	s := SphereSource(Sphere{Radius: 2}, 16, 8)
	out, err := Distance(context.Background(), s, s, 0)
	require.NoError(t, err)
	for _, d := range out.Scalars {
		assert.InDelta(t, 0, d, 1e-12)
	}
}

func TestDistanceToPlane(t *testing.T) {
	target := square()
	src := &Mesh{Points: []r3.Vec{
		{X: 0.5, Y: 0.25, Z: 2},   // above the interior
		{X: 3, Y: 0.5, Z: 0},      // beside an edge
		{X: -1, Y: -1, Z: 0},      // beyond a corner
		{X: 0.2, Y: 0.7, Z: -0.5}, // below
	}}
	out, err := Distance(context.Background(), src, target, 2)
	require.NoError(t, err)
	assert.InDelta(t, 2, out.Scalars[0], 1e-12)
	assert.InDelta(t, 2, out.Scalars[1], 1e-12)
	assert.InDelta(t, 1.4142135623730951, out.Scalars[2], 1e-12)
	assert.InDelta(t, 0.5, out.Scalars[3], 1e-12)
}

func TestDistanceCoarseTriangle(t *testing.T) {
	// one large triangle whose vertices are all far from the query points,
	// surrounded by small triangles whose vertices are closer
	target := &Mesh{Points: []r3.Vec{{X: -100, Y: -100}, {X: 100, Y: -100}, {Y: 100}}}
	target.Triangles = append(target.Triangles, [3]int{0, 1, 2})
	for _, c := range []r3.Vec{{X: 10, Z: 3}, {X: -10, Z: 3}, {Y: 10, Z: 3}, {Y: -10, Z: 3}} {
		n := len(target.Points)
		target.Points = append(target.Points, c, r3.Add(c, r3.Vec{X: 0.1}), r3.Add(c, r3.Vec{Y: 0.1}))
		target.Triangles = append(target.Triangles, [3]int{n, n + 1, n + 2})
	}

	src := &Mesh{Points: []r3.Vec{{Z: 1}, {X: 50, Y: -20, Z: -4}, {X: 10, Z: 3}}}
	out, err := Distance(context.Background(), src, target, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1, out.Scalars[0], 1e-12)
	assert.InDelta(t, 4, out.Scalars[1], 1e-12)
	assert.InDelta(t, 0, out.Scalars[2], 1e-12)
}

func TestDistanceErrors(t *testing.T) {
	_, err := Distance(context.Background(), square(), &Mesh{Points: []r3.Vec{{}}}, 1)
	assert.ErrorIs(t, err, ErrEmptyTarget)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Distance(ctx, SphereSource(Sphere{Radius: 1}, 8, 4), square(), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClosestOnTriangle(t *testing.T) {
	a, b, c := r3.Vec{}, r3.Vec{X: 2}, r3.Vec{Y: 2}
	tests := []struct {
		p, want r3.Vec
	}{
		{r3.Vec{X: 0.5, Y: 0.5, Z: 1}, r3.Vec{X: 0.5, Y: 0.5}},
		{r3.Vec{X: -1, Y: -1}, a},
		{r3.Vec{X: 3, Y: -1}, b},
		{r3.Vec{X: -1, Y: 3}, c},
		{r3.Vec{X: 1, Y: -2}, r3.Vec{X: 1}},
		{r3.Vec{X: -2, Y: 1}, r3.Vec{Y: 1}},
		{r3.Vec{X: 2, Y: 2}, r3.Vec{X: 1, Y: 1}},
	}
	for _, tt := range tests {
		got := closestOnTriangle(tt.p, a, b, c)
		assert.InDelta(t, 0, r3.Norm(r3.Sub(got, tt.want)), 1e-12, "closest to %v", tt.p)
	}
}

func BenchmarkDistance(b *testing.B) {
	src := SphereSource(Sphere{Radius: 1}, 64, 32)
	target := SphereSource(Sphere{Radius: 2}, 128, 64)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Distance(context.Background(), src, target, 0); err != nil {
			b.Fatal(err)
		}
	}
}
