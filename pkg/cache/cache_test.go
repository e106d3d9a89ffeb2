package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/spatial/r3"

	"kneeviz/pkg/mesh"
)

func testMesh() *mesh.Mesh {
	return &mesh.Mesh{
		Points:    []r3.Vec{{}, {X: 1}, {Y: 1}},
		Triangles: [][3]int{{0, 1, 2}},
		Scalars:   []float64{0.25, 1, 4.5},
	}
}

// counter returns a ComputeFunc that counts its calls
func counter(calls *int, m *mesh.Mesh, r [2]float64) ComputeFunc {
	return func(context.Context) (*mesh.Mesh, [2]float64, error) {
		*calls++
		return m, r, nil
	}
}

func TestPaths(t *testing.T) {
	c := New("out", "bone_distance", nil)
	assert.Equal(t, filepath.Join("out", "bone_distance.vtk"), c.MeshPath())
	assert.Equal(t, filepath.Join("out", "bone_distance_range.txt"), c.RangePath())
}

func TestLoadMiss(t *testing.T) {
	c := New(t.TempDir(), "d", nil)
	assert.False(t, c.Exists())
	_, _, err := c.Load()
	assert.ErrorIs(t, err, ErrMiss)

	// one file alone is still a miss
	require.NoError(t, os.WriteFile(c.RangePath(), []byte("0 1"), 0644))
	_, _, err = c.Load()
	assert.ErrorIs(t, err, ErrMiss)
}

func TestStoreLoad(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "nested", "dir"), "d", nil)
	m := testMesh()
	require.NoError(t, c.Store(m, [2]float64{0.25, 4.5}))
	assert.True(t, c.Exists())

	data, err := os.ReadFile(c.RangePath())
	require.NoError(t, err)
	assert.Equal(t, "0.25 4.5\n", string(data))

	got, r, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, [2]float64{0.25, 4.5}, r)
	assert.Equal(t, m.Points, got.Points)
	assert.Equal(t, m.Scalars, got.Scalars)

	entries, err := os.ReadDir(c.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files left behind")
}

func TestLoadOrCompute(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	compute := counter(&calls, testMesh(), [2]float64{0.25, 4.5})

	m, r, hit, err := New(dir, "d", nil).LoadOrCompute(context.Background(), compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, calls)
	assert.Equal(t, [2]float64{0.25, 4.5}, r)
	require.NotNil(t, m)

	// a fresh cache on the same directory reads the files
	m2, r2, hit, err := New(dir, "d", nil).LoadOrCompute(context.Background(), compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, calls)
	assert.Equal(t, r, r2)
	assert.Equal(t, m.Scalars, m2.Scalars)
}

func TestLoadOrComputeError(t *testing.T) {
	c := New(t.TempDir(), "d", nil)
	boom := errors.New("boom")
	_, _, _, err := c.LoadOrCompute(context.Background(), func(context.Context) (*mesh.Mesh, [2]float64, error) {
		return nil, [2]float64{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, c.Exists(), "failures are not cached")
}

func TestLoadOrComputeStoreFailure(t *testing.T) {
	// the cache directory path is taken by a regular file
	blocker := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	core, logs := observer.New(zapcore.WarnLevel)
	c := New(blocker, "d", zap.New(core))

	calls := 0
	m, r, hit, err := c.LoadOrCompute(context.Background(), counter(&calls, testMesh(), [2]float64{1, 2}))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NotNil(t, m)
	assert.Equal(t, [2]float64{1, 2}, r)
	assert.Equal(t, 1, logs.FilterMessage("cache store failed").Len())
}

func TestLoadOrComputeCorruptRange(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, "d", nil)
	require.NoError(t, c.Store(testMesh(), [2]float64{0.25, 4.5}))
	require.NoError(t, os.WriteFile(c.RangePath(), []byte("4.5 0.25\n"), 0644))

	_, _, err := c.Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)

	core, logs := observer.New(zapcore.InfoLevel)
	c = New(dir, "d", zap.New(core))
	calls := 0
	_, r, hit, err := c.LoadOrCompute(context.Background(), counter(&calls, testMesh(), [2]float64{0.25, 4.5}))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, calls)
	assert.Equal(t, [2]float64{0.25, 4.5}, r)
	assert.Equal(t, 1, logs.FilterMessage("cache unreadable, recomputing").Len())

	// the rewrite repairs the cache
	_, r, err = c.Load()
	require.NoError(t, err)
	assert.Equal(t, [2]float64{0.25, 4.5}, r)
}

func TestLoadOrComputeCorruptMesh(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, "d", nil)
	require.NoError(t, c.Store(testMesh(), [2]float64{0.25, 4.5}))
	corrupt := "# vtk DataFile Version 3.0\nd\nASCII\nDATASET POLYDATA\nPOINTS -1 double\n"
	require.NoError(t, os.WriteFile(c.MeshPath(), []byte(corrupt), 0644))

	core, logs := observer.New(zapcore.InfoLevel)
	c = New(dir, "d", zap.New(core))
	calls := 0
	m, _, hit, err := c.LoadOrCompute(context.Background(), counter(&calls, testMesh(), [2]float64{0.25, 4.5}))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, calls)
	assert.Len(t, m.Points, 3)
	assert.Equal(t, 1, logs.FilterMessage("cache unreadable, recomputing").Len())

	m, _, err = c.Load()
	require.NoError(t, err)
	assert.Len(t, m.Triangles, 1)
}

func TestParseRange(t *testing.T) {
	r, err := parseRange("  -1.5\t3e2 \n")
	require.NoError(t, err)
	assert.Equal(t, [2]float64{-1.5, 300}, r)

	for _, bad := range []string{"", "1", "1 2 3", "a b", "2 1"} {
		_, err := parseRange(bad)
		assert.Error(t, err, "%q", bad)
	}
}

func TestClear(t *testing.T) {
	c := New(t.TempDir(), "d", nil)
	assert.NoError(t, c.Clear(), "clearing an empty cache")

	require.NoError(t, c.Store(testMesh(), [2]float64{0, 1}))
	require.NoError(t, c.Clear())
	assert.False(t, c.Exists())
	assert.NoFileExists(t, c.MeshPath())
	assert.NoFileExists(t, c.RangePath())
}
