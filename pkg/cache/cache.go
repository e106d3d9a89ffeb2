// Package cache keeps the distance-coloured bone mesh and its scalar range
// on disk between runs.
//
// The cache is two files in one directory: the mesh as legacy VTK polydata
// and the range as plain text "min max". Both are written once and read
// whenever both exist. There is no invalidation and no locking between
// processes; Clear removes the files.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"kneeviz/pkg/mesh"
)

// ErrMiss is returned by Load when either cache file is absent
var ErrMiss = errors.New("cache: miss")

// ComputeFunc produces the values to cache
type ComputeFunc func(ctx context.Context) (*mesh.Mesh, [2]float64, error)

// Cache is a mesh and scalar range pair stored under Dir
type Cache struct {
	Dir    string
	Name   string
	logger *zap.Logger
}

// New returns a cache storing <dir>/<name>.vtk and <dir>/<name>_range.txt
func New(dir, name string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{Dir: dir, Name: name, logger: logger}
}

// MeshPath returns the path of the cached mesh
func (c *Cache) MeshPath() string {
	return filepath.Join(c.Dir, c.Name+".vtk")
}

// RangePath returns the path of the cached scalar range
func (c *Cache) RangePath() string {
	return filepath.Join(c.Dir, c.Name+"_range.txt")
}

// Exists reports whether both cache files are present
func (c *Cache) Exists() bool {
	return fileExists(c.MeshPath()) && fileExists(c.RangePath())
}

// Load reads the cached mesh and range. It returns ErrMiss when either file
// is absent.
func (c *Cache) Load() (*mesh.Mesh, [2]float64, error) {
	if !c.Exists() {
		return nil, [2]float64{}, ErrMiss
	}

	f, err := os.Open(c.MeshPath())
	if err != nil {
		return nil, [2]float64{}, fmt.Errorf("cache: open mesh: %w", err)
	}
	defer f.Close()
	m, err := ReadPolyData(f)
	if err != nil {
		return nil, [2]float64{}, fmt.Errorf("cache: read %s: %w", c.MeshPath(), err)
	}

	data, err := os.ReadFile(c.RangePath())
	if err != nil {
		return nil, [2]float64{}, fmt.Errorf("cache: read range: %w", err)
	}
	r, err := parseRange(string(data))
	if err != nil {
		return nil, [2]float64{}, fmt.Errorf("cache: parse %s: %w", c.RangePath(), err)
	}
	return m, r, nil
}

// Store writes both cache files. Each file is written to a temporary name
// and renamed into place.
func (c *Cache) Store(m *mesh.Mesh, r [2]float64) error {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return fmt.Errorf("cache: create directory: %w", err)
	}
	err := writeAtomic(c.MeshPath(), func(w io.Writer) error {
		return WritePolyData(w, "kneeviz "+c.Name, m)
	})
	if err != nil {
		return fmt.Errorf("cache: write mesh: %w", err)
	}
	err = writeAtomic(c.RangePath(), func(w io.Writer) error {
		_, err := io.WriteString(w, formatRange(r))
		return err
	})
	if err != nil {
		return fmt.Errorf("cache: write range: %w", err)
	}
	return nil
}

// LoadOrCompute returns the cached values when both files exist. Otherwise
// it runs compute, stores the result and returns it; a failed store is
// logged and does not fail the call. hit reports whether the cache was used.
func (c *Cache) LoadOrCompute(ctx context.Context, compute ComputeFunc) (m *mesh.Mesh, r [2]float64, hit bool, err error) {
	m, r, err = c.Load()
	switch {
	case err == nil:
		c.logger.Info("cache hit", zap.String("mesh", c.MeshPath()), zap.Float64s("range", r[:]))
		return m, r, true, nil
	case errors.Is(err, ErrMiss):
		c.logger.Info("cache miss, computing", zap.String("dir", c.Dir), zap.String("name", c.Name))
	default:
		c.logger.Warn("cache unreadable, recomputing", zap.Error(err))
	}

	m, r, err = compute(ctx)
	if err != nil {
		return nil, [2]float64{}, false, err
	}
	if err := c.Store(m, r); err != nil {
		c.logger.Warn("cache store failed", zap.Error(err))
	}
	return m, r, false, nil
}

// Clear removes both cache files; absent files are not an error
func (c *Cache) Clear() error {
	var errs []error
	for _, p := range []string{c.MeshPath(), c.RangePath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func formatRange(r [2]float64) string {
	return strconv.FormatFloat(r[0], 'g', -1, 64) + " " + strconv.FormatFloat(r[1], 'g', -1, 64) + "\n"
}

func parseRange(s string) ([2]float64, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return [2]float64{}, fmt.Errorf("want 2 values, got %d", len(fields))
	}
	var r [2]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return [2]float64{}, err
		}
		r[i] = v
	}
	if r[0] > r[1] {
		return [2]float64{}, fmt.Errorf("min %g above max %g", r[0], r[1])
	}
	return r, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
