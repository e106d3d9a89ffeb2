package mesh

import (
	"context"
	"errors"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrEmptyTarget is returned when the distance target has no triangles
var ErrEmptyTarget = errors.New("distance target has no triangles")

// centroid is the centre of a target triangle that satisfies kdtree.Comparable
type centroid struct {
	r3.Vec
	tri int
}

// Compare implements the kdtree.Comparable interface
func (p centroid) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(centroid)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p centroid) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p centroid) Distance(c kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(p.Vec, c.(centroid).Vec))
}

// centroids is a collection of centroid that satisfies kdtree.Interface
type centroids []centroid

func (p centroids) Index(i int) kdtree.Comparable         { return p[i] }
func (p centroids) Len() int                              { return len(p) }
func (p centroids) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p centroids) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(centroidPlane{centroids: p, Dim: d}, kdtree.MedianOfRandoms(centroidPlane{centroids: p, Dim: d}, 100))
}

// centroidPlane implements sort.Interface and kdtree.SortSlicer for centroids
type centroidPlane struct {
	centroids
	kdtree.Dim
}

func (p centroidPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.centroids[i].X < p.centroids[j].X
	case 1:
		return p.centroids[i].Y < p.centroids[j].Y
	case 2:
		return p.centroids[i].Z < p.centroids[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p centroidPlane) Slice(start, end int) kdtree.SortSlicer {
	return centroidPlane{centroids: p.centroids[start:end], Dim: p.Dim}
}

func (p centroidPlane) Swap(i, j int) {
	p.centroids[i], p.centroids[j] = p.centroids[j], p.centroids[i]
}

// triangleIndex finds the closest point on a triangle mesh. Every triangle
// lies inside the ball of radius reach around its centroid, so a triangle
// can only be closer than d when its centroid is within d+reach.
type triangleIndex struct {
	mesh   *Mesh
	tree   *kdtree.Tree
	radius []float64
	reach  float64
}

func newTriangleIndex(m *Mesh) *triangleIndex {
	ix := &triangleIndex{mesh: m, radius: make([]float64, len(m.Triangles))}
	cs := make(centroids, len(m.Triangles))
	for i, t := range m.Triangles {
		a, b, c := m.Points[t[0]], m.Points[t[1]], m.Points[t[2]]
		center := r3.Scale(1.0/3, r3.Add(a, r3.Add(b, c)))
		cs[i] = centroid{Vec: center, tri: i}
		r := math.Max(r3.Norm(r3.Sub(a, center)), math.Max(r3.Norm(r3.Sub(b, center)), r3.Norm(r3.Sub(c, center))))
		ix.radius[i] = r
		ix.reach = math.Max(ix.reach, r)
	}
	ix.tree = kdtree.New(cs, true)
	return ix
}

func (ix *triangleIndex) triangleDistance(p r3.Vec, ti int) float64 {
	t := ix.mesh.Triangles[ti]
	q := closestOnTriangle(p, ix.mesh.Points[t[0]], ix.mesh.Points[t[1]], ix.mesh.Points[t[2]])
	return r3.Norm(r3.Sub(p, q))
}

// distance returns the distance from p to the closest point of the mesh
func (ix *triangleIndex) distance(p r3.Vec) float64 {
	q := centroid{Vec: p}
	nearest, _ := ix.tree.Nearest(q)
	best := ix.triangleDistance(p, nearest.(centroid).tri)

	bound := best + ix.reach
	keeper := kdtree.NewDistKeeper(bound * bound)
	ix.tree.NearestSet(keeper, q)
	for _, item := range keeper.Heap {
		// skip the sentinel value
		if item.Comparable == nil {
			continue
		}
		c := item.Comparable.(centroid)
		if math.Sqrt(item.Dist)-ix.radius[c.tri] >= best {
			continue
		}
		best = math.Min(best, ix.triangleDistance(p, c.tri))
	}
	return best
}

// Distance returns a copy of src whose point scalars hold the unsigned
// distance from each point to the closest point on the surface of target.
// Work is split across workers goroutines; workers <= 0 uses every CPU.
func Distance(ctx context.Context, src, target *Mesh, workers int) (*Mesh, error) {
	if len(target.Triangles) == 0 {
		return nil, ErrEmptyTarget
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	index := newTriangleIndex(target)

	out := src.Clone()
	out.Scalars = make([]float64, len(src.Points))

	chunk := (len(src.Points) + workers - 1) / workers
	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(src.Points); start += chunk {
		end := min(start+chunk, len(src.Points))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if (i-start)%4096 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				out.Scalars[i] = index.distance(src.Points[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// closestOnTriangle returns the point of triangle abc closest to p
func closestOnTriangle(p, a, b, c r3.Vec) r3.Vec {
	ab := r3.Sub(b, a)
	ac := r3.Sub(c, a)
	ap := r3.Sub(p, a)
	d1 := r3.Dot(ab, ap)
	d2 := r3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := r3.Sub(p, b)
	d3 := r3.Dot(ab, bp)
	d4 := r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return r3.Add(a, r3.Scale(ratio(d1, d1-d3), ab))
	}

	cp := r3.Sub(p, c)
	d5 := r3.Dot(ab, cp)
	d6 := r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return r3.Add(a, r3.Scale(ratio(d2, d2-d6), ac))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		return r3.Add(b, r3.Scale(ratio(d4-d3, (d4-d3)+(d5-d6)), r3.Sub(c, b)))
	}

	denom := va + vb + vc
	if denom == 0 {
		return a
	}
	v := vb / denom
	w := vc / denom
	return r3.Add(a, r3.Add(r3.Scale(v, ab), r3.Scale(w, ac)))
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
