// Package contour extracts iso-surfaces from volumes.
//
// Every grid cell is split into six tetrahedra around its main diagonal and
// each tetrahedron is contoured independently. The split is the same in
// every cell, so the diagonals on shared faces agree and the surface has no
// cracks. Vertices are shared through the grid edge they lie on.
package contour

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"kneeviz/internal/models"
	"kneeviz/pkg/mesh"
)

// cellCorners are the offsets of the eight corners of a grid cell
var cellCorners = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// cellTetrahedra splits a cell into six tetrahedra sharing the 0-6 diagonal
var cellTetrahedra = [6][4]int{
	{0, 5, 1, 6},
	{0, 1, 2, 6},
	{0, 2, 3, 6},
	{0, 3, 7, 6},
	{0, 7, 4, 6},
	{0, 4, 5, 6},
}

// gridEdge identifies the grid edge between two point indices
type gridEdge struct{ a, b int }

func newGridEdge(a, b int) gridEdge {
	if a > b {
		a, b = b, a
	}
	return gridEdge{a, b}
}

// Extractor contours a volume at a single iso-value
type Extractor struct {
	volume  *models.Volume
	iso     float64
	scale   r3.Vec
	workers int
}

// New creates an extractor for the surface where vol equals iso
func New(vol *models.Volume, iso float64) *Extractor {
	return &Extractor{
		volume:  vol,
		iso:     iso,
		scale:   r3.Vec{X: 1, Y: 1, Z: 1},
		workers: runtime.NumCPU(),
	}
}

// SetScale multiplies the volume spacing along each axis
func (e *Extractor) SetScale(x, y, z float64) {
	e.scale = r3.Vec{X: x, Y: y, Z: z}
}

// SetWorkers sets how many slabs are contoured concurrently
func (e *Extractor) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	e.workers = n
}

// Extract runs the contouring and returns a triangle mesh with point normals.
// Triangles are wound so their normals point towards decreasing values.
func (e *Extractor) Extract(ctx context.Context) (*mesh.Mesh, error) {
	vol := e.volume
	if vol == nil || vol.Empty() {
		return nil, fmt.Errorf("contour: volume too small to contour")
	}
	if len(vol.Data) != vol.Width*vol.Height*vol.Depth {
		return nil, fmt.Errorf("contour: volume has %d values, want %d", len(vol.Data), vol.Width*vol.Height*vol.Depth)
	}

	layers := vol.Depth - 1
	workers := min(e.workers, layers)
	per := (layers + workers - 1) / workers

	var slabs []*slab
	for z0 := 0; z0 < layers; z0 += per {
		slabs = append(slabs, &slab{z0: z0, z1: min(z0+per, layers)})
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range slabs {
		g.Go(func() error {
			return e.contourSlab(ctx, s)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := merge(slabs)
	out.ComputeNormals()
	return out, nil
}

// slab holds the partial surface of the cell layers [z0, z1)
type slab struct {
	z0, z1    int
	points    []r3.Vec
	keys      []gridEdge
	triangles [][3]int
}

func (e *Extractor) position(x, y, z int) r3.Vec {
	p := e.volume.Point(float64(x), float64(y), float64(z))
	o := e.volume.Origin
	return r3.Vec{
		X: o.X + (p.X-o.X)*e.scale.X,
		Y: o.Y + (p.Y-o.Y)*e.scale.Y,
		Z: o.Z + (p.Z-o.Z)*e.scale.Z,
	}
}

func (e *Extractor) contourSlab(ctx context.Context, s *slab) error {
	vol := e.volume
	lookup := make(map[gridEdge]int)

	var (
		idx    [4]int
		pos    [4]r3.Vec
		val    [4]float64
		inside [4]bool
	)

	vertexOn := func(i, j int) int {
		key := newGridEdge(idx[i], idx[j])
		if v, ok := lookup[key]; ok {
			return v
		}
		t := (e.iso - val[i]) / (val[j] - val[i])
		p := r3.Add(pos[i], r3.Scale(t, r3.Sub(pos[j], pos[i])))
		v := len(s.points)
		s.points = append(s.points, p)
		s.keys = append(s.keys, key)
		lookup[key] = v
		return v
	}
	emit := func(a, b, c int, from, to r3.Vec) {
		n := r3.Cross(r3.Sub(s.points[b], s.points[a]), r3.Sub(s.points[c], s.points[a]))
		if r3.Dot(n, r3.Sub(to, from)) < 0 {
			b, c = c, b
		}
		s.triangles = append(s.triangles, [3]int{a, b, c})
	}

	for z := s.z0; z < s.z1; z++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for y := 0; y < vol.Height-1; y++ {
			for x := 0; x < vol.Width-1; x++ {
				var cornerIdx [8]int
				var cornerVal [8]float64
				above, below := false, false
				for c, off := range cellCorners {
					cornerIdx[c] = vol.Index(x+off[0], y+off[1], z+off[2])
					cornerVal[c] = vol.Data[cornerIdx[c]]
					if cornerVal[c] >= e.iso {
						above = true
					} else {
						below = true
					}
				}
				if !above || !below {
					continue
				}

				for _, tet := range cellTetrahedra {
					n := 0
					for k, c := range tet {
						off := cellCorners[c]
						idx[k] = cornerIdx[c]
						val[k] = cornerVal[c]
						pos[k] = e.position(x+off[0], y+off[1], z+off[2])
						inside[k] = val[k] >= e.iso
						if inside[k] {
							n++
						}
					}

					switch n {
					case 1, 3:
						lone := 0
						for k := 0; k < 4; k++ {
							if inside[k] == (n == 1) {
								lone = k
								break
							}
						}
						var others []int
						for k := 0; k < 4; k++ {
							if k != lone {
								others = append(others, k)
							}
						}
						a := vertexOn(lone, others[0])
						b := vertexOn(lone, others[1])
						c := vertexOn(lone, others[2])
						from, to := pos[lone], pos[others[0]]
						if n == 3 {
							from, to = to, from
						}
						emit(a, b, c, from, to)
					case 2:
						var in, out []int
						for k := 0; k < 4; k++ {
							if inside[k] {
								in = append(in, k)
							} else {
								out = append(out, k)
							}
						}
						ac := vertexOn(in[0], out[0])
						ad := vertexOn(in[0], out[1])
						bd := vertexOn(in[1], out[1])
						bc := vertexOn(in[1], out[0])
						from := r3.Scale(0.5, r3.Add(pos[in[0]], pos[in[1]]))
						to := r3.Scale(0.5, r3.Add(pos[out[0]], pos[out[1]]))
						emit(ac, ad, bd, from, to)
						emit(ac, bd, bc, from, to)
					}
				}
			}
		}
	}
	return nil
}

// merge joins slab surfaces, welding the vertices on shared layer boundaries
func merge(slabs []*slab) *mesh.Mesh {
	out := &mesh.Mesh{}
	global := make(map[gridEdge]int)
	for _, s := range slabs {
		remap := make([]int, len(s.points))
		for i, key := range s.keys {
			if idx, ok := global[key]; ok {
				remap[i] = idx
				continue
			}
			idx := len(out.Points)
			out.Points = append(out.Points, s.points[i])
			global[key] = idx
			remap[i] = idx
		}
		for _, t := range s.triangles {
			tri := [3]int{remap[t[0]], remap[t[1]], remap[t[2]]}
			if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
				continue
			}
			out.Triangles = append(out.Triangles, tri)
		}
	}
	return out
}

// ExtractAll contours vol at every iso-value concurrently and returns the
// surfaces in the order of isos.
func ExtractAll(ctx context.Context, vol *models.Volume, workers int, isos ...float64) ([]*mesh.Mesh, error) {
	surfaces := make([]*mesh.Mesh, len(isos))
	g, ctx := errgroup.WithContext(ctx)
	for i, iso := range isos {
		g.Go(func() error {
			ex := New(vol, iso)
			if workers > 0 {
				ex.SetWorkers(workers)
			}
			m, err := ex.Extract(ctx)
			if err != nil {
				return fmt.Errorf("contour at %g: %w", iso, err)
			}
			surfaces[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return surfaces, nil
}
