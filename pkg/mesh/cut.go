package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// onPlane is the tolerance, relative to the plane normal length, within
// which a point counts as lying on a cutting plane
const onPlane = 1e-9

// Cut intersects the triangles of m with a plane and returns the
// intersection as two-point line cells. Points are shared between adjacent
// segments so Strip can join them. Vertices lying on the plane are used as
// cut points themselves, and an edge lying in the plane yields one segment
// even though two triangles share it.
func Cut(m *Mesh, plane Plane) *Mesh {
	eps := onPlane * r3.Norm(plane.Normal)
	side := make([]int, len(m.Points))
	values := make([]float64, len(m.Points))
	for i, p := range m.Points {
		v := plane.Evaluate(p)
		values[i] = v
		switch {
		case v > eps:
			side[i] = 1
		case v < -eps:
			side[i] = -1
		}
	}

	b := newBuilder(m)
	seen := make(map[edgeKey]bool)
	for _, t := range m.Triangles {
		var seg []int
		add := func(idx int) {
			for _, s := range seg {
				if s == idx {
					return
				}
			}
			seg = append(seg, idx)
		}
		for k := 0; k < 3; k++ {
			i, j := t[k], t[(k+1)%3]
			if side[i] == 0 {
				add(b.point(i))
			}
			if side[i]*side[j] < 0 {
				add(b.interpolate(i, j, values[i], values[j]))
			}
		}
		if len(seg) != 2 {
			continue
		}
		key := newEdgeKey(seg[0], seg[1])
		if seen[key] {
			continue
		}
		seen[key] = true
		b.out.Lines = append(b.out.Lines, seg)
	}
	b.out.Normals = nil
	return b.out
}

// CutSeries cuts m with parallel planes orthogonal to normal, spaced by
// spacing and anchored at origin, covering the whole extent of m.
func CutSeries(m *Mesh, origin, normal r3.Vec, spacing float64) *Mesh {
	out := &Mesh{}
	if spacing <= 0 || len(m.Points) == 0 {
		return out
	}
	normal = r3.Unit(normal)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range m.Points {
		d := r3.Dot(normal, r3.Sub(p, origin))
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}

	for k := math.Ceil(lo / spacing); k*spacing <= hi; k++ {
		plane := Plane{Origin: r3.Add(origin, r3.Scale(k*spacing, normal)), Normal: normal}
		out.Append(Cut(m, plane))
	}
	return out
}

// Strip joins the line cells of m into maximal polylines. Closed loops end
// with their starting point. Triangles are dropped.
func Strip(m *Mesh) *Mesh {
	out := &Mesh{Points: m.Points, Scalars: m.Scalars, Normals: m.Normals}

	// adjacency from point to the lines touching it at an end
	ends := make(map[int][]int)
	for i, l := range m.Lines {
		if len(l) < 2 {
			continue
		}
		ends[l[0]] = append(ends[l[0]], i)
		ends[l[len(l)-1]] = append(ends[l[len(l)-1]], i)
	}
	used := make([]bool, len(m.Lines))

	next := func(at int) (int, bool) {
		for _, li := range ends[at] {
			if !used[li] {
				return li, true
			}
		}
		return 0, false
	}
	// oriented returns line li walked starting from point at
	oriented := func(li, at int) []int {
		l := m.Lines[li]
		if l[0] == at {
			return l
		}
		r := make([]int, len(l))
		for i := range l {
			r[i] = l[len(l)-1-i]
		}
		return r
	}

	for i, l := range m.Lines {
		if used[i] || len(l) < 2 {
			continue
		}
		used[i] = true
		poly := append([]int(nil), l...)

		for {
			li, ok := next(poly[len(poly)-1])
			if !ok {
				break
			}
			used[li] = true
			poly = append(poly, oriented(li, poly[len(poly)-1])[1:]...)
		}
		for {
			li, ok := next(poly[0])
			if !ok {
				break
			}
			used[li] = true
			seg := oriented(li, poly[0])
			head := make([]int, 0, len(seg)-1+len(poly))
			for k := len(seg) - 1; k >= 1; k-- {
				head = append(head, seg[k])
			}
			poly = append(head, poly...)
		}
		out.Lines = append(out.Lines, poly)
	}
	return out
}
