package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Tube sweeps a circle of the given radius along every polyline of m and
// returns the resulting tube surfaces. Each ring has sides points; frames
// are carried along the line by parallel transport so tubes do not twist.
// Point scalars of the polyline are copied onto its rings.
func Tube(m *Mesh, radius float64, sides int) *Mesh {
	if sides < 3 {
		sides = 3
	}
	out := &Mesh{Normals: []r3.Vec{}}
	withScalars := m.HasScalars()
	if withScalars {
		out.Scalars = []float64{}
	}

	for _, line := range m.Lines {
		pts := dedupRun(m.Points, line)
		if len(pts) < 2 {
			continue
		}
		closed := pts[0] == pts[len(pts)-1] && len(pts) > 3
		if closed {
			pts = pts[:len(pts)-1]
		}
		n := len(pts)

		tangents := make([]r3.Vec, n)
		for i := range pts {
			var prev, next r3.Vec
			switch {
			case closed:
				prev = m.Points[pts[(i-1+n)%n]]
				next = m.Points[pts[(i+1)%n]]
			case i == 0:
				prev, next = m.Points[pts[0]], m.Points[pts[1]]
			case i == n-1:
				prev, next = m.Points[pts[n-2]], m.Points[pts[n-1]]
			default:
				prev, next = m.Points[pts[i-1]], m.Points[pts[i+1]]
			}
			tangents[i] = safeUnit(r3.Sub(next, prev), r3.Vec{Z: 1})
		}

		normal := perpendicular(tangents[0])
		base := len(out.Points)
		for i, idx := range pts {
			t := tangents[i]
			normal = safeUnit(r3.Sub(normal, r3.Scale(r3.Dot(normal, t), t)), perpendicular(t))
			binormal := r3.Cross(t, normal)
			center := m.Points[idx]
			for s := 0; s < sides; s++ {
				theta := 2 * math.Pi * float64(s) / float64(sides)
				dir := r3.Add(r3.Scale(math.Cos(theta), normal), r3.Scale(math.Sin(theta), binormal))
				out.Points = append(out.Points, r3.Add(center, r3.Scale(radius, dir)))
				out.Normals = append(out.Normals, dir)
				if withScalars {
					out.Scalars = append(out.Scalars, m.Scalars[idx])
				}
			}
		}

		rings := n - 1
		if closed {
			rings = n
		}
		for i := 0; i < rings; i++ {
			r0 := base + i*sides
			r1 := base + ((i+1)%n)*sides
			for s := 0; s < sides; s++ {
				a := r0 + s
				b := r0 + (s+1)%sides
				c := r1 + (s+1)%sides
				d := r1 + s
				out.Triangles = append(out.Triangles, [3]int{a, b, c}, [3]int{a, c, d})
			}
		}
	}
	return out
}

// dedupRun drops consecutive duplicate point indices and coincident points
func dedupRun(points []r3.Vec, line []int) []int {
	out := make([]int, 0, len(line))
	for _, idx := range line {
		if len(out) > 0 {
			last := out[len(out)-1]
			if last == idx || points[last] == points[idx] {
				continue
			}
		}
		out = append(out, idx)
	}
	return out
}

// perpendicular returns a unit vector orthogonal to v
func perpendicular(v r3.Vec) r3.Vec {
	axis := r3.Vec{X: 1}
	if math.Abs(v.X) > math.Abs(v.Y) {
		axis = r3.Vec{Y: 1}
	}
	if math.Abs(v.Z) < math.Min(math.Abs(v.X), math.Abs(v.Y)) {
		axis = r3.Vec{Z: 1}
	}
	return safeUnit(r3.Cross(v, axis), r3.Vec{X: 1})
}

func safeUnit(v, fallback r3.Vec) r3.Vec {
	l := r3.Norm(v)
	if l < 1e-12 {
		return fallback
	}
	return r3.Scale(1/l, v)
}
