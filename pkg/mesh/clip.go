package mesh

// Clip cuts m with the zero set of fn. By default the part where fn is
// positive is kept; insideOut keeps the part where fn is zero or negative.
// Triangles crossing the surface are split, new points are interpolated
// linearly along the crossing edges and carry interpolated attributes.
func Clip(m *Mesh, fn ImplicitFunction, insideOut bool) *Mesh {
	values := make([]float64, len(m.Points))
	keep := make([]bool, len(m.Points))
	for i, p := range m.Points {
		values[i] = fn.Evaluate(p)
		keep[i] = (values[i] > 0) != insideOut
	}

	b := newBuilder(m)
	for _, t := range m.Triangles {
		kept := 0
		for _, idx := range t {
			if keep[idx] {
				kept++
			}
		}
		switch kept {
		case 0:
			continue
		case 3:
			b.out.Triangles = append(b.out.Triangles, [3]int{b.point(t[0]), b.point(t[1]), b.point(t[2])})
			continue
		}

		// rotate so the vertex on its own side comes first; rotation keeps winding
		odd := 0
		for k := 0; k < 3; k++ {
			if keep[t[k]] != keep[t[(k+1)%3]] && keep[t[k]] != keep[t[(k+2)%3]] {
				odd = k
				break
			}
		}
		v0, v1, v2 := t[odd], t[(odd+1)%3], t[(odd+2)%3]
		p01 := b.interpolate(v0, v1, values[v0], values[v1])
		p02 := b.interpolate(v0, v2, values[v0], values[v2])

		if kept == 1 {
			b.out.Triangles = append(b.out.Triangles, [3]int{b.point(v0), p01, p02})
			continue
		}
		i1, i2 := b.point(v1), b.point(v2)
		b.out.Triangles = append(b.out.Triangles,
			[3]int{p01, i1, i2},
			[3]int{p01, i2, p02},
		)
	}

	for _, l := range m.Lines {
		var run []int
		flush := func() {
			if len(run) > 1 {
				b.out.Lines = append(b.out.Lines, run)
			}
			run = nil
		}
		for k, idx := range l {
			if k > 0 {
				prev := l[k-1]
				if keep[prev] != keep[idx] {
					cross := b.interpolate(prev, idx, values[prev], values[idx])
					run = append(run, cross)
					if keep[prev] {
						flush()
						continue
					}
				}
			}
			if keep[idx] {
				run = append(run, b.point(idx))
			}
		}
		flush()
	}

	return b.out
}
