package mesh

// Threshold keeps the cells whose point scalars all lie in [lo, hi] and
// drops the points no remaining cell uses.
func Threshold(m *Mesh, lo, hi float64) (*Mesh, error) {
	if !m.HasScalars() {
		return nil, ErrNoScalars
	}
	in := func(idx int) bool {
		s := m.Scalars[idx]
		return s >= lo && s <= hi
	}

	out := m.Clone()
	out.Triangles = out.Triangles[:0]
	for _, t := range m.Triangles {
		if in(t[0]) && in(t[1]) && in(t[2]) {
			out.Triangles = append(out.Triangles, t)
		}
	}
	out.Lines = out.Lines[:0]
	for _, l := range m.Lines {
		all := true
		for _, idx := range l {
			if !in(idx) {
				all = false
				break
			}
		}
		if all {
			out.Lines = append(out.Lines, append([]int(nil), l...))
		}
	}
	out.Compact()
	return out, nil
}
