package cache

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"kneeviz/pkg/mesh"
)

// WritePolyData encodes m in the legacy ASCII VTK polydata format with its
// point scalars and normals.
func WritePolyData(w io.Writer, title string, m *mesh.Mesh) error {
	bw := bufio.NewWriter(w)
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

	fmt.Fprintln(bw, "# vtk DataFile Version 3.0")
	fmt.Fprintln(bw, strings.ReplaceAll(title, "\n", " "))
	fmt.Fprintln(bw, "ASCII")
	fmt.Fprintln(bw, "DATASET POLYDATA")

	fmt.Fprintf(bw, "POINTS %d double\n", len(m.Points))
	for _, p := range m.Points {
		fmt.Fprintf(bw, "%s %s %s\n", f(p.X), f(p.Y), f(p.Z))
	}

	if len(m.Lines) > 0 {
		size := 0
		for _, l := range m.Lines {
			size += len(l) + 1
		}
		fmt.Fprintf(bw, "LINES %d %d\n", len(m.Lines), size)
		for _, l := range m.Lines {
			fmt.Fprint(bw, len(l))
			for _, idx := range l {
				fmt.Fprintf(bw, " %d", idx)
			}
			fmt.Fprintln(bw)
		}
	}

	if len(m.Triangles) > 0 {
		fmt.Fprintf(bw, "POLYGONS %d %d\n", len(m.Triangles), 4*len(m.Triangles))
		for _, t := range m.Triangles {
			fmt.Fprintf(bw, "3 %d %d %d\n", t[0], t[1], t[2])
		}
	}

	if m.HasScalars() || m.HasNormals() {
		fmt.Fprintf(bw, "POINT_DATA %d\n", len(m.Points))
	}
	if m.HasScalars() {
		fmt.Fprintln(bw, "SCALARS scalars double 1")
		fmt.Fprintln(bw, "LOOKUP_TABLE default")
		for _, s := range m.Scalars {
			fmt.Fprintln(bw, f(s))
		}
	}
	if m.HasNormals() {
		fmt.Fprintln(bw, "NORMALS normals double")
		for _, n := range m.Normals {
			fmt.Fprintf(bw, "%s %s %s\n", f(n.X), f(n.Y), f(n.Z))
		}
	}
	return bw.Flush()
}

// ReadPolyData decodes what WritePolyData produces. Polygons with more than
// three points are fanned into triangles.
func ReadPolyData(r io.Reader) (*mesh.Mesh, error) {
	br := bufio.NewReader(r)
	for i := 0; i < 2; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			return nil, fmt.Errorf("polydata: read header: %w", err)
		}
	}

	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)
	tok := &tokens{sc: sc}

	if kw := tok.next(); kw != "ASCII" {
		return nil, fmt.Errorf("polydata: want ASCII encoding, got %q", kw)
	}
	if kw, kind := tok.next(), tok.next(); kw != "DATASET" || kind != "POLYDATA" {
		return nil, fmt.Errorf("polydata: want DATASET POLYDATA, got %q %q", kw, kind)
	}

	m := &mesh.Mesh{}
	for {
		kw := tok.next()
		if kw == "" {
			break
		}
		switch kw {
		case "POINTS":
			n := tok.count()
			tok.next() // data type
			m.Points = m.Points[:0]
			for i := 0; i < n && tok.err == nil; i++ {
				m.Points = append(m.Points, r3.Vec{X: tok.float(), Y: tok.float(), Z: tok.float()})
			}
		case "LINES", "POLYGONS":
			n := tok.count()
			tok.count() // total size
			for i := 0; i < n && tok.err == nil; i++ {
				size := tok.count()
				var cell []int
				for j := 0; j < size && tok.err == nil; j++ {
					cell = append(cell, tok.int())
				}
				if kw == "LINES" {
					m.Lines = append(m.Lines, cell)
					continue
				}
				for j := 1; j+1 < len(cell); j++ {
					m.Triangles = append(m.Triangles, [3]int{cell[0], cell[j], cell[j+1]})
				}
			}
		case "POINT_DATA":
			tok.int()
		case "SCALARS":
			tok.next() // name
			tok.next() // data type
			if c := tok.int(); c != 1 {
				return nil, fmt.Errorf("polydata: %d scalar components not supported", c)
			}
			if lt := tok.next(); lt != "LOOKUP_TABLE" {
				return nil, fmt.Errorf("polydata: want LOOKUP_TABLE, got %q", lt)
			}
			tok.next()
			m.Scalars = make([]float64, len(m.Points))
			for i := range m.Scalars {
				m.Scalars[i] = tok.float()
			}
		case "NORMALS":
			tok.next()
			tok.next()
			m.Normals = make([]r3.Vec, len(m.Points))
			for i := range m.Normals {
				m.Normals[i] = r3.Vec{X: tok.float(), Y: tok.float(), Z: tok.float()}
			}
		default:
			return nil, fmt.Errorf("polydata: unexpected keyword %q", kw)
		}
		if tok.err != nil {
			return nil, fmt.Errorf("polydata: %s: %w", kw, tok.err)
		}
	}
	if tok.err != nil {
		return nil, fmt.Errorf("polydata: %w", tok.err)
	}

	check := func(idx int) error {
		if idx < 0 || idx >= len(m.Points) {
			return fmt.Errorf("polydata: point index %d out of range", idx)
		}
		return nil
	}
	for _, t := range m.Triangles {
		for _, idx := range t {
			if err := check(idx); err != nil {
				return nil, err
			}
		}
	}
	for _, l := range m.Lines {
		for _, idx := range l {
			if err := check(idx); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// tokens reads whitespace separated words, remembering the first error
type tokens struct {
	sc  *bufio.Scanner
	err error
}

func (t *tokens) next() string {
	if t.err != nil {
		return ""
	}
	if !t.sc.Scan() {
		t.err = t.sc.Err()
		return ""
	}
	return t.sc.Text()
}

func (t *tokens) int() int {
	s := t.next()
	if t.err != nil {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		t.err = err
	}
	return v
}

// maxCount bounds any element count read from a header
const maxCount = 1 << 28

// count reads a header count, rejecting negative and absurd values
func (t *tokens) count() int {
	v := t.int()
	if t.err == nil && (v < 0 || v > maxCount) {
		t.err = fmt.Errorf("invalid count %d", v)
		return 0
	}
	return v
}

func (t *tokens) float() float64 {
	s := t.next()
	if t.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.err = err
	}
	return v
}
