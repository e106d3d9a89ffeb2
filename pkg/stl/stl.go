// Package stl writes binary STL files for surfaces produced by the
// contouring pipeline.
package stl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"kneeviz/pkg/mesh"
)

// Triangle is one facet of an STL file
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// FromMesh converts the triangles of m to STL facets with face normals
func FromMesh(m *mesh.Mesh) []Triangle {
	triangles := make([]Triangle, 0, len(m.Triangles))
	for i, t := range m.Triangles {
		triangles = append(triangles, Triangle{
			Normal:  toFloat32(m.FaceNormal(i)),
			Vertex1: toFloat32(m.Points[t[0]]),
			Vertex2: toFloat32(m.Points[t[1]]),
			Vertex3: toFloat32(m.Points[t[2]]),
		})
	}
	return triangles
}

func toFloat32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

// Write encodes triangles as binary STL
func Write(w io.Writer, header string, triangles []Triangle) error {
	bw := bufio.NewWriter(w)

	var head [80]byte
	copy(head[:], header)
	if _, err := bw.Write(head[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return err
	}

	var attr uint16
	for _, t := range triangles {
		for _, v := range [][3]float32{t.Normal, t.Vertex1, t.Vertex2, t.Vertex3} {
			if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
				return err
			}
		}
		if err := binary.Write(bw, binary.LittleEndian, attr); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveToSTL writes triangles to filename as binary STL
func SaveToSTL(filename string, triangles []Triangle) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create STL file: %w", err)
	}
	if err := Write(file, "kneeviz", triangles); err != nil {
		file.Close()
		return fmt.Errorf("failed to write STL file: %w", err)
	}
	return file.Close()
}
