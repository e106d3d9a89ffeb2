package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// SphereSource tessellates a sphere into a triangle mesh with outward
// normals. thetaRes divides the longitude and phiRes the latitude.
func SphereSource(s Sphere, thetaRes, phiRes int) *Mesh {
	thetaRes = max(thetaRes, 3)
	phiRes = max(phiRes, 2)

	m := &Mesh{}
	add := func(n r3.Vec) int {
		m.Points = append(m.Points, r3.Add(s.Center, r3.Scale(s.Radius, n)))
		m.Normals = append(m.Normals, n)
		return len(m.Points) - 1
	}

	north := add(r3.Vec{Z: 1})
	south := add(r3.Vec{Z: -1})

	// rings between the poles, phi measured from +z
	ring := make([][]int, phiRes-1)
	for j := 1; j < phiRes; j++ {
		phi := math.Pi * float64(j) / float64(phiRes)
		ring[j-1] = make([]int, thetaRes)
		for i := 0; i < thetaRes; i++ {
			theta := 2 * math.Pi * float64(i) / float64(thetaRes)
			ring[j-1][i] = add(r3.Vec{
				X: math.Sin(phi) * math.Cos(theta),
				Y: math.Sin(phi) * math.Sin(theta),
				Z: math.Cos(phi),
			})
		}
	}

	for i := 0; i < thetaRes; i++ {
		next := (i + 1) % thetaRes
		m.Triangles = append(m.Triangles, [3]int{north, ring[0][i], ring[0][next]})
		for j := 0; j+1 < len(ring); j++ {
			a, b := ring[j][i], ring[j][next]
			c, d := ring[j+1][i], ring[j+1][next]
			m.Triangles = append(m.Triangles, [3]int{a, c, d}, [3]int{a, d, b})
		}
		last := ring[len(ring)-1]
		m.Triangles = append(m.Triangles, [3]int{south, last[next], last[i]})
	}
	return m
}
