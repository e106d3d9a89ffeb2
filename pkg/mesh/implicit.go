package mesh

import "gonum.org/v1/gonum/spatial/r3"

// ImplicitFunction is a scalar field whose zero set defines a surface.
// Negative values are inside, positive values outside.
type ImplicitFunction interface {
	Evaluate(p r3.Vec) float64
}

// Sphere is the implicit sphere |p - Center|^2 - Radius^2.
type Sphere struct {
	Center r3.Vec
	Radius float64
}

// Evaluate implements ImplicitFunction
func (s Sphere) Evaluate(p r3.Vec) float64 {
	return r3.Norm2(r3.Sub(p, s.Center)) - s.Radius*s.Radius
}

// Plane is the implicit plane through Origin with the given Normal. Points
// on the side the normal points to are positive.
type Plane struct {
	Origin r3.Vec
	Normal r3.Vec
}

// Evaluate implements ImplicitFunction
func (p Plane) Evaluate(q r3.Vec) float64 {
	return r3.Dot(p.Normal, r3.Sub(q, p.Origin))
}
