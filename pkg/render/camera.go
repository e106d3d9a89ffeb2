package render

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Camera is a perspective camera looking from Position at FocalPoint
type Camera struct {
	Position   r3.Vec
	FocalPoint r3.Vec
	ViewUp     r3.Vec
	// ViewAngle is the vertical field of view in degrees
	ViewAngle float64
}

// NewCamera returns a camera at (0, 0, 1) looking at the origin with +y up
func NewCamera() *Camera {
	return &Camera{
		Position:  r3.Vec{Z: 1},
		ViewUp:    r3.Vec{Y: 1},
		ViewAngle: 30,
	}
}

// DirectionOfProjection returns the unit vector from Position to FocalPoint
func (c *Camera) DirectionOfProjection() r3.Vec {
	return safeUnit(r3.Sub(c.FocalPoint, c.Position), r3.Vec{Z: -1})
}

// Distance returns the distance from Position to FocalPoint
func (c *Camera) Distance() float64 {
	return r3.Norm(r3.Sub(c.FocalPoint, c.Position))
}

// basis returns the right, up and forward unit vectors of the view
func (c *Camera) basis() (right, up, forward r3.Vec) {
	forward = c.DirectionOfProjection()
	right = safeUnit(r3.Cross(forward, c.ViewUp), perpendicular(forward))
	up = r3.Cross(right, forward)
	return right, up, forward
}

// Azimuth rotates the camera about the view up vector centred at the focal
// point
func (c *Camera) Azimuth(degrees float64) {
	offset := r3.Sub(c.Position, c.FocalPoint)
	c.Position = r3.Add(c.FocalPoint, rotate(offset, c.ViewUp, degrees))
}

// Elevation rotates the camera about the horizontal axis through the focal
// point; positive angles move the camera up. The view up vector is
// re-orthogonalised.
func (c *Camera) Elevation(degrees float64) {
	offset := r3.Sub(c.Position, c.FocalPoint)
	axis := r3.Cross(offset, c.ViewUp)
	c.Position = r3.Add(c.FocalPoint, rotate(offset, axis, degrees))
	c.OrthogonalizeViewUp()
}

// Roll rotates the view up vector about the direction of projection
func (c *Camera) Roll(degrees float64) {
	c.ViewUp = rotate(c.ViewUp, c.DirectionOfProjection(), degrees)
}

// Dolly moves the camera towards the focal point by factor; values above
// one move closer
func (c *Camera) Dolly(factor float64) {
	if factor <= 0 {
		return
	}
	offset := r3.Sub(c.Position, c.FocalPoint)
	c.Position = r3.Add(c.FocalPoint, r3.Scale(1/factor, offset))
}

// OrthogonalizeViewUp makes ViewUp perpendicular to the direction of
// projection
func (c *Camera) OrthogonalizeViewUp() {
	_, up, _ := c.basis()
	c.ViewUp = up
}

// ResetCamera keeps the direction of projection and moves the camera so the
// sphere enclosing bounds fills the view.
func (c *Camera) ResetCamera(bounds r3.Box) {
	center := r3.Scale(0.5, r3.Add(bounds.Min, bounds.Max))
	radius := 0.5 * r3.Norm(r3.Sub(bounds.Max, bounds.Min))
	if radius == 0 {
		radius = 0.5
	}

	dop := c.DirectionOfProjection()
	if math.Abs(r3.Dot(safeUnit(c.ViewUp, r3.Vec{Y: 1}), dop)) > 0.999 {
		c.ViewUp = perpendicular(dop)
	}

	angle := c.ViewAngle
	if angle <= 0 {
		angle = 30
	}
	distance := radius / math.Sin(angle*math.Pi/360)
	c.FocalPoint = center
	c.Position = r3.Sub(center, r3.Scale(distance, dop))
}

// ClippingRange returns near and far plane depths enclosing bounds
func (c *Camera) ClippingRange(bounds r3.Box) (near, far float64) {
	center := r3.Scale(0.5, r3.Add(bounds.Min, bounds.Max))
	radius := 0.5 * r3.Norm(r3.Sub(bounds.Max, bounds.Min))
	d := r3.Dot(r3.Sub(center, c.Position), c.DirectionOfProjection())
	near = math.Max(d-radius*1.01, 0.001*math.Max(radius, 1))
	far = math.Max(d+radius*1.01, near*2)
	return near, far
}

// view transforms p into camera space: x right, y up, z depth along the
// direction of projection
func (c *Camera) view(p r3.Vec, right, up, forward r3.Vec) r3.Vec {
	d := r3.Sub(p, c.Position)
	return r3.Vec{X: r3.Dot(d, right), Y: r3.Dot(d, up), Z: r3.Dot(d, forward)}
}

// rotate turns v about axis by degrees using Rodrigues' formula
func rotate(v, axis r3.Vec, degrees float64) r3.Vec {
	k := safeUnit(axis, r3.Vec{Y: 1})
	theta := degrees * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)
	return r3.Add(
		r3.Add(r3.Scale(cos, v), r3.Scale(sin, r3.Cross(k, v))),
		r3.Scale(r3.Dot(k, v)*(1-cos), k),
	)
}

func perpendicular(v r3.Vec) r3.Vec {
	axis := r3.Vec{X: 1}
	if math.Abs(v.X) > 0.9*r3.Norm(v) {
		axis = r3.Vec{Y: 1}
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
