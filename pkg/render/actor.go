package render

import "kneeviz/pkg/mesh"

// Property holds the surface material of an actor
type Property struct {
	Color         Color
	Ambient       float64
	Diffuse       float64
	Specular      float64
	SpecularPower float64
	Opacity       float64
	// BackfaceColor, when set, replaces Color on faces turned away from the
	// camera
	BackfaceColor *Color
	// LineWidth is the width of line cells in output pixels
	LineWidth float64
}

// DefaultProperty returns a white, fully diffuse, opaque material
func DefaultProperty() Property {
	return Property{
		Color:         White,
		Ambient:       0.1,
		Diffuse:       1,
		SpecularPower: 1,
		Opacity:       1,
		LineWidth:     1,
	}
}

// Actor places a mesh in a scene with a material
type Actor struct {
	Mesh     *mesh.Mesh
	Property Property
	// LUT colours points by scalar when ScalarVisibility is set and the
	// mesh carries scalars
	LUT              *LookupTable
	ScalarVisibility bool
	Visible          bool
}

// NewActor returns a visible actor for m with the default property
func NewActor(m *mesh.Mesh) *Actor {
	return &Actor{Mesh: m, Property: DefaultProperty(), Visible: true}
}

// Translucent reports whether the actor is drawn in the blended pass
func (a *Actor) Translucent() bool {
	return a.Property.Opacity < 1
}

func (a *Actor) usesScalars() bool {
	return a.ScalarVisibility && a.LUT != nil && a.Mesh.HasScalars()
}
