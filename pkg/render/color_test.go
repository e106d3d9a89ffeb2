package render

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"ivory", color.NRGBA{255, 255, 240, 255}},
		{"SlateGray", color.NRGBA{112, 128, 144, 255}},
		{" tomato ", color.NRGBA{255, 99, 71, 255}},
		{"#ff8000", color.NRGBA{255, 128, 0, 255}},
		{"#000000", color.NRGBA{0, 0, 0, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseColor(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.NRGBA())
		})
	}

	for _, bad := range []string{"", "#12345", "#gggggg", "not-a-colour"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, "%q", bad)
	}
	assert.Panics(t, func() { MustColor("nope") })
}

func TestColorArithmetic(t *testing.T) {
	c := Color{0.2, 0.4, 0.6}
	assert.Equal(t, Color{0.4, 0.8, 1.2}, c.Scale(2))
	assert.Equal(t, Color{0.5, 0.4, 0.6}, c.Add(Color{R: 0.3}))
	assert.Equal(t, Color{0.2, 0, 0}, c.Mul(Color{R: 1}))
	assert.Equal(t, c, Black.Lerp(c, 1))
	// channels clamp when converted
	assert.Equal(t, color.NRGBA{255, 0, 128, 255}, Color{2, -1, 0.5}.NRGBA())
}

func TestLookupTable(t *testing.T) {
	lut := NewLookupTable([2]float64{10, 20})

	red := lut.Map(10)
	assert.InDelta(t, 1, red.R, 1e-9)
	assert.InDelta(t, 0, red.G, 1e-9)
	assert.InDelta(t, 0, red.B, 1e-9)

	blue := lut.Map(20)
	assert.InDelta(t, 0, blue.R, 1e-3)
	assert.InDelta(t, 0, blue.G, 1e-3)
	assert.InDelta(t, 1, blue.B, 1e-9)

	// out of range values clamp to the ends
	assert.Equal(t, red, lut.Map(-5))
	assert.Equal(t, blue, lut.Map(99))

	// the middle of the ramp is green
	mid := lut.Map(15)
	assert.Greater(t, mid.G, mid.R)
	assert.Greater(t, mid.G, mid.B)

	flat := NewLookupTable([2]float64{3, 3})
	assert.Equal(t, red, flat.Map(3))
}

func TestLighting(t *testing.T) {
	p := Property{Diffuse: 1}
	base := Color{1, 0.5, 0}
	toCam := r3.Vec{Z: 1}

	assert.Equal(t, base, lighting(p, base, r3.Vec{Z: 1}, toCam))
	assert.Equal(t, base, lighting(p, base, r3.Vec{Z: -1}, toCam), "two sided")

	tilted := lighting(p, base, r3.Vec{Y: 0.8660254037844386, Z: 0.5}, toCam)
	assert.InDelta(t, 0.5, tilted.R, 1e-9)

	p = Property{Ambient: 0.25, Specular: 0.5, SpecularPower: 10}
	c := lighting(p, base, r3.Vec{Z: 1}, toCam)
	assert.InDelta(t, 0.75, c.R, 1e-9)
	assert.InDelta(t, 0.625, c.G, 1e-9)
	assert.InDelta(t, 0.5, c.B, 1e-9)
}
