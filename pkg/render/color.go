package render

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// Color is a linear RGB triple in [0, 1]
type Color struct {
	R, G, B float64
}

// Common colours
var (
	White = Color{1, 1, 1}
	Black = Color{0, 0, 0}
)

// FromRGBA converts an 8-bit colour
func FromRGBA(c color.RGBA) Color {
	return Color{float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255}
}

// ParseColor accepts an SVG colour name such as "ivory" or "SlateGray", or a
// hex triplet "#rrggbb".
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		if len(s) != 7 {
			return Color{}, fmt.Errorf("invalid hex colour %q", s)
		}
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err != nil {
			return Color{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
		}
		return FromRGBA(color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}), nil
	}
	c, ok := colornames.Map[strings.ToLower(s)]
	if !ok {
		return Color{}, fmt.Errorf("unknown colour %q", s)
	}
	return FromRGBA(c), nil
}

// MustColor is ParseColor for literals known to be valid
func MustColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Scale multiplies every channel by k
func (c Color) Scale(k float64) Color {
	return Color{c.R * k, c.G * k, c.B * k}
}

// Add returns the channel-wise sum
func (c Color) Add(o Color) Color {
	return Color{c.R + o.R, c.G + o.G, c.B + o.B}
}

// Mul returns the channel-wise product
func (c Color) Mul(o Color) Color {
	return Color{c.R * o.R, c.G * o.G, c.B * o.B}
}

// Lerp blends from c to o by t
func (c Color) Lerp(o Color, t float64) Color {
	return Color{c.R + t*(o.R-c.R), c.G + t*(o.G-c.G), c.B + t*(o.B-c.B)}
}

// NRGBA converts to an opaque 8-bit colour, clamping each channel
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: to8(c.R), G: to8(c.G), B: to8(c.B), A: 255}
}

func to8(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, v*255+0.5)))
}

// hsvToRGB converts hue, saturation and value, all in [0, 1]
func hsvToRGB(h, s, v float64) Color {
	h = math.Mod(h, 1)
	if h < 0 {
		h++
	}
	h *= 6
	i := math.Floor(h)
	f := h - i
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))
	switch int(i) {
	case 0:
		return Color{v, t, p}
	case 1:
		return Color{q, v, p}
	case 2:
		return Color{p, v, t}
	case 3:
		return Color{p, q, v}
	case 4:
		return Color{t, p, v}
	default:
		return Color{v, p, q}
	}
}
