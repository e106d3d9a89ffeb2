package render

import "math"

// LookupTable maps scalars to colours along a linear hue ramp
type LookupTable struct {
	Range      [2]float64
	HueRange   [2]float64
	Saturation float64
	Value      float64
}

// NewLookupTable returns the default red to blue ramp over r
func NewLookupTable(r [2]float64) *LookupTable {
	return &LookupTable{
		Range:      r,
		HueRange:   [2]float64{0, 0.6667},
		Saturation: 1,
		Value:      1,
	}
}

// Map returns the colour for v; values outside Range are clamped
func (l *LookupTable) Map(v float64) Color {
	t := 0.0
	if span := l.Range[1] - l.Range[0]; span > 0 {
		t = math.Max(0, math.Min(1, (v-l.Range[0])/span))
	}
	h := l.HueRange[0] + t*(l.HueRange[1]-l.HueRange[0])
	return hsvToRGB(h, l.Saturation, l.Value)
}
