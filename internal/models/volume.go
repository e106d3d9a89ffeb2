package models

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Volume represents a scalar field sampled on a regular 3D grid
type Volume struct {
	// Data is the 3D volume data as a 1D array, x fastest then y then z
	Data []float64

	// Width is the width of the volume in voxels
	Width int

	// Height is the height of the volume in voxels
	Height int

	// Depth is the depth of the volume in voxels
	Depth int

	// Spacing is the physical size of each voxel
	Spacing r3.Vec

	// Origin is the world position of voxel (0, 0, 0)
	Origin r3.Vec
}

// NewVolume allocates a zero-filled volume with unit spacing
func NewVolume(width, height, depth int) *Volume {
	return &Volume{
		Data:    make([]float64, width*height*depth),
		Width:   width,
		Height:  height,
		Depth:   depth,
		Spacing: r3.Vec{X: 1, Y: 1, Z: 1},
	}
}

// Index returns the position of voxel (x, y, z) in Data
func (v *Volume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// At returns the value of voxel (x, y, z)
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set stores a value at voxel (x, y, z)
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Index(x, y, z)] = value
}

// Point returns the world position of grid point (x, y, z)
func (v *Volume) Point(x, y, z float64) r3.Vec {
	return r3.Vec{
		X: v.Origin.X + x*v.Spacing.X,
		Y: v.Origin.Y + y*v.Spacing.Y,
		Z: v.Origin.Z + z*v.Spacing.Z,
	}
}

// Bounds returns the world-space box covered by the grid
func (v *Volume) Bounds() r3.Box {
	return r3.Box{
		Min: v.Origin,
		Max: v.Point(float64(v.Width-1), float64(v.Height-1), float64(v.Depth-1)),
	}
}

// ScalarRange returns the minimum and maximum voxel values
func (v *Volume) ScalarRange() (float64, float64) {
	if len(v.Data) == 0 {
		return 0, 0
	}
	return floats.Min(v.Data), floats.Max(v.Data)
}

// MeanStdDev returns the mean and standard deviation of the voxel values
func (v *Volume) MeanStdDev() (float64, float64) {
	if len(v.Data) == 0 {
		return 0, 0
	}
	return stat.MeanStdDev(v.Data, nil)
}

// Fraction returns the share of voxels with a value of at least iso
func (v *Volume) Fraction(iso float64) float64 {
	if len(v.Data) == 0 {
		return 0
	}
	n := 0
	for _, d := range v.Data {
		if d >= iso {
			n++
		}
	}
	return float64(n) / float64(len(v.Data))
}

// Empty reports whether the volume has no cells to contour
func (v *Volume) Empty() bool {
	return v.Width < 2 || v.Height < 2 || v.Depth < 2
}
