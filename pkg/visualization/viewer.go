// Package visualization exports orthogonal slices of a volume as images.
package visualization

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"kneeviz/internal/models"
	"kneeviz/pkg/render"
)

// Viewer extracts axis-aligned slices from a volume. Voxel values are
// mapped linearly from the scalar range of the volume onto 16-bit gray.
type Viewer struct {
	volume *models.Volume

	// lo and hi are the scalar range used for normalisation
	lo, hi float64

	// Format is the image extension used by SaveSliceSequence
	Format string
}

// NewViewer creates a viewer for vol
func NewViewer(vol *models.Volume) *Viewer {
	lo, hi := vol.ScalarRange()
	return &Viewer{volume: vol, lo: lo, hi: hi, Format: "png"}
}

// SetWindow overrides the value range mapped to black and white
func (v *Viewer) SetWindow(lo, hi float64) {
	v.lo, v.hi = lo, hi
}

func (v *Viewer) gray(value float64) color.Gray16 {
	span := v.hi - v.lo
	if span <= 0 {
		return color.Gray16{}
	}
	t := (value - v.lo) / span
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, t*65535)))}
}

// axisLength returns the number of slices along axis
func (v *Viewer) axisLength(axis string) (int, error) {
	switch axis {
	case "x", "X":
		return v.volume.Width, nil
	case "y", "Y":
		return v.volume.Height, nil
	case "z", "Z":
		return v.volume.Depth, nil
	}
	return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray16, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	n, err := v.axisLength(axis)
	if err != nil {
		return nil, err
	}
	if position >= n {
		return nil, fmt.Errorf("position %d exceeds %s size %d", position, axis, n)
	}

	vol := v.volume
	var img *image.Gray16
	switch axis {
	case "x", "X":
		// YZ plane
		img = image.NewGray16(image.Rect(0, 0, vol.Depth, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for z := 0; z < vol.Depth; z++ {
				img.SetGray16(z, y, v.gray(vol.At(position, y, z)))
			}
		}
	case "y", "Y":
		// XZ plane
		img = image.NewGray16(image.Rect(0, 0, vol.Width, vol.Depth))
		for z := 0; z < vol.Depth; z++ {
			for x := 0; x < vol.Width; x++ {
				img.SetGray16(x, z, v.gray(vol.At(x, position, z)))
			}
		}
	default:
		// XY plane
		img = image.NewGray16(image.Rect(0, 0, vol.Width, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				img.SetGray16(x, y, v.gray(vol.At(x, y, position)))
			}
		}
	}
	return img, nil
}

// ExtractRegion extracts a 3D subregion from the volume
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) (*models.Volume, error) {
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	vol := v.volume
	if startX+sizeX > vol.Width || startY+sizeY > vol.Height || startZ+sizeZ > vol.Depth {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	region := models.NewVolume(sizeX, sizeY, sizeZ)
	region.Spacing = vol.Spacing
	region.Origin = vol.Point(float64(startX), float64(startY), float64(startZ))
	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			for x := 0; x < sizeX; x++ {
				region.Set(x, y, z, vol.At(startX+x, startY+y, startZ+z))
			}
		}
	}
	return region, nil
}

// SaveSliceSequence extracts and saves every slice along the specified axis
// as slice_<axis>_<nnn>.<Format> in outputDir
func (v *Viewer) SaveSliceSequence(ctx context.Context, axis string, outputDir string) error {
	n, err := v.axisLength(axis)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for pos := 0; pos < n; pos++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := v.ExtractSlice(axis, pos)
			if err != nil {
				return err
			}
			filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.%s", axis, pos, v.Format))
			return render.Save(filename, img)
		})
	}
	return g.Wait()
}
