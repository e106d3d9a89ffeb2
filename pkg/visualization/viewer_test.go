package visualization

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kneeviz/internal/models"
)

// gradientVolume fills each z layer with the value z
func gradientVolume(width, height, depth int) *models.Volume {
	vol := models.NewVolume(width, height, depth)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				vol.Set(x, y, z, float64(z))
			}
		}
	}
	return vol
}

func TestExtractSlice(t *testing.T) {
	width, height, depth := 10, 8, 5
	viewer := NewViewer(gradientVolume(width, height, depth))

	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice("z", z)
		require.NoError(t, err)
		assert.Equal(t, width, img.Bounds().Dx())
		assert.Equal(t, height, img.Bounds().Dy())

		// the range 0..depth-1 spans the full gray scale
		want := float64(z) / float64(depth-1) * 65535
		got := float64(img.Gray16At(width/2, height/2).Y)
		assert.InDelta(t, want, got, 1, "slice %d", z)
	}

	imgX, err := viewer.ExtractSlice("x", width/2)
	require.NoError(t, err)
	assert.Equal(t, depth, imgX.Bounds().Dx())
	assert.Equal(t, height, imgX.Bounds().Dy())
	assert.Equal(t, uint16(65535), imgX.Gray16At(depth-1, 0).Y)

	imgY, err := viewer.ExtractSlice("Y", height/2)
	require.NoError(t, err)
	assert.Equal(t, width, imgY.Bounds().Dx())
	assert.Equal(t, depth, imgY.Bounds().Dy())

	_, err = viewer.ExtractSlice("invalid", 0)
	assert.Error(t, err)
	_, err = viewer.ExtractSlice("z", depth)
	assert.Error(t, err)
	_, err = viewer.ExtractSlice("z", -1)
	assert.Error(t, err)
}

func TestExtractSliceFlatVolume(t *testing.T) {
	vol := models.NewVolume(4, 4, 4)
	for i := range vol.Data {
		vol.Data[i] = 7
	}
	img, err := NewViewer(vol).ExtractSlice("z", 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), img.Gray16At(1, 1).Y)
}

func TestSetWindow(t *testing.T) {
	viewer := NewViewer(gradientVolume(4, 4, 5))
	viewer.SetWindow(0, 2)

	img, err := viewer.ExtractSlice("z", 1)
	require.NoError(t, err)
	assert.InDelta(t, 32767, float64(img.Gray16At(0, 0).Y), 1)

	// values above the window saturate
	img, err = viewer.ExtractSlice("z", 4)
	require.NoError(t, err)
	assert.Equal(t, uint16(65535), img.Gray16At(0, 0).Y)
}

func TestExtractRegion(t *testing.T) {
	width, height, depth := 10, 10, 5
	vol := models.NewVolume(width, height, depth)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				vol.Set(x, y, z, float64(x)/float64(width)+float64(y)/float64(height)+float64(z)/float64(depth))
			}
		}
	}
	viewer := NewViewer(vol)

	startX, startY, startZ := 2, 3, 1
	sizeX, sizeY, sizeZ := 4, 3, 2
	region, err := viewer.ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ)
	require.NoError(t, err)
	require.Len(t, region.Data, sizeX*sizeY*sizeZ)
	assert.Equal(t, vol.Point(2, 3, 1), region.Origin)

	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			for x := 0; x < sizeX; x++ {
				assert.Equal(t, vol.At(startX+x, startY+y, startZ+z), region.At(x, y, z))
			}
		}
	}

	_, err = viewer.ExtractRegion(-1, 0, 0, 1, 1, 1)
	assert.Error(t, err, "negative start")
	_, err = viewer.ExtractRegion(0, 0, 0, 0, 1, 1)
	assert.Error(t, err, "zero size")
	_, err = viewer.ExtractRegion(width-1, 0, 0, 2, 1, 1)
	assert.Error(t, err, "beyond bounds")
}

func TestSaveSliceSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	width, height, depth := 5, 5, 3
	viewer := NewViewer(gradientVolume(width, height, depth))
	outputDir := filepath.Join(t.TempDir(), "slices")

	require.NoError(t, viewer.SaveSliceSequence(context.Background(), "z", outputDir))
	for z := 0; z < depth; z++ {
		_, err := os.Stat(filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.png", z)))
		assert.NoError(t, err)
	}

	viewer.Format = "jpg"
	require.NoError(t, viewer.SaveSliceSequence(context.Background(), "x", outputDir))
	_, err := os.Stat(filepath.Join(outputDir, "slice_x_004.jpg"))
	assert.NoError(t, err)

	assert.Error(t, viewer.SaveSliceSequence(context.Background(), "invalid", outputDir))
}
