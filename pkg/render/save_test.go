package render

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "golang.org/x/image/webp"
)

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 24, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 15), B: 200, A: 255})
		}
	}
	return img
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	src := testImage()

	tests := []struct {
		name, format string
		lossless     bool
	}{
		{"frame.png", "png", true},
		{"frame.webp", "webp", true},
		{"frame.JPG", "jpeg", false},
		{"frame.jpeg", "jpeg", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "out", tt.name)
			require.NoError(t, Save(path, src))

			f, err := os.Open(path)
			require.NoError(t, err)
			defer f.Close()
			img, format, err := image.Decode(f)
			require.NoError(t, err)
			assert.Equal(t, tt.format, format)
			assert.Equal(t, src.Bounds(), img.Bounds())

			if tt.lossless {
				r, g, b, _ := img.At(7, 5).RGBA()
				assert.Equal(t, []uint32{70, 75, 200}, []uint32{r >> 8, g >> 8, b >> 8})
			}
		})
	}
}

func TestSaveUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.gif")
	err := Save(path, testImage())
	assert.ErrorIs(t, err, ErrFormat)
	assert.NoFileExists(t, path)

	assert.ErrorIs(t, Save(filepath.Join(t.TempDir(), "frame"), testImage()), ErrFormat)
}
