package render

import (
	"image"
	"math"
)

// frameBuffer stores linear colour and inverse depth per pixel. A larger
// inverse depth is nearer; zero means empty.
type frameBuffer struct {
	width, height int
	color         []Color
	invDepth      []float64
}

func newFrameBuffer(width, height int) *frameBuffer {
	return &frameBuffer{
		width:    width,
		height:   height,
		color:    make([]Color, width*height),
		invDepth: make([]float64, width*height),
	}
}

// clear fills rect with background and resets its depth
func (fb *frameBuffer) clear(rect image.Rectangle, background Color) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		row := y * fb.width
		for x := rect.Min.X; x < rect.Max.X; x++ {
			fb.color[row+x] = background
			fb.invDepth[row+x] = 0
		}
	}
}

// image converts the buffer to an 8-bit image
func (fb *frameBuffer) image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, fb.width, fb.height))
	for i, c := range fb.color {
		n := c.NRGBA()
		img.Pix[i*4] = n.R
		img.Pix[i*4+1] = n.G
		img.Pix[i*4+2] = n.B
		img.Pix[i*4+3] = n.A
	}
	return img
}

// screenVertex is a projected vertex in buffer pixels
type screenVertex struct {
	x, y float64
	// invZ is one over camera-space depth
	invZ  float64
	color Color
}

func edge(a, b screenVertex, px, py float64) float64 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// triangle fills a triangle inside clip with perspective-correct colour
// interpolation. With alpha below one the colour is blended over the buffer
// and depth is tested but not written.
func (fb *frameBuffer) triangle(clip image.Rectangle, v [3]screenVertex, alpha float64) {
	area := edge(v[0], v[1], v[2].x, v[2].y)
	if math.Abs(area) < 1e-12 {
		return
	}
	invArea := 1 / area

	minX := int(math.Floor(math.Min(v[0].x, math.Min(v[1].x, v[2].x))))
	maxX := int(math.Ceil(math.Max(v[0].x, math.Max(v[1].x, v[2].x))))
	minY := int(math.Floor(math.Min(v[0].y, math.Min(v[1].y, v[2].y))))
	maxY := int(math.Ceil(math.Max(v[0].y, math.Max(v[1].y, v[2].y))))
	minX = max(minX, clip.Min.X)
	minY = max(minY, clip.Min.Y)
	maxX = min(maxX, clip.Max.X-1)
	maxY = min(maxY, clip.Max.Y-1)
	if minX > maxX || minY > maxY {
		return
	}

	// colours pre-divided by depth for perspective correction
	var cz [3]Color
	for i := range v {
		cz[i] = v[i].color.Scale(v[i].invZ)
	}
	blend := alpha < 1

	for y := minY; y <= maxY; y++ {
		py := float64(y) + 0.5
		row := y * fb.width
		for x := minX; x <= maxX; x++ {
			px := float64(x) + 0.5
			w0 := edge(v[1], v[2], px, py) * invArea
			w1 := edge(v[2], v[0], px, py) * invArea
			w2 := 1 - w0 - w1
			if w0 < -1e-9 || w1 < -1e-9 || w2 < -1e-9 {
				continue
			}

			invZ := w0*v[0].invZ + w1*v[1].invZ + w2*v[2].invZ
			idx := row + x
			if invZ <= fb.invDepth[idx] {
				continue
			}

			c := cz[0].Scale(w0).Add(cz[1].Scale(w1)).Add(cz[2].Scale(w2)).Scale(1 / invZ)
			if blend {
				fb.color[idx] = fb.color[idx].Lerp(c, alpha)
				continue
			}
			fb.color[idx] = c
			fb.invDepth[idx] = invZ
		}
	}
}

// line draws a depth-tested segment of the given pixel width. Lines win
// depth ties against the surfaces they lie on.
func (fb *frameBuffer) line(clip image.Rectangle, a, b screenVertex, width float64) {
	dx, dy := b.x-a.x, b.y-a.y
	steps := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))))
	if steps == 0 {
		steps = 1
	}
	half := int(math.Max(0, math.Floor((width-1)/2)))
	extra := 0
	if int(math.Round(width))%2 == 0 {
		extra = 1
	}

	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		invZ := a.invZ + t*(b.invZ-a.invZ)
		biased := invZ * (1 + 1e-3)
		cx := int(math.Floor(a.x + t*dx))
		cy := int(math.Floor(a.y + t*dy))
		for oy := -half; oy <= half+extra; oy++ {
			y := cy + oy
			if y < clip.Min.Y || y >= clip.Max.Y {
				continue
			}
			for ox := -half; ox <= half+extra; ox++ {
				x := cx + ox
				if x < clip.Min.X || x >= clip.Max.X {
					continue
				}
				idx := y*fb.width + x
				if biased <= fb.invDepth[idx] {
					continue
				}
				fb.color[idx] = a.color.Lerp(b.color, t)
				fb.invDepth[idx] = invZ
			}
		}
	}
}
