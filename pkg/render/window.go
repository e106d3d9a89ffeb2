package render

import (
	"context"
	"image"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// Window composes renderers into one image. Each renderer owns a disjoint
// viewport, so they are drawn concurrently into a shared buffer.
type Window struct {
	Width, Height int
	// Supersample renders at this multiple of the output size and
	// downsamples the result
	Supersample int
	renderers   []*Renderer
}

// NewWindow returns a window of the given output size
func NewWindow(width, height int) *Window {
	return &Window{Width: width, Height: height, Supersample: 1}
}

// AddRenderer adds a renderer; later renderers draw over earlier ones where
// viewports overlap
func (w *Window) AddRenderer(r *Renderer) {
	w.renderers = append(w.renderers, r)
}

// Renderers returns the renderers of the window
func (w *Window) Renderers() []*Renderer {
	return w.renderers
}

// Render draws every renderer and returns the final image
func (w *Window) Render(ctx context.Context) (*image.NRGBA, error) {
	ss := max(1, w.Supersample)
	fw, fh := w.Width*ss, w.Height*ss
	fb := newFrameBuffer(fw, fh)

	rects := make([]image.Rectangle, len(w.renderers))
	for i, r := range w.renderers {
		rects[i] = r.pixelRect(fw, fh)
	}

	if overlapping(rects) {
		for i, r := range w.renderers {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r.draw(fb, rects[i], ss)
		}
	} else {
		g, ctx := errgroup.WithContext(ctx)
		for i, r := range w.renderers {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				r.draw(fb, rects[i], ss)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	full := fb.image()
	if ss == 1 {
		return full, nil
	}
	out := image.NewNRGBA(image.Rect(0, 0, w.Width, w.Height))
	xdraw.CatmullRom.Scale(out, out.Bounds(), full, full.Bounds(), xdraw.Src, nil)
	return out, nil
}

func overlapping(rects []image.Rectangle) bool {
	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			if rects[i].Overlaps(rects[j]) {
				return true
			}
		}
	}
	return false
}
