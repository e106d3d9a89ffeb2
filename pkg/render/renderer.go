package render

import (
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Renderer draws a set of actors with one camera into a viewport of a
// window. The viewport is given as (xmin, ymin, xmax, ymax) in normalised
// window coordinates with the origin at the bottom left.
type Renderer struct {
	Viewport   [4]float64
	Background Color
	Camera     *Camera
	actors     []*Actor
}

// NewRenderer returns a renderer covering the whole window
func NewRenderer() *Renderer {
	return &Renderer{
		Viewport: [4]float64{0, 0, 1, 1},
		Camera:   NewCamera(),
	}
}

// AddActor adds an actor to the scene
func (r *Renderer) AddActor(a *Actor) {
	r.actors = append(r.actors, a)
}

// Actors returns the actors of the scene
func (r *Renderer) Actors() []*Actor {
	return r.actors
}

// VisibleBounds returns the union of the bounds of visible, non-empty actors
func (r *Renderer) VisibleBounds() (r3.Box, bool) {
	var box r3.Box
	found := false
	for _, a := range r.actors {
		if !a.Visible || a.Mesh == nil || a.Mesh.NumPoints() == 0 {
			continue
		}
		b := a.Mesh.Bounds()
		if !found {
			box, found = b, true
			continue
		}
		box.Min = r3.Vec{X: math.Min(box.Min.X, b.Min.X), Y: math.Min(box.Min.Y, b.Min.Y), Z: math.Min(box.Min.Z, b.Min.Z)}
		box.Max = r3.Vec{X: math.Max(box.Max.X, b.Max.X), Y: math.Max(box.Max.Y, b.Max.Y), Z: math.Max(box.Max.Z, b.Max.Z)}
	}
	return box, found
}

// ResetCamera frames all visible actors
func (r *Renderer) ResetCamera() {
	if box, ok := r.VisibleBounds(); ok {
		r.Camera.ResetCamera(box)
	}
}

// pixelRect converts the viewport to a pixel rectangle of a w*h buffer
func (r *Renderer) pixelRect(w, h int) image.Rectangle {
	x0 := int(math.Round(r.Viewport[0] * float64(w)))
	x1 := int(math.Round(r.Viewport[2] * float64(w)))
	y0 := int(math.Round((1 - r.Viewport[3]) * float64(h)))
	y1 := int(math.Round((1 - r.Viewport[1]) * float64(h)))
	return image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, w, h))
}

// projection holds the per-frame view parameters of one renderer
type projection struct {
	cam                 *Camera
	right, up, forward  r3.Vec
	focal, cx, cy, near float64
	lineScale           float64
}

func (p *projection) project(q r3.Vec) (screenVertex, bool) {
	v := p.cam.view(q, p.right, p.up, p.forward)
	if v.Z <= p.near {
		return screenVertex{}, false
	}
	return screenVertex{
		x:    p.cx + p.focal*v.X/v.Z,
		y:    p.cy - p.focal*v.Y/v.Z,
		invZ: 1 / v.Z,
	}, true
}

// translucentTri is a shaded triangle waiting for the blended pass
type translucentTri struct {
	v     [3]screenVertex
	depth float64
	alpha float64
}

// draw renders the scene into rect of fb; scale is the supersampling factor
func (r *Renderer) draw(fb *frameBuffer, rect image.Rectangle, scale int) {
	fb.clear(rect, r.Background)
	if rect.Empty() {
		return
	}
	bounds, ok := r.VisibleBounds()
	if !ok {
		return
	}

	cam := r.Camera
	right, up, forward := cam.basis()
	angle := cam.ViewAngle
	if angle <= 0 {
		angle = 30
	}
	near, _ := cam.ClippingRange(bounds)
	p := &projection{
		cam:       cam,
		right:     right,
		up:        up,
		forward:   forward,
		focal:     float64(rect.Dy()) / 2 / math.Tan(angle*math.Pi/360),
		cx:        float64(rect.Min.X) + float64(rect.Dx())/2,
		cy:        float64(rect.Min.Y) + float64(rect.Dy())/2,
		near:      near,
		lineScale: float64(scale),
	}

	var translucent []translucentTri
	for _, a := range r.actors {
		if !a.Visible || a.Mesh == nil || a.Mesh.NumPoints() == 0 {
			continue
		}
		tris := r.shadeActor(p, a)
		if a.Translucent() {
			for _, t := range tris {
				depth := 1/t[0].invZ + 1/t[1].invZ + 1/t[2].invZ
				translucent = append(translucent, translucentTri{v: t, depth: depth, alpha: a.Property.Opacity})
			}
		} else {
			for _, t := range tris {
				fb.triangle(rect, t, 1)
			}
		}
		r.drawLines(fb, rect, p, a)
	}

	// far to near
	sort.SliceStable(translucent, func(i, j int) bool {
		return translucent[i].depth > translucent[j].depth
	})
	for _, t := range translucent {
		fb.triangle(rect, t.v, t.alpha)
	}
}

// shadeActor projects and lights the triangles of an actor. Lighting is a
// headlight at the camera with two-sided Blinn-Phong terms evaluated per
// vertex.
func (r *Renderer) shadeActor(p *projection, a *Actor) [][3]screenVertex {
	m := a.Mesh
	prop := a.Property
	useScalars := a.usesScalars()
	smooth := m.HasNormals()

	projected := make([]screenVertex, len(m.Points))
	valid := make([]bool, len(m.Points))
	for i, q := range m.Points {
		projected[i], valid[i] = p.project(q)
	}

	out := make([][3]screenVertex, 0, len(m.Triangles))
	for ti, t := range m.Triangles {
		if !valid[t[0]] || !valid[t[1]] || !valid[t[2]] {
			continue
		}
		faceNormal := m.FaceNormal(ti)
		front := r3.Dot(faceNormal, r3.Sub(p.cam.Position, m.Points[t[0]])) >= 0

		var tri [3]screenVertex
		for k, idx := range t {
			base := prop.Color
			if useScalars {
				base = a.LUT.Map(m.Scalars[idx])
			}
			if !front && prop.BackfaceColor != nil {
				base = *prop.BackfaceColor
			}
			n := faceNormal
			if smooth {
				n = m.Normals[idx]
			}
			toCam := safeUnit(r3.Sub(p.cam.Position, m.Points[idx]), r3.Scale(-1, p.forward))
			tri[k] = projected[idx]
			tri[k].color = lighting(prop, base, n, toCam)
		}
		out = append(out, tri)
	}
	return out
}

func (r *Renderer) drawLines(fb *frameBuffer, rect image.Rectangle, p *projection, a *Actor) {
	m := a.Mesh
	if len(m.Lines) == 0 {
		return
	}
	useScalars := a.usesScalars()
	width := math.Max(1, a.Property.LineWidth) * p.lineScale

	for _, l := range m.Lines {
		for k := 0; k+1 < len(l); k++ {
			i, j := l[k], l[k+1]
			sa, okA := p.project(m.Points[i])
			sb, okB := p.project(m.Points[j])
			if !okA || !okB {
				continue
			}
			sa.color, sb.color = a.Property.Color, a.Property.Color
			if useScalars {
				sa.color, sb.color = a.LUT.Map(m.Scalars[i]), a.LUT.Map(m.Scalars[j])
			}
			fb.line(rect, sa, sb, width)
		}
	}
}

// lighting evaluates ambient, diffuse and specular terms for a headlight
// whose light and view directions coincide.
func lighting(p Property, base Color, normal, toCam r3.Vec) Color {
	ndl := math.Abs(r3.Dot(normal, toCam))
	c := base.Scale(p.Ambient + p.Diffuse*ndl)
	if p.Specular > 0 {
		c = c.Add(White.Scale(p.Specular * math.Pow(ndl, p.SpecularPower)))
	}
	return c
}
