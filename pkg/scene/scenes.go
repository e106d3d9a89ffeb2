package scene

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"kneeviz/pkg/config"
	"kneeviz/pkg/mesh"
	"kneeviz/pkg/render"
)

// ErrUnknownScene is returned by Build for names not in Names
var ErrUnknownScene = errors.New("unknown scene")

// Names lists the scenes Build accepts
var Names = []string{"surfaces", "clipped", "transparent", "tubes", "distance", "quad"}

const (
	transparentSkinOpacity = 0.5
	sphereResolution       = 32
)

// quadViewports are the quadrants of the comparison layout in the order
// top-left, top-right, bottom-left, bottom-right
var quadViewports = [4][4]float64{
	{0, 0.5, 0.5, 1},
	{0.5, 0.5, 1, 1},
	{0, 0, 0.5, 0.5},
	{0.5, 0, 1, 0.5},
}

type rendererFunc func(p *Pipeline, ctx context.Context) (*render.Renderer, error)

var builders = map[string]rendererFunc{
	"surfaces":    (*Pipeline).surfacesRenderer,
	"clipped":     (*Pipeline).clippedRenderer,
	"transparent": (*Pipeline).transparentRenderer,
	"tubes":       (*Pipeline).tubesRenderer,
	"distance":    (*Pipeline).distanceRenderer,
}

// Build assembles the named scene into a window ready to render
func (p *Pipeline) Build(ctx context.Context, name string) (*render.Window, error) {
	rc := p.cfg.Render
	win := render.NewWindow(rc.Width, rc.Height)
	win.Supersample = rc.Supersample

	if name == "quad" {
		return p.buildQuad(ctx, win)
	}
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownScene, name)
	}
	r, err := build(p, ctx)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", name, err)
	}
	p.setupCamera(r)
	win.AddRenderer(r)
	p.logger.Debug("scene built", zap.String("scene", name), zap.Int("actors", len(r.Actors())))
	return win, nil
}

// buildQuad places four scenes in the quadrants of one window. All four
// share one camera framed on the first scene.
func (p *Pipeline) buildQuad(ctx context.Context, win *render.Window) (*render.Window, error) {
	order := []string{"clipped", "transparent", "tubes", "distance"}
	var camera *render.Camera
	for i, name := range order {
		r, err := builders[name](p, ctx)
		if err != nil {
			return nil, fmt.Errorf("scene quad/%s: %w", name, err)
		}
		r.Viewport = quadViewports[i]
		if camera == nil {
			p.setupCamera(r)
			camera = r.Camera
		}
		r.Camera = camera
		win.AddRenderer(r)
	}
	return win, nil
}

// setupCamera applies the configured view and frames the renderer's actors
func (p *Pipeline) setupCamera(r *render.Renderer) {
	cc := p.cfg.Render.Camera
	cam := render.NewCamera()
	cam.FocalPoint = vec(cc.FocalPoint)
	cam.Position = vec(cc.Position)
	cam.ViewUp = vec(cc.ViewUp)
	if cc.ViewAngle > 0 {
		cam.ViewAngle = cc.ViewAngle
	}
	cam.Azimuth(cc.Azimuth)
	if cc.Elevation != 0 {
		cam.Elevation(cc.Elevation)
	}
	if cc.Roll != 0 {
		cam.Roll(cc.Roll)
	}
	cam.OrthogonalizeViewUp()
	r.Camera = cam
	r.ResetCamera()
	cam.Dolly(cc.Dolly)
}

func (p *Pipeline) newRenderer() (*render.Renderer, error) {
	r := render.NewRenderer()
	bg, err := render.ParseColor(p.cfg.Render.Background)
	if err != nil {
		return nil, fmt.Errorf("background: %w", err)
	}
	r.Background = bg
	return r, nil
}

// surfacesRenderer shows bone, skin and the outline of the volume
func (p *Pipeline) surfacesRenderer(ctx context.Context) (*render.Renderer, error) {
	s, err := p.Surfaces(ctx)
	if err != nil {
		return nil, err
	}
	r, err := p.newRenderer()
	if err != nil {
		return nil, err
	}
	bone, err := materialActor(s.Bone, p.cfg.Surfaces.Bone)
	if err != nil {
		return nil, fmt.Errorf("bone: %w", err)
	}
	skin, err := materialActor(s.Skin, p.cfg.Surfaces.Skin)
	if err != nil {
		return nil, fmt.Errorf("skin: %w", err)
	}
	r.AddActor(bone)
	r.AddActor(skin)
	return r, p.addOutline(ctx, r)
}

// clippedRenderer shows bone inside the skin with a spherical window cut
// out of it; the clip sphere is drawn translucent
func (p *Pipeline) clippedRenderer(ctx context.Context) (*render.Renderer, error) {
	s, err := p.Surfaces(ctx)
	if err != nil {
		return nil, err
	}
	clipped, err := p.ClippedSkin(ctx)
	if err != nil {
		return nil, err
	}
	sphere, err := p.ClipSphere(ctx)
	if err != nil {
		return nil, err
	}
	r, err := p.newRenderer()
	if err != nil {
		return nil, err
	}

	bone, err := materialActor(s.Bone, p.cfg.Surfaces.Bone)
	if err != nil {
		return nil, fmt.Errorf("bone: %w", err)
	}
	skin, err := materialActor(clipped, p.cfg.Surfaces.Skin)
	if err != nil {
		return nil, fmt.Errorf("skin: %w", err)
	}
	back, err := render.ParseColor(p.cfg.Surfaces.BackfaceColor)
	if err != nil {
		return nil, fmt.Errorf("backface: %w", err)
	}
	skin.Property.BackfaceColor = &back

	ball := render.NewActor(mesh.SphereSource(sphere, sphereResolution, sphereResolution/2))
	ball.Property.Color = skin.Property.Color
	ball.Property.Opacity = p.cfg.Clip.SphereOpacity

	r.AddActor(bone)
	r.AddActor(skin)
	r.AddActor(ball)
	return r, p.addOutline(ctx, r)
}

// transparentRenderer shows bone through a translucent skin whose inner
// faces are tinted
func (p *Pipeline) transparentRenderer(ctx context.Context) (*render.Renderer, error) {
	s, err := p.Surfaces(ctx)
	if err != nil {
		return nil, err
	}
	r, err := p.newRenderer()
	if err != nil {
		return nil, err
	}
	bone, err := materialActor(s.Bone, p.cfg.Surfaces.Bone)
	if err != nil {
		return nil, fmt.Errorf("bone: %w", err)
	}
	skin, err := materialActor(s.Skin, p.cfg.Surfaces.Skin)
	if err != nil {
		return nil, fmt.Errorf("skin: %w", err)
	}
	back, err := render.ParseColor(p.cfg.Surfaces.BackfaceColor)
	if err != nil {
		return nil, fmt.Errorf("backface: %w", err)
	}
	skin.Property.BackfaceColor = &back
	skin.Property.Opacity = transparentSkinOpacity

	r.AddActor(bone)
	r.AddActor(skin)
	return r, p.addOutline(ctx, r)
}

// tubesRenderer shows bone inside rings cut from the skin
func (p *Pipeline) tubesRenderer(ctx context.Context) (*render.Renderer, error) {
	s, err := p.Surfaces(ctx)
	if err != nil {
		return nil, err
	}
	rings, err := p.Rings(ctx)
	if err != nil {
		return nil, err
	}
	r, err := p.newRenderer()
	if err != nil {
		return nil, err
	}
	bone, err := materialActor(s.Bone, p.cfg.Surfaces.Bone)
	if err != nil {
		return nil, fmt.Errorf("bone: %w", err)
	}
	tubeMaterial := p.cfg.Surfaces.Skin
	tubeMaterial.Color = p.cfg.Tubes.Color
	tubeMaterial.Opacity = 1
	tubes, err := materialActor(rings, tubeMaterial)
	if err != nil {
		return nil, fmt.Errorf("tubes: %w", err)
	}
	r.AddActor(bone)
	r.AddActor(tubes)
	return r, p.addOutline(ctx, r)
}

// distanceRenderer colours the bone by its distance to the skin
func (p *Pipeline) distanceRenderer(ctx context.Context) (*render.Renderer, error) {
	d, err := p.Distance(ctx)
	if err != nil {
		return nil, err
	}
	r, err := p.newRenderer()
	if err != nil {
		return nil, err
	}
	bone, err := materialActor(d.Mesh, p.cfg.Surfaces.Bone)
	if err != nil {
		return nil, fmt.Errorf("bone: %w", err)
	}
	bone.LUT = render.NewLookupTable(d.Range)
	bone.ScalarVisibility = true
	r.AddActor(bone)
	return r, p.addOutline(ctx, r)
}

func (p *Pipeline) addOutline(ctx context.Context, r *render.Renderer) error {
	outline, err := p.Outline(ctx)
	if err != nil {
		return err
	}
	c, err := render.ParseColor(p.cfg.Surfaces.OutlineColor)
	if err != nil {
		return fmt.Errorf("outline: %w", err)
	}
	a := render.NewActor(outline)
	a.Property.Color = c
	r.AddActor(a)
	return nil
}

// materialActor returns an actor for m shaded with the configured material
func materialActor(m *mesh.Mesh, mat config.Material) (*render.Actor, error) {
	c, err := render.ParseColor(mat.Color)
	if err != nil {
		return nil, err
	}
	a := render.NewActor(m)
	a.Property.Color = c
	a.Property.Diffuse = mat.Diffuse
	a.Property.Specular = mat.Specular
	a.Property.SpecularPower = mat.SpecularPower
	if mat.Opacity > 0 {
		a.Property.Opacity = mat.Opacity
	}
	return a, nil
}

func vec(v config.Vec3) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}
