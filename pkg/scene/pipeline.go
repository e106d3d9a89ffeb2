// Package scene wires the knee processing graph and assembles the render
// scenes built from it.
//
// A Pipeline evaluates its nodes lazily: asking for the distance mesh reads
// the volume, contours bone and skin and computes distances, while asking
// for the outline only reads the volume. Each node is computed at most once
// per Pipeline.
package scene

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"kneeviz/internal/models"
	"kneeviz/internal/phantom"
	"kneeviz/pkg/cache"
	"kneeviz/pkg/config"
	"kneeviz/pkg/contour"
	"kneeviz/pkg/mesh"
	"kneeviz/pkg/slc"
)

// node memoises the first successful result of build
type node[T any] struct {
	mu    sync.Mutex
	done  bool
	value T
}

func (n *node[T]) get(ctx context.Context, build func(context.Context) (T, error)) (T, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.done {
		return n.value, nil
	}
	v, err := build(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	n.value, n.done = v, true
	return v, nil
}

// Surfaces holds the two contours of the knee
type Surfaces struct {
	Bone *mesh.Mesh
	Skin *mesh.Mesh
}

// DistanceResult is the bone surface with point scalars holding the
// distance to the skin, and the range of those scalars
type DistanceResult struct {
	Mesh  *mesh.Mesh
	Range [2]float64
	// Cached reports whether the result was read from disk
	Cached bool
}

// Pipeline is the lazily evaluated knee processing graph
type Pipeline struct {
	cfg    *config.Config
	logger *zap.Logger
	cache  *cache.Cache

	volume   node[*models.Volume]
	surfaces node[Surfaces]
	distance node[DistanceResult]
	clipped  node[*mesh.Mesh]
	rings    node[*mesh.Mesh]
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger; the default discards everything
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithVolume uses vol instead of reading the configured input
func WithVolume(vol *models.Volume) Option {
	return func(p *Pipeline) {
		p.volume.value, p.volume.done = vol, true
	}
}

// NewPipeline creates a pipeline for cfg
func NewPipeline(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	p.cache = cache.New(cfg.Distance.CacheDir, cfg.Distance.CacheName, p.logger.Named("cache"))
	return p
}

// Config returns the configuration the pipeline was built with
func (p *Pipeline) Config() *config.Config { return p.cfg }

// Cache returns the on-disk cache of the distance node
func (p *Pipeline) Cache() *cache.Cache { return p.cache }

// Volume returns the scan, reading it on first use
func (p *Pipeline) Volume(ctx context.Context) (*models.Volume, error) {
	return p.volume.get(ctx, func(context.Context) (*models.Volume, error) {
		in := p.cfg.Input
		if in.Phantom {
			n := max(in.PhantomSize, 8)
			p.logger.Info("using synthetic knee volume", zap.Int("size", n))
			return phantom.Knee(n, n, n), nil
		}

		start := time.Now()
		vol, err := slc.ReadFile(in.SLCFile)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("input volume %s not found (set input.phantom to use a synthetic knee): %w", in.SLCFile, err)
			}
			return nil, err
		}
		p.logger.Info("volume loaded",
			zap.String("file", in.SLCFile),
			zap.Ints("dims", []int{vol.Width, vol.Height, vol.Depth}),
			zap.Duration("elapsed", time.Since(start)))
		return vol, nil
	})
}

// Surfaces contours bone and skin concurrently
func (p *Pipeline) Surfaces(ctx context.Context) (Surfaces, error) {
	return p.surfaces.get(ctx, func(ctx context.Context) (Surfaces, error) {
		vol, err := p.Volume(ctx)
		if err != nil {
			return Surfaces{}, err
		}
		start := time.Now()
		s := p.cfg.Surfaces
		meshes, err := contour.ExtractAll(ctx, vol, p.cfg.Processing.Workers, s.BoneIso, s.SkinIso)
		if err != nil {
			return Surfaces{}, fmt.Errorf("extract surfaces: %w", err)
		}
		p.logger.Info("surfaces extracted",
			zap.Int("boneTriangles", len(meshes[0].Triangles)),
			zap.Int("skinTriangles", len(meshes[1].Triangles)),
			zap.Duration("elapsed", time.Since(start)))
		return Surfaces{Bone: meshes[0], Skin: meshes[1]}, nil
	})
}

// Outline returns the bounding box of the volume as line cells
func (p *Pipeline) Outline(ctx context.Context) (*mesh.Mesh, error) {
	vol, err := p.Volume(ctx)
	if err != nil {
		return nil, err
	}
	return mesh.Outline(vol.Bounds()), nil
}

// ClipSphere returns the configured clip sphere in world coordinates
func (p *Pipeline) ClipSphere(ctx context.Context) (mesh.Sphere, error) {
	vol, err := p.Volume(ctx)
	if err != nil {
		return mesh.Sphere{}, err
	}
	b := vol.Bounds()
	size := r3.Sub(b.Max, b.Min)
	c := p.cfg.Clip.Center
	return mesh.Sphere{
		Center: r3.Vec{
			X: b.Min.X + c[0]*size.X,
			Y: b.Min.Y + c[1]*size.Y,
			Z: b.Min.Z + c[2]*size.Z,
		},
		Radius: p.cfg.Clip.Radius * math.Max(size.X, math.Max(size.Y, size.Z)),
	}, nil
}

// ClippedSkin returns the skin with the inside of the clip sphere removed
func (p *Pipeline) ClippedSkin(ctx context.Context) (*mesh.Mesh, error) {
	return p.clipped.get(ctx, func(ctx context.Context) (*mesh.Mesh, error) {
		s, err := p.Surfaces(ctx)
		if err != nil {
			return nil, err
		}
		sphere, err := p.ClipSphere(ctx)
		if err != nil {
			return nil, err
		}
		out := mesh.Clip(s.Skin, sphere, false)
		p.logger.Debug("skin clipped",
			zap.Float64("radius", sphere.Radius),
			zap.Int("triangles", len(out.Triangles)))
		return out, nil
	})
}

// Rings cuts the skin with evenly spaced planes and wraps the cuts in tubes
func (p *Pipeline) Rings(ctx context.Context) (*mesh.Mesh, error) {
	return p.rings.get(ctx, func(ctx context.Context) (*mesh.Mesh, error) {
		s, err := p.Surfaces(ctx)
		if err != nil {
			return nil, err
		}
		vol, err := p.Volume(ctx)
		if err != nil {
			return nil, err
		}
		t := p.cfg.Tubes
		b := vol.Bounds()
		center := r3.Scale(0.5, r3.Add(b.Min, b.Max))
		normal := r3.Vec{X: t.Normal[0], Y: t.Normal[1], Z: t.Normal[2]}
		if r3.Norm(normal) == 0 {
			return nil, fmt.Errorf("tube plane normal is zero")
		}

		lines := mesh.Strip(mesh.CutSeries(s.Skin, center, normal, t.Spacing))
		tubes := mesh.Tube(lines, t.Radius, t.Sides)
		p.logger.Debug("skin rings built",
			zap.Int("polylines", len(lines.Lines)),
			zap.Int("triangles", len(tubes.Triangles)))
		return tubes, nil
	})
}

// Distance returns the bone surface coloured by distance to the skin. The
// result comes from the cache when both cache files exist; otherwise it is
// computed and written to the cache.
func (p *Pipeline) Distance(ctx context.Context) (DistanceResult, error) {
	return p.distance.get(ctx, func(ctx context.Context) (DistanceResult, error) {
		m, r, hit, err := p.cache.LoadOrCompute(ctx, p.computeDistance)
		if err != nil {
			return DistanceResult{}, fmt.Errorf("bone distance: %w", err)
		}
		return DistanceResult{Mesh: m, Range: r, Cached: hit}, nil
	})
}

func (p *Pipeline) computeDistance(ctx context.Context) (*mesh.Mesh, [2]float64, error) {
	s, err := p.Surfaces(ctx)
	if err != nil {
		return nil, [2]float64{}, err
	}

	start := time.Now()
	dist, err := mesh.Distance(ctx, s.Bone, s.Skin, p.cfg.Processing.Workers)
	if err != nil {
		return nil, [2]float64{}, err
	}

	// bridge cells far from the skin are contouring artefacts
	kept, err := mesh.Threshold(dist, 0, p.cfg.Distance.Threshold)
	if err != nil {
		return nil, [2]float64{}, err
	}
	r, err := kept.ScalarRange()
	if err != nil {
		return nil, [2]float64{}, fmt.Errorf("no bone cells within %g of the skin: %w", p.cfg.Distance.Threshold, err)
	}

	p.logger.Info("bone distance computed",
		zap.Int("points", kept.NumPoints()),
		zap.Int("cells", kept.NumCells()),
		zap.Int("droppedCells", dist.NumCells()-kept.NumCells()),
		zap.Float64s("range", r[:]),
		zap.Duration("elapsed", time.Since(start)))
	return kept, r, nil
}
