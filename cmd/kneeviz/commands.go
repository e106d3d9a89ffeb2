package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kneeviz/internal/phantom"
	"kneeviz/pkg/config"
	"kneeviz/pkg/render"
	"kneeviz/pkg/scene"
	"kneeviz/pkg/slc"
	"kneeviz/pkg/stl"
	"kneeviz/pkg/visualization"
)

var (
	renderOutput string

	sliceAxes   []string
	slicesDir   string
	sliceFormat string
	sliceWindow []float64
	sliceRegion []int

	exportDir string

	phantomOutput string
	phantomSize   int
	phantomRLE    bool
)

// renderCmd renders one scene to an image file
var renderCmd = &cobra.Command{
	Use:       "render <scene>",
	Short:     "Render a scene: " + strings.Join(scene.Names, ", "),
	Args:      cobra.ExactArgs(1),
	ValidArgs: scene.Names,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		name := args[0]
		out := renderOutput
		if out == "" {
			out = name + ".png"
		}

		start := time.Now()
		p := newPipeline()
		win, err := p.Build(ctx, name)
		if err != nil {
			return err
		}
		img, err := win.Render(ctx)
		if err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		if err := render.Save(out, img); err != nil {
			return err
		}
		logger.Info("scene rendered",
			zap.String("scene", name),
			zap.String("output", out),
			zap.Duration("elapsed", time.Since(start)))
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s scene to %s\n", name, out)
		return nil
	},
}

// cacheCmd groups the distance cache operations
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the bone distance cache",
}

var cacheWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Compute the bone distance mesh and range unless already cached",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		p := newPipeline()
		d, err := p.Distance(ctx)
		if err != nil {
			return err
		}
		state := "computed"
		if d.Cached {
			state = "already cached"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Distance range [%g, %g] %s: %s, %s\n",
			d.Range[0], d.Range[1], state, p.Cache().MeshPath(), p.Cache().RangePath())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove both cache files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newPipeline().Cache()
		if err := c.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		logger.Info("cache cleared", zap.String("dir", c.Dir), zap.String("name", c.Name))
		return nil
	},
}

// infoCmd prints a summary of the input volume
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Describe the input volume",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		vol, err := newPipeline().Volume(ctx)
		if err != nil {
			return err
		}
		lo, hi := vol.ScalarRange()
		mean, std := vol.MeanStdDev()
		b := vol.Bounds()

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Dimensions: %d x %d x %d\n", vol.Width, vol.Height, vol.Depth)
		fmt.Fprintf(w, "Spacing:    %g %g %g\n", vol.Spacing.X, vol.Spacing.Y, vol.Spacing.Z)
		fmt.Fprintf(w, "Bounds:     [%g %g] [%g %g] [%g %g]\n", b.Min.X, b.Max.X, b.Min.Y, b.Max.Y, b.Min.Z, b.Max.Z)
		fmt.Fprintf(w, "Range:      %g .. %g\n", lo, hi)
		fmt.Fprintf(w, "Mean:       %.3f (std %.3f)\n", mean, std)
		fmt.Fprintf(w, "Bone (>= %g): %.2f%%\n", cfg.Surfaces.BoneIso, 100*vol.Fraction(cfg.Surfaces.BoneIso))
		fmt.Fprintf(w, "Skin (>= %g): %.2f%%\n", cfg.Surfaces.SkinIso, 100*vol.Fraction(cfg.Surfaces.SkinIso))
		return nil
	},
}

// slicesCmd exports orthogonal slices of the volume
var slicesCmd = &cobra.Command{
	Use:   "slices",
	Short: "Save axis-aligned slices of the volume as images",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		vol, err := newPipeline().Volume(ctx)
		if err != nil {
			return err
		}
		// the window defaults to the range of the whole volume, also for regions
		lo, hi := vol.ScalarRange()
		if len(sliceWindow) > 0 {
			if len(sliceWindow) != 2 || sliceWindow[0] >= sliceWindow[1] {
				return fmt.Errorf("--window needs lo,hi with lo < hi, got %v", sliceWindow)
			}
			lo, hi = sliceWindow[0], sliceWindow[1]
		}

		viewer := visualization.NewViewer(vol)
		if len(sliceRegion) > 0 {
			if len(sliceRegion) != 6 {
				return fmt.Errorf("--region needs x,y,z,width,height,depth, got %v", sliceRegion)
			}
			r := sliceRegion
			region, err := viewer.ExtractRegion(r[0], r[1], r[2], r[3], r[4], r[5])
			if err != nil {
				return fmt.Errorf("region: %w", err)
			}
			viewer = visualization.NewViewer(region)
		}
		viewer.SetWindow(lo, hi)
		viewer.Format = strings.TrimPrefix(sliceFormat, ".")
		for _, axis := range sliceAxes {
			axisDir := filepath.Join(slicesDir, axis)
			logger.Info("saving slices", zap.String("axis", axis), zap.String("dir", axisDir))
			if err := viewer.SaveSliceSequence(ctx, axis, axisDir); err != nil {
				return fmt.Errorf("save %s slices: %w", axis, err)
			}
		}
		return nil
	},
}

// exportCmd writes bone and skin surfaces as STL
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export bone and skin surfaces as binary STL",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		s, err := newPipeline().Surfaces(ctx)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(exportDir, 0755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
		outputs := []struct {
			name string
			tris []stl.Triangle
		}{
			{"bone", stl.FromMesh(s.Bone)},
			{"skin", stl.FromMesh(s.Skin)},
		}
		for _, o := range outputs {
			path := filepath.Join(exportDir, o.name+".stl")
			if err := stl.SaveToSTL(path, o.tris); err != nil {
				return fmt.Errorf("export %s: %w", o.name, err)
			}
			logger.Info("surface exported", zap.String("file", path), zap.Int("triangles", len(o.tris)))
		}
		return nil
	},
}

// phantomCmd writes the synthetic knee as an SLC file
var phantomCmd = &cobra.Command{
	Use:   "phantom",
	Short: "Write a synthetic knee volume in SLC format",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if phantomSize < 8 {
			return fmt.Errorf("phantom size must be at least 8, got %d", phantomSize)
		}
		vol := phantom.Knee(phantomSize, phantomSize, phantomSize)
		if err := slc.WriteFile(phantomOutput, vol, phantomRLE); err != nil {
			return err
		}
		logger.Info("phantom written", zap.String("file", phantomOutput), zap.Int("size", phantomSize), zap.Bool("rle", phantomRLE))
		return nil
	},
}

// configCmd groups configuration helpers
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.CreateDefaultConfigFile(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
		return nil
	},
}
