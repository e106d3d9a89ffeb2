package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"kneeviz/pkg/config"
	"kneeviz/pkg/scene"
)

var (
	// Global flags
	verbose    bool
	configPath string
	usePhantom bool
	workers    int
	timeout    time.Duration

	// Logger
	logger *zap.Logger

	// cfg is loaded once per invocation in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kneeviz",
	Short: "Render bone and skin surfaces of a knee CT scan",
	Long: `kneeviz reads a knee CT volume in SLC format, extracts bone and skin
iso-surfaces and renders them offscreen: plain surfaces, a skin clipped by a
sphere, a translucent skin, skin rings as tubes, bone coloured by distance
to the skin, and a four-viewport comparison of these views.

The bone distance mesh and its scalar range are cached on disk and reused
on later runs while both cache files exist.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		// config init replaces the file, so it must not depend on its contents
		if cmd == configInitCmd {
			return nil
		}

		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if usePhantom {
			cfg.Input.Phantom = true
		}
		if workers > 0 {
			cfg.Processing.Workers = workers
		}
		logger.Debug("configuration loaded",
			zap.String("path", configPath),
			zap.Bool("phantom", cfg.Input.Phantom),
			zap.Int("workers", cfg.Processing.Workers))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "kneeviz.yaml", "Configuration file (defaults apply when missing)")
	rootCmd.PersistentFlags().BoolVar(&usePhantom, "phantom", false, "Use the synthetic knee instead of the SLC input")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Parallel workers (default: from config)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "Operation timeout")

	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Output image, .png, .webp or .jpg (default: <scene>.png)")

	slicesCmd.Flags().StringSliceVar(&sliceAxes, "axis", []string{"x", "y", "z"}, "Axes to export")
	slicesCmd.Flags().StringVar(&slicesDir, "dir", "slices", "Directory to save extracted slices")
	slicesCmd.Flags().StringVar(&sliceFormat, "format", "png", "Slice image format: png, webp or jpg")
	slicesCmd.Flags().Float64SliceVar(&sliceWindow, "window", nil, "Values mapped to black and white as lo,hi (default: volume range)")
	slicesCmd.Flags().IntSliceVar(&sliceRegion, "region", nil, "Export only the subvolume x,y,z,width,height,depth")

	exportCmd.Flags().StringVar(&exportDir, "dir", ".", "Directory for bone.stl and skin.stl")

	phantomCmd.Flags().StringVarP(&phantomOutput, "output", "o", "knee_phantom.slc", "Output SLC file")
	phantomCmd.Flags().IntVar(&phantomSize, "size", 64, "Edge length of the volume in voxels")
	phantomCmd.Flags().BoolVar(&phantomRLE, "rle", true, "Run-length encode the slices")

	cacheCmd.AddCommand(cacheWarmCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(slicesCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(phantomCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext returns a context bounded by --timeout and cancelled on
// SIGINT or SIGTERM
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	return ctx, func() {
		stop()
		cancel()
	}
}

func newPipeline() *scene.Pipeline {
	return scene.NewPipeline(cfg, scene.WithLogger(logger))
}
