// Package config provides configuration loading and management for kneeviz.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Vec3 is a point or direction written as a three element YAML list
type Vec3 [3]float64

// Material describes how a surface is shaded
type Material struct {
	// Color is an SVG colour name or a #rrggbb triplet
	Color         string  `yaml:"color"`
	Diffuse       float64 `yaml:"diffuse"`
	Specular      float64 `yaml:"specular"`
	SpecularPower float64 `yaml:"specularPower"`
	Opacity       float64 `yaml:"opacity"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Input parameters
	Input struct {
		// SLCFile is the knee scan read unless Phantom is set
		SLCFile string `yaml:"slcFile"`

		// Phantom enables the synthetic knee volume instead of SLCFile
		Phantom bool `yaml:"phantom"`

		// PhantomSize is the edge length in voxels of the synthetic volume
		PhantomSize int `yaml:"phantomSize"`
	} `yaml:"input"`

	// Surface extraction and shading
	Surfaces struct {
		BoneIso float64 `yaml:"boneIso"`
		SkinIso float64 `yaml:"skinIso"`

		Bone Material `yaml:"bone"`
		Skin Material `yaml:"skin"`

		// BackfaceColor colours the inside of the translucent skin
		BackfaceColor string `yaml:"backfaceColor"`

		// OutlineColor is used for the bounding box
		OutlineColor string `yaml:"outlineColor"`
	} `yaml:"surfaces"`

	// Clipping sphere applied to the skin. Center is relative to the volume
	// bounds (0 to 1 per axis) and Radius is a fraction of the largest extent.
	Clip struct {
		Center Vec3    `yaml:"center"`
		Radius float64 `yaml:"radius"`

		// SphereOpacity of the clipping sphere drawn over the cut
		SphereOpacity float64 `yaml:"sphereOpacity"`
	} `yaml:"clip"`

	// Skin rings rendered as tubes
	Tubes struct {
		// Normal of the cutting planes
		Normal Vec3 `yaml:"normal"`

		// Spacing between consecutive rings in world units
		Spacing float64 `yaml:"spacing"`

		Radius float64 `yaml:"radius"`
		Sides  int     `yaml:"sides"`
		Color  string  `yaml:"color"`
	} `yaml:"tubes"`

	// Bone to skin distance
	Distance struct {
		// Threshold drops bone cells farther than this from the skin
		Threshold float64 `yaml:"threshold"`

		// CacheDir holds the distance mesh and its scalar range
		CacheDir string `yaml:"cacheDir"`

		// CacheName is the base file name inside CacheDir
		CacheName string `yaml:"cacheName"`
	} `yaml:"distance"`

	// Render window parameters
	Render struct {
		Width       int    `yaml:"width"`
		Height      int    `yaml:"height"`
		Supersample int    `yaml:"supersample"`
		Background  string `yaml:"background"`

		Camera struct {
			FocalPoint Vec3    `yaml:"focalPoint"`
			Position   Vec3    `yaml:"position"`
			ViewUp     Vec3    `yaml:"viewUp"`
			Azimuth    float64 `yaml:"azimuth"`
			Elevation  float64 `yaml:"elevation"`
			ViewAngle  float64 `yaml:"viewAngle"`
			Roll       float64 `yaml:"roll"`

			// Dolly above one moves the framed camera closer
			Dolly float64 `yaml:"dolly"`
		} `yaml:"camera"`
	} `yaml:"render"`

	// Processing parameters
	Processing struct {
		// Workers specifies how many goroutines the parallel filters use
		Workers int `yaml:"workers"`
	} `yaml:"processing"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Input.SLCFile = "vw_knee.slc"
	cfg.Input.Phantom = false
	cfg.Input.PhantomSize = 64

	ivory := Material{
		Color:         "Ivory",
		Diffuse:       0.8,
		Specular:      0.8,
		SpecularPower: 120,
		Opacity:       1,
	}
	cfg.Surfaces.BoneIso = 72
	cfg.Surfaces.SkinIso = 50
	cfg.Surfaces.Bone = ivory
	cfg.Surfaces.Skin = ivory
	cfg.Surfaces.BackfaceColor = "Tomato"
	cfg.Surfaces.OutlineColor = "White"

	cfg.Clip.Center = Vec3{0.5, 0.1, 0.5}
	cfg.Clip.Radius = 0.3
	cfg.Clip.SphereOpacity = 0.3

	cfg.Tubes.Normal = Vec3{0, 0, 1}
	cfg.Tubes.Spacing = 8
	cfg.Tubes.Radius = 0.8
	cfg.Tubes.Sides = 8
	cfg.Tubes.Color = "Ivory"

	cfg.Distance.Threshold = 50
	cfg.Distance.CacheDir = "cache"
	cfg.Distance.CacheName = "bone_distance"

	cfg.Render.Width = 640
	cfg.Render.Height = 512
	cfg.Render.Supersample = 2
	cfg.Render.Background = "SlateGray"
	cfg.Render.Camera.FocalPoint = Vec3{0, 0, 0}
	cfg.Render.Camera.Position = Vec3{0, -1, 0}
	cfg.Render.Camera.ViewUp = Vec3{0, 0, -1}
	cfg.Render.Camera.Azimuth = -90
	cfg.Render.Camera.ViewAngle = 30
	cfg.Render.Camera.Dolly = 1

	cfg.Processing.Workers = runtime.NumCPU() // Use all available cores by default

	return cfg
}

// Validate reports the first setting that cannot be used
func (c *Config) Validate() error {
	switch {
	case c.Render.Width <= 0 || c.Render.Height <= 0:
		return fmt.Errorf("invalid window size %dx%d", c.Render.Width, c.Render.Height)
	case c.Render.Supersample < 1:
		return fmt.Errorf("supersample must be at least 1, got %d", c.Render.Supersample)
	case c.Render.Camera.Dolly <= 0:
		return fmt.Errorf("camera dolly must be positive, got %g", c.Render.Camera.Dolly)
	case c.Clip.Radius <= 0:
		return fmt.Errorf("clip radius must be positive, got %g", c.Clip.Radius)
	case c.Tubes.Spacing <= 0:
		return fmt.Errorf("tube spacing must be positive, got %g", c.Tubes.Spacing)
	case c.Tubes.Sides < 3:
		return fmt.Errorf("tubes need at least 3 sides, got %d", c.Tubes.Sides)
	case c.Distance.CacheName == "":
		return fmt.Errorf("distance cache name is empty")
	case c.Processing.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", c.Processing.Workers)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
