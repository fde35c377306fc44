// Package config loads the TOML settings shared by the command line
// renderer and the web server.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/df07/go-interactive-raytracer/pkg/renderer"
	"github.com/df07/go-interactive-raytracer/pkg/scene"
	"github.com/df07/go-interactive-raytracer/pkg/surface"
)

// ErrInvalidConfig is returned when a setting is out of range
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the complete configuration file
type Config struct {
	Render RenderConfig `toml:"render"`
	Scene  SceneConfig  `toml:"scene"`
	Server ServerConfig `toml:"server"`
	Output OutputConfig `toml:"output"`
}

// RenderConfig sizes the engine
type RenderConfig struct {
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
	Workers    int    `toml:"workers"`     // 0 = one per CPU, minus one
	Seed       uint64 `toml:"seed"`        // Row shuffle seed
	MaxSamples uint32 `toml:"max_samples"` // Per-row count where averaging becomes a moving average
}

// SceneConfig selects what to render
type SceneConfig struct {
	Name  string `toml:"name"`  // Built-in scene name or scene file path
	Dir   string `toml:"dir"`   // Directory listed for scene files
	Watch bool   `toml:"watch"` // Reload the scene file when it changes
}

// ServerConfig configures the web presenter
type ServerConfig struct {
	Port        int    `toml:"port"`
	FPS         int    `toml:"fps"`          // Frame rate of streamed frames
	FrameFormat string `toml:"frame_format"` // png or bmp
	ConsoleSize int    `toml:"console_size"` // Log records kept for /api/console
}

// OutputConfig configures the command line renderer
type OutputConfig struct {
	Dir            string   `toml:"dir"`
	Format         string   `toml:"format"`          // png or bmp
	Samples        uint32   `toml:"samples"`         // Stop once every row has this many samples
	Timeout        Duration `toml:"timeout"`         // Stop after this long regardless
	Preview        bool     `toml:"preview"`         // Draw progress in the terminal
	PreviewColumns int      `toml:"preview_columns"` // Width of the terminal preview
}

// Duration is a time.Duration written as a string such as "30s"
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration as a Go duration string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Render: RenderConfig{
			Width:      renderer.DefaultWidth,
			Height:     renderer.DefaultHeight,
			Seed:       renderer.DefaultTaskSeed,
			MaxSamples: renderer.DefaultMaxSamples,
		},
		Scene: SceneConfig{
			Name: scene.DefaultName,
			Dir:  "scenes",
		},
		Server: ServerConfig{
			Port:        8080,
			FPS:         10,
			FrameFormat: "png",
			ConsoleSize: 200,
		},
		Output: OutputConfig{
			Dir:            "output",
			Format:         "png",
			Samples:        64,
			Timeout:        Duration{30 * time.Second},
			PreviewColumns: 80,
		},
	}
}

// Load reads path on top of the defaults. Paths may start with ~.
func Load(path string) (Config, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to expand %q: %w", path, err)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML on top of the defaults, rejects unknown keys and
// validates the result
func Parse(r io.Reader) (Config, error) {
	cfg := Default()

	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, strict.String())
		}
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.ExpandPaths(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Write encodes the configuration as TOML
func Write(w io.Writer, cfg Config) error {
	return toml.NewEncoder(w).Encode(cfg)
}

// ExpandPaths replaces a leading ~ in every path setting
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.Scene.Dir, &c.Output.Dir} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks that every setting is in range
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
		}
	}

	check(c.Render.Width >= 1 && c.Render.Height >= 1, "render size %dx%d must be at least 1x1", c.Render.Width, c.Render.Height)
	check(c.Render.Workers >= 0, "render.workers must not be negative")
	check(c.Render.MaxSamples >= 1, "render.max_samples must be at least 1")
	check(c.Scene.Name != "", "scene.name must be set")
	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port %d out of range", c.Server.Port)
	check(c.Server.FPS >= 1 && c.Server.FPS <= 120, "server.fps %d must be between 1 and 120", c.Server.FPS)
	check(c.Server.ConsoleSize >= 0, "server.console_size must not be negative")
	check(c.Output.Samples >= 1, "output.samples must be at least 1")
	check(c.Output.Samples <= c.Render.MaxSamples, "output.samples %d exceeds render.max_samples %d", c.Output.Samples, c.Render.MaxSamples)
	check(c.Output.Timeout.Duration > 0, "output.timeout must be positive")
	check(c.Output.PreviewColumns >= 2, "output.preview_columns must be at least 2")

	if _, err := surface.ParseFormat(c.Server.FrameFormat); err != nil {
		check(false, "server.frame_format: %v", err)
	}
	if _, err := surface.ParseFormat(c.Output.Format); err != nil {
		check(false, "output.format: %v", err)
	}

	return errors.Join(errs...)
}

// EngineConfig converts the render section into engine settings
func (r RenderConfig) EngineConfig() renderer.Config {
	cfg := renderer.DefaultConfig()
	cfg.Width = r.Width
	cfg.Height = r.Height
	cfg.Workers = r.Workers
	cfg.TaskSeed = r.Seed
	cfg.MaxSamples = r.MaxSamples
	return cfg
}
