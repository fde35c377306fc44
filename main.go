package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/muesli/termenv"
	"golang.org/x/sync/errgroup"

	"github.com/df07/go-interactive-raytracer/pkg/config"
	"github.com/df07/go-interactive-raytracer/pkg/core"
	"github.com/df07/go-interactive-raytracer/pkg/renderer"
	"github.com/df07/go-interactive-raytracer/pkg/scene"
	"github.com/df07/go-interactive-raytracer/pkg/surface"
	"github.com/df07/go-interactive-raytracer/pkg/termview"
)

const (
	pollInterval    = 20 * time.Millisecond
	previewInterval = 250 * time.Millisecond
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses args, renders the selected scene until every row has the
// requested number of samples or the timeout passes, and saves the image
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("raytracer", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "TOML configuration file")
	sceneName := fs.String("scene", "", "Built-in scene name or YAML scene file")
	width := fs.Int("width", 0, "Image width in pixels")
	height := fs.Int("height", 0, "Image height in pixels")
	workers := fs.Int("workers", 0, "Worker threads (0 = one per CPU, minus one)")
	samples := fs.Uint("samples", 0, "Stop once every row has this many samples")
	timeout := fs.Duration("timeout", 0, "Stop after this long regardless of samples")
	format := fs.String("format", "", "Output format: png or bmp")
	outputDir := fs.String("output", "", "Output directory")
	preview := fs.Bool("preview", false, "Show progress in the terminal")
	listScenes := fs.Bool("list", false, "List available scenes and exit")
	verbose := fs.Bool("verbose", false, "Log engine lifecycle events")
	serial := fs.Bool("serial", false, "Render passes on the calling goroutine instead of worker threads (reproducible output)")

	fs.Usage = func() {
		fmt.Fprintln(stderr, "Interactive Raytracer")
		fmt.Fprintln(stderr, "Usage: raytracer [options]")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Options:")
		fs.PrintDefaults()
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Output will be saved to <output>/<scene>/render_<timestamp>.<format>")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	core.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
	defer core.SetLogger(nil)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}

	// Flags override file values only when given
	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "scene":
			cfg.Scene.Name = *sceneName
		case "width":
			cfg.Render.Width = *width
		case "height":
			cfg.Render.Height = *height
		case "workers":
			cfg.Render.Workers = *workers
		case "samples":
			if *samples > math.MaxUint32 {
				flagErr = fmt.Errorf("%w: -samples %d exceeds %d", config.ErrInvalidConfig, *samples, uint32(math.MaxUint32))
				return
			}
			cfg.Output.Samples = uint32(*samples)
		case "timeout":
			cfg.Output.Timeout = config.Duration{Duration: *timeout}
		case "format":
			cfg.Output.Format = *format
		case "output":
			cfg.Output.Dir = *outputDir
		case "preview":
			cfg.Output.Preview = *preview
		}
	})
	if flagErr != nil {
		return flagErr
	}
	if err := cfg.ExpandPaths(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if *listScenes {
		return printScenes(stdout, cfg.Scene.Dir)
	}

	sc, err := scene.Resolve(cfg.Scene.Name)
	if err != nil {
		return err
	}
	outFormat, err := surface.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	engineCfg := cfg.Render.EngineConfig()
	engineCfg.Camera = &sc.Camera
	engineCfg.Sky = sc.Sky
	engineCfg.StartPaused = *serial

	fmt.Fprintf(stdout, "Rendering %s at %dx%d...\n", sc.Name, cfg.Render.Width, cfg.Render.Height)

	startTime := time.Now()
	engine, err := renderer.NewEngine(sc.Root, engineCfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	var p *termview.Preview
	if cfg.Output.Preview {
		p = termview.NewPreview(stdout, cfg.Output.PreviewColumns)
	}

	stats, err := render(ctx, engine, cfg.Output, p, *serial)
	if err != nil {
		return err
	}
	// Stop the workers before the final snapshot
	engine.Pause()
	renderTime := time.Since(startTime)

	switch {
	case ctx.Err() != nil:
		fmt.Fprintln(stdout, "Interrupted, saving partial render")
	case !stats.Converged(cfg.Output.Samples):
		fmt.Fprintf(stdout, "Timed out after %v\n", cfg.Output.Timeout.Duration)
	}

	fmt.Fprintf(stdout, "Render completed in %v\n", renderTime.Round(time.Millisecond))
	fmt.Fprintf(stdout, "Samples per pixel: %.1f (range %d - %d)\n",
		stats.AverageSamples, stats.MinSamples, stats.MaxSamples)

	filename, err := save(engine.Image(), cfg.Output.Dir, sc.Name, outFormat, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Render saved as %s\n", filename)
	return nil
}

// render waits for convergence, drawing the terminal preview when p is set.
// With serial the engine must be paused; passes then run one at a time here.
// It returns early without error when ctx is cancelled or the timeout passes.
func render(ctx context.Context, engine *renderer.Engine, out config.OutputConfig, p *termview.Preview, serial bool) (renderer.RenderStats, error) {
	ctx, cancel := context.WithTimeout(ctx, out.Timeout.Duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	if serial {
		g.Go(func() error {
			defer cancel()
			for ctx.Err() == nil && !engine.Stats().Converged(out.Samples) {
				if err := engine.RenderPass(); err != nil {
					return err
				}
			}
			return nil
		})
	} else {
		g.Go(func() error {
			defer cancel()
			waitConverged(ctx, engine, out.Samples)
			return nil
		})
	}
	if p != nil {
		g.Go(func() error {
			ticker := time.NewTicker(previewInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return p.Draw(engine.Image(), status(engine.Stats(), out.Samples))
				case <-ticker.C:
					if err := p.Draw(engine.Image(), status(engine.Stats(), out.Samples)); err != nil {
						return err
					}
				}
			}
		})
	}

	err := g.Wait()
	return engine.Stats(), err
}

// waitConverged polls the engine until every row holds target samples
func waitConverged(ctx context.Context, engine *renderer.Engine, target uint32) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if engine.Stats().Converged(target) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func status(stats renderer.RenderStats, target uint32) string {
	return fmt.Sprintf("%dx%d  samples %d/%d  avg %.1f  workers %d",
		stats.Width, stats.Height, stats.MinSamples, target, stats.AverageSamples, stats.Workers)
}

// save writes img to <dir>/<sceneName>/render_<timestamp>.<ext>
func save(img *surface.BGRX, dir, sceneName string, format surface.Format, now time.Time) (string, error) {
	outputDir := filepath.Join(dir, filepath.Base(sceneName))
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := now.Format("20060102_150405")
	filename := filepath.Join(outputDir, "render_"+timestamp+format.Extension())

	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if err := surface.Encode(file, img, format); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to save %s: %w", format, err)
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	return filename, nil
}

// printScenes lists the built-in scenes and the scene files in dir
func printScenes(w io.Writer, dir string) error {
	listing, err := scene.ListAllScenes(dir)
	if err != nil {
		return err
	}

	out := termenv.NewOutput(w)
	for _, group := range listing.Groups {
		fmt.Fprintln(w, out.String(group.Name+":").Bold())
		for _, s := range group.Scenes {
			fmt.Fprintf(w, "  %-20s %s\n", s.ID, s.Description)
		}
	}
	return nil
}
