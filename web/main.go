package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/df07/go-interactive-raytracer/pkg/config"
	"github.com/df07/go-interactive-raytracer/pkg/core"
	"github.com/df07/go-interactive-raytracer/pkg/renderer"
	"github.com/df07/go-interactive-raytracer/pkg/scene"
	"github.com/df07/go-interactive-raytracer/pkg/surface"
	"github.com/df07/go-interactive-raytracer/web/server"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "TOML configuration file")
	port := flag.Int("port", 0, "Port to serve on")
	sceneName := flag.String("scene", "", "Built-in scene name or YAML scene file")
	width := flag.Int("width", 0, "Initial image width")
	height := flag.Int("height", 0, "Initial image height")
	workers := flag.Int("workers", 0, "Worker threads (0 = one per CPU, minus one)")
	static := flag.String("static", "web/static", "Directory served at /")
	watch := flag.Bool("watch", false, "Reload the startup scene file when it changes, while it is selected")
	verbose := flag.Bool("verbose", false, "Log engine lifecycle events")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fatal(err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = *port
		case "scene":
			cfg.Scene.Name = *sceneName
		case "width":
			cfg.Render.Width = *width
		case "height":
			cfg.Render.Height = *height
		case "workers":
			cfg.Render.Workers = *workers
		case "watch":
			cfg.Scene.Watch = *watch
		}
	})
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	console := server.NewConsoleHandler(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		cfg.Server.ConsoleSize,
		level,
	)
	core.SetLogger(slog.New(console))

	sc, err := scene.Resolve(cfg.Scene.Name)
	if err != nil {
		fatal(err)
	}

	engineCfg := cfg.Render.EngineConfig()
	engineCfg.Camera = &sc.Camera
	engineCfg.Sky = sc.Sky
	engine, err := renderer.NewEngine(sc.Root, engineCfg)
	if err != nil {
		fatal(err)
	}
	defer engine.Close()

	frameFormat, err := surface.ParseFormat(cfg.Server.FrameFormat)
	if err != nil {
		fatal(err)
	}

	webServer := server.NewServer(engine, sc, server.Options{
		Port:        cfg.Server.Port,
		FPS:         cfg.Server.FPS,
		FrameFormat: frameFormat,
		SceneDir:    cfg.Scene.Dir,
		StaticDir:   *static,
		Console:     console,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	core.Logger().Info("Interactive Raytracer Web Server",
		"url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
		"scene", sc.Name,
		"workers", engine.Workers())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return webServer.Run(ctx)
	})
	if cfg.Scene.Watch && sc.Path != "" {
		g.Go(func() error {
			w := &scene.Watcher{
				Path: sc.Path,
				OnChange: func(updated *scene.Scene) {
					if _, err := webServer.ReloadScene(updated); err != nil {
						core.Logger().Error("failed to apply reloaded scene", "error", err)
					}
				},
			}
			return w.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		core.Logger().Error("server stopped", "error", err)
		engine.Close()
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
