package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"renderstar/internal/assets"
	"renderstar/internal/config"
	"renderstar/internal/game"
	"renderstar/internal/graphics/headless"
	"renderstar/internal/graphics/opengl"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/xlab/closer"
)

// GLFW must be driven from the main thread
func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "YAML settings file; defaults apply when empty")
	dir := flag.String("dir", ".", "directory containing the asset root")
	flag.Parse()

	settings := config.Default()
	if *configPath != "" {
		s, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		settings = s
	}
	logger := settings.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	locator := assets.Dir(*dir, settings.Assets.Root)
	if err := run(settings, locator, logger); err != nil {
		logger.Error("renderstar stopped", "error", err)
		os.Exit(1)
	}
	closer.Close()
}

// start runs the app on its own goroutine. stop cancels it and waits for
// its shutdown; it is safe to call from a signal hook and from main.
func start(app *game.App) (finished <-chan struct{}, stop func() error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var runErr error
	go func() {
		runErr = app.Run(ctx)
		close(done)
	}()
	stop = sync.OnceValue(func() error {
		cancel()
		<-done
		return runErr
	})
	closer.Bind(func() { _ = stop() })
	return done, stop
}

func run(settings config.Settings, locator assets.Locator, logger *slog.Logger) error {
	if settings.Renderer.Backend == "headless" {
		return runHeadless(settings, locator, logger)
	}

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw init: %w", err)
	}
	defer glfw.Terminate()

	backend, device, err := newBackend(settings, logger)
	if err != nil {
		return err
	}
	window, err := createWindow(settings)
	if err != nil {
		_ = backend.Close()
		return err
	}
	defer window.Destroy()
	surface := opengl.NewWindowSurface(window)

	app, err := game.New(game.Options{
		Settings: settings,
		Backend:  backend,
		Device:   device,
		Surface:  surface,
		Assets:   locator,
		Logger:   logger,
	})
	if err != nil {
		_ = backend.Close()
		return err
	}

	window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		surface.SetSize(width, height)
		app.OnResize(width, height)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	finished, stop := start(app)
	for !window.ShouldClose() {
		select {
		case <-finished:
			return stop()
		default:
		}
		glfw.WaitEventsTimeout(0.1)
	}
	return stop()
}

// runHeadless ticks the scene without a window until interrupted
func runHeadless(settings config.Settings, locator assets.Locator, logger *slog.Logger) error {
	app, err := game.New(game.Options{
		Settings: settings,
		Backend:  headless.New("glsl"),
		Device:   headless.NewDevice(),
		Surface:  headless.Surface{Width: settings.Window.Width, Height: settings.Window.Height},
		Assets:   locator,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	finished, stop := start(app)
	<-finished
	return stop()
}

func createWindow(settings config.Settings) (*glfw.Window, error) {
	if settings.Renderer.Backend == "opengl" {
		opengl.WindowHints()
	} else {
		glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	}
	resizable := glfw.False
	if settings.Window.Resizable {
		resizable = glfw.True
	}
	glfw.WindowHint(glfw.Resizable, resizable)

	window, err := glfw.CreateWindow(settings.Window.Width, settings.Window.Height, settings.Window.Title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	return window, nil
}
