package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"renderstar/internal/assets"
	"renderstar/internal/config"
	"renderstar/internal/entity"
	"renderstar/internal/graphics"
	"renderstar/internal/graphics/renderer"
	"renderstar/pkg/meshfile"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrMissingOption is returned by New without a backend, device or surface
	ErrMissingOption = errors.New("game: backend, device and surface are required")
	// ErrAlreadyRan is returned by a second call to Run
	ErrAlreadyRan = errors.New("game: app already ran")
)

// Options wires an App to a graphics API and a window
type Options struct {
	Settings config.Settings
	Backend  graphics.Backend
	Device   graphics.Device
	Surface  graphics.Surface
	Assets   assets.Locator
	Logger   *slog.Logger
}

// App is the composition root. Everything it owns is touched only from the
// update thread except the renderer, whose Resize is called by OnResize on
// the event thread.
type App struct {
	settings config.Settings
	backend  graphics.Backend
	surface  graphics.Surface
	locator  assets.Locator
	log      *slog.Logger

	manager  *entity.Manager
	renderer *renderer.Renderer
	loop     *Loop
	meshes   *meshfile.Loader
	textures *graphics.TextureCache
	shaders  map[string]*graphics.Shader

	camera  *graphics.Camera
	overlay *graphics.TextRenderer
	fontTex *graphics.Texture
	fps     fpsCounter

	setups  []func(*App) error
	running atomic.Bool
}

func New(opts Options) (*App, error) {
	if opts.Backend == nil || opts.Device == nil || opts.Surface == nil {
		return nil, ErrMissingOption
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := opts.Settings

	a := &App{
		settings: s,
		backend:  opts.Backend,
		surface:  opts.Surface,
		locator:  opts.Assets,
		log:      logger,
		manager:  entity.NewManager(logger),
		renderer: renderer.New(opts.Device, renderer.Options{
			BufferCount:  s.Renderer.BufferCount,
			SyncInterval: s.Renderer.SyncInterval,
			ClearColor:   mgl32.Vec4(s.Renderer.ClearColor),
			Logger:       logger,
		}),
		loop:     NewLoop(s.Loop.Tick.Std(), s.Loop.SlowFrame.Std(), logger),
		textures: graphics.NewTextureCache(opts.Backend, opts.Assets),
		shaders:  make(map[string]*graphics.Shader),
	}
	if fsys := opts.Assets.FS(); fsys != nil {
		a.meshes = meshfile.NewLoader(fsys, opts.Assets.AssetPath(s.Assets.Domain, ""))
	}
	return a, nil
}

func (a *App) Settings() config.Settings        { return a.settings }
func (a *App) Manager() *entity.Manager         { return a.manager }
func (a *App) Renderer() *renderer.Renderer     { return a.renderer }
func (a *App) Backend() graphics.Backend        { return a.backend }
func (a *App) Loop() *Loop                      { return a.loop }
func (a *App) Textures() *graphics.TextureCache { return a.textures }

// Camera returns the main camera; nil until Run has set the scene up
func (a *App) Camera() *graphics.Camera { return a.camera }

// Overlay returns the debug text overlay, nil when disabled or unavailable
func (a *App) Overlay() *graphics.TextRenderer { return a.overlay }

// OnSetup registers fn to run on the update thread once the renderer is
// initialized and the configured scene exists. An error aborts Run.
func (a *App) OnSetup(fn func(*App) error) {
	a.setups = append(a.setups, fn)
}

// Run initializes the renderer on the calling goroutine's OS thread, builds
// the scene and ticks until ctx is cancelled. Every resource is released
// before it returns.
func (a *App) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRan
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := a.renderer.Initialize(a.surface); err != nil {
		return err
	}
	defer a.shutdown()

	if err := a.setup(); err != nil {
		return err
	}
	a.log.Info("scene ready", "objects", a.manager.Len(), "backend", a.backend.Name())
	return a.loop.Run(ctx, a.frame)
}

func (a *App) frame(dt float64) error {
	a.manager.Update(dt)

	// soft failures are counted and logged by the renderer; skip the frame
	if err := a.renderer.PreRender(); err != nil {
		if errors.Is(err, renderer.ErrNotInitialized) {
			return err
		}
		return nil
	}
	a.manager.Render(a.camera)
	if err := a.renderer.PostRender(); errors.Is(err, renderer.ErrNotInitialized) {
		return err
	}

	if rate, ok := a.fps.tick(time.Now()); ok && a.overlay != nil {
		a.overlay.SetText(fmt.Sprintf("%d fps", rate))
	}
	return nil
}

// OnResize routes a client-area change from the event thread. The renderer
// resizes at once under its own lock; camera and overlay follow on the
// update thread. A zero size (minimised window) is ignored.
func (a *App) OnResize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	if err := a.renderer.Resize(width, height); err != nil {
		return
	}
	a.loop.Post(func() {
		if a.camera != nil {
			a.camera.SetViewport(width, height)
		}
		if a.overlay != nil {
			a.overlay.SetScreenSize(width, height)
		}
	})
}

// shutdown releases objects before the backend resources they share and
// the backend before the device whose context it needs.
func (a *App) shutdown() {
	a.manager.CleanUp()
	for name, s := range a.shaders {
		if err := s.Destroy(); err != nil {
			a.log.Warn("shader release failed", "shader", name, "error", err)
		}
	}
	clear(a.shaders)
	if err := a.textures.Close(); err != nil {
		a.log.Warn("texture release failed", "error", err)
	}
	if a.fontTex != nil {
		if err := a.fontTex.Destroy(); err != nil {
			a.log.Warn("font texture release failed", "error", err)
		}
		a.fontTex = nil
	}
	if err := a.backend.Close(); err != nil {
		a.log.Warn("backend close failed", "error", err)
	}
	a.renderer.CleanUp()
}

// fpsCounter reports the frame rate once per second
type fpsCounter struct {
	frames int
	since  time.Time
}

func (c *fpsCounter) tick(now time.Time) (int, bool) {
	if c.since.IsZero() {
		c.since = now
	}
	c.frames++
	elapsed := now.Sub(c.since)
	if elapsed < time.Second {
		return 0, false
	}
	rate := int(float64(c.frames) / elapsed.Seconds())
	c.frames, c.since = 0, now
	return rate, true
}
