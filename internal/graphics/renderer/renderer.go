package renderer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"renderstar/internal/graphics"
	"renderstar/internal/profiling"

	"github.com/go-gl/mathgl/mgl32"
)

// State is the renderer lifecycle position
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateCleanedUp
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateCleanedUp:
		return "cleaned up"
	}
	return "unknown"
}

// ErrNotInitialized is returned by frame operations outside the Initialized state
var ErrNotInitialized = errors.New("renderer: not initialized")

// InitError reports the step that stopped Initialize
type InitError struct {
	Step string
	Err  error
}

func (e *InitError) Error() string { return "renderer: " + e.Step + ": " + e.Err.Error() }
func (e *InitError) Unwrap() error { return e.Err }

// Options configures the renderer
type Options struct {
	// BufferCount is the swapchain length; 3 gives triple buffering
	BufferCount int
	// SyncInterval is passed to Present; 1 waits for the next vblank
	SyncInterval int
	ClearColor   mgl32.Vec4
	Logger       *slog.Logger
}

// DefaultOptions returns triple buffering, vsync and a sky-blue clear colour
func DefaultOptions() Options {
	return Options{
		BufferCount:  3,
		SyncInterval: 1,
		ClearColor:   mgl32.Vec4{0.53, 0.81, 0.92, 1.0},
	}
}

// Renderer owns the device, swapchain and render target and brackets each
// frame. A single mutex guards all device access: the update thread calls
// PreRender/PostRender while the event thread calls Resize.
type Renderer struct {
	mu     sync.Mutex
	device graphics.Device
	opts   Options
	state  State
	width  int
	height int

	// hasTarget is false while a failed resize left no render target
	hasTarget bool

	softErrors atomic.Uint64
	onError    func(error)
	log        *slog.Logger
}

// New creates an uninitialized renderer driving device
func New(device graphics.Device, opts Options) *Renderer {
	if opts.BufferCount <= 0 {
		opts.BufferCount = 3
	}
	if opts.SyncInterval < 0 {
		opts.SyncInterval = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		device: device,
		opts:   opts,
		log:    logger.With("component", "renderer"),
	}
}

// OnError registers a callback for soft errors (failed resize, failed
// present). It runs with the renderer lock held and must not call back into
// the renderer.
func (r *Renderer) OnError(fn func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = fn
}

// SoftErrors counts non-fatal failures since creation
func (r *Renderer) SoftErrors() uint64 { return r.softErrors.Load() }

func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Size returns the current swapchain size
func (r *Renderer) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *Renderer) soft(op string, err error) error {
	err = fmt.Errorf("renderer: %s: %w", op, err)
	r.softErrors.Add(1)
	r.log.Warn("frame operation failed", "op", op, "error", err)
	if r.onError != nil {
		r.onError(err)
	}
	return err
}

// Initialize creates the device and context, the swapchain and a render
// target sized to the surface's client area. On failure everything created
// so far is released and the renderer stays Uninitialized.
func (r *Renderer) Initialize(surface graphics.Surface) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateUninitialized {
		return fmt.Errorf("renderer: initialize in state %s", r.state)
	}

	width, height := surface.ClientSize()
	if err := r.device.CreateDevice(surface); err != nil {
		r.log.Error("device creation failed", "error", err)
		return &InitError{Step: "create device", Err: err}
	}
	if err := r.device.CreateSwapchain(surface, r.opts.BufferCount); err != nil {
		r.log.Error("swapchain creation failed", "error", err)
		r.device.ReleaseContext()
		r.device.ReleaseDevice()
		return &InitError{Step: "create swapchain", Err: err}
	}
	if err := r.device.CreateRenderTarget(width, height); err != nil {
		r.log.Error("render target creation failed", "error", err)
		r.device.ReleaseSwapchain()
		r.device.ReleaseContext()
		r.device.ReleaseDevice()
		return &InitError{Step: "create render target", Err: err}
	}
	r.device.SetViewport(width, height)

	r.width, r.height = width, height
	r.hasTarget = true
	r.state = StateInitialized
	r.log.Info("renderer initialized", "width", width, "height", height, "buffers", r.opts.BufferCount)
	return nil
}

// PreRender binds the render target and clears it. It must run before any
// draw call of the frame.
func (r *Renderer) PreRender() error {
	defer profiling.Track("renderer.PreRender")()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateInitialized {
		return ErrNotInitialized
	}
	if err := r.device.BindRenderTarget(); err != nil {
		return r.soft("bind render target", err)
	}
	if err := r.device.Clear(r.opts.ClearColor); err != nil {
		return r.soft("clear", err)
	}
	return nil
}

// PostRender presents the back buffer. With a sync interval of 1 this blocks
// until the next vblank.
func (r *Renderer) PostRender() error {
	defer profiling.Track("renderer.PostRender")()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateInitialized {
		return ErrNotInitialized
	}
	if err := r.device.Present(r.opts.SyncInterval); err != nil {
		return r.soft("present", err)
	}
	return nil
}

// Resize rebuilds the swapchain buffers and render target for a new client
// size. It is a no-op before Initialize and after CleanUp, and for a
// zero-area size (minimised window).
func (r *Renderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateInitialized || width <= 0 || height <= 0 {
		return nil
	}
	if width == r.width && height == r.height && r.hasTarget {
		return nil
	}

	r.device.ReleaseRenderTarget()
	r.hasTarget = false
	if err := r.device.ResizeSwapchain(width, height); err != nil {
		// the old buffers are still valid; restore a target for them
		if rtErr := r.device.CreateRenderTarget(r.width, r.height); rtErr != nil {
			err = errors.Join(err, rtErr)
		} else {
			r.hasTarget = true
		}
		return r.soft("resize swapchain", err)
	}
	// the buffers now have the new size whether or not a target follows
	r.width, r.height = width, height
	if err := r.device.CreateRenderTarget(width, height); err != nil {
		return r.soft("recreate render target", err)
	}
	r.hasTarget = true
	r.device.SetViewport(width, height)
	r.log.Debug("renderer resized", "width", width, "height", height)
	return nil
}

// CleanUp releases render target, swapchain, context and device in that
// order. Calling it again, or before Initialize, does nothing.
func (r *Renderer) CleanUp() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateInitialized {
		return
	}
	r.device.ReleaseRenderTarget()
	r.device.ReleaseSwapchain()
	r.device.ReleaseContext()
	r.device.ReleaseDevice()
	r.state = StateCleanedUp
	r.log.Info("renderer cleaned up")
}
