package opengl

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"renderstar/internal/graphics"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrNotGLFWSurface is returned when the surface handle is not a GLFW window
var ErrNotGLFWSurface = errors.New("opengl: surface handle is not a *glfw.Window")

// WindowHints requests the 4.1 core context the backend targets. Call it
// before glfw.CreateWindow.
func WindowHints() {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
}

// WindowSurface adapts a GLFW window to graphics.Surface. GLFW only allows
// size queries on the main thread, so the size is cached and refreshed by
// SetSize from the framebuffer size callback.
type WindowSurface struct {
	window *glfw.Window

	mu            sync.Mutex
	width, height int
}

// NewWindowSurface must be called on the main thread
func NewWindowSurface(window *glfw.Window) *WindowSurface {
	w, h := window.GetFramebufferSize()
	return &WindowSurface{window: window, width: w, height: h}
}

func (s *WindowSurface) ClientSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *WindowSurface) SetSize(width, height int) {
	s.mu.Lock()
	s.width, s.height = width, height
	s.mu.Unlock()
}

func (s *WindowSurface) Handle() any { return s.window }

// Device drives a GLFW window's context and default framebuffer. GLFW owns
// the swap chain: bufferCount is recorded but the driver decides how many
// buffers back the window. Resize and SetViewport may arrive from the event
// thread, so they only record the size; the viewport is applied on the
// render thread in BindRenderTarget.
type Device struct {
	log *slog.Logger

	window       *glfw.Window
	bufferCount  int
	syncInterval int
	width        int
	height       int
	viewport     [2]int
	dirty        bool
	hasTarget    bool
}

func NewDevice(logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{log: logger, syncInterval: -1}
}

// CreateDevice makes the window's context current on the calling thread and
// loads the GL entry points
func (d *Device) CreateDevice(surface graphics.Surface) error {
	window, ok := surface.Handle().(*glfw.Window)
	if !ok || window == nil {
		return ErrNotGLFWSurface
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		glfw.DetachCurrentContext()
		return fmt.Errorf("initialize gl: %w", err)
	}
	d.window = window
	d.log.Info("opengl context ready",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)))

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.BACK)
	gl.FrontFace(gl.CCW)
	return nil
}

func (d *Device) CreateSwapchain(surface graphics.Surface, bufferCount int) error {
	if d.window == nil {
		return errors.New("opengl: swapchain before device")
	}
	d.bufferCount = bufferCount
	d.width, d.height = surface.ClientSize()
	return nil
}

func (d *Device) CreateRenderTarget(width, height int) error {
	if d.window == nil {
		return errors.New("opengl: render target before device")
	}
	d.width, d.height = width, height
	d.hasTarget = true
	return nil
}

func (d *Device) BindRenderTarget() error {
	if !d.hasTarget {
		return errors.New("opengl: no render target")
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if d.dirty {
		gl.Viewport(0, 0, int32(d.viewport[0]), int32(d.viewport[1]))
		d.dirty = false
	}
	return nil
}

func (d *Device) Clear(color mgl32.Vec4) error {
	gl.ClearColor(color[0], color[1], color[2], color[3])
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	return nil
}

func (d *Device) Present(syncInterval int) error {
	if d.window == nil {
		return errors.New("opengl: present without device")
	}
	if syncInterval != d.syncInterval {
		glfw.SwapInterval(syncInterval)
		d.syncInterval = syncInterval
	}
	d.window.SwapBuffers()
	return nil
}

// ResizeSwapchain records the new size; GLFW has already resized the
// default framebuffer by the time the callback fires
func (d *Device) ResizeSwapchain(width, height int) error {
	if d.hasTarget {
		return errors.New("opengl: resize while render target is alive")
	}
	d.width, d.height = width, height
	return nil
}

func (d *Device) SetViewport(width, height int) {
	d.viewport = [2]int{width, height}
	d.dirty = true
}

func (d *Device) ReleaseRenderTarget() { d.hasTarget = false }
func (d *Device) ReleaseSwapchain()    { d.bufferCount = 0 }

// ReleaseContext detaches the context from the calling thread
func (d *Device) ReleaseContext() {
	if d.window != nil {
		glfw.DetachCurrentContext()
	}
}

// ReleaseDevice forgets the window; the caller owns and destroys it
func (d *Device) ReleaseDevice() {
	d.window = nil
	d.syncInterval = -1
}
