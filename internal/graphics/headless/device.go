package headless

import (
	"errors"
	"fmt"
	"sync"

	"renderstar/internal/graphics"

	"github.com/go-gl/mathgl/mgl32"
)

// Device implements graphics.Device without a display. Fail* fields inject
// errors into the matching step.
type Device struct {
	FailCreateDevice       error
	FailCreateSwapchain    error
	FailCreateRenderTarget error
	FailResize             error

	mu           sync.Mutex
	device       bool
	swapchain    bool
	renderTarget bool
	context      bool
	buffers      int
	width        int
	height       int
	viewport     [2]int
	clearColor   mgl32.Vec4
	presents     int
	calls        []string
}

func NewDevice() *Device { return &Device{} }

func (d *Device) record(call string) { d.calls = append(d.calls, call) }

// Calls returns every device call in order
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// ResetCalls forgets the recorded calls
func (d *Device) ResetCalls() {
	d.mu.Lock()
	d.calls = nil
	d.mu.Unlock()
}

func (d *Device) CreateDevice(graphics.Surface) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateDevice")
	if d.FailCreateDevice != nil {
		return d.FailCreateDevice
	}
	d.device, d.context = true, true
	return nil
}

func (d *Device) CreateSwapchain(surface graphics.Surface, bufferCount int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateSwapchain")
	if d.FailCreateSwapchain != nil {
		return d.FailCreateSwapchain
	}
	if !d.device {
		return errors.New("headless: swapchain without device")
	}
	d.swapchain = true
	d.buffers = bufferCount
	d.width, d.height = surface.ClientSize()
	return nil
}

func (d *Device) CreateRenderTarget(width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateRenderTarget")
	if d.FailCreateRenderTarget != nil {
		return d.FailCreateRenderTarget
	}
	if !d.swapchain {
		return errors.New("headless: render target without swapchain")
	}
	d.renderTarget = true
	d.width, d.height = width, height
	return nil
}

func (d *Device) BindRenderTarget() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("BindRenderTarget")
	if !d.renderTarget {
		return errors.New("headless: no render target")
	}
	return nil
}

func (d *Device) Clear(color mgl32.Vec4) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Clear")
	d.clearColor = color
	return nil
}

func (d *Device) Present(syncInterval int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(fmt.Sprintf("Present(%d)", syncInterval))
	if !d.swapchain {
		return errors.New("headless: present without swapchain")
	}
	d.presents++
	return nil
}

func (d *Device) ResizeSwapchain(width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ResizeSwapchain")
	if d.FailResize != nil {
		return d.FailResize
	}
	if d.renderTarget {
		return errors.New("headless: swapchain resized while render target alive")
	}
	d.width, d.height = width, height
	return nil
}

func (d *Device) SetViewport(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("SetViewport")
	d.viewport = [2]int{width, height}
}

func (d *Device) ReleaseRenderTarget() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ReleaseRenderTarget")
	d.renderTarget = false
}

func (d *Device) ReleaseSwapchain() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ReleaseSwapchain")
	d.swapchain = false
}

func (d *Device) ReleaseContext() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ReleaseContext")
	d.context = false
}

func (d *Device) ReleaseDevice() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ReleaseDevice")
	d.device = false
}

// Snapshot describes the device state
type Snapshot struct {
	Device, Context, Swapchain, RenderTarget bool
	BufferCount                              int
	Width, Height                            int
	Viewport                                 [2]int
	ClearColor                               mgl32.Vec4
	Presents                                 int
}

func (d *Device) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		Device:       d.device,
		Context:      d.context,
		Swapchain:    d.swapchain,
		RenderTarget: d.renderTarget,
		BufferCount:  d.buffers,
		Width:        d.width,
		Height:       d.height,
		Viewport:     d.viewport,
		ClearColor:   d.clearColor,
		Presents:     d.presents,
	}
}

// Surface is a fixed-size graphics.Surface
type Surface struct {
	Width, Height int
}

func (s Surface) ClientSize() (int, int) { return s.Width, s.Height }
func (s Surface) Handle() any            { return nil }
