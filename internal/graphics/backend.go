package graphics

import (
	"errors"
	"image"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrUnknownBuffer is returned for handles a BufferManager did not issue
	// or has already destroyed
	ErrUnknownBuffer = errors.New("graphics: unknown buffer handle")
	// ErrBufferOverflow is returned when an update does not fit the buffer
	ErrBufferOverflow = errors.New("graphics: update exceeds buffer size")
	// ErrBufferKind is returned when a buffer is bound to the wrong target
	ErrBufferKind = errors.New("graphics: buffer bound to the wrong target")
	// ErrClosed is returned by resources used after their owner was closed
	ErrClosed = errors.New("graphics: resource owner closed")
	// ErrUnknownTexture is returned for texture handles the backend did not issue
	ErrUnknownTexture = errors.New("graphics: unknown texture handle")
	// ErrUnknownProgram is returned for program handles the compiler did not issue
	ErrUnknownProgram = errors.New("graphics: unknown program handle")
	// ErrStageUnsupported is returned by compilers lacking a shader stage
	ErrStageUnsupported = errors.New("graphics: shader stage not supported by backend")
)

// BufferHandle identifies a GPU buffer owned by a BufferManager
type BufferHandle uint32

// BufferKind is the binding target a buffer was created for
type BufferKind uint8

const (
	BufferVertex BufferKind = iota
	BufferIndex
	BufferUniform
)

func (k BufferKind) String() string {
	switch k {
	case BufferVertex:
		return "vertex"
	case BufferIndex:
		return "index"
	case BufferUniform:
		return "uniform"
	}
	return "unknown"
}

// BufferManager creates, updates, binds and destroys GPU buffers for one
// backend. It owns every handle it issues: Close destroys all handles still
// alive, so no buffer outlives its manager.
type BufferManager interface {
	CreateVertexBuffer(data []byte) (BufferHandle, error)
	CreateIndexBuffer(data []byte) (BufferHandle, error)
	CreateUniformBuffer(size int) (BufferHandle, error)
	// UpdateBuffer writes data at offset; the range must lie inside the buffer
	UpdateBuffer(h BufferHandle, data []byte, offset int) error
	DestroyBuffer(h BufferHandle) error

	BindVertexBuffer(h BufferHandle) error
	BindIndexBuffer(h BufferHandle) error
	BindUniformBuffer(h BufferHandle, slot uint32) error

	BufferSize(h BufferHandle) (int, bool)
	// Live returns the number of handles not yet destroyed
	Live() int
	Close() error
}

// MeshHandle is the backend half of a Mesh
type MeshHandle interface {
	// SetVertexData replaces the vertex buffer; count is the vertex count
	SetVertexData(data []byte, count int) error
	SetIndexData(indices []uint32) error
	VertexCount() int
	IndexCount() int
	IsValid() bool
	Draw() error
	Destroy() error
}

// StageHandle identifies one compiled shader stage
type StageHandle uint32

// ProgramHandle identifies a linked set of shader stages
type ProgramHandle uint32

// ShaderCompiler turns stage sources into programs for one backend
type ShaderCompiler interface {
	// SourceExtension is the file extension of stage sources, without the dot
	SourceExtension() string
	CompileStage(stage ShaderStage, path string, source []byte) (StageHandle, error)
	// LinkProgram takes ownership of the stage handles whether or not it
	// succeeds. layout is nil when no vertex input layout applies.
	LinkProgram(stages []StageHandle, layout *VertexLayout) (ProgramHandle, error)
	// DestroyStage releases a stage that was never passed to LinkProgram
	DestroyStage(s StageHandle)
	BindProgram(p ProgramHandle) error
	DestroyProgram(p ProgramHandle) error
}

// TextureHandle identifies a GPU texture
type TextureHandle uint32

// Backend is the capability surface one graphics API provides to the
// resource layer. The entity and resource code behave the same whichever
// backend is plugged in.
type Backend interface {
	Name() string
	Buffers() BufferManager
	Shaders() ShaderCompiler
	NewMesh(layout *VertexLayout, primitive PrimitiveType) (MeshHandle, error)

	CreateTexture(img *image.RGBA) (TextureHandle, error)
	BindTexture(h TextureHandle, unit uint32) error
	DestroyTexture(h TextureHandle) error

	// Close destroys every resource the backend still owns
	Close() error
}

// Surface is the window boundary: a drawable area with a client size. The
// core never creates windows; Handle exposes the native window to the
// device that needs it.
type Surface interface {
	ClientSize() (width, height int)
	Handle() any
}

// Device is the presentation half of a backend: device, context, swapchain
// and render target. The renderer drives it and serialises every call.
type Device interface {
	// CreateDevice creates the device and its immediate context
	CreateDevice(surface Surface) error
	CreateSwapchain(surface Surface, bufferCount int) error
	CreateRenderTarget(width, height int) error
	BindRenderTarget() error
	Clear(color mgl32.Vec4) error
	// Present shows the back buffer; syncInterval 1 waits for vblank
	Present(syncInterval int) error
	ResizeSwapchain(width, height int) error
	SetViewport(width, height int)

	ReleaseRenderTarget()
	ReleaseSwapchain()
	ReleaseContext()
	ReleaseDevice()
}
