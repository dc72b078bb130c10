package graphics

import (
	"errors"
	"fmt"
)

var (
	// ErrVertexStride is returned when vertex bytes are not a whole number of vertices
	ErrVertexStride = errors.New("graphics: vertex data is not a multiple of the layout stride")
	// ErrLayoutMismatch is returned when typed vertices do not match the mesh layout
	ErrLayoutMismatch = errors.New("graphics: vertices do not match the mesh layout")
	// ErrInvalidMesh is returned when drawing a mesh without vertex data
	ErrInvalidMesh = errors.New("graphics: mesh has no vertex data")
)

// Mesh is a backend-agnostic vertex/index container. The GPU buffers behind
// it belong to the backend's BufferManager; the mesh only holds the
// backend-created handle.
type Mesh struct {
	layout    *VertexLayout
	primitive PrimitiveType
	handle    MeshHandle
	shader    *Shader
}

// NewMesh asks backend for a mesh handle using layout and primitive
func NewMesh(backend Backend, layout *VertexLayout, primitive PrimitiveType) (*Mesh, error) {
	if layout == nil {
		layout = StandardVertexLayout
	}
	h, err := backend.NewMesh(layout, primitive)
	if err != nil {
		return nil, fmt.Errorf("create %s mesh: %w", backend.Name(), err)
	}
	return &Mesh{layout: layout, primitive: primitive, handle: h}, nil
}

func (m *Mesh) Layout() *VertexLayout    { return m.layout }
func (m *Mesh) Primitive() PrimitiveType { return m.primitive }
func (m *Mesh) Shader() *Shader          { return m.shader }
func (m *Mesh) SetShader(s *Shader)      { m.shader = s }
func (m *Mesh) VertexCount() int         { return m.handle.VertexCount() }
func (m *Mesh) IndexCount() int          { return m.handle.IndexCount() }
func (m *Mesh) HasIndices() bool         { return m.handle.IndexCount() > 0 }
func (m *Mesh) IsValid() bool            { return m.handle != nil && m.handle.IsValid() }
func (m *Mesh) Handle() MeshHandle       { return m.handle }

// SetVertexData uploads interleaved vertex bytes laid out per the mesh layout
func (m *Mesh) SetVertexData(data []byte) error {
	stride := int(m.layout.Stride())
	if stride == 0 || len(data)%stride != 0 {
		return fmt.Errorf("%w: %d bytes, stride %d", ErrVertexStride, len(data), stride)
	}
	return m.handle.SetVertexData(data, len(data)/stride)
}

// SetVertices uploads standard vertices; the mesh must use StandardVertexLayout
func (m *Mesh) SetVertices(vertices []Vertex) error {
	if m.layout != StandardVertexLayout {
		return ErrLayoutMismatch
	}
	return m.SetVertexData(VertexBytes(vertices))
}

// SetIndexData uploads 32-bit indices. An empty slice removes indexing.
func (m *Mesh) SetIndexData(indices []uint32) error {
	return m.handle.SetIndexData(indices)
}

// Draw binds the mesh shader, if any, and issues the draw
func (m *Mesh) Draw() error {
	if !m.IsValid() {
		return ErrInvalidMesh
	}
	if m.shader != nil {
		if err := m.shader.Bind(); err != nil {
			return err
		}
	}
	return m.handle.Draw()
}

// Destroy releases the backend mesh. The shader is not owned and survives.
func (m *Mesh) Destroy() error {
	if m.handle == nil {
		return nil
	}
	return m.handle.Destroy()
}
