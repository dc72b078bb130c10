package opengl

import (
	"renderstar/internal/graphics"

	"github.com/go-gl/gl/v4.1-core/gl"
)

func primitiveMode(p graphics.PrimitiveType) uint32 {
	switch p {
	case graphics.PrimitiveTriangleStrip:
		return gl.TRIANGLE_STRIP
	case graphics.PrimitiveLines:
		return gl.LINES
	case graphics.PrimitiveLineStrip:
		return gl.LINE_STRIP
	case graphics.PrimitivePoints:
		return gl.POINTS
	}
	return gl.TRIANGLES
}

func attributeType(t graphics.AttributeType) uint32 {
	switch t {
	case graphics.AttributeUint8:
		return gl.UNSIGNED_BYTE
	case graphics.AttributeUint32:
		return gl.UNSIGNED_INT
	}
	return gl.FLOAT
}

// mesh is a VAO whose attribute pointers follow the vertex layout, attribute
// i at location i
type mesh struct {
	buffers   *BufferManager
	layout    *graphics.VertexLayout
	mode      uint32
	vao       uint32
	vbo       graphics.BufferHandle
	ibo       graphics.BufferHandle
	vertices  int
	indices   int
	destroyed bool
}

func newMesh(buffers *BufferManager, layout *graphics.VertexLayout, primitive graphics.PrimitiveType) *mesh {
	m := &mesh{buffers: buffers, layout: layout, mode: primitiveMode(primitive)}
	gl.GenVertexArrays(1, &m.vao)
	return m
}

func (m *mesh) SetVertexData(data []byte, count int) error {
	if m.destroyed {
		return graphics.ErrClosed
	}
	if m.vbo != 0 {
		if err := m.buffers.DestroyBuffer(m.vbo); err != nil {
			return err
		}
		m.vbo, m.vertices = 0, 0
	}
	if count == 0 {
		return nil
	}
	vbo, err := m.buffers.CreateVertexBuffer(data)
	if err != nil {
		return err
	}

	gl.BindVertexArray(m.vao)
	if err := m.buffers.BindVertexBuffer(vbo); err != nil {
		gl.BindVertexArray(0)
		return err
	}
	stride := int32(m.layout.Stride())
	for i, attr := range m.layout.Attributes() {
		loc := uint32(i)
		gl.EnableVertexAttribArray(loc)
		gl.VertexAttribPointer(loc, int32(attr.Components), attributeType(attr.Type), attr.Normalized, stride, gl.PtrOffset(int(attr.Offset)))
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)

	m.vbo, m.vertices = vbo, count
	return nil
}

func (m *mesh) SetIndexData(indices []uint32) error {
	if m.destroyed {
		return graphics.ErrClosed
	}
	if m.ibo != 0 {
		if err := m.buffers.DestroyBuffer(m.ibo); err != nil {
			return err
		}
		m.ibo, m.indices = 0, 0
	}
	if len(indices) == 0 {
		return nil
	}
	ibo, err := m.buffers.CreateIndexBuffer(graphics.IndexBytes(indices))
	if err != nil {
		return err
	}
	gl.BindVertexArray(m.vao)
	err = m.buffers.BindIndexBuffer(ibo)
	gl.BindVertexArray(0)
	if err != nil {
		return err
	}
	m.ibo, m.indices = ibo, len(indices)
	return nil
}

func (m *mesh) VertexCount() int { return m.vertices }
func (m *mesh) IndexCount() int  { return m.indices }
func (m *mesh) IsValid() bool    { return !m.destroyed && m.vertices > 0 }

func (m *mesh) Draw() error {
	if m.destroyed {
		return graphics.ErrClosed
	}
	if m.vertices == 0 {
		return graphics.ErrInvalidMesh
	}
	gl.BindVertexArray(m.vao)
	if m.indices > 0 {
		gl.DrawElements(m.mode, int32(m.indices), gl.UNSIGNED_INT, gl.PtrOffset(0))
	} else {
		gl.DrawArrays(m.mode, 0, int32(m.vertices))
	}
	gl.BindVertexArray(0)
	return nil
}

func (m *mesh) Destroy() error {
	if m.destroyed {
		return nil
	}
	var first error
	for _, h := range []graphics.BufferHandle{m.vbo, m.ibo} {
		if h == 0 {
			continue
		}
		if err := m.buffers.DestroyBuffer(h); err != nil && first == nil {
			first = err
		}
	}
	gl.DeleteVertexArrays(1, &m.vao)
	m.vbo, m.ibo, m.vao = 0, 0, 0
	m.vertices, m.indices = 0, 0
	m.destroyed = true
	return first
}
