package opengl

import (
	"fmt"
	"unsafe"

	"renderstar/internal/graphics"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/kamstrup/intmap"
)

type glBuffer struct {
	id   uint32
	kind graphics.BufferKind
	size int
}

// BufferManager issues OpenGL buffer objects. Uploads go through
// COPY_WRITE_BUFFER so creating or updating a buffer never disturbs the
// element binding of whatever VAO is current.
//
// All methods must run on the thread owning the GL context.
type BufferManager struct {
	next    graphics.BufferHandle
	buffers *intmap.Map[graphics.BufferHandle, *glBuffer]
	closed  bool
}

func NewBufferManager() *BufferManager {
	return &BufferManager{buffers: intmap.New[graphics.BufferHandle, *glBuffer](64)}
}

func dataPtr(data []byte) unsafe.Pointer {
	if len(data) == 0 {
		return nil
	}
	return gl.Ptr(data)
}

func (m *BufferManager) create(kind graphics.BufferKind, data []byte, size int, usage uint32) (graphics.BufferHandle, error) {
	if m.closed {
		return 0, graphics.ErrClosed
	}
	var id uint32
	gl.GenBuffers(1, &id)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, id)
	gl.BufferData(gl.COPY_WRITE_BUFFER, size, dataPtr(data), usage)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	if errCode := gl.GetError(); errCode != gl.NO_ERROR {
		gl.DeleteBuffers(1, &id)
		return 0, fmt.Errorf("create %s buffer: gl error 0x%x", kind, errCode)
	}

	m.next++
	m.buffers.Put(m.next, &glBuffer{id: id, kind: kind, size: size})
	return m.next, nil
}

func (m *BufferManager) CreateVertexBuffer(data []byte) (graphics.BufferHandle, error) {
	return m.create(graphics.BufferVertex, data, len(data), gl.STATIC_DRAW)
}

func (m *BufferManager) CreateIndexBuffer(data []byte) (graphics.BufferHandle, error) {
	return m.create(graphics.BufferIndex, data, len(data), gl.STATIC_DRAW)
}

func (m *BufferManager) CreateUniformBuffer(size int) (graphics.BufferHandle, error) {
	if size <= 0 {
		return 0, fmt.Errorf("uniform buffer size %d: %w", size, graphics.ErrBufferOverflow)
	}
	return m.create(graphics.BufferUniform, nil, size, gl.DYNAMIC_DRAW)
}

func (m *BufferManager) UpdateBuffer(h graphics.BufferHandle, data []byte, offset int) error {
	b, ok := m.buffers.Get(h)
	if !ok {
		return graphics.ErrUnknownBuffer
	}
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("%d bytes at %d into %d: %w", len(data), offset, b.size, graphics.ErrBufferOverflow)
	}
	if len(data) == 0 {
		return nil
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, b.id)
	gl.BufferSubData(gl.COPY_WRITE_BUFFER, offset, len(data), gl.Ptr(data))
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	return nil
}

func (m *BufferManager) DestroyBuffer(h graphics.BufferHandle) error {
	b, ok := m.buffers.Get(h)
	if !ok {
		return graphics.ErrUnknownBuffer
	}
	gl.DeleteBuffers(1, &b.id)
	m.buffers.Del(h)
	return nil
}

func (m *BufferManager) lookup(h graphics.BufferHandle, kind graphics.BufferKind) (*glBuffer, error) {
	b, ok := m.buffers.Get(h)
	if !ok {
		return nil, graphics.ErrUnknownBuffer
	}
	if b.kind != kind {
		return nil, fmt.Errorf("%s buffer as %s: %w", b.kind, kind, graphics.ErrBufferKind)
	}
	return b, nil
}

func (m *BufferManager) BindVertexBuffer(h graphics.BufferHandle) error {
	b, err := m.lookup(h, graphics.BufferVertex)
	if err != nil {
		return err
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, b.id)
	return nil
}

// BindIndexBuffer records the buffer in the currently bound VAO
func (m *BufferManager) BindIndexBuffer(h graphics.BufferHandle) error {
	b, err := m.lookup(h, graphics.BufferIndex)
	if err != nil {
		return err
	}
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b.id)
	return nil
}

func (m *BufferManager) BindUniformBuffer(h graphics.BufferHandle, slot uint32) error {
	b, err := m.lookup(h, graphics.BufferUniform)
	if err != nil {
		return err
	}
	gl.BindBufferBase(gl.UNIFORM_BUFFER, slot, b.id)
	return nil
}

func (m *BufferManager) BufferSize(h graphics.BufferHandle) (int, bool) {
	b, ok := m.buffers.Get(h)
	if !ok {
		return 0, false
	}
	return b.size, true
}

func (m *BufferManager) Live() int { return m.buffers.Len() }

// Close deletes every buffer still alive
func (m *BufferManager) Close() error {
	ids := make([]uint32, 0, m.buffers.Len())
	m.buffers.ForEach(func(_ graphics.BufferHandle, b *glBuffer) bool {
		ids = append(ids, b.id)
		return true
	})
	if len(ids) > 0 {
		gl.DeleteBuffers(int32(len(ids)), &ids[0])
	}
	m.buffers.Clear()
	m.closed = true
	return nil
}
