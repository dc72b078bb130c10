// Package headless is an in-memory graphics backend. It keeps buffer
// contents, compiled stages and textures in process memory and counts draw
// calls, so the resource layer runs without a GPU or a window.
package headless

import (
	"fmt"
	"sync"

	"renderstar/internal/graphics"

	"github.com/kamstrup/intmap"
)

type buffer struct {
	kind graphics.BufferKind
	data []byte
}

// BufferManager stores buffers as byte slices keyed by handle
type BufferManager struct {
	mu      sync.Mutex
	next    graphics.BufferHandle
	buffers *intmap.Map[graphics.BufferHandle, *buffer]
	closed  bool

	boundVertex  graphics.BufferHandle
	boundIndex   graphics.BufferHandle
	boundUniform map[uint32]graphics.BufferHandle
}

func NewBufferManager() *BufferManager {
	return &BufferManager{
		buffers:      intmap.New[graphics.BufferHandle, *buffer](64),
		boundUniform: make(map[uint32]graphics.BufferHandle),
	}
}

func (m *BufferManager) create(kind graphics.BufferKind, data []byte) (graphics.BufferHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, graphics.ErrClosed
	}
	m.next++
	m.buffers.Put(m.next, &buffer{kind: kind, data: data})
	return m.next, nil
}

func (m *BufferManager) CreateVertexBuffer(data []byte) (graphics.BufferHandle, error) {
	return m.create(graphics.BufferVertex, append([]byte(nil), data...))
}

func (m *BufferManager) CreateIndexBuffer(data []byte) (graphics.BufferHandle, error) {
	return m.create(graphics.BufferIndex, append([]byte(nil), data...))
}

func (m *BufferManager) CreateUniformBuffer(size int) (graphics.BufferHandle, error) {
	if size <= 0 {
		return 0, fmt.Errorf("uniform buffer size %d: %w", size, graphics.ErrBufferOverflow)
	}
	return m.create(graphics.BufferUniform, make([]byte, size))
}

func (m *BufferManager) UpdateBuffer(h graphics.BufferHandle, data []byte, offset int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buffers.Get(h)
	if !ok {
		return graphics.ErrUnknownBuffer
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		return fmt.Errorf("%d bytes at %d into %d: %w", len(data), offset, len(b.data), graphics.ErrBufferOverflow)
	}
	copy(b.data[offset:], data)
	return nil
}

func (m *BufferManager) DestroyBuffer(h graphics.BufferHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.buffers.Del(h) {
		return graphics.ErrUnknownBuffer
	}
	m.unbind(h)
	return nil
}

func (m *BufferManager) unbind(h graphics.BufferHandle) {
	if m.boundVertex == h {
		m.boundVertex = 0
	}
	if m.boundIndex == h {
		m.boundIndex = 0
	}
	for slot, bound := range m.boundUniform {
		if bound == h {
			delete(m.boundUniform, slot)
		}
	}
}

func (m *BufferManager) bind(h graphics.BufferHandle, kind graphics.BufferKind) error {
	b, ok := m.buffers.Get(h)
	if !ok {
		return graphics.ErrUnknownBuffer
	}
	if b.kind != kind {
		return fmt.Errorf("%s buffer as %s: %w", b.kind, kind, graphics.ErrBufferKind)
	}
	return nil
}

func (m *BufferManager) BindVertexBuffer(h graphics.BufferHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bind(h, graphics.BufferVertex); err != nil {
		return err
	}
	m.boundVertex = h
	return nil
}

func (m *BufferManager) BindIndexBuffer(h graphics.BufferHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bind(h, graphics.BufferIndex); err != nil {
		return err
	}
	m.boundIndex = h
	return nil
}

func (m *BufferManager) BindUniformBuffer(h graphics.BufferHandle, slot uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bind(h, graphics.BufferUniform); err != nil {
		return err
	}
	m.boundUniform[slot] = h
	return nil
}

func (m *BufferManager) BufferSize(h graphics.BufferHandle) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buffers.Get(h)
	if !ok {
		return 0, false
	}
	return len(b.data), true
}

// Contents returns a copy of a buffer's bytes
func (m *BufferManager) Contents(h graphics.BufferHandle) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buffers.Get(h)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b.data...), true
}

// BoundUniform returns the buffer bound to a uniform slot
func (m *BufferManager) BoundUniform(slot uint32) (graphics.BufferHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.boundUniform[slot]
	return h, ok
}

func (m *BufferManager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffers.Len()
}

// Close destroys every outstanding buffer. Later creations fail with ErrClosed.
func (m *BufferManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffers.Clear()
	m.boundVertex, m.boundIndex = 0, 0
	clear(m.boundUniform)
	m.closed = true
	return nil
}
