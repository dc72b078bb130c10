package vulkan

import (
	"fmt"

	"renderstar/internal/graphics"

	"github.com/kamstrup/intmap"
	vk "github.com/vulkan-go/vulkan"
)

type vkBuffer struct {
	buf  vk.Buffer
	mem  vk.DeviceMemory
	kind graphics.BufferKind
	size int
}

// BufferManager issues host-visible, coherent buffers. Bind calls record
// into the command buffer set with Record; uniform bindings are kept as a
// slot table for descriptor set writes.
type BufferManager struct {
	ctx     *Context
	next    graphics.BufferHandle
	buffers *intmap.Map[graphics.BufferHandle, *vkBuffer]
	uniform map[uint32]graphics.BufferHandle
	cmd     vk.CommandBuffer
	closed  bool
}

func NewBufferManager(ctx *Context) *BufferManager {
	return &BufferManager{
		ctx:     ctx,
		buffers: intmap.New[graphics.BufferHandle, *vkBuffer](64),
		uniform: make(map[uint32]graphics.BufferHandle),
	}
}

func usage(kind graphics.BufferKind) vk.BufferUsageFlagBits {
	switch kind {
	case graphics.BufferIndex:
		return vk.BufferUsageIndexBufferBit
	case graphics.BufferUniform:
		return vk.BufferUsageUniformBufferBit
	}
	return vk.BufferUsageVertexBufferBit
}

func (m *BufferManager) create(kind graphics.BufferKind, data []byte, size int) (graphics.BufferHandle, error) {
	if m.closed {
		return 0, graphics.ErrClosed
	}
	if size <= 0 {
		return 0, fmt.Errorf("%s buffer size %d: %w", kind, size, graphics.ErrBufferOverflow)
	}
	b, err := m.allocate(size, vk.BufferUsageFlags(usage(kind)))
	if err != nil {
		return 0, err
	}
	b.kind = kind
	if err := m.ctx.write(b.mem, 0, data); err != nil {
		m.release(b)
		return 0, err
	}
	m.next++
	m.buffers.Put(m.next, b)
	return m.next, nil
}

// allocate creates a buffer bound to fresh host-visible memory
func (m *BufferManager) allocate(size int, usage vk.BufferUsageFlags) (*vkBuffer, error) {
	b := &vkBuffer{size: size}
	res := vk.CreateBuffer(m.ctx.Device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}, nil, &b.buf)
	if err := check(res, "create buffer"); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(m.ctx.Device, b.buf, &reqs)
	mem, err := m.ctx.allocate(reqs, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		vk.DestroyBuffer(m.ctx.Device, b.buf, nil)
		return nil, err
	}
	b.mem = mem
	if err := check(vk.BindBufferMemory(m.ctx.Device, b.buf, b.mem, 0), "bind buffer memory"); err != nil {
		m.release(b)
		return nil, err
	}
	return b, nil
}

func (m *BufferManager) release(b *vkBuffer) {
	vk.DestroyBuffer(m.ctx.Device, b.buf, nil)
	vk.FreeMemory(m.ctx.Device, b.mem, nil)
}

func (m *BufferManager) CreateVertexBuffer(data []byte) (graphics.BufferHandle, error) {
	return m.create(graphics.BufferVertex, data, len(data))
}

func (m *BufferManager) CreateIndexBuffer(data []byte) (graphics.BufferHandle, error) {
	return m.create(graphics.BufferIndex, data, len(data))
}

func (m *BufferManager) CreateUniformBuffer(size int) (graphics.BufferHandle, error) {
	return m.create(graphics.BufferUniform, nil, size)
}

func (m *BufferManager) UpdateBuffer(h graphics.BufferHandle, data []byte, offset int) error {
	b, ok := m.buffers.Get(h)
	if !ok {
		return graphics.ErrUnknownBuffer
	}
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("%d bytes at %d into %d: %w", len(data), offset, b.size, graphics.ErrBufferOverflow)
	}
	return m.ctx.write(b.mem, offset, data)
}

func (m *BufferManager) DestroyBuffer(h graphics.BufferHandle) error {
	b, ok := m.buffers.Get(h)
	if !ok {
		return graphics.ErrUnknownBuffer
	}
	m.release(b)
	m.buffers.Del(h)
	for slot, bound := range m.uniform {
		if bound == h {
			delete(m.uniform, slot)
		}
	}
	return nil
}

func (m *BufferManager) lookup(h graphics.BufferHandle, kind graphics.BufferKind) (*vkBuffer, error) {
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
	if m.cmd == nil {
		return ErrNotRecording
	}
	vk.CmdBindVertexBuffers(m.cmd, 0, 1, []vk.Buffer{b.buf}, []vk.DeviceSize{0})
	return nil
}

func (m *BufferManager) BindIndexBuffer(h graphics.BufferHandle) error {
	b, err := m.lookup(h, graphics.BufferIndex)
	if err != nil {
		return err
	}
	if m.cmd == nil {
		return ErrNotRecording
	}
	vk.CmdBindIndexBuffer(m.cmd, b.buf, 0, vk.IndexTypeUint32)
	return nil
}

func (m *BufferManager) BindUniformBuffer(h graphics.BufferHandle, slot uint32) error {
	if _, err := m.lookup(h, graphics.BufferUniform); err != nil {
		return err
	}
	m.uniform[slot] = h
	return nil
}

// UniformBinding returns the buffer bound to slot, for descriptor writes
func (m *BufferManager) UniformBinding(slot uint32) (vk.Buffer, int, bool) {
	h, ok := m.uniform[slot]
	if !ok {
		return nil, 0, false
	}
	b, ok := m.buffers.Get(h)
	if !ok {
		return nil, 0, false
	}
	return b.buf, b.size, true
}

func (m *BufferManager) BufferSize(h graphics.BufferHandle) (int, bool) {
	b, ok := m.buffers.Get(h)
	if !ok {
		return 0, false
	}
	return b.size, true
}

func (m *BufferManager) Live() int { return m.buffers.Len() }

// Close destroys every buffer still alive
func (m *BufferManager) Close() error {
	m.buffers.ForEach(func(_ graphics.BufferHandle, b *vkBuffer) bool {
		m.release(b)
		return true
	})
	m.buffers.Clear()
	clear(m.uniform)
	m.closed = true
	return nil
}
