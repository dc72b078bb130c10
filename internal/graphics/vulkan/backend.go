package vulkan

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"renderstar/internal/graphics"

	"github.com/kamstrup/intmap"
	vk "github.com/vulkan-go/vulkan"
)

// ErrNotRecording is returned by binds and draws issued outside Record
var ErrNotRecording = errors.New("vulkan: no command buffer is recording")

type texture struct {
	image vk.Image
	mem   vk.DeviceMemory
	view  vk.ImageView
}

type Backend struct {
	ctx      *Context
	log      *slog.Logger
	buffers  *BufferManager
	shaders  *ShaderCompiler
	meshes   []*mesh
	textures *intmap.Map[graphics.TextureHandle, *texture]
	bound    map[uint32]graphics.TextureHandle
	next     graphics.TextureHandle
}

// New opens a Vulkan device and builds the backend on it
func New(appName string, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, err := NewContext(appName, logger)
	if err != nil {
		return nil, err
	}
	return &Backend{
		ctx:      ctx,
		log:      logger,
		buffers:  NewBufferManager(ctx),
		shaders:  NewShaderCompiler(ctx),
		textures: intmap.New[graphics.TextureHandle, *texture](16),
		bound:    make(map[uint32]graphics.TextureHandle),
	}, nil
}

func (b *Backend) Name() string                     { return "vulkan" }
func (b *Backend) Context() *Context                { return b.ctx }
func (b *Backend) Buffers() graphics.BufferManager  { return b.buffers }
func (b *Backend) Shaders() graphics.ShaderCompiler { return b.shaders }
func (b *Backend) ShaderCompiler() *ShaderCompiler  { return b.shaders }
func (b *Backend) BufferManager() *BufferManager    { return b.buffers }

// Record directs binds and draws into cmd until the next Record(nil)
func (b *Backend) Record(cmd vk.CommandBuffer) { b.buffers.cmd = cmd }

func (b *Backend) NewMesh(layout *graphics.VertexLayout, primitive graphics.PrimitiveType) (graphics.MeshHandle, error) {
	if layout == nil || layout.Stride() == 0 {
		return nil, errors.New("vulkan: mesh needs a non-empty vertex layout")
	}
	if _, err := vertexInput(layout); err != nil {
		return nil, err
	}
	m := &mesh{buffers: b.buffers, topology: primitiveTopology(primitive)}
	b.meshes = append(b.meshes, m)
	return m, nil
}

// CreateTexture copies img through a staging buffer into a device-local
// R8G8B8A8 image left in shader-read layout
func (b *Backend) CreateTexture(img *image.RGBA) (graphics.TextureHandle, error) {
	size := img.Rect.Size()
	if size.X == 0 || size.Y == 0 {
		return 0, errors.New("vulkan: empty texture image")
	}
	pixels := img.Pix
	if img.Stride != size.X*4 {
		pixels = make([]byte, 0, size.X*size.Y*4)
		for y := 0; y < size.Y; y++ {
			row := img.Pix[y*img.Stride : y*img.Stride+size.X*4]
			pixels = append(pixels, row...)
		}
	}

	staging, err := b.buffers.allocate(len(pixels), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
	if err != nil {
		return 0, err
	}
	defer b.buffers.release(staging)
	if err := b.ctx.write(staging.mem, 0, pixels); err != nil {
		return 0, err
	}

	dev := b.ctx.Device
	t := &texture{}
	extent := vk.Extent3D{Width: uint32(size.X), Height: uint32(size.Y), Depth: 1}
	res := vk.CreateImage(dev, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        vk.FormatR8g8b8a8Unorm,
		Extent:        extent,
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &t.image)
	if err := check(res, "create image"); err != nil {
		return 0, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(dev, t.image, &reqs)
	if t.mem, err = b.ctx.allocate(reqs, vk.MemoryPropertyDeviceLocalBit); err != nil {
		vk.DestroyImage(dev, t.image, nil)
		return 0, err
	}
	if err := check(vk.BindImageMemory(dev, t.image, t.mem, 0), "bind image memory"); err != nil {
		b.destroyTexture(t)
		return 0, err
	}

	colour := vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LevelCount: 1,
		LayerCount: 1,
	}
	err = b.ctx.submitOnce(func(cmd vk.CommandBuffer) {
		transition(cmd, t.image, colour, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
			0, vk.AccessFlags(vk.AccessTransferWriteBit),
			vk.PipelineStageTopOfPipeBit, vk.PipelineStageTransferBit)
		vk.CmdCopyBufferToImage(cmd, staging.buf, t.image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: extent,
		}})
		transition(cmd, t.image, colour, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal,
			vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessShaderReadBit),
			vk.PipelineStageTransferBit, vk.PipelineStageFragmentShaderBit)
	})
	if err != nil {
		b.destroyTexture(t)
		return 0, fmt.Errorf("upload texture: %w", err)
	}

	res = vk.CreateImageView(dev, &vk.ImageViewCreateInfo{
		SType:            vk.StructureTypeImageViewCreateInfo,
		Image:            t.image,
		ViewType:         vk.ImageViewType2d,
		Format:           vk.FormatR8g8b8a8Unorm,
		SubresourceRange: colour,
	}, nil, &t.view)
	if err := check(res, "create image view"); err != nil {
		b.destroyTexture(t)
		return 0, err
	}

	b.next++
	b.textures.Put(b.next, t)
	return b.next, nil
}

func transition(cmd vk.CommandBuffer, img vk.Image, rng vk.ImageSubresourceRange, from, to vk.ImageLayout,
	srcAccess, dstAccess vk.AccessFlags, srcStage, dstStage vk.PipelineStageFlagBits) {
	vk.CmdPipelineBarrier(cmd, vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage), 0,
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       srcAccess,
			DstAccessMask:       dstAccess,
			OldLayout:           from,
			NewLayout:           to,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img,
			SubresourceRange:    rng,
		}})
}

func (b *Backend) destroyTexture(t *texture) {
	dev := b.ctx.Device
	if t.view != nil {
		vk.DestroyImageView(dev, t.view, nil)
	}
	vk.DestroyImage(dev, t.image, nil)
	vk.FreeMemory(dev, t.mem, nil)
}

// BindTexture records the image view for the sampler at unit; descriptor
// writes read it back through TextureBinding
func (b *Backend) BindTexture(h graphics.TextureHandle, unit uint32) error {
	if _, ok := b.textures.Get(h); !ok {
		return graphics.ErrUnknownTexture
	}
	b.bound[unit] = h
	return nil
}

// TextureBinding returns the image view bound to unit
func (b *Backend) TextureBinding(unit uint32) (vk.ImageView, bool) {
	h, ok := b.bound[unit]
	if !ok {
		return nil, false
	}
	t, ok := b.textures.Get(h)
	if !ok {
		return nil, false
	}
	return t.view, true
}

func (b *Backend) DestroyTexture(h graphics.TextureHandle) error {
	t, ok := b.textures.Get(h)
	if !ok {
		return graphics.ErrUnknownTexture
	}
	vk.DeviceWaitIdle(b.ctx.Device)
	b.destroyTexture(t)
	b.textures.Del(h)
	for unit, bound := range b.bound {
		if bound == h {
			delete(b.bound, unit)
		}
	}
	return nil
}

// Close waits for the GPU, releases every resource and the device itself
func (b *Backend) Close() error {
	if b.ctx.Device == nil {
		return nil
	}
	vk.DeviceWaitIdle(b.ctx.Device)
	var errs []error
	for _, m := range b.meshes {
		errs = append(errs, m.Destroy())
	}
	b.meshes = nil
	b.textures.ForEach(func(_ graphics.TextureHandle, t *texture) bool {
		b.destroyTexture(t)
		return true
	})
	b.textures.Clear()
	clear(b.bound)
	b.shaders.Close()
	errs = append(errs, b.buffers.Close())
	b.ctx.Destroy()
	b.log.Info("vulkan backend closed")
	return errors.Join(errs...)
}

// mesh records its draws into the manager's current command buffer
type mesh struct {
	buffers   *BufferManager
	topology  vk.PrimitiveTopology
	vbo       graphics.BufferHandle
	ibo       graphics.BufferHandle
	vertices  int
	indices   int
	destroyed bool
}

// Topology is the primitive topology a pipeline drawing this mesh needs
func (m *mesh) Topology() vk.PrimitiveTopology { return m.topology }

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
	h, err := m.buffers.CreateVertexBuffer(data)
	if err != nil {
		return err
	}
	m.vbo, m.vertices = h, count
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
	h, err := m.buffers.CreateIndexBuffer(graphics.IndexBytes(indices))
	if err != nil {
		return err
	}
	m.ibo, m.indices = h, len(indices)
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
	if err := m.buffers.BindVertexBuffer(m.vbo); err != nil {
		return err
	}
	if m.indices > 0 {
		if err := m.buffers.BindIndexBuffer(m.ibo); err != nil {
			return err
		}
		vk.CmdDrawIndexed(m.buffers.cmd, uint32(m.indices), 1, 0, 0, 0)
		return nil
	}
	vk.CmdDraw(m.buffers.cmd, uint32(m.vertices), 1, 0, 0)
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
	m.vbo, m.ibo = 0, 0
	m.vertices, m.indices = 0, 0
	m.destroyed = true
	return first
}
