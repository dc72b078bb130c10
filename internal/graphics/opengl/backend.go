// Package opengl implements the graphics backend on OpenGL 4.1 core. Every
// call must be made on the thread the GL context is current on.
package opengl

import (
	"errors"
	"image"

	"renderstar/internal/graphics"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/kamstrup/intmap"
)

type Backend struct {
	buffers  *BufferManager
	shaders  *ShaderCompiler
	meshes   []*mesh
	textures *intmap.Map[graphics.TextureHandle, uint32]
	next     graphics.TextureHandle
}

// New creates the backend; gl.Init must already have run, which
// Device.CreateDevice takes care of
func New() *Backend {
	return &Backend{
		buffers:  NewBufferManager(),
		shaders:  NewShaderCompiler(),
		textures: intmap.New[graphics.TextureHandle, uint32](16),
	}
}

func (b *Backend) Name() string                     { return "opengl" }
func (b *Backend) Buffers() graphics.BufferManager  { return b.buffers }
func (b *Backend) Shaders() graphics.ShaderCompiler { return b.shaders }

func (b *Backend) NewMesh(layout *graphics.VertexLayout, primitive graphics.PrimitiveType) (graphics.MeshHandle, error) {
	if layout == nil || layout.Stride() == 0 {
		return nil, errors.New("opengl: mesh needs a non-empty vertex layout")
	}
	m := newMesh(b.buffers, layout, primitive)
	b.meshes = append(b.meshes, m)
	return m, nil
}

// CreateTexture uploads img as a nearest-filtered, edge-clamped 2D texture
func (b *Backend) CreateTexture(img *image.RGBA) (graphics.TextureHandle, error) {
	size := img.Rect.Size()
	if size.X == 0 || size.Y == 0 {
		return 0, errors.New("opengl: empty texture image")
	}

	var texture uint32
	gl.GenTextures(1, &texture)
	gl.BindTexture(gl.TEXTURE_2D, texture)

	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)

	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	gl.TexImage2D(
		gl.TEXTURE_2D,
		0,
		gl.RGBA,
		int32(size.X),
		int32(size.Y),
		0,
		gl.RGBA,
		gl.UNSIGNED_BYTE,
		gl.Ptr(img.Pix),
	)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)

	gl.BindTexture(gl.TEXTURE_2D, 0)

	b.next++
	b.textures.Put(b.next, texture)
	return b.next, nil
}

func (b *Backend) BindTexture(h graphics.TextureHandle, unit uint32) error {
	id, ok := b.textures.Get(h)
	if !ok {
		return graphics.ErrUnknownTexture
	}
	gl.ActiveTexture(gl.TEXTURE0 + unit)
	gl.BindTexture(gl.TEXTURE_2D, id)
	return nil
}

func (b *Backend) DestroyTexture(h graphics.TextureHandle) error {
	id, ok := b.textures.Get(h)
	if !ok {
		return graphics.ErrUnknownTexture
	}
	gl.DeleteTextures(1, &id)
	b.textures.Del(h)
	return nil
}

// Close destroys meshes, textures, programs and finally buffers
func (b *Backend) Close() error {
	var errs []error
	for _, m := range b.meshes {
		errs = append(errs, m.Destroy())
	}
	b.meshes = nil
	b.textures.ForEach(func(_ graphics.TextureHandle, id uint32) bool {
		gl.DeleteTextures(1, &id)
		return true
	})
	b.textures.Clear()
	b.shaders.Close()
	errs = append(errs, b.buffers.Close())
	return errors.Join(errs...)
}
