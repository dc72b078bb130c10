package headless

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"renderstar/internal/graphics"

	"github.com/kamstrup/intmap"
)

// Backend implements graphics.Backend in memory
type Backend struct {
	buffers *BufferManager
	shaders *ShaderCompiler

	mu       sync.Mutex
	draws    int
	vertices int
	nextTex  graphics.TextureHandle
	textures *intmap.Map[graphics.TextureHandle, *image.RGBA]
	boundTex map[uint32]graphics.TextureHandle
	meshes   int
}

// New creates a headless backend reading shader sources with extension ext
// (e.g. "glsl")
func New(ext string) *Backend {
	return &Backend{
		buffers:  NewBufferManager(),
		shaders:  NewShaderCompiler(ext),
		textures: intmap.New[graphics.TextureHandle, *image.RGBA](16),
		boundTex: make(map[uint32]graphics.TextureHandle),
	}
}

func (b *Backend) Name() string                     { return "headless" }
func (b *Backend) Buffers() graphics.BufferManager  { return b.buffers }
func (b *Backend) Shaders() graphics.ShaderCompiler { return b.shaders }
func (b *Backend) BufferManager() *BufferManager    { return b.buffers }
func (b *Backend) ShaderCompiler() *ShaderCompiler  { return b.shaders }

// Stats is a snapshot of the work submitted to the backend
type Stats struct {
	DrawCalls     int
	VerticesDrawn int
	LiveMeshes    int
	LiveTextures  int
	LiveBuffers   int
}

func (b *Backend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		DrawCalls:     b.draws,
		VerticesDrawn: b.vertices,
		LiveMeshes:    b.meshes,
		LiveTextures:  b.textures.Len(),
		LiveBuffers:   b.buffers.Live(),
	}
}

// BoundTexture returns the texture bound to a sampler unit
func (b *Backend) BoundTexture(unit uint32) (graphics.TextureHandle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.boundTex[unit]
	return h, ok
}

func (b *Backend) NewMesh(layout *graphics.VertexLayout, primitive graphics.PrimitiveType) (graphics.MeshHandle, error) {
	if layout == nil || layout.Stride() == 0 {
		return nil, errors.New("headless: mesh needs a non-empty vertex layout")
	}
	b.mu.Lock()
	b.meshes++
	b.mu.Unlock()
	return &mesh{backend: b, layout: layout, primitive: primitive}, nil
}

func (b *Backend) CreateTexture(img *image.RGBA) (graphics.TextureHandle, error) {
	if img == nil || img.Rect.Empty() {
		return 0, errors.New("headless: empty texture image")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextTex++
	b.textures.Put(b.nextTex, img)
	return b.nextTex, nil
}

func (b *Backend) BindTexture(h graphics.TextureHandle, unit uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.textures.Get(h); !ok {
		return graphics.ErrUnknownTexture
	}
	b.boundTex[unit] = h
	return nil
}

func (b *Backend) DestroyTexture(h graphics.TextureHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.textures.Del(h) {
		return graphics.ErrUnknownTexture
	}
	for unit, bound := range b.boundTex {
		if bound == h {
			delete(b.boundTex, unit)
		}
	}
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	b.textures.Clear()
	clear(b.boundTex)
	b.meshes = 0
	b.mu.Unlock()
	b.shaders.close()
	return b.buffers.Close()
}

func (b *Backend) recordDraw(vertices int) {
	b.mu.Lock()
	b.draws++
	b.vertices += vertices
	b.mu.Unlock()
}

func (b *Backend) meshDestroyed() {
	b.mu.Lock()
	b.meshes--
	b.mu.Unlock()
}

type mesh struct {
	backend   *Backend
	layout    *graphics.VertexLayout
	primitive graphics.PrimitiveType

	vbo, ibo    graphics.BufferHandle
	vertexCount int
	indices     []uint32
	destroyed   bool
}

func (m *mesh) SetVertexData(data []byte, count int) error {
	if m.destroyed {
		return graphics.ErrClosed
	}
	buffers := m.backend.buffers
	if m.vbo != 0 {
		if err := buffers.DestroyBuffer(m.vbo); err != nil {
			return err
		}
		m.vbo, m.vertexCount = 0, 0
	}
	if count == 0 {
		return nil
	}
	h, err := buffers.CreateVertexBuffer(data)
	if err != nil {
		return err
	}
	m.vbo, m.vertexCount = h, count
	return nil
}

func (m *mesh) SetIndexData(indices []uint32) error {
	if m.destroyed {
		return graphics.ErrClosed
	}
	buffers := m.backend.buffers
	if m.ibo != 0 {
		if err := buffers.DestroyBuffer(m.ibo); err != nil {
			return err
		}
		m.ibo, m.indices = 0, nil
	}
	if len(indices) == 0 {
		return nil
	}
	h, err := buffers.CreateIndexBuffer(graphics.IndexBytes(indices))
	if err != nil {
		return err
	}
	m.ibo, m.indices = h, append([]uint32(nil), indices...)
	return nil
}

func (m *mesh) VertexCount() int { return m.vertexCount }
func (m *mesh) IndexCount() int  { return len(m.indices) }
func (m *mesh) IsValid() bool    { return !m.destroyed && m.vbo != 0 }

func (m *mesh) Draw() error {
	if !m.IsValid() {
		return graphics.ErrInvalidMesh
	}
	buffers := m.backend.buffers
	if err := buffers.BindVertexBuffer(m.vbo); err != nil {
		return err
	}
	count := m.vertexCount
	if m.ibo != 0 {
		if err := buffers.BindIndexBuffer(m.ibo); err != nil {
			return err
		}
		for _, idx := range m.indices {
			if int(idx) >= m.vertexCount {
				return fmt.Errorf("headless: index %d out of range for %d vertices", idx, m.vertexCount)
			}
		}
		count = len(m.indices)
	}
	m.backend.recordDraw(count)
	return nil
}

func (m *mesh) Destroy() error {
	if m.destroyed {
		return nil
	}
	m.destroyed = true
	var errs []error
	if m.vbo != 0 {
		errs = append(errs, m.backend.buffers.DestroyBuffer(m.vbo))
	}
	if m.ibo != 0 {
		errs = append(errs, m.backend.buffers.DestroyBuffer(m.ibo))
	}
	m.vbo, m.ibo = 0, 0
	m.backend.meshDestroyed()
	return errors.Join(errs...)
}

// ShaderCompiler accepts any non-empty source. A line starting with
// "#error" fails compilation with the rest of the line as the message,
// mirroring the preprocessor directive of real shader compilers.
type ShaderCompiler struct {
	ext string

	mu       sync.Mutex
	next     uint32
	stages   map[graphics.StageHandle]graphics.ShaderStage
	programs map[graphics.ProgramHandle][]graphics.ShaderStage
	layouts  map[graphics.ProgramHandle]*graphics.VertexLayout
	bound    graphics.ProgramHandle
	compiled []string
}

func NewShaderCompiler(ext string) *ShaderCompiler {
	if ext == "" {
		ext = "glsl"
	}
	return &ShaderCompiler{
		ext:      ext,
		stages:   make(map[graphics.StageHandle]graphics.ShaderStage),
		programs: make(map[graphics.ProgramHandle][]graphics.ShaderStage),
		layouts:  make(map[graphics.ProgramHandle]*graphics.VertexLayout),
	}
}

func (c *ShaderCompiler) SourceExtension() string { return c.ext }

func (c *ShaderCompiler) CompileStage(stage graphics.ShaderStage, path string, source []byte) (graphics.StageHandle, error) {
	if len(bytes.TrimSpace(source)) == 0 {
		return 0, errors.New("failed to compile shader: empty source")
	}
	sc := bufio.NewScanner(bytes.NewReader(source))
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if msg, ok := strings.CutPrefix(text, "#error"); ok {
			return 0, fmt.Errorf("failed to compile shader: %d: %s", line, strings.TrimSpace(msg))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	h := graphics.StageHandle(c.next)
	c.stages[h] = stage
	c.compiled = append(c.compiled, path)
	return h, nil
}

func (c *ShaderCompiler) LinkProgram(stages []graphics.StageHandle, layout *graphics.VertexLayout) (graphics.ProgramHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var linked []graphics.ShaderStage
	for _, h := range stages {
		stage, ok := c.stages[h]
		if !ok {
			return 0, fmt.Errorf("failed to link program: unknown stage %d", h)
		}
		linked = append(linked, stage)
		delete(c.stages, h)
	}
	c.next++
	p := graphics.ProgramHandle(c.next)
	c.programs[p] = linked
	c.layouts[p] = layout
	return p, nil
}

func (c *ShaderCompiler) DestroyStage(s graphics.StageHandle) {
	c.mu.Lock()
	delete(c.stages, s)
	c.mu.Unlock()
}

func (c *ShaderCompiler) BindProgram(p graphics.ProgramHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.programs[p]; !ok {
		return graphics.ErrUnknownProgram
	}
	c.bound = p
	return nil
}

func (c *ShaderCompiler) DestroyProgram(p graphics.ProgramHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.programs[p]; !ok {
		return graphics.ErrUnknownProgram
	}
	delete(c.programs, p)
	delete(c.layouts, p)
	if c.bound == p {
		c.bound = 0
	}
	return nil
}

// Bound returns the active program
func (c *ShaderCompiler) Bound() graphics.ProgramHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bound
}

// InputLayout returns the layout linked into p, nil if none was derived
func (c *ShaderCompiler) InputLayout(p graphics.ProgramHandle) *graphics.VertexLayout {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layouts[p]
}

// PendingStages returns the number of compiled stages not yet linked or destroyed
func (c *ShaderCompiler) PendingStages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stages)
}

// Compiled returns the paths of every stage compiled so far
func (c *ShaderCompiler) Compiled() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.compiled...)
}

func (c *ShaderCompiler) close() {
	c.mu.Lock()
	clear(c.stages)
	clear(c.programs)
	clear(c.layouts)
	c.bound = 0
	c.mu.Unlock()
}
