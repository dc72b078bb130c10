package graphics

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"sync"

	"renderstar/internal/assets"
	"renderstar/internal/entity"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

// DecodeImage decodes any registered format (PNG, JPEG, BMP, TIFF) into RGBA
func DecodeImage(r io.Reader) (*image.RGBA, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba, nil
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba, nil
}

// Texture is a GPU texture created through a Backend
type Texture struct {
	path    string
	handle  TextureHandle
	width   int
	height  int
	backend Backend
}

// LoadTexture decodes the asset at p and uploads it
func LoadTexture(backend Backend, locator assets.Locator, p string) (*Texture, error) {
	f, err := locator.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open texture file: %w", err)
	}
	defer f.Close()

	rgba, err := DecodeImage(f)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", p, err)
	}
	return NewTexture(backend, p, rgba)
}

// NewTexture uploads an already decoded image
func NewTexture(backend Backend, name string, img *image.RGBA) (*Texture, error) {
	h, err := backend.CreateTexture(img)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", name, err)
	}
	size := img.Rect.Size()
	return &Texture{path: name, handle: h, width: size.X, height: size.Y, backend: backend}, nil
}

func (t *Texture) Path() string              { return t.path }
func (t *Texture) Handle() TextureHandle     { return t.handle }
func (t *Texture) Size() (width, height int) { return t.width, t.height }

// Bind attaches the texture to a sampler unit
func (t *Texture) Bind(unit uint32) error {
	return t.backend.BindTexture(t.handle, unit)
}

func (t *Texture) Destroy() error {
	return t.backend.DestroyTexture(t.handle)
}

// TextureCache loads each texture path once and owns the results
type TextureCache struct {
	backend Backend
	locator assets.Locator

	mu       sync.RWMutex
	textures map[string]*Texture
}

func NewTextureCache(backend Backend, locator assets.Locator) *TextureCache {
	return &TextureCache{
		backend:  backend,
		locator:  locator,
		textures: make(map[string]*Texture),
	}
}

// Get returns the cached texture for p, loading it on first use
func (c *TextureCache) Get(p string) (*Texture, error) {
	c.mu.RLock()
	if tex, ok := c.textures[p]; ok {
		c.mu.RUnlock()
		return tex, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double check locking
	if tex, ok := c.textures[p]; ok {
		return tex, nil
	}

	tex, err := LoadTexture(c.backend, c.locator, p)
	if err != nil {
		return nil, err
	}
	c.textures[p] = tex
	return tex, nil
}

// Len returns the number of cached textures
func (c *TextureCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.textures)
}

// Close destroys every cached texture
func (c *TextureCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var first error
	for p, tex := range c.textures {
		if err := tex.Destroy(); err != nil && first == nil {
			first = err
		}
		delete(c.textures, p)
	}
	return first
}

// TextureComponent binds a texture to a sampler unit when its object renders
type TextureComponent struct {
	entity.BaseComponent

	Texture *Texture
	Unit    uint32
	log     *slog.Logger
}

func NewTextureComponent(tex *Texture, unit uint32, logger *slog.Logger) *TextureComponent {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextureComponent{Texture: tex, Unit: unit, log: logger}
}

func (c *TextureComponent) Render(entity.View) {
	if c.Texture == nil {
		return
	}
	if err := c.Texture.Bind(c.Unit); err != nil {
		c.log.Warn("texture bind failed", "texture", c.Texture.path, "unit", c.Unit, "error", err)
	}
}
