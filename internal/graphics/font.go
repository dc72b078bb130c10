package graphics

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"renderstar/internal/assets"
	"renderstar/internal/entity"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Glyph describes a single rune's placement and metrics within the atlas
type Glyph struct {
	// Pixel coordinates of the glyph in the atlas image (top-left origin)
	X, Y int
	// Glyph bitmap size in pixels
	Width, Height int
	// Bearing (offset from the pen position on the baseline)
	BearingX, BearingY int
	Advance            int
}

// FontAtlas is a baked glyph sheet: white glyphs with coverage in alpha
type FontAtlas struct {
	Image      *image.RGBA
	Glyphs     map[rune]Glyph
	LineHeight int
}

const (
	atlasWidth   = 512
	atlasPadding = 1
)

// LoadFontAtlas reads a TrueType or OpenType asset and bakes printable ASCII
func LoadFontAtlas(locator assets.Locator, p string, pixels int) (*FontAtlas, error) {
	data, err := locator.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	return BuildFontAtlas(data, pixels, ' ', '~')
}

// BuildFontAtlas rasterises runes first..last at the given pixel size and
// packs them row by row. The atlas height is whatever the packing needs.
func BuildFontAtlas(fontBytes []byte, pixels int, first, last rune) (*FontAtlas, error) {
	if pixels <= 0 {
		return nil, fmt.Errorf("font size %d must be positive", pixels)
	}
	if last < first {
		return nil, errors.New("empty rune range")
	}
	f, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: float64(pixels), DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("new face: %w", err)
	}
	defer func() { _ = face.Close() }()

	type baked struct {
		r       rune
		dr      image.Rectangle
		mask    image.Image
		maskp   image.Point
		advance fixed.Int26_6
	}
	var glyphs []baked
	for r := first; r <= last; r++ {
		dr, mask, maskp, advance, ok := face.Glyph(fixed.P(0, 0), r)
		if !ok {
			continue
		}
		glyphs = append(glyphs, baked{r: r, dr: dr, mask: mask, maskp: maskp, advance: advance})
	}

	// First pass: place glyphs to find the atlas height
	places := make([]image.Point, len(glyphs))
	offsetX, offsetY, rowHeight := 0, 0, 0
	for i, g := range glyphs {
		gw, gh := g.dr.Dx(), g.dr.Dy()
		if gw == 0 || gh == 0 {
			continue
		}
		if gw > atlasWidth {
			return nil, fmt.Errorf("glyph %q wider than atlas", g.r)
		}
		if offsetX+gw > atlasWidth {
			offsetX = 0
			offsetY += rowHeight + atlasPadding
			rowHeight = 0
		}
		places[i] = image.Pt(offsetX, offsetY)
		offsetX += gw + atlasPadding
		rowHeight = max(rowHeight, gh)
	}
	atlasH := max(offsetY+rowHeight, 1)

	atlas := &FontAtlas{
		Image:      image.NewRGBA(image.Rect(0, 0, atlasWidth, atlasH)),
		Glyphs:     make(map[rune]Glyph, len(glyphs)),
		LineHeight: face.Metrics().Height.Ceil(),
	}

	// Second pass: render each glyph and record metrics
	for i, g := range glyphs {
		gw, gh := g.dr.Dx(), g.dr.Dy()
		glyph := Glyph{
			X:        places[i].X,
			Y:        places[i].Y,
			Width:    gw,
			Height:   gh,
			BearingX: g.dr.Min.X,
			BearingY: -g.dr.Min.Y,
			Advance:  int(math.Round(float64(g.advance) / 64.0)),
		}
		if gw > 0 && gh > 0 && g.mask != nil {
			dst := image.Rect(glyph.X, glyph.Y, glyph.X+gw, glyph.Y+gh)
			draw.DrawMask(atlas.Image, dst, image.White, image.Point{}, g.mask, g.maskp, draw.Over)
		} else {
			// Space or non-drawable glyph; only the advance matters
			glyph.Width, glyph.Height = 0, 0
		}
		atlas.Glyphs[g.r] = glyph
	}
	return atlas, nil
}

func (a *FontAtlas) glyph(r rune) (Glyph, bool) {
	if g, ok := a.Glyphs[r]; ok {
		return g, true
	}
	// fall back to space advance if glyph missing
	space := a.Glyphs[' ']
	return Glyph{Advance: space.Advance}, false
}

// Measure returns the width and height in pixels text occupies at scale
func (a *FontAtlas) Measure(text string, scale float32) (float32, float32) {
	var width, lineWidth float32
	lines := 1
	for _, r := range text {
		if r == '\n' {
			width = max(width, lineWidth)
			lineWidth = 0
			lines++
			continue
		}
		g, _ := a.glyph(r)
		lineWidth += float32(g.Advance) * scale
	}
	return max(width, lineWidth), float32(lines*a.LineHeight) * scale
}

// TextVertices lays text out with the pen starting at (x, y) on the first
// baseline, y growing downward. Each drawable glyph yields two triangles.
func (a *FontAtlas) TextVertices(text string, x, y, scale float32, color mgl32.Vec3) []Vertex {
	w := float32(a.Image.Rect.Dx())
	h := float32(a.Image.Rect.Dy())
	penX := x
	vertices := make([]Vertex, 0, len(text)*6)
	for _, r := range text {
		if r == '\n' {
			penX = x
			y += float32(a.LineHeight) * scale
			continue
		}
		g, ok := a.glyph(r)
		if ok && g.Width > 0 && g.Height > 0 {
			x0 := penX + float32(g.BearingX)*scale
			y0 := y - float32(g.BearingY)*scale
			x1 := x0 + float32(g.Width)*scale
			y1 := y0 + float32(g.Height)*scale

			u0, v0 := float32(g.X)/w, float32(g.Y)/h
			u1, v1 := float32(g.X+g.Width)/w, float32(g.Y+g.Height)/h

			vertices = append(vertices,
				Vertex{Position: mgl32.Vec3{x0, y1, 0}, Color: color, UV: mgl32.Vec2{u0, v1}},
				Vertex{Position: mgl32.Vec3{x1, y0, 0}, Color: color, UV: mgl32.Vec2{u1, v0}},
				Vertex{Position: mgl32.Vec3{x0, y0, 0}, Color: color, UV: mgl32.Vec2{u0, v0}},
				Vertex{Position: mgl32.Vec3{x0, y1, 0}, Color: color, UV: mgl32.Vec2{u0, v1}},
				Vertex{Position: mgl32.Vec3{x1, y1, 0}, Color: color, UV: mgl32.Vec2{u1, v1}},
				Vertex{Position: mgl32.Vec3{x1, y0, 0}, Color: color, UV: mgl32.Vec2{u1, v0}},
			)
		}
		penX += float32(g.Advance) * scale
	}
	return vertices
}

// TextRenderer draws a string in screen space, pixel origin at the top left.
// The owning object's world matrix offsets the text. It owns its mesh; the
// atlas texture and shader are shared and survive CleanUp.
type TextRenderer struct {
	entity.BaseComponent

	Color mgl32.Vec3
	Scale float32

	backend  Backend
	atlas    *FontAtlas
	texture  *Texture
	shader   *Shader
	mesh     *Mesh
	uniforms BufferHandle
	width    int
	height   int
	text     string
	dirty    bool
	lastErr  error
	log      *slog.Logger
}

func NewTextRenderer(backend Backend, atlas *FontAtlas, texture *Texture, shader *Shader, logger *slog.Logger) *TextRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextRenderer{
		Color:   mgl32.Vec3{1, 1, 1},
		Scale:   1,
		backend: backend,
		atlas:   atlas,
		texture: texture,
		shader:  shader,
		width:   1,
		height:  1,
		log:     logger,
	}
}

func (t *TextRenderer) Text() string     { return t.text }
func (t *TextRenderer) LastError() error { return t.lastErr }

// SetText replaces the string; the mesh is rebuilt on the next render
func (t *TextRenderer) SetText(s string) {
	if s != t.text {
		t.text = s
		t.dirty = true
	}
}

// SetScreenSize sets the pixel size the orthographic projection covers
func (t *TextRenderer) SetScreenSize(width, height int) {
	t.width, t.height = max(width, 1), max(height, 1)
}

func (t *TextRenderer) Initialize() {
	mesh, err := NewMesh(t.backend, StandardVertexLayout, PrimitiveTriangles)
	if err != nil {
		t.lastErr = err
		t.log.Error("text mesh creation failed", "error", err)
		return
	}
	h, err := t.backend.Buffers().CreateUniformBuffer(uniformBlockSize)
	if err != nil {
		t.lastErr = err
		t.log.Error("uniform buffer creation failed", "error", err)
		_ = mesh.Destroy()
		return
	}
	mesh.SetShader(t.shader)
	t.mesh, t.uniforms = mesh, h
	t.dirty = true
}

func (t *TextRenderer) Render(entity.View) {
	if t.mesh == nil {
		return
	}
	err := t.draw()
	if err != nil && !sameError(err, t.lastErr) {
		t.log.Warn("text draw skipped", "error", err)
	}
	t.lastErr = err
}

func (t *TextRenderer) draw() error {
	if t.dirty {
		if err := t.mesh.SetVertices(t.atlas.TextVertices(t.text, 0, float32(t.atlas.LineHeight)*t.Scale, t.Scale, t.Color)); err != nil {
			return err
		}
		t.dirty = false
	}
	if !t.mesh.IsValid() {
		return nil
	}
	if t.texture != nil {
		if err := t.texture.Bind(0); err != nil {
			return err
		}
	}
	model := mgl32.Ident4()
	if tr := t.Transform(); tr != nil {
		model = tr.WorldMatrix()
	}
	proj := mgl32.Ortho(0, float32(t.width), float32(t.height), 0, -1, 1)
	return drawMesh(t.backend.Buffers(), t.uniforms, t.mesh, model, mgl32.Ident4(), proj)
}

func (t *TextRenderer) CleanUp() {
	if t.mesh == nil {
		return
	}
	if err := t.backend.Buffers().DestroyBuffer(t.uniforms); err != nil {
		t.log.Warn("uniform buffer release failed", "error", err)
	}
	if err := t.mesh.Destroy(); err != nil {
		t.log.Warn("text mesh release failed", "error", err)
	}
	t.mesh = nil
}
