package graphics_test

import (
	"testing"

	"renderstar/internal/entity"
	"renderstar/internal/graphics"
	"renderstar/internal/graphics/headless"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

func goAtlas(t *testing.T) *graphics.FontAtlas {
	t.Helper()
	atlas, err := graphics.BuildFontAtlas(goregular.TTF, 16, ' ', '~')
	require.NoError(t, err)
	return atlas
}

func TestBuildFontAtlas(t *testing.T) {
	atlas := goAtlas(t)
	assert.Len(t, atlas.Glyphs, int('~'-' ')+1)
	assert.Positive(t, atlas.LineHeight)

	space := atlas.Glyphs[' ']
	assert.Zero(t, space.Width)
	assert.Positive(t, space.Advance)

	a := atlas.Glyphs['A']
	require.Positive(t, a.Width)
	bounds := atlas.Image.Bounds()
	assert.LessOrEqual(t, a.X+a.Width, bounds.Dx())
	assert.LessOrEqual(t, a.Y+a.Height, bounds.Dy())

	var coverage int
	for y := a.Y; y < a.Y+a.Height; y++ {
		for x := a.X; x < a.X+a.Width; x++ {
			if atlas.Image.RGBAAt(x, y).A > 0 {
				coverage++
			}
		}
	}
	assert.Positive(t, coverage, "glyph pixels are baked into the atlas")
}

func TestBuildFontAtlasRejectsGarbage(t *testing.T) {
	_, err := graphics.BuildFontAtlas([]byte("not a font"), 16, ' ', '~')
	assert.ErrorContains(t, err, "parse font")
	_, err = graphics.BuildFontAtlas(goregular.TTF, 0, ' ', '~')
	assert.Error(t, err)
}

func TestTextLayout(t *testing.T) {
	atlas := goAtlas(t)

	verts := atlas.TextVertices("a b", 0, 20, 1, mgl32.Vec3{1, 0, 0})
	assert.Len(t, verts, 12, "space emits no quad")
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, verts[0].Color)

	w, h := atlas.Measure("ab", 2)
	assert.InDelta(t, float32(2*(atlas.Glyphs['a'].Advance+atlas.Glyphs['b'].Advance)), w, 1e-4)
	assert.InDelta(t, float32(2*atlas.LineHeight), h, 1e-4)

	_, h = atlas.Measure("a\nb", 1)
	assert.InDelta(t, float32(2*atlas.LineHeight), h, 1e-4)
}

func TestTextRendererDraws(t *testing.T) {
	b := headless.New("glsl")
	atlas := goAtlas(t)
	tex, err := graphics.NewTexture(b, "font", atlas.Image)
	require.NoError(t, err)

	obj := entity.New("fps")
	text, ok := entity.AddComponent(obj, graphics.NewTextRenderer(b, atlas, tex, nil, nil))
	require.True(t, ok)

	obj.Render(nil)
	assert.Zero(t, b.Stats().DrawCalls, "empty text draws nothing")

	text.SetText("60 fps")
	text.SetScreenSize(900, 600)
	obj.Render(nil)
	require.NoError(t, text.LastError())
	assert.Equal(t, 1, b.Stats().DrawCalls)
	assert.Equal(t, 5*6, b.Stats().VerticesDrawn)

	bound, ok := b.BoundTexture(0)
	require.True(t, ok)
	assert.Equal(t, tex.Handle(), bound)

	obj.CleanUp()
	assert.Zero(t, b.Stats().LiveBuffers)
}
