package game_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"testing"
	"testing/fstest"
	"time"

	"renderstar/internal/assets"
	"renderstar/internal/config"
	"renderstar/internal/entity"
	"renderstar/internal/game"
	"renderstar/internal/graphics"
	"renderstar/internal/graphics/headless"
	"renderstar/internal/graphics/renderer"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/font/gofont/goregular"
)

func checkerBMP(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := range 4 {
		for x := range 4 {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.White)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, img))
	return buf.Bytes()
}

func testAssets(t *testing.T) assets.Locator {
	t.Helper()
	fsys := fstest.MapFS{
		"Assets/RenderStar/DefaultVertex.glsl":   {Data: []byte("void main() {}\n")},
		"Assets/RenderStar/DefaultPixel.glsl":    {Data: []byte("void main() {}\n")},
		"Assets/RenderStar/TexturedVertex.glsl":  {Data: []byte("void main() {}\n")},
		"Assets/RenderStar/TexturedPixel.glsl":   {Data: []byte("void main() {}\n")},
		"Assets/RenderStar/Fonts/Default.ttf":    {Data: goregular.TTF},
		"Assets/RenderStar/Textures/Checker.bmp": {Data: checkerBMP(t)},
		"Assets/RenderStar/Meshes/Triangle.json": {Data: []byte(`{
			"vertices": [[0, 1, 0, 1, 0, 0, 0.5, 0], [-1, -1, 0, 0, 1, 0, 0, 1], [1, -1, 0, 0, 0, 1, 1, 1]]
		}`)},
		"Assets/RenderStar/Meshes/Tile.json": {Data: []byte(`{
			"parent": "Meshes/Triangle",
			"texture": "#face",
			"textures": { "face": "Textures/Checker.bmp" }
		}`)},
		"Assets/RenderStar/Meshes/Dangling.json": {Data: []byte(`{
			"parent": "Meshes/Triangle",
			"texture": "#missing"
		}`)},
	}
	return assets.NewLocator(fsys, "Assets")
}

func testSettings() config.Settings {
	s := config.Default()
	s.Renderer.Backend = "headless"
	s.Loop.Tick = config.Duration(time.Millisecond)
	s.Loop.SlowFrame = 0
	return s
}

type harness struct {
	app     *game.App
	backend *headless.Backend
	device  *headless.Device
	cancel  context.CancelFunc
	done    chan error
}

func newHarness(t *testing.T, s config.Settings) *harness {
	t.Helper()
	h := &harness{
		backend: headless.New("glsl"),
		device:  headless.NewDevice(),
		done:    make(chan error, 1),
	}
	app, err := game.New(game.Options{
		Settings: s,
		Backend:  h.backend,
		Device:   h.device,
		Surface:  headless.Surface{Width: 900, Height: 600},
		Assets:   testAssets(t),
	})
	require.NoError(t, err)
	h.app = app
	return h
}

func (h *harness) start(t *testing.T, frames uint64) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.app.Run(ctx) }()
	require.Eventually(t, func() bool { return h.app.Loop().Frames() >= frames }, 5*time.Second, time.Millisecond)
}

func (h *harness) stop(t *testing.T) error {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
		return nil
	}
}

// onUpdateThread runs fn on the loop and waits for it
func (h *harness) onUpdateThread(t *testing.T, fn func()) {
	t.Helper()
	ran := make(chan struct{})
	h.app.Loop().Post(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("posted work did not run")
	}
}

func TestAppRunsSceneAndReleasesEverything(t *testing.T) {
	s := testSettings()
	s.Debug.Overlay = true
	s.Scene.Objects = []config.ObjectSettings{
		{Name: "Hub", Mesh: "Meshes/Triangle", Spin: 90},
		{Name: "Tile", Mesh: "Meshes/Tile", Parent: "Hub", Position: [3]float32{2, 0, 0}},
	}
	h := newHarness(t, s)

	var names []string
	var textures int
	h.app.OnSetup(func(a *game.App) error {
		names = a.Manager().Names()
		textures = a.Textures().Len()
		return nil
	})
	h.start(t, 3)

	var tilePos mgl32.Vec3
	var found bool
	h.onUpdateThread(t, func() {
		var tile *entity.GameObject
		if tile, found = h.app.Manager().Get("Tile"); found {
			tilePos = tile.Transform().WorldPosition()
		}
	})
	require.NoError(t, h.stop(t))
	require.True(t, found)

	assert.Equal(t, []string{"MainCamera", "Hub", "Tile", "DebugOverlay"}, names)
	assert.Equal(t, 1, textures)
	assert.InDelta(t, 2, tilePos.Len(), 1e-4, "child orbits the spinning hub at its offset")

	stats := h.backend.Stats()
	assert.GreaterOrEqual(t, stats.DrawCalls, 6)
	assert.Zero(t, stats.LiveBuffers)
	assert.Zero(t, stats.LiveMeshes)
	assert.Zero(t, stats.LiveTextures)

	snap := h.device.Snapshot()
	assert.False(t, snap.Device)
	assert.False(t, snap.Swapchain)
	assert.GreaterOrEqual(t, snap.Presents, 3)
	assert.Equal(t, renderer.StateCleanedUp, h.app.Renderer().State())
}

func TestOnResizeUpdatesRendererAndCamera(t *testing.T) {
	h := newHarness(t, testSettings())
	h.start(t, 1)

	h.app.OnResize(1280, 720)
	h.app.OnResize(0, 0)

	var aspect float32
	h.onUpdateThread(t, func() { aspect = h.app.Camera().AspectRatio })
	require.NoError(t, h.stop(t))

	assert.InDelta(t, 1280.0/720.0, aspect, 1e-5)
	assert.Equal(t, [2]int{1280, 720}, h.device.Snapshot().Viewport)
}

func TestSceneObjectFailuresAreSkipped(t *testing.T) {
	s := testSettings()
	s.Scene.Objects = []config.ObjectSettings{
		{Name: "Ghost", Mesh: "Meshes/Missing"},
		{Name: "Orphan", Mesh: "Meshes/Triangle", Parent: "Ghost"},
		{Name: "Real", Mesh: "Meshes/Triangle"},
	}
	h := newHarness(t, s)
	var names []string
	h.app.OnSetup(func(a *game.App) error {
		names = a.Manager().Names()
		return nil
	})
	h.start(t, 1)
	require.NoError(t, h.stop(t))
	assert.Equal(t, []string{"MainCamera", "Real"}, names)
}

func TestSpawnMeshRejectsDuplicates(t *testing.T) {
	h := newHarness(t, testSettings())
	h.start(t, 1)

	var first, second error
	h.onUpdateThread(t, func() {
		_, first = h.app.SpawnMesh(config.ObjectSettings{Name: "A", Mesh: "Meshes/Triangle"})
		_, second = h.app.SpawnMesh(config.ObjectSettings{Name: "A", Mesh: "Meshes/Triangle"})
	})
	require.NoError(t, h.stop(t))

	assert.NoError(t, first)
	assert.ErrorIs(t, second, entity.ErrDuplicateName)
	assert.Zero(t, h.backend.Stats().LiveMeshes, "every mesh released on shutdown")
}

func TestSetupErrorAbortsRun(t *testing.T) {
	h := newHarness(t, testSettings())
	boom := errors.New("boom")
	h.app.OnSetup(func(*game.App) error { return boom })

	err := h.app.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.False(t, h.device.Snapshot().Device)
	assert.Zero(t, h.backend.Stats().LiveBuffers)

	assert.ErrorIs(t, h.app.Run(context.Background()), game.ErrAlreadyRan)
}

func TestInitializeFailureIsReturned(t *testing.T) {
	h := newHarness(t, testSettings())
	h.device.FailCreateDevice = errors.New("no adapter")

	err := h.app.Run(context.Background())
	var initErr *renderer.InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "create device", initErr.Step)
}

func TestNewValidates(t *testing.T) {
	_, err := game.New(game.Options{Settings: testSettings()})
	assert.ErrorIs(t, err, game.ErrMissingOption)

	s := testSettings()
	s.Window.Width = 0
	_, err = game.New(game.Options{
		Settings: s,
		Backend:  headless.New("glsl"),
		Device:   headless.NewDevice(),
		Surface:  headless.Surface{Width: 1, Height: 1},
	})
	var verr *config.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSpinnerTurnsAboutY(t *testing.T) {
	obj := entity.New("spinner")
	_, ok := entity.AddComponent(obj, &game.Spinner{Speed: 90})
	require.True(t, ok)

	obj.Update(1)
	got := obj.Transform().Rotation().Rotate(mgl32.Vec3{1, 0, 0})
	assert.InDelta(t, 0, got.X(), 1e-5)
	assert.InDelta(t, -1, got.Z(), 1e-5)
}

func TestUnresolvedTextureReferenceIsLogged(t *testing.T) {
	s := testSettings()
	s.Scene.Objects = []config.ObjectSettings{{Name: "Plain", Mesh: "Meshes/Dangling"}}
	var logs bytes.Buffer
	backend := headless.New("glsl")
	app, err := game.New(game.Options{
		Settings: s,
		Backend:  backend,
		Device:   headless.NewDevice(),
		Surface:  headless.Surface{Width: 900, Height: 600},
		Assets:   testAssets(t),
		Logger:   slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn})),
	})
	require.NoError(t, err)

	var textured, spawned bool
	app.OnSetup(func(a *game.App) error {
		obj, ok := a.Manager().Get("Plain")
		spawned = ok
		if ok {
			textured = entity.HasComponent[*graphics.TextureComponent](obj)
		}
		return errors.New("stop")
	})
	require.Error(t, app.Run(context.Background()))

	assert.True(t, spawned, "object still drawn without its texture")
	assert.False(t, textured)
	assert.Contains(t, logs.String(), "mesh texture reference unresolved")
	assert.Contains(t, logs.String(), "texture=#missing")
}
