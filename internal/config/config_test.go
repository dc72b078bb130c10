package config_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"renderstar/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	s := config.Default()
	require.NoError(t, s.Validate())
	assert.Equal(t, 900, s.Window.Width)
	assert.Equal(t, 600, s.Window.Height)
	assert.Equal(t, "RenderStar", s.Window.Title)
	assert.Equal(t, "opengl", s.Renderer.Backend)
	assert.Equal(t, 1, s.Renderer.SyncInterval)
	assert.Equal(t, 3, s.Renderer.BufferCount)
	assert.Equal(t, 16*time.Millisecond, s.Loop.Tick.Std())
}

func TestEmptyDocumentGivesDefaults(t *testing.T) {
	s, err := config.Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), s)
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	s, err := config.Parse([]byte(`
window:
  width: 1280
renderer:
  backend: headless
loop:
  tick: 8ms
log:
  level: debug
`))
	require.NoError(t, err)
	assert.Equal(t, 1280, s.Window.Width)
	assert.Equal(t, 600, s.Window.Height)
	assert.Equal(t, "headless", s.Renderer.Backend)
	assert.Equal(t, 8*time.Millisecond, s.Loop.Tick.Std())

	level, err := s.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestValidationErrors(t *testing.T) {
	cases := map[string]struct {
		yaml  string
		field string
	}{
		"zero width":      {"window: {width: 0}", "window.width"},
		"empty title":     {"window: {title: \"\"}", "window.title"},
		"unknown backend": {"renderer: {backend: d3d11}", "renderer.backend"},
		"sync interval":   {"renderer: {sync_interval: 9}", "renderer.sync_interval"},
		"buffer count":    {"renderer: {buffer_count: 0}", "renderer.buffer_count"},
		"clear colour":    {"renderer: {clear_color: [0, 0, 2, 1]}", "renderer.clear_color[2]"},
		"missing domain":  {"assets: {domain: \"\"}", "assets.domain"},
		"negative tick":   {"loop: {tick: -1s}", "loop.tick"},
		"log level":       {"log: {level: loud}", "log.level"},
		"log format":      {"log: {format: xml}", "log.format"},
		"overlay font":    {"debug: {overlay: true, font_size: 0}", "debug.font_size"},
		"camera fov":      {"scene: {camera: {fov: 180}}", "scene.camera.fov"},
		"object name":     {"scene: {objects: [{mesh: Meshes/Cube}]}", "scene.objects[0].name"},
		"object mesh":     {"scene: {objects: [{name: a}]}", "scene.objects[0].mesh"},
		"duplicate name":  {"scene: {objects: [{name: a, mesh: m}, {name: a, mesh: m}]}", "scene.objects[1].name"},
		"late parent":     {"scene: {objects: [{name: a, mesh: m, parent: b}, {name: b, mesh: m}]}", "scene.objects[0].parent"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse([]byte(tc.yaml))
			var verr *config.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.NotEmpty(t, verr.Reason)
		})
	}
}

func TestSceneObjects(t *testing.T) {
	s, err := config.Parse([]byte(`
scene:
  objects:
    - name: Sun
      mesh: Meshes/Cube
      spin: 45
    - name: Planet
      mesh: Meshes/Cube
      parent: Sun
      position: [3, 0, 0]
      scale: [0.5, 0.5, 0.5]
`))
	require.NoError(t, err)
	require.Len(t, s.Scene.Objects, 2)
	assert.Equal(t, float32(60), s.Scene.Camera.FOV, "camera defaults survive a partial scene")
	assert.Equal(t, "Sun", s.Scene.Objects[1].Parent)
	assert.Equal(t, [3]float32{3, 0, 0}, s.Scene.Objects[1].Position)
	assert.Equal(t, float32(45), s.Scene.Objects[0].Spin)
}

func TestParseRejectsUnknownKeysAndBadDurations(t *testing.T) {
	_, err := config.Parse([]byte("window: {depth: 3}"))
	assert.ErrorContains(t, err, "depth")

	_, err = config.Parse([]byte("loop: {tick: soon}"))
	assert.ErrorContains(t, err, "parse config")
}

func TestLoadRoundTripsWrite(t *testing.T) {
	s := config.Default()
	s.Window.Title = "Sandbox"
	s.Loop.SlowFrame = config.Duration(20 * time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, config.Write(&buf, s))
	assert.Contains(t, buf.String(), "tick: 16ms")

	path := filepath.Join(t.TempDir(), "renderstar.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := config.LogSettings{Level: "warn", Format: "json"}.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "n", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
