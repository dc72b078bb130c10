package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Backends lists the accepted renderer.backend values
var Backends = []string{"opengl", "vulkan", "headless"}

// Settings is the whole engine configuration. It is built once by the
// composition root and handed to whoever needs a piece of it.
type Settings struct {
	Window   WindowSettings   `yaml:"window"`
	Renderer RendererSettings `yaml:"renderer"`
	Assets   AssetSettings    `yaml:"assets"`
	Loop     LoopSettings     `yaml:"loop"`
	Log      LogSettings      `yaml:"log"`
	Debug    DebugSettings    `yaml:"debug"`
	Scene    SceneSettings    `yaml:"scene"`
}

type WindowSettings struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Title     string `yaml:"title"`
	Resizable bool   `yaml:"resizable"`
}

type RendererSettings struct {
	Backend      string     `yaml:"backend"`
	SyncInterval int        `yaml:"sync_interval"` // 0 disables vsync
	BufferCount  int        `yaml:"buffer_count"`
	ClearColor   [4]float32 `yaml:"clear_color"`
}

type AssetSettings struct {
	Root   string `yaml:"root"`
	Domain string `yaml:"domain"`
	// Shader is the local path of the default shader inside the domain
	Shader string `yaml:"shader"`
}

type LoopSettings struct {
	Tick Duration `yaml:"tick"`
	// SlowFrame logs a timing breakdown for frames slower than this; zero disables it
	SlowFrame Duration `yaml:"slow_frame"`
}

type LogSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

type DebugSettings struct {
	Overlay bool `yaml:"overlay"`
	// Font is the local path of the overlay font inside the asset domain
	Font     string `yaml:"font"`
	FontSize int    `yaml:"font_size"`
	// Shader draws the overlay; it must sample texture unit 0
	Shader string `yaml:"shader"`
}

// SceneSettings describes the objects spawned at startup
type SceneSettings struct {
	Camera  CameraSettings   `yaml:"camera"`
	Objects []ObjectSettings `yaml:"objects"`
}

type CameraSettings struct {
	Position [3]float32 `yaml:"position"`
	FOV      float32    `yaml:"fov"` // vertical, degrees
}

// ObjectSettings places one mesh file instance. Rotation is Euler degrees
// applied Y, X, Z; a zero scale means unit scale. Parent names an object
// listed earlier.
type ObjectSettings struct {
	Name     string     `yaml:"name"`
	Mesh     string     `yaml:"mesh"`
	Parent   string     `yaml:"parent"`
	Position [3]float32 `yaml:"position"`
	Rotation [3]float32 `yaml:"rotation"`
	Scale    [3]float32 `yaml:"scale"`
	// Spin rotates the object about its Y axis, degrees per second
	Spin float32 `yaml:"spin"`
}

// Default returns the settings used for every key a file leaves out
func Default() Settings {
	return Settings{
		Window: WindowSettings{Width: 900, Height: 600, Title: "RenderStar", Resizable: true},
		Renderer: RendererSettings{
			Backend:      "opengl",
			SyncInterval: 1,
			BufferCount:  3,
			ClearColor:   [4]float32{0.53, 0.81, 0.92, 1.0},
		},
		Assets: AssetSettings{Root: "Assets", Domain: "RenderStar", Shader: "Default"},
		Loop:   LoopSettings{Tick: Duration(16 * time.Millisecond), SlowFrame: Duration(50 * time.Millisecond)},
		Log:    LogSettings{Level: "info", Format: "text"},
		Debug:  DebugSettings{Font: "Fonts/Default.ttf", FontSize: 16, Shader: "Textured"},
		Scene:  SceneSettings{Camera: CameraSettings{Position: [3]float32{0, 0, 5}, FOV: 60}},
	}
}

// Load reads and validates the YAML file at path
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read config: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return Settings{}, fmt.Errorf("config %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected; an empty document yields the defaults.
func Parse(data []byte) (Settings, error) {
	s := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("parse config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ValidationError names the setting that is missing or out of range
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid setting %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks every field and reports the first bad one
func (s Settings) Validate() error {
	switch {
	case s.Window.Width <= 0:
		return invalid("window.width", "must be positive, got %d", s.Window.Width)
	case s.Window.Height <= 0:
		return invalid("window.height", "must be positive, got %d", s.Window.Height)
	case s.Window.Title == "":
		return invalid("window.title", "is required")
	case !slices.Contains(Backends, s.Renderer.Backend):
		return invalid("renderer.backend", "must be one of %v, got %q", Backends, s.Renderer.Backend)
	case s.Renderer.SyncInterval < 0 || s.Renderer.SyncInterval > 4:
		return invalid("renderer.sync_interval", "must be within 0..4, got %d", s.Renderer.SyncInterval)
	case s.Renderer.BufferCount < 1 || s.Renderer.BufferCount > 8:
		return invalid("renderer.buffer_count", "must be within 1..8, got %d", s.Renderer.BufferCount)
	case s.Assets.Root == "":
		return invalid("assets.root", "is required")
	case s.Assets.Domain == "":
		return invalid("assets.domain", "is required")
	case s.Loop.Tick <= 0:
		return invalid("loop.tick", "must be positive, got %s", s.Loop.Tick)
	case s.Loop.SlowFrame < 0:
		return invalid("loop.slow_frame", "must not be negative, got %s", s.Loop.SlowFrame)
	case s.Log.Format != "text" && s.Log.Format != "json":
		return invalid("log.format", "must be text or json, got %q", s.Log.Format)
	case s.Debug.Overlay && s.Debug.FontSize <= 0:
		return invalid("debug.font_size", "must be positive, got %d", s.Debug.FontSize)
	}
	for i, c := range s.Renderer.ClearColor {
		if c < 0 || c > 1 {
			return invalid(fmt.Sprintf("renderer.clear_color[%d]", i), "must be within 0..1, got %g", c)
		}
	}
	if _, err := s.Log.SlogLevel(); err != nil {
		return invalid("log.level", "%v", err)
	}
	return s.Scene.validate()
}

func (s SceneSettings) validate() error {
	if s.Camera.FOV <= 0 || s.Camera.FOV >= 180 {
		return invalid("scene.camera.fov", "must be within (0, 180), got %g", s.Camera.FOV)
	}
	seen := make(map[string]bool, len(s.Objects))
	for i, o := range s.Objects {
		field := fmt.Sprintf("scene.objects[%d]", i)
		switch {
		case o.Name == "":
			return invalid(field+".name", "is required")
		case seen[o.Name]:
			return invalid(field+".name", "duplicate object %q", o.Name)
		case o.Mesh == "":
			return invalid(field+".mesh", "is required")
		case o.Parent != "" && !seen[o.Parent]:
			return invalid(field+".parent", "%q is not an earlier object", o.Parent)
		}
		seen[o.Name] = true
	}
	return nil
}

// SlogLevel parses Level (debug, info, warn, error)
func (l LogSettings) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(l.Level))
	return level, err
}

// NewLogger builds the process logger the settings describe
func (l LogSettings) NewLogger(w io.Writer) *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Duration is a time.Duration written as a Go duration string ("16ms")
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }
func (d Duration) String() string     { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// Write encodes s as YAML, the format Load reads back
func Write(w io.Writer, s Settings) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}
