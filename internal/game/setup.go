package game

import (
	"errors"
	"fmt"
	"strings"

	"renderstar/internal/config"
	"renderstar/internal/entity"
	"renderstar/internal/graphics"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	cameraObject  = "MainCamera"
	overlayObject = "DebugOverlay"
)

// ErrNoMeshAssets is returned by SpawnMesh when the app has no asset file system
var ErrNoMeshAssets = errors.New("game: no asset file system for mesh files")

func (a *App) setup() error {
	width, height := a.surface.ClientSize()

	cam := graphics.NewCamera(width, height)
	cam.FOV = a.settings.Scene.Camera.FOV
	obj := entity.New(cameraObject)
	obj.Transform().SetPosition(mgl32.Vec3(a.settings.Scene.Camera.Position))
	entity.AddComponent(obj, cam)
	if _, err := a.manager.Register(obj); err != nil {
		return fmt.Errorf("register camera: %w", err)
	}
	a.camera = cam

	for _, o := range a.settings.Scene.Objects {
		if _, err := a.SpawnMesh(o); err != nil {
			a.log.Warn("scene object skipped", "object", o.Name, "mesh", o.Mesh, "error", err)
		}
	}

	if a.settings.Debug.Overlay {
		if err := a.setupOverlay(width, height); err != nil {
			a.log.Warn("debug overlay disabled", "error", err)
		}
	}

	for _, fn := range a.setups {
		if err := fn(a); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}
	return nil
}

// Shader returns the shader at local path name inside the asset domain,
// generating it on first use. An empty name selects the configured default.
func (a *App) Shader(name string) (*graphics.Shader, error) {
	if name == "" {
		name = a.settings.Assets.Shader
	}
	if s, ok := a.shaders[name]; ok {
		return s, nil
	}
	s := graphics.NewShader(name, a.settings.Assets.Domain, name)
	s.SetInputLayout(graphics.StandardVertexLayout)
	if err := s.Generate(a.backend.Shaders(), a.locator); err != nil {
		return nil, err
	}
	a.shaders[name] = s
	return s, nil
}

// SpawnMesh loads a mesh file and registers an object drawing it. It must
// run on the update thread.
func (a *App) SpawnMesh(o config.ObjectSettings) (*entity.GameObject, error) {
	if a.meshes == nil {
		return nil, ErrNoMeshAssets
	}
	var parent *entity.GameObject
	if o.Parent != "" {
		p, ok := a.manager.Get(o.Parent)
		if !ok {
			return nil, fmt.Errorf("parent %q is not registered", o.Parent)
		}
		parent = p
	}

	file, err := a.meshes.Load(o.Mesh)
	if err != nil {
		return nil, err
	}
	primitive, ok := graphics.ParsePrimitiveType(file.Primitive)
	if !ok {
		return nil, fmt.Errorf("mesh %s: unknown primitive %q", o.Mesh, file.Primitive)
	}
	shader, err := a.Shader(file.Shader)
	if err != nil {
		return nil, err
	}

	mesh, err := graphics.NewMesh(a.backend, graphics.StandardVertexLayout, primitive)
	if err != nil {
		return nil, err
	}
	vertices := make([]graphics.Vertex, len(file.Vertices))
	for i, v := range file.Vertices {
		vertices[i] = graphics.Vertex{Position: v.Position, Color: v.Color, UV: v.UV}
	}
	if err := mesh.SetVertices(vertices); err != nil {
		_ = mesh.Destroy()
		return nil, err
	}
	if len(file.Indices) > 0 {
		if err := mesh.SetIndexData(file.Indices); err != nil {
			_ = mesh.Destroy()
			return nil, err
		}
	}
	mesh.SetShader(shader)

	obj := entity.New(o.Name)
	placeObject(obj.Transform(), o)

	if strings.HasPrefix(file.Texture, "#") {
		a.log.Warn("mesh texture reference unresolved; drawing untextured",
			"object", o.Name, "mesh", o.Mesh, "texture", file.Texture)
	} else if file.Texture != "" {
		tex, err := a.textures.Get(a.locator.AssetPath(a.settings.Assets.Domain, file.Texture))
		if err != nil {
			_ = mesh.Destroy()
			return nil, err
		}
		entity.AddComponent(obj, graphics.NewTextureComponent(tex, 0, a.log))
	}
	entity.AddComponent(obj, graphics.NewMeshRenderer(a.backend.Buffers(), mesh, a.log))
	if o.Spin != 0 {
		entity.AddComponent(obj, &Spinner{Speed: o.Spin})
	}

	if parent != nil {
		if err := obj.SetParent(parent); err != nil {
			obj.CleanUp()
			return nil, err
		}
	}
	if _, err := a.manager.Register(obj); err != nil {
		obj.CleanUp()
		return nil, err
	}
	return obj, nil
}

func placeObject(t *entity.Transform, o config.ObjectSettings) {
	t.SetPosition(mgl32.Vec3(o.Position))
	r := o.Rotation
	t.SetRotation(mgl32.AnglesToQuat(
		mgl32.DegToRad(r[1]), mgl32.DegToRad(r[0]), mgl32.DegToRad(r[2]), mgl32.YXZ))
	if o.Scale != [3]float32{} {
		t.SetScale(mgl32.Vec3(o.Scale))
	}
}

func (a *App) setupOverlay(width, height int) error {
	domain := a.settings.Assets.Domain
	atlas, err := graphics.LoadFontAtlas(a.locator, a.locator.AssetPath(domain, a.settings.Debug.Font), a.settings.Debug.FontSize)
	if err != nil {
		return err
	}
	shader, err := a.Shader(a.settings.Debug.Shader)
	if err != nil {
		return err
	}
	tex, err := graphics.NewTexture(a.backend, "overlay font", atlas.Image)
	if err != nil {
		return err
	}

	text := graphics.NewTextRenderer(a.backend, atlas, tex, shader, a.log)
	text.SetScreenSize(width, height)
	obj := entity.New(overlayObject)
	obj.Transform().SetPosition(mgl32.Vec3{8, 8, 0})
	entity.AddComponent(obj, text)
	if _, err := a.manager.Register(obj); err != nil {
		obj.CleanUp()
		_ = tex.Destroy()
		return err
	}
	a.overlay, a.fontTex = text, tex
	return nil
}

// Spinner turns its object about the local Y axis
type Spinner struct {
	entity.BaseComponent

	Speed float32 // degrees per second
}

func (s *Spinner) Update(dt float64) {
	t := s.Transform()
	if t == nil || s.Speed == 0 {
		return
	}
	angle := mgl32.DegToRad(s.Speed * float32(dt))
	t.SetRotation(t.Rotation().Mul(mgl32.QuatRotate(angle, mgl32.Vec3{0, 1, 0})))
}
