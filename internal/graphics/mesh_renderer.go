package graphics

import (
	"log/slog"

	"renderstar/internal/entity"

	"github.com/go-gl/mathgl/mgl32"
)

// UniformSlot is the uniform block binding holding the per-object matrices
const UniformSlot = 0

// uniformBlockSize holds model, view and projection matrices
const uniformBlockSize = 3 * 16 * 4

// MeshRenderer draws a mesh with the owning object's world matrix.
// Attach it after any TextureComponent so textures are bound first.
// The renderer owns its mesh and destroys it on CleanUp.
type MeshRenderer struct {
	entity.BaseComponent

	mesh     *Mesh
	buffers  BufferManager
	uniforms BufferHandle
	ready    bool
	lastErr  error
	log      *slog.Logger
}

func NewMeshRenderer(buffers BufferManager, mesh *Mesh, logger *slog.Logger) *MeshRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MeshRenderer{mesh: mesh, buffers: buffers, log: logger}
}

func (r *MeshRenderer) Mesh() *Mesh { return r.mesh }

// LastError returns the most recent render failure, nil after a clean frame
func (r *MeshRenderer) LastError() error { return r.lastErr }

func (r *MeshRenderer) Initialize() {
	h, err := r.buffers.CreateUniformBuffer(uniformBlockSize)
	if err != nil {
		r.lastErr = err
		r.log.Error("uniform buffer creation failed", "error", err)
		return
	}
	r.uniforms = h
	r.ready = true
}

func (r *MeshRenderer) Render(view entity.View) {
	if view == nil || !r.ready || r.mesh == nil || !r.mesh.IsValid() {
		return
	}
	err := r.draw(view)
	if err != nil && !sameError(err, r.lastErr) {
		r.log.Warn("mesh draw skipped", "object", r.ownerName(), "error", err)
	}
	r.lastErr = err
}

// sameError reports whether a repeats b, so a failure that persists across
// frames is logged once
func sameError(a, b error) bool {
	return b != nil && a.Error() == b.Error()
}

func (r *MeshRenderer) draw(view entity.View) error {
	model := mgl32.Ident4()
	if t := r.Transform(); t != nil {
		model = t.WorldMatrix()
	}
	return drawMesh(r.buffers, r.uniforms, r.mesh, model, view.ViewMatrix(), view.ProjectionMatrix())
}

// drawMesh fills the matrix block, binds shader and block, then draws
func drawMesh(buffers BufferManager, uniforms BufferHandle, mesh *Mesh, model, view, proj mgl32.Mat4) error {
	if err := buffers.UpdateBuffer(uniforms, MatrixBytes(model, view, proj), 0); err != nil {
		return err
	}
	if s := mesh.Shader(); s != nil {
		if err := s.Bind(); err != nil {
			return err
		}
	}
	if err := buffers.BindUniformBuffer(uniforms, UniformSlot); err != nil {
		return err
	}
	return mesh.handle.Draw()
}

func (r *MeshRenderer) CleanUp() {
	if r.ready {
		if err := r.buffers.DestroyBuffer(r.uniforms); err != nil {
			r.log.Warn("uniform buffer release failed", "error", err)
		}
		r.ready = false
	}
	if r.mesh != nil {
		if err := r.mesh.Destroy(); err != nil {
			r.log.Warn("mesh release failed", "error", err)
		}
	}
}

func (r *MeshRenderer) ownerName() string {
	if o := r.Owner(); o != nil {
		return o.Name()
	}
	return ""
}
