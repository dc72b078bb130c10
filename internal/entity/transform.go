package entity

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrCyclicParent is returned when a parent assignment would make a
// transform its own ancestor.
var ErrCyclicParent = errors.New("entity: parent assignment would create a cycle")

// Transform holds local position, rotation and scale plus an optional
// non-owning parent. World values are derived on every query by walking the
// parent chain, so they are never stale when an ancestor moves.
//
// Matrices are mgl32 column-major and multiply column vectors: the local
// matrix is T * R * S and the world matrix is parentWorld * local.
type Transform struct {
	BaseComponent

	position mgl32.Vec3
	rotation mgl32.Quat
	scale    mgl32.Vec3
	parent   *Transform
}

// NewTransform creates an identity transform
func NewTransform() *Transform {
	return &Transform{
		rotation: mgl32.QuatIdent(),
		scale:    mgl32.Vec3{1, 1, 1},
	}
}

func (t *Transform) Position() mgl32.Vec3 { return t.position }
func (t *Transform) Rotation() mgl32.Quat { return t.rotation }
func (t *Transform) Scale() mgl32.Vec3    { return t.scale }

func (t *Transform) SetPosition(p mgl32.Vec3) { t.position = p }

// SetRotation stores q normalized
func (t *Transform) SetRotation(q mgl32.Quat) { t.rotation = q.Normalize() }

func (t *Transform) SetScale(s mgl32.Vec3) { t.scale = s }

// Translate moves the transform by delta in parent space
func (t *Transform) Translate(delta mgl32.Vec3) {
	t.position = t.position.Add(delta)
}

// Rotate applies q on top of the current rotation, in parent space
func (t *Transform) Rotate(q mgl32.Quat) {
	t.rotation = q.Mul(t.rotation).Normalize()
}

// Parent returns the parent transform or nil for a root
func (t *Transform) Parent() *Transform { return t.parent }

// SetParent attaches t under p. A nil p detaches t. Assigning t itself or any
// of t's descendants returns ErrCyclicParent and leaves the hierarchy as is.
func (t *Transform) SetParent(p *Transform) error {
	for a := p; a != nil; a = a.parent {
		if a == t {
			return ErrCyclicParent
		}
	}
	t.parent = p
	return nil
}

// IsAncestorOf reports whether t appears anywhere above other in the chain
func (t *Transform) IsAncestorOf(other *Transform) bool {
	if other == nil {
		return false
	}
	for a := other.parent; a != nil; a = a.parent {
		if a == t {
			return true
		}
	}
	return false
}

// LocalMatrix returns T * R * S
func (t *Transform) LocalMatrix() mgl32.Mat4 {
	translate := mgl32.Translate3D(t.position.X(), t.position.Y(), t.position.Z())
	scale := mgl32.Scale3D(t.scale.X(), t.scale.Y(), t.scale.Z())
	return translate.Mul4(t.rotation.Mat4()).Mul4(scale)
}

// WorldMatrix composes the local matrix with every ancestor up to the root
func (t *Transform) WorldMatrix() mgl32.Mat4 {
	m := t.LocalMatrix()
	for a := t.parent; a != nil; a = a.parent {
		m = a.LocalMatrix().Mul4(m)
	}
	return m
}

// WorldPosition is the translation column of the world matrix
func (t *Transform) WorldPosition() mgl32.Vec3 {
	return t.WorldMatrix().Col(3).Vec3()
}

// WorldScale is the length of each basis column of the world matrix.
// Shear introduced by non-uniform scale under a rotated parent is not
// recovered.
func (t *Transform) WorldScale() mgl32.Vec3 {
	m := t.WorldMatrix()
	return mgl32.Vec3{
		m.Col(0).Vec3().Len(),
		m.Col(1).Vec3().Len(),
		m.Col(2).Vec3().Len(),
	}
}

// WorldRotation extracts the rotation from the world matrix after removing scale
func (t *Transform) WorldRotation() mgl32.Quat {
	m := t.WorldMatrix()
	var r mgl32.Mat4
	for i := 0; i < 3; i++ {
		col := m.Col(i).Vec3()
		if l := col.Len(); l > 0 {
			col = col.Mul(1 / l)
		}
		r.SetCol(i, col.Vec4(0))
	}
	r.SetCol(3, mgl32.Vec4{0, 0, 0, 1})
	return mgl32.Mat4ToQuat(r).Normalize()
}

// Forward is the world-space -Z axis
func (t *Transform) Forward() mgl32.Vec3 {
	return t.WorldRotation().Rotate(mgl32.Vec3{0, 0, -1})
}

// Right is the world-space +X axis
func (t *Transform) Right() mgl32.Vec3 {
	return t.WorldRotation().Rotate(mgl32.Vec3{1, 0, 0})
}

// Up is the world-space +Y axis
func (t *Transform) Up() mgl32.Vec3 {
	return t.WorldRotation().Rotate(mgl32.Vec3{0, 1, 0})
}
