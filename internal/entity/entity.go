package entity

import (
	"github.com/go-gl/mathgl/mgl32"
)

// View supplies the matrices a component needs to render itself.
// graphics.Camera implements it.
type View interface {
	ViewMatrix() mgl32.Mat4
	ProjectionMatrix() mgl32.Mat4
}

// Component is a behaviour unit attached to exactly one GameObject.
// Implementations embed BaseComponent, which provides the owner wiring and
// no-op lifecycle hooks.
type Component interface {
	Initialize()
	Update(dt float64)
	Render(view View)
	CleanUp()

	Owner() *GameObject
	bind(owner *GameObject, transform *Transform)
}

// BaseComponent carries the non-owning back-references to the owning object
// and its Transform.
type BaseComponent struct {
	owner     *GameObject
	transform *Transform
}

func (b *BaseComponent) Initialize()       {}
func (b *BaseComponent) Update(dt float64) {}
func (b *BaseComponent) Render(view View)  {}
func (b *BaseComponent) CleanUp()          {}

// Owner returns the GameObject this component is attached to, or nil
func (b *BaseComponent) Owner() *GameObject { return b.owner }

// Transform returns the owner's Transform, or nil when detached
func (b *BaseComponent) Transform() *Transform { return b.transform }

func (b *BaseComponent) bind(owner *GameObject, transform *Transform) {
	b.owner = owner
	b.transform = transform
}
