package graphics

import (
	"renderstar/internal/entity"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera is a perspective camera component. Its view matrix is the inverse
// of the owning object's world matrix.
type Camera struct {
	entity.BaseComponent

	AspectRatio float32
	FOV         float32
	NearPlane   float32
	FarPlane    float32
}

func NewCamera(width, height int) *Camera {
	c := &Camera{
		FOV:       60.0,
		NearPlane: 0.1,
		FarPlane:  1000.0,
	}
	c.SetViewport(width, height)
	return c
}

// SetViewport updates the aspect ratio; a zero height keeps the previous one
func (c *Camera) SetViewport(width, height int) {
	if width <= 0 || height <= 0 {
		if c.AspectRatio == 0 {
			c.AspectRatio = 1
		}
		return
	}
	c.AspectRatio = float32(width) / float32(height)
}

func (c *Camera) ProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FOV), c.AspectRatio, c.NearPlane, c.FarPlane)
}

func (c *Camera) ViewMatrix() mgl32.Mat4 {
	t := c.Transform()
	if t == nil {
		return mgl32.Ident4()
	}
	return t.WorldMatrix().Inv()
}
