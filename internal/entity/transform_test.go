package entity_test

import (
	"testing"

	"renderstar/internal/entity"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-5

func assertVec3(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, eps), "expected %v, got %v", want, got)
}

func TestRootWorldEqualsLocal(t *testing.T) {
	tr := entity.NewTransform()
	tr.SetPosition(mgl32.Vec3{4, -2, 7})
	tr.SetRotation(mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{0, 1, 0}))
	tr.SetScale(mgl32.Vec3{2, 2, 2})

	assert.Equal(t, tr.LocalMatrix(), tr.WorldMatrix())
}

func TestIdentityTransform(t *testing.T) {
	tr := entity.NewTransform()
	assert.True(t, mgl32.Ident4().ApproxEqual(tr.WorldMatrix()))
	assertVec3(t, mgl32.Vec3{1, 1, 1}, tr.WorldScale())
}

func TestThreeLevelTranslationChain(t *testing.T) {
	grandparent := entity.NewTransform()
	grandparent.SetPosition(mgl32.Vec3{0, 0, 3})
	parent := entity.NewTransform()
	parent.SetPosition(mgl32.Vec3{0, 2, 0})
	child := entity.NewTransform()
	child.SetPosition(mgl32.Vec3{1, 0, 0})

	require.NoError(t, parent.SetParent(grandparent))
	require.NoError(t, child.SetParent(parent))

	assertVec3(t, mgl32.Vec3{1, 2, 3}, child.WorldPosition())
}

func TestWorldFollowsAncestorChanges(t *testing.T) {
	parent := entity.NewTransform()
	child := entity.NewTransform()
	child.SetPosition(mgl32.Vec3{1, 0, 0})
	require.NoError(t, child.SetParent(parent))

	assertVec3(t, mgl32.Vec3{1, 0, 0}, child.WorldPosition())

	parent.Translate(mgl32.Vec3{0, 5, 0})
	assertVec3(t, mgl32.Vec3{1, 5, 0}, child.WorldPosition())
}

func TestScaleRotateTranslateOrder(t *testing.T) {
	parent := entity.NewTransform()
	parent.SetPosition(mgl32.Vec3{10, 0, 0})
	parent.SetRotation(mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}))
	parent.SetScale(mgl32.Vec3{2, 2, 2})

	child := entity.NewTransform()
	child.SetPosition(mgl32.Vec3{1, 0, 0})
	require.NoError(t, child.SetParent(parent))

	// (1,0,0) scaled to (2,0,0), rotated 90deg about Z to (0,2,0), then moved by (10,0,0)
	assertVec3(t, mgl32.Vec3{10, 2, 0}, child.WorldPosition())
	assertVec3(t, mgl32.Vec3{2, 2, 2}, child.WorldScale())

	want := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1})
	got := child.WorldRotation()
	assert.True(t, want.ApproxEqualThreshold(got, 1e-4) || want.Scale(-1).ApproxEqualThreshold(got, 1e-4),
		"expected %v, got %v", want, got)
}

func TestDirectionVectors(t *testing.T) {
	tr := entity.NewTransform()
	assertVec3(t, mgl32.Vec3{0, 0, -1}, tr.Forward())
	assertVec3(t, mgl32.Vec3{1, 0, 0}, tr.Right())
	assertVec3(t, mgl32.Vec3{0, 1, 0}, tr.Up())

	tr.Rotate(mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0}))
	assertVec3(t, mgl32.Vec3{-1, 0, 0}, tr.Forward())
}

func TestSetParentRejectsCycles(t *testing.T) {
	a := entity.NewTransform()
	b := entity.NewTransform()
	c := entity.NewTransform()

	assert.ErrorIs(t, a.SetParent(a), entity.ErrCyclicParent)
	assert.Nil(t, a.Parent())

	require.NoError(t, b.SetParent(a))
	require.NoError(t, c.SetParent(b))

	assert.ErrorIs(t, a.SetParent(c), entity.ErrCyclicParent)
	assert.Nil(t, a.Parent(), "rejected assignment must not change the parent")
	assert.True(t, a.IsAncestorOf(c))
	assert.False(t, c.IsAncestorOf(a))

	require.NoError(t, c.SetParent(nil))
	assert.Nil(t, c.Parent())
	require.NoError(t, a.SetParent(c))
}
