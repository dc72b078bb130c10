package entity_test

import (
	"testing"

	"renderstar/internal/entity"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder counts lifecycle calls
type recorder struct {
	entity.BaseComponent
	initialized int
	updated     int
	rendered    int
	cleaned     int
	log         *[]string
	tag         string
}

func (r *recorder) Initialize() { r.initialized++ }
func (r *recorder) Update(float64) {
	r.updated++
	if r.log != nil {
		*r.log = append(*r.log, "update:"+r.tag)
	}
}
func (r *recorder) Render(entity.View) { r.rendered++ }
func (r *recorder) CleanUp() {
	r.cleaned++
	if r.log != nil {
		*r.log = append(*r.log, "cleanup:"+r.tag)
	}
}

type other struct {
	entity.BaseComponent
}

func TestNewAttachesTransform(t *testing.T) {
	obj := entity.New("player")

	tr, ok := entity.GetComponent[*entity.Transform](obj)
	require.True(t, ok)
	assert.Same(t, obj.Transform(), tr)
	assert.Same(t, obj, tr.Owner())
	assert.Equal(t, 1, obj.Len())
	assert.True(t, obj.Active())
}

func TestAddComponentWiresOwnerAndInitializes(t *testing.T) {
	obj := entity.New("player")
	rec := &recorder{}

	added, ok := entity.AddComponent(obj, rec)
	require.True(t, ok)
	assert.Same(t, rec, added)
	assert.Same(t, obj, rec.Owner())
	assert.Same(t, obj.Transform(), rec.Transform())
	assert.Equal(t, 1, rec.initialized)

	got, ok := entity.GetComponent[*recorder](obj)
	require.True(t, ok)
	assert.Same(t, rec, got)
}

func TestAddComponentRejectsDuplicateType(t *testing.T) {
	obj := entity.New("player")
	first := &recorder{}
	_, ok := entity.AddComponent(obj, first)
	require.True(t, ok)

	second := &recorder{}
	got, ok := entity.AddComponent(obj, second)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Nil(t, second.Owner())
	assert.Equal(t, 0, second.initialized)

	current, _ := entity.GetComponent[*recorder](obj)
	assert.Same(t, first, current)
	assert.Equal(t, 1, first.initialized)
}

func TestAddComponentRejectsNilAndOwned(t *testing.T) {
	obj := entity.New("a")
	var missing *recorder
	_, ok := entity.AddComponent(obj, missing)
	assert.False(t, ok)

	rec := &recorder{}
	_, ok = entity.AddComponent(obj, rec)
	require.True(t, ok)
	_, ok = entity.AddComponent(entity.New("b"), rec)
	assert.False(t, ok, "a component belongs to one object only")

	_, ok = entity.AddComponent(obj, entity.NewTransform())
	assert.False(t, ok, "a second transform is a duplicate type")
}

func TestGetComponentAbsent(t *testing.T) {
	obj := entity.New("player")
	got, ok := entity.GetComponent[*recorder](obj)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.False(t, entity.HasComponent[*other](obj))

	_, ok = entity.GetComponent[*recorder](nil)
	assert.False(t, ok)
}

func TestRemoveComponentCleansUp(t *testing.T) {
	obj := entity.New("player")
	rec := &recorder{}
	entity.AddComponent(obj, rec)

	assert.True(t, entity.RemoveComponent[*recorder](obj))
	assert.Equal(t, 1, rec.cleaned)
	assert.Nil(t, rec.Owner())
	assert.False(t, entity.HasComponent[*recorder](obj))
	assert.False(t, entity.RemoveComponent[*recorder](obj))

	assert.False(t, entity.RemoveComponent[*entity.Transform](obj), "transform is permanent")
	assert.NotNil(t, obj.Transform())
}

func TestUpdateRenderDispatch(t *testing.T) {
	obj := entity.New("player")
	rec := &recorder{}
	entity.AddComponent(obj, rec)
	entity.AddComponent(obj, &other{})

	obj.Update(0.016)
	obj.Update(0.016)
	obj.Render(nil)

	assert.Equal(t, 2, rec.updated)
	assert.Equal(t, 1, rec.rendered)
	assert.Len(t, obj.Components(), 3)
}

func TestCleanUpIsIdempotent(t *testing.T) {
	obj := entity.New("player")
	rec := &recorder{}
	entity.AddComponent(obj, rec)

	obj.CleanUp()
	obj.CleanUp()

	assert.Equal(t, 1, rec.cleaned)
	assert.Equal(t, 0, obj.Len())
}

func TestGameObjectSetParent(t *testing.T) {
	parent := entity.New("parent")
	child := entity.New("child")

	require.NoError(t, child.SetParent(parent))
	assert.Same(t, parent.Transform(), child.Transform().Parent())
	assert.ErrorIs(t, parent.SetParent(child), entity.ErrCyclicParent)
	require.NoError(t, child.SetParent(nil))
	assert.Nil(t, child.Transform().Parent())
}

func TestCleanUpLeavesDetachedTransform(t *testing.T) {
	parent := entity.New("parent")
	child := entity.New("child")
	require.NoError(t, child.SetParent(parent))
	child.Transform().SetPosition(mgl32.Vec3{1, 0, 0})

	child.CleanUp()

	require.NotNil(t, child.Transform())
	assert.Nil(t, child.Transform().Parent())
	assert.Nil(t, child.Transform().Owner())
	assert.False(t, entity.HasComponent[*entity.Transform](child))
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, child.Transform().WorldPosition())
}
