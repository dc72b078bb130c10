package entity_test

import (
	"testing"

	"renderstar/internal/entity"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterThenGet(t *testing.T) {
	m := entity.NewManager(nil)
	obj := entity.New("cube")

	stored, err := m.Register(obj)
	require.NoError(t, err)
	assert.Same(t, obj, stored)

	got, ok := m.Get("cube")
	require.True(t, ok)
	assert.Same(t, obj, got)
	assert.Equal(t, 1, m.Len())
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	m := entity.NewManager(nil)
	first := entity.New("cube")
	_, err := m.Register(first)
	require.NoError(t, err)

	stored, err := m.Register(entity.New("cube"))
	assert.ErrorIs(t, err, entity.ErrDuplicateName)
	assert.Nil(t, stored)

	got, _ := m.Get("cube")
	assert.Same(t, first, got)

	_, err = m.Register(nil)
	assert.ErrorIs(t, err, entity.ErrNilObject)
}

func TestRemoveThenGetAbsent(t *testing.T) {
	m := entity.NewManager(nil)
	obj := entity.New("cube")
	rec := &recorder{}
	entity.AddComponent(obj, rec)
	_, err := m.Register(obj)
	require.NoError(t, err)

	assert.True(t, m.Remove(obj))
	_, ok := m.Get("cube")
	assert.False(t, ok)
	assert.Equal(t, 1, rec.cleaned, "removal cleans up components")
	assert.False(t, m.Remove(obj))
}

func TestRemoveIgnoresUnregisteredNamesake(t *testing.T) {
	m := entity.NewManager(nil)
	registered := entity.New("cube")
	_, err := m.Register(registered)
	require.NoError(t, err)

	assert.False(t, m.Remove(entity.New("cube")))
	_, ok := m.Get("cube")
	assert.True(t, ok)
}

func TestRemoveDetachesChildren(t *testing.T) {
	m := entity.NewManager(nil)
	parent := entity.New("parent")
	parent.Transform().SetPosition(mgl32.Vec3{0, 10, 0})
	child := entity.New("child")
	require.NoError(t, child.SetParent(parent))
	_, err := m.Register(parent)
	require.NoError(t, err)
	_, err = m.Register(child)
	require.NoError(t, err)

	require.True(t, m.Remove(parent))
	assert.Nil(t, child.Transform().Parent())
	assert.Equal(t, mgl32.Vec3{}, child.Transform().WorldPosition())
}

func TestFanOutSkipsInactive(t *testing.T) {
	m := entity.NewManager(nil)
	active := entity.New("active")
	activeRec := &recorder{}
	entity.AddComponent(active, activeRec)

	hidden := entity.New("hidden")
	hiddenRec := &recorder{}
	entity.AddComponent(hidden, hiddenRec)
	hidden.SetActive(false)

	_, err := m.Register(active)
	require.NoError(t, err)
	_, err = m.Register(hidden)
	require.NoError(t, err)

	m.Update(0.016)
	m.Render(nil)

	assert.Equal(t, 1, activeRec.updated)
	assert.Equal(t, 1, activeRec.rendered)
	assert.Equal(t, 0, hiddenRec.updated)
	assert.Equal(t, 0, hiddenRec.rendered)

	m.CleanUp()
	assert.Equal(t, 1, activeRec.cleaned)
	assert.Equal(t, 1, hiddenRec.cleaned, "inactive objects are still cleaned up")
	assert.Equal(t, 0, m.Len())
}

func TestCleanUpRunsInReverseRegistrationOrder(t *testing.T) {
	m := entity.NewManager(nil)
	var log []string
	for _, name := range []string{"a", "b", "c"} {
		obj := entity.New(name)
		entity.AddComponent(obj, &recorder{log: &log, tag: name})
		_, err := m.Register(obj)
		require.NoError(t, err)
	}

	m.Update(0)
	m.CleanUp()

	assert.Equal(t, []string{
		"update:a", "update:b", "update:c",
		"cleanup:c", "cleanup:b", "cleanup:a",
	}, log)
}

// spawner registers a new object the first time it updates
type spawner struct {
	entity.BaseComponent
	m     *entity.Manager
	spawn bool
}

func (s *spawner) Update(float64) {
	if s.spawn {
		s.spawn = false
		_, _ = s.m.Register(entity.New("spawned"))
	}
}

func TestUpdateAllowsRegistrationFromHooks(t *testing.T) {
	m := entity.NewManager(nil)
	obj := entity.New("spawner")
	entity.AddComponent(obj, &spawner{m: m, spawn: true})
	_, err := m.Register(obj)
	require.NoError(t, err)

	assert.NotPanics(t, func() { m.Update(0.016) })
	_, ok := m.Get("spawned")
	assert.True(t, ok)
	assert.Equal(t, []string{"spawned", "spawner"}, m.Names())
}

// registrationWitness records whether its owner is still registered when it
// is cleaned up
type registrationWitness struct {
	entity.BaseComponent
	manager    *entity.Manager
	registered bool
}

func (w *registrationWitness) CleanUp() {
	_, w.registered = w.manager.Get(w.Owner().Name())
}

func TestRemoveCleansUpBeforeEvicting(t *testing.T) {
	m := entity.NewManager(nil)
	obj := entity.New("cube")
	w := &registrationWitness{manager: m}
	entity.AddComponent(obj, w)
	_, err := m.Register(obj)
	require.NoError(t, err)

	require.True(t, m.Remove(obj))
	assert.True(t, w.registered, "components clean up while the object is still registered")
	_, ok := m.Get("cube")
	assert.False(t, ok)
}
