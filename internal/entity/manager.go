package entity

import (
	"errors"
	"log/slog"
	"slices"
	"sync/atomic"

	"renderstar/internal/profiling"
)

var (
	// ErrDuplicateName is returned by Register when the name is taken
	ErrDuplicateName = errors.New("entity: game object name already registered")
	// ErrNilObject is returned by Register for a nil object
	ErrNilObject = errors.New("entity: nil game object")
	// ErrConcurrentMutation is the panic value raised when two goroutines
	// use a Manager at the same time
	ErrConcurrentMutation = errors.New("entity: concurrent manager mutation")
)

// Manager owns every registered GameObject, keyed by name.
//
// The manager belongs to the update thread. Work originating elsewhere
// (window callbacks, loaders) must be posted to that thread. Every access
// to the registry claims it for its duration; a second goroutine touching
// it meanwhile panics with ErrConcurrentMutation.
type Manager struct {
	objects map[string]*GameObject
	order   []string
	busy    atomic.Bool
	log     *slog.Logger
}

// NewManager creates an empty manager. A nil logger uses slog.Default().
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		objects: make(map[string]*GameObject),
		log:     logger.With("component", "entity.Manager"),
	}
}

func (m *Manager) enter() {
	if !m.busy.CompareAndSwap(false, true) {
		panic(ErrConcurrentMutation)
	}
}

func (m *Manager) exit() { m.busy.Store(false) }

// Register adds obj under its name and returns it
func (m *Manager) Register(obj *GameObject) (*GameObject, error) {
	if obj == nil {
		return nil, ErrNilObject
	}
	m.enter()
	defer m.exit()

	if _, exists := m.objects[obj.name]; exists {
		m.log.Warn("rejected duplicate game object", "name", obj.name)
		return nil, ErrDuplicateName
	}
	m.objects[obj.name] = obj
	m.order = append(m.order, obj.name)
	m.log.Debug("registered game object", "name", obj.name, "components", obj.Len())
	return obj, nil
}

// Get returns the object registered under name
func (m *Manager) Get(name string) (*GameObject, bool) {
	m.enter()
	defer m.exit()
	obj, ok := m.objects[name]
	return obj, ok
}

// Len returns the number of registered objects
func (m *Manager) Len() int {
	m.enter()
	defer m.exit()
	return len(m.objects)
}

// Names returns the registered names in sorted order
func (m *Manager) Names() []string {
	m.enter()
	defer m.exit()
	names := make([]string, 0, len(m.objects))
	for name := range m.objects {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Remove cleans up obj, then detaches any transforms parented to it and
// evicts it. It returns false if obj is not the object registered under its
// name.
func (m *Manager) Remove(obj *GameObject) bool {
	if obj == nil || !m.live(obj) {
		return false
	}
	obj.CleanUp()
	m.evict(obj)
	m.log.Debug("removed game object", "name", obj.name)
	return true
}

// evict drops obj if it is still registered; a CleanUp hook may already
// have removed it
func (m *Manager) evict(obj *GameObject) {
	m.enter()
	defer m.exit()

	if !m.registered(obj) {
		return
	}
	for _, other := range m.objects {
		if other != obj && other.transform.parent == obj.transform {
			other.transform.parent = nil
		}
	}
	delete(m.objects, obj.name)
	m.order = slices.DeleteFunc(m.order, func(n string) bool { return n == obj.name })
}

// snapshot copies the live objects so hooks may register or remove objects
// while a fan-out is in progress
func (m *Manager) snapshot() []*GameObject {
	m.enter()
	defer m.exit()
	return m.ordered()
}

func (m *Manager) ordered() []*GameObject {
	out := make([]*GameObject, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.objects[name])
	}
	return out
}

func (m *Manager) live(obj *GameObject) bool {
	m.enter()
	defer m.exit()
	return m.registered(obj)
}

func (m *Manager) registered(obj *GameObject) bool {
	current, ok := m.objects[obj.name]
	return ok && current == obj
}

// Update runs Update on every registered, active object in registration order
func (m *Manager) Update(dt float64) {
	defer profiling.Track("entity.Manager.Update")()
	for _, obj := range m.snapshot() {
		if obj.active && m.live(obj) {
			obj.Update(dt)
		}
	}
}

// Render runs Render on every registered, active object in registration order
func (m *Manager) Render(view View) {
	defer profiling.Track("entity.Manager.Render")()
	for _, obj := range m.snapshot() {
		if obj.active && m.live(obj) {
			obj.Render(view)
		}
	}
}

// CleanUp runs CleanUp on every object, active or not, in reverse
// registration order and empties the manager.
func (m *Manager) CleanUp() {
	objs := m.drain()
	for i := len(objs) - 1; i >= 0; i-- {
		objs[i].CleanUp()
	}
	m.log.Debug("cleaned up all game objects", "count", len(objs))
}

func (m *Manager) drain() []*GameObject {
	m.enter()
	defer m.exit()

	objs := m.ordered()
	clear(m.objects)
	m.order = m.order[:0]
	return objs
}
