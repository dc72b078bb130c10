package entity

import (
	"reflect"
	"slices"
)

// GameObject is a named container owning at most one component per concrete
// type. Every object carries a Transform from construction.
//
// A GameObject is not safe for concurrent use; it belongs to the update thread.
type GameObject struct {
	name   string
	active bool

	components map[reflect.Type]Component
	order      []reflect.Type
	transform  *Transform
}

// New creates an active GameObject with a default Transform attached
func New(name string) *GameObject {
	g := &GameObject{
		name:       name,
		active:     true,
		components: make(map[reflect.Type]Component),
	}
	t := NewTransform()
	g.transform = t
	g.attach(t)
	return g
}

func (g *GameObject) Name() string { return g.name }

// Active reports whether Update and Render reach this object
func (g *GameObject) Active() bool { return g.active }

func (g *GameObject) SetActive(active bool) { g.active = active }

// Transform returns the object's Transform component
func (g *GameObject) Transform() *Transform { return g.transform }

// Len returns the number of attached components
func (g *GameObject) Len() int { return len(g.order) }

// Components returns the attached components in attachment order
func (g *GameObject) Components() []Component {
	out := make([]Component, 0, len(g.order))
	for _, typ := range g.order {
		out = append(out, g.components[typ])
	}
	return out
}

// SetParent parents this object's Transform under other's. A nil other
// detaches it.
func (g *GameObject) SetParent(other *GameObject) error {
	if other == nil {
		return g.transform.SetParent(nil)
	}
	return g.transform.SetParent(other.transform)
}

func (g *GameObject) attach(c Component) bool {
	if isNil(c) || c.Owner() != nil {
		return false
	}
	typ := reflect.TypeOf(c)
	if _, exists := g.components[typ]; exists {
		return false
	}
	g.components[typ] = c
	g.order = append(g.order, typ)
	c.bind(g, g.transform)
	c.Initialize()
	return true
}

func (g *GameObject) detach(typ reflect.Type) bool {
	c, ok := g.components[typ]
	if !ok || c == Component(g.transform) {
		return false
	}
	c.CleanUp()
	delete(g.components, typ)
	g.order = slices.DeleteFunc(g.order, func(t reflect.Type) bool { return t == typ })
	c.bind(nil, nil)
	return true
}

// AddComponent attaches c to g and runs its Initialize hook. It returns the
// zero value and false when c is nil, already owned by an object, or when g
// already holds a component of c's concrete type; the existing component is
// left in place.
func AddComponent[T Component](g *GameObject, c T) (T, bool) {
	var zero T
	if g == nil || !g.attach(c) {
		return zero, false
	}
	return c, true
}

// GetComponent returns the component of exact type T attached to g
func GetComponent[T Component](g *GameObject) (T, bool) {
	var zero T
	if g == nil {
		return zero, false
	}
	c, ok := g.components[reflect.TypeFor[T]()]
	if !ok {
		return zero, false
	}
	typed, ok := c.(T)
	return typed, ok
}

// HasComponent reports whether a component of exact type T is attached
func HasComponent[T Component](g *GameObject) bool {
	_, ok := GetComponent[T](g)
	return ok
}

// RemoveComponent runs CleanUp on the component of type T and evicts it.
// The object's Transform cannot be removed.
func RemoveComponent[T Component](g *GameObject) bool {
	if g == nil {
		return false
	}
	return g.detach(reflect.TypeFor[T]())
}

// Update runs every component's Update hook in attachment order
func (g *GameObject) Update(dt float64) {
	for _, typ := range g.order {
		if c, ok := g.components[typ]; ok {
			c.Update(dt)
		}
	}
}

// Render runs every component's Render hook in attachment order
func (g *GameObject) Render(view View) {
	for _, typ := range g.order {
		if c, ok := g.components[typ]; ok {
			c.Render(view)
		}
	}
}

// CleanUp runs CleanUp on every component in reverse attachment order and
// empties the registry. Calling it again does nothing.
//
// Afterwards Transform still returns the object's transform, detached from
// its parent and no longer bound to the object, so position queries keep
// working; it is not a registered component any more.
func (g *GameObject) CleanUp() {
	for i := len(g.order) - 1; i >= 0; i-- {
		c := g.components[g.order[i]]
		c.CleanUp()
		c.bind(nil, nil)
	}
	clear(g.components)
	g.order = g.order[:0]
	g.transform.parent = nil
}

func isNil(c Component) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}
