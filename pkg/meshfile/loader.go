package meshfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"strings"
	"sync"
)

// ErrParentCycle is returned when a mesh is, directly or not, its own parent
var ErrParentCycle = errors.New("meshfile: parent cycle")

// maxTextureHops bounds '#' reference chains
const maxTextureHops = 10

// Loader reads <dir>/<name>.json from a file system and caches the merged
// result per name. It is safe for concurrent use.
type Loader struct {
	fsys fs.FS
	dir  string

	mu    sync.Mutex
	cache map[string]*Mesh
}

func NewLoader(fsys fs.FS, dir string) *Loader {
	return &Loader{
		fsys:  fsys,
		dir:   dir,
		cache: make(map[string]*Mesh),
	}
}

// Load returns the mesh called name with its parents merged in. The result
// is shared between callers and must not be modified.
func (l *Loader) Load(name string) (*Mesh, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(name, nil)
}

func (l *Loader) load(name string, chain []string) (*Mesh, error) {
	if m, ok := l.cache[name]; ok {
		return m, nil
	}
	for _, seen := range chain {
		if seen == name {
			return nil, fmt.Errorf("%w: %s -> %s", ErrParentCycle, strings.Join(chain, " -> "), name)
		}
	}

	p := path.Join(l.dir, name+".json")
	data, err := fs.ReadFile(l.fsys, p)
	if err != nil {
		return nil, fmt.Errorf("could not read mesh file: %w", err)
	}

	var m Mesh
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("could not unmarshal mesh %s: %w", p, err)
	}
	if m.Textures == nil {
		m.Textures = make(map[string]string)
	}

	if m.Parent != "" {
		parent, err := l.load(m.Parent, append(chain, name))
		if err != nil {
			return nil, fmt.Errorf("could not load parent mesh '%s': %w", m.Parent, err)
		}
		inherit(&m, parent)
	}

	m.Texture = ResolveTexture(m.Texture, &m)
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("mesh %s: %w", name, err)
	}
	l.cache[name] = &m
	return &m, nil
}

// inherit fills what m leaves out from parent. Geometry is taken as a
// whole: a child without vertices uses the parent's vertices and indices.
func inherit(m, parent *Mesh) {
	if m.Primitive == "" {
		m.Primitive = parent.Primitive
	}
	if m.Shader == "" {
		m.Shader = parent.Shader
	}
	if m.Texture == "" {
		m.Texture = parent.Texture
	}
	if len(m.Vertices) == 0 {
		m.Vertices = parent.Vertices
		m.Indices = parent.Indices
	}
	merged := maps.Clone(parent.Textures)
	maps.Copy(merged, m.Textures)
	m.Textures = merged
}

// ResolveTexture follows '#key' references through m.Textures. An
// unresolvable reference is returned as is.
func ResolveTexture(name string, m *Mesh) string {
	for i := 0; i < maxTextureHops && strings.HasPrefix(name, "#"); i++ {
		resolved, ok := m.Textures[strings.TrimPrefix(name, "#")]
		if !ok {
			break
		}
		name = resolved
	}
	return name
}

// Len returns the number of cached meshes
func (l *Loader) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cache)
}
