// Package assets resolves engine asset files by naming convention:
// <root>/<domain>/<localPath><Suffix>.<ext>, e.g. Assets/RenderStar/DefaultVertex.glsl.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
)

// DefaultRoot is the asset directory name below the working directory
const DefaultRoot = "Assets"

// StageSuffixes are the shader stage file suffixes in lookup order
var StageSuffixes = []string{"Vertex", "Pixel", "Compute", "Domain", "Geometry", "Hull"}

// Locator reads assets from a file system below a root directory
type Locator struct {
	fsys fs.FS
	root string
}

// NewLocator returns a locator reading <root>/... from fsys
func NewLocator(fsys fs.FS, root string) Locator {
	if root == "" {
		root = DefaultRoot
	}
	return Locator{fsys: fsys, root: root}
}

// Dir returns a locator for the directory dir containing the asset root
func Dir(dir, root string) Locator {
	return NewLocator(os.DirFS(dir), root)
}

func (l Locator) Root() string { return l.root }

// FS returns the file system assets are read from; nil for a zero Locator
func (l Locator) FS() fs.FS { return l.fsys }

// StagePath returns the conventional path of one shader stage source
func (l Locator) StagePath(domain, localPath, suffix, ext string) string {
	return path.Join(l.root, domain, localPath+suffix+"."+ext)
}

// AssetPath returns <root>/<domain>/<localPath>
func (l Locator) AssetPath(domain, localPath string) string {
	return path.Join(l.root, domain, localPath)
}

// Exists reports whether p names a regular file
func (l Locator) Exists(p string) bool {
	info, err := fs.Stat(l.fsys, p)
	return err == nil && info.Mode().IsRegular()
}

// ReadFile reads p. A missing file yields an error matching fs.ErrNotExist.
func (l Locator) ReadFile(p string) ([]byte, error) {
	if l.fsys == nil {
		return nil, fmt.Errorf("read asset %s: %w", p, fs.ErrNotExist)
	}
	return fs.ReadFile(l.fsys, p)
}

// Open opens p for streaming reads
func (l Locator) Open(p string) (fs.File, error) {
	if l.fsys == nil {
		return nil, fmt.Errorf("open asset %s: %w", p, fs.ErrNotExist)
	}
	return l.fsys.Open(p)
}

// ShaderSet is a group of stage files sharing a domain and local path
type ShaderSet struct {
	Domain    string
	LocalPath string
	Stages    []string
}

// HasStage reports whether the set contains the stage suffix
func (s ShaderSet) HasStage(suffix string) bool {
	return slices.Contains(s.Stages, suffix)
}

// FindShaderSets walks the root and groups files with extension ext by the
// shader they belong to. visit, if not nil, is called once per file seen.
func (l Locator) FindShaderSets(ext string, visit func(p string)) ([]ShaderSet, error) {
	if l.fsys == nil {
		return nil, errors.New("assets: locator has no file system")
	}
	type key struct{ domain, local string }
	sets := make(map[key]*ShaderSet)
	var order []key

	err := fs.WalkDir(l.fsys, l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if visit != nil {
			visit(p)
		}
		rel := strings.TrimPrefix(p, l.root+"/")
		domain, file, ok := strings.Cut(rel, "/")
		if !ok || path.Ext(file) != "."+ext {
			return nil
		}
		base := strings.TrimSuffix(file, "."+ext)
		for _, suffix := range StageSuffixes {
			local, found := strings.CutSuffix(base, suffix)
			if !found || local == "" {
				continue
			}
			k := key{domain, local}
			set, exists := sets[k]
			if !exists {
				set = &ShaderSet{Domain: domain, LocalPath: local}
				sets[k] = set
				order = append(order, k)
			}
			set.Stages = append(set.Stages, suffix)
			break
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", l.root, err)
	}

	out := make([]ShaderSet, 0, len(order))
	for _, k := range order {
		set := sets[k]
		slices.SortFunc(set.Stages, func(a, b string) int {
			return slices.Index(StageSuffixes, a) - slices.Index(StageSuffixes, b)
		})
		out = append(out, *set)
	}
	return out, nil
}
