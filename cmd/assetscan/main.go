// Command assetscan lists the shader sets under an asset root and checks
// every mesh file loads with its parents.
package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"text/tabwriter"

	"renderstar/internal/assets"
	"renderstar/pkg/meshfile"

	"github.com/schollz/progressbar/v3"
)

func main() {
	dir := flag.String("dir", ".", "directory containing the asset root")
	root := flag.String("root", assets.DefaultRoot, "asset root directory name")
	ext := flag.String("ext", "glsl", "shader source extension")
	flag.Parse()

	problems, err := scan(os.Stdout, assets.Dir(*dir, *root), *ext)
	if err != nil {
		fmt.Fprintln(os.Stderr, "assetscan:", err)
		os.Exit(2)
	}
	if problems > 0 {
		os.Exit(1)
	}
}

// scan reports shader sets and mesh files to w and returns the number of
// problems found
func scan(w io.Writer, locator assets.Locator, ext string) (int, error) {
	bar := progressbar.Default(-1, "scanning assets")
	var meshFiles []string
	sets, err := locator.FindShaderSets(ext, func(p string) {
		_ = bar.Add(1)
		if path.Ext(p) == ".json" {
			meshFiles = append(meshFiles, p)
		}
	})
	_ = bar.Finish()
	if err != nil {
		return 0, err
	}

	problems := 0
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tSHADER\tSTAGES\tSTATUS")
	for _, set := range sets {
		status := "ok"
		if !set.HasStage("Vertex") || !set.HasStage("Pixel") {
			status = "no input layout (needs Vertex and Pixel)"
			problems++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", set.Domain, set.LocalPath, strings.Join(set.Stages, ","), status)
	}
	if err := tw.Flush(); err != nil {
		return problems, err
	}

	loaders := make(map[string]*meshfile.Loader)
	for _, p := range meshFiles {
		domain, name, ok := splitAsset(locator.Root(), p)
		if !ok {
			continue
		}
		loader, exists := loaders[domain]
		if !exists {
			loader = meshfile.NewLoader(locator.FS(), locator.AssetPath(domain, ""))
			loaders[domain] = loader
		}
		m, err := loader.Load(name)
		if err != nil {
			fmt.Fprintf(w, "mesh %s/%s: %v\n", domain, name, err)
			problems++
			continue
		}
		fmt.Fprintf(w, "mesh %s/%s: %d vertices, %d indices\n", domain, name, len(m.Vertices), len(m.Indices))
	}
	return problems, nil
}

// splitAsset turns <root>/<domain>/<name>.json into domain and name
func splitAsset(root, p string) (domain, name string, ok bool) {
	rel, found := strings.CutPrefix(p, root+"/")
	if !found {
		return "", "", false
	}
	domain, file, found := strings.Cut(rel, "/")
	if !found || !fs.ValidPath(file) {
		return "", "", false
	}
	return domain, strings.TrimSuffix(file, ".json"), true
}
