// Package meshfile reads JSON mesh descriptions. A mesh may name a parent
// and inherit whatever it leaves out; texture references starting with '#'
// resolve through the merged textures map.
package meshfile

import (
	"encoding/json"
	"fmt"
)

type Mesh struct {
	Parent    string            `json:"parent"`
	Primitive string            `json:"primitive"`
	Shader    string            `json:"shader"`
	Texture   string            `json:"texture"`
	Textures  map[string]string `json:"textures"`
	Vertices  []Vertex          `json:"vertices"`
	Indices   []uint32          `json:"indices"`
}

type Vertex struct {
	Position [3]float32 `json:"position"`
	Color    [3]float32 `json:"color"`
	UV       [2]float32 `json:"uv"`
}

// vertexArray is the compact form: [x, y, z, r, g, b, u, v]
type vertexArray [8]float32

// UnmarshalJSON accepts either the object form or the compact eight-float
// array form of a vertex.
func (v *Vertex) UnmarshalJSON(data []byte) error {
	var flat vertexArray
	if err := json.Unmarshal(data, &flat); err == nil {
		*v = Vertex{
			Position: [3]float32{flat[0], flat[1], flat[2]},
			Color:    [3]float32{flat[3], flat[4], flat[5]},
			UV:       [2]float32{flat[6], flat[7]},
		}
		return nil
	}

	type plain Vertex
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*v = Vertex(obj)
	return nil
}

// Validate checks that every index addresses a vertex
func (m *Mesh) Validate() error {
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return fmt.Errorf("index %d (position %d) out of range for %d vertices", idx, i, len(m.Vertices))
		}
	}
	return nil
}
