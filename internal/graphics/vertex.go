package graphics

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Semantic names the shader input slot an attribute feeds
type Semantic uint8

const (
	SemanticPosition Semantic = iota
	SemanticColor
	SemanticTexCoord
	SemanticNormal
)

func (s Semantic) String() string {
	switch s {
	case SemanticPosition:
		return "POSITION"
	case SemanticColor:
		return "COLOR"
	case SemanticTexCoord:
		return "TEXCOORD"
	case SemanticNormal:
		return "NORMAL"
	}
	return "UNKNOWN"
}

// AttributeType is the scalar type of one attribute component
type AttributeType uint8

const (
	AttributeFloat32 AttributeType = iota
	AttributeUint8
	AttributeUint32
)

// Size returns the byte size of a single component
func (t AttributeType) Size() uint32 {
	switch t {
	case AttributeUint8:
		return 1
	default:
		return 4
	}
}

// VertexAttribute describes one interleaved attribute
type VertexAttribute struct {
	Semantic   Semantic
	Type       AttributeType
	Components uint32
	Normalized bool
	Offset     uint32
}

// Size is the byte size of the whole attribute
func (a VertexAttribute) Size() uint32 { return a.Type.Size() * a.Components }

// VertexLayout is an immutable, ordered description of an interleaved
// vertex. One layout is shared by every vertex of the same type.
type VertexLayout struct {
	attributes []VertexAttribute
	stride     uint32
}

// NewVertexLayout builds a layout from tightly packed attributes; offsets
// are assigned in order and the stride is their total size.
func NewVertexLayout(attrs ...VertexAttribute) *VertexLayout {
	l := &VertexLayout{attributes: make([]VertexAttribute, len(attrs))}
	var offset uint32
	for i, a := range attrs {
		a.Offset = offset
		l.attributes[i] = a
		offset += a.Size()
	}
	l.stride = offset
	return l
}

// Attributes returns a copy of the attribute list
func (l *VertexLayout) Attributes() []VertexAttribute {
	out := make([]VertexAttribute, len(l.attributes))
	copy(out, l.attributes)
	return out
}

func (l *VertexLayout) Len() int       { return len(l.attributes) }
func (l *VertexLayout) Stride() uint32 { return l.stride }

// Attribute returns the attribute at index i
func (l *VertexLayout) Attribute(i int) VertexAttribute { return l.attributes[i] }

// StandardVertexLayout is position3 + color3 + uv2, 32 bytes per vertex
var StandardVertexLayout = NewVertexLayout(
	VertexAttribute{Semantic: SemanticPosition, Type: AttributeFloat32, Components: 3},
	VertexAttribute{Semantic: SemanticColor, Type: AttributeFloat32, Components: 3},
	VertexAttribute{Semantic: SemanticTexCoord, Type: AttributeFloat32, Components: 2},
)

// FloatsPerVertex is the number of float32 values in a Vertex
const FloatsPerVertex = 8

// Vertex is the engine's standard vertex, described by StandardVertexLayout
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	UV       mgl32.Vec2
}

// ToFloatArray flattens vertices into position, color, uv order
func ToFloatArray(vertices []Vertex) []float32 {
	out := make([]float32, 0, len(vertices)*FloatsPerVertex)
	for _, v := range vertices {
		out = append(out,
			v.Position[0], v.Position[1], v.Position[2],
			v.Color[0], v.Color[1], v.Color[2],
			v.UV[0], v.UV[1],
		)
	}
	return out
}

// FloatBytes encodes floats as little-endian bytes for buffer upload
func FloatBytes(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, f := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// VertexBytes encodes vertices with StandardVertexLayout
func VertexBytes(vertices []Vertex) []byte {
	return FloatBytes(ToFloatArray(vertices))
}

// IndexBytes encodes 32-bit indices as little-endian bytes
func IndexBytes(indices []uint32) []byte {
	out := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return out
}

// MatrixBytes encodes column-major matrices back to back
func MatrixBytes(ms ...mgl32.Mat4) []byte {
	values := make([]float32, 0, len(ms)*16)
	for _, m := range ms {
		values = append(values, m[:]...)
	}
	return FloatBytes(values)
}

// PrimitiveType selects how vertices are assembled
type PrimitiveType uint8

const (
	PrimitiveTriangles PrimitiveType = iota
	PrimitiveTriangleStrip
	PrimitiveLines
	PrimitiveLineStrip
	PrimitivePoints
)

func (p PrimitiveType) String() string {
	switch p {
	case PrimitiveTriangles:
		return "triangles"
	case PrimitiveTriangleStrip:
		return "triangle_strip"
	case PrimitiveLines:
		return "lines"
	case PrimitiveLineStrip:
		return "line_strip"
	case PrimitivePoints:
		return "points"
	}
	return "unknown"
}

// ParsePrimitiveType maps the names used by String back to values. An empty
// name means triangles.
func ParsePrimitiveType(name string) (PrimitiveType, bool) {
	if name == "" {
		return PrimitiveTriangles, true
	}
	for p := PrimitiveTriangles; p <= PrimitivePoints; p++ {
		if p.String() == name {
			return p, true
		}
	}
	return 0, false
}
