package vulkan

import (
	"encoding/binary"
	"errors"
	"fmt"

	"renderstar/internal/graphics"

	vk "github.com/vulkan-go/vulkan"
)

// spirvMagic opens every SPIR-V module, in host word order
const spirvMagic = 0x07230203

// ErrNotSPIRV is returned for stage sources that are not SPIR-V binaries
var ErrNotSPIRV = errors.New("vulkan: stage source is not a SPIR-V module")

// spirvWords validates a SPIR-V binary and repacks it into 32-bit words
func spirvWords(code []byte) ([]uint32, error) {
	if len(code) < 20 || len(code)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrNotSPIRV, len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("%w: magic 0x%08x", ErrNotSPIRV, words[0])
	}
	return words, nil
}

func stageFlag(stage graphics.ShaderStage) vk.ShaderStageFlagBits {
	switch stage {
	case graphics.StageVertex:
		return vk.ShaderStageVertexBit
	case graphics.StagePixel:
		return vk.ShaderStageFragmentBit
	case graphics.StageCompute:
		return vk.ShaderStageComputeBit
	case graphics.StageDomain:
		return vk.ShaderStageTessellationEvaluationBit
	case graphics.StageGeometry:
		return vk.ShaderStageGeometryBit
	case graphics.StageHull:
		return vk.ShaderStageTessellationControlBit
	}
	return 0
}

var (
	floatFormats = [...]vk.Format{vk.FormatR32Sfloat, vk.FormatR32g32Sfloat, vk.FormatR32g32b32Sfloat, vk.FormatR32g32b32a32Sfloat}
	uintFormats  = [...]vk.Format{vk.FormatR32Uint, vk.FormatR32g32Uint, vk.FormatR32g32b32Uint, vk.FormatR32g32b32a32Uint}
	unormFormats = [...]vk.Format{vk.FormatR8Unorm, vk.FormatR8g8Unorm, vk.FormatR8g8b8Unorm, vk.FormatR8g8b8a8Unorm}
	byteFormats  = [...]vk.Format{vk.FormatR8Uint, vk.FormatR8g8Uint, vk.FormatR8g8b8Uint, vk.FormatR8g8b8a8Uint}
)

// attributeFormat maps one vertex attribute to its Vulkan format
func attributeFormat(a graphics.VertexAttribute) (vk.Format, error) {
	if a.Components < 1 || a.Components > 4 {
		return vk.FormatUndefined, fmt.Errorf("vulkan: %s has %d components", a.Semantic, a.Components)
	}
	i := a.Components - 1
	switch a.Type {
	case graphics.AttributeFloat32:
		return floatFormats[i], nil
	case graphics.AttributeUint32:
		return uintFormats[i], nil
	case graphics.AttributeUint8:
		if a.Normalized {
			return unormFormats[i], nil
		}
		return byteFormats[i], nil
	}
	return vk.FormatUndefined, fmt.Errorf("vulkan: unsupported attribute type %d", a.Type)
}

// VertexInput is the pipeline vertex input state derived from a layout:
// one interleaved binding, attribute i at location i
type VertexInput struct {
	Binding    vk.VertexInputBindingDescription
	Attributes []vk.VertexInputAttributeDescription
}

func vertexInput(layout *graphics.VertexLayout) (*VertexInput, error) {
	in := &VertexInput{
		Binding: vk.VertexInputBindingDescription{
			Binding:   0,
			Stride:    layout.Stride(),
			InputRate: vk.VertexInputRateVertex,
		},
	}
	for i, attr := range layout.Attributes() {
		format, err := attributeFormat(attr)
		if err != nil {
			return nil, err
		}
		in.Attributes = append(in.Attributes, vk.VertexInputAttributeDescription{
			Location: uint32(i),
			Binding:  0,
			Format:   format,
			Offset:   attr.Offset,
		})
	}
	return in, nil
}

// CreateInfo returns the state to plug into a graphics pipeline
func (in *VertexInput) CreateInfo() vk.PipelineVertexInputStateCreateInfo {
	return vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{in.Binding},
		VertexAttributeDescriptionCount: uint32(len(in.Attributes)),
		PVertexAttributeDescriptions:    in.Attributes,
	}
}

func primitiveTopology(p graphics.PrimitiveType) vk.PrimitiveTopology {
	switch p {
	case graphics.PrimitiveTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case graphics.PrimitiveLines:
		return vk.PrimitiveTopologyLineList
	case graphics.PrimitiveLineStrip:
		return vk.PrimitiveTopologyLineStrip
	case graphics.PrimitivePoints:
		return vk.PrimitiveTopologyPointList
	}
	return vk.PrimitiveTopologyTriangleList
}

// findMemoryType picks the first memory type allowed by typeBits whose
// property flags include want
func findMemoryType(types []vk.MemoryPropertyFlags, typeBits uint32, want vk.MemoryPropertyFlags) (uint32, bool) {
	for i, flags := range types {
		if typeBits&(1<<uint(i)) == 0 {
			continue
		}
		if flags&want == want {
			return uint32(i), true
		}
	}
	return 0, false
}

// check turns a non-success result into an error naming the call
func check(res vk.Result, what string) error {
	if res == vk.Success {
		return nil
	}
	return fmt.Errorf("vulkan: %s: %w", what, vk.Error(res))
}
