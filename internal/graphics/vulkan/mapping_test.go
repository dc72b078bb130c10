package vulkan

import (
	"encoding/binary"
	"testing"

	"renderstar/internal/graphics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func spirvHeader(magic uint32) []byte {
	out := make([]byte, 20)
	binary.LittleEndian.PutUint32(out, magic)
	binary.LittleEndian.PutUint32(out[4:], 0x00010000)
	return out
}

func TestSPIRVWords(t *testing.T) {
	words, err := spirvWords(spirvHeader(spirvMagic))
	require.NoError(t, err)
	assert.Len(t, words, 5)
	assert.Equal(t, uint32(spirvMagic), words[0])

	_, err = spirvWords([]byte("#version 410 core\nvoid main() {}\n"))
	assert.ErrorIs(t, err, ErrNotSPIRV)
	_, err = spirvWords(spirvHeader(0xdeadbeef))
	assert.ErrorIs(t, err, ErrNotSPIRV)
	_, err = spirvWords(spirvHeader(spirvMagic)[:18])
	assert.ErrorIs(t, err, ErrNotSPIRV)
}

func TestEveryStageHasAFlag(t *testing.T) {
	seen := map[vk.ShaderStageFlagBits]bool{}
	for _, stage := range graphics.AllStages {
		flag := stageFlag(stage)
		assert.NotZero(t, flag, stage.String())
		assert.False(t, seen[flag], "duplicate flag for %s", stage)
		seen[flag] = true
	}
	assert.Equal(t, vk.ShaderStageFragmentBit, stageFlag(graphics.StagePixel))
	assert.Equal(t, vk.ShaderStageTessellationControlBit, stageFlag(graphics.StageHull))
}

func TestStandardLayoutVertexInput(t *testing.T) {
	in, err := vertexInput(graphics.StandardVertexLayout)
	require.NoError(t, err)
	assert.Equal(t, uint32(32), in.Binding.Stride)
	require.Len(t, in.Attributes, 3)

	formats := []vk.Format{vk.FormatR32g32b32Sfloat, vk.FormatR32g32b32Sfloat, vk.FormatR32g32Sfloat}
	offsets := []uint32{0, 12, 24}
	for i, attr := range in.Attributes {
		assert.Equal(t, uint32(i), attr.Location)
		assert.Equal(t, formats[i], attr.Format)
		assert.Equal(t, offsets[i], attr.Offset)
	}

	info := in.CreateInfo()
	assert.Equal(t, uint32(3), info.VertexAttributeDescriptionCount)
}

func TestAttributeFormats(t *testing.T) {
	f, err := attributeFormat(graphics.VertexAttribute{Type: graphics.AttributeUint8, Components: 4, Normalized: true})
	require.NoError(t, err)
	assert.Equal(t, vk.FormatR8g8b8a8Unorm, f)

	f, err = attributeFormat(graphics.VertexAttribute{Type: graphics.AttributeUint32, Components: 1})
	require.NoError(t, err)
	assert.Equal(t, vk.FormatR32Uint, f)

	_, err = attributeFormat(graphics.VertexAttribute{Type: graphics.AttributeFloat32, Components: 5})
	assert.Error(t, err)
}

func TestFindMemoryType(t *testing.T) {
	hostVisible := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	deviceLocal := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	types := []vk.MemoryPropertyFlags{deviceLocal, hostVisible, hostVisible | deviceLocal}

	idx, ok := findMemoryType(types, 0b111, hostVisible)
	require.True(t, ok)
	assert.Equal(t, uint32(1), idx)

	idx, ok = findMemoryType(types, 0b100, hostVisible)
	require.True(t, ok)
	assert.Equal(t, uint32(2), idx, "type bits restrict the candidates")

	_, ok = findMemoryType(types, 0b001, hostVisible)
	assert.False(t, ok)
}

func TestPrimitiveTopology(t *testing.T) {
	assert.Equal(t, vk.PrimitiveTopologyTriangleList, primitiveTopology(graphics.PrimitiveTriangles))
	assert.Equal(t, vk.PrimitiveTopologyLineStrip, primitiveTopology(graphics.PrimitiveLineStrip))
	assert.Equal(t, vk.PrimitiveTopologyPointList, primitiveTopology(graphics.PrimitivePoints))
}

func TestCheckPassesSuccess(t *testing.T) {
	assert.NoError(t, check(vk.Success, "noop"))
	assert.ErrorContains(t, check(vk.ErrorOutOfHostMemory, "allocate"), "allocate")
}
