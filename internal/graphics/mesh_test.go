package graphics_test

import (
	"testing"

	"renderstar/internal/entity"
	"renderstar/internal/graphics"
	"renderstar/internal/graphics/headless"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var triangle = []graphics.Vertex{
	{Position: mgl32.Vec3{0, 0.5, 0}, Color: mgl32.Vec3{1, 0, 0}, UV: mgl32.Vec2{0.5, 1}},
	{Position: mgl32.Vec3{-0.5, -0.5, 0}, Color: mgl32.Vec3{0, 1, 0}, UV: mgl32.Vec2{0, 0}},
	{Position: mgl32.Vec3{0.5, -0.5, 0}, Color: mgl32.Vec3{0, 0, 1}, UV: mgl32.Vec2{1, 0}},
}

func TestMeshQueries(t *testing.T) {
	b := headless.New("glsl")
	m, err := graphics.NewMesh(b, graphics.StandardVertexLayout, graphics.PrimitiveTriangles)
	require.NoError(t, err)

	assert.False(t, m.IsValid())
	assert.Zero(t, m.VertexCount())
	assert.ErrorIs(t, m.Draw(), graphics.ErrInvalidMesh)

	require.NoError(t, m.SetVertices(triangle))
	assert.True(t, m.IsValid())
	assert.Equal(t, 3, m.VertexCount())
	assert.False(t, m.HasIndices())

	require.NoError(t, m.SetIndexData([]uint32{0, 1, 2}))
	assert.True(t, m.HasIndices())
	assert.Equal(t, 3, m.IndexCount())
	assert.Equal(t, 2, b.Stats().LiveBuffers)

	require.NoError(t, m.Draw())
	assert.Equal(t, 1, b.Stats().DrawCalls)
	assert.Equal(t, 3, b.Stats().VerticesDrawn)

	require.NoError(t, m.SetIndexData(nil))
	assert.False(t, m.HasIndices())
	assert.Equal(t, 1, b.Stats().LiveBuffers)
}

func TestMeshRejectsPartialVertices(t *testing.T) {
	b := headless.New("glsl")
	m, err := graphics.NewMesh(b, nil, graphics.PrimitiveTriangles)
	require.NoError(t, err)
	assert.Same(t, graphics.StandardVertexLayout, m.Layout())

	assert.ErrorIs(t, m.SetVertexData(make([]byte, 33)), graphics.ErrVertexStride)
	assert.False(t, m.IsValid())
}

func TestMeshSetVerticesNeedsStandardLayout(t *testing.T) {
	b := headless.New("glsl")
	layout := graphics.NewVertexLayout(graphics.VertexAttribute{
		Semantic: graphics.SemanticPosition, Type: graphics.AttributeFloat32, Components: 3,
	})
	m, err := graphics.NewMesh(b, layout, graphics.PrimitivePoints)
	require.NoError(t, err)
	assert.ErrorIs(t, m.SetVertices(triangle), graphics.ErrLayoutMismatch)
	require.NoError(t, m.SetVertexData(graphics.FloatBytes([]float32{1, 2, 3, 4, 5, 6})))
	assert.Equal(t, 2, m.VertexCount())
}

func TestMeshDestroyReleasesBuffers(t *testing.T) {
	b := headless.New("glsl")
	m, err := graphics.NewMesh(b, graphics.StandardVertexLayout, graphics.PrimitiveTriangles)
	require.NoError(t, err)
	require.NoError(t, m.SetVertices(triangle))
	require.NoError(t, m.SetIndexData([]uint32{0, 1, 2}))

	require.NoError(t, m.Destroy())
	require.NoError(t, m.Destroy())
	assert.False(t, m.IsValid())
	assert.Zero(t, b.Stats().LiveBuffers)
	assert.Zero(t, b.Stats().LiveMeshes)
}

func TestBackendCloseDestroysOutstandingBuffers(t *testing.T) {
	b := headless.New("glsl")
	buffers := b.Buffers()
	_, err := buffers.CreateVertexBuffer([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	_, err = buffers.CreateUniformBuffer(64)
	require.NoError(t, err)
	assert.Equal(t, 2, buffers.Live())

	require.NoError(t, b.Close())
	assert.Zero(t, buffers.Live())
	_, err = buffers.CreateIndexBuffer([]byte{0})
	assert.ErrorIs(t, err, graphics.ErrClosed)
}

func TestBufferManagerContract(t *testing.T) {
	buffers := headless.NewBufferManager()
	h, err := buffers.CreateUniformBuffer(8)
	require.NoError(t, err)

	require.NoError(t, buffers.UpdateBuffer(h, []byte{1, 2}, 6))
	assert.ErrorIs(t, buffers.UpdateBuffer(h, []byte{1, 2, 3}, 6), graphics.ErrBufferOverflow)
	contents, _ := buffers.Contents(h)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 1, 2}, contents)

	assert.ErrorIs(t, buffers.BindVertexBuffer(h), graphics.ErrBufferKind)
	require.NoError(t, buffers.BindUniformBuffer(h, 2))
	bound, ok := buffers.BoundUniform(2)
	assert.True(t, ok)
	assert.Equal(t, h, bound)

	size, ok := buffers.BufferSize(h)
	assert.True(t, ok)
	assert.Equal(t, 8, size)

	require.NoError(t, buffers.DestroyBuffer(h))
	assert.ErrorIs(t, buffers.DestroyBuffer(h), graphics.ErrUnknownBuffer)
	assert.ErrorIs(t, buffers.UpdateBuffer(h, []byte{1}, 0), graphics.ErrUnknownBuffer)
	_, ok = buffers.BoundUniform(2)
	assert.False(t, ok)
}

func TestMeshRendererDrawsWithWorldMatrix(t *testing.T) {
	b := headless.New("glsl")
	loc := locator(map[string]string{
		"Assets/RenderStar/DefaultVertex.glsl": vertexSrc,
		"Assets/RenderStar/DefaultPixel.glsl":  pixelSrc,
	})
	shader := graphics.NewShader("default", "RenderStar", "Default")
	require.NoError(t, shader.Generate(b.Shaders(), loc))

	m, err := graphics.NewMesh(b, graphics.StandardVertexLayout, graphics.PrimitiveTriangles)
	require.NoError(t, err)
	require.NoError(t, m.SetVertices(triangle))
	m.SetShader(shader)

	obj := entity.New("triangle")
	obj.Transform().SetPosition(mgl32.Vec3{3, 0, 0})
	mr, ok := entity.AddComponent(obj, graphics.NewMeshRenderer(b.Buffers(), m, nil))
	require.True(t, ok)

	camObj := entity.New("camera")
	cam, _ := entity.AddComponent(camObj, graphics.NewCamera(900, 600))

	obj.Render(cam)
	require.NoError(t, mr.LastError())
	assert.Equal(t, 1, b.Stats().DrawCalls)
	assert.Equal(t, shader.Program(), b.ShaderCompiler().Bound())

	h, ok := b.BufferManager().BoundUniform(graphics.UniformSlot)
	require.True(t, ok)
	data, _ := b.BufferManager().Contents(h)
	assert.Equal(t, graphics.MatrixBytes(obj.Transform().WorldMatrix(), cam.ViewMatrix(), cam.ProjectionMatrix()), data)

	obj.CleanUp()
	assert.Zero(t, b.Stats().LiveBuffers, "uniform and mesh buffers released")
}

func TestCameraViewIsInverseWorld(t *testing.T) {
	obj := entity.New("camera")
	obj.Transform().SetPosition(mgl32.Vec3{0, 0, 5})
	cam, ok := entity.AddComponent(obj, graphics.NewCamera(800, 400))
	require.True(t, ok)

	assert.InDelta(t, 2.0, cam.AspectRatio, 1e-6)
	p := cam.ViewMatrix().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.True(t, p.ApproxEqualThreshold(mgl32.Vec4{0, 0, -5, 1}, 1e-5))

	detached := graphics.NewCamera(0, 0)
	assert.Equal(t, float32(1), detached.AspectRatio)
	assert.Equal(t, mgl32.Ident4(), detached.ViewMatrix())
}
