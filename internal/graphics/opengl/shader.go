package opengl

import (
	"fmt"
	"strings"

	"renderstar/internal/graphics"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// MatricesBlock is the uniform block name bound to graphics.UniformSlot
const MatricesBlock = "Matrices"

// ShaderCompiler compiles GLSL stage sources into GL programs
type ShaderCompiler struct {
	programs map[graphics.ProgramHandle]struct{}
}

func NewShaderCompiler() *ShaderCompiler {
	return &ShaderCompiler{programs: make(map[graphics.ProgramHandle]struct{})}
}

func (c *ShaderCompiler) SourceExtension() string { return "glsl" }

func shaderType(stage graphics.ShaderStage) (uint32, error) {
	switch stage {
	case graphics.StageVertex:
		return gl.VERTEX_SHADER, nil
	case graphics.StagePixel:
		return gl.FRAGMENT_SHADER, nil
	case graphics.StageGeometry:
		return gl.GEOMETRY_SHADER, nil
	case graphics.StageHull:
		return gl.TESS_CONTROL_SHADER, nil
	case graphics.StageDomain:
		return gl.TESS_EVALUATION_SHADER, nil
	}
	// compute shaders arrived in GL 4.3
	return 0, graphics.ErrStageUnsupported
}

// attributeName is the vertex input a semantic binds to when the shader does
// not give explicit locations
func attributeName(s graphics.Semantic) string {
	switch s {
	case graphics.SemanticPosition:
		return "aPos"
	case graphics.SemanticColor:
		return "aColor"
	case graphics.SemanticTexCoord:
		return "aTexCoord"
	case graphics.SemanticNormal:
		return "aNormal"
	}
	return ""
}

func (c *ShaderCompiler) CompileStage(stage graphics.ShaderStage, path string, source []byte) (graphics.StageHandle, error) {
	typ, err := shaderType(stage)
	if err != nil {
		return 0, err
	}
	shader, err := compileShader(string(source), typ)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return graphics.StageHandle(shader), nil
}

func (c *ShaderCompiler) LinkProgram(stages []graphics.StageHandle, layout *graphics.VertexLayout) (graphics.ProgramHandle, error) {
	program := gl.CreateProgram()
	for _, s := range stages {
		gl.AttachShader(program, uint32(s))
	}
	if layout != nil {
		for i, attr := range layout.Attributes() {
			if name := attributeName(attr.Semantic); name != "" {
				gl.BindAttribLocation(program, uint32(i), gl.Str(name+"\x00"))
			}
		}
	}
	gl.LinkProgram(program)

	// The program keeps what it needs; stages are released either way
	for _, s := range stages {
		gl.DetachShader(program, uint32(s))
		gl.DeleteShader(uint32(s))
	}

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)

		return 0, fmt.Errorf("failed to link program: %v", strings.TrimRight(log, "\x00"))
	}

	if idx := gl.GetUniformBlockIndex(program, gl.Str(MatricesBlock+"\x00")); idx != gl.INVALID_INDEX {
		gl.UniformBlockBinding(program, idx, graphics.UniformSlot)
	}

	h := graphics.ProgramHandle(program)
	c.programs[h] = struct{}{}
	return h, nil
}

func (c *ShaderCompiler) DestroyStage(s graphics.StageHandle) { gl.DeleteShader(uint32(s)) }

func (c *ShaderCompiler) BindProgram(p graphics.ProgramHandle) error {
	if _, ok := c.programs[p]; !ok {
		return graphics.ErrUnknownProgram
	}
	gl.UseProgram(uint32(p))
	return nil
}

func (c *ShaderCompiler) DestroyProgram(p graphics.ProgramHandle) error {
	if _, ok := c.programs[p]; !ok {
		return graphics.ErrUnknownProgram
	}
	gl.DeleteProgram(uint32(p))
	delete(c.programs, p)
	return nil
}

// Close deletes every program still alive
func (c *ShaderCompiler) Close() {
	for p := range c.programs {
		gl.DeleteProgram(uint32(p))
	}
	clear(c.programs)
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)

		return 0, fmt.Errorf("failed to compile shader: %v", strings.TrimRight(log, "\x00"))
	}
	return shader, nil
}
