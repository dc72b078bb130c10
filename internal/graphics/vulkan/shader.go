package vulkan

import (
	"fmt"

	"renderstar/internal/graphics"

	vk "github.com/vulkan-go/vulkan"
)

type stageModule struct {
	stage  graphics.ShaderStage
	module vk.ShaderModule
}

// Program is a linked set of shader modules plus the vertex input derived
// from the layout. Pipelines are built from it by the presentation side.
type Program struct {
	Stages []vk.PipelineShaderStageCreateInfo
	Input  *VertexInput

	modules []vk.ShaderModule
}

// ShaderCompiler turns precompiled SPIR-V stage files into shader modules
type ShaderCompiler struct {
	ctx       *Context
	nextStage graphics.StageHandle
	nextProg  graphics.ProgramHandle
	stages    map[graphics.StageHandle]stageModule
	programs  map[graphics.ProgramHandle]*Program
	bound     graphics.ProgramHandle
}

func NewShaderCompiler(ctx *Context) *ShaderCompiler {
	return &ShaderCompiler{
		ctx:      ctx,
		stages:   make(map[graphics.StageHandle]stageModule),
		programs: make(map[graphics.ProgramHandle]*Program),
	}
}

func (c *ShaderCompiler) SourceExtension() string { return "spv" }

func (c *ShaderCompiler) CompileStage(stage graphics.ShaderStage, path string, source []byte) (graphics.StageHandle, error) {
	if stageFlag(stage) == 0 {
		return 0, graphics.ErrStageUnsupported
	}
	words, err := spirvWords(source)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	var module vk.ShaderModule
	res := vk.CreateShaderModule(c.ctx.Device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(source)),
		PCode:    words,
	}, nil, &module)
	if err := check(res, "create shader module"); err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	c.nextStage++
	c.stages[c.nextStage] = stageModule{stage: stage, module: module}
	return c.nextStage, nil
}

func (c *ShaderCompiler) LinkProgram(stages []graphics.StageHandle, layout *graphics.VertexLayout) (graphics.ProgramHandle, error) {
	p := &Program{}
	var missing []graphics.StageHandle
	for _, h := range stages {
		s, ok := c.stages[h]
		if !ok {
			missing = append(missing, h)
			continue
		}
		delete(c.stages, h)
		p.modules = append(p.modules, s.module)
		p.Stages = append(p.Stages, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stageFlag(s.stage),
			Module: s.module,
			PName:  cstr("main"),
		})
	}
	if len(missing) > 0 {
		c.release(p)
		return 0, fmt.Errorf("vulkan: link: unknown stage handles %v", missing)
	}
	if layout != nil {
		in, err := vertexInput(layout)
		if err != nil {
			c.release(p)
			return 0, err
		}
		p.Input = in
	}
	c.nextProg++
	c.programs[c.nextProg] = p
	return c.nextProg, nil
}

func (c *ShaderCompiler) release(p *Program) {
	for _, m := range p.modules {
		vk.DestroyShaderModule(c.ctx.Device, m, nil)
	}
	p.modules, p.Stages = nil, nil
}

func (c *ShaderCompiler) DestroyStage(h graphics.StageHandle) {
	if s, ok := c.stages[h]; ok {
		vk.DestroyShaderModule(c.ctx.Device, s.module, nil)
		delete(c.stages, h)
	}
}

// BindProgram selects the program the next pipeline is built from
func (c *ShaderCompiler) BindProgram(h graphics.ProgramHandle) error {
	if _, ok := c.programs[h]; !ok {
		return graphics.ErrUnknownProgram
	}
	c.bound = h
	return nil
}

// Bound returns the program selected by BindProgram
func (c *ShaderCompiler) Bound() (*Program, bool) {
	p, ok := c.programs[c.bound]
	return p, ok
}

func (c *ShaderCompiler) DestroyProgram(h graphics.ProgramHandle) error {
	p, ok := c.programs[h]
	if !ok {
		return graphics.ErrUnknownProgram
	}
	c.release(p)
	delete(c.programs, h)
	if c.bound == h {
		c.bound = 0
	}
	return nil
}

// Close destroys every stage and program still alive
func (c *ShaderCompiler) Close() {
	for h := range c.stages {
		c.DestroyStage(h)
	}
	for h, p := range c.programs {
		c.release(p)
		delete(c.programs, h)
	}
	c.bound = 0
}
